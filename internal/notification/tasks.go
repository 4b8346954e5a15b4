package notification

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/hibiken/asynq"
)

// TaskTypeEmail is the asynq task type carrying one outbound email.
const TaskTypeEmail = "notification:email"

// ErrInvalidPayload marks a task whose payload cannot be decoded.
var ErrInvalidPayload = errors.New("invalid email payload")

// EmailPayload describes one email to deliver.
type EmailPayload struct {
	EventID       string `json:"event_id"`
	EventType     string `json:"event_type"`
	ApplicationID int64  `json:"application_id"`
	From          string `json:"from"`
	To            string `json:"to"`
	Subject       string `json:"subject"`
	Body          string `json:"body"`
}

// NewEmailTask constructs an asynq task.
func NewEmailTask(payload EmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeEmail, data), nil
}

// DecodeEmailTask reads the payload of a TaskTypeEmail task.
func DecodeEmailTask(t *asynq.Task) (EmailPayload, error) {
	var payload EmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return EmailPayload{}, errors.Join(ErrInvalidPayload, err)
	}
	if payload.To == "" || payload.Subject == "" {
		return EmailPayload{}, ErrInvalidPayload
	}
	return payload, nil
}

// Enqueuer hands an email to the delivery queue.
type Enqueuer interface {
	EnqueueEmail(ctx context.Context, payload EmailPayload) error
}

// QueueClient submits email tasks to asynq.
type QueueClient struct {
	client *asynq.Client
	queue  string
}

// NewQueueClient constructs an asynq-backed Enqueuer.
func NewQueueClient(redisOpts asynq.RedisClientOpt, queue string) *QueueClient {
	if queue == "" {
		queue = "default"
	}
	return &QueueClient{client: asynq.NewClient(redisOpts), queue: queue}
}

// EnqueueEmail enqueues a send-email task with retries left to asynq. The event
// id doubles as the task id so a re-published event is not queued twice.
func (c *QueueClient) EnqueueEmail(ctx context.Context, payload EmailPayload) error {
	task, err := NewEmailTask(payload)
	if err != nil {
		return err
	}
	opts := []asynq.Option{asynq.Queue(c.queue), asynq.MaxRetry(5)}
	if payload.EventID != "" {
		opts = append(opts, asynq.TaskID(payload.EventID))
	}
	_, err = c.client.EnqueueContext(ctx, task, opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

// Close releases client resources.
func (c *QueueClient) Close() error {
	return c.client.Close()
}
