package events

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// ErrDispatcherFull is returned by Publish when the buffer has no room.
var ErrDispatcherFull = errors.New("event buffer full")

// ErrDispatcherClosed is returned by Publish after Close.
var ErrDispatcherClosed = errors.New("dispatcher closed")

// EventHandler handles a published event.
type EventHandler func(context.Context, Event) error

// Dispatcher interface allows event publication/subscription.
type Dispatcher interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(eventType EventType, handler EventHandler)
}

// AsyncDispatcher queues events and delivers them on background workers.
// Publish never waits for handlers.
type AsyncDispatcher struct {
	mu        sync.RWMutex
	listeners map[EventType][]EventHandler
	queue     chan Event
	logger    *zap.Logger

	// stateMu orders Publish against Close so no send lands after the drain.
	stateMu   sync.RWMutex
	closeOnce sync.Once
	closed    chan struct{}
	wg        sync.WaitGroup
}

// NewAsyncDispatcher starts workers draining a buffer of the given size.
func NewAsyncDispatcher(logger *zap.Logger, buffer, workers int) *AsyncDispatcher {
	if buffer <= 0 {
		buffer = 64
	}
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &AsyncDispatcher{
		listeners: make(map[EventType][]EventHandler),
		queue:     make(chan Event, buffer),
		logger:    logger,
		closed:    make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.run()
	}
	return d
}

// Publish enqueues the event. It returns immediately; a full buffer drops the event.
func (d *AsyncDispatcher) Publish(_ context.Context, event Event) error {
	d.stateMu.RLock()
	defer d.stateMu.RUnlock()
	select {
	case <-d.closed:
		return ErrDispatcherClosed
	default:
	}
	select {
	case d.queue <- event:
		return nil
	default:
		d.logger.Warn("dropping event, buffer full",
			zap.String("event_type", string(event.Type)),
			zap.Int64("application_id", event.ApplicationID))
		return ErrDispatcherFull
	}
}

// Subscribe registers a handler for the given event type.
func (d *AsyncDispatcher) Subscribe(eventType EventType, handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners[eventType] = append(d.listeners[eventType], handler)
}

// Close stops accepting events, drains the buffer and waits for workers.
func (d *AsyncDispatcher) Close() {
	d.closeOnce.Do(func() {
		d.stateMu.Lock()
		close(d.closed)
		d.stateMu.Unlock()
		d.wg.Wait()
	})
}

func (d *AsyncDispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case event := <-d.queue:
			d.deliver(event)
		case <-d.closed:
			for {
				select {
				case event := <-d.queue:
					d.deliver(event)
				default:
					return
				}
			}
		}
	}
}

func (d *AsyncDispatcher) deliver(event Event) {
	d.mu.RLock()
	handlers := append([]EventHandler{}, d.listeners[event.Type]...)
	d.mu.RUnlock()

	// Handlers run detached from the publishing request.
	ctx := context.Background()
	for _, handler := range handlers {
		if err := d.invoke(ctx, handler, event); err != nil {
			d.logger.Warn("event handler failed",
				zap.String("event_id", event.ID),
				zap.String("event_type", string(event.Type)),
				zap.Error(err))
		}
	}
}

func (d *AsyncDispatcher) invoke(ctx context.Context, handler EventHandler, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("event handler panicked", zap.Any("panic", r), zap.String("event_id", event.ID))
			err = errors.New("handler panic")
		}
	}()
	return handler(ctx, event)
}
