package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Mailer delivers one email.
type Mailer interface {
	Send(ctx context.Context, email EmailPayload) error
}

// LogMailer writes emails to the log instead of a relay.
type LogMailer struct {
	Logger *zap.Logger
}

// Send logs the email.
func (m LogMailer) Send(_ context.Context, email EmailPayload) error {
	m.Logger.Info("email sent",
		zap.String("from", email.From),
		zap.String("to", email.To),
		zap.String("subject", email.Subject),
		zap.Int64("application_id", email.ApplicationID))
	return nil
}

// WebhookMailer posts each email as JSON to a relay endpoint.
type WebhookMailer struct {
	url        string
	httpClient *http.Client
}

// NewWebhookMailer constructs a relay-backed mailer.
func NewWebhookMailer(url string, timeout time.Duration) *WebhookMailer {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &WebhookMailer{url: url, httpClient: &http.Client{Timeout: timeout}}
}

// Send posts the email. Non-2xx responses are errors so asynq retries them.
func (m *WebhookMailer) Send(ctx context.Context, email EmailPayload) error {
	body, err := json.Marshal(email)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("mail relay responded %s", resp.Status)
	}
	return nil
}
