// Package notification turns lifecycle events into queued emails for the
// applicant. Delivery is best effort: nothing here reports back to the writer.
package notification

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/job-portal/internal/config"
	"github.com/spec-kit/job-portal/internal/domain"
	"github.com/spec-kit/job-portal/internal/events"
	"github.com/spec-kit/job-portal/internal/observability"
)

// Service handles emitting notifications for lifecycle events.
type Service struct {
	dispatcher events.Dispatcher
	queue      Enqueuer
	logger     *zap.Logger
	metrics    *observability.Metrics
	cfg        config.NotificationConfig
}

// NewService creates the service.
func NewService(dispatcher events.Dispatcher, queue Enqueuer, logger *zap.Logger, metrics *observability.Metrics, cfg config.NotificationConfig) *Service {
	return &Service{
		dispatcher: dispatcher,
		queue:      queue,
		logger:     logger,
		metrics:    metrics,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *Service) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventApplicationReceived, n.handleApplicationReceived)
	n.dispatcher.Subscribe(events.EventApplicationStatusChanged, n.handleStatusChanged)
}

func (n *Service) handleApplicationReceived(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.ApplicationReceivedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	app := payload.Application
	n.send(ctx, event, EmailPayload{
		To:      app.ApplicantEmail,
		Subject: ReceivedSubject(app),
		Body: fmt.Sprintf("Hi %s,\n\nWe received your application for %s at %s. The employer will review it soon.\n",
			displayName(app), app.JobTitle, app.CompanyName),
	})
	return nil
}

func (n *Service) handleStatusChanged(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TransitionPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	app := payload.Application
	n.send(ctx, event, EmailPayload{
		To:      app.ApplicantEmail,
		Subject: StatusSubject(app, payload.To),
		Body: fmt.Sprintf("Hi %s,\n\nYour application for %s at %s moved from %s to %s.\n",
			displayName(app), app.JobTitle, app.CompanyName, payload.From, payload.To),
	})
	return nil
}

func (n *Service) send(ctx context.Context, event events.Event, email EmailPayload) {
	email.EventID = event.ID
	email.EventType = string(event.Type)
	email.ApplicationID = event.ApplicationID
	email.From = n.cfg.EmailFrom

	if !n.cfg.Enabled || n.queue == nil {
		n.logger.Info("email notifications disabled, would have sent",
			zap.String("to", email.To),
			zap.String("subject", email.Subject),
			zap.Int64("application_id", email.ApplicationID))
		n.metrics.RecordNotification(email.EventType, "disabled")
		return
	}
	if strings.TrimSpace(email.To) == "" {
		n.logger.Warn("no recipient for notification", zap.Int64("application_id", email.ApplicationID))
		n.metrics.RecordNotification(email.EventType, "skipped")
		return
	}
	if err := n.queue.EnqueueEmail(ctx, email); err != nil {
		n.logger.Warn("failed to enqueue notification",
			zap.String("event_type", email.EventType),
			zap.Int64("application_id", email.ApplicationID),
			zap.Error(err))
		n.metrics.RecordNotification(email.EventType, "failed")
		return
	}
	n.metrics.RecordNotification(email.EventType, "queued")
}

// ReceivedSubject is the subject of the confirmation sent after applying.
func ReceivedSubject(app domain.Application) string {
	return "Application Received - " + app.JobTitle + " at " + app.CompanyName
}

// StatusSubject is the subject of a status change email for the new status.
func StatusSubject(app domain.Application, to domain.ApplicationStatus) string {
	switch to {
	case domain.StatusOffered, domain.StatusAccepted:
		return "Congratulations! You've been selected for " + app.JobTitle
	case domain.StatusRejected:
		return "Update on your application for " + app.JobTitle
	case domain.StatusReviewed:
		return "Your application for " + app.JobTitle + " is under review"
	case domain.StatusShortlisted:
		return "Great news! You've been shortlisted for " + app.JobTitle
	case domain.StatusInterview:
		return "Interview scheduled for " + app.JobTitle
	default:
		return "Application Status Update - " + app.JobTitle
	}
}

func displayName(app domain.Application) string {
	if app.ApplicantName != "" {
		return app.ApplicantName
	}
	return "there"
}
