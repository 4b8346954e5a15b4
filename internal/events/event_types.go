package events

import (
	"time"

	"github.com/spec-kit/job-portal/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventApplicationReceived      EventType = "application_received"
	EventApplicationStatusChanged EventType = "application_status_changed"
)

// Event represents a domain event emitted by the lifecycle engine.
type Event struct {
	ID            string      `json:"id"`
	Type          EventType   `json:"type"`
	ApplicationID int64       `json:"application_id"`
	Timestamp     time.Time   `json:"timestamp"`
	Payload       interface{} `json:"payload"`
}

// ApplicationReceivedPayload payload.
type ApplicationReceivedPayload struct {
	Application domain.Application `json:"application"`
}

// TransitionPayload is the TransitionEvent emitted on every committed status change.
type TransitionPayload struct {
	Application domain.Application       `json:"application"`
	From        domain.ApplicationStatus `json:"from"`
	To          domain.ApplicationStatus `json:"to"`
	OccurredAt  time.Time                `json:"occurred_at"`
}
