package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
)

// Event types published by the service.
const (
	AttemptStarted    = "attempt.started"
	AttemptCompleted  = "attempt.completed"
	AttemptTimedOut   = "attempt.timed_out"
	AttemptAbandoned  = "attempt.abandoned"
	AttemptTerminated = "attempt.terminated"

	ViolationReported = "violation.reported"

	TestCreated  = "test.created"
	TestUpdated  = "test.updated"
	TestDeleted  = "test.deleted"
	TestAssigned = "test.assigned"
)

// Event is the envelope for everything published to the event stream.
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Source    string                 `json:"source"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// NewEvent builds an event envelope with the service identity filled in.
func NewEvent(eventType string, data map[string]interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    "practice-test-service",
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// Publisher pushes domain events to the configured message broker.
// Publishing is best-effort: callers log failures but never fail the
// request because an event could not be delivered.
type Publisher interface {
	Publish(event Event) error
	Close() error
}

// WatermillPublisher publishes events through any watermill publisher
// (Kafka in production, GoChannel in development and tests).
type WatermillPublisher struct {
	publisher message.Publisher
	topic     string
}

func NewWatermillPublisher(publisher message.Publisher, topic string) *WatermillPublisher {
	return &WatermillPublisher{
		publisher: publisher,
		topic:     topic,
	}
}

func (p *WatermillPublisher) Publish(event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("event_type", event.Type)
	msg.Metadata.Set("source", event.Source)

	return p.publisher.Publish(p.topic, msg)
}

func (p *WatermillPublisher) Close() error {
	return p.publisher.Close()
}

// NopPublisher discards all events. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(Event) error { return nil }
func (NopPublisher) Close() error        { return nil }
