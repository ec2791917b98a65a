package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

func TestNewEvent(t *testing.T) {
	event := NewEvent(AttemptStarted, map[string]interface{}{
		"attempt_id": uint(42),
		"user_id":    "user-1",
	})

	if event.ID == "" {
		t.Error("event ID should not be empty")
	}
	if event.Type != AttemptStarted {
		t.Errorf("event type = %s, want %s", event.Type, AttemptStarted)
	}
	if event.Source != "practice-test-service" {
		t.Errorf("event source = %s, want practice-test-service", event.Source)
	}
	if event.Timestamp.IsZero() {
		t.Error("event timestamp should not be zero")
	}
	if event.Data["user_id"] != "user-1" {
		t.Errorf("event data = %v", event.Data)
	}
}

func TestWatermillPublisher_Publish(t *testing.T) {
	logger := watermill.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stdout, nil)))
	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 8}, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	messages, err := pubSub.Subscribe(ctx, "practice-test-events")
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	publisher := NewWatermillPublisher(pubSub, "practice-test-events")
	defer publisher.Close()

	event := NewEvent(AttemptCompleted, map[string]interface{}{
		"attempt_id": float64(7),
		"score":      float64(85),
	})
	if err := publisher.Publish(event); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case msg := <-messages:
		msg.Ack()

		if got := msg.Metadata.Get("event_type"); got != AttemptCompleted {
			t.Errorf("event_type metadata = %s, want %s", got, AttemptCompleted)
		}
		if got := msg.Metadata.Get("source"); got != "practice-test-service" {
			t.Errorf("source metadata = %s, want practice-test-service", got)
		}

		var received Event
		if err := json.Unmarshal(msg.Payload, &received); err != nil {
			t.Fatalf("failed to unmarshal payload: %v", err)
		}
		if received.ID != event.ID || received.Type != event.Type {
			t.Errorf("received %+v, want %+v", received, event)
		}
		if received.Data["score"] != float64(85) {
			t.Errorf("received data = %v", received.Data)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for published message")
	}
}

func TestNewGoChannelPublisher(t *testing.T) {
	publisher := NewGoChannelPublisher("practice-test-events",
		slog.New(slog.NewTextHandler(os.Stdout, nil)))

	if err := publisher.Publish(NewEvent(TestCreated, nil)); err != nil {
		t.Errorf("Publish() error = %v", err)
	}
	if err := publisher.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestNopPublisher(t *testing.T) {
	var p NopPublisher
	if err := p.Publish(NewEvent(TestDeleted, nil)); err != nil {
		t.Errorf("Publish() error = %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestMockPublisher(t *testing.T) {
	mock := NewMockPublisher()

	_ = mock.Publish(NewEvent(AttemptStarted, nil))
	_ = mock.Publish(NewEvent(AttemptCompleted, nil))
	_ = mock.Publish(NewEvent(AttemptCompleted, nil))

	if got := len(mock.GetPublishedEvents()); got != 3 {
		t.Errorf("GetPublishedEvents() len = %d, want 3", got)
	}
	if got := len(mock.EventsOfType(AttemptCompleted)); got != 2 {
		t.Errorf("EventsOfType() len = %d, want 2", got)
	}

	mock.ClearEvents()
	if got := len(mock.GetPublishedEvents()); got != 0 {
		t.Errorf("GetPublishedEvents() after clear = %d, want 0", got)
	}
}
