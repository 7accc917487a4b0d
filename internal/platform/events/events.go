// Package events carries domain change notifications to realtime clients
// and external brokers.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Event types.
const (
	TypeConversationCreated = "conversation.created"
	TypeMessageSent         = "message.sent"
	TypeMessageRead         = "message.read"
	TypeMessageEdited       = "message.edited"
	TypeMessageDeleted      = "message.deleted"
	TypeAppointmentUpdated  = "appointment.status_changed"
)

// Event is the envelope shared by every publisher. Audience lists the user
// ids whose clients should be told about the change.
type Event struct {
	ID           string          `json:"id"`
	Type         string          `json:"type"`
	ResourceType string          `json:"resourceType"`
	ResourceID   string          `json:"resourceId,omitempty"`
	Audience     []string        `json:"audience,omitempty"`
	OccurredAt   time.Time       `json:"occurredAt"`
	Data         json.RawMessage `json:"data,omitempty"`
}

// New builds an event with a fresh id and timestamp. data is marshalled to
// JSON; a marshalling failure leaves Data empty.
func New(eventType, resourceType, resourceID string, audience []string, data interface{}) Event {
	evt := Event{
		ID:           uuid.NewString(),
		Type:         eventType,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Audience:     audience,
		OccurredAt:   time.Now().UTC(),
	}
	if data != nil {
		if raw, err := json.Marshal(data); err == nil {
			evt.Data = raw
		}
	}
	return evt
}

// Publisher delivers events somewhere.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// Noop discards events.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }

// Fanout publishes to every wrapped publisher and joins their errors.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, evt Event) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
