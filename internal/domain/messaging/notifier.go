package messaging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dentalhub/dentalhub/internal/platform/events"
)

// Notifier tells observers that a conversation changed. Implementations
// must not fail the caller's operation.
type Notifier interface {
	Notify(ctx context.Context, eventType string, conversationID uuid.UUID, audience []uuid.UUID, data interface{})
}

// EventNotifier publishes conversation changes as events addressed to the
// conversation's participants.
type EventNotifier struct {
	pub    events.Publisher
	logger zerolog.Logger
}

func NewEventNotifier(pub events.Publisher, logger zerolog.Logger) *EventNotifier {
	if pub == nil {
		pub = events.Noop{}
	}
	return &EventNotifier{pub: pub, logger: logger}
}

func (n *EventNotifier) Notify(ctx context.Context, eventType string, conversationID uuid.UUID, audience []uuid.UUID, data interface{}) {
	to := make([]string, len(audience))
	for i, id := range audience {
		to[i] = id.String()
	}
	evt := events.New(eventType, "conversation", conversationID.String(), to, data)
	if err := n.pub.Publish(ctx, evt); err != nil {
		n.logger.Error().Err(err).
			Str("event", eventType).
			Str("conversation_id", conversationID.String()).
			Msg("publish conversation event")
	}
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, string, uuid.UUID, []uuid.UUID, interface{}) {}
