package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

type recordingPublisher struct {
	events []Event
	err    error
}

func (r *recordingPublisher) Publish(_ context.Context, evt Event) error {
	r.events = append(r.events, evt)
	return r.err
}

func TestNew_PopulatesEnvelope(t *testing.T) {
	evt := New(TypeMessageSent, "message", "m1", []string{"u1", "u2"}, map[string]string{"conversationId": "c1"})
	if evt.ID == "" {
		t.Error("expected generated id")
	}
	if evt.OccurredAt.IsZero() {
		t.Error("expected timestamp")
	}
	var data map[string]string
	if err := json.Unmarshal(evt.Data, &data); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if data["conversationId"] != "c1" {
		t.Errorf("unexpected data %v", data)
	}
}

func TestFanout_DeliversToAllAndJoinsErrors(t *testing.T) {
	ok := &recordingPublisher{}
	failing := &recordingPublisher{err: errors.New("broker down")}
	f := Fanout{ok, nil, failing}

	err := f.Publish(context.Background(), New(TypeMessageRead, "conversation", "c1", nil, nil))
	if err == nil {
		t.Fatal("expected joined error")
	}
	if len(ok.events) != 1 || len(failing.events) != 1 {
		t.Error("expected every publisher to receive the event")
	}
}

func TestNoop(t *testing.T) {
	if err := (Noop{}).Publish(context.Background(), Event{}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

type fakeWriter struct {
	msgs   []kafka.Message
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaPublisher_KeysByResource(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{writer: w, topic: "dental.events"}

	evt := New(TypeMessageSent, "conversation", "conv-42", []string{"u1"}, nil)
	if err := p.Publish(context.Background(), evt); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("expected one message, got %d", len(w.msgs))
	}
	msg := w.msgs[0]
	if string(msg.Key) != "conv-42" {
		t.Errorf("expected key conv-42, got %s", msg.Key)
	}
	if msg.Headers[0].Key != "event_type" || string(msg.Headers[0].Value) != TypeMessageSent {
		t.Errorf("unexpected headers %v", msg.Headers)
	}
	var decoded Event
	if err := json.Unmarshal(msg.Value, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.ID != evt.ID {
		t.Errorf("expected id %s, got %s", evt.ID, decoded.ID)
	}

	_ = p.Close()
	if !w.closed {
		t.Error("expected writer to be closed")
	}
}

func TestNewKafkaPublisher_Validation(t *testing.T) {
	if _, err := NewKafkaPublisher(nil, "t", zerolog.Nop()); err == nil {
		t.Error("expected error without brokers")
	}
	if _, err := NewKafkaPublisher([]string{"localhost:9092"}, "", zerolog.Nop()); err == nil {
		t.Error("expected error without topic")
	}
}

type fakeChannel struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

func (c *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	c.exchange, c.key, c.msg = exchange, key, msg
	return nil
}

func (c *fakeChannel) Close() error { return nil }

func TestAMQPPublisher_RoutesByType(t *testing.T) {
	ch := &fakeChannel{}
	p := &AMQPPublisher{channel: ch, exchange: "dental.events"}

	evt := New(TypeAppointmentUpdated, "appointment", "a1", nil, nil)
	if err := p.Publish(context.Background(), evt); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ch.exchange != "dental.events" || ch.key != TypeAppointmentUpdated {
		t.Errorf("unexpected routing %s/%s", ch.exchange, ch.key)
	}
	if ch.msg.MessageId != evt.ID || ch.msg.ContentType != "application/json" {
		t.Errorf("unexpected publishing %+v", ch.msg)
	}
	if err := p.Close(); err != nil {
		t.Errorf("unexpected close error: %v", err)
	}
}
