package notify

import (
	"context"
	"fmt"

	"interviewdesk/pkg/kafka"
)

const (
	eventSchemaVersion = "1"
	eventSource        = "interviewdesk"
)

// Publisher is the subset of *kafka.Producer the sink needs.
type Publisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
	Close() error
}

// KafkaSink emits each notification as an event for a downstream mailer.
// Messages are keyed by recipient so one requester's mail stays ordered.
type KafkaSink struct {
	publisher Publisher
}

func NewKafkaSink(p Publisher) *KafkaSink {
	return &KafkaSink{publisher: p}
}

func (s *KafkaSink) Send(ctx context.Context, n Notification) error {
	msg, err := kafka.NewMessage().
		WithKey(n.To).
		WithValue(n).
		WithEventID(n.ID).
		WithEventType(string(n.Kind)).
		WithSchemaVersion(eventSchemaVersion).
		WithSource(eventSource).
		Build()
	if err != nil {
		return err
	}
	if err := s.publisher.Publish(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", n.Kind, err)
	}
	return nil
}

func (s *KafkaSink) Close() error {
	return s.publisher.Close()
}
