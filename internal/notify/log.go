package notify

import (
	"context"

	"interviewdesk/pkg/logger"
)

// LogSink writes notifications to the log instead of delivering them.
// Used for local runs where no relay is configured.
type LogSink struct {
	log *logger.Logger
}

func NewLogSink(log *logger.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Send(_ context.Context, n Notification) error {
	attrs := []any{
		"id", n.ID,
		"kind", n.Kind,
		"to", n.To,
		"subject", n.Subject,
	}
	if n.Calendar != nil {
		attrs = append(attrs, "calendar_method", n.Calendar.Method, "calendar_bytes", len(n.Calendar.Data))
	}
	s.log.Info("notification (not delivered)", attrs...)
	return nil
}

func (s *LogSink) Close() error { return nil }
