package notify

import (
	"context"
	"fmt"
	"time"

	"interviewdesk/pkg/logger"
	"interviewdesk/pkg/model"
)

// Notifier is what the booking service and the reconciler depend on.
type Notifier interface {
	BookingConfirmed(ctx context.Context, b model.Booking) error
	CancellationConfirmed(ctx context.Context, key model.SlotKey, rec model.BookingRecord) error
	CancellationRejected(ctx context.Context, to string, key model.SlotKey, outcome model.CancelOutcome) error
}

// Dispatcher formats notifications and hands them to a Sink under a
// per-message deadline.
type Dispatcher struct {
	formatter *Formatter
	sink      Sink
	timeout   time.Duration
	log       *logger.Logger
}

func NewDispatcher(formatter *Formatter, sink Sink, timeout time.Duration, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		formatter: formatter,
		sink:      sink,
		timeout:   timeout,
		log:       log,
	}
}

func (d *Dispatcher) BookingConfirmed(ctx context.Context, b model.Booking) error {
	n, err := d.formatter.BookingConfirmation(b)
	if err != nil {
		return fmt.Errorf("format booking confirmation: %w", err)
	}
	return d.send(ctx, n)
}

func (d *Dispatcher) CancellationConfirmed(ctx context.Context, key model.SlotKey, rec model.BookingRecord) error {
	n, err := d.formatter.CancellationConfirmation(key, rec)
	if err != nil {
		return fmt.Errorf("format cancellation confirmation: %w", err)
	}
	return d.send(ctx, n)
}

func (d *Dispatcher) CancellationRejected(ctx context.Context, to string, key model.SlotKey, outcome model.CancelOutcome) error {
	return d.send(ctx, d.formatter.CancellationRejection(to, key, outcome))
}

func (d *Dispatcher) Close() error {
	return d.sink.Close()
}

func (d *Dispatcher) send(ctx context.Context, n Notification) error {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	start := time.Now()
	if err := d.sink.Send(ctx, n); err != nil {
		d.log.Error("failed to send notification",
			"id", n.ID,
			"kind", n.Kind,
			"to", n.To,
			"error", err,
		)
		return err
	}
	d.log.Info("notification sent",
		"id", n.ID,
		"kind", n.Kind,
		"to", n.To,
		"duration", time.Since(start),
	)
	return nil
}
