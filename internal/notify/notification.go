// Package notify renders booking and cancellation emails and hands them to
// an outbound sink.
package notify

import (
	"context"
)

type Kind string

const (
	KindBookingConfirmation      Kind = "booking_confirmation"
	KindCancellationConfirmation Kind = "cancellation_confirmation"
	KindCancellationRejection    Kind = "cancellation_rejection"
)

// Notification is one outbound message, ready for any sink.
type Notification struct {
	ID       string    `json:"id"`
	Kind     Kind      `json:"kind"`
	To       string    `json:"to"`
	Subject  string    `json:"subject"`
	Body     string    `json:"body"`
	Calendar *Calendar `json:"calendar,omitempty"`
}

// Calendar is an encoded iCalendar object sent alongside the body.
type Calendar struct {
	Method   string `json:"method"`
	Filename string `json:"filename"`
	Data     []byte `json:"data"`
}

// Sink delivers rendered notifications.
type Sink interface {
	Send(ctx context.Context, n Notification) error
	Close() error
}
