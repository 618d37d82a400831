package model

import "time"

// CancellationRequest is an inbound cancellation message. It is never persisted.
type CancellationRequest struct {
	MessageID  string
	Sender     string
	Subject    string
	Body       string
	ReceivedAt time.Time
}

type CancelOutcome string

const (
	OutcomeCancelled  CancelOutcome = "cancelled"
	OutcomeMalformed  CancelOutcome = "malformed"
	OutcomeNoSuchDate CancelOutcome = "no_such_date"
	OutcomeNoSuchSlot CancelOutcome = "no_such_slot"
	OutcomeFailed     CancelOutcome = "failed"
)

// Reason is the sentence sent back to the requester for a rejected cancellation.
func (o CancelOutcome) Reason() string {
	switch o {
	case OutcomeMalformed:
		return "Could not find date and time in your email. Please ensure you include both Date: and Time: lines."
	case OutcomeNoSuchDate:
		return "No booking found for this date."
	case OutcomeNoSuchSlot:
		return "No booking found for this time slot."
	case OutcomeFailed:
		return "We could not process your request right now. Please send it again later."
	default:
		return ""
	}
}
