package notify

import (
	"fmt"
	"strings"
	"time"

	"interviewdesk/pkg/model"

	"github.com/google/uuid"
)

const (
	SubjectBookingConfirmation      = "Your Interview Prep Session is Confirmed"
	SubjectCancellationConfirmation = "Interview Cancellation Confirmation"
	SubjectCancellationRejection    = "Unable to Process Interview Cancellation"

	reminderLead = 30 * time.Minute
)

type FormatterConfig struct {
	Location      *time.Location
	ZoneTag       string
	Topic         string
	Duration      time.Duration
	Mailbox       string
	CancelSubject string
	UIDDomain     string
	Signature     string
}

// Formatter renders notifications. It never touches the network.
type Formatter struct {
	cfg FormatterConfig
	now func() time.Time
}

func NewFormatter(cfg FormatterConfig) *Formatter {
	if cfg.Signature == "" {
		cfg.Signature = "IB Interview Prep Team"
	}
	if cfg.UIDDomain == "" {
		cfg.UIDDomain = "ibinterviewprep.com"
	}
	return &Formatter{cfg: cfg, now: time.Now}
}

// EventUID is stable for a slot, so the cancellation notice replaces the
// invite the requester already has in their calendar.
func (f *Formatter) EventUID(start time.Time) string {
	return fmt.Sprintf("ibinterview-%s-%s@%s",
		start.Format("20060102"),
		start.Format("304PM"),
		f.cfg.UIDDomain,
	)
}

func (f *Formatter) BookingConfirmation(b model.Booking) (Notification, error) {
	start := b.Start.In(f.cfg.Location)
	end := start.Add(f.cfg.Duration)
	ref := b.Record.Meeting

	var body strings.Builder
	fmt.Fprintf(&body, "Dear Candidate,\n\n")
	fmt.Fprintf(&body, "Your interview has been scheduled:\n\n")
	fmt.Fprintf(&body, "Date: %s\n", start.Format("Monday, January 02, 2006"))
	fmt.Fprintf(&body, "Time: %s (Eastern Time)\n\n", b.Key.Time)
	fmt.Fprintf(&body, "Meeting Details:\n")
	fmt.Fprintf(&body, "Join URL: %s\n", ref.JoinURL)
	fmt.Fprintf(&body, "Meeting ID: %s\n", ref.ExternalID)
	if ref.Secret != "" {
		fmt.Fprintf(&body, "Password: %s\n", ref.Secret)
	}
	fmt.Fprintf(&body, "\nNeed to Cancel or Reschedule?\n")
	fmt.Fprintf(&body, "----------------------------\n")
	fmt.Fprintf(&body, "To cancel your interview, please send an email to %s with:\n", f.cfg.Mailbox)
	fmt.Fprintf(&body, "Subject: %s\n", f.cfg.CancelSubject)
	fmt.Fprintf(&body, "Date: %s\n", b.Key.Date)
	fmt.Fprintf(&body, "Time: %s\n\n", b.Key.Time)
	fmt.Fprintf(&body, "Best regards,\n%s\n", f.cfg.Signature)

	description := fmt.Sprintf("%s\n\nJoin URL: %s\nMeeting ID: %s", f.cfg.Topic, ref.JoinURL, ref.ExternalID)
	if ref.Secret != "" {
		description += "\nPassword: " + ref.Secret
	}
	description += "\n\nPlease join 5 minutes early."

	data, err := encodeCalendar(methodRequest, calendarEvent{
		UID:         f.EventUID(start),
		Summary:     f.cfg.Topic,
		Description: description,
		Location:    ref.JoinURL,
		Organizer:   f.cfg.Mailbox,
		Attendee:    b.Record.Requester,
		Start:       start,
		End:         end,
		Stamp:       f.now(),
		Sequence:    0,
		Reminder:    reminderLead,
	})
	if err != nil {
		return Notification{}, err
	}

	return Notification{
		ID:      uuid.NewString(),
		Kind:    KindBookingConfirmation,
		To:      b.Record.Requester,
		Subject: SubjectBookingConfirmation,
		Body:    body.String(),
		Calendar: &Calendar{
			Method:   methodRequest,
			Filename: "invite.ics",
			Data:     data,
		},
	}, nil
}

func (f *Formatter) CancellationConfirmation(key model.SlotKey, rec model.BookingRecord) (Notification, error) {
	start, err := key.Start(f.cfg.Location)
	if err != nil {
		return Notification{}, err
	}

	body := fmt.Sprintf(`Dear Candidate,

Your interview scheduled for %s at %s has been successfully cancelled.

If you would like to reschedule, please visit our scheduling system again.

Best regards,
%s
`, key.Date, key.Time, f.cfg.Signature)

	data, err := encodeCalendar(methodCancel, calendarEvent{
		UID:       f.EventUID(start),
		Summary:   f.cfg.Topic + " (CANCELLED)",
		Organizer: f.cfg.Mailbox,
		Attendee:  rec.Requester,
		Start:     start,
		End:       start.Add(f.cfg.Duration),
		Stamp:     f.now(),
		Sequence:  1,
		Cancelled: true,
	})
	if err != nil {
		return Notification{}, err
	}

	return Notification{
		ID:      uuid.NewString(),
		Kind:    KindCancellationConfirmation,
		To:      rec.Requester,
		Subject: SubjectCancellationConfirmation,
		Body:    body,
		Calendar: &Calendar{
			Method:   methodCancel,
			Filename: "cancel.ics",
			Data:     data,
		},
	}, nil
}

// CancellationRejection explains why a request was not honored. key may be
// empty when the request could not be parsed.
func (f *Formatter) CancellationRejection(to string, key model.SlotKey, outcome model.CancelOutcome) Notification {
	var body strings.Builder
	fmt.Fprintf(&body, "Dear Candidate,\n\n")
	fmt.Fprintf(&body, "We were unable to process your interview cancellation request.\n\n")
	fmt.Fprintf(&body, "Reason: %s\n\n", outcome.Reason())
	if key.Date != "" && key.Time != "" {
		fmt.Fprintf(&body, "Details provided:\nDate: %s\nTime: %s\n\n", key.Date, key.Time)
	}
	fmt.Fprintf(&body, "If you need to cancel an interview, please ensure:\n")
	fmt.Fprintf(&body, "1. The date format is YYYY-MM-DD\n")
	fmt.Fprintf(&body, "2. The time includes %q (e.g., %q)\n", f.cfg.ZoneTag, model.ClockLabel(9, 0, f.cfg.ZoneTag))
	fmt.Fprintf(&body, "3. You are using the same email address used to schedule the interview\n\n")
	fmt.Fprintf(&body, "Best regards,\n%s\n", f.cfg.Signature)

	return Notification{
		ID:      uuid.NewString(),
		Kind:    KindCancellationRejection,
		To:      to,
		Subject: SubjectCancellationRejection,
		Body:    body.String(),
	}
}
