package notify

import (
	"bytes"
	"fmt"
	"time"

	"github.com/emersion/go-ical"
)

const (
	methodRequest = "REQUEST"
	methodCancel  = "CANCEL"

	productID = "-//Interview Desk//Scheduler 1.0//EN"
)

type calendarEvent struct {
	UID         string
	Summary     string
	Description string
	Location    string
	Organizer   string
	Attendee    string
	Start       time.Time
	End         time.Time
	Stamp       time.Time
	Sequence    int
	Cancelled   bool
	Reminder    time.Duration
}

// encodeCalendar renders a single-event calendar for method. Start and End
// keep their location so DTSTART/DTEND carry a TZID.
func encodeCalendar(method string, ev calendarEvent) ([]byte, error) {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)
	cal.Props.SetText(ical.PropMethod, method)

	event := ical.NewEvent()
	event.Props.SetText(ical.PropUID, ev.UID)
	event.Props.SetDateTime(ical.PropDateTimeStamp, ev.Stamp.UTC())
	event.Props.SetDateTime(ical.PropDateTimeStart, ev.Start)
	event.Props.SetDateTime(ical.PropDateTimeEnd, ev.End)
	event.Props.SetText(ical.PropSummary, ev.Summary)
	if ev.Description != "" {
		event.Props.SetText(ical.PropDescription, ev.Description)
	}
	if ev.Location != "" {
		event.Props.SetText(ical.PropLocation, ev.Location)
	}
	if ev.Organizer != "" {
		organizer := ical.NewProp(ical.PropOrganizer)
		organizer.Value = "mailto:" + ev.Organizer
		event.Props.Set(organizer)
	}
	if ev.Attendee != "" {
		attendee := ical.NewProp(ical.PropAttendee)
		attendee.Value = "mailto:" + ev.Attendee
		attendee.Params.Set("ROLE", "REQ-PARTICIPANT")
		attendee.Params.Set("RSVP", "FALSE")
		event.Props.Set(attendee)
	}

	sequence := ical.NewProp(ical.PropSequence)
	sequence.Value = fmt.Sprint(ev.Sequence)
	event.Props.Set(sequence)

	if ev.Cancelled {
		event.Props.SetText(ical.PropStatus, "CANCELLED")
	} else {
		event.Props.SetText(ical.PropStatus, "CONFIRMED")
	}

	if ev.Reminder > 0 {
		alarm := ical.NewComponent(ical.CompAlarm)
		alarm.Props.SetText(ical.PropAction, "DISPLAY")
		alarm.Props.SetText(ical.PropDescription, fmt.Sprintf("Reminder: Interview in %d minutes", int(ev.Reminder/time.Minute)))
		trigger := ical.NewProp(ical.PropTrigger)
		trigger.Value = fmt.Sprintf("-PT%dM", int(ev.Reminder/time.Minute))
		alarm.Props.Set(trigger)
		event.Children = append(event.Children, alarm)
	}

	cal.Children = append(cal.Children, event.Component)

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, fmt.Errorf("failed to encode calendar: %w", err)
	}
	return buf.Bytes(), nil
}
