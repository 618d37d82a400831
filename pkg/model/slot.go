package model

import (
	"fmt"
	"strings"
	"time"
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "3:04 PM"

	SlotDuration = time.Hour
)

// SlotKey identifies one reservable one-hour window, e.g. 2025-03-14 / "9:00 AM ET".
type SlotKey struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

func (k SlotKey) String() string {
	return k.Date + " " + k.Time
}

// Start returns the instant the slot begins in loc.
func (k SlotKey) Start(loc *time.Location) (time.Time, error) {
	day, err := time.ParseInLocation(DateLayout, k.Date, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid slot date %q: %w", k.Date, err)
	}
	hour, minute, err := ParseClock(k.Time)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, loc), nil
}

// Less orders keys by date, then by clock time. Labels that do not parse sort
// after the ones that do, lexically.
func (k SlotKey) Less(other SlotKey) bool {
	if k.Date != other.Date {
		return k.Date < other.Date
	}
	a, errA := clockMinutes(k.Time)
	b, errB := clockMinutes(other.Time)
	switch {
	case errA == nil && errB == nil && a != b:
		return a < b
	case errA == nil && errB != nil:
		return true
	case errA != nil && errB == nil:
		return false
	}
	return k.Time < other.Time
}

// ParseClock extracts hour and minute from a label such as "9:00 AM ET".
// Anything after the AM/PM marker is the zone tag and is ignored.
func ParseClock(label string) (int, int, error) {
	compact := strings.ToUpper(strings.Join(strings.Fields(label), ""))
	end := strings.Index(compact, "AM")
	if pm := strings.Index(compact, "PM"); pm >= 0 && (end < 0 || pm < end) {
		end = pm
	}
	if end < 0 {
		return 0, 0, fmt.Errorf("invalid slot time %q: missing AM/PM", label)
	}
	t, err := time.Parse("3:04PM", compact[:end+2])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid slot time %q: %w", label, err)
	}
	return t.Hour(), t.Minute(), nil
}

// CanonicalTime rewrites a clock label into the ledger's key form,
// "9:00 AM ET" for zoneTag "ET".
func CanonicalTime(label, zoneTag string) (string, error) {
	hour, minute, err := ParseClock(label)
	if err != nil {
		return "", err
	}
	formatted := time.Date(2000, 1, 1, hour, minute, 0, 0, time.UTC).Format(ClockLayout)
	if zoneTag == "" {
		return formatted, nil
	}
	return formatted + " " + zoneTag, nil
}

// ClockLabel formats hour:minute as a slot label with the zone tag.
func ClockLabel(hour, minute int, zoneTag string) string {
	label, _ := CanonicalTime(time.Date(2000, 1, 1, hour, minute, 0, 0, time.UTC).Format(ClockLayout), zoneTag)
	return label
}

func clockMinutes(label string) (int, error) {
	hour, minute, err := ParseClock(label)
	if err != nil {
		return 0, err
	}
	return hour*60 + minute, nil
}
