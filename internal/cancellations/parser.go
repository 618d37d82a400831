// Package cancellations reconciles inbound cancellation requests against
// the booking ledger.
package cancellations

import "strings"

const (
	dateLabel = "date:"
	timeLabel = "time:"
)

// ParseRequest extracts the values of the first "Date:" and "Time:" lines
// of body. Labels match case-insensitively and values are trimmed. ok is
// false unless both values are present and non-empty.
func ParseRequest(body string) (date, clock string, ok bool) {
	var haveDate, haveTime bool
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case hasLabel(line, dateLabel):
			if !haveDate {
				date, haveDate = strings.TrimSpace(line[len(dateLabel):]), true
			}
		case hasLabel(line, timeLabel):
			if !haveTime {
				clock, haveTime = strings.TrimSpace(line[len(timeLabel):]), true
			}
		}
	}
	return date, clock, date != "" && clock != ""
}

func hasLabel(line, label string) bool {
	return len(line) >= len(label) && strings.EqualFold(line[:len(label)], label)
}
