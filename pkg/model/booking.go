package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// MeetingRef is the provider's handle for a provisioned video-conference room.
// JSON names match the bookings.json layout written by earlier deployments.
type MeetingRef struct {
	JoinURL    string `json:"url" bson:"url"`
	ExternalID string `json:"meeting_id" bson:"meeting_id"`
	Secret     string `json:"password" bson:"password"`
}

// UnmarshalJSON accepts meeting_id as either a string or a number; older
// ledgers stored the provider's numeric id verbatim.
func (m *MeetingRef) UnmarshalJSON(data []byte) error {
	var raw struct {
		JoinURL    string          `json:"url"`
		ExternalID json.RawMessage `json:"meeting_id"`
		Secret     string          `json:"password"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	m.JoinURL = raw.JoinURL
	m.Secret = raw.Secret
	m.ExternalID = ""
	if len(raw.ExternalID) == 0 || string(raw.ExternalID) == "null" {
		return nil
	}
	var id string
	if err := json.Unmarshal(raw.ExternalID, &id); err == nil {
		m.ExternalID = id
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(raw.ExternalID, &num); err != nil {
		return fmt.Errorf("meeting_id must be a string or number: %w", err)
	}
	m.ExternalID = num.String()
	return nil
}

type BookingRecord struct {
	Requester string     `json:"email" bson:"email"`
	Meeting   MeetingRef `json:"zoom_link" bson:"zoom_link"`
	CreatedAt time.Time  `json:"created_at,omitempty" bson:"created_at,omitempty"`
}

// Booking is a committed reservation as returned to callers.
type Booking struct {
	Key    SlotKey       `json:"slot"`
	Record BookingRecord `json:"record"`
	Start  time.Time     `json:"start"`
}

type ReservationRequest struct {
	Date  string `json:"date" validate:"required,slot_date"`
	Time  string `json:"time" validate:"required,slot_time"`
	Email string `json:"email" validate:"required,email,max=254"`
}

// ReleaseSummary reports a bulk clear of the ledger.
type ReleaseSummary struct {
	Attempted int `json:"attempted"`
	Released  int `json:"released"`
	Removed   int `json:"removed"`
}

// LedgerEntry is one row of an ordered ledger snapshot.
type LedgerEntry struct {
	Key    SlotKey
	Record BookingRecord
}
