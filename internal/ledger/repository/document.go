package repository

import (
	"encoding/json"
	"sort"

	"interviewdesk/pkg/model"
)

// Document is the whole ledger keyed by date, then by time label.
// Its JSON form is the bookings.json layout:
//
//	{"2025-03-14": {"9:00 AM ET": {"email": ..., "zoom_link": {...}}}}
type Document map[string]map[string]model.BookingRecord

func NewDocument() Document {
	return Document{}
}

func (d Document) get(key model.SlotKey) (model.BookingRecord, bool) {
	slots, ok := d[key.Date]
	if !ok {
		return model.BookingRecord{}, false
	}
	rec, ok := slots[key.Time]
	return rec, ok
}

func (d Document) put(key model.SlotKey, rec model.BookingRecord) {
	slots, ok := d[key.Date]
	if !ok {
		slots = map[string]model.BookingRecord{}
		d[key.Date] = slots
	}
	slots[key.Time] = rec
}

// remove deletes the entry and drops the date once it has no slots left.
func (d Document) remove(key model.SlotKey) {
	slots, ok := d[key.Date]
	if !ok {
		return
	}
	delete(slots, key.Time)
	if len(slots) == 0 {
		delete(d, key.Date)
	}
}

func (d Document) len() int {
	n := 0
	for _, slots := range d {
		n += len(slots)
	}
	return n
}

// entries returns every booking ordered by date, then clock time.
func (d Document) entries() []model.LedgerEntry {
	out := make([]model.LedgerEntry, 0, d.len())
	for date, slots := range d {
		for label, rec := range slots {
			out = append(out, model.LedgerEntry{
				Key:    model.SlotKey{Date: date, Time: label},
				Record: rec,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Key.Less(out[j].Key)
	})
	return out
}

func (d Document) prune() {
	for date, slots := range d {
		if len(slots) == 0 {
			delete(d, date)
		}
	}
}

func decodeDocument(data []byte) (Document, error) {
	doc := NewDocument()
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		doc = NewDocument()
	}
	doc.prune()
	return doc, nil
}

func encodeDocument(doc Document) ([]byte, error) {
	return json.MarshalIndent(doc, "", "  ")
}
