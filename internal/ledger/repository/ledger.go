package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	ledgererrors "interviewdesk/internal/ledger/errors"
	"interviewdesk/pkg/logger"
	"interviewdesk/pkg/model"
)

// LedgerRepository is the authoritative map of slot keys to bookings.
//
// Every mutation is applied in memory and saved through the DocumentStore
// before the call returns. If the save fails the in-memory change is undone
// and an error wrapping ErrPersistence is returned, so memory and storage
// never diverge. Reads never block on storage.
type LedgerRepository interface {
	Get(key model.SlotKey) (model.BookingRecord, bool)
	HasDate(date string) bool
	// TryInsert stores rec only if key is free. It reports false, with a nil
	// error, when another booking already holds the key.
	TryInsert(ctx context.Context, key model.SlotKey, rec model.BookingRecord) (bool, error)
	Remove(ctx context.Context, key model.SlotKey) (model.BookingRecord, bool, error)
	// CompareAndRemove removes key only while it still holds the meeting
	// identified by externalID.
	CompareAndRemove(ctx context.Context, key model.SlotKey, externalID string) (bool, error)
	Snapshot() []model.LedgerEntry
	Dates() []string
	TimesOn(date string) []string
	Len() int
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

type ledgerRepository struct {
	mu     sync.RWMutex
	doc    Document
	store  DocumentStore
	log    *logger.Logger
	closed bool
}

// NewLedgerRepository rehydrates the ledger from store.
func NewLedgerRepository(ctx context.Context, store DocumentStore, log *logger.Logger) (LedgerRepository, error) {
	doc, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger: %w", err)
	}
	log.Info("Ledger loaded", "bookings", doc.len(), "dates", len(doc))
	return &ledgerRepository{
		doc:   doc,
		store: store,
		log:   log,
	}, nil
}

func (r *ledgerRepository) Get(key model.SlotKey) (model.BookingRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.doc.get(key)
}

func (r *ledgerRepository) HasDate(date string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.doc[date]
	return ok
}

func (r *ledgerRepository) TryInsert(ctx context.Context, key model.SlotKey, rec model.BookingRecord) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return false, ledgererrors.ErrClosed
	}
	if _, taken := r.doc.get(key); taken {
		return false, nil
	}

	r.doc.put(key, rec)
	if err := r.store.Save(ctx, r.doc); err != nil {
		r.doc.remove(key)
		return false, fmt.Errorf("%w: %w", ledgererrors.ErrPersistence, err)
	}
	return true, nil
}

func (r *ledgerRepository) Remove(ctx context.Context, key model.SlotKey) (model.BookingRecord, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return model.BookingRecord{}, false, ledgererrors.ErrClosed
	}
	rec, ok := r.doc.get(key)
	if !ok {
		return model.BookingRecord{}, false, nil
	}
	if err := r.removeLocked(ctx, key, rec); err != nil {
		return model.BookingRecord{}, false, err
	}
	return rec, true, nil
}

func (r *ledgerRepository) CompareAndRemove(ctx context.Context, key model.SlotKey, externalID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return false, ledgererrors.ErrClosed
	}
	rec, ok := r.doc.get(key)
	if !ok || rec.Meeting.ExternalID != externalID {
		return false, nil
	}
	if err := r.removeLocked(ctx, key, rec); err != nil {
		return false, err
	}
	return true, nil
}

func (r *ledgerRepository) removeLocked(ctx context.Context, key model.SlotKey, rec model.BookingRecord) error {
	r.doc.remove(key)
	if err := r.store.Save(ctx, r.doc); err != nil {
		r.doc.put(key, rec)
		return fmt.Errorf("%w: %w", ledgererrors.ErrPersistence, err)
	}
	return nil
}

func (r *ledgerRepository) Snapshot() []model.LedgerEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.doc.entries()
}

func (r *ledgerRepository) Dates() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	dates := make([]string, 0, len(r.doc))
	for date := range r.doc {
		dates = append(dates, date)
	}
	sort.Strings(dates)
	return dates
}

func (r *ledgerRepository) TimesOn(date string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	slots := r.doc[date]
	keys := make([]model.SlotKey, 0, len(slots))
	for label := range slots {
		keys = append(keys, model.SlotKey{Date: date, Time: label})
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

	times := make([]string, len(keys))
	for i, k := range keys {
		times[i] = k.Time
	}
	return times
}

func (r *ledgerRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.doc.len()
}

func (r *ledgerRepository) Ping(ctx context.Context) error {
	return r.store.Ping(ctx)
}

// Close waits for any in-flight mutation, then rejects further writes.
// The document is already durable, so nothing is flushed here.
func (r *ledgerRepository) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	r.log.Info("Ledger closed", "bookings", r.doc.len())
	return r.store.Close(ctx)
}
