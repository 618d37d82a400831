package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	bookingserrors "interviewdesk/internal/bookings/errors"
	"interviewdesk/internal/bookings/validator"
	ledgererrors "interviewdesk/internal/ledger/errors"
	"interviewdesk/internal/ledger/repository"
	"interviewdesk/internal/meeting"
	"interviewdesk/pkg/config"
	apperrors "interviewdesk/pkg/errors"
	"interviewdesk/pkg/model"
	"interviewdesk/pkg/sanitizer"

	"golang.org/x/sync/errgroup"
)

const (
	firstSlotHour = 9
	lastSlotHour  = 17

	releaseConcurrency = 4
)

// BookingService owns the reserve and release paths of the ledger. Every
// failure that leaves it is an *apperrors.AppError.
type BookingService interface {
	Reserve(ctx context.Context, req *model.ReservationRequest) (*model.Booking, error)
	ListOccupiedSlots(ctx context.Context) []model.SlotKey
	DaySlots(ctx context.Context, date string) ([]SlotStatus, error)
	AvailableDates(now time.Time) []AvailableDate
	DefaultSlotLabels() []string
	ReleaseAll(ctx context.Context) (model.ReleaseSummary, error)
	Cancel(ctx context.Context, key model.SlotKey, requester string) (CancelResult, error)
}

type SlotStatus struct {
	Time   string `json:"time"`
	Booked bool   `json:"booked"`
}

type AvailableDate struct {
	Date  string `json:"date"`
	Label string `json:"label"`
}

// CancelResult is the outcome of one cancellation. Key is the normalized
// slot key. Record is set only when Outcome is OutcomeCancelled.
type CancelResult struct {
	Key     model.SlotKey
	Outcome model.CancelOutcome
	Record  model.BookingRecord
}

type bookingService struct {
	ledger    repository.LedgerRepository
	meetings  meeting.Client
	validator *validator.BookingValidator
	cfg       *config.Config
	now       func() time.Time
}

func NewBookingService(
	ledger repository.LedgerRepository,
	meetings meeting.Client,
	validator *validator.BookingValidator,
	cfg *config.Config,
) BookingService {
	return &bookingService{
		ledger:    ledger,
		meetings:  meetings,
		validator: validator,
		cfg:       cfg,
		now:       time.Now,
	}
}

func (s *bookingService) Reserve(ctx context.Context, req *model.ReservationRequest) (*model.Booking, error) {
	s.sanitize(req)
	if err := s.validate(req); err != nil {
		return nil, err
	}

	key := model.SlotKey{Date: req.Date, Time: req.Time}
	start, err := key.Start(s.cfg.Location)
	if err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}
	if !start.After(s.now()) {
		return nil, apperrors.Validation("Cannot book a slot in the past", map[string]any{
			"date": key.Date,
			"time": key.Time,
		})
	}

	if _, taken := s.ledger.Get(key); taken {
		return nil, apperrors.SlotTaken(key.Date, key.Time)
	}

	// Once a room exists the reservation runs to a terminal outcome, so a
	// caller going away cannot strand the room.
	ctx = context.WithoutCancel(ctx)

	ref, err := s.meetings.Acquire(ctx, start)
	if err != nil {
		s.cfg.Log.Error("Failed to acquire meeting room",
			"slot", key.String(),
			"error", err,
		)
		return nil, apperrors.ResourceUnavailable(err)
	}

	rec := model.BookingRecord{
		Requester: req.Email,
		Meeting:   ref,
		CreatedAt: s.now().UTC(),
	}

	inserted, err := s.ledger.TryInsert(ctx, key, rec)
	if err != nil {
		s.compensate(ctx, key, ref, "persistence failure")
		s.cfg.Log.Error("Failed to persist booking", "slot", key.String(), "error", err)
		if errors.Is(err, ledgererrors.ErrClosed) {
			return nil, apperrors.Unavailable("ledger")
		}
		return nil, apperrors.PersistenceFailure(err)
	}
	if !inserted {
		s.compensate(ctx, key, ref, "slot taken")
		return nil, apperrors.SlotTaken(key.Date, key.Time)
	}

	s.cfg.Log.Info("Booking created successfully",
		"slot", key.String(),
		"requester", rec.Requester,
		"meeting_id", ref.ExternalID,
	)
	return &model.Booking{Key: key, Record: rec, Start: start}, nil
}

// compensate releases a room that was acquired but never committed. Its
// failure leaves an orphaned room, which is logged and otherwise tolerated.
func (s *bookingService) compensate(ctx context.Context, key model.SlotKey, ref model.MeetingRef, reason string) {
	if err := s.meetings.Release(ctx, ref); err != nil {
		s.cfg.Log.Warn("Failed to release uncommitted meeting room",
			"slot", key.String(),
			"meeting_id", ref.ExternalID,
			"reason", reason,
			"error", err,
		)
		return
	}
	s.cfg.Log.Info("Released uncommitted meeting room",
		"slot", key.String(),
		"meeting_id", ref.ExternalID,
		"reason", reason,
	)
}

func (s *bookingService) ListOccupiedSlots(_ context.Context) []model.SlotKey {
	entries := s.ledger.Snapshot()
	slots := make([]model.SlotKey, len(entries))
	for i, e := range entries {
		slots[i] = e.Key
	}
	return slots
}

// DaySlots lists the default slots of date with their occupancy. Booked
// slots outside the defaults are included too.
func (s *bookingService) DaySlots(_ context.Context, date string) ([]SlotStatus, error) {
	date = sanitizer.NormalizeDate(date)
	if _, err := time.Parse(model.DateLayout, date); err != nil {
		return nil, apperrors.InvalidInput("date must be in YYYY-MM-DD format")
	}

	times := s.ledger.TimesOn(date)
	booked := make(map[string]bool, len(times))
	for _, label := range times {
		booked[label] = true
	}

	labels := s.DefaultSlotLabels()
	slots := make([]SlotStatus, 0, len(labels)+len(booked))
	for _, label := range labels {
		slots = append(slots, SlotStatus{Time: label, Booked: booked[label]})
		delete(booked, label)
	}
	for _, label := range times {
		if booked[label] {
			slots = append(slots, SlotStatus{Time: label, Booked: true})
		}
	}
	return slots, nil
}

// AvailableDates returns the next BookingDays weekdays after now's day in
// the slot timezone.
func (s *bookingService) AvailableDates(now time.Time) []AvailableDate {
	day := now.In(s.cfg.Location)
	dates := make([]AvailableDate, 0, s.cfg.BookingDays)
	for len(dates) < s.cfg.BookingDays {
		day = day.AddDate(0, 0, 1)
		if day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
			continue
		}
		dates = append(dates, AvailableDate{
			Date:  day.Format(model.DateLayout),
			Label: day.Format("Monday, January 02"),
		})
	}
	return dates
}

func (s *bookingService) DefaultSlotLabels() []string {
	labels := make([]string, 0, lastSlotHour-firstSlotHour+1)
	for hour := firstSlotHour; hour <= lastSlotHour; hour++ {
		labels = append(labels, model.ClockLabel(hour, 0, s.cfg.SlotTimeSuffix))
	}
	return labels
}

// ReleaseAll releases every booked room and clears the ledger. Each record
// gets exactly one release attempt and is removed whatever that attempt
// returns. Only persistence failures are reported as an error.
func (s *bookingService) ReleaseAll(ctx context.Context) (model.ReleaseSummary, error) {
	ctx = context.WithoutCancel(ctx)
	entries := s.ledger.Snapshot()

	var (
		mu      sync.Mutex
		summary = model.ReleaseSummary{Attempted: len(entries)}
		errs    []error
	)

	g := new(errgroup.Group)
	g.SetLimit(releaseConcurrency)
	for _, entry := range entries {
		entry := entry
		g.Go(func() error {
			releaseErr := s.meetings.Release(ctx, entry.Record.Meeting)
			if releaseErr != nil {
				s.cfg.Log.Warn("Failed to release meeting room",
					"slot", entry.Key.String(),
					"meeting_id", entry.Record.Meeting.ExternalID,
					"error", releaseErr,
				)
			}
			removed, removeErr := s.ledger.CompareAndRemove(ctx, entry.Key, entry.Record.Meeting.ExternalID)

			mu.Lock()
			defer mu.Unlock()
			if releaseErr == nil {
				summary.Released++
			}
			if removed {
				summary.Removed++
			}
			if removeErr != nil {
				errs = append(errs, fmt.Errorf("remove %s: %w", entry.Key, removeErr))
			}
			return nil
		})
	}
	_ = g.Wait()

	s.cfg.Log.Info("Released all bookings",
		"attempted", summary.Attempted,
		"released", summary.Released,
		"removed", summary.Removed,
	)
	if len(errs) > 0 {
		return summary, apperrors.PersistenceFailure(errors.Join(errs...))
	}
	return summary, nil
}

// Cancel releases and removes the booking at key when requester owns it.
// A booking owned by someone else is reported as OutcomeNoSuchSlot so the
// response does not reveal that the slot is taken.
func (s *bookingService) Cancel(ctx context.Context, key model.SlotKey, requester string) (CancelResult, error) {
	key = model.SlotKey{
		Date: sanitizer.NormalizeDate(key.Date),
		Time: sanitizer.NormalizeTimeLabel(key.Time, s.cfg.SlotTimeSuffix),
	}

	rec, ok := s.ledger.Get(key)
	if !ok {
		if !s.ledger.HasDate(key.Date) {
			return CancelResult{Key: key, Outcome: model.OutcomeNoSuchDate}, nil
		}
		return CancelResult{Key: key, Outcome: model.OutcomeNoSuchSlot}, nil
	}
	if !strings.EqualFold(strings.TrimSpace(rec.Requester), strings.TrimSpace(requester)) {
		s.cfg.Log.Warn("Cancellation requester does not own the booking",
			"slot", key.String(),
			"requester", requester,
			"error", bookingserrors.ErrNotOwner,
		)
		return CancelResult{Key: key, Outcome: model.OutcomeNoSuchSlot}, nil
	}

	if err := s.meetings.Release(ctx, rec.Meeting); err != nil {
		s.cfg.Log.Warn("Failed to release meeting room, removing booking anyway",
			"slot", key.String(),
			"meeting_id", rec.Meeting.ExternalID,
			"error", err,
		)
	}

	removed, err := s.ledger.CompareAndRemove(ctx, key, rec.Meeting.ExternalID)
	if err != nil {
		s.cfg.Log.Error("Failed to remove cancelled booking", "slot", key.String(), "error", err)
		if errors.Is(err, ledgererrors.ErrClosed) {
			return CancelResult{Key: key, Outcome: model.OutcomeFailed}, apperrors.Unavailable("ledger")
		}
		return CancelResult{Key: key, Outcome: model.OutcomeFailed}, apperrors.PersistenceFailure(err)
	}
	if !removed {
		// Removed or replaced between Get and here.
		return CancelResult{Key: key, Outcome: model.OutcomeNoSuchSlot}, nil
	}

	s.cfg.Log.Info("Booking cancelled",
		"slot", key.String(),
		"requester", rec.Requester,
		"meeting_id", rec.Meeting.ExternalID,
	)
	return CancelResult{Key: key, Outcome: model.OutcomeCancelled, Record: rec}, nil
}

func (s *bookingService) sanitize(req *model.ReservationRequest) {
	req.Date = sanitizer.NormalizeDate(req.Date)
	req.Time = sanitizer.NormalizeTimeLabel(req.Time, s.cfg.SlotTimeSuffix)
	req.Email = sanitizer.NormalizeEmail(req.Email)
}

func (s *bookingService) validate(req *model.ReservationRequest) error {
	if err := s.validator.Validate(req); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return apperrors.Validation("Invalid reservation request", validationErrs.Details())
		}
		return apperrors.InvalidInput(err.Error())
	}
	return nil
}
