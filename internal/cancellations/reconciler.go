package cancellations

import (
	"context"
	"fmt"
	"time"

	"interviewdesk/internal/bookings/service"
	"interviewdesk/internal/inbox"
	"interviewdesk/internal/notify"
	"interviewdesk/pkg/config"
	"interviewdesk/pkg/logger"
	"interviewdesk/pkg/model"
)

// PassSummary counts what one reconciliation pass did.
type PassSummary struct {
	Fetched        int
	Processed      int
	Outcomes       map[model.CancelOutcome]int
	NotifyFailures int
	MarkFailures   int
	Interrupted    bool
}

type Reconciler struct {
	source       inbox.Source
	bookings     service.BookingService
	notifier     notify.Notifier
	subject      string
	fetchTimeout time.Duration
	log          *logger.Logger
}

func NewReconciler(
	source inbox.Source,
	bookings service.BookingService,
	notifier notify.Notifier,
	cfg *config.Config,
) *Reconciler {
	return &Reconciler{
		source:       source,
		bookings:     bookings,
		notifier:     notifier,
		subject:      cfg.CancelSubject,
		fetchTimeout: cfg.InboxFetchTimeout,
		log:          cfg.Log.Component("reconciler"),
	}
}

// RunOnce fetches the unprocessed requests and handles each one to
// completion. ctx is checked only between requests; a request that has
// started is always answered and marked processed. The returned error is
// set only when the inbox could not be read.
func (r *Reconciler) RunOnce(ctx context.Context) (PassSummary, error) {
	summary := PassSummary{Outcomes: make(map[model.CancelOutcome]int)}

	fetchCtx, cancel := context.WithTimeout(ctx, r.fetchTimeout)
	requests, err := r.source.ListUnprocessed(fetchCtx, r.subject)
	cancel()
	if err != nil {
		r.log.Error("Failed to fetch cancellation requests", "error", err)
		return summary, fmt.Errorf("fetch cancellation requests: %w", err)
	}
	summary.Fetched = len(requests)

	for _, req := range requests {
		if ctx.Err() != nil {
			summary.Interrupted = true
			break
		}
		r.handle(context.WithoutCancel(ctx), req, &summary)
	}

	if summary.Fetched > 0 || summary.Interrupted {
		r.log.Info("Reconciliation pass finished",
			"fetched", summary.Fetched,
			"processed", summary.Processed,
			"cancelled", summary.Outcomes[model.OutcomeCancelled],
			"malformed", summary.Outcomes[model.OutcomeMalformed],
			"no_such_date", summary.Outcomes[model.OutcomeNoSuchDate],
			"no_such_slot", summary.Outcomes[model.OutcomeNoSuchSlot],
			"failed", summary.Outcomes[model.OutcomeFailed],
			"notify_failures", summary.NotifyFailures,
			"mark_failures", summary.MarkFailures,
			"interrupted", summary.Interrupted,
		)
	} else {
		r.log.Debug("No cancellation requests")
	}
	return summary, nil
}

func (r *Reconciler) handle(ctx context.Context, req model.CancellationRequest, summary *PassSummary) {
	outcome, key, rec := r.resolve(ctx, req)
	summary.Processed++
	summary.Outcomes[outcome]++

	var notifyErr error
	if outcome == model.OutcomeCancelled {
		notifyErr = r.notifier.CancellationConfirmed(ctx, key, rec)
	} else {
		notifyErr = r.notifier.CancellationRejected(ctx, req.Sender, key, outcome)
	}
	if notifyErr != nil {
		summary.NotifyFailures++
		r.log.Warn("Failed to answer cancellation request",
			"message_id", req.MessageID,
			"sender", req.Sender,
			"outcome", string(outcome),
			"error", notifyErr,
		)
	}

	// A request is never reprocessed, whatever happened above.
	if err := r.source.MarkProcessed(ctx, req.MessageID); err != nil {
		summary.MarkFailures++
		r.log.Error("Failed to mark cancellation request processed",
			"message_id", req.MessageID,
			"error", err,
		)
	}
}

func (r *Reconciler) resolve(ctx context.Context, req model.CancellationRequest) (model.CancelOutcome, model.SlotKey, model.BookingRecord) {
	date, clock, ok := ParseRequest(req.Body)
	if !ok {
		r.log.Info("Malformed cancellation request",
			"message_id", req.MessageID,
			"sender", req.Sender,
		)
		return model.OutcomeMalformed, model.SlotKey{}, model.BookingRecord{}
	}

	result, err := r.bookings.Cancel(ctx, model.SlotKey{Date: date, Time: clock}, req.Sender)
	if err != nil {
		r.log.Error("Failed to cancel booking",
			"message_id", req.MessageID,
			"slot", result.Key.String(),
			"error", err,
		)
		return model.OutcomeFailed, result.Key, model.BookingRecord{}
	}

	r.log.Info("Cancellation request resolved",
		"message_id", req.MessageID,
		"sender", req.Sender,
		"slot", result.Key.String(),
		"outcome", string(result.Outcome),
	)
	return result.Outcome, result.Key, result.Record
}
