package cancellations

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"interviewdesk/internal/bookings/service"
	"interviewdesk/internal/bookings/validator"
	"interviewdesk/internal/inbox"
	"interviewdesk/internal/ledger/repository"
	"interviewdesk/internal/meeting"
	"interviewdesk/pkg/config"
	"interviewdesk/pkg/logger"
	"interviewdesk/pkg/model"
)

const subject = "CANCEL INTERVIEW"

func TestParseRequest(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantDate string
		wantTime string
		wantOK   bool
	}{
		{
			name:     "plain",
			body:     "Date: 2025-03-14\nTime: 9:00 AM ET",
			wantDate: "2025-03-14",
			wantTime: "9:00 AM ET",
			wantOK:   true,
		},
		{
			name:     "labels are case insensitive and values trimmed",
			body:     "Hi,\r\n  DATE:   2025-03-14  \r\n time:10:00 AM ET\r\nThanks",
			wantDate: "2025-03-14",
			wantTime: "10:00 AM ET",
			wantOK:   true,
		},
		{
			name:     "first occurrence wins",
			body:     "Date: 2025-03-14\nTime: 9:00 AM ET\nDate: 2025-03-15\nTime: 1:00 PM ET",
			wantDate: "2025-03-14",
			wantTime: "9:00 AM ET",
			wantOK:   true,
		},
		{
			name:     "value keeps inner colons",
			body:     "date: 2025-03-14\ntime: 11:00 AM ET",
			wantDate: "2025-03-14",
			wantTime: "11:00 AM ET",
			wantOK:   true,
		},
		{
			name:     "missing time",
			body:     "Date: 2025-03-14",
			wantDate: "2025-03-14",
		},
		{
			name:     "empty value",
			body:     "Date: 2025-03-14\nTime:   ",
			wantDate: "2025-03-14",
		},
		{
			name: "label not at line start",
			body: "The Date: 2025-03-14\nMy Time: 9:00 AM ET",
		},
		{
			name: "empty body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			date, clock, ok := ParseRequest(tt.body)
			if date != tt.wantDate || clock != tt.wantTime || ok != tt.wantOK {
				t.Errorf("ParseRequest() = (%q, %q, %v), want (%q, %q, %v)",
					date, clock, ok, tt.wantDate, tt.wantTime, tt.wantOK)
			}
		})
	}
}

type rejection struct {
	to      string
	key     model.SlotKey
	outcome model.CancelOutcome
}

type recordingNotifier struct {
	mu        sync.Mutex
	err       error
	confirmed []model.SlotKey
	rejected  []rejection
	onNotify  func()
}

func (n *recordingNotifier) BookingConfirmed(context.Context, model.Booking) error { return nil }

func (n *recordingNotifier) CancellationConfirmed(_ context.Context, key model.SlotKey, _ model.BookingRecord) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.confirmed = append(n.confirmed, key)
	if n.onNotify != nil {
		n.onNotify()
	}
	return n.err
}

func (n *recordingNotifier) CancellationRejected(_ context.Context, to string, key model.SlotKey, outcome model.CancelOutcome) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.rejected = append(n.rejected, rejection{to: to, key: key, outcome: outcome})
	if n.onNotify != nil {
		n.onNotify()
	}
	return n.err
}

type fixture struct {
	reconciler *Reconciler
	bookings   service.BookingService
	ledger     repository.LedgerRepository
	meetings   *meeting.StubClient
	mailbox    *inbox.Mailbox
	notifier   *recordingNotifier
	date       string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logger.Discard()
	cfg := &config.Config{
		Location:          time.FixedZone("EST", -5*60*60),
		SlotTimeSuffix:    "ET",
		BookingDays:       5,
		CancelSubject:     subject,
		InboxFetchTimeout: time.Second,
		Log:               log,
	}

	ctx := context.Background()
	ledger, err := repository.NewLedgerRepository(ctx, repository.NewFileDocumentStore(filepath.Join(t.TempDir(), "bookings.json"), log), log)
	if err != nil {
		t.Fatalf("NewLedgerRepository: %v", err)
	}
	t.Cleanup(func() { _ = ledger.Close(ctx) })

	meetings := meeting.NewStubClient("https://meet.example", log)
	bookings := service.NewBookingService(ledger, meetings, validator.NewBookingValidator(log), cfg)
	mailbox := inbox.NewMailbox()
	notifier := &recordingNotifier{}

	return &fixture{
		reconciler: NewReconciler(mailbox, bookings, notifier, cfg),
		bookings:   bookings,
		ledger:     ledger,
		meetings:   meetings,
		mailbox:    mailbox,
		notifier:   notifier,
		date:       time.Now().AddDate(0, 0, 7).Format(model.DateLayout),
	}
}

func (f *fixture) reserve(t *testing.T, clock, email string) model.SlotKey {
	t.Helper()
	b, err := f.bookings.Reserve(context.Background(), &model.ReservationRequest{Date: f.date, Time: clock, Email: email})
	if err != nil {
		t.Fatalf("Reserve(%s, %s): %v", f.date, clock, err)
	}
	return b.Key
}

func (f *fixture) runOnce(t *testing.T) PassSummary {
	t.Helper()
	summary, err := f.reconciler.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	return summary
}

func TestRunOnce_RoundTrip(t *testing.T) {
	f := newFixture(t)
	key := f.reserve(t, "9:00 AM ET", "a@x.com")
	id := f.mailbox.Deliver("A@X.com", "Re: cancel interview", "Date: "+f.date+"\nTime: 9:00 AM ET")

	summary := f.runOnce(t)

	if summary.Processed != 1 || summary.Outcomes[model.OutcomeCancelled] != 1 {
		t.Errorf("summary = %+v", summary)
	}
	if _, ok := f.ledger.Get(key); ok {
		t.Error("booking still in ledger")
	}
	if f.ledger.Len() != 0 {
		t.Errorf("ledger has %d entries, want 0", f.ledger.Len())
	}
	if f.meetings.Active() != 0 {
		t.Errorf("%d meeting rooms still active", f.meetings.Active())
	}
	if len(f.notifier.confirmed) != 1 || f.notifier.confirmed[0] != key {
		t.Errorf("confirmations = %v, want [%v]", f.notifier.confirmed, key)
	}
	if len(f.notifier.rejected) != 0 {
		t.Errorf("unexpected rejections: %v", f.notifier.rejected)
	}
	if f.mailbox.Marks(id) != 1 {
		t.Errorf("message marked %d times, want 1", f.mailbox.Marks(id))
	}
}

func TestRunOnce_IsIdempotentPerMessage(t *testing.T) {
	f := newFixture(t)
	f.reserve(t, "9:00 AM ET", "a@x.com")
	id := f.mailbox.Deliver("a@x.com", subject, "Date: "+f.date+"\nTime: 9:00 AM ET")

	f.runOnce(t)
	second := f.runOnce(t)

	if second.Fetched != 0 || second.Processed != 0 {
		t.Errorf("second pass = %+v, want no work", second)
	}
	if len(f.notifier.confirmed) != 1 || len(f.notifier.rejected) != 0 {
		t.Errorf("responses: %d confirmed, %d rejected, want exactly one confirmation",
			len(f.notifier.confirmed), len(f.notifier.rejected))
	}
	if f.mailbox.Marks(id) != 1 {
		t.Errorf("message marked %d times, want 1", f.mailbox.Marks(id))
	}
}

func TestRunOnce_Rejections(t *testing.T) {
	tests := []struct {
		name        string
		from        string
		body        func(date string) string
		wantOutcome model.CancelOutcome
		wantKept    bool
	}{
		{
			name:        "unknown date",
			from:        "a@x.com",
			body:        func(string) string { return "Date: 2031-01-06\nTime: 9:00 AM ET" },
			wantOutcome: model.OutcomeNoSuchDate,
			wantKept:    true,
		},
		{
			name:        "unknown slot on a booked date",
			from:        "a@x.com",
			body:        func(date string) string { return "Date: " + date + "\nTime: 3:00 PM ET" },
			wantOutcome: model.OutcomeNoSuchSlot,
			wantKept:    true,
		},
		{
			name:        "someone else's booking",
			from:        "b@x.com",
			body:        func(date string) string { return "Date: " + date + "\nTime: 9:00 AM ET" },
			wantOutcome: model.OutcomeNoSuchSlot,
			wantKept:    true,
		},
		{
			name:        "no time line",
			from:        "a@x.com",
			body:        func(date string) string { return "Please cancel my interview on " + date },
			wantOutcome: model.OutcomeMalformed,
			wantKept:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			key := f.reserve(t, "9:00 AM ET", "a@x.com")
			before := f.ledger.Snapshot()
			id := f.mailbox.Deliver(tt.from, subject, tt.body(f.date))

			summary := f.runOnce(t)

			if summary.Outcomes[tt.wantOutcome] != 1 {
				t.Errorf("outcomes = %v, want one %s", summary.Outcomes, tt.wantOutcome)
			}
			if len(f.notifier.rejected) != 1 || len(f.notifier.confirmed) != 0 {
				t.Fatalf("responses: %d confirmed, %d rejected, want one rejection",
					len(f.notifier.confirmed), len(f.notifier.rejected))
			}
			got := f.notifier.rejected[0]
			if got.to != tt.from || got.outcome != tt.wantOutcome {
				t.Errorf("rejection = %+v", got)
			}
			if _, ok := f.ledger.Get(key); ok != tt.wantKept {
				t.Errorf("booking kept = %v, want %v", ok, tt.wantKept)
			}
			if len(f.ledger.Snapshot()) != len(before) {
				t.Errorf("ledger changed: %v -> %v", before, f.ledger.Snapshot())
			}
			if f.mailbox.Marks(id) != 1 {
				t.Errorf("message marked %d times, want 1", f.mailbox.Marks(id))
			}
		})
	}
}

func TestRunOnce_IgnoresOtherSubjects(t *testing.T) {
	f := newFixture(t)
	id := f.mailbox.Deliver("a@x.com", "Question about my interview", "Date: 2031-01-06\nTime: 9:00 AM ET")

	summary := f.runOnce(t)

	if summary.Fetched != 0 {
		t.Errorf("fetched %d, want 0", summary.Fetched)
	}
	if f.mailbox.Marks(id) != 0 {
		t.Error("unrelated message was marked processed")
	}
}

func TestRunOnce_NotificationFailureStillMarksProcessed(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("smtp down")
	id := f.mailbox.Deliver("a@x.com", subject, "nothing useful")

	summary := f.runOnce(t)

	if summary.NotifyFailures != 1 {
		t.Errorf("notify failures = %d, want 1", summary.NotifyFailures)
	}
	if f.mailbox.Marks(id) != 1 {
		t.Errorf("message marked %d times, want 1", f.mailbox.Marks(id))
	}
}

type stubSource struct {
	listFunc func(ctx context.Context, subject string) ([]model.CancellationRequest, error)
	marked   []string
}

func (s *stubSource) ListUnprocessed(ctx context.Context, subject string) ([]model.CancellationRequest, error) {
	return s.listFunc(ctx, subject)
}

func (s *stubSource) MarkProcessed(_ context.Context, id string) error {
	s.marked = append(s.marked, id)
	return nil
}

func (s *stubSource) Close() error { return nil }

func TestRunOnce_FetchError(t *testing.T) {
	f := newFixture(t)
	source := &stubSource{listFunc: func(context.Context, string) ([]model.CancellationRequest, error) {
		return nil, errors.New("connection refused")
	}}
	f.reconciler.source = source

	if _, err := f.reconciler.RunOnce(context.Background()); err == nil {
		t.Fatal("expected an error")
	}
	if len(f.notifier.rejected)+len(f.notifier.confirmed) != 0 {
		t.Error("responses sent for a failed fetch")
	}
}

func TestRunOnce_FetchHasItsOwnDeadline(t *testing.T) {
	f := newFixture(t)
	var deadline time.Time
	f.reconciler.source = &stubSource{listFunc: func(ctx context.Context, _ string) ([]model.CancellationRequest, error) {
		deadline, _ = ctx.Deadline()
		return nil, nil
	}}

	start := time.Now()
	f.runOnce(t)

	if deadline.IsZero() || deadline.Sub(start) > f.reconciler.fetchTimeout+time.Second {
		t.Errorf("fetch deadline = %v, want about %v from now", deadline, f.reconciler.fetchTimeout)
	}
}

func TestRunOnce_StopsBetweenMessages(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	source := &stubSource{listFunc: func(context.Context, string) ([]model.CancellationRequest, error) {
		return []model.CancellationRequest{
			{MessageID: "1", Sender: "a@x.com", Body: "junk"},
			{MessageID: "2", Sender: "b@x.com", Body: "junk"},
		}, nil
	}}
	f.reconciler.source = source
	f.notifier.onNotify = cancel

	summary, err := f.reconciler.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	if !summary.Interrupted || summary.Processed != 1 {
		t.Errorf("summary = %+v, want one processed and interrupted", summary)
	}
	if len(source.marked) != 1 || source.marked[0] != "1" {
		t.Errorf("marked = %v, want [1]", source.marked)
	}
}
