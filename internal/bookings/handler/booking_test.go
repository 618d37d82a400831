package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"interviewdesk/internal/bookings/service"
	apperrors "interviewdesk/pkg/errors"
	kafka_middleware "interviewdesk/pkg/kafka/middleware"
	"interviewdesk/pkg/logger"
	"interviewdesk/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type mockBookingService struct {
	reserveFunc    func(ctx context.Context, req *model.ReservationRequest) (*model.Booking, error)
	daySlotsFunc   func(ctx context.Context, date string) ([]service.SlotStatus, error)
	releaseAllFunc func(ctx context.Context) (model.ReleaseSummary, error)
	occupied       []model.SlotKey
}

func (m *mockBookingService) Reserve(ctx context.Context, req *model.ReservationRequest) (*model.Booking, error) {
	return m.reserveFunc(ctx, req)
}

func (m *mockBookingService) ListOccupiedSlots(context.Context) []model.SlotKey {
	return m.occupied
}

func (m *mockBookingService) DaySlots(ctx context.Context, date string) ([]service.SlotStatus, error) {
	return m.daySlotsFunc(ctx, date)
}

func (m *mockBookingService) AvailableDates(now time.Time) []service.AvailableDate {
	return []service.AvailableDate{{Date: now.AddDate(0, 0, 1).Format(model.DateLayout), Label: "next"}}
}

func (m *mockBookingService) DefaultSlotLabels() []string { return nil }

func (m *mockBookingService) ReleaseAll(ctx context.Context) (model.ReleaseSummary, error) {
	return m.releaseAllFunc(ctx)
}

func (m *mockBookingService) Cancel(context.Context, model.SlotKey, string) (service.CancelResult, error) {
	return service.CancelResult{}, nil
}

type mockNotifier struct {
	bookingErr error
	confirmed  []model.Booking
}

func (m *mockNotifier) BookingConfirmed(_ context.Context, b model.Booking) error {
	m.confirmed = append(m.confirmed, b)
	return m.bookingErr
}

func (m *mockNotifier) CancellationConfirmed(context.Context, model.SlotKey, model.BookingRecord) error {
	return nil
}

func (m *mockNotifier) CancellationRejected(context.Context, string, model.SlotKey, model.CancelOutcome) error {
	return nil
}

func newTestRouter(svc *mockBookingService, n *mockNotifier) *httprouter.Router {
	router := httprouter.New()
	h := NewBookingHandler(svc, n, logger.Discard())
	h.now = func() time.Time { return time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC) }
	h.RegisterRoutes(router)
	return router
}

func do(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestReserve(t *testing.T) {
	booked := &model.Booking{
		Key:    model.SlotKey{Date: "2025-03-14", Time: "9:00 AM ET"},
		Record: model.BookingRecord{Requester: "a@x.com", Meeting: model.MeetingRef{ExternalID: "1"}},
	}

	tests := []struct {
		name          string
		body          string
		reserveErr    error
		notifyErr     error
		wantStatus    int
		wantSent      bool
		wantNotified  int
		wantErrorCode string
	}{
		{
			name:         "created and notified",
			body:         `{"date":"2025-03-14","time":"9:00 AM ET","email":"a@x.com"}`,
			wantStatus:   http.StatusCreated,
			wantSent:     true,
			wantNotified: 1,
		},
		{
			name:         "created but notification failed",
			body:         `{"date":"2025-03-14","time":"9:00 AM ET","email":"a@x.com"}`,
			notifyErr:    errors.New("smtp down"),
			wantStatus:   http.StatusCreated,
			wantSent:     false,
			wantNotified: 1,
		},
		{
			name:          "slot taken",
			body:          `{"date":"2025-03-14","time":"9:00 AM ET","email":"a@x.com"}`,
			reserveErr:    apperrors.SlotTaken("2025-03-14", "9:00 AM ET"),
			wantStatus:    http.StatusConflict,
			wantErrorCode: apperrors.CodeSlotTaken,
		},
		{
			name:          "provider unavailable",
			body:          `{"date":"2025-03-14","time":"9:00 AM ET","email":"a@x.com"}`,
			reserveErr:    apperrors.ResourceUnavailable(errors.New("timeout")),
			wantStatus:    http.StatusServiceUnavailable,
			wantErrorCode: apperrors.CodeResourceUnavailable,
		},
		{
			name:          "unknown field",
			body:          `{"date":"2025-03-14","time":"9:00 AM ET","email":"a@x.com","bank":"x"}`,
			wantStatus:    http.StatusBadRequest,
			wantErrorCode: apperrors.CodeInvalidInput,
		},
		{
			name:          "empty body",
			body:          ``,
			wantStatus:    http.StatusBadRequest,
			wantErrorCode: apperrors.CodeInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockBookingService{
				reserveFunc: func(ctx context.Context, req *model.ReservationRequest) (*model.Booking, error) {
					if tt.reserveErr != nil {
						return nil, tt.reserveErr
					}
					return booked, nil
				},
			}
			n := &mockNotifier{bookingErr: tt.notifyErr}

			rec := do(newTestRouter(svc, n), http.MethodPost, "/api/v1/bookings", tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if len(n.confirmed) != tt.wantNotified {
				t.Errorf("notified %d times, want %d", len(n.confirmed), tt.wantNotified)
			}

			if tt.wantErrorCode != "" {
				var body struct {
					Code string `json:"code"`
				}
				if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
					t.Fatal(err)
				}
				if body.Code != tt.wantErrorCode {
					t.Errorf("code = %q, want %q", body.Code, tt.wantErrorCode)
				}
				return
			}

			var envelope struct {
				Data ReservationResponse `json:"data"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
				t.Fatal(err)
			}
			resp := envelope.Data
			if resp.NotificationSent != tt.wantSent {
				t.Errorf("notification_sent = %v, want %v", resp.NotificationSent, tt.wantSent)
			}
			if resp.Booking == nil || resp.Booking.Key != booked.Key {
				t.Errorf("booking = %+v", resp.Booking)
			}
		})
	}
}

func TestSlots(t *testing.T) {
	var gotDate string
	svc := &mockBookingService{
		occupied: []model.SlotKey{{Date: "2025-03-14", Time: "9:00 AM ET"}},
		daySlotsFunc: func(_ context.Context, date string) ([]service.SlotStatus, error) {
			gotDate = date
			if date == "bad" {
				return nil, apperrors.InvalidInput("date must be in YYYY-MM-DD format")
			}
			return []service.SlotStatus{{Time: "9:00 AM ET", Booked: true}, {Time: "10:00 AM ET"}}, nil
		},
	}
	router := newTestRouter(svc, &mockNotifier{})

	rec := do(router, http.MethodGet, "/api/v1/bookings/slots", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"total_count":1`) {
		t.Errorf("occupied: %d %s", rec.Code, rec.Body.String())
	}

	rec = do(router, http.MethodGet, "/api/v1/bookings/slots?date=2025-03-14", "")
	if rec.Code != http.StatusOK || gotDate != "2025-03-14" || !strings.Contains(rec.Body.String(), `"total_count":2`) {
		t.Errorf("day slots: %d %s (date %q)", rec.Code, rec.Body.String(), gotDate)
	}

	rec = do(router, http.MethodGet, "/api/v1/bookings/slots?date=bad", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad date status = %d", rec.Code)
	}
}

func TestDates(t *testing.T) {
	router := newTestRouter(&mockBookingService{}, &mockNotifier{})
	rec := do(router, http.MethodGet, "/api/v1/bookings/dates", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "2025-03-11") {
		t.Errorf("dates: %d %s", rec.Code, rec.Body.String())
	}
}

func TestReleaseAll(t *testing.T) {
	svc := &mockBookingService{
		releaseAllFunc: func(context.Context) (model.ReleaseSummary, error) {
			return model.ReleaseSummary{Attempted: 3, Released: 2, Removed: 3}, nil
		},
	}
	rec := do(newTestRouter(svc, &mockNotifier{}), http.MethodPost, "/api/v1/bookings/release-all", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"attempted":3`) || !strings.Contains(rec.Body.String(), `"released":2`) {
		t.Errorf("body = %s", rec.Body.String())
	}

	svc.releaseAllFunc = func(context.Context) (model.ReleaseSummary, error) {
		return model.ReleaseSummary{Attempted: 1}, apperrors.PersistenceFailure(errors.New("disk full"))
	}
	rec = do(newTestRouter(svc, &mockNotifier{}), http.MethodPost, "/api/v1/bookings/release-all", "")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

type mockPinger struct {
	err error
	n   int
}

func (m *mockPinger) Ping(context.Context) error { return m.err }
func (m *mockPinger) Len() int                   { return m.n }

func TestHealth(t *testing.T) {
	router := httprouter.New()
	NewHealthHandler(&mockPinger{n: 2}, kafka_middleware.NewMetrics(), logger.Discard()).RegisterRoutes(router)

	if rec := do(router, http.MethodGet, "/health", ""); rec.Code != http.StatusOK {
		t.Errorf("health status = %d", rec.Code)
	}
	rec := do(router, http.MethodGet, "/ready", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"bookings":2`) || !strings.Contains(rec.Body.String(), `"notifications"`) {
		t.Errorf("ready: %d %s", rec.Code, rec.Body.String())
	}

	down := httprouter.New()
	NewHealthHandler(&mockPinger{err: errors.New("unreachable")}, nil, logger.Discard()).RegisterRoutes(down)
	if rec := do(down, http.MethodGet, "/ready", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("ready status = %d, want 503", rec.Code)
	}
}
