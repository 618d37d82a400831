package middleware

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	apperrors "interviewdesk/pkg/errors"
	httputil "interviewdesk/pkg/http"
	"interviewdesk/pkg/logger"
)

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body httputil.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return body.Code
}

func TestContentTypeValidation(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := ContentTypeValidation(logger.Discard())(next)

	tests := []struct {
		name        string
		method      string
		body        string
		contentType string
		want        int
	}{
		{"json body", http.MethodPost, `{}`, "application/json; charset=utf-8", http.StatusNoContent},
		{"form body", http.MethodPost, `a=b`, "application/x-www-form-urlencoded", http.StatusUnsupportedMediaType},
		{"missing header", http.MethodPost, `{}`, "", http.StatusUnsupportedMediaType},
		{"bodyless post", http.MethodPost, ``, "", http.StatusNoContent},
		{"get", http.MethodGet, ``, "", http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/v1/bookings", strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if tt.want == http.StatusUnsupportedMediaType && errorCode(t, rec) != apperrors.CodeUnsupportedMedia {
				t.Errorf("code = %q", errorCode(t, rec))
			}
		})
	}
}

func TestRecovery(t *testing.T) {
	h := Recovery(logger.Discard())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError || errorCode(t, rec) != apperrors.CodeInternal {
		t.Errorf("got %d %s", rec.Code, rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "boom") {
		t.Error("panic value leaked into the response")
	}
}

func TestRequestLogging_RequestID(t *testing.T) {
	var seen string
	h := RequestLogging(logger.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if seen == "" || rec.Header().Get(RequestIDHeader) != seen {
		t.Errorf("generated id %q, header %q", seen, rec.Header().Get(RequestIDHeader))
	}

	const given = "6f1c2f4e-8a57-4a43-9f0b-1b7e8f0c9d2a"
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, given)
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen != given {
		t.Errorf("id = %q, want caller's %q", seen, given)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "not a uuid")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen == "not a uuid" {
		t.Error("invalid caller id was trusted")
	}
}

func TestMaxRequestSize(t *testing.T) {
	var readErr error
	h := MaxRequestSize(8)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, readErr = io.ReadAll(r.Body)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"a":1}`)))
	if readErr != nil {
		t.Errorf("small body: %v", readErr)
	}

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@x.com"}`)))
	var maxErr *http.MaxBytesError
	if readErr == nil || !errors.As(readErr, &maxErr) {
		t.Errorf("large body error = %v, want MaxBytesError", readErr)
	}
}

func TestRequestTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	h := RequestTimeout(20 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
		<-release
		w.WriteHeader(http.StatusCreated)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusGatewayTimeout || errorCode(t, rec) != apperrors.CodeTimeout {
		t.Errorf("got %d %s", rec.Code, rec.Body.String())
	}
}

func TestRequestTimeout_LateHandlerDoesNotTouchServedHeaders(t *testing.T) {
	finished := make(chan struct{})
	h := RequestTimeout(20 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer close(finished)
		<-r.Context().Done()
		for i := 0; i < 100; i++ {
			w.Header().Set("X-Late", "yes")
		}
		_ = httputil.WriteCreated(w, map[string]string{"id": "late"})
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/bookings", nil))

	// The handler is still writing after ServeHTTP returned; reading the
	// recorder concurrently is what the race detector checks.
	for i := 0; i < 100; i++ {
		_ = rec.Header().Get("Content-Type")
	}
	<-finished

	if rec.Code != http.StatusGatewayTimeout || errorCode(t, rec) != apperrors.CodeTimeout {
		t.Errorf("got %d %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Late") != "" {
		t.Error("header set after the deadline reached the client")
	}
	if strings.Contains(rec.Body.String(), "late") {
		t.Errorf("late body written: %s", rec.Body.String())
	}
}

func TestRequestTimeout_HeadersBeforeDeadline(t *testing.T) {
	h := RequestTimeout(time.Second)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Booking", "42")
		_ = httputil.WriteCreated(w, map[string]string{"id": "42"})
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/bookings", nil))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
	if rec.Header().Get("X-Booking") != "42" || rec.Header().Get("Content-Type") != "application/json" {
		t.Errorf("headers = %v", rec.Header())
	}
	if !strings.Contains(rec.Body.String(), `"id":"42"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestRequestTimeout_PanicReachesRecovery(t *testing.T) {
	h := Recovery(logger.Discard())(RequestTimeout(time.Second)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestIdempotency(t *testing.T) {
	store := NewInMemoryIdempotencyStore(time.Minute)
	defer store.Stop()

	var calls atomic.Int32
	status := http.StatusCreated
	h := Idempotency(store, logger.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"call":` + string(rune('0'+n)) + `}`))
	}))

	post := func(path, key string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{}`))
		if key != "" {
			req.Header.Set(IdempotencyKeyHeader, key)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	first := post("/api/v1/bookings", "k1")
	second := post("/api/v1/bookings", "k1")
	if calls.Load() != 1 {
		t.Fatalf("handler ran %d times, want 1", calls.Load())
	}
	if second.Code != http.StatusCreated || second.Body.String() != first.Body.String() {
		t.Errorf("replay = %d %s, want %d %s", second.Code, second.Body.String(), first.Code, first.Body.String())
	}
	if second.Header().Get("Idempotent-Replayed") != "true" {
		t.Error("replay not marked")
	}

	post("/api/v1/bookings/release-all", "k1")
	if calls.Load() != 2 {
		t.Errorf("same key on another path should run the handler")
	}

	post("/api/v1/bookings", "")
	if calls.Load() != 3 {
		t.Errorf("request without key should run the handler")
	}

	status = http.StatusConflict
	post("/api/v1/bookings", "k2")
	post("/api/v1/bookings", "k2")
	if calls.Load() != 5 {
		t.Errorf("failed responses must not be replayed, handler ran %d times", calls.Load())
	}
}

func TestIdempotency_InFlightDuplicate(t *testing.T) {
	store := NewInMemoryIdempotencyStore(time.Minute)
	defer store.Stop()

	// Keys are scoped by method and path.
	if !store.Begin(http.MethodPost + " /x k") {
		t.Fatal("first Begin refused")
	}
	h := Idempotency(store, logger.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler ran for an in-flight key")
	}))
	req := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(`{}`))
	req.Header.Set(IdempotencyKeyHeader, "k")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestRequesterRateLimit(t *testing.T) {
	limiter := NewRequesterRateLimiter(2, time.Minute, nil, logger.Discard())
	defer limiter.Stop()

	var bodies []string
	h := RequesterRateLimit(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(b))
	}))

	send := func(email, ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings",
			strings.NewReader(`{"date":"2025-03-14","time":"9:00 AM ET","email":"`+email+`"}`))
		req.RemoteAddr = ip + ":5000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	send("a@x.com", "10.0.0.1")
	send("A@X.com", "10.0.0.2")
	rec := send("a@x.com", "10.0.0.3")
	if rec.Code != http.StatusTooManyRequests || errorCode(t, rec) != apperrors.CodeRateLimited {
		t.Fatalf("third request: %d %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Retry-After missing")
	}
	if rec := send("b@x.com", "10.0.0.1"); rec.Code != http.StatusOK {
		t.Errorf("other requester limited: %d", rec.Code)
	}
	if len(bodies) != 3 || !strings.Contains(bodies[0], `"email":"a@x.com"`) {
		t.Errorf("handler bodies = %q", bodies)
	}
}

func TestRequesterRateLimiter_WindowSlides(t *testing.T) {
	limiter := NewRequesterRateLimiter(1, time.Minute, nil, logger.Discard())
	defer limiter.Stop()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	if ok, _ := limiter.Allow("ip:1.2.3.4"); !ok {
		t.Fatal("first request refused")
	}
	ok, wait := limiter.Allow("ip:1.2.3.4")
	if ok || wait != time.Minute {
		t.Errorf("second request = %v, wait %v", ok, wait)
	}
	now = now.Add(61 * time.Second)
	if ok, _ := limiter.Allow("ip:1.2.3.4"); !ok {
		t.Error("request after the window refused")
	}
}

func TestDefaultRequesterExtractor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings/slots", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	if got := DefaultRequesterExtractor(req); got != "ip:203.0.113.7" {
		t.Errorf("got %q", got)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/bookings", strings.NewReader(`not json`))
	req.RemoteAddr = "192.0.2.1:1234"
	if got := DefaultRequesterExtractor(req); got != "ip:192.0.2.1" {
		t.Errorf("got %q", got)
	}
	if b, _ := io.ReadAll(req.Body); string(b) != "not json" {
		t.Errorf("body not restored: %q", b)
	}
}
