package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	httputil "interviewdesk/pkg/http"
	kafka_middleware "interviewdesk/pkg/kafka/middleware"
	"interviewdesk/pkg/logger"
)

// Pinger is satisfied by the ledger repository.
type Pinger interface {
	Ping(ctx context.Context) error
	Len() int
}

type HealthResponse struct {
	Status        string                            `json:"status"`
	Ledger        string                            `json:"ledger,omitempty"`
	Bookings      *int                              `json:"bookings,omitempty"`
	Notifications *kafka_middleware.MetricsSnapshot `json:"notifications,omitempty"`
}

type HealthHandler struct {
	ledger  Pinger
	metrics *kafka_middleware.Metrics
	log     *logger.Logger
}

// NewHealthHandler builds the liveness and readiness handler. metrics may be
// nil when notifications are not published to Kafka.
func NewHealthHandler(ledger Pinger, metrics *kafka_middleware.Metrics, log *logger.Logger) *HealthHandler {
	return &HealthHandler{
		ledger:  ledger,
		metrics: metrics,
		log:     log,
	}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if err := httputil.WriteJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
	}); err != nil {
		h.log.Error("failed to write JSON response", "handler", "Health", "operation", "WriteJSON", "error", err)
	}
}

func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.ledger.Ping(ctx); err != nil {
		h.log.Error("Ledger health check failed",
			"error", err,
			"path", r.URL.Path,
		)
		if writeErr := httputil.WriteJSON(w, http.StatusServiceUnavailable, HealthResponse{
			Status: "unavailable",
			Ledger: "error",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Ready", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	bookings := h.ledger.Len()
	resp := HealthResponse{
		Status:   "ready",
		Ledger:   "ok",
		Bookings: &bookings,
	}
	if h.metrics != nil {
		snapshot := h.metrics.Snapshot()
		resp.Notifications = &snapshot
	}
	if err := httputil.WriteJSON(w, http.StatusOK, resp); err != nil {
		h.log.Error("failed to write JSON response", "handler", "Ready", "operation", "WriteJSON", "error", err)
	}
}

func (h *HealthHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
}
