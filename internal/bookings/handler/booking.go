package handler

import (
	"context"
	"net/http"
	"time"

	"interviewdesk/internal/bookings/service"
	"interviewdesk/internal/notify"
	httputil "interviewdesk/pkg/http"
	"interviewdesk/pkg/logger"
	"interviewdesk/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type ReservationResponse struct {
	Booking          *model.Booking `json:"booking"`
	NotificationSent bool           `json:"notification_sent"`
}

type BookingHandler struct {
	service  service.BookingService
	notifier notify.Notifier
	log      *logger.Logger
	now      func() time.Time
}

func NewBookingHandler(service service.BookingService, notifier notify.Notifier, log *logger.Logger) *BookingHandler {
	return &BookingHandler{
		service:  service,
		notifier: notifier,
		log:      log,
		now:      time.Now,
	}
}

func (h *BookingHandler) Reserve(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.ReservationRequest
	if err := httputil.DecodeJSONBody(r, &req); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Reserve", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	booking, err := h.service.Reserve(r.Context(), &req)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Reserve", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	// The booking is committed; a failed confirmation is reported, not undone.
	sent := true
	if err := h.notifier.BookingConfirmed(context.WithoutCancel(r.Context()), *booking); err != nil {
		sent = false
		h.log.Warn("booking confirmed but notification failed",
			"slot", booking.Key.String(),
			"requester", booking.Record.Requester,
			"error", err,
		)
	}

	if err := httputil.WriteCreated(w, ReservationResponse{Booking: booking, NotificationSent: sent}); err != nil {
		h.log.Error("failed to write created response", "handler", "Reserve", "operation", "WriteCreated", "error", err)
	}
}

// Slots lists every booked slot, or with ?date= the day's slots and whether
// each is booked.
func (h *BookingHandler) Slots(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if date := httputil.QueryString(r, "date", ""); date != "" {
		slots, err := h.service.DaySlots(r.Context(), date)
		if err != nil {
			if writeErr := httputil.WriteError(w, err); writeErr != nil {
				h.log.Error("failed to write error response", "handler", "Slots", "operation", "WriteError", "error", writeErr)
			}
			return
		}
		if err := httputil.WriteList(w, slots, len(slots)); err != nil {
			h.log.Error("failed to write list response", "handler", "Slots", "operation", "WriteList", "error", err)
		}
		return
	}

	slots := h.service.ListOccupiedSlots(r.Context())
	if err := httputil.WriteList(w, slots, len(slots)); err != nil {
		h.log.Error("failed to write list response", "handler", "Slots", "operation", "WriteList", "error", err)
	}
}

func (h *BookingHandler) Dates(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	dates := h.service.AvailableDates(h.now())
	if err := httputil.WriteList(w, dates, len(dates)); err != nil {
		h.log.Error("failed to write list response", "handler", "Dates", "operation", "WriteList", "error", err)
	}
}

func (h *BookingHandler) ReleaseAll(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	summary, err := h.service.ReleaseAll(r.Context())
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "ReleaseAll", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, summary); err != nil {
		h.log.Error("failed to write success response", "handler", "ReleaseAll", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/bookings", h.Reserve)
	router.GET("/api/v1/bookings/slots", h.Slots)
	router.GET("/api/v1/bookings/dates", h.Dates)
	router.POST("/api/v1/bookings/release-all", h.ReleaseAll)
}
