package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"interviewdesk/pkg/model"
)

// SlotStatus is one row of a day's slot listing.
type SlotStatus struct {
	Time   string `json:"time"`
	Booked bool   `json:"booked"`
}

type AvailableDate struct {
	Date  string `json:"date"`
	Label string `json:"label"`
}

type Reservation struct {
	Booking          *model.Booking `json:"booking"`
	NotificationSent bool           `json:"notification_sent"`
}

// APIError is a non-2xx response from the service.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("%d: %s", e.StatusCode, e.Message)
}

// BookingClient talks to the booking HTTP API.
type BookingClient struct {
	httpClient *HttpClient
}

func NewBookingClient(baseUrl string) *BookingClient {
	return &BookingClient{
		httpClient: NewHttpClient(baseUrl),
	}
}

// Reserve books a slot. A non-empty idempotencyKey makes retries safe.
func (c *BookingClient) Reserve(ctx context.Context, req model.ReservationRequest, idempotencyKey string) (*Reservation, error) {
	headers := map[string]string{}
	if idempotencyKey != "" {
		headers["Idempotency-Key"] = idempotencyKey
	}
	resp, err := c.httpClient.POSTWithHeaders(ctx, "/api/v1/bookings", req, headers)
	if err != nil {
		return nil, err
	}
	var out Reservation
	if err := decodeData(resp, http.StatusCreated, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// OccupiedSlots lists every booked slot key.
func (c *BookingClient) OccupiedSlots(ctx context.Context) ([]model.SlotKey, error) {
	resp, err := c.httpClient.GET(ctx, "/api/v1/bookings/slots")
	if err != nil {
		return nil, err
	}
	var slots []model.SlotKey
	if err := decodeData(resp, http.StatusOK, &slots); err != nil {
		return nil, err
	}
	return slots, nil
}

// DaySlots lists the slots of one date and whether each is booked.
func (c *BookingClient) DaySlots(ctx context.Context, date string) ([]SlotStatus, error) {
	resp, err := c.httpClient.GET(ctx, "/api/v1/bookings/slots?date="+url.QueryEscape(date))
	if err != nil {
		return nil, err
	}
	var slots []SlotStatus
	if err := decodeData(resp, http.StatusOK, &slots); err != nil {
		return nil, err
	}
	return slots, nil
}

func (c *BookingClient) Dates(ctx context.Context) ([]AvailableDate, error) {
	resp, err := c.httpClient.GET(ctx, "/api/v1/bookings/dates")
	if err != nil {
		return nil, err
	}
	var dates []AvailableDate
	if err := decodeData(resp, http.StatusOK, &dates); err != nil {
		return nil, err
	}
	return dates, nil
}

// ReleaseAll releases every booked room and clears the ledger.
func (c *BookingClient) ReleaseAll(ctx context.Context) (model.ReleaseSummary, error) {
	resp, err := c.httpClient.POST(ctx, "/api/v1/bookings/release-all", nil)
	if err != nil {
		return model.ReleaseSummary{}, err
	}
	var summary model.ReleaseSummary
	if err := decodeData(resp, http.StatusOK, &summary); err != nil {
		return summary, err
	}
	return summary, nil
}

func decodeData(resp *Response, wantStatus int, target any) error {
	if resp.StatusCode != wantStatus {
		var errResp struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		_ = resp.DecodeJSON(&errResp)
		msg := GetErrorMessage(resp)
		return &APIError{StatusCode: resp.StatusCode, Code: errResp.Code, Message: msg}
	}

	var wrapper struct {
		Data json.RawMessage `json:"data"`
	}
	if err := resp.DecodeJSON(&wrapper); err != nil {
		return fmt.Errorf("could not decode response wrapper: %w", err)
	}
	if err := json.Unmarshal(wrapper.Data, target); err != nil {
		return fmt.Errorf("could not decode response data: %w", err)
	}
	return nil
}
