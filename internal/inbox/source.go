// Package inbox reads cancellation requests from an inbound mail source.
package inbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"interviewdesk/pkg/model"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"
)

var ErrUnknownMessage = errors.New("unknown message id")

// Source lists inbound requests that have not been processed yet. A request
// returned by ListUnprocessed is returned again on later calls until
// MarkProcessed succeeds for its MessageID.
type Source interface {
	ListUnprocessed(ctx context.Context, subject string) ([]model.CancellationRequest, error)
	MarkProcessed(ctx context.Context, id string) error
	Close() error
}

// SubjectMatches reports whether subject carries the filter phrase, the way
// an IMAP SUBJECT search does: case-insensitive substring.
func SubjectMatches(subject, filter string) bool {
	return strings.Contains(strings.ToLower(subject), strings.ToLower(filter))
}

// ParseMessage reads an RFC 5322 message and returns its sender, subject
// and the first text/plain body part. Messages without a plain part fall
// back to the first inline text part of any kind.
func ParseMessage(r io.Reader) (model.CancellationRequest, error) {
	mr, err := mail.CreateReader(r)
	if err != nil && !message.IsUnknownCharset(err) {
		return model.CancellationRequest{}, fmt.Errorf("parse message: %w", err)
	}
	defer mr.Close()

	req := model.CancellationRequest{}
	if from, err := mr.Header.AddressList("From"); err == nil && len(from) > 0 {
		req.Sender = from[0].Address
	}
	if req.Sender == "" {
		return model.CancellationRequest{}, fmt.Errorf("parse message: missing From address")
	}
	req.Subject, _ = mr.Header.Subject()
	if date, err := mr.Header.Date(); err == nil {
		req.ReceivedAt = date
	}
	if id, err := mr.Header.MessageID(); err == nil {
		req.MessageID = id
	}

	var fallback string
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil && !message.IsUnknownCharset(err) {
			return model.CancellationRequest{}, fmt.Errorf("parse message body: %w", err)
		}

		h, ok := p.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		ct, _, _ := h.ContentType()
		if !strings.HasPrefix(ct, "text/") {
			continue
		}
		body, err := io.ReadAll(p.Body)
		if err != nil {
			return model.CancellationRequest{}, fmt.Errorf("read message body: %w", err)
		}
		if ct == "text/plain" {
			req.Body = string(body)
			return req, nil
		}
		if fallback == "" {
			fallback = string(body)
		}
	}
	req.Body = fallback
	return req, nil
}

func receivedOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}
