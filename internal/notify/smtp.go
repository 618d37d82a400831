package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"interviewdesk/pkg/logger"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

type SMTPConfig struct {
	Addr     string
	Username string
	Password string
	From     string
	FromName string
}

type submitFunc func(addr string, auth sasl.Client, from string, to []string, r io.Reader) error

// SMTPSink submits notifications to a relay with STARTTLS and PLAIN auth.
type SMTPSink struct {
	cfg    SMTPConfig
	auth   sasl.Client
	submit submitFunc
	now    func() time.Time
	log    *logger.Logger
}

func NewSMTPSink(cfg SMTPConfig, log *logger.Logger) *SMTPSink {
	var auth sasl.Client
	if cfg.Username != "" {
		auth = sasl.NewPlainClient("", cfg.Username, cfg.Password)
	}
	return &SMTPSink{
		cfg:    cfg,
		auth:   auth,
		submit: smtp.SendMail,
		now:    time.Now,
		log:    log,
	}
}

func (s *SMTPSink) Send(ctx context.Context, n Notification) error {
	raw, err := s.compose(n)
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		done <- s.submit(s.cfg.Addr, s.auth, s.cfg.From, []string{n.To}, bytes.NewReader(raw))
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp submit to %s: %w", n.To, err)
		}
		s.log.Debug("notification submitted",
			"kind", n.Kind,
			"to", n.To,
			"bytes", len(raw),
		)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SMTPSink) Close() error { return nil }

// compose renders n as an RFC 5322 message. Notifications carrying a
// calendar become multipart/mixed with a text/calendar alternative and an
// .ics attachment, which is what most clients need to offer "add to calendar".
func (s *SMTPSink) compose(n Notification) ([]byte, error) {
	var h mail.Header
	h.SetDate(s.now())
	h.SetSubject(n.Subject)
	h.SetAddressList("From", []*mail.Address{{Name: s.cfg.FromName, Address: s.cfg.From}})
	h.SetAddressList("To", []*mail.Address{{Address: n.To}})
	h.Set("MIME-Version", "1.0")
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("generate message id: %w", err)
	}

	var buf bytes.Buffer
	if n.Calendar == nil {
		h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
		w, err := mail.CreateSingleInlineWriter(&buf, h)
		if err != nil {
			return nil, err
		}
		if _, err := io.WriteString(w, n.Body); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	mw, err := mail.CreateWriter(&buf, h)
	if err != nil {
		return nil, err
	}

	inline, err := mw.CreateInline()
	if err != nil {
		return nil, err
	}
	var textHeader mail.InlineHeader
	textHeader.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	if err := writePart(inline, textHeader, []byte(n.Body)); err != nil {
		return nil, err
	}
	var calHeader mail.InlineHeader
	calHeader.SetContentType("text/calendar", map[string]string{
		"charset": "utf-8",
		"method":  n.Calendar.Method,
	})
	calHeader.Set("Content-Class", "urn:content-classes:calendarmessage")
	if err := writePart(inline, calHeader, n.Calendar.Data); err != nil {
		return nil, err
	}
	if err := inline.Close(); err != nil {
		return nil, err
	}

	var attHeader mail.AttachmentHeader
	attHeader.SetContentType("application/ics", map[string]string{"name": n.Calendar.Filename})
	attHeader.SetFilename(n.Calendar.Filename)
	aw, err := mw.CreateAttachment(attHeader)
	if err != nil {
		return nil, err
	}
	if _, err := aw.Write(n.Calendar.Data); err != nil {
		return nil, err
	}
	if err := aw.Close(); err != nil {
		return nil, err
	}

	if err := mw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writePart(w *mail.InlineWriter, h mail.InlineHeader, data []byte) error {
	pw, err := w.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := pw.Write(data); err != nil {
		return err
	}
	return pw.Close()
}
