package inbox

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"interviewdesk/pkg/logger"
	"interviewdesk/pkg/model"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
)

const inboxMailbox = "INBOX"

type IMAPConfig struct {
	Addr     string
	Username string
	Password string
	Timeout  time.Duration
}

// mailClient is the part of *client.Client the source uses.
type mailClient interface {
	Login(username, password string) error
	Select(name string, readOnly bool) (*imap.MailboxStatus, error)
	UidSearch(criteria *imap.SearchCriteria) ([]uint32, error)
	UidFetch(seqset *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error
	UidStore(seqset *imap.SeqSet, item imap.StoreItem, value interface{}, ch chan *imap.Message) error
	Logout() error
	Terminate() error
}

type dialFunc func(ctx context.Context, cfg IMAPConfig) (mailClient, error)

// IMAPSource opens one session per ListUnprocessed call and keeps it for the
// MarkProcessed calls that follow. Messages are fetched with PEEK so that
// only MarkProcessed sets \Seen. go-imap commands take no context, so the
// connection is torn down if ctx ends while a listing is in progress.
type IMAPSource struct {
	cfg  IMAPConfig
	dial dialFunc
	log  *logger.Logger

	mu      sync.Mutex
	session mailClient
}

func NewIMAPSource(cfg IMAPConfig, log *logger.Logger) *IMAPSource {
	return &IMAPSource{
		cfg:  cfg,
		dial: dialTLS,
		log:  log,
	}
}

func dialTLS(ctx context.Context, cfg IMAPConfig) (mailClient, error) {
	dialer := &net.Dialer{Timeout: cfg.Timeout}
	if deadline, ok := ctx.Deadline(); ok {
		dialer.Deadline = deadline
	}
	c, err := client.DialWithDialerTLS(dialer, cfg.Addr, &tls.Config{MinVersion: tls.VersionTLS12})
	if err != nil {
		return nil, err
	}
	c.Timeout = cfg.Timeout
	return c, nil
}

func (s *IMAPSource) ListUnprocessed(ctx context.Context, subject string) ([]model.CancellationRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.endSession()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c, err := s.dial(ctx, s.cfg)
	if err != nil {
		return nil, fmt.Errorf("imap dial %s: %w", s.cfg.Addr, err)
	}
	stop := context.AfterFunc(ctx, func() { _ = c.Terminate() })
	requests, err := s.list(ctx, c, subject)
	if !stop() {
		// The connection is gone; report the deadline rather than the
		// I/O error it caused.
		s.session = nil
		return nil, fmt.Errorf("imap list: %w", ctx.Err())
	}
	return requests, err
}

func (s *IMAPSource) list(ctx context.Context, c mailClient, subject string) ([]model.CancellationRequest, error) {
	if err := c.Login(s.cfg.Username, s.cfg.Password); err != nil {
		_ = c.Logout()
		return nil, fmt.Errorf("imap login: %w", err)
	}
	if _, err := c.Select(inboxMailbox, false); err != nil {
		_ = c.Logout()
		return nil, fmt.Errorf("imap select %s: %w", inboxMailbox, err)
	}
	s.session = c

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	criteria.Header.Add("Subject", subject)

	uids, err := c.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("imap search: %w", err)
	}
	if len(uids) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)
	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchUid, imap.FetchInternalDate, section.FetchItem()}

	messages := make(chan *imap.Message, len(uids))
	done := make(chan error, 1)
	go func() {
		done <- c.UidFetch(seqset, items, messages)
	}()

	requests := make([]model.CancellationRequest, 0, len(uids))
	for msg := range messages {
		body := msg.GetBody(section)
		if body == nil {
			s.log.Warn("imap message without body", "uid", msg.Uid)
			continue
		}
		req, err := ParseMessage(body)
		if err != nil {
			// Unparseable mail still gets an id so it can be marked and
			// is not fetched on every pass.
			s.log.Warn("failed to parse inbound message", "uid", msg.Uid, "error", err)
			req = model.CancellationRequest{}
		}
		req.MessageID = strconv.FormatUint(uint64(msg.Uid), 10)
		if req.ReceivedAt.IsZero() {
			req.ReceivedAt = msg.InternalDate
		}
		req.ReceivedAt = receivedOrNow(req.ReceivedAt)
		requests = append(requests, req)
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("imap fetch: %w", err)
	}
	return requests, nil
}

func (s *IMAPSource) MarkProcessed(ctx context.Context, id string) error {
	uid, err := strconv.ParseUint(id, 10, 32)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrUnknownMessage, id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return fmt.Errorf("imap mark %s: no open session", id)
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uint32(uid))
	item := imap.FormatFlagsOp(imap.AddFlags, true)
	if err := s.session.UidStore(seqset, item, []interface{}{imap.SeenFlag}, nil); err != nil {
		return fmt.Errorf("imap mark %s seen: %w", id, err)
	}
	return nil
}

func (s *IMAPSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endSession()
	return nil
}

func (s *IMAPSource) endSession() {
	if s.session == nil {
		return
	}
	if err := s.session.Logout(); err != nil {
		s.log.Debug("imap logout failed", "error", err)
	}
	s.session = nil
}
