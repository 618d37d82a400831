package inbox

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"interviewdesk/pkg/kafka"
	"interviewdesk/pkg/logger"
	"interviewdesk/pkg/model"
)

// poller is the part of *kafka.Poller the source uses.
type poller interface {
	Poll(ctx context.Context) ([]kafka.Message, error)
	Commit(ctx context.Context, msg kafka.Message) error
	Close() error
}

// inboundEvent is the payload a mail-ingest service publishes for every
// message it receives.
type inboundEvent struct {
	From       string    `json:"from"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	ReceivedAt time.Time `json:"received_at"`
}

// KafkaSource reads inbound mail events from a consumer-group topic. A
// record's offset is committed only by MarkProcessed; records whose subject
// does not match the filter are committed as they are seen. The reader does
// not redeliver a record it has already passed, so listed records that were
// never marked are kept and listed again ahead of new ones.
type KafkaSource struct {
	poller poller
	log    *logger.Logger

	mu      sync.Mutex
	pending map[string]pendingRecord
}

type pendingRecord struct {
	msg kafka.Message
	req model.CancellationRequest
}

func NewKafkaSource(p poller, log *logger.Logger) *KafkaSource {
	return &KafkaSource{
		poller:  p,
		log:     log,
		pending: make(map[string]pendingRecord),
	}
}

func (s *KafkaSource) ListUnprocessed(ctx context.Context, subject string) ([]model.CancellationRequest, error) {
	batch, err := s.poller.Poll(ctx)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	requests := s.unmarkedLocked()
	for _, msg := range batch {
		id := msg.ID()
		if _, ok := s.pending[id]; ok {
			continue
		}

		var ev inboundEvent
		if err := msg.DecodeValue(&ev); err != nil || strings.TrimSpace(ev.From) == "" {
			s.log.Warn("dropping undecodable inbound event", "id", id, "error", err)
			s.commit(ctx, msg)
			continue
		}
		if !SubjectMatches(ev.Subject, subject) {
			s.commit(ctx, msg)
			continue
		}

		req := model.CancellationRequest{
			MessageID:  id,
			Sender:     strings.TrimSpace(ev.From),
			Subject:    ev.Subject,
			Body:       ev.Body,
			ReceivedAt: receivedOrNow(ev.ReceivedAt),
		}
		s.pending[id] = pendingRecord{msg: msg, req: req}
		requests = append(requests, req)
	}
	return requests, nil
}

// unmarkedLocked returns the requests listed earlier and not yet marked, in
// partition and offset order. s.mu must be held.
func (s *KafkaSource) unmarkedLocked() []model.CancellationRequest {
	if len(s.pending) == 0 {
		return nil
	}
	records := make([]pendingRecord, 0, len(s.pending))
	for _, rec := range s.pending {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		a, b := records[i].msg, records[j].msg
		if a.Partition != b.Partition {
			return a.Partition < b.Partition
		}
		return a.Offset < b.Offset
	})
	requests := make([]model.CancellationRequest, len(records))
	for i, rec := range records {
		requests[i] = rec.req
	}
	return requests
}

func (s *KafkaSource) MarkProcessed(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.pending[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownMessage, id)
	}
	if err := s.poller.Commit(ctx, rec.msg); err != nil {
		return fmt.Errorf("commit %s: %w", id, err)
	}
	delete(s.pending, id)
	return nil
}

func (s *KafkaSource) Close() error {
	return s.poller.Close()
}

func (s *KafkaSource) commit(ctx context.Context, msg kafka.Message) {
	if err := s.poller.Commit(ctx, msg); err != nil {
		s.log.Warn("failed to commit skipped inbound event", "id", msg.ID(), "error", err)
	}
}
