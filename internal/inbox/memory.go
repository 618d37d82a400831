package inbox

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"interviewdesk/pkg/model"
)

// Mailbox is an in-memory Source. Deliver adds a message; processed
// messages are kept so tests can inspect them.
type Mailbox struct {
	mu        sync.Mutex
	next      int
	messages  map[string]model.CancellationRequest
	processed map[string]bool
	marks     map[string]int
}

func NewMailbox() *Mailbox {
	return &Mailbox{
		messages:  make(map[string]model.CancellationRequest),
		processed: make(map[string]bool),
		marks:     make(map[string]int),
	}
}

// Deliver stores a message and returns its id.
func (m *Mailbox) Deliver(from, subject, body string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.next++
	id := strconv.Itoa(m.next)
	m.messages[id] = model.CancellationRequest{
		MessageID:  id,
		Sender:     from,
		Subject:    subject,
		Body:       body,
		ReceivedAt: time.Now(),
	}
	return id
}

func (m *Mailbox) ListUnprocessed(ctx context.Context, subject string) ([]model.CancellationRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var out []model.CancellationRequest
	for id, msg := range m.messages {
		if m.processed[id] || !SubjectMatches(msg.Subject, subject) {
			continue
		}
		out = append(out, msg)
	}
	sort.Slice(out, func(i, j int) bool {
		a, _ := strconv.Atoi(out[i].MessageID)
		b, _ := strconv.Atoi(out[j].MessageID)
		return a < b
	})
	return out, nil
}

func (m *Mailbox) MarkProcessed(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.messages[id]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownMessage, id)
	}
	m.processed[id] = true
	m.marks[id]++
	return nil
}

// Marks returns how many times id was marked processed.
func (m *Mailbox) Marks(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.marks[id]
}

func (m *Mailbox) Close() error { return nil }
