package meeting

import (
	"context"
	"strings"
	"sync"
	"time"

	"interviewdesk/pkg/logger"
	"interviewdesk/pkg/model"

	"github.com/google/uuid"
)

// StubClient hands out fake rooms without talking to a provider. It backs
// MEETING_MODE=stub for local runs.
type StubClient struct {
	baseURL string
	log     *logger.Logger

	mu     sync.Mutex
	active map[string]time.Time
}

func NewStubClient(baseURL string, log *logger.Logger) *StubClient {
	return &StubClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		log:     log,
		active:  map[string]time.Time{},
	}
}

func (c *StubClient) Acquire(ctx context.Context, start time.Time) (model.MeetingRef, error) {
	if err := ctx.Err(); err != nil {
		return model.MeetingRef{}, err
	}
	id := uuid.NewString()

	c.mu.Lock()
	c.active[id] = start
	c.mu.Unlock()

	c.log.Info("Stub meeting created", "meeting_id", id, "start", start.UTC())
	return model.MeetingRef{
		JoinURL:    c.baseURL + "/j/" + id,
		ExternalID: id,
		Secret:     strings.ReplaceAll(id, "-", "")[:8],
	}, nil
}

func (c *StubClient) Release(ctx context.Context, ref model.MeetingRef) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	delete(c.active, ref.ExternalID)
	c.mu.Unlock()

	c.log.Info("Stub meeting deleted", "meeting_id", ref.ExternalID)
	return nil
}

// Active reports how many stub rooms are currently held.
func (c *StubClient) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.active)
}
