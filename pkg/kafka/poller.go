package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	kafka_config "interviewdesk/pkg/kafka/config"
	"interviewdesk/pkg/logger"

	"github.com/segmentio/kafka-go"
)

type reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Poller reads a consumer-group topic in bounded batches. Offsets are only
// committed when the caller says a record is done, so anything fetched but
// not committed is redelivered after a restart.
type Poller struct {
	reader    reader
	topic     string
	batchSize int
	idle      time.Duration
	closed    bool
	mu        sync.Mutex
}

func NewPoller(cfg *kafka_config.Config, topic, groupID string, log *logger.Logger) (*Poller, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}
	if topic == "" {
		return nil, fmt.Errorf("topic cannot be empty")
	}
	if groupID == "" {
		return nil, fmt.Errorf("group ID cannot be empty")
	}

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:           cfg.Brokers,
		Topic:             topic,
		GroupID:           groupID,
		MinBytes:          1,
		MaxBytes:          cfg.ConsumerMaxBytes,
		MaxWait:           cfg.ConsumerMaxWait,
		HeartbeatInterval: cfg.ConsumerHeartbeatInterval,
		SessionTimeout:    cfg.ConsumerSessionTimeout,
		StartOffset:       cfg.ConsumerStartOffset,
		Logger:            kafka.LoggerFunc(func(string, ...any) {}),
		ErrorLogger:       errorLogger(log, "poller", topic),
	})

	return newPoller(r, topic, cfg.PollBatchSize, cfg.PollIdleTimeout), nil
}

func newPoller(r reader, topic string, batchSize int, idle time.Duration) *Poller {
	return &Poller{
		reader:    r,
		topic:     topic,
		batchSize: batchSize,
		idle:      idle,
	}
}

// Poll returns up to batchSize records. It stops early once no record has
// arrived for the idle timeout, or when ctx ends; records fetched so far are
// returned in either case.
func (p *Poller) Poll(ctx context.Context) ([]Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrPollerClosed
	}

	var batch []Message
	for len(batch) < p.batchSize {
		fetchCtx, cancel := context.WithTimeout(ctx, p.idle)
		kafkaMsg, err := p.reader.FetchMessage(fetchCtx)
		cancel()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				if len(batch) == 0 && ctx.Err() != nil {
					return nil, ctx.Err()
				}
				return batch, nil
			}
			if len(batch) > 0 {
				return batch, nil
			}
			return nil, fmt.Errorf("failed to fetch from %s: %w", p.topic, err)
		}
		batch = append(batch, fromKafkaMessage(kafkaMsg))
	}
	return batch, nil
}

// Commit marks msg as processed for the consumer group.
func (p *Poller) Commit(ctx context.Context, msg Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPollerClosed
	}
	if msg.raw.Topic == "" {
		return ErrNotFetched
	}
	return p.reader.CommitMessages(ctx, msg.raw)
}

func (p *Poller) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	return p.reader.Close()
}
