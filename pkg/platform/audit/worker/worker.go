package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"kycreview/pkg/platform/audit/store/postgres"
)

// OutboxSource yields unpublished outbox rows and records their delivery.
type OutboxSource interface {
	FetchPending(ctx context.Context, limit int) ([]postgres.Entry, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error
}

// Publisher delivers one payload to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// Relay moves audit events from the outbox to Kafka. Delivery is
// at-least-once; the materializer deduplicates on event id.
type Relay struct {
	source    OutboxSource
	publisher Publisher
	topic     string
	batchSize int
	interval  time.Duration
	logger    *slog.Logger
}

// Option configures the Relay.
type Option func(*Relay)

func WithBatchSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

func WithInterval(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) {
		r.logger = logger
	}
}

func NewRelay(source OutboxSource, publisher Publisher, topic string, opts ...Option) *Relay {
	r := &Relay{
		source:    source,
		publisher: publisher,
		topic:     topic,
		batchSize: 100,
		interval:  time.Second,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run relays on every tick until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil {
				r.logger.WarnContext(ctx, "outbox relay pass failed", "error", err)
			}
		}
	}
}

// RunOnce publishes one batch and returns how many entries were delivered.
// Publishing stops at the first failure so ordering per case is preserved.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	entries, err := r.source.FetchPending(ctx, r.batchSize)
	if err != nil {
		return 0, err
	}

	published := make([]uuid.UUID, 0, len(entries))
	var publishErr error
	for _, e := range entries {
		if err := r.publisher.Publish(ctx, r.topic, []byte(e.AggregateID), e.Payload); err != nil {
			publishErr = err
			break
		}
		published = append(published, e.ID)
	}

	if err := r.source.MarkPublished(ctx, published, time.Now()); err != nil {
		return 0, err
	}
	return len(published), publishErr
}
