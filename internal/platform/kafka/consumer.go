package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Message is the transport-neutral view of a consumed record.
type Message struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
}

// Handler processes one message. A returned error is retried with backoff
// and the record's offset is only committed once the handler succeeds.
// Errors wrapped with Skip are logged and committed without a retry.
type Handler interface {
	Handle(ctx context.Context, msg *Message) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, msg *Message) error

func (f HandlerFunc) Handle(ctx context.Context, msg *Message) error { return f(ctx, msg) }

type skipError struct {
	err error
}

func (e *skipError) Error() string { return e.err.Error() }
func (e *skipError) Unwrap() error { return e.err }

// Skip marks err as permanent for the record at hand: no redelivery can fix
// it, so the consumer logs it and moves on.
func Skip(err error) error {
	if err == nil {
		return nil
	}
	return &skipError{err: err}
}

// IsSkipped reports whether err was marked with Skip.
func IsSkipped(err error) bool {
	var se *skipError
	return errors.As(err, &se)
}

// Consumer reads a set of topics as a member of a consumer group.
type Consumer struct {
	client         *kgo.Client
	logger         *slog.Logger
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// ConsumerOption configures a Consumer.
type ConsumerOption func(*Consumer)

// WithRetryBackoff sets the first and the longest wait between attempts at a
// failing record.
func WithRetryBackoff(initial, longest time.Duration) ConsumerOption {
	return func(c *Consumer) {
		if initial > 0 {
			c.initialBackoff = initial
		}
		if longest >= c.initialBackoff {
			c.maxBackoff = longest
		}
	}
}

// NewConsumer joins group and subscribes to topics. Offsets are committed
// manually, only for records that were handled.
func NewConsumer(brokers []string, group string, topics []string, logger *slog.Logger, opts ...ConsumerOption) (*Consumer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumerGroup(group),
		kgo.ConsumeTopics(topics...),
		kgo.DisableAutoCommit(),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer: %w", err)
	}
	c := newConsumer(logger, opts...)
	c.client = client
	return c, nil
}

func newConsumer(logger *slog.Logger, opts ...ConsumerOption) *Consumer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	c := &Consumer{
		logger:         logger,
		initialBackoff: 500 * time.Millisecond,
		maxBackoff:     30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run polls until ctx is cancelled or the client is closed. Records are
// handled in fetch order; a failing record holds back everything after it
// until it succeeds, so no offset is committed past an unhandled record.
func (c *Consumer) Run(ctx context.Context, h Handler) error {
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			c.logger.WarnContext(ctx, "kafka fetch error",
				"topic", topic,
				"partition", partition,
				"error", err,
			)
		})

		var handled []*kgo.Record
		for _, r := range fetches.Records() {
			if !c.process(ctx, h, toMessage(r)) {
				break
			}
			handled = append(handled, r)
		}
		if len(handled) > 0 {
			if err := c.client.CommitRecords(context.WithoutCancel(ctx), handled...); err != nil {
				c.logger.WarnContext(ctx, "kafka offset commit failed", "error", err)
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

// process retries msg until the handler succeeds or skips it, and reports
// whether its offset may be committed. It only gives up when ctx ends.
func (c *Consumer) process(ctx context.Context, h Handler, msg *Message) bool {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initialBackoff
	b.MaxInterval = c.maxBackoff
	b.MaxElapsedTime = 0

	attempt := 0
	err := backoff.RetryNotify(func() error {
		attempt++
		err := h.Handle(ctx, msg)
		if IsSkipped(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(b, ctx), func(err error, wait time.Duration) {
		c.logger.WarnContext(ctx, "kafka message handling failed, retrying",
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"attempt", attempt,
			"retry_in", wait,
			"error", err,
		)
	})

	switch {
	case err == nil:
		return true
	case IsSkipped(err):
		c.logger.ErrorContext(ctx, "kafka message cannot be handled, skipping",
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err,
		)
		return true
	default:
		return false
	}
}

func toMessage(r *kgo.Record) *Message {
	return &Message{
		Topic:     r.Topic,
		Partition: r.Partition,
		Offset:    r.Offset,
		Key:       r.Key,
		Value:     r.Value,
	}
}

func (c *Consumer) Close() {
	c.client.Close()
}
