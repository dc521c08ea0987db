package kafka

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConsumer() *Consumer {
	return newConsumer(nil, WithRetryBackoff(time.Millisecond, 5*time.Millisecond))
}

func TestProcessRetriesUntilHandled(t *testing.T) {
	calls := 0
	h := HandlerFunc(func(context.Context, *Message) error {
		calls++
		if calls == 1 {
			return errors.New("event store unavailable")
		}
		return nil
	})

	ok := testConsumer().process(context.Background(), h, &Message{Topic: "kyc.audit", Offset: 3})
	assert.True(t, ok, "the record is committed once the retry succeeds")
	assert.Equal(t, 2, calls)
}

func TestProcessCommitsSkippedRecords(t *testing.T) {
	calls := 0
	h := HandlerFunc(func(context.Context, *Message) error {
		calls++
		return Skip(errors.New("not json"))
	})

	ok := testConsumer().process(context.Background(), h, &Message{Topic: "kyc.audit"})
	assert.True(t, ok)
	assert.Equal(t, 1, calls, "skipped records are not retried")
}

func TestProcessHoldsRecordWhenContextEnds(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	calls := 0
	h := HandlerFunc(func(context.Context, *Message) error {
		calls++
		return errors.New("event store unavailable")
	})

	ok := testConsumer().process(ctx, h, &Message{Topic: "kyc.audit"})
	assert.False(t, ok, "an unhandled record must not be committed")
	assert.Greater(t, calls, 1)
}

func TestSkip(t *testing.T) {
	assert.NoError(t, Skip(nil))

	base := errors.New("bad record")
	err := fmt.Errorf("decode: %w", Skip(base))
	require.True(t, IsSkipped(err))
	assert.ErrorIs(t, err, base)
	assert.False(t, IsSkipped(base))
}

func TestRetryBackoffOption(t *testing.T) {
	c := newConsumer(nil)
	assert.Equal(t, 500*time.Millisecond, c.initialBackoff)
	assert.Equal(t, 30*time.Second, c.maxBackoff)

	c = newConsumer(nil, WithRetryBackoff(time.Second, 10*time.Millisecond))
	assert.Equal(t, time.Second, c.initialBackoff)
	assert.Equal(t, 30*time.Second, c.maxBackoff, "a max below the initial wait is ignored")
}
