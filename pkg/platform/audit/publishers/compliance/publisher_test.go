package compliance

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "kycreview/pkg/platform/audit"
	"kycreview/pkg/platform/audit/store/memory"
)

type failingStore struct{}

func (failingStore) Append(context.Context, audit.Event) error { return errors.New("disk full") }

func TestEmit(t *testing.T) {
	ctx := context.Background()

	t.Run("fills id, timestamp and category", func(t *testing.T) {
		store := memory.NewInMemoryStore()
		pub := New(store, WithMetrics(NewMetrics(prometheus.NewRegistry())))

		err := pub.Emit(ctx, audit.Event{CaseID: "C-1001", Action: string(audit.EventDecisionRecorded), Decision: "Approve"})
		require.NoError(t, err)

		events, err := store.ListByCase(ctx, "C-1001")
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.NotEmpty(t, events[0].ID)
		assert.False(t, events[0].Timestamp.IsZero())
		assert.Equal(t, audit.CategoryCompliance, events[0].Category)
	})

	t.Run("requires case id and action", func(t *testing.T) {
		pub := New(memory.NewInMemoryStore())
		require.Error(t, pub.Emit(ctx, audit.Event{Action: "x"}))
		require.Error(t, pub.Emit(ctx, audit.Event{CaseID: "C-1"}))
	})

	t.Run("fails closed when store fails", func(t *testing.T) {
		pub := New(failingStore{}, WithMetrics(NewMetrics(prometheus.NewRegistry())))
		err := pub.Emit(ctx, audit.Event{CaseID: "C-1", Action: string(audit.EventDocumentDeleted)})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "disk full")
	})
}
