package consumer

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kycreview/internal/platform/kafka"
	audit "kycreview/pkg/platform/audit"
)

type recordingWriter struct {
	ids    []uuid.UUID
	events []audit.Event
	err    error
}

func (w *recordingWriter) AppendWithID(_ context.Context, id uuid.UUID, e audit.Event) error {
	if w.err != nil {
		return w.err
	}
	w.ids = append(w.ids, id)
	w.events = append(w.events, e)
	return nil
}

func TestMaterializerHandle(t *testing.T) {
	ctx := context.Background()
	eventID := uuid.New()

	t.Run("writes decoded event", func(t *testing.T) {
		w := &recordingWriter{}
		m := NewMaterializer(w)
		value := []byte(`{"id":"` + eventID.String() + `","category":"compliance","timestamp":"2025-01-09T08:00:00Z","case_id":"C-1002","action":"case_decision_recorded","decision":"Approve","actor_id":"analyst"}`)

		require.NoError(t, m.Handle(ctx, &kafka.Message{Topic: "kyc.audit", Value: value}))
		require.Len(t, w.events, 1)
		assert.Equal(t, eventID, w.ids[0])
		assert.Equal(t, "C-1002", w.events[0].CaseID)
		assert.Equal(t, audit.CategoryCompliance, w.events[0].Category)
		assert.Equal(t, "Approve", w.events[0].Decision)
	})

	t.Run("rejects malformed payload", func(t *testing.T) {
		m := NewMaterializer(&recordingWriter{})
		err := m.Handle(ctx, &kafka.Message{Value: []byte(`not-json`)})
		require.Error(t, err)
		assert.True(t, kafka.IsSkipped(err))
	})

	t.Run("rejects bad event id", func(t *testing.T) {
		m := NewMaterializer(&recordingWriter{})
		value := []byte(`{"id":"nope","timestamp":"2025-01-09T08:00:00Z","case_id":"C-1","action":"x"}`)
		err := m.Handle(ctx, &kafka.Message{Value: value})
		require.Error(t, err)
		assert.True(t, kafka.IsSkipped(err))
	})

	t.Run("write failures are retried", func(t *testing.T) {
		m := NewMaterializer(&recordingWriter{err: errors.New("db down")})
		value := []byte(`{"id":"` + eventID.String() + `","timestamp":"2025-01-09T08:00:00Z","case_id":"C-1","action":"x"}`)
		err := m.Handle(ctx, &kafka.Message{Value: value})
		require.Error(t, err)
		assert.False(t, kafka.IsSkipped(err))
	})
}
