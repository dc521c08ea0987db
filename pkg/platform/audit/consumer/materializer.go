// Package consumer materializes audit events relayed through Kafka into the
// queryable audit_events table.
package consumer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"kycreview/internal/platform/kafka"
	audit "kycreview/pkg/platform/audit"
	"kycreview/pkg/platform/audit/store/postgres"
)

// Writer persists a materialized event idempotently.
type Writer interface {
	AppendWithID(ctx context.Context, eventID uuid.UUID, event audit.Event) error
}

// Materializer handles messages from the audit topic.
type Materializer struct {
	writer Writer
}

func NewMaterializer(writer Writer) *Materializer {
	return &Materializer{writer: writer}
}

// Handle decodes an outbox payload and writes it to the event store.
// Malformed payloads are skipped; write failures are retried by the consumer.
func (m *Materializer) Handle(ctx context.Context, msg *kafka.Message) error {
	var payload postgres.Payload
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		return kafka.Skip(fmt.Errorf("decode audit payload: %w", err))
	}
	eventID, event, err := payload.ToEvent()
	if err != nil {
		return kafka.Skip(err)
	}
	return m.writer.AppendWithID(ctx, eventID, event)
}
