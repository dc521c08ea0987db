package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	audit "kycreview/pkg/platform/audit"
)

// EventStore is the queryable side of the audit trail. The Kafka materializer
// writes into audit_events and the review UI reads from it.
type EventStore struct {
	db *sql.DB
}

// NewEventStore wraps a database/sql handle opened with the lib/pq driver.
func NewEventStore(db *sql.DB) *EventStore {
	return &EventStore{db: db}
}

// AppendWithID inserts a materialized event. Duplicate deliveries are ignored.
func (s *EventStore) AppendWithID(ctx context.Context, eventID uuid.UUID, event audit.Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_events (
			id, category, timestamp, case_id, subject, action,
			decision, reason, actor_id, request_id, ref
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING
	`,
		eventID,
		string(event.Category),
		event.Timestamp,
		event.CaseID,
		event.Subject,
		event.Action,
		event.Decision,
		event.Reason,
		event.ActorID,
		event.RequestID,
		event.Ref,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// ListByCase returns the events of a case oldest first, optionally filtered by action.
func (s *EventStore) ListByCase(ctx context.Context, caseID string, actions ...audit.AuditEvent) ([]audit.Event, error) {
	query := `
		SELECT id, category, timestamp, case_id, subject, action,
			   decision, reason, actor_id, request_id, ref
		FROM audit_events
		WHERE case_id = $1
	`
	args := []any{caseID}
	if len(actions) > 0 {
		names := make([]string, len(actions))
		for i, a := range actions {
			names[i] = string(a)
		}
		query += ` AND action = ANY($2)`
		args = append(args, pq.Array(names))
	}
	query += ` ORDER BY timestamp`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var (
			e        audit.Event
			category string
		)
		if err := rows.Scan(&e.ID, &category, &e.Timestamp, &e.CaseID, &e.Subject, &e.Action,
			&e.Decision, &e.Reason, &e.ActorID, &e.RequestID, &e.Ref); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.Category = audit.EventCategory(category)
		events = append(events, e)
	}
	return events, rows.Err()
}
