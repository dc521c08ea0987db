package memory

import (
	"context"
	"slices"
	"sync"

	audit "kycreview/pkg/platform/audit"
	txcontext "kycreview/pkg/platform/tx"
)

// InMemoryStore keeps audit events per case. Used for local runs and tests.
type InMemoryStore struct {
	mu     sync.RWMutex
	events map[string][]audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[string][]audit.Event)}
}

// Append records event. Inside a unit of work (see tx.WithHooks) the event
// becomes visible only when the unit commits.
func (s *InMemoryStore) Append(ctx context.Context, event audit.Event) error {
	if hooks, ok := txcontext.HooksFrom(ctx); ok {
		hooks.OnCommit(func() { s.append(event) })
		return nil
	}
	s.append(event)
	return nil
}

func (s *InMemoryStore) append(event audit.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.CaseID] = append(s.events[event.CaseID], event)
}

// ListByCase returns the events of a case, optionally filtered by action.
func (s *InMemoryStore) ListByCase(_ context.Context, caseID string, actions ...audit.AuditEvent) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(actions) == 0 {
		return append([]audit.Event{}, s.events[caseID]...), nil
	}
	var out []audit.Event
	for _, e := range s.events[caseID] {
		if slices.Contains(actions, audit.AuditEvent(e.Action)) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = make(map[string][]audit.Event)
}
