// Package store persists case aggregates. Both implementations serialize
// mutations per case through Execute and hand out deep copies only.
package store

import (
	"context"
	"fmt"
	"hash/fnv"
	"slices"
	"sync"
	"time"

	"kycreview/internal/cases/models"
	dErrors "kycreview/pkg/domain-errors"
	"kycreview/pkg/platform/sentinel"
	txcontext "kycreview/pkg/platform/tx"
)

// numShards spreads per-case locks so unrelated cases never contend.
const numShards = 64

const defaultTxTimeout = 5 * time.Second

// MutateFunc mutates a working copy of a case. Returning an error discards
// the copy. ctx carries the transaction, if any, so audit writes made inside
// commit together with the case.
type MutateFunc = func(ctx context.Context, c *models.Case) error

// InMemory is a process-local case store.
type InMemory struct {
	mu     sync.RWMutex
	cases  map[string]*models.Case
	shards [numShards]sync.Mutex
}

func NewInMemory() *InMemory {
	return &InMemory{cases: make(map[string]*models.Case)}
}

// Create inserts a new case. fn, if set, runs under the case lock before the
// insert becomes visible; an error from fn aborts the insert.
func (s *InMemory) Create(ctx context.Context, c *models.Case, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	shard := &s.shards[shardFor(c.ID)]
	shard.Lock()
	defer shard.Unlock()

	s.mu.RLock()
	_, exists := s.cases[c.ID]
	s.mu.RUnlock()
	if exists {
		return fmt.Errorf("case %s: %w", c.ID, sentinel.ErrConflict)
	}
	ctx, hooks := txcontext.WithHooks(ctx)
	if fn != nil {
		if err := fn(ctx); err != nil {
			return err
		}
	}
	stored := c.Clone()
	stored.Version = 1
	c.Version = 1

	s.mu.Lock()
	s.cases[c.ID] = stored
	s.mu.Unlock()
	hooks.Commit()
	return nil
}

func (s *InMemory) FindByID(ctx context.Context, caseID string) (*models.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cases[caseID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return c.Clone(), nil
}

// List returns cases ordered by creation time. An empty status returns all.
func (s *InMemory) List(ctx context.Context, status models.CaseStatus) ([]*models.Case, error) {
	s.mu.RLock()
	out := make([]*models.Case, 0, len(s.cases))
	for _, c := range s.cases {
		if status != "" && c.Status != status {
			continue
		}
		out = append(out, c.Clone())
	}
	s.mu.RUnlock()
	sortCases(out)
	return out, nil
}

// Execute locks the case, runs fn on a copy and commits the copy when fn
// succeeds. Writes that process-local stores stage through ctx during fn are
// applied with the commit and dropped otherwise. Cancellation is only
// honoured before fn starts.
func (s *InMemory) Execute(ctx context.Context, caseID string, fn MutateFunc) (*models.Case, error) {
	if err := ctx.Err(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultTxTimeout)
		defer cancel()
	}

	shard := &s.shards[shardFor(caseID)]
	shard.Lock()
	defer shard.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	s.mu.RLock()
	current, ok := s.cases[caseID]
	s.mu.RUnlock()
	if !ok {
		return nil, sentinel.ErrNotFound
	}

	working := current.Clone()
	txCtx, hooks := txcontext.WithHooks(ctx)
	if err := fn(txCtx, working); err != nil {
		return nil, err
	}
	working.Version = current.Version + 1

	s.mu.Lock()
	s.cases[caseID] = working.Clone()
	s.mu.Unlock()
	// Still under the case lock, so staged audit and content writes land
	// before the next writer of this case runs.
	hooks.Commit()
	return working, nil
}

func sortCases(cases []*models.Case) {
	slices.SortFunc(cases, func(a, b *models.Case) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
}

// shardFor hashes a case id with FNV-1a.
func shardFor(caseID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(caseID))
	return int(h.Sum32() % numShards)
}
