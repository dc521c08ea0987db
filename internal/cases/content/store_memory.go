package content

import (
	"context"
	"slices"
	"sync"

	"kycreview/pkg/platform/sentinel"
	txcontext "kycreview/pkg/platform/tx"
)

// InMemory keeps document bodies in process memory.
type InMemory struct {
	mu      sync.RWMutex
	objects map[string]Object
}

func NewInMemory() *InMemory {
	return &InMemory{objects: make(map[string]Object)}
}

func (s *InMemory) Put(ctx context.Context, obj Object) error {
	obj.Data = slices.Clone(obj.Data)
	s.apply(ctx, func() { s.objects[obj.Ref] = obj })
	return nil
}

func (s *InMemory) Get(_ context.Context, ref string) (*Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[ref]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	obj.Data = slices.Clone(obj.Data)
	return &obj, nil
}

func (s *InMemory) Delete(ctx context.Context, ref string) error {
	s.apply(ctx, func() { delete(s.objects, ref) })
	return nil
}

// apply runs a write now, or stages it on the unit of work in ctx.
func (s *InMemory) apply(ctx context.Context, write func()) {
	locked := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		write()
	}
	if hooks, ok := txcontext.HooksFrom(ctx); ok {
		hooks.OnCommit(locked)
		return
	}
	locked()
}
