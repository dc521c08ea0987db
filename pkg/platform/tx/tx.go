package tx

import (
	"context"

	"github.com/jackc/pgx/v5"
)

type ctxKey struct{}

var txKey = ctxKey{}

// WithTx stores a pgx transaction in context for downstream store usage.
func WithTx(ctx context.Context, tx pgx.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey, tx)
}

// From extracts a pgx transaction from context if present.
func From(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(txKey).(pgx.Tx)
	return tx, ok
}

type hooksKey struct{}

// Hooks defers writes made by process-local stores until the surrounding
// unit of work commits. It plays the role a pgx transaction plays for the
// Postgres stores.
type Hooks struct {
	onCommit []func()
}

// WithHooks starts a unit of work. The caller runs Commit once its own state
// is stored; if it never does, the staged writes are dropped.
func WithHooks(ctx context.Context) (context.Context, *Hooks) {
	h := &Hooks{}
	return context.WithValue(ctx, hooksKey{}, h), h
}

// HooksFrom returns the unit of work carried by ctx, if any.
func HooksFrom(ctx context.Context) (*Hooks, bool) {
	h, ok := ctx.Value(hooksKey{}).(*Hooks)
	return h, ok
}

// OnCommit stages fn. Staged functions run in order and must not fail.
func (h *Hooks) OnCommit(fn func()) {
	h.onCommit = append(h.onCommit, fn)
}

// Commit applies the staged writes.
func (h *Hooks) Commit() {
	fns := h.onCommit
	h.onCommit = nil
	for _, fn := range fns {
		fn()
	}
}
