package idempotency

import (
	"context"
	"log/slog"
	"time"

	"kycreview/pkg/platform/circuit"
)

// Guarded puts a circuit breaker in front of a shared store. While the
// breaker is open, keys are tracked in the process-local fallback, so retries
// are only deduplicated when they reach the same instance.
type Guarded struct {
	primary  Store
	fallback Store
	breaker  *circuit.Breaker
	logger   *slog.Logger
}

// NewGuarded wraps primary. A nil logger discards breaker transitions.
func NewGuarded(primary, fallback Store, breaker *circuit.Breaker, logger *slog.Logger) *Guarded {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Guarded{primary: primary, fallback: fallback, breaker: breaker, logger: logger}
}

func (g *Guarded) Reserve(ctx context.Context, key, fingerprint string) (Record, bool, error) {
	rec, reserved, err := g.primary.Reserve(ctx, key, fingerprint)
	if err == nil {
		g.success(ctx)
		return rec, reserved, nil
	}
	if !g.failure(ctx, err) {
		return Record{}, false, err
	}
	return g.fallback.Reserve(ctx, key, fingerprint)
}

func (g *Guarded) Complete(ctx context.Context, key string, rec Record, ttl time.Duration) error {
	err := g.primary.Complete(ctx, key, rec, ttl)
	if err == nil {
		g.success(ctx)
		// A reservation taken while degraded would otherwise block for
		// ProvisionalTTL.
		return g.fallback.Release(ctx, key)
	}
	if !g.failure(ctx, err) {
		return err
	}
	return g.fallback.Complete(ctx, key, rec, ttl)
}

// Release clears the key in both stores; the reservation may live in either.
func (g *Guarded) Release(ctx context.Context, key string) error {
	_ = g.fallback.Release(ctx, key)
	if err := g.primary.Release(ctx, key); err != nil {
		if g.failure(ctx, err) {
			return nil
		}
		return err
	}
	g.success(ctx)
	return nil
}

func (g *Guarded) success(ctx context.Context) {
	if _, change := g.breaker.RecordSuccess(); change.Closed {
		g.logger.InfoContext(ctx, "idempotency store recovered, leaving fallback",
			"breaker", g.breaker.Name(),
		)
	}
}

// failure reports whether the caller should use the fallback.
func (g *Guarded) failure(ctx context.Context, err error) bool {
	useFallback, change := g.breaker.RecordFailure()
	if change.Opened {
		g.logger.WarnContext(ctx, "idempotency store unavailable, using in-process fallback",
			"breaker", g.breaker.Name(),
			"error", err,
		)
	}
	return useFallback
}
