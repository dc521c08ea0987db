package idempotency_test

//go:generate mockgen -source=idempotency.go -destination=mocks/mocks.go -package=mocks Store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"kycreview/internal/cases/idempotency"
	"kycreview/internal/cases/idempotency/mocks"
	"kycreview/pkg/platform/circuit"
)

var errDown = errors.New("connection refused")

func TestGuardedFallsBackWhenPrimaryIsDown(t *testing.T) {
	ctx := context.Background()
	primary := mocks.NewMockStore(gomock.NewController(t))
	breaker := circuit.New("idempotency", circuit.WithFailureThreshold(2), circuit.WithSuccessThreshold(1))
	g := idempotency.NewGuarded(primary, idempotency.NewInMemory(), breaker, nil)

	gomock.InOrder(
		primary.EXPECT().Reserve(gomock.Any(), "k1", "fp").Return(idempotency.Record{}, false, errDown).Times(2),
		primary.EXPECT().Complete(gomock.Any(), "k1", gomock.Any(), time.Minute).Return(errDown),
		primary.EXPECT().Reserve(gomock.Any(), "k1", "fp").Return(idempotency.Record{}, false, errDown),
		primary.EXPECT().Reserve(gomock.Any(), "k2", "fp").Return(idempotency.Record{}, true, nil),
	)

	_, _, err := g.Reserve(ctx, "k1", "fp")
	require.ErrorIs(t, err, errDown, "below threshold the error surfaces")

	_, reserved, err := g.Reserve(ctx, "k1", "fp")
	require.NoError(t, err)
	assert.True(t, reserved)
	assert.True(t, breaker.IsOpen())

	require.NoError(t, g.Complete(ctx, "k1", idempotency.Record{Fingerprint: "fp", Payload: []byte("x")}, time.Minute))
	rec, reserved, err := g.Reserve(ctx, "k1", "fp")
	require.NoError(t, err)
	assert.False(t, reserved, "fallback replays while degraded")
	assert.Equal(t, []byte("x"), rec.Payload)

	_, reserved, err = g.Reserve(ctx, "k2", "fp")
	require.NoError(t, err)
	assert.True(t, reserved)
	assert.False(t, breaker.IsOpen())
}

func TestGuardedReleaseClearsFallbackReservation(t *testing.T) {
	ctx := context.Background()
	primary := mocks.NewMockStore(gomock.NewController(t))
	fallback := idempotency.NewInMemory()
	g := idempotency.NewGuarded(primary, fallback, circuit.New("idempotency", circuit.WithFailureThreshold(1)), nil)

	gomock.InOrder(
		primary.EXPECT().Reserve(gomock.Any(), "k", "fp").Return(idempotency.Record{}, false, errDown),
		primary.EXPECT().Release(gomock.Any(), "k").Return(nil),
	)

	_, reserved, err := g.Reserve(ctx, "k", "fp")
	require.NoError(t, err)
	require.True(t, reserved)

	require.NoError(t, g.Release(ctx, "k"))

	_, reserved, err = fallback.Reserve(ctx, "k", "fp")
	require.NoError(t, err)
	assert.True(t, reserved, "fallback reservation was released")
}

func TestGuardedCompleteOnRecoveredPrimary(t *testing.T) {
	ctx := context.Background()
	primary := mocks.NewMockStore(gomock.NewController(t))
	fallback := idempotency.NewInMemory()
	g := idempotency.NewGuarded(primary, fallback, circuit.New("idempotency", circuit.WithFailureThreshold(1)), nil)

	_, reserved, err := fallback.Reserve(ctx, "k", "fp")
	require.NoError(t, err)
	require.True(t, reserved)

	rec := idempotency.Record{Fingerprint: "fp", Payload: []byte("{}")}
	primary.EXPECT().Complete(gomock.Any(), "k", rec, time.Hour).Return(nil)
	require.NoError(t, g.Complete(ctx, "k", rec, time.Hour))

	_, reserved, err = fallback.Reserve(ctx, "k", "fp")
	require.NoError(t, err)
	assert.True(t, reserved, "a degraded-mode reservation does not outlive recovery")
}
