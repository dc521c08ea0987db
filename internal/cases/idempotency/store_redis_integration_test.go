//go:build integration

package idempotency_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"kycreview/internal/cases/idempotency"
	"kycreview/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *idempotency.Redis
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.store = idempotency.NewRedis(s.redis.Client)
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisStoreSuite) TestReserveCompleteReplay() {
	ctx := context.Background()
	key := idempotency.Key("C-1001", "req-1")

	_, reserved, err := s.store.Reserve(ctx, key, "fp")
	s.Require().NoError(err)
	s.True(reserved)

	ttl, err := s.redis.Client.TTL(ctx, key).Result()
	s.Require().NoError(err)
	s.LessOrEqual(ttl, idempotency.ProvisionalTTL)

	s.Require().NoError(s.store.Complete(ctx, key, idempotency.Record{Fingerprint: "fp", Payload: []byte(`{"a":1}`)}, time.Hour))
	s.Require().NoError(s.store.Release(ctx, key))

	rec, reserved, err := s.store.Reserve(ctx, key, "fp")
	s.Require().NoError(err)
	s.False(reserved)
	s.False(rec.InProgress)
	s.JSONEq(`{"a":1}`, string(rec.Payload))
}

func (s *RedisStoreSuite) TestReleaseDropsReservation() {
	ctx := context.Background()
	key := idempotency.Key("C-1001", "req-2")

	_, reserved, err := s.store.Reserve(ctx, key, "fp")
	s.Require().NoError(err)
	s.Require().True(reserved)
	s.Require().NoError(s.store.Release(ctx, key))

	_, reserved, err = s.store.Reserve(ctx, key, "fp")
	s.Require().NoError(err)
	s.True(reserved)
}

// TestConcurrentReserve verifies SET NX admits a single writer.
func (s *RedisStoreSuite) TestConcurrentReserve() {
	ctx := context.Background()
	key := idempotency.Key("C-1001", "req-3")

	var wg sync.WaitGroup
	var winners atomic.Int32
	for range 25 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, reserved, err := s.store.Reserve(ctx, key, "fp")
			if err == nil && reserved {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()
	s.Equal(int32(1), winners.Load())
}
