package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// releaseScript deletes a key only while it is still a reservation, so a late
// Release never removes a completed record.
var releaseScript = redis.NewScript(`
local v = redis.call("GET", KEYS[1])
if not v then return 0 end
local ok, rec = pcall(cjson.decode, v)
if ok and rec["in_progress"] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a Store shared by all service replicas. Reservations use SET NX.
type Redis struct {
	client redis.UniversalClient
}

func NewRedis(client redis.UniversalClient) *Redis {
	return &Redis{client: client}
}

func (s *Redis) Reserve(ctx context.Context, key, fingerprint string) (Record, bool, error) {
	rec := Record{InProgress: true, Fingerprint: fingerprint}
	raw, err := json.Marshal(rec)
	if err != nil {
		return Record{}, false, fmt.Errorf("marshal idempotency record: %w", err)
	}
	ok, err := s.client.SetNX(ctx, key, raw, ProvisionalTTL).Result()
	if err != nil {
		return Record{}, false, fmt.Errorf("reserve idempotency key: %w", err)
	}
	if ok {
		return rec, true, nil
	}

	existing, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		// Expired between SETNX and GET: try once more.
		ok, err = s.client.SetNX(ctx, key, raw, ProvisionalTTL).Result()
		if err != nil {
			return Record{}, false, fmt.Errorf("reserve idempotency key: %w", err)
		}
		if ok {
			return rec, true, nil
		}
		existing, err = s.client.Get(ctx, key).Bytes()
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("load idempotency key: %w", err)
	}
	var stored Record
	if err := json.Unmarshal(existing, &stored); err != nil {
		return Record{}, false, fmt.Errorf("decode idempotency record: %w", err)
	}
	return stored, false, nil
}

func (s *Redis) Complete(ctx context.Context, key string, rec Record, ttl time.Duration) error {
	rec.InProgress = false
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal idempotency record: %w", err)
	}
	if err := s.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("complete idempotency key: %w", err)
	}
	return nil
}

func (s *Redis) Release(ctx context.Context, key string) error {
	if err := releaseScript.Run(ctx, s.client, []string{key}).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}
