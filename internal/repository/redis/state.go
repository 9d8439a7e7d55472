// Package redis stores checkout state in Redis so that every BFF replica
// sees the same flow for a caller.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/032-extremist/redcart-checkout/internal/domain"
	"github.com/032-extremist/redcart-checkout/internal/repository"
	"github.com/032-extremist/redcart-checkout/pkg/database"
)

const (
	stateKeyPrefix   = "checkout:state:"
	versionKeyPrefix = "checkout:version:"
	lockKeyPrefix    = "checkout:lock:"
)

// saveScript writes the state and its version only while the stored version
// (missing counts as 0) equals ARGV[1]. ARGV[4] is the TTL in milliseconds.
var saveScript = redis.NewScript(`
local current = redis.call('GET', KEYS[2]) or '0'
if current ~= ARGV[1] then
	return 0
end
if tonumber(ARGV[4]) > 0 then
	redis.call('SET', KEYS[1], ARGV[3], 'PX', ARGV[4])
	redis.call('SET', KEYS[2], ARGV[2], 'PX', ARGV[4])
else
	redis.call('SET', KEYS[1], ARGV[3])
	redis.call('SET', KEYS[2], ARGV[2])
end
return 1
`)

// releaseScript deletes the lock only while it still carries the caller's
// token.
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// StateRepository implements repository.StateRepository using Redis.
type StateRepository struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewStateRepository creates a Redis-backed state store. States expire ttl
// after their last save.
func NewStateRepository(client redis.Cmdable, ttl time.Duration) *StateRepository {
	return &StateRepository{
		client: client,
		ttl:    ttl,
	}
}

// Get retrieves the caller's state from Redis.
func (r *StateRepository) Get(ctx context.Context, key string) (_ *domain.OrchestrationState, err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemRedis, "GetState", "GET "+stateKeyPrefix+"*")
	defer func() { end(err) }()

	data, err := r.client.Get(ctx, stateKeyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.NewState(), nil
		}
		return nil, fmt.Errorf("redis get checkout state: %w", err)
	}

	var state domain.OrchestrationState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("unmarshal checkout state: %w", err)
	}
	return &state, nil
}

// Save persists the state with the configured TTL if the stored version is
// still expected.
func (r *StateRepository) Save(ctx context.Context, key string, state *domain.OrchestrationState, expected int64) (err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemRedis, "SaveState", "EVALSHA save "+stateKeyPrefix+"*")
	defer func() { end(err) }()

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal checkout state: %w", err)
	}

	saved, err := saveScript.Run(ctx, r.client,
		[]string{stateKeyPrefix + key, versionKeyPrefix + key},
		expected, state.Version, data, r.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return fmt.Errorf("redis set checkout state: %w", err)
	}
	if saved == 0 {
		return repository.ErrStaleState
	}
	return nil
}

// Delete removes the caller's state.
func (r *StateRepository) Delete(ctx context.Context, key string) (err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemRedis, "DeleteState", "DEL "+stateKeyPrefix+"*")
	defer func() { end(err) }()

	if err := r.client.Del(ctx, stateKeyPrefix+key, versionKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("redis del checkout state: %w", err)
	}
	return nil
}

// Acquire takes the action lock with SET NX and an expiry, so a crashed
// replica never holds it longer than ttl.
func (r *StateRepository) Acquire(ctx context.Context, key, token string, ttl time.Duration) (_ bool, err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemRedis, "AcquireLock", "SET "+lockKeyPrefix+"* NX")
	defer func() { end(err) }()

	ok, err := r.client.SetNX(ctx, lockKeyPrefix+key, token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis acquire checkout lock: %w", err)
	}
	return ok, nil
}

// Release drops the action lock if token still owns it.
func (r *StateRepository) Release(ctx context.Context, key, token string) (err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemRedis, "ReleaseLock", "EVALSHA release "+lockKeyPrefix+"*")
	defer func() { end(err) }()

	if err := releaseScript.Run(ctx, r.client, []string{lockKeyPrefix + key}, token).Err(); err != nil {
		return fmt.Errorf("redis release checkout lock: %w", err)
	}
	return nil
}

// Ping checks the connection.
func (r *StateRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
