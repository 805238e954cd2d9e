// Package redisbucket hosts the token-bucket contract in Redis so that a
// budget can be shared across processes. The restore-check-take sequence
// runs as a single server-side Lua script, so each call is atomic with
// respect to other clients of the same key. The Redis server's own clock
// drives restoration.
package redisbucket

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/breakerhq/breaking"
)

// tokenBucketScript restores whole tokens for the time elapsed since the
// last restore, clamps to capacity, then attempts to take n tokens. It
// returns {capacity_after, taken} where taken is 1 on success and 0 when
// fewer than n tokens remained (in which case nothing is written back
// except on the n=0 read path, which always succeeds).
var tokenBucketScript = redis.NewScript(`
local capacity_current_key = KEYS[1]
local last_restore_key = KEYS[2]

local capacity_max = tonumber(ARGV[1])
local restore_rate_hz = tonumber(ARGV[2])
local n = tonumber(ARGV[3])
local ttl_ms = tonumber(ARGV[4])

-- Lua table of two strings: {seconds, microseconds}.
local now = redis.call("TIME")
now = tonumber(now[1]) + (tonumber(now[2]) / 1000000)

local last_restore = tonumber(redis.call("GET", last_restore_key)) or now
local capacity_current = tonumber(redis.call("GET", capacity_current_key))
    or capacity_max

local elapsed = now - last_restore
local restorable = math.floor(elapsed * restore_rate_hz)
if restorable < 0 then
    restorable = 0
end
if restorable > capacity_max then
    restorable = capacity_max
end

capacity_current = math.min(capacity_current + restorable, capacity_max)

if capacity_current - n < 0 then
    return {capacity_current, 0}
end

capacity_current = capacity_current - n

redis.call("SET", capacity_current_key, capacity_current)
redis.call("SET", last_restore_key, tostring(now))
if ttl_ms > 0 then
    redis.call("PEXPIRE", capacity_current_key, ttl_ms)
    redis.call("PEXPIRE", last_restore_key, ttl_ms)
end

return {capacity_current, 1}
`)

// DefaultTTL is how long idle bucket keys persist before Redis expires
// them. A bucket idle for longer than the TTL comes back full.
const DefaultTTL = time.Hour

// Config describes a Redis-hosted bucket.
type Config struct {
	// KeyBase prefixes the two Redis keys holding the bucket state.
	KeyBase string

	// CapacityMax is the maximum token count. Must be at least 1.
	CapacityMax int

	// RestoreRateHz is the restore rate in tokens per second. Must be at
	// least 1 and finite.
	RestoreRateHz float64

	// TTL bounds how long idle bucket keys persist. Zero means
	// DefaultTTL; negative disables expiry.
	TTL time.Duration
}

// Bucket is a token bucket whose counter lives in Redis. All methods are
// safe for concurrent use; atomicity across processes is provided by the
// server-side script.
type Bucket struct {
	client        redis.Scripter
	keyBase       string
	capacityMax   int
	restoreRateHz float64
	ttl           time.Duration
}

// New creates a Redis-hosted bucket on the given client. Parameter
// validation matches breaking.NewTokenBucket and returns
// breaking.ErrInvalidArgument on out-of-range or non-finite values.
func New(client redis.Scripter, cfg Config) (*Bucket, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: client must not be nil", breaking.ErrInvalidArgument)
	}
	if cfg.KeyBase == "" {
		return nil, fmt.Errorf("%w: key base must not be empty", breaking.ErrInvalidArgument)
	}
	if cfg.CapacityMax < 1 {
		return nil, fmt.Errorf("%w: capacity_max must be >= 1, got %d", breaking.ErrInvalidArgument, cfg.CapacityMax)
	}
	if math.IsNaN(cfg.RestoreRateHz) || math.IsInf(cfg.RestoreRateHz, 0) {
		return nil, fmt.Errorf("%w: restore_rate_hz must be finite, got %v", breaking.ErrInvalidArgument, cfg.RestoreRateHz)
	}
	if cfg.RestoreRateHz < 1 {
		return nil, fmt.Errorf("%w: restore_rate_hz must be >= 1, got %v", breaking.ErrInvalidArgument, cfg.RestoreRateHz)
	}

	ttl := cfg.TTL
	if ttl == 0 {
		ttl = DefaultTTL
	}

	return &Bucket{
		client:        client,
		keyBase:       cfg.KeyBase,
		capacityMax:   cfg.CapacityMax,
		restoreRateHz: cfg.RestoreRateHz,
		ttl:           ttl,
	}, nil
}

// HasTokensLeft reports whether n tokens could be taken right now. The
// counter is not decremented; the script runs with a zero take, which
// still persists the restore. n must be at least 1.
func (b *Bucket) HasTokensLeft(ctx context.Context, n int) (bool, error) {
	if n < 1 {
		return false, fmt.Errorf("%w: n must be >= 1, got %d", breaking.ErrInvalidArgument, n)
	}

	capacity, _, err := b.run(ctx, 0)
	if err != nil {
		return false, err
	}
	return capacity-n >= 0, nil
}

// Take removes n tokens from the bucket, returning
// breaking.ErrCapacityExceeded when fewer than n remain. n must be at
// least 1.
func (b *Bucket) Take(ctx context.Context, n int) error {
	if n < 1 {
		return fmt.Errorf("%w: n must be >= 1, got %d", breaking.ErrInvalidArgument, n)
	}

	capacity, taken, err := b.run(ctx, n)
	if err != nil {
		return err
	}
	if !taken {
		return fmt.Errorf("%w: requested %d, have %d", breaking.ErrCapacityExceeded, n, capacity)
	}
	return nil
}

// Remaining returns the current token count after restoration.
func (b *Bucket) Remaining(ctx context.Context) (int, error) {
	capacity, _, err := b.run(ctx, 0)
	return capacity, err
}

// CapacityMax returns the bucket's maximum token count.
func (b *Bucket) CapacityMax() int {
	return b.capacityMax
}

func (b *Bucket) run(ctx context.Context, take int) (capacity int, taken bool, err error) {
	keys := []string{
		b.keyBase + ":capacity_current",
		b.keyBase + ":last_restore",
	}
	args := []interface{}{b.capacityMax, b.restoreRateHz, take, b.ttl.Milliseconds()}

	reply, err := tokenBucketScript.Run(ctx, b.client, keys, args...).Slice()
	if err != nil {
		return 0, false, fmt.Errorf("redisbucket: script failed: %w", err)
	}
	if len(reply) != 2 {
		return 0, false, fmt.Errorf("redisbucket: unexpected reply length %d", len(reply))
	}

	capacity64, ok := reply[0].(int64)
	if !ok {
		return 0, false, fmt.Errorf("redisbucket: unexpected capacity reply %T", reply[0])
	}
	taken64, ok := reply[1].(int64)
	if !ok {
		return 0, false, fmt.Errorf("redisbucket: unexpected taken reply %T", reply[1])
	}

	return int(capacity64), taken64 == 1, nil
}
