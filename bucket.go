package breaking

import (
	"fmt"
	"math"
	"sync"
)

// TokenBucket holds a capped counter that drains on Take and refills over
// time at a fixed rate. Refill is lazy: it is computed from elapsed clock
// time at the start of every operation, so no background timer runs.
// Safe for concurrent use.
type TokenBucket struct {
	capacityMax   int
	restoreRateHz float64
	clock         Clock

	mu              sync.Mutex
	capacityCurrent int
	lastRestore     float64
}

// NewTokenBucket creates a full bucket holding capacityMax tokens that
// restores restoreRateHz tokens per second. capacityMax must be at least 1
// and restoreRateHz at least 1 and finite; anything else is rejected with
// ErrInvalidArgument.
func NewTokenBucket(capacityMax int, restoreRateHz float64, opts ...BucketOption) (*TokenBucket, error) {
	if capacityMax < 1 {
		return nil, fmt.Errorf("%w: capacity_max must be >= 1, got %d", ErrInvalidArgument, capacityMax)
	}
	if math.IsNaN(restoreRateHz) || math.IsInf(restoreRateHz, 0) {
		return nil, fmt.Errorf("%w: restore_rate_hz must be finite, got %v", ErrInvalidArgument, restoreRateHz)
	}
	if restoreRateHz < 1 {
		return nil, fmt.Errorf("%w: restore_rate_hz must be >= 1, got %v", ErrInvalidArgument, restoreRateHz)
	}

	cfg := bucketConfig{clock: NewMonotonicClock()}
	for _, opt := range opts {
		opt(&cfg)
	}

	b := &TokenBucket{
		capacityMax:     capacityMax,
		restoreRateHz:   restoreRateHz,
		clock:           cfg.clock,
		capacityCurrent: capacityMax,
	}
	b.lastRestore = b.clock.SecondsSinceEpoch()
	return b, nil
}

// HasTokensLeft reports whether n tokens could be taken right now. It
// first applies the lazy restore, so the call mutates internal bookkeeping
// even though it takes nothing. n must be at least 1.
func (b *TokenBucket) HasTokensLeft(n int) (bool, error) {
	if n < 1 {
		return false, fmt.Errorf("%w: n must be >= 1, got %d", ErrInvalidArgument, n)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.restore()
	return b.capacityCurrent-n >= 0, nil
}

// Take removes n tokens from the bucket. If fewer than n tokens remain it
// returns ErrCapacityExceeded and the count is left unchanged; Take never
// clamps a partial withdrawal. n must be at least 1.
func (b *TokenBucket) Take(n int) error {
	if n < 1 {
		return fmt.Errorf("%w: n must be >= 1, got %d", ErrInvalidArgument, n)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.restore()
	if b.capacityCurrent-n < 0 {
		return fmt.Errorf("%w: requested %d, have %d", ErrCapacityExceeded, n, b.capacityCurrent)
	}
	b.capacityCurrent -= n
	return nil
}

// restore credits whole tokens for the time elapsed since the previous
// restore. lastRestore always advances to now, even when the elapsed time
// is worth less than one token, so sub-token fractions are discarded
// rather than accumulated. Must be called with b.mu held.
func (b *TokenBucket) restore() {
	now := b.clock.SecondsSinceEpoch()
	elapsed := now - b.lastRestore

	// Clamp before converting: a long idle stretch times a high rate can
	// overflow int.
	restored := math.Floor(elapsed * b.restoreRateHz)
	restorable := b.capacityMax
	if restored < float64(b.capacityMax) {
		restorable = int(restored)
	}
	if restorable < 0 {
		restorable = 0
	}

	b.capacityCurrent += restorable
	if b.capacityCurrent > b.capacityMax {
		b.capacityCurrent = b.capacityMax
	}
	b.lastRestore = now
}

// CapacityMax returns the bucket's maximum token count.
func (b *TokenBucket) CapacityMax() int {
	return b.capacityMax
}

// RestoreRateHz returns the restore rate in tokens per second.
func (b *TokenBucket) RestoreRateHz() float64 {
	return b.restoreRateHz
}

// Remaining returns the current token count after applying the lazy
// restore. The value is a snapshot and may be stale immediately under
// concurrent use.
func (b *TokenBucket) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.restore()
	return b.capacityCurrent
}
