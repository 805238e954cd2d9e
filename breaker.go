package breaking

import (
	"context"
	"fmt"
)

// Func is the function signature for protected operations.
type Func func(ctx context.Context) error

// Condition determines whether an error counts against the error budget.
type Condition func(error) bool

// OnCallFunc is called after each permitted call completes.
type OnCallFunc func(name string, err error)

// OnRejectFunc is called when a call is rejected because the breaker
// is blocking execution.
type OnRejectFunc func(name string)

// Breaker stops forwarding calls to a failing dependency once a budget of
// classified failures over a time window is exhausted. The budget is a
// TokenBucket: each classified failure takes a token, and tokens restore
// at errorThreshold/timeWindowSecs per second, so blocking ends on its own
// once enough time has passed.
//
// Whether the breaker is allowing or blocking is derived from the bucket
// on every check; there is no stored state to drift out of sync and no
// background timer. Safe for concurrent use.
type Breaker struct {
	name   string
	cfg    config
	bucket *TokenBucket
}

// New creates a Breaker that tolerates errorThreshold classified failures
// per timeWindowSecs seconds. Both must be at least 1, and the derived
// restore rate errorThreshold/timeWindowSecs must itself be at least 1;
// otherwise New returns ErrInvalidArgument.
func New(name string, errorThreshold, timeWindowSecs int, opts ...Option) (*Breaker, error) {
	if errorThreshold < 1 {
		return nil, fmt.Errorf("%w: error_threshold must be >= 1, got %d", ErrInvalidArgument, errorThreshold)
	}
	if timeWindowSecs < 1 {
		return nil, fmt.Errorf("%w: time_window_secs must be >= 1, got %d", ErrInvalidArgument, timeWindowSecs)
	}

	cfg := config{
		condition: defaultCondition,
		clock:     NewMonotonicClock(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	restoreRateHz := float64(errorThreshold) / float64(timeWindowSecs)
	bucket, err := NewTokenBucket(errorThreshold, restoreRateHz, WithBucketClock(cfg.clock))
	if err != nil {
		return nil, err
	}

	return &Breaker{
		name:   name,
		cfg:    cfg,
		bucket: bucket,
	}, nil
}

// Do executes fn with breaker protection. If the breaker is blocking, fn
// is never invoked and Do returns ErrBlocked. Otherwise fn runs and its
// error, if classified as a failure, consumes one token of the budget.
// fn's error is always returned unchanged.
func (b *Breaker) Do(ctx context.Context, fn Func) error {
	if err := b.Acquire(); err != nil {
		return err
	}

	var fnErr error
	defer func() {
		b.Release(fnErr)
	}()

	fnErr = fn(ctx)
	return fnErr
}

// Acquire begins a protected call. It returns ErrBlocked, wrapped with
// the breaker's name, when the error budget is exhausted; the caller must
// not run the protected operation in that case. On success the caller is
// responsible for calling Release exactly once when the operation ends.
func (b *Breaker) Acquire() error {
	if b.Blocking() {
		if b.cfg.onReject != nil {
			b.cfg.onReject(b.name)
		}
		return fmt.Errorf("breaker %q: %w", b.name, ErrBlocked)
	}
	return nil
}

// Release ends a protected call. err is the outcome of the operation: nil
// for success, otherwise the operation's error. A non-nil err matching the
// configured condition counts against the budget. Release never alters or
// wraps err; the caller keeps handling the original error.
func (b *Breaker) Release(err error) {
	if err != nil && b.cfg.condition(err) {
		b.RecordFailure()
	}
	if b.cfg.onCall != nil {
		b.cfg.onCall(b.name, err)
	}
}

// RecordFailure counts one failure against the error budget. It can be
// called directly for failure signals that don't surface as errors from a
// protected call. When the budget is already empty the extra failure is
// dropped: a concurrent caller got there first, and there is nothing left
// to record it in.
func (b *Breaker) RecordFailure() {
	// ErrCapacityExceeded here means a lost race, not a caller error.
	_ = b.bucket.Take(1)
}

// Allowing reports whether the breaker would permit a call right now.
func (b *Breaker) Allowing() bool {
	ok, _ := b.bucket.HasTokensLeft(1)
	return ok
}

// Blocking reports whether the breaker would reject a call right now.
func (b *Breaker) Blocking() bool {
	return !b.Allowing()
}

// Name returns the breaker name.
func (b *Breaker) Name() string {
	return b.name
}

// Budget returns how many classified failures the breaker will still
// tolerate before blocking.
func (b *Breaker) Budget() int {
	return b.bucket.Remaining()
}

func defaultCondition(err error) bool {
	return err != nil
}
