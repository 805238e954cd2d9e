// Package breaking provides two composable resilience primitives: a
// token-bucket error limiter and a circuit breaker built on top of it.
//
// breaking protects callers of unreliable downstreams by:
//
//   - Budgeting Failures: classified errors drain a token bucket
//   - Fast Rejection: an exhausted budget rejects calls before they start
//   - Automatic Recovery: tokens restore over time, no reset call needed
//   - Deterministic Testing: an injectable clock removes real delays
//   - Lifecycle Hooks: OnCall, OnReject for observability
//
// # Quick Start
//
// Create a breaker that tolerates 5 failures per 1-second window and
// protect calls with it:
//
//	brk, err := breaking.New("payment-service", 5, 1)
//	if err != nil {
//	    return err
//	}
//
//	err = brk.Do(ctx, func(ctx context.Context) error {
//	    return client.Charge(ctx, amount)
//	})
//	if breaking.IsBlocked(err) {
//	    return handleFallback()
//	}
//
// For functions that return values, use the generic Run helper:
//
//	user, err := breaking.Run(ctx, brk, func(ctx context.Context) (*User, error) {
//	    return client.GetUser(ctx, id)
//	})
//
// # How Blocking Works
//
// The breaker has no stored open/closed state and no timers. It owns a
// TokenBucket sized to the error threshold, restoring tokens at
// threshold/window per second. Every classified failure takes one token;
// the breaker blocks exactly while the bucket is empty. Because
// restoration is computed lazily from elapsed clock time on each check,
// the breaker starts allowing calls again on its own once enough time has
// passed since the failures.
//
//	Allowing:  bucket has at least one token; calls run
//	Blocking:  bucket is empty; calls fail immediately with ErrBlocked
//
// # Failure Classification
//
// By default, any non-nil error counts against the budget. Narrow this
// with If; errors that don't match still propagate to the caller, they
// just don't consume budget:
//
//	brk, err := breaking.New("api", 5, 1,
//	    breaking.If(func(err error) bool {
//	        return errors.Is(err, ErrTimeout) || errors.Is(err, ErrUnavailable)
//	    }),
//	)
//
// Use IfNot to exclude certain errors:
//
//	// Don't count 404s as failures
//	brk, err := breaking.New("api", 5, 1,
//	    breaking.IfNot(func(err error) bool {
//	        return errors.Is(err, ErrNotFound)
//	    }),
//	)
//
// # Scoped Calls Without Do
//
// Acquire and Release expose the guard directly for call sites that don't
// fit a closure:
//
//	if err := brk.Acquire(); err != nil {
//	    return err // ErrBlocked; the operation never ran
//	}
//	res, opErr := doTheCall()
//	brk.Release(opErr)
//	return opErr
//
// RecordFailure counts a failure without the acquire/release pair, for
// failure signals that don't surface as an error from a protected call:
//
//	if resp.StatusCode >= 500 {
//	    brk.RecordFailure()
//	}
//
// # Using the Bucket Directly
//
// TokenBucket stands alone as a rate/error limiter:
//
//	bucket, err := breaking.NewTokenBucket(100, 10.0)
//	ok, err := bucket.HasTokensLeft(1)
//	err = bucket.Take(1) // ErrCapacityExceeded when empty
//
// Note that restoration credits whole tokens only and advances its
// bookkeeping timestamp on every access, so time worth less than one
// token is discarded rather than carried over. Under very frequent
// polling with fractional rates this under-restores slightly; it is the
// conservative behavior to have under contention.
//
// # Testing
//
// Inject a MockClock to control time in tests:
//
//	clock := breaking.NewMockClock()
//	brk, _ := breaking.New("test", 5, 1, breaking.WithClock(clock))
//
//	// Exhaust the budget...
//	clock.Advance(1.0) // one window later the breaker allows calls again
//
// # Lifecycle Hooks
//
// Hooks provide observability without coupling to a specific logger or
// metrics system:
//
//	brk, err := breaking.New("service", 5, 1,
//	    breaking.OnCall(func(name string, err error) {
//	        if err != nil {
//	            metrics.Increment("breaker.failure", "breaker:"+name)
//	        }
//	    }),
//	    breaking.OnReject(func(name string) {
//	        metrics.Increment("breaker.rejected", "breaker:"+name)
//	    }),
//	)
//
// # Distributed Buckets
//
// The core bucket is single-process. For sharing a budget across
// processes, the redisbucket subpackage hosts the same token-bucket
// contract in Redis, updated atomically by a server-side script.
package breaking
