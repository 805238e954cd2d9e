package breaking

type config struct {
	condition Condition
	clock     Clock

	onCall   OnCallFunc
	onReject OnRejectFunc
}

// Option configures a Breaker.
type Option func(*config)

// If sets the condition that determines whether an error counts against
// the error budget. By default, any non-nil error counts. Errors that do
// not match still propagate to the caller; they just don't consume budget.
func If(cond Condition) Option {
	return func(c *config) {
		c.condition = cond
	}
}

// IfNot sets a condition where matching errors do NOT count against the
// budget. This is equivalent to If(Not(cond)).
func IfNot(cond Condition) Option {
	return If(Not(cond))
}

// Not inverts a condition.
func Not(cond Condition) Condition {
	return func(err error) bool {
		return !cond(err)
	}
}

// WithClock sets the clock driving budget restoration. Useful for testing.
func WithClock(clock Clock) Option {
	return func(c *config) {
		c.clock = clock
	}
}

// OnCall sets a hook called after each permitted call completes, with the
// operation's original error (nil on success).
func OnCall(fn OnCallFunc) Option {
	return func(c *config) {
		c.onCall = fn
	}
}

// OnReject sets a hook called when a call is rejected because the breaker
// is blocking execution.
func OnReject(fn OnRejectFunc) Option {
	return func(c *config) {
		c.onReject = fn
	}
}

type bucketConfig struct {
	clock Clock
}

// BucketOption configures a TokenBucket.
type BucketOption func(*bucketConfig)

// WithBucketClock sets the clock used for lazy restoration. Useful for
// testing.
func WithBucketClock(clock Clock) BucketOption {
	return func(c *bucketConfig) {
		c.clock = clock
	}
}
