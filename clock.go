package breaking

import (
	"fmt"
	"sync"
	"time"
)

// Clock is the time source used by TokenBucket. Implementations must
// return non-decreasing values between successive calls; only deltas are
// meaningful, not absolute values or calendar time.
type Clock interface {
	SecondsSinceEpoch() float64
}

// MonotonicClock is a Clock backed by the runtime's monotonic clock.
// Readings are relative to the instant the clock was created and are
// immune to wall-clock adjustments. Safe for concurrent use.
type MonotonicClock struct {
	start time.Time
}

// NewMonotonicClock creates a MonotonicClock whose epoch is now.
func NewMonotonicClock() *MonotonicClock {
	return &MonotonicClock{start: time.Now()}
}

// SecondsSinceEpoch returns the seconds elapsed since the clock was created.
func (c *MonotonicClock) SecondsSinceEpoch() float64 {
	return time.Since(c.start).Seconds()
}

// MockClock is a Clock that only moves when Advance is called. Inject it
// with WithClock to test time-dependent behavior without real delays.
// Safe for concurrent use.
type MockClock struct {
	mu  sync.Mutex
	now float64
}

// NewMockClock creates a MockClock at time zero.
func NewMockClock() *MockClock {
	return &MockClock{}
}

// SecondsSinceEpoch returns the stored time value.
func (c *MockClock) SecondsSinceEpoch() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by n seconds. Panics if n is negative;
// clocks cannot go backwards.
func (c *MockClock) Advance(n float64) {
	if n < 0 {
		panic(fmt.Sprintf("breaking: MockClock.Advance(%v): clock cannot go backwards", n))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += n
}
