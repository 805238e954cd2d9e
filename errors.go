package breaking

import "errors"

var (
	// ErrInvalidArgument is returned when a constructor or operation is
	// given an out-of-range or non-finite parameter. It is never retried
	// internally; the call is rejected before any state changes.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrCapacityExceeded is returned by TokenBucket.Take when fewer
	// tokens remain than were requested. The bucket is left unchanged.
	ErrCapacityExceeded = errors.New("bucket capacity exceeded")

	// ErrBlocked is returned by the breaker when the error budget is
	// exhausted and a call is rejected before it starts.
	ErrBlocked = errors.New("too many errors: blocking execution")
)

// IsBlocked reports whether err is because the breaker rejected the call.
func IsBlocked(err error) bool {
	return errors.Is(err, ErrBlocked)
}
