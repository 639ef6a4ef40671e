package timering

import (
	"errors"

	"audioring/audiobuf"
)

// Outcomes of Store/Fetch. All are ordinary results: over- and underrun are
// expected operating conditions in an audio pipeline. They are returned
// unwrapped so the real-time path never allocates.
var (
	// ErrCapacityExceeded: Store asked for more frames than the ring holds.
	ErrCapacityExceeded = audiobuf.ErrCapacityExceeded

	// ErrTooLate: the requested frames were already overwritten.
	ErrTooLate = errors.New("timering: requested frames already overwritten")

	// ErrTooEarly: the requested frames have not been produced yet.
	ErrTooEarly = errors.New("timering: requested frames not yet produced")

	// ErrNotReady: nothing has been stored since construction or Reset.
	ErrNotReady = errors.New("timering: no frames stored yet")

	// ErrBoundsUnstable: the producer republished the time bounds faster
	// than a consistent snapshot could be read. Retry.
	ErrBoundsUnstable = errors.New("timering: time bounds changed during read")
)

// IsUnderrun reports whether err means the reader is out of step with the
// producer (too late or too early).
func IsUnderrun(err error) bool {
	return err == ErrTooLate || err == ErrTooEarly
}

// IsRetryable reports whether retrying the same Fetch later can succeed.
func IsRetryable(err error) bool {
	return err == ErrTooEarly || err == ErrNotReady || err == ErrBoundsUnstable
}
