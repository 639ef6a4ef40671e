// ============================================================================
// TIME-INDEXED AUDIO RING BUFFER
// ============================================================================
//
// Wraps audiobuf.Buffer with published time bounds so consumers address
// audio by absolute sample time instead of tracking a read position.
//
// States:
//   - Uninitialized: nothing stored; Fetch/TimeBounds return ErrNotReady
//   - Active: bounds valid; a contiguous Store extends them
//   - Active-reset: a Store that does not start at the previous end
//     replaces the bounds with its own interval (device restart, clock jump)
//
// Fetch window (half-open everywhere):
//
//      end-capacity        start                     end
//   ───────┼─────────────────┼─────────────────────────┼──────▶ sample time
//   too    │ zero-filled     │ copied from the ring    │ too
//   late   │ (never written  │                         │ early
//          │  since reset)   │                         │
//
// Concurrency:
//   - One producer (Store, Reset); any number of readers (Fetch, TimeBounds,
//     Validate, Stats). Two concurrent producers are undefined behavior.
//   - No locks, no allocation, no blocking. Bounds are published after the
//     copy with release ordering and read with acquire ordering.
//   - Before a Store overwrites live frames it publishes a raised floor, so
//     a reader racing a producer that laps it fails Validate after the copy.

package timering

import (
	"audioring/audiobuf"
	"audioring/constants"

	"golang.org/x/sys/cpu"
)

// Buffer is a time-indexed multichannel ring.
type Buffer struct {
	ring     *audiobuf.Buffer
	capacity int64

	// producer-private view of the last published bounds
	_      cpu.CacheLinePad
	start  int64
	end    int64
	active bool

	_      cpu.CacheLinePad
	bounds boundsQueue

	stats counters
}

// New builds a ring for format with at least capacityFrames frames
// (rounded up to a power of two).
func New(format audiobuf.Format, capacityFrames int) *Buffer {
	if capacityFrames == 0 {
		capacityFrames = constants.DefaultCapacityFrames
	}
	ring := audiobuf.New(format, capacityFrames)
	return &Buffer{
		ring:     ring,
		capacity: ring.Capacity(),
	}
}

// Capacity returns the frame capacity (a power of two).
func (b *Buffer) Capacity() int64 { return b.capacity }

// Format returns the frame format.
func (b *Buffer) Format() audiobuf.Format { return b.ring.Format() }

// Stats returns a copy of the counters.
func (b *Buffer) Stats() Stats { return b.stats.snapshot() }

// LockMemory pins the ring storage in RAM (see bytering.Store.LockMemory).
func (b *Buffer) LockMemory() error { return b.ring.LockMemory() }

// UnlockMemory undoes LockMemory.
func (b *Buffer) UnlockMemory() error { return b.ring.UnlockMemory() }

// endOf returns t+n, panicking on int64 overflow.
func endOf(t int64, n int) int64 {
	if n <= 0 {
		panic("timering: frame count must be >0")
	}
	e := t + int64(n)
	if e < t {
		panic("timering: sample time overflow")
	}
	return e
}

// ============================================================================
// PRODUCER
// ============================================================================

// Store copies frameCount frames from buffers into the ring as sample times
// [startTime, startTime+frameCount) and publishes the new bounds.
//
// A Store starting exactly at the previous end extends the bounds; any
// other start time replaces them. frameCount above Capacity fails with
// ErrCapacityExceeded and leaves bounds and contents untouched.
//
// Producer thread only.
func (b *Buffer) Store(buffers [][]byte, frameCount int, startTime int64) error {
	endTime := endOf(startTime, frameCount)
	if int64(frameCount) > b.capacity {
		b.stats.capacityExceeded.Add(1)
		return ErrCapacityExceeded
	}

	floor := endTime - b.capacity
	newStart := startTime
	switch {
	case b.active && startTime == b.end:
		newStart = b.start
		if floor > newStart {
			newStart = floor
			// Retire the frames about to be overwritten before touching them.
			b.bounds.publish(span{start: newStart, end: b.end, floor: floor})
		}
	case b.active:
		b.stats.discontinuities.Add(1)
		// Old contents stop being addressable before the copy starts.
		b.bounds.publish(span{start: startTime, end: startTime, floor: startTime - b.capacity})
		if startTime > b.end {
			// Clear slots the gap skips that this Store will not overwrite.
			gap := b.end
			if floor > gap {
				gap = floor
			}
			if n := startTime - gap; n > 0 {
				b.ring.ZeroRing(gap, int(n))
				b.stats.framesZeroed.Add(uint64(n))
			}
		}
	}

	if err := b.ring.Store(buffers, startTime, frameCount); err != nil {
		return err
	}

	b.start, b.end, b.active = newStart, endTime, true
	b.bounds.publish(span{start: newStart, end: endTime, floor: floor})

	b.stats.stores.Add(1)
	b.stats.framesStored.Add(uint64(frameCount))
	return nil
}

// Reset returns the ring to Uninitialized and zeroes its contents.
// Not safe while readers or the producer are running.
func (b *Buffer) Reset() {
	b.ring.Reset()
	b.bounds.reset()
	b.stats.reset()
	b.start, b.end, b.active = 0, 0, false
}

// ============================================================================
// CONSUMERS
// ============================================================================

// TimeBounds returns the published [start, end) interval.
func (b *Buffer) TimeBounds() (startTime, endTime int64, err error) {
	sp, err := b.bounds.snapshot()
	if err != nil {
		return 0, 0, err
	}
	return sp.start, sp.end, nil
}

// Fetch copies the frames for sample times [startTime, startTime+frameCount)
// into buffers.
//
// Requests reaching below end-Capacity fail with ErrTooLate, requests
// reaching past end fail with ErrTooEarly. Frames inside the capacity window
// but before the published start (stream start, after a reset) are returned
// as silence.
func (b *Buffer) Fetch(buffers [][]byte, frameCount int, startTime int64) error {
	reqEnd := endOf(startTime, frameCount)
	b.stats.fetches.Add(1)

	sp, err := b.bounds.snapshot()
	if err == nil {
		err = check(startTime, reqEnd, sp)
	}
	if err != nil {
		b.stats.countFetchError(err)
		return err
	}

	copied := 0
	if startTime < sp.start {
		silent := frameCount
		if reqEnd > sp.start {
			silent = int(sp.start - startTime)
		}
		b.ring.ZeroFrames(buffers, 0, silent)
		b.stats.zeroFilledFrames.Add(uint64(silent))
		copied = silent
	}
	if copied < frameCount {
		if err := b.ring.FetchAt(buffers, copied, startTime+int64(copied), frameCount-copied); err != nil {
			return err
		}
	}

	b.stats.framesFetched.Add(uint64(frameCount))
	return nil
}

// Validate re-checks [startTime, startTime+frameCount) against the current
// bounds. Call it after Fetch to detect a producer that overwrote the range
// while it was being copied.
func (b *Buffer) Validate(startTime int64, frameCount int) error {
	reqEnd := endOf(startTime, frameCount)
	sp, err := b.bounds.snapshot()
	if err != nil {
		return err
	}
	return check(startTime, reqEnd, sp)
}

// check applies the half-open window rules to a request.
//
//go:nosplit
//go:inline
func check(reqStart, reqEnd int64, sp span) error {
	if reqStart < sp.floor {
		return ErrTooLate
	}
	if reqEnd > sp.end {
		return ErrTooEarly
	}
	return nil
}
