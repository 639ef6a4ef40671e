// ============================================================================
// TIME BOUNDS PUBLICATION
// ============================================================================
//
// The producer publishes its bounds through a small queue of snapshots
// instead of one mutable pair, so a reader never has to lock:
//
//   Producer (publish)                    Reader (snapshot)
//   ------------------                    -----------------
//   next = counter + 1                    c  = counter            (acquire)
//   e    = queue[next & mask]             e  = queue[c & mask]
//   e.seq = 0          (invalidate)       s1 = e.seq              == c ?
//   e.start, e.end, e.floor = ...         copy start, end, floor
//   e.seq = next       (release)          s2 = e.seq              == c ?
//   counter = next     (release)          accept when s1 == s2 == c
//
// An entry is only rewritten after TimeBoundsQueueSize further publishes, so
// a reader normally succeeds on its first attempt. counter == 0 means no
// bounds were ever published (Uninitialized).
//
// floor is the oldest sample time whose ring slot has not been handed to a
// newer frame. At rest it equals end-capacity; while a Store is copying it
// already points past the slots being overwritten.

package timering

import (
	"sync/atomic"

	"audioring/constants"
)

// span is one consistent view of the bounds.
type span struct {
	start int64 // first written frame
	end   int64 // one past the last written frame
	floor int64 // oldest frame not yet overwritten
}

// boundsEntry is one published snapshot.
type boundsEntry struct {
	start atomic.Int64
	end   atomic.Int64
	floor atomic.Int64
	seq   atomic.Uint64
}

// boundsQueue holds the snapshots and the publication counter.
type boundsQueue struct {
	entries [constants.TimeBoundsQueueSize]boundsEntry
	counter atomic.Uint64
}

// publish makes sp the current bounds. Producer only.
//
//go:nosplit
func (q *boundsQueue) publish(sp span) {
	next := q.counter.Load() + 1
	e := &q.entries[next&constants.TimeBoundsQueueMask]
	e.seq.Store(0)
	e.start.Store(sp.start)
	e.end.Store(sp.end)
	e.floor.Store(sp.floor)
	e.seq.Store(next)
	q.counter.Store(next)
}

// snapshot returns a consistent copy of the current bounds.
//
//go:nosplit
func (q *boundsQueue) snapshot() (span, error) {
	for i := 0; i < constants.TimeBoundsRetries; i++ {
		c := q.counter.Load()
		if c == 0 {
			return span{}, ErrNotReady
		}
		e := &q.entries[c&constants.TimeBoundsQueueMask]
		if e.seq.Load() != c {
			continue
		}
		sp := span{start: e.start.Load(), end: e.end.Load(), floor: e.floor.Load()}
		if e.seq.Load() == c {
			return sp, nil
		}
	}
	return span{}, ErrBoundsUnstable
}

// published returns how many times bounds were published.
func (q *boundsQueue) published() uint64 {
	return q.counter.Load()
}

// reset returns the queue to the Uninitialized state. Not concurrent-safe.
func (q *boundsQueue) reset() {
	for i := range q.entries {
		e := &q.entries[i]
		e.start.Store(0)
		e.end.Store(0)
		e.floor.Store(0)
		e.seq.Store(0)
	}
	q.counter.Store(0)
}
