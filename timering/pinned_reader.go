// ════════════════════════════════════════════════════════════════════════════════════════════════
// ⚡ CORE-PINNED TIME-FOLLOWING READER
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Component: Consumer loop for the time-indexed ring
//
// Description:
//   A reader that owns a sample-time cursor and follows the producer: Fetch at
//   the cursor, validate, deliver, advance. Runs on a locked OS thread pinned
//   to one core so a mixer or file writer keeps predictable latency.
//
// Outcome handling:
//   - nil:                deliver, advance cursor by Frames
//   - ErrTooEarly etc.:   spin (hot) or relax (cold) and retry the same time
//   - ErrTooLate / torn:  jump the cursor to end-Frames, report the gap
//
// Adaptive polling (same policy as the producer-side hot flag):
//   - Hot: tight loop while the producer is active or within HotWindow
//   - Cold: cpuRelax every poll, Gosched every SpinBudget misses
// ════════════════════════════════════════════════════════════════════════════════════════════════

package timering

import (
	"runtime"
	"sync/atomic"
	"time"

	"audioring/constants"
	"audioring/control"
	"audioring/debug"
)

// ReaderConfig describes one pinned reader.
type ReaderConfig struct {
	Core    int      // CPU to pin to; <0 leaves placement to the OS
	Frames  int      // frames per Fetch
	Start   int64    // first sample time, ignored when FollowLive is set
	Buffers [][]byte // caller-owned destination, one per channel stream

	// FollowLive starts the cursor at the producer's current end instead of
	// Start, for readers attached to a running stream.
	FollowLive bool

	// Deliver receives each validated block. Buffers are reused on return.
	Deliver func(buffers [][]byte, startTime int64, frames int)

	// Drop reports frames [startTime, startTime+frames) skipped after an
	// overrun. Runs on the reader thread; must not block.
	Drop func(startTime, frames int64)
}

// PinnedReader launches a goroutine that follows b as described by cfg
// until *stop becomes non-zero, then closes done.
//
// stop and hot are accessed atomically (see control.Flags).
func PinnedReader(b *Buffer, cfg ReaderConfig, stop, hot *uint32, done chan<- struct{}) {
	if cfg.Frames <= 0 || int64(cfg.Frames) > b.capacity {
		panic("timering: reader frames must be in (0, capacity]")
	}
	go func() {
		runtime.LockOSThread()
		if err := control.SetAffinity(cfg.Core); err != nil {
			debug.DropError("READER_AFFINITY", err)
		}
		defer func() {
			runtime.UnlockOSThread()
			close(done)
		}()

		cursor := cfg.Start
		live := cfg.FollowLive
		frames := int64(cfg.Frames)

		var miss int
		lastHit := time.Now()

		for {
			if atomic.LoadUint32(stop) != 0 {
				return
			}

			if live {
				if _, end, err := b.TimeBounds(); err == nil {
					cursor, live = end, false
				}
			}

			var err error
			if !live {
				err = b.Fetch(cfg.Buffers, cfg.Frames, cursor)
				if err == nil {
					err = b.Validate(cursor, cfg.Frames)
				}
			} else {
				err = ErrNotReady
			}

			switch {
			case err == nil:
				if cfg.Deliver != nil {
					cfg.Deliver(cfg.Buffers, cursor, cfg.Frames)
				}
				cursor += frames
				lastHit, miss = time.Now(), 0
				continue

			case err == ErrTooLate:
				if _, end, berr := b.TimeBounds(); berr == nil && end-frames > cursor {
					if cfg.Drop != nil {
						cfg.Drop(cursor, end-frames-cursor)
					}
					cursor = end - frames
				}
				continue

			case err == ErrTooEarly:
				// The cursor only advances over delivered frames, so being
				// past end means the producer restarted at an earlier time.
				if start, end, berr := b.TimeBounds(); berr == nil && cursor > end {
					cursor = start
					continue
				}
			}

			// Retryable: wait for the producer.
			if atomic.LoadUint32(hot) != 0 || time.Since(lastHit) <= constants.HotWindow {
				continue
			}
			if miss++; miss >= constants.SpinBudget {
				miss = 0
				runtime.Gosched()
			}
			cpuRelax()
		}
	}()
}
