// ════════════════════════════════════════════════════════════════════════════════════════════════
// 🧪 TEST SUITE: CORE-PINNED TIME-FOLLOWING READER
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Test Coverage:
//   - Delivery: in-order, pattern-checked blocks from a live producer
//   - Recovery: overrun drop reporting, resync after a backward restart
//   - Attach: FollowLive starts at the producer's end
//   - Lifecycle: stop flag closes done; bad frame counts panic
// ════════════════════════════════════════════════════════════════════════════════════════════════

package timering

import (
	"sync/atomic"
	"testing"
	"time"

	"audioring/audiobuf"
)

// ============================================================================
// HELPER FUNCTIONS
// ============================================================================

type readerTap struct {
	next      atomic.Int64 // expected start of the next block
	delivered atomic.Int64
	firstAt   atomic.Int64
	dropAt    atomic.Int64
	dropped   atomic.Int64
	bad       atomic.Int64
	ordered   bool
}

func newTap(ordered bool) *readerTap {
	p := &readerTap{ordered: ordered}
	p.firstAt.Store(-1)
	p.dropAt.Store(-1)
	return p
}

func (p *readerTap) config(frames int) ReaderConfig {
	return ReaderConfig{
		Core:    -1,
		Frames:  frames,
		Buffers: audiobuf.NewBufferList(stereo, frames),
		Deliver: func(buffers [][]byte, startTime int64, n int) {
			p.firstAt.CompareAndSwap(-1, startTime)
			if mismatch(stereo, buffers, startTime, n) >= 0 {
				p.bad.Add(1)
			}
			if p.ordered && p.delivered.Load() > 0 && startTime != p.next.Load() {
				p.bad.Add(1)
			}
			p.next.Store(startTime + int64(n))
			p.delivered.Add(int64(n))
		},
		Drop: func(startTime, frames int64) {
			p.dropAt.CompareAndSwap(-1, startTime)
			p.dropped.Add(frames)
			p.next.Store(startTime + frames)
		},
	}
}

// waitFor polls cond until it holds or the timeout expires.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(100 * time.Microsecond)
	}
}

// startReader launches a reader and registers its shutdown.
func startReader(t *testing.T, b *Buffer, cfg ReaderConfig) {
	t.Helper()
	var stop uint32
	hot := uint32(1)
	done := make(chan struct{})
	PinnedReader(b, cfg, &stop, &hot, done)
	t.Cleanup(func() {
		atomic.StoreUint32(&stop, 1)
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("reader did not stop")
		}
	})
}

// ============================================================================
// TESTS
// ============================================================================

func TestPinnedReaderFollowsProducer(t *testing.T) {
	r := New(stereo, 4096)
	p := newTap(true)
	startReader(t, r, p.config(128))

	const total = 128 * 400
	src := audiobuf.NewBufferList(stereo, 128)
	for t0 := int64(0); t0 < total; t0 += 128 {
		fill(stereo, src, t0, 128)
		if err := r.Store(src, 128, t0); err != nil {
			t.Fatal(err)
		}
		// Stay inside the window so nothing is dropped.
		for t0-p.next.Load() > 2048 {
			time.Sleep(10 * time.Microsecond)
		}
	}
	waitFor(t, "all frames", func() bool { return p.delivered.Load() == total })

	if p.bad.Load() != 0 {
		t.Fatalf("%d bad blocks", p.bad.Load())
	}
	if p.dropped.Load() != 0 {
		t.Fatalf("dropped %d frames with a reader inside the window", p.dropped.Load())
	}
	if p.firstAt.Load() != 0 {
		t.Fatalf("first block at %d, want 0", p.firstAt.Load())
	}
}

func TestPinnedReaderReportsOverrun(t *testing.T) {
	r := New(stereo, 1024)
	storeRange(t, r, 0, 1024)
	storeRange(t, r, 1024, 1024)
	storeRange(t, r, 2048, 1024)
	storeRange(t, r, 3072, 1024)

	p := newTap(true)
	startReader(t, r, p.config(128))
	waitFor(t, "catch-up", func() bool { return p.delivered.Load() >= 128 })

	if at, n := p.dropAt.Load(), p.dropped.Load(); at != 0 || n != 4096-128 {
		t.Fatalf("drop = (%d,%d), want (0,%d)", at, n, 4096-128)
	}
	if p.firstAt.Load() != 4096-128 {
		t.Fatalf("first block at %d, want %d", p.firstAt.Load(), 4096-128)
	}
	if p.bad.Load() != 0 {
		t.Fatalf("%d bad blocks", p.bad.Load())
	}
}

func TestPinnedReaderResyncsAfterRestart(t *testing.T) {
	r := New(stereo, 1024)
	storeRange(t, r, 5000, 256)

	p := newTap(false)
	cfg := p.config(128)
	cfg.Start = 5000
	startReader(t, r, cfg)
	waitFor(t, "pre-restart blocks", func() bool { return p.delivered.Load() == 256 })

	// The reader now waits at 5256; a restart at 0 puts it past end.
	storeRange(t, r, 0, 256)
	waitFor(t, "post-restart blocks", func() bool { return p.delivered.Load() == 512 })

	if p.next.Load() != 256 {
		t.Fatalf("cursor after resync = %d, want 256", p.next.Load())
	}
	if p.bad.Load() != 0 {
		t.Fatalf("%d bad blocks", p.bad.Load())
	}
}

func TestPinnedReaderFollowLive(t *testing.T) {
	r := New(stereo, 1024)
	p := newTap(true)
	cfg := p.config(64)
	cfg.FollowLive = true
	cfg.Start = -999 // ignored

	startReader(t, r, cfg)
	// Keep producing until the reader has attached and caught a block.
	t0 := int64(700)
	waitFor(t, "live block", func() bool {
		storeRange(t, r, t0, 64)
		t0 += 64
		return p.delivered.Load() >= 64
	})

	// The reader attaches at whatever end it first observes.
	if at := p.firstAt.Load(); at < 764 || (at-700)%64 != 0 {
		t.Fatalf("first live block at %d, want a published end", at)
	}
	if p.dropped.Load() != 0 || p.bad.Load() != 0 {
		t.Fatalf("dropped=%d bad=%d", p.dropped.Load(), p.bad.Load())
	}
}

func TestPinnedReaderStopsWhenIdle(t *testing.T) {
	r := New(stereo, 256)
	var stop, hot uint32
	done := make(chan struct{})
	PinnedReader(r, ReaderConfig{Core: -1, Frames: 16, Buffers: audiobuf.NewBufferList(stereo, 16)}, &stop, &hot, done)

	time.Sleep(2 * time.Millisecond)
	atomic.StoreUint32(&stop, 1)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("cold reader ignored stop")
	}
}

func TestPinnedReaderRejectsFrames(t *testing.T) {
	r := New(stereo, 256)
	var stop, hot uint32
	for _, n := range []int{0, -1, 257} {
		expectPanic(t, "frames", func() {
			PinnedReader(r, ReaderConfig{Frames: n}, &stop, &hot, make(chan struct{}))
		})
	}
}

// A core the kernel refuses must not stop the reader; it runs unpinned.
func TestPinnedReaderRunsWhenAffinityFails(t *testing.T) {
	r := New(stereo, 1024)
	p := newTap(true)
	cfg := p.config(128)
	cfg.Core = 1 << 20
	startReader(t, r, cfg)

	storeRange(t, r, 0, 512)
	waitFor(t, "delivery", func() bool { return p.delivered.Load() == 512 })
	if p.bad.Load() != 0 || p.firstAt.Load() != 0 {
		t.Fatalf("bad=%d first=%d", p.bad.Load(), p.firstAt.Load())
	}
}
