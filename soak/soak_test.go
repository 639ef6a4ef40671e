// ════════════════════════════════════════════════════════════════════════════════════════════════
// 🧪 TEST SUITE: SOAK HARNESS
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Test Coverage:
//   - Pattern: Fill/Check on narrow and wide frames, silence, corruption
//   - Monitor: event records for drops, resyncs, corrupt blocks, FIFO overflow
//   - Runs: free-running, paced with journal, forward and backward jumps,
//     digest reproduction, interruption, invalid config
// ════════════════════════════════════════════════════════════════════════════════════════════════

package soak

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"audioring/audiobuf"
	"audioring/config"
	"audioring/constants"
	"audioring/control"
	"audioring/journal"

	"golang.org/x/crypto/sha3"
)

// ============================================================================
// HELPER FUNCTIONS
// ============================================================================

func resetControl(t *testing.T) {
	t.Helper()
	control.Reset()
	t.Cleanup(control.Reset)
}

func quickConfig() config.Soak {
	cfg := config.Default()
	cfg.DurationMs = 100
	cfg.Realtime = false
	cfg.CapacityFrames = 2048
	cfg.FramesPerStore = 128
	cfg.Readers = []config.Reader{
		{FramesPerFetch: 128},
		{FramesPerFetch: 96, FollowLive: true},
	}
	return cfg
}

func runSoak(t *testing.T, cfg config.Soak, j *journal.Journal) Report {
	t.Helper()
	rep, err := Run(context.Background(), cfg, j)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return rep
}

func expectClean(t *testing.T, rep Report) {
	t.Helper()
	if !rep.Passed {
		t.Fatalf("run failed: %+v", rep)
	}
	for _, r := range rep.Readers {
		if r.CorruptBlocks != 0 {
			t.Fatalf("reader %d: %d corrupt blocks", r.ID, r.CorruptBlocks)
		}
		if len(r.Digest) != 64 {
			t.Fatalf("reader %d: digest %q", r.ID, r.Digest)
		}
	}
}

// ============================================================================
// PATTERN
// ============================================================================

func TestFillCheck(t *testing.T) {
	formats := []audiobuf.Format{
		audiobuf.NonInterleaved(48000, 2, 4),
		audiobuf.Interleaved(48000, 6, 4), // 24-byte frames span three words
		audiobuf.NonInterleaved(8000, 1, 2),
	}
	for _, f := range formats {
		t.Run(f.String(), func(t *testing.T) {
			bufs := audiobuf.NewBufferList(f, 64)
			Fill(f, bufs, 1000, 64)
			if silent, bad := Check(f, bufs, 1000, 64); silent != 0 || bad != -1 {
				t.Fatalf("fresh block: silent=%d bad=%d", silent, bad)
			}
			if _, bad := Check(f, bufs, 1001, 64); bad != 0 {
				t.Fatalf("time-shifted block accepted (bad=%d)", bad)
			}

			last := bufs[len(bufs)-1]
			last[40*f.BytesPerFrame+f.BytesPerFrame-1] ^= 0x5a
			if _, bad := Check(f, bufs, 1000, 64); bad != 40 {
				t.Fatalf("flipped byte: bad=%d, want 40", bad)
			}

			for _, b := range bufs {
				for i := range b[:10*f.BytesPerFrame] {
					b[i] = 0
				}
			}
			if silent, bad := Check(f, bufs, 1000, 40); silent != 10 || bad != -1 {
				t.Fatalf("silent prefix: silent=%d bad=%d", silent, bad)
			}
		})
	}
}

// ============================================================================
// MONITOR
// ============================================================================

func TestMonitorEvents(t *testing.T) {
	f := audiobuf.NonInterleaved(48000, 2, 4)
	p := newMonitor(3, f)
	bufs := audiobuf.NewBufferList(f, 32)

	Fill(f, bufs, 0, 32)
	p.deliver(bufs, 0, 32)
	p.drop(32, 1000)
	Fill(f, bufs, 1032, 32)
	p.deliver(bufs, 1032, 32)
	Fill(f, bufs, 10, 32)
	p.deliver(bufs, 10, 32) // backwards: resync
	bufs[0][0] ^= 1
	p.deliver(bufs, 42, 32) // wrong content: resync is not expected, corrupt is

	var got []record
	var rec [constants.EventRecordSize]byte
	p.drain(&rec, func(r record) { got = append(got, r) })

	want := []record{
		{kind: EventDrop, sampleTime: 32, frames: 1000, reader: 3},
		{kind: EventResync, sampleTime: 10, frames: 10 - 1064, reader: 3},
		{kind: EventCorrupt, sampleTime: 42, frames: 32, reader: 3},
	}
	if len(got) != len(want) {
		t.Fatalf("events = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d = %+v, want %+v", i, got[i], want[i])
		}
	}
	if p.blocks != 4 || p.delivered != 128 || p.drops != 1 || p.dropped != 1000 || p.resyncs != 1 || p.corrupt != 1 {
		t.Fatalf("counters: %+v", p)
	}
	if p.progress.Load() != 74 {
		t.Fatalf("progress = %d, want 74", p.progress.Load())
	}
}

func TestMonitorCountsLostEvents(t *testing.T) {
	p := newMonitor(0, audiobuf.NonInterleaved(48000, 1, 2))
	capacity := (constants.EventFIFOBytes - 1) / constants.EventRecordSize
	for i := 0; i < capacity+5; i++ {
		p.drop(int64(i), 1)
	}
	if p.lost != 5 {
		t.Fatalf("lost = %d, want 5", p.lost)
	}
	var rec [constants.EventRecordSize]byte
	if n := p.drain(&rec, func(record) {}); n != capacity {
		t.Fatalf("drained %d, want %d", n, capacity)
	}
}

func TestKindName(t *testing.T) {
	for kind, name := range map[uint64]string{EventDrop: "drop", EventResync: "resync", EventCorrupt: "corrupt", 0: "unknown", 99: "unknown"} {
		if got := KindName(kind); got != name {
			t.Fatalf("KindName(%d) = %q, want %q", kind, got, name)
		}
	}
}

// ============================================================================
// RUNS
// ============================================================================

func TestRunFreeRunning(t *testing.T) {
	resetControl(t)
	rep := runSoak(t, quickConfig(), nil)
	expectClean(t, rep)

	if rep.Interrupted || rep.FramesProduced == 0 || rep.Stores*128 != rep.FramesProduced {
		t.Fatalf("producer: %+v", rep)
	}
	if rep.Ring.FramesStored != uint64(rep.FramesProduced) {
		t.Fatalf("ring stored %d, producer %d", rep.Ring.FramesStored, rep.FramesProduced)
	}
	if rep.Format != "2 ch, 4 B/frame, non-interleaved, 48000 Hz" || rep.CapacityFrames != 2048 {
		t.Fatalf("report header: %q cap %d", rep.Format, rep.CapacityFrames)
	}
	data, err := rep.Encode()
	if err != nil || !bytes.Contains(data, []byte(`"passed":true`)) {
		t.Fatalf("Encode = %s, %v", data, err)
	}
}

func TestRunPacedWithJournal(t *testing.T) {
	resetControl(t)
	j, err := journal.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer j.Close()

	cfg := quickConfig()
	cfg.Realtime = true
	cfg.DurationMs = 60
	rep := runSoak(t, cfg, j)
	expectClean(t, rep)

	runs, err := j.Runs()
	if err != nil || len(runs) != 1 {
		t.Fatalf("Runs = %+v, %v", runs, err)
	}
	if runs[0].ID != rep.RunID || !runs[0].Passed || runs[0].FinishedAt.IsZero() {
		t.Fatalf("journal run = %+v", runs[0])
	}
	var drops int64
	for _, r := range rep.Readers {
		drops += r.Drops + r.Resyncs + r.CorruptBlocks
	}
	if runs[0].Events != drops {
		t.Fatalf("journal events = %d, report events = %d", runs[0].Events, drops)
	}
	if !bytes.Contains([]byte(runs[0].Report), []byte(`"readers"`)) {
		t.Fatalf("journal report = %s", runs[0].Report)
	}

	// Paced at 48 kHz the producer cannot outrun the clock.
	if limit := int64(48000*cfg.DurationMs/1000) + 2*128; rep.FramesProduced > limit {
		t.Fatalf("paced producer stored %d frames, more than %d", rep.FramesProduced, limit)
	}
}

func TestRunForwardJumps(t *testing.T) {
	resetControl(t)
	cfg := quickConfig()
	cfg.DiscontinuityEvery = 16
	cfg.DiscontinuityFrames = 50000
	rep := runSoak(t, cfg, nil)
	expectClean(t, rep)

	if rep.Discontinuities == 0 || rep.Ring.Discontinuities != uint64(rep.Discontinuities) {
		t.Fatalf("jumps: producer %d, ring %d", rep.Discontinuities, rep.Ring.Discontinuities)
	}
	if rep.EndTime != rep.FramesProduced+rep.Discontinuities*50000 {
		t.Fatalf("end %d, want %d", rep.EndTime, rep.FramesProduced+rep.Discontinuities*50000)
	}
}

func TestRunBackwardJumps(t *testing.T) {
	resetControl(t)
	cfg := quickConfig()
	cfg.DiscontinuityEvery = 32
	cfg.DiscontinuityFrames = -3000
	rep := runSoak(t, cfg, nil)
	expectClean(t, rep)

	if rep.Discontinuities == 0 {
		t.Fatal("no discontinuities")
	}
}

// A reader that keeps up hashes exactly the producer's stream.
func TestRunDigestReproducible(t *testing.T) {
	resetControl(t)
	cfg := quickConfig()
	cfg.Realtime = true
	cfg.DurationMs = 50
	cfg.CapacityFrames = 16384
	cfg.Readers = []config.Reader{{FramesPerFetch: 128}, {FramesPerFetch: 128}}
	rep := runSoak(t, cfg, nil)
	expectClean(t, rep)

	a, b := rep.Readers[0], rep.Readers[1]
	if a.Drops != 0 || b.Drops != 0 || a.FramesDelivered != rep.FramesProduced {
		t.Fatalf("readers did not keep up: %+v %+v (produced %d)", a, b, rep.FramesProduced)
	}
	if a.Digest != b.Digest {
		t.Fatalf("digests differ: %s vs %s", a.Digest, b.Digest)
	}

	f := cfg.Format()
	h := sha3.New256()
	bufs := audiobuf.NewBufferList(f, 128)
	for at := int64(0); at < rep.FramesProduced; at += 128 {
		Fill(f, bufs, at, 128)
		for _, s := range bufs {
			h.Write(s)
		}
	}
	if want := hex.EncodeToString(h.Sum(nil)); a.Digest != want {
		t.Fatalf("digest %s, want %s", a.Digest, want)
	}
}

func TestRunInterrupted(t *testing.T) {
	resetControl(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rep, err := Run(ctx, quickConfig(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if !rep.Interrupted || rep.FramesProduced != 0 || rep.Passed {
		t.Fatalf("cancelled run: %+v", rep)
	}
}

func TestRunStopsOnShutdown(t *testing.T) {
	resetControl(t)
	control.Shutdown()
	cfg := quickConfig()
	cfg.DurationMs = 60000
	rep := runSoak(t, cfg, nil)
	if !rep.Interrupted {
		t.Fatal("Shutdown did not interrupt the run")
	}
}

// With stores far apart the hot flag must cool between them and rise again
// on the next store, so idle readers fall back to the cold spin mid-run.
func TestRunCoolsReadersBetweenStores(t *testing.T) {
	resetControl(t)
	control.SetCooldown(time.Millisecond)
	t.Cleanup(func() { control.SetCooldown(250 * time.Millisecond) })

	cfg := quickConfig()
	cfg.Realtime = true
	cfg.DurationMs = 400
	cfg.CapacityFrames = 16384
	cfg.FramesPerStore = 4096 // ~85 ms between stores
	cfg.Readers = []config.Reader{{FramesPerFetch: 1024}}

	_, hot := control.Flags()
	var rewarmed atomic.Bool
	done := make(chan struct{})
	go func() {
		defer close(done)
		sawHot, cooled := false, false
		for !rewarmed.Load() {
			switch v := atomic.LoadUint32(hot); {
			case v == 1 && cooled:
				rewarmed.Store(true)
			case v == 1:
				sawHot = true
			case sawHot:
				cooled = true
			}
			if control.Stopping() {
				return
			}
			time.Sleep(50 * time.Microsecond)
		}
	}()

	runSoak(t, cfg, nil)
	control.Shutdown()
	<-done
	if !rewarmed.Load() {
		t.Fatal("hot flag never cooled and rose again while the producer ran")
	}
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	cfg := quickConfig()
	cfg.Readers = nil
	if _, err := Run(context.Background(), cfg, nil); !errors.Is(err, config.ErrInvalid) {
		t.Fatalf("Run(no readers) = %v", err)
	}
}
