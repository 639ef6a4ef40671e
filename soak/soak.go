// ════════════════════════════════════════════════════════════════════════════════════════════════
// Time-Indexed Ring Soak Harness
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Component: Producer / pinned readers / collector orchestration
//
// Description:
//   Drives one timering.Buffer the way an audio device and its clients do:
//   a producer stores deterministic frames at the sample rate (or flat out),
//   optionally jumping its clock, while pinned readers follow by sample time
//   and check every block. A collector on the calling goroutine drains reader
//   events, logs them and journals them, and cools the hot flag once the
//   producer goes quiet.
//
// Phases:
//   1. Setup: ring, optional mlock, journal run record, readers
//   2. Produce: until the duration elapses, ctx is cancelled or
//      control.Shutdown is called
//   3. Settle: readers get CatchUpTimeout to reach the final end
//   4. Report: stop readers, final drain, verdict, journal
// ════════════════════════════════════════════════════════════════════════════════════════════════

package soak

import (
	"context"
	"encoding/hex"
	"runtime"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"audioring/audiobuf"
	"audioring/config"
	"audioring/constants"
	"audioring/control"
	"audioring/debug"
	"audioring/journal"
	"audioring/timering"
	"audioring/utils"
)

const (
	// CatchUpTimeout bounds the settle phase.
	CatchUpTimeout = 500 * time.Millisecond

	// collectInterval is the collector's polling period.
	collectInterval = time.Millisecond
)

// producerResult is what the producer goroutine hands back.
type producerResult struct {
	frames      int64
	stores      int64
	jumps       int64
	end         int64
	interrupted bool
}

// Run executes one soak run described by cfg. j may be nil.
func Run(ctx context.Context, cfg config.Soak, j *journal.Journal) (Report, error) {
	if err := cfg.Validate(); err != nil {
		return Report{}, err
	}
	format := cfg.Format()
	buf := timering.New(format, cfg.CapacityFrames)

	rep := Report{
		Format:         format.String(),
		CapacityFrames: buf.Capacity(),
		FramesPerStore: cfg.FramesPerStore,
		Realtime:       cfg.Realtime,
	}

	if cfg.LockMemory {
		if err := buf.LockMemory(); err != nil {
			debug.DropError("MLOCK", err)
		} else {
			rep.MemoryLocked = true
			defer func() {
				if err := buf.UnlockMemory(); err != nil {
					debug.DropError("MUNLOCK", err)
				}
			}()
		}
	}

	started := time.Now()
	var runID int64
	if j != nil {
		cfgJSON, err := cfg.Encode()
		if err != nil {
			return Report{}, err
		}
		if runID, err = j.BeginRun(started, cfgJSON); err != nil {
			return Report{}, err
		}
		rep.RunID = runID
	}

	// ── readers ─────────────────────────────────────
	var stop uint32
	_, hot := control.Flags()

	monitors := make([]*monitor, len(cfg.Readers))
	dones := make([]chan struct{}, len(cfg.Readers))
	for i, rc := range cfg.Readers {
		p := newMonitor(i, format)
		monitors[i] = p
		dones[i] = make(chan struct{})
		timering.PinnedReader(buf, timering.ReaderConfig{
			Core:       config.CoreOf(rc.Core),
			Frames:     rc.FramesPerFetch,
			Buffers:    audiobuf.NewBufferList(format, rc.FramesPerFetch),
			FollowLive: rc.FollowLive,
			Deliver:    p.deliver,
			Drop:       p.drop,
		}, &stop, hot, dones[i])
	}

	// ── producer ────────────────────────────────────
	produced := make(chan producerResult, 1)
	go func() { produced <- produce(ctx, buf, cfg) }()

	// ── collector ───────────────────────────────────
	c := collector{journal: j, runID: runID, monitors: monitors}
	ticker := time.NewTicker(collectInterval)
	defer ticker.Stop()

	var res producerResult
wait:
	for {
		select {
		case res = <-produced:
			break wait
		case <-ticker.C:
			c.collect()
			control.PollCooldown()
		}
	}

	settle := time.Now().Add(CatchUpTimeout)
	for !caughtUp(monitors, res.end) && time.Now().Before(settle) {
		c.collect()
		control.PollCooldown()
		time.Sleep(collectInterval)
	}

	atomic.StoreUint32(&stop, 1)
	for _, done := range dones {
		<-done
	}
	c.collect()

	// ── report ──────────────────────────────────────
	rep.ElapsedMs = time.Since(started).Milliseconds()
	rep.FramesProduced = res.frames
	rep.Stores = res.stores
	rep.Discontinuities = res.jumps
	rep.EndTime = res.end
	rep.Interrupted = res.interrupted
	rep.Ring = buf.Stats()
	rep.JournalErrors = c.errors
	rep.Readers = make([]ReaderReport, len(monitors))
	for i, p := range monitors {
		rc := cfg.Readers[i]
		rep.Readers[i] = ReaderReport{
			ID:              i,
			Core:            config.CoreOf(rc.Core),
			FramesPerFetch:  rc.FramesPerFetch,
			FollowLive:      rc.FollowLive,
			Blocks:          p.blocks,
			FramesDelivered: p.delivered,
			FramesSilent:    p.silent,
			FramesDropped:   p.dropped,
			Drops:           p.drops,
			Resyncs:         p.resyncs,
			CorruptBlocks:   p.corrupt,
			LostEvents:      p.lost,
			Digest:          hex.EncodeToString(p.digest.Sum(nil)),
		}
	}
	rep.Passed = rep.verdict()

	debug.DropMessage("SOAK", "produced "+utils.I64toa(rep.FramesProduced)+" frames in "+
		utils.I64toa(rep.ElapsedMs)+" ms, passed="+strconv.FormatBool(rep.Passed))

	if j != nil {
		data, err := rep.Encode()
		if err == nil {
			err = j.FinishRun(runID, time.Now(), data, rep.Passed)
		}
		if err != nil {
			return rep, err
		}
	}
	return rep, nil
}

// produce stores FramesPerStore-frame blocks until the run ends.
func produce(ctx context.Context, buf *timering.Buffer, cfg config.Soak) (res producerResult) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	if err := control.SetAffinity(config.CoreOf(cfg.ProducerCore)); err != nil {
		debug.DropError("PRODUCER_AFFINITY", err)
	}

	format := cfg.Format()
	frames := cfg.FramesPerStore
	src := audiobuf.NewBufferList(format, frames)
	period := cfg.StorePeriod()

	deadline := time.Now().Add(cfg.Duration())
	next := time.Now()
	var t int64

	for i := 0; ; i++ {
		if ctx.Err() != nil || control.Stopping() {
			res.interrupted = true
			break
		}
		if !time.Now().Before(deadline) {
			break
		}
		if cfg.DiscontinuityEvery > 0 && i > 0 && i%cfg.DiscontinuityEvery == 0 {
			t += cfg.DiscontinuityFrames
			res.jumps++
		}

		Fill(format, src, t, frames)
		if err := buf.Store(src, frames, t); err != nil {
			debug.DropError("STORE", err)
			break
		}
		control.SignalActivity()
		t += int64(frames)
		res.frames += int64(frames)
		res.stores++

		if cfg.Realtime {
			next = next.Add(period)
			if d := time.Until(next); d > 0 {
				time.Sleep(d)
			}
		} else if i%64 == 63 {
			runtime.Gosched()
		}
	}
	res.end = t
	return res
}

// caughtUp reports whether every reader has reached end.
func caughtUp(monitors []*monitor, end int64) bool {
	for _, p := range monitors {
		if p.progress.Load() < end {
			return false
		}
	}
	return true
}

// collector drains reader events into the log and the journal.
type collector struct {
	journal  *journal.Journal
	runID    int64
	monitors []*monitor
	rec      [constants.EventRecordSize]byte
	errors   int64
}

func (c *collector) collect() {
	for _, p := range c.monitors {
		p.drain(&c.rec, c.handle)
	}
}

func (c *collector) handle(r record) {
	kind := KindName(r.kind)
	if r.kind == EventCorrupt {
		debug.DropMessage("READER_CORRUPT", "reader "+utils.Itoa(r.reader)+" at "+utils.I64toa(r.sampleTime))
	} else {
		debug.DropMessage("READER_"+strings.ToUpper(kind), "reader "+utils.Itoa(r.reader)+": "+
			utils.I64toa(r.frames)+" frames at "+utils.I64toa(r.sampleTime))
	}
	if c.journal == nil {
		return
	}
	err := c.journal.RecordEvent(c.runID, journal.Event{
		Reader:     r.reader,
		Kind:       kind,
		SampleTime: r.sampleTime,
		Frames:     r.frames,
		At:         time.Now(),
	})
	if err != nil {
		c.errors++
		debug.DropError("JOURNAL", err)
	}
}

