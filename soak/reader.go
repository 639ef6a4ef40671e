// ════════════════════════════════════════════════════════════════════════════════════════════════
// Soak Reader Monitor
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Runs inside a timering.PinnedReader callback, on the reader's pinned
// thread. It verifies and hashes every delivered block and posts drop,
// resync and corrupt events as fixed 32-byte records into its own
// ring.FIFO, which the collector drains on a cold goroutine.
//
// Record layout (little endian):
//   kind(8) | sample time(8) | frames(8) | reader id(8)
// ════════════════════════════════════════════════════════════════════════════════════════════════

package soak

import (
	"encoding/binary"
	"hash"
	"sync/atomic"

	"audioring/audiobuf"
	"audioring/constants"
	"audioring/ring"

	"golang.org/x/crypto/sha3"
)

// Event kinds carried in reader records.
const (
	EventDrop    = 1 // frames skipped after an overrun
	EventResync  = 2 // cursor moved without a drop (producer restarted earlier)
	EventCorrupt = 3 // validated block failed the content check
)

// kindName maps event kinds to their journal names.
var kindName = [...]string{
	EventDrop:    "drop",
	EventResync:  "resync",
	EventCorrupt: "corrupt",
}

// KindName returns the journal name of kind.
func KindName(kind uint64) string {
	if kind < uint64(len(kindName)) && kindName[kind] != "" {
		return kindName[kind]
	}
	return "unknown"
}

// monitor holds one reader's verification state. Counters are owned by the
// reader thread and read only after it exits; progress and events are
// shared with the collector.
type monitor struct {
	id     int
	format audiobuf.Format
	events *ring.FIFO
	digest hash.Hash

	next    int64
	started bool

	blocks    int64
	delivered int64
	silent    int64
	dropped   int64
	drops     int64
	resyncs   int64
	corrupt   int64
	lost      int64

	progress atomic.Int64 // cursor after the last block or drop
	rec      [constants.EventRecordSize]byte
}

func newMonitor(id int, format audiobuf.Format) *monitor {
	p := &monitor{
		id:     id,
		format: format,
		events: ring.New(constants.EventFIFOBytes),
		digest: sha3.New256(),
	}
	p.progress.Store(-1 << 62)
	return p
}

// deliver is the ReaderConfig.Deliver callback.
func (p *monitor) deliver(buffers [][]byte, startTime int64, frames int) {
	if p.started && startTime != p.next {
		p.resyncs++
		p.post(EventResync, startTime, startTime-p.next)
	}
	p.started = true

	silent, bad := Check(p.format, buffers, startTime, frames)
	if bad >= 0 {
		p.corrupt++
		p.post(EventCorrupt, startTime+int64(bad), int64(frames-bad))
	}
	for _, buf := range buffers {
		p.digest.Write(buf[:frames*p.format.BytesPerFrame])
	}

	p.blocks++
	p.delivered += int64(frames)
	p.silent += int64(silent)
	p.next = startTime + int64(frames)
	p.progress.Store(p.next)
}

// drop is the ReaderConfig.Drop callback.
func (p *monitor) drop(startTime, frames int64) {
	p.drops++
	p.dropped += frames
	p.post(EventDrop, startTime, frames)
	p.started = true
	p.next = startTime + frames
	p.progress.Store(p.next)
}

// post writes one record, or counts it lost when the FIFO is full.
func (p *monitor) post(kind uint64, startTime, frames int64) {
	if p.events.BytesAvailableToWrite() < constants.EventRecordSize {
		p.lost++
		return
	}
	binary.LittleEndian.PutUint64(p.rec[0:], kind)
	binary.LittleEndian.PutUint64(p.rec[8:], uint64(startTime))
	binary.LittleEndian.PutUint64(p.rec[16:], uint64(frames))
	binary.LittleEndian.PutUint64(p.rec[24:], uint64(p.id))
	p.events.Write(p.rec[:])
}

// record is a decoded event.
type record struct {
	kind       uint64
	sampleTime int64
	frames     int64
	reader     int
}

// drain decodes every complete record in p's FIFO and passes it to fn.
// Collector side only.
func (p *monitor) drain(buf *[constants.EventRecordSize]byte, fn func(record)) int {
	n := 0
	for p.events.BytesAvailableToRead() >= constants.EventRecordSize {
		p.events.Read(buf[:])
		fn(record{
			kind:       binary.LittleEndian.Uint64(buf[0:]),
			sampleTime: int64(binary.LittleEndian.Uint64(buf[8:])),
			frames:     int64(binary.LittleEndian.Uint64(buf[16:])),
			reader:     int(binary.LittleEndian.Uint64(buf[24:])),
		})
		n++
	}
	return n
}
