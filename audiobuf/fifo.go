// fifo.go
//
// Lock-free single-producer/single-consumer queue of audio frames. Same
// layout as audiobuf.Buffer (one region per channel stream, shared frame
// index) but addressed by read and write cursors instead of offsets, for
// hand-offs where nobody cares about sample time: decoder to device
// callback, capture callback to file writer.
//
// Cursors are frame positions masked to the power-of-two capacity and live
// on separate cache lines. One frame always stays free so equal cursors
// mean empty. Reads and writes are partial: they move as many frames as
// are available and return the count.

package audiobuf

import (
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

// FIFO is a frame queue for exactly one writer and one reader.
type FIFO struct {
	_     cpu.CacheLinePad
	write atomic.Uint64 // producer frame position, masked
	_     cpu.CacheLinePad
	read  atomic.Uint64 // consumer frame position, masked
	_     cpu.CacheLinePad
	ring  *Buffer
	mask  uint64
}

// NewFIFO allocates a queue for format holding capacityFrames frames rounded
// up to a power of two. Usable capacity is one frame less. capacityFrames
// below 2 panics.
func NewFIFO(format Format, capacityFrames int) *FIFO {
	if capacityFrames < 2 {
		panic("audiobuf: FIFO capacity must be >=2")
	}
	ring := New(format, capacityFrames)
	return &FIFO{
		ring: ring,
		mask: uint64(ring.mask),
	}
}

// Format returns the frame format.
func (f *FIFO) Format() Format { return f.ring.format }

// Capacity returns the allocated frames (a power of two).
func (f *FIFO) Capacity() int64 { return f.ring.capacity }

// Reset empties the queue. Not safe while either side is active.
func (f *FIFO) Reset() {
	f.write.Store(0)
	f.read.Store(0)
}

//go:nosplit
//go:inline
func (f *FIFO) readable(w, r uint64) uint64 {
	return (w - r) & f.mask
}

//go:nosplit
//go:inline
func (f *FIFO) writable(w, r uint64) uint64 {
	return (r - w - 1) & f.mask
}

// FramesAvailableToRead may be called from either side.
func (f *FIFO) FramesAvailableToRead() int {
	return int(f.readable(f.write.Load(), f.read.Load()))
}

// FramesAvailableToWrite may be called from either side.
func (f *FIFO) FramesAvailableToWrite() int {
	return int(f.writable(f.write.Load(), f.read.Load()))
}

// WriteFrames copies up to frameCount frames from buffers into the queue
// and returns the number written. Producer side only.
func (f *FIFO) WriteFrames(buffers [][]byte, frameCount int) int {
	if frameCount <= 0 {
		return 0
	}
	f.ring.check(buffers, frameCount)
	w := f.write.Load()
	n := f.writable(w, f.read.Load())
	if n == 0 {
		return 0
	}
	if uint64(frameCount) < n {
		n = uint64(frameCount)
	}
	f.ring.put(buffers, 0, int64(w), int(n))
	f.write.Store((w + n) & f.mask)
	return int(n)
}

// ReadFrames moves up to frameCount frames into buffers and returns the
// number read. Consumer side only.
func (f *FIFO) ReadFrames(buffers [][]byte, frameCount int) int {
	if frameCount <= 0 {
		return 0
	}
	f.ring.check(buffers, frameCount)
	r := f.read.Load()
	n := f.readable(f.write.Load(), r)
	if n == 0 {
		return 0
	}
	if uint64(frameCount) < n {
		n = uint64(frameCount)
	}
	f.ring.get(buffers, 0, int64(r), int(n))
	f.read.Store((r + n) & f.mask)
	return int(n)
}
