// ============================================================================
// AUDIO RING BUFFER
// ============================================================================
//
// Frame-granular multichannel store/fetch on top of bytering.Store. Every
// channel stream owns one region of capacity × BytesPerFrame bytes and all
// streams share one frame index space, so frame N of every channel lives at
// the same offset within its region.
//
// Addressing:
//   - Callers pass absolute frame offsets; they are wrapped with the
//     power-of-two mask (never modulo)
//   - Frame counts above capacity are refused with ErrCapacityExceeded
//     instead of being truncated
//
// Safety model:
//   - Single writer, any number of readers; no internal synchronization
//   - Buffer-count mismatches and non-positive counts panic

package audiobuf

import (
	"errors"

	"audioring/bytering"
	"audioring/constants"
	"audioring/utils"
)

// ErrCapacityExceeded is returned when a request spans more frames than
// the ring can hold. Split the request into capacity-sized chunks.
var ErrCapacityExceeded = errors.New("audiobuf: frame count exceeds capacity")

// Buffer is a non-interleaved ring of audio frames.
type Buffer struct {
	format   Format
	store    *bytering.Store
	capacity int64
	mask     int64
	bpf      int // bytes per frame per stream
	streams  int
}

// New allocates a ring for format holding at least capacityFrames frames.
// The capacity is rounded up to the next power of two.
func New(format Format, capacityFrames int) *Buffer {
	if err := format.Validate(); err != nil {
		panic("audiobuf: invalid format " + format.String())
	}
	if capacityFrames <= 0 {
		panic("audiobuf: capacity must be >0")
	}
	if int64(capacityFrames) > constants.MaxCapacityFrames {
		panic("audiobuf: capacity above MaxCapacityFrames")
	}
	capacity := int64(utils.NextPowerOfTwo(uint64(capacityFrames)))
	streams := format.ChannelStreamCount()
	return &Buffer{
		format:   format,
		store:    bytering.New(streams, int(capacity)*format.BytesPerFrame),
		capacity: capacity,
		mask:     capacity - 1,
		bpf:      format.BytesPerFrame,
		streams:  streams,
	}
}

// Format returns the frame format.
func (b *Buffer) Format() Format { return b.format }

// Capacity returns the frame capacity (a power of two).
func (b *Buffer) Capacity() int64 { return b.capacity }

// Mask returns Capacity()-1.
func (b *Buffer) Mask() int64 { return b.mask }

// Streams returns the number of channel streams.
func (b *Buffer) Streams() int { return b.streams }

// ByteOffset maps an absolute frame number to its byte offset in a region.
//
//go:nosplit
//go:inline
func (b *Buffer) ByteOffset(frame int64) int {
	return int(frame&b.mask) * b.bpf
}

// check enforces the caller contract shared by every copy.
func (b *Buffer) check(buffers [][]byte, frameCount int) {
	if len(buffers) != b.streams {
		panic("audiobuf: buffer count does not match channel streams")
	}
	if frameCount <= 0 {
		panic("audiobuf: frame count must be >0")
	}
}

// Store copies frameCount frames from buffers into the ring at frameOffset.
func (b *Buffer) Store(buffers [][]byte, frameOffset int64, frameCount int) error {
	return b.StoreAt(buffers, 0, frameOffset, frameCount)
}

// StoreAt is Store reading from frame srcFrame of each caller buffer.
func (b *Buffer) StoreAt(buffers [][]byte, srcFrame int, frameOffset int64, frameCount int) error {
	b.check(buffers, frameCount)
	if int64(frameCount) > b.capacity {
		return ErrCapacityExceeded
	}
	b.put(buffers, srcFrame, frameOffset, frameCount)
	return nil
}

// put copies frames into the ring without contract checks.
func (b *Buffer) put(buffers [][]byte, srcFrame int, frameOffset int64, frameCount int) {
	src := srcFrame * b.bpf
	off := b.ByteOffset(frameOffset)
	n := frameCount * b.bpf
	for ch, buf := range buffers {
		b.store.WriteChannel(ch, buf[src:], off, n)
	}
}

// Fetch copies frameCount frames at frameOffset out of the ring into buffers.
func (b *Buffer) Fetch(buffers [][]byte, frameOffset int64, frameCount int) error {
	return b.FetchAt(buffers, 0, frameOffset, frameCount)
}

// FetchAt is Fetch writing at frame dstFrame of each caller buffer.
func (b *Buffer) FetchAt(buffers [][]byte, dstFrame int, frameOffset int64, frameCount int) error {
	b.check(buffers, frameCount)
	if int64(frameCount) > b.capacity {
		return ErrCapacityExceeded
	}
	b.get(buffers, dstFrame, frameOffset, frameCount)
	return nil
}

// get is the read side of put.
func (b *Buffer) get(buffers [][]byte, dstFrame int, frameOffset int64, frameCount int) {
	dst := dstFrame * b.bpf
	off := b.ByteOffset(frameOffset)
	n := frameCount * b.bpf
	for ch, buf := range buffers {
		b.store.ReadChannel(ch, buf[dst:], off, n)
	}
}

// ZeroFrames clears frameCount frames starting at frame dstFrame of each
// caller buffer. Used to fill silence around fetched data.
func (b *Buffer) ZeroFrames(buffers [][]byte, dstFrame, frameCount int) {
	b.check(buffers, frameCount)
	start := dstFrame * b.bpf
	end := start + frameCount*b.bpf
	for _, buf := range buffers {
		clear(buf[start:end])
	}
}

// ZeroRing clears frameCount frames of the ring starting at frameOffset.
func (b *Buffer) ZeroRing(frameOffset int64, frameCount int) {
	if frameCount <= 0 {
		panic("audiobuf: frame count must be >0")
	}
	if int64(frameCount) > b.capacity {
		frameCount = int(b.capacity)
	}
	off := b.ByteOffset(frameOffset)
	n := frameCount * b.bpf
	for ch := 0; ch < b.streams; ch++ {
		b.store.ZeroChannel(ch, off, n)
	}
}

// Reset zeroes the ring contents. Not safe against concurrent access.
func (b *Buffer) Reset() { b.store.Reset() }

// LockMemory pins the ring's backing store in RAM.
func (b *Buffer) LockMemory() error { return b.store.LockMemory() }

// UnlockMemory undoes LockMemory.
func (b *Buffer) UnlockMemory() error { return b.store.UnlockMemory() }
