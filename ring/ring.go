// ring.go
//
// Lock-free single-producer/single-consumer byte FIFO. Read and write
// positions live on separate cache-lines and are kept masked to the
// power-of-two capacity; one byte always stays free so equal positions mean
// empty. Copies split at the end of the buffer into at most two memmoves.
//
// Used for variable-length records handed from a real-time thread to a
// slower one (drop events from pinned readers to the soak collector).

package ring

import (
	"audioring/constants"
	"audioring/utils"

	"golang.org/x/sys/cpu"
)

// FIFO is a byte queue for exactly one writer and one reader.
type FIFO struct {
	_     cpu.CacheLinePad
	write uint64 // producer position, masked
	_     cpu.CacheLinePad
	read  uint64 // consumer position, masked
	_     cpu.CacheLinePad
	mask  uint64
	buf   []byte
}

// New allocates a FIFO of capacityBytes rounded up to a power of two.
// capacityBytes must lie in [MinFIFOBytes, MaxFIFOBytes]; otherwise New
// panics. The usable capacity is one byte less than the allocation.
func New(capacityBytes int) *FIFO {
	if capacityBytes < constants.MinFIFOBytes || int64(capacityBytes) > constants.MaxFIFOBytes {
		panic("ring: capacity out of range")
	}
	size := utils.NextPowerOfTwo(uint64(capacityBytes))
	return &FIFO{
		mask: size - 1,
		buf:  make([]byte, size),
	}
}

// Capacity returns the allocation size in bytes.
func (f *FIFO) Capacity() int { return len(f.buf) }

// Reset empties the FIFO. Not safe while either side is active.
func (f *FIFO) Reset() {
	storeReleaseUint64(&f.write, 0)
	storeReleaseUint64(&f.read, 0)
}

// readable returns the bytes between r and w.
//
//go:nosplit
//go:inline
func (f *FIFO) readable(w, r uint64) uint64 {
	return (w - r) & f.mask
}

// writable returns the free bytes between w and r, keeping one in reserve.
//
//go:nosplit
//go:inline
func (f *FIFO) writable(w, r uint64) uint64 {
	return (r - w - 1) & f.mask
}

// BytesAvailableToRead may be called from either side.
func (f *FIFO) BytesAvailableToRead() int {
	return int(f.readable(loadAcquireUint64(&f.write), loadAcquireUint64(&f.read)))
}

// BytesAvailableToWrite may be called from either side.
func (f *FIFO) BytesAvailableToWrite() int {
	return int(f.writable(loadAcquireUint64(&f.write), loadAcquireUint64(&f.read)))
}

// ============================================================================
// PRODUCER
// ============================================================================

// Write copies as much of src as fits and returns the number of bytes
// written.
func (f *FIFO) Write(src []byte) int {
	w := f.write
	n := f.writable(w, loadAcquireUint64(&f.read))
	if n == 0 || len(src) == 0 {
		return 0
	}
	if uint64(len(src)) < n {
		n = uint64(len(src))
	}
	if first := uint64(len(f.buf)) - w; n > first {
		copy(f.buf[w:], src[:first])
		copy(f.buf, src[first:n])
	} else {
		copy(f.buf[w:w+n], src[:n])
	}
	storeReleaseUint64(&f.write, (w+n)&f.mask)
	return int(n)
}

// WriteVector returns the free space as up to two slices. Fill them, then
// call AdvanceWrite with the number of bytes produced.
func (f *FIFO) WriteVector() (first, second []byte) {
	w := f.write
	n := f.writable(w, loadAcquireUint64(&f.read))
	return f.vector(w, n)
}

// AdvanceWrite publishes n bytes written through WriteVector.
func (f *FIFO) AdvanceWrite(n int) {
	storeReleaseUint64(&f.write, (f.write+uint64(n))&f.mask)
}

// ============================================================================
// CONSUMER
// ============================================================================

// Read moves up to len(dst) bytes into dst and returns the count.
func (f *FIFO) Read(dst []byte) int {
	n := f.Peek(dst)
	if n > 0 {
		f.AdvanceRead(n)
	}
	return n
}

// Peek copies up to len(dst) bytes into dst without consuming them.
func (f *FIFO) Peek(dst []byte) int {
	r := f.read
	n := f.readable(loadAcquireUint64(&f.write), r)
	if n == 0 || len(dst) == 0 {
		return 0
	}
	if uint64(len(dst)) < n {
		n = uint64(len(dst))
	}
	if first := uint64(len(f.buf)) - r; n > first {
		copy(dst, f.buf[r:])
		copy(dst[first:n], f.buf)
	} else {
		copy(dst[:n], f.buf[r:r+n])
	}
	return int(n)
}

// ReadVector returns the readable bytes as up to two slices. Consume them,
// then call AdvanceRead.
func (f *FIFO) ReadVector() (first, second []byte) {
	r := f.read
	n := f.readable(loadAcquireUint64(&f.write), r)
	return f.vector(r, n)
}

// AdvanceRead releases n consumed bytes to the producer.
func (f *FIFO) AdvanceRead(n int) {
	storeReleaseUint64(&f.read, (f.read+uint64(n))&f.mask)
}

// vector splits [pos, pos+n) at the end of the buffer.
func (f *FIFO) vector(pos, n uint64) (first, second []byte) {
	if end := pos + n; end > uint64(len(f.buf)) {
		return f.buf[pos:], f.buf[:end&f.mask]
	}
	return f.buf[pos : pos+n], nil
}
