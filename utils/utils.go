package utils

import (
	"math/bits"
	"unsafe"

	"golang.org/x/sys/unix"
)

///////////////////////////////////////////////////////////////////////////////
// Conversion Utilities — Zero-Alloc Casts
///////////////////////////////////////////////////////////////////////////////

// B2s converts a []byte to a string **without** allocation.
// ⚠️ Caller must ensure the input slice remains valid and unchanged.
// Used for human-readable print paths.
//
//go:nosplit
//go:inline
func B2s(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return unsafe.String(&b[0], len(b))
}

// Itoa formats a signed integer into decimal without strconv.
// Only used on cold diagnostic paths.
func Itoa(n int) string {
	return I64toa(int64(n))
}

// I64toa is Itoa for sample times and other 64-bit counters.
func I64toa(n int64) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	u := uint64(n)
	if n < 0 {
		u = uint64(-n)
	}
	for u > 0 {
		i--
		buf[i] = byte('0' + u%10)
		u /= 10
	}
	if n < 0 {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

///////////////////////////////////////////////////////////////////////////////
// Power-of-Two Sizing — Mask Arithmetic Support
///////////////////////////////////////////////////////////////////////////////

// IsPowerOfTwo reports whether n is a positive power of two.
//
//go:nosplit
//go:inline
func IsPowerOfTwo(n uint64) bool {
	return n != 0 && n&(n-1) == 0
}

// NextPowerOfTwo returns the smallest power of two >= n.
// n == 0 yields 1. Values above 1<<63 have no representable answer and panic.
//
//go:nosplit
//go:inline
func NextPowerOfTwo(n uint64) uint64 {
	if n <= 1 {
		return 1
	}
	if n > 1<<63 {
		panic("utils: NextPowerOfTwo overflow")
	}
	return 1 << (64 - bits.LeadingZeros64(n-1))
}

///////////////////////////////////////////////////////////////////////////////
// Hash & Mixers — Deterministic Sample Patterns
///////////////////////////////////////////////////////////////////////////////

// Mix64 applies a Murmur3-style avalanche to a 64-bit value.
// Used to derive reproducible sample content from a sample time.
//
//go:nosplit
//go:inline
func Mix64(x uint64) uint64 {
	x ^= x >> 33
	x *= 0xff51afd7ed558ccd
	x ^= x >> 33
	x *= 0xc4ceb9fe1a85ec53
	x ^= x >> 33
	return x
}

///////////////////////////////////////////////////////////////////////////////
// Raw Console Output — fd writes, no fmt, no log
///////////////////////////////////////////////////////////////////////////////

// PrintInfo writes msg straight to stdout.
//
//go:nosplit
//go:inline
func PrintInfo(msg string) {
	writeFD(unix.Stdout, msg)
}

// PrintWarning writes msg straight to stderr.
//
//go:nosplit
//go:inline
func PrintWarning(msg string) {
	writeFD(unix.Stderr, msg)
}

// writeFD loops until msg is fully written or the fd refuses it.
// Errors are swallowed: there is nowhere left to report them.
func writeFD(fd int, msg string) {
	if len(msg) == 0 {
		return
	}
	b := unsafe.Slice(unsafe.StringData(msg), len(msg))
	for len(b) > 0 {
		n, err := unix.Write(fd, b)
		if err == unix.EINTR {
			continue
		}
		if err != nil || n <= 0 {
			return
		}
		b = b[n:]
	}
}
