// ============================================================================
// BYTE RING STORE
// ============================================================================
//
// Fixed-capacity circular byte storage partitioned into N equal regions,
// one per audio channel stream, carved out of a single allocation.
//
// Core capabilities:
//   - Wraparound-safe copy in/out of any region at any offset
//   - Two contiguous copies (tail then head) when a range crosses the end
//     of its region; the physical buffer is never doubled
//   - Mask arithmetic when the region length is a power of two
//
// Safety model:
//   - No logical (time) validation here: index + length → at most two copies
//   - Contract violations (non-positive length, bad channel, short slices,
//     length above region size) panic
//   - Single writer; concurrent readers of a region being rewritten may see
//     a mix of old and new bytes. Callers validate ranges, not this layer.

package bytering

import "audioring/utils"

// Store is the raw backing memory of a ring: streams × regionBytes bytes.
type Store struct {
	data   []byte
	region int  // bytes per channel region
	mask   int  // region-1 when pow2
	pow2   bool // region is a power of two
	count  int  // number of regions
}

// New allocates a store of streams regions, each regionBytes long.
func New(streams, regionBytes int) *Store {
	if streams <= 0 {
		panic("bytering: stream count must be >0")
	}
	if regionBytes <= 0 {
		panic("bytering: region size must be >0")
	}
	total := streams * regionBytes
	if total/streams != regionBytes {
		panic("bytering: allocation size overflows int")
	}
	pow2 := utils.IsPowerOfTwo(uint64(regionBytes))
	s := &Store{
		data:   make([]byte, total),
		region: regionBytes,
		pow2:   pow2,
		count:  streams,
	}
	if pow2 {
		s.mask = regionBytes - 1
	}
	return s
}

// Streams returns the number of channel regions.
func (s *Store) Streams() int { return s.count }

// RegionBytes returns the length of one channel region.
func (s *Store) RegionBytes() int { return s.region }

// Len returns the size of the whole allocation.
func (s *Store) Len() int { return len(s.data) }

// wrap reduces a byte offset into [0, region).
//
//go:nosplit
//go:inline
func (s *Store) wrap(off int) int {
	if s.pow2 {
		return off & s.mask
	}
	if off >= s.region || off < 0 {
		off %= s.region
		if off < 0 {
			off += s.region
		}
	}
	return off
}

// channel returns the region slice for ch after contract checks.
func (s *Store) channel(ch, byteCount int) []byte {
	if ch < 0 || ch >= s.count {
		panic("bytering: channel index out of range")
	}
	if byteCount <= 0 {
		panic("bytering: byte count must be >0")
	}
	if byteCount > s.region {
		panic("bytering: byte count exceeds region size")
	}
	base := ch * s.region
	return s.data[base : base+s.region : base+s.region]
}

// WriteChannel copies byteCount bytes of src into channel ch starting at
// byteOffset (wrapped into the region). A write crossing the region end is
// split into a tail copy followed by a head copy.
//
//go:norace
func (s *Store) WriteChannel(ch int, src []byte, byteOffset, byteCount int) {
	region := s.channel(ch, byteCount)
	if len(src) < byteCount {
		panic("bytering: source shorter than byte count")
	}
	off := s.wrap(byteOffset)
	if first := s.region - off; byteCount <= first {
		copy(region[off:off+byteCount], src[:byteCount])
	} else {
		copy(region[off:], src[:first])
		copy(region[:byteCount-first], src[first:byteCount])
	}
}

// ReadChannel copies byteCount bytes from channel ch starting at byteOffset
// (wrapped into the region) into dst, using the same split-copy rule.
//
//go:norace
func (s *Store) ReadChannel(ch int, dst []byte, byteOffset, byteCount int) {
	region := s.channel(ch, byteCount)
	if len(dst) < byteCount {
		panic("bytering: destination shorter than byte count")
	}
	off := s.wrap(byteOffset)
	if first := s.region - off; byteCount <= first {
		copy(dst[:byteCount], region[off:off+byteCount])
	} else {
		copy(dst[:first], region[off:])
		copy(dst[first:byteCount], region[:byteCount-first])
	}
}

// ZeroChannel clears byteCount bytes of channel ch starting at byteOffset.
//
//go:norace
func (s *Store) ZeroChannel(ch int, byteOffset, byteCount int) {
	region := s.channel(ch, byteCount)
	off := s.wrap(byteOffset)
	if first := s.region - off; byteCount <= first {
		clear(region[off : off+byteCount])
	} else {
		clear(region[off:])
		clear(region[:byteCount-first])
	}
}

// Reset zeroes every region. Not safe against concurrent readers.
//
//go:norace
func (s *Store) Reset() {
	clear(s.data)
}
