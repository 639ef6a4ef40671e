package soak

import (
	"audioring/audiobuf"
	"audioring/utils"
)

// word returns 8 pattern bytes for lane of stream at sample time t.
//
//go:nosplit
//go:inline
func word(stream int, t int64, lane int) uint64 {
	return utils.Mix64(uint64(t)*0x9e3779b97f4a7c15 ^ uint64(stream)<<48 ^ uint64(lane))
}

// Fill writes the deterministic content of sample times [t, t+frames) into
// buffers. Every byte depends on its stream, time and position in the frame,
// so a misplaced, stale or torn frame never matches.
func Fill(f audiobuf.Format, buffers [][]byte, t int64, frames int) {
	bpf := f.BytesPerFrame
	for s, buf := range buffers {
		for i := 0; i < frames; i++ {
			frame := buf[i*bpf : (i+1)*bpf]
			for k := 0; k < bpf; k += 8 {
				w := word(s, t+int64(i), k>>3)
				for b := k; b < bpf && b < k+8; b++ {
					frame[b] = byte(w >> (8 * uint(b-k)))
				}
			}
		}
	}
}

// Check verifies that each frame of buffers holds either the pattern for
// its sample time or silence in every stream. It returns the number of
// silent frames and the index of the first bad frame, or -1.
func Check(f audiobuf.Format, buffers [][]byte, t int64, frames int) (silent, bad int) {
	bpf := f.BytesPerFrame
	for i := 0; i < frames; i++ {
		match, zero := true, true
		for s, buf := range buffers {
			frame := buf[i*bpf : (i+1)*bpf]
			for k := 0; k < bpf; k += 8 {
				w := word(s, t+int64(i), k>>3)
				for b := k; b < bpf && b < k+8; b++ {
					v := frame[b]
					if v != byte(w>>(8*uint(b-k))) {
						match = false
					}
					if v != 0 {
						zero = false
					}
				}
			}
		}
		switch {
		case match:
		case zero:
			silent++
		default:
			return silent, i
		}
	}
	return silent, -1
}
