// ════════════════════════════════════════════════════════════════════════════════════════════════
// CPU Relaxation - AMD64 Architecture
// ────────────────────────────────────────────────────────────────────────────────────────────────
// PAUSE hint for the pinned reader's cold spin. Lets the sibling hyperthread
// (often the audio producer) make progress while this one waits.
// ════════════════════════════════════════════════════════════════════════════════════════════════

//go:build amd64 && cgo && !noasm

package timering

/*
static inline void cpu_pause() {
    __asm__ __volatile__("pause" ::: "memory");
}
*/
import "C"

// cpuRelax emits the x86-64 PAUSE instruction.
func cpuRelax() {
	C.cpu_pause()
}
