// ════════════════════════════════════════════════════════════════════════════════════════════════
// CPU Relaxation - ARM64 Architecture
// ────────────────────────────────────────────────────────────────────────────────────────────────
// YIELD hint for the pinned reader's cold spin (Apple Silicon, Graviton).
// ════════════════════════════════════════════════════════════════════════════════════════════════

//go:build arm64 && cgo && !noasm

package timering

/*
static inline void cpu_yield() {
    __asm__ __volatile__("yield" ::: "memory");
}
*/
import "C"

// cpuRelax emits the ARM64 YIELD instruction.
func cpuRelax() {
	C.cpu_yield()
}
