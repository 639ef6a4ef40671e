// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: constants.go — ring sizing, bounds publication and spin tunables
//
// Purpose:
//   - Defines capacity limits for the byte store and the time-indexed ring.
//   - Sizes the lock-free time bounds queue and its reader retry budget.
//   - Tunes the pinned reader's hot/cold polling.
//
// ⚠️ No runtime logic here — all values must be compile-time resolvable
// ─────────────────────────────────────────────────────────────────────────────

package constants

import "time"

// ───────────────────────────── Ring Capacity ──────────────────────────────

const (
	// DefaultCapacityFrames is used when a caller asks for capacity 0.
	// 4096 frames ≈ 85 ms at 48 kHz, several device callbacks of slack.
	DefaultCapacityFrames = 4096

	// MaxCapacityFrames bounds the frame capacity (2^31 frames). Typed so
	// comparisons widen the caller's int instead of overflowing it.
	MaxCapacityFrames int64 = 1 << 31

	// MaxFIFOBytes bounds the byte FIFO capacity (2^31 bytes).
	MaxFIFOBytes int64 = 1 << 31

	// MinFIFOBytes is the smallest FIFO; one byte is always kept free.
	MinFIFOBytes = 2
)

// ─────────────────────────── Bounds Publication ────────────────────────────

const (
	// TimeBoundsQueueSize is the number of bounds snapshots kept in flight.
	// A reader only fails to obtain a consistent snapshot when the producer
	// publishes this many times during one snapshot read.
	TimeBoundsQueueSize = 32

	// TimeBoundsQueueMask wraps the publication counter into the queue.
	TimeBoundsQueueMask = TimeBoundsQueueSize - 1

	// TimeBoundsRetries is how often a reader retries a torn snapshot.
	TimeBoundsRetries = 8
)

// ───────────────────────────── Pinned Reader ───────────────────────────────

const (
	// HotWindow keeps a reader in tight polling after its last delivery.
	HotWindow = 2 * time.Second

	// SpinBudget is the number of empty polls before a cold-path yield.
	SpinBudget = 224
)

// ───────────────────────────── Reader Events ───────────────────────────────

const (
	// EventRecordSize is the fixed size of one reader event in a ring.FIFO:
	// kind(8) | sample time(8) | frames(8) | reader id(8).
	EventRecordSize = 32

	// EventFIFOBytes sizes each reader's event FIFO (1024 records).
	EventFIFOBytes = EventRecordSize * 1024
)
