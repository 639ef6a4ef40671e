// control.go — global producer activity and shutdown flags for pinned readers
// ============================================================================
// SYSTEM CONTROL ORCHESTRATION
// ============================================================================
//
// Lightweight signaling shared by the device-callback producer and the
// pinned readers that follow it.
//
// Threading model:
//   • The producer calls SignalActivity() after every Store
//   • Readers poll the flags returned by Flags() to pick hot or cold spin
//   • PollCooldown() clears the hot flag once the producer goes quiet
//   • Shutdown() asks every reader to exit; Reset() re-arms for a new run
//
// All flag accesses are atomic: the readers run on other OS threads.

package control

import (
	"sync/atomic"
	"time"
)

// ============================================================================
// GLOBAL STATE MANAGEMENT
// ============================================================================

var (
	hot  uint32 // 1 = producer stored recently, 0 = idle
	stop uint32 // 1 = readers must exit

	lastHot    int64                           // UnixNano of last SignalActivity
	cooldownNs = int64(250 * time.Millisecond) // idle time before hot drops
)

// ============================================================================
// ACTIVITY SIGNALING
// ============================================================================

// SignalActivity marks the producer as active. Called on the device
// callback path; two atomic stores and a vDSO clock read.
//
//go:nosplit
//go:inline
func SignalActivity() {
	atomic.StoreUint32(&hot, 1)
	atomic.StoreInt64(&lastHot, time.Now().UnixNano())
}

// PollCooldown clears the hot flag after cooldownNs without activity.
//
//go:nosplit
//go:inline
func PollCooldown() {
	if atomic.LoadUint32(&hot) == 1 &&
		time.Now().UnixNano()-atomic.LoadInt64(&lastHot) > atomic.LoadInt64(&cooldownNs) {
		atomic.StoreUint32(&hot, 0)
	}
}

// SetCooldown changes the idle period used by PollCooldown.
func SetCooldown(d time.Duration) {
	atomic.StoreInt64(&cooldownNs, int64(d))
}

// ============================================================================
// SHUTDOWN
// ============================================================================

// Shutdown sets the stop flag; every pinned reader exits on its next poll.
//
//go:nosplit
//go:inline
func Shutdown() {
	atomic.StoreUint32(&stop, 1)
}

// Stopping reports whether Shutdown was called.
//
//go:nosplit
//go:inline
func Stopping() bool {
	return atomic.LoadUint32(&stop) != 0
}

// Reset clears both flags so a new run can start.
func Reset() {
	atomic.StoreUint32(&stop, 0)
	atomic.StoreUint32(&hot, 0)
	atomic.StoreInt64(&lastHot, 0)
}

// ============================================================================
// FLAG ACCESS
// ============================================================================

// Flags returns pointers to the global (stop, hot) flags for readers that
// poll them directly. Access them with sync/atomic.
//
//go:nosplit
//go:inline
func Flags() (*uint32, *uint32) {
	return &stop, &hot
}
