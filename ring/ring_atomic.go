// ring_atomic.go
//
// Acquire/release helpers for the FIFO positions. sync/atomic is seq-cst,
// a superset of the ordering the FIFO needs.

package ring

import "sync/atomic"

// loadAcquireUint64 is an acquire load of *p.
func loadAcquireUint64(p *uint64) uint64 {
	return atomic.LoadUint64(p)
}

// storeReleaseUint64 is a release store to *p.
func storeReleaseUint64(p *uint64, v uint64) {
	atomic.StoreUint64(p, v)
}
