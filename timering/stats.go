package timering

import (
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

// Stats is a point-in-time copy of the ring's counters.
type Stats struct {
	Stores           uint64 `json:"stores"`
	FramesStored     uint64 `json:"framesStored"`
	CapacityExceeded uint64 `json:"capacityExceeded"`
	Discontinuities  uint64 `json:"discontinuities"`
	FramesZeroed     uint64 `json:"framesZeroed"` // ring slots cleared across forward gaps

	Fetches          uint64 `json:"fetches"`
	FramesFetched    uint64 `json:"framesFetched"`
	ZeroFilledFrames uint64 `json:"zeroFilledFrames"`
	TooLate          uint64 `json:"tooLate"`
	TooEarly         uint64 `json:"tooEarly"`
	NotReady         uint64 `json:"notReady"`
	Unstable         uint64 `json:"unstable"`
}

// counters keeps producer-written and reader-written counters on separate
// cache lines; readers contend only among themselves.
type counters struct {
	_                cpu.CacheLinePad
	stores           atomic.Uint64
	framesStored     atomic.Uint64
	capacityExceeded atomic.Uint64
	discontinuities  atomic.Uint64
	framesZeroed     atomic.Uint64

	_                cpu.CacheLinePad
	fetches          atomic.Uint64
	framesFetched    atomic.Uint64
	zeroFilledFrames atomic.Uint64
	tooLate          atomic.Uint64
	tooEarly         atomic.Uint64
	notReady         atomic.Uint64
	unstable         atomic.Uint64
	_                cpu.CacheLinePad
}

// countFetchError bumps the counter matching err.
//
//go:nosplit
func (c *counters) countFetchError(err error) {
	switch err {
	case ErrTooLate:
		c.tooLate.Add(1)
	case ErrTooEarly:
		c.tooEarly.Add(1)
	case ErrNotReady:
		c.notReady.Add(1)
	case ErrBoundsUnstable:
		c.unstable.Add(1)
	}
}

func (c *counters) snapshot() Stats {
	return Stats{
		Stores:           c.stores.Load(),
		FramesStored:     c.framesStored.Load(),
		CapacityExceeded: c.capacityExceeded.Load(),
		Discontinuities:  c.discontinuities.Load(),
		FramesZeroed:     c.framesZeroed.Load(),
		Fetches:          c.fetches.Load(),
		FramesFetched:    c.framesFetched.Load(),
		ZeroFilledFrames: c.zeroFilledFrames.Load(),
		TooLate:          c.tooLate.Load(),
		TooEarly:         c.tooEarly.Load(),
		NotReady:         c.notReady.Load(),
		Unstable:         c.unstable.Load(),
	}
}

func (c *counters) reset() {
	for _, a := range []*atomic.Uint64{
		&c.stores, &c.framesStored, &c.capacityExceeded, &c.discontinuities, &c.framesZeroed,
		&c.fetches, &c.framesFetched, &c.zeroFilledFrames,
		&c.tooLate, &c.tooEarly, &c.notReady, &c.unstable,
	} {
		a.Store(0)
	}
}
