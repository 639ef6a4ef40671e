package soak

import (
	"audioring/timering"

	"github.com/sugawarayuuta/sonnet"
)

// ReaderReport summarizes one reader.
type ReaderReport struct {
	ID              int    `json:"id"`
	Core            int    `json:"core"`
	FramesPerFetch  int    `json:"framesPerFetch"`
	FollowLive      bool   `json:"followLive"`
	Blocks          int64  `json:"blocks"`
	FramesDelivered int64  `json:"framesDelivered"`
	FramesSilent    int64  `json:"framesSilent"`
	FramesDropped   int64  `json:"framesDropped"`
	Drops           int64  `json:"drops"`
	Resyncs         int64  `json:"resyncs"`
	CorruptBlocks   int64  `json:"corruptBlocks"`
	LostEvents      int64  `json:"lostEvents"`
	Digest          string `json:"sha3"` // SHA3-256 over every delivered byte, stream by stream per block
}

// Report summarizes one soak run.
type Report struct {
	RunID           int64          `json:"runId,omitempty"`
	Format          string         `json:"format"`
	CapacityFrames  int64          `json:"capacityFrames"`
	FramesPerStore  int            `json:"framesPerStore"`
	Realtime        bool           `json:"realtime"`
	MemoryLocked    bool           `json:"memoryLocked"`
	ElapsedMs       int64          `json:"elapsedMs"`
	FramesProduced  int64          `json:"framesProduced"`
	Stores          int64          `json:"stores"`
	Discontinuities int64          `json:"discontinuities"`
	EndTime         int64          `json:"endTime"`
	Interrupted     bool           `json:"interrupted"`
	JournalErrors   int64          `json:"journalErrors"`
	Ring            timering.Stats `json:"ring"`
	Readers         []ReaderReport `json:"readers"`
	Passed          bool           `json:"passed"`
}

// verdict passes a run in which something was produced, every reader got
// audio and no validated block failed its content check.
func (r *Report) verdict() bool {
	if r.FramesProduced == 0 || r.Ring.CapacityExceeded != 0 {
		return false
	}
	for _, rr := range r.Readers {
		if rr.CorruptBlocks != 0 || rr.FramesDelivered == 0 {
			return false
		}
	}
	return true
}

// Encode renders the report as JSON.
func (r Report) Encode() ([]byte, error) {
	return sonnet.Marshal(r)
}
