// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: config.go — soak run configuration
//
// Purpose:
//   - Describes one soak run: stream format, ring size, producer pacing,
//     forced discontinuities and the set of pinned readers.
//   - Decodes from JSON with sonnet on top of Default(), so a file only has
//     to name the fields it changes.
//
// Notes:
//   - Cold path only; errors are wrapped, never panicked.
//   - Core fields are optional: absent means "leave placement to the OS".
// ─────────────────────────────────────────────────────────────────────────────

package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"audioring/audiobuf"
	"audioring/constants"
	"audioring/utils"

	"github.com/sugawarayuuta/sonnet"
)

// ErrInvalid marks a configuration that cannot be run.
var ErrInvalid = errors.New("invalid soak config")

// Reader configures one pinned reader.
type Reader struct {
	Core           *int `json:"core,omitempty"`
	FramesPerFetch int  `json:"framesPerFetch"`
	FollowLive     bool `json:"followLive"`
}

// Soak configures one soak run.
type Soak struct {
	SampleRate     float64 `json:"sampleRate"`
	Channels       int     `json:"channels"`
	BytesPerSample int     `json:"bytesPerSample"`
	Interleaved    bool    `json:"interleaved"`

	CapacityFrames int `json:"capacityFrames"`
	FramesPerStore int `json:"framesPerStore"`
	DurationMs     int `json:"durationMs"`

	// Realtime paces the producer at SampleRate; otherwise it runs flat out.
	Realtime bool `json:"realtime"`

	// Every DiscontinuityEvery stores the producer jumps its clock by
	// DiscontinuityFrames (negative jumps emulate a device restart).
	DiscontinuityEvery  int   `json:"discontinuityEvery"`
	DiscontinuityFrames int64 `json:"discontinuityFrames"`

	LockMemory   bool     `json:"lockMemory"`
	ProducerCore *int     `json:"producerCore,omitempty"`
	Readers      []Reader `json:"readers"`

	JournalPath string `json:"journalPath"`
}

// Default returns a two-second stereo float32 run at 48 kHz with one reader
// from the stream start and one attached live.
func Default() Soak {
	return Soak{
		SampleRate:          48000,
		Channels:            2,
		BytesPerSample:      4,
		CapacityFrames:      constants.DefaultCapacityFrames,
		FramesPerStore:      256,
		DurationMs:          2000,
		Realtime:            true,
		DiscontinuityFrames: 48000,
		Readers: []Reader{
			{FramesPerFetch: 256},
			{FramesPerFetch: 512, FollowLive: true},
		},
	}
}

// Load reads and decodes the file at path. An empty path yields Default().
func Load(path string) (Soak, error) {
	if path == "" {
		cfg := Default()
		return cfg, cfg.Validate()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Soak{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return Decode(data)
}

// Decode parses data over Default() and validates the result.
func Decode(data []byte) (Soak, error) {
	cfg := Default()
	cfg.Readers = nil
	if err := sonnet.Unmarshal(data, &cfg); err != nil {
		return Soak{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if cfg.Readers == nil {
		cfg.Readers = Default().Readers
	}
	for i := range cfg.Readers {
		if cfg.Readers[i].FramesPerFetch == 0 {
			cfg.Readers[i].FramesPerFetch = cfg.FramesPerStore
		}
	}
	return cfg, cfg.Validate()
}

// Encode renders cfg as JSON.
func (s Soak) Encode() ([]byte, error) {
	return sonnet.Marshal(s)
}

// Format returns the stream format.
func (s Soak) Format() audiobuf.Format {
	if s.Interleaved {
		return audiobuf.Interleaved(s.SampleRate, s.Channels, s.BytesPerSample)
	}
	return audiobuf.NonInterleaved(s.SampleRate, s.Channels, s.BytesPerSample)
}

// Capacity returns the frame capacity the ring will actually have.
func (s Soak) Capacity() int64 {
	c := s.CapacityFrames
	if c == 0 {
		c = constants.DefaultCapacityFrames
	}
	return int64(utils.NextPowerOfTwo(uint64(c)))
}

// Duration returns the run length.
func (s Soak) Duration() time.Duration {
	return time.Duration(s.DurationMs) * time.Millisecond
}

// StorePeriod is the wall-clock time one Store represents at SampleRate.
func (s Soak) StorePeriod() time.Duration {
	if s.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(s.FramesPerStore) / s.SampleRate * float64(time.Second))
}

// CoreOf returns the CPU for c, or -1 when unset.
func CoreOf(c *int) int {
	if c == nil {
		return -1
	}
	return *c
}

// Validate checks that the run is executable.
func (s Soak) Validate() error {
	if err := s.Format().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if s.Realtime && s.SampleRate <= 0 {
		return fmt.Errorf("%w: realtime pacing needs a sample rate", ErrInvalid)
	}
	if s.CapacityFrames < 0 || int64(s.CapacityFrames) > constants.MaxCapacityFrames {
		return fmt.Errorf("%w: capacityFrames %d out of range", ErrInvalid, s.CapacityFrames)
	}
	capacity := s.Capacity()
	if s.FramesPerStore <= 0 || int64(s.FramesPerStore) > capacity {
		return fmt.Errorf("%w: framesPerStore %d not in (0, %d]", ErrInvalid, s.FramesPerStore, capacity)
	}
	if s.DurationMs <= 0 {
		return fmt.Errorf("%w: durationMs must be >0", ErrInvalid)
	}
	if s.DiscontinuityEvery < 0 {
		return fmt.Errorf("%w: discontinuityEvery must be >=0", ErrInvalid)
	}
	if s.DiscontinuityEvery > 0 && s.DiscontinuityFrames == 0 {
		return fmt.Errorf("%w: discontinuityFrames must be non-zero", ErrInvalid)
	}
	if CoreOf(s.ProducerCore) < -1 {
		return fmt.Errorf("%w: producerCore must be a CPU index or -1", ErrInvalid)
	}
	if len(s.Readers) == 0 {
		return fmt.Errorf("%w: at least one reader required", ErrInvalid)
	}
	for i, r := range s.Readers {
		if r.FramesPerFetch <= 0 || int64(r.FramesPerFetch) > capacity {
			return fmt.Errorf("%w: reader %d framesPerFetch %d not in (0, %d]", ErrInvalid, i, r.FramesPerFetch, capacity)
		}
		if CoreOf(r.Core) < -1 {
			return fmt.Errorf("%w: reader %d core must be a CPU index or -1", ErrInvalid, i)
		}
	}
	return nil
}
