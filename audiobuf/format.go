package audiobuf

import (
	"errors"

	"audioring/utils"
)

// ErrInvalidFormat reports a frame format that cannot describe PCM data.
var ErrInvalidFormat = errors.New("audiobuf: invalid format")

// Format is the frame layout a ring is built for.
//
// BytesPerFrame is the size of one frame within one channel stream. For
// non-interleaved audio that is one sample of one channel; for interleaved
// audio the single stream carries every channel, so it is the whole frame.
type Format struct {
	SampleRate       float64 // informational, Hz
	ChannelsPerFrame int
	BytesPerFrame    int
	Interleaved      bool
}

// NonInterleaved describes channels independent streams of bytesPerSample.
func NonInterleaved(sampleRate float64, channels, bytesPerSample int) Format {
	return Format{
		SampleRate:       sampleRate,
		ChannelsPerFrame: channels,
		BytesPerFrame:    bytesPerSample,
	}
}

// Interleaved describes one stream of channels × bytesPerSample frames.
func Interleaved(sampleRate float64, channels, bytesPerSample int) Format {
	return Format{
		SampleRate:       sampleRate,
		ChannelsPerFrame: channels,
		BytesPerFrame:    channels * bytesPerSample,
		Interleaved:      true,
	}
}

// ChannelStreamCount is the number of separate buffers a frame spans.
func (f Format) ChannelStreamCount() int {
	if f.Interleaved {
		return 1
	}
	return f.ChannelsPerFrame
}

// Validate checks the descriptor is usable.
func (f Format) Validate() error {
	switch {
	case f.ChannelsPerFrame < 1:
		return ErrInvalidFormat
	case f.BytesPerFrame < 1:
		return ErrInvalidFormat
	case f.Interleaved && f.BytesPerFrame%f.ChannelsPerFrame != 0:
		return ErrInvalidFormat
	case f.SampleRate < 0:
		return ErrInvalidFormat
	}
	return nil
}

// String renders e.g. "2 ch, 4 B/frame, non-interleaved, 48000 Hz".
func (f Format) String() string {
	layout := "non-interleaved"
	if f.Interleaved {
		layout = "interleaved"
	}
	return utils.Itoa(f.ChannelsPerFrame) + " ch, " +
		utils.Itoa(f.BytesPerFrame) + " B/frame, " + layout + ", " +
		utils.Itoa(int(f.SampleRate)) + " Hz"
}

// NewBufferList allocates caller-owned stream buffers able to hold frames
// frames of f. Allocates; keep it off the real-time path.
func NewBufferList(f Format, frames int) [][]byte {
	streams := f.ChannelStreamCount()
	size := frames * f.BytesPerFrame
	backing := make([]byte, streams*size)
	list := make([][]byte, streams)
	for i := range list {
		list[i] = backing[i*size : (i+1)*size : (i+1)*size]
	}
	return list
}
