package audio

import (
	"context"
	"errors"
)

var (
	// ErrEndOfStream is returned by a Source once it has no more frames to give.
	ErrEndOfStream = errors.New("audio: end of stream")

	// ErrInvalidArgument is wrapped by every precondition failure in this package.
	ErrInvalidArgument = errors.New("audio: invalid argument")
)

// Source is a pull-based frame producer. File-backed sources are finite and
// report ErrEndOfStream when exhausted; device-backed sources never end on
// their own.
//
// A nFrames of 0 asks the source for its default read size. Negative values
// are rejected with ErrInvalidArgument.
type Source interface {
	Read(ctx context.Context, nFrames int) (Sample, error)
	FrameRate() int
}

// AudioDevice represents an audio input device
type AudioDevice struct {
	Index             int
	Name              string
	MaxInputChannels  int
	DefaultSampleRate float64
	Default           bool
}
