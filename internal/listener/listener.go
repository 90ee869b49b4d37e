package listener

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/petems/earshot/internal/audio"
)

// DefaultChunkFrames is the read size used when a caller asks for 0 frames.
const DefaultChunkFrames = 16384

var (
	// ErrNoAudioAvailable means there is nothing to read now, or ever again,
	// from a listener.
	ErrNoAudioAvailable = errors.New("listener: no audio available")

	// ErrListenerRunning is returned when starting a capture session whose
	// worker is still alive.
	ErrListenerRunning = errors.New("listener: already running")
)

// Stream is anything that hands out one sample per call until it reports
// ErrNoAudioAvailable.
type Stream interface {
	Next(ctx context.Context) (audio.Sample, error)
}

// Samples ranges over a stream. Iteration stops quietly at
// ErrNoAudioAvailable and at any other error; callers that need the error
// should call Next directly.
func Samples(ctx context.Context, s Stream) iter.Seq[audio.Sample] {
	return func(yield func(audio.Sample) bool) {
		for {
			sample, err := s.Next(ctx)
			if err != nil {
				return
			}
			if !yield(sample) {
				return
			}
		}
	}
}

// Listener reads raw chunks from a source, turning the source's end of
// stream into ErrNoAudioAvailable.
type Listener struct {
	source audio.Source
}

func New(source audio.Source) *Listener {
	return &Listener{source: source}
}

// Source returns the wrapped audio source.
func (l *Listener) Source() audio.Source { return l.source }

// FrameRate is the frame rate of the wrapped source.
func (l *Listener) FrameRate() int { return l.source.FrameRate() }

// Read reads nFrames frames from the source, or DefaultChunkFrames when
// nFrames is 0.
func (l *Listener) Read(ctx context.Context, nFrames int) (audio.Sample, error) {
	if nFrames == 0 {
		nFrames = DefaultChunkFrames
	}
	if nFrames < 0 {
		return audio.Sample{}, fmt.Errorf("%w: frame count must be positive, got %d", audio.ErrInvalidArgument, nFrames)
	}

	s, err := l.source.Read(ctx, nFrames)
	if errors.Is(err, audio.ErrEndOfStream) {
		return audio.Sample{}, fmt.Errorf("%w: %w", ErrNoAudioAvailable, err)
	}
	if err != nil {
		return audio.Sample{}, err
	}
	return s, nil
}

// Next reads one default-sized chunk.
func (l *Listener) Next(ctx context.Context) (audio.Sample, error) {
	return l.Read(ctx, 0)
}
