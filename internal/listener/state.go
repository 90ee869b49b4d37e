package listener

import (
	"context"
	"errors"
	"fmt"

	"github.com/petems/earshot/internal/audio"
)

// FrameState classifies one frame of a segmentation pass.
type FrameState int

const (
	// Listen means the frame belongs to the utterance and recording continues.
	Listen FrameState = iota
	// Pause means the frame is not part of the utterance but recording continues.
	Pause
	// Stop ends the pass.
	Stop
)

func (s FrameState) String() string {
	switch s {
	case Listen:
		return "LISTEN"
	case Pause:
		return "PAUSE"
	case Stop:
		return "STOP"
	default:
		return fmt.Sprintf("FrameState(%d)", int(s))
	}
}

// AnnotatedFrame pairs a frame with the state it was classified as.
type AnnotatedFrame struct {
	Sample audio.Sample
	State  FrameState
}

// Classifier decides the state of the latest frame given every frame already
// recorded in the pass. prior never includes latest.
type Classifier interface {
	Classify(latest audio.Sample, prior []AnnotatedFrame) FrameState
}

// FrameSizer is implemented by classifiers that want to pick the per-read
// frame count themselves.
type FrameSizer interface {
	FrameSize(nFrames, frameRate int) int
}

// StateListener records frames until its classifier reports Stop, then joins
// the frames worth keeping into a single utterance.
type StateListener struct {
	listener   *Listener
	classifier Classifier

	// PreProcess, when set, is applied to each frame before classification.
	PreProcess func(audio.Sample) audio.Sample
	// PostProcess, when set, is applied to the joined utterance.
	PostProcess func(audio.Sample) audio.Sample
}

func NewStateListener(l *Listener, c Classifier) *StateListener {
	return &StateListener{listener: l, classifier: c}
}

// Classifier returns the policy the listener segments with.
func (s *StateListener) Classifier() Classifier { return s.classifier }

func (s *StateListener) FrameRate() int { return s.listener.FrameRate() }

// Read runs one segmentation pass with reads of nFrames frames
// (DefaultChunkFrames when 0) and returns the resulting utterance.
//
// If the source ends before the classifier reports Stop, whatever was
// recorded so far is returned. If it ends on the very first read,
// ErrNoAudioAvailable is returned.
func (s *StateListener) Read(ctx context.Context, nFrames int) (audio.Sample, error) {
	if nFrames == 0 {
		nFrames = DefaultChunkFrames
	}
	if sizer, ok := s.classifier.(FrameSizer); ok && nFrames > 0 {
		nFrames = sizer.FrameSize(nFrames, s.listener.FrameRate())
	}

	frames, err := s.listenFrames(ctx, nFrames)
	if err != nil {
		return audio.Sample{}, err
	}

	utterance, err := Join(Filter(frames), s.listener.FrameRate())
	if err != nil {
		return audio.Sample{}, err
	}
	if s.PostProcess != nil {
		utterance = s.PostProcess(utterance)
	}
	return utterance, nil
}

// Next runs one segmentation pass with the default read size.
func (s *StateListener) Next(ctx context.Context) (audio.Sample, error) {
	return s.Read(ctx, 0)
}

func (s *StateListener) listenFrames(ctx context.Context, nFrames int) ([]AnnotatedFrame, error) {
	frame, err := s.readFrame(ctx, nFrames)
	if err != nil {
		return nil, err
	}
	state := s.classifier.Classify(frame, nil)

	var frames []AnnotatedFrame
	for state != Stop {
		frames = append(frames, AnnotatedFrame{Sample: frame, State: state})

		frame, err = s.readFrame(ctx, nFrames)
		if errors.Is(err, ErrNoAudioAvailable) {
			// The source ran dry mid-pass; what we have is the utterance.
			return frames, nil
		}
		if err != nil {
			return nil, err
		}
		state = s.classifier.Classify(frame, frames)
	}

	return append(frames, AnnotatedFrame{Sample: frame, State: state}), nil
}

func (s *StateListener) readFrame(ctx context.Context, nFrames int) (audio.Sample, error) {
	frame, err := s.listener.Read(ctx, nFrames)
	if err != nil {
		return audio.Sample{}, err
	}
	if s.PreProcess != nil {
		frame = s.PreProcess(frame)
	}
	return frame, nil
}

// Filter keeps every Listen frame plus the single frame that follows each run
// of Listen frames. The first frame is treated as following a Pause.
func Filter(frames []AnnotatedFrame) []AnnotatedFrame {
	var kept []AnnotatedFrame
	previous := Pause
	for _, f := range frames {
		if f.State == Listen || previous == Listen {
			kept = append(kept, f)
		}
		previous = f.State
	}
	return kept
}

// Join concatenates the frames in order. No frames yields zero-length silence
// at frameRate.
func Join(frames []AnnotatedFrame, frameRate int) (audio.Sample, error) {
	if len(frames) == 0 {
		if frameRate <= 0 {
			return audio.Sample{}, fmt.Errorf("%w: frame rate must be positive, got %d", audio.ErrInvalidArgument, frameRate)
		}
		return audio.Silence(0, frameRate), nil
	}

	samples := make([]audio.Sample, len(frames))
	for i, f := range frames {
		samples[i] = f.Sample
	}
	return audio.Join(samples...)
}
