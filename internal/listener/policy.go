package listener

import (
	"fmt"
	"math"
	"time"

	"github.com/petems/earshot/internal/audio"
)

// DefaultSilenceThreshold is the RMS level above which a frame counts as speech.
const DefaultSilenceThreshold = 500

// SilencePolicy listens while frames are louder than Threshold. Quiet frames
// before any speech are paused over; the first quiet frame after speech stops
// the pass.
type SilencePolicy struct {
	Threshold float64
}

func (p SilencePolicy) Classify(latest audio.Sample, prior []AnnotatedFrame) FrameState {
	if latest.RMS() > p.Threshold {
		return Listen
	}
	if len(prior) == 0 || prior[len(prior)-1].State == Pause {
		return Pause
	}
	return Stop
}

// TimePolicy listens until the recorded audio exceeds Total.
type TimePolicy struct {
	Total time.Duration
}

func (p TimePolicy) Classify(latest audio.Sample, prior []AnnotatedFrame) FrameState {
	if latest.FrameCount() == 0 {
		return Pause
	}

	recorded := latest.Duration()
	for _, f := range prior {
		recorded += f.Sample.Duration()
	}
	if len(prior) == 0 || recorded <= p.Total {
		return Listen
	}
	return Stop
}

// FrameSize adjusts nFrames so that a whole number of reads covers Total at
// frameRate.
func (p TimePolicy) FrameSize(nFrames, frameRate int) int {
	totalFrames := p.Total.Seconds() * float64(frameRate)
	recordings := math.RoundToEven(totalFrames / float64(nFrames))
	if recordings < 1 {
		recordings = 1
	}
	return int(math.Ceil(totalFrames / recordings))
}

// NewSilenceListener segments source on silence. A threshold of 0 selects
// DefaultSilenceThreshold.
func NewSilenceListener(source audio.Source, threshold float64) (*StateListener, error) {
	if threshold == 0 {
		threshold = DefaultSilenceThreshold
	}
	if threshold < 0 {
		return nil, fmt.Errorf("%w: silence threshold must be positive, got %v", audio.ErrInvalidArgument, threshold)
	}
	return NewStateListener(New(source), SilencePolicy{Threshold: threshold}), nil
}

// NewTimeListener segments source into utterances of about total each.
func NewTimeListener(source audio.Source, total time.Duration) (*StateListener, error) {
	if total <= 0 {
		return nil, fmt.Errorf("%w: total duration must be positive, got %v", audio.ErrInvalidArgument, total)
	}
	return NewStateListener(New(source), TimePolicy{Total: total}), nil
}
