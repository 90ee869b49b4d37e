package listener

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/petems/earshot/internal/audio"
)

type classifierFunc func(audio.Sample, []AnnotatedFrame) FrameState

func (f classifierFunc) Classify(latest audio.Sample, prior []AnnotatedFrame) FrameState {
	return f(latest, prior)
}

func states(frames []AnnotatedFrame) []FrameState {
	out := make([]FrameState, len(frames))
	for i, f := range frames {
		out[i] = f.State
	}
	return out
}

func annotate(t *testing.T, ss ...FrameState) []AnnotatedFrame {
	t.Helper()
	frames := make([]AnnotatedFrame, len(ss))
	for i, s := range ss {
		// Tag each frame with its position so filtering order can be checked.
		frames[i] = AnnotatedFrame{Sample: constantFrame(t, 0.01, i+1), State: s}
	}
	return frames
}

func equalStates(a, b []FrameState) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestFrameStateString(t *testing.T) {
	if Listen.String() != "LISTEN" || Pause.String() != "PAUSE" || Stop.String() != "STOP" {
		t.Fatal("unexpected state names")
	}
	if FrameState(7).String() != "FrameState(7)" {
		t.Fatalf("unexpected name for unknown state: %s", FrameState(7))
	}
}

func TestFilter(t *testing.T) {
	tests := []struct {
		name string
		in   []FrameState
		want []int // 1-based positions kept
	}{
		{"empty", nil, nil},
		{"listen only", []FrameState{Listen, Listen}, []int{1, 2}},
		{"trailing stop", []FrameState{Listen, Listen, Stop}, []int{1, 2, 3}},
		{"single pause in middle", []FrameState{Listen, Pause, Listen}, []int{1, 2, 3}},
		{"multiple pauses in middle", []FrameState{Listen, Pause, Pause, Listen}, []int{1, 2, 4}},
		{"stop only", []FrameState{Stop}, nil},
		{"pause at start", []FrameState{Pause, Listen, Listen}, []int{2, 3}},
		{"multiple pauses at start", []FrameState{Pause, Pause, Listen, Listen}, []int{3, 4}},
		{"pause then stop", []FrameState{Pause, Pause, Stop}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Filter(annotate(t, tt.in...))
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d frames, got %d (%v)", len(tt.want), len(got), states(got))
			}
			for i, pos := range tt.want {
				if int(got[i].Sample.RMS()) != pos {
					t.Fatalf("frame %d: expected original position %d, got %v", i, pos, got[i].Sample.RMS())
				}
			}
		})
	}
}

func TestFilterIsIdempotent(t *testing.T) {
	inputs := [][]FrameState{
		{Pause, Listen, Pause, Pause, Listen, Stop},
		{Listen, Pause, Pause, Pause},
		{Pause, Pause, Stop},
		{Listen, Stop},
	}
	for _, in := range inputs {
		once := Filter(annotate(t, in...))
		twice := Filter(once)
		if !equalStates(states(once), states(twice)) {
			t.Errorf("%v: filter not idempotent: %v then %v", in, states(once), states(twice))
		}
	}
}

func TestJoin(t *testing.T) {
	frames := []AnnotatedFrame{
		{Sample: constantFrame(t, 1, 10), State: Listen},
		{Sample: constantFrame(t, 1, 20), State: Listen},
	}
	joined, err := Join(frames, testRate)
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if joined.Duration() != 2*time.Second {
		t.Fatalf("expected 2s, got %v", joined.Duration())
	}
	ints := joined.Ints()
	if ints[0] != 10 || ints[len(ints)-1] != 20 {
		t.Fatal("frames joined out of order")
	}
}

func TestJoinEmptyIsZeroLengthSilence(t *testing.T) {
	joined, err := Join(nil, 44100)
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if joined.FrameCount() != 0 || joined.FrameRate() != 44100 {
		t.Fatalf("expected empty sample at 44100Hz, got %v", joined)
	}

	if _, err := Join(nil, 0); !errors.Is(err, audio.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for zero frame rate, got %v", err)
	}
}

func TestStateListenerReadsUntilStop(t *testing.T) {
	src := &scriptedSource{frames: []audio.Sample{
		constantFrame(t, 1, 0),
		constantFrame(t, 1, 0),
		constantFrame(t, 1, 0),
		constantFrame(t, 1, 0),
		constantFrame(t, 1, 0),
	}}

	calls := 0
	stopAfter := func(n int) Classifier {
		return classifierFunc(func(_ audio.Sample, prior []AnnotatedFrame) FrameState {
			calls++
			if len(prior) == n-1 {
				return Stop
			}
			return Listen
		})
	}

	tests := []struct {
		name      string
		stopAt    int
		wantReads int
	}{
		{"stop on first frame", 1, 1},
		{"stop on third frame", 3, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src.reads, calls = 0, 0
			sl := NewStateListener(New(src), stopAfter(tt.stopAt))
			frames, err := sl.listenFrames(context.Background(), 100)
			if err != nil {
				t.Fatalf("listenFrames: %v", err)
			}
			if src.reads != tt.wantReads || calls != tt.wantReads {
				t.Fatalf("expected %d reads and classifications, got %d and %d", tt.wantReads, src.reads, calls)
			}
			if len(frames) != tt.wantReads || frames[len(frames)-1].State != Stop {
				t.Fatalf("expected %d frames ending in STOP, got %v", tt.wantReads, states(frames))
			}
		})
	}
}

func TestStateListenerEndOfStreamMidPass(t *testing.T) {
	src := &scriptedSource{frames: []audio.Sample{
		constantFrame(t, 1, 800),
		constantFrame(t, 1, 800),
	}}
	sl := NewStateListener(New(src), SilencePolicy{Threshold: 500})

	utterance, err := sl.Read(context.Background(), 0)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if src.reads != 3 {
		t.Fatalf("expected 3 reads, got %d", src.reads)
	}
	if utterance.Duration() != 2*time.Second {
		t.Fatalf("expected both recorded frames, got %v", utterance.Duration())
	}
}

func TestStateListenerEndOfStreamOnFirstRead(t *testing.T) {
	sl := NewStateListener(New(&scriptedSource{}), SilencePolicy{Threshold: 500})
	if _, err := sl.Read(context.Background(), 0); !errors.Is(err, ErrNoAudioAvailable) {
		t.Fatalf("expected ErrNoAudioAvailable, got %v", err)
	}
}

func TestStateListenerOnlySilenceBeforeEnd(t *testing.T) {
	src := &scriptedSource{frames: []audio.Sample{
		constantFrame(t, 1, 0),
		constantFrame(t, 1, 0),
	}}
	sl := NewStateListener(New(src), SilencePolicy{Threshold: 500})

	utterance, err := sl.Read(context.Background(), 0)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if utterance.FrameCount() != 0 || utterance.FrameRate() != testRate {
		t.Fatalf("expected empty utterance at source rate, got %v", utterance)
	}
}

func TestStateListenerPropagatesSourceFailure(t *testing.T) {
	boom := errors.New("read failed")
	sl := NewStateListener(New(failingSource{err: boom}), SilencePolicy{Threshold: 500})
	if _, err := sl.Read(context.Background(), 0); !errors.Is(err, boom) {
		t.Fatalf("expected source error, got %v", err)
	}
}

func TestStateListenerHooks(t *testing.T) {
	src := &scriptedSource{frames: []audio.Sample{
		constantFrame(t, 1, 100),
		constantFrame(t, 1, 100),
		constantFrame(t, 1, 100),
	}}
	sl := NewStateListener(New(src), SilencePolicy{Threshold: 500})

	// Boost quiet frames above the threshold so the policy hears them.
	sl.PreProcess = func(s audio.Sample) audio.Sample {
		return constantFrame(t, s.Seconds(), 1000)
	}
	postCalls := 0
	sl.PostProcess = func(s audio.Sample) audio.Sample {
		postCalls++
		return s
	}

	utterance, err := sl.Read(context.Background(), 0)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if postCalls != 1 {
		t.Fatalf("expected post-process once, got %d", postCalls)
	}
	if utterance.Duration() != 3*time.Second || utterance.RMS() != 1000 {
		t.Fatalf("expected three boosted frames, got %v at RMS %v", utterance.Duration(), utterance.RMS())
	}
}
