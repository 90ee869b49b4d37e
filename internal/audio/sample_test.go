package audio

import (
	"errors"
	"math"
	"testing"
	"time"
)

var mono16k = Format{FrameRate: 16000, Channels: 1, BitDepth: 16}

func mustInts(t *testing.T, values []int, f Format) Sample {
	t.Helper()
	s, err := FromInts(values, f)
	if err != nil {
		t.Fatalf("FromInts: %v", err)
	}
	return s
}

func TestNewSampleRejectsPartialFrames(t *testing.T) {
	_, err := NewSample([]byte{1, 2, 3}, mono16k)
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestNewSampleRejectsBadFormat(t *testing.T) {
	tests := []struct {
		name   string
		format Format
	}{
		{"zero frame rate", Format{FrameRate: 0, Channels: 1, BitDepth: 16}},
		{"no channels", Format{FrameRate: 8000, Channels: 0, BitDepth: 16}},
		{"odd bit depth", Format{FrameRate: 8000, Channels: 1, BitDepth: 12}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewSample(nil, tt.format); !errors.Is(err, ErrInvalidArgument) {
				t.Fatalf("expected ErrInvalidArgument, got %v", err)
			}
		})
	}
}

func TestNewSampleCopiesInput(t *testing.T) {
	data := []byte{1, 0, 2, 0}
	s, err := NewSample(data, mono16k)
	if err != nil {
		t.Fatalf("NewSample: %v", err)
	}
	data[0] = 99
	if got := s.Ints()[0]; got != 1 {
		t.Fatalf("sample changed after caller mutated input: got %d", got)
	}
}

func TestIntsRoundTripAllBitDepths(t *testing.T) {
	for _, depth := range []int{8, 16, 24, 32} {
		f := Format{FrameRate: 8000, Channels: 1, BitDepth: depth}
		lo, hi := sampleLimits(depth)
		values := []int{lo, -1, 0, 1, hi}
		got := mustInts(t, values, f).Ints()
		for i := range values {
			if got[i] != values[i] {
				t.Errorf("%d-bit: value %d: expected %d, got %d", depth, i, values[i], got[i])
			}
		}
	}
}

func TestFromIntsClamps(t *testing.T) {
	got := mustInts(t, []int{40000, -40000}, mono16k).Ints()
	if got[0] != 32767 || got[1] != -32768 {
		t.Fatalf("expected clamped values, got %v", got)
	}
}

func TestSilence(t *testing.T) {
	s := Silence(1.5, 44100)
	if s.FrameCount() != 66150 {
		t.Fatalf("expected 66150 frames, got %d", s.FrameCount())
	}
	if s.Duration() != 1500*time.Millisecond {
		t.Fatalf("expected 1.5s, got %v", s.Duration())
	}
	if s.RMS() != 0 {
		t.Fatalf("expected silent RMS, got %f", s.RMS())
	}
	if Silence(0, 44100).FrameCount() != 0 {
		t.Fatal("expected empty silence")
	}
}

func TestRMS(t *testing.T) {
	s := mustInts(t, []int{3, -4, 3, -4}, mono16k)
	want := math.Sqrt((9 + 16 + 9 + 16) / 4.0)
	if math.Abs(s.RMS()-want) > 1e-9 {
		t.Fatalf("expected RMS %f, got %f", want, s.RMS())
	}
}

func TestSlice(t *testing.T) {
	stereo := Format{FrameRate: 8000, Channels: 2, BitDepth: 16}
	s := mustInts(t, []int{1, 2, 3, 4, 5, 6}, stereo)

	mid, err := s.Slice(1, 3)
	if err != nil {
		t.Fatalf("Slice: %v", err)
	}
	got := mid.Ints()
	want := []int{3, 4, 5, 6}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}

	if _, err := s.Slice(2, 4); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected out of range error, got %v", err)
	}
}

func TestJoinPreservesOrder(t *testing.T) {
	a := mustInts(t, []int{1, 2}, mono16k)
	b := mustInts(t, []int{3}, mono16k)
	c := mustInts(t, []int{4, 5}, mono16k)

	joined, err := Join(a, b, c)
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if !joined.Equal(mustInts(t, []int{1, 2, 3, 4, 5}, mono16k)) {
		t.Fatalf("unexpected join result %v", joined.Ints())
	}

	ab, _ := a.Concat(b)
	abc, _ := ab.Concat(c)
	if !abc.Equal(joined) {
		t.Fatal("expected pairwise concatenation to match Join")
	}
}

func TestJoinRejectsMismatchedFormats(t *testing.T) {
	a := Silence(1, 16000)
	b := Silence(1, 44100)
	if _, err := Join(a, b); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if _, err := Join(); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for empty join, got %v", err)
	}
}

func TestFloat32MonoDownmixes(t *testing.T) {
	stereo := Format{FrameRate: 8000, Channels: 2, BitDepth: 16}
	s := mustInts(t, []int{16384, 0, -16384, -16384}, stereo)
	got := s.Float32Mono()
	if len(got) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(got))
	}
	if got[0] != 0.25 || got[1] != -0.5 {
		t.Fatalf("unexpected downmix %v", got)
	}
}
