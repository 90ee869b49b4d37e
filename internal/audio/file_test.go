package audio

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func rampSample(t *testing.T, frames int, f Format) Sample {
	t.Helper()
	values := make([]int, frames*f.Channels)
	for i := range values {
		values[i] = i
	}
	return mustInts(t, values, f)
}

func TestFileSourceReadsWAV(t *testing.T) {
	want := rampSample(t, 100, mono16k)
	data, err := EncodeWAV(want)
	if err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}

	path := filepath.Join(t.TempDir(), "ramp.wav")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	src, err := OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if src.FrameRate() != 16000 {
		t.Fatalf("expected 16000Hz, got %d", src.FrameRate())
	}
	if src.TotalFrames() != 100 {
		t.Fatalf("expected 100 frames, got %d", src.TotalFrames())
	}

	got, err := src.Read(context.Background(), 0)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !got.Equal(want) {
		t.Fatal("decoded audio does not match what was encoded")
	}
}

func TestNewFileSourceRejectsGarbage(t *testing.T) {
	_, err := NewFileSource(bytes.NewReader([]byte("definitely not a wav file")))
	if err == nil {
		t.Fatal("expected error for invalid WAV data")
	}
}

func TestFileSourceReadsInChunksThenEnds(t *testing.T) {
	ctx := context.Background()
	src := NewSampleSource(rampSample(t, 10, mono16k))

	var sizes []int
	for {
		s, err := src.Read(ctx, 4)
		if errors.Is(err, ErrEndOfStream) {
			break
		}
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		sizes = append(sizes, s.FrameCount())
	}

	want := []int{4, 4, 2}
	if len(sizes) != len(want) {
		t.Fatalf("expected reads %v, got %v", want, sizes)
	}
	for i := range want {
		if sizes[i] != want[i] {
			t.Fatalf("expected reads %v, got %v", want, sizes)
		}
	}
}

func TestFileSourceRejectsNegativeFrameCount(t *testing.T) {
	src := NewSampleSource(rampSample(t, 10, mono16k))
	if _, err := src.Read(context.Background(), -1); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestFileSourceSeek(t *testing.T) {
	ctx := context.Background()
	src := NewSampleSource(rampSample(t, 10, mono16k))

	tests := []struct {
		frame   int
		wantErr bool
	}{
		{0, false},
		{9, false},
		{10, true},
		{-1, true},
	}
	for _, tt := range tests {
		err := src.Seek(tt.frame)
		if tt.wantErr && !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("Seek(%d): expected ErrInvalidArgument, got %v", tt.frame, err)
		}
		if !tt.wantErr && err != nil {
			t.Errorf("Seek(%d): unexpected error %v", tt.frame, err)
		}
	}

	if err := src.Seek(7); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	s, err := src.Read(ctx, 0)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got := s.Ints(); len(got) != 3 || got[0] != 7 {
		t.Fatalf("expected frames 7..9, got %v", got)
	}

	src.Reset()
	if src.Position() != 0 {
		t.Fatalf("expected position 0 after reset, got %d", src.Position())
	}
}

func TestFileSourceHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src := NewSampleSource(rampSample(t, 10, mono16k))
	if _, err := src.Read(ctx, 1); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
