package audio

import (
	"bytes"
	"fmt"
	"math"
	"time"
)

// Format describes the PCM layout of a Sample.
type Format struct {
	FrameRate int
	Channels  int
	BitDepth  int
}

// FrameWidth is the number of bytes one frame occupies across all channels.
func (f Format) FrameWidth() int {
	return f.Channels * f.BitDepth / 8
}

func (f Format) String() string {
	ch := "mono"
	if f.Channels == 2 {
		ch = "stereo"
	} else if f.Channels > 2 {
		ch = fmt.Sprintf("%dch", f.Channels)
	}
	return fmt.Sprintf("%dHz %s %d-bit", f.FrameRate, ch, f.BitDepth)
}

func (f Format) validate() error {
	if f.FrameRate <= 0 {
		return fmt.Errorf("%w: frame rate must be positive, got %d", ErrInvalidArgument, f.FrameRate)
	}
	if f.Channels <= 0 {
		return fmt.Errorf("%w: channel count must be positive, got %d", ErrInvalidArgument, f.Channels)
	}
	switch f.BitDepth {
	case 8, 16, 24, 32:
	default:
		return fmt.Errorf("%w: unsupported bit depth %d", ErrInvalidArgument, f.BitDepth)
	}
	return nil
}

// Sample is an immutable buffer of little-endian signed PCM audio. Operations
// that "modify" a Sample return a new one.
type Sample struct {
	format Format
	data   []byte
}

// NewSample copies data into a new Sample. The data length must be a whole
// number of frames.
func NewSample(data []byte, f Format) (Sample, error) {
	if err := f.validate(); err != nil {
		return Sample{}, err
	}
	if len(data)%f.FrameWidth() != 0 {
		return Sample{}, fmt.Errorf("%w: %d bytes is not a whole number of %d-byte frames",
			ErrInvalidArgument, len(data), f.FrameWidth())
	}
	return Sample{format: f, data: bytes.Clone(data)}, nil
}

// FromInts builds a Sample from interleaved integer sample values. Values
// outside the range of f.BitDepth are clamped.
func FromInts(values []int, f Format) (Sample, error) {
	if err := f.validate(); err != nil {
		return Sample{}, err
	}
	if len(values)%f.Channels != 0 {
		return Sample{}, fmt.Errorf("%w: %d values is not a whole number of %d-channel frames",
			ErrInvalidArgument, len(values), f.Channels)
	}
	return Sample{format: f, data: encodeInts(values, f.BitDepth)}, nil
}

// Silence returns a mono 16-bit Sample of the given length. frameRate must be
// positive; Silence panics otherwise.
func Silence(seconds float64, frameRate int) Sample {
	if frameRate <= 0 {
		panic(fmt.Sprintf("audio: Silence called with frame rate %d", frameRate))
	}
	frames := int(math.Round(seconds * float64(frameRate)))
	if frames < 0 {
		frames = 0
	}
	return Sample{
		format: Format{FrameRate: frameRate, Channels: 1, BitDepth: 16},
		data:   make([]byte, frames*2),
	}
}

func (s Sample) Format() Format  { return s.format }
func (s Sample) FrameRate() int  { return s.format.FrameRate }
func (s Sample) Channels() int   { return s.format.Channels }
func (s Sample) BitDepth() int   { return s.format.BitDepth }
func (s Sample) FrameWidth() int { return s.format.FrameWidth() }

// FrameCount is the number of frames held by s.
func (s Sample) FrameCount() int {
	w := s.format.FrameWidth()
	if w == 0 {
		return 0
	}
	return len(s.data) / w
}

// Len is an alias for FrameCount.
func (s Sample) Len() int { return s.FrameCount() }

// Seconds is the playback length of s.
func (s Sample) Seconds() float64 {
	if s.format.FrameRate <= 0 {
		return 0
	}
	return float64(s.FrameCount()) / float64(s.format.FrameRate)
}

// Duration is the playback length of s, truncated to the nanosecond.
func (s Sample) Duration() time.Duration {
	if s.format.FrameRate <= 0 {
		return 0
	}
	return time.Duration(s.FrameCount()) * time.Second / time.Duration(s.format.FrameRate)
}

// Bytes returns a copy of the raw PCM payload.
func (s Sample) Bytes() []byte {
	return bytes.Clone(s.data)
}

// Ints decodes the payload into interleaved integer sample values.
func (s Sample) Ints() []int {
	return decodeInts(s.data, s.format.BitDepth)
}

// Float32Mono downmixes s to a single channel normalised to [-1.0, 1.0].
func (s Sample) Float32Mono() []float32 {
	ints := s.Ints()
	ch := s.format.Channels
	if ch <= 0 {
		return nil
	}
	scale := float32(int(1) << (s.format.BitDepth - 1))
	out := make([]float32, len(ints)/ch)
	for i := range out {
		var sum float32
		for c := range ch {
			sum += float32(ints[i*ch+c])
		}
		out[i] = sum / float32(ch) / scale
	}
	return out
}

// RMS is the root-mean-square amplitude over every sample in s, in the
// native integer scale of its bit depth. An empty sample has RMS 0.
func (s Sample) RMS() float64 {
	ints := s.Ints()
	if len(ints) == 0 {
		return 0
	}
	var sum float64
	for _, v := range ints {
		f := float64(v)
		sum += f * f
	}
	return math.Sqrt(sum / float64(len(ints)))
}

// Slice returns frames [start, end) of s.
func (s Sample) Slice(start, end int) (Sample, error) {
	if start < 0 || end < start || end > s.FrameCount() {
		return Sample{}, fmt.Errorf("%w: slice [%d:%d] out of range for %d frames",
			ErrInvalidArgument, start, end, s.FrameCount())
	}
	w := s.format.FrameWidth()
	return Sample{format: s.format, data: s.data[start*w : end*w : end*w]}, nil
}

// Concat appends other to s. Both must share the same Format.
func (s Sample) Concat(other Sample) (Sample, error) {
	return Join(s, other)
}

// Join concatenates samples in order. All samples must share the same
// Format, and at least one sample is required.
func Join(samples ...Sample) (Sample, error) {
	if len(samples) == 0 {
		return Sample{}, fmt.Errorf("%w: nothing to join", ErrInvalidArgument)
	}
	f := samples[0].format
	size := 0
	for i, s := range samples {
		if s.format != f {
			return Sample{}, fmt.Errorf("%w: sample %d is %s, expected %s", ErrInvalidArgument, i, s.format, f)
		}
		size += len(s.data)
	}
	data := make([]byte, 0, size)
	for _, s := range samples {
		data = append(data, s.data...)
	}
	return Sample{format: f, data: data}, nil
}

// Equal reports whether s and other have the same format and payload.
func (s Sample) Equal(other Sample) bool {
	return s.format == other.format && bytes.Equal(s.data, other.data)
}

func (s Sample) String() string {
	return fmt.Sprintf("Sample(%s, %d frames, %.3fs)", s.format, s.FrameCount(), s.Seconds())
}

func sampleLimits(bitDepth int) (int, int) {
	hi := int(1)<<(bitDepth-1) - 1
	return -hi - 1, hi
}

func encodeInts(values []int, bitDepth int) []byte {
	width := bitDepth / 8
	lo, hi := sampleLimits(bitDepth)
	out := make([]byte, len(values)*width)
	for i, v := range values {
		if v < lo {
			v = lo
		} else if v > hi {
			v = hi
		}
		u := uint32(int32(v))
		for b := range width {
			out[i*width+b] = byte(u >> (8 * b))
		}
	}
	return out
}

func decodeInts(data []byte, bitDepth int) []int {
	width := bitDepth / 8
	if width == 0 {
		return nil
	}
	out := make([]int, len(data)/width)
	shift := 32 - bitDepth
	for i := range out {
		var u uint32
		for b := range width {
			u |= uint32(data[i*width+b]) << (8 * b)
		}
		// sign-extend from bitDepth bits
		out[i] = int(int32(u<<shift) >> shift)
	}
	return out
}
