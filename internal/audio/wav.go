package audio

import (
	"errors"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const wavFormatPCM = 1

// EncodeWAV renders s as a 16-bit PCM WAV file.
func EncodeWAV(s Sample) ([]byte, error) {
	if s.FrameRate() <= 0 {
		return nil, fmt.Errorf("%w: cannot encode a sample without a frame rate", ErrInvalidArgument)
	}
	pcm16, err := s.Convert(Format{FrameRate: s.FrameRate(), Channels: s.Channels(), BitDepth: 16})
	if err != nil {
		return nil, err
	}

	w := &memFile{}
	enc := wav.NewEncoder(w, pcm16.FrameRate(), 16, pcm16.Channels(), wavFormatPCM)
	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: pcm16.Channels(),
			SampleRate:  pcm16.FrameRate(),
		},
		Data:           pcm16.Ints(),
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("failed to write WAV data: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalise WAV header: %w", err)
	}
	return w.buf, nil
}

// memFile is an in-memory io.WriteSeeker; the WAV encoder seeks back to patch
// chunk sizes once the payload length is known.
type memFile struct {
	buf []byte
	pos int64
}

func (m *memFile) Write(p []byte) (int, error) {
	end := m.pos + int64(len(p))
	if end > int64(len(m.buf)) {
		m.buf = append(m.buf, make([]byte, end-int64(len(m.buf)))...)
	}
	copy(m.buf[m.pos:end], p)
	m.pos = end
	return len(p), nil
}

func (m *memFile) Seek(offset int64, whence int) (int64, error) {
	var next int64
	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekCurrent:
		next = m.pos + offset
	case io.SeekEnd:
		next = int64(len(m.buf)) + offset
	default:
		return 0, errors.New("memfile: invalid whence")
	}
	if next < 0 {
		return 0, errors.New("memfile: negative position")
	}
	m.pos = next
	return next, nil
}
