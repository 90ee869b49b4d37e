package transcriber

import (
	"context"
	"errors"
	"iter"
	"time"

	"github.com/petems/earshot/internal/audio"
	"github.com/petems/earshot/internal/listener"
	"github.com/petems/earshot/internal/metrics"
	"github.com/rs/zerolog"
)

// SpeechToText turns one utterance into text.
type SpeechToText interface {
	Transcribe(ctx context.Context, s audio.Sample) (string, error)
	TranscribeDetailed(ctx context.Context, s audio.Sample, opts DetailedOptions) (DetailedTranscripts, error)
}

// DetailedOptions controls TranscribeDetailed.
type DetailedOptions struct {
	// Alternatives is the maximum number of ranked transcripts to return.
	Alternatives int
	// SegmentTimestamps requests word-level segments for each transcript.
	SegmentTimestamps bool
}

// DefaultDetailedOptions asks for three alternatives with word timings.
func DefaultDetailedOptions() DetailedOptions {
	return DetailedOptions{Alternatives: 3, SegmentTimestamps: true}
}

// Segment is a word (or token run) and where it sits in the utterance.
type Segment struct {
	Text  string
	Start time.Duration
	End   time.Duration
}

// DetailedTranscript is one ranked hypothesis.
type DetailedTranscript struct {
	Text string
	// Confidence is in [0, 1]; zero when the backend does not report it.
	Confidence float64
	// Segments is nil unless segment timestamps were requested.
	Segments []Segment
}

// DetailedTranscripts holds hypotheses best first, plus the backend's raw
// response for callers that need more.
type DetailedTranscripts struct {
	Transcripts []DetailedTranscript
	Raw         any
}

// Best returns the top hypothesis, if any.
func (d DetailedTranscripts) Best() (DetailedTranscript, bool) {
	if len(d.Transcripts) == 0 {
		return DetailedTranscript{}, false
	}
	return d.Transcripts[0], true
}

type Option func(*Transcriber)

func WithLogger(log zerolog.Logger) Option {
	return func(t *Transcriber) { t.log = log }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(t *Transcriber) { t.metrics = m }
}

// Transcriber pulls utterances from a stream and transcribes them one at a
// time.
type Transcriber struct {
	stream  listener.Stream
	stt     SpeechToText
	log     zerolog.Logger
	metrics *metrics.Metrics
}

func New(stream listener.Stream, stt SpeechToText, opts ...Option) *Transcriber {
	t := &Transcriber{stream: stream, stt: stt, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Read transcribes the next utterance. It returns ErrNoAudioAvailable from
// the listener once the stream is exhausted.
func (t *Transcriber) Read(ctx context.Context) (string, error) {
	sample, err := t.stream.Next(ctx)
	if err != nil {
		return "", err
	}

	start := time.Now()
	text, err := t.stt.Transcribe(ctx, sample)
	t.metrics.Transcribed(time.Since(start), err)
	if err != nil {
		return "", err
	}

	t.log.Debug().
		Dur("audio", sample.Duration()).
		Dur("elapsed", time.Since(start)).
		Int("chars", len(text)).
		Msg("Transcribed utterance")
	return text, nil
}

// ReadDetailed transcribes the next utterance into ranked hypotheses.
func (t *Transcriber) ReadDetailed(ctx context.Context, opts DetailedOptions) (DetailedTranscripts, error) {
	sample, err := t.stream.Next(ctx)
	if err != nil {
		return DetailedTranscripts{}, err
	}
	if opts.Alternatives <= 0 {
		opts.Alternatives = DefaultDetailedOptions().Alternatives
	}

	start := time.Now()
	result, err := t.stt.TranscribeDetailed(ctx, sample, opts)
	t.metrics.Transcribed(time.Since(start), err)
	if err != nil {
		return DetailedTranscripts{}, err
	}
	return result, nil
}

// All yields one transcript per utterance until the stream runs out. Errors
// other than running out of audio are yielded and end the sequence.
func (t *Transcriber) All(ctx context.Context) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for {
			text, err := t.Read(ctx)
			if errors.Is(err, listener.ErrNoAudioAvailable) {
				return
			}
			if !yield(text, err) || err != nil {
				return
			}
		}
	}
}

// AllDetailed is All for ReadDetailed.
func (t *Transcriber) AllDetailed(ctx context.Context, opts DetailedOptions) iter.Seq2[DetailedTranscripts, error] {
	return func(yield func(DetailedTranscripts, error) bool) {
		for {
			result, err := t.ReadDetailed(ctx, opts)
			if errors.Is(err, listener.ErrNoAudioAvailable) {
				return
			}
			if !yield(result, err) || err != nil {
				return
			}
		}
	}
}
