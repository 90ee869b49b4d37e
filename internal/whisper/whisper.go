package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	whisper "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/petems/earshot/internal/audio"
	"github.com/petems/earshot/internal/transcriber"
	"github.com/rs/zerolog"
)

// SampleRate is the only rate whisper models accept.
const SampleRate = whisper.SampleRate

// InputFormat is what every utterance is converted to before inference.
var InputFormat = audio.Format{FrameRate: SampleRate, Channels: 1, BitDepth: 16}

var ErrClosed = errors.New("whisper: model closed")

// Options configures decoding for both backends.
type Options struct {
	// Language is an ISO code, or "auto"/"" to let whisper detect it.
	Language    string
	Threads     int
	Temperature float32
	Logger      zerolog.Logger
}

func (o Options) language() string {
	if o.Language == "auto" {
		return ""
	}
	return o.Language
}

// Compile-time checks that both backends satisfy transcriber.SpeechToText.
var (
	_ transcriber.SpeechToText = (*Native)(nil)
	_ transcriber.SpeechToText = (*Server)(nil)
)

// Native runs whisper.cpp in process. The model is shared; each call gets
// its own decoding context.
type Native struct {
	opts Options
	log  zerolog.Logger

	mu    sync.RWMutex
	model whisper.Model
	vocab *Vocabulary
}

// NewNative loads the ggml model at modelPath.
func NewNative(modelPath string, opts Options) (*Native, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: model path must not be empty")
	}

	model, err := whisper.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load model %q: %w", modelPath, err)
	}

	return &Native{opts: opts, log: opts.Logger, model: model}, nil
}

// RestrictVocabulary limits output to words. Passing no words lifts the
// restriction.
func (n *Native) RestrictVocabulary(words []string, includeUnrecognized bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if len(words) == 0 {
		n.vocab = nil
		return
	}
	n.vocab = RestrictVocabulary(words, includeUnrecognized)
}

func (n *Native) Transcribe(ctx context.Context, s audio.Sample) (string, error) {
	segments, vocab, err := n.process(ctx, s, false)
	if err != nil {
		return "", err
	}
	return vocab.Apply(joinText(segments)), nil
}

// TranscribeDetailed returns a single hypothesis: whisper.cpp decodes one
// transcript per utterance regardless of opts.Alternatives.
func (n *Native) TranscribeDetailed(ctx context.Context, s audio.Sample, opts transcriber.DetailedOptions) (transcriber.DetailedTranscripts, error) {
	segments, vocab, err := n.process(ctx, s, opts.SegmentTimestamps)
	if err != nil {
		return transcriber.DetailedTranscripts{}, err
	}

	best := transcriber.DetailedTranscript{
		Text:       vocab.Apply(joinText(segments)),
		Confidence: meanProbability(segments),
	}
	if opts.SegmentTimestamps {
		best.Segments = vocab.ApplySegments(wordSegments(segments))
	}

	return transcriber.DetailedTranscripts{
		Transcripts: []transcriber.DetailedTranscript{best},
		Raw:         segments,
	}, nil
}

func (n *Native) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.model != nil {
		n.model.Close()
		n.model = nil
	}
	return nil
}

// decodedSegment is a whisper segment with special tokens removed.
type decodedSegment struct {
	Text   string
	Start  time.Duration
	End    time.Duration
	Tokens []decodedToken
}

type decodedToken struct {
	Text        string
	Probability float32
	Start       time.Duration
	End         time.Duration
}

func (n *Native) process(ctx context.Context, s audio.Sample, tokenTimestamps bool) ([]decodedSegment, *Vocabulary, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if n.model == nil {
		return nil, nil, ErrClosed
	}

	samples, err := prepare(s)
	if err != nil {
		return nil, nil, err
	}
	if len(samples) == 0 {
		return nil, n.vocab, nil
	}

	wctx, err := n.model.NewContext()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create context: %w", err)
	}

	if n.opts.Threads > 0 {
		wctx.SetThreads(uint(n.opts.Threads))
	}
	if lang := n.opts.language(); lang != "" {
		if err := wctx.SetLanguage(lang); err != nil {
			return nil, nil, fmt.Errorf("failed to set language %q: %w", lang, err)
		}
	}
	if n.opts.Temperature > 0 {
		wctx.SetTemperature(n.opts.Temperature)
	}
	wctx.SetTranslate(false)
	wctx.SetTokenTimestamps(tokenTimestamps)
	if prompt := n.vocab.Prompt(); prompt != "" {
		wctx.SetInitialPrompt(prompt)
	}

	// Abort before encoding if the caller has gone away.
	keepGoing := func() bool { return ctx.Err() == nil }
	if err := wctx.Process(samples, keepGoing, nil, nil); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, nil, ctxErr
		}
		return nil, nil, fmt.Errorf("whisper process failed: %w", err)
	}

	var segments []decodedSegment
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read segment: %w", err)
		}

		decoded := decodedSegment{Text: segment.Text, Start: segment.Start, End: segment.End}
		for _, tok := range segment.Tokens {
			if !wctx.IsText(tok) {
				continue
			}
			decoded.Tokens = append(decoded.Tokens, decodedToken{
				Text:        tok.Text,
				Probability: tok.P,
				Start:       tok.Start,
				End:         tok.End,
			})
		}
		segments = append(segments, decoded)
	}

	n.log.Debug().
		Dur("audio", s.Duration()).
		Int("segments", len(segments)).
		Msg("Whisper inference complete")
	return segments, n.vocab, nil
}

// prepare converts s to 16 kHz mono float samples.
func prepare(s audio.Sample) ([]float32, error) {
	converted, err := s.Convert(InputFormat)
	if err != nil {
		return nil, fmt.Errorf("failed to convert audio for whisper: %w", err)
	}
	return converted.Float32Mono(), nil
}

func joinText(segments []decodedSegment) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		if text := strings.TrimSpace(s.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

// meanProbability averages the probability of every text token.
func meanProbability(segments []decodedSegment) float64 {
	var sum float64
	var count int
	for _, s := range segments {
		for _, t := range s.Tokens {
			sum += float64(t.Probability)
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// wordSegments merges sub-word tokens into words. A token starting with a
// space begins a new word.
func wordSegments(segments []decodedSegment) []transcriber.Segment {
	out := []transcriber.Segment{}
	for _, s := range segments {
		for _, t := range s.Tokens {
			text := t.Text
			newWord := len(out) == 0 || strings.HasPrefix(text, " ")
			text = strings.TrimSpace(text)
			if text == "" {
				continue
			}
			if newWord {
				out = append(out, transcriber.Segment{Text: text, Start: t.Start, End: t.End})
				continue
			}
			last := &out[len(out)-1]
			last.Text += text
			last.End = t.End
		}
	}
	return out
}
