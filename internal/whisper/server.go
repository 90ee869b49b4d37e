package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/petems/earshot/internal/audio"
	"github.com/petems/earshot/internal/transcriber"
)

const defaultServerTimeout = 60 * time.Second

// Server transcribes through a running whisper.cpp whisper-server.
type Server struct {
	url    string
	client *http.Client
	opts   Options

	mu    sync.RWMutex
	vocab *Vocabulary
}

type ServerOption func(*Server)

// WithHTTPClient replaces the default client, which times out after a minute.
func WithHTTPClient(c *http.Client) ServerOption {
	return func(s *Server) { s.client = c }
}

// NewServer returns a client for the whisper-server at serverURL, for example
// "http://127.0.0.1:8080".
func NewServer(serverURL string, opts Options, sopts ...ServerOption) (*Server, error) {
	if serverURL == "" {
		return nil, errors.New("whisper: server URL must not be empty")
	}

	s := &Server{
		url:    strings.TrimRight(serverURL, "/"),
		client: &http.Client{Timeout: defaultServerTimeout},
		opts:   opts,
	}
	for _, o := range sopts {
		o(s)
	}
	return s, nil
}

// RestrictVocabulary limits output to words. Passing no words lifts the
// restriction.
func (s *Server) RestrictVocabulary(words []string, includeUnrecognized bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(words) == 0 {
		s.vocab = nil
		return
	}
	s.vocab = RestrictVocabulary(words, includeUnrecognized)
}

func (s *Server) vocabulary() *Vocabulary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vocab
}

func (s *Server) Transcribe(ctx context.Context, sample audio.Sample) (string, error) {
	vocab := s.vocabulary()

	var resp inferenceResponse
	if err := s.infer(ctx, sample, "json", vocab, &resp); err != nil {
		return "", err
	}
	return vocab.Apply(resp.Text), nil
}

// TranscribeDetailed returns a single hypothesis, as whisper-server decodes
// one transcript per request.
func (s *Server) TranscribeDetailed(ctx context.Context, sample audio.Sample, opts transcriber.DetailedOptions) (transcriber.DetailedTranscripts, error) {
	vocab := s.vocabulary()

	var resp inferenceResponse
	if err := s.infer(ctx, sample, "verbose_json", vocab, &resp); err != nil {
		return transcriber.DetailedTranscripts{}, err
	}

	best := transcriber.DetailedTranscript{
		Text:       vocab.Apply(resp.Text),
		Confidence: resp.confidence(),
	}
	if opts.SegmentTimestamps {
		best.Segments = vocab.ApplySegments(resp.words())
	}

	return transcriber.DetailedTranscripts{
		Transcripts: []transcriber.DetailedTranscript{best},
		Raw:         resp,
	}, nil
}

// inferenceResponse covers both the json and verbose_json formats.
type inferenceResponse struct {
	Text     string           `json:"text"`
	Language string           `json:"language,omitempty"`
	Duration float64          `json:"duration,omitempty"`
	Segments []segmentPayload `json:"segments,omitempty"`
}

type segmentPayload struct {
	Text       string        `json:"text"`
	Start      float64       `json:"start"`
	End        float64       `json:"end"`
	AvgLogprob float64       `json:"avg_logprob"`
	Words      []wordPayload `json:"words"`
}

type wordPayload struct {
	Word        string  `json:"word"`
	Start       float64 `json:"start"`
	End         float64 `json:"end"`
	Probability float64 `json:"probability"`
}

func seconds(v float64) time.Duration {
	return time.Duration(math.Round(v * float64(time.Second)))
}

// confidence averages word probabilities, falling back to the segments'
// average log probability when the server reports no words.
func (r inferenceResponse) confidence() float64 {
	var sum float64
	var count int
	for _, seg := range r.Segments {
		for _, w := range seg.Words {
			sum += w.Probability
			count++
		}
	}
	if count > 0 {
		return sum / float64(count)
	}

	for _, seg := range r.Segments {
		sum += math.Exp(seg.AvgLogprob)
		count++
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

func (r inferenceResponse) words() []transcriber.Segment {
	out := []transcriber.Segment{}
	for _, seg := range r.Segments {
		for _, w := range seg.Words {
			text := strings.TrimSpace(w.Word)
			if text == "" {
				continue
			}
			out = append(out, transcriber.Segment{Text: text, Start: seconds(w.Start), End: seconds(w.End)})
		}
	}
	return out
}

// infer uploads sample as a WAV file to POST /inference and decodes the JSON
// reply into out.
func (s *Server) infer(ctx context.Context, sample audio.Sample, format string, vocab *Vocabulary, out *inferenceResponse) error {
	converted, err := sample.Convert(InputFormat)
	if err != nil {
		return fmt.Errorf("failed to convert audio for whisper: %w", err)
	}
	wav, err := audio.EncodeWAV(converted)
	if err != nil {
		return fmt.Errorf("failed to encode WAV: %w", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := fw.Write(wav); err != nil {
		return fmt.Errorf("failed to write WAV data: %w", err)
	}

	fields := map[string]string{"response_format": format}
	if lang := s.opts.language(); lang != "" {
		fields["language"] = lang
	} else {
		fields["language"] = "auto"
	}
	if s.opts.Temperature > 0 {
		fields["temperature"] = strconv.FormatFloat(float64(s.opts.Temperature), 'f', -1, 32)
	}
	if prompt := vocab.Prompt(); prompt != "" {
		fields["prompt"] = prompt
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return fmt.Errorf("failed to write %s field: %w", k, err)
		}
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url+"/inference", &body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("whisper server request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("whisper server returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse whisper response: %w", err)
	}
	out.Text = strings.TrimSpace(out.Text)
	return nil
}
