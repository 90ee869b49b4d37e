package app

import (
	"fmt"
	"io"

	"github.com/petems/earshot/internal/audio"
	"github.com/petems/earshot/internal/config"
	"github.com/petems/earshot/internal/inject"
	"github.com/petems/earshot/internal/listener"
	"github.com/petems/earshot/internal/metrics"
	"github.com/petems/earshot/internal/transcriber"
	"github.com/petems/earshot/internal/whisper"
	"github.com/rs/zerolog"
)

// backend is a speech-to-text engine whose vocabulary can be restricted.
type backend interface {
	transcriber.SpeechToText
	RestrictVocabulary(words []string, includeUnrecognized bool)
}

// Build wires the pipeline described by cfg. m may be nil. The returned App
// owns the audio device and model; release them with Close.
func Build(cfg *config.Config, log zerolog.Logger, m *metrics.Metrics) (*App, error) {
	var closers []io.Closer
	fail := func(err error) (*App, error) {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i].Close()
		}
		return nil, err
	}

	source, err := newSource(cfg.Audio, log)
	if err != nil {
		return fail(err)
	}
	if c, ok := source.(io.Closer); ok {
		closers = append(closers, c)
	}

	segmenter, err := newSegmenter(cfg.Segmentation, source)
	if err != nil {
		return fail(err)
	}

	stt, err := newBackend(cfg.Whisper, log)
	if err != nil {
		return fail(err)
	}
	if c, ok := stt.(io.Closer); ok {
		closers = append(closers, c)
	}

	capture := listener.NewContinuous(segmenter,
		listener.WithLogger(log),
		listener.WithMetrics(m),
		listener.WithFrameCount(cfg.Audio.ChunkFrames),
		listener.WithStopTimeout(cfg.Capture.StopTimeout.Duration),
	)

	return New(Config{
		Capture:     capture,
		Transcriber: transcriber.New(capture, stt, transcriber.WithLogger(log), transcriber.WithMetrics(m)),
		Injector:    newInjector(cfg.Output, log),
		StopTimeout: cfg.Capture.StopTimeout.Duration,
		Logger:      log,
		Closers:     closers,
	}), nil
}

func newSource(cfg config.AudioConfig, log zerolog.Logger) (audio.Source, error) {
	switch cfg.Source {
	case config.SourceFile:
		src, err := audio.OpenFile(cfg.FilePath)
		if err != nil {
			return nil, err
		}
		log.Info().
			Str("file", cfg.FilePath).
			Int("rate", src.FrameRate()).
			Float64("seconds", float64(src.TotalFrames())/float64(src.FrameRate())).
			Msg("Opened audio file")
		return src, nil
	case config.SourceMicrophone:
		mic, err := audio.NewMicrophone(cfg.DeviceIndex)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize audio: %w", err)
		}
		log.Info().Str("device", mic.DeviceName()).Int("rate", mic.FrameRate()).Msg("Using microphone")
		return mic, nil
	default:
		return nil, fmt.Errorf("unknown audio source %q", cfg.Source)
	}
}

// newSegmenter picks how the source is cut into utterances. The "none"
// policy passes each read through as its own utterance.
func newSegmenter(cfg config.SegmentationConfig, source audio.Source) (listener.Reader, error) {
	switch cfg.Policy {
	case config.PolicySilence:
		return listener.NewSilenceListener(source, cfg.SilenceThresholdRMS)
	case config.PolicyTime:
		return listener.NewTimeListener(source, cfg.TotalDuration.Duration)
	case config.PolicyNone:
		return listener.New(source), nil
	default:
		return nil, fmt.Errorf("unknown segmentation policy %q", cfg.Policy)
	}
}

func newBackend(cfg config.WhisperConfig, log zerolog.Logger) (backend, error) {
	opts := whisper.Options{
		Language:    cfg.Language,
		Threads:     cfg.Threads,
		Temperature: cfg.Temperature,
		Logger:      log,
	}

	var (
		stt backend
		err error
	)
	switch cfg.Backend {
	case config.BackendNative:
		stt, err = whisper.NewNative(cfg.ModelPath, opts)
	case config.BackendServer:
		stt, err = whisper.NewServer(cfg.ServerURL, opts)
	default:
		err = fmt.Errorf("unknown whisper backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	if len(cfg.Vocabulary) > 0 {
		stt.RestrictVocabulary(cfg.Vocabulary, cfg.IncludeUnrecognized)
		log.Info().Int("words", len(cfg.Vocabulary)).Msg("Vocabulary restricted")
	}
	return stt, nil
}

// newInjector always logs transcripts, and copies them to the clipboard when
// asked and a clipboard is available.
func newInjector(cfg config.OutputConfig, log zerolog.Logger) inject.Injector {
	injectors := inject.Multi{inject.NewLog(log)}
	if !cfg.Clipboard {
		return injectors
	}

	clip := inject.NewClipboard(cfg.AppendClipboard)
	if !clip.Supported() {
		log.Warn().Msg("No clipboard available, transcripts will only be logged")
		return injectors
	}
	return append(injectors, clip)
}
