package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/petems/earshot/internal/inject"
	"github.com/petems/earshot/internal/listener"
	"github.com/rs/zerolog"
)

// ErrAlreadyRunning is returned by Run while another Run is in progress.
var ErrAlreadyRunning = errors.New("app: already running")

// Capture is the background half of the pipeline. ContinuousListener
// satisfies it.
type Capture interface {
	Start(ctx context.Context) error
	Stop(timeout time.Duration) bool
}

// Transcripts turns captured utterances into text. Transcriber satisfies it.
type Transcripts interface {
	Read(ctx context.Context) (string, error)
}

type Config struct {
	Capture     Capture
	Transcriber Transcripts
	Injector    inject.Injector
	StopTimeout time.Duration
	Logger      zerolog.Logger
	// Closers are released by Close, in reverse order.
	Closers []io.Closer
}

type App struct {
	capture     Capture
	stt         Transcripts
	inj         inject.Injector
	stopTimeout time.Duration
	log         zerolog.Logger
	closers     []io.Closer

	mu        sync.Mutex
	running   bool
	delivered int
	failed    int
}

func New(cfg Config) *App {
	return &App{
		capture:     cfg.Capture,
		stt:         cfg.Transcriber,
		inj:         cfg.Injector,
		stopTimeout: cfg.StopTimeout,
		log:         cfg.Logger,
		closers:     cfg.Closers,
	}
}

// Run starts capture and delivers transcripts until the capture runs out of
// audio or ctx is cancelled. Capture is stopped before Run returns.
// A failed transcription is logged and skipped.
func (a *App) Run(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return ErrAlreadyRunning
	}
	a.running = true
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		a.running = false
		a.mu.Unlock()
	}()

	if err := a.capture.Start(ctx); err != nil {
		return fmt.Errorf("failed to start capture: %w", err)
	}
	defer a.stopCapture()

	a.log.Info().Msg("Listening")

	for {
		text, err := a.stt.Read(ctx)
		switch {
		case err == nil:
			a.deliver(ctx, text)
		case errors.Is(err, listener.ErrNoAudioAvailable):
			a.log.Info().Msg("No more audio")
			return nil
		case ctx.Err() != nil:
			a.log.Info().Msg("Shutting down...")
			return nil
		default:
			a.log.Error().Err(err).Msg("Transcription error")
			a.mu.Lock()
			a.failed++
			a.mu.Unlock()
		}
	}
}

func (a *App) deliver(ctx context.Context, text string) {
	if text == "" {
		a.log.Debug().Msg("Empty transcript")
		return
	}
	if err := a.inj.Deliver(ctx, text); err != nil {
		a.log.Error().Err(err).Msg("Inject error")
		return
	}

	a.mu.Lock()
	a.delivered++
	a.mu.Unlock()
}

func (a *App) stopCapture() {
	if !a.capture.Stop(a.stopTimeout) {
		a.log.Warn().Dur("timeout", a.stopTimeout).Msg("Capture worker did not stop in time")
	}
}

// IsRunning reports whether Run is in progress.
func (a *App) IsRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

// Stats returns how many transcripts were delivered and how many utterances
// failed to transcribe.
func (a *App) Stats() (delivered, failed int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.delivered, a.failed
}

// Close releases the resources the pipeline was built with.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
