package listener

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/petems/earshot/internal/audio"
	"github.com/petems/earshot/internal/metrics"
	"github.com/rs/zerolog"
)

// Wait modes for Read and Stop.
const (
	NoWait      time.Duration = 0
	WaitForever time.Duration = -1
)

// DefaultStopTimeout bounds how long Listen waits for the worker on exit.
const DefaultStopTimeout = 2 * time.Second

// Reader is a listener that can be asked for a specific read size.
// Listener and StateListener both satisfy it.
type Reader interface {
	Read(ctx context.Context, nFrames int) (audio.Sample, error)
}

type Option func(*ContinuousListener)

func WithLogger(log zerolog.Logger) Option {
	return func(c *ContinuousListener) { c.log = log }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *ContinuousListener) { c.metrics = m }
}

// WithFrameCount sets the nFrames passed to the wrapped reader. The default
// of 0 lets the reader pick.
func WithFrameCount(n int) Option {
	return func(c *ContinuousListener) { c.nFrames = n }
}

// WithStopTimeout sets how long Listen waits for the worker to finish.
func WithStopTimeout(d time.Duration) Option {
	return func(c *ContinuousListener) { c.stopTimeout = d }
}

// ContinuousListener reads utterances from a Reader on a background
// goroutine and queues them for the caller. Start and Stop must be called
// from the goroutine that owns the listener.
type ContinuousListener struct {
	reader      Reader
	nFrames     int
	stopTimeout time.Duration
	log         zerolog.Logger
	metrics     *metrics.Metrics

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	queue *queue
}

func NewContinuous(r Reader, opts ...Option) *ContinuousListener {
	c := &ContinuousListener{
		reader:      r,
		stopTimeout: DefaultStopTimeout,
		log:         zerolog.Nop(),
		queue:       newQueue(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start launches the capture worker. It fails with ErrListenerRunning while a
// previous worker is still alive. The worker runs until ctx is cancelled,
// Stop is called, or the reader fails.
func (c *ContinuousListener) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.done != nil {
		select {
		case <-c.done:
			c.cancel()
			c.cancel, c.done = nil, nil
		default:
			return ErrListenerRunning
		}
	}

	c.queue.dropEndMarkers()

	workerCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.cancel, c.done = cancel, done

	c.log.Debug().Msg("Starting capture worker")
	go c.run(workerCtx, done)
	return nil
}

// Stop asks the worker to exit and waits up to timeout for it to do so.
// NoWait returns immediately and WaitForever blocks until the worker exits.
// The result reports whether the worker is known to have stopped.
func (c *ContinuousListener) Stop(timeout time.Duration) bool {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.mu.Unlock()

	if done == nil {
		return true
	}
	cancel()

	switch {
	case timeout == NoWait:
		select {
		case <-done:
			return true
		default:
			return false
		}
	case timeout < 0:
		<-done
		return true
	default:
		t := time.NewTimer(timeout)
		defer t.Stop()
		select {
		case <-done:
			return true
		case <-t.C:
			c.log.Warn().Dur("timeout", timeout).Msg("Capture worker did not stop in time")
			return false
		}
	}
}

// IsListening reports whether the worker goroutine is alive.
func (c *ContinuousListener) IsListening() bool {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()

	if done == nil {
		return false
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}

// Empty reports whether nothing is queued.
func (c *ContinuousListener) Empty() bool {
	return c.queue.size() == 0
}

// Read returns the next captured utterance. It fails with
// ErrNoAudioAvailable straight away when the worker is not running and the
// queue is empty. Otherwise wait selects the blocking mode: NoWait polls,
// a positive duration waits at most that long, WaitForever blocks until an
// utterance arrives or the worker finishes.
func (c *ContinuousListener) Read(ctx context.Context, wait time.Duration) (audio.Sample, error) {
	if !c.IsListening() && c.Empty() {
		return audio.Sample{}, ErrNoAudioAvailable
	}

	it, remaining, err := c.queue.pop(ctx, wait)
	if err != nil {
		return audio.Sample{}, err
	}
	if it.end {
		return audio.Sample{}, ErrNoAudioAvailable
	}

	c.metrics.Dequeued(remaining)
	return it.sample, nil
}

// Next blocks for the next utterance.
func (c *ContinuousListener) Next(ctx context.Context) (audio.Sample, error) {
	return c.Read(ctx, WaitForever)
}

// Listen starts capture, calls fn, and stops capture when fn returns,
// whether or not it failed.
func (c *ContinuousListener) Listen(ctx context.Context, fn func(*ContinuousListener) error) error {
	if err := c.Start(ctx); err != nil {
		return err
	}
	defer c.Stop(c.stopTimeout)
	return fn(c)
}

func (c *ContinuousListener) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer c.queue.push(queueItem{end: true})

	for {
		if ctx.Err() != nil {
			c.log.Debug().Msg("Capture worker stopped")
			c.metrics.WorkerExited(metrics.ExitCancelled)
			return
		}

		sample, err := c.reader.Read(ctx, c.nFrames)
		if err != nil {
			c.logExit(ctx, err)
			return
		}

		// A read that completed while stopping is still queued.
		depth := c.queue.push(queueItem{sample: sample})
		c.metrics.Queued(sample.Duration(), depth)
		c.log.Debug().Dur("duration", sample.Duration()).Int("queued", depth).Msg("Captured utterance")
	}
}

func (c *ContinuousListener) logExit(ctx context.Context, err error) {
	switch {
	case errors.Is(err, ErrNoAudioAvailable):
		c.log.Info().Msg("Audio source exhausted, capture worker exiting")
		c.metrics.WorkerExited(metrics.ExitEndOfStream)
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		c.log.Debug().Msg("Capture worker stopped")
		c.metrics.WorkerExited(metrics.ExitCancelled)
	default:
		c.log.Error().Err(err).Msg("Capture worker failed")
		c.metrics.WorkerExited(metrics.ExitError)
	}
}
