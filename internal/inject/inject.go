package inject

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
)

// Injector delivers a finished transcript somewhere useful.
type Injector interface {
	Deliver(ctx context.Context, text string) error
}

// Log writes transcripts to the logger.
type Log struct {
	log zerolog.Logger
}

func NewLog(log zerolog.Logger) *Log {
	return &Log{log: log}
}

func (l *Log) Deliver(ctx context.Context, text string) error {
	l.log.Info().Str("text", text).Msg("Transcript")
	return nil
}

// Multi delivers to every injector in order and reports all failures.
type Multi []Injector

func (m Multi) Deliver(ctx context.Context, text string) error {
	var errs []error
	for _, inj := range m {
		if err := inj.Deliver(ctx, text); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// normalize trims whitespace; blank transcripts are not delivered.
func normalize(text string) (string, bool) {
	text = strings.TrimSpace(text)
	return text, text != ""
}
