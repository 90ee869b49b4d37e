package inject

import (
	"context"
	"fmt"
	"sync"

	"github.com/atotto/clipboard"
)

// Clipboard copies transcripts to the system clipboard.
type Clipboard struct {
	// Append adds each transcript to what is already on the clipboard,
	// separated by a space, instead of replacing it.
	Append bool

	mu    sync.Mutex
	read  func() (string, error)
	write func(string) error
}

func NewClipboard(appendText bool) *Clipboard {
	return &Clipboard{
		Append: appendText,
		read:   clipboard.ReadAll,
		write:  clipboard.WriteAll,
	}
}

// Supported reports whether a clipboard backend is available.
func (c *Clipboard) Supported() bool {
	return !clipboard.Unsupported
}

func (c *Clipboard) Deliver(ctx context.Context, text string) error {
	text, ok := normalize(text)
	if !ok {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.Append {
		// A failed read just means there is nothing to append to.
		if existing, err := c.read(); err == nil && existing != "" {
			text = existing + " " + text
		}
	}

	if err := c.write(text); err != nil {
		return fmt.Errorf("failed to write clipboard: %w", err)
	}
	return nil
}
