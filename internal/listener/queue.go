package listener

import (
	"context"
	"sync"
	"time"

	"github.com/petems/earshot/internal/audio"
)

type queueItem struct {
	sample audio.Sample
	end    bool
}

// queue is an unbounded FIFO with a single producer and a single consumer.
// ready holds at most one pending wake-up; consumers re-check the slice after
// every wake-up so stale signals are harmless.
type queue struct {
	mu    sync.Mutex
	items []queueItem
	ready chan struct{}
}

func newQueue() *queue {
	return &queue{ready: make(chan struct{}, 1)}
}

func (q *queue) push(it queueItem) int {
	q.mu.Lock()
	q.items = append(q.items, it)
	n := len(q.items)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
	return n
}

func (q *queue) tryPop() (queueItem, int, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return queueItem{}, 0, false
	}
	it := q.items[0]
	q.items[0] = queueItem{}
	q.items = q.items[1:]
	return it, len(q.items), true
}

// pop takes the oldest item, waiting according to wait: NoWait polls once,
// WaitForever blocks until an item arrives, and a positive duration bounds
// the wait.
func (q *queue) pop(ctx context.Context, wait time.Duration) (queueItem, int, error) {
	var timeout <-chan time.Time
	if wait > 0 {
		t := time.NewTimer(wait)
		defer t.Stop()
		timeout = t.C
	}

	for {
		if it, remaining, ok := q.tryPop(); ok {
			return it, remaining, nil
		}
		if wait == NoWait {
			return queueItem{}, 0, ErrNoAudioAvailable
		}

		select {
		case <-q.ready:
		case <-timeout:
			return queueItem{}, 0, ErrNoAudioAvailable
		case <-ctx.Done():
			return queueItem{}, 0, ctx.Err()
		}
	}
}

func (q *queue) size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// dropEndMarkers removes end markers left behind by a previous session.
func (q *queue) dropEndMarkers() {
	q.mu.Lock()
	defer q.mu.Unlock()

	kept := q.items[:0]
	for _, it := range q.items {
		if !it.end {
			kept = append(kept, it)
		}
	}
	clear(q.items[len(kept):])
	q.items = kept
}
