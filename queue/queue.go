// Package queue hands persisted events to the worker pool. Enqueueing is
// best effort: an event that cannot be queued stays pending and is picked up
// by the drain.
package queue

import (
	"context"
	"errors"
	"sync"

	"github.com/xraph/replydesk/id"
)

var (
	// ErrQueueFull is returned when the in-process queue has no room.
	ErrQueueFull = errors.New("queue: full")

	// ErrClosed is returned after the queue has been closed.
	ErrClosed = errors.New("queue: closed")
)

// Enqueuer schedules an event for processing.
type Enqueuer interface {
	Enqueue(ctx context.Context, evtID id.ID) error
}

// Channel is a bounded in-process queue. Enqueue never blocks.
type Channel struct {
	mu     sync.RWMutex
	ch     chan id.ID
	closed bool
}

// NewChannel creates a queue holding at most size events.
func NewChannel(size int) *Channel {
	if size < 1 {
		size = 1
	}
	return &Channel{ch: make(chan id.ID, size)}
}

// Enqueue adds evtID or fails with ErrQueueFull or ErrClosed.
func (c *Channel) Enqueue(_ context.Context, evtID id.ID) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return ErrClosed
	}
	select {
	case c.ch <- evtID:
		return nil
	default:
		return ErrQueueFull
	}
}

// C returns the receive side of the queue.
func (c *Channel) C() <-chan id.ID { return c.ch }

// Len returns the number of queued events.
func (c *Channel) Len() int { return len(c.ch) }

// Close stops accepting events. Queued events can still be received.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.ch)
	}
}
