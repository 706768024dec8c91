// Turn-scoped delta channel.
//
// Information Hiding:
// - Backing slice and watcher wakeup mechanism hidden
// - Single-producer/single-consumer discipline documented, not enforced

package delta

import (
	"context"
	"sync"
)

// Channel is the ordered, append-only delta sequence for one conversation
// turn. A single producer (the server turn) appends; consumers read in
// append order, either by cursor via Since or live via Watch. The channel
// is not persisted beyond the turn lifecycle.
type Channel struct {
	mu     sync.Mutex
	deltas []Delta
	closed bool
	notify chan struct{} // closed and replaced on every append
}

// NewChannel creates an empty channel for a new turn.
func NewChannel() *Channel {
	return &Channel{notify: make(chan struct{})}
}

// Append adds a delta to the end of the channel. Appends after Close are
// dropped: a stopped turn stops production, but deltas already appended
// remain valid.
func (c *Channel) Append(d Delta) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.deltas = append(c.deltas, d)
	close(c.notify)
	c.notify = make(chan struct{})
}

// Len returns the number of deltas appended so far.
func (c *Channel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.deltas)
}

// Since returns a copy of the deltas past the given cursor. A cursor at
// or beyond the current length yields an empty slice.
func (c *Channel) Since(cursor int) []Delta {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cursor < 0 {
		cursor = 0
	}
	if cursor >= len(c.deltas) {
		return nil
	}
	out := make([]Delta, len(c.deltas)-cursor)
	copy(out, c.deltas[cursor:])
	return out
}

// Closed reports whether the channel has been closed.
func (c *Channel) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close marks the end of the turn. Watchers drain whatever remains and
// their feeds end. Close is idempotent.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.notify)
	c.notify = make(chan struct{})
}

// Watch returns an ordered live feed of the channel. Deltas already
// appended are replayed first, then new ones as they arrive. The feed
// closes when the channel closes and is fully drained, or when ctx is
// cancelled.
func (c *Channel) Watch(ctx context.Context) <-chan Delta {
	out := make(chan Delta)

	go func() {
		defer close(out)
		cursor := 0
		for {
			c.mu.Lock()
			pending := c.deltas[cursor:]
			closed := c.closed
			wakeup := c.notify
			c.mu.Unlock()

			for _, d := range pending {
				select {
				case out <- d:
					cursor++
				case <-ctx.Done():
					return
				}
			}

			if closed {
				// Close happened after we copied pending; one more pass
				// picks up anything appended in between.
				if c.Len() == cursor {
					return
				}
				continue
			}

			select {
			case <-wakeup:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}
