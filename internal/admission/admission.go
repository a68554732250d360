// Package admission gates how many editor sessions may run at once.
//
// In single mode the controller holds one slot: the user asked for one
// editor window at a time. Contenders either wait their turn in FIFO order
// or are rejected outright, per configured policy. Multi mode grants slots
// freely, optionally bounded by a maximum.
package admission

import (
	"context"
	"errors"
	"sync"
)

// Policy decides what happens to a session that wants a slot while none is
// free.
type Policy int

const (
	// Queue blocks the acquirer until a slot frees up or its context ends.
	Queue Policy = iota
	// Reject fails the acquisition immediately with ErrBusy.
	Reject
)

// ErrBusy reports an immediate rejection under the Reject policy.
var ErrBusy = errors.New("another editor session is active")

// Config describes the admission regime.
type Config struct {
	// Multi allows concurrent sessions. When false exactly one slot exists.
	Multi bool
	// MaxSessions caps concurrent sessions in multi mode; zero means
	// unbounded.
	MaxSessions int
	// OnBusy picks the single-mode contention behavior.
	OnBusy Policy
}

// Controller hands out session slots.
type Controller struct {
	cfg Config

	mu      sync.Mutex
	held    int
	waiters []chan struct{}
}

// Slot is permission for one session to run. Release returns it; releasing
// twice is harmless.
type Slot struct {
	c    *Controller
	once sync.Once
}

// New creates a Controller.
func New(cfg Config) *Controller {
	return &Controller{cfg: cfg}
}

func (c *Controller) capacity() int {
	if !c.cfg.Multi {
		return 1
	}
	if c.cfg.MaxSessions > 0 {
		return c.cfg.MaxSessions
	}
	return 0 // unbounded
}

// Acquire obtains a slot, honoring the configured contention policy. The
// context cancels a queued wait; the returned error is then ctx.Err().
func (c *Controller) Acquire(ctx context.Context) (*Slot, error) {
	c.mu.Lock()

	limit := c.capacity()
	if limit == 0 || c.held < limit {
		c.held++
		c.mu.Unlock()
		return &Slot{c: c}, nil
	}

	if c.cfg.OnBusy == Reject {
		c.mu.Unlock()
		return nil, ErrBusy
	}

	// FIFO wait: each waiter gets its own wakeup channel, signalled by
	// exactly one release.
	wake := make(chan struct{})
	c.waiters = append(c.waiters, wake)
	c.mu.Unlock()

	select {
	case <-wake:
		return &Slot{c: c}, nil
	case <-ctx.Done():
		c.abandon(wake)
		return nil, ctx.Err()
	}
}

// abandon removes a waiter that gave up. If the wakeup raced with the
// cancellation, the slot it carried is passed on.
func (c *Controller) abandon(wake chan struct{}) {
	c.mu.Lock()
	for i, w := range c.waiters {
		if w == wake {
			c.waiters = append(c.waiters[:i], c.waiters[i+1:]...)
			c.mu.Unlock()
			return
		}
	}
	c.mu.Unlock()

	// Not in the list: a release already picked this waiter and will close
	// wake imminently. Take the slot and pass it on.
	<-wake
	c.release()
}

func (c *Controller) release() {
	c.mu.Lock()
	if len(c.waiters) > 0 {
		wake := c.waiters[0]
		c.waiters = c.waiters[1:]
		c.mu.Unlock()
		close(wake)
		return
	}
	if c.held > 0 {
		c.held--
	}
	c.mu.Unlock()
}

// Active reports how many slots are currently held.
func (c *Controller) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.held
}

// Release returns the slot to the controller.
func (s *Slot) Release() {
	s.once.Do(func() {
		s.c.release()
	})
}
