// Package event provides a pub/sub event system for the server using watermill.
//
// Session engines publish lifecycle and sync milestones here; the server's
// diagnostics surface and the idle-shutdown monitor subscribe. The bus uses
// watermill's gochannel for infrastructure while keeping direct typed
// delivery to subscribers.
package event

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// Type identifies a kind of event.
type Type string

const (
	SessionOpened Type = "session.opened"
	SessionSynced Type = "session.synced"
	SessionClosed Type = "session.closed"
	EditorStarted Type = "editor.started"
	EditorExited  Type = "editor.exited"
	WatchDegraded Type = "watch.degraded"
	ServerIdle    Type = "server.idle"
)

// Event is a single published event.
type Event struct {
	Type Type `json:"type"`
	Data any  `json:"data"`
}

// Subscriber is a function that receives events.
type Subscriber func(event Event)

type subscriberEntry struct {
	id uint64
	fn Subscriber
}

// Bus manages pub/sub delivery.
type Bus struct {
	mu sync.RWMutex

	// Watermill pub/sub infrastructure, kept for middleware/routing and for
	// swapping in a distributed backend without touching callers.
	pubsub *gochannel.GoChannel

	subscribers map[Type][]subscriberEntry
	global      []subscriberEntry

	nextID       uint64
	closed       bool
	closedCtx    context.Context
	closedCancel context.CancelFunc
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	ctx, cancel := context.WithCancel(context.Background())
	return &Bus{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{
				OutputChannelBuffer: 64,
				Persistent:          false,
			},
			watermill.NopLogger{},
		),
		subscribers:  make(map[Type][]subscriberEntry),
		closedCtx:    ctx,
		closedCancel: cancel,
	}
}

func (b *Bus) newID() uint64 {
	return atomic.AddUint64(&b.nextID, 1)
}

// Subscribe registers a subscriber for one event type.
// The returned function removes the subscription.
func (b *Bus) Subscribe(t Type, fn Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return func() {}
	}

	id := b.newID()
	b.subscribers[t] = append(b.subscribers[t], subscriberEntry{id: id, fn: fn})

	return func() {
		b.unsubscribe(t, id)
	}
}

// SubscribeAll registers a subscriber for every event type.
func (b *Bus) SubscribeAll(fn Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return func() {}
	}

	id := b.newID()
	b.global = append(b.global, subscriberEntry{id: id, fn: fn})

	return func() {
		b.unsubscribeGlobal(id)
	}
}

func (b *Bus) unsubscribe(t Type, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subscribers[t]
	for i, entry := range subs {
		if entry.id == id {
			b.subscribers[t] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
}

func (b *Bus) unsubscribeGlobal(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, entry := range b.global {
		if entry.id == id {
			b.global = append(b.global[:i], b.global[i+1:]...)
			break
		}
	}
}

func (b *Bus) collect(t Type) []Subscriber {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil
	}

	subs := make([]Subscriber, 0, len(b.subscribers[t])+len(b.global))
	for _, entry := range b.subscribers[t] {
		subs = append(subs, entry.fn)
	}
	for _, entry := range b.global {
		subs = append(subs, entry.fn)
	}
	return subs
}

// Publish delivers an event to all subscribers asynchronously, each on its
// own goroutine so a slow subscriber never blocks the publisher.
func (b *Bus) Publish(event Event) {
	for _, sub := range b.collect(event.Type) {
		go sub(event)
	}
}

// PublishSync delivers an event to all subscribers in the calling goroutine
// before returning.
func (b *Bus) PublishSync(event Event) {
	for _, sub := range b.collect(event.Type) {
		sub(event)
	}
}

// Close shuts down the bus. Further subscriptions are no-ops and further
// publishes are dropped.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.closedCancel()
	b.subscribers = make(map[Type][]subscriberEntry)
	b.global = nil
	b.mu.Unlock()

	return b.pubsub.Close()
}

// PubSub exposes the underlying watermill GoChannel for advanced use.
func (b *Bus) PubSub() *gochannel.GoChannel {
	return b.pubsub
}
