// Package event provides the topic-based pub/sub bus that decouples backend
// state mutations from the frontend transport, built on watermill's
// gochannel infrastructure.
package event

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// Update is what subscribers receive: the topic it was published on plus an
// arbitrary JSON-marshalable payload.
type Update struct {
	Topic string `json:"topic"`
	Data  any    `json:"data"`
}

// Handler receives updates for a subscribed topic.
type Handler func(u Update)

type subscriberEntry struct {
	id uint64
	fn Handler
}

// Bus is a topic-string pub/sub bus. Topics are opaque strings, optionally
// parameterized (e.g. "session-update/<id>"). Publishing to a topic with no
// subscribers is a no-op. Topics published with PublishRetained keep their
// last payload, which is delivered once to every new subscriber so a
// late-joining observer is not left stale.
type Bus struct {
	mu sync.RWMutex

	// Watermill pub/sub kept for middleware/routing and distributed
	// backends; delivery uses direct subscriber calls to preserve types.
	pubsub *gochannel.GoChannel

	subscribers map[string][]subscriberEntry
	retained    map[string]any

	nextID uint64
	closed bool

	closedCtx    context.Context
	closedCancel context.CancelFunc
}

// NewBus creates a bus. Create one at startup and inject it; there is no
// ambient global instance.
func NewBus() *Bus {
	ctx, cancel := context.WithCancel(context.Background())
	return &Bus{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{
				OutputChannelBuffer: 100,
				Persistent:          false,
			},
			watermill.NopLogger{},
		),
		subscribers:  make(map[string][]subscriberEntry),
		retained:     make(map[string]any),
		closedCtx:    ctx,
		closedCancel: cancel,
	}
}

func (b *Bus) newID() uint64 {
	return atomic.AddUint64(&b.nextID, 1)
}

// Subscribe registers a handler for a topic and returns an unsubscribe
// function. If the topic has a retained payload it is delivered to the new
// handler synchronously, exactly once, before Subscribe returns.
func (b *Bus) Subscribe(topic string, fn Handler) func() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return func() {}
	}

	id := b.newID()
	b.subscribers[topic] = append(b.subscribers[topic], subscriberEntry{id: id, fn: fn})
	snapshot, hasSnapshot := b.retained[topic]
	b.mu.Unlock()

	if hasSnapshot {
		fn(Update{Topic: topic, Data: snapshot})
	}

	return func() { b.unsubscribe(topic, id) }
}

func (b *Bus) unsubscribe(topic string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subscribers[topic]
	for i, entry := range subs {
		if entry.id == id {
			b.subscribers[topic] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(b.subscribers[topic]) == 0 {
		delete(b.subscribers, topic)
	}
}

// HasSubscribers reports whether any handler is registered for the topic.
func (b *Bus) HasSubscribers(topic string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[topic]) > 0
}

// Publish delivers data to the topic's subscribers. Each handler runs in
// its own goroutine so a slow transport cannot block the publisher.
func (b *Bus) Publish(topic string, data any) {
	for _, fn := range b.collect(topic) {
		go fn(Update{Topic: topic, Data: data})
	}
}

// PublishSync delivers data to the topic's subscribers in the calling
// goroutine, returning after every handler has run.
func (b *Bus) PublishSync(topic string, data any) {
	for _, fn := range b.collect(topic) {
		fn(Update{Topic: topic, Data: data})
	}
}

// PublishRetained publishes like PublishSync and additionally retains the
// payload as the topic's current state for future subscribers.
func (b *Bus) PublishRetained(topic string, data any) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.retained[topic] = data
	b.mu.Unlock()

	b.PublishSync(topic, data)
}

// DropRetained forgets the retained payload for a topic, typically when the
// backing entity is deleted.
func (b *Bus) DropRetained(topic string) {
	b.mu.Lock()
	delete(b.retained, topic)
	b.mu.Unlock()
}

func (b *Bus) collect(topic string) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil
	}
	subs := make([]Handler, 0, len(b.subscribers[topic]))
	for _, entry := range b.subscribers[topic] {
		subs = append(subs, entry.fn)
	}
	return subs
}

// Close tears down the bus. Subsequent publishes and subscribes are no-ops.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.closedCancel()
	b.subscribers = make(map[string][]subscriberEntry)
	b.retained = make(map[string]any)
	b.mu.Unlock()

	return b.pubsub.Close()
}

// PubSub exposes the underlying watermill GoChannel for advanced use.
func (b *Bus) PubSub() *gochannel.GoChannel {
	return b.pubsub
}
