package event

import "sync"

// Subscriptions tracks the topic set of a single transport client (one
// webview) and forwards matching updates to its sink. Subscribing to a
// topic the client already holds does not duplicate future deliveries, but
// it does replay the topic's retained state once, so a re-subscribing
// observer refreshes instead of going stale.
type Subscriptions struct {
	bus  *Bus
	sink Handler

	mu     sync.Mutex
	unsubs map[string]func()
}

// NewSubscriptions binds a subscription set to a bus and a delivery sink.
func NewSubscriptions(bus *Bus, sink Handler) *Subscriptions {
	return &Subscriptions{
		bus:    bus,
		sink:   sink,
		unsubs: make(map[string]func()),
	}
}

// Subscribe adds a topic. Retained state, if any, is delivered immediately.
func (s *Subscriptions) Subscribe(topic string) {
	s.mu.Lock()
	_, already := s.unsubs[topic]
	s.mu.Unlock()

	if already {
		// Replay current state without adding a second handler.
		s.bus.mu.RLock()
		snapshot, ok := s.bus.retained[topic]
		s.bus.mu.RUnlock()
		if ok {
			s.sink(Update{Topic: topic, Data: snapshot})
		}
		return
	}

	unsub := s.bus.Subscribe(topic, s.sink)

	s.mu.Lock()
	if _, raced := s.unsubs[topic]; raced {
		s.mu.Unlock()
		unsub()
		return
	}
	s.unsubs[topic] = unsub
	s.mu.Unlock()
}

// Unsubscribe removes a topic. Unknown topics are a no-op.
func (s *Subscriptions) Unsubscribe(topic string) {
	s.mu.Lock()
	unsub, ok := s.unsubs[topic]
	delete(s.unsubs, topic)
	s.mu.Unlock()

	if ok {
		unsub()
	}
}

// Topics returns the currently subscribed topic names.
func (s *Subscriptions) Topics() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	topics := make([]string, 0, len(s.unsubs))
	for t := range s.unsubs {
		topics = append(topics, t)
	}
	return topics
}

// Close drops every subscription, typically on client disconnect.
func (s *Subscriptions) Close() {
	s.mu.Lock()
	unsubs := s.unsubs
	s.unsubs = make(map[string]func())
	s.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
}
