package events

import (
	"sync"
	"sync/atomic"

	"parley/pkg/logger"
)

// Published pairs an event with the topic it was published on. Topics
// are channel ids.
type Published struct {
	Topic string
	Event Event
}

// Subscriber receives events for its topic set on a buffered channel.
// A slow subscriber loses events rather than stalling publishers.
type Subscriber struct {
	bus     *Bus
	ch      chan Published
	topics  []string
	dropped atomic.Uint64
	closed  bool
}

// C is the subscriber's receive channel. It closes on Close.
func (s *Subscriber) C() <-chan Published { return s.ch }

// Dropped counts events lost to a full buffer.
func (s *Subscriber) Dropped() uint64 { return s.dropped.Load() }

// Close detaches the subscriber and closes its channel.
func (s *Subscriber) Close() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for _, topic := range s.topics {
		subs := s.bus.topics[topic]
		delete(subs, s)
		if len(subs) == 0 {
			delete(s.bus.topics, topic)
		}
	}
	close(s.ch)
}

// Bus is the in-process publish/subscribe fabric for realtime frames.
type Bus struct {
	mu      sync.RWMutex
	topics  map[string]map[*Subscriber]struct{}
	buffer  int
	dropped atomic.Uint64
}

// NewBus creates a bus whose subscribers buffer up to buffer events.
func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = 64
	}
	return &Bus{topics: make(map[string]map[*Subscriber]struct{}), buffer: buffer}
}

// Subscribe attaches a new subscriber to the given topics.
func (b *Bus) Subscribe(topics ...string) *Subscriber {
	sub := &Subscriber{bus: b, ch: make(chan Published, b.buffer), topics: topics}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, topic := range topics {
		subs, ok := b.topics[topic]
		if !ok {
			subs = make(map[*Subscriber]struct{})
			b.topics[topic] = subs
		}
		subs[sub] = struct{}{}
	}
	return sub
}

// Publish fans an event out to every subscriber of topic without
// blocking. Full buffers drop the event and count it.
func (b *Bus) Publish(topic string, ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.topics[topic] {
		select {
		case sub.ch <- Published{Topic: topic, Event: ev}:
		default:
			sub.dropped.Add(1)
			b.dropped.Add(1)
			logger.Debug("event_dropped", "topic", topic, "event", ev.Type())
		}
	}
}

// Dropped counts events lost bus-wide.
func (b *Bus) Dropped() uint64 { return b.dropped.Load() }

// Subscribers reports the number of attached subscribers.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	seen := make(map[*Subscriber]struct{})
	for _, subs := range b.topics {
		for sub := range subs {
			seen[sub] = struct{}{}
		}
	}
	return len(seen)
}
