package events

import (
	"context"
	"sync"
)

// MemoryBus is an in-process Bus for single-node development and tests.
// Publish never blocks: a full subscriber queue drops the payload.
type MemoryBus struct {
	buffer int

	mu   sync.Mutex
	subs map[string]map[*memorySubscription]struct{}
}

// NewMemoryBus constructs an empty bus.
func NewMemoryBus(buffer int) *MemoryBus {
	if buffer <= 0 {
		buffer = 64
	}
	return &MemoryBus{
		buffer: buffer,
		subs:   make(map[string]map[*memorySubscription]struct{}),
	}
}

func (b *MemoryBus) Publish(_ context.Context, topic string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for s := range b.subs[topic] {
		select {
		case s.out <- payload:
		default:
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(_ context.Context, topic string) (Subscription, error) {
	s := &memorySubscription{bus: b, topic: topic, out: make(chan []byte, b.buffer)}

	b.mu.Lock()
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[*memorySubscription]struct{})
	}
	b.subs[topic][s] = struct{}{}
	b.mu.Unlock()

	return s, nil
}

// Close ends every subscription.
func (b *MemoryBus) Close() error {
	b.DropAll()
	return nil
}

// DropAll ends every live subscription the way a lost connection would.
func (b *MemoryBus) DropAll() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for topic, set := range b.subs {
		for s := range set {
			close(s.out)
		}
		delete(b.subs, topic)
	}
}

// Subscribers reports how many subscriptions are live on topic.
func (b *MemoryBus) Subscribers(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[topic])
}

type memorySubscription struct {
	bus   *MemoryBus
	topic string
	out   chan []byte
}

func (s *memorySubscription) C() <-chan []byte { return s.out }

func (s *memorySubscription) Close() error {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()

	if set, ok := s.bus.subs[s.topic]; ok {
		if _, live := set[s]; live {
			delete(set, s)
			close(s.out)
		}
		if len(set) == 0 {
			delete(s.bus.subs, s.topic)
		}
	}
	return nil
}
