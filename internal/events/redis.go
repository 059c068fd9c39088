package events

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
)

// RedisBus is a Bus over Redis Pub/Sub. It does not own the client.
type RedisBus struct {
	client *redis.Client
	buffer int
}

// NewRedisBus wraps client. buffer sizes each subscription's delivery queue.
func NewRedisBus(client *redis.Client, buffer int) *RedisBus {
	if buffer <= 0 {
		buffer = 64
	}
	return &RedisBus{client: client, buffer: buffer}
}

func (b *RedisBus) Publish(ctx context.Context, topic string, payload []byte) error {
	return b.client.Publish(ctx, topic, payload).Err()
}

func (b *RedisBus) Subscribe(ctx context.Context, topic string) (Subscription, error) {
	ps := b.client.Subscribe(ctx, topic)
	// wait for the server to confirm, otherwise early publishes are lost
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	s := &redisSubscription{
		ps:   ps,
		out:  make(chan []byte, b.buffer),
		done: make(chan struct{}),
	}
	go s.pump(ps.ChannelWithSubscriptions())
	return s, nil
}

// Close is a no-op; the client belongs to the cache layer.
func (b *RedisBus) Close() error { return nil }

type redisSubscription struct {
	ps   *redis.PubSub
	out  chan []byte
	done chan struct{}
	once sync.Once
}

func (s *redisSubscription) C() <-chan []byte { return s.out }

func (s *redisSubscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.ps.Close()
	})
	return err
}

// pump forwards messages until Close. go-redis reconnects a dropped PubSub
// on its own and re-subscribes, which shows up here as a fresh subscribe
// confirmation; publishes in between are lost, so the feed ends and the
// subscriber recovers from storage.
func (s *redisSubscription) pump(in <-chan interface{}) {
	defer close(s.out)
	for {
		select {
		case <-s.done:
			return
		case v, ok := <-in:
			if !ok {
				return
			}
			switch m := v.(type) {
			case *redis.Subscription:
				if m.Kind == "subscribe" {
					return
				}
			case *redis.Message:
				select {
				case s.out <- []byte(m.Payload):
				case <-s.done:
					return
				}
			}
		}
	}
}
