package events

import (
	"context"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSBus is a Bus over core NATS subjects (no JetStream: the feed is
// best-effort by contract).
type NATSBus struct {
	nc     *nats.Conn
	buffer int

	mu   sync.Mutex
	subs map[*natsSubscription]struct{}
}

// NewNATSBus connects to url and reconnects forever on drops. Every open
// subscription ends on reconnect so its owner can replay what it missed.
func NewNATSBus(url, name string, buffer int) (*NATSBus, error) {
	if buffer <= 0 {
		buffer = 64
	}
	b := &NATSBus{buffer: buffer, subs: make(map[*natsSubscription]struct{})}
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(500*time.Millisecond),
		nats.ReconnectJitter(100*time.Millisecond, 500*time.Millisecond),
		nats.Timeout(3*time.Second),
		nats.ReconnectHandler(func(*nats.Conn) { b.dropAll() }),
	)
	if err != nil {
		return nil, err
	}
	b.nc = nc
	return b, nil
}

func (b *NATSBus) Publish(_ context.Context, topic string, payload []byte) error {
	return b.nc.Publish(topic, payload)
}

func (b *NATSBus) Subscribe(_ context.Context, topic string) (Subscription, error) {
	in := make(chan *nats.Msg, b.buffer)
	sub, err := b.nc.ChanSubscribe(topic, in)
	if err != nil {
		return nil, err
	}
	// round trip so the server has registered interest before we return
	if err := b.nc.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return nil, err
	}

	s := b.track(sub)
	go s.pump(in)
	return s, nil
}

// Close drains the connection.
func (b *NATSBus) Close() error {
	return b.nc.Drain()
}

func (b *NATSBus) track(sub *nats.Subscription) *natsSubscription {
	s := &natsSubscription{
		bus:  b,
		sub:  sub,
		out:  make(chan []byte, b.buffer),
		done: make(chan struct{}),
		lost: make(chan struct{}),
	}
	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()
	return s
}

func (b *NATSBus) untrack(s *natsSubscription) {
	b.mu.Lock()
	delete(b.subs, s)
	b.mu.Unlock()
}

// dropAll ends every open subscription after the connection came back.
func (b *NATSBus) dropAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for s := range b.subs {
		s.lostOnce.Do(func() { close(s.lost) })
		delete(b.subs, s)
	}
}

type natsSubscription struct {
	bus  *NATSBus
	sub  *nats.Subscription
	out  chan []byte
	done chan struct{}
	once sync.Once

	lost     chan struct{}
	lostOnce sync.Once
}

func (s *natsSubscription) C() <-chan []byte { return s.out }

func (s *natsSubscription) Close() error {
	var err error
	s.once.Do(func() {
		s.bus.untrack(s)
		err = s.sub.Unsubscribe()
		close(s.done)
	})
	return err
}

func (s *natsSubscription) pump(in <-chan *nats.Msg) {
	defer close(s.out)
	for {
		select {
		case <-s.done:
			return
		case <-s.lost:
			return
		case m := <-in:
			select {
			case s.out <- m.Data:
			case <-s.done:
				return
			case <-s.lost:
				return
			}
		}
	}
}
