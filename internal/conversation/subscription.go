package conversation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/oggyb/muzz-match/internal/db"
	svcErr "github.com/oggyb/muzz-match/internal/errors"
	"github.com/oggyb/muzz-match/internal/events"
)

var errFeedLost = errors.New("live feed lost")

// Event is one item of a conversation feed: a new message, or a read
// receipt for a message already delivered.
type Event struct {
	Type    events.ChatEventType
	Message db.Message
}

// Subscription is a live, self-healing feed of one match.
//
// Messages arrive in seq order with no gaps: a dropped publish or a lost
// connection is repaired by reading storage after the last delivered seq.
// Delivery is at-least-once across caller-driven resubscribes; consumers
// dedupe by message id.
type Subscription struct {
	ch       *Channel
	matchID  string
	viewerID uint64

	out    chan Event
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	lastSeq int64
	err     error
}

// Subscribe opens a feed of matchID for viewerID, starting after afterSeq
// (0 replays the whole conversation). The feed ends when ctx is done, on
// Close, or with ErrInactiveMatch once the match is deactivated.
func (c *Channel) Subscribe(ctx context.Context, matchID string, viewerID uint64, afterSeq int64) (*Subscription, error) {
	if c.bus == nil {
		return nil, svcErr.Backend("conversation.subscribe", errors.New("no event bus configured"))
	}
	if _, err := c.authorize(ctx, matchID, viewerID); err != nil {
		return nil, err
	}

	// live first, so nothing committed after the replay read is missed
	feed, err := c.bus.Subscribe(ctx, events.MatchTopic(matchID))
	if err != nil {
		return nil, svcErr.Backend("conversation.subscribe", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	s := &Subscription{
		ch:       c,
		matchID:  matchID,
		viewerID: viewerID,
		out:      make(chan Event, c.opts.SubscriberBuffer),
		cancel:   cancel,
		done:     make(chan struct{}),
		lastSeq:  afterSeq,
	}
	go s.run(ctx, runCtx, feed)
	return s, nil
}

// Events yields the feed. Closed when the subscription ends.
func (s *Subscription) Events() <-chan Event { return s.out }

// Done is closed once the feed has fully stopped.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// LastSeq is the seq of the last message delivered; resubscribe with it to
// resume without a gap.
func (s *Subscription) LastSeq() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeq
}

// Err explains why the feed ended: ErrInactiveMatch, a context error, or nil
// after Close.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close stops the feed and waits for it to wind down.
func (s *Subscription) Close() {
	s.cancel()
	<-s.done
}

func (s *Subscription) run(parent, ctx context.Context, feed events.Subscription) {
	defer close(s.done)
	defer close(s.out)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = 0
	b.Reset()

	topic := events.MatchTopic(s.matchID)
	log := s.ch.log.With("match_id", s.matchID, "viewer", s.viewerID)

	for {
		if feed != nil {
			err := s.catchUp(ctx)
			if err == nil {
				b.Reset()
				err = s.pump(ctx, feed)
			}
			_ = feed.Close()
			feed = nil

			switch {
			case ctx.Err() != nil:
				s.finish(parent.Err())
				return
			case svcErr.IsDomain(err):
				s.finish(err)
				return
			}
			log.Info("conversation.feed_lost", "last_seq", s.LastSeq(), "err", err)
		}

		select {
		case <-ctx.Done():
			s.finish(parent.Err())
			return
		case <-time.After(b.NextBackOff()):
		}

		s.ch.metrics.FeedReconnect()
		next, err := s.ch.bus.Subscribe(ctx, topic)
		if err != nil {
			log.Warn("conversation.resubscribe_failed", "err", err)
			continue
		}
		feed = next
	}
}

// catchUp delivers everything stored after the last delivered seq, then
// confirms the match is still active.
func (s *Subscription) catchUp(ctx context.Context) error {
	for {
		msgs, more, err := s.ch.messages.After(ctx, s.matchID, s.LastSeq(), s.ch.opts.ReplayLimit)
		if err != nil {
			return svcErr.Backend("messages.after", err)
		}
		for _, m := range msgs {
			if !s.deliver(ctx, Event{Type: events.ChatMessage, Message: m}) {
				return ctx.Err()
			}
		}
		if !more {
			break
		}
	}

	m, err := s.ch.matches.Get(ctx, s.matchID)
	if err != nil {
		return err
	}
	if !m.Active {
		return svcErr.ErrInactiveMatch
	}
	return nil
}

func (s *Subscription) pump(ctx context.Context, feed events.Subscription) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case payload, ok := <-feed.C():
			if !ok {
				return errFeedLost
			}
			ev, err := events.DecodeChatEvent(payload)
			if err != nil {
				s.ch.log.Warn("conversation.bad_payload", "match_id", s.matchID, "err", err)
				continue
			}

			switch ev.Type {
			case events.ChatMessage:
				if ev.Message == nil {
					continue
				}
				last := s.LastSeq()
				switch {
				case ev.Message.Seq <= last:
					// already delivered by a replay
				case ev.Message.Seq > last+1:
					// a publish was dropped; storage has the gap
					if err := s.catchUp(ctx); err != nil {
						return err
					}
				default:
					if !s.deliver(ctx, Event{Type: events.ChatMessage, Message: *ev.Message}) {
						return ctx.Err()
					}
				}

			case events.ChatRead:
				if ev.Message == nil || ev.Message.Seq > s.LastSeq() {
					// the replay will carry read_at
					continue
				}
				if !s.deliver(ctx, Event{Type: events.ChatRead, Message: *ev.Message}) {
					return ctx.Err()
				}

			case events.ChatClosed:
				if err := s.catchUp(ctx); err != nil {
					return err
				}
				return svcErr.ErrInactiveMatch
			}
		}
	}
}

// deliver hands ev to the consumer. lastSeq only advances after the handoff,
// so a resume from LastSeq can repeat a message but never skip one.
func (s *Subscription) deliver(ctx context.Context, ev Event) bool {
	select {
	case s.out <- ev:
	case <-ctx.Done():
		return false
	}
	if ev.Type == events.ChatMessage {
		s.mu.Lock()
		if ev.Message.Seq > s.lastSeq {
			s.lastSeq = ev.Message.Seq
		}
		s.mu.Unlock()
	}
	return true
}

func (s *Subscription) finish(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}
