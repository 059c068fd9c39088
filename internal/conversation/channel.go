// Package conversation is the per-match message log: ordered appends, read
// receipts and a live feed that replays what it missed.
package conversation

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/oggyb/muzz-match/internal/db"
	svcErr "github.com/oggyb/muzz-match/internal/errors"
	"github.com/oggyb/muzz-match/internal/events"
	"github.com/oggyb/muzz-match/internal/ids"
	"github.com/oggyb/muzz-match/internal/metrics"
	"github.com/oggyb/muzz-match/internal/repository"
)

// DefaultReplayLimit caps one storage read during history and catch-up.
const DefaultReplayLimit = 200

// Matches resolves a match id. Returns svcErr.ErrNotFound when unknown.
type Matches interface {
	Get(ctx context.Context, matchID string) (*db.Match, error)
}

// Notifier is told about every delivered message.
type Notifier interface {
	Emit(ctx context.Context, recipientID uint64, kind db.NotificationKind, payloadRef string) (*db.Notification, error)
}

// Toucher records sender activity.
type Toucher interface {
	Touch(ctx context.Context, userID uint64) error
}

// Options tunes a Channel. Zero values pick defaults.
type Options struct {
	ReplayLimit      int
	SubscriberBuffer int
}

// Channel owns Message rows. All writes go through Send and MarkRead.
type Channel struct {
	messages *repository.MessageRepository
	matches  Matches
	bus      events.Bus
	notifier Notifier
	presence Toucher
	log      *slog.Logger
	metrics  *metrics.Metrics
	opts     Options
	now      func() time.Time
}

// NewChannel wires a Channel. notifier and presence may be nil.
func NewChannel(
	messages *repository.MessageRepository,
	matches Matches,
	bus events.Bus,
	notifier Notifier,
	presence Toucher,
	log *slog.Logger,
	m *metrics.Metrics,
	opts Options,
) *Channel {
	if opts.ReplayLimit <= 0 {
		opts.ReplayLimit = DefaultReplayLimit
	}
	if opts.SubscriberBuffer <= 0 {
		opts.SubscriberBuffer = 64
	}
	return &Channel{
		messages: messages,
		matches:  matches,
		bus:      bus,
		notifier: notifier,
		presence: presence,
		log:      log.With("component", "conversation"),
		metrics:  m,
		opts:     opts,
		now:      db.Now,
	}
}

// Send appends a message to an active match.
//
// Behavior:
//   - ErrEmptyMessage for blank content (after trimming).
//   - ErrNotFound for an unknown match, ErrNotParticipant for an outsider,
//     ErrInactiveMatch once the match was unmatched or rewound.
//   - The server clock assigns CreatedAt; the log forces it to be strictly
//     after the previous message so every subscriber sees one order.
//   - The message is committed before it is published or notified; those
//     two are best effort.
func (c *Channel) Send(ctx context.Context, matchID string, senderID uint64, content string) (*db.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, svcErr.ErrEmptyMessage
	}

	now := c.now()
	var recipient uint64
	msg, err := c.messages.Append(ctx, matchID, func(m *db.Match) (*db.Message, error) {
		other, ok := m.Other(senderID)
		if !ok {
			return nil, svcErr.ErrNotParticipant
		}
		if !m.Active {
			return nil, svcErr.ErrInactiveMatch
		}
		recipient = other
		return &db.Message{
			ID:        ids.NewULID(now),
			SenderID:  senderID,
			Content:   content,
			CreatedAt: now,
		}, nil
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, svcErr.ErrNotFound
	}
	if err != nil {
		return nil, svcErr.Backend("messages.append", err)
	}

	c.metrics.MessageSent()
	c.log.Debug("message.sent", "match_id", matchID, "seq", msg.Seq, "sender", senderID)

	c.publish(ctx, events.ChatEvent{Type: events.ChatMessage, MatchID: matchID, Message: msg})
	if c.notifier != nil {
		if _, err := c.notifier.Emit(ctx, recipient, db.NotifyMessageReceived, msg.ID); err != nil {
			c.log.Warn("message.notify_failed", "match_id", matchID, "recipient", recipient, "err", err)
		}
	}
	if c.presence != nil {
		if err := c.presence.Touch(ctx, senderID); err != nil {
			c.log.Warn("message.touch_failed", "sender", senderID, "err", err)
		}
	}
	return msg, nil
}

// History returns messages after afterSeq in order. Deactivated matches are
// hidden from both participants.
func (c *Channel) History(ctx context.Context, matchID string, viewerID uint64, afterSeq int64, limit int) ([]db.Message, bool, error) {
	if _, err := c.authorize(ctx, matchID, viewerID); err != nil {
		return nil, false, err
	}
	if limit <= 0 || limit > c.opts.ReplayLimit {
		limit = c.opts.ReplayLimit
	}
	msgs, more, err := c.messages.After(ctx, matchID, afterSeq, limit)
	if err != nil {
		return nil, false, svcErr.Backend("messages.after", err)
	}
	return msgs, more, nil
}

// MarkRead stamps readAt on messageIDs for readerID.
//
// Messages the reader sent, messages outside the reader's active matches and
// messages already read are skipped silently; re-marking is a no-op. Returns
// the messages this call changed. Each one is published as a read receipt on
// its match feed.
func (c *Channel) MarkRead(ctx context.Context, messageIDs []string, readerID uint64) ([]db.Message, error) {
	changed, err := c.messages.MarkRead(ctx, messageIDs, readerID, c.now())
	if err != nil {
		return nil, svcErr.Backend("messages.mark_read", err)
	}
	if len(changed) == 0 {
		return nil, nil
	}

	c.metrics.MessagesMarkedRead(len(changed))
	for i := range changed {
		c.publish(ctx, events.ChatEvent{Type: events.ChatRead, MatchID: changed[i].MatchID, Message: &changed[i]})
	}
	return changed, nil
}

// MarkConversationRead is the "conversation opened" trigger: every message
// the reader received in matchID up to upToSeq (0 for all) becomes read.
func (c *Channel) MarkConversationRead(ctx context.Context, matchID string, readerID uint64, upToSeq int64) ([]db.Message, error) {
	if _, err := c.authorize(ctx, matchID, readerID); err != nil {
		return nil, err
	}
	unread, err := c.messages.UnreadFor(ctx, matchID, readerID, upToSeq)
	if err != nil {
		return nil, svcErr.Backend("messages.unread", err)
	}
	return c.MarkRead(ctx, unread, readerID)
}

func (c *Channel) authorize(ctx context.Context, matchID string, viewerID uint64) (*db.Match, error) {
	m, err := c.matches.Get(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if !m.HasUser(viewerID) {
		return nil, svcErr.ErrNotParticipant
	}
	if !m.Active {
		return nil, svcErr.ErrInactiveMatch
	}
	return m, nil
}

func (c *Channel) publish(ctx context.Context, ev events.ChatEvent) {
	if c.bus == nil {
		return
	}
	payload, err := ev.Encode()
	if err == nil {
		err = c.bus.Publish(ctx, events.MatchTopic(ev.MatchID), payload)
	}
	if err != nil {
		// subscribers recover through replay
		c.log.Warn("conversation.publish_failed", "match_id", ev.MatchID, "type", ev.Type, "err", err)
	}
}
