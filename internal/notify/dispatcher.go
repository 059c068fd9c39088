// Package notify is the notification dispatcher: one inbox row per emit,
// plus a best-effort live push on the recipient's inbox topic.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/oggyb/muzz-match/internal/db"
	svcErr "github.com/oggyb/muzz-match/internal/errors"
	"github.com/oggyb/muzz-match/internal/events"
	"github.com/oggyb/muzz-match/internal/ids"
	"github.com/oggyb/muzz-match/internal/metrics"
	"github.com/oggyb/muzz-match/internal/repository"
)

// Dispatcher writes notifications and pushes them to live inbox feeds.
//
// Deduplication is the caller's job: Emit writes exactly one row per call.
type Dispatcher struct {
	repo    *repository.NotificationRepository
	bus     events.Bus
	log     *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewDispatcher wires a dispatcher. bus may be nil (no live push).
func NewDispatcher(repo *repository.NotificationRepository, bus events.Bus, log *slog.Logger, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{
		repo:    repo,
		bus:     bus,
		log:     log.With("component", "notify"),
		metrics: m,
		now:     db.Now,
	}
}

// Emit creates one notification for recipient.
func (d *Dispatcher) Emit(ctx context.Context, recipientID uint64, kind db.NotificationKind, payloadRef string) (*db.Notification, error) {
	n := &db.Notification{
		ID:          ids.New(),
		RecipientID: recipientID,
		Kind:        kind,
		PayloadRef:  payloadRef,
		CreatedAt:   d.now(),
	}
	if err := d.repo.Create(ctx, n); err != nil {
		return nil, svcErr.Backend("notifications.create", err)
	}
	d.metrics.Notification(string(kind))

	if d.bus != nil {
		payload, _ := json.Marshal(n)
		if err := d.bus.Publish(ctx, events.InboxTopic(recipientID), payload); err != nil {
			// the row is committed; feeds catch up through List
			d.log.Warn("notify.publish_failed", "recipient", recipientID, "kind", kind, "err", err)
		}
	}

	d.log.Debug("notify.emitted", "recipient", recipientID, "kind", kind, "ref", payloadRef)
	return n, nil
}

// MarkRead flags one of recipient's notifications. Idempotent.
func (d *Dispatcher) MarkRead(ctx context.Context, recipientID uint64, notificationID string) error {
	err := d.repo.MarkRead(ctx, recipientID, notificationID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return svcErr.ErrNotFound
	}
	return svcErr.Backend("notifications.mark_read", err)
}

// MarkAllRead flags every unread notification of recipient. Idempotent;
// returns how many changed.
func (d *Dispatcher) MarkAllRead(ctx context.Context, recipientID uint64) (int64, error) {
	n, err := d.repo.MarkAllRead(ctx, recipientID)
	return n, svcErr.Backend("notifications.mark_all_read", err)
}

// List returns recipient's inbox, newest first.
func (d *Dispatcher) List(ctx context.Context, recipientID uint64, token *string, limit int) ([]db.Notification, *string, error) {
	rows, next, err := d.repo.List(ctx, recipientID, token, limit)
	if err != nil {
		return nil, nil, svcErr.Backend("notifications.list", err)
	}
	return rows, next, nil
}

// UnreadCount returns the badge count.
func (d *Dispatcher) UnreadCount(ctx context.Context, recipientID uint64) (int64, error) {
	n, err := d.repo.UnreadCount(ctx, recipientID)
	return n, svcErr.Backend("notifications.unread_count", err)
}

// Feed is a live inbox stream. It ends when the bus connection drops; the
// caller resubscribes and uses List to fill the gap.
type Feed struct {
	out    chan db.Notification
	sub    events.Subscription
	cancel context.CancelFunc
	once   sync.Once
}

// C yields notifications as they are emitted.
func (f *Feed) C() <-chan db.Notification { return f.out }

// Close ends the feed. Safe to call more than once.
func (f *Feed) Close() {
	f.once.Do(func() {
		f.cancel()
		_ = f.sub.Close()
	})
}

// Subscribe opens a live feed of recipient's new notifications.
func (d *Dispatcher) Subscribe(ctx context.Context, recipientID uint64) (*Feed, error) {
	if d.bus == nil {
		return nil, svcErr.Backend("notifications.subscribe", errors.New("no event bus configured"))
	}
	sub, err := d.bus.Subscribe(ctx, events.InboxTopic(recipientID))
	if err != nil {
		return nil, svcErr.Backend("notifications.subscribe", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	f := &Feed{out: make(chan db.Notification, 16), sub: sub, cancel: cancel}

	go func() {
		defer close(f.out)
		defer f.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case payload, ok := <-sub.C():
				if !ok {
					return
				}
				var n db.Notification
				if err := json.Unmarshal(payload, &n); err != nil {
					d.log.Warn("notify.bad_payload", "recipient", recipientID, "err", err)
					continue
				}
				select {
				case f.out <- n:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return f, nil
}

// NotifyMatch tells both participants a match formed.
func (d *Dispatcher) NotifyMatch(ctx context.Context, m *db.Match) error {
	var errs []error
	for _, user := range []uint64{m.UserA, m.UserB} {
		if _, err := d.Emit(ctx, user, db.NotifyMatchFormed, m.ID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
