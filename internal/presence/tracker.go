// Package presence answers "is this user around right now" from the last
// activity timestamp.
package presence

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/oggyb/muzz-match/internal/db"
	svcErr "github.com/oggyb/muzz-match/internal/errors"
	"github.com/oggyb/muzz-match/internal/repository"
)

// DefaultWindow is how long after the last activity a user still counts as
// online.
const DefaultWindow = 10 * time.Minute

// Online is the pure predicate behind IsOnline. A zero last means never seen.
func Online(last, now time.Time, window time.Duration) bool {
	if last.IsZero() {
		return false
	}
	return now.Sub(last) < window
}

// Tracker keeps one last-active row per user.
type Tracker struct {
	repo   *repository.PresenceRepository
	window time.Duration
	log    *slog.Logger
	now    func() time.Time
}

// NewTracker builds a tracker. A non-positive window falls back to
// DefaultWindow.
func NewTracker(repo *repository.PresenceRepository, window time.Duration, log *slog.Logger) *Tracker {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Tracker{
		repo:   repo,
		window: window,
		log:    log.With("component", "presence"),
		now:    db.Now,
	}
}

// WithClock replaces the time source. Used by tests.
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	t.now = now
	return t
}

// Window returns the configured online window.
func (t *Tracker) Window() time.Duration { return t.window }

// Touch stamps userID as active now.
func (t *Tracker) Touch(ctx context.Context, userID uint64) error {
	err := t.repo.Touch(ctx, userID, t.now())
	return svcErr.Backend("presence.touch", err)
}

// LastActive returns when userID was last seen; zero if never.
func (t *Tracker) LastActive(ctx context.Context, userID uint64) (time.Time, error) {
	p, err := t.repo.Get(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, svcErr.Backend("presence.get", err)
	}
	return p.LastActiveAt, nil
}

// IsOnline reports whether userID was active within the window.
func (t *Tracker) IsOnline(ctx context.Context, userID uint64) (bool, error) {
	last, err := t.LastActive(ctx, userID)
	if err != nil {
		return false, err
	}
	return Online(last, t.now(), t.window), nil
}

// OnlineAmong returns the online flag for each of userIDs. Unknown users are
// reported offline.
func (t *Tracker) OnlineAmong(ctx context.Context, userIDs []uint64) (map[uint64]bool, error) {
	rows, err := t.repo.GetMany(ctx, userIDs)
	if err != nil {
		return nil, svcErr.Backend("presence.get_many", err)
	}

	now := t.now()
	out := make(map[uint64]bool, len(userIDs))
	for _, id := range userIDs {
		out[id] = false
	}
	for _, p := range rows {
		out[p.UserID] = Online(p.LastActiveAt, now, t.window)
	}
	return out, nil
}
