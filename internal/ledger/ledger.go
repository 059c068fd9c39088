// Package ledger is the decision ledger: the source of truth for "has A
// already decided on B", plus the read side of the liked-you surface.
package ledger

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/oggyb/muzz-match/internal/db"
	svcErr "github.com/oggyb/muzz-match/internal/errors"
	"github.com/oggyb/muzz-match/internal/ids"
	"github.com/oggyb/muzz-match/internal/metrics"
	"github.com/oggyb/muzz-match/internal/repository"
)

// Notifier receives the "someone liked you" event.
type Notifier interface {
	Emit(ctx context.Context, recipientID uint64, kind db.NotificationKind, payloadRef string) (*db.Notification, error)
}

// LikeCountCache is the cache-first store for liked-you counts.
type LikeCountCache interface {
	GetLikeCount(ctx context.Context, userID uint64) (int64, bool, error)
	LikeCountVersion(ctx context.Context, userID uint64) (int64, error)
	SetLikeCountIfVersion(ctx context.Context, userID uint64, count, version int64) (bool, error)
	InvalidateLikeCount(ctx context.Context, userID uint64) error
}

// Ledger records decisions exactly once per ordered pair.
type Ledger struct {
	decisions *repository.DecisionRepository
	cache     LikeCountCache
	notifier  Notifier
	log       *slog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time

	counts singleflight.Group
}

// New wires a Ledger. cache and notifier may be nil.
func New(
	decisions *repository.DecisionRepository,
	cache LikeCountCache,
	notifier Notifier,
	log *slog.Logger,
	m *metrics.Metrics,
) *Ledger {
	return &Ledger{
		decisions: decisions,
		cache:     cache,
		notifier:  notifier,
		log:       log.With("component", "ledger"),
		metrics:   m,
		now:       db.Now,
	}
}

// Record stores actor's decision on subject.
//
// Behavior:
//   - ErrSelfDecision / ErrInvalidKind on bad input.
//   - ErrDuplicateDecision if the pair is already decided. Checked before the
//     insert; the unique index catches the double-tap race and reports the
//     same error instead of a silent success.
//   - On like/super_like: drops the subject's cached liked-you count and
//     notifies the subject. A failed notification is logged, not returned:
//     the decision is committed and a retry would only hit the duplicate path.
//   - On pass: drops the actor's cached count, since a passed liker no
//     longer counts for them.
func (l *Ledger) Record(ctx context.Context, actorID, subjectID uint64, kind db.DecisionKind) (*db.Decision, error) {
	if actorID == subjectID {
		return nil, svcErr.ErrSelfDecision
	}
	if !kind.Valid() {
		return nil, svcErr.ErrInvalidKind
	}

	exists, err := l.decisions.Exists(ctx, actorID, subjectID)
	if err != nil {
		return nil, svcErr.Backend("decisions.exists", err)
	}
	if exists {
		l.metrics.DuplicateDecision()
		return nil, svcErr.ErrDuplicateDecision
	}

	d := &db.Decision{
		ID:        ids.New(),
		ActorID:   actorID,
		SubjectID: subjectID,
		Kind:      kind,
		CreatedAt: l.now(),
	}
	inserted, err := l.decisions.Insert(ctx, d)
	if err != nil {
		return nil, svcErr.Backend("decisions.insert", err)
	}
	if !inserted {
		l.log.Info("decision.duplicate_race", "actor", actorID, "subject", subjectID)
		l.metrics.DuplicateDecision()
		return nil, svcErr.ErrDuplicateDecision
	}

	l.metrics.Decision(string(kind))
	l.log.Debug("decision.recorded", "actor", actorID, "subject", subjectID, "kind", kind)

	if kind.Positive() {
		l.invalidateCount(ctx, subjectID)
		if l.notifier != nil {
			if _, err := l.notifier.Emit(ctx, subjectID, db.NotifyDecisionReceived, d.ID); err != nil {
				l.log.Warn("decision.notify_failed", "subject", subjectID, "err", err)
			}
		}
	} else {
		l.invalidateCount(ctx, actorID)
	}
	return d, nil
}

// Get returns actor's decision on subject, or ErrNotFound.
func (l *Ledger) Get(ctx context.Context, actorID, subjectID uint64) (*db.Decision, error) {
	d, err := l.decisions.Get(ctx, actorID, subjectID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, svcErr.ErrNotFound
	}
	if err != nil {
		return nil, svcErr.Backend("decisions.get", err)
	}
	return d, nil
}

// Exists reports whether actor already decided on subject.
func (l *Ledger) Exists(ctx context.Context, actorID, subjectID uint64) (bool, error) {
	ok, err := l.decisions.Exists(ctx, actorID, subjectID)
	return ok, svcErr.Backend("decisions.exists", err)
}

// HasPositive reports whether actor liked or super-liked subject.
func (l *Ledger) HasPositive(ctx context.Context, actorID, subjectID uint64) (bool, error) {
	ok, err := l.decisions.HasPositive(ctx, actorID, subjectID)
	return ok, svcErr.Backend("decisions.has_positive", err)
}

// Undecided filters candidates down to those actor has not decided on yet,
// preserving order.
func (l *Ledger) Undecided(ctx context.Context, actorID uint64, candidates []uint64) ([]uint64, error) {
	decided, err := l.decisions.DecidedAmong(ctx, actorID, candidates)
	if err != nil {
		return nil, svcErr.Backend("decisions.decided_among", err)
	}
	seen := make(map[uint64]struct{}, len(decided))
	for _, id := range decided {
		seen[id] = struct{}{}
	}

	out := make([]uint64, 0, len(candidates))
	for _, id := range candidates {
		if _, ok := seen[id]; ok || id == actorID {
			continue
		}
		out = append(out, id)
	}
	return out, nil
}

// Remove deletes actor's decision on subject and returns what was removed.
// It is the only deletion path and belongs to the rewind controller.
// Returns ErrNotFound if there was nothing to remove.
func (l *Ledger) Remove(ctx context.Context, actorID, subjectID uint64) (*db.Decision, error) {
	d, err := l.Get(ctx, actorID, subjectID)
	if err != nil {
		return nil, err
	}
	removed, err := l.decisions.Delete(ctx, actorID, subjectID)
	if err != nil {
		return nil, svcErr.Backend("decisions.delete", err)
	}
	if !removed {
		return nil, svcErr.ErrNotFound
	}
	if d.Kind.Positive() {
		l.invalidateCount(ctx, subjectID)
	} else {
		l.invalidateCount(ctx, actorID)
	}
	l.log.Debug("decision.removed", "actor", actorID, "subject", subjectID, "kind", d.Kind)
	return d, nil
}

// LikedYou lists users who liked subject, excluding those subject passed.
func (l *Ledger) LikedYou(ctx context.Context, subjectID uint64, token *string, limit int) ([]db.Decision, *string, error) {
	rows, next, err := l.decisions.GetLikers(ctx, subjectID, token, limit)
	if err != nil {
		return nil, nil, svcErr.Backend("decisions.likers", err)
	}
	return rows, next, nil
}

// NewLikedYou is LikedYou without the ones subject already liked back.
func (l *Ledger) NewLikedYou(ctx context.Context, subjectID uint64, token *string, limit int) ([]db.Decision, *string, error) {
	rows, next, err := l.decisions.GetNewLikers(ctx, subjectID, token, limit)
	if err != nil {
		return nil, nil, svcErr.Backend("decisions.new_likers", err)
	}
	return rows, next, nil
}

// CountLikedYou returns how many users liked subject.
// Cache-first strategy:
//  1. Reads likes:count:<id> from Redis.
//  2. On a miss, counts in the DB (concurrent misses share one query).
//  3. Stores the result with a 1h TTL, unless the count was invalidated
//     while the query ran.
func (l *Ledger) CountLikedYou(ctx context.Context, subjectID uint64) (int64, error) {
	if l.cache != nil {
		if n, ok, err := l.cache.GetLikeCount(ctx, subjectID); err == nil && ok {
			return n, nil
		} else if err != nil {
			l.log.Warn("likes.cache_get_failed", "subject", subjectID, "err", err)
		}
	}

	v, err, _ := l.counts.Do(countKey(subjectID), func() (any, error) {
		var version int64
		cacheable := l.cache != nil
		if cacheable {
			var err error
			if version, err = l.cache.LikeCountVersion(ctx, subjectID); err != nil {
				l.log.Warn("likes.cache_version_failed", "subject", subjectID, "err", err)
				cacheable = false
			}
		}
		n, err := l.decisions.CountLikers(ctx, subjectID)
		if err != nil {
			return int64(0), err
		}
		if cacheable {
			if stored, err := l.cache.SetLikeCountIfVersion(ctx, subjectID, n, version); err != nil {
				l.log.Warn("likes.cache_set_failed", "subject", subjectID, "err", err)
			} else if !stored {
				l.log.Debug("likes.cache_fill_stale", "subject", subjectID)
			}
		}
		return n, nil
	})
	if err != nil {
		return 0, svcErr.Backend("decisions.count_likers", err)
	}
	return v.(int64), nil
}

func (l *Ledger) invalidateCount(ctx context.Context, subjectID uint64) {
	if l.cache == nil {
		return
	}
	if err := l.cache.InvalidateLikeCount(ctx, subjectID); err != nil {
		l.log.Warn("likes.cache_invalidate_failed", "subject", subjectID, "err", err)
	}
}

func countKey(id uint64) string {
	return strconv.FormatUint(id, 10)
}
