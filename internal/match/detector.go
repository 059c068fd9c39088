// Package match turns reciprocal positive decisions into matches and owns
// the Active -> Inactive transition.
package match

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/oggyb/muzz-match/internal/db"
	svcErr "github.com/oggyb/muzz-match/internal/errors"
	"github.com/oggyb/muzz-match/internal/events"
	"github.com/oggyb/muzz-match/internal/ids"
	"github.com/oggyb/muzz-match/internal/metrics"
	"github.com/oggyb/muzz-match/internal/repository"
)

// Deactivation causes, used for logs and metrics.
const (
	CauseUnmatch = "unmatch"
	CauseRewind  = "rewind"
)

// Reciprocity answers "did actor like subject".
type Reciprocity interface {
	HasPositive(ctx context.Context, actorID, subjectID uint64) (bool, error)
}

// Notifier is told when a match forms.
type Notifier interface {
	NotifyMatch(ctx context.Context, m *db.Match) error
}

// Outcome is what a decision did to the pair.
type Outcome struct {
	// Match is the active match for the pair, nil when there is none.
	Match *db.Match
	// Created is true only for the decision whose insert won.
	Created bool
}

// Detector creates matches idempotently, whichever side triggers first.
type Detector struct {
	decisions Reciprocity
	matches   *repository.MatchRepository
	notifier  Notifier
	bus       events.Bus
	log       *slog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewDetector wires a Detector. notifier and bus may be nil.
func NewDetector(
	decisions Reciprocity,
	matches *repository.MatchRepository,
	notifier Notifier,
	bus events.Bus,
	log *slog.Logger,
	m *metrics.Metrics,
) *Detector {
	return &Detector{
		decisions: decisions,
		matches:   matches,
		notifier:  notifier,
		bus:       bus,
		log:       log.With("component", "match"),
		metrics:   m,
		now:       db.Now,
	}
}

// OnDecision runs after every recorded decision.
//
// Behavior:
//   - pass: no-op.
//   - like/super_like without a reciprocal positive decision: no-op.
//   - reciprocal found: conditional insert keyed by the canonical pair. The
//     loser of a concurrent race sees inserted=false, loads the winner's row
//     and returns it with Created=false. Nothing is surfaced as an error.
//   - Only the winner notifies, so each participant gets one MatchFormed.
func (d *Detector) OnDecision(ctx context.Context, dec *db.Decision) (Outcome, error) {
	if dec == nil || !dec.Kind.Positive() {
		return Outcome{}, nil
	}

	reciprocal, err := d.decisions.HasPositive(ctx, dec.SubjectID, dec.ActorID)
	if err != nil {
		return Outcome{}, svcErr.Backend("match.reciprocal", err)
	}
	if !reciprocal {
		return Outcome{}, nil
	}

	now := d.now()
	lo, hi := db.CanonicalPair(dec.ActorID, dec.SubjectID)
	m := &db.Match{
		ID:            ids.New(),
		UserA:         lo,
		UserB:         hi,
		Active:        true,
		CreatedAt:     now,
		LastMessageAt: now,
	}

	created, err := d.matches.InsertIfAbsent(ctx, m)
	if err != nil {
		return Outcome{}, svcErr.Backend("match.insert", err)
	}

	if !created {
		d.metrics.MatchConflict()
		existing, err := d.matches.GetActiveByPair(ctx, lo, hi)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// deactivated between the conflict and the read
			return Outcome{}, nil
		}
		if err != nil {
			return Outcome{}, svcErr.Backend("match.get_active", err)
		}
		d.log.Debug("match.conflict_absorbed", "match_id", existing.ID, "user_a", lo, "user_b", hi)
		return Outcome{Match: existing}, nil
	}

	d.metrics.MatchCreated()
	d.log.Info("match.created", "match_id", m.ID, "user_a", lo, "user_b", hi, "trigger", dec.ID)

	if d.notifier != nil {
		if err := d.notifier.NotifyMatch(ctx, m); err != nil {
			d.log.Warn("match.notify_failed", "match_id", m.ID, "err", err)
		}
	}
	return Outcome{Match: m, Created: true}, nil
}

// Get loads a match by id or returns ErrNotFound.
func (d *Detector) Get(ctx context.Context, matchID string) (*db.Match, error) {
	m, err := d.matches.Get(ctx, matchID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, svcErr.ErrNotFound
	}
	if err != nil {
		return nil, svcErr.Backend("match.get", err)
	}
	return m, nil
}

// ActiveBetween returns the active match of the pair, or nil.
func (d *Detector) ActiveBetween(ctx context.Context, x, y uint64) (*db.Match, error) {
	m, err := d.matches.GetActiveByPair(ctx, x, y)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, svcErr.Backend("match.get_active", err)
	}
	return m, nil
}

// FormedSince reports whether the pair got a match, active or not, at or
// after since.
func (d *Detector) FormedSince(ctx context.Context, x, y uint64, since time.Time) (bool, error) {
	rows, err := d.matches.ListByPair(ctx, x, y)
	if err != nil {
		return false, svcErr.Backend("match.list_pair", err)
	}
	for _, m := range rows {
		if !m.CreatedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

// ListActive returns userID's active matches.
func (d *Detector) ListActive(ctx context.Context, userID uint64) ([]db.Match, error) {
	rows, err := d.matches.ListActive(ctx, userID)
	return rows, svcErr.Backend("match.list_active", err)
}

// Deactivate moves the match to Inactive. Returns false if it already was.
// Live conversation feeds are told to close.
func (d *Detector) Deactivate(ctx context.Context, matchID, cause string) (bool, error) {
	changed, err := d.matches.Deactivate(ctx, matchID, d.now())
	if err != nil {
		return false, svcErr.Backend("match.deactivate", err)
	}
	if !changed {
		return false, nil
	}

	d.metrics.MatchDeactivated(cause)
	d.log.Info("match.deactivated", "match_id", matchID, "cause", cause)

	if d.bus != nil {
		payload, _ := events.ChatEvent{Type: events.ChatClosed, MatchID: matchID}.Encode()
		if err := d.bus.Publish(ctx, events.MatchTopic(matchID), payload); err != nil {
			d.log.Warn("match.publish_closed_failed", "match_id", matchID, "err", err)
		}
	}
	return true, nil
}

// Unmatch lets a participant end an active match.
func (d *Detector) Unmatch(ctx context.Context, matchID string, userID uint64) error {
	m, err := d.Get(ctx, matchID)
	if err != nil {
		return err
	}
	if !m.HasUser(userID) {
		return svcErr.ErrNotParticipant
	}
	if !m.Active {
		return svcErr.ErrInactiveMatch
	}
	changed, err := d.Deactivate(ctx, matchID, CauseUnmatch)
	if err != nil {
		return err
	}
	if !changed {
		// lost a race with another deactivation
		return svcErr.ErrInactiveMatch
	}
	return nil
}
