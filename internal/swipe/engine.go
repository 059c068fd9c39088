// Package swipe runs one user action end to end: record the decision,
// detect a match, and make the pair undoable.
package swipe

import (
	"context"
	"errors"
	"log/slog"

	"github.com/oggyb/muzz-match/internal/db"
	svcErr "github.com/oggyb/muzz-match/internal/errors"
	"github.com/oggyb/muzz-match/internal/ledger"
	"github.com/oggyb/muzz-match/internal/match"
	"github.com/oggyb/muzz-match/internal/rewind"
)

// Toucher records user activity.
type Toucher interface {
	Touch(ctx context.Context, userID uint64) error
}

// Result is the typed outcome of a swipe.
type Result struct {
	Decision *db.Decision
	// Match is the pair's active match after this swipe, nil if none.
	Match *db.Match
	// MatchCreated is true only when this swipe formed the match.
	MatchCreated bool
}

// Engine composes the ledger, the detector and a session's rewind stack.
type Engine struct {
	ledger   *ledger.Ledger
	detector *match.Detector
	presence Toucher
	log      *slog.Logger
}

// NewEngine wires an Engine. presence may be nil.
func NewEngine(l *ledger.Ledger, d *match.Detector, presence Toucher, log *slog.Logger) *Engine {
	return &Engine{
		ledger:   l,
		detector: d,
		presence: presence,
		log:      log.With("component", "swipe"),
	}
}

// Swipe records session's owner deciding kind on subjectID.
//
// Behavior:
//   - Typed failures from the ledger (duplicate, self, bad kind) pass through.
//   - On a duplicate positive decision, detection runs once more, so a match
//     missed by an earlier failed attempt still forms. It does not run when
//     the pair already got a match after both decisions were made: that
//     match was ended on purpose and only a new decision may form another.
//     The caller still gets ErrDuplicateDecision and advances.
//   - If detection fails the decision stays recorded and undoable; the error
//     is returned as transient and a manual retry converges through the
//     duplicate path above.
func (e *Engine) Swipe(ctx context.Context, session *rewind.Controller, subjectID uint64, kind db.DecisionKind) (*Result, error) {
	actorID := session.UserID()
	e.touch(ctx, actorID)

	dec, err := e.ledger.Record(ctx, actorID, subjectID, kind)
	if errors.Is(err, svcErr.ErrDuplicateDecision) {
		e.heal(ctx, actorID, subjectID)
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	out, err := e.detector.OnDecision(ctx, dec)
	if err != nil {
		session.Push(*dec, nil)
		e.log.Warn("swipe.detect_failed", "actor", actorID, "subject", subjectID, "err", err)
		return &Result{Decision: dec}, err
	}

	var created *db.Match
	if out.Created {
		created = out.Match
	}
	session.Push(*dec, created)

	return &Result{Decision: dec, Match: out.Match, MatchCreated: out.Created}, nil
}

// Rewind undoes the session's most recent swipe.
func (e *Engine) Rewind(ctx context.Context, session *rewind.Controller) (*rewind.Result, error) {
	e.touch(ctx, session.UserID())
	return session.Rewind(ctx)
}

// Candidates drops the ones actorID already decided on, keeping order.
func (e *Engine) Candidates(ctx context.Context, actorID uint64, candidates []uint64) ([]uint64, error) {
	return e.ledger.Undecided(ctx, actorID, candidates)
}

func (e *Engine) heal(ctx context.Context, actorID, subjectID uint64) {
	dec, err := e.ledger.Get(ctx, actorID, subjectID)
	if err != nil || !dec.Kind.Positive() {
		return
	}
	other, err := e.ledger.Get(ctx, subjectID, actorID)
	if err != nil || !other.Kind.Positive() {
		return
	}

	since := dec.CreatedAt
	if other.CreatedAt.After(since) {
		since = other.CreatedAt
	}
	formed, err := e.detector.FormedSince(ctx, actorID, subjectID, since)
	if err != nil {
		e.log.Warn("swipe.heal_failed", "actor", actorID, "subject", subjectID, "err", err)
		return
	}
	if formed {
		return
	}

	out, err := e.detector.OnDecision(ctx, dec)
	if err != nil {
		e.log.Warn("swipe.heal_failed", "actor", actorID, "subject", subjectID, "err", err)
		return
	}
	if out.Created {
		e.log.Info("swipe.match_healed", "match_id", out.Match.ID)
	}
}

func (e *Engine) touch(ctx context.Context, userID uint64) {
	if e.presence == nil {
		return
	}
	if err := e.presence.Touch(ctx, userID); err != nil {
		e.log.Warn("swipe.touch_failed", "user", userID, "err", err)
	}
}
