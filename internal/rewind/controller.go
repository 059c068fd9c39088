// Package rewind keeps the per-session undo stack of recent decisions.
package rewind

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/oggyb/muzz-match/internal/db"
	svcErr "github.com/oggyb/muzz-match/internal/errors"
	"github.com/oggyb/muzz-match/internal/match"
	"github.com/oggyb/muzz-match/internal/metrics"
)

// Unlimited is what Remaining reports for premium sessions.
const Unlimited = -1

// Ledger is the deletion side of the decision ledger.
type Ledger interface {
	Remove(ctx context.Context, actorID, subjectID uint64) (*db.Decision, error)
}

// Matches deactivates the match a rewound like was holding up.
type Matches interface {
	ActiveBetween(ctx context.Context, x, y uint64) (*db.Match, error)
	Deactivate(ctx context.Context, matchID, cause string) (bool, error)
}

// Entry is what Push captures: the decision, and the match it created if any.
type Entry struct {
	Decision db.Decision
	Match    *db.Match
}

// Result describes an applied rewind.
type Result struct {
	Decision db.Decision
	// Match is the match that was deactivated, nil if none.
	Match *db.Match
	// RestoredSubjectID goes back to the front of the candidate queue.
	RestoredSubjectID uint64
	Remaining         int
}

// Controller is one session's undo stack. LIFO, one level per call.
//
// Non-premium sessions have a budget; the stack never holds more entries
// than the budget, older ones fall off the bottom. Premium sessions keep
// everything.
type Controller struct {
	userID  uint64
	premium bool
	ledger  Ledger
	matches Matches
	log     *slog.Logger
	metrics *metrics.Metrics

	mu        sync.Mutex
	remaining int
	stack     []Entry
}

// NewController builds a controller for userID.
func NewController(userID uint64, premium bool, budget int, ledger Ledger, matches Matches, log *slog.Logger, m *metrics.Metrics) *Controller {
	if premium {
		budget = Unlimited
	} else if budget < 0 {
		budget = 0
	}
	return &Controller{
		userID:    userID,
		premium:   premium,
		ledger:    ledger,
		matches:   matches,
		log:       log.With("component", "rewind", "user", userID),
		metrics:   m,
		remaining: budget,
	}
}

// UserID is the session owner.
func (c *Controller) UserID() uint64 { return c.userID }

// Premium reports whether the session has an unlimited budget.
func (c *Controller) Premium() bool { return c.premium }

// Remaining returns the rewinds left, or Unlimited.
func (c *Controller) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// Depth returns how many entries are currently undoable.
func (c *Controller) Depth() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.stack)
}

// Available reports whether Rewind would find something to undo.
func (c *Controller) Available() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.availableLocked()
}

func (c *Controller) availableLocked() bool {
	return len(c.stack) > 0 && c.remaining != 0
}

// Push records a decision made in this session.
func (c *Controller) Push(dec db.Decision, created *db.Match) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stack = append(c.stack, Entry{Decision: dec, Match: created})
	if !c.premium && c.remaining >= 0 && len(c.stack) > c.remaining {
		c.stack = c.stack[len(c.stack)-c.remaining:]
	}
}

// Rewind undoes the most recent decision.
//
// Behavior:
//   - ErrNoRewindAvailable when the stack is empty or the budget is spent.
//   - The decision is removed first. For like/super_like the pair's active
//     match (whichever side created it) is then deactivated, so a match never
//     ends while the like that holds it up is still recorded. If either step
//     fails the entry stays on the stack and no budget is spent, so a manual
//     retry converges.
//   - A decision that is already gone counts as undone.
func (c *Controller) Rewind(ctx context.Context) (*Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.availableLocked() {
		c.metrics.Rewind("unavailable")
		return nil, svcErr.ErrNoRewindAvailable
	}
	top := c.stack[len(c.stack)-1]
	dec := top.Decision

	if _, err := c.ledger.Remove(ctx, dec.ActorID, dec.SubjectID); err != nil && !errors.Is(err, svcErr.ErrNotFound) {
		c.metrics.Rewind("failed")
		return nil, err
	}

	var deactivated *db.Match
	if dec.Kind.Positive() {
		m, err := c.matches.ActiveBetween(ctx, dec.ActorID, dec.SubjectID)
		if err != nil {
			c.metrics.Rewind("failed")
			return nil, err
		}
		if m != nil {
			changed, err := c.matches.Deactivate(ctx, m.ID, match.CauseRewind)
			if err != nil {
				c.metrics.Rewind("failed")
				return nil, err
			}
			if changed {
				m.Active = false
				deactivated = m
			}
		}
	}

	c.stack = c.stack[:len(c.stack)-1]
	if !c.premium {
		c.remaining--
	}
	c.metrics.Rewind("applied")
	c.log.Info("rewind.applied",
		"subject", dec.SubjectID,
		"kind", dec.Kind,
		"match_deactivated", deactivated != nil,
		"remaining", c.remaining,
	)

	return &Result{
		Decision:          dec,
		Match:             deactivated,
		RestoredSubjectID: dec.SubjectID,
		Remaining:         c.remaining,
	}, nil
}
