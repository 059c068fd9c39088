package errors

import (
	"errors"
	"fmt"
)

// Domain outcomes. Callers branch on these with errors.Is; each one asks the
// UI for a different reaction, so none of them are collapsed into a generic
// failure.
var (
	// ErrDuplicateDecision: the actor already decided on this subject.
	// Advance to the next candidate.
	ErrDuplicateDecision = errors.New("decision already recorded for this pair")

	// ErrInactiveMatch: the match was unmatched or rewound. Route to a
	// "no longer matched" state; do not retry.
	ErrInactiveMatch = errors.New("match is no longer active")

	// ErrNoRewindAvailable: the session has nothing left to undo.
	ErrNoRewindAvailable = errors.New("no rewind available")

	// ErrTransientBackend: storage or feed hiccup; safe to retry by hand.
	ErrTransientBackend = errors.New("temporary backend failure")

	ErrSelfDecision   = errors.New("cannot decide on yourself")
	ErrInvalidKind    = errors.New("unknown decision kind")
	ErrNotParticipant = errors.New("user is not a participant of this match")
	ErrNotFound       = errors.New("not found")
	ErrEmptyMessage   = errors.New("message content is empty")
)

// BackendError wraps a storage or event-bus failure. It matches both
// ErrTransientBackend and the underlying cause under errors.Is, so callers can
// still tell a canceled context from a dropped connection.
type BackendError struct {
	Op  string
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *BackendError) Unwrap() []error {
	return []error{ErrTransientBackend, e.Err}
}

// Backend wraps err as a BackendError unless it is nil or already carries a
// domain outcome.
func Backend(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsDomain(err) || errors.Is(err, ErrTransientBackend) {
		return err
	}
	return &BackendError{Op: op, Err: err}
}

// IsDomain reports whether err is one of the expected, typed outcomes.
func IsDomain(err error) bool {
	for _, target := range []error{
		ErrDuplicateDecision,
		ErrInactiveMatch,
		ErrNoRewindAvailable,
		ErrSelfDecision,
		ErrInvalidKind,
		ErrNotParticipant,
		ErrNotFound,
		ErrEmptyMessage,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
