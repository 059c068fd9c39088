// Package ids generates row identifiers.
package ids

import (
	"crypto/rand"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// New returns a random UUID string for decisions, matches, notifications and
// sessions.
func New() string {
	return uuid.NewString()
}

// NewULID returns a ULID string (26 chars). Message ids use it so that ids
// sort the same way as the log when eyeballing rows.
func NewULID(now time.Time) string {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	return ulid.MustNew(ulid.Timestamp(now), rand.Reader).String()
}
