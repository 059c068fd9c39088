package db

import (
	"fmt"
	"time"
)

// User table. Profiles live in an external service; this row only exists for
// the seed data and for foreign-key style sanity in local setups.
type User struct {
	ID           uint64 `gorm:"primaryKey;autoIncrement"`
	Username     string `gorm:"uniqueIndex;size:64;not null"`
	Email        string `gorm:"uniqueIndex;size:128;not null"`
	PasswordHash string `gorm:"size:255;not null"`
	Active       bool   `gorm:"default:true"`
	Premium      bool   `gorm:"default:false"`
	LastLoginAt  time.Time
	Gender       string    `gorm:"size:16;not null"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

// DecisionKind is the direction of a swipe.
type DecisionKind string

const (
	KindPass      DecisionKind = "pass"
	KindLike      DecisionKind = "like"
	KindSuperLike DecisionKind = "super_like"
)

// Valid reports whether k is a known kind.
func (k DecisionKind) Valid() bool {
	switch k {
	case KindPass, KindLike, KindSuperLike:
		return true
	}
	return false
}

// Positive reports whether k signals interest (like or super_like).
func (k DecisionKind) Positive() bool {
	return k == KindLike || k == KindSuperLike
}

// Decision represents an actor's pass/like/super_like on a subject.
//
// Unique index: ux_decision_pair(actor_id, subject_id)
//   - At most one row per ordered pair. A re-decision requires the row to be
//     removed first (rewind); inserts never overwrite.
//
// Indexes:
//   - idx_subject_kind_created(subject_id, kind, created_at DESC)
//     Serves the "who liked me" lists with pagination.
type Decision struct {
	ID        string       `gorm:"primaryKey;size:36"`
	ActorID   uint64       `gorm:"not null;uniqueIndex:ux_decision_pair,priority:1"`
	SubjectID uint64       `gorm:"not null;uniqueIndex:ux_decision_pair,priority:2;index:idx_subject_kind_created,priority:1"`
	Kind      DecisionKind `gorm:"size:16;not null;index:idx_subject_kind_created,priority:2"`
	CreatedAt time.Time    `gorm:"autoCreateTime;index:idx_subject_kind_created,priority:3,sort:desc"`
}

// Match links two users after reciprocal positive decisions.
//
// UserA < UserB always (canonical order). PairKey is "A:B" while the match is
// active and NULL once it is deactivated; the unique index on it is what lets
// exactly one active match exist per pair while inactive history accumulates.
type Match struct {
	ID            string    `gorm:"primaryKey;size:36"`
	UserA         uint64    `gorm:"not null;index:idx_match_user_a"`
	UserB         uint64    `gorm:"not null;index:idx_match_user_b"`
	PairKey       *string   `gorm:"size:64;uniqueIndex:ux_match_active_pair"`
	Active        bool      `gorm:"not null"`
	LastSeq       int64     `gorm:"not null;default:0"`
	LastMessageAt time.Time `gorm:"not null"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
	DeactivatedAt *time.Time
}

// HasUser reports whether userID is one of the two participants.
func (m *Match) HasUser(userID uint64) bool {
	return m.UserA == userID || m.UserB == userID
}

// Other returns the participant that is not userID.
func (m *Match) Other(userID uint64) (uint64, bool) {
	switch userID {
	case m.UserA:
		return m.UserB, true
	case m.UserB:
		return m.UserA, true
	}
	return 0, false
}

// CanonicalPair orders two user ids so (a, b) and (b, a) map to one key.
func CanonicalPair(x, y uint64) (lo, hi uint64) {
	if x < y {
		return x, y
	}
	return y, x
}

// PairKeyFor returns the active-pair key for two users in any order.
func PairKeyFor(x, y uint64) string {
	lo, hi := CanonicalPair(x, y)
	return fmt.Sprintf("%d:%d", lo, hi)
}

// Message is one chat line inside a match.
//
// Seq is allocated per match under a row lock and CreatedAt is forced to be
// strictly greater than the previous message's, so both orderings agree.
type Message struct {
	ID        string     `gorm:"primaryKey;size:26"`
	MatchID   string     `gorm:"size:36;not null;uniqueIndex:ux_message_match_seq,priority:1"`
	Seq       int64      `gorm:"not null;uniqueIndex:ux_message_match_seq,priority:2"`
	SenderID  uint64     `gorm:"not null"`
	Content   string     `gorm:"type:text;not null"`
	CreatedAt time.Time  `gorm:"not null"`
	ReadAt    *time.Time `gorm:"index"`
}

// Presence is the single activity row per user.
type Presence struct {
	UserID       uint64    `gorm:"primaryKey"`
	LastActiveAt time.Time `gorm:"not null"`
}

// TableName keeps the table name stable ("presences" reads oddly).
func (Presence) TableName() string { return "presence" }

// NotificationKind enumerates inbox events.
type NotificationKind string

const (
	NotifyMatchFormed      NotificationKind = "match_formed"
	NotifyMessageReceived  NotificationKind = "message_received"
	NotifyDecisionReceived NotificationKind = "decision_received"
)

// Notification is an inbox row. Only the recipient mutates it (Read).
type Notification struct {
	ID          string           `gorm:"primaryKey;size:36"`
	RecipientID uint64           `gorm:"not null;index:idx_notification_recipient_created,priority:1;index:idx_notification_recipient_read,priority:1"`
	Kind        NotificationKind `gorm:"size:32;not null"`
	PayloadRef  string           `gorm:"size:64;not null"`
	Read        bool             `gorm:"column:is_read;not null;default:false;index:idx_notification_recipient_read,priority:2"`
	CreatedAt   time.Time        `gorm:"not null;index:idx_notification_recipient_created,priority:2,sort:desc"`
}

// All lists every model for AutoMigrate.
func All() []any {
	return []any{&User{}, &Decision{}, &Match{}, &Message{}, &Presence{}, &Notification{}}
}
