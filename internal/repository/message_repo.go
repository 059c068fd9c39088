package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/muzz-match/internal/db"
)

// MessageRepository stores the ordered per-match message log.
type MessageRepository struct {
	db *gorm.DB
}

// NewMessageRepository creates a new repository bound to the given DB connection.
func NewMessageRepository(database *gorm.DB) *MessageRepository {
	return &MessageRepository{db: database}
}

// Append inserts the message returned by build under a lock on the match row.
//
// Behavior:
//   - The match row is locked (SELECT ... FOR UPDATE on MySQL) so appends to
//     one match serialize; different matches do not contend.
//   - build sees the locked match and may reject it (inactive, not a
//     participant); its error is returned untouched.
//   - Seq = match.LastSeq + 1.
//   - CreatedAt is bumped to LastMessageAt + 1ms when the clock did not move
//     forward, so created_at is strictly increasing within a match.
func (r *MessageRepository) Append(
	ctx context.Context,
	matchID string,
	build func(m *db.Match) (*db.Message, error),
) (*db.Message, error) {
	var out *db.Message
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m db.Match
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", matchID).
			Take(&m).Error; err != nil {
			return err
		}

		msg, err := build(&m)
		if err != nil {
			return err
		}

		msg.MatchID = m.ID
		msg.Seq = m.LastSeq + 1
		if !msg.CreatedAt.After(m.LastMessageAt) {
			msg.CreatedAt = m.LastMessageAt.Add(time.Millisecond)
		}

		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		if err := tx.Model(&db.Match{}).
			Where("id = ?", m.ID).
			Updates(map[string]any{"last_seq": msg.Seq, "last_message_at": msg.CreatedAt}).Error; err != nil {
			return err
		}
		out = msg
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// After returns up to limit messages with seq > afterSeq, ascending.
// hasMore reports whether more rows follow the returned window.
func (r *MessageRepository) After(
	ctx context.Context,
	matchID string,
	afterSeq int64,
	limit int,
) ([]db.Message, bool, error) {
	var msgs []db.Message
	err := r.db.WithContext(ctx).
		Where("match_id = ? AND seq > ?", matchID, afterSeq).
		Order("seq ASC").
		Limit(limit + 1).
		Find(&msgs).Error
	if err != nil {
		return nil, false, err
	}
	if len(msgs) > limit {
		return msgs[:limit], true, nil
	}
	return msgs, false, nil
}

// MarkRead stamps read_at on the given messages for readerID.
//
// Behavior:
//   - Skips messages the reader sent and messages already read.
//   - Only touches messages of active matches the reader participates in.
//   - read_at = max(now, created_at + 1ms), so it always follows created_at.
//   - Returns only the rows this call changed; re-marking returns nothing.
func (r *MessageRepository) MarkRead(
	ctx context.Context,
	ids []string,
	readerID uint64,
	now time.Time,
) ([]db.Message, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var changed []db.Message
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		participant := tx.Model(&db.Match{}).
			Select("id").
			Where("(user_a = ? OR user_b = ?) AND active = ?", readerID, readerID, true)

		var candidates []db.Message
		if err := tx.
			Where("id IN ? AND sender_id <> ? AND read_at IS NULL AND match_id IN (?)", ids, readerID, participant).
			Order("match_id, seq").
			Find(&candidates).Error; err != nil {
			return err
		}

		for _, m := range candidates {
			readAt := now
			if !readAt.After(m.CreatedAt) {
				readAt = m.CreatedAt.Add(time.Millisecond)
			}
			res := tx.Model(&db.Message{}).
				Where("id = ? AND read_at IS NULL", m.ID).
				Update("read_at", readAt)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 1 {
				m.ReadAt = &readAt
				changed = append(changed, m)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return changed, nil
}

// UnreadFor returns ids of messages in matchID that readerID has not read,
// excluding readerID's own, up to and including upToSeq (0 means all).
func (r *MessageRepository) UnreadFor(
	ctx context.Context,
	matchID string,
	readerID uint64,
	upToSeq int64,
) ([]string, error) {
	query := r.db.WithContext(ctx).
		Model(&db.Message{}).
		Where("match_id = ? AND sender_id <> ? AND read_at IS NULL", matchID, readerID)
	if upToSeq > 0 {
		query = query.Where("seq <= ?", upToSeq)
	}
	var ids []string
	err := query.Order("seq ASC").Pluck("id", &ids).Error
	return ids, err
}
