package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/muzz-match/internal/db"
)

// MatchRepository persists matches keyed by their canonical pair.
type MatchRepository struct {
	db *gorm.DB
}

// NewMatchRepository creates a new repository bound to the given DB connection.
func NewMatchRepository(database *gorm.DB) *MatchRepository {
	return &MatchRepository{db: database}
}

// InsertIfAbsent creates m unless an active match already holds its pair key.
//
// Behavior:
//   - The insert is conditional on ux_match_active_pair; a concurrent writer
//     that lost the race gets inserted=false and no error.
//   - m.PairKey must be set; Insert fills it from UserA/UserB when nil.
func (r *MatchRepository) InsertIfAbsent(ctx context.Context, m *db.Match) (bool, error) {
	if m.PairKey == nil {
		key := db.PairKeyFor(m.UserA, m.UserB)
		m.PairKey = &key
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(m)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Get loads a match by id, active or not.
func (r *MatchRepository) Get(ctx context.Context, id string) (*db.Match, error) {
	var m db.Match
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// GetActiveByPair returns the active match between x and y in either order.
// Returns gorm.ErrRecordNotFound when the pair is not matched.
func (r *MatchRepository) GetActiveByPair(ctx context.Context, x, y uint64) (*db.Match, error) {
	var m db.Match
	err := r.db.WithContext(ctx).
		Where("pair_key = ? AND active = ?", db.PairKeyFor(x, y), true).
		Take(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListByPair returns every match the pair ever had, active or not.
func (r *MatchRepository) ListByPair(ctx context.Context, x, y uint64) ([]db.Match, error) {
	lo, hi := db.CanonicalPair(x, y)
	var matches []db.Match
	err := r.db.WithContext(ctx).
		Where("user_a = ? AND user_b = ?", lo, hi).
		Find(&matches).Error
	return matches, err
}

// Deactivate soft-deletes an active match. Messages stay in place.
// Returns false when the match was already inactive (terminal state).
func (r *MatchRepository) Deactivate(ctx context.Context, id string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&db.Match{}).
		Where("id = ? AND active = ?", id, true).
		Updates(map[string]any{
			"active":         false,
			"pair_key":       gorm.Expr("NULL"),
			"deactivated_at": at,
		})
	return res.RowsAffected == 1, res.Error
}

// ListActive returns the user's active matches, newest activity first.
func (r *MatchRepository) ListActive(ctx context.Context, userID uint64) ([]db.Match, error) {
	var matches []db.Match
	err := r.db.WithContext(ctx).
		Where("(user_a = ? OR user_b = ?) AND active = ?", userID, userID, true).
		Order("last_message_at DESC, id DESC").
		Find(&matches).Error
	return matches, err
}
