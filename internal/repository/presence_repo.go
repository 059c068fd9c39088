package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/muzz-match/internal/db"
)

// PresenceRepository keeps one last-activity row per user.
type PresenceRepository struct {
	db *gorm.DB
}

// NewPresenceRepository creates a new repository bound to the given DB connection.
func NewPresenceRepository(database *gorm.DB) *PresenceRepository {
	return &PresenceRepository{db: database}
}

// Touch upserts last_active_at for userID.
func (r *PresenceRepository) Touch(ctx context.Context, userID uint64, at time.Time) error {
	row := db.Presence{UserID: userID, LastActiveAt: at}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"last_active_at"}),
		}).
		Create(&row).Error
}

// Get returns the user's presence row or gorm.ErrRecordNotFound.
func (r *PresenceRepository) Get(ctx context.Context, userID uint64) (*db.Presence, error) {
	var p db.Presence
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Take(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// GetMany returns presence rows for the given users; unknown users are absent.
func (r *PresenceRepository) GetMany(ctx context.Context, userIDs []uint64) ([]db.Presence, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	var rows []db.Presence
	err := r.db.WithContext(ctx).Where("user_id IN ?", userIDs).Find(&rows).Error
	return rows, err
}
