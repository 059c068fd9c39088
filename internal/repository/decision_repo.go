package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/muzz-match/internal/db"
	"github.com/oggyb/muzz-match/internal/utils/pagination"
)

var positiveKinds = []db.DecisionKind{db.KindLike, db.KindSuperLike}

// DecisionRepository provides data access methods for the Decision model.
// It encapsulates all queries related to swipes between users.
type DecisionRepository struct {
	db *gorm.DB
}

// NewDecisionRepository creates a new repository bound to the given DB connection.
func NewDecisionRepository(database *gorm.DB) *DecisionRepository {
	return &DecisionRepository{db: database}
}

// Insert writes a new decision unless one already exists for the pair.
//
// Behavior:
//   - Never overwrites: a conflict on ux_decision_pair leaves the old row.
//   - Returns inserted=false when the unique index absorbed the write; this is
//     the race-proof half of duplicate detection (the caller checks first).
//
// Example:
//
//	ok, err := repo.Insert(ctx, &db.Decision{ID: id, ActorID: 1, SubjectID: 2, Kind: db.KindLike})
func (r *DecisionRepository) Insert(ctx context.Context, d *db.Decision) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(d)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Get returns the decision actor made on subject.
// Returns gorm.ErrRecordNotFound when there is none.
func (r *DecisionRepository) Get(ctx context.Context, actorID, subjectID uint64) (*db.Decision, error) {
	var d db.Decision
	err := r.db.WithContext(ctx).
		Where("actor_id = ? AND subject_id = ?", actorID, subjectID).
		Take(&d).Error
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Exists checks whether actor already decided on subject, whatever the kind.
func (r *DecisionRepository) Exists(ctx context.Context, actorID, subjectID uint64) (bool, error) {
	_, err := r.Get(ctx, actorID, subjectID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Delete removes the decision for the pair. Returns whether a row was removed.
func (r *DecisionRepository) Delete(ctx context.Context, actorID, subjectID uint64) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("actor_id = ? AND subject_id = ?", actorID, subjectID).
		Delete(&db.Decision{})
	return res.RowsAffected > 0, res.Error
}

// HasPositive checks whether actor liked or super-liked subject.
//
// Used by match detection to look for the reciprocal decision.
//
// Example:
//
//	repo.HasPositive(ctx, 2, 1) // -> true if user 2 liked user 1
func (r *DecisionRepository) HasPositive(ctx context.Context, actorID, subjectID uint64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Decision{}).
		Where("actor_id = ? AND subject_id = ? AND kind IN ?", actorID, subjectID, positiveKinds).
		Count(&count).Error
	return count > 0, err
}

// DecidedAmong returns which of candidates actor already decided on.
func (r *DecisionRepository) DecidedAmong(ctx context.Context, actorID uint64, candidates []uint64) ([]uint64, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	var ids []uint64
	err := r.db.WithContext(ctx).
		Model(&db.Decision{}).
		Where("actor_id = ? AND subject_id IN ?", actorID, candidates).
		Pluck("subject_id", &ids).Error
	return ids, err
}

// GetLikers returns positive decisions received by subject.
//
// Behavior:
//   - Only like/super_like decisions where subject_id = X are returned.
//   - Excludes actors the subject explicitly passed.
//   - Ordered by created_at DESC, id DESC.
//   - Supports cursor-based pagination via paginationToken.
//
// Example:
//
//	repo.GetLikers(ctx, 42, nil, 20) // first 20 people who liked user 42
func (r *DecisionRepository) GetLikers(
	ctx context.Context,
	subjectID uint64,
	paginationToken *string,
	limit int,
) ([]db.Decision, *string, error) {
	return r.listLikers(ctx, subjectID, paginationToken, limit, false)
}

// GetNewLikers is GetLikers minus the actors subject already liked back,
// i.e. the one-way likes still waiting for an answer.
func (r *DecisionRepository) GetNewLikers(
	ctx context.Context,
	subjectID uint64,
	paginationToken *string,
	limit int,
) ([]db.Decision, *string, error) {
	return r.listLikers(ctx, subjectID, paginationToken, limit, true)
}

func (r *DecisionRepository) listLikers(
	ctx context.Context,
	subjectID uint64,
	paginationToken *string,
	limit int,
	onlyUnanswered bool,
) ([]db.Decision, *string, error) {
	cursor, err := pagination.Decode(getString(paginationToken))
	if err != nil {
		return nil, nil, err
	}

	query := r.likersQuery(ctx, subjectID)
	if onlyUnanswered {
		// subquery to exclude mutual likes
		mutual := r.db.
			Table("decisions").
			Select("1").
			Where("actor_id = d.subject_id AND subject_id = d.actor_id AND kind IN ?", positiveKinds)
		query = query.Where("NOT EXISTS (?)", mutual)
	}

	// apply cursor
	if !cursor.IsZero() {
		ts := cursor.CreatedAt()
		query = query.Where(
			"(d.created_at < ? OR (d.created_at = ? AND d.id < ?))",
			ts, ts, cursor.ID,
		)
	}

	var decisions []db.Decision
	err = query.
		Order("d.created_at DESC, d.id DESC").
		Limit(limit + 1).
		Find(&decisions).Error
	if err != nil {
		return nil, nil, err
	}

	page, next := pagination.Next(decisions, limit, func(d db.Decision) pagination.Cursor {
		return pagination.Cursor{ID: d.ID, CreatedUnix: d.CreatedAt.UnixMilli()}
	})
	return page, next, nil
}

// CountLikers returns how many users liked the given subject.
//
// Behavior:
//   - Same filter as GetLikers.
//   - Used in conjunction with Redis cache (DB is fallback).
func (r *DecisionRepository) CountLikers(ctx context.Context, subjectID uint64) (int64, error) {
	var count int64
	err := r.likersQuery(ctx, subjectID).Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *DecisionRepository) likersQuery(ctx context.Context, subjectID uint64) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("decisions d").
		Where("d.subject_id = ? AND d.kind IN ?", subjectID, positiveKinds).
		Where(`
			NOT EXISTS (
				SELECT 1 FROM decisions d2
				WHERE d2.actor_id = ?
				  AND d2.subject_id = d.actor_id
				  AND d2.kind = ?
			)`, subjectID, db.KindPass)
}

// getString safely dereferences a string pointer for pagination tokens.
func getString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
