package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/oggyb/muzz-match/internal/db"
	"github.com/oggyb/muzz-match/internal/utils/pagination"
)

// NotificationRepository is the inbox store.
type NotificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository creates a new repository bound to the given DB connection.
func NewNotificationRepository(database *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: database}
}

// Create inserts one notification row.
func (r *NotificationRepository) Create(ctx context.Context, n *db.Notification) error {
	return r.db.WithContext(ctx).Create(n).Error
}

// List returns the recipient's notifications, newest first, with cursor
// pagination identical to the liked-you lists.
func (r *NotificationRepository) List(
	ctx context.Context,
	recipientID uint64,
	paginationToken *string,
	limit int,
) ([]db.Notification, *string, error) {
	cursor, err := pagination.Decode(getString(paginationToken))
	if err != nil {
		return nil, nil, err
	}

	query := r.db.WithContext(ctx).Where("recipient_id = ?", recipientID)
	if !cursor.IsZero() {
		ts := cursor.CreatedAt()
		query = query.Where("(created_at < ? OR (created_at = ? AND id < ?))", ts, ts, cursor.ID)
	}

	var rows []db.Notification
	if err := query.Order("created_at DESC, id DESC").Limit(limit + 1).Find(&rows).Error; err != nil {
		return nil, nil, err
	}

	page, next := pagination.Next(rows, limit, func(n db.Notification) pagination.Cursor {
		return pagination.Cursor{ID: n.ID, CreatedUnix: n.CreatedAt.UnixMilli()}
	})
	return page, next, nil
}

// MarkRead flags one notification as read for its recipient.
// Returns gorm.ErrRecordNotFound if the id does not belong to recipient.
func (r *NotificationRepository) MarkRead(ctx context.Context, recipientID uint64, id string) error {
	var n db.Notification
	err := r.db.WithContext(ctx).
		Where("id = ? AND recipient_id = ?", id, recipientID).
		Take(&n).Error
	if err != nil {
		return err
	}
	if n.Read {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&db.Notification{}).
		Where("id = ?", id).
		Update("is_read", true).Error
}

// MarkAllRead flags every unread notification of recipient. Returns how many
// rows changed.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, recipientID uint64) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&db.Notification{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Update("is_read", true)
	return res.RowsAffected, res.Error
}

// UnreadCount returns the recipient's unread badge count.
func (r *NotificationRepository) UnreadCount(ctx context.Context, recipientID uint64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Notification{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Count(&count).Error
	return count, err
}

// CountByKind is used by tests and the seed tool to inspect an inbox.
func (r *NotificationRepository) CountByKind(ctx context.Context, recipientID uint64, kind db.NotificationKind) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Notification{}).
		Where("recipient_id = ? AND kind = ?", recipientID, kind).
		Count(&count).Error
	return count, err
}
