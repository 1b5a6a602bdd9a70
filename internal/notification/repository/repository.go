package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/quotedesk/quotedesk/internal/notification/domain"
)

type repository struct{}

func Provide() domain.Repository { return &repository{} }

func (r *repository) Insert(ctx context.Context, db *gorm.DB, n *domain.Notification) error {
	return db.WithContext(ctx).Create(n).Error
}

func (r *repository) ListByOrg(ctx context.Context, db *gorm.DB, orgID snowflake.ID, limit int) ([]*domain.Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var notifications []*domain.Notification
	err := db.WithContext(ctx).
		Raw(`SELECT * FROM notifications WHERE org_id = ? ORDER BY id DESC LIMIT ?`, orgID, limit).
		Scan(&notifications).Error
	if err != nil {
		return nil, err
	}
	return notifications, nil
}

func (r *repository) CountUnread(ctx context.Context, db *gorm.DB, orgID snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).
		Raw(`SELECT COUNT(1) FROM notifications WHERE org_id = ? AND read_at IS NULL`, orgID).
		Scan(&count).Error
	return count, err
}

func (r *repository) MarkRead(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) error {
	return db.WithContext(ctx).
		Exec(`UPDATE notifications SET read_at = ? WHERE org_id = ? AND id = ? AND read_at IS NULL`,
			time.Now().UTC(), orgID, id).Error
}

func (r *repository) MarkAllRead(ctx context.Context, db *gorm.DB, orgID snowflake.ID) (int64, error) {
	res := db.WithContext(ctx).
		Exec(`UPDATE notifications SET read_at = ? WHERE org_id = ? AND read_at IS NULL`,
			time.Now().UTC(), orgID)
	return res.RowsAffected, res.Error
}
