package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/quotedesk/quotedesk/internal/catalog/domain"
)

type repository struct{}

func Provide() domain.Repository { return &repository{} }

func (r *repository) Insert(ctx context.Context, db *gorm.DB, item *domain.PriceMatrixItem) error {
	return db.WithContext(ctx).Create(item).Error
}

func (r *repository) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.PriceMatrixItem, error) {
	var item domain.PriceMatrixItem
	err := db.WithContext(ctx).
		Raw(`SELECT * FROM price_matrix_items WHERE org_id = ? AND id = ?`, orgID, id).
		Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, domain.ErrItemNotFound
	}
	return &item, nil
}

func (r *repository) ListByOrg(ctx context.Context, db *gorm.DB, orgID snowflake.ID, activeOnly bool) ([]*domain.PriceMatrixItem, error) {
	query := `SELECT * FROM price_matrix_items WHERE org_id = ?`
	if activeOnly {
		query += ` AND is_active`
	}
	query += ` ORDER BY sort_order ASC, created_at ASC`

	var items []*domain.PriceMatrixItem
	if err := db.WithContext(ctx).Raw(query, orgID).Scan(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) Update(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	fields["updated_at"] = time.Now().UTC()
	return db.WithContext(ctx).
		Model(&domain.PriceMatrixItem{}).
		Where("org_id = ? AND id = ?", orgID, id).
		Updates(fields).Error
}

func (r *repository) Delete(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) error {
	return db.WithContext(ctx).
		Exec(`DELETE FROM price_matrix_items WHERE org_id = ? AND id = ?`, orgID, id).Error
}

func (r *repository) ClearDependents(ctx context.Context, db *gorm.DB, orgID, parentID snowflake.ID) error {
	return db.WithContext(ctx).
		Exec(`
			UPDATE price_matrix_items
			SET depends_on_item_id = NULL, updated_at = ?
			WHERE org_id = ? AND depends_on_item_id = ?
		`, time.Now().UTC(), orgID, parentID).Error
}
