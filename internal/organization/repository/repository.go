package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/quotedesk/quotedesk/internal/organization/domain"
)

type repository struct{}

func Provide() domain.Repository { return &repository{} }

func (r *repository) Insert(ctx context.Context, db *gorm.DB, org *domain.Organization) error {
	return db.WithContext(ctx).Create(org).Error
}

func (r *repository) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Organization, error) {
	var org domain.Organization
	err := db.WithContext(ctx).
		Raw(`SELECT * FROM organizations WHERE id = ?`, id).
		Scan(&org).Error
	if err != nil {
		return nil, err
	}
	if org.ID == 0 {
		return nil, domain.ErrNotFound
	}
	return &org, nil
}

func (r *repository) FindBySlug(ctx context.Context, db *gorm.DB, slug string) (*domain.Organization, error) {
	var org domain.Organization
	err := db.WithContext(ctx).
		Raw(`SELECT * FROM organizations WHERE slug = ?`, slug).
		Scan(&org).Error
	if err != nil {
		return nil, err
	}
	if org.ID == 0 {
		return nil, domain.ErrNotFound
	}
	return &org, nil
}

func (r *repository) Update(ctx context.Context, db *gorm.DB, id snowflake.ID, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	fields["updated_at"] = time.Now().UTC()
	return db.WithContext(ctx).
		Model(&domain.Organization{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (r *repository) AllocateInvoiceCounter(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error) {
	var counter int64
	err := db.WithContext(ctx).
		Raw(`
			UPDATE organizations
			SET invoice_counter = invoice_counter + 1,
			    updated_at = ?
			WHERE id = ?
			RETURNING invoice_counter
		`, time.Now().UTC(), id).
		Scan(&counter).Error
	if err != nil {
		return 0, err
	}
	if counter == 0 {
		return 0, domain.ErrNotFound
	}
	return counter, nil
}

func (r *repository) CountStaff(ctx context.Context, db *gorm.DB, id snowflake.ID) (int, error) {
	var count int64
	err := db.WithContext(ctx).
		Raw(`SELECT COUNT(1) FROM users WHERE org_id = ? AND is_active`, id).
		Scan(&count).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, err
	}
	return int(count), nil
}
