package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/quotedesk/quotedesk/internal/quotation/domain"
	"github.com/quotedesk/quotedesk/pkg/db/pagination"
)

type repository struct{}

func Provide() domain.Repository { return &repository{} }

func (r *repository) Insert(ctx context.Context, db *gorm.DB, q *domain.Quotation) error {
	return db.WithContext(ctx).Create(q).Error
}

func (r *repository) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.Quotation, error) {
	var q domain.Quotation
	err := db.WithContext(ctx).
		Raw(`SELECT * FROM quotations WHERE org_id = ? AND id = ?`, orgID, id).
		Scan(&q).Error
	if err != nil {
		return nil, err
	}
	if q.ID == 0 {
		return nil, domain.ErrNotFound
	}
	return &q, nil
}

func (r *repository) FindByToken(ctx context.Context, db *gorm.DB, token string) (*domain.Quotation, error) {
	var q domain.Quotation
	err := db.WithContext(ctx).
		Raw(`SELECT * FROM quotations WHERE token = ?`, token).
		Scan(&q).Error
	if err != nil {
		return nil, err
	}
	if q.ID == 0 {
		return nil, domain.ErrTokenNotFound
	}
	return &q, nil
}

func (r *repository) List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter domain.ListFilter, page pagination.Pagination) ([]*domain.Quotation, error) {
	query := `SELECT * FROM quotations WHERE org_id = ?`
	args := []any{orgID}

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	if filter.AssignedEmployeeID != nil {
		query += ` AND assigned_employee_id = ?`
		args = append(args, *filter.AssignedEmployeeID)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		query += ` AND (LOWER(customer_name) LIKE ? OR LOWER(customer_email) LIKE ? OR LOWER(invoice_number) LIKE ?)`
		like := "%" + strings.ToLower(search) + "%"
		args = append(args, like, like, like)
	}

	if page.PageToken != "" {
		cursor, err := pagination.DecodeCursor(page.PageToken)
		if err != nil {
			return nil, err
		}
		query += ` AND id < ?`
		args = append(args, cursor.ID)
	}

	limit := page.PageSize
	if limit <= 0 || limit > 100 {
		limit = 25
	}
	query += fmt.Sprintf(` ORDER BY id DESC LIMIT %d`, limit+1)

	var quotations []*domain.Quotation
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&quotations).Error; err != nil {
		return nil, err
	}
	return quotations, nil
}

func (r *repository) UpdateFields(ctx context.Context, db *gorm.DB, id snowflake.ID, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	fields["updated_at"] = time.Now().UTC()
	return db.WithContext(ctx).
		Model(&domain.Quotation{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (r *repository) TransitionStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from []domain.Status, to domain.Status, extra map[string]any) (bool, error) {
	fields := map[string]any{
		"status":     to,
		"updated_at": time.Now().UTC(),
	}
	for k, v := range extra {
		fields[k] = v
	}

	res := db.WithContext(ctx).
		Model(&domain.Quotation{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(fields)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) InsertItems(ctx context.Context, db *gorm.DB, items []*domain.QuoteItem) error {
	if len(items) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(items).Error
}

func (r *repository) ListItems(ctx context.Context, db *gorm.DB, quotationID snowflake.ID) ([]*domain.QuoteItem, error) {
	var items []*domain.QuoteItem
	err := db.WithContext(ctx).
		Raw(`SELECT * FROM quote_items WHERE quotation_id = ? ORDER BY sort_order ASC, id ASC`, quotationID).
		Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) DeleteItems(ctx context.Context, db *gorm.DB, quotationID snowflake.ID) error {
	return db.WithContext(ctx).
		Exec(`DELETE FROM quote_items WHERE quotation_id = ?`, quotationID).Error
}

func (r *repository) UpdateItemSelection(ctx context.Context, db *gorm.DB, quotationID, itemID snowflake.ID, selected bool, total decimal.Decimal) error {
	return db.WithContext(ctx).
		Exec(`
			UPDATE quote_items
			SET is_selected = ?, total = ?
			WHERE quotation_id = ? AND id = ?
		`, selected, total, quotationID, itemID).Error
}

func (r *repository) AppendAudit(ctx context.Context, db *gorm.DB, entry *domain.AuditLog) error {
	return db.WithContext(ctx).Create(entry).Error
}

func (r *repository) ListAudit(ctx context.Context, db *gorm.DB, orgID, quotationID snowflake.ID) ([]*domain.AuditLog, error) {
	var entries []*domain.AuditLog
	err := db.WithContext(ctx).
		Raw(`
			SELECT * FROM quotation_audit_logs
			WHERE org_id = ? AND quotation_id = ?
			ORDER BY id ASC
		`, orgID, quotationID).
		Scan(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
