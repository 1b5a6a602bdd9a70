package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/quotedesk/quotedesk/internal/calendar/domain"
)

type repository struct{}

func Provide() domain.Repository { return &repository{} }

func (r *repository) Insert(ctx context.Context, db *gorm.DB, event *domain.Event) error {
	return db.WithContext(ctx).Create(event).Error
}

func (r *repository) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.Event, error) {
	var event domain.Event
	err := db.WithContext(ctx).
		Raw(`SELECT * FROM calendar_events WHERE org_id = ? AND id = ?`, orgID, id).
		Scan(&event).Error
	if err != nil {
		return nil, err
	}
	if event.ID == 0 {
		return nil, domain.ErrEventNotFound
	}
	return &event, nil
}

func (r *repository) ListRange(ctx context.Context, db *gorm.DB, orgID snowflake.ID, from, to time.Time) ([]*domain.Event, error) {
	var events []*domain.Event
	err := db.WithContext(ctx).
		Raw(`
			SELECT * FROM calendar_events
			WHERE org_id = ? AND start_time >= ? AND start_time < ?
			ORDER BY start_time ASC
		`, orgID, from, to).
		Scan(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (r *repository) Update(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	fields["updated_at"] = time.Now().UTC()
	return db.WithContext(ctx).
		Model(&domain.Event{}).
		Where("org_id = ? AND id = ?", orgID, id).
		Updates(fields).Error
}

func (r *repository) Delete(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) error {
	return db.WithContext(ctx).
		Exec(`DELETE FROM calendar_events WHERE org_id = ? AND id = ?`, orgID, id).Error
}

func (r *repository) FindByQuotation(ctx context.Context, db *gorm.DB, orgID, quotationID snowflake.ID, eventType string) (*domain.Event, error) {
	var event domain.Event
	err := db.WithContext(ctx).
		Raw(`
			SELECT * FROM calendar_events
			WHERE org_id = ? AND quotation_id = ? AND type = ?
			ORDER BY start_time ASC LIMIT 1
		`, orgID, quotationID, eventType).
		Scan(&event).Error
	if err != nil {
		return nil, err
	}
	if event.ID == 0 {
		return nil, domain.ErrEventNotFound
	}
	return &event, nil
}

func (r *repository) DeleteByQuotation(ctx context.Context, db *gorm.DB, orgID, quotationID snowflake.ID, eventType string) error {
	return db.WithContext(ctx).
		Exec(`DELETE FROM calendar_events WHERE org_id = ? AND quotation_id = ? AND type = ?`,
			orgID, quotationID, eventType).Error
}
