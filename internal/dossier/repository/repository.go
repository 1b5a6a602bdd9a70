package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/quotedesk/quotedesk/internal/dossier/domain"
)

type repository struct{}

func Provide() domain.Repository { return &repository{} }

// Insert uses ON CONFLICT DO NOTHING on quotation_id so a dossier is created
// at most once per quotation even under concurrent invoice sends.
func (r *repository) Insert(ctx context.Context, db *gorm.DB, dossier *domain.Dossier) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "quotation_id"}},
			DoNothing: true,
		}).
		Create(dossier).Error
}

func (r *repository) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.Dossier, error) {
	var dossier domain.Dossier
	err := db.WithContext(ctx).
		Raw(`SELECT * FROM dossiers WHERE org_id = ? AND id = ?`, orgID, id).
		Scan(&dossier).Error
	if err != nil {
		return nil, err
	}
	if dossier.ID == 0 {
		return nil, domain.ErrNotFound
	}
	return &dossier, nil
}

func (r *repository) FindByQuotation(ctx context.Context, db *gorm.DB, orgID, quotationID snowflake.ID) (*domain.Dossier, error) {
	var dossier domain.Dossier
	err := db.WithContext(ctx).
		Raw(`SELECT * FROM dossiers WHERE org_id = ? AND quotation_id = ?`, orgID, quotationID).
		Scan(&dossier).Error
	if err != nil {
		return nil, err
	}
	if dossier.ID == 0 {
		return nil, domain.ErrNotFound
	}
	return &dossier, nil
}

func (r *repository) ListByOrg(ctx context.Context, db *gorm.DB, orgID snowflake.ID, assignedTo *snowflake.ID) ([]*domain.Dossier, error) {
	var dossiers []*domain.Dossier
	query := db.WithContext(ctx)
	if assignedTo != nil {
		query = query.Raw(`
			SELECT d.* FROM dossiers d
			JOIN quotations q ON q.id = d.quotation_id
			WHERE d.org_id = ? AND q.assigned_employee_id = ?
			ORDER BY d.created_at DESC
		`, orgID, *assignedTo)
	} else {
		query = query.Raw(`SELECT * FROM dossiers WHERE org_id = ? ORDER BY created_at DESC`, orgID)
	}
	if err := query.Scan(&dossiers).Error; err != nil {
		return nil, err
	}
	return dossiers, nil
}

func (r *repository) ListByClient(ctx context.Context, db *gorm.DB, orgID, clientUserID snowflake.ID) ([]*domain.Dossier, error) {
	var dossiers []*domain.Dossier
	err := db.WithContext(ctx).
		Raw(`
			SELECT * FROM dossiers
			WHERE org_id = ? AND client_user_id = ?
			ORDER BY created_at DESC
		`, orgID, clientUserID).
		Scan(&dossiers).Error
	if err != nil {
		return nil, err
	}
	return dossiers, nil
}

func (r *repository) Update(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	fields["updated_at"] = time.Now().UTC()
	return db.WithContext(ctx).
		Model(&domain.Dossier{}).
		Where("org_id = ? AND id = ?", orgID, id).
		Updates(fields).Error
}

func (r *repository) Delete(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(`DELETE FROM dossier_messages WHERE org_id = ? AND dossier_id = ?`, orgID, id).Error; err != nil {
			return err
		}
		if err := tx.Exec(`DELETE FROM dossier_entries WHERE org_id = ? AND dossier_id = ?`, orgID, id).Error; err != nil {
			return err
		}
		return tx.Exec(`DELETE FROM dossiers WHERE org_id = ? AND id = ?`, orgID, id).Error
	})
}

func (r *repository) InsertEntry(ctx context.Context, db *gorm.DB, entry *domain.Entry) error {
	return db.WithContext(ctx).Create(entry).Error
}

func (r *repository) ListEntries(ctx context.Context, db *gorm.DB, orgID, dossierID snowflake.ID) ([]*domain.Entry, error) {
	var entries []*domain.Entry
	err := db.WithContext(ctx).
		Raw(`
			SELECT * FROM dossier_entries
			WHERE org_id = ? AND dossier_id = ?
			ORDER BY id ASC
		`, orgID, dossierID).
		Scan(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) DeleteEntry(ctx context.Context, db *gorm.DB, orgID, dossierID, entryID snowflake.ID) error {
	return db.WithContext(ctx).
		Exec(`DELETE FROM dossier_entries WHERE org_id = ? AND dossier_id = ? AND id = ?`,
			orgID, dossierID, entryID).Error
}

func (r *repository) InsertMessage(ctx context.Context, db *gorm.DB, message *domain.Message) error {
	return db.WithContext(ctx).Create(message).Error
}

func (r *repository) ListMessages(ctx context.Context, db *gorm.DB, orgID, dossierID snowflake.ID) ([]*domain.Message, error) {
	var messages []*domain.Message
	err := db.WithContext(ctx).
		Raw(`
			SELECT * FROM dossier_messages
			WHERE org_id = ? AND dossier_id = ?
			ORDER BY id ASC
		`, orgID, dossierID).
		Scan(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *repository) MarkMessagesRead(ctx context.Context, db *gorm.DB, orgID, dossierID snowflake.ID, senderType string) (int64, error) {
	res := db.WithContext(ctx).
		Exec(`
			UPDATE dossier_messages
			SET read_at = ?
			WHERE org_id = ? AND dossier_id = ? AND sender_type = ? AND read_at IS NULL
		`, time.Now().UTC(), orgID, dossierID, senderType)
	return res.RowsAffected, res.Error
}

func (r *repository) CountUnread(ctx context.Context, db *gorm.DB, orgID, dossierID snowflake.ID, senderType string) (int64, error) {
	var count int64
	err := db.WithContext(ctx).
		Raw(`
			SELECT COUNT(1) FROM dossier_messages
			WHERE org_id = ? AND dossier_id = ? AND sender_type = ? AND read_at IS NULL
		`, orgID, dossierID, senderType).
		Scan(&count).Error
	return count, err
}
