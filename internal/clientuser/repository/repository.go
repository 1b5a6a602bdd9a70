package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/quotedesk/quotedesk/internal/clientuser/domain"
)

type repository struct{}

func Provide() domain.Repository { return &repository{} }

// Insert uses ON CONFLICT DO NOTHING on (org_id, email) so concurrent
// idempotent creates do not error. Callers re-read to learn which row won.
func (r *repository) Insert(ctx context.Context, db *gorm.DB, user *domain.ClientUser) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "org_id"}, {Name: "email"}},
			DoNothing: true,
		}).
		Create(user).Error
}

func (r *repository) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.ClientUser, error) {
	var user domain.ClientUser
	err := db.WithContext(ctx).
		Raw(`SELECT * FROM client_users WHERE org_id = ? AND id = ?`, orgID, id).
		Scan(&user).Error
	if err != nil {
		return nil, err
	}
	if user.ID == 0 {
		return nil, domain.ErrNotFound
	}
	return &user, nil
}

func (r *repository) FindByEmail(ctx context.Context, db *gorm.DB, orgID snowflake.ID, email string) (*domain.ClientUser, error) {
	var user domain.ClientUser
	err := db.WithContext(ctx).
		Raw(`SELECT * FROM client_users WHERE org_id = ? AND email = ?`, orgID, email).
		Scan(&user).Error
	if err != nil {
		return nil, err
	}
	if user.ID == 0 {
		return nil, domain.ErrNotFound
	}
	return &user, nil
}

func (r *repository) ListByOrg(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]*domain.ClientUser, error) {
	var users []*domain.ClientUser
	err := db.WithContext(ctx).
		Raw(`SELECT * FROM client_users WHERE org_id = ? ORDER BY created_at DESC`, orgID).
		Scan(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (r *repository) Update(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	fields["updated_at"] = time.Now().UTC()
	return db.WithContext(ctx).
		Model(&domain.ClientUser{}).
		Where("org_id = ? AND id = ?", orgID, id).
		Updates(fields).Error
}

func (r *repository) InsertSession(ctx context.Context, db *gorm.DB, session *domain.ClientSession) error {
	return db.WithContext(ctx).Create(session).Error
}

func (r *repository) FindSessionByTokenHash(ctx context.Context, db *gorm.DB, tokenHash string) (*domain.ClientSession, error) {
	var session domain.ClientSession
	err := db.WithContext(ctx).
		Raw(`SELECT * FROM client_sessions WHERE token_hash = ?`, tokenHash).
		Scan(&session).Error
	if err != nil {
		return nil, err
	}
	if session.ID == 0 {
		return nil, domain.ErrSessionExpired
	}
	return &session, nil
}

func (r *repository) DeleteSessionByTokenHash(ctx context.Context, db *gorm.DB, tokenHash string) error {
	return db.WithContext(ctx).
		Exec(`DELETE FROM client_sessions WHERE token_hash = ?`, tokenHash).Error
}
