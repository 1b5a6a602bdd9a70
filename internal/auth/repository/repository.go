package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/quotedesk/quotedesk/internal/auth/domain"
)

type repository struct{}

func Provide() domain.Repository { return &repository{} }

func (r *repository) InsertUser(ctx context.Context, db *gorm.DB, user *domain.User) error {
	return db.WithContext(ctx).Create(user).Error
}

func (r *repository) FindUserByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.User, error) {
	var user domain.User
	err := db.WithContext(ctx).
		Raw(`SELECT * FROM users WHERE id = ?`, id).
		Scan(&user).Error
	if err != nil {
		return nil, err
	}
	if user.ID == 0 {
		return nil, domain.ErrUserNotFound
	}
	return &user, nil
}

func (r *repository) FindUserByUsername(ctx context.Context, db *gorm.DB, username string) (*domain.User, error) {
	var user domain.User
	err := db.WithContext(ctx).
		Raw(`SELECT * FROM users WHERE username = ?`, username).
		Scan(&user).Error
	if err != nil {
		return nil, err
	}
	if user.ID == 0 {
		return nil, domain.ErrUserNotFound
	}
	return &user, nil
}

func (r *repository) ListUsersByOrg(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]*domain.User, error) {
	var users []*domain.User
	err := db.WithContext(ctx).
		Raw(`SELECT * FROM users WHERE org_id = ? ORDER BY created_at ASC`, orgID).
		Scan(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (r *repository) UpdateUser(ctx context.Context, db *gorm.DB, id snowflake.ID, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	fields["updated_at"] = time.Now().UTC()
	return db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (r *repository) DeleteUser(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) error {
	return db.WithContext(ctx).
		Exec(`DELETE FROM users WHERE org_id = ? AND id = ?`, orgID, id).Error
}

func (r *repository) InsertSession(ctx context.Context, db *gorm.DB, session *domain.Session) error {
	return db.WithContext(ctx).Create(session).Error
}

func (r *repository) FindSessionByTokenHash(ctx context.Context, db *gorm.DB, tokenHash string) (*domain.Session, error) {
	var session domain.Session
	err := db.WithContext(ctx).
		Raw(`SELECT * FROM sessions WHERE token_hash = ?`, tokenHash).
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
		Exec(`DELETE FROM sessions WHERE token_hash = ?`, tokenHash).Error
}

func (r *repository) DeleteSessionsByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) error {
	return db.WithContext(ctx).
		Exec(`DELETE FROM sessions WHERE user_id = ?`, userID).Error
}

func (r *repository) DeleteExpiredSessions(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Exec(`DELETE FROM sessions WHERE expires_at < ?`, now)
	return res.RowsAffected, res.Error
}
