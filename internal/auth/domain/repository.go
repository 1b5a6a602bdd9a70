package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertUser(ctx context.Context, db *gorm.DB, user *User) error
	FindUserByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*User, error)
	FindUserByUsername(ctx context.Context, db *gorm.DB, username string) (*User, error)
	ListUsersByOrg(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]*User, error)
	UpdateUser(ctx context.Context, db *gorm.DB, id snowflake.ID, fields map[string]any) error
	DeleteUser(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) error

	InsertSession(ctx context.Context, db *gorm.DB, session *Session) error
	FindSessionByTokenHash(ctx context.Context, db *gorm.DB, tokenHash string) (*Session, error)
	DeleteSessionByTokenHash(ctx context.Context, db *gorm.DB, tokenHash string) error
	DeleteSessionsByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) error
	DeleteExpiredSessions(ctx context.Context, db *gorm.DB, now time.Time) (int64, error)
}
