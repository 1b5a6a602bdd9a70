package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, user *ClientUser) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*ClientUser, error)
	FindByEmail(ctx context.Context, db *gorm.DB, orgID snowflake.ID, email string) (*ClientUser, error)
	ListByOrg(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]*ClientUser, error)
	Update(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, fields map[string]any) error

	InsertSession(ctx context.Context, db *gorm.DB, session *ClientSession) error
	FindSessionByTokenHash(ctx context.Context, db *gorm.DB, tokenHash string) (*ClientSession, error)
	DeleteSessionByTokenHash(ctx context.Context, db *gorm.DB, tokenHash string) error
}

// EnsureResult carries the idempotent-create outcome. PlainPassword is only
// set when the account was created in this call, so it can be emailed once.
type EnsureResult struct {
	User          ClientUser
	Created       bool
	PlainPassword string
}

type LoginRequest struct {
	OrgIDOrSlug string `json:"-"`
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token string     `json:"-"`
	User  ClientUser `json:"user"`
}

// ClientPrincipal identifies a logged-in portal user.
type ClientPrincipal struct {
	ClientUserID snowflake.ID `json:"client_user_id"`
	OrgID        snowflake.ID `json:"org_id"`
	Email        string       `json:"email"`
	Name         string       `json:"name"`
}

type Service interface {
	// EnsureForQuotation creates the portal account for an email if it does
	// not exist yet. Concurrent calls for the same email converge on one row.
	// Runs in the caller's transaction when tx is non-nil.
	EnsureForQuotation(ctx context.Context, tx *gorm.DB, orgID snowflake.ID, email, name, phone string) (EnsureResult, error)

	Login(ctx context.Context, req LoginRequest) (LoginResponse, error)
	Logout(ctx context.Context, rawToken string) error
	Authenticate(ctx context.Context, rawToken string) (ClientPrincipal, error)

	List(ctx context.Context) ([]*ClientUser, error)
}

var (
	ErrNotFound           = errors.New("client_user_not_found")
	ErrInvalidCredentials = errors.New("invalid_client_credentials")
	ErrSessionExpired     = errors.New("client_session_expired")
)
