package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// ClientUser is a customer-facing portal account, created automatically the
// first time an invoice is sent to that email address. Unique per
// organization and email.
type ClientUser struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID        snowflake.ID `gorm:"uniqueIndex:ux_client_users_org_email;not null" json:"org_id"`
	Email        string       `gorm:"uniqueIndex:ux_client_users_org_email;not null" json:"email"`
	Name         string       `json:"name,omitempty"`
	Phone        string       `json:"phone,omitempty"`
	PasswordHash string       `gorm:"not null" json:"-"`
	LastLoginAt  *time.Time   `json:"last_login_at,omitempty"`
	CreatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (ClientUser) TableName() string { return "client_users" }

// ClientSession is a portal login session, stored hashed like staff sessions.
type ClientSession struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	ClientUserID snowflake.ID `gorm:"index;not null" json:"client_user_id"`
	TokenHash    string       `gorm:"uniqueIndex;not null" json:"-"`
	ExpiresAt    time.Time    `gorm:"not null" json:"expires_at"`
	CreatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (ClientSession) TableName() string { return "client_sessions" }
