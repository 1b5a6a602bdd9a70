package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// User is a staff member of an organization. Role is either "owner" or
// "medewerker"; every organization has exactly one owner.
type User struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID        snowflake.ID `gorm:"index;not null" json:"org_id"`
	Username     string       `gorm:"uniqueIndex;not null" json:"username"`
	PasswordHash string       `gorm:"not null" json:"-"`
	Role         string       `gorm:"not null" json:"role"`
	FullName     string       `json:"full_name,omitempty"`
	Email        string       `json:"email,omitempty"`
	Phone        string       `json:"phone,omitempty"`
	IsActive     bool         `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (User) TableName() string { return "users" }

// Session is a server-side login session. Only the SHA-256 hash of the bearer
// token is stored; the raw token exists only in the client's cookie.
type Session struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	UserID    snowflake.ID `gorm:"index;not null" json:"user_id"`
	TokenHash string       `gorm:"uniqueIndex;not null" json:"-"`
	ExpiresAt time.Time    `gorm:"not null" json:"expires_at"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Session) TableName() string { return "sessions" }
