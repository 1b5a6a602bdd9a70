package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Notification types.
const (
	TypeNewLead       = "new_lead"
	TypeQuoteViewed   = "quote_viewed"
	TypeQuoteApproved = "quote_approved"
	TypeQuoteRejected = "quote_rejected"
	TypeNewMessage    = "new_message"
	TypeDossierSigned = "dossier_signed"
)

// Notification is an org-wide in-app event shown to staff.
type Notification struct {
	ID        snowflake.ID  `gorm:"primaryKey" json:"id"`
	OrgID     snowflake.ID  `gorm:"index;not null" json:"org_id"`
	Type      string        `gorm:"not null" json:"type"`
	Title     string        `gorm:"not null" json:"title"`
	Message   string        `json:"message,omitempty"`
	RelatedID *snowflake.ID `json:"related_id,omitempty"`
	ReadAt    *time.Time    `json:"read_at,omitempty"`
	CreatedAt time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Notification) TableName() string { return "notifications" }

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, n *Notification) error
	ListByOrg(ctx context.Context, db *gorm.DB, orgID snowflake.ID, limit int) ([]*Notification, error)
	CountUnread(ctx context.Context, db *gorm.DB, orgID snowflake.ID) (int64, error)
	MarkRead(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) error
	MarkAllRead(ctx context.Context, db *gorm.DB, orgID snowflake.ID) (int64, error)
}

type Service interface {
	// Notify records an in-app notification. Failures are returned, not
	// fatal; callers treat notification as best effort.
	Notify(ctx context.Context, tx *gorm.DB, orgID snowflake.ID, notifType, title, message string, relatedID *snowflake.ID) error

	List(ctx context.Context, limit int) ([]*Notification, error)
	UnreadCount(ctx context.Context) (int64, error)
	MarkRead(ctx context.Context, id snowflake.ID) error
	MarkAllRead(ctx context.Context) (int64, error)
}

var ErrNotFound = errors.New("notification_not_found")
