package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Dossier is the post-sale job file for one quotation: notes, files, the
// generated invoice and the message thread with the client. One per
// quotation.
type Dossier struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID        snowflake.ID `gorm:"index;not null" json:"org_id"`
	QuotationID  snowflake.ID `gorm:"uniqueIndex;not null" json:"quotation_id"`
	ClientUserID snowflake.ID `gorm:"index;not null" json:"client_user_id"`
	Title        string       `gorm:"not null" json:"title"`
	Status       Status       `gorm:"not null;default:'open'" json:"status"`

	SignatureData string     `json:"-"`
	SignedAt      *time.Time `json:"signed_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Dossier) TableName() string { return "dossiers" }

// Entry kinds.
const (
	EntryNote       = "note"
	EntryFile       = "file"
	EntryPhoto      = "photo"
	EntryInvoicePDF = "invoice_pdf"
)

// Entry is one item in a dossier: a work note, an uploaded file or the
// invoice PDF attached when the invoice is sent.
type Entry struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	DossierID snowflake.ID `gorm:"index;not null" json:"dossier_id"`
	OrgID     snowflake.ID `gorm:"index;not null" json:"org_id"`
	Kind      string       `gorm:"not null;default:'note'" json:"kind"`
	Title     string       `json:"title,omitempty"`
	Body      string       `json:"body,omitempty"`
	FileName  string       `json:"file_name,omitempty"`
	FilePath  string       `json:"-"`
	CreatedBy string       `gorm:"not null" json:"created_by"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Entry) TableName() string { return "dossier_entries" }

// Message senders.
const (
	SenderClient = "client"
	SenderStaff  = "staff"
)

// Message is one line in the dossier's client/staff thread. ReadAt is set
// when the opposite party marks the thread read.
type Message struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	DossierID  snowflake.ID `gorm:"index;not null" json:"dossier_id"`
	OrgID      snowflake.ID `gorm:"index;not null" json:"org_id"`
	SenderType string       `gorm:"not null" json:"sender_type"`
	SenderName string       `json:"sender_name,omitempty"`
	Body       string       `gorm:"not null" json:"body"`
	ReadAt     *time.Time   `json:"read_at,omitempty"`
	CreatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Message) TableName() string { return "dossier_messages" }
