package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, dossier *Dossier) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Dossier, error)
	FindByQuotation(ctx context.Context, db *gorm.DB, orgID, quotationID snowflake.ID) (*Dossier, error)
	ListByOrg(ctx context.Context, db *gorm.DB, orgID snowflake.ID, assignedTo *snowflake.ID) ([]*Dossier, error)
	ListByClient(ctx context.Context, db *gorm.DB, orgID, clientUserID snowflake.ID) ([]*Dossier, error)
	Update(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, fields map[string]any) error
	Delete(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) error

	InsertEntry(ctx context.Context, db *gorm.DB, entry *Entry) error
	ListEntries(ctx context.Context, db *gorm.DB, orgID, dossierID snowflake.ID) ([]*Entry, error)
	DeleteEntry(ctx context.Context, db *gorm.DB, orgID, dossierID, entryID snowflake.ID) error

	InsertMessage(ctx context.Context, db *gorm.DB, message *Message) error
	ListMessages(ctx context.Context, db *gorm.DB, orgID, dossierID snowflake.ID) ([]*Message, error)
	MarkMessagesRead(ctx context.Context, db *gorm.DB, orgID, dossierID snowflake.ID, senderType string) (int64, error)
	CountUnread(ctx context.Context, db *gorm.DB, orgID, dossierID snowflake.ID, senderType string) (int64, error)
}

type EnsureRequest struct {
	OrgID        snowflake.ID
	QuotationID  snowflake.ID
	ClientUserID snowflake.ID
	Title        string
}

type AddEntryRequest struct {
	DossierID snowflake.ID `json:"-"`
	Kind      string       `json:"kind"`
	Title     string       `json:"title"`
	Body      string       `json:"body"`
	FileName  string       `json:"file_name"`
	FilePath  string       `json:"-"`
	CreatedBy string       `json:"-"`
}

type PostMessageRequest struct {
	DossierID  snowflake.ID `json:"-"`
	SenderType string       `json:"-"`
	SenderName string       `json:"-"`
	Body       string       `json:"body" binding:"required"`
}

type SignRequest struct {
	DossierID     snowflake.ID
	ClientUserID  snowflake.ID
	SignatureData string
}

type Detail struct {
	Dossier  Dossier    `json:"dossier"`
	Entries  []*Entry   `json:"entries"`
	Messages []*Message `json:"messages"`
	Unread   int64      `json:"unread"`
}

type Service interface {
	// EnsureForQuotation creates the dossier for a quotation if missing.
	// Safe under concurrency; every caller gets the same dossier back.
	EnsureForQuotation(ctx context.Context, tx *gorm.DB, req EnsureRequest) (Dossier, bool, error)

	// Staff surface.
	List(ctx context.Context) ([]*Dossier, error)
	Get(ctx context.Context, id snowflake.ID) (Detail, error)
	Complete(ctx context.Context, id snowflake.ID) (Dossier, error)
	Delete(ctx context.Context, id snowflake.ID) error
	AddEntry(ctx context.Context, tx *gorm.DB, orgID snowflake.ID, req AddEntryRequest) (Entry, error)
	DeleteEntry(ctx context.Context, dossierID, entryID snowflake.ID) error

	// Message thread, shared by staff and portal.
	PostMessage(ctx context.Context, orgID snowflake.ID, req PostMessageRequest) (Message, error)
	MarkMessagesRead(ctx context.Context, orgID, dossierID snowflake.ID, readerType string) error

	// Portal surface.
	ListForClient(ctx context.Context, orgID, clientUserID snowflake.ID) ([]*Dossier, error)
	GetForClient(ctx context.Context, orgID, clientUserID, id snowflake.ID) (Detail, error)
	Sign(ctx context.Context, req SignRequest) (Dossier, error)
}

var (
	ErrNotFound          = errors.New("dossier_not_found")
	ErrEntryNotFound     = errors.New("dossier_entry_not_found")
	ErrNotCompleted      = errors.New("dossier_not_completed")
	ErrAlreadySigned     = errors.New("dossier_already_signed")
	ErrSignatureRequired = errors.New("signature_required")
	ErrInvalidSender     = errors.New("invalid_sender_type")
)
