package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/quotedesk/quotedesk/pkg/db/pagination"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, q *Quotation) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Quotation, error)
	FindByToken(ctx context.Context, db *gorm.DB, token string) (*Quotation, error)
	List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter ListFilter, page pagination.Pagination) ([]*Quotation, error)
	UpdateFields(ctx context.Context, db *gorm.DB, id snowflake.ID, fields map[string]any) error

	// TransitionStatus performs a conditional status update, succeeding only
	// when the row's current status is one of from. It reports whether a row
	// was changed, which makes lost-update races detectable.
	TransitionStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from []Status, to Status, extra map[string]any) (bool, error)

	InsertItems(ctx context.Context, db *gorm.DB, items []*QuoteItem) error
	ListItems(ctx context.Context, db *gorm.DB, quotationID snowflake.ID) ([]*QuoteItem, error)
	DeleteItems(ctx context.Context, db *gorm.DB, quotationID snowflake.ID) error
	UpdateItemSelection(ctx context.Context, db *gorm.DB, quotationID, itemID snowflake.ID, selected bool, total decimal.Decimal) error

	AppendAudit(ctx context.Context, db *gorm.DB, entry *AuditLog) error
	ListAudit(ctx context.Context, db *gorm.DB, orgID, quotationID snowflake.ID) ([]*AuditLog, error)
}

type ListFilter struct {
	Status             Status        `form:"status"`
	AssignedEmployeeID *snowflake.ID `form:"assigned_employee_id"`
	Search             string        `form:"q"`
}

type SubmitLeadRequest struct {
	OrgIDOrSlug     string     `json:"-"`
	CustomerName    string     `json:"customer_name" binding:"required"`
	CustomerEmail   string     `json:"customer_email" binding:"required,email"`
	CustomerPhone   string     `json:"customer_phone"`
	CustomerAddress string     `json:"customer_address"`
	Notes           string     `json:"notes"`
	PreferredDate   *time.Time `json:"preferred_date,omitempty"`

	// Items the prospect picked on the lead form, keyed by price matrix ID.
	Items []LeadItemSelection `json:"items"`
}

type LeadItemSelection struct {
	PriceItemID snowflake.ID    `json:"price_item_id" binding:"required"`
	Quantity    decimal.Decimal `json:"quantity"`
}

type SubmitLeadResponse struct {
	QuotationID snowflake.ID `json:"quotation_id"`
	Token       string       `json:"token"`
}

type DraftItem struct {
	PriceItemID *snowflake.ID   `json:"price_item_id,omitempty"`
	Name        string          `json:"name" binding:"required"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	IsSelected  bool            `json:"is_selected"`
	IsOptional  bool            `json:"is_optional"`
	SortOrder   int             `json:"sort_order"`
}

type UpdateDraftRequest struct {
	CustomerName    *string          `json:"customer_name,omitempty"`
	CustomerEmail   *string          `json:"customer_email,omitempty"`
	CustomerPhone   *string          `json:"customer_phone,omitempty"`
	CustomerAddress *string          `json:"customer_address,omitempty"`
	Discount        *decimal.Decimal `json:"discount,omitempty"`
	VatRate         *decimal.Decimal `json:"vat_rate,omitempty"`
	IncludeVat      *bool            `json:"include_vat,omitempty"`
	Notes           *string          `json:"notes,omitempty"`
	InternalNotes   *string          `json:"internal_notes,omitempty"`
	ValidUntil      *time.Time       `json:"valid_until,omitempty"`
	Items           []DraftItem      `json:"items,omitempty"`
}

type ItemSelection struct {
	ItemID   snowflake.ID `json:"item_id" binding:"required"`
	Selected bool         `json:"selected"`
}

type AcceptRequest struct {
	Token     string          `json:"-"`
	Signature string          `json:"signature" binding:"required"`
	Items     []ItemSelection `json:"items"`
	IP        string          `json:"-"`
	UserAgent string          `json:"-"`
}

type RejectRequest struct {
	Token  string `json:"-"`
	Reason string `json:"reason"`
	IP     string `json:"-"`
}

// PublicQuoteView is what the prospect sees behind the token URL: the quote,
// its visible lines, and the organization's public branding.
type PublicQuoteView struct {
	Quotation    Quotation     `json:"quotation"`
	Items        []*QuoteItem  `json:"items"`
	Organization PublicOrgView `json:"organization"`
	NextStatuses []Status      `json:"next_statuses"`
}

type PublicOrgView struct {
	ID              snowflake.ID `json:"id"`
	Name            string       `json:"name"`
	LogoURL         string       `json:"logo_url,omitempty"`
	PrimaryColor    string       `json:"primary_color"`
	AccentColor     string       `json:"accent_color"`
	QuoteFooter     string       `json:"quote_footer,omitempty"`
	TermsConditions string       `json:"terms_conditions,omitempty"`
	Address         string       `json:"address,omitempty"`
	Phone           string       `json:"phone,omitempty"`
	Email           string       `json:"email,omitempty"`
	Website         string       `json:"website,omitempty"`
}

type QuotationDetail struct {
	Quotation Quotation    `json:"quotation"`
	Items     []*QuoteItem `json:"items"`
	Audit     []*AuditLog  `json:"audit"`
}

type GenerateInvoiceRequest struct {
	ID           snowflake.ID `json:"-"`
	InvoiceNotes string       `json:"invoice_notes"`
}

type SendInvoiceResult struct {
	Quotation     Quotation    `json:"quotation"`
	ClientUserID  snowflake.ID `json:"client_user_id"`
	DossierID     snowflake.ID `json:"dossier_id"`
	EmailSent     bool         `json:"email_sent"`
	ClientCreated bool         `json:"client_created"`
}

type Service interface {
	// Public, token-bearing surface.
	SubmitLead(ctx context.Context, req SubmitLeadRequest) (SubmitLeadResponse, error)
	PublicView(ctx context.Context, token string) (PublicQuoteView, error)
	Accept(ctx context.Context, req AcceptRequest) (Quotation, error)
	Reject(ctx context.Context, req RejectRequest) (Quotation, error)

	// Staff surface.
	List(ctx context.Context, filter ListFilter, page pagination.Pagination) ([]*Quotation, *pagination.PageInfo, error)
	Get(ctx context.Context, id snowflake.ID) (QuotationDetail, error)
	UpdateDraft(ctx context.Context, id snowflake.ID, req UpdateDraftRequest) (QuotationDetail, error)
	Send(ctx context.Context, id snowflake.ID) (Quotation, error)
	Assign(ctx context.Context, id snowflake.ID, employeeID *snowflake.ID) (Quotation, error)
	GenerateInvoice(ctx context.Context, req GenerateInvoiceRequest) (Quotation, error)
	MarkPaid(ctx context.Context, id snowflake.ID) (Quotation, error)
	SendInvoice(ctx context.Context, id snowflake.ID) (SendInvoiceResult, error)
	InvoicePDF(ctx context.Context, id snowflake.ID) (filename string, pdf []byte, err error)
}

var (
	ErrNotFound          = errors.New("quotation_not_found")
	ErrTokenNotFound     = errors.New("quote_token_not_found")
	ErrNoItemsSelected   = errors.New("no_items_selected")
	ErrNotInvoiced       = errors.New("not_invoiced")
	ErrAlreadyInvoiced   = errors.New("already_invoiced")
	ErrEmptyCatalogSet   = errors.New("unknown_catalog_items")
	ErrQuoteExpired      = errors.New("quote_expired")
	ErrSignatureRequired = errors.New("signature_required")
)
