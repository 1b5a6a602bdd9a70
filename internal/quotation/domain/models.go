package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Quotation is the central record of the quote-to-invoice flow. It starts as a
// lead submitted through the public form and ends as a paid invoice.
type Quotation struct {
	ID    snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID snowflake.ID `gorm:"index;not null" json:"org_id"`

	CustomerName    string `gorm:"not null" json:"customer_name"`
	CustomerEmail   string `gorm:"not null" json:"customer_email"`
	CustomerPhone   string `json:"customer_phone,omitempty"`
	CustomerAddress string `json:"customer_address,omitempty"`

	Status Status `gorm:"not null;default:'new_lead'" json:"status"`

	// Token is the 256-bit hex secret in the public quote URL.
	Token string `gorm:"uniqueIndex;not null" json:"-"`

	Subtotal   decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"subtotal"`
	Discount   decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"discount"`
	VatRate    decimal.Decimal `gorm:"type:numeric(5,2);not null;default:21" json:"vat_rate"`
	IncludeVat bool            `gorm:"not null;default:true" json:"include_vat"`
	VatAmount  decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"vat_amount"`
	Total      decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"total"`

	Notes           string     `json:"notes,omitempty"`
	InternalNotes   string     `json:"internal_notes,omitempty"`
	Signature       string     `json:"signature,omitempty"`
	SignedAt        *time.Time `json:"signed_at,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty"`

	SentAt   *time.Time `json:"sent_at,omitempty"`
	ViewedAt *time.Time `json:"viewed_at,omitempty"`

	InvoiceNumber string     `gorm:"index" json:"invoice_number,omitempty"`
	InvoiceDate   *time.Time `json:"invoice_date,omitempty"`
	InvoiceNotes  string     `json:"invoice_notes,omitempty"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`

	AssignedEmployeeID *snowflake.ID `gorm:"index" json:"assigned_employee_id,omitempty"`
	PreferredDate      *time.Time    `json:"preferred_date,omitempty"`
	ValidUntil         *time.Time    `json:"valid_until,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Quotation) TableName() string { return "quotations" }

// QuoteItem is one line on a quotation. Lines copied from the price matrix
// keep a reference to their catalog item; custom lines have none. The client
// toggles IsSelected on the public quote and only selected lines count toward
// the totals.
type QuoteItem struct {
	ID          snowflake.ID    `gorm:"primaryKey" json:"id"`
	QuotationID snowflake.ID    `gorm:"index;not null" json:"quotation_id"`
	OrgID       snowflake.ID    `gorm:"index;not null" json:"org_id"`
	PriceItemID *snowflake.ID   `json:"price_item_id,omitempty"`
	Name        string          `gorm:"not null" json:"name"`
	Description string          `json:"description,omitempty"`
	Quantity    decimal.Decimal `gorm:"type:numeric(10,2);not null;default:1" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"unit_price"`
	Total       decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"total"`
	// No gorm-level default: a deselected line must be inserted as false,
	// and gorm omits zero values for columns that declare one.
	IsSelected bool      `gorm:"not null" json:"is_selected"`
	IsOptional bool      `gorm:"not null;default:false" json:"is_optional"`
	SortOrder  int       `gorm:"not null;default:0" json:"sort_order"`
	CreatedAt  time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (QuoteItem) TableName() string { return "quote_items" }

// AuditLog is one append-only entry in a quotation's history. Entries are
// ordered by their snowflake ID, which is monotonic per node.
type AuditLog struct {
	ID          snowflake.ID      `gorm:"primaryKey" json:"id"`
	QuotationID snowflake.ID      `gorm:"index;not null" json:"quotation_id"`
	OrgID       snowflake.ID      `gorm:"index;not null" json:"org_id"`
	Action      string            `gorm:"not null" json:"action"`
	Actor       string            `gorm:"not null" json:"actor"`
	Detail      datatypes.JSONMap `gorm:"type:jsonb" json:"detail,omitempty"`
	CreatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (AuditLog) TableName() string { return "quotation_audit_logs" }

// Audit actions.
const (
	ActionLeadSubmitted = "lead_submitted"
	ActionQuoteSent     = "quote_sent"
	ActionViewed        = "viewed"
	ActionApproved      = "approved"
	ActionRejected      = "rejected"
	ActionInvoiced      = "invoiced"
	ActionInvoiceSent   = "invoice_sent"
	ActionPaid          = "paid"
	ActionAssigned      = "assigned"
	ActionUpdated       = "updated"
)
