package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type UpdateOrganizationRequest struct {
	Name            *string       `json:"name,omitempty"`
	Slug            *string       `json:"slug,omitempty"`
	LogoURL         *string       `json:"logo_url,omitempty"`
	PrimaryColor    *string       `json:"primary_color,omitempty"`
	AccentColor     *string       `json:"accent_color,omitempty"`
	VatNumber       *string       `json:"vat_number,omitempty"`
	KvkNumber       *string       `json:"kvk_number,omitempty"`
	IBAN            *string       `json:"iban,omitempty"`
	QuoteFooter     *string       `json:"quote_footer,omitempty"`
	TermsConditions *string       `json:"terms_conditions,omitempty"`
	Address         *string       `json:"address,omitempty"`
	Phone           *string       `json:"phone,omitempty"`
	Email           *string       `json:"email,omitempty"`
	Website         *string       `json:"website,omitempty"`
	EmailFromName   *string       `json:"email_from_name,omitempty"`
	SMTPHost        *string       `json:"smtp_host,omitempty"`
	SMTPPort        *int          `json:"smtp_port,omitempty"`
	SMTPUser        *string       `json:"smtp_user,omitempty"`
	SMTPPass        *string       `json:"smtp_pass,omitempty"`
	SMTPFrom        *string       `json:"smtp_from,omitempty"`
	InvoicePrefix   *string       `json:"invoice_prefix,omitempty"`
	OpeningHours    *WeekSchedule `json:"opening_hours,omitempty"`
}

type Service interface {
	// Get returns the organization of the authenticated principal.
	Get(ctx context.Context) (Organization, error)
	Update(ctx context.Context, req UpdateOrganizationRequest) (Organization, error)

	// ResolveByIDOrSlug resolves the public lead-form identifier, which may be
	// either a raw snowflake ID or the organization's slug.
	ResolveByIDOrSlug(ctx context.Context, idOrSlug string) (Organization, error)

	// AllocateInvoiceNumber returns the next "<PREFIX>-<counter>" number for
	// the organization, using tx so allocation joins the caller's transaction.
	AllocateInvoiceNumber(ctx context.Context, tx *gorm.DB, orgID snowflake.ID) (string, error)

	// StaffCount returns the active staff headcount with a floor of 1, the
	// occupancy threshold used by the calendar availability resolver.
	StaffCount(ctx context.Context, orgID snowflake.ID) (int, error)
}

var (
	ErrNotFound            = errors.New("not_found")
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidName         = errors.New("invalid_name")
	ErrInvalidSlug         = errors.New("invalid_slug")
	ErrInvalidSchedule     = errors.New("invalid_schedule")
)
