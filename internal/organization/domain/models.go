package domain

import (
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Organization is one tenant: a company selling work through quotes.
type Organization struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	Name         string       `gorm:"not null" json:"name"`
	Slug         string       `gorm:"uniqueIndex" json:"slug"`
	LogoURL      string       `json:"logo_url,omitempty"`
	PrimaryColor string       `gorm:"default:'#1d4ed8'" json:"primary_color"`
	AccentColor  string       `gorm:"default:'#3b82f6'" json:"accent_color"`

	VatNumber       string `json:"vat_number,omitempty"`
	KvkNumber       string `json:"kvk_number,omitempty"`
	IBAN            string `gorm:"column:iban" json:"iban,omitempty"`
	Currency        string `gorm:"default:'EUR'" json:"currency"`
	QuoteFooter     string `json:"quote_footer,omitempty"`
	TermsConditions string `json:"terms_conditions,omitempty"`

	Address string `json:"address,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
	Website string `json:"website,omitempty"`

	// Per-tenant SMTP override; empty host falls back to platform SMTP.
	EmailFromName string `json:"email_from_name,omitempty"`
	SMTPHost      string `gorm:"column:smtp_host" json:"-"`
	SMTPPort      int    `gorm:"column:smtp_port" json:"-"`
	SMTPUser      string `gorm:"column:smtp_user" json:"-"`
	SMTPPass      string `gorm:"column:smtp_pass" json:"-"`
	SMTPFrom      string `gorm:"column:smtp_from" json:"-"`

	InvoicePrefix  string `gorm:"not null;default:'INV'" json:"invoice_prefix"`
	InvoiceCounter int64  `gorm:"not null;default:1000" json:"invoice_counter"`

	OpeningHours datatypes.JSON `gorm:"type:jsonb" json:"opening_hours,omitempty"`
	MaxEmployees int            `gorm:"not null;default:3" json:"max_employees"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Organization) TableName() string { return "organizations" }

// DayHours is the opening window for one weekday.
type DayHours struct {
	Enabled bool   `json:"enabled"`
	Open    string `json:"open"`
	Close   string `json:"close"`
}

// WeekSchedule maps lowercase weekday names (monday..sunday) to opening hours.
type WeekSchedule map[string]DayHours

// Schedule decodes the opening-hours JSON. A missing or empty document yields
// an empty schedule, meaning no bookable slots on any day.
func (o Organization) Schedule() (WeekSchedule, error) {
	if len(o.OpeningHours) == 0 {
		return WeekSchedule{}, nil
	}
	var schedule WeekSchedule
	if err := json.Unmarshal(o.OpeningHours, &schedule); err != nil {
		return nil, err
	}
	if schedule == nil {
		schedule = WeekSchedule{}
	}
	return schedule, nil
}
