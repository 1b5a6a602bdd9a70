package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, event *Event) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Event, error)
	ListRange(ctx context.Context, db *gorm.DB, orgID snowflake.ID, from, to time.Time) ([]*Event, error)
	Update(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, fields map[string]any) error
	Delete(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) error
	FindByQuotation(ctx context.Context, db *gorm.DB, orgID, quotationID snowflake.ID, eventType string) (*Event, error)
	DeleteByQuotation(ctx context.Context, db *gorm.DB, orgID, quotationID snowflake.ID, eventType string) error
}

type CreateEventRequest struct {
	Type         string        `json:"type"`
	Title        string        `json:"title" binding:"required"`
	CustomerName string        `json:"customer_name"`
	EmployeeID   *snowflake.ID `json:"employee_id,omitempty"`
	QuotationID  *snowflake.ID `json:"quotation_id,omitempty"`
	StartTime    time.Time     `json:"start_time" binding:"required"`
	EndTime      time.Time     `json:"end_time"`
	AllDay       bool          `json:"all_day"`
	Notes        string        `json:"notes"`
}

type UpdateEventRequest struct {
	Title      *string       `json:"title,omitempty"`
	Type       *string       `json:"type,omitempty"`
	EmployeeID *snowflake.ID `json:"employee_id,omitempty"`
	StartTime  *time.Time    `json:"start_time,omitempty"`
	EndTime    *time.Time    `json:"end_time,omitempty"`
	AllDay     *bool         `json:"all_day,omitempty"`
	Notes      *string       `json:"notes,omitempty"`
}

// Availability is the public lead-form view of a month: which dates are fully
// booked and which start times remain per date.
type Availability struct {
	Date       string   `json:"date"`
	Slots      []string `json:"slots"`
	FullyBusy  bool     `json:"fully_busy"`
	TakenTimes []string `json:"taken_times"`
}

type Service interface {
	Create(ctx context.Context, req CreateEventRequest) (Event, error)
	List(ctx context.Context, from, to time.Time) ([]*Event, error)
	Update(ctx context.Context, id snowflake.ID, req UpdateEventRequest) (Event, error)
	Delete(ctx context.Context, id snowflake.ID) error

	// Public availability surface, keyed by organization rather than context.
	BlockedDates(ctx context.Context, orgID snowflake.ID, from, to time.Time) ([]string, error)
	DayAvailability(ctx context.Context, orgID snowflake.ID, date string) (Availability, error)

	// Lead lifecycle hooks used by the quotation service. Both accept the
	// caller's transaction.
	RecordRequested(ctx context.Context, tx *gorm.DB, orgID, quotationID snowflake.ID, customerName string, at time.Time, slotMinutes int) error
	PromoteRequested(ctx context.Context, tx *gorm.DB, orgID, quotationID snowflake.ID, customerName string) error
	DropRequested(ctx context.Context, tx *gorm.DB, orgID, quotationID snowflake.ID) error
}

var (
	ErrEventNotFound = errors.New("event_not_found")
	ErrInvalidRange  = errors.New("invalid_time_range")
	ErrInvalidType   = errors.New("invalid_event_type")
	ErrInvalidDate   = errors.New("invalid_date")
)
