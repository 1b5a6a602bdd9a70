package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Event types. A "requested" event is the prospect's preferred date from the
// lead form; it becomes "booked" when the quote is accepted. "blocked" marks
// time staff made unavailable by hand.
const (
	TypeBooked    = "booked"
	TypeRequested = "requested"
	TypeBlocked   = "blocked"
)

// Event is one calendar entry. EmployeeID is nil for events of the owner or
// events not tied to a specific staff member. An all-day event occupies its
// whole date; only all-day events count toward blocking a date, while timed
// events only take their start slot.
type Event struct {
	ID           snowflake.ID  `gorm:"primaryKey" json:"id"`
	OrgID        snowflake.ID  `gorm:"index;not null" json:"org_id"`
	QuotationID  *snowflake.ID `gorm:"index" json:"quotation_id,omitempty"`
	EmployeeID   *snowflake.ID `gorm:"index" json:"employee_id,omitempty"`
	Type         string        `gorm:"not null;default:'booked'" json:"type"`
	Title        string        `gorm:"not null" json:"title"`
	CustomerName string        `json:"customer_name,omitempty"`
	StartTime    time.Time     `gorm:"index;not null" json:"start_time"`
	EndTime      time.Time     `gorm:"not null" json:"end_time"`
	AllDay       bool          `gorm:"not null;default:false" json:"all_day"`
	Notes        string        `json:"notes,omitempty"`
	CreatedAt    time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Event) TableName() string { return "calendar_events" }
