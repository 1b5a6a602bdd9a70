package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Dependency conditions. "when_selected" shows the item while its parent is
// selected, "when_not_selected" while it is not, and "always" regardless.
const (
	ConditionAlways          = "always"
	ConditionWhenSelected    = "when_selected"
	ConditionWhenNotSelected = "when_not_selected"
)

// ValidCondition reports whether v names a known dependency condition.
func ValidCondition(v string) bool {
	switch v {
	case ConditionAlways, ConditionWhenSelected, ConditionWhenNotSelected:
		return true
	default:
		return false
	}
}

// PriceMatrixItem is one orderable line in an organization's catalog. An item
// may depend on another item, with DependsOnCondition deciding when it shows
// on the public quote. Optional items can be toggled off by the prospect.
// Dependencies are single-level: a parent can never itself depend on
// something.
type PriceMatrixItem struct {
	ID                 snowflake.ID    `gorm:"primaryKey" json:"id"`
	OrgID              snowflake.ID    `gorm:"index;not null" json:"org_id"`
	Name               string          `gorm:"not null" json:"name"`
	Description        string          `json:"description,omitempty"`
	Price              decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	Unit               string          `json:"unit,omitempty"`
	Category           string          `json:"category,omitempty"`
	ImageURL           string          `json:"image_url,omitempty"`
	SortOrder          int             `gorm:"not null;default:0" json:"sort_order"`
	AllowQuantity      bool            `gorm:"not null;default:false" json:"allow_quantity"`
	IsOptional         bool            `gorm:"not null;default:false" json:"is_optional"`
	IsActive           bool            `gorm:"not null;default:true" json:"is_active"`
	DependsOnItemID    *snowflake.ID   `gorm:"index" json:"depends_on_item_id,omitempty"`
	DependsOnCondition string          `gorm:"not null;default:'always'" json:"depends_on_condition"`
	CreatedAt          time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt          time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (PriceMatrixItem) TableName() string { return "price_matrix_items" }
