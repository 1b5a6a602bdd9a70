package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, item *PriceMatrixItem) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*PriceMatrixItem, error)
	ListByOrg(ctx context.Context, db *gorm.DB, orgID snowflake.ID, activeOnly bool) ([]*PriceMatrixItem, error)
	Update(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, fields map[string]any) error
	Delete(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) error
	ClearDependents(ctx context.Context, db *gorm.DB, orgID, parentID snowflake.ID) error
}

type CreateItemRequest struct {
	Name               string          `json:"name" binding:"required"`
	Description        string          `json:"description"`
	Price              decimal.Decimal `json:"price"`
	Unit               string          `json:"unit"`
	Category           string          `json:"category"`
	ImageURL           string          `json:"image_url"`
	SortOrder          int             `json:"sort_order"`
	AllowQuantity      bool            `json:"allow_quantity"`
	IsOptional         bool            `json:"is_optional"`
	DependsOnItemID    *snowflake.ID   `json:"depends_on_item_id,omitempty"`
	DependsOnCondition string          `json:"depends_on_condition"`
}

type UpdateItemRequest struct {
	Name               *string          `json:"name,omitempty"`
	Description        *string          `json:"description,omitempty"`
	Price              *decimal.Decimal `json:"price,omitempty"`
	Unit               *string          `json:"unit,omitempty"`
	Category           *string          `json:"category,omitempty"`
	ImageURL           *string          `json:"image_url,omitempty"`
	SortOrder          *int             `json:"sort_order,omitempty"`
	AllowQuantity      *bool            `json:"allow_quantity,omitempty"`
	IsOptional         *bool            `json:"is_optional,omitempty"`
	IsActive           *bool            `json:"is_active,omitempty"`
	DependsOnItemID    *snowflake.ID    `json:"depends_on_item_id,omitempty"`
	DependsOnCondition *string          `json:"depends_on_condition,omitempty"`
	ClearDependency    bool             `json:"clear_dependency,omitempty"`
}

type Service interface {
	Create(ctx context.Context, req CreateItemRequest) (PriceMatrixItem, error)
	Get(ctx context.Context, id snowflake.ID) (PriceMatrixItem, error)
	List(ctx context.Context) ([]*PriceMatrixItem, error)
	ListActive(ctx context.Context, orgID snowflake.ID) ([]*PriceMatrixItem, error)
	Update(ctx context.Context, id snowflake.ID, req UpdateItemRequest) (PriceMatrixItem, error)
	Delete(ctx context.Context, id snowflake.ID) error
}

var (
	ErrItemNotFound       = errors.New("item_not_found")
	ErrInvalidPrice       = errors.New("invalid_price")
	ErrInvalidCondition   = errors.New("invalid_condition")
	ErrSelfDependency     = errors.New("self_dependency")
	ErrChainedDependency  = errors.New("chained_dependency")
	ErrDependencyNotFound = errors.New("dependency_not_found")
)
