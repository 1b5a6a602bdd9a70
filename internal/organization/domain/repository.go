package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, org *Organization) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Organization, error)
	FindBySlug(ctx context.Context, db *gorm.DB, slug string) (*Organization, error)
	Update(ctx context.Context, db *gorm.DB, id snowflake.ID, fields map[string]any) error

	// AllocateInvoiceCounter atomically increments and returns the
	// organization's invoice counter. Callers must not read-modify-write.
	AllocateInvoiceCounter(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error)

	// CountStaff returns the number of active staff users of the organization.
	CountStaff(ctx context.Context, db *gorm.DB, id snowflake.ID) (int, error)
}
