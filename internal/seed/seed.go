package seed

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	authdomain "github.com/quotedesk/quotedesk/internal/auth/domain"
	"github.com/quotedesk/quotedesk/internal/config"
	organizationdomain "github.com/quotedesk/quotedesk/internal/organization/domain"
	"github.com/quotedesk/quotedesk/internal/orgcontext"
)

const (
	fallbackOrgName       = "Main"
	fallbackOwnerUsername = "owner"
	fallbackOwnerPassword = "changeme"
)

// EnsureDefaultOrgAndOwner seeds one organization and its owner account so a
// fresh self-hosted install is usable without manual database work.
func EnsureDefaultOrgAndOwner(db *gorm.DB, cfg config.BootstrapConfig) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	orgName := strings.TrimSpace(cfg.DefaultOrgName)
	if orgName == "" {
		orgName = fallbackOrgName
	}
	username := strings.TrimSpace(cfg.DefaultOwnerUsername)
	if username == "" {
		username = fallbackOwnerUsername
	}
	password := cfg.DefaultOwnerPassword
	if password == "" {
		password = fallbackOwnerPassword
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		org, err := ensureOrgTx(ctx, tx, node, orgName)
		if err != nil {
			return err
		}
		return ensureOwnerTx(ctx, tx, node, org.ID, username, password)
	})
}

func ensureOrgTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, name string) (organizationdomain.Organization, error) {
	orgSlug := slug.Make(name)

	var org organizationdomain.Organization
	err := tx.WithContext(ctx).Where("slug = ?", orgSlug).First(&org).Error
	if err == nil {
		return org, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return org, err
	}

	now := time.Now().UTC()
	org = organizationdomain.Organization{
		ID:             node.Generate(),
		Name:           name,
		Slug:           orgSlug,
		Currency:       "EUR",
		InvoicePrefix:  "INV",
		InvoiceCounter: 1000,
		MaxEmployees:   3,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := tx.WithContext(ctx).Create(&org).Error; err != nil {
		return org, err
	}
	return org, nil
}

func ensureOwnerTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, orgID snowflake.ID, username, password string) error {
	var owner authdomain.User
	err := tx.WithContext(ctx).
		Where("org_id = ? AND role = ?", orgID, orgcontext.RoleOwner).
		First(&owner).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	owner = authdomain.User{
		ID:           node.Generate(),
		OrgID:        orgID,
		Username:     strings.ToLower(username),
		PasswordHash: string(hashed),
		Role:         orgcontext.RoleOwner,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return tx.WithContext(ctx).Create(&owner).Error
}
