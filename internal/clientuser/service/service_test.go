package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/quotedesk/quotedesk/internal/clientuser/domain"
	"github.com/quotedesk/quotedesk/internal/clientuser/repository"
	"github.com/quotedesk/quotedesk/internal/config"
	orgdomain "github.com/quotedesk/quotedesk/internal/organization/domain"
	orgrepository "github.com/quotedesk/quotedesk/internal/organization/repository"
	orgservice "github.com/quotedesk/quotedesk/internal/organization/service"
	"github.com/quotedesk/quotedesk/pkg/db"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func newTestService(t *testing.T) (domain.Service, *gorm.DB, orgdomain.Organization, *fakeClock) {
	t.Helper()

	dbConn, err := db.NewTest()
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	if err := dbConn.AutoMigrate(&orgdomain.Organization{}, &domain.ClientUser{}, &domain.ClientSession{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("failed to create snowflake node: %v", err)
	}
	clk := &fakeClock{now: time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)}
	log := zap.NewNop()

	org := orgdomain.Organization{
		ID:             node.Generate(),
		Name:           "Jansen Schilderwerken",
		Slug:           "jansen",
		InvoicePrefix:  "INV",
		InvoiceCounter: 1000,
		MaxEmployees:   3,
	}
	if err := dbConn.Create(&org).Error; err != nil {
		t.Fatalf("failed to seed organization: %v", err)
	}

	orgSvc := orgservice.New(orgservice.Params{
		DB: dbConn, Log: log, GenID: node, Repo: orgrepository.Provide(),
	})
	svc := New(Params{
		DB:     dbConn,
		Log:    log,
		GenID:  node,
		Clock:  clk,
		Config: config.Config{SessionTTLHours: 72},
		Repo:   repository.Provide(),
		OrgSvc: orgSvc,
	})
	return svc, dbConn, org, clk
}

func TestEnsureForQuotationIsIdempotent(t *testing.T) {
	svc, _, org, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.EnsureForQuotation(ctx, nil, org.ID, "Piet@Example.com ", "Piet de Vries", "0612345678")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if !first.Created {
		t.Fatal("expected the first ensure to create the account")
	}
	if first.User.Email != "piet@example.com" {
		t.Fatalf("email not normalized: %q", first.User.Email)
	}
	if first.PlainPassword == "" {
		t.Fatal("expected a generated password for the new account")
	}

	second, err := svc.EnsureForQuotation(ctx, nil, org.ID, "piet@example.com", "Piet", "")
	if err != nil {
		t.Fatalf("ensure again: %v", err)
	}
	if second.Created {
		t.Fatal("second ensure must reuse the existing account")
	}
	if second.User.ID != first.User.ID {
		t.Fatal("second ensure returned a different account")
	}
}

func TestLoginWithGeneratedPassword(t *testing.T) {
	svc, _, org, _ := newTestService(t)
	ctx := context.Background()

	ensured, err := svc.EnsureForQuotation(ctx, nil, org.ID, "piet@example.com", "Piet", "")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}

	resp, err := svc.Login(ctx, domain.LoginRequest{
		OrgIDOrSlug: "jansen",
		Email:       "PIET@example.com",
		Password:    ensured.PlainPassword,
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("expected a session token")
	}

	principal, err := svc.Authenticate(ctx, resp.Token)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if principal.ClientUserID != ensured.User.ID || principal.OrgID != org.ID {
		t.Fatalf("unexpected principal %+v", principal)
	}
}

func TestLoginRejectsWrongPasswordAndOrg(t *testing.T) {
	svc, _, org, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.EnsureForQuotation(ctx, nil, org.ID, "piet@example.com", "Piet", ""); err != nil {
		t.Fatalf("ensure: %v", err)
	}

	_, err := svc.Login(ctx, domain.LoginRequest{OrgIDOrSlug: "jansen", Email: "piet@example.com", Password: "wrong"})
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("wrong password: expected ErrInvalidCredentials, got %v", err)
	}

	_, err = svc.Login(ctx, domain.LoginRequest{OrgIDOrSlug: "other-org", Email: "piet@example.com", Password: "whatever"})
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("unknown org: expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthenticateExpiredSession(t *testing.T) {
	svc, _, org, clk := newTestService(t)
	ctx := context.Background()

	ensured, err := svc.EnsureForQuotation(ctx, nil, org.ID, "piet@example.com", "Piet", "")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	resp, err := svc.Login(ctx, domain.LoginRequest{
		OrgIDOrSlug: "jansen", Email: "piet@example.com", Password: ensured.PlainPassword,
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	clk.now = clk.now.Add(73 * time.Hour)
	if _, err := svc.Authenticate(ctx, resp.Token); !errors.Is(err, domain.ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
}
