package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/quotedesk/quotedesk/internal/auth/domain"
	"github.com/quotedesk/quotedesk/internal/auth/repository"
	"github.com/quotedesk/quotedesk/internal/config"
	"github.com/quotedesk/quotedesk/internal/orgcontext"
	orgdomain "github.com/quotedesk/quotedesk/internal/organization/domain"
	orgrepository "github.com/quotedesk/quotedesk/internal/organization/repository"
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
	if err := dbConn.AutoMigrate(&orgdomain.Organization{}, &domain.User{}, &domain.Session{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("failed to create snowflake node: %v", err)
	}
	clk := &fakeClock{now: time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)}

	org := orgdomain.Organization{
		ID:             node.Generate(),
		Name:           "Jansen Schilderwerken",
		Slug:           "jansen",
		InvoicePrefix:  "INV",
		InvoiceCounter: 1000,
		MaxEmployees:   2,
	}
	if err := dbConn.Create(&org).Error; err != nil {
		t.Fatalf("failed to seed organization: %v", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2hunter2"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	owner := domain.User{
		ID:           node.Generate(),
		OrgID:        org.ID,
		Username:     "anna",
		PasswordHash: string(hash),
		Role:         orgcontext.RoleOwner,
		FullName:     "Anna Jansen",
		IsActive:     true,
	}
	if err := dbConn.Create(&owner).Error; err != nil {
		t.Fatalf("failed to seed owner: %v", err)
	}

	svc := New(Params{
		DB:      dbConn,
		Log:     zap.NewNop(),
		GenID:   node,
		Clock:   clk,
		Config:  config.Config{SessionTTLHours: 72},
		Repo:    repository.Provide(),
		OrgRepo: orgrepository.Provide(),
	})
	return svc, dbConn, org, clk
}

func staffCtx(org orgdomain.Organization) context.Context {
	return orgcontext.WithOrgID(context.Background(), org.ID)
}

func TestLoginAndAuthenticate(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	resp, err := svc.Login(context.Background(), domain.LoginRequest{Username: "  Anna ", Password: "hunter2hunter2"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("expected a session token")
	}
	if !resp.Principal.IsOwner() {
		t.Fatalf("principal role = %q, want owner", resp.Principal.Role)
	}

	principal, err := svc.Authenticate(context.Background(), resp.Token)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if principal.Username != "anna" {
		t.Fatalf("principal username = %q", principal.Username)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	if _, err := svc.Login(context.Background(), domain.LoginRequest{Username: "anna", Password: "wrong"}); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Login(context.Background(), domain.LoginRequest{Username: "ghost", Password: "hunter2hunter2"}); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("unknown user: expected ErrInvalidCredentials, got %v", err)
	}
}

func TestSessionExpiry(t *testing.T) {
	svc, _, _, clk := newTestService(t)

	resp, err := svc.Login(context.Background(), domain.LoginRequest{Username: "anna", Password: "hunter2hunter2"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	clk.now = clk.now.Add(73 * time.Hour)
	if _, err := svc.Authenticate(context.Background(), resp.Token); !errors.Is(err, domain.ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
}

func TestLogoutKillsSession(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	resp, err := svc.Login(context.Background(), domain.LoginRequest{Username: "anna", Password: "hunter2hunter2"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := svc.Logout(context.Background(), resp.Token); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := svc.Authenticate(context.Background(), resp.Token); !errors.Is(err, domain.ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired after logout, got %v", err)
	}
}

func TestCreateEmployeeEnforcesSeatCap(t *testing.T) {
	svc, _, org, _ := newTestService(t)
	ctx := staffCtx(org)

	if _, err := svc.CreateEmployee(ctx, domain.CreateEmployeeRequest{Username: "bob", Password: "short"}); !errors.Is(err, domain.ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}

	// The owner occupies one of the two seats.
	if _, err := svc.CreateEmployee(ctx, domain.CreateEmployeeRequest{Username: "bob", Password: "password123", FullName: "Bob"}); err != nil {
		t.Fatalf("create employee: %v", err)
	}
	if _, err := svc.CreateEmployee(ctx, domain.CreateEmployeeRequest{Username: "carol", Password: "password123"}); !errors.Is(err, domain.ErrMaxEmployees) {
		t.Fatalf("expected ErrMaxEmployees, got %v", err)
	}
}

func TestCreateEmployeeDuplicateUsername(t *testing.T) {
	svc, _, org, _ := newTestService(t)
	ctx := staffCtx(org)

	if _, err := svc.CreateEmployee(ctx, domain.CreateEmployeeRequest{Username: "Anna", Password: "password123"}); !errors.Is(err, domain.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestOwnerCannotBeDeactivatedOrDeleted(t *testing.T) {
	svc, dbConn, org, _ := newTestService(t)
	ctx := staffCtx(org)

	var owner domain.User
	if err := dbConn.Raw(`SELECT * FROM users WHERE org_id = ? AND role = ?`, org.ID, orgcontext.RoleOwner).
		Scan(&owner).Error; err != nil || owner.ID == 0 {
		t.Fatalf("owner lookup failed: %v", err)
	}

	inactive := false
	if _, err := svc.UpdateEmployee(ctx, owner.ID, domain.UpdateEmployeeRequest{IsActive: &inactive}); !errors.Is(err, domain.ErrOwnerImmutable) {
		t.Fatalf("deactivate owner: expected ErrOwnerImmutable, got %v", err)
	}
	if err := svc.DeleteEmployee(ctx, owner.ID); !errors.Is(err, domain.ErrOwnerImmutable) {
		t.Fatalf("delete owner: expected ErrOwnerImmutable, got %v", err)
	}
}

func TestDeactivationKillsLiveSessions(t *testing.T) {
	svc, _, org, _ := newTestService(t)
	ctx := staffCtx(org)

	employee, err := svc.CreateEmployee(ctx, domain.CreateEmployeeRequest{Username: "bob", Password: "password123"})
	if err != nil {
		t.Fatalf("create employee: %v", err)
	}
	resp, err := svc.Login(context.Background(), domain.LoginRequest{Username: "bob", Password: "password123"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	inactive := false
	if _, err := svc.UpdateEmployee(ctx, employee.ID, domain.UpdateEmployeeRequest{IsActive: &inactive}); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, err := svc.Authenticate(context.Background(), resp.Token); !errors.Is(err, domain.ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired after deactivation, got %v", err)
	}
}
