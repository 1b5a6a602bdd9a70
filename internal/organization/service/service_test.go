package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/gorm"

	authdomain "github.com/quotedesk/quotedesk/internal/auth/domain"
	"github.com/quotedesk/quotedesk/internal/orgcontext"
	"github.com/quotedesk/quotedesk/internal/organization/domain"
	"github.com/quotedesk/quotedesk/internal/organization/repository"
	"github.com/quotedesk/quotedesk/pkg/db"
)

func newTestService(t *testing.T) (domain.Service, *gorm.DB, domain.Organization) {
	t.Helper()

	dbConn, err := db.NewTest()
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	if err := dbConn.AutoMigrate(&domain.Organization{}, &authdomain.User{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("failed to create snowflake node: %v", err)
	}

	org := domain.Organization{
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

	svc := New(Params{DB: dbConn, Log: zap.NewNop(), GenID: node, Repo: repository.Provide()})
	return svc, dbConn, org
}

func TestResolveByIDOrSlug(t *testing.T) {
	svc, _, org := newTestService(t)
	ctx := context.Background()

	bySlug, err := svc.ResolveByIDOrSlug(ctx, "jansen")
	if err != nil || bySlug.ID != org.ID {
		t.Fatalf("resolve by slug: org=%v err=%v", bySlug.ID, err)
	}
	byID, err := svc.ResolveByIDOrSlug(ctx, org.ID.String())
	if err != nil || byID.ID != org.ID {
		t.Fatalf("resolve by id: org=%v err=%v", byID.ID, err)
	}
	if _, err := svc.ResolveByIDOrSlug(ctx, "no-such-org"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAllocateInvoiceNumberIsSequential(t *testing.T) {
	svc, _, org := newTestService(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		number, err := svc.AllocateInvoiceNumber(ctx, nil, org.ID)
		if err != nil {
			t.Fatalf("allocate: %v", err)
		}
		want := fmt.Sprintf("INV-%d", 1000+i)
		if number != want {
			t.Fatalf("number = %q, want %q", number, want)
		}
	}
}

func TestUpdateValidatesScheduleAndSlug(t *testing.T) {
	svc, _, org := newTestService(t)
	ctx := orgcontext.WithOrgID(context.Background(), org.ID)

	badDay := domain.WeekSchedule{"moonday": {Enabled: true, Open: "09:00", Close: "17:00"}}
	if _, err := svc.Update(ctx, domain.UpdateOrganizationRequest{OpeningHours: &badDay}); !errors.Is(err, domain.ErrInvalidSchedule) {
		t.Fatalf("bad weekday: expected ErrInvalidSchedule, got %v", err)
	}

	inverted := domain.WeekSchedule{"monday": {Enabled: true, Open: "17:00", Close: "09:00"}}
	if _, err := svc.Update(ctx, domain.UpdateOrganizationRequest{OpeningHours: &inverted}); !errors.Is(err, domain.ErrInvalidSchedule) {
		t.Fatalf("inverted hours: expected ErrInvalidSchedule, got %v", err)
	}

	emptySlug := "  !!  "
	if _, err := svc.Update(ctx, domain.UpdateOrganizationRequest{Slug: &emptySlug}); !errors.Is(err, domain.ErrInvalidSlug) {
		t.Fatalf("expected ErrInvalidSlug, got %v", err)
	}

	valid := domain.WeekSchedule{
		"monday":   {Enabled: true, Open: "09:00", Close: "17:00"},
		"saturday": {Enabled: false},
	}
	newSlug := "Jansen Painting"
	updated, err := svc.Update(ctx, domain.UpdateOrganizationRequest{OpeningHours: &valid, Slug: &newSlug})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Slug != "jansen-painting" {
		t.Fatalf("slug = %q, want jansen-painting", updated.Slug)
	}
	schedule, err := updated.Schedule()
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if !schedule["monday"].Enabled || schedule["monday"].Close != "17:00" {
		t.Fatalf("unexpected schedule %+v", schedule)
	}
}

func TestStaffCountFloorsAtOne(t *testing.T) {
	svc, dbConn, org := newTestService(t)
	ctx := context.Background()

	count, err := svc.StaffCount(ctx, org.ID)
	if err != nil || count != 1 {
		t.Fatalf("empty org staff count = %d err=%v, want 1", count, err)
	}

	for i := 0; i < 3; i++ {
		user := authdomain.User{
			ID:           snowflake.ID(i + 1),
			OrgID:        org.ID,
			Username:     fmt.Sprintf("staff%d", i),
			PasswordHash: "x",
			Role:         orgcontext.RoleStaff,
			IsActive:     true,
		}
		if err := dbConn.Create(&user).Error; err != nil {
			t.Fatalf("seed user: %v", err)
		}
	}
	// Deactivated staff do not count toward occupancy.
	if err := dbConn.Exec(`UPDATE users SET is_active = 0 WHERE id = 3`).Error; err != nil {
		t.Fatalf("deactivate user: %v", err)
	}

	count, err = svc.StaffCount(ctx, org.ID)
	if err != nil || count != 2 {
		t.Fatalf("staff count = %d err=%v, want 2", count, err)
	}
}
