package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	authdomain "github.com/quotedesk/quotedesk/internal/auth/domain"
	"github.com/quotedesk/quotedesk/internal/calendar/domain"
	"github.com/quotedesk/quotedesk/internal/calendar/repository"
	"github.com/quotedesk/quotedesk/internal/config"
	"github.com/quotedesk/quotedesk/internal/orgcontext"
	orgdomain "github.com/quotedesk/quotedesk/internal/organization/domain"
	orgrepository "github.com/quotedesk/quotedesk/internal/organization/repository"
	orgservice "github.com/quotedesk/quotedesk/internal/organization/service"
	"github.com/quotedesk/quotedesk/pkg/db"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

type fixture struct {
	db   *gorm.DB
	node *snowflake.Node
	svc  domain.Service
	org  orgdomain.Organization
}

// monday is a Monday with bookable hours in the seeded schedule.
var monday = time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dbConn, err := db.NewTest()
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	if err := dbConn.AutoMigrate(&orgdomain.Organization{}, &authdomain.User{}, &domain.Event{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("failed to create snowflake node: %v", err)
	}
	log := zap.NewNop()
	clk := &fakeClock{now: monday.Add(7 * time.Hour)}

	org := orgdomain.Organization{
		ID:             node.Generate(),
		Name:           "Jansen Schilderwerken",
		Slug:           "jansen",
		InvoicePrefix:  "INV",
		InvoiceCounter: 1000,
		MaxEmployees:   3,
		OpeningHours:   datatypes.JSON(`{"monday":{"enabled":true,"open":"09:00","close":"11:00"}}`),
	}
	if err := dbConn.Create(&org).Error; err != nil {
		t.Fatalf("failed to seed organization: %v", err)
	}

	orgSvc := orgservice.New(orgservice.Params{
		DB: dbConn, Log: log, GenID: node, Repo: orgrepository.Provide(),
	})
	svc := New(Params{
		DB: dbConn, Log: log, GenID: node, Clock: clk,
		Pricing: config.StaticPricingDefaults(config.DefaultPricingDefaults()),
		Repo:    repository.Provide(),
		OrgSvc:  orgSvc,
	})
	return &fixture{db: dbConn, node: node, svc: svc, org: org}
}

func (f *fixture) staffCtx() context.Context {
	return orgcontext.WithOrgID(context.Background(), f.org.ID)
}

func (f *fixture) seedStaff(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		user := authdomain.User{
			ID:           f.node.Generate(),
			OrgID:        f.org.ID,
			Username:     fmt.Sprintf("staff%d", i),
			PasswordHash: "x",
			Role:         orgcontext.RoleStaff,
			IsActive:     true,
		}
		if err := f.db.Create(&user).Error; err != nil {
			t.Fatalf("seed staff: %v", err)
		}
	}
}

func (f *fixture) book(t *testing.T, start time.Time, employee *snowflake.ID) domain.Event {
	t.Helper()
	event, err := f.svc.Create(f.staffCtx(), domain.CreateEventRequest{
		Type:       domain.TypeBooked,
		Title:      "Job",
		StartTime:  start,
		EndTime:    start.Add(time.Hour),
		EmployeeID: employee,
	})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	return event
}

func (f *fixture) blockDay(t *testing.T, day time.Time, employee *snowflake.ID) domain.Event {
	t.Helper()
	event, err := f.svc.Create(f.staffCtx(), domain.CreateEventRequest{
		Type:       domain.TypeBlocked,
		Title:      "Away",
		StartTime:  day,
		AllDay:     true,
		EmployeeID: employee,
	})
	if err != nil {
		t.Fatalf("create all-day event: %v", err)
	}
	return event
}

func TestCreateValidatesTypeAndRange(t *testing.T) {
	f := newFixture(t)
	start := monday.Add(9 * time.Hour)

	_, err := f.svc.Create(f.staffCtx(), domain.CreateEventRequest{
		Type: "lunch", Title: "x", StartTime: start, EndTime: start.Add(time.Hour),
	})
	if !errors.Is(err, domain.ErrInvalidType) {
		t.Fatalf("expected ErrInvalidType, got %v", err)
	}

	_, err = f.svc.Create(f.staffCtx(), domain.CreateEventRequest{
		Type: domain.TypeBooked, Title: "x", StartTime: start, EndTime: start.Add(-time.Hour),
	})
	if !errors.Is(err, domain.ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}

	// A missing end time defaults to one slot.
	event, err := f.svc.Create(f.staffCtx(), domain.CreateEventRequest{
		Type: domain.TypeBooked, Title: "x", StartTime: start,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !event.EndTime.Equal(start.Add(time.Hour)) {
		t.Fatalf("end = %v, want one slot after start", event.EndTime)
	}
}

func TestBlockedDatesRequireAllStaffAwayAllDay(t *testing.T) {
	f := newFixture(t)
	f.seedStaff(t, 2)

	anna := f.node.Generate()
	bob := f.node.Generate()
	f.blockDay(t, monday, &anna)

	from, to := monday, monday.AddDate(0, 0, 7)
	blocked, err := f.svc.BlockedDates(context.Background(), f.org.ID, from, to)
	if err != nil {
		t.Fatalf("blocked dates: %v", err)
	}
	if len(blocked) != 0 {
		t.Fatalf("one of two staff away, expected no blocked dates, got %v", blocked)
	}

	f.blockDay(t, monday, &bob)
	blocked, err = f.svc.BlockedDates(context.Background(), f.org.ID, from, to)
	if err != nil {
		t.Fatalf("blocked dates: %v", err)
	}
	if len(blocked) != 1 || blocked[0] != "2025-06-02" {
		t.Fatalf("expected 2025-06-02 blocked, got %v", blocked)
	}
}

func TestTimedBookingsDoNotBlockTheDate(t *testing.T) {
	f := newFixture(t)

	// Every bookable slot of the solo operator's day is taken, yet the date
	// itself stays open; only all-day events block dates.
	f.book(t, monday.Add(9*time.Hour), nil)
	f.book(t, monday.Add(10*time.Hour), nil)

	blocked, err := f.svc.BlockedDates(context.Background(), f.org.ID, monday, monday.AddDate(0, 0, 7))
	if err != nil {
		t.Fatalf("blocked dates: %v", err)
	}
	if len(blocked) != 0 {
		t.Fatalf("timed bookings must not block a date, got %v", blocked)
	}

	f.blockDay(t, monday, nil)
	blocked, err = f.svc.BlockedDates(context.Background(), f.org.ID, monday, monday.AddDate(0, 0, 7))
	if err != nil {
		t.Fatalf("blocked dates: %v", err)
	}
	if len(blocked) != 1 || blocked[0] != "2025-06-02" {
		t.Fatalf("expected 2025-06-02 blocked, got %v", blocked)
	}
}

func TestRequestedEventsNeverBlock(t *testing.T) {
	f := newFixture(t)

	if err := f.svc.RecordRequested(context.Background(), nil, f.org.ID, f.node.Generate(), "Piet", monday.Add(9*time.Hour), 0); err != nil {
		t.Fatalf("record requested: %v", err)
	}

	blocked, err := f.svc.BlockedDates(context.Background(), f.org.ID, monday, monday.AddDate(0, 0, 7))
	if err != nil {
		t.Fatalf("blocked dates: %v", err)
	}
	if len(blocked) != 0 {
		t.Fatalf("requested slot must not block, got %v", blocked)
	}
}

func TestDayAvailabilityExcludesTakenSlots(t *testing.T) {
	f := newFixture(t)

	// Single implicit staff member (floor of one): a booking takes the slot.
	f.book(t, monday.Add(9*time.Hour), nil)

	availability, err := f.svc.DayAvailability(context.Background(), f.org.ID, "2025-06-02")
	if err != nil {
		t.Fatalf("day availability: %v", err)
	}
	if len(availability.Slots) != 1 || availability.Slots[0] != "10:00" {
		t.Fatalf("free slots = %v, want [10:00]", availability.Slots)
	}
	if availability.FullyBusy {
		t.Fatal("day not fully busy yet")
	}

	f.book(t, monday.Add(10*time.Hour), nil)
	availability, err = f.svc.DayAvailability(context.Background(), f.org.ID, "2025-06-02")
	if err != nil {
		t.Fatalf("day availability: %v", err)
	}
	if !availability.FullyBusy || len(availability.Slots) != 0 {
		t.Fatalf("expected fully busy day, got %+v", availability)
	}

	if _, err := f.svc.DayAvailability(context.Background(), f.org.ID, "02-06-2025"); !errors.Is(err, domain.ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}

func TestDayOutsideScheduleHasNoSlots(t *testing.T) {
	f := newFixture(t)

	// 2025-06-03 is a Tuesday, which the schedule does not enable.
	availability, err := f.svc.DayAvailability(context.Background(), f.org.ID, "2025-06-03")
	if err != nil {
		t.Fatalf("day availability: %v", err)
	}
	if len(availability.Slots) != 0 {
		t.Fatalf("expected no slots on a closed day, got %v", availability.Slots)
	}
	if availability.FullyBusy {
		t.Fatal("a closed day is not fully busy")
	}
}

func TestPromoteRequestedReplacesWish(t *testing.T) {
	f := newFixture(t)
	quotationID := f.node.Generate()

	if err := f.svc.RecordRequested(context.Background(), nil, f.org.ID, quotationID, "Piet", monday.Add(9*time.Hour), 0); err != nil {
		t.Fatalf("record requested: %v", err)
	}
	if err := f.svc.PromoteRequested(context.Background(), nil, f.org.ID, quotationID, "Piet"); err != nil {
		t.Fatalf("promote: %v", err)
	}

	events, err := f.svc.List(f.staffCtx(), monday, monday.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 1 || events[0].Type != domain.TypeBooked {
		t.Fatalf("expected a single booked event, got %+v", events)
	}
	if events[0].AllDay {
		t.Fatal("a timed wish must promote to a timed booking")
	}

	// Promoting a quotation without a wish is a no-op.
	if err := f.svc.PromoteRequested(context.Background(), nil, f.org.ID, f.node.Generate(), "Piet"); err != nil {
		t.Fatalf("promote without request: %v", err)
	}
}

func TestDateOnlyWishIsAllDay(t *testing.T) {
	f := newFixture(t)
	quotationID := f.node.Generate()

	// A preferred date at midnight carries no clock time and becomes an
	// all-day request; promotion keeps it all-day.
	if err := f.svc.RecordRequested(context.Background(), nil, f.org.ID, quotationID, "Piet", monday, 0); err != nil {
		t.Fatalf("record requested: %v", err)
	}
	if err := f.svc.PromoteRequested(context.Background(), nil, f.org.ID, quotationID, "Piet"); err != nil {
		t.Fatalf("promote: %v", err)
	}

	events, err := f.svc.List(f.staffCtx(), monday, monday.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 1 || !events[0].AllDay {
		t.Fatalf("expected a single all-day booking, got %+v", events)
	}
	if !events[0].EndTime.Equal(monday.AddDate(0, 0, 1)) {
		t.Fatalf("all-day booking ends at %v, want next midnight", events[0].EndTime)
	}

	blocked, err := f.svc.BlockedDates(context.Background(), f.org.ID, monday, monday.AddDate(0, 0, 7))
	if err != nil {
		t.Fatalf("blocked dates: %v", err)
	}
	if len(blocked) != 1 || blocked[0] != "2025-06-02" {
		t.Fatalf("solo operator's all-day booking must block the date, got %v", blocked)
	}
}
