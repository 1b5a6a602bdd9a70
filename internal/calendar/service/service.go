package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/quotedesk/quotedesk/internal/calendar/domain"
	"github.com/quotedesk/quotedesk/internal/clock"
	"github.com/quotedesk/quotedesk/internal/config"
	"github.com/quotedesk/quotedesk/internal/orgcontext"
	orgdomain "github.com/quotedesk/quotedesk/internal/organization/domain"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Pricing *config.PricingDefaultsHolder
	Repo    domain.Repository
	OrgSvc  orgdomain.Service
}

type service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	pricing *config.PricingDefaultsHolder
	repo    domain.Repository
	orgSvc  orgdomain.Service
}

func New(p Params) domain.Service {
	return &service{
		db:      p.DB,
		log:     p.Log.Named("calendar.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		pricing: p.Pricing,
		repo:    p.Repo,
		orgSvc:  p.OrgSvc,
	}
}

func (s *service) Create(ctx context.Context, req domain.CreateEventRequest) (domain.Event, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return domain.Event{}, orgdomain.ErrInvalidOrganization
	}

	eventType := strings.TrimSpace(req.Type)
	if eventType == "" {
		eventType = domain.TypeBooked
	}
	if eventType != domain.TypeBooked && eventType != domain.TypeBlocked && eventType != domain.TypeRequested {
		return domain.Event{}, domain.ErrInvalidType
	}

	start := req.StartTime.UTC()
	end := req.EndTime
	if req.AllDay {
		// All-day events snap to the calendar date regardless of the
		// submitted clock time.
		start = start.Truncate(24 * time.Hour)
		end = start.AddDate(0, 0, 1)
	} else if end.IsZero() {
		end = start.Add(time.Duration(s.pricing.Get().SlotMinutes) * time.Minute)
	}
	if !end.After(start) {
		return domain.Event{}, domain.ErrInvalidRange
	}

	now := s.clock.Now()
	event := &domain.Event{
		ID:           s.genID.Generate(),
		OrgID:        orgID,
		QuotationID:  req.QuotationID,
		EmployeeID:   req.EmployeeID,
		Type:         eventType,
		Title:        strings.TrimSpace(req.Title),
		CustomerName: strings.TrimSpace(req.CustomerName),
		StartTime:    start,
		EndTime:      end.UTC(),
		AllDay:       req.AllDay,
		Notes:        strings.TrimSpace(req.Notes),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Insert(ctx, s.db, event); err != nil {
		return domain.Event{}, err
	}

	s.log.Info("calendar event created",
		zap.Int64("org_id", orgID.Int64()),
		zap.Int64("event_id", event.ID.Int64()),
		zap.String("type", event.Type),
	)
	return *event, nil
}

func (s *service) List(ctx context.Context, from, to time.Time) ([]*domain.Event, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, orgdomain.ErrInvalidOrganization
	}
	if !to.After(from) {
		return nil, domain.ErrInvalidRange
	}
	return s.repo.ListRange(ctx, s.db, orgID, from, to)
}

func (s *service) Update(ctx context.Context, id snowflake.ID, req domain.UpdateEventRequest) (domain.Event, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return domain.Event{}, orgdomain.ErrInvalidOrganization
	}

	event, err := s.repo.FindByID(ctx, s.db, orgID, id)
	if err != nil {
		return domain.Event{}, err
	}

	fields := map[string]any{}
	if req.Title != nil {
		fields["title"] = strings.TrimSpace(*req.Title)
	}
	if req.Type != nil {
		if *req.Type != domain.TypeBooked && *req.Type != domain.TypeBlocked && *req.Type != domain.TypeRequested {
			return domain.Event{}, domain.ErrInvalidType
		}
		fields["type"] = *req.Type
	}
	if req.EmployeeID != nil {
		fields["employee_id"] = *req.EmployeeID
	}

	start, end := event.StartTime, event.EndTime
	if req.StartTime != nil {
		start = req.StartTime.UTC()
		fields["start_time"] = start
	}
	if req.EndTime != nil {
		end = req.EndTime.UTC()
		fields["end_time"] = end
	}
	if !end.After(start) {
		return domain.Event{}, domain.ErrInvalidRange
	}
	if req.AllDay != nil {
		fields["all_day"] = *req.AllDay
	}
	if req.Notes != nil {
		fields["notes"] = strings.TrimSpace(*req.Notes)
	}

	if err := s.repo.Update(ctx, s.db, orgID, id, fields); err != nil {
		return domain.Event{}, err
	}

	updated, err := s.repo.FindByID(ctx, s.db, orgID, id)
	if err != nil {
		return domain.Event{}, err
	}
	return *updated, nil
}

func (s *service) Delete(ctx context.Context, id snowflake.ID) error {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return orgdomain.ErrInvalidOrganization
	}
	if _, err := s.repo.FindByID(ctx, s.db, orgID, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, s.db, orgID, id)
}

func (s *service) BlockedDates(ctx context.Context, orgID snowflake.ID, from, to time.Time) ([]string, error) {
	if !to.After(from) {
		return nil, domain.ErrInvalidRange
	}

	events, err := s.repo.ListRange(ctx, s.db, orgID, from, to)
	if err != nil {
		return nil, err
	}
	staffCount, err := s.orgSvc.StaffCount(ctx, orgID)
	if err != nil {
		return nil, err
	}
	return domain.OccupiedDates(events, staffCount, time.UTC), nil
}

func (s *service) DayAvailability(ctx context.Context, orgID snowflake.ID, date string) (domain.Availability, error) {
	day, err := time.ParseInLocation("2006-01-02", date, time.UTC)
	if err != nil {
		return domain.Availability{}, domain.ErrInvalidDate
	}

	org, err := s.orgSvc.ResolveByIDOrSlug(ctx, orgID.String())
	if err != nil {
		return domain.Availability{}, err
	}
	schedule, err := org.Schedule()
	if err != nil {
		return domain.Availability{}, err
	}

	events, err := s.repo.ListRange(ctx, s.db, orgID, day, day.AddDate(0, 0, 1))
	if err != nil {
		return domain.Availability{}, err
	}
	staffCount, err := s.orgSvc.StaffCount(ctx, orgID)
	if err != nil {
		return domain.Availability{}, err
	}

	taken := domain.BookedTimes(events, staffCount, date, time.UTC)
	all := domain.DaySlots(schedule, day, s.pricing.Get().SlotMinutes)

	takenSet := map[string]bool{}
	for _, t := range taken {
		takenSet[t] = true
	}
	free := make([]string, 0, len(all))
	for _, slot := range all {
		if !takenSet[slot] {
			free = append(free, slot)
		}
	}

	return domain.Availability{
		Date:       date,
		Slots:      free,
		FullyBusy:  len(all) > 0 && len(free) == 0,
		TakenTimes: taken,
	}, nil
}

func (s *service) RecordRequested(ctx context.Context, tx *gorm.DB, orgID, quotationID snowflake.ID, customerName string, at time.Time, slotMinutes int) error {
	if tx == nil {
		tx = s.db
	}
	if slotMinutes <= 0 {
		slotMinutes = s.pricing.Get().SlotMinutes
	}

	// A preferred date without a clock time is an all-day wish.
	start := at.UTC()
	allDay := start.Truncate(24 * time.Hour).Equal(start)
	end := start.Add(time.Duration(slotMinutes) * time.Minute)
	if allDay {
		end = start.AddDate(0, 0, 1)
	}

	now := s.clock.Now()
	qid := quotationID
	event := &domain.Event{
		ID:           s.genID.Generate(),
		OrgID:        orgID,
		QuotationID:  &qid,
		Type:         domain.TypeRequested,
		Title:        "Requested: " + customerName,
		CustomerName: customerName,
		StartTime:    start,
		EndTime:      end,
		AllDay:       allDay,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return s.repo.Insert(ctx, tx, event)
}

// PromoteRequested turns the prospect's requested slot into a booked event.
// A quote accepted without a preferred date simply books nothing.
func (s *service) PromoteRequested(ctx context.Context, tx *gorm.DB, orgID, quotationID snowflake.ID, customerName string) error {
	if tx == nil {
		tx = s.db
	}

	requested, err := s.repo.FindByQuotation(ctx, tx, orgID, quotationID, domain.TypeRequested)
	if err != nil {
		if errors.Is(err, domain.ErrEventNotFound) {
			return nil
		}
		return err
	}

	if err := s.repo.DeleteByQuotation(ctx, tx, orgID, quotationID, domain.TypeRequested); err != nil {
		return err
	}

	now := s.clock.Now()
	qid := quotationID
	booked := &domain.Event{
		ID:           s.genID.Generate(),
		OrgID:        orgID,
		QuotationID:  &qid,
		Type:         domain.TypeBooked,
		Title:        "Booked: " + customerName,
		CustomerName: customerName,
		StartTime:    requested.StartTime,
		EndTime:      requested.EndTime,
		AllDay:       requested.AllDay,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return s.repo.Insert(ctx, tx, booked)
}

func (s *service) DropRequested(ctx context.Context, tx *gorm.DB, orgID, quotationID snowflake.ID) error {
	if tx == nil {
		tx = s.db
	}
	return s.repo.DeleteByQuotation(ctx, tx, orgID, quotationID, domain.TypeRequested)
}
