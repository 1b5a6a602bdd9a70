package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/quotedesk/quotedesk/internal/orgcontext"
	"github.com/quotedesk/quotedesk/internal/organization/domain"
	"github.com/quotedesk/quotedesk/pkg/db"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
}

type service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &service{
		db:    p.DB,
		log:   p.Log.Named("organization.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *service) Get(ctx context.Context) (domain.Organization, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return domain.Organization{}, domain.ErrInvalidOrganization
	}

	org, err := s.repo.FindByID(ctx, s.db, orgID)
	if err != nil {
		return domain.Organization{}, err
	}
	return *org, nil
}

func (s *service) Update(ctx context.Context, req domain.UpdateOrganizationRequest) (domain.Organization, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return domain.Organization{}, domain.ErrInvalidOrganization
	}

	fields := map[string]any{}
	setStr := func(col string, v *string) {
		if v != nil {
			fields[col] = strings.TrimSpace(*v)
		}
	}

	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return domain.Organization{}, domain.ErrInvalidName
		}
		fields["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Slug != nil {
		normalized := slug.Make(*req.Slug)
		if normalized == "" {
			return domain.Organization{}, domain.ErrInvalidSlug
		}
		fields["slug"] = normalized
	}
	setStr("logo_url", req.LogoURL)
	setStr("primary_color", req.PrimaryColor)
	setStr("accent_color", req.AccentColor)
	setStr("vat_number", req.VatNumber)
	setStr("kvk_number", req.KvkNumber)
	setStr("iban", req.IBAN)
	setStr("quote_footer", req.QuoteFooter)
	setStr("terms_conditions", req.TermsConditions)
	setStr("address", req.Address)
	setStr("phone", req.Phone)
	setStr("email", req.Email)
	setStr("website", req.Website)
	setStr("email_from_name", req.EmailFromName)
	setStr("smtp_host", req.SMTPHost)
	setStr("smtp_user", req.SMTPUser)
	setStr("smtp_pass", req.SMTPPass)
	setStr("smtp_from", req.SMTPFrom)
	if req.SMTPPort != nil {
		fields["smtp_port"] = *req.SMTPPort
	}
	if req.InvoicePrefix != nil {
		prefix := strings.ToUpper(strings.TrimSpace(*req.InvoicePrefix))
		if prefix == "" {
			prefix = "INV"
		}
		fields["invoice_prefix"] = prefix
	}
	if req.OpeningHours != nil {
		if err := validateSchedule(*req.OpeningHours); err != nil {
			return domain.Organization{}, err
		}
		raw, err := json.Marshal(*req.OpeningHours)
		if err != nil {
			return domain.Organization{}, domain.ErrInvalidSchedule
		}
		fields["opening_hours"] = raw
	}

	if err := s.repo.Update(ctx, s.db, orgID, fields); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.Organization{}, domain.ErrInvalidSlug
		}
		return domain.Organization{}, err
	}

	org, err := s.repo.FindByID(ctx, s.db, orgID)
	if err != nil {
		return domain.Organization{}, err
	}

	s.log.Info("organization updated",
		zap.Int64("org_id", orgID.Int64()),
		zap.Int("fields", len(fields)),
	)
	return *org, nil
}

func (s *service) ResolveByIDOrSlug(ctx context.Context, idOrSlug string) (domain.Organization, error) {
	idOrSlug = strings.TrimSpace(idOrSlug)
	if idOrSlug == "" {
		return domain.Organization{}, domain.ErrNotFound
	}

	if id, err := snowflake.ParseString(idOrSlug); err == nil && id > 0 {
		if org, err := s.repo.FindByID(ctx, s.db, id); err == nil {
			return *org, nil
		}
	}

	org, err := s.repo.FindBySlug(ctx, s.db, idOrSlug)
	if err != nil {
		return domain.Organization{}, err
	}
	return *org, nil
}

func (s *service) AllocateInvoiceNumber(ctx context.Context, tx *gorm.DB, orgID snowflake.ID) (string, error) {
	if tx == nil {
		tx = s.db
	}

	org, err := s.repo.FindByID(ctx, tx, orgID)
	if err != nil {
		return "", err
	}

	counter, err := s.repo.AllocateInvoiceCounter(ctx, tx, orgID)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%s-%d", org.InvoicePrefix, counter), nil
}

func (s *service) StaffCount(ctx context.Context, orgID snowflake.ID) (int, error) {
	count, err := s.repo.CountStaff(ctx, s.db, orgID)
	if err != nil {
		return 0, err
	}
	if count < 1 {
		count = 1
	}
	return count, nil
}

var weekdays = map[string]struct{}{
	"monday": {}, "tuesday": {}, "wednesday": {}, "thursday": {},
	"friday": {}, "saturday": {}, "sunday": {},
}

func validateSchedule(schedule domain.WeekSchedule) error {
	for day, hours := range schedule {
		if _, ok := weekdays[strings.ToLower(day)]; !ok {
			return domain.ErrInvalidSchedule
		}
		if !hours.Enabled {
			continue
		}
		open, okOpen := parseHour(hours.Open)
		close, okClose := parseHour(hours.Close)
		if !okOpen || !okClose || open >= close {
			return domain.ErrInvalidSchedule
		}
	}
	return nil
}

// parseHour accepts "HH:MM" and returns minutes since midnight.
func parseHour(v string) (int, bool) {
	parts := strings.Split(strings.TrimSpace(v), ":")
	if len(parts) != 2 {
		return 0, false
	}
	var h, m int
	if _, err := fmt.Sscanf(parts[0]+" "+parts[1], "%d %d", &h, &m); err != nil {
		return 0, false
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}
