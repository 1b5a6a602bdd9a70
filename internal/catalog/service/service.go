package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/quotedesk/quotedesk/internal/catalog/domain"
	"github.com/quotedesk/quotedesk/internal/clock"
	"github.com/quotedesk/quotedesk/internal/orgcontext"
	orgdomain "github.com/quotedesk/quotedesk/internal/organization/domain"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &service{
		db:    p.DB,
		log:   p.Log.Named("catalog.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *service) Create(ctx context.Context, req domain.CreateItemRequest) (domain.PriceMatrixItem, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return domain.PriceMatrixItem{}, orgdomain.ErrInvalidOrganization
	}
	if req.Price.IsNegative() {
		return domain.PriceMatrixItem{}, domain.ErrInvalidPrice
	}

	condition := strings.TrimSpace(req.DependsOnCondition)
	if condition == "" {
		condition = domain.ConditionAlways
	}
	if !domain.ValidCondition(condition) {
		return domain.PriceMatrixItem{}, domain.ErrInvalidCondition
	}

	now := s.clock.Now()
	item := &domain.PriceMatrixItem{
		ID:                 s.genID.Generate(),
		OrgID:              orgID,
		Name:               strings.TrimSpace(req.Name),
		Description:        strings.TrimSpace(req.Description),
		Price:              req.Price.Round(2),
		Unit:               strings.TrimSpace(req.Unit),
		Category:           strings.TrimSpace(req.Category),
		ImageURL:           strings.TrimSpace(req.ImageURL),
		SortOrder:          req.SortOrder,
		AllowQuantity:      req.AllowQuantity,
		IsOptional:         req.IsOptional,
		IsActive:           true,
		DependsOnCondition: condition,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if req.DependsOnItemID != nil {
		items, err := s.repo.ListByOrg(ctx, s.db, orgID, false)
		if err != nil {
			return domain.PriceMatrixItem{}, err
		}
		if err := domain.ValidateDependency(items, item.ID, *req.DependsOnItemID); err != nil {
			return domain.PriceMatrixItem{}, err
		}
		item.DependsOnItemID = req.DependsOnItemID
	}

	if err := s.repo.Insert(ctx, s.db, item); err != nil {
		return domain.PriceMatrixItem{}, err
	}

	s.log.Info("catalog item created",
		zap.Int64("org_id", orgID.Int64()),
		zap.Int64("item_id", item.ID.Int64()),
	)
	return *item, nil
}

func (s *service) Get(ctx context.Context, id snowflake.ID) (domain.PriceMatrixItem, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return domain.PriceMatrixItem{}, orgdomain.ErrInvalidOrganization
	}
	item, err := s.repo.FindByID(ctx, s.db, orgID, id)
	if err != nil {
		return domain.PriceMatrixItem{}, err
	}
	return *item, nil
}

func (s *service) List(ctx context.Context) ([]*domain.PriceMatrixItem, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, orgdomain.ErrInvalidOrganization
	}
	return s.repo.ListByOrg(ctx, s.db, orgID, false)
}

// ListActive serves the public quote and lead-form surfaces, which carry no
// principal in the context.
func (s *service) ListActive(ctx context.Context, orgID snowflake.ID) ([]*domain.PriceMatrixItem, error) {
	return s.repo.ListByOrg(ctx, s.db, orgID, true)
}

func (s *service) Update(ctx context.Context, id snowflake.ID, req domain.UpdateItemRequest) (domain.PriceMatrixItem, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return domain.PriceMatrixItem{}, orgdomain.ErrInvalidOrganization
	}

	if _, err := s.repo.FindByID(ctx, s.db, orgID, id); err != nil {
		return domain.PriceMatrixItem{}, err
	}

	fields := map[string]any{}
	if req.Name != nil {
		fields["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		fields["description"] = strings.TrimSpace(*req.Description)
	}
	if req.Price != nil {
		if req.Price.IsNegative() {
			return domain.PriceMatrixItem{}, domain.ErrInvalidPrice
		}
		fields["price"] = req.Price.Round(2)
	}
	if req.Unit != nil {
		fields["unit"] = strings.TrimSpace(*req.Unit)
	}
	if req.Category != nil {
		fields["category"] = strings.TrimSpace(*req.Category)
	}
	if req.ImageURL != nil {
		fields["image_url"] = strings.TrimSpace(*req.ImageURL)
	}
	if req.SortOrder != nil {
		fields["sort_order"] = *req.SortOrder
	}
	if req.AllowQuantity != nil {
		fields["allow_quantity"] = *req.AllowQuantity
	}
	if req.IsOptional != nil {
		fields["is_optional"] = *req.IsOptional
	}
	if req.IsActive != nil {
		fields["is_active"] = *req.IsActive
	}
	if req.DependsOnCondition != nil {
		if !domain.ValidCondition(*req.DependsOnCondition) {
			return domain.PriceMatrixItem{}, domain.ErrInvalidCondition
		}
		fields["depends_on_condition"] = *req.DependsOnCondition
	}

	switch {
	case req.ClearDependency:
		fields["depends_on_item_id"] = nil
		fields["depends_on_condition"] = domain.ConditionAlways
	case req.DependsOnItemID != nil:
		items, err := s.repo.ListByOrg(ctx, s.db, orgID, false)
		if err != nil {
			return domain.PriceMatrixItem{}, err
		}
		if err := domain.ValidateDependency(items, id, *req.DependsOnItemID); err != nil {
			return domain.PriceMatrixItem{}, err
		}
		fields["depends_on_item_id"] = *req.DependsOnItemID
	}

	if err := s.repo.Update(ctx, s.db, orgID, id, fields); err != nil {
		return domain.PriceMatrixItem{}, err
	}

	item, err := s.repo.FindByID(ctx, s.db, orgID, id)
	if err != nil {
		return domain.PriceMatrixItem{}, err
	}
	return *item, nil
}

func (s *service) Delete(ctx context.Context, id snowflake.ID) error {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return orgdomain.ErrInvalidOrganization
	}

	if _, err := s.repo.FindByID(ctx, s.db, orgID, id); err != nil {
		return err
	}

	// Dependents of a removed parent become independent instead of orphaned.
	if err := s.repo.ClearDependents(ctx, s.db, orgID, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, s.db, orgID, id); err != nil {
		return err
	}

	s.log.Info("catalog item deleted",
		zap.Int64("org_id", orgID.Int64()),
		zap.Int64("item_id", id.Int64()),
	)
	return nil
}
