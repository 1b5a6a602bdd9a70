package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/quotedesk/quotedesk/internal/clock"
	"github.com/quotedesk/quotedesk/internal/notification/domain"
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
		log:   p.Log.Named("notification.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *service) Notify(ctx context.Context, tx *gorm.DB, orgID snowflake.ID, notifType, title, message string, relatedID *snowflake.ID) error {
	if tx == nil {
		tx = s.db
	}
	n := &domain.Notification{
		ID:        s.genID.Generate(),
		OrgID:     orgID,
		Type:      notifType,
		Title:     title,
		Message:   message,
		RelatedID: relatedID,
		CreatedAt: s.clock.Now(),
	}
	return s.repo.Insert(ctx, tx, n)
}

func (s *service) List(ctx context.Context, limit int) ([]*domain.Notification, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, orgdomain.ErrInvalidOrganization
	}
	return s.repo.ListByOrg(ctx, s.db, orgID, limit)
}

func (s *service) UnreadCount(ctx context.Context) (int64, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return 0, orgdomain.ErrInvalidOrganization
	}
	return s.repo.CountUnread(ctx, s.db, orgID)
}

func (s *service) MarkRead(ctx context.Context, id snowflake.ID) error {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return orgdomain.ErrInvalidOrganization
	}
	return s.repo.MarkRead(ctx, s.db, orgID, id)
}

func (s *service) MarkAllRead(ctx context.Context) (int64, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return 0, orgdomain.ErrInvalidOrganization
	}
	return s.repo.MarkAllRead(ctx, s.db, orgID)
}
