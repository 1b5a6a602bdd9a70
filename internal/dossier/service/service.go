package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/quotedesk/quotedesk/internal/clock"
	"github.com/quotedesk/quotedesk/internal/dossier/domain"
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
		log:   p.Log.Named("dossier.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *service) EnsureForQuotation(ctx context.Context, tx *gorm.DB, req domain.EnsureRequest) (domain.Dossier, bool, error) {
	if tx == nil {
		tx = s.db
	}

	if existing, err := s.repo.FindByQuotation(ctx, tx, req.OrgID, req.QuotationID); err == nil {
		return *existing, false, nil
	}

	now := s.clock.Now()
	dossier := &domain.Dossier{
		ID:           s.genID.Generate(),
		OrgID:        req.OrgID,
		QuotationID:  req.QuotationID,
		ClientUserID: req.ClientUserID,
		Title:        strings.TrimSpace(req.Title),
		Status:       domain.StatusOpen,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Insert(ctx, tx, dossier); err != nil {
		return domain.Dossier{}, false, err
	}

	// The unique quotation constraint plus DO NOTHING means a concurrent
	// create may have won; the re-read settles it.
	winner, err := s.repo.FindByQuotation(ctx, tx, req.OrgID, req.QuotationID)
	if err != nil {
		return domain.Dossier{}, false, err
	}
	created := winner.ID == dossier.ID
	if created {
		s.log.Info("dossier created",
			zap.Int64("org_id", req.OrgID.Int64()),
			zap.Int64("dossier_id", dossier.ID.Int64()),
			zap.Int64("quotation_id", req.QuotationID.Int64()),
		)
	}
	return *winner, created, nil
}

func (s *service) List(ctx context.Context) ([]*domain.Dossier, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, orgdomain.ErrInvalidOrganization
	}

	// Staff members only see dossiers for quotations assigned to them.
	var assignedTo *snowflake.ID
	if principal, ok := orgcontext.PrincipalFromContext(ctx); ok && !principal.IsOwner() {
		assigned := principal.UserID
		assignedTo = &assigned
	}
	return s.repo.ListByOrg(ctx, s.db, orgID, assignedTo)
}

func (s *service) Get(ctx context.Context, id snowflake.ID) (domain.Detail, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return domain.Detail{}, orgdomain.ErrInvalidOrganization
	}
	return s.detail(ctx, orgID, id, domain.SenderClient)
}

func (s *service) detail(ctx context.Context, orgID, id snowflake.ID, unreadFrom string) (domain.Detail, error) {
	dossier, err := s.repo.FindByID(ctx, s.db, orgID, id)
	if err != nil {
		return domain.Detail{}, err
	}
	entries, err := s.repo.ListEntries(ctx, s.db, orgID, id)
	if err != nil {
		return domain.Detail{}, err
	}
	messages, err := s.repo.ListMessages(ctx, s.db, orgID, id)
	if err != nil {
		return domain.Detail{}, err
	}
	unread, err := s.repo.CountUnread(ctx, s.db, orgID, id, unreadFrom)
	if err != nil {
		return domain.Detail{}, err
	}
	return domain.Detail{Dossier: *dossier, Entries: entries, Messages: messages, Unread: unread}, nil
}

func (s *service) Complete(ctx context.Context, id snowflake.ID) (domain.Dossier, error) {
	return s.transition(ctx, id, domain.StatusCompleted, func(fields map[string]any) {
		fields["completed_at"] = s.clock.Now()
	})
}

func (s *service) transition(ctx context.Context, id snowflake.ID, to domain.Status, decorate func(map[string]any)) (domain.Dossier, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return domain.Dossier{}, orgdomain.ErrInvalidOrganization
	}

	dossier, err := s.repo.FindByID(ctx, s.db, orgID, id)
	if err != nil {
		return domain.Dossier{}, err
	}
	if _, err := domain.Transition(dossier.Status, to); err != nil {
		return domain.Dossier{}, err
	}

	fields := map[string]any{"status": to}
	if decorate != nil {
		decorate(fields)
	}
	if err := s.repo.Update(ctx, s.db, orgID, id, fields); err != nil {
		return domain.Dossier{}, err
	}

	updated, err := s.repo.FindByID(ctx, s.db, orgID, id)
	if err != nil {
		return domain.Dossier{}, err
	}

	s.log.Info("dossier status changed",
		zap.Int64("org_id", orgID.Int64()),
		zap.Int64("dossier_id", id.Int64()),
		zap.String("from", string(dossier.Status)),
		zap.String("to", string(to)),
	)
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

func (s *service) AddEntry(ctx context.Context, tx *gorm.DB, orgID snowflake.ID, req domain.AddEntryRequest) (domain.Entry, error) {
	if tx == nil {
		tx = s.db
	}

	if _, err := s.repo.FindByID(ctx, tx, orgID, req.DossierID); err != nil {
		return domain.Entry{}, err
	}

	kind := req.Kind
	if kind == "" {
		kind = domain.EntryNote
	}

	entry := &domain.Entry{
		ID:        s.genID.Generate(),
		DossierID: req.DossierID,
		OrgID:     orgID,
		Kind:      kind,
		Title:     strings.TrimSpace(req.Title),
		Body:      req.Body,
		FileName:  req.FileName,
		FilePath:  req.FilePath,
		CreatedBy: req.CreatedBy,
		CreatedAt: s.clock.Now(),
	}
	if err := s.repo.InsertEntry(ctx, tx, entry); err != nil {
		return domain.Entry{}, err
	}
	return *entry, nil
}

func (s *service) DeleteEntry(ctx context.Context, dossierID, entryID snowflake.ID) error {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return orgdomain.ErrInvalidOrganization
	}
	return s.repo.DeleteEntry(ctx, s.db, orgID, dossierID, entryID)
}

func (s *service) PostMessage(ctx context.Context, orgID snowflake.ID, req domain.PostMessageRequest) (domain.Message, error) {
	if req.SenderType != domain.SenderClient && req.SenderType != domain.SenderStaff {
		return domain.Message{}, domain.ErrInvalidSender
	}
	if _, err := s.repo.FindByID(ctx, s.db, orgID, req.DossierID); err != nil {
		return domain.Message{}, err
	}

	message := &domain.Message{
		ID:         s.genID.Generate(),
		DossierID:  req.DossierID,
		OrgID:      orgID,
		SenderType: req.SenderType,
		SenderName: strings.TrimSpace(req.SenderName),
		Body:       strings.TrimSpace(req.Body),
		CreatedAt:  s.clock.Now(),
	}
	if err := s.repo.InsertMessage(ctx, s.db, message); err != nil {
		return domain.Message{}, err
	}
	return *message, nil
}

// MarkMessagesRead marks the messages *sent by the other party* as read: a
// staff reader clears client messages and vice versa.
func (s *service) MarkMessagesRead(ctx context.Context, orgID, dossierID snowflake.ID, readerType string) error {
	var senderType string
	switch readerType {
	case domain.SenderStaff:
		senderType = domain.SenderClient
	case domain.SenderClient:
		senderType = domain.SenderStaff
	default:
		return domain.ErrInvalidSender
	}
	_, err := s.repo.MarkMessagesRead(ctx, s.db, orgID, dossierID, senderType)
	return err
}

func (s *service) ListForClient(ctx context.Context, orgID, clientUserID snowflake.ID) ([]*domain.Dossier, error) {
	return s.repo.ListByClient(ctx, s.db, orgID, clientUserID)
}

func (s *service) GetForClient(ctx context.Context, orgID, clientUserID, id snowflake.ID) (domain.Detail, error) {
	dossier, err := s.repo.FindByID(ctx, s.db, orgID, id)
	if err != nil {
		return domain.Detail{}, err
	}
	if dossier.ClientUserID != clientUserID {
		return domain.Detail{}, domain.ErrNotFound
	}
	return s.detail(ctx, orgID, id, domain.SenderStaff)
}

// Sign records the client's sign-off. Only a completed dossier can be
// signed, and signing requires actual signature data; the check lives here,
// not in the client.
func (s *service) Sign(ctx context.Context, req domain.SignRequest) (domain.Dossier, error) {
	if strings.TrimSpace(req.SignatureData) == "" {
		return domain.Dossier{}, domain.ErrSignatureRequired
	}

	var dossier domain.Dossier
	err := s.db.WithContext(ctx).
		Raw(`SELECT * FROM dossiers WHERE id = ?`, req.DossierID).
		Scan(&dossier).Error
	if err != nil {
		return domain.Dossier{}, err
	}
	if dossier.ID == 0 || dossier.ClientUserID != req.ClientUserID {
		return domain.Dossier{}, domain.ErrNotFound
	}
	if dossier.Status == domain.StatusSigned {
		return domain.Dossier{}, domain.ErrAlreadySigned
	}
	if dossier.Status != domain.StatusCompleted {
		return domain.Dossier{}, domain.ErrNotCompleted
	}

	now := s.clock.Now()
	if err := s.repo.Update(ctx, s.db, dossier.OrgID, dossier.ID, map[string]any{
		"status":         domain.StatusSigned,
		"signature_data": req.SignatureData,
		"signed_at":      now,
	}); err != nil {
		return domain.Dossier{}, err
	}

	signed, err := s.repo.FindByID(ctx, s.db, dossier.OrgID, dossier.ID)
	if err != nil {
		return domain.Dossier{}, err
	}

	s.log.Info("dossier signed",
		zap.Int64("org_id", dossier.OrgID.Int64()),
		zap.Int64("dossier_id", dossier.ID.Int64()),
	)
	return *signed, nil
}
