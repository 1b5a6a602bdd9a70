package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	caldomain "github.com/quotedesk/quotedesk/internal/calendar/domain"
	catdomain "github.com/quotedesk/quotedesk/internal/catalog/domain"
	cudomain "github.com/quotedesk/quotedesk/internal/clientuser/domain"
	"github.com/quotedesk/quotedesk/internal/clock"
	"github.com/quotedesk/quotedesk/internal/config"
	dosdomain "github.com/quotedesk/quotedesk/internal/dossier/domain"
	notifdomain "github.com/quotedesk/quotedesk/internal/notification/domain"
	"github.com/quotedesk/quotedesk/internal/orgcontext"
	orgdomain "github.com/quotedesk/quotedesk/internal/organization/domain"
	"github.com/quotedesk/quotedesk/internal/providers/email"
	"github.com/quotedesk/quotedesk/internal/providers/pdf"
	"github.com/quotedesk/quotedesk/internal/quotation/domain"
	"github.com/quotedesk/quotedesk/pkg/db/pagination"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Config  config.Config
	Pricing *config.PricingDefaultsHolder
	Repo    domain.Repository

	OrgSvc      orgdomain.Service
	CatalogSvc  catdomain.Service
	CalendarSvc caldomain.Service
	ClientSvc   cudomain.Service
	DossierSvc  dosdomain.Service
	NotifySvc   notifdomain.Service
	Email       email.Provider
	PDF         pdf.Provider
}

type service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	cfg     config.Config
	pricing *config.PricingDefaultsHolder
	repo    domain.Repository

	orgSvc      orgdomain.Service
	catalogSvc  catdomain.Service
	calendarSvc caldomain.Service
	clientSvc   cudomain.Service
	dossierSvc  dosdomain.Service
	notifySvc   notifdomain.Service
	email       email.Provider
	pdf         pdf.Provider
}

func New(p Params) domain.Service {
	return &service{
		db:          p.DB,
		log:         p.Log.Named("quotation.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		cfg:         p.Config,
		pricing:     p.Pricing,
		repo:        p.Repo,
		orgSvc:      p.OrgSvc,
		catalogSvc:  p.CatalogSvc,
		calendarSvc: p.CalendarSvc,
		clientSvc:   p.ClientSvc,
		dossierSvc:  p.DossierSvc,
		notifySvc:   p.NotifySvc,
		email:       p.Email,
		pdf:         p.PDF,
	}
}

func (s *service) SubmitLead(ctx context.Context, req domain.SubmitLeadRequest) (domain.SubmitLeadResponse, error) {
	org, err := s.orgSvc.ResolveByIDOrSlug(ctx, req.OrgIDOrSlug)
	if err != nil {
		return domain.SubmitLeadResponse{}, err
	}

	catalog, err := s.catalogSvc.ListActive(ctx, org.ID)
	if err != nil {
		return domain.SubmitLeadResponse{}, err
	}
	byID := make(map[snowflake.ID]*catdomain.PriceMatrixItem, len(catalog))
	present := make(map[snowflake.ID]bool, len(catalog))
	for _, item := range catalog {
		byID[item.ID] = item
		present[item.ID] = true
	}

	selected := make(map[snowflake.ID]bool, len(req.Items))
	for _, sel := range req.Items {
		if _, ok := byID[sel.PriceItemID]; !ok {
			return domain.SubmitLeadResponse{}, domain.ErrEmptyCatalogSet
		}
		selected[sel.PriceItemID] = true
	}

	token, err := newQuoteToken()
	if err != nil {
		return domain.SubmitLeadResponse{}, err
	}

	vatRate, err := decimal.NewFromString(s.pricing.Get().DefaultVatRate)
	if err != nil {
		vatRate = decimal.NewFromInt(21)
	}

	now := s.clock.Now()
	quotation := &domain.Quotation{
		ID:              s.genID.Generate(),
		OrgID:           org.ID,
		CustomerName:    strings.TrimSpace(req.CustomerName),
		CustomerEmail:   strings.ToLower(strings.TrimSpace(req.CustomerEmail)),
		CustomerPhone:   strings.TrimSpace(req.CustomerPhone),
		CustomerAddress: strings.TrimSpace(req.CustomerAddress),
		Status:          domain.StatusQuoteSent,
		Token:           token,
		SentAt:          &now,
		VatRate:         vatRate,
		IncludeVat:      true,
		Discount:        decimal.Zero,
		Notes:           strings.TrimSpace(req.Notes),
		PreferredDate:   req.PreferredDate,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	var items []*domain.QuoteItem
	sortOrder := 0
	for _, sel := range req.Items {
		catItem := byID[sel.PriceItemID]
		// A pick whose dependency condition is not met is dropped, the
		// same rule the public form enforces.
		if !catdomain.DependencyMet(catItem, present, selected) {
			continue
		}

		qty := sel.Quantity
		if !catItem.AllowQuantity || qty.LessThanOrEqual(decimal.Zero) {
			qty = decimal.NewFromInt(1)
		}
		priceItemID := catItem.ID
		item := &domain.QuoteItem{
			ID:          s.genID.Generate(),
			QuotationID: quotation.ID,
			OrgID:       org.ID,
			PriceItemID: &priceItemID,
			Name:        catItem.Name,
			Description: catItem.Description,
			Quantity:    qty,
			UnitPrice:   catItem.Price,
			IsSelected:  true,
			IsOptional:  catItem.IsOptional,
			SortOrder:   sortOrder,
			CreatedAt:   now,
		}
		item.Total = domain.LineTotal(*item)
		items = append(items, item)
		sortOrder++
	}

	applyTotals(quotation, items)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, quotation); err != nil {
			return err
		}
		if err := s.repo.InsertItems(ctx, tx, items); err != nil {
			return err
		}
		if err := s.audit(ctx, tx, quotation, domain.ActionLeadSubmitted, "client", datatypes.JSONMap{
			"items": len(items),
		}); err != nil {
			return err
		}
		// The quote link goes out immediately, so the lead lands as sent.
		if err := s.audit(ctx, tx, quotation, domain.ActionQuoteSent, "system", nil); err != nil {
			return err
		}
		if req.PreferredDate != nil {
			if err := s.calendarSvc.RecordRequested(ctx, tx, org.ID, quotation.ID, quotation.CustomerName, *req.PreferredDate, 0); err != nil {
				return err
			}
		}
		related := quotation.ID
		return s.notifySvc.Notify(ctx, tx, org.ID, notifdomain.TypeNewLead,
			"New lead", fmt.Sprintf("%s requested a quote", quotation.CustomerName), &related)
	})
	if err != nil {
		return domain.SubmitLeadResponse{}, err
	}

	if mailErr := s.sendQuoteEmail(ctx, org, quotation); mailErr != nil {
		s.log.Warn("quote email failed",
			zap.Int64("quotation_id", quotation.ID.Int64()),
			zap.Error(mailErr),
		)
	}

	s.log.Info("lead submitted",
		zap.Int64("org_id", org.ID.Int64()),
		zap.Int64("quotation_id", quotation.ID.Int64()),
		zap.Int("items", len(items)),
	)
	return domain.SubmitLeadResponse{QuotationID: quotation.ID, Token: token}, nil
}

// PublicView resolves the token, records the first view (idempotently) and
// returns the prospect-facing projection.
func (s *service) PublicView(ctx context.Context, token string) (domain.PublicQuoteView, error) {
	quotation, err := s.repo.FindByToken(ctx, s.db, token)
	if err != nil {
		return domain.PublicQuoteView{}, err
	}

	if quotation.Status == domain.StatusNewLead || quotation.Status == domain.StatusQuoteSent {
		// The conditional update makes concurrent first views converge:
		// exactly one of them flips the status and writes the audit entry.
		changed, err := s.repo.TransitionStatus(ctx, s.db, quotation.ID,
			[]domain.Status{domain.StatusNewLead, domain.StatusQuoteSent},
			domain.StatusViewed,
			map[string]any{"viewed_at": s.clock.Now()},
		)
		if err != nil {
			return domain.PublicQuoteView{}, err
		}
		if changed {
			if err := s.audit(ctx, s.db, quotation, domain.ActionViewed, "client", nil); err != nil {
				return domain.PublicQuoteView{}, err
			}
			related := quotation.ID
			if err := s.notifySvc.Notify(ctx, s.db, quotation.OrgID, notifdomain.TypeQuoteViewed,
				"Quote viewed", fmt.Sprintf("%s opened the quote", quotation.CustomerName), &related); err != nil {
				s.log.Warn("view notification failed",
					zap.Int64("quotation_id", quotation.ID.Int64()),
					zap.Error(err),
				)
			}
		}
		quotation, err = s.repo.FindByToken(ctx, s.db, token)
		if err != nil {
			return domain.PublicQuoteView{}, err
		}
	}

	items, err := s.repo.ListItems(ctx, s.db, quotation.ID)
	if err != nil {
		return domain.PublicQuoteView{}, err
	}
	visible, err := s.visibleItems(ctx, quotation.OrgID, items)
	if err != nil {
		return domain.PublicQuoteView{}, err
	}

	org, err := s.orgSvc.ResolveByIDOrSlug(ctx, quotation.OrgID.String())
	if err != nil {
		return domain.PublicQuoteView{}, err
	}

	return domain.PublicQuoteView{
		Quotation:    *quotation,
		Items:        visible,
		Organization: publicOrg(org),
		NextStatuses: domain.NextStatuses(quotation.Status),
	}, nil
}

// visibleItems applies catalog dependency conditions to a quote's lines. A
// line is hidden while its catalog item's condition fails against the set of
// selected lines. Lines without a catalog backing stay visible.
func (s *service) visibleItems(ctx context.Context, orgID snowflake.ID, items []*domain.QuoteItem) ([]*domain.QuoteItem, error) {
	catalog, err := s.catalogSvc.ListActive(ctx, orgID)
	if err != nil {
		return nil, err
	}
	byID := make(map[snowflake.ID]*catdomain.PriceMatrixItem, len(catalog))
	present := make(map[snowflake.ID]bool, len(catalog))
	for _, catItem := range catalog {
		byID[catItem.ID] = catItem
		present[catItem.ID] = true
	}

	selectedCatalog := map[snowflake.ID]bool{}
	for _, item := range items {
		if item.IsSelected && item.PriceItemID != nil {
			selectedCatalog[*item.PriceItemID] = true
		}
	}

	visible := make([]*domain.QuoteItem, 0, len(items))
	for _, item := range items {
		if item.PriceItemID != nil {
			if catItem, ok := byID[*item.PriceItemID]; ok && !catdomain.DependencyMet(catItem, present, selectedCatalog) {
				continue
			}
		}
		visible = append(visible, item)
	}
	return visible, nil
}

func (s *service) Accept(ctx context.Context, req domain.AcceptRequest) (domain.Quotation, error) {
	quotation, err := s.repo.FindByToken(ctx, s.db, req.Token)
	if err != nil {
		return domain.Quotation{}, err
	}
	if strings.TrimSpace(req.Signature) == "" {
		return domain.Quotation{}, domain.ErrSignatureRequired
	}
	if quotation.ValidUntil != nil && s.clock.Now().After(*quotation.ValidUntil) {
		return domain.Quotation{}, domain.ErrQuoteExpired
	}

	var updated *domain.Quotation
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		items, err := s.repo.ListItems(ctx, tx, quotation.ID)
		if err != nil {
			return err
		}

		if len(req.Items) > 0 {
			wanted := make(map[snowflake.ID]bool, len(req.Items))
			for _, sel := range req.Items {
				wanted[sel.ItemID] = sel.Selected
			}
			for _, item := range items {
				// Only optional lines accept client toggles.
				if !item.IsOptional {
					continue
				}
				sel, ok := wanted[item.ID]
				if !ok || sel == item.IsSelected {
					continue
				}
				item.IsSelected = sel
				item.Total = domain.LineTotal(*item)
				if err := s.repo.UpdateItemSelection(ctx, tx, quotation.ID, item.ID, sel, item.Total); err != nil {
					return err
				}
			}
		}

		totals := domain.ComputeTotals(deref(items), quotation.Discount, quotation.VatRate, quotation.IncludeVat)
		anySelected := false
		for _, item := range items {
			if item.IsSelected {
				anySelected = true
				break
			}
		}
		if !anySelected {
			return domain.ErrNoItemsSelected
		}

		now := s.clock.Now()
		changed, err := s.repo.TransitionStatus(ctx, tx, quotation.ID,
			[]domain.Status{domain.StatusViewed},
			domain.StatusApproved,
			map[string]any{
				"signature":  req.Signature,
				"signed_at":  now,
				"subtotal":   totals.Subtotal,
				"vat_amount": totals.VatAmount,
				"total":      totals.Total,
			},
		)
		if err != nil {
			return err
		}
		if !changed {
			return domain.ErrInvalidTransition
		}

		if err := s.audit(ctx, tx, quotation, domain.ActionApproved, "client", datatypes.JSONMap{
			"ip":         req.IP,
			"user_agent": req.UserAgent,
			"total":      totals.Total.String(),
		}); err != nil {
			return err
		}
		if err := s.calendarSvc.PromoteRequested(ctx, tx, quotation.OrgID, quotation.ID, quotation.CustomerName); err != nil {
			return err
		}
		related := quotation.ID
		if err := s.notifySvc.Notify(ctx, tx, quotation.OrgID, notifdomain.TypeQuoteApproved,
			"Quote approved", fmt.Sprintf("%s accepted the quote", quotation.CustomerName), &related); err != nil {
			return err
		}

		updated, err = s.repo.FindByID(ctx, tx, quotation.OrgID, quotation.ID)
		return err
	})
	if err != nil {
		return domain.Quotation{}, err
	}

	s.log.Info("quote approved",
		zap.Int64("org_id", quotation.OrgID.Int64()),
		zap.Int64("quotation_id", quotation.ID.Int64()),
	)
	return *updated, nil
}

func (s *service) Reject(ctx context.Context, req domain.RejectRequest) (domain.Quotation, error) {
	quotation, err := s.repo.FindByToken(ctx, s.db, req.Token)
	if err != nil {
		return domain.Quotation{}, err
	}

	var updated *domain.Quotation
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		changed, err := s.repo.TransitionStatus(ctx, tx, quotation.ID,
			[]domain.Status{domain.StatusViewed},
			domain.StatusRejected,
			map[string]any{"rejection_reason": strings.TrimSpace(req.Reason)},
		)
		if err != nil {
			return err
		}
		if !changed {
			return domain.ErrInvalidTransition
		}

		if err := s.audit(ctx, tx, quotation, domain.ActionRejected, "client", datatypes.JSONMap{
			"ip":     req.IP,
			"reason": req.Reason,
		}); err != nil {
			return err
		}
		if err := s.calendarSvc.DropRequested(ctx, tx, quotation.OrgID, quotation.ID); err != nil {
			return err
		}
		related := quotation.ID
		if err := s.notifySvc.Notify(ctx, tx, quotation.OrgID, notifdomain.TypeQuoteRejected,
			"Quote rejected", fmt.Sprintf("%s declined the quote", quotation.CustomerName), &related); err != nil {
			return err
		}

		updated, err = s.repo.FindByID(ctx, tx, quotation.OrgID, quotation.ID)
		return err
	})
	if err != nil {
		return domain.Quotation{}, err
	}
	return *updated, nil
}

func (s *service) List(ctx context.Context, filter domain.ListFilter, page pagination.Pagination) ([]*domain.Quotation, *pagination.PageInfo, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, nil, orgdomain.ErrInvalidOrganization
	}

	limit := page.PageSize
	if limit <= 0 || limit > 100 {
		limit = 25
	}

	// Staff members only see the quotations assigned to them.
	if principal, ok := orgcontext.PrincipalFromContext(ctx); ok && !principal.IsOwner() {
		assigned := principal.UserID
		filter.AssignedEmployeeID = &assigned
	}

	quotations, err := s.repo.List(ctx, s.db, orgID, filter, page)
	if err != nil {
		return nil, nil, err
	}

	info := pagination.BuildCursorPageInfo(quotations, limit, func(q *domain.Quotation) string {
		token, _ := pagination.EncodeCursor(pagination.Cursor{ID: q.ID.String()})
		return token
	})
	if len(quotations) > limit {
		quotations = quotations[:limit]
	}
	return quotations, info, nil
}

func (s *service) Get(ctx context.Context, id snowflake.ID) (domain.QuotationDetail, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return domain.QuotationDetail{}, orgdomain.ErrInvalidOrganization
	}

	quotation, err := s.repo.FindByID(ctx, s.db, orgID, id)
	if err != nil {
		return domain.QuotationDetail{}, err
	}
	items, err := s.repo.ListItems(ctx, s.db, id)
	if err != nil {
		return domain.QuotationDetail{}, err
	}
	audit, err := s.repo.ListAudit(ctx, s.db, orgID, id)
	if err != nil {
		return domain.QuotationDetail{}, err
	}
	return domain.QuotationDetail{Quotation: *quotation, Items: items, Audit: audit}, nil
}

func (s *service) UpdateDraft(ctx context.Context, id snowflake.ID, req domain.UpdateDraftRequest) (domain.QuotationDetail, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return domain.QuotationDetail{}, orgdomain.ErrInvalidOrganization
	}

	quotation, err := s.repo.FindByID(ctx, s.db, orgID, id)
	if err != nil {
		return domain.QuotationDetail{}, err
	}
	switch quotation.Status {
	case domain.StatusNewLead, domain.StatusQuoteSent, domain.StatusViewed:
	default:
		return domain.QuotationDetail{}, domain.ErrInvalidTransition
	}

	if req.Discount != nil {
		quotation.Discount = req.Discount.Round(2)
	}
	if req.VatRate != nil {
		quotation.VatRate = *req.VatRate
	}
	if req.IncludeVat != nil {
		quotation.IncludeVat = *req.IncludeVat
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		items, err := s.repo.ListItems(ctx, tx, id)
		if err != nil {
			return err
		}

		if req.Items != nil {
			if err := s.repo.DeleteItems(ctx, tx, id); err != nil {
				return err
			}
			items = items[:0]
			now := s.clock.Now()
			for i, draft := range req.Items {
				qty := draft.Quantity
				if qty.LessThanOrEqual(decimal.Zero) {
					qty = decimal.NewFromInt(1)
				}
				item := &domain.QuoteItem{
					ID:          s.genID.Generate(),
					QuotationID: id,
					OrgID:       orgID,
					PriceItemID: draft.PriceItemID,
					Name:        strings.TrimSpace(draft.Name),
					Description: strings.TrimSpace(draft.Description),
					Quantity:    qty,
					UnitPrice:   draft.UnitPrice.Round(2),
					IsSelected:  draft.IsSelected,
					IsOptional:  draft.IsOptional,
					SortOrder:   draft.SortOrder,
					CreatedAt:   now,
				}
				if item.SortOrder == 0 {
					item.SortOrder = i
				}
				item.Total = domain.LineTotal(*item)
				items = append(items, item)
			}
			if err := s.repo.InsertItems(ctx, tx, items); err != nil {
				return err
			}
		}

		totals := domain.ComputeTotals(deref(items), quotation.Discount, quotation.VatRate, quotation.IncludeVat)

		fields := map[string]any{
			"discount":    quotation.Discount,
			"vat_rate":    quotation.VatRate,
			"include_vat": quotation.IncludeVat,
			"subtotal":    totals.Subtotal,
			"vat_amount":  totals.VatAmount,
			"total":       totals.Total,
		}
		if req.CustomerName != nil {
			fields["customer_name"] = strings.TrimSpace(*req.CustomerName)
		}
		if req.CustomerEmail != nil {
			fields["customer_email"] = strings.ToLower(strings.TrimSpace(*req.CustomerEmail))
		}
		if req.CustomerPhone != nil {
			fields["customer_phone"] = strings.TrimSpace(*req.CustomerPhone)
		}
		if req.CustomerAddress != nil {
			fields["customer_address"] = strings.TrimSpace(*req.CustomerAddress)
		}
		if req.Notes != nil {
			fields["notes"] = strings.TrimSpace(*req.Notes)
		}
		if req.InternalNotes != nil {
			fields["internal_notes"] = strings.TrimSpace(*req.InternalNotes)
		}
		if req.ValidUntil != nil {
			fields["valid_until"] = *req.ValidUntil
		}
		if err := s.repo.UpdateFields(ctx, tx, id, fields); err != nil {
			return err
		}

		return s.audit(ctx, tx, quotation, domain.ActionUpdated, s.actor(ctx), nil)
	})
	if err != nil {
		return domain.QuotationDetail{}, err
	}

	return s.Get(ctx, id)
}

func (s *service) Send(ctx context.Context, id snowflake.ID) (domain.Quotation, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return domain.Quotation{}, orgdomain.ErrInvalidOrganization
	}

	quotation, err := s.repo.FindByID(ctx, s.db, orgID, id)
	if err != nil {
		return domain.Quotation{}, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Re-sending is allowed until the prospect has opened the quote.
		changed, err := s.repo.TransitionStatus(ctx, tx, id,
			[]domain.Status{domain.StatusNewLead, domain.StatusQuoteSent},
			domain.StatusQuoteSent,
			map[string]any{"sent_at": s.clock.Now()},
		)
		if err != nil {
			return err
		}
		if !changed {
			return domain.ErrInvalidTransition
		}
		return s.audit(ctx, tx, quotation, domain.ActionQuoteSent, s.actor(ctx), nil)
	})
	if err != nil {
		return domain.Quotation{}, err
	}

	org, err := s.orgSvc.ResolveByIDOrSlug(ctx, orgID.String())
	if err == nil {
		if mailErr := s.sendQuoteEmail(ctx, org, quotation); mailErr != nil {
			s.log.Warn("quote email failed",
				zap.Int64("quotation_id", id.Int64()),
				zap.Error(mailErr),
			)
		}
	}

	updated, err := s.repo.FindByID(ctx, s.db, orgID, id)
	if err != nil {
		return domain.Quotation{}, err
	}
	return *updated, nil
}

func (s *service) Assign(ctx context.Context, id snowflake.ID, employeeID *snowflake.ID) (domain.Quotation, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return domain.Quotation{}, orgdomain.ErrInvalidOrganization
	}

	quotation, err := s.repo.FindByID(ctx, s.db, orgID, id)
	if err != nil {
		return domain.Quotation{}, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var value any
		detail := datatypes.JSONMap{}
		if employeeID != nil {
			value = *employeeID
			detail["employee_id"] = employeeID.String()
		}
		if err := s.repo.UpdateFields(ctx, tx, id, map[string]any{"assigned_employee_id": value}); err != nil {
			return err
		}
		return s.audit(ctx, tx, quotation, domain.ActionAssigned, s.actor(ctx), detail)
	})
	if err != nil {
		return domain.Quotation{}, err
	}

	updated, err := s.repo.FindByID(ctx, s.db, orgID, id)
	if err != nil {
		return domain.Quotation{}, err
	}
	return *updated, nil
}

// GenerateInvoice allocates the next invoice number and moves the quote to
// invoiced. Allocation and transition share one transaction, so two
// concurrent calls can never both succeed or burn a number on a lost race.
func (s *service) GenerateInvoice(ctx context.Context, req domain.GenerateInvoiceRequest) (domain.Quotation, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return domain.Quotation{}, orgdomain.ErrInvalidOrganization
	}

	quotation, err := s.repo.FindByID(ctx, s.db, orgID, req.ID)
	if err != nil {
		return domain.Quotation{}, err
	}
	if quotation.InvoiceNumber != "" {
		return domain.Quotation{}, domain.ErrAlreadyInvoiced
	}

	var updated *domain.Quotation
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		number, err := s.orgSvc.AllocateInvoiceNumber(ctx, tx, orgID)
		if err != nil {
			return err
		}

		changed, err := s.repo.TransitionStatus(ctx, tx, req.ID,
			[]domain.Status{domain.StatusApproved},
			domain.StatusInvoiced,
			map[string]any{
				"invoice_number": number,
				"invoice_date":   s.clock.Now(),
				"invoice_notes":  strings.TrimSpace(req.InvoiceNotes),
			},
		)
		if err != nil {
			return err
		}
		if !changed {
			return domain.ErrInvalidTransition
		}

		if err := s.audit(ctx, tx, quotation, domain.ActionInvoiced, s.actor(ctx), datatypes.JSONMap{
			"invoice_number": number,
		}); err != nil {
			return err
		}

		updated, err = s.repo.FindByID(ctx, tx, orgID, req.ID)
		return err
	})
	if err != nil {
		return domain.Quotation{}, err
	}

	s.log.Info("invoice generated",
		zap.Int64("org_id", orgID.Int64()),
		zap.Int64("quotation_id", req.ID.Int64()),
		zap.String("invoice_number", updated.InvoiceNumber),
	)
	return *updated, nil
}

func (s *service) MarkPaid(ctx context.Context, id snowflake.ID) (domain.Quotation, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return domain.Quotation{}, orgdomain.ErrInvalidOrganization
	}

	quotation, err := s.repo.FindByID(ctx, s.db, orgID, id)
	if err != nil {
		return domain.Quotation{}, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		changed, err := s.repo.TransitionStatus(ctx, tx, id,
			[]domain.Status{domain.StatusInvoiced},
			domain.StatusPaid,
			map[string]any{"paid_at": s.clock.Now()},
		)
		if err != nil {
			return err
		}
		if !changed {
			return domain.ErrInvalidTransition
		}
		return s.audit(ctx, tx, quotation, domain.ActionPaid, s.actor(ctx), nil)
	})
	if err != nil {
		return domain.Quotation{}, err
	}

	updated, err := s.repo.FindByID(ctx, s.db, orgID, id)
	if err != nil {
		return domain.Quotation{}, err
	}
	return *updated, nil
}

// SendInvoice emails the invoice PDF to the customer and provisions the
// client portal side effects: the portal account and the dossier, both
// idempotent, so resending never duplicates them.
func (s *service) SendInvoice(ctx context.Context, id snowflake.ID) (domain.SendInvoiceResult, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return domain.SendInvoiceResult{}, orgdomain.ErrInvalidOrganization
	}

	quotation, err := s.repo.FindByID(ctx, s.db, orgID, id)
	if err != nil {
		return domain.SendInvoiceResult{}, err
	}
	if quotation.InvoiceNumber == "" {
		return domain.SendInvoiceResult{}, domain.ErrNotInvoiced
	}

	org, err := s.orgSvc.ResolveByIDOrSlug(ctx, orgID.String())
	if err != nil {
		return domain.SendInvoiceResult{}, err
	}

	pdfBytes, err := s.renderInvoicePDF(ctx, org, quotation)
	if err != nil {
		return domain.SendInvoiceResult{}, err
	}

	var (
		ensured cudomain.EnsureResult
		dossier dosdomain.Dossier
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ensured, err = s.clientSvc.EnsureForQuotation(ctx, tx, orgID,
			quotation.CustomerEmail, quotation.CustomerName, quotation.CustomerPhone)
		if err != nil {
			return err
		}

		dossier, _, err = s.dossierSvc.EnsureForQuotation(ctx, tx, dosdomain.EnsureRequest{
			OrgID:        orgID,
			QuotationID:  quotation.ID,
			ClientUserID: ensured.User.ID,
			Title:        quotation.CustomerName + " " + quotation.InvoiceNumber,
		})
		if err != nil {
			return err
		}

		if _, err := s.dossierSvc.AddEntry(ctx, tx, orgID, dosdomain.AddEntryRequest{
			DossierID: dossier.ID,
			Kind:      dosdomain.EntryInvoicePDF,
			Title:     "Invoice " + quotation.InvoiceNumber,
			FileName:  invoiceFilename(quotation.InvoiceNumber),
			CreatedBy: s.actor(ctx),
		}); err != nil {
			return err
		}

		return s.audit(ctx, tx, quotation, domain.ActionInvoiceSent, s.actor(ctx), datatypes.JSONMap{
			"invoice_number": quotation.InvoiceNumber,
			"client_created": ensured.Created,
		})
	})
	if err != nil {
		return domain.SendInvoiceResult{}, err
	}

	emailSent := true
	if mailErr := s.sendInvoiceEmail(ctx, org, quotation, pdfBytes, ensured); mailErr != nil {
		emailSent = false
		s.log.Warn("invoice email failed",
			zap.Int64("quotation_id", id.Int64()),
			zap.Error(mailErr),
		)
	}

	return domain.SendInvoiceResult{
		Quotation:     *quotation,
		ClientUserID:  ensured.User.ID,
		DossierID:     dossier.ID,
		EmailSent:     emailSent,
		ClientCreated: ensured.Created,
	}, nil
}

func (s *service) InvoicePDF(ctx context.Context, id snowflake.ID) (string, []byte, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return "", nil, orgdomain.ErrInvalidOrganization
	}

	quotation, err := s.repo.FindByID(ctx, s.db, orgID, id)
	if err != nil {
		return "", nil, err
	}
	if quotation.InvoiceNumber == "" {
		return "", nil, domain.ErrNotInvoiced
	}

	org, err := s.orgSvc.ResolveByIDOrSlug(ctx, orgID.String())
	if err != nil {
		return "", nil, err
	}
	pdfBytes, err := s.renderInvoicePDF(ctx, org, quotation)
	if err != nil {
		return "", nil, err
	}
	return invoiceFilename(quotation.InvoiceNumber), pdfBytes, nil
}

func (s *service) renderInvoicePDF(ctx context.Context, org orgdomain.Organization, quotation *domain.Quotation) ([]byte, error) {
	items, err := s.repo.ListItems(ctx, s.db, quotation.ID)
	if err != nil {
		return nil, err
	}

	data := pdf.InvoiceData{
		OrgName:       org.Name,
		OrgAddress:    org.Address,
		OrgEmail:      org.Email,
		OrgPhone:      org.Phone,
		VatNumber:     org.VatNumber,
		KvkNumber:     org.KvkNumber,
		IBAN:          org.IBAN,
		InvoiceNumber: quotation.InvoiceNumber,
		QuoteFooter:   org.QuoteFooter,
		Notes:         quotation.InvoiceNotes,
		BillToName:    quotation.CustomerName,
		BillToAddress: quotation.CustomerAddress,
		BillToEmail:   quotation.CustomerEmail,
		Subtotal:      money(org.Currency, quotation.Subtotal),
		VatRate:       quotation.VatRate.String(),
		Total:         money(org.Currency, quotation.Total),
	}
	if quotation.InvoiceDate != nil {
		data.InvoiceDate = quotation.InvoiceDate.Format("2006-01-02")
	}
	if quotation.Discount.IsPositive() {
		data.Discount = money(org.Currency, quotation.Discount)
	}
	if quotation.IncludeVat {
		data.VatAmount = money(org.Currency, quotation.VatAmount)
	}
	for _, item := range items {
		if !item.IsSelected {
			continue
		}
		data.Items = append(data.Items, pdf.InvoiceItem{
			Description: item.Name,
			Quantity:    item.Quantity.String(),
			UnitPrice:   money(org.Currency, item.UnitPrice),
			Amount:      money(org.Currency, item.Total),
		})
	}

	return s.pdf.GenerateInvoice(ctx, data)
}

func (s *service) audit(ctx context.Context, db *gorm.DB, quotation *domain.Quotation, action, actor string, detail datatypes.JSONMap) error {
	return s.repo.AppendAudit(ctx, db, &domain.AuditLog{
		ID:          s.genID.Generate(),
		QuotationID: quotation.ID,
		OrgID:       quotation.OrgID,
		Action:      action,
		Actor:       actor,
		Detail:      detail,
		CreatedAt:   s.clock.Now(),
	})
}

func publicOrg(org orgdomain.Organization) domain.PublicOrgView {
	return domain.PublicOrgView{
		ID:              org.ID,
		Name:            org.Name,
		LogoURL:         org.LogoURL,
		PrimaryColor:    org.PrimaryColor,
		AccentColor:     org.AccentColor,
		QuoteFooter:     org.QuoteFooter,
		TermsConditions: org.TermsConditions,
		Address:         org.Address,
		Phone:           org.Phone,
		Email:           org.Email,
		Website:         org.Website,
	}
}

func (s *service) actor(ctx context.Context) string {
	if principal, ok := orgcontext.PrincipalFromContext(ctx); ok {
		return "staff:" + principal.Username
	}
	return "system"
}

func applyTotals(q *domain.Quotation, items []*domain.QuoteItem) {
	totals := domain.ComputeTotals(deref(items), q.Discount, q.VatRate, q.IncludeVat)
	q.Subtotal = totals.Subtotal
	q.VatAmount = totals.VatAmount
	q.Total = totals.Total
}

func deref(items []*domain.QuoteItem) []domain.QuoteItem {
	out := make([]domain.QuoteItem, len(items))
	for i, item := range items {
		out[i] = *item
	}
	return out
}

func money(currency string, v decimal.Decimal) string {
	symbol := "€"
	switch currency {
	case "USD":
		symbol = "$"
	case "GBP":
		symbol = "£"
	case "", "EUR":
	default:
		symbol = currency + " "
	}
	return symbol + v.StringFixed(2)
}

func invoiceFilename(number string) string {
	return "invoice-" + strings.ToLower(number) + ".pdf"
}

func newQuoteToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
