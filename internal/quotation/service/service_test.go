package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	authdomain "github.com/quotedesk/quotedesk/internal/auth/domain"
	caldomain "github.com/quotedesk/quotedesk/internal/calendar/domain"
	calrepository "github.com/quotedesk/quotedesk/internal/calendar/repository"
	calservice "github.com/quotedesk/quotedesk/internal/calendar/service"
	catdomain "github.com/quotedesk/quotedesk/internal/catalog/domain"
	catrepository "github.com/quotedesk/quotedesk/internal/catalog/repository"
	catservice "github.com/quotedesk/quotedesk/internal/catalog/service"
	cudomain "github.com/quotedesk/quotedesk/internal/clientuser/domain"
	curepository "github.com/quotedesk/quotedesk/internal/clientuser/repository"
	cuservice "github.com/quotedesk/quotedesk/internal/clientuser/service"
	"github.com/quotedesk/quotedesk/internal/config"
	dosdomain "github.com/quotedesk/quotedesk/internal/dossier/domain"
	dosrepository "github.com/quotedesk/quotedesk/internal/dossier/repository"
	dosservice "github.com/quotedesk/quotedesk/internal/dossier/service"
	notifdomain "github.com/quotedesk/quotedesk/internal/notification/domain"
	notifrepository "github.com/quotedesk/quotedesk/internal/notification/repository"
	notifservice "github.com/quotedesk/quotedesk/internal/notification/service"
	"github.com/quotedesk/quotedesk/internal/orgcontext"
	orgdomain "github.com/quotedesk/quotedesk/internal/organization/domain"
	orgrepository "github.com/quotedesk/quotedesk/internal/organization/repository"
	orgservice "github.com/quotedesk/quotedesk/internal/organization/service"
	"github.com/quotedesk/quotedesk/internal/providers/email"
	"github.com/quotedesk/quotedesk/internal/providers/pdf"
	"github.com/quotedesk/quotedesk/internal/quotation/domain"
	"github.com/quotedesk/quotedesk/internal/quotation/repository"
	"github.com/quotedesk/quotedesk/pkg/db"
	"github.com/quotedesk/quotedesk/pkg/db/pagination"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

type sentMail struct {
	to      []string
	subject string
}

// recordingEmail captures outgoing mail so tests can assert on it.
type recordingEmail struct {
	mu   sync.Mutex
	sent []sentMail
}

func (p *recordingEmail) Send(ctx context.Context, acct email.Account, to []string, subject, htmlBody string, attachments ...email.Attachment) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, sentMail{to: to, subject: subject})
	return nil
}

func (p *recordingEmail) messages() []sentMail {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]sentMail(nil), p.sent...)
}

type fixture struct {
	db    *gorm.DB
	node  *snowflake.Node
	clock *fakeClock
	svc   domain.Service
	org   orgdomain.Organization
	mail  *recordingEmail

	painting  catdomain.PriceMatrixItem
	scaffold  catdomain.PriceMatrixItem
	extraTier catdomain.PriceMatrixItem
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dbConn, err := db.NewTest()
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	if err := dbConn.AutoMigrate(
		&orgdomain.Organization{},
		&authdomain.User{},
		&catdomain.PriceMatrixItem{},
		&domain.Quotation{},
		&domain.QuoteItem{},
		&domain.AuditLog{},
		&caldomain.Event{},
		&cudomain.ClientUser{},
		&cudomain.ClientSession{},
		&dosdomain.Dossier{},
		&dosdomain.Entry{},
		&dosdomain.Message{},
		&notifdomain.Notification{},
	); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("failed to create snowflake node: %v", err)
	}

	log := zap.NewNop()
	clk := &fakeClock{now: time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)}
	cfg := config.Config{BaseURL: "http://localhost:8080", SessionTTLHours: 72}
	pricing := config.StaticPricingDefaults(config.DefaultPricingDefaults())

	orgSvc := orgservice.New(orgservice.Params{
		DB: dbConn, Log: log, GenID: node, Repo: orgrepository.Provide(),
	})
	catalogSvc := catservice.New(catservice.Params{
		DB: dbConn, Log: log, GenID: node, Clock: clk, Repo: catrepository.Provide(),
	})
	calendarSvc := calservice.New(calservice.Params{
		DB: dbConn, Log: log, GenID: node, Clock: clk, Pricing: pricing,
		Repo: calrepository.Provide(), OrgSvc: orgSvc,
	})
	clientSvc := cuservice.New(cuservice.Params{
		DB: dbConn, Log: log, GenID: node, Clock: clk, Config: cfg,
		Repo: curepository.Provide(), OrgSvc: orgSvc,
	})
	dossierSvc := dosservice.New(dosservice.Params{
		DB: dbConn, Log: log, GenID: node, Clock: clk, Repo: dosrepository.Provide(),
	})
	notifySvc := notifservice.New(notifservice.Params{
		DB: dbConn, Log: log, GenID: node, Clock: clk, Repo: notifrepository.Provide(),
	})

	mail := &recordingEmail{}
	svc := New(Params{
		DB: dbConn, Log: log, GenID: node, Clock: clk, Config: cfg, Pricing: pricing,
		Repo:   repository.Provide(),
		OrgSvc: orgSvc, CatalogSvc: catalogSvc, CalendarSvc: calendarSvc,
		ClientSvc: clientSvc, DossierSvc: dossierSvc, NotifySvc: notifySvc,
		Email: mail, PDF: &pdf.NoOpProvider{},
	})

	f := &fixture{db: dbConn, node: node, clock: clk, svc: svc, mail: mail}

	f.org = orgdomain.Organization{
		ID:             node.Generate(),
		Name:           "Jansen Schilderwerken",
		Slug:           "jansen",
		Currency:       "EUR",
		InvoicePrefix:  "INV",
		InvoiceCounter: 1000,
		MaxEmployees:   3,
	}
	if err := dbConn.Create(&f.org).Error; err != nil {
		t.Fatalf("failed to seed organization: %v", err)
	}

	f.painting = f.seedItem(t, "Fence painting", "100", true, nil)
	f.scaffold = f.seedItem(t, "Scaffolding", "250", false, nil, func(it *catdomain.PriceMatrixItem) {
		it.IsOptional = true
	})
	f.extraTier = f.seedItem(t, "Extra scaffold tier", "80", false, &f.scaffold.ID)

	return f
}

func (f *fixture) seedItem(t *testing.T, name, price string, allowQty bool, dependsOn *snowflake.ID, opts ...func(*catdomain.PriceMatrixItem)) catdomain.PriceMatrixItem {
	t.Helper()
	condition := catdomain.ConditionAlways
	if dependsOn != nil {
		condition = catdomain.ConditionWhenSelected
	}
	item := catdomain.PriceMatrixItem{
		ID:                 f.node.Generate(),
		OrgID:              f.org.ID,
		Name:               name,
		Price:              decimal.RequireFromString(price),
		AllowQuantity:      allowQty,
		DependsOnItemID:    dependsOn,
		DependsOnCondition: condition,
		IsActive:           true,
		CreatedAt:          f.clock.now,
		UpdatedAt:          f.clock.now,
	}
	for _, opt := range opts {
		opt(&item)
	}
	if err := f.db.Create(&item).Error; err != nil {
		t.Fatalf("failed to seed catalog item %q: %v", name, err)
	}
	return item
}

func (f *fixture) staffCtx() context.Context {
	ctx := orgcontext.WithOrgID(context.Background(), f.org.ID)
	return orgcontext.WithPrincipal(ctx, orgcontext.Principal{
		UserID:   f.node.Generate(),
		OrgID:    f.org.ID,
		Role:     orgcontext.RoleOwner,
		Username: "anna",
	})
}

func (f *fixture) submitLead(t *testing.T, preferred *time.Time, items ...domain.LeadItemSelection) domain.SubmitLeadResponse {
	t.Helper()
	resp, err := f.svc.SubmitLead(context.Background(), domain.SubmitLeadRequest{
		OrgIDOrSlug:   "jansen",
		CustomerName:  "Piet de Vries",
		CustomerEmail: "Piet@Example.com",
		CustomerPhone: "0612345678",
		PreferredDate: preferred,
		Items:         items,
	})
	if err != nil {
		t.Fatalf("submit lead: %v", err)
	}
	return resp
}

func (f *fixture) view(t *testing.T, token string) domain.PublicQuoteView {
	t.Helper()
	view, err := f.svc.PublicView(context.Background(), token)
	if err != nil {
		t.Fatalf("public view: %v", err)
	}
	return view
}

func (f *fixture) accept(t *testing.T, token string, selections ...domain.ItemSelection) domain.Quotation {
	t.Helper()
	q, err := f.svc.Accept(context.Background(), domain.AcceptRequest{
		Token:     token,
		Signature: "data:image/png;base64,cGlldA==",
		Items:     selections,
		IP:        "203.0.113.7",
	})
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	return q
}

func (f *fixture) eventsOfType(t *testing.T, typ string) []*caldomain.Event {
	t.Helper()
	var events []*caldomain.Event
	err := f.db.Raw(`SELECT * FROM calendar_events WHERE org_id = ? AND type = ?`, f.org.ID, typ).
		Scan(&events).Error
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	return events
}

func (f *fixture) auditActions(t *testing.T, id snowflake.ID) []string {
	t.Helper()
	detail, err := f.svc.Get(f.staffCtx(), id)
	if err != nil {
		t.Fatalf("get quotation: %v", err)
	}
	actions := make([]string, len(detail.Audit))
	for i, entry := range detail.Audit {
		actions[i] = entry.Action
	}
	return actions
}

func TestSubmitLeadDropsDependentWithoutParent(t *testing.T) {
	f := newFixture(t)

	resp := f.submitLead(t, nil,
		domain.LeadItemSelection{PriceItemID: f.painting.ID, Quantity: decimal.NewFromInt(2)},
		domain.LeadItemSelection{PriceItemID: f.extraTier.ID},
	)

	detail, err := f.svc.Get(f.staffCtx(), resp.QuotationID)
	if err != nil {
		t.Fatalf("get quotation: %v", err)
	}
	if len(detail.Items) != 1 {
		t.Fatalf("expected the orphan dependent to be dropped, got %d items", len(detail.Items))
	}
	if detail.Items[0].Name != "Fence painting" {
		t.Fatalf("unexpected surviving item %q", detail.Items[0].Name)
	}
	if got := detail.Quotation.Subtotal.StringFixed(2); got != "200.00" {
		t.Fatalf("subtotal = %s, want 200.00", got)
	}
	if got := detail.Quotation.VatAmount.StringFixed(2); got != "42.00" {
		t.Fatalf("vat = %s, want 42.00", got)
	}
	if got := detail.Quotation.Total.StringFixed(2); got != "242.00" {
		t.Fatalf("total = %s, want 242.00", got)
	}
	if detail.Quotation.CustomerEmail != "piet@example.com" {
		t.Fatalf("email not normalized: %q", detail.Quotation.CustomerEmail)
	}
}

func TestSubmitLeadKeepsDependentWithParent(t *testing.T) {
	f := newFixture(t)

	resp := f.submitLead(t, nil,
		domain.LeadItemSelection{PriceItemID: f.scaffold.ID},
		domain.LeadItemSelection{PriceItemID: f.extraTier.ID},
	)

	detail, err := f.svc.Get(f.staffCtx(), resp.QuotationID)
	if err != nil {
		t.Fatalf("get quotation: %v", err)
	}
	if len(detail.Items) != 2 {
		t.Fatalf("expected both items, got %d", len(detail.Items))
	}
	// Scaffolding does not allow quantities; any submitted quantity collapses to 1.
	if got := detail.Quotation.Subtotal.StringFixed(2); got != "330.00" {
		t.Fatalf("subtotal = %s, want 330.00", got)
	}
}

func TestSubmitLeadCarriesOptionalFlag(t *testing.T) {
	f := newFixture(t)

	resp := f.submitLead(t, nil,
		domain.LeadItemSelection{PriceItemID: f.painting.ID},
		domain.LeadItemSelection{PriceItemID: f.scaffold.ID},
	)

	detail, err := f.svc.Get(f.staffCtx(), resp.QuotationID)
	if err != nil {
		t.Fatalf("get quotation: %v", err)
	}
	optional := map[string]bool{}
	for _, item := range detail.Items {
		optional[item.Name] = item.IsOptional
	}
	if optional["Fence painting"] {
		t.Fatal("painting line marked optional")
	}
	if !optional["Scaffolding"] {
		t.Fatal("scaffolding line lost its optional flag")
	}
}

func TestSubmitLeadHonorsWhenNotSelectedCondition(t *testing.T) {
	f := newFixture(t)
	ownPaint := f.seedItem(t, "Customer supplies paint", "20", false, &f.painting.ID,
		func(it *catdomain.PriceMatrixItem) {
			it.DependsOnCondition = catdomain.ConditionWhenNotSelected
		})

	with, err := f.svc.SubmitLead(context.Background(), domain.SubmitLeadRequest{
		OrgIDOrSlug:   "jansen",
		CustomerName:  "Piet de Vries",
		CustomerEmail: "piet@example.com",
		Items: []domain.LeadItemSelection{
			{PriceItemID: f.painting.ID},
			{PriceItemID: ownPaint.ID},
		},
	})
	if err != nil {
		t.Fatalf("submit lead: %v", err)
	}
	detail, err := f.svc.Get(f.staffCtx(), with.QuotationID)
	if err != nil {
		t.Fatalf("get quotation: %v", err)
	}
	if len(detail.Items) != 1 || detail.Items[0].Name != "Fence painting" {
		t.Fatalf("expected the conditional line to be dropped, got %+v", detail.Items)
	}

	without := f.submitLead(t, nil, domain.LeadItemSelection{PriceItemID: ownPaint.ID})
	detail, err = f.svc.Get(f.staffCtx(), without.QuotationID)
	if err != nil {
		t.Fatalf("get quotation: %v", err)
	}
	if len(detail.Items) != 1 || detail.Items[0].Name != "Customer supplies paint" {
		t.Fatalf("expected the conditional line to survive, got %+v", detail.Items)
	}
}

func TestSubmitLeadKeepsDependentOfInactiveParent(t *testing.T) {
	f := newFixture(t)

	if err := f.db.Exec(`UPDATE price_matrix_items SET is_active = FALSE WHERE id = ?`, f.scaffold.ID).Error; err != nil {
		t.Fatalf("deactivate parent: %v", err)
	}

	// The dependency dangles once its parent is deactivated; the item
	// behaves as independent rather than disappearing.
	resp := f.submitLead(t, nil, domain.LeadItemSelection{PriceItemID: f.extraTier.ID})

	detail, err := f.svc.Get(f.staffCtx(), resp.QuotationID)
	if err != nil {
		t.Fatalf("get quotation: %v", err)
	}
	if len(detail.Items) != 1 || detail.Items[0].Name != "Extra scaffold tier" {
		t.Fatalf("expected the dangling dependent to survive, got %+v", detail.Items)
	}
}

func TestSubmitLeadRejectsUnknownItem(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.SubmitLead(context.Background(), domain.SubmitLeadRequest{
		OrgIDOrSlug:   "jansen",
		CustomerName:  "Piet de Vries",
		CustomerEmail: "piet@example.com",
		Items:         []domain.LeadItemSelection{{PriceItemID: f.node.Generate()}},
	})
	if !errors.Is(err, domain.ErrEmptyCatalogSet) {
		t.Fatalf("expected ErrEmptyCatalogSet, got %v", err)
	}
}

func TestSubmitLeadWithPreferredDateBooksRequest(t *testing.T) {
	f := newFixture(t)

	preferred := time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC)
	f.submitLead(t, &preferred, domain.LeadItemSelection{PriceItemID: f.painting.ID})

	requested := f.eventsOfType(t, caldomain.TypeRequested)
	if len(requested) != 1 {
		t.Fatalf("expected 1 requested event, got %d", len(requested))
	}
	if !requested[0].StartTime.Equal(preferred) {
		t.Fatalf("requested event at %v, want %v", requested[0].StartTime, preferred)
	}
}

func TestSubmitLeadSendsQuoteImmediately(t *testing.T) {
	f := newFixture(t)

	resp := f.submitLead(t, nil, domain.LeadItemSelection{PriceItemID: f.painting.ID})

	detail, err := f.svc.Get(f.staffCtx(), resp.QuotationID)
	if err != nil {
		t.Fatalf("get quotation: %v", err)
	}
	if detail.Quotation.Status != domain.StatusQuoteSent {
		t.Fatalf("status = %s, want quote_sent", detail.Quotation.Status)
	}
	if detail.Quotation.SentAt == nil {
		t.Fatal("sent_at not set")
	}

	want := []string{domain.ActionLeadSubmitted, domain.ActionQuoteSent}
	got := f.auditActions(t, resp.QuotationID)
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("audit trail = %v, want %v", got, want)
	}

	sent := f.mail.messages()
	if len(sent) != 1 {
		t.Fatalf("expected 1 quote email, got %d", len(sent))
	}
	if len(sent[0].to) != 1 || sent[0].to[0] != "piet@example.com" {
		t.Fatalf("quote email sent to %v", sent[0].to)
	}
}

func TestPublicViewMarksViewedOnce(t *testing.T) {
	f := newFixture(t)

	resp := f.submitLead(t, nil, domain.LeadItemSelection{PriceItemID: f.painting.ID})

	first := f.view(t, resp.Token)
	if first.Quotation.Status != domain.StatusViewed {
		t.Fatalf("status after first view = %s, want viewed", first.Quotation.Status)
	}
	if first.Organization.Name != "Jansen Schilderwerken" {
		t.Fatalf("organization name = %q", first.Organization.Name)
	}
	if first.Quotation.ViewedAt == nil {
		t.Fatal("viewed_at not set")
	}

	second := f.view(t, resp.Token)
	if second.Quotation.Status != domain.StatusViewed {
		t.Fatalf("status after second view = %s, want viewed", second.Quotation.Status)
	}

	viewedEntries := 0
	for _, action := range f.auditActions(t, resp.QuotationID) {
		if action == domain.ActionViewed {
			viewedEntries++
		}
	}
	if viewedEntries != 1 {
		t.Fatalf("expected exactly one viewed audit entry, got %d", viewedEntries)
	}
}

func TestPublicViewHidesDependentOfDeselectedParent(t *testing.T) {
	f := newFixture(t)

	resp := f.submitLead(t, nil,
		domain.LeadItemSelection{PriceItemID: f.painting.ID},
		domain.LeadItemSelection{PriceItemID: f.scaffold.ID},
		domain.LeadItemSelection{PriceItemID: f.extraTier.ID},
	)
	view := f.view(t, resp.Token)
	if len(view.Items) != 3 {
		t.Fatalf("expected 3 visible items, got %d", len(view.Items))
	}

	var scaffoldLine snowflake.ID
	for _, item := range view.Items {
		if item.Name == "Scaffolding" {
			scaffoldLine = item.ID
		}
	}
	f.accept(t, resp.Token, domain.ItemSelection{ItemID: scaffoldLine, Selected: false})

	after := f.view(t, resp.Token)
	for _, item := range after.Items {
		if item.Name == "Extra scaffold tier" {
			t.Fatal("dependent line still visible after its parent was deselected")
		}
	}
}

func TestAcceptSignsAndPromotesBooking(t *testing.T) {
	f := newFixture(t)

	preferred := time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC)
	resp := f.submitLead(t, &preferred,
		domain.LeadItemSelection{PriceItemID: f.painting.ID, Quantity: decimal.NewFromInt(3)},
	)
	f.view(t, resp.Token)

	q := f.accept(t, resp.Token)
	if q.Status != domain.StatusApproved {
		t.Fatalf("status = %s, want approved", q.Status)
	}
	if q.Signature == "" || q.SignedAt == nil {
		t.Fatal("signature not recorded")
	}
	if got := q.Total.StringFixed(2); got != "363.00" {
		t.Fatalf("total = %s, want 363.00", got)
	}

	if booked := f.eventsOfType(t, caldomain.TypeBooked); len(booked) != 1 {
		t.Fatalf("expected 1 booked event, got %d", len(booked))
	}
	if requested := f.eventsOfType(t, caldomain.TypeRequested); len(requested) != 0 {
		t.Fatalf("requested event not promoted, %d left", len(requested))
	}

	want := []string{domain.ActionLeadSubmitted, domain.ActionQuoteSent, domain.ActionViewed, domain.ActionApproved}
	got := f.auditActions(t, resp.QuotationID)
	if len(got) != len(want) {
		t.Fatalf("audit trail = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("audit trail = %v, want %v", got, want)
		}
	}

	// Terminal-ward moves cannot repeat.
	_, err := f.svc.Accept(context.Background(), domain.AcceptRequest{
		Token: resp.Token, Signature: "sig",
	})
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("second accept: expected ErrInvalidTransition, got %v", err)
	}
}

func TestAcceptRequiresSignature(t *testing.T) {
	f := newFixture(t)

	resp := f.submitLead(t, nil, domain.LeadItemSelection{PriceItemID: f.painting.ID})
	f.view(t, resp.Token)

	_, err := f.svc.Accept(context.Background(), domain.AcceptRequest{Token: resp.Token, Signature: "   "})
	if !errors.Is(err, domain.ErrSignatureRequired) {
		t.Fatalf("expected ErrSignatureRequired, got %v", err)
	}
}

func TestAcceptBeforeViewIsRejected(t *testing.T) {
	f := newFixture(t)

	resp := f.submitLead(t, nil, domain.LeadItemSelection{PriceItemID: f.painting.ID})

	_, err := f.svc.Accept(context.Background(), domain.AcceptRequest{Token: resp.Token, Signature: "sig"})
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestAcceptExpiredQuote(t *testing.T) {
	f := newFixture(t)

	resp := f.submitLead(t, nil, domain.LeadItemSelection{PriceItemID: f.painting.ID})
	f.view(t, resp.Token)

	past := f.clock.now.Add(-24 * time.Hour)
	if err := f.db.Exec(`UPDATE quotations SET valid_until = ? WHERE id = ?`, past, resp.QuotationID).Error; err != nil {
		t.Fatalf("failed to expire quote: %v", err)
	}

	_, err := f.svc.Accept(context.Background(), domain.AcceptRequest{Token: resp.Token, Signature: "sig"})
	if !errors.Is(err, domain.ErrQuoteExpired) {
		t.Fatalf("expected ErrQuoteExpired, got %v", err)
	}
}

func TestAcceptWithNothingSelected(t *testing.T) {
	f := newFixture(t)

	resp := f.submitLead(t, nil, domain.LeadItemSelection{PriceItemID: f.scaffold.ID})
	view := f.view(t, resp.Token)

	_, err := f.svc.Accept(context.Background(), domain.AcceptRequest{
		Token:     resp.Token,
		Signature: "sig",
		Items:     []domain.ItemSelection{{ItemID: view.Items[0].ID, Selected: false}},
	})
	if !errors.Is(err, domain.ErrNoItemsSelected) {
		t.Fatalf("expected ErrNoItemsSelected, got %v", err)
	}
}

func TestAcceptIgnoresTogglesOnRequiredLines(t *testing.T) {
	f := newFixture(t)

	resp := f.submitLead(t, nil,
		domain.LeadItemSelection{PriceItemID: f.painting.ID},
		domain.LeadItemSelection{PriceItemID: f.scaffold.ID},
	)
	view := f.view(t, resp.Token)

	var paintingLine, scaffoldLine snowflake.ID
	for _, item := range view.Items {
		switch item.Name {
		case "Fence painting":
			paintingLine = item.ID
		case "Scaffolding":
			scaffoldLine = item.ID
		}
	}

	// The client tries to deselect everything; only the optional
	// scaffolding line actually comes off the quote.
	q := f.accept(t, resp.Token,
		domain.ItemSelection{ItemID: paintingLine, Selected: false},
		domain.ItemSelection{ItemID: scaffoldLine, Selected: false},
	)
	if got := q.Total.StringFixed(2); got != "121.00" {
		t.Fatalf("total = %s, want 121.00", got)
	}

	detail, err := f.svc.Get(f.staffCtx(), resp.QuotationID)
	if err != nil {
		t.Fatalf("get quotation: %v", err)
	}
	for _, item := range detail.Items {
		switch item.Name {
		case "Fence painting":
			if !item.IsSelected {
				t.Fatal("required line was deselected by a client toggle")
			}
		case "Scaffolding":
			if item.IsSelected {
				t.Fatal("optional line should have been deselected")
			}
		}
	}
}

func TestRejectClearsRequestedBooking(t *testing.T) {
	f := newFixture(t)

	preferred := time.Date(2025, 6, 12, 14, 0, 0, 0, time.UTC)
	resp := f.submitLead(t, &preferred, domain.LeadItemSelection{PriceItemID: f.painting.ID})

	_, err := f.svc.Reject(context.Background(), domain.RejectRequest{Token: resp.Token, Reason: "too expensive"})
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("reject before view: expected ErrInvalidTransition, got %v", err)
	}

	f.view(t, resp.Token)
	q, err := f.svc.Reject(context.Background(), domain.RejectRequest{Token: resp.Token, Reason: "too expensive"})
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if q.Status != domain.StatusRejected {
		t.Fatalf("status = %s, want rejected", q.Status)
	}
	if q.RejectionReason != "too expensive" {
		t.Fatalf("rejection reason = %q", q.RejectionReason)
	}
	if requested := f.eventsOfType(t, caldomain.TypeRequested); len(requested) != 0 {
		t.Fatalf("requested event not dropped, %d left", len(requested))
	}
}

func TestSendAllowsResendUntilViewed(t *testing.T) {
	f := newFixture(t)

	resp := f.submitLead(t, nil, domain.LeadItemSelection{PriceItemID: f.painting.ID})

	q, err := f.svc.Send(f.staffCtx(), resp.QuotationID)
	if err != nil {
		t.Fatalf("resend: %v", err)
	}
	if q.Status != domain.StatusQuoteSent {
		t.Fatalf("status = %s, want quote_sent", q.Status)
	}
	if q.SentAt == nil {
		t.Fatal("sent_at not set")
	}
	// One email from the submit, one from the resend.
	if sent := f.mail.messages(); len(sent) != 2 {
		t.Fatalf("expected 2 quote emails, got %d", len(sent))
	}

	f.view(t, resp.Token)
	if _, err := f.svc.Send(f.staffCtx(), resp.QuotationID); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("send after view: expected ErrInvalidTransition, got %v", err)
	}
}

func TestUpdateDraftRecalculatesTotals(t *testing.T) {
	f := newFixture(t)

	resp := f.submitLead(t, nil, domain.LeadItemSelection{PriceItemID: f.painting.ID})

	discount := decimal.NewFromInt(50)
	detail, err := f.svc.UpdateDraft(f.staffCtx(), resp.QuotationID, domain.UpdateDraftRequest{
		Discount: &discount,
		Items: []domain.DraftItem{
			{Name: "Full repaint", UnitPrice: decimal.NewFromInt(300), Quantity: decimal.NewFromInt(1), IsSelected: true},
			{Name: "Premium primer", UnitPrice: decimal.NewFromInt(45), IsSelected: false, IsOptional: true},
		},
	})
	if err != nil {
		t.Fatalf("update draft: %v", err)
	}
	if len(detail.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(detail.Items))
	}
	if got := detail.Quotation.Subtotal.StringFixed(2); got != "300.00" {
		t.Fatalf("subtotal = %s, want 300.00", got)
	}
	// VAT applies after the discount: (300 - 50) * 21%.
	if got := detail.Quotation.VatAmount.StringFixed(2); got != "52.50" {
		t.Fatalf("vat = %s, want 52.50", got)
	}
	if got := detail.Quotation.Total.StringFixed(2); got != "302.50" {
		t.Fatalf("total = %s, want 302.50", got)
	}
}

func TestUpdateDraftAfterApprovalIsRejected(t *testing.T) {
	f := newFixture(t)

	resp := f.submitLead(t, nil, domain.LeadItemSelection{PriceItemID: f.painting.ID})
	f.view(t, resp.Token)
	f.accept(t, resp.Token)

	notes := "late edit"
	_, err := f.svc.UpdateDraft(f.staffCtx(), resp.QuotationID, domain.UpdateDraftRequest{Notes: &notes})
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestGenerateInvoiceAllocatesSequentialNumbers(t *testing.T) {
	f := newFixture(t)

	first := f.submitLead(t, nil, domain.LeadItemSelection{PriceItemID: f.painting.ID})
	second := f.submitLead(t, nil, domain.LeadItemSelection{PriceItemID: f.scaffold.ID})
	for _, resp := range []domain.SubmitLeadResponse{first, second} {
		f.view(t, resp.Token)
		f.accept(t, resp.Token)
	}

	q1, err := f.svc.GenerateInvoice(f.staffCtx(), domain.GenerateInvoiceRequest{ID: first.QuotationID})
	if err != nil {
		t.Fatalf("invoice first: %v", err)
	}
	if q1.InvoiceNumber != "INV-1001" {
		t.Fatalf("first invoice number = %q, want INV-1001", q1.InvoiceNumber)
	}
	if q1.Status != domain.StatusInvoiced {
		t.Fatalf("status = %s, want invoiced", q1.Status)
	}

	q2, err := f.svc.GenerateInvoice(f.staffCtx(), domain.GenerateInvoiceRequest{ID: second.QuotationID})
	if err != nil {
		t.Fatalf("invoice second: %v", err)
	}
	if q2.InvoiceNumber != "INV-1002" {
		t.Fatalf("second invoice number = %q, want INV-1002", q2.InvoiceNumber)
	}

	_, err = f.svc.GenerateInvoice(f.staffCtx(), domain.GenerateInvoiceRequest{ID: first.QuotationID})
	if !errors.Is(err, domain.ErrAlreadyInvoiced) {
		t.Fatalf("re-invoice: expected ErrAlreadyInvoiced, got %v", err)
	}
}

func TestGenerateInvoiceRequiresApproval(t *testing.T) {
	f := newFixture(t)

	resp := f.submitLead(t, nil, domain.LeadItemSelection{PriceItemID: f.painting.ID})
	f.view(t, resp.Token)

	_, err := f.svc.GenerateInvoice(f.staffCtx(), domain.GenerateInvoiceRequest{ID: resp.QuotationID})
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestMarkPaidOnlyFromInvoiced(t *testing.T) {
	f := newFixture(t)

	resp := f.submitLead(t, nil, domain.LeadItemSelection{PriceItemID: f.painting.ID})
	f.view(t, resp.Token)
	f.accept(t, resp.Token)

	if _, err := f.svc.MarkPaid(f.staffCtx(), resp.QuotationID); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("mark paid before invoicing: expected ErrInvalidTransition, got %v", err)
	}

	if _, err := f.svc.GenerateInvoice(f.staffCtx(), domain.GenerateInvoiceRequest{ID: resp.QuotationID}); err != nil {
		t.Fatalf("invoice: %v", err)
	}
	q, err := f.svc.MarkPaid(f.staffCtx(), resp.QuotationID)
	if err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if q.Status != domain.StatusPaid || q.PaidAt == nil {
		t.Fatalf("status = %s paid_at = %v, want paid with timestamp", q.Status, q.PaidAt)
	}
}

func TestSendInvoiceProvisionsPortalIdempotently(t *testing.T) {
	f := newFixture(t)

	resp := f.submitLead(t, nil, domain.LeadItemSelection{PriceItemID: f.painting.ID})

	if _, err := f.svc.SendInvoice(f.staffCtx(), resp.QuotationID); !errors.Is(err, domain.ErrNotInvoiced) {
		t.Fatalf("send before invoicing: expected ErrNotInvoiced, got %v", err)
	}

	f.view(t, resp.Token)
	f.accept(t, resp.Token)
	if _, err := f.svc.GenerateInvoice(f.staffCtx(), domain.GenerateInvoiceRequest{ID: resp.QuotationID}); err != nil {
		t.Fatalf("invoice: %v", err)
	}

	first, err := f.svc.SendInvoice(f.staffCtx(), resp.QuotationID)
	if err != nil {
		t.Fatalf("send invoice: %v", err)
	}
	if !first.ClientCreated {
		t.Fatal("expected a portal account on first send")
	}
	if !first.EmailSent {
		t.Fatal("expected email to be reported sent")
	}

	var client cudomain.ClientUser
	if err := f.db.Raw(`SELECT * FROM client_users WHERE org_id = ? AND email = ?`, f.org.ID, "piet@example.com").
		Scan(&client).Error; err != nil || client.ID == 0 {
		t.Fatalf("portal account missing: %v", err)
	}

	second, err := f.svc.SendInvoice(f.staffCtx(), resp.QuotationID)
	if err != nil {
		t.Fatalf("resend invoice: %v", err)
	}
	if second.ClientCreated {
		t.Fatal("resend must not create another portal account")
	}
	if second.ClientUserID != first.ClientUserID || second.DossierID != first.DossierID {
		t.Fatal("resend attached to different portal account or dossier")
	}

	var dossierCount int64
	if err := f.db.Raw(`SELECT COUNT(1) FROM dossiers WHERE quotation_id = ?`, resp.QuotationID).
		Scan(&dossierCount).Error; err != nil {
		t.Fatalf("count dossiers: %v", err)
	}
	if dossierCount != 1 {
		t.Fatalf("expected a single dossier per quotation, got %d", dossierCount)
	}

	var entryCount int64
	if err := f.db.Raw(`SELECT COUNT(1) FROM dossier_entries WHERE dossier_id = ? AND kind = ?`,
		first.DossierID, dosdomain.EntryInvoicePDF).Scan(&entryCount).Error; err != nil {
		t.Fatalf("count entries: %v", err)
	}
	if entryCount != 2 {
		t.Fatalf("expected an invoice entry per send, got %d", entryCount)
	}
}

func TestInvoicePDFFilename(t *testing.T) {
	f := newFixture(t)

	resp := f.submitLead(t, nil, domain.LeadItemSelection{PriceItemID: f.painting.ID})
	f.view(t, resp.Token)
	f.accept(t, resp.Token)

	if _, _, err := f.svc.InvoicePDF(f.staffCtx(), resp.QuotationID); !errors.Is(err, domain.ErrNotInvoiced) {
		t.Fatalf("expected ErrNotInvoiced, got %v", err)
	}

	if _, err := f.svc.GenerateInvoice(f.staffCtx(), domain.GenerateInvoiceRequest{ID: resp.QuotationID}); err != nil {
		t.Fatalf("invoice: %v", err)
	}
	filename, _, err := f.svc.InvoicePDF(f.staffCtx(), resp.QuotationID)
	if err != nil {
		t.Fatalf("invoice pdf: %v", err)
	}
	if filename != "invoice-inv-1001.pdf" {
		t.Fatalf("filename = %q", filename)
	}
}

func TestAssignRecordsAuditTrail(t *testing.T) {
	f := newFixture(t)

	resp := f.submitLead(t, nil, domain.LeadItemSelection{PriceItemID: f.painting.ID})

	employee := f.node.Generate()
	q, err := f.svc.Assign(f.staffCtx(), resp.QuotationID, &employee)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if q.AssignedEmployeeID == nil || *q.AssignedEmployeeID != employee {
		t.Fatalf("assigned_employee_id = %v, want %v", q.AssignedEmployeeID, employee)
	}

	q, err = f.svc.Assign(f.staffCtx(), resp.QuotationID, nil)
	if err != nil {
		t.Fatalf("unassign: %v", err)
	}
	if q.AssignedEmployeeID != nil {
		t.Fatalf("assigned_employee_id = %v, want nil", q.AssignedEmployeeID)
	}

	assigned := 0
	for _, action := range f.auditActions(t, resp.QuotationID) {
		if action == domain.ActionAssigned {
			assigned++
		}
	}
	if assigned != 2 {
		t.Fatalf("expected 2 assigned audit entries, got %d", assigned)
	}
}

func TestListPaginatesByCursor(t *testing.T) {
	f := newFixture(t)

	for i := 0; i < 3; i++ {
		f.submitLead(t, nil, domain.LeadItemSelection{PriceItemID: f.painting.ID})
	}

	page1, info, err := f.svc.List(f.staffCtx(), domain.ListFilter{}, pagination.Pagination{PageSize: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page1) != 2 || !info.HasMore {
		t.Fatalf("page 1: got %d items, has_more=%v", len(page1), info.HasMore)
	}

	page2, info2, err := f.svc.List(f.staffCtx(), domain.ListFilter{}, pagination.Pagination{
		PageSize: 2, PageToken: info.NextPageToken,
	})
	if err != nil {
		t.Fatalf("list page 2: %v", err)
	}
	if len(page2) != 1 || info2.HasMore {
		t.Fatalf("page 2: got %d items, has_more=%v", len(page2), info2.HasMore)
	}
	if page1[0].ID == page2[0].ID {
		t.Fatal("pages overlap")
	}
}

func TestListFiltersByStatus(t *testing.T) {
	f := newFixture(t)

	open := f.submitLead(t, nil, domain.LeadItemSelection{PriceItemID: f.painting.ID})
	done := f.submitLead(t, nil, domain.LeadItemSelection{PriceItemID: f.painting.ID})
	f.view(t, done.Token)
	f.accept(t, done.Token)

	leads, _, err := f.svc.List(f.staffCtx(), domain.ListFilter{Status: domain.StatusQuoteSent}, pagination.Pagination{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(leads) != 1 || leads[0].ID != open.QuotationID {
		t.Fatalf("status filter returned %d quotes", len(leads))
	}
}

func TestListSearchMatchesCaseInsensitively(t *testing.T) {
	f := newFixture(t)

	f.submitLead(t, nil, domain.LeadItemSelection{PriceItemID: f.painting.ID})
	other, err := f.svc.SubmitLead(context.Background(), domain.SubmitLeadRequest{
		OrgIDOrSlug:   "jansen",
		CustomerName:  "Marieke Bakker",
		CustomerEmail: "marieke@example.com",
		Items:         []domain.LeadItemSelection{{PriceItemID: f.painting.ID}},
	})
	if err != nil {
		t.Fatalf("submit lead: %v", err)
	}

	found, _, err := f.svc.List(f.staffCtx(), domain.ListFilter{Search: "BAKKER"}, pagination.Pagination{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(found) != 1 || found[0].ID != other.QuotationID {
		t.Fatalf("search returned %d quotes", len(found))
	}

	none, _, err := f.svc.List(f.staffCtx(), domain.ListFilter{Search: "nobody"}, pagination.Pagination{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected no matches, got %d", len(none))
	}
}

func TestListScopesStaffToAssignments(t *testing.T) {
	f := newFixture(t)

	mine := f.submitLead(t, nil, domain.LeadItemSelection{PriceItemID: f.painting.ID})
	f.submitLead(t, nil, domain.LeadItemSelection{PriceItemID: f.painting.ID})

	employee := f.node.Generate()
	if _, err := f.svc.Assign(f.staffCtx(), mine.QuotationID, &employee); err != nil {
		t.Fatalf("assign: %v", err)
	}

	all, _, err := f.svc.List(f.staffCtx(), domain.ListFilter{}, pagination.Pagination{})
	if err != nil {
		t.Fatalf("owner list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("owner sees %d quotes, want 2", len(all))
	}

	staffCtx := orgcontext.WithPrincipal(
		orgcontext.WithOrgID(context.Background(), f.org.ID),
		orgcontext.Principal{UserID: employee, OrgID: f.org.ID, Role: orgcontext.RoleStaff, Username: "bob"},
	)
	scoped, _, err := f.svc.List(staffCtx, domain.ListFilter{}, pagination.Pagination{})
	if err != nil {
		t.Fatalf("staff list: %v", err)
	}
	if len(scoped) != 1 || scoped[0].ID != mine.QuotationID {
		t.Fatalf("staff sees %d quotes, want only the assigned one", len(scoped))
	}
}

func TestGenerateInvoiceConcurrentCallsGetDistinctNumbers(t *testing.T) {
	f := newFixture(t)

	sqlDB, err := f.db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	const workers = 4
	ids := make([]snowflake.ID, workers)
	for i := range ids {
		resp := f.submitLead(t, nil, domain.LeadItemSelection{PriceItemID: f.painting.ID})
		f.view(t, resp.Token)
		f.accept(t, resp.Token)
		ids[i] = resp.QuotationID
	}

	ctx := f.staffCtx()
	results := make([]domain.Quotation, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.svc.GenerateInvoice(ctx, domain.GenerateInvoiceRequest{ID: ids[i]})
		}(i)
	}
	wg.Wait()

	numbers := map[string]bool{}
	for i := range ids {
		if errs[i] != nil {
			t.Fatalf("invoice %d: %v", i, errs[i])
		}
		numbers[results[i].InvoiceNumber] = true
	}
	for _, want := range []string{"INV-1001", "INV-1002", "INV-1003", "INV-1004"} {
		if !numbers[want] {
			t.Fatalf("allocated numbers %v, missing %s", numbers, want)
		}
	}
}
