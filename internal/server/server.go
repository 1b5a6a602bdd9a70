package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/quotedesk/quotedesk/internal/auth"
	authdomain "github.com/quotedesk/quotedesk/internal/auth/domain"
	"github.com/quotedesk/quotedesk/internal/authorization"
	"github.com/quotedesk/quotedesk/internal/calendar"
	calendardomain "github.com/quotedesk/quotedesk/internal/calendar/domain"
	"github.com/quotedesk/quotedesk/internal/catalog"
	catalogdomain "github.com/quotedesk/quotedesk/internal/catalog/domain"
	"github.com/quotedesk/quotedesk/internal/clientuser"
	clientuserdomain "github.com/quotedesk/quotedesk/internal/clientuser/domain"
	"github.com/quotedesk/quotedesk/internal/config"
	"github.com/quotedesk/quotedesk/internal/dossier"
	dossierdomain "github.com/quotedesk/quotedesk/internal/dossier/domain"
	"github.com/quotedesk/quotedesk/internal/notification"
	notificationdomain "github.com/quotedesk/quotedesk/internal/notification/domain"
	"github.com/quotedesk/quotedesk/internal/observability"
	obslogger "github.com/quotedesk/quotedesk/internal/observability/logger"
	obsmetrics "github.com/quotedesk/quotedesk/internal/observability/metrics"
	obstracing "github.com/quotedesk/quotedesk/internal/observability/tracing"
	"github.com/quotedesk/quotedesk/internal/organization"
	organizationdomain "github.com/quotedesk/quotedesk/internal/organization/domain"
	"github.com/quotedesk/quotedesk/internal/providers"
	"github.com/quotedesk/quotedesk/internal/quotation"
	quotationdomain "github.com/quotedesk/quotedesk/internal/quotation/domain"
	"github.com/quotedesk/quotedesk/internal/ratelimit"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	authorization.Module,
	providers.Module,
	ratelimit.Module,
	auth.Module,
	organization.Module,
	catalog.Module,
	quotation.Module,
	calendar.Module,
	clientuser.Module,
	dossier.Module,
	notification.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine          *gin.Engine
	cfg             config.Config
	db              *gorm.DB
	genID           *snowflake.Node
	authsvc         authdomain.Service
	authzSvc        authorization.Service
	organizationSvc organizationdomain.Service
	catalogSvc      catalogdomain.Service
	quotationSvc    quotationdomain.Service
	calendarSvc     calendardomain.Service
	clientUserSvc   clientuserdomain.Service
	dossierSvc      dossierdomain.Service
	notificationSvc notificationdomain.Service
	publicLimiter   *ratelimit.PublicLimiter
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	DB              *gorm.DB
	GenID           *snowflake.Node
	Authsvc         authdomain.Service
	AuthzSvc        authorization.Service
	OrganizationSvc organizationdomain.Service
	CatalogSvc      catalogdomain.Service
	QuotationSvc    quotationdomain.Service
	CalendarSvc     calendardomain.Service
	ClientUserSvc   clientuserdomain.Service
	DossierSvc      dossierdomain.Service
	NotificationSvc notificationdomain.Service
	PublicLimiter   *ratelimit.PublicLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		db:              p.DB,
		genID:           p.GenID,
		authsvc:         p.Authsvc,
		authzSvc:        p.AuthzSvc,
		organizationSvc: p.OrganizationSvc,
		catalogSvc:      p.CatalogSvc,
		quotationSvc:    p.QuotationSvc,
		calendarSvc:     p.CalendarSvc,
		clientUserSvc:   p.ClientUserSvc,
		dossierSvc:      p.DossierSvc,
		notificationSvc: p.NotificationSvc,
		publicLimiter:   p.PublicLimiter,
	}

	svc.registerAuthRoutes()
	svc.registerAdminRoutes()
	svc.registerPublicRoutes()
	svc.registerPortalRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAuthRoutes() {
	authGroup := s.engine.Group("/auth")

	authGroup.POST("/login", s.Login)
	authGroup.POST("/logout", s.Logout)
	authGroup.GET("/me", s.AuthRequired(), s.Me)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin")
	admin.Use(s.AuthRequired())

	// -------- Organization --------
	admin.GET("/organization", s.authorize(authorization.ObjectOrganization, authorization.ActionView), s.GetOrganization)
	admin.PATCH("/organization", s.authorize(authorization.ObjectOrganization, authorization.ActionUpdate), s.UpdateOrganization)

	// -------- Employees --------
	admin.GET("/employees", s.authorize(authorization.ObjectEmployee, authorization.ActionManage), s.ListEmployees)
	admin.POST("/employees", s.authorize(authorization.ObjectEmployee, authorization.ActionManage), s.CreateEmployee)
	admin.PATCH("/employees/:id", s.authorize(authorization.ObjectEmployee, authorization.ActionManage), s.UpdateEmployee)
	admin.DELETE("/employees/:id", s.authorize(authorization.ObjectEmployee, authorization.ActionManage), s.DeleteEmployee)

	// -------- Catalog --------
	admin.GET("/catalog", s.authorize(authorization.ObjectCatalog, authorization.ActionView), s.ListCatalogItems)
	admin.POST("/catalog", s.authorize(authorization.ObjectCatalog, authorization.ActionCreate), s.CreateCatalogItem)
	admin.GET("/catalog/:id", s.authorize(authorization.ObjectCatalog, authorization.ActionView), s.GetCatalogItem)
	admin.PATCH("/catalog/:id", s.authorize(authorization.ObjectCatalog, authorization.ActionUpdate), s.UpdateCatalogItem)
	admin.DELETE("/catalog/:id", s.authorize(authorization.ObjectCatalog, authorization.ActionDelete), s.DeleteCatalogItem)

	// -------- Quotations --------
	admin.GET("/quotations", s.authorize(authorization.ObjectQuotation, authorization.ActionView), s.ListQuotations)
	admin.GET("/quotations/:id", s.authorize(authorization.ObjectQuotation, authorization.ActionView), s.GetQuotation)
	admin.PATCH("/quotations/:id", s.authorize(authorization.ObjectQuotation, authorization.ActionUpdate), s.UpdateQuotationDraft)
	admin.POST("/quotations/:id/send", s.authorize(authorization.ObjectQuotation, authorization.ActionQuotationSend), s.SendQuotation)
	admin.POST("/quotations/:id/assign", s.authorize(authorization.ObjectQuotation, authorization.ActionQuotationAssign), s.AssignQuotation)
	admin.POST("/quotations/:id/invoice", s.authorize(authorization.ObjectQuotation, authorization.ActionQuotationInvoice), s.GenerateInvoice)
	admin.POST("/quotations/:id/mark-paid", s.authorize(authorization.ObjectQuotation, authorization.ActionQuotationInvoice), s.MarkQuotationPaid)
	admin.POST("/quotations/:id/send-invoice", s.authorize(authorization.ObjectQuotation, authorization.ActionQuotationInvoice), s.SendInvoice)
	admin.GET("/quotations/:id/invoice.pdf", s.authorize(authorization.ObjectQuotation, authorization.ActionView), s.DownloadInvoicePDF)
	admin.GET("/quotations/:id/audit", s.authorize(authorization.ObjectQuotation, authorization.ActionView), s.ListQuotationAudit)

	// -------- Calendar --------
	admin.GET("/calendar/events", s.authorize(authorization.ObjectCalendar, authorization.ActionView), s.ListCalendarEvents)
	admin.POST("/calendar/events", s.authorize(authorization.ObjectCalendar, authorization.ActionManage), s.CreateCalendarEvent)
	admin.PATCH("/calendar/events/:id", s.authorize(authorization.ObjectCalendar, authorization.ActionManage), s.UpdateCalendarEvent)
	admin.DELETE("/calendar/events/:id", s.authorize(authorization.ObjectCalendar, authorization.ActionManage), s.DeleteCalendarEvent)

	// -------- Dossiers --------
	admin.GET("/dossiers", s.authorize(authorization.ObjectDossier, authorization.ActionView), s.ListDossiers)
	admin.GET("/dossiers/:id", s.authorize(authorization.ObjectDossier, authorization.ActionView), s.GetDossier)
	admin.POST("/dossiers/:id/complete", s.authorize(authorization.ObjectDossier, authorization.ActionUpdate), s.CompleteDossier)
	admin.DELETE("/dossiers/:id", s.authorize(authorization.ObjectDossier, authorization.ActionDelete), s.DeleteDossier)
	admin.POST("/dossiers/:id/entries", s.authorize(authorization.ObjectDossier, authorization.ActionUpdate), s.AddDossierEntry)
	admin.DELETE("/dossiers/:id/entries/:entryId", s.authorize(authorization.ObjectDossier, authorization.ActionUpdate), s.DeleteDossierEntry)
	admin.GET("/dossiers/:id/entries/:entryId/file", s.authorize(authorization.ObjectDossier, authorization.ActionView), s.DownloadDossierEntryFile)
	admin.POST("/dossiers/:id/messages", s.authorize(authorization.ObjectDossier, authorization.ActionUpdate), s.PostDossierMessage)
	admin.POST("/dossiers/:id/messages/read", s.authorize(authorization.ObjectDossier, authorization.ActionUpdate), s.MarkDossierMessagesRead)

	// -------- Clients --------
	admin.GET("/clients", s.authorize(authorization.ObjectClientUser, authorization.ActionView), s.ListClients)

	// -------- Notifications --------
	admin.GET("/notifications", s.authorize(authorization.ObjectNotification, authorization.ActionView), s.ListNotifications)
	admin.GET("/notifications/unread-count", s.authorize(authorization.ObjectNotification, authorization.ActionView), s.UnreadNotificationCount)
	admin.POST("/notifications/:id/read", s.authorize(authorization.ObjectNotification, authorization.ActionUpdate), s.MarkNotificationRead)
	admin.POST("/notifications/read-all", s.authorize(authorization.ObjectNotification, authorization.ActionUpdate), s.MarkAllNotificationsRead)
}

func (s *Server) registerPublicRoutes() {
	public := s.engine.Group("/public")
	public.Use(s.PublicRateLimit())

	// Lead form: branding, visible catalog and availability per organization.
	public.GET("/orgs/:org", s.PublicOrgProfile)
	public.POST("/orgs/:org/leads", s.SubmitLead)
	public.GET("/orgs/:org/availability", s.PublicBlockedDates)
	public.GET("/orgs/:org/availability/:date", s.PublicDayAvailability)

	// Token-bearing quote surface.
	public.GET("/quotes/:token", s.PublicQuote)
	public.POST("/quotes/:token/accept", s.AcceptQuote)
	public.POST("/quotes/:token/reject", s.RejectQuote)
}

func (s *Server) registerPortalRoutes() {
	portal := s.engine.Group("/portal")

	portal.POST("/:org/login", s.PublicRateLimit(), s.PortalLogin)
	portal.POST("/logout", s.ClientAuthRequired(), s.PortalLogout)
	portal.GET("/me", s.ClientAuthRequired(), s.PortalMe)

	dossiers := portal.Group("/dossiers", s.ClientAuthRequired())
	{
		dossiers.GET("", s.PortalListDossiers)
		dossiers.GET("/:id", s.PortalGetDossier)
		dossiers.POST("/:id/messages", s.PortalPostMessage)
		dossiers.POST("/:id/messages/read", s.PortalMarkMessagesRead)
		dossiers.POST("/:id/sign", s.PortalSignDossier)
		dossiers.GET("/:id/entries/:entryId/file", s.PortalDownloadEntryFile)
	}
}
