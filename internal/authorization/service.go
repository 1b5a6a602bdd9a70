package authorization

import (
	"context"
	_ "embed"
	"errors"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/quotedesk/quotedesk/internal/orgcontext"
)

//go:embed model.conf
var modelText string

// Objects.
const (
	ObjectOrganization = "organization"
	ObjectEmployee     = "employee"
	ObjectCatalog      = "catalog"
	ObjectQuotation    = "quotation"
	ObjectCalendar     = "calendar"
	ObjectDossier      = "dossier"
	ObjectClientUser   = "client_user"
	ObjectNotification = "notification"
)

// Actions.
const (
	ActionView   = "view"
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionManage = "manage"

	ActionQuotationSend    = "quotation.send"
	ActionQuotationAssign  = "quotation.assign"
	ActionQuotationInvoice = "quotation.invoice"
)

var (
	ErrForbidden     = errors.New("forbidden")
	ErrInvalidActor  = errors.New("invalid_actor")
	ErrInvalidObject = errors.New("invalid_object")
	ErrInvalidAction = errors.New("invalid_action")
)

type Service interface {
	// Authorize checks whether the principal's role may perform action on
	// object. Tenancy itself is enforced by org scoping in the services;
	// this guards capabilities within a tenant.
	Authorize(ctx context.Context, principal orgcontext.Principal, object, action string) error
}

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
}

type service struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	if err := enforcer.BuildRoleLinks(); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func New(p Params) Service {
	return &service{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
	}
}

func (s *service) Authorize(ctx context.Context, principal orgcontext.Principal, object, action string) error {
	role := strings.TrimSpace(principal.Role)
	if role == "" {
		return ErrInvalidActor
	}
	if strings.TrimSpace(object) == "" {
		return ErrInvalidObject
	}
	if strings.TrimSpace(action) == "" {
		return ErrInvalidAction
	}

	allowed, err := s.enforcer.Enforce("role:"+role, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.log.Debug("authorization denied",
			zap.String("role", role),
			zap.String("object", object),
			zap.String("action", action),
			zap.Int64("org_id", principal.OrgID.Int64()),
		)
		return ErrForbidden
	}
	return nil
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		// Staff (medewerker) permissions.
		{"role:" + orgcontext.RoleStaff, ObjectQuotation, ActionView},
		{"role:" + orgcontext.RoleStaff, ObjectQuotation, ActionUpdate},
		{"role:" + orgcontext.RoleStaff, ObjectQuotation, ActionQuotationSend},
		{"role:" + orgcontext.RoleStaff, ObjectQuotation, ActionQuotationInvoice},
		{"role:" + orgcontext.RoleStaff, ObjectCatalog, ActionView},
		{"role:" + orgcontext.RoleStaff, ObjectCalendar, ActionView},
		{"role:" + orgcontext.RoleStaff, ObjectCalendar, ActionManage},
		{"role:" + orgcontext.RoleStaff, ObjectDossier, ActionView},
		{"role:" + orgcontext.RoleStaff, ObjectDossier, ActionUpdate},
		{"role:" + orgcontext.RoleStaff, ObjectNotification, ActionView},
		{"role:" + orgcontext.RoleStaff, ObjectNotification, ActionUpdate},
		{"role:" + orgcontext.RoleStaff, ObjectOrganization, ActionView},

		// Owner-only permissions, on top of everything staff can do.
		{"role:" + orgcontext.RoleOwner, ObjectOrganization, ActionUpdate},
		{"role:" + orgcontext.RoleOwner, ObjectEmployee, ActionManage},
		{"role:" + orgcontext.RoleOwner, ObjectCatalog, ActionCreate},
		{"role:" + orgcontext.RoleOwner, ObjectCatalog, ActionUpdate},
		{"role:" + orgcontext.RoleOwner, ObjectCatalog, ActionDelete},
		{"role:" + orgcontext.RoleOwner, ObjectQuotation, ActionQuotationAssign},
		{"role:" + orgcontext.RoleOwner, ObjectDossier, ActionDelete},
		{"role:" + orgcontext.RoleOwner, ObjectClientUser, ActionView},
	}
	for _, policy := range policies {
		if _, err := enforcer.AddPolicy(policy[0], policy[1], policy[2]); err != nil {
			return err
		}
	}

	// The owner inherits the staff role.
	if _, err := enforcer.AddGroupingPolicy("role:"+orgcontext.RoleOwner, "role:"+orgcontext.RoleStaff); err != nil {
		return err
	}
	return nil
}
