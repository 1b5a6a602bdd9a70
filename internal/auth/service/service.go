package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/quotedesk/quotedesk/internal/auth/domain"
	"github.com/quotedesk/quotedesk/internal/clock"
	"github.com/quotedesk/quotedesk/internal/config"
	"github.com/quotedesk/quotedesk/internal/orgcontext"
	orgdomain "github.com/quotedesk/quotedesk/internal/organization/domain"
	"github.com/quotedesk/quotedesk/pkg/db"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Config  config.Config
	Repo    domain.Repository
	OrgRepo orgdomain.Repository
}

type service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	sessionTTL time.Duration
	repo       domain.Repository
	orgRepo    orgdomain.Repository
}

func New(p Params) domain.Service {
	ttl := time.Duration(p.Config.SessionTTLHours) * time.Hour
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &service{
		db:         p.DB,
		log:        p.Log.Named("auth.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		sessionTTL: ttl,
		repo:       p.Repo,
		orgRepo:    p.OrgRepo,
	}
}

func (s *service) Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, error) {
	username := strings.ToLower(strings.TrimSpace(req.Username))

	user, err := s.repo.FindUserByUsername(ctx, s.db, username)
	if err != nil {
		// Burn a comparison so missing and wrong-password logins take
		// the same time.
		_ = bcrypt.CompareHashAndPassword([]byte("$2a$10$0000000000000000000000000000000000000000000000000000"), []byte(req.Password))
		return domain.LoginResponse{}, domain.ErrInvalidCredentials
	}
	if !user.IsActive {
		return domain.LoginResponse{}, domain.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return domain.LoginResponse{}, domain.ErrInvalidCredentials
	}

	rawToken, tokenHash, err := newSessionToken()
	if err != nil {
		return domain.LoginResponse{}, err
	}

	session := &domain.Session{
		ID:        s.genID.Generate(),
		UserID:    user.ID,
		TokenHash: tokenHash,
		ExpiresAt: s.clock.Now().Add(s.sessionTTL),
		CreatedAt: s.clock.Now(),
	}
	if err := s.repo.InsertSession(ctx, s.db, session); err != nil {
		return domain.LoginResponse{}, err
	}

	s.log.Info("user logged in",
		zap.Int64("user_id", user.ID.Int64()),
		zap.Int64("org_id", user.OrgID.Int64()),
		zap.String("role", user.Role),
	)

	return domain.LoginResponse{
		Token:     rawToken,
		Principal: principalOf(user),
		User:      *user,
	}, nil
}

func (s *service) Logout(ctx context.Context, rawToken string) error {
	if rawToken == "" {
		return nil
	}
	return s.repo.DeleteSessionByTokenHash(ctx, s.db, hashToken(rawToken))
}

func (s *service) Authenticate(ctx context.Context, rawToken string) (orgcontext.Principal, error) {
	if rawToken == "" {
		return orgcontext.Principal{}, domain.ErrSessionExpired
	}

	session, err := s.repo.FindSessionByTokenHash(ctx, s.db, hashToken(rawToken))
	if err != nil {
		return orgcontext.Principal{}, domain.ErrSessionExpired
	}
	if s.clock.Now().After(session.ExpiresAt) {
		_ = s.repo.DeleteSessionByTokenHash(ctx, s.db, session.TokenHash)
		return orgcontext.Principal{}, domain.ErrSessionExpired
	}

	user, err := s.repo.FindUserByID(ctx, s.db, session.UserID)
	if err != nil || !user.IsActive {
		return orgcontext.Principal{}, domain.ErrSessionExpired
	}

	return principalOf(user), nil
}

func (s *service) CreateEmployee(ctx context.Context, req domain.CreateEmployeeRequest) (domain.User, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return domain.User{}, orgdomain.ErrInvalidOrganization
	}

	if len(req.Password) < 8 {
		return domain.User{}, domain.ErrWeakPassword
	}

	org, err := s.orgRepo.FindByID(ctx, s.db, orgID)
	if err != nil {
		return domain.User{}, err
	}
	count, err := s.orgRepo.CountStaff(ctx, s.db, orgID)
	if err != nil {
		return domain.User{}, err
	}
	if count >= org.MaxEmployees {
		return domain.User{}, domain.ErrMaxEmployees
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return domain.User{}, err
	}

	now := s.clock.Now()
	user := &domain.User{
		ID:           s.genID.Generate(),
		OrgID:        orgID,
		Username:     strings.ToLower(strings.TrimSpace(req.Username)),
		PasswordHash: string(hash),
		Role:         orgcontext.RoleStaff,
		FullName:     strings.TrimSpace(req.FullName),
		Email:        strings.TrimSpace(req.Email),
		Phone:        strings.TrimSpace(req.Phone),
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.InsertUser(ctx, s.db, user); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.User{}, domain.ErrUserExists
		}
		return domain.User{}, err
	}

	s.log.Info("employee created",
		zap.Int64("org_id", orgID.Int64()),
		zap.Int64("user_id", user.ID.Int64()),
	)
	return *user, nil
}

func (s *service) ListEmployees(ctx context.Context) ([]*domain.User, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, orgdomain.ErrInvalidOrganization
	}
	return s.repo.ListUsersByOrg(ctx, s.db, orgID)
}

func (s *service) UpdateEmployee(ctx context.Context, id snowflake.ID, req domain.UpdateEmployeeRequest) (domain.User, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return domain.User{}, orgdomain.ErrInvalidOrganization
	}

	user, err := s.repo.FindUserByID(ctx, s.db, id)
	if err != nil {
		return domain.User{}, err
	}
	if user.OrgID != orgID {
		return domain.User{}, domain.ErrUserNotFound
	}

	fields := map[string]any{}
	if req.FullName != nil {
		fields["full_name"] = strings.TrimSpace(*req.FullName)
	}
	if req.Email != nil {
		fields["email"] = strings.TrimSpace(*req.Email)
	}
	if req.Phone != nil {
		fields["phone"] = strings.TrimSpace(*req.Phone)
	}
	if req.Password != nil {
		if len(*req.Password) < 8 {
			return domain.User{}, domain.ErrWeakPassword
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			return domain.User{}, err
		}
		fields["password_hash"] = string(hash)
	}
	if req.IsActive != nil {
		if user.Role == orgcontext.RoleOwner && !*req.IsActive {
			return domain.User{}, domain.ErrOwnerImmutable
		}
		fields["is_active"] = *req.IsActive
		if !*req.IsActive {
			// Deactivation kills live sessions immediately.
			_ = s.repo.DeleteSessionsByUser(ctx, s.db, id)
		}
	}

	if err := s.repo.UpdateUser(ctx, s.db, id, fields); err != nil {
		return domain.User{}, err
	}

	updated, err := s.repo.FindUserByID(ctx, s.db, id)
	if err != nil {
		return domain.User{}, err
	}
	return *updated, nil
}

func (s *service) DeleteEmployee(ctx context.Context, id snowflake.ID) error {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return orgdomain.ErrInvalidOrganization
	}

	user, err := s.repo.FindUserByID(ctx, s.db, id)
	if err != nil {
		return err
	}
	if user.OrgID != orgID {
		return domain.ErrUserNotFound
	}
	if user.Role == orgcontext.RoleOwner {
		return domain.ErrOwnerImmutable
	}

	if err := s.repo.DeleteSessionsByUser(ctx, s.db, id); err != nil {
		return err
	}
	if err := s.repo.DeleteUser(ctx, s.db, orgID, id); err != nil {
		return err
	}

	s.log.Info("employee deleted",
		zap.Int64("org_id", orgID.Int64()),
		zap.Int64("user_id", id.Int64()),
	)
	return nil
}

func principalOf(user *domain.User) orgcontext.Principal {
	return orgcontext.Principal{
		UserID:   user.ID,
		OrgID:    user.OrgID,
		Role:     user.Role,
		Username: user.Username,
		FullName: user.FullName,
	}
}

// newSessionToken returns a 256-bit random token and its SHA-256 hex hash.
func newSessionToken() (raw string, hash string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", err
	}
	raw = hex.EncodeToString(buf)
	return raw, hashToken(raw), nil
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
