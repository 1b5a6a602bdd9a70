package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"math/big"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/quotedesk/quotedesk/internal/clientuser/domain"
	"github.com/quotedesk/quotedesk/internal/clock"
	"github.com/quotedesk/quotedesk/internal/config"
	"github.com/quotedesk/quotedesk/internal/orgcontext"
	orgdomain "github.com/quotedesk/quotedesk/internal/organization/domain"
)

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Clock  clock.Clock
	Config config.Config
	Repo   domain.Repository
	OrgSvc orgdomain.Service
}

type service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	sessionTTL time.Duration
	repo       domain.Repository
	orgSvc     orgdomain.Service
}

func New(p Params) domain.Service {
	ttl := time.Duration(p.Config.SessionTTLHours) * time.Hour
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &service{
		db:         p.DB,
		log:        p.Log.Named("clientuser.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		sessionTTL: ttl,
		repo:       p.Repo,
		orgSvc:     p.OrgSvc,
	}
}

func (s *service) EnsureForQuotation(ctx context.Context, tx *gorm.DB, orgID snowflake.ID, email, name, phone string) (domain.EnsureResult, error) {
	if tx == nil {
		tx = s.db
	}
	email = strings.ToLower(strings.TrimSpace(email))

	if existing, err := s.repo.FindByEmail(ctx, tx, orgID, email); err == nil {
		return domain.EnsureResult{User: *existing}, nil
	}

	password, err := generatePassword(12)
	if err != nil {
		return domain.EnsureResult{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return domain.EnsureResult{}, err
	}

	now := s.clock.Now()
	user := &domain.ClientUser{
		ID:           s.genID.Generate(),
		OrgID:        orgID,
		Email:        email,
		Name:         strings.TrimSpace(name),
		Phone:        strings.TrimSpace(phone),
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Insert(ctx, tx, user); err != nil {
		return domain.EnsureResult{}, err
	}

	// ON CONFLICT DO NOTHING means a concurrent create may have won. Re-read
	// so every caller sees the same row.
	winner, err := s.repo.FindByEmail(ctx, tx, orgID, email)
	if err != nil {
		return domain.EnsureResult{}, err
	}
	if winner.ID != user.ID {
		return domain.EnsureResult{User: *winner}, nil
	}

	s.log.Info("client user created",
		zap.Int64("org_id", orgID.Int64()),
		zap.Int64("client_user_id", user.ID.Int64()),
	)
	return domain.EnsureResult{User: *winner, Created: true, PlainPassword: password}, nil
}

func (s *service) Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, error) {
	org, err := s.orgSvc.ResolveByIDOrSlug(ctx, req.OrgIDOrSlug)
	if err != nil {
		return domain.LoginResponse{}, domain.ErrInvalidCredentials
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	user, err := s.repo.FindByEmail(ctx, s.db, org.ID, email)
	if err != nil {
		return domain.LoginResponse{}, domain.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return domain.LoginResponse{}, domain.ErrInvalidCredentials
	}

	rawToken, tokenHash, err := newSessionToken()
	if err != nil {
		return domain.LoginResponse{}, err
	}
	session := &domain.ClientSession{
		ID:           s.genID.Generate(),
		ClientUserID: user.ID,
		TokenHash:    tokenHash,
		ExpiresAt:    s.clock.Now().Add(s.sessionTTL),
		CreatedAt:    s.clock.Now(),
	}
	if err := s.repo.InsertSession(ctx, s.db, session); err != nil {
		return domain.LoginResponse{}, err
	}

	now := s.clock.Now()
	_ = s.repo.Update(ctx, s.db, org.ID, user.ID, map[string]any{"last_login_at": now})

	s.log.Info("client logged in",
		zap.Int64("org_id", org.ID.Int64()),
		zap.Int64("client_user_id", user.ID.Int64()),
	)
	return domain.LoginResponse{Token: rawToken, User: *user}, nil
}

func (s *service) Logout(ctx context.Context, rawToken string) error {
	if rawToken == "" {
		return nil
	}
	return s.repo.DeleteSessionByTokenHash(ctx, s.db, hashToken(rawToken))
}

func (s *service) Authenticate(ctx context.Context, rawToken string) (domain.ClientPrincipal, error) {
	if rawToken == "" {
		return domain.ClientPrincipal{}, domain.ErrSessionExpired
	}

	session, err := s.repo.FindSessionByTokenHash(ctx, s.db, hashToken(rawToken))
	if err != nil {
		return domain.ClientPrincipal{}, domain.ErrSessionExpired
	}
	if s.clock.Now().After(session.ExpiresAt) {
		_ = s.repo.DeleteSessionByTokenHash(ctx, s.db, session.TokenHash)
		return domain.ClientPrincipal{}, domain.ErrSessionExpired
	}

	var user domain.ClientUser
	err = s.db.WithContext(ctx).
		Raw(`SELECT * FROM client_users WHERE id = ?`, session.ClientUserID).
		Scan(&user).Error
	if err != nil || user.ID == 0 {
		return domain.ClientPrincipal{}, domain.ErrSessionExpired
	}

	return domain.ClientPrincipal{
		ClientUserID: user.ID,
		OrgID:        user.OrgID,
		Email:        user.Email,
		Name:         user.Name,
	}, nil
}

func (s *service) List(ctx context.Context) ([]*domain.ClientUser, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, orgdomain.ErrInvalidOrganization
	}
	return s.repo.ListByOrg(ctx, s.db, orgID)
}

const passwordAlphabet = "abcdefghijkmnpqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func generatePassword(length int) (string, error) {
	out := make([]byte, length)
	max := big.NewInt(int64(len(passwordAlphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = passwordAlphabet[n.Int64()]
	}
	return string(out), nil
}

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
