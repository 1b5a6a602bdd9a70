package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	clientuserdomain "github.com/quotedesk/quotedesk/internal/clientuser/domain"
	"github.com/quotedesk/quotedesk/internal/observability/logger"
	"github.com/quotedesk/quotedesk/internal/orgcontext"
)

const (
	sessionCookieName = "qd_session"
	portalCookieName  = "qd_portal_session"

	contextClientKey = "client_principal"
)

func (s *Server) readToken(c *gin.Context, cookieName string) (string, bool) {
	if raw, err := c.Cookie(cookieName); err == nil && strings.TrimSpace(raw) != "" {
		return strings.TrimSpace(raw), true
	}
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if strings.HasPrefix(header, "Bearer ") {
		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if token != "" {
			return token, true
		}
	}
	return "", false
}

func (s *Server) setAuthCookie(c *gin.Context, name, token string, ttl time.Duration) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, token, int(ttl/time.Second), "/", "", s.cfg.AuthCookieSecure, true)
}

func (s *Server) clearAuthCookie(c *gin.Context, name string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, "", -1, "/", "", s.cfg.AuthCookieSecure, true)
}

// AuthRequired authenticates the staff session and threads the principal and
// organization into the request context for the service layer.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := s.readToken(c, sessionCookieName)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		principal, err := s.authsvc.Authenticate(c.Request.Context(), token)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		ctx := orgcontext.WithPrincipal(c.Request.Context(), principal)
		ctx = orgcontext.WithOrgID(ctx, principal.OrgID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// authorize gates a route on the casbin policy for the principal's role.
func (s *Server) authorize(object, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := orgcontext.PrincipalFromContext(c.Request.Context())
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if err := s.authzSvc.Authorize(c.Request.Context(), principal, object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

// PublicRateLimit throttles the unauthenticated surface per client IP. A
// disabled limiter passes everything through.
func (s *Server) PublicRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.publicLimiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		allowed, err := s.publicLimiter.AllowIP(ctx, c.ClientIP())
		if err != nil {
			logger.FromContext(ctx).Warn("public rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !allowed {
			c.Header("Retry-After", "1")
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}

// ClientAuthRequired authenticates the portal session of a client user.
func (s *Server) ClientAuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := s.readToken(c, portalCookieName)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		principal, err := s.clientUserSvc.Authenticate(c.Request.Context(), token)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.Set(contextClientKey, principal)
		c.Next()
	}
}

func clientPrincipal(c *gin.Context) (clientuserdomain.ClientPrincipal, bool) {
	value, ok := c.Get(contextClientKey)
	if !ok {
		return clientuserdomain.ClientPrincipal{}, false
	}
	principal, ok := value.(clientuserdomain.ClientPrincipal)
	return principal, ok
}
