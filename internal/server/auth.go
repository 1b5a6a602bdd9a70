package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	authdomain "github.com/quotedesk/quotedesk/internal/auth/domain"
	"github.com/quotedesk/quotedesk/internal/orgcontext"
)

func (s *Server) sessionTTL() time.Duration {
	hours := s.cfg.SessionTTLHours
	if hours <= 0 {
		hours = 72
	}
	return time.Duration(hours) * time.Hour
}

func (s *Server) Login(c *gin.Context) {
	var req authdomain.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.authsvc.Login(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.setAuthCookie(c, sessionCookieName, result.Token, s.sessionTTL())
	c.JSON(http.StatusOK, gin.H{"data": result.User})
}

func (s *Server) Logout(c *gin.Context) {
	token, ok := s.readToken(c, sessionCookieName)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	if err := s.authsvc.Logout(c.Request.Context(), token); err != nil {
		AbortWithError(c, err)
		return
	}

	s.clearAuthCookie(c, sessionCookieName)
	c.Status(http.StatusNoContent)
}

func (s *Server) Me(c *gin.Context) {
	principal, ok := orgcontext.PrincipalFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"user_id":   principal.UserID,
		"org_id":    principal.OrgID,
		"role":      principal.Role,
		"username":  principal.Username,
		"full_name": principal.FullName,
	}})
}
