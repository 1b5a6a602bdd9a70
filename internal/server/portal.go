package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	clientuserdomain "github.com/quotedesk/quotedesk/internal/clientuser/domain"
	dossierdomain "github.com/quotedesk/quotedesk/internal/dossier/domain"
)

func (s *Server) PortalLogin(c *gin.Context) {
	var req clientuserdomain.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.OrgIDOrSlug = strings.TrimSpace(c.Param("org"))

	result, err := s.clientUserSvc.Login(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.setAuthCookie(c, portalCookieName, result.Token, s.sessionTTL())
	c.JSON(http.StatusOK, gin.H{"data": result.User})
}

func (s *Server) PortalLogout(c *gin.Context) {
	token, ok := s.readToken(c, portalCookieName)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	if err := s.clientUserSvc.Logout(c.Request.Context(), token); err != nil {
		AbortWithError(c, err)
		return
	}

	s.clearAuthCookie(c, portalCookieName)
	c.Status(http.StatusNoContent)
}

func (s *Server) PortalMe(c *gin.Context) {
	principal, ok := clientPrincipal(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": principal})
}

func (s *Server) PortalListDossiers(c *gin.Context) {
	principal, ok := clientPrincipal(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	dossiers, err := s.dossierSvc.ListForClient(c.Request.Context(), principal.OrgID, principal.ClientUserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": dossiers})
}

func (s *Server) PortalGetDossier(c *gin.Context) {
	principal, ok := clientPrincipal(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	id, err := idParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	detail, err := s.dossierSvc.GetForClient(c.Request.Context(), principal.OrgID, principal.ClientUserID, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": detail})
}

func (s *Server) PortalPostMessage(c *gin.Context) {
	principal, ok := clientPrincipal(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	id, err := idParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	// Ownership check runs before the write.
	if _, err := s.dossierSvc.GetForClient(c.Request.Context(), principal.OrgID, principal.ClientUserID, id); err != nil {
		AbortWithError(c, err)
		return
	}

	var req dossierdomain.PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.DossierID = id
	req.SenderType = dossierdomain.SenderClient
	req.SenderName = principal.Name
	if req.SenderName == "" {
		req.SenderName = principal.Email
	}

	message, err := s.dossierSvc.PostMessage(c.Request.Context(), principal.OrgID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": message})
}

func (s *Server) PortalMarkMessagesRead(c *gin.Context) {
	principal, ok := clientPrincipal(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	id, err := idParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if _, err := s.dossierSvc.GetForClient(c.Request.Context(), principal.OrgID, principal.ClientUserID, id); err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.dossierSvc.MarkMessagesRead(c.Request.Context(), principal.OrgID, id, dossierdomain.SenderClient); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

type portalSignRequest struct {
	SignatureData string `json:"signature_data" binding:"required"`
}

func (s *Server) PortalSignDossier(c *gin.Context) {
	principal, ok := clientPrincipal(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	id, err := idParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req portalSignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	dossier, err := s.dossierSvc.Sign(c.Request.Context(), dossierdomain.SignRequest{
		DossierID:     id,
		ClientUserID:  principal.ClientUserID,
		SignatureData: req.SignatureData,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": dossier})
}

func (s *Server) PortalDownloadEntryFile(c *gin.Context) {
	principal, ok := clientPrincipal(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	id, err := idParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	entryID, err := idParam(c, "entryId")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	detail, err := s.dossierSvc.GetForClient(c.Request.Context(), principal.OrgID, principal.ClientUserID, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	serveEntryFile(c, detail, entryID)
}
