package server

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	dossierdomain "github.com/quotedesk/quotedesk/internal/dossier/domain"
	"github.com/quotedesk/quotedesk/internal/orgcontext"
)

func (s *Server) ListDossiers(c *gin.Context) {
	dossiers, err := s.dossierSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": dossiers})
}

func (s *Server) GetDossier(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	detail, err := s.dossierSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": detail})
}

func (s *Server) CompleteDossier(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	dossier, err := s.dossierSvc.Complete(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": dossier})
}

func (s *Server) DeleteDossier(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.dossierSvc.Delete(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// AddDossierEntry accepts either a JSON note or a multipart upload for file
// and photo entries. Uploaded files land in the configured uploads dir under
// a generated name.
func (s *Server) AddDossierEntry(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	principal, ok := orgcontext.PrincipalFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	createdBy := "staff:" + principal.Username

	contentType := c.GetHeader("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		s.addDossierFileEntry(c, id, principal.OrgID, createdBy)
		return
	}

	var req dossierdomain.AddEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.DossierID = id
	req.CreatedBy = createdBy

	entry, err := s.dossierSvc.AddEntry(c.Request.Context(), nil, principal.OrgID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": entry})
}

func (s *Server) addDossierFileEntry(c *gin.Context, dossierID, orgID snowflake.ID, createdBy string) {
	file, err := c.FormFile("file")
	if err != nil {
		AbortWithError(c, newValidationError("file", "required", "file is required"))
		return
	}

	kind := strings.TrimSpace(c.PostForm("kind"))
	if kind == "" {
		kind = dossierdomain.EntryFile
	}
	if kind != dossierdomain.EntryFile && kind != dossierdomain.EntryPhoto {
		AbortWithError(c, newValidationError("kind", "invalid_kind", "invalid entry kind"))
		return
	}

	fileName := filepath.Base(file.Filename)
	storedName := s.genID.Generate().String() + "_" + fileName
	storedPath := filepath.Join(s.cfg.UploadsDir, storedName)
	if err := c.SaveUploadedFile(file, storedPath); err != nil {
		AbortWithError(c, err)
		return
	}

	entry, err := s.dossierSvc.AddEntry(c.Request.Context(), nil, orgID, dossierdomain.AddEntryRequest{
		DossierID: dossierID,
		Kind:      kind,
		Title:     strings.TrimSpace(c.PostForm("title")),
		Body:      strings.TrimSpace(c.PostForm("body")),
		FileName:  fileName,
		FilePath:  storedPath,
		CreatedBy: createdBy,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": entry})
}

func (s *Server) DeleteDossierEntry(c *gin.Context) {
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

	if err := s.dossierSvc.DeleteEntry(c.Request.Context(), id, entryID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) DownloadDossierEntryFile(c *gin.Context) {
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

	detail, err := s.dossierSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	serveEntryFile(c, detail, entryID)
}

func serveEntryFile(c *gin.Context, detail dossierdomain.Detail, entryID snowflake.ID) {
	for _, entry := range detail.Entries {
		if entry.ID == entryID && entry.FilePath != "" {
			c.FileAttachment(entry.FilePath, entry.FileName)
			return
		}
	}
	AbortWithError(c, dossierdomain.ErrEntryNotFound)
}

func (s *Server) PostDossierMessage(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	principal, ok := orgcontext.PrincipalFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req dossierdomain.PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.DossierID = id
	req.SenderType = dossierdomain.SenderStaff
	req.SenderName = principal.Username

	message, err := s.dossierSvc.PostMessage(c.Request.Context(), principal.OrgID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": message})
}

func (s *Server) MarkDossierMessagesRead(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	principal, ok := orgcontext.PrincipalFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	if err := s.dossierSvc.MarkMessagesRead(c.Request.Context(), principal.OrgID, id, dossierdomain.SenderStaff); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) ListClients(c *gin.Context) {
	clients, err := s.clientUserSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": clients})
}
