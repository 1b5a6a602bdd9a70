package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	catalogdomain "github.com/quotedesk/quotedesk/internal/catalog/domain"
	organizationdomain "github.com/quotedesk/quotedesk/internal/organization/domain"
	quotationdomain "github.com/quotedesk/quotedesk/internal/quotation/domain"
)

type publicOrgProfile struct {
	Organization quotationdomain.PublicOrgView    `json:"organization"`
	Items        []*catalogdomain.PriceMatrixItem `json:"items"`
	Schedule     organizationdomain.WeekSchedule  `json:"schedule"`
}

// PublicOrgProfile serves the lead form payload: public branding, the active
// catalog and the weekly opening hours.
func (s *Server) PublicOrgProfile(c *gin.Context) {
	org, err := s.organizationSvc.ResolveByIDOrSlug(c.Request.Context(), c.Param("org"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	items, err := s.catalogSvc.ListActive(c.Request.Context(), org.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	schedule, err := org.Schedule()
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": publicOrgProfile{
		Organization: quotationdomain.PublicOrgView{
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
		},
		Items:    items,
		Schedule: schedule,
	}})
}

func (s *Server) SubmitLead(c *gin.Context) {
	var req quotationdomain.SubmitLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.OrgIDOrSlug = strings.TrimSpace(c.Param("org"))

	resp, err := s.quotationSvc.SubmitLead(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) PublicBlockedDates(c *gin.Context) {
	org, err := s.organizationSvc.ResolveByIDOrSlug(c.Request.Context(), c.Param("org"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	from, to, err := dateRangeQuery(c, time.Now().UTC())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	blocked, err := s.calendarSvc.BlockedDates(c.Request.Context(), org.ID, from, to)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"blocked_dates": blocked}})
}

func (s *Server) PublicDayAvailability(c *gin.Context) {
	org, err := s.organizationSvc.ResolveByIDOrSlug(c.Request.Context(), c.Param("org"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	availability, err := s.calendarSvc.DayAvailability(c.Request.Context(), org.ID, strings.TrimSpace(c.Param("date")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": availability})
}

func (s *Server) PublicQuote(c *gin.Context) {
	view, err := s.quotationSvc.PublicView(c.Request.Context(), strings.TrimSpace(c.Param("token")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": view})
}

func (s *Server) AcceptQuote(c *gin.Context) {
	var req quotationdomain.AcceptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.Token = strings.TrimSpace(c.Param("token"))
	req.IP = c.ClientIP()
	req.UserAgent = c.Request.UserAgent()

	quote, err := s.quotationSvc.Accept(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": quote})
}

func (s *Server) RejectQuote(c *gin.Context) {
	var req quotationdomain.RejectRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}
	req.Token = strings.TrimSpace(c.Param("token"))
	req.IP = c.ClientIP()

	quote, err := s.quotationSvc.Reject(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": quote})
}
