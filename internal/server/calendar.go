package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	calendardomain "github.com/quotedesk/quotedesk/internal/calendar/domain"
)

func (s *Server) ListCalendarEvents(c *gin.Context) {
	from, to, err := dateRangeQuery(c, time.Now().UTC())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	events, err := s.calendarSvc.List(c.Request.Context(), from, to)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": events})
}

func (s *Server) CreateCalendarEvent(c *gin.Context) {
	var req calendardomain.CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	event, err := s.calendarSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": event})
}

func (s *Server) UpdateCalendarEvent(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req calendardomain.UpdateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	event, err := s.calendarSvc.Update(c.Request.Context(), id, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": event})
}

func (s *Server) DeleteCalendarEvent(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.calendarSvc.Delete(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
