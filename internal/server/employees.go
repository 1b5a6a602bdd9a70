package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	authdomain "github.com/quotedesk/quotedesk/internal/auth/domain"
)

func (s *Server) ListEmployees(c *gin.Context) {
	employees, err := s.authsvc.ListEmployees(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": employees})
}

func (s *Server) CreateEmployee(c *gin.Context) {
	var req authdomain.CreateEmployeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	employee, err := s.authsvc.CreateEmployee(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": employee})
}

func (s *Server) UpdateEmployee(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req authdomain.UpdateEmployeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	employee, err := s.authsvc.UpdateEmployee(c.Request.Context(), id, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": employee})
}

func (s *Server) DeleteEmployee(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.authsvc.DeleteEmployee(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
