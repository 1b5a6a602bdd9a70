package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"

	"github.com/quotedesk/quotedesk/internal/orgcontext"
)

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token     string               `json:"-"`
	Principal orgcontext.Principal `json:"principal"`
	User      User                 `json:"user"`
}

type CreateEmployeeRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
}

type UpdateEmployeeRequest struct {
	FullName *string `json:"full_name,omitempty"`
	Email    *string `json:"email,omitempty"`
	Phone    *string `json:"phone,omitempty"`
	Password *string `json:"password,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
}

type Service interface {
	Login(ctx context.Context, req LoginRequest) (LoginResponse, error)
	Logout(ctx context.Context, rawToken string) error

	// Authenticate resolves a raw session token to the logged-in principal.
	Authenticate(ctx context.Context, rawToken string) (orgcontext.Principal, error)

	CreateEmployee(ctx context.Context, req CreateEmployeeRequest) (User, error)
	ListEmployees(ctx context.Context) ([]*User, error)
	UpdateEmployee(ctx context.Context, id snowflake.ID, req UpdateEmployeeRequest) (User, error)
	DeleteEmployee(ctx context.Context, id snowflake.ID) error
}

var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrSessionExpired     = errors.New("session_expired")
	ErrUserExists         = errors.New("user_exists")
	ErrUserNotFound       = errors.New("user_not_found")
	ErrMaxEmployees       = errors.New("max_employees_reached")
	ErrOwnerImmutable     = errors.New("owner_immutable")
	ErrWeakPassword       = errors.New("weak_password")
)
