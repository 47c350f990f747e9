// Package auth handles authentication for userhub: credential login,
// registration, bearer-token verification and the password reset flow.
// Tokens are stateless HS256 JWTs; nothing about a session is stored
// server-side, so expiry is the only way a token stops working.
//
// This is a CORE plugin -- always enabled, cannot be disabled.
package auth

import (
	"context"
	"time"

	"github.com/mackenziemax/userhub/internal/plugins/users"
	"github.com/mackenziemax/userhub/internal/token"
)

// UserStore is the slice of the users plugin that auth depends on.
// users.Service satisfies it.
type UserStore interface {
	Create(ctx context.Context, input users.CreateInput) (*users.User, error)
	FindByEmail(ctx context.Context, email string) (*users.User, error)
	FindByID(ctx context.Context, id int64) (*users.User, error)
	SetPassword(ctx context.Context, id int64, passwordHash string) error
}

// AccessToken is the response body of login, register and reset.
type AccessToken struct {
	AccessToken string `json:"accessToken"`
}

// Config holds the token lifetimes and the public URL used in reset links.
type Config struct {
	AccessTokenTTL time.Duration
	ResetTokenTTL  time.Duration
	BaseURL        string
}

// --- Request DTOs (bound from HTTP requests) ---

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest is the body of POST /auth/register. Self-registered
// accounts always get RoleUser, so there is no role field.
type RegisterRequest struct {
	Name     string  `json:"name" validate:"required,max=100"`
	Email    string  `json:"email" validate:"required,email,max=255"`
	Password string  `json:"password" validate:"required,strongpassword,max=128"`
	BirthAt  *string `json:"birthAt" validate:"omitempty,isodate"`
}

// ToInput converts the request to a user-store input.
func (r RegisterRequest) ToInput() users.CreateInput {
	return users.CreateInput{
		Name:     r.Name,
		Email:    r.Email,
		Password: r.Password,
		BirthAt:  r.BirthAt,
		Role:     users.RoleUser,
	}
}

// ForgetRequest is the body of POST /auth/forget.
type ForgetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetRequest is the body of POST /auth/reset.
type ResetRequest struct {
	Password string `json:"password" validate:"required,strongpassword,max=128"`
	Token    string `json:"token" validate:"required"`
}

// MeResponse is the body of POST /auth/me.
type MeResponse struct {
	User         *users.User   `json:"user"`
	TokenPayload *token.Claims `json:"tokenPayload"`
}
