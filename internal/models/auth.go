package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// TokenPayload is the identity snapshot embedded in access and refresh tokens.
type TokenPayload struct {
	UserID        string     `json:"userId"`
	Role          Role       `json:"role"`
	Name          string     `json:"name"`
	Email         string     `json:"email"`
	Status        UserStatus `json:"status"`
	IsDeleted     bool       `json:"isDeleted"`
	EmailVerified bool       `json:"emailVerified"`
}

// PayloadFromUser builds a token payload from the current user record.
func PayloadFromUser(u *User) TokenPayload {
	return TokenPayload{
		UserID:        u.ID,
		Role:          u.Role,
		Name:          u.Name,
		Email:         u.Email,
		Status:        u.Status,
		IsDeleted:     u.IsDeleted,
		EmailVerified: u.EmailVerified,
	}
}

type TokenClaims struct {
	Type string `json:"type"`
	TokenPayload
	jwt.RegisteredClaims
}

// TokenPair is the access/refresh pair minted on every authentication event.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Session is a server-side record proving a browser context is authenticated.
type Session struct {
	ID        string    `json:"id"`
	Token     string    `json:"token"`
	UserID    string    `json:"userId"`
	IPAddress string    `json:"ipAddress,omitempty"`
	UserAgent string    `json:"userAgent,omitempty"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	User      *User     `json:"-"`
}

// IsActive reports whether the session is still valid at now.
func (s *Session) IsActive(now time.Time) bool {
	return now.Before(s.ExpiresAt)
}

// RemainingFraction returns the share of the session lifetime still left at now,
// in the range [0, 1].
func (s *Session) RemainingFraction(now time.Time) float64 {
	lifetime := s.ExpiresAt.Sub(s.CreatedAt)
	if lifetime <= 0 {
		return 0
	}
	remaining := s.ExpiresAt.Sub(now)
	if remaining <= 0 {
		return 0
	}
	return float64(remaining) / float64(lifetime)
}

// ClientMeta describes the client that opened a session.
type ClientMeta struct {
	IPAddress string
	UserAgent string
}

// RequestUser is the minimal identity attached to requests that passed the access gate.
type RequestUser struct {
	UserID string
	Role   Role
	Email  string
}
