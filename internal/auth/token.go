package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/BradenHooton/carelink/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Codec signs and verifies HS256 bearer tokens.
type Codec struct {
	now func() time.Time
}

// NewCodec creates a Codec. A nil clock means time.Now.
func NewCodec(now func() time.Time) *Codec {
	if now == nil {
		now = time.Now
	}
	return &Codec{now: now}
}

// Issue signs payload with secret. The token expires ttl after issuance.
func (c *Codec) Issue(tokenType string, payload models.TokenPayload, secret string, ttl time.Duration) (string, error) {
	now := c.now()

	claims := &models.TokenClaims{
		Type:         tokenType,
		TokenPayload: payload,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   payload.UserID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", tokenType, err)
	}
	return tokenString, nil
}

// Verify checks signature, expiry and type. It returns models.ErrTokenExpired
// for an expired token and models.ErrTokenInvalid for anything else.
func (c *Codec) Verify(tokenString, tokenType, secret string) (*models.TokenClaims, error) {
	if tokenString == "" {
		return nil, models.ErrTokenInvalid
	}

	claims := &models.TokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, models.ErrTokenExpired
		}
		return nil, models.ErrTokenInvalid
	}

	if !token.Valid || claims.Type != tokenType || claims.UserID == "" {
		return nil, models.ErrTokenInvalid
	}

	return claims, nil
}

// TokenManager mints and checks access/refresh pairs. Each kind has its own
// secret and lifetime.
type TokenManager struct {
	codec         *Codec
	accessSecret  string
	accessExpiry  time.Duration
	refreshSecret string
	refreshExpiry time.Duration
}

func NewTokenManager(accessSecret string, accessExpiry time.Duration, refreshSecret string, refreshExpiry time.Duration) *TokenManager {
	return &TokenManager{
		codec:         NewCodec(nil),
		accessSecret:  accessSecret,
		accessExpiry:  accessExpiry,
		refreshSecret: refreshSecret,
		refreshExpiry: refreshExpiry,
	}
}

// WithClock returns a copy of tm that reads time from now.
func (tm *TokenManager) WithClock(now func() time.Time) *TokenManager {
	cp := *tm
	cp.codec = NewCodec(now)
	return &cp
}

func (tm *TokenManager) AccessExpiry() time.Duration  { return tm.accessExpiry }
func (tm *TokenManager) RefreshExpiry() time.Duration { return tm.refreshExpiry }

// GenerateTokenPair mints a fresh access and refresh token for payload.
func (tm *TokenManager) GenerateTokenPair(payload models.TokenPayload) (*models.TokenPair, error) {
	access, err := tm.codec.Issue(models.TokenTypeAccess, payload, tm.accessSecret, tm.accessExpiry)
	if err != nil {
		return nil, err
	}
	refresh, err := tm.codec.Issue(models.TokenTypeRefresh, payload, tm.refreshSecret, tm.refreshExpiry)
	if err != nil {
		return nil, err
	}
	return &models.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (tm *TokenManager) ValidateAccessToken(token string) (*models.TokenClaims, error) {
	return tm.codec.Verify(token, models.TokenTypeAccess, tm.accessSecret)
}

func (tm *TokenManager) ValidateRefreshToken(token string) (*models.TokenClaims, error) {
	return tm.codec.Verify(token, models.TokenTypeRefresh, tm.refreshSecret)
}
