package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/BradenHooton/carelink/internal/models"
	pkghttp "github.com/BradenHooton/carelink/pkg/http"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	// UserContextKey is the key for storing the authenticated user in context
	UserContextKey contextKey = "user"
)

// Refresh advisory headers, set when less than RefreshThreshold of the session lifetime is left.
const (
	HeaderSessionRefresh   = "X-Session-Refresh"
	HeaderSessionExpiresAt = "X-Session-Expires-At"
	HeaderTimeRemaining    = "X-Time-Remaining"

	RefreshThreshold = 0.2
)

var (
	errNoSession       = models.NewError(models.ErrUnauthorized, "You are not logged in")
	errSessionInvalid  = models.NewError(models.ErrUnauthorized, "Session expired or invalid, please log in again")
	errAccountInactive = models.NewError(models.ErrUnauthorized, "Your account is not active")
	errNoAccessToken   = models.NewError(models.ErrUnauthorized, "Access token is missing")
	errBadAccessToken  = models.NewError(models.ErrUnauthorized, "Invalid or expired access token")
	errTokenMismatch   = models.NewError(models.ErrUnauthorized, "Access token does not belong to this session")
	errRoleForbidden   = models.NewError(models.ErrForbidden, "You do not have permission to access this resource")
)

// SessionFinder looks up a live session joined with its owner.
type SessionFinder interface {
	FindActiveByToken(ctx context.Context, token string) (*models.Session, error)
}

// AccessTokenVerifier validates access tokens.
type AccessTokenVerifier interface {
	ValidateAccessToken(token string) (*models.TokenClaims, error)
}

// Gate guards routes with two independent checks: a live server-side session
// and a valid access token. Both must pass.
type Gate struct {
	sessions SessionFinder
	tokens   AccessTokenVerifier
	logger   *slog.Logger
	now      func() time.Time
}

func NewGate(sessions SessionFinder, tokens AccessTokenVerifier, logger *slog.Logger) *Gate {
	return &Gate{
		sessions: sessions,
		tokens:   tokens,
		logger:   logger,
		now:      time.Now,
	}
}

// Require returns middleware admitting requests whose session user and access
// token both carry one of roles. No roles means any authenticated user.
func (g *Gate) Require(roles ...models.Role) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, err := g.VerifySession(r.Context(), CookieValue(r, SessionTokenCookie), roles)
			if session != nil {
				g.writeRefreshAdvisory(w, session)
			}
			if err != nil {
				pkghttp.WriteAppError(w, g.logger, err)
				return
			}

			claims, err := g.VerifyAccessToken(AccessTokenFromRequest(r), roles)
			if err != nil {
				pkghttp.WriteAppError(w, g.logger, err)
				return
			}

			if claims.UserID != session.UserID {
				pkghttp.WriteAppError(w, g.logger, errTokenMismatch)
				return
			}

			ctx := WithRequestUser(r.Context(), &models.RequestUser{
				UserID: session.User.ID,
				Role:   session.User.Role,
				Email:  session.User.Email,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// VerifySession checks that token names a live session whose owner is active
// and holds one of roles. When the session is live but its owner is rejected,
// the session is returned along with the error.
func (g *Gate) VerifySession(ctx context.Context, token string, roles []models.Role) (*models.Session, error) {
	session, err := g.lookupSession(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := authorizeRole(session.User, roles); err != nil {
		return session, err
	}
	return session, nil
}

// VerifyAccessToken checks that token is a valid access token carrying one of roles.
func (g *Gate) VerifyAccessToken(token string, roles []models.Role) (*models.TokenClaims, error) {
	if token == "" {
		return nil, errNoAccessToken
	}
	claims, err := g.tokens.ValidateAccessToken(token)
	if err != nil {
		return nil, errBadAccessToken
	}
	if !roleAllowed(claims.Role, roles) {
		return nil, errRoleForbidden
	}
	return claims, nil
}

func (g *Gate) lookupSession(ctx context.Context, token string) (*models.Session, error) {
	if token == "" {
		return nil, errNoSession
	}

	session, err := g.sessions.FindActiveByToken(ctx, token)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, errSessionInvalid
		}
		return nil, err
	}
	if session.User == nil || !session.IsActive(g.now()) {
		return nil, errSessionInvalid
	}
	return session, nil
}

func (g *Gate) writeRefreshAdvisory(w http.ResponseWriter, session *models.Session) {
	now := g.now()
	if session.RemainingFraction(now) >= RefreshThreshold {
		return
	}
	remaining := session.ExpiresAt.Sub(now)
	w.Header().Set(HeaderSessionRefresh, "true")
	w.Header().Set(HeaderSessionExpiresAt, session.ExpiresAt.UTC().Format(time.RFC3339))
	w.Header().Set(HeaderTimeRemaining, strconv.FormatInt(remaining.Milliseconds(), 10))
}

func authorizeRole(user *models.User, roles []models.Role) error {
	if !user.CanAuthenticate() {
		return errAccountInactive
	}
	if !roleAllowed(user.Role, roles) {
		return errRoleForbidden
	}
	return nil
}

func roleAllowed(role models.Role, roles []models.Role) bool {
	return len(roles) == 0 || slices.Contains(roles, role)
}

// WithRequestUser attaches u to ctx.
func WithRequestUser(ctx context.Context, u *models.RequestUser) context.Context {
	return context.WithValue(ctx, UserContextKey, u)
}

// GetUserFromContext returns the user attached by Gate, or nil.
func GetUserFromContext(r *http.Request) *models.RequestUser {
	u, ok := r.Context().Value(UserContextKey).(*models.RequestUser)
	if !ok {
		return nil
	}
	return u
}
