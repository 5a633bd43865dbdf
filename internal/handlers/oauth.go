package handlers

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/BradenHooton/carelink/internal/auth"
	"github.com/BradenHooton/carelink/internal/models"
	"github.com/BradenHooton/carelink/internal/services"
	pkghttp "github.com/BradenHooton/carelink/pkg/http"
	"github.com/gorilla/sessions"
)

// OAuthStateCookie holds the state and the post-login path between the
// consent redirect and the callback.
const (
	OAuthStateCookie = "carelink_oauth"
	oauthStateMaxAge = 600

	defaultRedirectPath = "/dashboard"
)

// OAuthFlow runs the provider half of the Google login.
type OAuthFlow interface {
	AuthCodeURL(state string) string
	Complete(ctx context.Context, code string, meta models.ClientMeta) (*models.Session, error)
}

// OAuthLoginService finishes a provider login for an established session.
type OAuthLoginService interface {
	GoogleLoginSuccess(ctx context.Context, sessionToken string) (*services.AuthResult, error)
}

var redirectPage = template.Must(template.New("redirect").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta http-equiv="refresh" content="0;url={{.URL}}">
<title>Redirecting to Google</title>
</head>
<body>
<p>Redirecting to Google. <a href="{{.URL}}">Continue</a> if nothing happens.</p>
</body>
</html>
`))

// OAuthHandler serves the Google login endpoints.
type OAuthHandler struct {
	flow        OAuthFlow
	service     OAuthLoginService
	store       sessions.Store
	cookies     auth.CookieConfig
	lifetimes   auth.CookieLifetimes
	frontendURL string
	ipConfig    *pkghttp.IPConfig
	logger      *slog.Logger
}

func NewOAuthHandler(flow OAuthFlow, service OAuthLoginService, store sessions.Store, cookies auth.CookieConfig, lifetimes auth.CookieLifetimes, frontendURL string, ipConfig *pkghttp.IPConfig, logger *slog.Logger) *OAuthHandler {
	return &OAuthHandler{
		flow:        flow,
		service:     service,
		store:       store,
		cookies:     cookies,
		lifetimes:   lifetimes,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		ipConfig:    ipConfig,
		logger:      logger,
	}
}

// NewOAuthStateStore returns the cookie store that carries OAuth state.
func NewOAuthStateStore(secret string, secure bool) sessions.Store {
	store := sessions.NewCookieStore([]byte(secret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   oauthStateMaxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	store.MaxAge(oauthStateMaxAge)
	return store
}

// Start records a fresh state and forwards the browser to Google
// @Router /auth/google [get]
func (h *OAuthHandler) Start(w http.ResponseWriter, r *http.Request) {
	state, err := generateState()
	if err != nil {
		h.logger.Error("failed to generate oauth state", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Failed to start Google login")
		return
	}

	session, _ := h.store.Get(r, OAuthStateCookie)
	session.Values["state"] = state
	session.Values["redirect"] = SafeRedirectPath(r.URL.Query().Get("redirect"))
	session.Options.MaxAge = oauthStateMaxAge
	if err := session.Save(r, w); err != nil {
		h.logger.Error("failed to save oauth state", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Failed to start Google login")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := redirectPage.Execute(w, struct{ URL string }{h.flow.AuthCodeURL(state)}); err != nil {
		h.logger.Error("failed to render oauth redirect page", slog.Any("error", err))
	}
}

// Callback verifies the state, completes the provider exchange and opens a session
// @Router /auth/google/callback [get]
func (h *OAuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	session, _ := h.store.Get(r, OAuthStateCookie)
	savedState, _ := session.Values["state"].(string)
	redirectPath, _ := session.Values["redirect"].(string)

	// The state is single use. The expired cookie must not carry it either.
	delete(session.Values, "state")
	delete(session.Values, "redirect")
	session.Options.MaxAge = -1
	if err := session.Save(r, w); err != nil {
		h.logger.Warn("failed to clear oauth state", slog.Any("error", err))
	}

	if providerErr := q.Get("error"); providerErr != "" {
		h.logger.Info("google consent refused", slog.String("reason", providerErr))
		h.redirectToError(w, r, "access_denied")
		return
	}

	state := q.Get("state")
	if savedState == "" || subtle.ConstantTimeCompare([]byte(savedState), []byte(state)) != 1 {
		h.redirectToError(w, r, "invalid_state")
		return
	}

	code := q.Get("code")
	if code == "" {
		h.redirectToError(w, r, "missing_code")
		return
	}

	created, err := h.flow.Complete(r.Context(), code, clientMeta(r, h.ipConfig))
	if err != nil {
		h.logger.Warn("google login failed", slog.Any("error", err))
		h.redirectToError(w, r, oauthFailureReason(err))
		return
	}

	auth.SetTokenCookie(w, auth.SessionTokenCookie, created.Token, h.lifetimes.Session, h.cookies)
	http.Redirect(w, r, "success?redirect="+url.QueryEscape(SafeRedirectPath(redirectPath)), http.StatusFound)
}

// Success mints the token pair for the OAuth session and returns to the frontend
// @Router /auth/google/success [get]
func (h *OAuthHandler) Success(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.GoogleLoginSuccess(r.Context(), auth.CookieValue(r, auth.SessionTokenCookie))
	if err != nil {
		h.logger.Warn("google login success step failed", slog.Any("error", err))
		h.redirectToLogin(w, r, oauthFailureReason(err))
		return
	}

	auth.SetAuthCookies(w, &models.TokenPair{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
	}, result.SessionToken, h.lifetimes, h.cookies)

	http.Redirect(w, r, h.frontendURL+SafeRedirectPath(r.URL.Query().Get("redirect")), http.StatusFound)
}

// Error sends the browser to the frontend login page with the failure reason
// @Router /auth/google/error [get]
func (h *OAuthHandler) Error(w http.ResponseWriter, r *http.Request) {
	reason := r.URL.Query().Get("error")
	if reason == "" {
		reason = "oauth_failed"
	}
	h.redirectToLogin(w, r, reason)
}

func (h *OAuthHandler) redirectToError(w http.ResponseWriter, r *http.Request, reason string) {
	http.Redirect(w, r, "error?error="+url.QueryEscape(reason), http.StatusFound)
}

func (h *OAuthHandler) redirectToLogin(w http.ResponseWriter, r *http.Request, reason string) {
	http.Redirect(w, r, h.frontendURL+"/login?error="+url.QueryEscape(reason), http.StatusFound)
}

// SafeRedirectPath returns path when it is a same-origin absolute path and
// the dashboard otherwise.
func SafeRedirectPath(path string) string {
	if !strings.HasPrefix(path, "/") || strings.HasPrefix(path, "//") || strings.ContainsAny(path, "\\\r\n") {
		return defaultRedirectPath
	}
	return path
}

func oauthFailureReason(err error) string {
	switch {
	case errors.Is(err, services.ErrNoSessionFound):
		return "no_session_found"
	case errors.Is(err, services.ErrNoUserFound):
		return "no_user_found"
	case errors.Is(err, services.ErrAccountUnavailable):
		return "account_unavailable"
	default:
		return "oauth_failed"
	}
}

func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
