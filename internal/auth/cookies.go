package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/BradenHooton/carelink/internal/models"
)

// Cookie names shared with the web client.
const (
	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"
	SessionTokenCookie = "better-auth.session_token"
)

// CookieConfig holds cookie configuration settings
type CookieConfig struct {
	Domain   string // Empty string = current host only
	Secure   bool   // HTTPS only
	SameSite string // "strict", "lax", or "none"
}

// CookieLifetimes gives the max-age of each auth cookie.
type CookieLifetimes struct {
	Access  time.Duration
	Refresh time.Duration
	Session time.Duration
}

// SetTokenCookie sets an httpOnly cookie that expires after ttl.
func SetTokenCookie(w http.ResponseWriter, name, value string, ttl time.Duration, config CookieConfig) {
	maxAge := int(ttl / time.Second)
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   config.Domain,
		Expires:  time.Now().Add(ttl),
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: parseSameSite(config.SameSite),
	})
}

// ClearTokenCookie removes the named cookie from the browser.
func ClearTokenCookie(w http.ResponseWriter, name string, config CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   config.Domain,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: parseSameSite(config.SameSite),
	})
}

// SetAuthCookies writes the access, refresh and session cookies. Empty values are skipped.
func SetAuthCookies(w http.ResponseWriter, pair *models.TokenPair, sessionToken string, ttl CookieLifetimes, config CookieConfig) {
	if pair != nil {
		if pair.AccessToken != "" {
			SetTokenCookie(w, AccessTokenCookie, pair.AccessToken, ttl.Access, config)
		}
		if pair.RefreshToken != "" {
			SetTokenCookie(w, RefreshTokenCookie, pair.RefreshToken, ttl.Refresh, config)
		}
	}
	if sessionToken != "" {
		SetTokenCookie(w, SessionTokenCookie, sessionToken, ttl.Session, config)
	}
}

// ClearAuthCookies removes all three auth cookies.
func ClearAuthCookies(w http.ResponseWriter, config CookieConfig) {
	for _, name := range []string{AccessTokenCookie, RefreshTokenCookie, SessionTokenCookie} {
		ClearTokenCookie(w, name, config)
	}
}

// CookieValue returns the named cookie's value, or "" when absent.
func CookieValue(r *http.Request, name string) string {
	cookie, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// AccessTokenFromRequest reads the access token cookie, falling back to an
// Authorization: Bearer header for non-browser clients.
func AccessTokenFromRequest(r *http.Request) string {
	if token := CookieValue(r, AccessTokenCookie); token != "" {
		return token
	}
	authHeader := r.Header.Get("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// parseSameSite converts string to http.SameSite constant
func parseSameSite(sameSite string) http.SameSite {
	switch strings.ToLower(sameSite) {
	case "strict":
		return http.SameSiteStrictMode
	case "lax":
		return http.SameSiteLaxMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteDefaultMode
	}
}
