package routes

import (
	"net/http"

	"github.com/BradenHooton/carelink/internal/auth"
	"github.com/BradenHooton/carelink/internal/handlers"
	"github.com/BradenHooton/carelink/internal/middleware"
	"github.com/BradenHooton/carelink/internal/models"
	pkghttp "github.com/BradenHooton/carelink/pkg/http"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// APIPrefix is where every route is mounted.
const APIPrefix = "/api/v1"

// Role allow-lists used by the access gate.
var (
	AnyRole    = []models.Role{models.RolePatient, models.RoleDoctor, models.RoleAdmin, models.RoleSuperAdmin}
	AdminRoles = []models.Role{models.RoleAdmin, models.RoleSuperAdmin}
)

// Handlers groups the HTTP handlers. OAuth is nil when Google sign-in is not configured.
type Handlers struct {
	Auth   *handlers.AuthHandler
	OAuth  *handlers.OAuthHandler
	Users  *handlers.UserHandler
	Health *handlers.HealthHandler
}

// Options tunes the per-route limits.
type Options struct {
	AuthRequestsPerMinute  int
	AdminRequestsPerMinute int
	IPConfig               *pkghttp.IPConfig
}

// RegisterRoutes registers all application routes under APIPrefix.
func RegisterRoutes(router chi.Router, h Handlers, gate *auth.Gate, opts Options) {
	authLimit := middleware.DefaultAuthRateLimit()
	if opts.AuthRequestsPerMinute > 0 {
		authLimit.RequestsPerMinute = opts.AuthRequestsPerMinute
	}
	adminLimit := middleware.RateLimitConfig{Name: "admin", RequestsPerMinute: 60}
	if opts.AdminRequestsPerMinute > 0 {
		adminLimit.RequestsPerMinute = opts.AdminRequestsPerMinute
	}

	router.Route(APIPrefix, func(r chi.Router) {
		r.Get("/health", h.Health.Health)
		r.Handle("/metrics", promhttp.Handler())

		r.Route("/auth", func(r chi.Router) {
			// Public credential endpoints share one per-IP budget.
			r.Group(func(r chi.Router) {
				r.Use(middleware.RateLimitByIP(authLimit, opts.IPConfig))
				r.Post("/register", h.Auth.Register)
				r.Post("/login", h.Auth.Login)
				r.Post("/refresh-token", h.Auth.RefreshToken)
				r.Post("/verify-email", h.Auth.VerifyEmail)
				r.Post("/resend-verification", h.Auth.ResendVerification)
				r.Post("/forget-password", h.Auth.ForgetPassword)
				r.Post("/reset-password", h.Auth.ResetPassword)
			})

			// Session and access token required
			r.Group(func(r chi.Router) {
				r.Use(gate.Require(AnyRole...))
				r.Get("/me", h.Auth.Me)
				r.Post("/change-password", h.Auth.ChangePassword)
				r.Post("/logout", h.Auth.Logout)
			})

			if h.OAuth != nil {
				r.Get("/google", h.OAuth.Start)
				r.Get("/google/callback", h.OAuth.Callback)
				r.Get("/google/success", h.OAuth.Success)
				r.Get("/google/error", h.OAuth.Error)
			}
		})

		h.Users.RegisterRoutes(r, guard(gate.Require(AdminRoles...), middleware.RateLimitByUser(adminLimit, opts.IPConfig)))
	})
}

// guard composes middlewares into one, applied in order.
func guard(mws ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return chi.Chain(mws...).Handler(next)
	}
}
