package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/BradenHooton/carelink/internal/auth"
	"github.com/BradenHooton/carelink/internal/models"
	"github.com/BradenHooton/carelink/internal/services"
	pkghttp "github.com/BradenHooton/carelink/pkg/http"
)

// AuthServiceInterface defines the credential flows the auth handler drives.
type AuthServiceInterface interface {
	RegisterPatient(ctx context.Context, name, email, password string, meta models.ClientMeta) (*services.AuthResult, error)
	LoginUser(ctx context.Context, email, password string, meta models.ClientMeta) (*services.AuthResult, error)
	GetNewToken(ctx context.Context, refreshToken, sessionToken string) (*services.AuthResult, error)
	ChangePassword(ctx context.Context, sessionToken, currentPassword, newPassword string) (*services.AuthResult, error)
	LogoutUser(ctx context.Context, sessionToken string) error
	VerifyEmail(ctx context.Context, email, otp string) (*models.User, error)
	ResendVerification(ctx context.Context, email string) error
	ForgetPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, email, otp, newPassword string) error
}

// DirectoryInterface resolves the caller's full profile.
type DirectoryInterface interface {
	GetMe(ctx context.Context, userID string) (*models.Profile, error)
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	service   AuthServiceInterface
	directory DirectoryInterface
	cookies   auth.CookieConfig
	lifetimes auth.CookieLifetimes
	ipConfig  *pkghttp.IPConfig
	logger    *slog.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthServiceInterface, directory DirectoryInterface, cookies auth.CookieConfig, lifetimes auth.CookieLifetimes, ipConfig *pkghttp.IPConfig, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		service:   service,
		directory: directory,
		cookies:   cookies,
		lifetimes: lifetimes,
		ipConfig:  ipConfig,
		logger:    logger,
	}
}

// Request DTOs

type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=6,max=72"`
}

type VerifyEmailRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required,len=6,numeric"`
}

type EmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email"`
	OTP         string `json:"otp" validate:"required,len=6,numeric"`
	NewPassword string `json:"newPassword" validate:"required,min=6,max=72"`
}

// Response DTOs

type TokenTriple struct {
	Token        string `json:"token"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// RegisterResponse carries the token triple next to the new patient's fields.
type RegisterResponse struct {
	TokenTriple
	*models.Patient
}

type LoginResponse struct {
	TokenTriple
	NeedPasswordChange bool         `json:"needPasswordChange"`
	User               *models.User `json:"user"`
}

// Register handles patient self-registration
// @Router /auth/register [post]
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	result, err := h.service.RegisterPatient(r.Context(), req.Name, req.Email, req.Password, clientMeta(r, h.ipConfig))
	if err != nil {
		pkghttp.WriteAppError(w, h.logger, err)
		return
	}

	h.setCookies(w, result)
	pkghttp.WriteSuccess(w, http.StatusCreated, "Patient registered successfully", RegisterResponse{
		TokenTriple: triple(result),
		Patient:     result.Patient,
	})
}

// Login handles email/password login
// @Router /auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	result, err := h.service.LoginUser(r.Context(), req.Email, req.Password, clientMeta(r, h.ipConfig))
	if err != nil {
		pkghttp.WriteAppError(w, h.logger, err)
		return
	}

	h.setCookies(w, result)
	pkghttp.WriteSuccess(w, http.StatusOK, "User logged in successfully", LoginResponse{
		TokenTriple:        triple(result),
		NeedPasswordChange: result.NeedPasswordChange,
		User:               result.User,
	})
}

// Me returns the caller's user record with its role profile
// @Router /auth/me [get]
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromContext(r)
	if user == nil {
		pkghttp.WriteUnauthorized(w, "You are not logged in")
		return
	}

	profile, err := h.directory.GetMe(r.Context(), user.UserID)
	if err != nil {
		pkghttp.WriteAppError(w, h.logger, err)
		return
	}

	pkghttp.WriteSuccess(w, http.StatusOK, "User profile retrieved successfully", profile)
}

// RefreshToken exchanges the refresh and session cookies for a new triple
// @Router /auth/refresh-token [post]
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	refreshToken := auth.CookieValue(r, auth.RefreshTokenCookie)
	sessionToken := auth.CookieValue(r, auth.SessionTokenCookie)
	if refreshToken == "" {
		pkghttp.WriteUnauthorized(w, "Refresh token is missing")
		return
	}
	if sessionToken == "" {
		pkghttp.WriteUnauthorized(w, "Session token is missing")
		return
	}

	result, err := h.service.GetNewToken(r.Context(), refreshToken, sessionToken)
	if err != nil {
		pkghttp.WriteAppError(w, h.logger, err)
		return
	}

	h.setCookies(w, result)
	pkghttp.WriteSuccess(w, http.StatusOK, "Tokens refreshed successfully", triple(result))
}

// ChangePassword rotates the caller's password
// @Router /auth/change-password [post]
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	result, err := h.service.ChangePassword(r.Context(), auth.CookieValue(r, auth.SessionTokenCookie), req.CurrentPassword, req.NewPassword)
	if err != nil {
		pkghttp.WriteAppError(w, h.logger, err)
		return
	}

	h.setCookies(w, result)
	pkghttp.WriteSuccess(w, http.StatusOK, "Password changed successfully", triple(result))
}

// Logout ends the presented session and clears the auth cookies
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.LogoutUser(r.Context(), auth.CookieValue(r, auth.SessionTokenCookie)); err != nil {
		pkghttp.WriteAppError(w, h.logger, err)
		return
	}

	auth.ClearAuthCookies(w, h.cookies)
	pkghttp.WriteSuccess(w, http.StatusOK, "User logged out successfully", nil)
}

// VerifyEmail confirms an address with the mailed code
// @Router /auth/verify-email [post]
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req VerifyEmailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if _, err := h.service.VerifyEmail(r.Context(), req.Email, req.OTP); err != nil {
		pkghttp.WriteAppError(w, h.logger, err)
		return
	}

	pkghttp.WriteSuccess(w, http.StatusOK, "Email verified successfully", nil)
}

// ResendVerification mails a fresh verification code
// @Router /auth/resend-verification [post]
func (h *AuthHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	// Same answer whether or not the address is known.
	if err := h.service.ResendVerification(r.Context(), req.Email); err != nil {
		h.logger.Error("resend verification failed", slog.Any("error", err))
	}

	pkghttp.WriteSuccess(w, http.StatusOK, "If the email is registered and unverified, a new code has been sent", nil)
}

// ForgetPassword mails a password reset code
// @Router /auth/forget-password [post]
func (h *AuthHandler) ForgetPassword(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.ForgetPassword(r.Context(), req.Email); err != nil {
		pkghttp.WriteAppError(w, h.logger, err)
		return
	}

	pkghttp.WriteSuccess(w, http.StatusOK, "Password reset code sent to your email", nil)
}

// ResetPassword sets a new password from a reset code
// @Router /auth/reset-password [post]
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.ResetPassword(r.Context(), req.Email, req.OTP, req.NewPassword); err != nil {
		pkghttp.WriteAppError(w, h.logger, err)
		return
	}

	pkghttp.WriteSuccess(w, http.StatusOK, "Password reset successfully", nil)
}

func (h *AuthHandler) setCookies(w http.ResponseWriter, result *services.AuthResult) {
	auth.SetAuthCookies(w, &models.TokenPair{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
	}, result.SessionToken, h.lifetimes, h.cookies)
}

func triple(result *services.AuthResult) TokenTriple {
	return TokenTriple{
		Token:        result.SessionToken,
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
	}
}

func clientMeta(r *http.Request, ipConfig *pkghttp.IPConfig) models.ClientMeta {
	return models.ClientMeta{
		IPAddress: pkghttp.ExtractClientIP(r, ipConfig),
		UserAgent: pkghttp.ExtractUserAgent(r),
	}
}
