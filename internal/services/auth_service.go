package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/BradenHooton/carelink/internal/models"
	pkglogger "github.com/BradenHooton/carelink/pkg/logger"
	"github.com/jackc/pgx/v5"
)

// TokenIssuer mints and re-validates the access/refresh pair.
type TokenIssuer interface {
	GenerateTokenPair(payload models.TokenPayload) (*models.TokenPair, error)
	ValidateRefreshToken(token string) (*models.TokenClaims, error)
}

// PatientRepository is the patient profile persistence used at registration.
type PatientRepository interface {
	CreateTx(ctx context.Context, tx pgx.Tx, p *models.Patient) (*models.Patient, error)
	GetByUserID(ctx context.Context, userID string) (*models.Patient, error)
}

// Transactor runs fn in a database transaction.
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(pgx.Tx) error) error
}

// Redirect reasons reported by the OAuth success step.
var (
	ErrNoSessionFound     = models.NewError(models.ErrUnauthorized, "no_session_found")
	ErrNoUserFound        = models.NewError(models.ErrNotFound, "no_user_found")
	ErrAccountUnavailable = models.NewError(models.ErrForbidden, "account_unavailable")
)

var (
	errNoLiveSession   = models.NewError(models.ErrUnauthorized, "Session not found or expired")
	errBadRefreshToken = models.NewError(models.ErrUnauthorized, "Invalid refresh token")
	errBlockedAccount  = models.NewError(models.ErrForbidden, "Your account has been blocked")
	errUserNotFound    = models.NewError(models.ErrNotFound, "User not found")
	errEmailUnverified = models.NewError(models.ErrBadRequest, "Email is not verified")

	errResetSessionsSurvived = models.NewError(models.ErrInternalServer,
		"Your password was reset, but other devices could not be signed out. Please try again later")
)

// AuthResult is what every successful entry point hands back: the session
// token plus a freshly minted access/refresh pair.
type AuthResult struct {
	SessionToken       string
	AccessToken        string
	RefreshToken       string
	NeedPasswordChange bool
	User               *models.User
	Patient            *models.Patient
}

// AuthService orchestrates registration, login, refresh, password and OTP
// flows on top of the identity provider and the token issuer.
type AuthService struct {
	identity    *IdentityProvider
	tokens      TokenIssuer
	patients    PatientRepository
	tx          Transactor
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

func NewAuthService(identity *IdentityProvider, tokens TokenIssuer, patients PatientRepository, tx Transactor, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *AuthService {
	return &AuthService{
		identity:    identity,
		tokens:      tokens,
		patients:    patients,
		tx:          tx,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// RegisterPatient creates the account, its session and its patient profile.
// A failed profile insert removes the new account again.
func (s *AuthService) RegisterPatient(ctx context.Context, name, email, password string, meta models.ClientMeta) (*AuthResult, error) {
	user, session, err := s.identity.SignUpEmail(ctx, name, email, password, meta)
	if err != nil {
		if user != nil {
			s.compensateRegistration(ctx, user.ID)
			return nil, models.NewError(models.ErrBadRequest, "Failed to register patient")
		}
		return nil, err
	}

	var patient *models.Patient
	err = s.tx.WithTransaction(ctx, func(tx pgx.Tx) error {
		created, err := s.patients.CreateTx(ctx, tx, &models.Patient{
			UserID: user.ID,
			Name:   user.Name,
			Email:  user.Email,
		})
		if err != nil {
			return err
		}
		patient = created
		return nil
	})
	if err != nil {
		s.logger.Error("patient profile insert failed",
			slog.String("user_id", user.ID),
			slog.Any("error", err))
		s.compensateRegistration(ctx, user.ID)
		return nil, models.NewError(models.ErrBadRequest, "Failed to register patient")
	}

	pair, err := s.tokens.GenerateTokenPair(models.PayloadFromUser(user))
	if err != nil {
		return nil, fmt.Errorf("generate token pair: %w", err)
	}

	s.auditLogger.Log(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventRegister,
		UserID:    user.ID,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		Success:   true,
	})

	return &AuthResult{
		SessionToken: session.Token,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		User:         user,
		Patient:      patient,
	}, nil
}

func (s *AuthService) compensateRegistration(ctx context.Context, userID string) {
	if err := s.identity.DeleteUser(ctx, userID); err != nil {
		s.logger.Error("failed to roll back registration",
			slog.String("user_id", userID),
			slog.Any("error", err))
	}
}

// LoginUser checks the password and the account status, then opens a session.
func (s *AuthService) LoginUser(ctx context.Context, email, password string, meta models.ClientMeta) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.identity.CheckCredentials(ctx, email, password)
	if err != nil {
		s.auditLogger.Failure(ctx, pkglogger.EventLoginFailed, email, meta.IPAddress, "invalid_credentials")
		return nil, err
	}

	if user.IsGone() {
		s.auditLogger.Failure(ctx, pkglogger.EventLoginFailed, email, meta.IPAddress, "account_deleted")
		return nil, errUserNotFound
	}
	if user.Status == models.UserStatusBlocked {
		s.logger.Info("login blocked due to account state", slog.String("user_id", user.ID))
		s.auditLogger.Failure(ctx, pkglogger.EventLoginFailed, email, meta.IPAddress, "account_blocked")
		return nil, errBlockedAccount
	}

	session, err := s.identity.CreateSession(ctx, user.ID, meta)
	if err != nil {
		return nil, err
	}

	pair, err := s.tokens.GenerateTokenPair(models.PayloadFromUser(user))
	if err != nil {
		return nil, fmt.Errorf("generate token pair: %w", err)
	}

	s.auditLogger.Log(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventLoginSuccess,
		UserID:    user.ID,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		Success:   true,
	})

	return &AuthResult{
		SessionToken:       session.Token,
		AccessToken:        pair.AccessToken,
		RefreshToken:       pair.RefreshToken,
		NeedPasswordChange: user.NeedPasswordChange,
		User:               user,
	}, nil
}

// GetNewToken exchanges a refresh token plus its live session for a new pair.
// The new pair carries the refresh token's claims; an owner that can no
// longer authenticate is still refused.
func (s *AuthService) GetNewToken(ctx context.Context, refreshToken, sessionToken string) (*AuthResult, error) {
	session, err := s.liveSession(ctx, sessionToken)
	if err != nil {
		return nil, err
	}

	claims, err := s.tokens.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, errBadRefreshToken
	}
	if claims.UserID != session.UserID {
		s.logger.Warn("refresh token does not belong to session owner",
			slog.String("session_user_id", session.UserID))
		return nil, errBadRefreshToken
	}
	if session.User != nil && !session.User.CanAuthenticate() {
		return nil, errNoLiveSession
	}

	pair, err := s.tokens.GenerateTokenPair(claims.TokenPayload)
	if err != nil {
		return nil, fmt.Errorf("generate token pair: %w", err)
	}

	touched, err := s.identity.TouchSession(ctx, session.Token)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, errNoLiveSession
		}
		return nil, fmt.Errorf("touch session: %w", err)
	}

	s.auditLogger.Success(ctx, pkglogger.EventTokenRefresh, session.UserID, session.IPAddress)

	return &AuthResult{
		SessionToken: touched.Token,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}, nil
}

// ChangePassword rotates the password of the session owner and ends every
// other session of that user.
func (s *AuthService) ChangePassword(ctx context.Context, sessionToken, currentPassword, newPassword string) (*AuthResult, error) {
	session, err := s.liveSession(ctx, sessionToken)
	if err != nil {
		return nil, err
	}

	user, err := s.identity.ChangePassword(ctx, session.UserID, currentPassword, newPassword, session.Token)
	if err != nil {
		if errors.Is(err, models.ErrBadRequest) {
			s.auditLogger.Failure(ctx, pkglogger.EventPasswordChange, "", session.IPAddress, "invalid_current_password")
		}
		return nil, err
	}

	pair, err := s.tokens.GenerateTokenPair(models.PayloadFromUser(user))
	if err != nil {
		return nil, fmt.Errorf("generate token pair: %w", err)
	}

	s.auditLogger.Success(ctx, pkglogger.EventPasswordChange, user.ID, session.IPAddress)

	return &AuthResult{
		SessionToken: session.Token,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		User:         user,
	}, nil
}

// LogoutUser deletes the given session. Unknown tokens are not an error.
func (s *AuthService) LogoutUser(ctx context.Context, sessionToken string) error {
	session, err := s.identity.GetSession(ctx, sessionToken)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		s.logger.Warn("logout session lookup failed", slog.Any("error", err))
	}

	if err := s.identity.RevokeSession(ctx, sessionToken); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}

	if session != nil {
		s.auditLogger.Success(ctx, pkglogger.EventLogout, session.UserID, session.IPAddress)
	}
	return nil
}

func (s *AuthService) VerifyEmail(ctx context.Context, email, otp string) (*models.User, error) {
	user, err := s.identity.VerifyEmailOTP(ctx, email, otp)
	if err != nil {
		return nil, err
	}
	s.auditLogger.Success(ctx, pkglogger.EventEmailVerified, user.ID, "")
	return user, nil
}

// ResendVerification mails a new code when the address belongs to a live,
// unverified account. The caller always sees success.
func (s *AuthService) ResendVerification(ctx context.Context, email string) error {
	user, err := s.identity.FindUserByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			s.logger.Error("resend verification lookup failed", slog.Any("error", err))
		}
		return nil
	}
	if user.IsGone() || user.EmailVerified {
		return nil
	}

	if err := s.identity.SendVerificationOTP(ctx, user.Email); err != nil {
		s.logger.Error("failed to resend verification code",
			slog.String("user_id", user.ID),
			slog.Any("error", err))
	}
	return nil
}

// ForgetPassword mails a password-reset code.
func (s *AuthService) ForgetPassword(ctx context.Context, email string) error {
	user, err := s.resettableUser(ctx, email)
	if err != nil {
		return err
	}
	if err := s.identity.RequestPasswordResetOTP(ctx, user.Email); err != nil {
		return fmt.Errorf("request password reset: %w", err)
	}
	return nil
}

// ResetPassword rotates the password behind a reset code and ends every
// session of the user.
func (s *AuthService) ResetPassword(ctx context.Context, email, otp, newPassword string) error {
	user, err := s.resettableUser(ctx, email)
	if err != nil {
		return err
	}

	if _, err := s.identity.ResetPasswordOTP(ctx, user.Email, otp, newPassword); err != nil {
		return err
	}

	// The new password is already active; revocation is retried once and a
	// lasting failure is reported as such.
	if err := s.identity.RevokeAllSessions(ctx, user.ID); err != nil {
		s.logger.Warn("session revocation after reset failed, retrying",
			slog.String("user_id", user.ID),
			slog.Any("error", err))
		if err := s.identity.RevokeAllSessions(ctx, user.ID); err != nil {
			s.logger.Error("sessions survived password reset",
				slog.String("user_id", user.ID),
				slog.Any("error", err))
			s.auditLogger.Success(ctx, pkglogger.EventPasswordReset, user.ID, "")
			return errResetSessionsSurvived
		}
	}

	s.auditLogger.Success(ctx, pkglogger.EventPasswordReset, user.ID, "")
	return nil
}

// resettableUser returns the account for email when a password reset may
// start. Missing and deleted accounts look the same.
func (s *AuthService) resettableUser(ctx context.Context, email string) (*models.User, error) {
	user, err := s.identity.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, errUserNotFound
		}
		return nil, err
	}
	if user.IsGone() {
		return nil, errUserNotFound
	}
	if !user.EmailVerified {
		return nil, errEmailUnverified
	}
	return user, nil
}

// GoogleLoginSuccess finishes an OAuth login: it provisions the patient
// profile on first login and mints the token pair for the session owner.
func (s *AuthService) GoogleLoginSuccess(ctx context.Context, sessionToken string) (*AuthResult, error) {
	if sessionToken == "" {
		return nil, ErrNoSessionFound
	}

	session, err := s.identity.GetSession(ctx, sessionToken)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, ErrNoSessionFound
		}
		return nil, err
	}

	user := session.User
	if user == nil {
		return nil, ErrNoUserFound
	}
	if !user.CanAuthenticate() {
		return nil, ErrAccountUnavailable
	}

	patient, err := s.ensurePatient(ctx, user)
	if err != nil {
		return nil, err
	}

	pair, err := s.tokens.GenerateTokenPair(models.PayloadFromUser(user))
	if err != nil {
		return nil, fmt.Errorf("generate token pair: %w", err)
	}

	s.auditLogger.Success(ctx, pkglogger.EventOAuthLogin, user.ID, session.IPAddress)

	return &AuthResult{
		SessionToken: session.Token,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		User:         user,
		Patient:      patient,
	}, nil
}

func (s *AuthService) ensurePatient(ctx context.Context, user *models.User) (*models.Patient, error) {
	if user.Role != models.RolePatient {
		return nil, nil
	}

	patient, err := s.patients.GetByUserID(ctx, user.ID)
	if err == nil {
		return patient, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("lookup patient: %w", err)
	}

	err = s.tx.WithTransaction(ctx, func(tx pgx.Tx) error {
		patient, err = s.patients.CreateTx(ctx, tx, &models.Patient{
			UserID:       user.ID,
			Name:         user.Name,
			Email:        user.Email,
			ProfilePhoto: user.Image,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create patient: %w", err)
	}

	s.logger.Info("patient profile provisioned", slog.String("user_id", user.ID))
	return patient, nil
}

func (s *AuthService) liveSession(ctx context.Context, sessionToken string) (*models.Session, error) {
	session, err := s.identity.GetSession(ctx, sessionToken)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, errNoLiveSession
		}
		return nil, fmt.Errorf("lookup session: %w", err)
	}
	return session, nil
}
