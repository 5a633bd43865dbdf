package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BradenHooton/carelink/internal/auth"
	"github.com/BradenHooton/carelink/internal/models"
	"github.com/BradenHooton/carelink/internal/repositories"
	pkgauth "github.com/BradenHooton/carelink/pkg/auth"
	pkglogger "github.com/BradenHooton/carelink/pkg/logger"
)

// UserRepository is the user persistence the services depend on.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	MarkEmailVerified(ctx context.Context, id string) error
	UpdateStatus(ctx context.Context, id string, status models.UserStatus) (*models.User, error)
	UpdateImage(ctx context.Context, id, image string) error
	Delete(ctx context.Context, id string) error
}

// SessionRepository is the server-side session store.
type SessionRepository interface {
	Create(ctx context.Context, userID string, meta models.ClientMeta, lifetime time.Duration) (*models.Session, error)
	FindActiveByToken(ctx context.Context, token string) (*models.Session, error)
	Touch(ctx context.Context, token string, lifetime time.Duration) (*models.Session, error)
	Delete(ctx context.Context, token string) error
	DeleteAllForUser(ctx context.Context, userID string) (int64, error)
	DeleteOthersForUser(ctx context.Context, userID, keepToken string) (int64, error)
}

// OTPRepository keeps one pending one-time code per purpose and email.
type OTPRepository interface {
	Save(ctx context.Context, purpose repositories.OTPPurpose, email, secret string, ttl time.Duration) error
	Claim(ctx context.Context, purpose repositories.OTPPurpose, email string) (*repositories.OTPEntry, error)
	Consume(ctx context.Context, purpose repositories.OTPPurpose, email, secret string) (bool, error)
	Delete(ctx context.Context, purpose repositories.OTPPurpose, email string) error
}

// OAuthAccountRepository links external provider subjects to users.
type OAuthAccountRepository interface {
	FindUserID(ctx context.Context, provider, subject string) (string, error)
	Link(ctx context.Context, userID, provider, subject string) (*models.OAuthAccount, error)
}

// IdentityConfig holds the lifetimes the provider applies.
type IdentityConfig struct {
	SessionExpiry  time.Duration
	OTPExpiry      time.Duration
	OTPMaxAttempts int
}

var errInvalidCredentials = models.NewError(models.ErrUnauthorized, "Invalid email or password")

// IdentityProvider owns password hashes, sessions, one-time codes and
// OAuth account linking.
type IdentityProvider struct {
	users    UserRepository
	sessions SessionRepository
	otps     OTPRepository
	accounts OAuthAccountRepository
	mailer   EmailSender
	otpGen   *auth.OTPGenerator
	timing   *auth.TimingDelay
	cfg      IdentityConfig
	logger   *slog.Logger
}

func NewIdentityProvider(
	users UserRepository,
	sessions SessionRepository,
	otps OTPRepository,
	accounts OAuthAccountRepository,
	mailer EmailSender,
	otpGen *auth.OTPGenerator,
	timing *auth.TimingDelay,
	cfg IdentityConfig,
	logger *slog.Logger,
) *IdentityProvider {
	if cfg.OTPMaxAttempts <= 0 {
		cfg.OTPMaxAttempts = 3
	}
	return &IdentityProvider{
		users:    users,
		sessions: sessions,
		otps:     otps,
		accounts: accounts,
		mailer:   mailer,
		otpGen:   otpGen,
		timing:   timing,
		cfg:      cfg,
		logger:   logger,
	}
}

// SignUpEmail creates a password account, opens its first session and mails
// an email-verification code.
func (p *IdentityProvider) SignUpEmail(ctx context.Context, name, email, password string, meta models.ClientMeta) (*models.User, *models.Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	if err := pkgauth.ValidatePassword(password); err != nil {
		return nil, nil, models.NewError(models.ErrBadRequest, err.Error())
	}

	if _, err := p.users.GetByEmail(ctx, email); err == nil {
		return nil, nil, models.NewError(models.ErrBadRequest, "User already exists with this email")
	} else if !errors.Is(err, models.ErrNotFound) {
		return nil, nil, fmt.Errorf("lookup user by email: %w", err)
	}

	hash, err := pkgauth.HashPassword(password)
	if err != nil {
		return nil, nil, err
	}

	user, err := p.users.Create(ctx, &models.User{
		Name:         strings.TrimSpace(name),
		Email:        email,
		PasswordHash: hash,
		Role:         models.RolePatient,
		Status:       models.UserStatusActive,
	})
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, nil, models.NewError(models.ErrBadRequest, "User already exists with this email")
		}
		return nil, nil, fmt.Errorf("create user: %w", err)
	}

	session, err := p.CreateSession(ctx, user.ID, meta)
	if err != nil {
		return user, nil, err
	}

	if err := p.SendVerificationOTP(ctx, user.Email); err != nil {
		p.logger.Error("failed to send verification code",
			slog.String("user_id", user.ID),
			slog.Any("error", err))
	}

	return user, session, nil
}

// CheckCredentials returns the user owning email when password matches its
// hash. Unknown emails and wrong passwords fail the same way after the same delay.
func (p *IdentityProvider) CheckCredentials(ctx context.Context, email, password string) (*models.User, error) {
	start := time.Now()

	user, err := p.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			p.timing.WaitFrom(ctx, start, false)
			return nil, errInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user by email: %w", err)
	}

	if err := pkgauth.ComparePassword(user.PasswordHash, password); err != nil {
		p.timing.WaitFrom(ctx, start, false)
		return nil, errInvalidCredentials
	}

	p.timing.WaitFrom(ctx, start, true)
	return user, nil
}

func (p *IdentityProvider) CreateSession(ctx context.Context, userID string, meta models.ClientMeta) (*models.Session, error) {
	session, err := p.sessions.Create(ctx, userID, meta, p.cfg.SessionExpiry)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return session, nil
}

// GetSession returns the live session for token together with its user.
func (p *IdentityProvider) GetSession(ctx context.Context, token string) (*models.Session, error) {
	if token == "" {
		return nil, models.ErrNotFound
	}
	return p.sessions.FindActiveByToken(ctx, token)
}

// TouchSession pushes the session expiry out by a full lifetime.
func (p *IdentityProvider) TouchSession(ctx context.Context, token string) (*models.Session, error) {
	return p.sessions.Touch(ctx, token, p.cfg.SessionExpiry)
}

func (p *IdentityProvider) RevokeSession(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return p.sessions.Delete(ctx, token)
}

func (p *IdentityProvider) RevokeAllSessions(ctx context.Context, userID string) error {
	n, err := p.sessions.DeleteAllForUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("revoke sessions: %w", err)
	}
	p.logger.Info("sessions revoked", slog.String("user_id", userID), slog.Int64("count", n))
	return nil
}

// ChangePassword verifies current, stores the hash of newPassword and ends
// every other session of the user.
func (p *IdentityProvider) ChangePassword(ctx context.Context, userID, current, newPassword, keepToken string) (*models.User, error) {
	user, err := p.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := pkgauth.ComparePassword(user.PasswordHash, current); err != nil {
		return nil, models.NewError(models.ErrBadRequest, "Current password is incorrect")
	}
	if err := pkgauth.ValidatePassword(newPassword); err != nil {
		return nil, models.NewError(models.ErrBadRequest, err.Error())
	}

	hash, err := pkgauth.HashPassword(newPassword)
	if err != nil {
		return nil, err
	}
	if err := p.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return nil, fmt.Errorf("update password: %w", err)
	}

	if _, err := p.sessions.DeleteOthersForUser(ctx, user.ID, keepToken); err != nil {
		return nil, fmt.Errorf("revoke other sessions: %w", err)
	}

	user.PasswordHash = hash
	user.NeedPasswordChange = false
	return user, nil
}

func (p *IdentityProvider) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return p.users.GetByEmail(ctx, email)
}

func (p *IdentityProvider) SendVerificationOTP(ctx context.Context, email string) error {
	return p.sendOTP(ctx, repositories.OTPEmailVerification, email)
}

func (p *IdentityProvider) RequestPasswordResetOTP(ctx context.Context, email string) error {
	return p.sendOTP(ctx, repositories.OTPPasswordReset, email)
}

// VerifyEmailOTP consumes an email-verification code and marks the address verified.
func (p *IdentityProvider) VerifyEmailOTP(ctx context.Context, email, code string) (*models.User, error) {
	if err := p.consumeOTP(ctx, repositories.OTPEmailVerification, email, code); err != nil {
		return nil, err
	}

	user, err := p.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if err := p.users.MarkEmailVerified(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("mark email verified: %w", err)
	}
	user.EmailVerified = true
	return user, nil
}

// ResetPasswordOTP consumes a password-reset code and stores the new hash.
func (p *IdentityProvider) ResetPasswordOTP(ctx context.Context, email, code, newPassword string) (*models.User, error) {
	if err := pkgauth.ValidatePassword(newPassword); err != nil {
		return nil, models.NewError(models.ErrBadRequest, err.Error())
	}
	if err := p.consumeOTP(ctx, repositories.OTPPasswordReset, email, code); err != nil {
		return nil, err
	}

	user, err := p.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	hash, err := pkgauth.HashPassword(newPassword)
	if err != nil {
		return nil, err
	}
	if err := p.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return nil, fmt.Errorf("update password: %w", err)
	}

	user.PasswordHash = hash
	user.NeedPasswordChange = false
	return user, nil
}

// SignInOAuth resolves the local user for a provider identity. A known
// provider subject wins; otherwise a user with the same email is linked, and
// failing that a verified PATIENT account is created.
func (p *IdentityProvider) SignInOAuth(ctx context.Context, profile models.OAuthProfile) (*models.User, error) {
	if profile.Email == "" || !profile.EmailVerified {
		return nil, models.NewError(models.ErrUnauthorized, "OAuth account has no verified email")
	}

	user, err := p.resolveOAuthUser(ctx, profile)
	if err != nil {
		return nil, err
	}

	if user.Image == nil && profile.Picture != "" {
		if err := p.users.UpdateImage(ctx, user.ID, profile.Picture); err != nil {
			p.logger.Warn("failed to store profile image",
				slog.String("user_id", user.ID),
				slog.Any("error", err))
		} else {
			picture := profile.Picture
			user.Image = &picture
		}
	}

	return user, nil
}

func (p *IdentityProvider) resolveOAuthUser(ctx context.Context, profile models.OAuthProfile) (*models.User, error) {
	userID, err := p.accounts.FindUserID(ctx, profile.Provider, profile.Subject)
	if err == nil {
		return p.users.GetByID(ctx, userID)
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("lookup oauth account: %w", err)
	}

	user, err := p.users.GetByEmail(ctx, profile.Email)
	switch {
	case err == nil:
		if !user.EmailVerified {
			if err := p.users.MarkEmailVerified(ctx, user.ID); err != nil {
				return nil, fmt.Errorf("mark email verified: %w", err)
			}
			user.EmailVerified = true
		}
	case errors.Is(err, models.ErrNotFound):
		name := strings.TrimSpace(profile.Name)
		if name == "" {
			name = profile.Email
		}
		user, err = p.users.Create(ctx, &models.User{
			Name:          name,
			Email:         profile.Email,
			Role:          models.RolePatient,
			Status:        models.UserStatusActive,
			EmailVerified: true,
		})
		if err != nil {
			return nil, fmt.Errorf("create oauth user: %w", err)
		}
	default:
		return nil, fmt.Errorf("lookup user by email: %w", err)
	}

	if _, err := p.accounts.Link(ctx, user.ID, profile.Provider, profile.Subject); err != nil {
		return nil, fmt.Errorf("link oauth account: %w", err)
	}

	p.logger.Info("oauth account linked",
		slog.String("user_id", user.ID),
		slog.String("provider", profile.Provider))
	return user, nil
}

// DeleteUser hard-deletes the user. Sessions and profiles cascade.
func (p *IdentityProvider) DeleteUser(ctx context.Context, userID string) error {
	return p.users.Delete(ctx, userID)
}

func (p *IdentityProvider) sendOTP(ctx context.Context, purpose repositories.OTPPurpose, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))

	code, secret, err := p.otpGen.Generate(email)
	if err != nil {
		return fmt.Errorf("generate otp: %w", err)
	}
	if err := p.otps.Save(ctx, purpose, email, secret, p.cfg.OTPExpiry); err != nil {
		return fmt.Errorf("store otp: %w", err)
	}
	if err := p.mailer.SendOTP(ctx, email, purpose, code, p.cfg.OTPExpiry); err != nil {
		return fmt.Errorf("send otp: %w", err)
	}

	p.logger.Info("otp issued",
		slog.String("purpose", string(purpose)),
		slog.String("email", pkglogger.SanitizedEmail(email)))
	return nil
}

// consumeOTP checks code against the pending secret. Every check first
// claims an attempt, so the budget holds under concurrent guesses. A match
// consumes the code at most once; a spent budget drops it.
func (p *IdentityProvider) consumeOTP(ctx context.Context, purpose repositories.OTPPurpose, email, code string) error {
	email = strings.ToLower(strings.TrimSpace(email))

	entry, err := p.otps.Claim(ctx, purpose, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrInvalidOTP
		}
		return fmt.Errorf("claim otp attempt: %w", err)
	}

	if entry.Attempts > p.cfg.OTPMaxAttempts {
		p.dropOTP(ctx, purpose, email)
		return models.ErrInvalidOTP
	}

	if !p.otpGen.Validate(code, entry.Secret) {
		if entry.Attempts >= p.cfg.OTPMaxAttempts {
			p.dropOTP(ctx, purpose, email)
		}
		return models.ErrInvalidOTP
	}

	consumed, err := p.otps.Consume(ctx, purpose, email, entry.Secret)
	if err != nil {
		return fmt.Errorf("consume otp: %w", err)
	}
	if !consumed {
		return models.ErrInvalidOTP
	}
	return nil
}

func (p *IdentityProvider) dropOTP(ctx context.Context, purpose repositories.OTPPurpose, email string) {
	if err := p.otps.Delete(ctx, purpose, email); err != nil {
		p.logger.Warn("failed to delete otp",
			slog.String("purpose", string(purpose)),
			slog.Any("error", err))
	}
}
