package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/BradenHooton/carelink/internal/auth"
	"github.com/BradenHooton/carelink/internal/models"
	"github.com/BradenHooton/carelink/internal/repositories"
	pkgauth "github.com/BradenHooton/carelink/pkg/auth"
	pkglogger "github.com/BradenHooton/carelink/pkg/logger"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type authFixture struct {
	deps     *providerDeps
	patients *MockPatientRepository
	tx       *MockTransactor
	tokens   *auth.TokenManager
	svc      *AuthService
}

func newAuthFixture() *authFixture {
	deps := newProviderDeps()
	deps.otps = newMemoryOTPs()

	f := &authFixture{
		deps:     deps,
		patients: &MockPatientRepository{},
		tx:       &MockTransactor{},
		tokens:   testTokenManager(),
	}
	logger := discardLogger()
	f.svc = NewAuthService(deps.provider(), f.tokens, f.patients, f.tx, logger, pkglogger.NewAuditLogger(logger))
	return f
}

// memoryUsers wires the user mock to a map keyed by email.
func (f *authFixture) memoryUsers() map[string]*models.User {
	users := make(map[string]*models.User)
	seq := 0
	f.deps.users.GetByEmailFunc = func(ctx context.Context, email string) (*models.User, error) {
		if u, ok := users[email]; ok {
			cp := *u
			return &cp, nil
		}
		return nil, models.ErrNotFound
	}
	f.deps.users.GetByIDFunc = func(ctx context.Context, id string) (*models.User, error) {
		for _, u := range users {
			if u.ID == id {
				cp := *u
				return &cp, nil
			}
		}
		return nil, models.ErrNotFound
	}
	f.deps.users.CreateFunc = func(ctx context.Context, user *models.User) (*models.User, error) {
		seq++
		user.ID = fmt.Sprintf("user-%d", seq)
		cp := *user
		users[user.Email] = &cp
		return user, nil
	}
	f.deps.users.UpdatePasswordFunc = func(ctx context.Context, id, hash string) error {
		for _, u := range users {
			if u.ID == id {
				u.PasswordHash = hash
				u.NeedPasswordChange = false
				return nil
			}
		}
		return models.ErrNotFound
	}
	f.deps.users.DeleteFunc = func(ctx context.Context, id string) error {
		for email, u := range users {
			if u.ID == id {
				delete(users, email)
				return nil
			}
		}
		return models.ErrNotFound
	}
	return users
}

// memorySessions wires the session mock to a map keyed by token. Sessions
// past their expiry are not found, as in the real store.
func (f *authFixture) memorySessions(users map[string]*models.User) map[string]*models.Session {
	sessions := make(map[string]*models.Session)
	seq := 0
	f.deps.sessions.CreateFunc = func(ctx context.Context, userID string, meta models.ClientMeta, lifetime time.Duration) (*models.Session, error) {
		seq++
		now := time.Now()
		s := &models.Session{
			ID:        fmt.Sprintf("session-%d", seq),
			Token:     fmt.Sprintf("token-%d", seq),
			UserID:    userID,
			IPAddress: meta.IPAddress,
			CreatedAt: now,
			UpdatedAt: now,
			ExpiresAt: now.Add(lifetime),
		}
		sessions[s.Token] = s
		cp := *s
		return &cp, nil
	}
	f.deps.sessions.FindActiveByTokenFunc = func(ctx context.Context, token string) (*models.Session, error) {
		s, ok := sessions[token]
		if !ok || !s.IsActive(time.Now()) {
			return nil, models.ErrNotFound
		}
		cp := *s
		for _, u := range users {
			if u.ID == s.UserID {
				owner := *u
				cp.User = &owner
			}
		}
		return &cp, nil
	}
	f.deps.sessions.TouchFunc = func(ctx context.Context, token string, lifetime time.Duration) (*models.Session, error) {
		s, ok := sessions[token]
		if !ok {
			return nil, models.ErrNotFound
		}
		s.ExpiresAt = time.Now().Add(lifetime)
		cp := *s
		return &cp, nil
	}
	f.deps.sessions.DeleteFunc = func(ctx context.Context, token string) error {
		delete(sessions, token)
		return nil
	}
	f.deps.sessions.DeleteAllForUserFunc = func(ctx context.Context, userID string) (int64, error) {
		var n int64
		for token, s := range sessions {
			if s.UserID == userID {
				delete(sessions, token)
				n++
			}
		}
		return n, nil
	}
	return sessions
}

func TestAuthService_RegisterThenLogin(t *testing.T) {
	f := newAuthFixture()
	users := f.memoryUsers()
	f.memorySessions(users)
	ctx := context.Background()

	registered, err := f.svc.RegisterPatient(ctx, "A", "a@x.com", "p12345", models.ClientMeta{})
	require.NoError(t, err)
	assert.NotEmpty(t, registered.SessionToken)
	assert.NotEmpty(t, registered.AccessToken)
	assert.NotEmpty(t, registered.RefreshToken)
	require.NotNil(t, registered.Patient)
	assert.Equal(t, registered.User.ID, registered.Patient.UserID)
	assert.Equal(t, 1, f.tx.Calls)

	loggedIn, err := f.svc.LoginUser(ctx, "a@x.com", "p12345", models.ClientMeta{})
	require.NoError(t, err)
	assert.NotEqual(t, registered.SessionToken, loggedIn.SessionToken)

	claims, err := f.tokens.ValidateAccessToken(loggedIn.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, registered.User.ID, claims.UserID)

	refresh, err := f.tokens.ValidateRefreshToken(loggedIn.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, registered.User.ID, refresh.UserID)
}

func TestAuthService_RegisterPatient_ProfileFailureRemovesUser(t *testing.T) {
	f := newAuthFixture()
	users := f.memoryUsers()
	f.memorySessions(users)

	var deleted string
	deleteUser := f.deps.users.DeleteFunc
	f.deps.users.DeleteFunc = func(ctx context.Context, id string) error {
		deleted = id
		return deleteUser(ctx, id)
	}
	f.patients.CreateTxFunc = func(ctx context.Context, tx pgx.Tx, p *models.Patient) (*models.Patient, error) {
		return nil, errors.New("insert failed")
	}

	result, err := f.svc.RegisterPatient(context.Background(), "A", "a@x.com", "p12345", models.ClientMeta{})

	assert.Nil(t, result)
	assert.ErrorIs(t, err, models.ErrBadRequest)
	assert.Equal(t, "Failed to register patient", err.Error())
	assert.Equal(t, "user-1", deleted)
	assert.Empty(t, users, "no user row is left behind")
}

func TestAuthService_RegisterPatient_DuplicateEmail(t *testing.T) {
	f := newAuthFixture()
	f.deps.users.GetByEmailFunc = func(ctx context.Context, email string) (*models.User, error) {
		return NewTestUser("existing", email, "A"), nil
	}
	f.deps.users.DeleteFunc = func(ctx context.Context, id string) error {
		t.Fatal("nothing to compensate for a duplicate")
		return nil
	}

	_, err := f.svc.RegisterPatient(context.Background(), "A", "a@x.com", "p12345", models.ClientMeta{})

	assert.ErrorIs(t, err, models.ErrBadRequest)
	assert.Equal(t, 0, f.tx.Calls)
}

func TestAuthService_LoginUser_AccountStates(t *testing.T) {
	hash, err := pkgauth.HashPassword("p12345")
	require.NoError(t, err)

	tests := []struct {
		name    string
		status  models.UserStatus
		deleted bool
		wantErr error
	}{
		{"blocked", models.UserStatusBlocked, false, models.ErrForbidden},
		{"status deleted", models.UserStatusDeleted, true, models.ErrNotFound},
		{"soft deleted", models.UserStatusActive, true, models.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAuthFixture()
			f.deps.users.GetByEmailFunc = func(ctx context.Context, email string) (*models.User, error) {
				u := NewTestUserWithPassword("user-1", email, "A", hash)
				u.Status = tt.status
				u.IsDeleted = tt.deleted
				return u, nil
			}
			f.deps.sessions.CreateFunc = func(ctx context.Context, userID string, meta models.ClientMeta, lifetime time.Duration) (*models.Session, error) {
				t.Fatal("no session for a rejected account")
				return nil, nil
			}

			result, err := f.svc.LoginUser(context.Background(), "a@x.com", "p12345", models.ClientMeta{})

			assert.Nil(t, result)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestAuthService_LoginUser_InvalidCredentials(t *testing.T) {
	f := newAuthFixture()

	_, err := f.svc.LoginUser(context.Background(), "nobody@x.com", "p12345", models.ClientMeta{})

	assert.ErrorIs(t, err, models.ErrUnauthorized)
	assert.Equal(t, "Invalid email or password", err.Error())
}

func TestAuthService_GetNewToken(t *testing.T) {
	f := newAuthFixture()
	users := f.memoryUsers()
	sessions := f.memorySessions(users)
	ctx := context.Background()

	login, err := f.svc.RegisterPatient(ctx, "A", "a@x.com", "p12345", models.ClientMeta{})
	require.NoError(t, err)

	t.Run("success touches the session", func(t *testing.T) {
		sessions[login.SessionToken].ExpiresAt = time.Now().Add(time.Hour)

		result, err := f.svc.GetNewToken(ctx, login.RefreshToken, login.SessionToken)
		require.NoError(t, err)
		assert.Equal(t, login.SessionToken, result.SessionToken)
		assert.True(t, sessions[login.SessionToken].ExpiresAt.After(time.Now().Add(24*time.Hour)))

		claims, err := f.tokens.ValidateAccessToken(result.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, login.User.ID, claims.UserID)
	})

	t.Run("unknown session", func(t *testing.T) {
		_, err := f.svc.GetNewToken(ctx, login.RefreshToken, "no-such-session")
		assert.ErrorIs(t, err, models.ErrUnauthorized)
	})

	t.Run("expired session", func(t *testing.T) {
		expired := *sessions[login.SessionToken]
		expired.Token = "expired-session"
		expired.ExpiresAt = time.Now().Add(-time.Second)
		sessions[expired.Token] = &expired

		_, err := f.svc.GetNewToken(ctx, login.RefreshToken, expired.Token)
		assert.ErrorIs(t, err, models.ErrUnauthorized)
	})

	t.Run("refresh token signed with another secret", func(t *testing.T) {
		forged := auth.NewTokenManager(testAccessSecret, time.Minute, "some-other-refresh-secret", time.Hour)
		pair, err := forged.GenerateTokenPair(models.PayloadFromUser(login.User))
		require.NoError(t, err)

		_, err = f.svc.GetNewToken(ctx, pair.RefreshToken, login.SessionToken)
		assert.ErrorIs(t, err, models.ErrUnauthorized)
	})

	t.Run("access token presented as refresh token", func(t *testing.T) {
		_, err := f.svc.GetNewToken(ctx, login.AccessToken, login.SessionToken)
		assert.ErrorIs(t, err, models.ErrUnauthorized)
	})

	t.Run("refresh token of another user", func(t *testing.T) {
		other := NewTestUser("someone-else", "b@x.com", "B")
		pair, err := f.tokens.GenerateTokenPair(models.PayloadFromUser(other))
		require.NoError(t, err)

		_, err = f.svc.GetNewToken(ctx, pair.RefreshToken, login.SessionToken)
		assert.ErrorIs(t, err, models.ErrUnauthorized)
	})
}

func TestAuthService_GetNewToken_BlockedOwner(t *testing.T) {
	f := newAuthFixture()
	users := f.memoryUsers()
	f.memorySessions(users)
	ctx := context.Background()

	login, err := f.svc.RegisterPatient(ctx, "A", "a@x.com", "p12345", models.ClientMeta{})
	require.NoError(t, err)
	users["a@x.com"].Status = models.UserStatusBlocked

	_, err = f.svc.GetNewToken(ctx, login.RefreshToken, login.SessionToken)

	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestAuthService_LogoutUser_Idempotent(t *testing.T) {
	f := newAuthFixture()
	users := f.memoryUsers()
	sessions := f.memorySessions(users)
	ctx := context.Background()

	first, err := f.svc.RegisterPatient(ctx, "A", "a@x.com", "p12345", models.ClientMeta{})
	require.NoError(t, err)
	second, err := f.svc.LoginUser(ctx, "a@x.com", "p12345", models.ClientMeta{})
	require.NoError(t, err)

	require.NoError(t, f.svc.LogoutUser(ctx, first.SessionToken))
	require.NoError(t, f.svc.LogoutUser(ctx, first.SessionToken))

	assert.NotContains(t, sessions, first.SessionToken)
	assert.Contains(t, sessions, second.SessionToken, "only the presented session ends")

	_, err = f.svc.GetNewToken(ctx, first.RefreshToken, first.SessionToken)
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

// captureAudit routes the service's audit events into a buffer.
func (f *authFixture) captureAudit() *bytes.Buffer {
	var buf bytes.Buffer
	f.svc.auditLogger = pkglogger.NewAuditLogger(slog.New(slog.NewJSONHandler(&buf, nil)))
	return &buf
}

func auditEvents(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var events []map[string]any
	dec := json.NewDecoder(buf)
	for dec.More() {
		var e map[string]any
		require.NoError(t, dec.Decode(&e))
		events = append(events, e)
	}
	return events
}

func TestAuthService_LogoutUser_Audited(t *testing.T) {
	f := newAuthFixture()
	users := f.memoryUsers()
	f.memorySessions(users)
	ctx := context.Background()

	login, err := f.svc.RegisterPatient(ctx, "A", "a@x.com", "p12345", models.ClientMeta{IPAddress: "203.0.113.7"})
	require.NoError(t, err)

	buf := f.captureAudit()
	require.NoError(t, f.svc.LogoutUser(ctx, login.SessionToken))
	require.NoError(t, f.svc.LogoutUser(ctx, login.SessionToken))

	events := auditEvents(t, buf)
	require.Len(t, events, 1, "an already ended session is not audited again")
	assert.Equal(t, pkglogger.EventLogout, events[0]["event_type"])
	assert.Equal(t, login.User.ID, events[0]["user_id"])
	assert.Equal(t, "203.0.113.7", events[0]["ip_address"])
}

func TestAuthService_ChangePassword(t *testing.T) {
	f := newAuthFixture()
	users := f.memoryUsers()
	sessions := f.memorySessions(users)
	ctx := context.Background()

	var kept string
	f.deps.sessions.DeleteOthersForUserFunc = func(ctx context.Context, userID, keepToken string) (int64, error) {
		kept = keepToken
		return 0, nil
	}

	login, err := f.svc.RegisterPatient(ctx, "A", "a@x.com", "p12345", models.ClientMeta{})
	require.NoError(t, err)

	_, err = f.svc.ChangePassword(ctx, "missing-session", "p12345", "new-password")
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	_, err = f.svc.ChangePassword(ctx, login.SessionToken, "wrong-password", "new-password")
	assert.ErrorIs(t, err, models.ErrBadRequest)

	result, err := f.svc.ChangePassword(ctx, login.SessionToken, "p12345", "new-password")
	require.NoError(t, err)
	assert.Equal(t, login.SessionToken, result.SessionToken)
	assert.Equal(t, login.SessionToken, kept)
	assert.Contains(t, sessions, login.SessionToken)

	_, err = f.svc.LoginUser(ctx, "a@x.com", "new-password", models.ClientMeta{})
	assert.NoError(t, err)
}

func TestAuthService_ForgetPassword(t *testing.T) {
	tests := []struct {
		name     string
		user     *models.User
		wantErr  error
		wantMail bool
	}{
		{"absent", nil, models.ErrNotFound, false},
		{"soft deleted", NewTestUserWithStatus("u", "a@x.com", "A", models.UserStatusDeleted), models.ErrNotFound, false},
		{"unverified", func() *models.User {
			u := NewTestUser("u", "a@x.com", "A")
			u.EmailVerified = false
			return u
		}(), models.ErrBadRequest, false},
		{"verified", NewTestUser("u", "a@x.com", "A"), nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAuthFixture()
			f.deps.users.GetByEmailFunc = func(ctx context.Context, email string) (*models.User, error) {
				if tt.user == nil {
					return nil, models.ErrNotFound
				}
				return tt.user, nil
			}

			err := f.svc.ForgetPassword(context.Background(), "a@x.com")

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantMail, f.deps.mailer.Sent == 1)
			if tt.wantMail {
				assert.Equal(t, repositories.OTPPasswordReset, f.deps.mailer.LastPurpose)
			}
		})
	}
}

func TestAuthService_ResetPassword_EndsAllSessions(t *testing.T) {
	f := newAuthFixture()
	users := f.memoryUsers()
	sessions := f.memorySessions(users)
	ctx := context.Background()

	login, err := f.svc.RegisterPatient(ctx, "A", "a@x.com", "p12345", models.ClientMeta{})
	require.NoError(t, err)
	users["a@x.com"].EmailVerified = true
	_, err = f.svc.LoginUser(ctx, "a@x.com", "p12345", models.ClientMeta{})
	require.NoError(t, err)
	require.Len(t, sessions, 2)

	require.NoError(t, f.svc.ForgetPassword(ctx, "a@x.com"))

	err = f.svc.ResetPassword(ctx, "a@x.com", "999999x", "new-password")
	assert.ErrorIs(t, err, models.ErrInvalidOTP)
	assert.Len(t, sessions, 2, "a failed reset keeps sessions")

	require.NoError(t, f.svc.ResetPassword(ctx, "a@x.com", f.deps.mailer.LastCode, "new-password"))

	assert.Empty(t, sessions)
	_, err = f.svc.GetNewToken(ctx, login.RefreshToken, login.SessionToken)
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	_, err = f.svc.LoginUser(ctx, "a@x.com", "new-password", models.ClientMeta{})
	assert.NoError(t, err)
}

func TestAuthService_ResetPassword_RetriesRevocation(t *testing.T) {
	tests := []struct {
		name     string
		failures int
		wantErr  bool
	}{
		{"transient failure", 1, false},
		{"lasting failure", 2, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAuthFixture()
			users := f.memoryUsers()
			f.memorySessions(users)
			ctx := context.Background()

			_, err := f.svc.RegisterPatient(ctx, "A", "a@x.com", "p12345", models.ClientMeta{})
			require.NoError(t, err)
			users["a@x.com"].EmailVerified = true
			require.NoError(t, f.svc.ForgetPassword(ctx, "a@x.com"))

			calls := 0
			f.deps.sessions.DeleteAllForUserFunc = func(ctx context.Context, userID string) (int64, error) {
				calls++
				if calls <= tt.failures {
					return 0, errors.New("connection reset")
				}
				return 2, nil
			}

			err = f.svc.ResetPassword(ctx, "a@x.com", f.deps.mailer.LastCode, "new-password")

			assert.Equal(t, 2, calls)
			if tt.wantErr {
				assert.ErrorIs(t, err, models.ErrInternalServer)
				assert.Contains(t, err.Error(), "password was reset")
			} else {
				assert.NoError(t, err)
			}

			// the new password is in effect either way
			_, err = f.svc.LoginUser(ctx, "a@x.com", "new-password", models.ClientMeta{})
			assert.NoError(t, err)
		})
	}
}

func TestAuthService_VerifyEmail(t *testing.T) {
	f := newAuthFixture()
	users := f.memoryUsers()
	f.memorySessions(users)
	f.deps.users.MarkEmailVerifiedFunc = func(ctx context.Context, id string) error {
		users["a@x.com"].EmailVerified = true
		return nil
	}
	ctx := context.Background()

	_, err := f.svc.RegisterPatient(ctx, "A", "a@x.com", "p12345", models.ClientMeta{})
	require.NoError(t, err)
	code := f.deps.mailer.LastCode

	_, err = f.svc.VerifyEmail(ctx, "a@x.com", "12345x")
	assert.ErrorIs(t, err, models.ErrBadRequest)
	assert.Equal(t, "Invalid or expired OTP", err.Error())

	user, err := f.svc.VerifyEmail(ctx, "a@x.com", code)
	require.NoError(t, err)
	assert.True(t, user.EmailVerified)
	assert.True(t, users["a@x.com"].EmailVerified)
}

func TestAuthService_ResendVerification(t *testing.T) {
	unverified := NewTestUser("u", "a@x.com", "A")
	unverified.EmailVerified = false

	tests := []struct {
		name     string
		user     *models.User
		wantMail bool
	}{
		{"unknown email", nil, false},
		{"already verified", NewTestUser("u", "a@x.com", "A"), false},
		{"deleted", NewTestUserWithStatus("u", "a@x.com", "A", models.UserStatusDeleted), false},
		{"unverified", unverified, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAuthFixture()
			f.deps.users.GetByEmailFunc = func(ctx context.Context, email string) (*models.User, error) {
				if tt.user == nil {
					return nil, models.ErrNotFound
				}
				return tt.user, nil
			}

			assert.NoError(t, f.svc.ResendVerification(context.Background(), "a@x.com"))
			assert.Equal(t, tt.wantMail, f.deps.mailer.Sent == 1)
		})
	}
}

func TestAuthService_GoogleLoginSuccess(t *testing.T) {
	t.Run("missing session token", func(t *testing.T) {
		f := newAuthFixture()
		_, err := f.svc.GoogleLoginSuccess(context.Background(), "")
		assert.ErrorIs(t, err, ErrNoSessionFound)
	})

	t.Run("unknown session", func(t *testing.T) {
		f := newAuthFixture()
		_, err := f.svc.GoogleLoginSuccess(context.Background(), "gone")
		assert.ErrorIs(t, err, ErrNoSessionFound)
	})

	t.Run("session without user", func(t *testing.T) {
		f := newAuthFixture()
		f.deps.sessions.FindActiveByTokenFunc = func(ctx context.Context, token string) (*models.Session, error) {
			s := NewTestSession(token, NewTestUser("u", "a@x.com", "A"))
			s.User = nil
			return s, nil
		}
		_, err := f.svc.GoogleLoginSuccess(context.Background(), "tok")
		assert.ErrorIs(t, err, ErrNoUserFound)
	})

	t.Run("blocked user", func(t *testing.T) {
		f := newAuthFixture()
		f.deps.sessions.FindActiveByTokenFunc = func(ctx context.Context, token string) (*models.Session, error) {
			return NewTestSession(token, NewTestUserWithStatus("u", "a@x.com", "A", models.UserStatusBlocked)), nil
		}
		_, err := f.svc.GoogleLoginSuccess(context.Background(), "tok")
		assert.ErrorIs(t, err, ErrAccountUnavailable)
	})

	t.Run("first login provisions the patient", func(t *testing.T) {
		f := newAuthFixture()
		image := "https://example.com/a.png"
		user := NewTestUser("user-1", "a@x.com", "A")
		user.Image = &image
		f.deps.sessions.FindActiveByTokenFunc = func(ctx context.Context, token string) (*models.Session, error) {
			return NewTestSession(token, user), nil
		}

		result, err := f.svc.GoogleLoginSuccess(context.Background(), "tok")
		require.NoError(t, err)
		assert.Equal(t, 1, f.tx.Calls)
		require.NotNil(t, result.Patient)
		assert.Equal(t, "user-1", result.Patient.UserID)
		assert.Equal(t, &image, result.Patient.ProfilePhoto)
		assert.Equal(t, "tok", result.SessionToken)

		claims, err := f.tokens.ValidateAccessToken(result.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, "user-1", claims.UserID)
	})

	t.Run("returning login reuses the patient", func(t *testing.T) {
		f := newAuthFixture()
		user := NewTestUser("user-1", "a@x.com", "A")
		f.deps.sessions.FindActiveByTokenFunc = func(ctx context.Context, token string) (*models.Session, error) {
			return NewTestSession(token, user), nil
		}
		f.patients.GetByUserIDFunc = func(ctx context.Context, userID string) (*models.Patient, error) {
			return &models.Patient{ID: "patient-1", UserID: userID}, nil
		}

		result, err := f.svc.GoogleLoginSuccess(context.Background(), "tok")
		require.NoError(t, err)
		assert.Equal(t, 0, f.tx.Calls)
		assert.Equal(t, "patient-1", result.Patient.ID)
	})
}
