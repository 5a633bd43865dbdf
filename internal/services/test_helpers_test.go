package services

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/BradenHooton/carelink/internal/auth"
	"github.com/BradenHooton/carelink/internal/models"
	"github.com/BradenHooton/carelink/internal/repositories"
	"github.com/jackc/pgx/v5"
)

const (
	testAccessSecret  = "access-secret-for-service-tests"
	testRefreshSecret = "refresh-secret-for-service-tests"
	testSessionExpiry = 7 * 24 * time.Hour
)

// MockUserRepository implements UserRepository for testing
type MockUserRepository struct {
	GetByIDFunc           func(ctx context.Context, id string) (*models.User, error)
	GetByEmailFunc        func(ctx context.Context, email string) (*models.User, error)
	CreateFunc            func(ctx context.Context, user *models.User) (*models.User, error)
	UpdatePasswordFunc    func(ctx context.Context, id, passwordHash string) error
	MarkEmailVerifiedFunc func(ctx context.Context, id string) error
	UpdateStatusFunc      func(ctx context.Context, id string, status models.UserStatus) (*models.User, error)
	UpdateImageFunc       func(ctx context.Context, id, image string) error
	DeleteFunc            func(ctx context.Context, id string) error
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	if m.UpdatePasswordFunc != nil {
		return m.UpdatePasswordFunc(ctx, id, passwordHash)
	}
	return nil
}

func (m *MockUserRepository) MarkEmailVerified(ctx context.Context, id string) error {
	if m.MarkEmailVerifiedFunc != nil {
		return m.MarkEmailVerifiedFunc(ctx, id)
	}
	return nil
}

func (m *MockUserRepository) UpdateStatus(ctx context.Context, id string, status models.UserStatus) (*models.User, error) {
	if m.UpdateStatusFunc != nil {
		return m.UpdateStatusFunc(ctx, id, status)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) UpdateImage(ctx context.Context, id, image string) error {
	if m.UpdateImageFunc != nil {
		return m.UpdateImageFunc(ctx, id, image)
	}
	return nil
}

func (m *MockUserRepository) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

// MockSessionRepository implements SessionRepository for testing
type MockSessionRepository struct {
	CreateFunc              func(ctx context.Context, userID string, meta models.ClientMeta, lifetime time.Duration) (*models.Session, error)
	FindActiveByTokenFunc   func(ctx context.Context, token string) (*models.Session, error)
	TouchFunc               func(ctx context.Context, token string, lifetime time.Duration) (*models.Session, error)
	DeleteFunc              func(ctx context.Context, token string) error
	DeleteAllForUserFunc    func(ctx context.Context, userID string) (int64, error)
	DeleteOthersForUserFunc func(ctx context.Context, userID, keepToken string) (int64, error)
}

func (m *MockSessionRepository) Create(ctx context.Context, userID string, meta models.ClientMeta, lifetime time.Duration) (*models.Session, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, userID, meta, lifetime)
	}
	now := time.Now()
	return &models.Session{
		ID:        "session-" + userID,
		Token:     "token-" + userID,
		UserID:    userID,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(lifetime),
	}, nil
}

func (m *MockSessionRepository) FindActiveByToken(ctx context.Context, token string) (*models.Session, error) {
	if m.FindActiveByTokenFunc != nil {
		return m.FindActiveByTokenFunc(ctx, token)
	}
	return nil, models.ErrNotFound
}

func (m *MockSessionRepository) Touch(ctx context.Context, token string, lifetime time.Duration) (*models.Session, error) {
	if m.TouchFunc != nil {
		return m.TouchFunc(ctx, token, lifetime)
	}
	return &models.Session{Token: token, ExpiresAt: time.Now().Add(lifetime)}, nil
}

func (m *MockSessionRepository) Delete(ctx context.Context, token string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, token)
	}
	return nil
}

func (m *MockSessionRepository) DeleteAllForUser(ctx context.Context, userID string) (int64, error) {
	if m.DeleteAllForUserFunc != nil {
		return m.DeleteAllForUserFunc(ctx, userID)
	}
	return 0, nil
}

func (m *MockSessionRepository) DeleteOthersForUser(ctx context.Context, userID, keepToken string) (int64, error) {
	if m.DeleteOthersForUserFunc != nil {
		return m.DeleteOthersForUserFunc(ctx, userID, keepToken)
	}
	return 0, nil
}

// MockOTPRepository implements OTPRepository for testing
type MockOTPRepository struct {
	SaveFunc    func(ctx context.Context, purpose repositories.OTPPurpose, email, secret string, ttl time.Duration) error
	ClaimFunc   func(ctx context.Context, purpose repositories.OTPPurpose, email string) (*repositories.OTPEntry, error)
	ConsumeFunc func(ctx context.Context, purpose repositories.OTPPurpose, email, secret string) (bool, error)
	DeleteFunc  func(ctx context.Context, purpose repositories.OTPPurpose, email string) error
}

func (m *MockOTPRepository) Save(ctx context.Context, purpose repositories.OTPPurpose, email, secret string, ttl time.Duration) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, purpose, email, secret, ttl)
	}
	return nil
}

func (m *MockOTPRepository) Claim(ctx context.Context, purpose repositories.OTPPurpose, email string) (*repositories.OTPEntry, error) {
	if m.ClaimFunc != nil {
		return m.ClaimFunc(ctx, purpose, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockOTPRepository) Consume(ctx context.Context, purpose repositories.OTPPurpose, email, secret string) (bool, error) {
	if m.ConsumeFunc != nil {
		return m.ConsumeFunc(ctx, purpose, email, secret)
	}
	return true, nil
}

func (m *MockOTPRepository) Delete(ctx context.Context, purpose repositories.OTPPurpose, email string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, purpose, email)
	}
	return nil
}

// memoryOTPs is an OTPRepository backed by a map, for flows that issue and
// then consume a code.
type memoryOTPs struct {
	entries map[string]*repositories.OTPEntry
}

func newMemoryOTPs() *memoryOTPs {
	return &memoryOTPs{entries: make(map[string]*repositories.OTPEntry)}
}

func (m *memoryOTPs) key(purpose repositories.OTPPurpose, email string) string {
	return string(purpose) + ":" + email
}

func (m *memoryOTPs) Save(_ context.Context, purpose repositories.OTPPurpose, email, secret string, _ time.Duration) error {
	m.entries[m.key(purpose, email)] = &repositories.OTPEntry{Secret: secret}
	return nil
}

func (m *memoryOTPs) Claim(_ context.Context, purpose repositories.OTPPurpose, email string) (*repositories.OTPEntry, error) {
	entry, ok := m.entries[m.key(purpose, email)]
	if !ok {
		return nil, models.ErrNotFound
	}
	entry.Attempts++
	cp := *entry
	return &cp, nil
}

func (m *memoryOTPs) Consume(_ context.Context, purpose repositories.OTPPurpose, email, secret string) (bool, error) {
	entry, ok := m.entries[m.key(purpose, email)]
	if !ok || entry.Secret != secret {
		return false, nil
	}
	delete(m.entries, m.key(purpose, email))
	return true, nil
}

func (m *memoryOTPs) Delete(_ context.Context, purpose repositories.OTPPurpose, email string) error {
	delete(m.entries, m.key(purpose, email))
	return nil
}

// MockOAuthAccountRepository implements OAuthAccountRepository for testing
type MockOAuthAccountRepository struct {
	FindUserIDFunc func(ctx context.Context, provider, subject string) (string, error)
	LinkFunc       func(ctx context.Context, userID, provider, subject string) (*models.OAuthAccount, error)
}

func (m *MockOAuthAccountRepository) FindUserID(ctx context.Context, provider, subject string) (string, error) {
	if m.FindUserIDFunc != nil {
		return m.FindUserIDFunc(ctx, provider, subject)
	}
	return "", models.ErrNotFound
}

func (m *MockOAuthAccountRepository) Link(ctx context.Context, userID, provider, subject string) (*models.OAuthAccount, error) {
	if m.LinkFunc != nil {
		return m.LinkFunc(ctx, userID, provider, subject)
	}
	return &models.OAuthAccount{UserID: userID, Provider: provider, ProviderAccountID: subject}, nil
}

// MockEmailSender records the last code it was asked to send
type MockEmailSender struct {
	SendOTPFunc func(ctx context.Context, to string, purpose repositories.OTPPurpose, code string, ttl time.Duration) error

	LastTo      string
	LastPurpose repositories.OTPPurpose
	LastCode    string
	Sent        int
}

func (m *MockEmailSender) SendOTP(ctx context.Context, to string, purpose repositories.OTPPurpose, code string, ttl time.Duration) error {
	m.LastTo, m.LastPurpose, m.LastCode = to, purpose, code
	m.Sent++
	if m.SendOTPFunc != nil {
		return m.SendOTPFunc(ctx, to, purpose, code, ttl)
	}
	return nil
}

// MockPatientRepository implements PatientRepository for testing
type MockPatientRepository struct {
	CreateTxFunc    func(ctx context.Context, tx pgx.Tx, p *models.Patient) (*models.Patient, error)
	GetByUserIDFunc func(ctx context.Context, userID string) (*models.Patient, error)
}

func (m *MockPatientRepository) CreateTx(ctx context.Context, tx pgx.Tx, p *models.Patient) (*models.Patient, error) {
	if m.CreateTxFunc != nil {
		return m.CreateTxFunc(ctx, tx, p)
	}
	created := *p
	created.ID = "patient-" + p.UserID
	return &created, nil
}

func (m *MockPatientRepository) GetByUserID(ctx context.Context, userID string) (*models.Patient, error) {
	if m.GetByUserIDFunc != nil {
		return m.GetByUserIDFunc(ctx, userID)
	}
	return nil, models.ErrNotFound
}

// MockTransactor runs fn without a real transaction
type MockTransactor struct {
	Calls int
}

func (m *MockTransactor) WithTransaction(ctx context.Context, fn func(pgx.Tx) error) error {
	m.Calls++
	return fn(nil)
}

// MockProfileRepository implements ProfileRepository for testing
type MockProfileRepository struct {
	GetPatientFunc func(ctx context.Context, userID string) (*models.Patient, error)
	GetDoctorFunc  func(ctx context.Context, userID string) (*models.Doctor, error)
	GetAdminFunc   func(ctx context.Context, userID string) (*models.Admin, error)
}

func (m *MockProfileRepository) GetPatient(ctx context.Context, userID string) (*models.Patient, error) {
	if m.GetPatientFunc != nil {
		return m.GetPatientFunc(ctx, userID)
	}
	return nil, models.ErrNotFound
}

func (m *MockProfileRepository) GetDoctor(ctx context.Context, userID string) (*models.Doctor, error) {
	if m.GetDoctorFunc != nil {
		return m.GetDoctorFunc(ctx, userID)
	}
	return nil, models.ErrNotFound
}

func (m *MockProfileRepository) GetAdmin(ctx context.Context, userID string) (*models.Admin, error) {
	if m.GetAdminFunc != nil {
		return m.GetAdminFunc(ctx, userID)
	}
	return nil, models.ErrNotFound
}

// NewTestUser creates a verified, active patient for testing
func NewTestUser(id, email, name string) *models.User {
	now := time.Now()
	return &models.User{
		ID:            id,
		Email:         email,
		Name:          name,
		Role:          models.RolePatient,
		Status:        models.UserStatusActive,
		EmailVerified: true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// NewTestUserWithPassword creates a test user with a password hash
func NewTestUserWithPassword(id, email, name, passwordHash string) *models.User {
	user := NewTestUser(id, email, name)
	user.PasswordHash = passwordHash
	return user
}

// NewTestUserWithStatus creates a test user with a specific status
func NewTestUserWithStatus(id, email, name string, status models.UserStatus) *models.User {
	user := NewTestUser(id, email, name)
	user.Status = status
	if status == models.UserStatusDeleted {
		user.IsDeleted = true
	}
	return user
}

// NewTestSession creates a live session owned by user
func NewTestSession(token string, user *models.User) *models.Session {
	now := time.Now()
	return &models.Session{
		ID:        "session-" + token,
		Token:     token,
		UserID:    user.ID,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(testSessionExpiry),
		User:      user,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testTokenManager() *auth.TokenManager {
	return auth.NewTokenManager(testAccessSecret, 15*time.Minute, testRefreshSecret, 24*time.Hour)
}

// providerDeps collects the collaborators of an IdentityProvider under test.
type providerDeps struct {
	users    *MockUserRepository
	sessions *MockSessionRepository
	otps     OTPRepository
	accounts *MockOAuthAccountRepository
	mailer   *MockEmailSender
}

func newProviderDeps() *providerDeps {
	return &providerDeps{
		users:    &MockUserRepository{},
		sessions: &MockSessionRepository{},
		otps:     &MockOTPRepository{},
		accounts: &MockOAuthAccountRepository{},
		mailer:   &MockEmailSender{},
	}
}

func (d *providerDeps) provider() *IdentityProvider {
	return NewIdentityProvider(
		d.users,
		d.sessions,
		d.otps,
		d.accounts,
		d.mailer,
		auth.NewOTPGenerator("CareLink"),
		nil,
		IdentityConfig{
			SessionExpiry:  testSessionExpiry,
			OTPExpiry:      5 * time.Minute,
			OTPMaxAttempts: 3,
		},
		discardLogger(),
	)
}
