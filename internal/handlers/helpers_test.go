package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BradenHooton/carelink/internal/auth"
	"github.com/BradenHooton/carelink/internal/models"
	"github.com/BradenHooton/carelink/internal/services"
	pkghttp "github.com/BradenHooton/carelink/pkg/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testCookies   = auth.CookieConfig{Secure: true, SameSite: "none"}
	testLifetimes = auth.CookieLifetimes{Access: 15 * time.Minute, Refresh: 7 * 24 * time.Hour, Session: 24 * time.Hour}
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithRequestUser attaches the identity the access gate would have set.
func WithRequestUser(req *http.Request, userID string, role models.Role) *http.Request {
	ctx := auth.WithRequestUser(req.Context(), &models.RequestUser{UserID: userID, Role: role, Email: userID + "@x.com"})
	return req.WithContext(ctx)
}

// decodeEnvelope checks the status and decodes the success envelope's data into target.
func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target any) pkghttp.SuccessResponse {
	t.Helper()
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var raw struct {
		Success bool            `json:"success"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	if target != nil {
		require.NoError(t, json.Unmarshal(raw.Data, target))
	}
	return pkghttp.SuccessResponse{Success: raw.Success, Message: raw.Message}
}

// AssertErrorResponse checks that response is a valid error envelope
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedCode string) pkghttp.ErrorResponse {
	t.Helper()
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, expectedCode, resp.ErrorCode)
	assert.NotEmpty(t, resp.Message)
	return resp
}

// responseCookies indexes the Set-Cookie headers by name.
func responseCookies(w *httptest.ResponseRecorder) map[string]*http.Cookie {
	out := make(map[string]*http.Cookie)
	for _, c := range w.Result().Cookies() {
		out[c.Name] = c
	}
	return out
}

// MockAuthService implements handlers.AuthServiceInterface for testing
type MockAuthService struct {
	RegisterPatientFunc    func(ctx context.Context, name, email, password string, meta models.ClientMeta) (*services.AuthResult, error)
	LoginUserFunc          func(ctx context.Context, email, password string, meta models.ClientMeta) (*services.AuthResult, error)
	GetNewTokenFunc        func(ctx context.Context, refreshToken, sessionToken string) (*services.AuthResult, error)
	ChangePasswordFunc     func(ctx context.Context, sessionToken, currentPassword, newPassword string) (*services.AuthResult, error)
	LogoutUserFunc         func(ctx context.Context, sessionToken string) error
	VerifyEmailFunc        func(ctx context.Context, email, otp string) (*models.User, error)
	ResendVerificationFunc func(ctx context.Context, email string) error
	ForgetPasswordFunc     func(ctx context.Context, email string) error
	ResetPasswordFunc      func(ctx context.Context, email, otp, newPassword string) error
}

func (m *MockAuthService) RegisterPatient(ctx context.Context, name, email, password string, meta models.ClientMeta) (*services.AuthResult, error) {
	if m.RegisterPatientFunc == nil {
		return nil, models.ErrBadRequest
	}
	return m.RegisterPatientFunc(ctx, name, email, password, meta)
}

func (m *MockAuthService) LoginUser(ctx context.Context, email, password string, meta models.ClientMeta) (*services.AuthResult, error) {
	if m.LoginUserFunc == nil {
		return nil, models.ErrUnauthorized
	}
	return m.LoginUserFunc(ctx, email, password, meta)
}

func (m *MockAuthService) GetNewToken(ctx context.Context, refreshToken, sessionToken string) (*services.AuthResult, error) {
	if m.GetNewTokenFunc == nil {
		return nil, models.ErrUnauthorized
	}
	return m.GetNewTokenFunc(ctx, refreshToken, sessionToken)
}

func (m *MockAuthService) ChangePassword(ctx context.Context, sessionToken, currentPassword, newPassword string) (*services.AuthResult, error) {
	if m.ChangePasswordFunc == nil {
		return nil, models.ErrUnauthorized
	}
	return m.ChangePasswordFunc(ctx, sessionToken, currentPassword, newPassword)
}

func (m *MockAuthService) LogoutUser(ctx context.Context, sessionToken string) error {
	if m.LogoutUserFunc == nil {
		return nil
	}
	return m.LogoutUserFunc(ctx, sessionToken)
}

func (m *MockAuthService) VerifyEmail(ctx context.Context, email, otp string) (*models.User, error) {
	if m.VerifyEmailFunc == nil {
		return nil, models.ErrInvalidOTP
	}
	return m.VerifyEmailFunc(ctx, email, otp)
}

func (m *MockAuthService) ResendVerification(ctx context.Context, email string) error {
	if m.ResendVerificationFunc == nil {
		return nil
	}
	return m.ResendVerificationFunc(ctx, email)
}

func (m *MockAuthService) ForgetPassword(ctx context.Context, email string) error {
	if m.ForgetPasswordFunc == nil {
		return nil
	}
	return m.ForgetPasswordFunc(ctx, email)
}

func (m *MockAuthService) ResetPassword(ctx context.Context, email, otp, newPassword string) error {
	if m.ResetPasswordFunc == nil {
		return nil
	}
	return m.ResetPasswordFunc(ctx, email, otp, newPassword)
}

// MockDirectory implements handlers.DirectoryInterface for testing
type MockDirectory struct {
	GetMeFunc func(ctx context.Context, userID string) (*models.Profile, error)
}

func (m *MockDirectory) GetMe(ctx context.Context, userID string) (*models.Profile, error) {
	if m.GetMeFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.GetMeFunc(ctx, userID)
}

// MockUserService implements handlers.UserService for testing
type MockUserService struct {
	UpdateStatusFunc func(ctx context.Context, actor *models.RequestUser, targetID string, status models.UserStatus) (*models.User, error)
}

func (m *MockUserService) UpdateStatus(ctx context.Context, actor *models.RequestUser, targetID string, status models.UserStatus) (*models.User, error) {
	if m.UpdateStatusFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.UpdateStatusFunc(ctx, actor, targetID, status)
}

// MockOAuthFlow implements handlers.OAuthFlow for testing
type MockOAuthFlow struct {
	CompleteFunc func(ctx context.Context, code string, meta models.ClientMeta) (*models.Session, error)
}

func (m *MockOAuthFlow) AuthCodeURL(state string) string {
	return "https://accounts.google.com/o/oauth2/auth?state=" + state
}

func (m *MockOAuthFlow) Complete(ctx context.Context, code string, meta models.ClientMeta) (*models.Session, error) {
	if m.CompleteFunc == nil {
		return nil, models.ErrUnauthorized
	}
	return m.CompleteFunc(ctx, code, meta)
}

// MockOAuthLoginService implements handlers.OAuthLoginService for testing
type MockOAuthLoginService struct {
	GoogleLoginSuccessFunc func(ctx context.Context, sessionToken string) (*services.AuthResult, error)
}

func (m *MockOAuthLoginService) GoogleLoginSuccess(ctx context.Context, sessionToken string) (*services.AuthResult, error) {
	if m.GoogleLoginSuccessFunc == nil {
		return nil, services.ErrNoSessionFound
	}
	return m.GoogleLoginSuccessFunc(ctx, sessionToken)
}
