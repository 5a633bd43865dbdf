package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/BradenHooton/carelink/internal/config"
	"github.com/BradenHooton/carelink/internal/models"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	ProviderGoogle = "google"

	googleUserInfoURL  = "https://www.googleapis.com/oauth2/v2/userinfo"
	googleCallbackPath = "/api/v1/auth/google/callback"
)

// OAuthService runs the Google authorization-code flow and turns the
// resulting identity into a local session.
type OAuthService struct {
	config      *oauth2.Config
	userInfoURL string
	identity    *IdentityProvider
	logger      *slog.Logger
}

// NewOAuthService configures Google sign-in with callbacks on baseURL.
func NewOAuthService(cfg config.OAuthConfig, baseURL string, identity *IdentityProvider, logger *slog.Logger) *OAuthService {
	return &OAuthService{
		config: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			Endpoint:     google.Endpoint,
			RedirectURL:  baseURL + googleCallbackPath,
			Scopes:       []string{"email", "profile"},
		},
		userInfoURL: googleUserInfoURL,
		identity:    identity,
		logger:      logger,
	}
}

// WithEndpoint points the flow at another token and userinfo server.
func (s *OAuthService) WithEndpoint(endpoint oauth2.Endpoint, userInfoURL string) *OAuthService {
	c := *s.config
	c.Endpoint = endpoint
	return &OAuthService{config: &c, userInfoURL: userInfoURL, identity: s.identity, logger: s.logger}
}

// AuthCodeURL returns the consent page URL carrying state.
func (s *OAuthService) AuthCodeURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Complete exchanges code, resolves the local user and opens a session for them.
func (s *OAuthService) Complete(ctx context.Context, code string, meta models.ClientMeta) (*models.Session, error) {
	token, err := s.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("token exchange failed: %w", err)
	}

	profile, err := s.fetchProfile(ctx, token)
	if err != nil {
		return nil, err
	}

	user, err := s.identity.SignInOAuth(ctx, *profile)
	if err != nil {
		return nil, err
	}
	if !user.CanAuthenticate() {
		s.logger.Info("oauth login refused for unavailable account", slog.String("user_id", user.ID))
		return nil, ErrAccountUnavailable
	}

	return s.identity.CreateSession(ctx, user.ID, meta)
}

func (s *OAuthService) fetchProfile(ctx context.Context, token *oauth2.Token) (*models.OAuthProfile, error) {
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))

	resp, err := client.Get(s.userInfoURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch Google user: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google API returned status %d", resp.StatusCode)
	}

	var data struct {
		ID            string `json:"id"`
		Email         string `json:"email"`
		VerifiedEmail bool   `json:"verified_email"`
		Name          string `json:"name"`
		Picture       string `json:"picture"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode Google user response: %w", err)
	}
	if data.ID == "" {
		return nil, fmt.Errorf("google user response has no id")
	}

	return &models.OAuthProfile{
		Provider:      ProviderGoogle,
		Subject:       data.ID,
		Email:         data.Email,
		EmailVerified: data.VerifiedEmail,
		Name:          data.Name,
		Picture:       data.Picture,
	}, nil
}
