package repositories

import (
	"context"
	"time"

	"github.com/BradenHooton/carelink/internal/database"
	"github.com/BradenHooton/carelink/internal/models"
	"github.com/google/uuid"
)

// OAuthAccountRepository links external provider subjects to users.
type OAuthAccountRepository struct {
	q   database.Querier
	now func() time.Time
}

func NewOAuthAccountRepository(q database.Querier) *OAuthAccountRepository {
	return &OAuthAccountRepository{q: q, now: time.Now}
}

// FindUserID returns the user linked to provider/subject, or models.ErrNotFound.
func (r *OAuthAccountRepository) FindUserID(ctx context.Context, provider, subject string) (string, error) {
	query := `SELECT user_id FROM oauth_accounts WHERE provider = $1 AND provider_account_id = $2`

	var userID string
	if err := r.q.QueryRow(ctx, query, provider, subject).Scan(&userID); err != nil {
		return "", database.MapPostgresError(err)
	}
	return userID, nil
}

// Link records that provider/subject belongs to userID. Re-linking the same pair is a no-op.
func (r *OAuthAccountRepository) Link(ctx context.Context, userID, provider, subject string) (*models.OAuthAccount, error) {
	account := &models.OAuthAccount{
		ID:                uuid.New().String(),
		UserID:            userID,
		Provider:          provider,
		ProviderAccountID: subject,
		CreatedAt:         r.now(),
	}

	query := `
		INSERT INTO oauth_accounts (id, user_id, provider, provider_account_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (provider, provider_account_id) DO NOTHING
	`
	_, err := r.q.Exec(ctx, query, account.ID, account.UserID, account.Provider, account.ProviderAccountID, account.CreatedAt)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return account, nil
}
