package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/BradenHooton/carelink/internal/database"
	"github.com/BradenHooton/carelink/internal/models"
	"github.com/BradenHooton/carelink/pkg/auth"
	"github.com/google/uuid"
)

const sessionColumns = `s.id, s.token, s.user_id, COALESCE(s.ip_address, ''), COALESCE(s.user_agent, ''),
	s.expires_at, s.created_at, s.updated_at`

// SessionRepository persists server-side sessions keyed by an opaque token.
type SessionRepository struct {
	q   database.Querier
	now func() time.Time
}

func NewSessionRepository(q database.Querier) *SessionRepository {
	return &SessionRepository{q: q, now: time.Now}
}

func scanSession(scanner rowScanner, extra ...any) (*models.Session, error) {
	var s models.Session
	dest := append([]any{
		&s.ID, &s.Token, &s.UserID, &s.IPAddress, &s.UserAgent,
		&s.ExpiresAt, &s.CreatedAt, &s.UpdatedAt,
	}, extra...)
	if err := scanner.Scan(dest...); err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &s, nil
}

// Create opens a session for userID that lasts lifetime.
func (r *SessionRepository) Create(ctx context.Context, userID string, meta models.ClientMeta, lifetime time.Duration) (*models.Session, error) {
	if lifetime <= 0 {
		return nil, fmt.Errorf("session lifetime must be positive, got %s", lifetime)
	}

	token, err := auth.GenerateSessionToken()
	if err != nil {
		return nil, err
	}

	now := r.now()
	query := `
		INSERT INTO sessions AS s (id, token, user_id, ip_address, user_agent, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		RETURNING ` + sessionColumns

	return scanSession(r.q.QueryRow(ctx, query,
		uuid.New().String(), token, userID, meta.IPAddress, meta.UserAgent, now.Add(lifetime), now,
	))
}

// FindActiveByToken returns the unexpired session for token joined with its
// owner, or models.ErrNotFound.
func (r *SessionRepository) FindActiveByToken(ctx context.Context, token string) (*models.Session, error) {
	query := `
		SELECT ` + sessionColumns + `,
			u.id, u.name, u.email, u.password_hash, u.image, u.role, u.status, u.email_verified,
			u.need_password_change, u.is_deleted, u.deleted_at, u.created_at, u.updated_at
		FROM sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.token = $1 AND s.expires_at > $2
	`

	var u models.User
	var passwordHash *string
	session, err := scanSession(r.q.QueryRow(ctx, query, token, r.now()),
		&u.ID, &u.Name, &u.Email, &passwordHash, &u.Image, &u.Role, &u.Status, &u.EmailVerified,
		&u.NeedPasswordChange, &u.IsDeleted, &u.DeletedAt, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if passwordHash != nil {
		u.PasswordHash = *passwordHash
	}
	session.User = &u
	return session, nil
}

// Touch moves the expiry of a live session to now+lifetime.
func (r *SessionRepository) Touch(ctx context.Context, token string, lifetime time.Duration) (*models.Session, error) {
	now := r.now()
	query := `
		UPDATE sessions AS s SET expires_at = $1, updated_at = $2
		WHERE s.token = $3 AND s.expires_at > $2
		RETURNING ` + sessionColumns

	return scanSession(r.q.QueryRow(ctx, query, now.Add(lifetime), now, token))
}

// Delete removes the session for token. Deleting a missing session is not an error.
func (r *SessionRepository) Delete(ctx context.Context, token string) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM sessions WHERE token = $1`, token); err != nil {
		return database.MapPostgresError(err)
	}
	return nil
}

// DeleteAllForUser removes every session of userID and returns how many were removed.
func (r *SessionRepository) DeleteAllForUser(ctx context.Context, userID string) (int64, error) {
	result, err := r.q.Exec(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}

// DeleteOthersForUser removes every session of userID except keepToken.
func (r *SessionRepository) DeleteOthersForUser(ctx context.Context, userID, keepToken string) (int64, error) {
	result, err := r.q.Exec(ctx, `DELETE FROM sessions WHERE user_id = $1 AND token <> $2`, userID, keepToken)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}
