package repositories

import (
	"context"
	"strings"
	"time"

	"github.com/BradenHooton/carelink/internal/database"
	"github.com/BradenHooton/carelink/internal/models"
	"github.com/google/uuid"
)

const userColumns = `id, name, email, password_hash, image, role, status, email_verified,
	need_password_change, is_deleted, deleted_at, created_at, updated_at`

type UserRepository struct {
	q   database.Querier
	now func() time.Time
}

func NewUserRepository(q database.Querier) *UserRepository {
	return &UserRepository{q: q, now: time.Now}
}

// rowScanner interface for scanning user rows (supports both single row and multiple rows)
type rowScanner interface {
	Scan(dest ...any) error
}

// scanUserRow handles nullable fields and populates a User model from a database row
func scanUserRow(scanner rowScanner) (*models.User, error) {
	var user models.User
	var passwordHash *string

	err := scanner.Scan(
		&user.ID, &user.Name, &user.Email, &passwordHash, &user.Image,
		&user.Role, &user.Status, &user.EmailVerified,
		&user.NeedPasswordChange, &user.IsDeleted, &user.DeletedAt,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	if passwordHash != nil {
		user.PasswordHash = *passwordHash
	}
	return &user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUserRow(r.q.QueryRow(ctx, query, id))
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUserRow(r.q.QueryRow(ctx, query, normalizeEmail(email)))
}

// Create inserts user, filling in id, timestamps and default role/status.
func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	user.ID = uuid.New().String()
	user.Email = normalizeEmail(user.Email)

	now := r.now()
	user.CreatedAt = now
	user.UpdatedAt = now

	if user.Role == "" {
		user.Role = models.RolePatient
	}
	if user.Status == "" {
		user.Status = models.UserStatusActive
	}

	var passwordHash *string
	if user.PasswordHash != "" {
		passwordHash = &user.PasswordHash
	}

	query := `
		INSERT INTO users (id, name, email, password_hash, image, role, status, email_verified,
			need_password_change, is_deleted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, FALSE, $10, $11)
		RETURNING ` + userColumns

	return scanUserRow(r.q.QueryRow(ctx, query,
		user.ID, user.Name, user.Email, passwordHash, user.Image,
		user.Role, user.Status, user.EmailVerified, user.NeedPasswordChange,
		user.CreatedAt, user.UpdatedAt,
	))
}

// UpdatePassword stores a new hash and clears the forced-change flag.
func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	query := `
		UPDATE users SET password_hash = $1, need_password_change = FALSE, updated_at = $2
		WHERE id = $3
	`
	return r.execOne(ctx, query, passwordHash, r.now(), id)
}

func (r *UserRepository) MarkEmailVerified(ctx context.Context, id string) error {
	query := `UPDATE users SET email_verified = TRUE, updated_at = $1 WHERE id = $2`
	return r.execOne(ctx, query, r.now(), id)
}

// UpdateStatus sets status. DELETED also soft-deletes the row.
func (r *UserRepository) UpdateStatus(ctx context.Context, id string, status models.UserStatus) (*models.User, error) {
	now := r.now()

	var deletedAt *time.Time
	isDeleted := status == models.UserStatusDeleted
	if isDeleted {
		deletedAt = &now
	}

	query := `
		UPDATE users SET status = $1, is_deleted = $2, deleted_at = $3, updated_at = $4
		WHERE id = $5
		RETURNING ` + userColumns

	return scanUserRow(r.q.QueryRow(ctx, query, status, isDeleted, deletedAt, now, id))
}

// UpdateImage sets the avatar when none is stored yet.
func (r *UserRepository) UpdateImage(ctx context.Context, id, image string) error {
	query := `UPDATE users SET image = $1, updated_at = $2 WHERE id = $3 AND image IS NULL`
	_, err := r.q.Exec(ctx, query, image, r.now(), id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	return nil
}

// Delete removes the row for good. Only used to undo a half-finished registration.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	return r.execOne(ctx, `DELETE FROM users WHERE id = $1`, id)
}

func (r *UserRepository) execOne(ctx context.Context, query string, args ...any) error {
	result, err := r.q.Exec(ctx, query, args...)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
