package repositories

import (
	"testing"
	"time"

	"github.com/BradenHooton/carelink/internal/models"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func strPtr(s string) *string { return &s }

func sampleUser() *models.User {
	return &models.User{
		ID:            "u-1234",
		Name:          "A",
		Email:         "a@x.com",
		PasswordHash:  "hash-abc",
		Role:          models.RolePatient,
		Status:        models.UserStatusActive,
		EmailVerified: true,
		CreatedAt:     fixedNow,
		UpdatedAt:     fixedNow,
	}
}

func userColumnNames() []string {
	return []string{
		"id", "name", "email", "password_hash", "image", "role", "status", "email_verified",
		"need_password_change", "is_deleted", "deleted_at", "created_at", "updated_at",
	}
}

func userValues(u *models.User) []any {
	var hash *string
	if u.PasswordHash != "" {
		hash = strPtr(u.PasswordHash)
	}
	return []any{
		u.ID, u.Name, u.Email, hash, u.Image, u.Role, u.Status, u.EmailVerified,
		u.NeedPasswordChange, u.IsDeleted, u.DeletedAt, u.CreatedAt, u.UpdatedAt,
	}
}

func userRow(u *models.User) *pgxmock.Rows {
	return pgxmock.NewRows(userColumnNames()).AddRow(userValues(u)...)
}
