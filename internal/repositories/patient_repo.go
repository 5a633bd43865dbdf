package repositories

import (
	"context"
	"time"

	"github.com/BradenHooton/carelink/internal/database"
	"github.com/BradenHooton/carelink/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const patientColumns = `id, user_id, name, email, profile_photo, contact_number, address, is_deleted, created_at, updated_at`

type PatientRepository struct {
	q   database.Querier
	now func() time.Time
}

func NewPatientRepository(q database.Querier) *PatientRepository {
	return &PatientRepository{q: q, now: time.Now}
}

// WithTx returns a repository bound to tx.
func (r *PatientRepository) WithTx(tx pgx.Tx) *PatientRepository {
	return &PatientRepository{q: tx, now: r.now}
}

func scanPatient(scanner rowScanner) (*models.Patient, error) {
	var p models.Patient
	err := scanner.Scan(
		&p.ID, &p.UserID, &p.Name, &p.Email, &p.ProfilePhoto, &p.ContactNumber,
		&p.Address, &p.IsDeleted, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &p, nil
}

// Create inserts the patient profile for a user.
func (r *PatientRepository) Create(ctx context.Context, p *models.Patient) (*models.Patient, error) {
	now := r.now()
	query := `
		INSERT INTO patients (id, user_id, name, email, profile_photo, contact_number, address, is_deleted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE, $8, $8)
		RETURNING ` + patientColumns

	return scanPatient(r.q.QueryRow(ctx, query,
		uuid.New().String(), p.UserID, p.Name, normalizeEmail(p.Email),
		p.ProfilePhoto, p.ContactNumber, p.Address, now,
	))
}

func (r *PatientRepository) GetByUserID(ctx context.Context, userID string) (*models.Patient, error) {
	query := `SELECT ` + patientColumns + ` FROM patients WHERE user_id = $1`
	return scanPatient(r.q.QueryRow(ctx, query, userID))
}

// CreateTx inserts the patient profile inside tx.
func (r *PatientRepository) CreateTx(ctx context.Context, tx pgx.Tx, p *models.Patient) (*models.Patient, error) {
	return r.WithTx(tx).Create(ctx, p)
}
