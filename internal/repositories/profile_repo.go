package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/BradenHooton/carelink/internal/database"
	"github.com/BradenHooton/carelink/internal/models"
	"github.com/jackc/pgx/v5"
)

// ProfileRepository reads role profiles together with their associations.
type ProfileRepository struct {
	q database.Querier
}

func NewProfileRepository(q database.Querier) *ProfileRepository {
	return &ProfileRepository{q: q}
}

// GetPatient returns the patient profile of userID with appointments,
// reviews, prescriptions, medical reports and health data.
func (r *ProfileRepository) GetPatient(ctx context.Context, userID string) (*models.Patient, error) {
	query := `SELECT ` + patientColumns + ` FROM patients WHERE user_id = $1`
	p, err := scanPatient(r.q.QueryRow(ctx, query, userID))
	if err != nil {
		return nil, err
	}

	if p.Appointments, err = r.appointments(ctx, "patient_id", p.ID); err != nil {
		return nil, err
	}
	if p.Reviews, err = r.reviews(ctx, "patient_id", p.ID); err != nil {
		return nil, err
	}
	if p.Prescriptions, err = r.prescriptions(ctx, "patient_id", p.ID); err != nil {
		return nil, err
	}
	if p.MedicalReports, err = r.medicalReports(ctx, p.ID); err != nil {
		return nil, err
	}
	if p.HealthData, err = r.healthData(ctx, p.ID); err != nil {
		return nil, err
	}
	return p, nil
}

// GetDoctor returns the doctor profile of userID with specialties,
// appointments, reviews and prescriptions.
func (r *ProfileRepository) GetDoctor(ctx context.Context, userID string) (*models.Doctor, error) {
	query := `
		SELECT id, user_id, name, email, profile_photo, contact_number, registration_number,
			experience, appointment_fee, qualification, designation, created_at, updated_at
		FROM doctors WHERE user_id = $1
	`
	var d models.Doctor
	err := r.q.QueryRow(ctx, query, userID).Scan(
		&d.ID, &d.UserID, &d.Name, &d.Email, &d.ProfilePhoto, &d.ContactNumber, &d.RegistrationNumber,
		&d.Experience, &d.AppointmentFee, &d.Qualification, &d.Designation, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	if d.Specialties, err = r.specialties(ctx, d.ID); err != nil {
		return nil, err
	}
	if d.Appointments, err = r.appointments(ctx, "doctor_id", d.ID); err != nil {
		return nil, err
	}
	if d.Reviews, err = r.reviews(ctx, "doctor_id", d.ID); err != nil {
		return nil, err
	}
	if d.Prescriptions, err = r.prescriptions(ctx, "doctor_id", d.ID); err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *ProfileRepository) GetAdmin(ctx context.Context, userID string) (*models.Admin, error) {
	query := `
		SELECT id, user_id, name, email, profile_photo, contact_number, created_at, updated_at
		FROM admins WHERE user_id = $1
	`
	var a models.Admin
	err := r.q.QueryRow(ctx, query, userID).Scan(
		&a.ID, &a.UserID, &a.Name, &a.Email, &a.ProfilePhoto, &a.ContactNumber, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &a, nil
}

// owner is "patient_id" or "doctor_id"; it is never caller input.
func (r *ProfileRepository) appointments(ctx context.Context, owner, id string) ([]models.Appointment, error) {
	query := fmt.Sprintf(`
		SELECT id, patient_id, doctor_id, scheduled_at, status, payment_status, created_at
		FROM appointments WHERE %s = $1 ORDER BY scheduled_at DESC`, owner)

	return queryList(ctx, r.q, "appointments", query, id, func(row pgx.CollectableRow) (models.Appointment, error) {
		var a models.Appointment
		err := row.Scan(&a.ID, &a.PatientID, &a.DoctorID, &a.ScheduledAt, &a.Status, &a.PaymentStatus, &a.CreatedAt)
		return a, err
	})
}

func (r *ProfileRepository) reviews(ctx context.Context, owner, id string) ([]models.Review, error) {
	query := fmt.Sprintf(`
		SELECT id, patient_id, doctor_id, appointment_id, rating, comment, created_at
		FROM reviews WHERE %s = $1 ORDER BY created_at DESC`, owner)

	return queryList(ctx, r.q, "reviews", query, id, func(row pgx.CollectableRow) (models.Review, error) {
		var rv models.Review
		err := row.Scan(&rv.ID, &rv.PatientID, &rv.DoctorID, &rv.AppointmentID, &rv.Rating, &rv.Comment, &rv.CreatedAt)
		return rv, err
	})
}

func (r *ProfileRepository) prescriptions(ctx context.Context, owner, id string) ([]models.Prescription, error) {
	query := fmt.Sprintf(`
		SELECT id, appointment_id, patient_id, doctor_id, instructions, follow_up_date, created_at
		FROM prescriptions WHERE %s = $1 ORDER BY created_at DESC`, owner)

	return queryList(ctx, r.q, "prescriptions", query, id, func(row pgx.CollectableRow) (models.Prescription, error) {
		var p models.Prescription
		err := row.Scan(&p.ID, &p.AppointmentID, &p.PatientID, &p.DoctorID, &p.Instructions, &p.FollowUpDate, &p.CreatedAt)
		return p, err
	})
}

func (r *ProfileRepository) medicalReports(ctx context.Context, patientID string) ([]models.MedicalReport, error) {
	query := `
		SELECT id, patient_id, report_name, report_link, created_at
		FROM medical_reports WHERE patient_id = $1 ORDER BY created_at DESC`

	return queryList(ctx, r.q, "medical reports", query, patientID, func(row pgx.CollectableRow) (models.MedicalReport, error) {
		var m models.MedicalReport
		err := row.Scan(&m.ID, &m.PatientID, &m.ReportName, &m.ReportLink, &m.CreatedAt)
		return m, err
	})
}

func (r *ProfileRepository) specialties(ctx context.Context, doctorID string) ([]models.Specialty, error) {
	query := `
		SELECT sp.id, sp.title, sp.description, sp.icon
		FROM specialties sp
		JOIN doctor_specialties ds ON ds.specialty_id = sp.id
		WHERE ds.doctor_id = $1 ORDER BY sp.title`

	return queryList(ctx, r.q, "specialties", query, doctorID, func(row pgx.CollectableRow) (models.Specialty, error) {
		var s models.Specialty
		err := row.Scan(&s.ID, &s.Title, &s.Description, &s.Icon)
		return s, err
	})
}

func (r *ProfileRepository) healthData(ctx context.Context, patientID string) (*models.PatientHealthData, error) {
	query := `
		SELECT id, patient_id, gender, date_of_birth, blood_group, has_allergies, has_diabetes,
			height, weight, smoking_status, pregnancy_status, mental_health_history, updated_at
		FROM patient_health_data WHERE patient_id = $1
	`
	var h models.PatientHealthData
	err := r.q.QueryRow(ctx, query, patientID).Scan(
		&h.ID, &h.PatientID, &h.Gender, &h.DateOfBirth, &h.BloodGroup, &h.HasAllergies, &h.HasDiabetes,
		&h.Height, &h.Weight, &h.SmokingStatus, &h.PregnancyStatus, &h.MentalHealthHistory, &h.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &h, nil
}

func queryList[T any](ctx context.Context, q database.Querier, what, query, id string, scan pgx.RowToFunc[T]) ([]T, error) {
	rows, err := q.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", what, err)
	}
	items, err := pgx.CollectRows(rows, scan)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", what, err)
	}
	return items, nil
}
