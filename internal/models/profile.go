package models

import (
	"time"
)

type Patient struct {
	ID            string    `json:"id"`
	UserID        string    `json:"userId"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	ProfilePhoto  *string   `json:"profilePhoto"`
	ContactNumber *string   `json:"contactNumber"`
	Address       *string   `json:"address"`
	IsDeleted     bool      `json:"isDeleted"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`

	Appointments   []Appointment      `json:"appointments,omitempty"`
	Reviews        []Review           `json:"reviews,omitempty"`
	Prescriptions  []Prescription     `json:"prescriptions,omitempty"`
	MedicalReports []MedicalReport    `json:"medicalReports,omitempty"`
	HealthData     *PatientHealthData `json:"patientHealthData,omitempty"`
}

type Doctor struct {
	ID                 string    `json:"id"`
	UserID             string    `json:"userId"`
	Name               string    `json:"name"`
	Email              string    `json:"email"`
	ProfilePhoto       *string   `json:"profilePhoto"`
	ContactNumber      *string   `json:"contactNumber"`
	RegistrationNumber string    `json:"registrationNumber"`
	Experience         int       `json:"experience"`
	AppointmentFee     int64     `json:"appointmentFee"`
	Qualification      string    `json:"qualification"`
	Designation        string    `json:"designation"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`

	Specialties   []Specialty    `json:"specialties,omitempty"`
	Appointments  []Appointment  `json:"appointments,omitempty"`
	Reviews       []Review       `json:"reviews,omitempty"`
	Prescriptions []Prescription `json:"prescriptions,omitempty"`
}

type Admin struct {
	ID            string    `json:"id"`
	UserID        string    `json:"userId"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	ProfilePhoto  *string   `json:"profilePhoto"`
	ContactNumber *string   `json:"contactNumber"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type Specialty struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description *string `json:"description"`
	Icon        *string `json:"icon"`
}

type Appointment struct {
	ID            string    `json:"id"`
	PatientID     string    `json:"patientId"`
	DoctorID      string    `json:"doctorId"`
	ScheduledAt   time.Time `json:"scheduledAt"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"paymentStatus"`
	CreatedAt     time.Time `json:"createdAt"`
}

type Review struct {
	ID            string    `json:"id"`
	PatientID     string    `json:"patientId"`
	DoctorID      string    `json:"doctorId"`
	AppointmentID string    `json:"appointmentId"`
	Rating        float64   `json:"rating"`
	Comment       *string   `json:"comment"`
	CreatedAt     time.Time `json:"createdAt"`
}

type Prescription struct {
	ID            string     `json:"id"`
	AppointmentID string     `json:"appointmentId"`
	PatientID     string     `json:"patientId"`
	DoctorID      string     `json:"doctorId"`
	Instructions  string     `json:"instructions"`
	FollowUpDate  *time.Time `json:"followUpDate"`
	CreatedAt     time.Time  `json:"createdAt"`
}

type MedicalReport struct {
	ID         string    `json:"id"`
	PatientID  string    `json:"patientId"`
	ReportName string    `json:"reportName"`
	ReportLink string    `json:"reportLink"`
	CreatedAt  time.Time `json:"createdAt"`
}

type PatientHealthData struct {
	ID                  string     `json:"id"`
	PatientID           string     `json:"patientId"`
	Gender              *string    `json:"gender"`
	DateOfBirth         *time.Time `json:"dateOfBirth"`
	BloodGroup          *string    `json:"bloodGroup"`
	HasAllergies        bool       `json:"hasAllergies"`
	HasDiabetes         bool       `json:"hasDiabetes"`
	Height              *string    `json:"height"`
	Weight              *string    `json:"weight"`
	SmokingStatus       bool       `json:"smokingStatus"`
	PregnancyStatus     bool       `json:"pregnancyStatus"`
	MentalHealthHistory *string    `json:"mentalHealthHistory"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

// Profile is the full "current user" view: the user plus whichever
// role-specific record exists for them.
type Profile struct {
	*User
	Patient *Patient `json:"patient"`
	Doctor  *Doctor  `json:"doctor"`
	Admin   *Admin   `json:"admin"`
}
