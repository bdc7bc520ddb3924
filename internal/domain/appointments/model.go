package appointments

import (
	"time"

	"github.com/google/uuid"
)

// Appointment statuses. An appointment is created upcoming, flips to
// completed when a diagnosis is recorded, and to missed lazily once its
// date has passed without one. completed and missed are terminal.
const (
	StatusUpcoming  = "upcoming"
	StatusCompleted = "completed"
	StatusMissed    = "missed"
)

// Appointment is the booking unit. No two appointments may share a
// (staff, slot, date) triple.
type Appointment struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	PatientID       uuid.UUID  `db:"patient_id" json:"patient_id"`
	StaffID         uuid.UUID  `db:"staff_id" json:"staff_id"`
	SlotID          uuid.UUID  `db:"slot_id" json:"slot_id"`
	AppointmentDate time.Time  `db:"appointment_date" json:"appointment_date"`
	Status          string     `db:"status" json:"status"`
	Reason          string     `db:"reason" json:"reason"`
	TransactionID   *uuid.UUID `db:"transaction_id" json:"transaction_id,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// PatientVitals is one vitals capture taken at an appointment.
type PatientVitals struct {
	ID            uuid.UUID `db:"id" json:"id"`
	AppointmentID uuid.UUID `db:"appointment_id" json:"appointment_id"`
	PatientID     uuid.UUID `db:"patient_id" json:"patient_id"`
	BloodPressure *string   `db:"blood_pressure" json:"blood_pressure,omitempty"`
	PulseRate     *int      `db:"pulse_rate" json:"pulse_rate,omitempty"`
	Temperature   *float64  `db:"temperature" json:"temperature,omitempty"`
	WeightKg      *float64  `db:"weight_kg" json:"weight_kg,omitempty"`
	HeightCm      *float64  `db:"height_cm" json:"height_cm,omitempty"`
	RecordedAt    time.Time `db:"recorded_at" json:"recorded_at"`
}

// AppointmentRating is a patient's rating of their own appointment, one per
// appointment.
type AppointmentRating struct {
	ID            uuid.UUID `db:"id" json:"id"`
	AppointmentID uuid.UUID `db:"appointment_id" json:"appointment_id"`
	PatientID     uuid.UUID `db:"patient_id" json:"patient_id"`
	Rating        int       `db:"rating" json:"rating"`
	Comments      *string   `db:"comments" json:"comments,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}
