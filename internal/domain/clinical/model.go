package clinical

import (
	"time"

	"github.com/google/uuid"
)

// Diagnosis is recorded by the attending doctor against an appointment.
// Creating one is the side effect that flips the appointment to completed.
type Diagnosis struct {
	ID               uuid.UUID `db:"id" json:"id"`
	AppointmentID    uuid.UUID `db:"appointment_id" json:"appointment_id"`
	StaffID          uuid.UUID `db:"staff_id" json:"staff_id"`
	Summary          string    `db:"summary" json:"summary"`
	Details          *string   `db:"details" json:"details,omitempty"`
	LabTestRequired  bool      `db:"lab_test_required" json:"lab_test_required"`
	FollowUpRequired bool      `db:"follow_up_required" json:"follow_up_required"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

// Prescription is one prescribed medicine under a diagnosis.
type Prescription struct {
	ID           uuid.UUID `db:"id" json:"id"`
	DiagnosisID  uuid.UUID `db:"diagnosis_id" json:"diagnosis_id"`
	MedicineName string    `db:"medicine_name" json:"medicine_name"`
	Dosage       string    `db:"dosage" json:"dosage"`
	Frequency    string    `db:"frequency" json:"frequency"`
	DurationDays int       `db:"duration_days" json:"duration_days"`
	Notes        *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// TargetOrgan is reference data for classifying medicines.
type TargetOrgan struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// Medicine is reference data offered to prescribers.
type Medicine struct {
	ID            int64  `db:"id" json:"id"`
	Name          string `db:"name" json:"name"`
	TargetOrganID *int64 `db:"target_organ_id" json:"target_organ_id,omitempty"`
}
