package history

import (
	"time"

	"github.com/google/uuid"
)

// Categories is the fixed set of history categories tracked per patient.
var Categories = []string{
	"diseases", "surgeries", "medications", "chronic_conditions", "family_history",
}

// Note is one timestamped entry in a patient's note log.
type Note struct {
	Note         string    `json:"note"`
	ExtractedAt  time.Time `json:"extracted_at"`
	DocumentType string    `json:"document_type"`
}

// PatientHistory maps to the patient_histories table. One row per patient,
// created lazily on first processed document. The history and allergies
// fields behave as sets; notes is an append-only log.
type PatientHistory struct {
	ID        uuid.UUID           `db:"id" json:"id"`
	PatientID uuid.UUID           `db:"patient_id" json:"patient_id"`
	History   map[string][]string `db:"history" json:"history"`
	Allergies []string            `db:"allergies" json:"allergies"`
	Notes     []Note              `db:"notes" json:"notes"`
	CreatedAt time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt time.Time           `db:"updated_at" json:"updated_at"`
}

// NewPatientHistory returns an empty history record for a patient.
func NewPatientHistory(patientID uuid.UUID) *PatientHistory {
	h := make(map[string][]string, len(Categories))
	for _, c := range Categories {
		h[c] = []string{}
	}
	return &PatientHistory{
		PatientID: patientID,
		History:   h,
		Allergies: []string{},
		Notes:     []Note{},
	}
}
