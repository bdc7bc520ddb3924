package history

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists per-patient history records.
type Repository interface {
	Create(ctx context.Context, h *PatientHistory) error
	GetByPatient(ctx context.Context, patientID uuid.UUID) (*PatientHistory, error)
	Update(ctx context.Context, h *PatientHistory) error
}
