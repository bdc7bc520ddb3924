package clinical

import (
	"context"

	"github.com/google/uuid"
)

type DiagnosisRepository interface {
	Create(ctx context.Context, d *Diagnosis) error
	GetByID(ctx context.Context, id uuid.UUID) (*Diagnosis, error)
	ListByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]*Diagnosis, error)
	// SetLabTestRequired flips the flag on; it never clears it.
	SetLabTestRequired(ctx context.Context, id uuid.UUID) error
}

type PrescriptionRepository interface {
	Create(ctx context.Context, p *Prescription) error
	ListByDiagnosis(ctx context.Context, diagnosisID uuid.UUID) ([]*Prescription, error)
}

type MedicineRepository interface {
	Create(ctx context.Context, m *Medicine) error
	List(ctx context.Context) ([]*Medicine, error)
}

type TargetOrganRepository interface {
	Create(ctx context.Context, o *TargetOrgan) error
	List(ctx context.Context) ([]*TargetOrgan, error)
}
