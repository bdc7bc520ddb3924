package documents

import (
	"context"

	"github.com/google/uuid"
)

type DocRepository interface {
	Create(ctx context.Context, d *PatientHistoryDoc) error
	GetByID(ctx context.Context, id uuid.UUID) (*PatientHistoryDoc, error)
	// Update persists document_type, document_processed and
	// processing_remarks.
	Update(ctx context.Context, d *PatientHistoryDoc) error
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*PatientHistoryDoc, error)
	// ListUnprocessed returns the patient's pending documents oldest first.
	ListUnprocessed(ctx context.Context, patientID uuid.UUID) ([]*PatientHistoryDoc, error)
	CountByPatient(ctx context.Context, patientID uuid.UUID) (total, processed int, err error)
}
