package billing

import (
	"context"

	"github.com/google/uuid"
)

type AppointmentChargeRepository interface {
	Create(ctx context.Context, c *AppointmentCharge) error
	ActiveByStaff(ctx context.Context, staffID uuid.UUID) (*AppointmentCharge, error)
	DeactivateByStaff(ctx context.Context, staffID uuid.UUID) error
	ListByStaff(ctx context.Context, staffID uuid.UUID) ([]*AppointmentCharge, error)
}

type LabTestChargeRepository interface {
	Create(ctx context.Context, c *LabTestCharge) error
	ActiveByTestType(ctx context.Context, testTypeID int64) (*LabTestCharge, error)
	DeactivateByTestType(ctx context.Context, testTypeID int64) error
}

type TransactionRepository interface {
	Create(ctx context.Context, t *Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*Transaction, error)
	GetByReference(ctx context.Context, reference string) (*Transaction, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Transaction, int, error)
}

type InvoiceRepository interface {
	// Create persists the invoice and its line items.
	Create(ctx context.Context, inv *Invoice) error
	GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Invoice, int, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
}
