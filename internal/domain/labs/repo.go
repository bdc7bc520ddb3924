package labs

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type LabTypeRepository interface {
	Create(ctx context.Context, t *LabType) error
	GetByID(ctx context.Context, id int64) (*LabType, error)
	// List returns all lab types ordered by id.
	List(ctx context.Context) ([]*LabType, error)
}

type LabRepository interface {
	Create(ctx context.Context, l *Lab) error
	GetByID(ctx context.Context, id int64) (*Lab, error)
	// ListFunctionalByType returns functional labs of the type ordered by id.
	ListFunctionalByType(ctx context.Context, labTypeID int64) ([]*Lab, error)
	List(ctx context.Context) ([]*Lab, error)
	SetFunctional(ctx context.Context, id int64, functional bool) error
}

type LabTestTypeRepository interface {
	Create(ctx context.Context, t *LabTestType) error
	GetByID(ctx context.Context, id int64) (*LabTestType, error)
	List(ctx context.Context) ([]*LabTestType, error)
}

type LabTestRepository interface {
	Create(ctx context.Context, t *LabTest) error
	GetByID(ctx context.Context, id int64) (*LabTest, error)
	Update(ctx context.Context, t *LabTest) error
	ListByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]*LabTest, error)
	// ListByPatient resolves tests through the owning appointments,
	// newest first.
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*LabTest, error)
	ListByLab(ctx context.Context, labID int64, limit, offset int) ([]*LabTest, int, error)
	// CountInWindow counts tests assigned to the lab with a scheduled
	// datetime inside [from, to].
	CountInWindow(ctx context.Context, labID int64, from, to time.Time) (int, error)
}
