package appointments

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type AppointmentRepository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error)
	ListByStaff(ctx context.Context, staffID uuid.UUID, date time.Time, limit, offset int) ([]*Appointment, int, error)
	// MarkMissed persists upcoming -> missed for every appointment dated
	// before the given day. Safe to repeat; already-missed rows are
	// untouched.
	MarkMissed(ctx context.Context, before time.Time) (int64, error)
}

type VitalsRepository interface {
	Create(ctx context.Context, v *PatientVitals) error
	ListByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]*PatientVitals, error)
	LatestByPatient(ctx context.Context, patientID uuid.UUID) (*PatientVitals, error)
}

type RatingRepository interface {
	Create(ctx context.Context, r *AppointmentRating) error
	GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*AppointmentRating, error)
	AverageByStaff(ctx context.Context, staffID uuid.UUID) (avg float64, count int, err error)
}
