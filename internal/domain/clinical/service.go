package clinical

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medicore/hms/internal/domain/appointments"
	"github.com/medicore/hms/internal/platform/db"
)

var ErrAppointmentClosed = errors.New("a missed appointment cannot be diagnosed")

// AppointmentStore is the slice of the appointments repository the
// diagnosis flow needs.
type AppointmentStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*appointments.Appointment, error)
	Update(ctx context.Context, a *appointments.Appointment) error
}

type Service struct {
	diagnoses     DiagnosisRepository
	prescriptions PrescriptionRepository
	medicines     MedicineRepository
	organs        TargetOrganRepository
	appointments  AppointmentStore
	pool          *pgxpool.Pool
}

func NewService(
	diagnoses DiagnosisRepository,
	prescriptions PrescriptionRepository,
	medicines MedicineRepository,
	organs TargetOrganRepository,
	appointmentStore AppointmentStore,
	pool *pgxpool.Pool,
) *Service {
	return &Service{
		diagnoses:     diagnoses,
		prescriptions: prescriptions,
		medicines:     medicines,
		organs:        organs,
		appointments:  appointmentStore,
		pool:          pool,
	}
}

// CreateDiagnosis records the diagnosis and flips its appointment to
// completed in the same transaction. An appointment may carry several
// diagnoses; a missed appointment cannot gain one.
func (s *Service) CreateDiagnosis(ctx context.Context, d *Diagnosis) error {
	if strings.TrimSpace(d.Summary) == "" {
		return fmt.Errorf("diagnosis summary is required")
	}
	if d.StaffID == uuid.Nil {
		return fmt.Errorf("staff_id is required")
	}

	a, err := s.appointments.GetByID(ctx, d.AppointmentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("appointment %s not found", d.AppointmentID)
		}
		return err
	}
	if a.Status == appointments.StatusMissed {
		return ErrAppointmentClosed
	}

	return s.withTx(ctx, func(ctx context.Context) error {
		if err := s.diagnoses.Create(ctx, d); err != nil {
			return err
		}
		if a.Status != appointments.StatusCompleted {
			a.Status = appointments.StatusCompleted
			if err := s.appointments.Update(ctx, a); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Service) GetDiagnosis(ctx context.Context, id uuid.UUID) (*Diagnosis, error) {
	d, err := s.diagnoses.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("diagnosis %s not found", id)
		}
		return nil, err
	}
	return d, nil
}

func (s *Service) DiagnosesForAppointment(ctx context.Context, appointmentID uuid.UUID) ([]*Diagnosis, error) {
	return s.diagnoses.ListByAppointment(ctx, appointmentID)
}

// -- Prescriptions --

func (s *Service) Prescribe(ctx context.Context, p *Prescription) error {
	if strings.TrimSpace(p.MedicineName) == "" {
		return fmt.Errorf("medicine_name is required")
	}
	if p.DurationDays < 0 {
		return fmt.Errorf("duration_days cannot be negative")
	}
	if _, err := s.GetDiagnosis(ctx, p.DiagnosisID); err != nil {
		return err
	}
	return s.prescriptions.Create(ctx, p)
}

func (s *Service) PrescriptionsForDiagnosis(ctx context.Context, diagnosisID uuid.UUID) ([]*Prescription, error) {
	return s.prescriptions.ListByDiagnosis(ctx, diagnosisID)
}

// -- Reference data --

func (s *Service) AddMedicine(ctx context.Context, m *Medicine) error {
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("name is required")
	}
	return s.medicines.Create(ctx, m)
}

func (s *Service) ListMedicines(ctx context.Context) ([]*Medicine, error) {
	return s.medicines.List(ctx)
}

func (s *Service) AddTargetOrgan(ctx context.Context, o *TargetOrgan) error {
	if strings.TrimSpace(o.Name) == "" {
		return fmt.Errorf("name is required")
	}
	return s.organs.Create(ctx, o)
}

func (s *Service) ListTargetOrgans(ctx context.Context) ([]*TargetOrgan, error) {
	return s.organs.List(ctx)
}

func (s *Service) withTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.pool == nil {
		return fn(ctx)
	}
	return db.WithTx(ctx, s.pool, fn)
}
