package appointments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/medicore/hms/internal/domain/billing"
	"github.com/medicore/hms/internal/domain/identity"
	"github.com/medicore/hms/internal/domain/scheduling"
	"github.com/medicore/hms/internal/platform/db"
)

var (
	ErrSlotTaken          = errors.New("slot already booked")
	ErrNotUpcoming        = errors.New("only upcoming appointments can be rescheduled")
	ErrAlreadyRated       = errors.New("this appointment has already been rated")
	ErrNotYourAppointment = errors.New("patients may only act on their own appointments")
)

// SlotDirectory is the slice of the scheduling repository the booking
// engine needs.
type SlotDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*scheduling.Slot, error)
}

// StaffDirectory resolves staff ids; identity.StaffRepository satisfies it.
type StaffDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*identity.Staff, error)
}

// BookingResult carries the outcome of a paid booking. InvoiceError is set
// when the booking and payment committed but invoice generation failed;
// the booking stands regardless.
type BookingResult struct {
	Appointment  *Appointment         `json:"appointment"`
	Transaction  *billing.Transaction `json:"transaction,omitempty"`
	Invoice      *billing.Invoice     `json:"invoice,omitempty"`
	InvoiceError string               `json:"invoice_error,omitempty"`
}

type Service struct {
	appointments AppointmentRepository
	vitals       VitalsRepository
	ratings      RatingRepository
	slots        SlotDirectory
	staff        StaffDirectory
	billing      *billing.Service
	pool         *pgxpool.Pool
	logger       zerolog.Logger
	now          func() time.Time
}

func NewService(
	appointments AppointmentRepository,
	vitals VitalsRepository,
	ratings RatingRepository,
	slots SlotDirectory,
	staff StaffDirectory,
	billingSvc *billing.Service,
	pool *pgxpool.Pool,
	logger zerolog.Logger,
) *Service {
	return &Service{
		appointments: appointments,
		vitals:       vitals,
		ratings:      ratings,
		slots:        slots,
		staff:        staff,
		billing:      billingSvc,
		pool:         pool,
		logger:       logger.With().Str("component", "appointments").Logger(),
		now:          time.Now,
	}
}

// BookingRequest is the validated input to Book and BookWithPayment.
type BookingRequest struct {
	PatientID uuid.UUID
	StaffID   uuid.UUID
	SlotID    uuid.UUID
	Date      time.Time
	Reason    string
	// TransactionReference, when set, makes this a paid booking.
	TransactionReference string
}

func (s *Service) validateBooking(ctx context.Context, req *BookingRequest) error {
	if req.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if req.StaffID == uuid.Nil {
		return fmt.Errorf("staff_id is required")
	}
	if req.SlotID == uuid.Nil {
		return fmt.Errorf("slot_id is required")
	}
	if req.Date.IsZero() {
		return fmt.Errorf("date is required")
	}
	if _, err := s.staff.GetByID(ctx, req.StaffID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("staff member %s not found", req.StaffID)
		}
		return err
	}
	if _, err := s.slots.GetByID(ctx, req.SlotID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("slot %s not found", req.SlotID)
		}
		return err
	}
	return nil
}

// Book creates an upcoming appointment. A second booking for the same
// (staff, slot, date) triple is rejected with a conflict; the unique
// constraint on appointments makes that hold under concurrent attempts.
func (s *Service) Book(ctx context.Context, req *BookingRequest) (*Appointment, error) {
	if err := s.validateBooking(ctx, req); err != nil {
		return nil, err
	}
	a := &Appointment{
		PatientID:       req.PatientID,
		StaffID:         req.StaffID,
		SlotID:          req.SlotID,
		AppointmentDate: req.Date,
		Status:          StatusUpcoming,
		Reason:          req.Reason,
	}
	if err := s.appointments.Create(ctx, a); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrSlotTaken
		}
		return nil, err
	}
	return a, nil
}

// BookWithPayment books the appointment and records the consultation
// payment atomically, then generates the invoice best-effort. A failed
// invoice never rolls back the committed booking and payment; it is
// reported as InvoiceError beside the successful result.
func (s *Service) BookWithPayment(ctx context.Context, req *BookingRequest) (*BookingResult, error) {
	if err := s.validateBooking(ctx, req); err != nil {
		return nil, err
	}
	if req.TransactionReference == "" {
		return nil, fmt.Errorf("transaction_reference is required for a paid booking")
	}

	charge, err := s.billing.ActiveAppointmentCharge(ctx, req.StaffID)
	if err != nil {
		return nil, err
	}

	result := &BookingResult{}
	err = s.withTx(ctx, func(ctx context.Context) error {
		a := &Appointment{
			PatientID:       req.PatientID,
			StaffID:         req.StaffID,
			SlotID:          req.SlotID,
			AppointmentDate: req.Date,
			Status:          StatusUpcoming,
			Reason:          req.Reason,
		}
		if err := s.appointments.Create(ctx, a); err != nil {
			if db.IsUniqueViolation(err) {
				return ErrSlotTaken
			}
			return err
		}

		t, err := s.billing.RecordPayment(ctx, req.TransactionReference, req.PatientID,
			charge.Amount, charge.Currency, "consultation fee")
		if err != nil {
			return err
		}

		a.TransactionID = &t.ID
		if err := s.appointments.Update(ctx, a); err != nil {
			return err
		}
		result.Appointment = a
		result.Transaction = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	inv, err := s.billing.GenerateInvoice(ctx, req.PatientID, result.Transaction.ID, []billing.InvoiceLine{
		{Description: "Consultation fee", Amount: charge.Amount, Currency: charge.Currency},
	})
	if err != nil {
		s.logger.Error().Err(err).Stringer("appointment_id", result.Appointment.ID).
			Msg("invoice generation failed after successful booking")
		result.InvoiceError = err.Error()
		return result, nil
	}
	result.Invoice = inv
	return result, nil
}

// Reschedule moves an upcoming appointment to a new slot and date. The
// appointment keeps its id; this is a mutation, not a cancel and rebook.
func (s *Service) Reschedule(ctx context.Context, id, newSlotID uuid.UUID, newDate time.Time) (*Appointment, error) {
	if err := s.transitionMissed(ctx); err != nil {
		return nil, err
	}
	a, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("appointment %s not found", id)
		}
		return nil, err
	}
	if a.Status != StatusUpcoming {
		return nil, ErrNotUpcoming
	}
	if _, err := s.slots.GetByID(ctx, newSlotID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("slot %s not found", newSlotID)
		}
		return nil, err
	}

	a.SlotID = newSlotID
	a.AppointmentDate = newDate
	if err := s.appointments.Update(ctx, a); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrSlotTaken
		}
		return nil, err
	}
	return a, nil
}

// Get returns the appointment after applying the lazy missed transition.
// Status is accurate as of this read, not continuously.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	if err := s.transitionMissed(ctx); err != nil {
		return nil, err
	}
	a, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("appointment %s not found", id)
		}
		return nil, err
	}
	return a, nil
}

func (s *Service) ListForPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	if err := s.transitionMissed(ctx); err != nil {
		return nil, 0, err
	}
	return s.appointments.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) ListForStaff(ctx context.Context, staffID uuid.UUID, date time.Time, limit, offset int) ([]*Appointment, int, error) {
	if err := s.transitionMissed(ctx); err != nil {
		return nil, 0, err
	}
	return s.appointments.ListByStaff(ctx, staffID, date, limit, offset)
}

// transitionMissed runs the lazy upcoming -> missed sweep up to today.
// Every read path calls it first, so status is current as of the last read.
func (s *Service) transitionMissed(ctx context.Context) error {
	today := s.now().Truncate(24 * time.Hour)
	_, err := s.appointments.MarkMissed(ctx, today)
	return err
}

// -- Vitals --

func (s *Service) RecordVitals(ctx context.Context, v *PatientVitals) error {
	a, err := s.Get(ctx, v.AppointmentID)
	if err != nil {
		return err
	}
	v.PatientID = a.PatientID
	return s.vitals.Create(ctx, v)
}

func (s *Service) VitalsForAppointment(ctx context.Context, appointmentID uuid.UUID) ([]*PatientVitals, error) {
	return s.vitals.ListByAppointment(ctx, appointmentID)
}

func (s *Service) LatestVitals(ctx context.Context, patientID uuid.UUID) (*PatientVitals, error) {
	v, err := s.vitals.LatestByPatient(ctx, patientID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("no vitals recorded for this patient")
		}
		return nil, err
	}
	return v, nil
}

// -- Ratings --

// Rate records the patient's rating for their own appointment.
func (s *Service) Rate(ctx context.Context, patientID, appointmentID uuid.UUID, rating int, comments *string) (*AppointmentRating, error) {
	if rating < 1 || rating > 5 {
		return nil, fmt.Errorf("rating must be between 1 and 5")
	}
	a, err := s.Get(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if a.PatientID != patientID {
		return nil, ErrNotYourAppointment
	}

	r := &AppointmentRating{
		AppointmentID: appointmentID,
		PatientID:     patientID,
		Rating:        rating,
		Comments:      comments,
	}
	if err := s.ratings.Create(ctx, r); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrAlreadyRated
		}
		return nil, err
	}
	return r, nil
}

func (s *Service) StaffRating(ctx context.Context, staffID uuid.UUID) (float64, int, error) {
	return s.ratings.AverageByStaff(ctx, staffID)
}

func (s *Service) withTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.pool == nil {
		return fn(ctx)
	}
	return db.WithTx(ctx, s.pool, fn)
}
