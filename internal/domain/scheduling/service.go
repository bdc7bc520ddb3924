package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medicore/hms/internal/domain/identity"
	"github.com/medicore/hms/internal/platform/db"
)

var ErrScheduleExists = errors.New("a schedule already exists for this staff member on this date")

// DefaultSlotMinutes is the slot size used when a shift does not request one.
const DefaultSlotMinutes = 20

// StaffDirectory is the slice of the identity repository the scheduler
// needs; identity.StaffRepository satisfies it.
type StaffDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*identity.Staff, error)
}

type Service struct {
	shifts    ShiftRepository
	slots     SlotRepository
	schedules ScheduleRepository
	bookings  BookingLookup
	staff     StaffDirectory
	pool      *pgxpool.Pool
}

func NewService(
	shifts ShiftRepository,
	slots SlotRepository,
	schedules ScheduleRepository,
	bookings BookingLookup,
	staff StaffDirectory,
	pool *pgxpool.Pool,
) *Service {
	return &Service{
		shifts:    shifts,
		slots:     slots,
		schedules: schedules,
		bookings:  bookings,
		staff:     staff,
		pool:      pool,
	}
}

// -- Shifts --

// CreateShift stores the shift and carves its slot set in one transaction.
func (s *Service) CreateShift(ctx context.Context, shift *Shift, slotMinutes int) error {
	if shift.Name == "" {
		return fmt.Errorf("name is required")
	}
	if slotMinutes <= 0 {
		slotMinutes = DefaultSlotMinutes
	}
	slots, err := GenerateSlots(shift, slotMinutes)
	if err != nil {
		return err
	}
	if len(slots) == 0 {
		return fmt.Errorf("shift window is shorter than one %d-minute slot", slotMinutes)
	}

	return s.withTx(ctx, func(ctx context.Context) error {
		if err := s.shifts.Create(ctx, shift); err != nil {
			return err
		}
		return s.slots.ReplaceForShift(ctx, shift.ID, slots)
	})
}

func (s *Service) GetShift(ctx context.Context, id uuid.UUID) (*Shift, error) {
	shift, err := s.shifts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("shift %s not found", id)
		}
		return nil, err
	}
	return shift, nil
}

func (s *Service) ListShifts(ctx context.Context) ([]*Shift, error) {
	return s.shifts.List(ctx)
}

// UpdateShift saves the new window and regenerates the slot set. Existing
// slots are deleted first; regeneration is destructive, not a merge.
func (s *Service) UpdateShift(ctx context.Context, shift *Shift, slotMinutes int) error {
	if slotMinutes <= 0 {
		slotMinutes = DefaultSlotMinutes
	}
	slots, err := GenerateSlots(shift, slotMinutes)
	if err != nil {
		return err
	}
	return s.withTx(ctx, func(ctx context.Context) error {
		if err := s.shifts.Update(ctx, shift); err != nil {
			return err
		}
		return s.slots.ReplaceForShift(ctx, shift.ID, slots)
	})
}

func (s *Service) SlotsForShift(ctx context.Context, shiftID uuid.UUID) ([]*Slot, error) {
	if _, err := s.GetShift(ctx, shiftID); err != nil {
		return nil, err
	}
	return s.slots.ListByShift(ctx, shiftID)
}

// -- Schedules --

// Assign creates the schedule for (staff, date). The second assignment for
// the same pair is rejected; the schedules table's unique constraint makes
// this hold under concurrent attempts too.
func (s *Service) Assign(ctx context.Context, staffID, shiftID uuid.UUID, date time.Time) (*Schedule, error) {
	if _, err := s.staff.GetByID(ctx, staffID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("staff member %s not found", staffID)
		}
		return nil, err
	}
	if _, err := s.GetShift(ctx, shiftID); err != nil {
		return nil, err
	}

	sched := &Schedule{StaffID: staffID, ShiftID: shiftID, ScheduleDate: date}
	if err := s.schedules.Create(ctx, sched); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrScheduleExists
		}
		return nil, err
	}
	return sched, nil
}

// AvailableSlots returns every slot of the staff member's scheduled shift on
// the date, tagged with whether an appointment already occupies it.
func (s *Service) AvailableSlots(ctx context.Context, staffID uuid.UUID, date time.Time) (*DayAvailability, error) {
	sched, err := s.schedules.GetByStaffAndDate(ctx, staffID, date)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("no schedule for staff %s on %s", staffID, date.Format("2006-01-02"))
		}
		return nil, err
	}

	booked, err := s.bookings.BookedSlots(ctx, []uuid.UUID{staffID}, date, date)
	if err != nil {
		return nil, err
	}
	return s.buildAvailability(ctx, sched, booked)
}

// ScheduleRange returns the staff member's schedules between from and to
// inclusive, each with its slots tagged. One booked-slots query covers the
// whole window.
func (s *Service) ScheduleRange(ctx context.Context, staffID uuid.UUID, from, to time.Time) ([]*DayAvailability, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("date range end precedes start")
	}
	scheds, err := s.schedules.ListByStaffRange(ctx, staffID, from, to)
	if err != nil {
		return nil, err
	}
	booked, err := s.bookings.BookedSlots(ctx, []uuid.UUID{staffID}, from, to)
	if err != nil {
		return nil, err
	}

	days := make([]*DayAvailability, 0, len(scheds))
	for _, sched := range scheds {
		day, err := s.buildAvailability(ctx, sched, booked)
		if err != nil {
			return nil, err
		}
		days = append(days, day)
	}
	return days, nil
}

// SchedulesForDate returns every staff member's schedule for the date with
// tagged slots.
func (s *Service) SchedulesForDate(ctx context.Context, date time.Time) ([]*DayAvailability, error) {
	scheds, err := s.schedules.ListByDate(ctx, date)
	if err != nil {
		return nil, err
	}
	if len(scheds) == 0 {
		return nil, nil
	}

	staffIDs := make([]uuid.UUID, 0, len(scheds))
	for _, sched := range scheds {
		staffIDs = append(staffIDs, sched.StaffID)
	}
	booked, err := s.bookings.BookedSlots(ctx, staffIDs, date, date)
	if err != nil {
		return nil, err
	}

	days := make([]*DayAvailability, 0, len(scheds))
	for _, sched := range scheds {
		day, err := s.buildAvailability(ctx, sched, booked)
		if err != nil {
			return nil, err
		}
		days = append(days, day)
	}
	return days, nil
}

func (s *Service) buildAvailability(ctx context.Context, sched *Schedule, booked map[BookedKey]bool) (*DayAvailability, error) {
	shift, err := s.GetShift(ctx, sched.ShiftID)
	if err != nil {
		return nil, err
	}
	slots, err := s.slots.ListByShift(ctx, sched.ShiftID)
	if err != nil {
		return nil, err
	}

	date := sched.ScheduleDate.Format("2006-01-02")
	tagged := make([]AvailableSlot, 0, len(slots))
	for _, sl := range slots {
		tagged = append(tagged, AvailableSlot{
			Slot:     *sl,
			IsBooked: booked[BookedKey{StaffID: sched.StaffID, SlotID: sl.ID, Date: date}],
		})
	}
	return &DayAvailability{Schedule: sched, Shift: shift, Slots: tagged}, nil
}

func (s *Service) withTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.pool == nil {
		return fn(ctx)
	}
	return db.WithTx(ctx, s.pool, fn)
}
