package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type ShiftRepository interface {
	Create(ctx context.Context, s *Shift) error
	GetByID(ctx context.Context, id uuid.UUID) (*Shift, error)
	List(ctx context.Context) ([]*Shift, error)
	Update(ctx context.Context, s *Shift) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type SlotRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Slot, error)
	ListByShift(ctx context.Context, shiftID uuid.UUID) ([]*Slot, error)
	// ReplaceForShift deletes every slot of the shift and inserts the given
	// set. Regeneration is destructive, not a merge.
	ReplaceForShift(ctx context.Context, shiftID uuid.UUID, slots []*Slot) error
}

type ScheduleRepository interface {
	Create(ctx context.Context, s *Schedule) error
	GetByStaffAndDate(ctx context.Context, staffID uuid.UUID, date time.Time) (*Schedule, error)
	ListByStaffRange(ctx context.Context, staffID uuid.UUID, from, to time.Time) ([]*Schedule, error)
	ListByDate(ctx context.Context, date time.Time) ([]*Schedule, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// BookedKey identifies one booked (staff, slot, date) triple. Date is the
// appointment date in "2006-01-02" form.
type BookedKey struct {
	StaffID uuid.UUID
	SlotID  uuid.UUID
	Date    string
}

// BookingLookup answers which (staff, slot, date) triples already carry an
// appointment. Implemented against the appointments table.
type BookingLookup interface {
	BookedSlots(ctx context.Context, staffIDs []uuid.UUID, from, to time.Time) (map[BookedKey]bool, error)
}
