package scheduling

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Shift is a named working-time window. Times are clock times in "HH:MM";
// a shift whose end is at or before its start wraps past midnight.
type Shift struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	StartTime string    `db:"start_time" json:"start_time"`
	EndTime   string    `db:"end_time" json:"end_time"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Slot is a fixed-duration bookable interval carved from a shift.
type Slot struct {
	ID              uuid.UUID `db:"id" json:"id"`
	ShiftID         uuid.UUID `db:"shift_id" json:"shift_id"`
	StartTime       string    `db:"start_time" json:"start_time"`
	DurationMinutes int       `db:"duration_minutes" json:"duration_minutes"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// Schedule assigns one staff member to one shift on one calendar date.
// At most one schedule may exist per (staff, date).
type Schedule struct {
	ID           uuid.UUID `db:"id" json:"id"`
	StaffID      uuid.UUID `db:"staff_id" json:"staff_id"`
	ShiftID      uuid.UUID `db:"shift_id" json:"shift_id"`
	ScheduleDate time.Time `db:"schedule_date" json:"schedule_date"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// AvailableSlot is a slot of a scheduled shift tagged with its booking state
// for a particular staff member and date.
type AvailableSlot struct {
	Slot
	IsBooked bool `json:"is_booked"`
}

// DayAvailability groups a schedule with its slots for list views.
type DayAvailability struct {
	Schedule *Schedule       `json:"schedule"`
	Shift    *Shift          `json:"shift"`
	Slots    []AvailableSlot `json:"slots"`
}

const clockLayout = "15:04"

// parseClock converts an "HH:MM" clock time to minutes since midnight.
func parseClock(value string) (int, error) {
	t, err := time.Parse(clockLayout, value)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: expected HH:MM", value)
	}
	return t.Hour()*60 + t.Minute(), nil
}

func formatClock(minutes int) string {
	minutes %= 24 * 60
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// GenerateSlots carves the shift window into consecutive fixed-duration
// slots. The trailing remainder shorter than one slot is dropped. A window
// whose end is at or before its start spans midnight into the next day.
func GenerateSlots(shift *Shift, durationMinutes int) ([]*Slot, error) {
	if durationMinutes <= 0 {
		return nil, fmt.Errorf("slot duration must be positive")
	}
	start, err := parseClock(shift.StartTime)
	if err != nil {
		return nil, err
	}
	end, err := parseClock(shift.EndTime)
	if err != nil {
		return nil, err
	}
	if end <= start {
		end += 24 * 60
	}

	var slots []*Slot
	for at := start; at+durationMinutes <= end; at += durationMinutes {
		slots = append(slots, &Slot{
			ShiftID:         shift.ID,
			StartTime:       formatClock(at),
			DurationMinutes: durationMinutes,
		})
	}
	return slots, nil
}
