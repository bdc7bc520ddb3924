package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medicore/hms/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// =========== Shift Repository ===========

type shiftRepoPG struct{ pool *pgxpool.Pool }

func NewShiftRepoPG(pool *pgxpool.Pool) ShiftRepository { return &shiftRepoPG{pool: pool} }

func (r *shiftRepoPG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const shiftCols = `id, name, start_time, end_time, created_at`

func (r *shiftRepoPG) scanShift(row pgx.Row) (*Shift, error) {
	var s Shift
	err := row.Scan(&s.ID, &s.Name, &s.StartTime, &s.EndTime, &s.CreatedAt)
	return &s, err
}

func (r *shiftRepoPG) Create(ctx context.Context, s *Shift) error {
	s.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO shifts (id, name, start_time, end_time)
		VALUES ($1,$2,$3,$4)`,
		s.ID, s.Name, s.StartTime, s.EndTime)
	return err
}

func (r *shiftRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Shift, error) {
	return r.scanShift(r.conn(ctx).QueryRow(ctx, `SELECT `+shiftCols+` FROM shifts WHERE id = $1`, id))
}

func (r *shiftRepoPG) List(ctx context.Context) ([]*Shift, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+shiftCols+` FROM shifts ORDER BY start_time`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Shift
	for rows.Next() {
		s, err := r.scanShift(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, nil
}

func (r *shiftRepoPG) Update(ctx context.Context, s *Shift) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE shifts SET name=$2, start_time=$3, end_time=$4 WHERE id = $1`,
		s.ID, s.Name, s.StartTime, s.EndTime)
	return err
}

func (r *shiftRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM shifts WHERE id = $1`, id)
	return err
}

// =========== Slot Repository ===========

type slotRepoPG struct{ pool *pgxpool.Pool }

func NewSlotRepoPG(pool *pgxpool.Pool) SlotRepository { return &slotRepoPG{pool: pool} }

func (r *slotRepoPG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const slotCols = `id, shift_id, start_time, duration_minutes, created_at`

func (r *slotRepoPG) scanSlot(row pgx.Row) (*Slot, error) {
	var s Slot
	err := row.Scan(&s.ID, &s.ShiftID, &s.StartTime, &s.DurationMinutes, &s.CreatedAt)
	return &s, err
}

func (r *slotRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Slot, error) {
	return r.scanSlot(r.conn(ctx).QueryRow(ctx, `SELECT `+slotCols+` FROM slots WHERE id = $1`, id))
}

func (r *slotRepoPG) ListByShift(ctx context.Context, shiftID uuid.UUID) ([]*Slot, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+slotCols+` FROM slots WHERE shift_id = $1 ORDER BY start_time`, shiftID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Slot
	for rows.Next() {
		s, err := r.scanSlot(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, nil
}

func (r *slotRepoPG) ReplaceForShift(ctx context.Context, shiftID uuid.UUID, slots []*Slot) error {
	c := r.conn(ctx)
	if _, err := c.Exec(ctx, `DELETE FROM slots WHERE shift_id = $1`, shiftID); err != nil {
		return err
	}
	for _, s := range slots {
		s.ID = uuid.New()
		s.ShiftID = shiftID
		if _, err := c.Exec(ctx, `
			INSERT INTO slots (id, shift_id, start_time, duration_minutes)
			VALUES ($1,$2,$3,$4)`,
			s.ID, s.ShiftID, s.StartTime, s.DurationMinutes); err != nil {
			return err
		}
	}
	return nil
}

// =========== Schedule Repository ===========

type scheduleRepoPG struct{ pool *pgxpool.Pool }

func NewScheduleRepoPG(pool *pgxpool.Pool) ScheduleRepository { return &scheduleRepoPG{pool: pool} }

func (r *scheduleRepoPG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const scheduleCols = `id, staff_id, shift_id, schedule_date, created_at`

func (r *scheduleRepoPG) scanSchedule(row pgx.Row) (*Schedule, error) {
	var s Schedule
	err := row.Scan(&s.ID, &s.StaffID, &s.ShiftID, &s.ScheduleDate, &s.CreatedAt)
	return &s, err
}

func (r *scheduleRepoPG) Create(ctx context.Context, s *Schedule) error {
	s.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO schedules (id, staff_id, shift_id, schedule_date)
		VALUES ($1,$2,$3,$4)`,
		s.ID, s.StaffID, s.ShiftID, s.ScheduleDate)
	return err
}

func (r *scheduleRepoPG) GetByStaffAndDate(ctx context.Context, staffID uuid.UUID, date time.Time) (*Schedule, error) {
	return r.scanSchedule(r.conn(ctx).QueryRow(ctx,
		`SELECT `+scheduleCols+` FROM schedules WHERE staff_id = $1 AND schedule_date = $2`,
		staffID, date))
}

func (r *scheduleRepoPG) ListByStaffRange(ctx context.Context, staffID uuid.UUID, from, to time.Time) ([]*Schedule, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+scheduleCols+` FROM schedules
		 WHERE staff_id = $1 AND schedule_date BETWEEN $2 AND $3
		 ORDER BY schedule_date`,
		staffID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Schedule
	for rows.Next() {
		s, err := r.scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, nil
}

func (r *scheduleRepoPG) ListByDate(ctx context.Context, date time.Time) ([]*Schedule, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+scheduleCols+` FROM schedules WHERE schedule_date = $1 ORDER BY staff_id`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Schedule
	for rows.Next() {
		s, err := r.scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, nil
}

func (r *scheduleRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM schedules WHERE id = $1`, id)
	return err
}

// =========== Booking Lookup ===========

type bookingLookupPG struct{ pool *pgxpool.Pool }

func NewBookingLookupPG(pool *pgxpool.Pool) BookingLookup { return &bookingLookupPG{pool: pool} }

func (r *bookingLookupPG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

func (r *bookingLookupPG) BookedSlots(ctx context.Context, staffIDs []uuid.UUID, from, to time.Time) (map[BookedKey]bool, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT staff_id, slot_id, appointment_date FROM appointments
		WHERE staff_id = ANY($1) AND appointment_date BETWEEN $2 AND $3`,
		staffIDs, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	booked := make(map[BookedKey]bool)
	for rows.Next() {
		var staffID, slotID uuid.UUID
		var date time.Time
		if err := rows.Scan(&staffID, &slotID, &date); err != nil {
			return nil, err
		}
		booked[BookedKey{StaffID: staffID, SlotID: slotID, Date: date.Format("2006-01-02")}] = true
	}
	return booked, rows.Err()
}
