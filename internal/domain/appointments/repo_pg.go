package appointments

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

func conn(ctx context.Context, pool *pgxpool.Pool) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return pool
}

// =========== Appointments ===========

type appointmentRepoPG struct{ pool *pgxpool.Pool }

func NewAppointmentRepoPG(pool *pgxpool.Pool) AppointmentRepository {
	return &appointmentRepoPG{pool: pool}
}

const appointmentCols = `id, patient_id, staff_id, slot_id, appointment_date, status, reason, transaction_id, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.PatientID, &a.StaffID, &a.SlotID, &a.AppointmentDate,
		&a.Status, &a.Reason, &a.TransactionID, &a.CreatedAt, &a.UpdatedAt)
	return &a, err
}

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO appointments (id, patient_id, staff_id, slot_id, appointment_date, status, reason, transaction_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		a.ID, a.PatientID, a.StaffID, a.SlotID, a.AppointmentDate, a.Status, a.Reason, a.TransactionID)
	return err
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return scanAppointment(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+appointmentCols+` FROM appointments WHERE id = $1`, id))
}

func (r *appointmentRepoPG) Update(ctx context.Context, a *Appointment) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE appointments
		SET slot_id=$2, appointment_date=$3, status=$4, reason=$5, transaction_id=$6, updated_at=NOW()
		WHERE id = $1`,
		a.ID, a.SlotID, a.AppointmentDate, a.Status, a.Reason, a.TransactionID)
	return err
}

func (r *appointmentRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	c := conn(ctx, r.pool)
	var total int
	if err := c.QueryRow(ctx,
		`SELECT COUNT(*) FROM appointments WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := c.Query(ctx,
		`SELECT `+appointmentCols+` FROM appointments
		 WHERE patient_id = $1 ORDER BY appointment_date DESC LIMIT $2 OFFSET $3`,
		patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, nil
}

func (r *appointmentRepoPG) ListByStaff(ctx context.Context, staffID uuid.UUID, date time.Time, limit, offset int) ([]*Appointment, int, error) {
	c := conn(ctx, r.pool)
	var total int
	if err := c.QueryRow(ctx,
		`SELECT COUNT(*) FROM appointments WHERE staff_id = $1 AND appointment_date = $2`,
		staffID, date).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := c.Query(ctx,
		`SELECT `+appointmentCols+` FROM appointments
		 WHERE staff_id = $1 AND appointment_date = $2
		 ORDER BY created_at LIMIT $3 OFFSET $4`,
		staffID, date, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, nil
}

func (r *appointmentRepoPG) MarkMissed(ctx context.Context, before time.Time) (int64, error) {
	tag, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE appointments SET status = $1, updated_at = NOW()
		WHERE status = $2 AND appointment_date < $3`,
		StatusMissed, StatusUpcoming, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// =========== Vitals ===========

type vitalsRepoPG struct{ pool *pgxpool.Pool }

func NewVitalsRepoPG(pool *pgxpool.Pool) VitalsRepository { return &vitalsRepoPG{pool: pool} }

const vitalsCols = `id, appointment_id, patient_id, blood_pressure, pulse_rate, temperature, weight_kg, height_cm, recorded_at`

func scanVitals(row pgx.Row) (*PatientVitals, error) {
	var v PatientVitals
	err := row.Scan(&v.ID, &v.AppointmentID, &v.PatientID, &v.BloodPressure, &v.PulseRate,
		&v.Temperature, &v.WeightKg, &v.HeightCm, &v.RecordedAt)
	return &v, err
}

func (r *vitalsRepoPG) Create(ctx context.Context, v *PatientVitals) error {
	v.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO patient_vitals (id, appointment_id, patient_id, blood_pressure, pulse_rate, temperature, weight_kg, height_cm)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		v.ID, v.AppointmentID, v.PatientID, v.BloodPressure, v.PulseRate,
		v.Temperature, v.WeightKg, v.HeightCm)
	return err
}

func (r *vitalsRepoPG) ListByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]*PatientVitals, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+vitalsCols+` FROM patient_vitals WHERE appointment_id = $1 ORDER BY recorded_at`, appointmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*PatientVitals
	for rows.Next() {
		v, err := scanVitals(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	return items, nil
}

func (r *vitalsRepoPG) LatestByPatient(ctx context.Context, patientID uuid.UUID) (*PatientVitals, error) {
	return scanVitals(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+vitalsCols+` FROM patient_vitals
		 WHERE patient_id = $1 ORDER BY recorded_at DESC LIMIT 1`, patientID))
}

// =========== Ratings ===========

type ratingRepoPG struct{ pool *pgxpool.Pool }

func NewRatingRepoPG(pool *pgxpool.Pool) RatingRepository { return &ratingRepoPG{pool: pool} }

func (r *ratingRepoPG) Create(ctx context.Context, rating *AppointmentRating) error {
	rating.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO appointment_ratings (id, appointment_id, patient_id, rating, comments)
		VALUES ($1,$2,$3,$4,$5)`,
		rating.ID, rating.AppointmentID, rating.PatientID, rating.Rating, rating.Comments)
	return err
}

func (r *ratingRepoPG) GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*AppointmentRating, error) {
	var rating AppointmentRating
	err := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT id, appointment_id, patient_id, rating, comments, created_at
		FROM appointment_ratings WHERE appointment_id = $1`, appointmentID).
		Scan(&rating.ID, &rating.AppointmentID, &rating.PatientID, &rating.Rating,
			&rating.Comments, &rating.CreatedAt)
	return &rating, err
}

func (r *ratingRepoPG) AverageByStaff(ctx context.Context, staffID uuid.UUID) (float64, int, error) {
	var avg *float64
	var count int
	err := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT AVG(r.rating), COUNT(*)
		FROM appointment_ratings r
		JOIN appointments a ON a.id = r.appointment_id
		WHERE a.staff_id = $1`, staffID).Scan(&avg, &count)
	if err != nil {
		return 0, 0, err
	}
	if avg == nil {
		return 0, 0, nil
	}
	return *avg, count, nil
}
