package clinical

import (
	"context"

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

// =========== Diagnoses ===========

type diagnosisRepoPG struct{ pool *pgxpool.Pool }

func NewDiagnosisRepoPG(pool *pgxpool.Pool) DiagnosisRepository { return &diagnosisRepoPG{pool: pool} }

const diagnosisCols = `id, appointment_id, staff_id, summary, details, lab_test_required, follow_up_required, created_at`

func scanDiagnosis(row pgx.Row) (*Diagnosis, error) {
	var d Diagnosis
	err := row.Scan(&d.ID, &d.AppointmentID, &d.StaffID, &d.Summary, &d.Details,
		&d.LabTestRequired, &d.FollowUpRequired, &d.CreatedAt)
	return &d, err
}

func (r *diagnosisRepoPG) Create(ctx context.Context, d *Diagnosis) error {
	d.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO diagnoses (id, appointment_id, staff_id, summary, details, lab_test_required, follow_up_required)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		d.ID, d.AppointmentID, d.StaffID, d.Summary, d.Details,
		d.LabTestRequired, d.FollowUpRequired)
	return err
}

func (r *diagnosisRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Diagnosis, error) {
	return scanDiagnosis(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+diagnosisCols+` FROM diagnoses WHERE id = $1`, id))
}

func (r *diagnosisRepoPG) ListByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]*Diagnosis, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+diagnosisCols+` FROM diagnoses WHERE appointment_id = $1 ORDER BY created_at`, appointmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Diagnosis
	for rows.Next() {
		d, err := scanDiagnosis(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, nil
}

func (r *diagnosisRepoPG) SetLabTestRequired(ctx context.Context, id uuid.UUID) error {
	_, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE diagnoses SET lab_test_required = TRUE WHERE id = $1`, id)
	return err
}

// =========== Prescriptions ===========

type prescriptionRepoPG struct{ pool *pgxpool.Pool }

func NewPrescriptionRepoPG(pool *pgxpool.Pool) PrescriptionRepository {
	return &prescriptionRepoPG{pool: pool}
}

func (r *prescriptionRepoPG) Create(ctx context.Context, p *Prescription) error {
	p.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO prescriptions (id, diagnosis_id, medicine_name, dosage, frequency, duration_days, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		p.ID, p.DiagnosisID, p.MedicineName, p.Dosage, p.Frequency, p.DurationDays, p.Notes)
	return err
}

func (r *prescriptionRepoPG) ListByDiagnosis(ctx context.Context, diagnosisID uuid.UUID) ([]*Prescription, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT id, diagnosis_id, medicine_name, dosage, frequency, duration_days, notes, created_at
		FROM prescriptions WHERE diagnosis_id = $1 ORDER BY created_at`, diagnosisID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Prescription
	for rows.Next() {
		var p Prescription
		if err := rows.Scan(&p.ID, &p.DiagnosisID, &p.MedicineName, &p.Dosage,
			&p.Frequency, &p.DurationDays, &p.Notes, &p.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &p)
	}
	return items, nil
}

// =========== Reference data ===========

type medicineRepoPG struct{ pool *pgxpool.Pool }

func NewMedicineRepoPG(pool *pgxpool.Pool) MedicineRepository { return &medicineRepoPG{pool: pool} }

func (r *medicineRepoPG) Create(ctx context.Context, m *Medicine) error {
	return conn(ctx, r.pool).QueryRow(ctx,
		`INSERT INTO medicines (name, target_organ_id) VALUES ($1,$2) RETURNING id`,
		m.Name, m.TargetOrganID).Scan(&m.ID)
}

func (r *medicineRepoPG) List(ctx context.Context) ([]*Medicine, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT id, name, target_organ_id FROM medicines ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Medicine
	for rows.Next() {
		var m Medicine
		if err := rows.Scan(&m.ID, &m.Name, &m.TargetOrganID); err != nil {
			return nil, err
		}
		items = append(items, &m)
	}
	return items, nil
}

type targetOrganRepoPG struct{ pool *pgxpool.Pool }

func NewTargetOrganRepoPG(pool *pgxpool.Pool) TargetOrganRepository {
	return &targetOrganRepoPG{pool: pool}
}

func (r *targetOrganRepoPG) Create(ctx context.Context, o *TargetOrgan) error {
	return conn(ctx, r.pool).QueryRow(ctx,
		`INSERT INTO target_organs (name) VALUES ($1) RETURNING id`, o.Name).Scan(&o.ID)
}

func (r *targetOrganRepoPG) List(ctx context.Context) ([]*TargetOrgan, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `SELECT id, name FROM target_organs ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*TargetOrgan
	for rows.Next() {
		var o TargetOrgan
		if err := rows.Scan(&o.ID, &o.Name); err != nil {
			return nil, err
		}
		items = append(items, &o)
	}
	return items, nil
}
