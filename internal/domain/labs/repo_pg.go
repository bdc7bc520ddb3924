package labs

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

// =========== Lab Types ===========

type labTypeRepoPG struct{ pool *pgxpool.Pool }

func NewLabTypeRepoPG(pool *pgxpool.Pool) LabTypeRepository {
	return &labTypeRepoPG{pool: pool}
}

const labTypeCols = `id, name, supported_tests, created_at`

func scanLabType(row pgx.Row) (*LabType, error) {
	var t LabType
	err := row.Scan(&t.ID, &t.Name, &t.SupportedTests, &t.CreatedAt)
	return &t, err
}

func (r *labTypeRepoPG) Create(ctx context.Context, t *LabType) error {
	return conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO lab_types (name, supported_tests)
		VALUES ($1,$2) RETURNING id`,
		t.Name, t.SupportedTests).Scan(&t.ID)
}

func (r *labTypeRepoPG) GetByID(ctx context.Context, id int64) (*LabType, error) {
	return scanLabType(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+labTypeCols+` FROM lab_types WHERE id = $1`, id))
}

func (r *labTypeRepoPG) List(ctx context.Context) ([]*LabType, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+labTypeCols+` FROM lab_types ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*LabType
	for rows.Next() {
		t, err := scanLabType(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, nil
}

// =========== Labs ===========

type labRepoPG struct{ pool *pgxpool.Pool }

func NewLabRepoPG(pool *pgxpool.Pool) LabRepository {
	return &labRepoPG{pool: pool}
}

const labCols = `id, name, lab_type_id, functional, created_at`

func scanLab(row pgx.Row) (*Lab, error) {
	var l Lab
	err := row.Scan(&l.ID, &l.Name, &l.LabTypeID, &l.Functional, &l.CreatedAt)
	return &l, err
}

func (r *labRepoPG) Create(ctx context.Context, l *Lab) error {
	return conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO labs (name, lab_type_id, functional)
		VALUES ($1,$2,$3) RETURNING id`,
		l.Name, l.LabTypeID, l.Functional).Scan(&l.ID)
}

func (r *labRepoPG) GetByID(ctx context.Context, id int64) (*Lab, error) {
	return scanLab(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+labCols+` FROM labs WHERE id = $1`, id))
}

func (r *labRepoPG) ListFunctionalByType(ctx context.Context, labTypeID int64) ([]*Lab, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+labCols+` FROM labs WHERE lab_type_id = $1 AND functional ORDER BY id`, labTypeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectLabs(rows)
}

func (r *labRepoPG) List(ctx context.Context) ([]*Lab, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+labCols+` FROM labs ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectLabs(rows)
}

func (r *labRepoPG) SetFunctional(ctx context.Context, id int64, functional bool) error {
	tag, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE labs SET functional = $2 WHERE id = $1`, id, functional)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func collectLabs(rows pgx.Rows) ([]*Lab, error) {
	var items []*Lab
	for rows.Next() {
		l, err := scanLab(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, l)
	}
	return items, nil
}

// =========== Lab Test Types ===========

type labTestTypeRepoPG struct{ pool *pgxpool.Pool }

func NewLabTestTypeRepoPG(pool *pgxpool.Pool) LabTestTypeRepository {
	return &labTestTypeRepoPG{pool: pool}
}

const labTestTypeCols = `id, name, image_required, result_schema, created_at`

func scanLabTestType(row pgx.Row) (*LabTestType, error) {
	var t LabTestType
	err := row.Scan(&t.ID, &t.Name, &t.ImageRequired, &t.ResultSchema, &t.CreatedAt)
	return &t, err
}

func (r *labTestTypeRepoPG) Create(ctx context.Context, t *LabTestType) error {
	return conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO lab_test_types (name, image_required, result_schema)
		VALUES ($1,$2,$3) RETURNING id`,
		t.Name, t.ImageRequired, t.ResultSchema).Scan(&t.ID)
}

func (r *labTestTypeRepoPG) GetByID(ctx context.Context, id int64) (*LabTestType, error) {
	return scanLabTestType(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+labTestTypeCols+` FROM lab_test_types WHERE id = $1`, id))
}

func (r *labTestTypeRepoPG) List(ctx context.Context) ([]*LabTestType, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+labTestTypeCols+` FROM lab_test_types ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*LabTestType
	for rows.Next() {
		t, err := scanLabTestType(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, nil
}

// =========== Lab Tests ===========

type labTestRepoPG struct{ pool *pgxpool.Pool }

func NewLabTestRepoPG(pool *pgxpool.Pool) LabTestRepository {
	return &labTestRepoPG{pool: pool}
}

const labTestCols = `id, appointment_id, test_type_id, lab_id, test_datetime,
	priority, test_result, result_image_path, transaction_id, created_at, updated_at`

func scanLabTest(row pgx.Row) (*LabTest, error) {
	var t LabTest
	err := row.Scan(&t.ID, &t.AppointmentID, &t.TestTypeID, &t.LabID, &t.TestDatetime,
		&t.Priority, &t.TestResult, &t.ResultImagePath, &t.TransactionID, &t.CreatedAt, &t.UpdatedAt)
	return &t, err
}

func (r *labTestRepoPG) Create(ctx context.Context, t *LabTest) error {
	return conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO lab_tests (appointment_id, test_type_id, lab_id, test_datetime, priority)
		VALUES ($1,$2,$3,$4,$5) RETURNING id`,
		t.AppointmentID, t.TestTypeID, t.LabID, t.TestDatetime, t.Priority).Scan(&t.ID)
}

func (r *labTestRepoPG) GetByID(ctx context.Context, id int64) (*LabTest, error) {
	return scanLabTest(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+labTestCols+` FROM lab_tests WHERE id = $1`, id))
}

func (r *labTestRepoPG) Update(ctx context.Context, t *LabTest) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE lab_tests SET test_result = $2, result_image_path = $3,
			transaction_id = $4, updated_at = NOW()
		WHERE id = $1`,
		t.ID, t.TestResult, t.ResultImagePath, t.TransactionID)
	return err
}

func (r *labTestRepoPG) ListByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]*LabTest, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+labTestCols+` FROM lab_tests WHERE appointment_id = $1 ORDER BY id`, appointmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectLabTests(rows)
}

func (r *labTestRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*LabTest, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT t.id, t.appointment_id, t.test_type_id, t.lab_id, t.test_datetime,
			t.priority, t.test_result, t.result_image_path, t.transaction_id,
			t.created_at, t.updated_at
		 FROM lab_tests t
		 JOIN appointments a ON a.id = t.appointment_id
		 WHERE a.patient_id = $1
		 ORDER BY t.test_datetime DESC`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectLabTests(rows)
}

func (r *labTestRepoPG) ListByLab(ctx context.Context, labID int64, limit, offset int) ([]*LabTest, int, error) {
	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM lab_tests WHERE lab_id = $1`, labID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+labTestCols+` FROM lab_tests WHERE lab_id = $1
		 ORDER BY test_datetime DESC LIMIT $2 OFFSET $3`, labID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items, err := collectLabTests(rows)
	return items, total, err
}

func (r *labTestRepoPG) CountInWindow(ctx context.Context, labID int64, from, to time.Time) (int, error) {
	var n int
	err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM lab_tests WHERE lab_id = $1 AND test_datetime BETWEEN $2 AND $3`,
		labID, from, to).Scan(&n)
	return n, err
}

func collectLabTests(rows pgx.Rows) ([]*LabTest, error) {
	var items []*LabTest
	for rows.Next() {
		t, err := scanLabTest(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, nil
}
