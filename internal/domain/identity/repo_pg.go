package identity

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

// =========== Patient Repository ===========

type patientRepoPG struct{ pool *pgxpool.Pool }

func NewPatientRepoPG(pool *pgxpool.Pool) PatientRepository { return &patientRepoPG{pool: pool} }

func (r *patientRepoPG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const patientCols = `id, name, email, mobile, dob, gender, address, created_at, updated_at`

func (r *patientRepoPG) scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.Name, &p.Email, &p.Mobile, &p.DOB, &p.Gender, &p.Address,
		&p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO patients (id, name, email, mobile, dob, gender, address)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		p.ID, p.Name, p.Email, p.Mobile, p.DOB, p.Gender, p.Address)
	return err
}

func (r *patientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return r.scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE id = $1`, id))
}

func (r *patientRepoPG) GetByEmail(ctx context.Context, email string) (*Patient, error) {
	return r.scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE email = $1`, email))
}

func (r *patientRepoPG) Update(ctx context.Context, p *Patient) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE patients SET name=$2, mobile=$3, dob=$4, gender=$5, address=$6, updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.Name, p.Mobile, p.DOB, p.Gender, p.Address)
	return err
}

func (r *patientRepoPG) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patients`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+patientCols+` FROM patients ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Patient
	for rows.Next() {
		p, err := r.scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, nil
}

// =========== Staff Repository ===========

type staffRepoPG struct{ pool *pgxpool.Pool }

func NewStaffRepoPG(pool *pgxpool.Pool) StaffRepository { return &staffRepoPG{pool: pool} }

func (r *staffRepoPG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const staffCols = `id, name, email, mobile, role, specialization, active, created_at, updated_at`

func (r *staffRepoPG) scanStaff(row pgx.Row) (*Staff, error) {
	var s Staff
	err := row.Scan(&s.ID, &s.Name, &s.Email, &s.Mobile, &s.Role, &s.Specialization,
		&s.Active, &s.CreatedAt, &s.UpdatedAt)
	return &s, err
}

func (r *staffRepoPG) Create(ctx context.Context, s *Staff) error {
	s.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO staff (id, name, email, mobile, role, specialization, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		s.ID, s.Name, s.Email, s.Mobile, s.Role, s.Specialization, s.Active)
	return err
}

func (r *staffRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Staff, error) {
	return r.scanStaff(r.conn(ctx).QueryRow(ctx, `SELECT `+staffCols+` FROM staff WHERE id = $1`, id))
}

func (r *staffRepoPG) GetByEmail(ctx context.Context, email string) (*Staff, error) {
	return r.scanStaff(r.conn(ctx).QueryRow(ctx, `SELECT `+staffCols+` FROM staff WHERE email = $1`, email))
}

func (r *staffRepoPG) Update(ctx context.Context, s *Staff) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE staff SET name=$2, mobile=$3, role=$4, specialization=$5, active=$6, updated_at=NOW()
		WHERE id = $1`,
		s.ID, s.Name, s.Mobile, s.Role, s.Specialization, s.Active)
	return err
}

func (r *staffRepoPG) ListByRole(ctx context.Context, role string, limit, offset int) ([]*Staff, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM staff WHERE role = $1 AND active`, role).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+staffCols+` FROM staff WHERE role = $1 AND active ORDER BY name LIMIT $2 OFFSET $3`, role, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Staff
	for rows.Next() {
		s, err := r.scanStaff(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, s)
	}
	return items, total, nil
}

func (r *staffRepoPG) List(ctx context.Context, limit, offset int) ([]*Staff, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM staff`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+staffCols+` FROM staff ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Staff
	for rows.Next() {
		s, err := r.scanStaff(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, s)
	}
	return items, total, nil
}

// =========== Role Repository ===========

type roleRepoPG struct{ pool *pgxpool.Pool }

func NewRoleRepoPG(pool *pgxpool.Pool) RoleRepository { return &roleRepoPG{pool: pool} }

func (r *roleRepoPG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

func (r *roleRepoPG) Create(ctx context.Context, role *Role) error {
	role.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO roles (id, name, permissions)
		VALUES ($1,$2,$3)`,
		role.ID, role.Name, role.Permissions)
	return err
}

func (r *roleRepoPG) GetByName(ctx context.Context, name string) (*Role, error) {
	var role Role
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT id, name, permissions, created_at FROM roles WHERE name = $1`, name).
		Scan(&role.ID, &role.Name, &role.Permissions, &role.CreatedAt)
	return &role, err
}

func (r *roleRepoPG) List(ctx context.Context) ([]*Role, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT id, name, permissions, created_at FROM roles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Permissions, &role.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &role)
	}
	return items, nil
}
