package history

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

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const historyCols = `id, patient_id, history, allergies, notes, created_at, updated_at`

func (r *repoPG) scanHistory(row pgx.Row) (*PatientHistory, error) {
	var h PatientHistory
	err := row.Scan(&h.ID, &h.PatientID, &h.History, &h.Allergies, &h.Notes, &h.CreatedAt, &h.UpdatedAt)
	return &h, err
}

func (r *repoPG) Create(ctx context.Context, h *PatientHistory) error {
	h.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO patient_histories (id, patient_id, history, allergies, notes)
		VALUES ($1,$2,$3,$4,$5)`,
		h.ID, h.PatientID, h.History, h.Allergies, h.Notes)
	return err
}

func (r *repoPG) GetByPatient(ctx context.Context, patientID uuid.UUID) (*PatientHistory, error) {
	return r.scanHistory(r.conn(ctx).QueryRow(ctx,
		`SELECT `+historyCols+` FROM patient_histories WHERE patient_id = $1`, patientID))
}

func (r *repoPG) Update(ctx context.Context, h *PatientHistory) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE patient_histories SET history=$2, allergies=$3, notes=$4, updated_at=NOW()
		WHERE id = $1`,
		h.ID, h.History, h.Allergies, h.Notes)
	return err
}
