package documents

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

type docRepoPG struct{ pool *pgxpool.Pool }

func NewDocRepoPG(pool *pgxpool.Pool) DocRepository {
	return &docRepoPG{pool: pool}
}

func (r *docRepoPG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const docCols = `id, patient_id, file_name, file_path, document_type,
	document_processed, processing_remarks, created_at, updated_at`

func scanDoc(row pgx.Row) (*PatientHistoryDoc, error) {
	var d PatientHistoryDoc
	err := row.Scan(&d.ID, &d.PatientID, &d.FileName, &d.FilePath, &d.DocumentType,
		&d.DocumentProcessed, &d.ProcessingRemarks, &d.CreatedAt, &d.UpdatedAt)
	return &d, err
}

func (r *docRepoPG) Create(ctx context.Context, d *PatientHistoryDoc) error {
	d.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO patient_history_docs (id, patient_id, file_name, file_path, document_type)
		VALUES ($1,$2,$3,$4,$5)`,
		d.ID, d.PatientID, d.FileName, d.FilePath, d.DocumentType)
	return err
}

func (r *docRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*PatientHistoryDoc, error) {
	return scanDoc(r.conn(ctx).QueryRow(ctx,
		`SELECT `+docCols+` FROM patient_history_docs WHERE id = $1`, id))
}

func (r *docRepoPG) Update(ctx context.Context, d *PatientHistoryDoc) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE patient_history_docs
		SET document_type = $2, document_processed = $3, processing_remarks = $4,
			updated_at = NOW()
		WHERE id = $1`,
		d.ID, d.DocumentType, d.DocumentProcessed, d.ProcessingRemarks)
	return err
}

func (r *docRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*PatientHistoryDoc, error) {
	return r.list(ctx,
		`SELECT `+docCols+` FROM patient_history_docs WHERE patient_id = $1 ORDER BY created_at DESC`,
		patientID)
}

func (r *docRepoPG) ListUnprocessed(ctx context.Context, patientID uuid.UUID) ([]*PatientHistoryDoc, error) {
	return r.list(ctx,
		`SELECT `+docCols+` FROM patient_history_docs
		 WHERE patient_id = $1 AND NOT document_processed ORDER BY created_at`,
		patientID)
}

func (r *docRepoPG) CountByPatient(ctx context.Context, patientID uuid.UUID) (int, int, error) {
	var total, processed int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE document_processed)
		FROM patient_history_docs WHERE patient_id = $1`, patientID).
		Scan(&total, &processed)
	return total, processed, err
}

func (r *docRepoPG) list(ctx context.Context, sql string, args ...interface{}) ([]*PatientHistoryDoc, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*PatientHistoryDoc
	for rows.Next() {
		d, err := scanDoc(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, nil
}
