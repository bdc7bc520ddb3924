package billing

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

// =========== Appointment Charges ===========

type apptChargeRepoPG struct{ pool *pgxpool.Pool }

func NewAppointmentChargeRepoPG(pool *pgxpool.Pool) AppointmentChargeRepository {
	return &apptChargeRepoPG{pool: pool}
}

const apptChargeCols = `id, staff_id, amount, currency, active, created_at`

func scanApptCharge(row pgx.Row) (*AppointmentCharge, error) {
	var c AppointmentCharge
	err := row.Scan(&c.ID, &c.StaffID, &c.Amount, &c.Currency, &c.Active, &c.CreatedAt)
	return &c, err
}

func (r *apptChargeRepoPG) Create(ctx context.Context, c *AppointmentCharge) error {
	c.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO appointment_charges (id, staff_id, amount, currency, active)
		VALUES ($1,$2,$3,$4,$5)`,
		c.ID, c.StaffID, c.Amount, c.Currency, c.Active)
	return err
}

func (r *apptChargeRepoPG) ActiveByStaff(ctx context.Context, staffID uuid.UUID) (*AppointmentCharge, error) {
	return scanApptCharge(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+apptChargeCols+` FROM appointment_charges
		 WHERE staff_id = $1 AND active ORDER BY created_at DESC LIMIT 1`, staffID))
}

func (r *apptChargeRepoPG) DeactivateByStaff(ctx context.Context, staffID uuid.UUID) error {
	_, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE appointment_charges SET active = FALSE WHERE staff_id = $1 AND active`, staffID)
	return err
}

func (r *apptChargeRepoPG) ListByStaff(ctx context.Context, staffID uuid.UUID) ([]*AppointmentCharge, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+apptChargeCols+` FROM appointment_charges WHERE staff_id = $1 ORDER BY created_at DESC`, staffID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*AppointmentCharge
	for rows.Next() {
		c, err := scanApptCharge(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, nil
}

// =========== Lab Test Charges ===========

type labChargeRepoPG struct{ pool *pgxpool.Pool }

func NewLabTestChargeRepoPG(pool *pgxpool.Pool) LabTestChargeRepository {
	return &labChargeRepoPG{pool: pool}
}

const labChargeCols = `id, test_type_id, amount, currency, active, created_at`

func scanLabCharge(row pgx.Row) (*LabTestCharge, error) {
	var c LabTestCharge
	err := row.Scan(&c.ID, &c.TestTypeID, &c.Amount, &c.Currency, &c.Active, &c.CreatedAt)
	return &c, err
}

func (r *labChargeRepoPG) Create(ctx context.Context, c *LabTestCharge) error {
	c.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO lab_test_charges (id, test_type_id, amount, currency, active)
		VALUES ($1,$2,$3,$4,$5)`,
		c.ID, c.TestTypeID, c.Amount, c.Currency, c.Active)
	return err
}

func (r *labChargeRepoPG) ActiveByTestType(ctx context.Context, testTypeID int64) (*LabTestCharge, error) {
	return scanLabCharge(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+labChargeCols+` FROM lab_test_charges
		 WHERE test_type_id = $1 AND active ORDER BY created_at DESC LIMIT 1`, testTypeID))
}

func (r *labChargeRepoPG) DeactivateByTestType(ctx context.Context, testTypeID int64) error {
	_, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE lab_test_charges SET active = FALSE WHERE test_type_id = $1 AND active`, testTypeID)
	return err
}

// =========== Transactions ===========

type transactionRepoPG struct{ pool *pgxpool.Pool }

func NewTransactionRepoPG(pool *pgxpool.Pool) TransactionRepository {
	return &transactionRepoPG{pool: pool}
}

const transactionCols = `id, reference, patient_id, amount, currency, status, description, created_at`

func scanTransaction(row pgx.Row) (*Transaction, error) {
	var t Transaction
	err := row.Scan(&t.ID, &t.Reference, &t.PatientID, &t.Amount, &t.Currency,
		&t.Status, &t.Description, &t.CreatedAt)
	return &t, err
}

func (r *transactionRepoPG) Create(ctx context.Context, t *Transaction) error {
	t.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO transactions (id, reference, patient_id, amount, currency, status, description)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		t.ID, t.Reference, t.PatientID, t.Amount, t.Currency, t.Status, t.Description)
	return err
}

func (r *transactionRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	return scanTransaction(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+transactionCols+` FROM transactions WHERE id = $1`, id))
}

func (r *transactionRepoPG) GetByReference(ctx context.Context, reference string) (*Transaction, error) {
	return scanTransaction(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+transactionCols+` FROM transactions WHERE reference = $1`, reference))
}

func (r *transactionRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Transaction, int, error) {
	c := conn(ctx, r.pool)
	var total int
	if err := c.QueryRow(ctx,
		`SELECT COUNT(*) FROM transactions WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := c.Query(ctx,
		`SELECT `+transactionCols+` FROM transactions
		 WHERE patient_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, t)
	}
	return items, total, nil
}

// =========== Invoices ===========

type invoiceRepoPG struct{ pool *pgxpool.Pool }

func NewInvoiceRepoPG(pool *pgxpool.Pool) InvoiceRepository { return &invoiceRepoPG{pool: pool} }

const invoiceCols = `id, invoice_number, patient_id, transaction_id, subtotal, tax, total, currency, status, created_at, updated_at`

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.InvoiceNumber, &inv.PatientID, &inv.TransactionID,
		&inv.Subtotal, &inv.Tax, &inv.Total, &inv.Currency, &inv.Status,
		&inv.CreatedAt, &inv.UpdatedAt)
	return &inv, err
}

func (r *invoiceRepoPG) Create(ctx context.Context, inv *Invoice) error {
	c := conn(ctx, r.pool)
	inv.ID = uuid.New()
	_, err := c.Exec(ctx, `
		INSERT INTO invoices (id, invoice_number, patient_id, transaction_id, subtotal, tax, total, currency, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		inv.ID, inv.InvoiceNumber, inv.PatientID, inv.TransactionID,
		inv.Subtotal, inv.Tax, inv.Total, inv.Currency, inv.Status)
	if err != nil {
		return err
	}
	for i := range inv.Items {
		inv.Items[i].ID = uuid.New()
		inv.Items[i].InvoiceID = inv.ID
		if _, err := c.Exec(ctx, `
			INSERT INTO invoice_items (id, invoice_id, description, amount, currency)
			VALUES ($1,$2,$3,$4,$5)`,
			inv.Items[i].ID, inv.ID, inv.Items[i].Description,
			inv.Items[i].Amount, inv.Items[i].Currency); err != nil {
			return err
		}
	}
	return nil
}

func (r *invoiceRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	c := conn(ctx, r.pool)
	inv, err := scanInvoice(c.QueryRow(ctx, `SELECT `+invoiceCols+` FROM invoices WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	rows, err := c.Query(ctx, `
		SELECT id, invoice_id, description, amount, currency
		FROM invoice_items WHERE invoice_id = $1`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var item InvoiceLine
		if err := rows.Scan(&item.ID, &item.InvoiceID, &item.Description, &item.Amount, &item.Currency); err != nil {
			return nil, err
		}
		inv.Items = append(inv.Items, item)
	}
	return inv, rows.Err()
}

func (r *invoiceRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Invoice, int, error) {
	c := conn(ctx, r.pool)
	var total int
	if err := c.QueryRow(ctx,
		`SELECT COUNT(*) FROM invoices WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := c.Query(ctx,
		`SELECT `+invoiceCols+` FROM invoices
		 WHERE patient_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, inv)
	}
	return items, total, nil
}

func (r *invoiceRepoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE invoices SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
