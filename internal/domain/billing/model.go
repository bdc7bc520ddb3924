package billing

import (
	"time"

	"github.com/google/uuid"
)

// TaxRate is the flat tax applied to every invoice subtotal.
const TaxRate = 0.05

// DefaultCurrency is used when a charge or line item carries no currency.
const DefaultCurrency = "INR"

// Invoice statuses.
const (
	InvoicePending   = "pending"
	InvoicePaid      = "paid"
	InvoiceCancelled = "cancelled"
	InvoiceRefunded  = "refunded"
)

var validInvoiceStatuses = map[string]bool{
	InvoicePending: true, InvoicePaid: true,
	InvoiceCancelled: true, InvoiceRefunded: true,
}

// AppointmentCharge is a doctor's consultation fee. At most one charge per
// staff member is active at a time; setting a new one deactivates the old.
type AppointmentCharge struct {
	ID        uuid.UUID `db:"id" json:"id"`
	StaffID   uuid.UUID `db:"staff_id" json:"staff_id"`
	Amount    float64   `db:"amount" json:"amount"`
	Currency  string    `db:"currency" json:"currency"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// LabTestCharge is the fee for one lab test type.
type LabTestCharge struct {
	ID         uuid.UUID `db:"id" json:"id"`
	TestTypeID int64     `db:"test_type_id" json:"test_type_id"`
	Amount     float64   `db:"amount" json:"amount"`
	Currency   string    `db:"currency" json:"currency"`
	Active     bool      `db:"active" json:"active"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Transaction records one completed payment. The reference is
// caller-supplied and unique; a reused reference is a conflict.
type Transaction struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Reference   string    `db:"reference" json:"reference"`
	PatientID   uuid.UUID `db:"patient_id" json:"patient_id"`
	Amount      float64   `db:"amount" json:"amount"`
	Currency    string    `db:"currency" json:"currency"`
	Status      string    `db:"status" json:"status"`
	Description string    `db:"description" json:"description"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// InvoiceLine is one billable item on an invoice.
type InvoiceLine struct {
	ID          uuid.UUID `db:"id" json:"id"`
	InvoiceID   uuid.UUID `db:"invoice_id" json:"invoice_id"`
	Description string    `db:"description" json:"description"`
	Amount      float64   `db:"amount" json:"amount"`
	Currency    string    `db:"currency" json:"currency"`
}

// Invoice is generated best-effort after a payment; its absence never
// invalidates the payment it describes.
type Invoice struct {
	ID            uuid.UUID     `db:"id" json:"id"`
	InvoiceNumber string        `db:"invoice_number" json:"invoice_number"`
	PatientID     uuid.UUID     `db:"patient_id" json:"patient_id"`
	TransactionID uuid.UUID     `db:"transaction_id" json:"transaction_id"`
	Subtotal      float64       `db:"subtotal" json:"subtotal"`
	Tax           float64       `db:"tax" json:"tax"`
	Total         float64       `db:"total" json:"total"`
	Currency      string        `db:"currency" json:"currency"`
	Status        string        `db:"status" json:"status"`
	Items         []InvoiceLine `db:"-" json:"items"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`
}
