package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medicore/hms/internal/platform/db"
)

var (
	ErrReferenceUsed  = errors.New("transaction reference has already been used")
	ErrNoActiveCharge = errors.New("no active charge is configured")
	ErrMixedCurrency  = errors.New("invoice items must share a single currency")
)

type Service struct {
	apptCharges  AppointmentChargeRepository
	labCharges   LabTestChargeRepository
	transactions TransactionRepository
	invoices     InvoiceRepository
	pool         *pgxpool.Pool
}

func NewService(
	apptCharges AppointmentChargeRepository,
	labCharges LabTestChargeRepository,
	transactions TransactionRepository,
	invoices InvoiceRepository,
	pool *pgxpool.Pool,
) *Service {
	return &Service{
		apptCharges:  apptCharges,
		labCharges:   labCharges,
		transactions: transactions,
		invoices:     invoices,
		pool:         pool,
	}
}

// -- Charges --

// SetAppointmentCharge replaces the staff member's active consultation fee.
func (s *Service) SetAppointmentCharge(ctx context.Context, staffID uuid.UUID, amount float64, currency string) (*AppointmentCharge, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("charge amount must be positive")
	}
	if currency == "" {
		currency = DefaultCurrency
	}
	charge := &AppointmentCharge{StaffID: staffID, Amount: amount, Currency: currency, Active: true}
	err := s.withTx(ctx, func(ctx context.Context) error {
		if err := s.apptCharges.DeactivateByStaff(ctx, staffID); err != nil {
			return err
		}
		return s.apptCharges.Create(ctx, charge)
	})
	if err != nil {
		return nil, err
	}
	return charge, nil
}

func (s *Service) ActiveAppointmentCharge(ctx context.Context, staffID uuid.UUID) (*AppointmentCharge, error) {
	charge, err := s.apptCharges.ActiveByStaff(ctx, staffID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoActiveCharge
		}
		return nil, err
	}
	return charge, nil
}

func (s *Service) ListAppointmentCharges(ctx context.Context, staffID uuid.UUID) ([]*AppointmentCharge, error) {
	return s.apptCharges.ListByStaff(ctx, staffID)
}

func (s *Service) SetLabTestCharge(ctx context.Context, testTypeID int64, amount float64, currency string) (*LabTestCharge, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("charge amount must be positive")
	}
	if currency == "" {
		currency = DefaultCurrency
	}
	charge := &LabTestCharge{TestTypeID: testTypeID, Amount: amount, Currency: currency, Active: true}
	err := s.withTx(ctx, func(ctx context.Context) error {
		if err := s.labCharges.DeactivateByTestType(ctx, testTypeID); err != nil {
			return err
		}
		return s.labCharges.Create(ctx, charge)
	})
	if err != nil {
		return nil, err
	}
	return charge, nil
}

func (s *Service) ActiveLabTestCharge(ctx context.Context, testTypeID int64) (*LabTestCharge, error) {
	charge, err := s.labCharges.ActiveByTestType(ctx, testTypeID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoActiveCharge
		}
		return nil, err
	}
	return charge, nil
}

// -- Transactions --

// RecordPayment stores a completed transaction against a caller-supplied
// reference. Reuse of a reference is a conflict, enforced by the unique
// constraint on transactions.reference.
func (s *Service) RecordPayment(ctx context.Context, reference string, patientID uuid.UUID, amount float64, currency, description string) (*Transaction, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, fmt.Errorf("transaction reference is required")
	}
	if amount <= 0 {
		return nil, fmt.Errorf("payment amount must be positive")
	}
	if currency == "" {
		currency = DefaultCurrency
	}

	t := &Transaction{
		Reference:   reference,
		PatientID:   patientID,
		Amount:      amount,
		Currency:    currency,
		Status:      "completed",
		Description: description,
	}
	if err := s.transactions.Create(ctx, t); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrReferenceUsed
		}
		return nil, err
	}
	return t, nil
}

func (s *Service) GetTransaction(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	t, err := s.transactions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("transaction %s not found", id)
		}
		return nil, err
	}
	return t, nil
}

func (s *Service) ListTransactions(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Transaction, int, error) {
	return s.transactions.ListByPatient(ctx, patientID, limit, offset)
}

// -- Invoices --

// GenerateInvoice builds and stores an invoice for a recorded payment:
// subtotal is the sum of the items, tax is a flat 5% of the subtotal. Items
// must share one currency.
func (s *Service) GenerateInvoice(ctx context.Context, patientID, transactionID uuid.UUID, items []InvoiceLine) (*Invoice, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("an invoice needs at least one item")
	}

	currency := items[0].Currency
	if currency == "" {
		currency = DefaultCurrency
	}
	var subtotal float64
	for i := range items {
		if items[i].Currency == "" {
			items[i].Currency = currency
		}
		if items[i].Currency != currency {
			return nil, ErrMixedCurrency
		}
		subtotal += items[i].Amount
	}

	tax := subtotal * TaxRate
	inv := &Invoice{
		InvoiceNumber: newInvoiceNumber(),
		PatientID:     patientID,
		TransactionID: transactionID,
		Subtotal:      subtotal,
		Tax:           tax,
		Total:         subtotal + tax,
		Currency:      currency,
		Status:        InvoicePending,
		Items:         items,
	}
	if err := s.invoices.Create(ctx, inv); err != nil {
		return nil, fmt.Errorf("create invoice: %w", err)
	}
	return inv, nil
}

func (s *Service) GetInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	inv, err := s.invoices.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("invoice %s not found", id)
		}
		return nil, err
	}
	return inv, nil
}

func (s *Service) ListInvoices(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Invoice, int, error) {
	return s.invoices.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) UpdateInvoiceStatus(ctx context.Context, id uuid.UUID, status string) error {
	if !validInvoiceStatuses[status] {
		return fmt.Errorf("invalid invoice status: %s", status)
	}
	if err := s.invoices.UpdateStatus(ctx, id, status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("invoice %s not found", id)
		}
		return err
	}
	return nil
}

func newInvoiceNumber() string {
	return "INV-" + strings.ToUpper(uuid.New().String()[:8])
}

func (s *Service) withTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.pool == nil {
		return fn(ctx)
	}
	return db.WithTx(ctx, s.pool, fn)
}
