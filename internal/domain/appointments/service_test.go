package appointments

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"github.com/medicore/hms/internal/domain/billing"
	"github.com/medicore/hms/internal/domain/identity"
	"github.com/medicore/hms/internal/domain/scheduling"
)

type bookingKey struct {
	staff uuid.UUID
	slot  uuid.UUID
	date  string
}

type mockAppointmentRepo struct {
	mu       sync.Mutex
	byID     map[uuid.UUID]*Appointment
	byTriple map[bookingKey]uuid.UUID
}

func newMockAppointmentRepo() *mockAppointmentRepo {
	return &mockAppointmentRepo{
		byID:     make(map[uuid.UUID]*Appointment),
		byTriple: make(map[bookingKey]uuid.UUID),
	}
}

func tripleOf(a *Appointment) bookingKey {
	return bookingKey{staff: a.StaffID, slot: a.SlotID, date: a.AppointmentDate.Format("2006-01-02")}
}

// Create checks and claims the (staff, slot, date) key under one lock, the
// way the partial unique index decides races in Postgres.
func (m *mockAppointmentRepo) Create(_ context.Context, a *Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := tripleOf(a)
	if _, ok := m.byTriple[k]; ok {
		return &pgconn.PgError{Code: "23505"}
	}
	a.ID = uuid.New()
	m.byID[a.ID] = a
	m.byTriple[k] = a.ID
	return nil
}

func (m *mockAppointmentRepo) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return a, nil
}

func (m *mockAppointmentRepo) Update(_ context.Context, a *Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.byID[a.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	newKey := tripleOf(a)
	if owner, taken := m.byTriple[newKey]; taken && owner != a.ID {
		return &pgconn.PgError{Code: "23505"}
	}
	delete(m.byTriple, tripleOf(old))
	m.byTriple[newKey] = a.ID
	m.byID[a.ID] = a
	return nil
}

func (m *mockAppointmentRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	var out []*Appointment
	for _, a := range m.byID {
		if a.PatientID == patientID {
			out = append(out, a)
		}
	}
	return out, len(out), nil
}

func (m *mockAppointmentRepo) ListByStaff(_ context.Context, staffID uuid.UUID, date time.Time, limit, offset int) ([]*Appointment, int, error) {
	var out []*Appointment
	for _, a := range m.byID {
		if a.StaffID == staffID && a.AppointmentDate.Equal(date) {
			out = append(out, a)
		}
	}
	return out, len(out), nil
}

func (m *mockAppointmentRepo) MarkMissed(_ context.Context, before time.Time) (int64, error) {
	var n int64
	for _, a := range m.byID {
		if a.Status == StatusUpcoming && a.AppointmentDate.Before(before) {
			a.Status = StatusMissed
			n++
		}
	}
	return n, nil
}

type mockVitalsRepo struct {
	vitals []*PatientVitals
}

func (m *mockVitalsRepo) Create(_ context.Context, v *PatientVitals) error {
	v.ID = uuid.New()
	v.RecordedAt = time.Now()
	m.vitals = append(m.vitals, v)
	return nil
}

func (m *mockVitalsRepo) ListByAppointment(_ context.Context, appointmentID uuid.UUID) ([]*PatientVitals, error) {
	var out []*PatientVitals
	for _, v := range m.vitals {
		if v.AppointmentID == appointmentID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (m *mockVitalsRepo) LatestByPatient(_ context.Context, patientID uuid.UUID) (*PatientVitals, error) {
	for i := len(m.vitals) - 1; i >= 0; i-- {
		if m.vitals[i].PatientID == patientID {
			return m.vitals[i], nil
		}
	}
	return nil, pgx.ErrNoRows
}

type mockRatingRepo struct {
	byAppointment map[uuid.UUID]*AppointmentRating
}

func newMockRatingRepo() *mockRatingRepo {
	return &mockRatingRepo{byAppointment: make(map[uuid.UUID]*AppointmentRating)}
}

func (m *mockRatingRepo) Create(_ context.Context, r *AppointmentRating) error {
	if _, ok := m.byAppointment[r.AppointmentID]; ok {
		return &pgconn.PgError{Code: "23505"}
	}
	r.ID = uuid.New()
	m.byAppointment[r.AppointmentID] = r
	return nil
}

func (m *mockRatingRepo) GetByAppointment(_ context.Context, appointmentID uuid.UUID) (*AppointmentRating, error) {
	r, ok := m.byAppointment[appointmentID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return r, nil
}

func (m *mockRatingRepo) AverageByStaff(_ context.Context, _ uuid.UUID) (float64, int, error) {
	if len(m.byAppointment) == 0 {
		return 0, 0, nil
	}
	var sum int
	for _, r := range m.byAppointment {
		sum += r.Rating
	}
	return float64(sum) / float64(len(m.byAppointment)), len(m.byAppointment), nil
}

type mockSlotDirectory struct {
	ids map[uuid.UUID]bool
}

func (m *mockSlotDirectory) GetByID(_ context.Context, id uuid.UUID) (*scheduling.Slot, error) {
	if !m.ids[id] {
		return nil, pgx.ErrNoRows
	}
	return &scheduling.Slot{ID: id, StartTime: "09:00", DurationMinutes: 20}, nil
}

type mockStaffDirectory struct {
	ids map[uuid.UUID]bool
}

func (m *mockStaffDirectory) GetByID(_ context.Context, id uuid.UUID) (*identity.Staff, error) {
	if !m.ids[id] {
		return nil, pgx.ErrNoRows
	}
	return &identity.Staff{ID: id, Role: identity.RoleDoctor, Active: true}, nil
}

// -- billing doubles (the booking engine drives the real billing.Service) --

type stubApptChargeRepo struct {
	charge *billing.AppointmentCharge
}

func (s *stubApptChargeRepo) Create(_ context.Context, c *billing.AppointmentCharge) error {
	c.ID = uuid.New()
	s.charge = c
	return nil
}

func (s *stubApptChargeRepo) ActiveByStaff(_ context.Context, staffID uuid.UUID) (*billing.AppointmentCharge, error) {
	if s.charge == nil || s.charge.StaffID != staffID {
		return nil, pgx.ErrNoRows
	}
	return s.charge, nil
}

func (s *stubApptChargeRepo) DeactivateByStaff(_ context.Context, _ uuid.UUID) error { return nil }

func (s *stubApptChargeRepo) ListByStaff(_ context.Context, _ uuid.UUID) ([]*billing.AppointmentCharge, error) {
	return nil, nil
}

type stubLabChargeRepo struct{}

func (stubLabChargeRepo) Create(_ context.Context, _ *billing.LabTestCharge) error { return nil }
func (stubLabChargeRepo) ActiveByTestType(_ context.Context, _ int64) (*billing.LabTestCharge, error) {
	return nil, pgx.ErrNoRows
}
func (stubLabChargeRepo) DeactivateByTestType(_ context.Context, _ int64) error { return nil }

type stubTransactionRepo struct {
	byReference map[string]*billing.Transaction
}

func (s *stubTransactionRepo) Create(_ context.Context, t *billing.Transaction) error {
	if _, ok := s.byReference[t.Reference]; ok {
		return &pgconn.PgError{Code: "23505"}
	}
	t.ID = uuid.New()
	s.byReference[t.Reference] = t
	return nil
}

func (s *stubTransactionRepo) GetByID(_ context.Context, id uuid.UUID) (*billing.Transaction, error) {
	for _, t := range s.byReference {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (s *stubTransactionRepo) GetByReference(_ context.Context, ref string) (*billing.Transaction, error) {
	t, ok := s.byReference[ref]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return t, nil
}

func (s *stubTransactionRepo) ListByPatient(_ context.Context, _ uuid.UUID, _, _ int) ([]*billing.Transaction, int, error) {
	return nil, 0, nil
}

type stubInvoiceRepo struct {
	invoices []*billing.Invoice
	failNext bool
}

func (s *stubInvoiceRepo) Create(_ context.Context, inv *billing.Invoice) error {
	if s.failNext {
		s.failNext = false
		return errors.New("storage unavailable")
	}
	inv.ID = uuid.New()
	s.invoices = append(s.invoices, inv)
	return nil
}

func (s *stubInvoiceRepo) GetByID(_ context.Context, _ uuid.UUID) (*billing.Invoice, error) {
	return nil, pgx.ErrNoRows
}

func (s *stubInvoiceRepo) ListByPatient(_ context.Context, _ uuid.UUID, _, _ int) ([]*billing.Invoice, int, error) {
	return nil, 0, nil
}

func (s *stubInvoiceRepo) UpdateStatus(_ context.Context, _ uuid.UUID, _ string) error { return nil }

type bookingTestEnv struct {
	svc          *Service
	appointments *mockAppointmentRepo
	ratings      *mockRatingRepo
	slots        *mockSlotDirectory
	staff        *mockStaffDirectory
	charges      *stubApptChargeRepo
	invoices     *stubInvoiceRepo
}

func newBookingTestEnv() *bookingTestEnv {
	env := &bookingTestEnv{
		appointments: newMockAppointmentRepo(),
		ratings:      newMockRatingRepo(),
		slots:        &mockSlotDirectory{ids: make(map[uuid.UUID]bool)},
		staff:        &mockStaffDirectory{ids: make(map[uuid.UUID]bool)},
		charges:      &stubApptChargeRepo{},
		invoices:     &stubInvoiceRepo{},
	}
	billingSvc := billing.NewService(env.charges, stubLabChargeRepo{},
		&stubTransactionRepo{byReference: make(map[string]*billing.Transaction)}, env.invoices, nil)
	env.svc = NewService(env.appointments, &mockVitalsRepo{}, env.ratings,
		env.slots, env.staff, billingSvc, nil, zerolog.Nop())
	env.svc.now = func() time.Time {
		return time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	}
	return env
}

func (env *bookingTestEnv) newBooking(t *testing.T) *BookingRequest {
	t.Helper()
	staffID := uuid.New()
	slotID := uuid.New()
	env.staff.ids[staffID] = true
	env.slots.ids[slotID] = true
	return &BookingRequest{
		PatientID: uuid.New(),
		StaffID:   staffID,
		SlotID:    slotID,
		Date:      time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
		Reason:    "checkup",
	}
}

func TestBook(t *testing.T) {
	env := newBookingTestEnv()
	req := env.newBooking(t)

	a, err := env.svc.Book(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Status != StatusUpcoming {
		t.Errorf("expected upcoming, got %q", a.Status)
	}
	if a.ID == uuid.Nil {
		t.Error("expected appointment id")
	}
}

func TestBook_ConcurrentAttemptsOneWinner(t *testing.T) {
	env := newBookingTestEnv()
	req := env.newBooking(t)

	const attempts = 16
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r := *req
			r.PatientID = uuid.New()
			_, errs[i] = env.svc.Book(context.Background(), &r)
		}(i)
	}
	wg.Wait()

	var won, taken int
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, ErrSlotTaken):
			taken++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if won != 1 {
		t.Errorf("expected exactly one booking to win, got %d", won)
	}
	if taken != attempts-1 {
		t.Errorf("expected %d ErrSlotTaken, got %d", attempts-1, taken)
	}
}

func TestBook_RejectsDuplicateTriple(t *testing.T) {
	env := newBookingTestEnv()
	ctx := context.Background()
	req := env.newBooking(t)

	if _, err := env.svc.Book(ctx, req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second := *req
	second.PatientID = uuid.New()
	if _, err := env.svc.Book(ctx, &second); !errors.Is(err, ErrSlotTaken) {
		t.Errorf("expected ErrSlotTaken, got %v", err)
	}

	// Same slot on a different date is fine.
	third := *req
	third.PatientID = uuid.New()
	third.Date = req.Date.AddDate(0, 0, 1)
	if _, err := env.svc.Book(ctx, &third); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestBook_UnknownStaffOrSlot(t *testing.T) {
	env := newBookingTestEnv()
	ctx := context.Background()
	req := env.newBooking(t)

	bad := *req
	bad.StaffID = uuid.New()
	if _, err := env.svc.Book(ctx, &bad); err == nil {
		t.Error("expected error for unknown staff")
	}
	bad = *req
	bad.SlotID = uuid.New()
	if _, err := env.svc.Book(ctx, &bad); err == nil {
		t.Error("expected error for unknown slot")
	}
}

func TestBookWithPayment(t *testing.T) {
	env := newBookingTestEnv()
	ctx := context.Background()
	req := env.newBooking(t)
	req.TransactionReference = "TXN-2001"
	env.charges.charge = &billing.AppointmentCharge{
		ID: uuid.New(), StaffID: req.StaffID, Amount: 500, Currency: "INR", Active: true,
	}

	result, err := env.svc.BookWithPayment(ctx, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Appointment.TransactionID == nil {
		t.Error("expected appointment to reference its transaction")
	}
	if result.Transaction.Status != "completed" {
		t.Errorf("expected completed transaction, got %q", result.Transaction.Status)
	}
	if result.Invoice == nil {
		t.Fatal("expected an invoice")
	}
	if math.Abs(result.Invoice.Total-525) > 1e-9 {
		t.Errorf("expected total 525 (500 + 5%% tax), got %v", result.Invoice.Total)
	}
	if result.InvoiceError != "" {
		t.Errorf("unexpected invoice error: %s", result.InvoiceError)
	}
}

func TestBookWithPayment_NoActiveCharge(t *testing.T) {
	env := newBookingTestEnv()
	req := env.newBooking(t)
	req.TransactionReference = "TXN-2001"

	_, err := env.svc.BookWithPayment(context.Background(), req)
	if !errors.Is(err, billing.ErrNoActiveCharge) {
		t.Errorf("expected ErrNoActiveCharge, got %v", err)
	}
}

func TestBookWithPayment_ReusedReference(t *testing.T) {
	env := newBookingTestEnv()
	ctx := context.Background()
	req := env.newBooking(t)
	req.TransactionReference = "TXN-2001"
	env.charges.charge = &billing.AppointmentCharge{
		ID: uuid.New(), StaffID: req.StaffID, Amount: 500, Currency: "INR", Active: true,
	}
	if _, err := env.svc.BookWithPayment(ctx, req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	second := env.newBooking(t)
	second.TransactionReference = "TXN-2001"
	env.charges.charge = &billing.AppointmentCharge{
		ID: uuid.New(), StaffID: second.StaffID, Amount: 500, Currency: "INR", Active: true,
	}
	_, err := env.svc.BookWithPayment(ctx, second)
	if !errors.Is(err, billing.ErrReferenceUsed) {
		t.Errorf("expected ErrReferenceUsed, got %v", err)
	}
}

func TestBookWithPayment_InvoiceFailureIsSecondary(t *testing.T) {
	env := newBookingTestEnv()
	req := env.newBooking(t)
	req.TransactionReference = "TXN-2001"
	env.charges.charge = &billing.AppointmentCharge{
		ID: uuid.New(), StaffID: req.StaffID, Amount: 500, Currency: "INR", Active: true,
	}
	env.invoices.failNext = true

	result, err := env.svc.BookWithPayment(context.Background(), req)
	if err != nil {
		t.Fatalf("booking must succeed despite invoice failure, got %v", err)
	}
	if result.Appointment == nil || result.Transaction == nil {
		t.Fatal("expected booking and payment to stand")
	}
	if result.Invoice != nil {
		t.Error("expected no invoice")
	}
	if result.InvoiceError == "" {
		t.Error("expected the invoice failure to be reported")
	}
}

func TestReschedule(t *testing.T) {
	env := newBookingTestEnv()
	ctx := context.Background()
	req := env.newBooking(t)
	a, err := env.svc.Book(ctx, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	newSlot := uuid.New()
	env.slots.ids[newSlot] = true
	newDate := req.Date.AddDate(0, 0, 2)

	moved, err := env.svc.Reschedule(ctx, a.ID, newSlot, newDate)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if moved.ID != a.ID {
		t.Error("reschedule must keep the appointment id")
	}
	if moved.SlotID != newSlot || !moved.AppointmentDate.Equal(newDate) {
		t.Errorf("slot/date not updated: %+v", moved)
	}
}

func TestReschedule_ConflictOnTarget(t *testing.T) {
	env := newBookingTestEnv()
	ctx := context.Background()
	first := env.newBooking(t)
	if _, err := env.svc.Book(ctx, first); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	second := *first
	second.PatientID = uuid.New()
	second.SlotID = uuid.New()
	env.slots.ids[second.SlotID] = true
	b, err := env.svc.Book(ctx, &second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Moving b onto first's slot and date must conflict.
	_, err = env.svc.Reschedule(ctx, b.ID, first.SlotID, first.Date)
	if !errors.Is(err, ErrSlotTaken) {
		t.Errorf("expected ErrSlotTaken, got %v", err)
	}
}

func TestReschedule_OnlyUpcoming(t *testing.T) {
	env := newBookingTestEnv()
	ctx := context.Background()
	req := env.newBooking(t)
	a, err := env.svc.Book(ctx, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a.Status = StatusCompleted

	_, err = env.svc.Reschedule(ctx, a.ID, req.SlotID, req.Date)
	if !errors.Is(err, ErrNotUpcoming) {
		t.Errorf("expected ErrNotUpcoming, got %v", err)
	}
}

func TestLazyMissedTransition(t *testing.T) {
	env := newBookingTestEnv()
	ctx := context.Background()
	req := env.newBooking(t)
	req.Date = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) // before "today" (2024-06-15)
	a, err := env.svc.Book(ctx, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := env.svc.Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusMissed {
		t.Errorf("expected missed after read, got %q", got.Status)
	}

	// Second read leaves it missed; the sweep is idempotent.
	again, err := env.svc.Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again.Status != StatusMissed {
		t.Errorf("expected missed to be stable, got %q", again.Status)
	}
}

func TestLazyMissed_FutureAppointmentsUntouched(t *testing.T) {
	env := newBookingTestEnv()
	ctx := context.Background()
	req := env.newBooking(t)
	req.Date = time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	a, _ := env.svc.Book(ctx, req)

	got, err := env.svc.Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusUpcoming {
		t.Errorf("expected upcoming, got %q", got.Status)
	}
}

func TestRate(t *testing.T) {
	env := newBookingTestEnv()
	ctx := context.Background()
	req := env.newBooking(t)
	a, _ := env.svc.Book(ctx, req)

	r, err := env.svc.Rate(ctx, req.PatientID, a.ID, 4, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Rating != 4 {
		t.Errorf("expected rating 4, got %d", r.Rating)
	}
}

func TestRate_OwnAppointmentsOnly(t *testing.T) {
	env := newBookingTestEnv()
	ctx := context.Background()
	req := env.newBooking(t)
	a, _ := env.svc.Book(ctx, req)

	_, err := env.svc.Rate(ctx, uuid.New(), a.ID, 4, nil)
	if !errors.Is(err, ErrNotYourAppointment) {
		t.Errorf("expected ErrNotYourAppointment, got %v", err)
	}
}

func TestRate_OncePerAppointment(t *testing.T) {
	env := newBookingTestEnv()
	ctx := context.Background()
	req := env.newBooking(t)
	a, _ := env.svc.Book(ctx, req)

	if _, err := env.svc.Rate(ctx, req.PatientID, a.ID, 4, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := env.svc.Rate(ctx, req.PatientID, a.ID, 5, nil)
	if !errors.Is(err, ErrAlreadyRated) {
		t.Errorf("expected ErrAlreadyRated, got %v", err)
	}
}

func TestRate_RangeValidation(t *testing.T) {
	env := newBookingTestEnv()
	ctx := context.Background()
	req := env.newBooking(t)
	a, _ := env.svc.Book(ctx, req)

	if _, err := env.svc.Rate(ctx, req.PatientID, a.ID, 0, nil); err == nil {
		t.Error("expected error for rating below range")
	}
	if _, err := env.svc.Rate(ctx, req.PatientID, a.ID, 6, nil); err == nil {
		t.Error("expected error for rating above range")
	}
}
