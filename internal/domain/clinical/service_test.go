package clinical

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/medicore/hms/internal/domain/appointments"
)

type mockDiagnosisRepo struct {
	byID map[uuid.UUID]*Diagnosis
}

func newMockDiagnosisRepo() *mockDiagnosisRepo {
	return &mockDiagnosisRepo{byID: make(map[uuid.UUID]*Diagnosis)}
}

func (m *mockDiagnosisRepo) Create(_ context.Context, d *Diagnosis) error {
	d.ID = uuid.New()
	cp := *d
	m.byID[d.ID] = &cp
	return nil
}

func (m *mockDiagnosisRepo) GetByID(_ context.Context, id uuid.UUID) (*Diagnosis, error) {
	d, ok := m.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *d
	return &cp, nil
}

func (m *mockDiagnosisRepo) ListByAppointment(_ context.Context, appointmentID uuid.UUID) ([]*Diagnosis, error) {
	var out []*Diagnosis
	for _, d := range m.byID {
		if d.AppointmentID == appointmentID {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockDiagnosisRepo) SetLabTestRequired(_ context.Context, id uuid.UUID) error {
	d, ok := m.byID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	d.LabTestRequired = true
	return nil
}

type mockPrescriptionRepo struct {
	items []*Prescription
}

func (m *mockPrescriptionRepo) Create(_ context.Context, p *Prescription) error {
	p.ID = uuid.New()
	cp := *p
	m.items = append(m.items, &cp)
	return nil
}

func (m *mockPrescriptionRepo) ListByDiagnosis(_ context.Context, diagnosisID uuid.UUID) ([]*Prescription, error) {
	var out []*Prescription
	for _, p := range m.items {
		if p.DiagnosisID == diagnosisID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

type mockMedicineRepo struct {
	items []*Medicine
}

func (m *mockMedicineRepo) Create(_ context.Context, med *Medicine) error {
	med.ID = int64(len(m.items) + 1)
	cp := *med
	m.items = append(m.items, &cp)
	return nil
}

func (m *mockMedicineRepo) List(_ context.Context) ([]*Medicine, error) {
	return m.items, nil
}

type mockOrganRepo struct {
	items []*TargetOrgan
}

func (m *mockOrganRepo) Create(_ context.Context, o *TargetOrgan) error {
	o.ID = int64(len(m.items) + 1)
	cp := *o
	m.items = append(m.items, &cp)
	return nil
}

func (m *mockOrganRepo) List(_ context.Context) ([]*TargetOrgan, error) {
	return m.items, nil
}

type mockAppointmentStore struct {
	byID map[uuid.UUID]*appointments.Appointment
}

func newMockAppointmentStore() *mockAppointmentStore {
	return &mockAppointmentStore{byID: make(map[uuid.UUID]*appointments.Appointment)}
}

func (m *mockAppointmentStore) GetByID(_ context.Context, id uuid.UUID) (*appointments.Appointment, error) {
	a, ok := m.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *a
	return &cp, nil
}

func (m *mockAppointmentStore) Update(_ context.Context, a *appointments.Appointment) error {
	if _, ok := m.byID[a.ID]; !ok {
		return pgx.ErrNoRows
	}
	cp := *a
	m.byID[a.ID] = &cp
	return nil
}

type clinicalTestEnv struct {
	svc          *Service
	diagnoses    *mockDiagnosisRepo
	appointments *mockAppointmentStore
}

func newClinicalTestEnv() *clinicalTestEnv {
	diagnoses := newMockDiagnosisRepo()
	appts := newMockAppointmentStore()
	svc := NewService(diagnoses, &mockPrescriptionRepo{}, &mockMedicineRepo{}, &mockOrganRepo{}, appts, nil)
	return &clinicalTestEnv{svc: svc, diagnoses: diagnoses, appointments: appts}
}

func (env *clinicalTestEnv) addAppointment(status string) uuid.UUID {
	id := uuid.New()
	env.appointments.byID[id] = &appointments.Appointment{
		ID:        id,
		PatientID: uuid.New(),
		StaffID:   uuid.New(),
		SlotID:    uuid.New(),
		Status:    status,
	}
	return id
}

func TestCreateDiagnosis_CompletesAppointment(t *testing.T) {
	env := newClinicalTestEnv()
	apptID := env.addAppointment(appointments.StatusUpcoming)

	d := &Diagnosis{AppointmentID: apptID, StaffID: uuid.New(), Summary: "Seasonal flu"}
	if err := env.svc.CreateDiagnosis(context.Background(), d); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.ID == uuid.Nil {
		t.Fatal("expected diagnosis id to be assigned")
	}
	a, _ := env.appointments.GetByID(context.Background(), apptID)
	if a.Status != appointments.StatusCompleted {
		t.Fatalf("expected appointment completed, got %s", a.Status)
	}
}

func TestCreateDiagnosis_SecondDiagnosisOnCompleted(t *testing.T) {
	env := newClinicalTestEnv()
	apptID := env.addAppointment(appointments.StatusCompleted)

	for _, summary := range []string{"Hypertension stage 1", "Mild anemia"} {
		d := &Diagnosis{AppointmentID: apptID, StaffID: uuid.New(), Summary: summary}
		if err := env.svc.CreateDiagnosis(context.Background(), d); err != nil {
			t.Fatalf("unexpected error for %q: %v", summary, err)
		}
	}

	items, err := env.svc.DiagnosesForAppointment(context.Background(), apptID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 diagnoses, got %d", len(items))
	}
	a, _ := env.appointments.GetByID(context.Background(), apptID)
	if a.Status != appointments.StatusCompleted {
		t.Fatalf("expected appointment to stay completed, got %s", a.Status)
	}
}

func TestCreateDiagnosis_RejectsMissedAppointment(t *testing.T) {
	env := newClinicalTestEnv()
	apptID := env.addAppointment(appointments.StatusMissed)

	d := &Diagnosis{AppointmentID: apptID, StaffID: uuid.New(), Summary: "Follow-up"}
	err := env.svc.CreateDiagnosis(context.Background(), d)
	if !errors.Is(err, ErrAppointmentClosed) {
		t.Fatalf("expected ErrAppointmentClosed, got %v", err)
	}
}

func TestCreateDiagnosis_Validation(t *testing.T) {
	env := newClinicalTestEnv()
	apptID := env.addAppointment(appointments.StatusUpcoming)

	cases := []struct {
		name string
		d    *Diagnosis
	}{
		{"missing summary", &Diagnosis{AppointmentID: apptID, StaffID: uuid.New(), Summary: "  "}},
		{"missing staff", &Diagnosis{AppointmentID: apptID, Summary: "Flu"}},
		{"unknown appointment", &Diagnosis{AppointmentID: uuid.New(), StaffID: uuid.New(), Summary: "Flu"}},
	}
	for _, tc := range cases {
		if err := env.svc.CreateDiagnosis(context.Background(), tc.d); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}

func TestPrescribe(t *testing.T) {
	env := newClinicalTestEnv()
	apptID := env.addAppointment(appointments.StatusUpcoming)

	d := &Diagnosis{AppointmentID: apptID, StaffID: uuid.New(), Summary: "Bacterial infection"}
	if err := env.svc.CreateDiagnosis(context.Background(), d); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p := &Prescription{DiagnosisID: d.ID, MedicineName: "Amoxicillin", Dosage: "500mg", Frequency: "twice daily", DurationDays: 7}
	if err := env.svc.Prescribe(context.Background(), p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	items, err := env.svc.PrescriptionsForDiagnosis(context.Background(), d.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 1 || items[0].MedicineName != "Amoxicillin" {
		t.Fatalf("unexpected prescriptions: %+v", items)
	}
}

func TestPrescribe_Validation(t *testing.T) {
	env := newClinicalTestEnv()
	apptID := env.addAppointment(appointments.StatusUpcoming)

	d := &Diagnosis{AppointmentID: apptID, StaffID: uuid.New(), Summary: "Migraine"}
	if err := env.svc.CreateDiagnosis(context.Background(), d); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := env.svc.Prescribe(context.Background(), &Prescription{DiagnosisID: d.ID, MedicineName: ""}); err == nil {
		t.Fatal("expected error for missing medicine name")
	}
	if err := env.svc.Prescribe(context.Background(), &Prescription{DiagnosisID: d.ID, MedicineName: "Ibuprofen", DurationDays: -1}); err == nil {
		t.Fatal("expected error for negative duration")
	}
	if err := env.svc.Prescribe(context.Background(), &Prescription{DiagnosisID: uuid.New(), MedicineName: "Ibuprofen"}); err == nil {
		t.Fatal("expected error for unknown diagnosis")
	}
}

func TestReferenceData(t *testing.T) {
	env := newClinicalTestEnv()

	organ := &TargetOrgan{Name: "Liver"}
	if err := env.svc.AddTargetOrgan(context.Background(), organ); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	med := &Medicine{Name: "Paracetamol", TargetOrganID: &organ.ID}
	if err := env.svc.AddMedicine(context.Background(), med); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := env.svc.AddMedicine(context.Background(), &Medicine{Name: " "}); err == nil {
		t.Fatal("expected error for blank medicine name")
	}

	meds, err := env.svc.ListMedicines(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(meds) != 1 || meds[0].Name != "Paracetamol" {
		t.Fatalf("unexpected medicines: %+v", meds)
	}
}
