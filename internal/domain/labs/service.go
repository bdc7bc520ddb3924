package labs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/medicore/hms/internal/domain/billing"
	"github.com/medicore/hms/internal/platform/db"
)

var (
	ErrPastDatetime    = errors.New("test datetime must be in the future")
	ErrNoFunctionalLab = errors.New("no functional lab available for the required lab type")
	ErrPaymentRequired = errors.New("lab test payment must be recorded before results")
	ErrAlreadyPaid     = errors.New("lab test already paid")
	ErrImageRequired   = errors.New("this test type requires a result image")
)

// DiagnosisMarker flags a diagnosis as requiring lab tests. Satisfied by
// clinical.DiagnosisRepository.
type DiagnosisMarker interface {
	SetLabTestRequired(ctx context.Context, id uuid.UUID) error
}

type Service struct {
	labTypes  LabTypeRepository
	labs      LabRepository
	testTypes LabTestTypeRepository
	labTests  LabTestRepository
	diagnoses DiagnosisMarker
	billing   *billing.Service
	pool      *pgxpool.Pool
	logger    zerolog.Logger
	now       func() time.Time
}

func NewService(
	labTypes LabTypeRepository,
	labRepo LabRepository,
	testTypes LabTestTypeRepository,
	labTests LabTestRepository,
	diagnoses DiagnosisMarker,
	billingSvc *billing.Service,
	pool *pgxpool.Pool,
	logger zerolog.Logger,
) *Service {
	return &Service{
		labTypes:  labTypes,
		labs:      labRepo,
		testTypes: testTypes,
		labTests:  labTests,
		diagnoses: diagnoses,
		billing:   billingSvc,
		pool:      pool,
		logger:    logger.With().Str("component", "labs").Logger(),
		now:       time.Now,
	}
}

// RouteRequest orders a set of tests against one appointment.
type RouteRequest struct {
	AppointmentID uuid.UUID  `json:"appointment_id"`
	DiagnosisID   *uuid.UUID `json:"diagnosis_id,omitempty"`
	TestTypeIDs   []int64    `json:"test_type_ids"`
	TestDatetime  time.Time  `json:"test_datetime"`
	Priority      string     `json:"priority"`
}

// loadWindow is the interval around the requested datetime used to measure
// a lab's existing load.
const loadWindow = time.Hour

// RouteTests maps each requested test type to a lab and creates one LabTest
// per type. Test types sharing a supporting lab type are consolidated into
// the same lab; within a lab type the functional lab with the fewest tests
// scheduled around the requested datetime wins, lowest id on ties.
func (s *Service) RouteTests(ctx context.Context, req RouteRequest) ([]*LabTest, error) {
	if req.AppointmentID == uuid.Nil {
		return nil, fmt.Errorf("appointment_id is required")
	}
	if len(req.TestTypeIDs) == 0 {
		return nil, fmt.Errorf("at least one test type is required")
	}
	if !req.TestDatetime.After(s.now()) {
		return nil, ErrPastDatetime
	}
	if req.Priority == "" {
		req.Priority = PriorityMedium
	}
	if !validPriorities[req.Priority] {
		return nil, fmt.Errorf("invalid priority %q", req.Priority)
	}
	for _, id := range req.TestTypeIDs {
		if _, err := s.testTypes.GetByID(ctx, id); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("test type %d not found", id)
			}
			return nil, err
		}
	}

	groups, err := s.groupByLabType(ctx, req.TestTypeIDs)
	if err != nil {
		return nil, err
	}

	// Resolve a concrete lab per group before creating anything, so a
	// routing failure leaves no partial order behind.
	labByType := make(map[int64]*Lab, len(groups))
	for _, g := range groups {
		lab, err := s.pickLab(ctx, g.labTypeID, req.TestDatetime)
		if err != nil {
			return nil, err
		}
		labByType[g.labTypeID] = lab
	}

	var created []*LabTest
	err = s.withTx(ctx, func(ctx context.Context) error {
		for _, g := range groups {
			lab := labByType[g.labTypeID]
			for _, testTypeID := range g.testTypeIDs {
				t := &LabTest{
					AppointmentID: req.AppointmentID,
					TestTypeID:    testTypeID,
					LabID:         lab.ID,
					TestDatetime:  req.TestDatetime,
					Priority:      req.Priority,
				}
				if err := s.labTests.Create(ctx, t); err != nil {
					return err
				}
				created = append(created, t)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if req.DiagnosisID != nil {
		if err := s.diagnoses.SetLabTestRequired(ctx, *req.DiagnosisID); err != nil && !errors.Is(err, pgx.ErrNoRows) {
			s.logger.Error().Err(err).Str("diagnosis_id", req.DiagnosisID.String()).
				Msg("failed to flag diagnosis for lab tests")
		}
	}
	return created, nil
}

type labTypeGroup struct {
	labTypeID   int64
	testTypeIDs []int64
}

// groupByLabType assigns each test type to a lab type, preferring a lab
// type already chosen for an earlier test type in the same request.
func (s *Service) groupByLabType(ctx context.Context, testTypeIDs []int64) ([]labTypeGroup, error) {
	labTypes, err := s.labTypes.List(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(labTypes, func(i, j int) bool { return labTypes[i].ID < labTypes[j].ID })

	supporting := make(map[int64][]int64, len(testTypeIDs))
	for _, testTypeID := range testTypeIDs {
		for _, lt := range labTypes {
			if lt.Supports(testTypeID) {
				supporting[testTypeID] = append(supporting[testTypeID], lt.ID)
			}
		}
		if len(supporting[testTypeID]) == 0 {
			return nil, fmt.Errorf("no lab type supports test type %d", testTypeID)
		}
	}

	var groups []labTypeGroup
	index := make(map[int64]int)
	for _, testTypeID := range testTypeIDs {
		assigned := false
		for _, labTypeID := range supporting[testTypeID] {
			if i, ok := index[labTypeID]; ok {
				groups[i].testTypeIDs = append(groups[i].testTypeIDs, testTypeID)
				assigned = true
				break
			}
		}
		if !assigned {
			labTypeID := supporting[testTypeID][0]
			index[labTypeID] = len(groups)
			groups = append(groups, labTypeGroup{labTypeID: labTypeID, testTypeIDs: []int64{testTypeID}})
		}
	}
	return groups, nil
}

// pickLab selects the functional lab of the type with the minimum number of
// tests scheduled within an hour of the requested datetime. Strict
// less-than over labs ordered by id makes the tie-break the lowest id.
func (s *Service) pickLab(ctx context.Context, labTypeID int64, at time.Time) (*Lab, error) {
	candidates, err := s.labs.ListFunctionalByType(ctx, labTypeID)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, ErrNoFunctionalLab
	}

	best := candidates[0]
	bestLoad := -1
	for _, lab := range candidates {
		load, err := s.labTests.CountInWindow(ctx, lab.ID, at.Add(-loadWindow), at.Add(loadWindow))
		if err != nil {
			return nil, err
		}
		if bestLoad < 0 || load < bestLoad {
			best = lab
			bestLoad = load
		}
	}
	return best, nil
}

// LabPaymentResult reports a lab test payment. InvoiceError is set when the
// payment went through but the invoice could not be generated.
type LabPaymentResult struct {
	Tests        []*LabTest           `json:"tests"`
	Transaction  *billing.Transaction `json:"transaction"`
	Invoice      *billing.Invoice     `json:"invoice,omitempty"`
	InvoiceError string               `json:"invoice_error,omitempty"`
}

// PayForLabTests records one payment covering the given tests and links it
// to each of them. Invoice generation happens after the payment commits and
// never fails the payment.
func (s *Service) PayForLabTests(ctx context.Context, patientID uuid.UUID, labTestIDs []int64, reference string) (*LabPaymentResult, error) {
	if len(labTestIDs) == 0 {
		return nil, fmt.Errorf("at least one lab test is required")
	}

	var (
		tests []*LabTest
		items []billing.InvoiceLine
		total float64
	)
	currency := ""
	for _, id := range labTestIDs {
		t, err := s.GetLabTest(ctx, id)
		if err != nil {
			return nil, err
		}
		if t.TransactionID != nil {
			return nil, ErrAlreadyPaid
		}
		charge, err := s.billing.ActiveLabTestCharge(ctx, t.TestTypeID)
		if err != nil {
			return nil, err
		}
		if currency == "" {
			currency = charge.Currency
		} else if charge.Currency != currency {
			return nil, billing.ErrMixedCurrency
		}
		testType, err := s.testTypes.GetByID(ctx, t.TestTypeID)
		if err != nil {
			return nil, err
		}
		tests = append(tests, t)
		total += charge.Amount
		items = append(items, billing.InvoiceLine{
			Description: "Lab test: " + testType.Name,
			Amount:      charge.Amount,
			Currency:    charge.Currency,
		})
	}

	result := &LabPaymentResult{Tests: tests}
	err := s.withTx(ctx, func(ctx context.Context) error {
		tx, err := s.billing.RecordPayment(ctx, reference, patientID, total, currency, "lab test fees")
		if err != nil {
			return err
		}
		result.Transaction = tx
		for _, t := range tests {
			t.TransactionID = &tx.ID
			if err := s.labTests.Update(ctx, t); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	invoice, err := s.billing.GenerateInvoice(ctx, patientID, result.Transaction.ID, items)
	if err != nil {
		s.logger.Error().Err(err).Str("transaction_id", result.Transaction.ID.String()).
			Msg("lab test payment recorded but invoice generation failed")
		result.InvoiceError = err.Error()
		return result, nil
	}
	result.Invoice = invoice
	return result, nil
}

// AddLabTestResults attaches results to a paid test. Unpaid tests are
// rejected regardless of caller.
func (s *Service) AddLabTestResults(ctx context.Context, labTestID int64, result map[string]string, imagePath *string) (*LabTest, error) {
	t, err := s.GetLabTest(ctx, labTestID)
	if err != nil {
		return nil, err
	}
	if t.TransactionID == nil {
		return nil, ErrPaymentRequired
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("test result is required")
	}
	testType, err := s.testTypes.GetByID(ctx, t.TestTypeID)
	if err != nil {
		return nil, err
	}
	if testType.ImageRequired && (imagePath == nil || *imagePath == "") {
		return nil, ErrImageRequired
	}
	t.TestResult = result
	t.ResultImagePath = imagePath
	if err := s.labTests.Update(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Service) GetLabTest(ctx context.Context, id int64) (*LabTest, error) {
	t, err := s.labTests.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("lab test %d not found", id)
		}
		return nil, err
	}
	return t, nil
}

func (s *Service) TestsForAppointment(ctx context.Context, appointmentID uuid.UUID) ([]*LabTest, error) {
	return s.labTests.ListByAppointment(ctx, appointmentID)
}

// TestsForPatient lists a patient's lab tests across all of their
// appointments, newest scheduled first.
func (s *Service) TestsForPatient(ctx context.Context, patientID uuid.UUID) ([]*LabTest, error) {
	return s.labTests.ListByPatient(ctx, patientID)
}

func (s *Service) TestsForLab(ctx context.Context, labID int64, limit, offset int) ([]*LabTest, int, error) {
	return s.labTests.ListByLab(ctx, labID, limit, offset)
}

// -- Reference data --

func (s *Service) AddLabType(ctx context.Context, t *LabType) error {
	if t.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(t.SupportedTests) == 0 {
		return fmt.Errorf("a lab type must support at least one test type")
	}
	return s.labTypes.Create(ctx, t)
}

func (s *Service) ListLabTypes(ctx context.Context) ([]*LabType, error) {
	return s.labTypes.List(ctx)
}

func (s *Service) AddLab(ctx context.Context, l *Lab) error {
	if l.Name == "" {
		return fmt.Errorf("name is required")
	}
	if _, err := s.labTypes.GetByID(ctx, l.LabTypeID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("lab type %d not found", l.LabTypeID)
		}
		return err
	}
	return s.labs.Create(ctx, l)
}

func (s *Service) ListLabs(ctx context.Context) ([]*Lab, error) {
	return s.labs.List(ctx)
}

func (s *Service) SetLabFunctional(ctx context.Context, id int64, functional bool) error {
	err := s.labs.SetFunctional(ctx, id, functional)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("lab %d not found", id)
	}
	return err
}

func (s *Service) AddLabTestType(ctx context.Context, t *LabTestType) error {
	if t.Name == "" {
		return fmt.Errorf("name is required")
	}
	return s.testTypes.Create(ctx, t)
}

func (s *Service) ListLabTestTypes(ctx context.Context) ([]*LabTestType, error) {
	return s.testTypes.List(ctx)
}

func (s *Service) withTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.pool == nil {
		return fn(ctx)
	}
	return db.WithTx(ctx, s.pool, fn)
}
