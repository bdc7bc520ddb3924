package labs

import (
	"time"

	"github.com/google/uuid"
)

// Lab test priorities.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

var validPriorities = map[string]bool{
	PriorityHigh: true, PriorityMedium: true, PriorityLow: true,
}

// LabType is a category of lab (imaging, pathology, ...) declaring which
// test types it can run.
type LabType struct {
	ID             int64     `db:"id" json:"id"`
	Name           string    `db:"name" json:"name"`
	SupportedTests []int64   `db:"supported_tests" json:"supported_tests"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// Supports reports whether the lab type can run the given test type.
func (t *LabType) Supports(testTypeID int64) bool {
	for _, id := range t.SupportedTests {
		if id == testTypeID {
			return true
		}
	}
	return false
}

// Lab is one physical lab instance of a LabType. Non-functional labs are
// never assigned new tests.
type Lab struct {
	ID         int64     `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	LabTypeID  int64     `db:"lab_type_id" json:"lab_type_id"`
	Functional bool      `db:"functional" json:"functional"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// LabTestType is a kind of test a lab can run.
type LabTestType struct {
	ID            int64             `db:"id" json:"id"`
	Name          string            `db:"name" json:"name"`
	ImageRequired bool              `db:"image_required" json:"image_required"`
	ResultSchema  map[string]string `db:"result_schema" json:"result_schema"`
	CreatedAt     time.Time         `db:"created_at" json:"created_at"`
}

// LabTest is one ordered test. Results may only be attached after a payment
// transaction has been linked.
type LabTest struct {
	ID              int64             `db:"id" json:"id"`
	AppointmentID   uuid.UUID         `db:"appointment_id" json:"appointment_id"`
	TestTypeID      int64             `db:"test_type_id" json:"test_type_id"`
	LabID           int64             `db:"lab_id" json:"lab_id"`
	TestDatetime    time.Time         `db:"test_datetime" json:"test_datetime"`
	Priority        string            `db:"priority" json:"priority"`
	TestResult      map[string]string `db:"test_result" json:"test_result,omitempty"`
	ResultImagePath *string           `db:"result_image_path" json:"result_image_path,omitempty"`
	TransactionID   *uuid.UUID        `db:"transaction_id" json:"transaction_id,omitempty"`
	CreatedAt       time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time         `db:"updated_at" json:"updated_at"`
}
