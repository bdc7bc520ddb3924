package identity

import (
	"time"

	"github.com/google/uuid"
)

// Staff role vocabulary.
const (
	RoleAdmin         = "admin"
	RoleDoctor        = "doctor"
	RoleNurse         = "nurse"
	RoleLabTechnician = "lab_technician"
	RoleReceptionist  = "receptionist"
)

// ValidStaffRoles is the closed set of roles assignable to staff.
var ValidStaffRoles = map[string]bool{
	RoleAdmin:         true,
	RoleDoctor:        true,
	RoleNurse:         true,
	RoleLabTechnician: true,
	RoleReceptionist:  true,
}

// Patient maps to the patients table.
type Patient struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	Name      string     `db:"name" json:"name"`
	Email     string     `db:"email" json:"email"`
	Mobile    string     `db:"mobile" json:"mobile"`
	DOB       *time.Time `db:"dob" json:"dob,omitempty"`
	Gender    *string    `db:"gender" json:"gender,omitempty"`
	Address   *string    `db:"address" json:"address,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// Staff maps to the staff table. Doctors additionally carry a
// specialization used for patient-facing listings.
type Staff struct {
	ID             uuid.UUID `db:"id" json:"id"`
	Name           string    `db:"name" json:"name"`
	Email          string    `db:"email" json:"email"`
	Mobile         string    `db:"mobile" json:"mobile"`
	Role           string    `db:"role" json:"role"`
	Specialization *string   `db:"specialization" json:"specialization,omitempty"`
	Active         bool      `db:"active" json:"active"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// Permissions is the typed permission set carried by a Role. Every grant is
// an explicit field; there is no open-ended permission map to probe.
type Permissions struct {
	ManageStaff      bool `json:"manage_staff"`
	ManageSchedules  bool `json:"manage_schedules"`
	RecordDiagnosis  bool `json:"record_diagnosis"`
	ManageLabs       bool `json:"manage_labs"`
	RecordLabResults bool `json:"record_lab_results"`
	ManageBilling    bool `json:"manage_billing"`
	ViewReports      bool `json:"view_reports"`
}

// Role maps to the roles table: a named permission set.
type Role struct {
	ID          uuid.UUID   `db:"id" json:"id"`
	Name        string      `db:"name" json:"name"`
	Permissions Permissions `db:"permissions" json:"permissions"`
	CreatedAt   time.Time   `db:"created_at" json:"created_at"`
}
