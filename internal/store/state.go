// Package store is the console's single source of view state: the signed-in
// session and a cached copy of every collection the dashboards show. State
// only changes through Reduce, a pure function over a closed set of actions;
// Store wraps it with the network operations that produce those actions.
package store

import (
	"github.com/ehr/hospital/internal/domain/billing"
	"github.com/ehr/hospital/internal/domain/clinical"
	"github.com/ehr/hospital/internal/domain/identity"
	"github.com/ehr/hospital/internal/domain/inventory"
	"github.com/ehr/hospital/internal/domain/nursing"
	"github.com/ehr/hospital/internal/domain/patient"
	"github.com/ehr/hospital/internal/domain/scheduling"
	"github.com/ehr/hospital/internal/domain/visitor"
	"github.com/ehr/hospital/internal/domain/ward"
)

// SessionStatus is the authentication state machine.
type SessionStatus int

const (
	Anonymous SessionStatus = iota
	Authenticating
	Authenticated
)

func (s SessionStatus) String() string {
	switch s {
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	default:
		return "anonymous"
	}
}

// Session is the signed-in identity. IsAuthenticated is true exactly when
// CurrentUser is set.
type Session struct {
	CurrentUser     *identity.User
	IsAuthenticated bool
	Token           string
	Status          SessionStatus
}

// State is an immutable value: reducers return a new State and never write
// through the slices or pointers of the one they were given.
type State struct {
	Session Session
	Loading bool
	Err     error

	Patients           Collection[patient.Patient]
	Staff              Collection[identity.StaffMember]
	Wards              Collection[ward.Ward]
	Appointments       Collection[scheduling.Appointment]
	MedicalRecords     Collection[clinical.MedicalRecord]
	Prescriptions      Collection[clinical.Prescription]
	LabTests           Collection[clinical.LabTest]
	Inventory          Collection[inventory.Item]
	Bills              Collection[billing.Bill]
	MedicationSchedule Collection[nursing.MedicationScheduleEntry]
	Visitors           Collection[visitor.Visitor]

	// applied holds the sequence number of the last Loaded applied per field.
	applied [fieldCount]uint64
}

// Initial returns the empty, signed-out state.
func Initial() State { return State{} }

// ErrorMessage returns the recorded error text, or "".
func (s State) ErrorMessage() string {
	if s.Err == nil {
		return ""
	}
	return s.Err.Error()
}

// Counts reports the size of every collection keyed by field name.
func (s State) Counts() map[string]int {
	return map[string]int{
		Patients.name:           s.Patients.Len(),
		Staff.name:              s.Staff.Len(),
		Wards.name:              s.Wards.Len(),
		Appointments.name:       s.Appointments.Len(),
		MedicalRecords.name:     s.MedicalRecords.Len(),
		Prescriptions.name:      s.Prescriptions.Len(),
		LabTests.name:           s.LabTests.Len(),
		Inventory.name:          s.Inventory.Len(),
		Bills.name:              s.Bills.Len(),
		MedicationSchedule.name: s.MedicationSchedule.Len(),
		Visitors.name:           s.Visitors.Len(),
	}
}

// Empty reports whether every collection is empty.
func (s State) Empty() bool {
	for _, n := range s.Counts() {
		if n > 0 {
			return false
		}
	}
	return true
}
