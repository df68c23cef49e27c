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

// Entity is anything cached in a Collection.
type Entity interface {
	EntityID() int64
}

// Collection is an ordered list of entities with unique ids. Every method
// that changes it returns a new Collection and leaves the receiver intact.
type Collection[T Entity] struct {
	items []T
}

// NewCollection builds a collection from server order. Repeated ids keep the
// position of their first occurrence and the value of their last.
func NewCollection[T Entity](items []T) Collection[T] {
	out := make([]T, 0, len(items))
	index := make(map[int64]int, len(items))
	for _, it := range items {
		if i, ok := index[it.EntityID()]; ok {
			out[i] = it
			continue
		}
		index[it.EntityID()] = len(out)
		out = append(out, it)
	}
	return Collection[T]{items: out}
}

func (c Collection[T]) Len() int { return len(c.items) }

// Items returns a copy of the elements in order.
func (c Collection[T]) Items() []T {
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}

// At returns the i-th element.
func (c Collection[T]) At(i int) T { return c.items[i] }

// Find returns the element with the given id.
func (c Collection[T]) Find(id int64) (T, bool) {
	for _, it := range c.items {
		if it.EntityID() == id {
			return it, true
		}
	}
	var zero T
	return zero, false
}

func (c Collection[T]) indexOf(id int64) int {
	for i, it := range c.items {
		if it.EntityID() == id {
			return i
		}
	}
	return -1
}

// Append adds item at the end, or replaces it in place when its id is
// already present.
func (c Collection[T]) Append(item T) Collection[T] {
	if i := c.indexOf(item.EntityID()); i >= 0 {
		return c.Replace(item)
	}
	out := make([]T, len(c.items), len(c.items)+1)
	copy(out, c.items)
	return Collection[T]{items: append(out, item)}
}

// Replace swaps the element whose id matches item. Without a match the
// collection is returned unchanged.
func (c Collection[T]) Replace(item T) Collection[T] {
	i := c.indexOf(item.EntityID())
	if i < 0 {
		return c
	}
	out := make([]T, len(c.items))
	copy(out, c.items)
	out[i] = item
	return Collection[T]{items: out}
}

// Remove drops the element with id.
func (c Collection[T]) Remove(id int64) Collection[T] {
	i := c.indexOf(id)
	if i < 0 {
		return c
	}
	out := make([]T, 0, len(c.items)-1)
	out = append(out, c.items[:i]...)
	out = append(out, c.items[i+1:]...)
	return Collection[T]{items: out}
}

type fieldKind int

const (
	fieldPatients fieldKind = iota
	fieldStaff
	fieldWards
	fieldAppointments
	fieldMedicalRecords
	fieldPrescriptions
	fieldLabTests
	fieldInventory
	fieldBills
	fieldMedicationSchedule
	fieldVisitors
	fieldCount
)

// Field selects one collection of State.
type Field[T Entity] struct {
	kind fieldKind
	name string
	ref  func(*State) *Collection[T]
}

// Name is the collection's display name.
func (f Field[T]) Name() string { return f.name }

// Get reads the collection from s.
func (f Field[T]) Get(s State) Collection[T] { return *f.ref(&s) }

var (
	Patients = Field[patient.Patient]{fieldPatients, "patients",
		func(s *State) *Collection[patient.Patient] { return &s.Patients }}
	Staff = Field[identity.StaffMember]{fieldStaff, "staff",
		func(s *State) *Collection[identity.StaffMember] { return &s.Staff }}
	Wards = Field[ward.Ward]{fieldWards, "wards",
		func(s *State) *Collection[ward.Ward] { return &s.Wards }}
	Appointments = Field[scheduling.Appointment]{fieldAppointments, "appointments",
		func(s *State) *Collection[scheduling.Appointment] { return &s.Appointments }}
	MedicalRecords = Field[clinical.MedicalRecord]{fieldMedicalRecords, "medical-records",
		func(s *State) *Collection[clinical.MedicalRecord] { return &s.MedicalRecords }}
	Prescriptions = Field[clinical.Prescription]{fieldPrescriptions, "prescriptions",
		func(s *State) *Collection[clinical.Prescription] { return &s.Prescriptions }}
	LabTests = Field[clinical.LabTest]{fieldLabTests, "lab-tests",
		func(s *State) *Collection[clinical.LabTest] { return &s.LabTests }}
	Inventory = Field[inventory.Item]{fieldInventory, "inventory",
		func(s *State) *Collection[inventory.Item] { return &s.Inventory }}
	Bills = Field[billing.Bill]{fieldBills, "bills",
		func(s *State) *Collection[billing.Bill] { return &s.Bills }}
	MedicationSchedule = Field[nursing.MedicationScheduleEntry]{fieldMedicationSchedule, "medication-schedule",
		func(s *State) *Collection[nursing.MedicationScheduleEntry] { return &s.MedicationSchedule }}
	Visitors = Field[visitor.Visitor]{fieldVisitors, "visitors",
		func(s *State) *Collection[visitor.Visitor] { return &s.Visitors }}
)
