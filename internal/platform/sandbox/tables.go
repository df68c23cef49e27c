package sandbox

import (
	"github.com/ehr/hospital/internal/domain/billing"
	"github.com/ehr/hospital/internal/domain/clinical"
	"github.com/ehr/hospital/internal/domain/identity"
	"github.com/ehr/hospital/internal/domain/inventory"
	"github.com/ehr/hospital/internal/domain/patient"
	"github.com/ehr/hospital/internal/domain/scheduling"
	"github.com/ehr/hospital/internal/domain/visitor"
	"github.com/ehr/hospital/internal/domain/ward"
)

type entity interface {
	EntityID() int64
}

// table is an insertion-ordered set of rows with server-assigned ids. It is
// not safe for concurrent use; the server serializes access.
type table[T entity] struct {
	rows   []T
	nextID int64
}

func newTable[T entity](rows []T) *table[T] {
	t := &table[T]{rows: append([]T(nil), rows...)}
	for _, r := range rows {
		if r.EntityID() > t.nextID {
			t.nextID = r.EntityID()
		}
	}
	return t
}

func (t *table[T]) all() []T {
	return append([]T(nil), t.rows...)
}

func (t *table[T]) filter(keep func(T) bool) []T {
	out := []T{}
	for _, r := range t.rows {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

func (t *table[T]) get(id int64) (T, bool) {
	for _, r := range t.rows {
		if r.EntityID() == id {
			return r, true
		}
	}
	var zero T
	return zero, false
}

// insert stores a row built from the next id.
func (t *table[T]) insert(build func(id int64) T) T {
	t.nextID++
	row := build(t.nextID)
	t.rows = append(t.rows, row)
	return row
}

func (t *table[T]) put(row T) bool {
	for i, r := range t.rows {
		if r.EntityID() == row.EntityID() {
			t.rows[i] = row
			return true
		}
	}
	return false
}

func (t *table[T]) remove(id int64) bool {
	for i, r := range t.rows {
		if r.EntityID() == id {
			t.rows = append(t.rows[:i:i], t.rows[i+1:]...)
			return true
		}
	}
	return false
}

// tables holds the live sandbox data.
type tables struct {
	users          *table[identity.User]
	passwords      map[int64]string
	patients       *table[patient.Patient]
	wards          *table[ward.Ward]
	appointments   *table[scheduling.Appointment]
	medicalRecords *table[clinical.MedicalRecord]
	prescriptions  *table[clinical.Prescription]
	labTests       *table[clinical.LabTest]
	inventory      *table[inventory.Item]
	bills          *table[billing.Bill]
	visitors       *table[visitor.Visitor]
	payments       int64
	beds           int64
}

func newTables(d *Dataset) *tables {
	t := &tables{
		users:          newTable(d.Users),
		passwords:      map[int64]string{},
		patients:       newTable(d.Patients),
		wards:          newTable(d.Wards),
		appointments:   newTable(d.Appointments),
		medicalRecords: newTable(d.MedicalRecords),
		prescriptions:  newTable(d.Prescriptions),
		labTests:       newTable(d.LabTests),
		inventory:      newTable(d.Inventory),
		bills:          newTable(d.Bills),
		visitors:       newTable(d.Visitors),
	}
	for id, h := range d.Passwords {
		t.passwords[id] = h
	}
	for _, w := range d.Wards {
		for _, b := range w.Beds {
			if b.ID > t.beds {
				t.beds = b.ID
			}
		}
	}
	for _, b := range d.Bills {
		for _, p := range b.Payments {
			if p.ID > t.payments {
				t.payments = p.ID
			}
		}
	}
	return t
}

// dataset snapshots the live tables.
func (t *tables) dataset() *Dataset {
	d := &Dataset{
		Users:          t.users.all(),
		Passwords:      map[int64]string{},
		Patients:       t.patients.all(),
		Wards:          t.wards.all(),
		Appointments:   t.appointments.all(),
		MedicalRecords: t.medicalRecords.all(),
		Prescriptions:  t.prescriptions.all(),
		LabTests:       t.labTests.all(),
		Inventory:      t.inventory.all(),
		Bills:          t.bills.all(),
		Visitors:       t.visitors.all(),
	}
	for id, h := range t.passwords {
		d.Passwords[id] = h
	}
	return d
}

// bedLocation finds the ward index and bed index of bedID.
func (t *tables) bedLocation(bedID int64) (int, int, bool) {
	for wi, w := range t.wards.rows {
		for bi, b := range w.Beds {
			if b.ID == bedID {
				return wi, bi, true
			}
		}
	}
	return 0, 0, false
}

func (t *tables) userByUsername(username string) (identity.User, bool) {
	for _, u := range t.users.rows {
		if u.Username == username {
			return u, true
		}
	}
	return identity.User{}, false
}

func (t *tables) userByEmail(email string) (identity.User, bool) {
	for _, u := range t.users.rows {
		if u.Email != "" && u.Email == email {
			return u, true
		}
	}
	return identity.User{}, false
}
