package store

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/ehr/hospital/internal/domain/identity"
	"github.com/ehr/hospital/internal/domain/nursing"
	"github.com/ehr/hospital/internal/domain/patient"
	"github.com/ehr/hospital/internal/domain/ward"
)

// helper: a signed-in state with a few cached entities.
func populated() State {
	s := Reduce(Initial(), LoginSucceeded{User: identity.User{ID: 1, Username: "admin", Role: identity.RoleAdmin}, Token: "t"})
	s = Reduce(s, Loaded[patient.Patient]{Field: Patients, Items: []patient.Patient{{ID: 1, Name: "A"}, {ID: 2, Name: "B"}}})
	s = Reduce(s, Loaded[ward.Ward]{Field: Wards, Items: []ward.Ward{
		{ID: 1, Name: "General", Beds: []ward.Bed{{ID: 10, Status: ward.BedAvailable}}},
		{ID: 2, Name: "ICU", Beds: []ward.Bed{{ID: 20, Status: ward.BedAvailable}, {ID: 21, Status: ward.BedCleaning}}},
	}})
	return s
}

// deepCopy snapshots the parts of a state reducers could write through.
func deepCopy(s State) State {
	out := s
	if s.Session.CurrentUser != nil {
		u := *s.Session.CurrentUser
		out.Session.CurrentUser = &u
	}
	out.Patients = NewCollection(s.Patients.Items())
	wards := s.Wards.Items()
	for i := range wards {
		wards[i].Beds = append([]ward.Bed(nil), wards[i].Beds...)
	}
	out.Wards = NewCollection(wards)
	return out
}

// ===================== Purity =====================

func TestReduce_NeverModifiesInput(t *testing.T) {
	actions := []Action{
		LoginStarted{},
		LoginFailed{Err: errors.New("bad")},
		LoggedOut{},
		SessionExpired{Err: errors.New("expired")},
		ErrorRecorded{Err: errors.New("x")},
		ErrorCleared{},
		ProfileRefreshed{User: identity.User{ID: 1, Username: "renamed"}},
		Loaded[patient.Patient]{Field: Patients, Items: []patient.Patient{{ID: 9}}},
		Added[patient.Patient]{Field: Patients, Item: patient.Patient{ID: 3}},
		Updated[patient.Patient]{Field: Patients, Item: patient.Patient{ID: 1, Name: "A2"}},
		Removed[patient.Patient]{Field: Patients, ID: 2},
		BedPatched{Bed: ward.Bed{ID: 20, Ward: 2, Status: ward.BedOccupied}},
		BedPatched{Bed: ward.Bed{ID: 21, Status: ward.BedAvailable}},
	}
	for _, a := range actions {
		in := populated()
		want := deepCopy(in)
		_ = Reduce(in, a)
		if !reflect.DeepEqual(in, want) {
			t.Errorf("%T modified its input", a)
		}
	}
}

func TestReduce_NilActionIsIdentity(t *testing.T) {
	s := populated()
	if got := Reduce(s, nil); !reflect.DeepEqual(got, s) {
		t.Error("nil action changed the state")
	}
}

// ===================== Session =====================

func TestReduce_SessionInvariant(t *testing.T) {
	check := func(name string, s State) {
		t.Helper()
		if s.Session.IsAuthenticated != (s.Session.CurrentUser != nil) {
			t.Errorf("%s: IsAuthenticated=%v with user %v", name, s.Session.IsAuthenticated, s.Session.CurrentUser)
		}
	}
	s := Initial()
	check("initial", s)
	s = Reduce(s, LoginStarted{})
	check("started", s)
	if s.Session.Status != Authenticating || !s.Loading {
		t.Errorf("unexpected state after start: %+v", s.Session)
	}
	s = Reduce(s, LoginSucceeded{User: identity.User{ID: 1}, Token: "t"})
	check("succeeded", s)
	s = Reduce(s, ProfileRefreshed{User: identity.User{ID: 1, FirstName: "New"}})
	check("refreshed", s)
	if s.Session.CurrentUser.FirstName != "New" {
		t.Error("profile not applied")
	}
	s = Reduce(s, LoginFailed{Err: errors.New("no")})
	check("failed", s)
	s = Reduce(s, ProfileRefreshed{User: identity.User{ID: 1}})
	check("refresh while anonymous", s)
}

func TestReduce_LoggedOutEqualsInitial(t *testing.T) {
	s := Reduce(populated(), ErrorRecorded{Err: errors.New("x")})
	if got := Reduce(s, LoggedOut{}); !reflect.DeepEqual(got, Initial()) {
		t.Errorf("expected initial state, got %+v", got.Counts())
	}
}

func TestReduce_SessionExpiredKeepsError(t *testing.T) {
	err := errors.New("Session expired. Please login again.")
	got := Reduce(populated(), SessionExpired{Err: err})
	if !got.Empty() || got.Session.IsAuthenticated {
		t.Error("expected reset")
	}
	if got.Err != err {
		t.Errorf("expected error kept, got %v", got.Err)
	}
}

func TestReduce_ErrorCleared(t *testing.T) {
	s := Reduce(Initial(), ErrorRecorded{Err: errors.New("x")})
	if s.ErrorMessage() != "x" {
		t.Fatalf("got %q", s.ErrorMessage())
	}
	if s = Reduce(s, ErrorCleared{}); s.Err != nil {
		t.Error("error not cleared")
	}
}

// ===================== Collections =====================

func TestReduce_StaleLoadDropped(t *testing.T) {
	s := Reduce(Initial(), Loaded[patient.Patient]{Field: Patients, Items: []patient.Patient{{ID: 2}}, Seq: 5})
	s = Reduce(s, Loaded[patient.Patient]{Field: Patients, Items: []patient.Patient{{ID: 1}}, Seq: 4})
	if s.Patients.At(0).ID != 2 {
		t.Error("older fetch overwrote newer one")
	}
	s = Reduce(s, Loaded[patient.Patient]{Field: Patients, Items: []patient.Patient{{ID: 3}}, Seq: 6})
	if s.Patients.At(0).ID != 3 {
		t.Error("newer fetch was not applied")
	}
	// sequence numbers are tracked per field
	s = Reduce(s, Loaded[ward.Ward]{Field: Wards, Items: []ward.Ward{{ID: 1}}, Seq: 1})
	if s.Wards.Len() != 1 {
		t.Error("seq of another field blocked the load")
	}
}

func TestReduce_AddedReplacesExistingID(t *testing.T) {
	s := Reduce(populated(), Added[patient.Patient]{Field: Patients, Item: patient.Patient{ID: 1, Name: "again"}})
	if s.Patients.Len() != 2 || s.Patients.At(0).Name != "again" {
		t.Errorf("unexpected patients %+v", s.Patients.Items())
	}
}

func TestReduce_MissingIDsAreNoOps(t *testing.T) {
	s := populated()
	if got := Reduce(s, Updated[patient.Patient]{Field: Patients, Item: patient.Patient{ID: 99}}); !reflect.DeepEqual(got.Patients, s.Patients) {
		t.Error("update of unknown id changed the collection")
	}
	if got := Reduce(s, Removed[patient.Patient]{Field: Patients, ID: 99}); !reflect.DeepEqual(got.Patients, s.Patients) {
		t.Error("remove of unknown id changed the collection")
	}
	if got := Reduce(s, BedPatched{Bed: ward.Bed{ID: 99}}); !reflect.DeepEqual(got.Wards, s.Wards) {
		t.Error("patch of unknown bed changed wards")
	}
}

func TestReduce_BedPatched(t *testing.T) {
	pid := int64(9)
	t.Run("by ward id", func(t *testing.T) {
		s := Reduce(populated(), BedPatched{Bed: ward.Bed{ID: 20, Ward: 2, Status: ward.BedOccupied, Patient: &pid}})
		w, _ := s.Wards.Find(2)
		if w.Beds[0].Status != ward.BedOccupied || *w.Beds[0].Patient != 9 {
			t.Errorf("bed not patched: %+v", w.Beds[0])
		}
		if w.Beds[1].Status != ward.BedCleaning {
			t.Error("sibling bed changed")
		}
	})
	t.Run("by search", func(t *testing.T) {
		s := Reduce(populated(), BedPatched{Bed: ward.Bed{ID: 21, Status: ward.BedAvailable}})
		w, _ := s.Wards.Find(2)
		if w.Beds[1].Status != ward.BedAvailable {
			t.Errorf("bed not patched: %+v", w.Beds[1])
		}
		other, _ := s.Wards.Find(1)
		if other.Beds[0].Status != ward.BedAvailable {
			t.Error("other ward changed")
		}
	})
	t.Run("wrong ward id falls back to search", func(t *testing.T) {
		s := Reduce(populated(), BedPatched{Bed: ward.Bed{ID: 10, Ward: 2, Status: ward.BedMaintenance}})
		w, _ := s.Wards.Find(1)
		if w.Beds[0].Status != ward.BedMaintenance {
			t.Errorf("bed not patched: %+v", w.Beds[0])
		}
	})
}

func TestReduce_MedicationAdministered(t *testing.T) {
	entries := []nursing.MedicationScheduleEntry{{ID: 1, Medication: "Insulin"}, {ID: 2, Medication: "Paracetamol 500mg"}}
	s := Reduce(Initial(), Loaded[nursing.MedicationScheduleEntry]{Field: MedicationSchedule, Items: entries})
	at := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

	s = Reduce(s, MedicationAdministered{EntryID: 2, By: "Nina Reyes", At: at})
	got, _ := s.MedicationSchedule.Find(2)
	if !got.Administered || got.AdministeredBy != "Nina Reyes" {
		t.Errorf("entry not administered: %+v", got)
	}

	again := Reduce(s, MedicationAdministered{EntryID: 2, By: "Someone Else", At: at.Add(time.Hour)})
	if g, _ := again.MedicationSchedule.Find(2); g.AdministeredBy != "Nina Reyes" {
		t.Error("second administration overwrote the first")
	}
	if first, _ := s.MedicationSchedule.Find(1); first.Administered {
		t.Error("other entry changed")
	}
}

func TestNewCollection_Dedupes(t *testing.T) {
	c := NewCollection([]patient.Patient{{ID: 1, Name: "a"}, {ID: 2}, {ID: 1, Name: "b"}})
	if c.Len() != 2 || c.At(0).Name != "b" || c.At(1).ID != 2 {
		t.Errorf("unexpected collection %+v", c.Items())
	}
}

func TestField_NameAndGet(t *testing.T) {
	s := populated()
	if Patients.Name() != "patients" || Patients.Get(s).Len() != 2 {
		t.Error("unexpected field accessors")
	}
	if _, ok := s.Counts()[LabTests.Name()]; !ok {
		t.Error("counts should be keyed by field name")
	}
}
