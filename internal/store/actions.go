package store

import (
	"time"

	"github.com/ehr/hospital/internal/domain/identity"
	"github.com/ehr/hospital/internal/domain/ward"
)

// Action is a state transition. The set is closed: only types in this
// package implement it.
type Action interface {
	reduce(State) State
}

// Reduce applies a to s and returns the next state. It performs no I/O and
// never modifies s.
func Reduce(s State, a Action) State {
	if a == nil {
		return s
	}
	return a.reduce(s)
}

// LoginStarted enters Authenticating and clears any previous error. On a
// re-login the current user stays in place, so IsAuthenticated remains true
// while Status is Authenticating, until LoginSucceeded or LoginFailed.
type LoginStarted struct{}

func (LoginStarted) reduce(s State) State {
	s.Session.Status = Authenticating
	s.Loading = true
	s.Err = nil
	return s
}

// LoginSucceeded installs the signed-in user.
type LoginSucceeded struct {
	User  identity.User
	Token string
}

func (a LoginSucceeded) reduce(s State) State {
	u := a.User
	s.Session = Session{CurrentUser: &u, IsAuthenticated: true, Token: a.Token, Status: Authenticated}
	s.Loading = false
	s.Err = nil
	return s
}

// LoginFailed records the error and returns to Anonymous. Collections are
// left as they were.
type LoginFailed struct {
	Err error
}

func (a LoginFailed) reduce(s State) State {
	s.Session = Session{Status: Anonymous}
	s.Loading = false
	s.Err = a.Err
	return s
}

// LoggedOut resets everything.
type LoggedOut struct{}

func (LoggedOut) reduce(State) State { return Initial() }

// SessionExpired is a forced logout: everything resets but the error stays
// so the sign-in screen can explain why.
type SessionExpired struct {
	Err error
}

func (a SessionExpired) reduce(State) State {
	s := Initial()
	s.Err = a.Err
	return s
}

// ErrorRecorded stores a non-fatal failure.
type ErrorRecorded struct {
	Err error
}

func (a ErrorRecorded) reduce(s State) State {
	s.Err = a.Err
	s.Loading = false
	return s
}

type ErrorCleared struct{}

func (ErrorCleared) reduce(s State) State {
	s.Err = nil
	return s
}

// ProfileRefreshed replaces the current user with a fresh copy from the
// server. Ignored when signed out.
type ProfileRefreshed struct {
	User identity.User
}

func (a ProfileRefreshed) reduce(s State) State {
	if !s.Session.IsAuthenticated {
		return s
	}
	u := a.User
	s.Session.CurrentUser = &u
	return s
}

// Loaded replaces a whole collection with a fetch result. A Seq that is not
// newer than the last one applied to the same field is stale and dropped;
// a zero Seq always applies.
type Loaded[T Entity] struct {
	Field Field[T]
	Items []T
	Seq   uint64
}

func (a Loaded[T]) reduce(s State) State {
	if a.Seq != 0 && a.Seq <= s.applied[a.Field.kind] {
		return s
	}
	*a.Field.ref(&s) = NewCollection(a.Items)
	if a.Seq != 0 {
		s.applied[a.Field.kind] = a.Seq
	}
	return s
}

// Added appends a server-created entity.
type Added[T Entity] struct {
	Field Field[T]
	Item  T
}

func (a Added[T]) reduce(s State) State {
	ref := a.Field.ref(&s)
	*ref = ref.Append(a.Item)
	return s
}

// Updated replaces the entity with the same id by the server's copy.
type Updated[T Entity] struct {
	Field Field[T]
	Item  T
}

func (a Updated[T]) reduce(s State) State {
	ref := a.Field.ref(&s)
	*ref = ref.Replace(a.Item)
	return s
}

// Removed drops the entity with ID.
type Removed[T Entity] struct {
	Field Field[T]
	ID    int64
}

func (a Removed[T]) reduce(s State) State {
	ref := a.Field.ref(&s)
	*ref = ref.Remove(a.ID)
	return s
}

// BedPatched replaces one bed inside its parent ward. The ward is found by
// Bed.Ward when set, otherwise by searching every ward for the bed id.
type BedPatched struct {
	Bed ward.Bed
}

func (a BedPatched) reduce(s State) State {
	if a.Bed.Ward != 0 {
		if w, ok := s.Wards.Find(a.Bed.Ward); ok {
			if patched, ok := w.WithBed(a.Bed); ok {
				s.Wards = s.Wards.Replace(patched)
				return s
			}
		}
	}
	for _, w := range s.Wards.items {
		if patched, ok := w.WithBed(a.Bed); ok {
			s.Wards = s.Wards.Replace(patched)
			return s
		}
	}
	return s
}

// MedicationAdministered marks a schedule entry as given. Entries already
// administered or unknown ids leave the state unchanged.
type MedicationAdministered struct {
	EntryID int64
	By      string
	At      time.Time
}

func (a MedicationAdministered) reduce(s State) State {
	entry, ok := s.MedicationSchedule.Find(a.EntryID)
	if !ok {
		return s
	}
	done, err := entry.Administer(a.By, a.At)
	if err != nil {
		return s
	}
	s.MedicationSchedule = s.MedicationSchedule.Replace(done)
	return s
}
