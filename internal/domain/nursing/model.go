package nursing

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

//go:embed schedule.json
var scheduleFixture []byte

// ErrAlreadyAdministered is returned when an entry is administered twice.
var ErrAlreadyAdministered = errors.New("medication already administered")

// MedicationScheduleEntry is one planned dose on the ward round. Entries are
// tracked locally only; there is no server resource for them yet.
type MedicationScheduleEntry struct {
	ID             int64      `json:"id"`
	PatientID      int64      `json:"patientId"`
	PatientName    string     `json:"patientName"`
	BedNumber      string     `json:"bedNumber"`
	Medication     string     `json:"medication"`
	Dosage         string     `json:"dosage"`
	Time           string     `json:"time"`
	Administered   bool       `json:"administered"`
	AdministeredBy string     `json:"administeredBy,omitempty"`
	AdministeredAt *time.Time `json:"administeredAt,omitempty"`
}

// EntityID returns the entry id.
func (e MedicationScheduleEntry) EntityID() int64 { return e.ID }

// Administer returns a copy of e stamped as given by `by` at `at`.
func (e MedicationScheduleEntry) Administer(by string, at time.Time) (MedicationScheduleEntry, error) {
	if e.Administered {
		return e, ErrAlreadyAdministered
	}
	e.Administered = true
	e.AdministeredBy = by
	e.AdministeredAt = &at
	return e, nil
}

// Fixture decodes the static schedule. Each call returns fresh values.
func Fixture() ([]MedicationScheduleEntry, error) {
	var entries []MedicationScheduleEntry
	if err := json.Unmarshal(scheduleFixture, &entries); err != nil {
		return nil, fmt.Errorf("decode medication schedule: %w", err)
	}
	return entries, nil
}
