package clinical

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/ehr/hospital/pkg/validation"
)

// Medication is one line of a treatment plan. Older records store plain
// strings in the medications list; those decode into Name only.
type Medication struct {
	Name      string `json:"name" validate:"required"`
	Dosage    string `json:"dosage,omitempty"`
	Frequency string `json:"frequency,omitempty"`
	Duration  string `json:"duration,omitempty"`
}

func (m *Medication) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &m.Name)
	}
	type plain Medication
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*m = Medication(p)
	return nil
}

// MedicalRecord is a single consultation entry.
type MedicalRecord struct {
	ID             int64             `json:"id,omitempty"`
	Patient        int64             `json:"patient" validate:"required"`
	PatientName    string            `json:"patient_name,omitempty"`
	Doctor         int64             `json:"doctor,omitempty"`
	DoctorName     string            `json:"doctor_name,omitempty"`
	Date           string            `json:"date,omitempty" validate:"isodate"`
	Symptoms       string            `json:"symptoms" validate:"required"`
	Diagnosis      string            `json:"diagnosis" validate:"required"`
	Treatment      string            `json:"treatment" validate:"required"`
	Medications    []Medication      `json:"medications,omitempty" validate:"dive"`
	Notes          string            `json:"notes,omitempty"`
	FollowUp       string            `json:"follow_up,omitempty" validate:"isodate"`
	VitalSigns     map[string]string `json:"vital_signs,omitempty"`
	AllergiesNoted string            `json:"allergies_noted,omitempty"`
	CreatedAt      *time.Time        `json:"created_at,omitempty"`
	UpdatedAt      *time.Time        `json:"updated_at,omitempty"`
}

// EntityID returns the server-assigned id.
func (r MedicalRecord) EntityID() int64 { return r.ID }

func (r MedicalRecord) Validate() error {
	return validation.Struct(r)
}

// Prescription is issued against a medical record.
type Prescription struct {
	ID             int64        `json:"id,omitempty"`
	MedicalRecord  int64        `json:"medical_record" validate:"required"`
	PatientName    string       `json:"patient_name,omitempty"`
	DoctorName     string       `json:"doctor_name,omitempty"`
	Date           string       `json:"date,omitempty"`
	Medications    []Medication `json:"medications" validate:"required,min=1,dive"`
	Instructions   string       `json:"instructions" validate:"required"`
	Status         string       `json:"status,omitempty" validate:"omitempty,oneof=active completed cancelled"`
	Duration       string       `json:"duration,omitempty"`
	RefillsAllowed int          `json:"refills_allowed" validate:"gte=0"`
	RefillsUsed    int          `json:"refills_used" validate:"gte=0,ltefield=RefillsAllowed"`
	PharmacyNotes  string       `json:"pharmacy_notes,omitempty"`
	CreatedAt      *time.Time   `json:"created_at,omitempty"`
	UpdatedAt      *time.Time   `json:"updated_at,omitempty"`
}

// EntityID returns the server-assigned id.
func (p Prescription) EntityID() int64 { return p.ID }

func (p Prescription) Validate() error {
	return validation.Struct(p)
}

// RefillsRemaining never goes below zero.
func (p Prescription) RefillsRemaining() int {
	if p.RefillsUsed >= p.RefillsAllowed {
		return 0
	}
	return p.RefillsAllowed - p.RefillsUsed
}

// LabTestStatus tracks a lab order through the lab.
type LabTestStatus string

const (
	LabPending    LabTestStatus = "pending"
	LabInProgress LabTestStatus = "in_progress"
	LabCompleted  LabTestStatus = "completed"
	LabCancelled  LabTestStatus = "cancelled"
)

// LabTest is a lab order.
type LabTest struct {
	ID              int64         `json:"id,omitempty"`
	Patient         int64         `json:"patient" validate:"required"`
	PatientName     string        `json:"patient_name,omitempty"`
	OrderedBy       int64         `json:"ordered_by,omitempty"`
	OrderedByName   string        `json:"ordered_by_name,omitempty"`
	TestType        string        `json:"test_type" validate:"required"`
	TestCode        string        `json:"test_code,omitempty"`
	OrderedDate     string        `json:"ordered_date,omitempty"`
	Status          LabTestStatus `json:"status,omitempty" validate:"omitempty,oneof=pending in_progress completed cancelled"`
	Priority        string        `json:"priority,omitempty" validate:"omitempty,oneof=routine urgent stat"`
	Results         string        `json:"results,omitempty"`
	ReferenceValues string        `json:"reference_values,omitempty"`
	CompletedDate   string        `json:"completed_date,omitempty"`
	Technician      string        `json:"technician,omitempty"`
	Notes           string        `json:"notes,omitempty"`
	SampleType      string        `json:"sample_type,omitempty"`
	FastingRequired bool          `json:"fasting_required"`
}

// EntityID returns the server-assigned id.
func (l LabTest) EntityID() int64 { return l.ID }

func (l LabTest) Validate() error {
	return validation.Struct(l)
}

// Completed reports whether results have been recorded.
func (l LabTest) Completed() bool { return l.Status == LabCompleted }

// Closed reports whether the test can no longer change status.
func (l LabTest) Closed() bool {
	return l.Status == LabCompleted || l.Status == LabCancelled
}

// LabTestCompletion is the body sent when results are recorded.
type LabTestCompletion struct {
	Results string `json:"results" validate:"required"`
	Notes   string `json:"notes,omitempty"`
}

func (c LabTestCompletion) Validate() error {
	return validation.Struct(c)
}

// LabTestCancellation is the body sent when a test is cancelled. The reason
// replaces the test's notes.
type LabTestCancellation struct {
	Reason string `json:"reason,omitempty"`
}
