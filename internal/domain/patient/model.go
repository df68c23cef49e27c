package patient

import (
	"time"

	"github.com/ehr/hospital/pkg/validation"
)

// Status is the patient's admission state.
type Status string

const (
	StatusOutpatient Status = "outpatient"
	StatusAdmitted   Status = "admitted"
	StatusDischarged Status = "discharged"
)

// Patient is a registered patient.
type Patient struct {
	ID                 int64      `json:"id,omitempty"`
	Name               string     `json:"name" validate:"required,max=100"`
	Age                int        `json:"age" validate:"gte=1,lte=150"`
	Gender             string     `json:"gender" validate:"required,oneof=Male Female Other"`
	Phone              string     `json:"phone" validate:"required,phone"`
	Email              string     `json:"email" validate:"required,email"`
	Address            string     `json:"address" validate:"required"`
	EmergencyContact   string     `json:"emergency_contact,omitempty"`
	BloodType          string     `json:"blood_type,omitempty" validate:"omitempty,oneof=A+ A- B+ B- AB+ AB- O+ O-"`
	Allergies          string     `json:"allergies,omitempty"`
	RegistrationDate   string     `json:"registration_date,omitempty"`
	LastVisit          string     `json:"last_visit,omitempty"`
	AssignedDoctor     *int64     `json:"assigned_doctor,omitempty"`
	AssignedDoctorName string     `json:"assigned_doctor_name,omitempty"`
	Status             Status     `json:"status,omitempty" validate:"omitempty,oneof=outpatient admitted discharged"`
	Ward               *int64     `json:"ward,omitempty"`
	BedNumber          string     `json:"bed_number,omitempty"`
	AdmissionDate      string     `json:"admission_date,omitempty" validate:"isodate"`
	CreatedAt          *time.Time `json:"created_at,omitempty"`
	UpdatedAt          *time.Time `json:"updated_at,omitempty"`
}

// EntityID returns the server-assigned id.
func (p Patient) EntityID() int64 { return p.ID }

// Validate checks a registration or edit form before it is sent.
func (p Patient) Validate() error {
	return validation.Struct(p)
}

// Admitted reports whether the patient currently occupies a ward bed.
func (p Patient) Admitted() bool {
	return p.Status == StatusAdmitted
}
