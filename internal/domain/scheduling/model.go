package scheduling

import (
	"time"

	"github.com/ehr/hospital/pkg/validation"
)

// AppointmentStatus is the lifecycle state of an appointment.
type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "scheduled"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusNoShow    AppointmentStatus = "no_show"
)

// Action is a status transition performed through a dedicated endpoint
// (/appointments/{id}/{action}/).
type Action string

const (
	ActionComplete Action = "complete"
	ActionCancel   Action = "cancel"
	ActionNoShow   Action = "no_show"
)

// Valid reports whether a is a known transition.
func (a Action) Valid() bool {
	switch a {
	case ActionComplete, ActionCancel, ActionNoShow:
		return true
	}
	return false
}

// Result is the status an appointment ends in after a.
func (a Action) Result() AppointmentStatus {
	switch a {
	case ActionComplete:
		return StatusCompleted
	case ActionCancel:
		return StatusCancelled
	case ActionNoShow:
		return StatusNoShow
	}
	return ""
}

// Appointment is a booked visit between a patient and a doctor.
type Appointment struct {
	ID          int64             `json:"id,omitempty"`
	Patient     int64             `json:"patient" validate:"required"`
	PatientName string            `json:"patient_name,omitempty"`
	Doctor      int64             `json:"doctor" validate:"required"`
	DoctorName  string            `json:"doctor_name,omitempty"`
	Date        string            `json:"date" validate:"required,isodate"`
	Time        string            `json:"time" validate:"required,clock"`
	Type        string            `json:"type" validate:"required,oneof=consultation follow-up emergency routine surgery"`
	Status      AppointmentStatus `json:"status,omitempty" validate:"omitempty,oneof=scheduled completed cancelled no_show"`
	Notes       string            `json:"notes,omitempty"`
	CreatedBy   *int64            `json:"created_by,omitempty"`
	CreatedAt   *time.Time        `json:"created_at,omitempty"`
	UpdatedAt   *time.Time        `json:"updated_at,omitempty"`
}

// EntityID returns the server-assigned id.
func (a Appointment) EntityID() int64 { return a.ID }

// Validate checks a booking form before it is sent.
func (a Appointment) Validate() error {
	return validation.Struct(a)
}

// Open reports whether the appointment can still be transitioned.
func (a Appointment) Open() bool {
	return a.Status == "" || a.Status == StatusScheduled
}
