// Package visitor tracks people at reception who are visiting a patient.
package visitor

import (
	"time"

	"github.com/ehr/hospital/pkg/validation"
)

// Status is where a visitor is in the building.
type Status string

const (
	StatusVisiting   Status = "visiting"
	StatusWaiting    Status = "waiting"
	StatusCheckedOut Status = "checked-out"
)

// Visitor is a check-in at the front desk. The checkout route is the only way
// a visitor leaves; entries are never deleted.
type Visitor struct {
	ID           int64      `json:"id,omitempty"`
	Name         string     `json:"name" validate:"required,max=255"`
	Phone        string     `json:"phone" validate:"required,phone"`
	Patient      int64      `json:"patient" validate:"required"`
	PatientName  string     `json:"patient_name,omitempty"`
	Relationship string     `json:"relationship" validate:"required,max=100"`
	Purpose      string     `json:"purpose,omitempty"`
	IDType       string     `json:"idType,omitempty" validate:"max=50"`
	IDNumber     string     `json:"idNumber,omitempty" validate:"max=100"`
	CheckInTime  *time.Time `json:"checkInTime,omitempty"`
	Status       Status     `json:"status,omitempty" validate:"omitempty,oneof=visiting waiting checked-out"`
}

// EntityID returns the server-assigned id.
func (v Visitor) EntityID() int64 { return v.ID }

func (v Visitor) Validate() error {
	return validation.Struct(v)
}

// OnSite reports whether the visitor has not checked out yet.
func (v Visitor) OnSite() bool {
	return v.Status != StatusCheckedOut
}
