package ward

import (
	"fmt"
	"strings"
	"time"

	"github.com/ehr/hospital/pkg/validation"
)

// BedStatus is the occupancy state of a single bed.
type BedStatus string

const (
	BedAvailable   BedStatus = "available"
	BedOccupied    BedStatus = "occupied"
	BedMaintenance BedStatus = "maintenance"
	BedCleaning    BedStatus = "cleaning"
)

// Valid reports whether s is a known bed status.
func (s BedStatus) Valid() bool {
	switch s {
	case BedAvailable, BedOccupied, BedMaintenance, BedCleaning:
		return true
	}
	return false
}

// Bed belongs to exactly one ward and is only changed through a ward-scoped
// status update.
type Bed struct {
	ID            int64      `json:"id"`
	Ward          int64      `json:"ward,omitempty"`
	Number        string     `json:"number"`
	Status        BedStatus  `json:"status"`
	Patient       *int64     `json:"patient"`
	PatientName   string     `json:"patient_name,omitempty"`
	AdmissionDate *string    `json:"admission_date"`
	CreatedAt     *time.Time `json:"created_at,omitempty"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty"`
}

// EntityID returns the server-assigned id.
func (b Bed) EntityID() int64 { return b.ID }

// Ward groups beds. OccupiedBeds, AvailableBeds and OccupancyPercentage are
// computed by the server and cannot be derived from a single bed change.
type Ward struct {
	ID                  int64      `json:"id,omitempty"`
	Name                string     `json:"name" validate:"required,max=100"`
	Department          string     `json:"department" validate:"required"`
	Floor               int        `json:"floor" validate:"gte=0"`
	TotalBeds           int        `json:"total_beds" validate:"gte=0,lte=500"`
	NurseInCharge       string     `json:"nurse_in_charge" validate:"required"`
	Status              string     `json:"status,omitempty"`
	Description         string     `json:"description,omitempty"`
	Beds                []Bed      `json:"beds,omitempty"`
	OccupiedBeds        int        `json:"occupied_beds"`
	AvailableBeds       int        `json:"available_beds"`
	OccupancyPercentage float64    `json:"occupancy_percentage"`
	CreatedAt           *time.Time `json:"created_at,omitempty"`
	UpdatedAt           *time.Time `json:"updated_at,omitempty"`
}

// EntityID returns the server-assigned id.
func (w Ward) EntityID() int64 { return w.ID }

// Validate checks a ward form before it is sent.
func (w Ward) Validate() error {
	return validation.Struct(w)
}

// HasBed reports whether the ward owns a bed with the given id.
func (w Ward) HasBed(bedID int64) bool {
	for _, b := range w.Beds {
		if b.ID == bedID {
			return true
		}
	}
	return false
}

// WithBed returns a copy of w whose bed with the same id is replaced by b.
// The second result is false when w has no such bed. The receiver's bed
// slice is never modified.
func (w Ward) WithBed(b Bed) (Ward, bool) {
	for i, existing := range w.Beds {
		if existing.ID != b.ID {
			continue
		}
		beds := make([]Bed, len(w.Beds))
		copy(beds, w.Beds)
		if b.Ward == 0 {
			b.Ward = w.ID
		}
		beds[i] = b
		w.Beds = beds
		return w, true
	}
	return w, false
}

// Recount recomputes the bed aggregates from the bed list, the same way the
// server does: occupancy is occupied over total beds rounded to one decimal.
func (w *Ward) Recount() {
	w.OccupiedBeds, w.AvailableBeds = 0, 0
	for _, b := range w.Beds {
		switch b.Status {
		case BedOccupied:
			w.OccupiedBeds++
		case BedAvailable:
			w.AvailableBeds++
		}
	}
	w.OccupancyPercentage = 0
	if w.TotalBeds > 0 {
		pct := float64(w.OccupiedBeds) / float64(w.TotalBeds) * 100
		w.OccupancyPercentage = float64(int(pct*10+0.5)) / 10
	}
}

// BedNumber returns the conventional bed label for a ward: the first three
// letters of the ward name upper-cased and a two-digit sequence, e.g. ICU-04.
func BedNumber(wardName string, seq int) string {
	prefix := strings.ToUpper(wardName)
	if len(prefix) > 3 {
		prefix = prefix[:3]
	}
	return fmt.Sprintf("%s-%02d", prefix, seq)
}

// BedStatusUpdate is the body of a bed status change. Patient is only
// meaningful when Status is occupied.
type BedStatusUpdate struct {
	Status        BedStatus `json:"status" validate:"required,oneof=available occupied maintenance cleaning"`
	Patient       *int64    `json:"patient,omitempty"`
	AdmissionDate string    `json:"admission_date,omitempty" validate:"isodate"`
}

// Validate checks the update before it is sent.
func (u BedStatusUpdate) Validate() error {
	return validation.Struct(u)
}
