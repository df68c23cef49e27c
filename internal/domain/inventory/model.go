package inventory

import (
	"time"

	"github.com/ehr/hospital/pkg/money"
	"github.com/ehr/hospital/pkg/validation"
)

// Item is a stocked supply.
type Item struct {
	ID          int64        `json:"id,omitempty"`
	Name        string       `json:"name" validate:"required,max=100"`
	Category    string       `json:"category" validate:"required,oneof=medication medical_supplies equipment consumables"`
	Quantity    int          `json:"quantity" validate:"gte=0"`
	Unit        string       `json:"unit" validate:"required"`
	MinStock    int          `json:"min_stock" validate:"gte=0"`
	Supplier    string       `json:"supplier,omitempty"`
	ExpiryDate  string       `json:"expiry_date,omitempty" validate:"isodate"`
	CostPerUnit money.Amount `json:"cost_per_unit" validate:"gte=0"`
	Location    string       `json:"location,omitempty"`
	IsLowStock  bool         `json:"is_low_stock,omitempty"`
	CreatedAt   *time.Time   `json:"created_at,omitempty"`
	UpdatedAt   *time.Time   `json:"updated_at,omitempty"`
}

// EntityID returns the server-assigned id.
func (i Item) EntityID() int64 { return i.ID }

func (i Item) Validate() error {
	return validation.Struct(i)
}

// LowStock reports whether the item has fallen to its reorder threshold.
func (i Item) LowStock() bool {
	return i.Quantity <= i.MinStock
}

// TotalValue is quantity times unit cost.
func (i Item) TotalValue() money.Amount {
	return i.CostPerUnit * money.Amount(i.Quantity)
}

// Expired reports whether the expiry date is before now. Items without a
// parseable expiry date never expire.
func (i Item) Expired(now time.Time) bool {
	if i.ExpiryDate == "" {
		return false
	}
	exp, err := time.Parse(time.DateOnly, i.ExpiryDate)
	if err != nil {
		return false
	}
	return exp.Before(now.Truncate(24 * time.Hour))
}

// StockAdjustment is a signed change to an item's quantity, posted to
// /inventory/{id}/adjust_stock/.
type StockAdjustment struct {
	QuantityChange int    `json:"quantity_change" validate:"ne=0"`
	Reason         string `json:"reason,omitempty"`
}

func (a StockAdjustment) Validate() error {
	return validation.Struct(a)
}

// Apply returns the quantity after a, or false when stock would go negative.
func (a StockAdjustment) Apply(quantity int) (int, bool) {
	next := quantity + a.QuantityChange
	return next, next >= 0
}
