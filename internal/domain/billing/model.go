package billing

import (
	"errors"
	"fmt"
	"time"

	"github.com/ehr/hospital/pkg/money"
	"github.com/ehr/hospital/pkg/validation"
)

// Bill status values.
const (
	StatusPending   = "pending"
	StatusPartial   = "partial"
	StatusPaid      = "paid"
	StatusCancelled = "cancelled"
)

// Payment methods accepted at the cashier.
const (
	MethodCash         = "cash"
	MethodCard         = "card"
	MethodCheck        = "check"
	MethodInsurance    = "insurance"
	MethodBankTransfer = "bank_transfer"
)

// ServiceLine is one billed service.
type ServiceLine struct {
	Name     string       `json:"name" validate:"required"`
	Amount   money.Amount `json:"amount" validate:"gte=0"`
	Quantity int          `json:"quantity,omitempty" validate:"gte=0"`
}

// Total is amount times quantity, with a missing quantity counting as one.
func (s ServiceLine) Total() money.Amount {
	q := s.Quantity
	if q == 0 {
		q = 1
	}
	return s.Amount * money.Amount(q)
}

// Payment is a single payment recorded against a bill.
type Payment struct {
	ID            int64        `json:"id,omitempty"`
	Bill          int64        `json:"bill,omitempty"`
	Amount        money.Amount `json:"amount" validate:"gt=0"`
	PaymentMethod string       `json:"payment_method" validate:"required,oneof=cash card check insurance bank_transfer"`
	TransactionID string       `json:"transaction_id,omitempty"`
	Notes         string       `json:"notes,omitempty"`
	Date          *time.Time   `json:"date,omitempty"`
	ProcessedBy   *int64       `json:"processed_by,omitempty"`
}

// EntityID returns the server-assigned id.
func (p Payment) EntityID() int64 { return p.ID }

func (p Payment) Validate() error {
	return validation.Struct(p)
}

// Bill is an invoice for a patient.
type Bill struct {
	ID              int64         `json:"id,omitempty"`
	Patient         int64         `json:"patient" validate:"required"`
	PatientName     string        `json:"patient_name,omitempty"`
	Date            string        `json:"date,omitempty" validate:"isodate"`
	Services        []ServiceLine `json:"services" validate:"required,min=1,dive"`
	TotalAmount     money.Amount  `json:"total_amount"`
	PaidAmount      money.Amount  `json:"paid_amount"`
	RemainingAmount money.Amount  `json:"remaining_amount"`
	Status          string        `json:"status,omitempty" validate:"omitempty,oneof=pending partial paid cancelled"`
	PaymentDate     string        `json:"payment_date,omitempty"`
	CreatedBy       *int64        `json:"created_by,omitempty"`
	Payments        []Payment     `json:"payments,omitempty"`
	CreatedAt       *time.Time    `json:"created_at,omitempty"`
	UpdatedAt       *time.Time    `json:"updated_at,omitempty"`
}

// EntityID returns the server-assigned id.
func (b Bill) EntityID() int64 { return b.ID }

func (b Bill) Validate() error {
	return validation.Struct(b)
}

// ComputeTotal sums the service lines.
func (b Bill) ComputeTotal() money.Amount {
	var total money.Amount
	for _, s := range b.Services {
		total += s.Total()
	}
	return total
}

// Balance is what remains to be paid. When the server did not send a
// remaining amount it is derived from total and paid.
func (b Bill) Balance() money.Amount {
	if b.RemainingAmount != 0 || b.PaidAmount >= b.TotalAmount {
		return b.RemainingAmount
	}
	return b.TotalAmount - b.PaidAmount
}

var (
	ErrNonPositivePayment = errors.New("payment amount must be greater than zero")
	ErrBillClosed         = errors.New("bill is already settled")
)

// CheckPayment applies the cashier rules to a candidate payment amount.
func (b Bill) CheckPayment(amount money.Amount) error {
	if b.Status == StatusPaid || b.Status == StatusCancelled {
		return ErrBillClosed
	}
	if amount <= 0 {
		return ErrNonPositivePayment
	}
	if amount > b.Balance() {
		return fmt.Errorf("payment amount %s exceeds remaining balance %s", amount, b.Balance())
	}
	return nil
}

// ApplyPayment returns a copy of b with p recorded, the way the billing
// endpoint settles it: paid and remaining amounts move and the status becomes
// partial or paid.
func (b Bill) ApplyPayment(p Payment, at time.Time) (Bill, error) {
	if err := b.CheckPayment(p.Amount); err != nil {
		return b, err
	}
	if p.Date == nil {
		p.Date = &at
	}
	b.PaidAmount += p.Amount
	b.RemainingAmount = b.TotalAmount - b.PaidAmount
	payments := make([]Payment, len(b.Payments), len(b.Payments)+1)
	copy(payments, b.Payments)
	b.Payments = append(payments, p)
	if b.RemainingAmount <= 0 {
		b.RemainingAmount = 0
		b.Status = StatusPaid
		b.PaymentDate = at.Format(time.DateOnly)
	} else {
		b.Status = StatusPartial
	}
	return b, nil
}
