// Package reporting builds printable receipts and spreadsheet summaries from
// cached store data. Nothing here touches the network or changes state.
package reporting

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ehr/hospital/internal/domain/billing"
	"github.com/ehr/hospital/internal/domain/ward"
	"github.com/ehr/hospital/internal/store"
	"github.com/ehr/hospital/pkg/money"
)

// MeasureDefinition is one headline figure computed over a state snapshot.
type MeasureDefinition struct {
	ID          string
	Name        string
	Description string
	Evaluate    func(store.State) string
}

// PredefinedMeasures are listed on the Overview sheet, in order.
var PredefinedMeasures = []MeasureDefinition{
	{
		ID:          "patient-count",
		Name:        "Patients",
		Description: "Registered patients in the cache",
		Evaluate:    func(s store.State) string { return strconv.Itoa(s.Patients.Len()) },
	},
	{
		ID:          "admitted-patients",
		Name:        "Admitted",
		Description: "Patients currently admitted to a ward",
		Evaluate: func(s store.State) string {
			n := 0
			for _, p := range s.Patients.Items() {
				if p.Admitted() {
					n++
				}
			}
			return strconv.Itoa(n)
		},
	},
	{
		ID:          "bed-occupancy",
		Name:        "Bed Occupancy",
		Description: "Occupied beds over total beds across all wards",
		Evaluate: func(s store.State) string {
			occupied, total := Occupancy(s)
			return fmt.Sprintf("%d/%d (%s%%)", occupied, total, percent(occupied, total))
		},
	},
	{
		ID:          "open-appointments",
		Name:        "Open Appointments",
		Description: "Appointments still scheduled",
		Evaluate: func(s store.State) string {
			n := 0
			for _, a := range s.Appointments.Items() {
				if a.Open() {
					n++
				}
			}
			return strconv.Itoa(n)
		},
	},
	{
		ID:          "low-stock-items",
		Name:        "Low Stock Items",
		Description: "Inventory items at or below their minimum stock",
		Evaluate: func(s store.State) string {
			n := 0
			for _, it := range s.Inventory.Items() {
				if it.LowStock() {
					n++
				}
			}
			return strconv.Itoa(n)
		},
	},
	{
		ID:          "outstanding-balance",
		Name:        "Outstanding Balance",
		Description: "Sum of unpaid balances on open bills",
		Evaluate:    func(s store.State) string { return OutstandingBalance(s).String() },
	},
}

// FindMeasure returns the measure with id, or nil.
func FindMeasure(id string) *MeasureDefinition {
	for i := range PredefinedMeasures {
		if PredefinedMeasures[i].ID == id {
			return &PredefinedMeasures[i]
		}
	}
	return nil
}

// Occupancy counts occupied beds and total beds over every ward. Wards
// fetched without their bed list fall back to the server aggregates.
func Occupancy(s store.State) (occupied, total int) {
	for _, w := range s.Wards.Items() {
		if len(w.Beds) == 0 {
			occupied += w.OccupiedBeds
			total += w.TotalBeds
			continue
		}
		for _, b := range w.Beds {
			if b.Status == ward.BedOccupied {
				occupied++
			}
		}
		total += len(w.Beds)
	}
	return occupied, total
}

// OutstandingBalance sums the balance of every bill that is neither paid nor
// cancelled.
func OutstandingBalance(s store.State) money.Amount {
	var sum money.Amount
	for _, b := range s.Bills.Items() {
		if b.Status == billing.StatusPaid || b.Status == billing.StatusCancelled {
			continue
		}
		sum += b.Balance()
	}
	return sum
}

func percent(n, total int) string {
	if total == 0 {
		return "0.0"
	}
	return strconv.FormatFloat(float64(n)/float64(total)*100, 'f', 1, 64)
}

const receiptWidth = 48

// Receipt renders a plain-text payment receipt for bill. patientName wins
// over the name embedded in the bill when it is not empty.
func Receipt(bill billing.Bill, patientName string) string {
	if patientName == "" {
		patientName = bill.PatientName
	}
	if patientName == "" {
		patientName = "N/A"
	}

	var b strings.Builder
	rule := strings.Repeat("-", receiptWidth)
	center := func(s string) {
		pad := (receiptWidth - len(s)) / 2
		if pad < 0 {
			pad = 0
		}
		b.WriteString(strings.Repeat(" ", pad) + s + "\n")
	}

	center("HEALTH CARE HOSPITAL")
	center("123 CHINATOWN, Cityville")
	center("Phone: (555) 123-4567")
	b.WriteString(rule + "\n")
	center("PAYMENT RECEIPT")
	b.WriteString("\n")

	receiptNo := "N/A"
	if bill.ID != 0 {
		receiptNo = strconv.FormatInt(bill.ID, 10)
	}
	date := bill.PaymentDate
	if date == "" {
		date = bill.Date
	}
	line(&b, "Receipt #: "+receiptNo, "Date: "+date)
	b.WriteString("Patient: " + patientName + "\n")

	if len(bill.Services) > 0 {
		b.WriteString(rule + "\n")
		for _, s := range bill.Services {
			name := s.Name
			if s.Quantity > 1 {
				name = fmt.Sprintf("%s x%d", s.Name, s.Quantity)
			}
			line(&b, name, "$"+s.Total().String())
		}
	}

	total := bill.TotalAmount
	if total == 0 {
		total = bill.ComputeTotal()
	}
	b.WriteString(rule + "\n")
	line(&b, "Total Amount:", "$"+total.String())
	line(&b, "Amount Paid:", "$"+bill.PaidAmount.String())
	line(&b, "Balance Due:", "$"+(total-bill.PaidAmount).String())
	if bill.Status != "" {
		line(&b, "Status:", strings.ToUpper(bill.Status))
	}
	b.WriteString(rule + "\n")
	center("Thank you for your payment!")
	return b.String()
}

// ReceiptFilename is the conventional download name for a receipt.
func ReceiptFilename(bill billing.Bill, day string) string {
	id := "unknown"
	if bill.ID != 0 {
		id = strconv.FormatInt(bill.ID, 10)
	}
	return fmt.Sprintf("Receipt_%s_%s.txt", id, day)
}

// line writes left and right justified to the receipt width.
func line(b *strings.Builder, left, right string) {
	gap := receiptWidth - len(left) - len(right)
	if gap < 1 {
		gap = 1
	}
	b.WriteString(left + strings.Repeat(" ", gap) + right + "\n")
}
