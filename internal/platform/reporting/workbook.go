package reporting

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/ehr/hospital/internal/store"
)

// Sheet names of the summary workbook, in tab order.
const (
	SheetOverview  = "Overview"
	SheetPatients  = "Patients"
	SheetWards     = "Wards"
	SheetInventory = "Inventory"
	SheetBills     = "Bills"
)

var (
	patientHeader   = []any{"ID", "Name", "Age", "Gender", "Phone", "Status", "Ward", "Bed", "Assigned Doctor"}
	wardHeader      = []any{"ID", "Name", "Department", "Floor", "Total Beds", "Occupied", "Available", "Occupancy %", "Nurse In Charge"}
	inventoryHeader = []any{"ID", "Name", "Category", "Quantity", "Unit", "Min Stock", "Cost Per Unit", "Total Value", "Expiry", "Low Stock"}
	billHeader      = []any{"ID", "Patient", "Date", "Total", "Paid", "Balance", "Status"}
)

// SummaryWorkbook lays out a snapshot as a spreadsheet: an Overview sheet
// with the predefined measures followed by one sheet per collection. The
// caller owns the returned file and must Close it.
func SummaryWorkbook(s store.State) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetOverview); err != nil {
		f.Close()
		return nil, fmt.Errorf("rename default sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create header style: %w", err)
	}

	overview := [][]any{}
	for _, m := range PredefinedMeasures {
		overview = append(overview, []any{m.Name, m.Evaluate(s), m.Description})
	}
	if err := writeSheet(f, SheetOverview, []any{"Measure", "Value", "Description"}, overview, headerStyle); err != nil {
		f.Close()
		return nil, err
	}

	var patients [][]any
	for _, p := range s.Patients.Items() {
		var wardID any = ""
		if p.Ward != nil {
			wardID = *p.Ward
		}
		patients = append(patients, []any{p.ID, p.Name, p.Age, p.Gender, p.Phone, string(p.Status), wardID, p.BedNumber, p.AssignedDoctorName})
	}
	var wards [][]any
	for _, w := range s.Wards.Items() {
		wards = append(wards, []any{w.ID, w.Name, w.Department, w.Floor, w.TotalBeds, w.OccupiedBeds, w.AvailableBeds, w.OccupancyPercentage, w.NurseInCharge})
	}
	var items [][]any
	for _, it := range s.Inventory.Items() {
		low := "No"
		if it.LowStock() {
			low = "Yes"
		}
		items = append(items, []any{it.ID, it.Name, it.Category, it.Quantity, it.Unit, it.MinStock, it.CostPerUnit.Float64(), it.TotalValue().Float64(), it.ExpiryDate, low})
	}
	var bills [][]any
	for _, b := range s.Bills.Items() {
		bills = append(bills, []any{b.ID, b.PatientName, b.Date, b.TotalAmount.Float64(), b.PaidAmount.Float64(), b.Balance().Float64(), b.Status})
	}

	sheets := []struct {
		name   string
		header []any
		rows   [][]any
	}{
		{SheetPatients, patientHeader, patients},
		{SheetWards, wardHeader, wards},
		{SheetInventory, inventoryHeader, items},
		{SheetBills, billHeader, bills},
	}
	for _, sh := range sheets {
		if _, err := f.NewSheet(sh.name); err != nil {
			f.Close()
			return nil, fmt.Errorf("create sheet %s: %w", sh.name, err)
		}
		if err := writeSheet(f, sh.name, sh.header, sh.rows, headerStyle); err != nil {
			f.Close()
			return nil, err
		}
	}
	f.SetActiveSheet(0)
	return f, nil
}

// WriteSummary renders the summary workbook as xlsx into w.
func WriteSummary(w io.Writer, s store.State) error {
	f, err := SummaryWorkbook(s)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, header []any, rows [][]any, headerStyle int) error {
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write %s header: %w", sheet, err)
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("style %s header: %w", sheet, err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+2, err)
		}
	}
	lastCol, err := excelize.ColumnNumberToName(len(header))
	if err != nil {
		return err
	}
	return f.SetColWidth(sheet, "A", lastCol, 18)
}
