package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ehr/hospital/internal/store"
)

func collectionNames() []string {
	names := make([]string, 0, 10)
	for name := range store.Initial().Counts() {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func listCmd(f *rootFlags) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:       "list <collection>",
		Short:     "Print a collection",
		Long:      "Print a collection. Known collections: " + strings.Join(collectionNames(), ", "),
		Args:      cobra.ExactArgs(1),
		ValidArgs: collectionNames(),
		RunE: run(f, func(ctx context.Context, c *console, st store.State, args []string) error {
			name := args[0]
			if _, ok := st.Counts()[name]; !ok {
				return fmt.Errorf("unknown collection %q (known: %s)", name, strings.Join(collectionNames(), ", "))
			}
			st, err := c.ensure(ctx, st, name)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(c.out, items(st, name))
			}
			header, rows := table(st, name)
			return writeTable(c.out, header, rows)
		}),
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func items(st store.State, name string) any {
	switch name {
	case store.Patients.Name():
		return st.Patients.Items()
	case store.Staff.Name():
		return st.Staff.Items()
	case store.Wards.Name():
		return st.Wards.Items()
	case store.Appointments.Name():
		return st.Appointments.Items()
	case store.MedicalRecords.Name():
		return st.MedicalRecords.Items()
	case store.Prescriptions.Name():
		return st.Prescriptions.Items()
	case store.LabTests.Name():
		return st.LabTests.Items()
	case store.Inventory.Name():
		return st.Inventory.Items()
	case store.Bills.Name():
		return st.Bills.Items()
	case store.MedicationSchedule.Name():
		return st.MedicationSchedule.Items()
	case store.Visitors.Name():
		return st.Visitors.Items()
	}
	return nil
}

func idStr(n int64) string { return strconv.FormatInt(n, 10) }

// table lays out the columns an operator scans for in each collection.
func table(st store.State, name string) ([]string, [][]string) {
	var rows [][]string
	switch name {
	case store.Patients.Name():
		for _, p := range st.Patients.Items() {
			rows = append(rows, []string{idStr(p.ID), p.Name, strconv.Itoa(p.Age), p.Gender, p.Phone, string(p.Status), p.BedNumber})
		}
		return []string{"ID", "NAME", "AGE", "GENDER", "PHONE", "STATUS", "BED"}, rows
	case store.Staff.Name():
		for _, u := range st.Staff.Items() {
			rows = append(rows, []string{idStr(u.ID), u.Username, u.DisplayName(), string(u.Role), u.Department, u.Status})
		}
		return []string{"ID", "USERNAME", "NAME", "ROLE", "DEPARTMENT", "STATUS"}, rows
	case store.Wards.Name():
		for _, w := range st.Wards.Items() {
			rows = append(rows, []string{
				idStr(w.ID), w.Name, w.Department, strconv.Itoa(w.Floor),
				fmt.Sprintf("%d/%d", w.OccupiedBeds, w.TotalBeds),
				strconv.FormatFloat(w.OccupancyPercentage, 'f', 1, 64) + "%",
			})
		}
		return []string{"ID", "NAME", "DEPARTMENT", "FLOOR", "OCCUPIED", "OCCUPANCY"}, rows
	case store.Appointments.Name():
		for _, a := range st.Appointments.Items() {
			rows = append(rows, []string{idStr(a.ID), a.Date, a.Time, a.PatientName, a.DoctorName, a.Type, string(a.Status)})
		}
		return []string{"ID", "DATE", "TIME", "PATIENT", "DOCTOR", "TYPE", "STATUS"}, rows
	case store.MedicalRecords.Name():
		for _, r := range st.MedicalRecords.Items() {
			rows = append(rows, []string{idStr(r.ID), r.Date, r.PatientName, r.DoctorName, r.Diagnosis})
		}
		return []string{"ID", "DATE", "PATIENT", "DOCTOR", "DIAGNOSIS"}, rows
	case store.Prescriptions.Name():
		for _, p := range st.Prescriptions.Items() {
			meds := make([]string, len(p.Medications))
			for i, m := range p.Medications {
				meds[i] = m.Name
			}
			rows = append(rows, []string{idStr(p.ID), p.Date, p.PatientName, strings.Join(meds, ", "), p.Status})
		}
		return []string{"ID", "DATE", "PATIENT", "MEDICATIONS", "STATUS"}, rows
	case store.LabTests.Name():
		for _, l := range st.LabTests.Items() {
			rows = append(rows, []string{idStr(l.ID), l.OrderedDate, l.PatientName, l.TestType, l.Priority, string(l.Status)})
		}
		return []string{"ID", "ORDERED", "PATIENT", "TEST", "PRIORITY", "STATUS"}, rows
	case store.Inventory.Name():
		for _, it := range st.Inventory.Items() {
			low := ""
			if it.LowStock() {
				low = "LOW"
			}
			rows = append(rows, []string{idStr(it.ID), it.Name, it.Category, fmt.Sprintf("%d %s", it.Quantity, it.Unit), strconv.Itoa(it.MinStock), low})
		}
		return []string{"ID", "NAME", "CATEGORY", "QUANTITY", "MIN", ""}, rows
	case store.Bills.Name():
		for _, b := range st.Bills.Items() {
			rows = append(rows, []string{idStr(b.ID), b.Date, b.PatientName, b.TotalAmount.String(), b.PaidAmount.String(), b.Balance().String(), b.Status})
		}
		return []string{"ID", "DATE", "PATIENT", "TOTAL", "PAID", "BALANCE", "STATUS"}, rows
	case store.MedicationSchedule.Name():
		for _, e := range st.MedicationSchedule.Items() {
			given := "pending"
			if e.Administered {
				given = "given by " + e.AdministeredBy
			}
			rows = append(rows, []string{idStr(e.ID), e.Time, e.PatientName, e.BedNumber, e.Medication, e.Dosage, given})
		}
		return []string{"ID", "TIME", "PATIENT", "BED", "MEDICATION", "DOSAGE", "STATUS"}, rows
	case store.Visitors.Name():
		for _, v := range st.Visitors.Items() {
			in := ""
			if v.CheckInTime != nil {
				in = v.CheckInTime.Local().Format("2006-01-02 15:04")
			}
			rows = append(rows, []string{idStr(v.ID), v.Name, v.PatientName, v.Relationship, in, string(v.Status)})
		}
		return []string{"ID", "NAME", "VISITING", "RELATIONSHIP", "CHECKED IN", "STATUS"}, rows
	}
	return nil, nil
}

func writeTable(out io.Writer, header []string, rows [][]string) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(header, "\t"))
	for _, r := range rows {
		fmt.Fprintln(w, strings.Join(r, "\t"))
	}
	return w.Flush()
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
