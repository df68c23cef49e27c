package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ehr/hospital/internal/domain/billing"
	"github.com/ehr/hospital/internal/domain/clinical"
	"github.com/ehr/hospital/internal/domain/inventory"
	"github.com/ehr/hospital/internal/domain/patient"
	"github.com/ehr/hospital/internal/domain/visitor"
	"github.com/ehr/hospital/internal/domain/ward"
	"github.com/ehr/hospital/internal/platform/reporting"
	"github.com/ehr/hospital/internal/store"
	"github.com/ehr/hospital/pkg/money"
)

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

// ---------------------------------------------------------------------------
// Patients
// ---------------------------------------------------------------------------

// patientFlags are shared by add and update; update only applies the flags
// that were set.
type patientFlags struct {
	name, gender, phone, email, address string
	emergencyContact, bloodType         string
	allergies, status                   string
	age                                 int
	doctor                              int64
}

func (pf *patientFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&pf.name, "name", "", "Full name")
	fs.IntVar(&pf.age, "age", 0, "Age in years")
	fs.StringVar(&pf.gender, "gender", "", "Male, Female or Other")
	fs.StringVar(&pf.phone, "phone", "", "Phone number")
	fs.StringVar(&pf.email, "email", "", "Email address")
	fs.StringVar(&pf.address, "address", "", "Postal address")
	fs.StringVar(&pf.emergencyContact, "emergency-contact", "", "Emergency contact phone")
	fs.StringVar(&pf.bloodType, "blood-type", "", "Blood type, e.g. O+")
	fs.StringVar(&pf.allergies, "allergies", "", "Known allergies")
	fs.StringVar(&pf.status, "status", "", "outpatient, admitted or discharged")
	fs.Int64Var(&pf.doctor, "doctor", 0, "Assigned doctor id")
}

func (pf *patientFlags) apply(cmd *cobra.Command, p *patient.Patient) {
	fs := cmd.Flags()
	set := func(flag string, dst *string, v string) {
		if fs.Changed(flag) {
			*dst = v
		}
	}
	set("name", &p.Name, pf.name)
	set("gender", &p.Gender, pf.gender)
	set("phone", &p.Phone, pf.phone)
	set("email", &p.Email, pf.email)
	set("address", &p.Address, pf.address)
	set("emergency-contact", &p.EmergencyContact, pf.emergencyContact)
	set("blood-type", &p.BloodType, pf.bloodType)
	set("allergies", &p.Allergies, pf.allergies)
	if fs.Changed("age") {
		p.Age = pf.age
	}
	if fs.Changed("status") {
		p.Status = patient.Status(pf.status)
	}
	if fs.Changed("doctor") {
		doc := pf.doctor
		p.AssignedDoctor = &doc
	}
}

func patientCmd(f *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patient",
		Short: "Register, update and remove patients",
	}

	var addFlags patientFlags
	add := &cobra.Command{
		Use:   "add",
		Short: "Register a patient",
		Args:  cobra.NoArgs,
	}
	add.RunE = run(f, func(ctx context.Context, c *console, _ store.State, _ []string) error {
		var p patient.Patient
		addFlags.apply(add, &p)
		created, err := c.store.AddPatient(ctx, p)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "Registered patient %d: %s\n", created.ID, created.Name)
		return nil
	})
	addFlags.register(add)
	cmd.AddCommand(add)

	var updFlags patientFlags
	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Change a patient's details",
		Args:  cobra.ExactArgs(1),
	}
	update.RunE = run(f, func(ctx context.Context, c *console, st store.State, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		p, ok := st.Patients.Find(id)
		if !ok {
			return fmt.Errorf("patient %d not found", id)
		}
		updFlags.apply(update, &p)
		updated, err := c.store.UpdatePatient(ctx, id, p)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "Updated patient %d: %s\n", updated.ID, updated.Name)
		return nil
	})
	updFlags.register(update)
	cmd.AddCommand(update)

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Remove a patient",
		Args:  cobra.ExactArgs(1),
		RunE: run(f, func(ctx context.Context, c *console, _ store.State, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := c.store.DeletePatient(ctx, id); err != nil {
				return err
			}
			fmt.Fprintf(c.out, "Deleted patient %d\n", id)
			return nil
		}),
	})
	return cmd
}

// ---------------------------------------------------------------------------
// Beds
// ---------------------------------------------------------------------------

func bedCmd(f *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bed",
		Short: "Bed management",
	}

	var patientID int64
	var admissionDate string
	status := &cobra.Command{
		Use:   "status <bed-id> <available|occupied|maintenance|cleaning>",
		Short: "Change a bed's status",
		Args:  cobra.ExactArgs(2),
		RunE: run(f, func(ctx context.Context, c *console, _ store.State, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			upd := ward.BedStatusUpdate{Status: ward.BedStatus(args[1]), AdmissionDate: admissionDate}
			if patientID != 0 {
				upd.Patient = &patientID
			}
			bed, err := c.store.UpdateBedStatus(ctx, id, upd)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "Bed %s is now %s", bed.Number, bed.Status)
			if bed.PatientName != "" {
				fmt.Fprintf(c.out, " (%s)", bed.PatientName)
			}
			fmt.Fprintln(c.out)

			st := c.store.Snapshot()
			occupied, total := reporting.Occupancy(st)
			fmt.Fprintf(c.out, "Hospital occupancy: %d/%d beds\n", occupied, total)
			return nil
		}),
	}
	status.Flags().Int64Var(&patientID, "patient", 0, "Patient id when occupying the bed")
	status.Flags().StringVar(&admissionDate, "admission-date", "", "Admission date YYYY-MM-DD (defaults to today)")
	cmd.AddCommand(status)
	return cmd
}

// ---------------------------------------------------------------------------
// Appointments
// ---------------------------------------------------------------------------

func appointmentCmd(f *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "appointment",
		Aliases: []string{"appt"},
		Short:   "Appointment transitions",
	}

	transition := func(use, short string, do func(ctx context.Context, s *store.Store, id int64) (string, error)) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <id>",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: run(f, func(ctx context.Context, c *console, _ store.State, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				status, err := do(ctx, c.store, id)
				if err != nil {
					return err
				}
				fmt.Fprintf(c.out, "Appointment %d is now %s\n", id, status)
				return nil
			}),
		}
	}

	cmd.AddCommand(transition("complete", "Mark an appointment completed", func(ctx context.Context, s *store.Store, id int64) (string, error) {
		a, err := s.CompleteAppointment(ctx, id)
		return string(a.Status), err
	}))

	var reason string
	cancel := transition("cancel", "Cancel an appointment", func(ctx context.Context, s *store.Store, id int64) (string, error) {
		a, err := s.CancelAppointment(ctx, id, reason)
		return string(a.Status), err
	})
	cancel.Flags().StringVar(&reason, "reason", "", "Cancellation reason")
	cmd.AddCommand(cancel)

	cmd.AddCommand(transition("no-show", "Mark a patient as not attending", func(ctx context.Context, s *store.Store, id int64) (string, error) {
		a, err := s.MarkNoShow(ctx, id)
		return string(a.Status), err
	}))
	return cmd
}

// ---------------------------------------------------------------------------
// Lab tests
// ---------------------------------------------------------------------------

func labtestCmd(f *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "labtest",
		Short: "Lab test results",
	}
	var body clinical.LabTestCompletion
	complete := &cobra.Command{
		Use:   "complete <id>",
		Short: "Record results and complete a lab test",
		Args:  cobra.ExactArgs(1),
		RunE: run(f, func(ctx context.Context, c *console, _ store.State, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			l, err := c.store.CompleteLabTest(ctx, id, body)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "Lab test %d (%s) completed on %s\n", l.ID, l.TestType, l.CompletedDate)
			return nil
		}),
	}
	complete.Flags().StringVar(&body.Results, "results", "", "Result text")
	complete.Flags().StringVar(&body.Notes, "notes", "", "Notes")
	cmd.AddCommand(complete)

	cmd.AddCommand(&cobra.Command{
		Use:   "start <id>",
		Short: "Mark a pending lab test as in progress",
		Args:  cobra.ExactArgs(1),
		RunE: run(f, func(ctx context.Context, c *console, _ store.State, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			l, err := c.store.StartLabTest(ctx, id)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "Lab test %d (%s) is now %s\n", l.ID, l.TestType, l.Status)
			return nil
		}),
	})

	var reason string
	cancel := &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a lab test",
		Args:  cobra.ExactArgs(1),
		RunE: run(f, func(ctx context.Context, c *console, _ store.State, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			l, err := c.store.CancelLabTest(ctx, id, reason)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "Lab test %d (%s) is now %s\n", l.ID, l.TestType, l.Status)
			return nil
		}),
	}
	cancel.Flags().StringVar(&reason, "reason", "", "Cancellation reason, stored as the test's notes")
	cmd.AddCommand(cancel)
	return cmd
}

// ---------------------------------------------------------------------------
// Inventory
// ---------------------------------------------------------------------------

func inventoryCmd(f *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "inventory",
		Aliases: []string{"stock"},
		Short:   "Stock levels",
	}
	var adj inventory.StockAdjustment
	adjust := &cobra.Command{
		Use:   "adjust <item-id>",
		Short: "Add or remove stock; a negative --by takes stock out",
		Args:  cobra.ExactArgs(1),
		RunE: run(f, func(ctx context.Context, c *console, _ store.State, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			it, err := c.store.AdjustStock(ctx, id, adj)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "%s: %d %s in stock", it.Name, it.Quantity, it.Unit)
			if it.LowStock() {
				fmt.Fprintf(c.out, " (low, reorder at %d)", it.MinStock)
			}
			fmt.Fprintln(c.out)
			return nil
		}),
	}
	adjust.Flags().IntVar(&adj.QuantityChange, "by", 0, "Signed quantity change, e.g. 20 or -3")
	adjust.Flags().StringVar(&adj.Reason, "reason", "Manual adjustment", "Reason recorded with the change")
	cmd.AddCommand(adjust)
	return cmd
}

// ---------------------------------------------------------------------------
// Visitors
// ---------------------------------------------------------------------------

func visitorCmd(f *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "visitor",
		Short: "Front desk visitor log",
	}

	var v visitor.Visitor
	var status string
	add := &cobra.Command{
		Use:   "add",
		Short: "Check a visitor in",
		Args:  cobra.NoArgs,
		RunE: run(f, func(ctx context.Context, c *console, _ store.State, _ []string) error {
			v.Status = visitor.Status(status)
			created, err := c.store.AddVisitor(ctx, v)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "Visitor %d: %s visiting %s (%s)\n", created.ID, created.Name, created.PatientName, created.Status)
			return nil
		}),
	}
	fs := add.Flags()
	fs.StringVar(&v.Name, "name", "", "Visitor's full name")
	fs.StringVar(&v.Phone, "phone", "", "Phone number")
	fs.Int64Var(&v.Patient, "patient", 0, "Patient id being visited")
	fs.StringVar(&v.Relationship, "relationship", "", "Relationship to the patient")
	fs.StringVar(&v.Purpose, "purpose", "", "Purpose of the visit")
	fs.StringVar(&v.IDType, "id-type", "", "Identity document type")
	fs.StringVar(&v.IDNumber, "id-number", "", "Identity document number")
	fs.StringVar(&status, "status", "", "visiting or waiting (defaults to visiting)")
	cmd.AddCommand(add)

	cmd.AddCommand(&cobra.Command{
		Use:   "checkout <id>",
		Short: "Check a visitor out",
		Args:  cobra.ExactArgs(1),
		RunE: run(f, func(ctx context.Context, c *console, _ store.State, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			out, err := c.store.CheckoutVisitor(ctx, id)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "Visitor %d (%s) checked out\n", out.ID, out.Name)
			return nil
		}),
	})
	return cmd
}

// ---------------------------------------------------------------------------
// Billing
// ---------------------------------------------------------------------------

func billCmd(f *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bill",
		Short: "Billing",
	}

	var amount string
	var printReceipt bool
	var p billing.Payment
	pay := &cobra.Command{
		Use:   "pay <bill-id>",
		Short: "Record a payment against a bill",
		Args:  cobra.ExactArgs(1),
		RunE: run(f, func(ctx context.Context, c *console, _ store.State, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if p.Amount, err = money.Parse(amount); err != nil {
				return fmt.Errorf("invalid amount %q: %w", amount, err)
			}
			b, err := c.store.AddPayment(ctx, id, p)
			if err != nil {
				return err
			}
			if printReceipt {
				fmt.Fprint(c.out, reporting.Receipt(b, ""))
				return nil
			}
			fmt.Fprintf(c.out, "Bill %d: paid %s of %s, balance %s (%s)\n",
				b.ID, b.PaidAmount, b.TotalAmount, b.Balance(), b.Status)
			return nil
		}),
	}
	pay.Flags().StringVar(&amount, "amount", "", "Amount, e.g. 125.50")
	pay.Flags().StringVar(&p.PaymentMethod, "method", billing.MethodCash, "cash, card, check, insurance or bank_transfer")
	pay.Flags().StringVar(&p.TransactionID, "transaction-id", "", "External transaction reference")
	pay.Flags().StringVar(&p.Notes, "notes", "", "Notes")
	pay.Flags().BoolVar(&printReceipt, "receipt", false, "Print a receipt for the updated bill")
	cmd.AddCommand(pay)
	return cmd
}

// ---------------------------------------------------------------------------
// Medication rounds
// ---------------------------------------------------------------------------

func medCmd(f *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "med",
		Short: "Medication rounds",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "administer <entry-id>",
		Short: "Mark a scheduled dose as given (kept for this session only)",
		Args:  cobra.ExactArgs(1),
		RunE: run(f, func(ctx context.Context, c *console, st store.State, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if _, err := c.ensure(ctx, st, store.MedicationSchedule.Name()); err != nil {
				return err
			}
			if err := c.store.AdministerMedication(id); err != nil {
				return err
			}
			e, _ := c.store.Snapshot().MedicationSchedule.Find(id)
			fmt.Fprintf(c.out, "%s %s for %s given by %s\n", e.Medication, e.Dosage, e.PatientName, e.AdministeredBy)
			return nil
		}),
	})
	return cmd
}
