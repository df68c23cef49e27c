package store

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/ehr/hospital/internal/domain/identity"
)

type fetchFunc func(*Store, context.Context) error

var (
	fetchPatients           fetchFunc = func(s *Store, ctx context.Context) error { return s.FetchPatients(ctx, nil) }
	fetchStaff              fetchFunc = func(s *Store, ctx context.Context) error { return s.FetchStaff(ctx, nil) }
	fetchWards              fetchFunc = func(s *Store, ctx context.Context) error { return s.FetchWards(ctx, nil) }
	fetchAppointments       fetchFunc = func(s *Store, ctx context.Context) error { return s.FetchAppointments(ctx, nil) }
	fetchMedicalRecords     fetchFunc = func(s *Store, ctx context.Context) error { return s.FetchMedicalRecords(ctx, nil) }
	fetchPrescriptions      fetchFunc = func(s *Store, ctx context.Context) error { return s.FetchPrescriptions(ctx, nil) }
	fetchLabTests           fetchFunc = func(s *Store, ctx context.Context) error { return s.FetchLabTests(ctx, nil) }
	fetchInventory          fetchFunc = func(s *Store, ctx context.Context) error { return s.FetchInventory(ctx, nil) }
	fetchBills              fetchFunc = func(s *Store, ctx context.Context) error { return s.FetchBills(ctx, nil) }
	fetchMedicationSchedule fetchFunc = func(s *Store, ctx context.Context) error { return s.LoadMedicationSchedule(ctx) }
)

type roleFetch struct {
	field string
	fetch fetchFunc
}

// roleFanOut lists the collections warmed right after sign-in.
var roleFanOut = map[identity.Role][]roleFetch{
	identity.RoleAdmin: {
		{Patients.name, fetchPatients},
		{Wards.name, fetchWards},
		{Appointments.name, fetchAppointments},
		{Inventory.name, fetchInventory},
		{Bills.name, fetchBills},
		{Staff.name, fetchStaff},
	},
	identity.RoleDoctor: {
		{Patients.name, fetchPatients},
		{Appointments.name, fetchAppointments},
		{MedicalRecords.name, fetchMedicalRecords},
		{Prescriptions.name, fetchPrescriptions},
		{LabTests.name, fetchLabTests},
	},
	identity.RoleNurse: {
		{Patients.name, fetchPatients},
		{Wards.name, fetchWards},
		{Inventory.name, fetchInventory},
		{MedicationSchedule.name, fetchMedicationSchedule},
	},
	identity.RoleReceptionist: {
		{Patients.name, fetchPatients},
		{Appointments.name, fetchAppointments},
		{Bills.name, fetchBills},
	},
}

// FanOutFields returns the collection names warmed for role, in order.
func FanOutFields(role identity.Role) []string {
	plan := roleFanOut[role]
	out := make([]string, len(plan))
	for i, f := range plan {
		out[i] = f.field
	}
	return out
}

// FanOut fetches the role's collections concurrently and waits for all of
// them. A failing fetch is logged and recorded but never stops its siblings.
// Unknown roles fetch nothing.
func (s *Store) FanOut(ctx context.Context, role identity.Role) {
	plan, ok := roleFanOut[role]
	if !ok {
		s.logger.Warn().Str("role", string(role)).Msg("no initial fetch plan for role")
		return
	}

	var g errgroup.Group
	for _, f := range plan {
		f := f
		g.Go(func() error {
			if err := f.fetch(s, ctx); err != nil {
				s.logger.Warn().Err(err).Str("collection", f.field).Msg("initial fetch failed")
			}
			return nil
		})
	}
	_ = g.Wait()
	s.logger.Debug().Str("role", string(role)).Int("collections", len(plan)).Msg("initial fetch done")
}
