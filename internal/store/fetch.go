package store

import (
	"context"
	"net/url"

	"github.com/ehr/hospital/internal/domain/nursing"
	"github.com/ehr/hospital/internal/platform/apiclient"
)

// fetch replaces f's collection with the listing from res. On failure the
// cached collection is kept and the error recorded.
func fetch[T Entity](ctx context.Context, s *Store, f Field[T], res apiclient.Resource, q url.Values) error {
	epoch, seq := s.begin()
	var page apiclient.Page[T]
	if err := s.backend.Do(ctx, res.List(q), &page); err != nil {
		s.logger.Warn().Err(err).Str("collection", f.name).Msg("fetch failed")
		return s.fail(epoch, err)
	}
	s.dispatchAt(epoch, Loaded[T]{Field: f, Items: page.Items, Seq: seq})
	return nil
}

func (s *Store) FetchPatients(ctx context.Context, q url.Values) error {
	return fetch(ctx, s, Patients, apiclient.Patients, q)
}

func (s *Store) FetchStaff(ctx context.Context, q url.Values) error {
	return fetch(ctx, s, Staff, apiclient.Staff, q)
}

func (s *Store) FetchWards(ctx context.Context, q url.Values) error {
	return fetch(ctx, s, Wards, apiclient.Wards, q)
}

func (s *Store) FetchAppointments(ctx context.Context, q url.Values) error {
	return fetch(ctx, s, Appointments, apiclient.Appointments, q)
}

func (s *Store) FetchMedicalRecords(ctx context.Context, q url.Values) error {
	return fetch(ctx, s, MedicalRecords, apiclient.MedicalRecords, q)
}

func (s *Store) FetchPrescriptions(ctx context.Context, q url.Values) error {
	return fetch(ctx, s, Prescriptions, apiclient.Prescriptions, q)
}

func (s *Store) FetchLabTests(ctx context.Context, q url.Values) error {
	return fetch(ctx, s, LabTests, apiclient.LabTests, q)
}

func (s *Store) FetchInventory(ctx context.Context, q url.Values) error {
	return fetch(ctx, s, Inventory, apiclient.Inventory, q)
}

func (s *Store) FetchBills(ctx context.Context, q url.Values) error {
	return fetch(ctx, s, Bills, apiclient.Bills, q)
}

// FetchVisitors is not part of any role's fan-out; the reception desk asks
// for it explicitly.
func (s *Store) FetchVisitors(ctx context.Context, q url.Values) error {
	return fetch(ctx, s, Visitors, apiclient.Visitors, q)
}

// LoadMedicationSchedule seeds the schedule from the built-in fixture. There
// is no server resource for it.
func (s *Store) LoadMedicationSchedule(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	epoch, seq := s.begin()
	entries, err := nursing.Fixture()
	if err != nil {
		s.dispatchAt(epoch, ErrorRecorded{Err: err})
		return err
	}
	s.dispatchAt(epoch, Loaded[nursing.MedicationScheduleEntry]{Field: MedicationSchedule, Items: entries, Seq: seq})
	return nil
}

// Refresh fetches a collection by name, as listed by State.Counts.
func (s *Store) Refresh(ctx context.Context, name string) error {
	switch name {
	case Patients.name:
		return s.FetchPatients(ctx, nil)
	case Staff.name:
		return s.FetchStaff(ctx, nil)
	case Wards.name:
		return s.FetchWards(ctx, nil)
	case Appointments.name:
		return s.FetchAppointments(ctx, nil)
	case MedicalRecords.name:
		return s.FetchMedicalRecords(ctx, nil)
	case Prescriptions.name:
		return s.FetchPrescriptions(ctx, nil)
	case LabTests.name:
		return s.FetchLabTests(ctx, nil)
	case Inventory.name:
		return s.FetchInventory(ctx, nil)
	case Bills.name:
		return s.FetchBills(ctx, nil)
	case MedicationSchedule.name:
		return s.LoadMedicationSchedule(ctx)
	case Visitors.name:
		return s.FetchVisitors(ctx, nil)
	}
	return &apiclient.Error{Kind: apiclient.KindValidation, Message: "unknown collection " + name}
}
