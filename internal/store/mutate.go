package store

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ehr/hospital/internal/domain/billing"
	"github.com/ehr/hospital/internal/domain/clinical"
	"github.com/ehr/hospital/internal/domain/identity"
	"github.com/ehr/hospital/internal/domain/inventory"
	"github.com/ehr/hospital/internal/domain/patient"
	"github.com/ehr/hospital/internal/domain/scheduling"
	"github.com/ehr/hospital/internal/domain/visitor"
	"github.com/ehr/hospital/internal/domain/ward"
	"github.com/ehr/hospital/internal/platform/apiclient"
)

// Mutations never touch state before the server answers: the collection
// changes only with the server's own representation of the entity.

func create[T Entity](ctx context.Context, s *Store, f Field[T], res apiclient.Resource, payload T) (T, error) {
	var zero T
	if err := check(payload); err != nil {
		s.dispatch(ErrorRecorded{Err: err})
		return zero, err
	}
	epoch := s.currentEpoch()
	var created T
	if err := s.backend.Do(ctx, res.Create(payload), &created); err != nil {
		return zero, s.fail(epoch, err)
	}
	s.dispatchAt(epoch, Added[T]{Field: f, Item: created})
	return created, nil
}

func update[T Entity](ctx context.Context, s *Store, f Field[T], res apiclient.Resource, id int64, payload T) (T, error) {
	var zero T
	if err := check(payload); err != nil {
		s.dispatch(ErrorRecorded{Err: err})
		return zero, err
	}
	return send(ctx, s, f, res.Update(id, payload))
}

// send performs req and replaces the element the server echoes back.
func send[T Entity](ctx context.Context, s *Store, f Field[T], req apiclient.Request) (T, error) {
	var zero T
	epoch := s.currentEpoch()
	var updated T
	if err := s.backend.Do(ctx, req, &updated); err != nil {
		return zero, s.fail(epoch, err)
	}
	s.dispatchAt(epoch, Updated[T]{Field: f, Item: updated})
	return updated, nil
}

func remove[T Entity](ctx context.Context, s *Store, f Field[T], res apiclient.Resource, id int64) error {
	epoch := s.currentEpoch()
	if err := s.backend.Do(ctx, res.Delete(id), nil); err != nil {
		return s.fail(epoch, err)
	}
	s.dispatchAt(epoch, Removed[T]{Field: f, ID: id})
	return nil
}

// ===================== Patients =====================

func (s *Store) AddPatient(ctx context.Context, p patient.Patient) (patient.Patient, error) {
	return create(ctx, s, Patients, apiclient.Patients, p)
}

func (s *Store) UpdatePatient(ctx context.Context, id int64, p patient.Patient) (patient.Patient, error) {
	return update(ctx, s, Patients, apiclient.Patients, id, p)
}

func (s *Store) DeletePatient(ctx context.Context, id int64) error {
	return remove(ctx, s, Patients, apiclient.Patients, id)
}

// ===================== Staff =====================

func (s *Store) AddStaff(ctx context.Context, u identity.StaffMember) (identity.StaffMember, error) {
	return create(ctx, s, Staff, apiclient.Staff, u)
}

func (s *Store) UpdateStaff(ctx context.Context, id int64, u identity.StaffMember) (identity.StaffMember, error) {
	return update(ctx, s, Staff, apiclient.Staff, id, u)
}

func (s *Store) DeleteStaff(ctx context.Context, id int64) error {
	return remove(ctx, s, Staff, apiclient.Staff, id)
}

// ===================== Wards and beds =====================

// AddWard creates a ward and re-fetches wards, since the server generates
// the ward's beds.
func (s *Store) AddWard(ctx context.Context, w ward.Ward) (ward.Ward, error) {
	created, err := create(ctx, s, Wards, apiclient.Wards, w)
	if err != nil {
		return created, err
	}
	s.refetchWards(ctx)
	return created, nil
}

func (s *Store) UpdateWard(ctx context.Context, id int64, w ward.Ward) (ward.Ward, error) {
	updated, err := update(ctx, s, Wards, apiclient.Wards, id, w)
	if err != nil {
		return updated, err
	}
	s.refetchWards(ctx)
	return updated, nil
}

func (s *Store) DeleteWard(ctx context.Context, id int64) error {
	return remove(ctx, s, Wards, apiclient.Wards, id)
}

// UpdateBedStatus changes one bed, patches it into its ward straight away,
// then re-fetches wards because occupancy figures are computed server side.
func (s *Store) UpdateBedStatus(ctx context.Context, bedID int64, upd ward.BedStatusUpdate) (ward.Bed, error) {
	if err := check(upd); err != nil {
		s.dispatch(ErrorRecorded{Err: err})
		return ward.Bed{}, err
	}
	epoch := s.currentEpoch()
	var bed ward.Bed
	req := apiclient.Beds.Action(bedID, "update_status", http.MethodPatch, upd)
	if err := s.backend.Do(ctx, req, &bed); err != nil {
		return ward.Bed{}, s.fail(epoch, err)
	}
	if bed.ID == 0 {
		bed.ID = bedID
	}
	s.dispatchAt(epoch, BedPatched{Bed: bed})
	s.refetchWards(ctx)
	return bed, nil
}

// refetchWards runs after a successful ward-level mutation. Its failure is
// recorded but does not fail the mutation that already succeeded.
func (s *Store) refetchWards(ctx context.Context) {
	if err := s.FetchWards(ctx, nil); err != nil {
		s.logger.Warn().Err(err).Msg("ward refresh failed")
	}
}

// ===================== Appointments =====================

func (s *Store) AddAppointment(ctx context.Context, a scheduling.Appointment) (scheduling.Appointment, error) {
	return create(ctx, s, Appointments, apiclient.Appointments, a)
}

func (s *Store) UpdateAppointment(ctx context.Context, id int64, a scheduling.Appointment) (scheduling.Appointment, error) {
	return update(ctx, s, Appointments, apiclient.Appointments, id, a)
}

// TransitionAppointment runs complete, cancel or no_show. reason is only
// sent with cancel.
func (s *Store) TransitionAppointment(ctx context.Context, id int64, action scheduling.Action, reason string) (scheduling.Appointment, error) {
	if !action.Valid() {
		err := &apiclient.Error{Kind: apiclient.KindValidation, Message: fmt.Sprintf("unknown appointment action %q", action)}
		s.dispatch(ErrorRecorded{Err: err})
		return scheduling.Appointment{}, err
	}
	var body any
	if action == scheduling.ActionCancel && reason != "" {
		body = map[string]string{"reason": reason}
	}
	req := apiclient.Appointments.Action(id, string(action), http.MethodPatch, body)
	return send(ctx, s, Appointments, req)
}

func (s *Store) CompleteAppointment(ctx context.Context, id int64) (scheduling.Appointment, error) {
	return s.TransitionAppointment(ctx, id, scheduling.ActionComplete, "")
}

func (s *Store) CancelAppointment(ctx context.Context, id int64, reason string) (scheduling.Appointment, error) {
	return s.TransitionAppointment(ctx, id, scheduling.ActionCancel, reason)
}

func (s *Store) MarkNoShow(ctx context.Context, id int64) (scheduling.Appointment, error) {
	return s.TransitionAppointment(ctx, id, scheduling.ActionNoShow, "")
}

// ===================== Clinical =====================

func (s *Store) AddMedicalRecord(ctx context.Context, r clinical.MedicalRecord) (clinical.MedicalRecord, error) {
	return create(ctx, s, MedicalRecords, apiclient.MedicalRecords, r)
}

func (s *Store) AddPrescription(ctx context.Context, p clinical.Prescription) (clinical.Prescription, error) {
	return create(ctx, s, Prescriptions, apiclient.Prescriptions, p)
}

func (s *Store) AddLabTest(ctx context.Context, l clinical.LabTest) (clinical.LabTest, error) {
	return create(ctx, s, LabTests, apiclient.LabTests, l)
}

// CompleteLabTest records results; the server's updated test replaces the
// cached one.
func (s *Store) CompleteLabTest(ctx context.Context, id int64, c clinical.LabTestCompletion) (clinical.LabTest, error) {
	if err := check(c); err != nil {
		s.dispatch(ErrorRecorded{Err: err})
		return clinical.LabTest{}, err
	}
	return send(ctx, s, LabTests, apiclient.LabTests.Action(id, "complete", http.MethodPatch, c))
}

// StartLabTest moves a pending test to in_progress.
func (s *Store) StartLabTest(ctx context.Context, id int64) (clinical.LabTest, error) {
	return send(ctx, s, LabTests, apiclient.LabTests.Action(id, "start_processing", http.MethodPatch, nil))
}

// CancelLabTest cancels a test. A non-empty reason replaces its notes.
func (s *Store) CancelLabTest(ctx context.Context, id int64, reason string) (clinical.LabTest, error) {
	var body any
	if reason != "" {
		body = clinical.LabTestCancellation{Reason: reason}
	}
	return send(ctx, s, LabTests, apiclient.LabTests.Action(id, "cancel", http.MethodPatch, body))
}

// ===================== Inventory =====================

func (s *Store) AddInventoryItem(ctx context.Context, it inventory.Item) (inventory.Item, error) {
	return create(ctx, s, Inventory, apiclient.Inventory, it)
}

func (s *Store) UpdateInventoryItem(ctx context.Context, id int64, it inventory.Item) (inventory.Item, error) {
	return update(ctx, s, Inventory, apiclient.Inventory, id, it)
}

func (s *Store) DeleteInventoryItem(ctx context.Context, id int64) error {
	return remove(ctx, s, Inventory, apiclient.Inventory, id)
}

// AdjustStock applies a signed quantity change; the item the server returns
// replaces the cached one.
func (s *Store) AdjustStock(ctx context.Context, id int64, adj inventory.StockAdjustment) (inventory.Item, error) {
	if err := check(adj); err != nil {
		s.dispatch(ErrorRecorded{Err: err})
		return inventory.Item{}, err
	}
	return send(ctx, s, Inventory, apiclient.Inventory.Action(id, "adjust_stock", http.MethodPost, adj))
}

// ===================== Billing =====================

func (s *Store) AddBill(ctx context.Context, b billing.Bill) (billing.Bill, error) {
	return create(ctx, s, Bills, apiclient.Bills, b)
}

// AddPayment records a payment; the bill the server returns replaces the
// cached one.
func (s *Store) AddPayment(ctx context.Context, billID int64, p billing.Payment) (billing.Bill, error) {
	if err := check(p); err != nil {
		s.dispatch(ErrorRecorded{Err: err})
		return billing.Bill{}, err
	}
	return send(ctx, s, Bills, apiclient.Bills.Action(billID, "add_payment", http.MethodPost, p))
}

// ===================== Visitors =====================

func (s *Store) AddVisitor(ctx context.Context, v visitor.Visitor) (visitor.Visitor, error) {
	return create(ctx, s, Visitors, apiclient.Visitors, v)
}

// CheckoutVisitor marks a visitor as checked out.
func (s *Store) CheckoutVisitor(ctx context.Context, id int64) (visitor.Visitor, error) {
	return send(ctx, s, Visitors, apiclient.Visitors.Action(id, "checkout", http.MethodPatch, nil))
}

// ===================== Medication schedule =====================

// AdministerMedication marks a schedule entry as given by the signed-in
// user. It is tracked locally only and never sent to the server.
func (s *Store) AdministerMedication(id int64) error {
	st := s.Snapshot()
	if st.Session.CurrentUser == nil {
		return errNotSignedIn
	}
	entry, ok := st.MedicationSchedule.Find(id)
	if !ok {
		return fmt.Errorf("medication schedule entry %d not found", id)
	}
	if entry.Administered {
		return fmt.Errorf("medication schedule entry %d already administered", id)
	}
	s.dispatch(MedicationAdministered{
		EntryID: id,
		By:      st.Session.CurrentUser.DisplayName(),
		At:      s.now(),
	})
	return nil
}
