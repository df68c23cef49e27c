package sandbox

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/goleak"

	"github.com/ehr/hospital/internal/domain/billing"
	"github.com/ehr/hospital/internal/domain/clinical"
	"github.com/ehr/hospital/internal/domain/identity"
	"github.com/ehr/hospital/internal/domain/inventory"
	"github.com/ehr/hospital/internal/domain/patient"
	"github.com/ehr/hospital/internal/domain/scheduling"
	"github.com/ehr/hospital/internal/domain/visitor"
	"github.com/ehr/hospital/internal/domain/ward"
	"github.com/ehr/hospital/internal/platform/apiclient"
	"github.com/ehr/hospital/internal/platform/session"
	"github.com/ehr/hospital/internal/store"
	"github.com/ehr/hospital/pkg/money"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

type harness struct {
	srv *Server
	ts  *httptest.Server
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	if opts.SigningKey == nil {
		opts.SigningKey = []byte("sandbox-test-signing-key-0123456789")
	}
	opts.Seed = testSeed()
	if opts.Now == nil {
		opts.Now = func() time.Time { return testToday }
	}
	srv, err := New(opts, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.Close()
	})
	return &harness{srv: srv, ts: ts}
}

func (h *harness) client() *apiclient.Client {
	return apiclient.New(apiclient.Options{BaseURL: h.ts.URL + "/api"}, session.NewMemory(), zerolog.Nop())
}

// signIn logs username in through a fresh client and store.
func (h *harness) signIn(t *testing.T, username string) (*store.Store, *apiclient.Client) {
	t.Helper()
	c := h.client()
	st := store.New(c, zerolog.Nop())
	if err := st.Login(context.Background(), username, DefaultPassword); err != nil {
		t.Fatalf("login %s: %v", username, err)
	}
	return st, c
}

// raw sends a request outside the client, for endpoints that do not answer
// JSON or for checking status codes directly.
func (h *harness) raw(t *testing.T, method, path, token string, body any) (int, []byte) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, h.ts.URL+"/api"+path, rd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Token "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, out
}

func wantAPIError(t *testing.T, err error, status int, msg string) {
	t.Helper()
	var apiErr *apiclient.Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *apiclient.Error, got %v", err)
	}
	if status != 0 && apiErr.Status != status {
		t.Errorf("status: got %d, want %d", apiErr.Status, status)
	}
	if msg != "" && apiErr.Message != msg {
		t.Errorf("message: got %q, want %q", apiErr.Message, msg)
	}
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

func TestNew_RequiresSigningKey(t *testing.T) {
	if _, err := New(Options{Seed: testSeed()}, zerolog.Nop()); err == nil {
		t.Fatal("expected error without a signing key")
	}
}

func TestClose_StopsBackgroundWork(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	srv, err := New(Options{SigningKey: []byte("k"), Seed: testSeed()}, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	srv.Close()
	srv.Close()
}

func TestHealth_IsPublic(t *testing.T) {
	h := newHarness(t, Options{})
	status, body := h.raw(t, http.MethodGet, "/health/", "", nil)
	if status != http.StatusOK || !strings.Contains(string(body), `"ok"`) {
		t.Fatalf("got %d %s", status, body)
	}
	if status, _ := h.raw(t, http.MethodGet, "/patients/", "", nil); status != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a token, got %d", status)
	}
}

// ---------------------------------------------------------------------------
// Sign-in
// ---------------------------------------------------------------------------

func TestLogin_FanOutByRole(t *testing.T) {
	for _, role := range identity.Roles {
		t.Run(string(role), func(t *testing.T) {
			h := newHarness(t, Options{})
			username := string(role)
			if role == identity.RoleReceptionist {
				username = "reception"
			}
			st, _ := h.signIn(t, username)
			snap := st.Snapshot()

			if !snap.Session.IsAuthenticated || snap.Session.CurrentUser.Role != role {
				t.Fatalf("unexpected session: %+v", snap.Session)
			}
			if snap.Err != nil {
				t.Fatalf("unexpected recorded error: %v", snap.Err)
			}
			warmed := map[string]bool{}
			for _, name := range store.FanOutFields(role) {
				warmed[name] = true
			}
			for name, n := range snap.Counts() {
				if warmed[name] && n == 0 {
					t.Errorf("%s: expected %s to be loaded", role, name)
				}
				if !warmed[name] && n != 0 {
					t.Errorf("%s: %s should not be loaded, has %d", role, name, n)
				}
			}
		})
	}
}

func TestLogin_AdminStaffExcludesAdmins(t *testing.T) {
	h := newHarness(t, Options{})
	st, _ := h.signIn(t, "admin")
	for _, u := range st.Snapshot().Staff.Items() {
		if u.Role == identity.RoleAdmin {
			t.Fatalf("staff list contains admin %q", u.Username)
		}
	}
}

func TestLogin_BadCredentials(t *testing.T) {
	h := newHarness(t, Options{})
	st := store.New(h.client(), zerolog.Nop())
	err := st.Login(context.Background(), "admin", "wrong-password")
	wantAPIError(t, err, http.StatusBadRequest, "Invalid username or password")
	snap := st.Snapshot()
	if snap.Session.IsAuthenticated || !snap.Empty() {
		t.Fatalf("expected anonymous empty state, got %+v", snap.Session)
	}
}

func TestLogin_PersistsSessionForRestore(t *testing.T) {
	h := newHarness(t, Options{})
	kv := session.NewMemory()
	c := apiclient.New(apiclient.Options{BaseURL: h.ts.URL + "/api"}, kv, zerolog.Nop())
	if err := store.New(c, zerolog.Nop()).Login(context.Background(), "nurse", DefaultPassword); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	again := store.New(apiclient.New(apiclient.Options{BaseURL: h.ts.URL + "/api"}, kv, zerolog.Nop()), zerolog.Nop())
	if !again.Restore(context.Background()) {
		t.Fatal("expected the stored session to restore")
	}
	snap := again.Snapshot()
	if snap.Session.CurrentUser.Username != "nurse" || snap.Wards.Len() == 0 {
		t.Fatalf("restore did not fan out: %+v", snap.Counts())
	}
}

func TestLogout_RevokesToken(t *testing.T) {
	h := newHarness(t, Options{})
	st, c := h.signIn(t, "reception")
	token := c.Token()

	if status, _ := h.raw(t, http.MethodGet, "/users/me/", token, nil); status != http.StatusOK {
		t.Fatalf("expected 200 before logout, got %d", status)
	}
	st.Logout(context.Background())
	if st.Snapshot().Session.IsAuthenticated {
		t.Fatal("expected signed out")
	}
	if status, _ := h.raw(t, http.MethodGet, "/users/me/", token, nil); status != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d", status)
	}
}

func TestPasswordReset_RevokesExistingTokens(t *testing.T) {
	var uid, resetToken string
	h := newHarness(t, Options{OnPasswordReset: func(_, u, tok string) { uid, resetToken = u, tok }})
	ctx := context.Background()
	st, c := h.signIn(t, "reception")
	old := c.Token()

	msg, err := st.ForgotPassword(ctx, "reception@hospital.example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg != "Password reset instructions have been sent to your email" || uid == "" || resetToken == "" {
		t.Fatalf("unexpected reset request: %q uid=%q", msg, uid)
	}

	_, err = st.ResetPassword(ctx, identity.PasswordResetConfirm{
		Token: "not-the-token", UIDB64: uid, NewPassword: "brand-new-pass", ConfirmPassword: "brand-new-pass",
	})
	wantAPIError(t, err, http.StatusBadRequest, "Invalid or expired token")

	msg, err = st.ResetPassword(ctx, identity.PasswordResetConfirm{
		Token: resetToken, UIDB64: uid, NewPassword: "brand-new-pass", ConfirmPassword: "brand-new-pass",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg != "Password has been reset successfully" {
		t.Fatalf("unexpected message %q", msg)
	}
	if status, _ := h.raw(t, http.MethodGet, "/users/me/", old, nil); status != http.StatusUnauthorized {
		t.Fatalf("expected old token revoked, got %d", status)
	}

	fresh := store.New(h.client(), zerolog.Nop())
	if err := fresh.Login(ctx, "reception", DefaultPassword); err == nil {
		t.Fatal("old password should no longer work")
	}
	if err := fresh.Login(ctx, "reception", "brand-new-pass"); err != nil {
		t.Fatalf("new password rejected: %v", err)
	}
}

func TestForgotPassword_UnknownEmail(t *testing.T) {
	h := newHarness(t, Options{})
	st := store.New(h.client(), zerolog.Nop())
	_, err := st.ForgotPassword(context.Background(), "nobody@hospital.example.com")
	wantAPIError(t, err, http.StatusBadRequest, "User with this email does not exist.")
}

// ---------------------------------------------------------------------------
// Patients
// ---------------------------------------------------------------------------

func TestPatients_EnvelopeAndCreate(t *testing.T) {
	h := newHarness(t, Options{})
	st, c := h.signIn(t, "reception")
	ctx := context.Background()

	if got := st.Snapshot().Patients.Len(); got != testSeed().PatientCount {
		t.Fatalf("expected %d patients, got %d", testSeed().PatientCount, got)
	}

	var page apiclient.Page[patient.Patient]
	if err := c.Do(ctx, apiclient.Request{Endpoint: "/patients/", Query: map[string][]string{"limit": {"5"}}}, &page); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !page.Enveloped || len(page.Items) != 5 || page.Count != testSeed().PatientCount || page.Next == nil {
		t.Fatalf("unexpected page: enveloped=%v items=%d count=%d", page.Enveloped, len(page.Items), page.Count)
	}

	created, err := st.AddPatient(ctx, patient.Patient{
		Name:    "Grace Hopper",
		Age:     45,
		Gender:  "Female",
		Phone:   "+1 555 010 0199",
		Email:   "grace@example.com",
		Address: "1 Navy Way",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.ID == 0 || created.Status != patient.StatusOutpatient || created.RegistrationDate != "2025-03-14" {
		t.Fatalf("unexpected echo: %+v", created)
	}
	if _, ok := st.Snapshot().Patients.Find(created.ID); !ok {
		t.Fatal("created patient missing from state")
	}

	_, err = st.AddPatient(ctx, patient.Patient{Name: "No Phone", Age: 30, Gender: "Male", Email: "x@example.com", Address: "a"})
	if apiclient.KindOf(err) != apiclient.KindValidation {
		t.Fatalf("expected client-side validation error, got %v", err)
	}
}

func TestPatients_NurseCannotCreate(t *testing.T) {
	h := newHarness(t, Options{})
	st, _ := h.signIn(t, "nurse")
	_, err := st.AddPatient(context.Background(), patient.Patient{
		Name: "Ada", Age: 36, Gender: "Female", Phone: "+44 20 7946 0958", Email: "ada@example.com", Address: "London",
	})
	wantAPIError(t, err, http.StatusForbidden, "")
}

// ---------------------------------------------------------------------------
// Beds
// ---------------------------------------------------------------------------

func firstBed(t *testing.T, wards []ward.Ward, status ward.BedStatus) (ward.Ward, ward.Bed) {
	t.Helper()
	for _, w := range wards {
		for _, b := range w.Beds {
			if b.Status == status {
				return w, b
			}
		}
	}
	t.Fatalf("no %s bed in seed", status)
	return ward.Ward{}, ward.Bed{}
}

func TestBedStatus_OccupyRefetchesWard(t *testing.T) {
	h := newHarness(t, Options{})
	st, _ := h.signIn(t, "nurse")
	ctx := context.Background()

	w, bed := firstBed(t, st.Snapshot().Wards.Items(), ward.BedAvailable)
	pid := int64(1)
	got, err := st.UpdateBedStatus(ctx, bed.ID, ward.BedStatusUpdate{Status: ward.BedOccupied, Patient: &pid})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Patient == nil || *got.Patient != pid || got.AdmissionDate == nil || *got.AdmissionDate != "2025-03-14" {
		t.Fatalf("unexpected bed: %+v", got)
	}

	after, ok := st.Snapshot().Wards.Find(w.ID)
	if !ok {
		t.Fatal("ward vanished")
	}
	if after.OccupiedBeds != w.OccupiedBeds+1 || after.AvailableBeds != w.AvailableBeds-1 {
		t.Fatalf("aggregates not refreshed: before %d/%d after %d/%d",
			w.OccupiedBeds, w.AvailableBeds, after.OccupiedBeds, after.AvailableBeds)
	}

	freed, err := st.UpdateBedStatus(ctx, bed.ID, ward.BedStatusUpdate{Status: ward.BedCleaning})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if freed.Patient != nil || freed.PatientName != "" {
		t.Fatalf("expected patient link cleared, got %+v", freed)
	}
}

func TestBedStatus_Errors(t *testing.T) {
	h := newHarness(t, Options{})
	st, c := h.signIn(t, "nurse")
	ctx := context.Background()
	_, bed := firstBed(t, st.Snapshot().Wards.Items(), ward.BedAvailable)

	req := apiclient.Beds.Action(bed.ID, "update_status", http.MethodPatch, map[string]any{"status": "bogus"})
	wantAPIError(t, c.Do(ctx, req, nil), http.StatusBadRequest, "Invalid status")

	missing := int64(9999)
	_, err := st.UpdateBedStatus(ctx, bed.ID, ward.BedStatusUpdate{Status: ward.BedOccupied, Patient: &missing})
	wantAPIError(t, err, http.StatusBadRequest, "Patient not found")
	if st.Snapshot().ErrorMessage() != "Patient not found" {
		t.Fatalf("expected error recorded, got %q", st.Snapshot().ErrorMessage())
	}

	_, err = st.UpdateBedStatus(ctx, 9999, ward.BedStatusUpdate{Status: ward.BedCleaning})
	wantAPIError(t, err, http.StatusNotFound, "Not found.")
}

func TestBedStatus_ReceptionistForbidden(t *testing.T) {
	h := newHarness(t, Options{})
	_, c := h.signIn(t, "reception")
	req := apiclient.Beds.Action(1, "update_status", http.MethodPatch, map[string]any{"status": "cleaning"})
	wantAPIError(t, c.Do(context.Background(), req, nil), http.StatusForbidden, "")
}

// ---------------------------------------------------------------------------
// Appointments
// ---------------------------------------------------------------------------

func scheduled(t *testing.T, items []scheduling.Appointment, n int) []scheduling.Appointment {
	t.Helper()
	var out []scheduling.Appointment
	for _, a := range items {
		if a.Status == scheduling.StatusScheduled {
			out = append(out, a)
		}
		if len(out) == n {
			return out
		}
	}
	t.Fatalf("need %d scheduled appointments, seed has %d", n, len(out))
	return nil
}

func TestAppointments_Transitions(t *testing.T) {
	h := newHarness(t, Options{})
	st, _ := h.signIn(t, "doctor")
	ctx := context.Background()
	picks := scheduled(t, st.Snapshot().Appointments.Items(), 3)

	done, err := st.CompleteAppointment(ctx, picks[0].ID)
	if err != nil || done.Status != scheduling.StatusCompleted {
		t.Fatalf("complete: %+v %v", done, err)
	}
	cancelled, err := st.CancelAppointment(ctx, picks[1].ID, "Patient request")
	if err != nil || cancelled.Status != scheduling.StatusCancelled || cancelled.Notes != "Cancelled: Patient request" {
		t.Fatalf("cancel: %+v %v", cancelled, err)
	}
	missed, err := st.MarkNoShow(ctx, picks[2].ID)
	if err != nil || missed.Status != scheduling.StatusNoShow {
		t.Fatalf("no-show: %+v %v", missed, err)
	}

	snap := st.Snapshot()
	for id, want := range map[int64]scheduling.AppointmentStatus{
		picks[0].ID: scheduling.StatusCompleted,
		picks[1].ID: scheduling.StatusCancelled,
		picks[2].ID: scheduling.StatusNoShow,
	} {
		if a, _ := snap.Appointments.Find(id); a.Status != want {
			t.Errorf("appointment %d: state has %s, want %s", id, a.Status, want)
		}
	}
}

func TestAppointments_DoctorCompletesOnlyOwn(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	admin, _ := h.signIn(t, "admin")

	other, err := admin.AddStaff(ctx, identity.StaffMember{
		Username:  "dr.house",
		FirstName: "Greg",
		LastName:  "House",
		Role:      identity.RoleDoctor,
		Email:     "house@hospital.example.com",
		Password:  "vicodin-123",
	})
	if err != nil {
		t.Fatalf("add staff: %v", err)
	}
	booked, err := admin.AddAppointment(ctx, scheduling.Appointment{
		Patient: 1,
		Doctor:  other.ID,
		Date:    "2025-03-20",
		Time:    "10:30",
		Type:    "consultation",
	})
	if err != nil {
		t.Fatalf("add appointment: %v", err)
	}
	if booked.DoctorName != "Greg House" || booked.Status != scheduling.StatusScheduled {
		t.Fatalf("unexpected booking: %+v", booked)
	}

	doctor, _ := h.signIn(t, "doctor")
	_, err = doctor.CompleteAppointment(ctx, booked.ID)
	wantAPIError(t, err, http.StatusForbidden, "You can only complete your own appointments")

	if _, err := doctor.CancelAppointment(ctx, booked.ID, ""); err != nil {
		t.Fatalf("cancel should be allowed: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Clinical
// ---------------------------------------------------------------------------

func TestLabTest_Complete(t *testing.T) {
	h := newHarness(t, Options{})
	st, _ := h.signIn(t, "doctor")
	ctx := context.Background()

	var pending clinical.LabTest
	for _, l := range st.Snapshot().LabTests.Items() {
		if l.Status == clinical.LabPending {
			pending = l
			break
		}
	}
	if pending.ID == 0 {
		created, err := st.AddLabTest(ctx, clinical.LabTest{Patient: 1, TestType: "Lipid Panel"})
		if err != nil {
			t.Fatalf("add lab test: %v", err)
		}
		pending = created
	}

	done, err := st.CompleteLabTest(ctx, pending.ID, clinical.LabTestCompletion{Results: "LDL 96 mg/dL"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if done.Status != clinical.LabCompleted || done.Results != "LDL 96 mg/dL" || done.CompletedDate != "2025-03-14" {
		t.Fatalf("unexpected lab test: %+v", done)
	}
	if l, _ := st.Snapshot().LabTests.Find(pending.ID); l.Status != clinical.LabCompleted {
		t.Fatalf("state not updated: %+v", l)
	}
}

func TestLabTest_StartAndCancel(t *testing.T) {
	h := newHarness(t, Options{})
	st, _ := h.signIn(t, "doctor")
	ctx := context.Background()

	ordered, err := st.AddLabTest(ctx, clinical.LabTest{Patient: 1, TestType: "Blood Glucose"})
	if err != nil {
		t.Fatalf("add lab test: %v", err)
	}

	started, err := st.StartLabTest(ctx, ordered.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if started.Status != clinical.LabInProgress {
		t.Fatalf("expected in progress, got %+v", started)
	}
	_, err = st.StartLabTest(ctx, ordered.ID)
	wantAPIError(t, err, http.StatusBadRequest, "Only pending tests can be started")

	cancelled, err := st.CancelLabTest(ctx, ordered.ID, "Patient not fasting")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cancelled.Status != clinical.LabCancelled || cancelled.Notes != "Patient not fasting" {
		t.Fatalf("unexpected lab test: %+v", cancelled)
	}
	if l, _ := st.Snapshot().LabTests.Find(ordered.ID); l.Status != clinical.LabCancelled {
		t.Fatalf("state not updated: %+v", l)
	}
	_, err = st.CancelLabTest(ctx, ordered.ID, "")
	wantAPIError(t, err, http.StatusBadRequest, "Test is already cancelled")

	reception, _ := h.signIn(t, "reception")
	_, err = reception.StartLabTest(ctx, ordered.ID)
	wantAPIError(t, err, http.StatusForbidden, "")
}

func TestMedicalRecord_FiledUnderCaller(t *testing.T) {
	h := newHarness(t, Options{})
	st, _ := h.signIn(t, "doctor")
	rec, err := st.AddMedicalRecord(context.Background(), clinical.MedicalRecord{
		Patient:   2,
		Doctor:    999,
		Symptoms:  "Cough",
		Diagnosis: "Bronchitis",
		Treatment: "Rest",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	me := st.Snapshot().Session.CurrentUser
	if rec.Doctor != me.ID || rec.DoctorName != me.DisplayName() || rec.Date != "2025-03-14" {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

// ---------------------------------------------------------------------------
// Billing
// ---------------------------------------------------------------------------

func TestBilling_AddPayment(t *testing.T) {
	h := newHarness(t, Options{})
	st, c := h.signIn(t, "reception")
	ctx := context.Background()

	var open billing.Bill
	for _, b := range st.Snapshot().Bills.Items() {
		if b.Status == billing.StatusPending && b.RemainingAmount >= money.FromCents(200) {
			open = b
			break
		}
	}
	if open.ID == 0 {
		t.Fatal("seed has no pending bill")
	}

	half := open.RemainingAmount / 2
	paid, err := st.AddPayment(ctx, open.ID, billing.Payment{Amount: half, PaymentMethod: billing.MethodCash})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if paid.PaidAmount != open.PaidAmount+half || paid.Status != billing.StatusPartial || len(paid.Payments) != 1 {
		t.Fatalf("unexpected bill: %+v", paid)
	}
	if b, _ := st.Snapshot().Bills.Find(open.ID); b.PaidAmount != paid.PaidAmount {
		t.Fatal("state bill not replaced")
	}

	_, err = st.AddPayment(ctx, open.ID, billing.Payment{Amount: paid.RemainingAmount + 1, PaymentMethod: billing.MethodCard})
	wantAPIError(t, err, http.StatusBadRequest, "Payment amount exceeds remaining balance")

	action := func(body map[string]any) error {
		return c.Do(ctx, apiclient.Bills.Action(open.ID, "add_payment", http.MethodPost, body), nil)
	}
	wantAPIError(t, action(map[string]any{"amount": "0"}), http.StatusBadRequest, "Payment amount must be greater than 0")
	wantAPIError(t, action(map[string]any{"amount": "abc"}), http.StatusBadRequest, "Invalid payment amount")
	wantAPIError(t, action(map[string]any{}), http.StatusBadRequest, "Invalid payment amount")

	settled, err := st.AddPayment(ctx, open.ID, billing.Payment{Amount: paid.RemainingAmount, PaymentMethod: billing.MethodCard})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settled.Status != billing.StatusPaid || settled.RemainingAmount != 0 {
		t.Fatalf("expected paid bill, got %+v", settled)
	}

	cancel := apiclient.Bills.Action(open.ID, "cancel", http.MethodPatch, nil)
	wantAPIError(t, c.Do(ctx, cancel, nil), http.StatusBadRequest, "Cannot cancel bill with payments")
}

func TestBilling_NurseForbidden(t *testing.T) {
	h := newHarness(t, Options{})
	st, _ := h.signIn(t, "nurse")
	err := st.FetchBills(context.Background(), nil)
	wantAPIError(t, err, http.StatusForbidden, "")
	if st.Snapshot().Bills.Len() != 0 {
		t.Fatal("bills should stay empty")
	}
}

// ---------------------------------------------------------------------------
// Inventory
// ---------------------------------------------------------------------------

func TestInventory_AdjustStock(t *testing.T) {
	h := newHarness(t, Options{})
	st, c := h.signIn(t, "nurse")
	ctx := context.Background()
	item := st.Snapshot().Inventory.At(0)

	got, err := st.AdjustStock(ctx, item.ID, inventory.StockAdjustment{QuantityChange: 5, Reason: "delivery"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Quantity != item.Quantity+5 {
		t.Fatalf("expected %d, got %d", item.Quantity+5, got.Quantity)
	}
	if cached, _ := st.Snapshot().Inventory.Find(item.ID); cached.Quantity != got.Quantity || cached.IsLowStock != got.LowStock() {
		t.Fatalf("state not updated: %+v", cached)
	}

	_, err = st.AdjustStock(ctx, item.ID, inventory.StockAdjustment{QuantityChange: -(got.Quantity + 1)})
	wantAPIError(t, err, http.StatusBadRequest, "Insufficient stock")
	if !errors.Is(err, apiclient.ErrValidation) {
		t.Errorf("a rejected adjustment is a validation error, got %v", err)
	}
	if cached, _ := st.Snapshot().Inventory.Find(item.ID); cached.Quantity != got.Quantity {
		t.Fatalf("rejected adjustment changed state: %+v", cached)
	}

	req := apiclient.Inventory.Action(item.ID, "adjust_stock", http.MethodPost, map[string]any{"reason": "no change given"})
	wantAPIError(t, c.Do(ctx, req, nil), http.StatusBadRequest, "Invalid quantity change")

	_, err = st.AdjustStock(ctx, 9999, inventory.StockAdjustment{QuantityChange: 1})
	wantAPIError(t, err, http.StatusNotFound, "Not found.")
	if !errors.Is(err, apiclient.ErrServer) {
		t.Errorf("an unknown item is not a validation error, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Visitors
// ---------------------------------------------------------------------------

func TestVisitors_CheckInAndOut(t *testing.T) {
	h := newHarness(t, Options{})
	st, _ := h.signIn(t, "reception")
	ctx := context.Background()

	if st.Snapshot().Visitors.Len() != 0 {
		t.Fatal("visitors are not part of the login fan-out")
	}
	if err := st.Refresh(ctx, store.Visitors.Name()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := st.Snapshot().Visitors.Len(); got != testSeed().VisitorCount {
		t.Fatalf("expected %d seeded visitors, got %d", testSeed().VisitorCount, got)
	}

	in, err := st.AddVisitor(ctx, visitor.Visitor{Name: "Ana Cruz", Phone: "555-201-3344", Patient: 1, Relationship: "Sister"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	first := h.srv.Snapshot().Patients[0]
	if in.ID == 0 || in.Status != visitor.StatusVisiting || in.PatientName != first.Name {
		t.Fatalf("unexpected echo: %+v", in)
	}
	if in.CheckInTime == nil || !in.CheckInTime.Equal(testToday) {
		t.Fatalf("expected check-in stamped now, got %v", in.CheckInTime)
	}

	out, err := st.CheckoutVisitor(ctx, in.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Status != visitor.StatusCheckedOut {
		t.Fatalf("expected checked out, got %+v", out)
	}
	if v, _ := st.Snapshot().Visitors.Find(in.ID); v.OnSite() {
		t.Fatalf("state not updated: %+v", v)
	}

	_, err = st.AddVisitor(ctx, visitor.Visitor{Name: "Ghost", Phone: "555-201-3344", Patient: 999, Relationship: "Friend"})
	var apiErr *apiclient.Error
	if !errors.As(err, &apiErr) || apiErr.Kind != apiclient.KindValidation || len(apiErr.Fields["patient"]) == 0 {
		t.Fatalf("expected a patient field error, got %v", err)
	}

	_, err = st.CheckoutVisitor(ctx, 9999)
	wantAPIError(t, err, http.StatusNotFound, "Not found.")
}

func TestVisitors_NurseCannotCheckIn(t *testing.T) {
	h := newHarness(t, Options{})
	st, _ := h.signIn(t, "nurse")
	ctx := context.Background()

	if err := st.FetchVisitors(ctx, nil); err != nil {
		t.Fatalf("any signed-in role may list visitors: %v", err)
	}
	_, err := st.AddVisitor(ctx, visitor.Visitor{Name: "Ana Cruz", Phone: "555-201-3344", Patient: 1, Relationship: "Sister"})
	wantAPIError(t, err, http.StatusForbidden, "")
	if apiclient.KindOf(err) != apiclient.KindServer {
		t.Errorf("a refusal is not a validation error, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Sandbox admin routes
// ---------------------------------------------------------------------------

func TestSandboxReset_RestoresSeed(t *testing.T) {
	h := newHarness(t, Options{})
	st, c := h.signIn(t, "admin")
	ctx := context.Background()

	if err := st.DeletePatient(ctx, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := len(h.srv.Snapshot().Patients); got != testSeed().PatientCount-1 {
		t.Fatalf("expected one patient removed, have %d", got)
	}

	var sum SeedResult
	if err := c.Do(ctx, apiclient.Request{Method: http.MethodPost, Endpoint: "/sandbox/reset/"}, &sum); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sum.Patients != testSeed().PatientCount || len(h.srv.Snapshot().Patients) != sum.Patients {
		t.Fatalf("reset did not restore: %+v", sum)
	}
}

func TestSandboxExport(t *testing.T) {
	h := newHarness(t, Options{})
	_, c := h.signIn(t, "admin")

	status, body := h.raw(t, http.MethodGet, "/sandbox/export/", c.Token(), nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	sc := bufio.NewScanner(bytes.NewReader(body))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	lines := 0
	for sc.Scan() {
		lines++
	}
	if lines == 0 {
		t.Fatal("expected NDJSON lines")
	}

	_, nurse := h.signIn(t, "nurse")
	if status, _ := h.raw(t, http.MethodGet, "/sandbox/export/", nurse.Token(), nil); status != http.StatusForbidden {
		t.Fatalf("expected 403 for nurse, got %d", status)
	}
}
