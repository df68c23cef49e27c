// Package sandbox is an in-memory stand-in for the hospital REST API. It
// seeds reproducible synthetic data and serves the same routes, payload
// shapes and error bodies the console consumes, so the whole client stack
// can run without the real backend.
package sandbox

import (
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/ehr/hospital/internal/domain/billing"
	"github.com/ehr/hospital/internal/domain/clinical"
	"github.com/ehr/hospital/internal/domain/identity"
	"github.com/ehr/hospital/internal/domain/inventory"
	"github.com/ehr/hospital/internal/domain/patient"
	"github.com/ehr/hospital/internal/domain/scheduling"
	"github.com/ehr/hospital/internal/domain/visitor"
	"github.com/ehr/hospital/internal/domain/ward"
	"github.com/ehr/hospital/internal/platform/auth"
	"github.com/ehr/hospital/pkg/money"
)

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------

// DefaultPassword is given to every seeded account.
const DefaultPassword = "hospital123"

// SeedConfig controls the volume and shape of generated data.
type SeedConfig struct {
	PatientCount           int   `json:"patientCount"`
	WardCount              int   `json:"wardCount"`
	BedsPerWard            int   `json:"bedsPerWard"`
	AppointmentsPerPatient int   `json:"appointmentsPerPatient"`
	RecordsPerPatient      int   `json:"recordsPerPatient"`
	LabTestsPerPatient     int   `json:"labTestsPerPatient"`
	InventoryCount         int   `json:"inventoryCount"`
	BillsPerPatient        int   `json:"billsPerPatient"`
	VisitorCount           int   `json:"visitorCount"`
	Seed                   int64 `json:"seed"`

	// Password and BcryptCost apply to the seeded accounts.
	Password   string `json:"-"`
	BcryptCost int    `json:"-"`
	// Today anchors every generated date. Zero means the current day.
	Today time.Time `json:"-"`
}

// DefaultSeedConfig returns a small hospital: a few wards, a couple of dozen
// patients and enough history to fill every dashboard.
func DefaultSeedConfig() SeedConfig {
	return SeedConfig{
		PatientCount:           24,
		WardCount:              4,
		BedsPerWard:            6,
		AppointmentsPerPatient: 2,
		RecordsPerPatient:      1,
		LabTestsPerPatient:     1,
		InventoryCount:         12,
		BillsPerPatient:        1,
		VisitorCount:           5,
		Seed:                   42,
		Password:               DefaultPassword,
		BcryptCost:             bcrypt.DefaultCost,
	}
}

// ---------------------------------------------------------------------------
// Reference data pools
// ---------------------------------------------------------------------------

var (
	firstNamesMale = []string{
		"James", "John", "Robert", "Michael", "William", "David", "Richard",
		"Joseph", "Thomas", "Daniel", "Matthew", "Anthony", "Mark", "Steven",
	}
	firstNamesFemale = []string{
		"Mary", "Patricia", "Jennifer", "Linda", "Elizabeth", "Barbara", "Susan",
		"Jessica", "Sarah", "Karen", "Lisa", "Nancy", "Sandra", "Ashley",
	}
	lastNames = []string{
		"Smith", "Johnson", "Williams", "Brown", "Jones", "Garcia", "Miller",
		"Davis", "Rodriguez", "Martinez", "Hernandez", "Lopez", "Wilson", "Anderson",
	}
	streets = []string{
		"123 Main St", "456 Oak Ave", "789 Pine Rd", "321 Elm St", "654 Maple Dr",
		"987 Cedar Ln", "147 Birch Way", "258 Walnut Ct", "369 Spruce Pl",
	}
	cities     = []string{"Cityville", "Springfield", "Riverside", "Fairview", "Georgetown"}
	bloodTypes = []string{"A+", "A-", "B+", "B-", "AB+", "AB-", "O+", "O-"}
	allergies  = []string{"", "", "Penicillin", "Peanuts", "Latex", "Sulfa drugs", "Shellfish"}

	wardDefs = []struct {
		name, department string
	}{
		{"ICU", "Critical Care"},
		{"General", "Internal Medicine"},
		{"Pediatrics", "Pediatrics"},
		{"Maternity", "Obstetrics"},
		{"Surgical", "Surgery"},
		{"Cardiology", "Cardiology"},
	}

	appointmentTypes = []string{"consultation", "follow-up", "emergency", "routine", "surgery"}
	clockTimes       = []string{"09:00", "09:30", "10:00", "10:30", "11:00", "14:00", "14:30", "15:00", "16:00"}

	diagnoses = []struct {
		symptoms, diagnosis, treatment string
		meds                           []clinical.Medication
	}{
		{"Fever, cough", "Acute bronchitis", "Rest and fluids", []clinical.Medication{{Name: "Amoxicillin", Dosage: "500mg", Frequency: "3x daily", Duration: "7 days"}}},
		{"Headache, dizziness", "Essential hypertension", "Lifestyle changes and medication", []clinical.Medication{{Name: "Lisinopril", Dosage: "10mg", Frequency: "daily", Duration: "30 days"}}},
		{"Frequent urination, thirst", "Type 2 diabetes", "Diet control and metformin", []clinical.Medication{{Name: "Metformin", Dosage: "500mg", Frequency: "2x daily", Duration: "90 days"}}},
		{"Chest tightness, wheezing", "Asthma", "Inhaled bronchodilator", []clinical.Medication{{Name: "Albuterol", Dosage: "90mcg", Frequency: "as needed", Duration: "30 days"}}},
		{"Joint pain", "Osteoarthritis", "Physiotherapy and analgesics", []clinical.Medication{{Name: "Ibuprofen", Dosage: "400mg", Frequency: "2x daily", Duration: "14 days"}}},
	}

	labDefs = []struct {
		testType, code, sample, reference string
		fasting                           bool
	}{
		{"Complete Blood Count", "CBC", "blood", "WBC 4.5-11.0 x10^9/L", false},
		{"Lipid Panel", "LIPID", "blood", "LDL < 100 mg/dL", true},
		{"Blood Glucose", "GLU", "blood", "70-99 mg/dL", true},
		{"Urinalysis", "UA", "urine", "pH 4.5-8.0", false},
		{"Thyroid Panel", "TSH", "blood", "0.4-4.0 mIU/L", false},
	}

	supplyDefs = []struct {
		name, category, unit string
		cents                int64
	}{
		{"Paracetamol 500mg", "medication", "tablet", 15},
		{"Amoxicillin 500mg", "medication", "capsule", 45},
		{"Insulin Glargine", "medication", "vial", 8900},
		{"Sterile Gauze", "medical_supplies", "box", 650},
		{"Nitrile Gloves", "medical_supplies", "box", 1200},
		{"Syringe 5ml", "consumables", "piece", 30},
		{"IV Cannula", "consumables", "piece", 120},
		{"Saline 0.9% 1L", "medication", "bag", 210},
		{"Blood Pressure Monitor", "equipment", "unit", 4500},
		{"Pulse Oximeter", "equipment", "unit", 3200},
		{"Surgical Masks", "medical_supplies", "box", 900},
		{"Alcohol Swabs", "consumables", "box", 350},
	}
	suppliers = []string{"MedSupply Co", "HealthPro Distributors", "CarePlus Wholesale"}

	relationships = []string{"Spouse", "Parent", "Child", "Sibling", "Friend"}
	visitPurposes = []string{"Family visit", "Dropping off belongings", "Discharge pickup", ""}
	idTypes       = []string{"", "drivers_license", "passport", "national_id"}

	serviceDefs = []struct {
		name  string
		cents int64
	}{
		{"Consultation", 5000},
		{"Blood Test", 2500},
		{"X-Ray", 7500},
		{"Ward Stay (per day)", 15000},
		{"ECG", 4000},
		{"Ultrasound", 12000},
	}
)

// ---------------------------------------------------------------------------
// Dataset
// ---------------------------------------------------------------------------

// Dataset is everything the sandbox serves. Passwords holds bcrypt hashes
// keyed by user id.
type Dataset struct {
	Users          []identity.User
	Passwords      map[int64]string
	Patients       []patient.Patient
	Wards          []ward.Ward
	Appointments   []scheduling.Appointment
	MedicalRecords []clinical.MedicalRecord
	Prescriptions  []clinical.Prescription
	LabTests       []clinical.LabTest
	Inventory      []inventory.Item
	Bills          []billing.Bill
	Visitors       []visitor.Visitor
}

// SeedResult summarizes a generated dataset.
type SeedResult struct {
	Users          int           `json:"users"`
	Patients       int           `json:"patients"`
	Wards          int           `json:"wards"`
	Beds           int           `json:"beds"`
	Appointments   int           `json:"appointments"`
	MedicalRecords int           `json:"medical_records"`
	Prescriptions  int           `json:"prescriptions"`
	LabTests       int           `json:"lab_tests"`
	Inventory      int           `json:"inventory"`
	Bills          int           `json:"bills"`
	Visitors       int           `json:"visitors"`
	Duration       time.Duration `json:"duration_ns"`
}

// Summary counts d.
func (d *Dataset) Summary() SeedResult {
	r := SeedResult{
		Users:          len(d.Users),
		Patients:       len(d.Patients),
		Wards:          len(d.Wards),
		Appointments:   len(d.Appointments),
		MedicalRecords: len(d.MedicalRecords),
		Prescriptions:  len(d.Prescriptions),
		LabTests:       len(d.LabTests),
		Inventory:      len(d.Inventory),
		Bills:          len(d.Bills),
		Visitors:       len(d.Visitors),
	}
	for _, w := range d.Wards {
		r.Beds += len(w.Beds)
	}
	return r
}

// ---------------------------------------------------------------------------
// DataGenerator
// ---------------------------------------------------------------------------

// DataGenerator produces deterministic synthetic hospital records. Ids are
// assigned by the caller.
type DataGenerator struct {
	rng   *rand.Rand
	today time.Time
}

// NewDataGenerator returns a generator seeded for reproducibility. If seed is
// 0 a time-based seed is chosen. today anchors generated dates.
func NewDataGenerator(seed int64, today time.Time) *DataGenerator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if today.IsZero() {
		today = time.Now()
	}
	y, m, d := today.Date()
	return &DataGenerator{
		rng:   rand.New(rand.NewSource(seed)),
		today: time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
	}
}

func (g *DataGenerator) pick(pool []string) string {
	return pool[g.rng.Intn(len(pool))]
}

// dayOffset formats today shifted by n days.
func (g *DataGenerator) dayOffset(n int) string {
	return g.today.AddDate(0, 0, n).Format(time.DateOnly)
}

func (g *DataGenerator) randomPhone() string {
	return fmt.Sprintf("(%03d) %03d-%04d",
		200+g.rng.Intn(800),
		200+g.rng.Intn(800),
		g.rng.Intn(10000),
	)
}

func (g *DataGenerator) personName() (first, last, gender string) {
	if g.rng.Intn(2) == 0 {
		first, gender = g.pick(firstNamesMale), "Male"
	} else {
		first, gender = g.pick(firstNamesFemale), "Female"
	}
	return first, g.pick(lastNames), gender
}

// GenerateStaff produces one account for role. The username is the role
// name ("receptionist" shortened to "reception") so sandbox credentials are
// easy to remember.
func (g *DataGenerator) GenerateStaff(role identity.Role) identity.User {
	first, last, _ := g.personName()
	username := string(role)
	dept := "Administration"
	u := identity.User{
		Username:  username,
		FirstName: first,
		LastName:  last,
		Role:      role,
		Phone:     g.randomPhone(),
		Status:    "active",
	}
	switch role {
	case identity.RoleDoctor:
		dept = "Internal Medicine"
		u.Specialization = "General Practice"
		u.Experience = fmt.Sprintf("%d years", 3+g.rng.Intn(25))
	case identity.RoleNurse:
		dept = "Nursing"
		u.Experience = fmt.Sprintf("%d years", 1+g.rng.Intn(20))
	case identity.RoleReceptionist:
		u.Username = "reception"
		dept = "Front Desk"
	}
	u.Department = dept
	u.Email = u.Username + "@hospital.example.com"
	return u
}

// GeneratePatient produces an outpatient registered in the last year.
func (g *DataGenerator) GeneratePatient() patient.Patient {
	first, last, gender := g.personName()
	return patient.Patient{
		Name:             first + " " + last,
		Age:              1 + g.rng.Intn(90),
		Gender:           gender,
		Phone:            g.randomPhone(),
		Email:            fmt.Sprintf("%s.%s%d@example.com", first, last, g.rng.Intn(100)),
		Address:          g.pick(streets) + ", " + g.pick(cities),
		EmergencyContact: g.randomPhone(),
		BloodType:        g.pick(bloodTypes),
		Allergies:        g.pick(allergies),
		RegistrationDate: g.dayOffset(-g.rng.Intn(365)),
		Status:           patient.StatusOutpatient,
	}
}

// GenerateWard produces the i-th ward from the fixed ward list with beds
// numbered after its name. Bed and ward ids are left to the caller.
func (g *DataGenerator) GenerateWard(i, beds int, nurse string) ward.Ward {
	def := wardDefs[i%len(wardDefs)]
	name := def.name
	if i >= len(wardDefs) {
		name = fmt.Sprintf("%s %d", def.name, i/len(wardDefs)+1)
	}
	w := ward.Ward{
		Name:          name,
		Department:    def.department,
		Floor:         1 + i%4,
		TotalBeds:     beds,
		NurseInCharge: nurse,
		Status:        "active",
	}
	for n := 1; n <= beds; n++ {
		status := ward.BedAvailable
		switch g.rng.Intn(10) {
		case 0:
			status = ward.BedMaintenance
		case 1:
			status = ward.BedCleaning
		}
		w.Beds = append(w.Beds, ward.Bed{Number: ward.BedNumber(name, n), Status: status})
	}
	return w
}

// GenerateAppointment books p with the doctor somewhere between a week ago
// and two weeks ahead. Past appointments are closed.
func (g *DataGenerator) GenerateAppointment(p patient.Patient, doctor identity.User) scheduling.Appointment {
	offset := g.rng.Intn(21) - 7
	status := scheduling.StatusScheduled
	if offset < 0 {
		switch g.rng.Intn(4) {
		case 0:
			status = scheduling.StatusNoShow
		case 1:
			status = scheduling.StatusCancelled
		default:
			status = scheduling.StatusCompleted
		}
	}
	return scheduling.Appointment{
		Patient:     p.ID,
		PatientName: p.Name,
		Doctor:      doctor.ID,
		DoctorName:  doctor.DisplayName(),
		Date:        g.dayOffset(offset),
		Time:        g.pick(clockTimes),
		Type:        g.pick(appointmentTypes),
		Status:      status,
	}
}

// GenerateMedicalRecord produces a past consultation and the prescription
// issued for it. The prescription's MedicalRecord is set by the caller.
func (g *DataGenerator) GenerateMedicalRecord(p patient.Patient, doctor identity.User) (clinical.MedicalRecord, clinical.Prescription) {
	dx := diagnoses[g.rng.Intn(len(diagnoses))]
	date := g.dayOffset(-1 - g.rng.Intn(60))
	meds := append([]clinical.Medication(nil), dx.meds...)
	rec := clinical.MedicalRecord{
		Patient:     p.ID,
		PatientName: p.Name,
		Doctor:      doctor.ID,
		DoctorName:  doctor.DisplayName(),
		Date:        date,
		Symptoms:    dx.symptoms,
		Diagnosis:   dx.diagnosis,
		Treatment:   dx.treatment,
		Medications: meds,
		VitalSigns: map[string]string{
			"blood_pressure": fmt.Sprintf("%d/%d", 105+g.rng.Intn(40), 65+g.rng.Intn(25)),
			"heart_rate":     fmt.Sprintf("%d", 58+g.rng.Intn(40)),
			"temperature":    fmt.Sprintf("%.1f", 36.2+float64(g.rng.Intn(20))/10),
		},
		AllergiesNoted: p.Allergies,
	}
	rx := clinical.Prescription{
		PatientName:    p.Name,
		DoctorName:     doctor.DisplayName(),
		Date:           date,
		Medications:    meds,
		Instructions:   "Take with food",
		Status:         "active",
		Duration:       meds[0].Duration,
		RefillsAllowed: g.rng.Intn(3),
	}
	return rec, rx
}

// GenerateLabTest produces a lab order; roughly a third come back completed.
func (g *DataGenerator) GenerateLabTest(p patient.Patient, doctor identity.User) clinical.LabTest {
	def := labDefs[g.rng.Intn(len(labDefs))]
	priority := "routine"
	switch g.rng.Intn(6) {
	case 0:
		priority = "stat"
	case 1, 2:
		priority = "urgent"
	}
	l := clinical.LabTest{
		Patient:         p.ID,
		PatientName:     p.Name,
		OrderedBy:       doctor.ID,
		OrderedByName:   doctor.DisplayName(),
		TestType:        def.testType,
		TestCode:        def.code,
		OrderedDate:     g.dayOffset(-g.rng.Intn(14)),
		Status:          clinical.LabPending,
		Priority:        priority,
		ReferenceValues: def.reference,
		SampleType:      def.sample,
		FastingRequired: def.fasting,
	}
	if g.rng.Intn(3) == 0 {
		l.Status = clinical.LabCompleted
		l.Results = "Within reference range"
		l.CompletedDate = g.dayOffset(0)
	}
	return l
}

// GenerateInventoryItem produces the i-th supply from the fixed list. Some
// items start below their reorder threshold.
func (g *DataGenerator) GenerateInventoryItem(i int) inventory.Item {
	def := supplyDefs[i%len(supplyDefs)]
	minStock := 10 + g.rng.Intn(40)
	qty := minStock + g.rng.Intn(200)
	if g.rng.Intn(4) == 0 {
		qty = g.rng.Intn(minStock + 1)
	}
	return inventory.Item{
		Name:        def.name,
		Category:    def.category,
		Quantity:    qty,
		Unit:        def.unit,
		MinStock:    minStock,
		Supplier:    g.pick(suppliers),
		ExpiryDate:  g.dayOffset(30 + g.rng.Intn(700)),
		CostPerUnit: money.FromCents(def.cents),
		Location:    fmt.Sprintf("Store %c-%d", 'A'+rune(g.rng.Intn(3)), 1+g.rng.Intn(9)),
		IsLowStock:  qty <= minStock,
	}
}

// GenerateVisitor checks someone in to see p earlier today. A few are
// still in the waiting room or have already left.
func (g *DataGenerator) GenerateVisitor(p patient.Patient) visitor.Visitor {
	first, _, _ := g.personName()
	last := p.Name
	if i := strings.LastIndexByte(p.Name, ' '); i >= 0 {
		last = p.Name[i+1:]
	}
	checkIn := g.today.Add(time.Duration(8*60+g.rng.Intn(8*60)) * time.Minute)
	v := visitor.Visitor{
		Name:         first + " " + last,
		Phone:        g.randomPhone(),
		Patient:      p.ID,
		PatientName:  p.Name,
		Relationship: g.pick(relationships),
		Purpose:      g.pick(visitPurposes),
		CheckInTime:  &checkIn,
		Status:       visitor.StatusVisiting,
	}
	if t := g.pick(idTypes); t != "" {
		v.IDType = t
		v.IDNumber = fmt.Sprintf("%c%07d", 'A'+rune(g.rng.Intn(26)), g.rng.Intn(10000000))
	}
	switch g.rng.Intn(4) {
	case 0:
		v.Status = visitor.StatusWaiting
	case 1:
		v.Status = visitor.StatusCheckedOut
	}
	return v
}

// GenerateBill invoices p for one to three services, sometimes partially
// or fully paid.
func (g *DataGenerator) GenerateBill(p patient.Patient) billing.Bill {
	b := billing.Bill{
		Patient:     p.ID,
		PatientName: p.Name,
		Date:        g.dayOffset(-g.rng.Intn(30)),
		Status:      billing.StatusPending,
	}
	for n := 1 + g.rng.Intn(3); n > 0; n-- {
		def := serviceDefs[g.rng.Intn(len(serviceDefs))]
		b.Services = append(b.Services, billing.ServiceLine{Name: def.name, Amount: money.FromCents(def.cents), Quantity: 1 + g.rng.Intn(2)})
	}
	b.TotalAmount = b.ComputeTotal()
	b.RemainingAmount = b.TotalAmount
	switch g.rng.Intn(3) {
	case 0:
		b.PaidAmount = b.TotalAmount
		b.RemainingAmount = 0
		b.Status = billing.StatusPaid
		b.PaymentDate = b.Date
	case 1:
		b.PaidAmount = b.TotalAmount / 2
		b.RemainingAmount = b.TotalAmount - b.PaidAmount
		b.Status = billing.StatusPartial
	}
	return b
}

// ---------------------------------------------------------------------------
// Seeder
// ---------------------------------------------------------------------------

// Seed builds a complete dataset with ids assigned from 1 per resource.
// Admitted patients occupy beds so ward aggregates are consistent.
func Seed(cfg SeedConfig) (*Dataset, error) {
	if cfg.Password == "" {
		cfg.Password = DefaultPassword
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	g := NewDataGenerator(cfg.Seed, cfg.Today)
	d := &Dataset{Passwords: map[int64]string{}}

	hash, err := auth.HashPassword(cfg.Password, cfg.BcryptCost)
	if err != nil {
		return nil, err
	}
	var doctor, nurse identity.User
	for i, role := range identity.Roles {
		u := g.GenerateStaff(role)
		u.ID = int64(i + 1)
		d.Users = append(d.Users, u)
		d.Passwords[u.ID] = hash
		switch role {
		case identity.RoleDoctor:
			doctor = u
		case identity.RoleNurse:
			nurse = u
		}
	}

	var bedID int64
	for i := 0; i < cfg.WardCount; i++ {
		w := g.GenerateWard(i, cfg.BedsPerWard, nurse.DisplayName())
		w.ID = int64(i + 1)
		for j := range w.Beds {
			bedID++
			w.Beds[j].ID = bedID
			w.Beds[j].Ward = w.ID
		}
		d.Wards = append(d.Wards, w)
	}

	for i := 0; i < cfg.PatientCount; i++ {
		p := g.GeneratePatient()
		p.ID = int64(i + 1)
		docID := doctor.ID
		p.AssignedDoctor = &docID
		p.AssignedDoctorName = doctor.DisplayName()
		if g.rng.Intn(3) == 0 {
			admit(d, &p, g.dayOffset(-g.rng.Intn(10)))
		}
		d.Patients = append(d.Patients, p)
	}

	for _, p := range d.Patients {
		for j := 0; j < cfg.AppointmentsPerPatient; j++ {
			a := g.GenerateAppointment(p, doctor)
			a.ID = int64(len(d.Appointments) + 1)
			d.Appointments = append(d.Appointments, a)
		}
		for j := 0; j < cfg.RecordsPerPatient; j++ {
			rec, rx := g.GenerateMedicalRecord(p, doctor)
			rec.ID = int64(len(d.MedicalRecords) + 1)
			rx.ID = int64(len(d.Prescriptions) + 1)
			rx.MedicalRecord = rec.ID
			d.MedicalRecords = append(d.MedicalRecords, rec)
			d.Prescriptions = append(d.Prescriptions, rx)
		}
		for j := 0; j < cfg.LabTestsPerPatient; j++ {
			l := g.GenerateLabTest(p, doctor)
			l.ID = int64(len(d.LabTests) + 1)
			d.LabTests = append(d.LabTests, l)
		}
		for j := 0; j < cfg.BillsPerPatient; j++ {
			b := g.GenerateBill(p)
			b.ID = int64(len(d.Bills) + 1)
			d.Bills = append(d.Bills, b)
		}
	}

	for i := 0; i < cfg.InventoryCount; i++ {
		it := g.GenerateInventoryItem(i)
		it.ID = int64(i + 1)
		d.Inventory = append(d.Inventory, it)
	}

	if len(d.Patients) > 0 {
		for i := 0; i < cfg.VisitorCount; i++ {
			p := d.Patients[g.rng.Intn(len(d.Patients))]
			v := g.GenerateVisitor(p)
			v.ID = int64(i + 1)
			d.Visitors = append(d.Visitors, v)
		}
	}

	for i := range d.Wards {
		d.Wards[i].Recount()
	}
	return d, nil
}

// admit puts p into the first free bed. Patients stay outpatients when every
// bed is taken.
func admit(d *Dataset, p *patient.Patient, date string) {
	for wi := range d.Wards {
		w := &d.Wards[wi]
		for bi := range w.Beds {
			b := &w.Beds[bi]
			if b.Status != ward.BedAvailable {
				continue
			}
			pid := p.ID
			b.Status = ward.BedOccupied
			b.Patient = &pid
			b.PatientName = p.Name
			b.AdmissionDate = &date
			wardID := w.ID
			p.Status = patient.StatusAdmitted
			p.Ward = &wardID
			p.BedNumber = b.Number
			p.AdmissionDate = date
			return
		}
	}
}

// ExportNDJSON writes one {"resource": ..., "data": ...} line per record.
// Password hashes are never exported.
func (d *Dataset) ExportNDJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	emit := func(resource string, v any) error {
		return enc.Encode(struct {
			Resource string `json:"resource"`
			Data     any    `json:"data"`
		}{resource, v})
	}
	groups := []struct {
		name  string
		items func(func(any) error) error
	}{
		{"users", each(d.Users)},
		{"patients", each(d.Patients)},
		{"wards", each(d.Wards)},
		{"appointments", each(d.Appointments)},
		{"medical_records", each(d.MedicalRecords)},
		{"prescriptions", each(d.Prescriptions)},
		{"lab_tests", each(d.LabTests)},
		{"inventory", each(d.Inventory)},
		{"bills", each(d.Bills)},
		{"visitors", each(d.Visitors)},
	}
	for _, grp := range groups {
		name := grp.name
		if err := grp.items(func(v any) error { return emit(name, v) }); err != nil {
			return fmt.Errorf("export %s: %w", name, err)
		}
	}
	return nil
}

func each[T any](items []T) func(func(any) error) error {
	return func(fn func(any) error) error {
		for _, it := range items {
			if err := fn(it); err != nil {
				return err
			}
		}
		return nil
	}
}
