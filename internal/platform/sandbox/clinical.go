package sandbox

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/ehr/hospital/internal/domain/clinical"
	"github.com/ehr/hospital/internal/platform/auth"
	"github.com/ehr/hospital/pkg/validation"
)

func (s *Server) registerClinical(api *echo.Group) {
	doctor := auth.RequireRole("doctor")

	api.GET("/medical-records/", s.listMedicalRecords)
	api.GET("/medical-records/:id/", s.getMedicalRecord)
	api.POST("/medical-records/", s.createMedicalRecord, doctor)

	api.GET("/prescriptions/", s.listPrescriptions)
	api.POST("/prescriptions/", s.createPrescription, doctor)
	api.PATCH("/prescriptions/:id/complete/", s.setPrescriptionStatus("completed"), doctor)
	api.PATCH("/prescriptions/:id/cancel/", s.setPrescriptionStatus("cancelled"), doctor)

	api.GET("/lab-tests/", s.listLabTests)
	api.GET("/lab-tests/:id/", s.getLabTest)
	api.POST("/lab-tests/", s.createLabTest, doctor)
	lab := auth.RequireRole("doctor", "nurse")
	api.PATCH("/lab-tests/:id/start_processing/", s.startLabTest, lab)
	api.PATCH("/lab-tests/:id/complete/", s.completeLabTest, lab)
	api.PATCH("/lab-tests/:id/cancel/", s.cancelLabTest, lab)
}

// ---------------------------------------------------------------------------
// Medical records
// ---------------------------------------------------------------------------

func (s *Server) listMedicalRecords(c echo.Context) error {
	patientID, _ := strconv.ParseInt(c.QueryParam("patient"), 10, 64)
	s.mu.Lock()
	defer s.mu.Unlock()
	return c.JSON(http.StatusOK, s.data.medicalRecords.filter(func(r clinical.MedicalRecord) bool {
		return patientID == 0 || r.Patient == patientID
	}))
}

func (s *Server) getMedicalRecord(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	s.mu.Lock()
	r, ok := s.data.medicalRecords.get(id)
	s.mu.Unlock()
	if !ok {
		return notFound()
	}
	return c.JSON(http.StatusOK, r)
}

// createMedicalRecord files the record under the calling doctor.
func (s *Server) createMedicalRecord(c echo.Context) error {
	var r clinical.MedicalRecord
	if err := bind(c, &r); err != nil {
		return err
	}
	if err := r.Validate(); err != nil {
		return invalid(c, err)
	}
	if r.Date == "" {
		r.Date = s.today()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.data.patients.get(r.Patient)
	if !ok {
		return invalid(c, validation.Errors{"patient": {invalidPK(r.Patient)}})
	}
	r.PatientName = p.Name
	r.Doctor = callerID(c)
	if d, ok := s.data.users.get(r.Doctor); ok {
		r.DoctorName = d.DisplayName()
	}
	created := s.data.medicalRecords.insert(func(id int64) clinical.MedicalRecord {
		r.ID = id
		r.CreatedAt, r.UpdatedAt = s.stamp(), s.stamp()
		return r
	})
	return c.JSON(http.StatusCreated, created)
}

// ---------------------------------------------------------------------------
// Prescriptions
// ---------------------------------------------------------------------------

func (s *Server) listPrescriptions(c echo.Context) error {
	status := c.QueryParam("status")
	s.mu.Lock()
	defer s.mu.Unlock()
	return c.JSON(http.StatusOK, s.data.prescriptions.filter(func(p clinical.Prescription) bool {
		return status == "" || p.Status == status
	}))
}

func (s *Server) createPrescription(c echo.Context) error {
	var p clinical.Prescription
	if err := bind(c, &p); err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return invalid(c, err)
	}
	if p.Status == "" {
		p.Status = "active"
	}
	if p.Date == "" {
		p.Date = s.today()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.data.medicalRecords.get(p.MedicalRecord)
	if !ok {
		return invalid(c, validation.Errors{"medical_record": {invalidPK(p.MedicalRecord)}})
	}
	p.PatientName, p.DoctorName = rec.PatientName, rec.DoctorName
	created := s.data.prescriptions.insert(func(id int64) clinical.Prescription {
		p.ID = id
		p.CreatedAt, p.UpdatedAt = s.stamp(), s.stamp()
		return p
	})
	return c.JSON(http.StatusCreated, created)
}

func (s *Server) setPrescriptionStatus(status string) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := idParam(c)
		if err != nil {
			return err
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		p, ok := s.data.prescriptions.get(id)
		if !ok {
			return notFound()
		}
		p.Status, p.UpdatedAt = status, s.stamp()
		s.data.prescriptions.put(p)
		return c.JSON(http.StatusOK, p)
	}
}

// ---------------------------------------------------------------------------
// Lab tests
// ---------------------------------------------------------------------------

// listLabTests shows doctors only the tests they ordered.
func (s *Server) listLabTests(c echo.Context) error {
	patientID, _ := strconv.ParseInt(c.QueryParam("patient"), 10, 64)
	status := c.QueryParam("status")
	priority := c.QueryParam("priority")
	var orderedBy int64
	if callerRole(c) == "doctor" {
		orderedBy = callerID(c)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return c.JSON(http.StatusOK, s.data.labTests.filter(func(l clinical.LabTest) bool {
		switch {
		case orderedBy != 0 && l.OrderedBy != orderedBy:
			return false
		case patientID != 0 && l.Patient != patientID:
			return false
		case status != "" && string(l.Status) != status:
			return false
		case priority != "" && l.Priority != priority:
			return false
		}
		return true
	}))
}

func (s *Server) getLabTest(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	s.mu.Lock()
	l, ok := s.data.labTests.get(id)
	s.mu.Unlock()
	if !ok {
		return notFound()
	}
	return c.JSON(http.StatusOK, l)
}

func (s *Server) createLabTest(c echo.Context) error {
	var l clinical.LabTest
	if err := bind(c, &l); err != nil {
		return err
	}
	if err := l.Validate(); err != nil {
		return invalid(c, err)
	}
	l.Status = clinical.LabPending
	if l.Priority == "" {
		l.Priority = "routine"
	}
	l.OrderedDate = s.today()

	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.data.patients.get(l.Patient)
	if !ok {
		return invalid(c, validation.Errors{"patient": {invalidPK(l.Patient)}})
	}
	l.PatientName = p.Name
	l.OrderedBy = callerID(c)
	if d, ok := s.data.users.get(l.OrderedBy); ok {
		l.OrderedByName = d.DisplayName()
	}
	created := s.data.labTests.insert(func(id int64) clinical.LabTest {
		l.ID = id
		return l
	})
	return c.JSON(http.StatusCreated, created)
}

// completeLabTest records results. Notes are kept when the body has none.
func (s *Server) completeLabTest(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	var body clinical.LabTestCompletion
	if err := bind(c, &body); err != nil {
		return err
	}
	if err := body.Validate(); err != nil {
		return invalid(c, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.data.labTests.get(id)
	if !ok {
		return notFound()
	}
	l.Status = clinical.LabCompleted
	l.CompletedDate = s.today()
	l.Results = body.Results
	if body.Notes != "" {
		l.Notes = body.Notes
	}
	s.data.labTests.put(l)
	return c.JSON(http.StatusOK, l)
}

// startLabTest moves a pending test to in_progress.
func (s *Server) startLabTest(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.data.labTests.get(id)
	if !ok {
		return notFound()
	}
	if l.Status != clinical.LabPending {
		return errorBody(c, http.StatusBadRequest, "Only pending tests can be started")
	}
	l.Status = clinical.LabInProgress
	s.data.labTests.put(l)
	return c.JSON(http.StatusOK, l)
}

// cancelLabTest stores the reason, when given, as the test's notes.
func (s *Server) cancelLabTest(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	var body clinical.LabTestCancellation
	if err := bind(c, &body); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.data.labTests.get(id)
	if !ok {
		return notFound()
	}
	if l.Closed() {
		return errorBody(c, http.StatusBadRequest, "Test is already "+string(l.Status))
	}
	l.Status = clinical.LabCancelled
	if body.Reason != "" {
		l.Notes = body.Reason
	}
	s.data.labTests.put(l)
	return c.JSON(http.StatusOK, l)
}
