package sandbox

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/ehr/hospital/internal/domain/patient"
	"github.com/ehr/hospital/internal/domain/ward"
	"github.com/ehr/hospital/internal/platform/auth"
	"github.com/ehr/hospital/pkg/pagination"
)

func (s *Server) registerPatients(api *echo.Group) {
	api.GET("/patients/", s.listPatients)
	api.GET("/patients/:id/", s.getPatient)

	write := api.Group("", auth.RequireRole("receptionist", "doctor"))
	write.POST("/patients/", s.createPatient)
	write.PUT("/patients/:id/", s.updatePatient)
	write.PATCH("/patients/:id/", s.updatePatient)

	api.DELETE("/patients/:id/", s.deletePatient, auth.RequireRole("admin"))
}

// containsFold reports whether any field contains q, ignoring case.
func containsFold(q string, fields ...string) bool {
	q = strings.ToLower(q)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}

// listPatients is the one paginated list: it answers the limit/offset
// envelope, every other list answers a bare array.
func (s *Server) listPatients(c echo.Context) error {
	search := c.QueryParam("search")
	status := c.QueryParam("status")
	doctor, _ := strconv.ParseInt(c.QueryParam("doctor"), 10, 64)
	if callerRole(c) == "doctor" {
		doctor = callerID(c)
	}

	s.mu.Lock()
	rows := s.data.patients.filter(func(p patient.Patient) bool {
		if search != "" && !containsFold(search, p.Name, p.Phone, p.Email) {
			return false
		}
		if status != "" && string(p.Status) != status {
			return false
		}
		if doctor != 0 && (p.AssignedDoctor == nil || *p.AssignedDoctor != doctor) {
			return false
		}
		return true
	})
	s.mu.Unlock()

	pg := pagination.FromContext(c)
	start, end := pg.Window(len(rows))
	return c.JSON(http.StatusOK, pagination.NewEnvelope(rows[start:end], len(rows), pg, c.Request().URL))
}

func (s *Server) getPatient(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	s.mu.Lock()
	p, ok := s.data.patients.get(id)
	s.mu.Unlock()
	if !ok {
		return notFound()
	}
	return c.JSON(http.StatusOK, p)
}

func (s *Server) createPatient(c echo.Context) error {
	var p patient.Patient
	if err := bind(c, &p); err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return invalid(c, err)
	}
	if p.Status == "" {
		p.Status = patient.StatusOutpatient
	}
	if p.RegistrationDate == "" {
		p.RegistrationDate = s.today()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nameDoctor(&p)
	created := s.data.patients.insert(func(id int64) patient.Patient {
		p.ID = id
		p.CreatedAt, p.UpdatedAt = s.stamp(), s.stamp()
		return p
	})
	return c.JSON(http.StatusCreated, created)
}

// updatePatient applies the body over the stored patient, so PATCH and PUT
// behave the same.
func (s *Server) updatePatient(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	s.mu.Lock()
	p, ok := s.data.patients.get(id)
	s.mu.Unlock()
	if !ok {
		return notFound()
	}
	created := p.CreatedAt
	if err := bind(c, &p); err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return invalid(c, err)
	}
	p.ID, p.CreatedAt, p.UpdatedAt = id, created, s.stamp()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nameDoctor(&p)
	if !s.data.patients.put(p) {
		return notFound()
	}
	return c.JSON(http.StatusOK, p)
}

// deletePatient unlinks the patient from any bed it occupied. The bed keeps
// its status until a nurse changes it.
func (s *Server) deletePatient(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.data.patients.remove(id) {
		return notFound()
	}
	for _, w := range s.data.wards.all() {
		changed := false
		for i, b := range w.Beds {
			if b.Patient != nil && *b.Patient == id {
				if !changed {
					w.Beds = append([]ward.Bed(nil), w.Beds...)
					changed = true
				}
				w.Beds[i] = vacate(b, b.Status)
			}
		}
		if changed {
			w.Recount()
			s.data.wards.put(w)
		}
	}
	return c.NoContent(http.StatusNoContent)
}

// nameDoctor fills the denormalized doctor name. Callers hold s.mu.
func (s *Server) nameDoctor(p *patient.Patient) {
	p.AssignedDoctorName = ""
	if p.AssignedDoctor == nil {
		return
	}
	if u, ok := s.data.users.get(*p.AssignedDoctor); ok {
		p.AssignedDoctorName = u.DisplayName()
	}
}
