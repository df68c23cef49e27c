package sandbox

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/ehr/hospital/internal/domain/identity"
	"github.com/ehr/hospital/internal/domain/scheduling"
	"github.com/ehr/hospital/internal/platform/auth"
	"github.com/ehr/hospital/pkg/validation"
)

func (s *Server) registerAppointments(api *echo.Group) {
	api.GET("/appointments/", s.listAppointments)
	api.GET("/appointments/:id/", s.getAppointment)

	write := api.Group("", auth.RequireRole("receptionist", "doctor"))
	write.POST("/appointments/", s.createAppointment)
	write.PUT("/appointments/:id/", s.updateAppointment)
	write.PATCH("/appointments/:id/", s.updateAppointment)
	write.DELETE("/appointments/:id/", s.deleteAppointment)
	write.PATCH("/appointments/:id/complete/", s.transitionAppointment(scheduling.ActionComplete))
	write.PATCH("/appointments/:id/cancel/", s.transitionAppointment(scheduling.ActionCancel))
	write.PATCH("/appointments/:id/no_show/", s.transitionAppointment(scheduling.ActionNoShow))
}

func (s *Server) listAppointments(c echo.Context) error {
	patientID, _ := strconv.ParseInt(c.QueryParam("patient"), 10, 64)
	doctorID, _ := strconv.ParseInt(c.QueryParam("doctor"), 10, 64)
	status := c.QueryParam("status")
	date := c.QueryParam("date")
	if callerRole(c) == "doctor" {
		doctorID = callerID(c)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return c.JSON(http.StatusOK, s.data.appointments.filter(func(a scheduling.Appointment) bool {
		switch {
		case patientID != 0 && a.Patient != patientID:
			return false
		case doctorID != 0 && a.Doctor != doctorID:
			return false
		case status != "" && string(a.Status) != status:
			return false
		case date != "" && a.Date != date:
			return false
		}
		return true
	}))
}

func (s *Server) getAppointment(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	s.mu.Lock()
	a, ok := s.data.appointments.get(id)
	s.mu.Unlock()
	if !ok {
		return notFound()
	}
	return c.JSON(http.StatusOK, a)
}

// resolveAppointment checks the patient and doctor references and fills the
// denormalized names. Callers hold s.mu.
func (s *Server) resolveAppointment(a *scheduling.Appointment) error {
	p, ok := s.data.patients.get(a.Patient)
	if !ok {
		return validation.Errors{"patient": {invalidPK(a.Patient)}}
	}
	d, ok := s.data.users.get(a.Doctor)
	if !ok || d.Role != identity.RoleDoctor {
		return validation.Errors{"doctor": {invalidPK(a.Doctor)}}
	}
	a.PatientName, a.DoctorName = p.Name, d.DisplayName()
	return nil
}

func invalidPK(id int64) string {
	return `Invalid pk "` + strconv.FormatInt(id, 10) + `" - object does not exist.`
}

func (s *Server) createAppointment(c echo.Context) error {
	var a scheduling.Appointment
	if err := bind(c, &a); err != nil {
		return err
	}
	if err := a.Validate(); err != nil {
		return invalid(c, err)
	}
	if a.Status == "" {
		a.Status = scheduling.StatusScheduled
	}
	creator := callerID(c)
	a.CreatedBy = &creator

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.resolveAppointment(&a); err != nil {
		return invalid(c, err)
	}
	created := s.data.appointments.insert(func(id int64) scheduling.Appointment {
		a.ID = id
		a.CreatedAt, a.UpdatedAt = s.stamp(), s.stamp()
		return a
	})
	return c.JSON(http.StatusCreated, created)
}

func (s *Server) updateAppointment(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	s.mu.Lock()
	a, ok := s.data.appointments.get(id)
	s.mu.Unlock()
	if !ok {
		return notFound()
	}
	created, creator := a.CreatedAt, a.CreatedBy
	if err := bind(c, &a); err != nil {
		return err
	}
	if err := a.Validate(); err != nil {
		return invalid(c, err)
	}
	a.ID, a.CreatedAt, a.CreatedBy, a.UpdatedAt = id, created, creator, s.stamp()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.resolveAppointment(&a); err != nil {
		return invalid(c, err)
	}
	if !s.data.appointments.put(a) {
		return notFound()
	}
	return c.JSON(http.StatusOK, a)
}

func (s *Server) deleteAppointment(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	s.mu.Lock()
	ok := s.data.appointments.remove(id)
	s.mu.Unlock()
	if !ok {
		return notFound()
	}
	return c.NoContent(http.StatusNoContent)
}

// transitionAppointment moves an appointment to the action's status. Doctors
// may only complete their own appointments; a cancel reason is kept in the
// notes.
func (s *Server) transitionAppointment(action scheduling.Action) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := idParam(c)
		if err != nil {
			return err
		}
		var body struct {
			Reason string `json:"reason"`
		}
		if err := bind(c, &body); err != nil {
			return err
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		a, ok := s.data.appointments.get(id)
		if !ok {
			return notFound()
		}
		if action == scheduling.ActionComplete && callerRole(c) == "doctor" && a.Doctor != callerID(c) {
			return errorBody(c, http.StatusForbidden, "You can only complete your own appointments")
		}
		a.Status = action.Result()
		if action == scheduling.ActionCancel && body.Reason != "" {
			a.Notes = "Cancelled: " + body.Reason
		}
		a.UpdatedAt = s.stamp()
		s.data.appointments.put(a)
		return c.JSON(http.StatusOK, a)
	}
}
