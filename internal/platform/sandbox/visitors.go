package sandbox

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/ehr/hospital/internal/domain/visitor"
	"github.com/ehr/hospital/internal/platform/auth"
	"github.com/ehr/hospital/pkg/validation"
)

func (s *Server) registerVisitors(api *echo.Group) {
	desk := auth.RequireRole("receptionist")

	api.GET("/visitors/", s.listVisitors)
	api.POST("/visitors/", s.createVisitor, desk)
	api.PATCH("/visitors/:id/checkout/", s.checkoutVisitor, desk)
}

func (s *Server) listVisitors(c echo.Context) error {
	patientID, _ := strconv.ParseInt(c.QueryParam("patient"), 10, 64)
	status := c.QueryParam("status")
	s.mu.Lock()
	defer s.mu.Unlock()
	return c.JSON(http.StatusOK, s.data.visitors.filter(func(v visitor.Visitor) bool {
		if patientID != 0 && v.Patient != patientID {
			return false
		}
		return status == "" || string(v.Status) == status
	}))
}

// createVisitor checks a visitor in now unless the body carries a time.
func (s *Server) createVisitor(c echo.Context) error {
	var v visitor.Visitor
	if err := bind(c, &v); err != nil {
		return err
	}
	if err := v.Validate(); err != nil {
		return invalid(c, err)
	}
	if v.Status == "" {
		v.Status = visitor.StatusVisiting
	}
	if v.CheckInTime == nil {
		v.CheckInTime = s.stamp()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.data.patients.get(v.Patient)
	if !ok {
		return invalid(c, validation.Errors{"patient": {invalidPK(v.Patient)}})
	}
	v.PatientName = p.Name
	created := s.data.visitors.insert(func(id int64) visitor.Visitor {
		v.ID = id
		return v
	})
	s.logger.Info().Int64("visitor_id", created.ID).Int64("patient_id", p.ID).Msg("visitor checked in")
	return c.JSON(http.StatusCreated, created)
}

// checkoutVisitor is idempotent: checking out twice answers the same row.
func (s *Server) checkoutVisitor(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data.visitors.get(id)
	if !ok {
		return notFound()
	}
	v.Status = visitor.StatusCheckedOut
	s.data.visitors.put(v)
	return c.JSON(http.StatusOK, v)
}
