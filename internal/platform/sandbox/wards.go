package sandbox

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/ehr/hospital/internal/domain/ward"
	"github.com/ehr/hospital/internal/platform/auth"
	"github.com/ehr/hospital/pkg/validation"
)

// bedStatusRequest is decoded loosely so an unknown status can be answered
// with the API's own message instead of a field error.
type bedStatusRequest struct {
	Status        string `json:"status"`
	Patient       *int64 `json:"patient"`
	AdmissionDate string `json:"admission_date"`
}

func (s *Server) registerWards(api *echo.Group) {
	api.GET("/wards/", s.listWards)
	api.GET("/wards/:id/", s.getWard)

	admin := api.Group("", auth.RequireRole("admin"))
	admin.POST("/wards/", s.createWard)
	admin.PUT("/wards/:id/", s.updateWard)
	admin.PATCH("/wards/:id/", s.updateWard)
	admin.DELETE("/wards/:id/", s.deleteWard)

	api.GET("/beds/", s.listBeds)
	api.GET("/beds/available/", s.availableBeds)
	api.GET("/beds/:id/", s.getBed)
	api.PATCH("/beds/:id/update_status/", s.updateBedStatus, auth.RequireRole("nurse", "doctor"))
}

func (s *Server) listWards(c echo.Context) error {
	search := c.QueryParam("search")
	department := c.QueryParam("department")
	status := c.QueryParam("status")
	floor, floorErr := strconv.Atoi(c.QueryParam("floor"))

	s.mu.Lock()
	defer s.mu.Unlock()
	return c.JSON(http.StatusOK, s.data.wards.filter(func(w ward.Ward) bool {
		if search != "" && !containsFold(search, w.Name, w.Department, w.NurseInCharge) {
			return false
		}
		if department != "" && !containsFold(department, w.Department) {
			return false
		}
		if status != "" && w.Status != status {
			return false
		}
		return floorErr != nil || w.Floor == floor
	}))
}

func (s *Server) getWard(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	s.mu.Lock()
	w, ok := s.data.wards.get(id)
	s.mu.Unlock()
	if !ok {
		return notFound()
	}
	return c.JSON(http.StatusOK, w)
}

// createWard builds TotalBeds available beds numbered after the ward name.
func (s *Server) createWard(c echo.Context) error {
	var w ward.Ward
	if err := bind(c, &w); err != nil {
		return err
	}
	if err := w.Validate(); err != nil {
		return invalid(c, err)
	}
	if w.Status == "" {
		w.Status = "active"
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	created := s.data.wards.insert(func(id int64) ward.Ward {
		w.ID = id
		w.Beds = nil
		s.growBeds(&w, w.TotalBeds)
		w.Recount()
		w.CreatedAt, w.UpdatedAt = s.stamp(), s.stamp()
		return w
	})
	return c.JSON(http.StatusCreated, created)
}

// updateWard applies the body over the stored ward. A new total adds beds,
// or removes surplus available beds from the end; occupied and
// out-of-service beds are never removed.
func (s *Server) updateWard(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	s.mu.Lock()
	w, ok := s.data.wards.get(id)
	s.mu.Unlock()
	if !ok {
		return notFound()
	}
	beds, created := w.Beds, w.CreatedAt
	if err := bind(c, &w); err != nil {
		return err
	}
	if err := w.Validate(); err != nil {
		return invalid(c, err)
	}
	w.ID, w.Beds, w.CreatedAt, w.UpdatedAt = id, append([]ward.Bed(nil), beds...), created, s.stamp()

	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case w.TotalBeds > len(w.Beds):
		s.growBeds(&w, w.TotalBeds)
	case w.TotalBeds < len(w.Beds):
		for i := len(w.Beds) - 1; i >= 0 && len(w.Beds) > w.TotalBeds; i-- {
			if w.Beds[i].Status == ward.BedAvailable {
				w.Beds = append(w.Beds[:i], w.Beds[i+1:]...)
			}
		}
	}
	w.Recount()
	if !s.data.wards.put(w) {
		return notFound()
	}
	return c.JSON(http.StatusOK, w)
}

// growBeds appends beds until w has n. Callers hold s.mu.
func (s *Server) growBeds(w *ward.Ward, n int) {
	for seq := len(w.Beds) + 1; seq <= n; seq++ {
		s.data.beds++
		w.Beds = append(w.Beds, ward.Bed{
			ID:     s.data.beds,
			Ward:   w.ID,
			Number: ward.BedNumber(w.Name, seq),
			Status: ward.BedAvailable,
		})
	}
}

func (s *Server) deleteWard(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.data.wards.get(id)
	if !ok {
		return notFound()
	}
	for _, b := range w.Beds {
		if b.Status == ward.BedOccupied {
			return errorBody(c, http.StatusBadRequest, "Cannot delete ward with occupied beds")
		}
	}
	s.data.wards.remove(id)
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) listBeds(c echo.Context) error {
	status := c.QueryParam("status")
	wardID, _ := strconv.ParseInt(c.QueryParam("ward"), 10, 64)
	return c.JSON(http.StatusOK, s.beds(func(b ward.Bed) bool {
		return (status == "" || string(b.Status) == status) && (wardID == 0 || b.Ward == wardID)
	}))
}

func (s *Server) availableBeds(c echo.Context) error {
	return c.JSON(http.StatusOK, s.beds(func(b ward.Bed) bool { return b.Status == ward.BedAvailable }))
}

func (s *Server) beds(keep func(ward.Bed) bool) []ward.Bed {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []ward.Bed{}
	for _, w := range s.data.wards.rows {
		for _, b := range w.Beds {
			if keep(b) {
				out = append(out, b)
			}
		}
	}
	return out
}

func (s *Server) getBed(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	s.mu.Lock()
	wi, bi, ok := s.data.bedLocation(id)
	var b ward.Bed
	if ok {
		b = s.data.wards.rows[wi].Beds[bi]
	}
	s.mu.Unlock()
	if !ok {
		return notFound()
	}
	return c.JSON(http.StatusOK, b)
}

// updateBedStatus sets a bed's status. Occupying a bed with a patient links
// the patient; any other status clears the link. The ward aggregates are
// recomputed but only the bed is returned.
func (s *Server) updateBedStatus(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	var req bedStatusRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	status := ward.BedStatus(req.Status)
	if !status.Valid() {
		return errorBody(c, http.StatusBadRequest, "Invalid status")
	}
	if req.AdmissionDate != "" {
		if err := validation.Struct(ward.BedStatusUpdate{Status: status, AdmissionDate: req.AdmissionDate}); err != nil {
			return invalid(c, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	wi, bi, ok := s.data.bedLocation(id)
	if !ok {
		return notFound()
	}
	w := s.data.wards.rows[wi]
	b := w.Beds[bi]

	switch {
	case status == ward.BedOccupied && req.Patient != nil:
		p, found := s.data.patients.get(*req.Patient)
		if !found {
			return errorBody(c, http.StatusBadRequest, "Patient not found")
		}
		date := req.AdmissionDate
		if date == "" {
			date = s.today()
		}
		pid := p.ID
		b.Patient, b.PatientName, b.AdmissionDate = &pid, p.Name, &date
		b.Status = status
	case status == ward.BedOccupied:
		b.Status = status
	default:
		b = vacate(b, status)
	}
	b.UpdatedAt = s.stamp()

	w, _ = w.WithBed(b)
	w.Recount()
	s.data.wards.put(w)
	return c.JSON(http.StatusOK, b)
}

// vacate clears the patient link of b and sets status.
func vacate(b ward.Bed, status ward.BedStatus) ward.Bed {
	b.Patient, b.PatientName, b.AdmissionDate = nil, "", nil
	b.Status = status
	return b
}
