package sandbox

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/ehr/hospital/internal/domain/billing"
	"github.com/ehr/hospital/internal/platform/auth"
	"github.com/ehr/hospital/pkg/money"
	"github.com/ehr/hospital/pkg/validation"
)

type paymentRequest struct {
	Amount        json.RawMessage `json:"amount"`
	PaymentMethod string          `json:"payment_method"`
	TransactionID string          `json:"transaction_id"`
	Notes         string          `json:"notes"`
}

func (s *Server) registerBilling(api *echo.Group) {
	cashier := api.Group("", auth.RequireRole("receptionist"))
	cashier.GET("/bills/", s.listBills)
	cashier.GET("/bills/:id/", s.getBill)
	cashier.POST("/bills/", s.createBill)
	cashier.POST("/bills/:id/add_payment/", s.addPayment)
	cashier.PATCH("/bills/:id/cancel/", s.cancelBill)
}

func (s *Server) listBills(c echo.Context) error {
	patientID, _ := strconv.ParseInt(c.QueryParam("patient"), 10, 64)
	status := c.QueryParam("status")
	s.mu.Lock()
	defer s.mu.Unlock()
	return c.JSON(http.StatusOK, s.data.bills.filter(func(b billing.Bill) bool {
		return (patientID == 0 || b.Patient == patientID) && (status == "" || b.Status == status)
	}))
}

func (s *Server) getBill(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	s.mu.Lock()
	b, ok := s.data.bills.get(id)
	s.mu.Unlock()
	if !ok {
		return notFound()
	}
	return c.JSON(http.StatusOK, b)
}

// createBill derives the totals from the service lines; amounts sent by the
// client are ignored.
func (s *Server) createBill(c echo.Context) error {
	var b billing.Bill
	if err := bind(c, &b); err != nil {
		return err
	}
	if err := b.Validate(); err != nil {
		return invalid(c, err)
	}
	b.TotalAmount = b.ComputeTotal()
	b.PaidAmount = 0
	b.RemainingAmount = b.TotalAmount
	b.Status = billing.StatusPending
	b.Payments = nil
	b.PaymentDate = ""
	if b.Date == "" {
		b.Date = s.today()
	}
	creator := callerID(c)
	b.CreatedBy = &creator

	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.data.patients.get(b.Patient)
	if !ok {
		return invalid(c, validation.Errors{"patient": {invalidPK(b.Patient)}})
	}
	b.PatientName = p.Name
	created := s.data.bills.insert(func(id int64) billing.Bill {
		b.ID = id
		b.CreatedAt, b.UpdatedAt = s.stamp(), s.stamp()
		return b
	})
	return c.JSON(http.StatusCreated, created)
}

// addPayment settles part or all of a bill and answers the updated bill.
func (s *Server) addPayment(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	var req paymentRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	var amount money.Amount
	if len(req.Amount) == 0 || string(req.Amount) == "null" || amount.UnmarshalJSON(req.Amount) != nil {
		return errorBody(c, http.StatusBadRequest, "Invalid payment amount")
	}
	if amount <= 0 {
		return errorBody(c, http.StatusBadRequest, "Payment amount must be greater than 0")
	}
	if req.PaymentMethod == "" {
		req.PaymentMethod = billing.MethodCash
	}
	processor := callerID(c)
	payment := billing.Payment{
		Bill:          id,
		Amount:        amount,
		PaymentMethod: req.PaymentMethod,
		TransactionID: req.TransactionID,
		Notes:         req.Notes,
		ProcessedBy:   &processor,
	}
	if err := payment.Validate(); err != nil {
		return invalid(c, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.data.bills.get(id)
	if !ok {
		return notFound()
	}
	if amount > b.Balance() {
		return errorBody(c, http.StatusBadRequest, "Payment amount exceeds remaining balance")
	}
	payment.ID = s.data.payments + 1
	updated, err := b.ApplyPayment(payment, s.opts.Now().UTC())
	if err != nil {
		return errorBody(c, http.StatusBadRequest, "Cannot add payment to a closed bill")
	}
	s.data.payments++
	updated.UpdatedAt = s.stamp()
	s.data.bills.put(updated)
	return c.JSON(http.StatusOK, updated)
}

func (s *Server) cancelBill(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.data.bills.get(id)
	if !ok {
		return notFound()
	}
	if b.PaidAmount > 0 {
		return errorBody(c, http.StatusBadRequest, "Cannot cancel bill with payments")
	}
	b.Status, b.UpdatedAt = billing.StatusCancelled, s.stamp()
	s.data.bills.put(b)
	return c.JSON(http.StatusOK, b)
}
