package sandbox

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ehr/hospital/internal/domain/inventory"
	"github.com/ehr/hospital/internal/platform/auth"
)

func (s *Server) registerInventory(api *echo.Group) {
	api.GET("/inventory/", s.listInventory)
	api.GET("/inventory/low_stock/", s.lowStock)
	api.GET("/inventory/:id/", s.getInventoryItem)

	write := api.Group("", auth.RequireRole("nurse"))
	write.POST("/inventory/", s.createInventoryItem)
	write.PUT("/inventory/:id/", s.updateInventoryItem)
	write.PATCH("/inventory/:id/", s.updateInventoryItem)
	write.DELETE("/inventory/:id/", s.deleteInventoryItem)
	write.POST("/inventory/:id/adjust_stock/", s.adjustStock)
}

func (s *Server) listInventory(c echo.Context) error {
	search := c.QueryParam("search")
	category := c.QueryParam("category")
	s.mu.Lock()
	defer s.mu.Unlock()
	return c.JSON(http.StatusOK, s.data.inventory.filter(func(it inventory.Item) bool {
		if search != "" && !containsFold(search, it.Name, it.Supplier, it.Location) {
			return false
		}
		return category == "" || it.Category == category
	}))
}

func (s *Server) lowStock(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return c.JSON(http.StatusOK, s.data.inventory.filter(inventory.Item.LowStock))
}

func (s *Server) getInventoryItem(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	s.mu.Lock()
	it, ok := s.data.inventory.get(id)
	s.mu.Unlock()
	if !ok {
		return notFound()
	}
	return c.JSON(http.StatusOK, it)
}

func (s *Server) createInventoryItem(c echo.Context) error {
	var it inventory.Item
	if err := bind(c, &it); err != nil {
		return err
	}
	if err := it.Validate(); err != nil {
		return invalid(c, err)
	}
	it.IsLowStock = it.LowStock()

	s.mu.Lock()
	defer s.mu.Unlock()
	created := s.data.inventory.insert(func(id int64) inventory.Item {
		it.ID = id
		it.CreatedAt, it.UpdatedAt = s.stamp(), s.stamp()
		return it
	})
	return c.JSON(http.StatusCreated, created)
}

func (s *Server) updateInventoryItem(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	s.mu.Lock()
	it, ok := s.data.inventory.get(id)
	s.mu.Unlock()
	if !ok {
		return notFound()
	}
	created := it.CreatedAt
	if err := bind(c, &it); err != nil {
		return err
	}
	if err := it.Validate(); err != nil {
		return invalid(c, err)
	}
	it.ID, it.CreatedAt, it.UpdatedAt = id, created, s.stamp()
	it.IsLowStock = it.LowStock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.data.inventory.put(it) {
		return notFound()
	}
	return c.JSON(http.StatusOK, it)
}

func (s *Server) deleteInventoryItem(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	s.mu.Lock()
	ok := s.data.inventory.remove(id)
	s.mu.Unlock()
	if !ok {
		return notFound()
	}
	return c.NoContent(http.StatusNoContent)
}

// adjustStock adds a signed quantity change. Stock never goes negative.
func (s *Server) adjustStock(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	var body struct {
		QuantityChange *int   `json:"quantity_change"`
		Reason         string `json:"reason"`
	}
	if err := c.Bind(&body); err != nil || body.QuantityChange == nil {
		return errorBody(c, http.StatusBadRequest, "Invalid quantity change")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.data.inventory.get(id)
	if !ok {
		return notFound()
	}
	adj := inventory.StockAdjustment{QuantityChange: *body.QuantityChange, Reason: body.Reason}
	if adj.Reason == "" {
		adj.Reason = "Manual adjustment"
	}
	next, ok := adj.Apply(it.Quantity)
	if !ok {
		return errorBody(c, http.StatusBadRequest, "Insufficient stock")
	}
	it.Quantity = next
	it.IsLowStock = it.LowStock()
	it.UpdatedAt = s.stamp()
	s.data.inventory.put(it)
	s.logger.Info().Int64("item_id", id).Int("change", adj.QuantityChange).Str("reason", adj.Reason).Msg("stock adjusted")
	return c.JSON(http.StatusOK, it)
}
