package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/apperrors"
)

const (
	maxSalesDays   = 366
	maxTopProducts = 100
)

// Stats handles GET /api/admin/stats.
func (h *Handlers) Stats(c *gin.Context) {
	stats, err := h.orderService.Stats(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// SalesChart handles GET /api/admin/sales-chart?days=.
func (h *Handlers) SalesChart(c *gin.Context) {
	days, err := queryInt(c, "days")
	if err == nil && days > maxSalesDays {
		err = apperrors.NewValidationError("days", "must be at most 366")
	}
	if err != nil {
		h.handleError(c, err)
		return
	}

	sales, err := h.orderService.SalesChart(c.Request.Context(), days)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, sales)
}

// TopProducts handles GET /api/admin/top-products?limit=.
func (h *Handlers) TopProducts(c *gin.Context) {
	limit, err := queryInt(c, "limit")
	if err == nil && limit > maxTopProducts {
		err = apperrors.NewValidationError("limit", "must be at most 100")
	}
	if err != nil {
		h.handleError(c, err)
		return
	}

	top, err := h.orderService.TopProducts(c.Request.Context(), limit)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, top)
}
