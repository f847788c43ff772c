package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/middleware"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/models"
)

// CreateOrder handles POST /api/orders. Guests send their cart in the body;
// authenticated callers check out their persisted cart.
func (h *Handlers) CreateOrder(c *gin.Context) {
	var req models.CreateOrderRequest
	if err := bindStrict(c, &req); err != nil {
		h.handleError(c, err)
		return
	}

	principal := middleware.PrincipalFrom(c)
	order, err := h.orderService.CreateOrder(c.Request.Context(), principal, &req)
	if err != nil {
		h.handleError(c, err)
		return
	}

	h.log(c).Info("Order created via API", logging.Fields{
		"order_id": order.ID,
		"guest":    principal == nil,
	})
	c.JSON(http.StatusCreated, order)
}

// ListOrders handles GET /api/orders.
func (h *Handlers) ListOrders(c *gin.Context) {
	principal := middleware.PrincipalFrom(c)
	orders, err := h.orderService.ListUserOrders(c.Request.Context(), principal.UserID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(orders))
}

// GetOrder handles GET /api/orders/:id.
func (h *Handlers) GetOrder(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		h.handleError(c, err)
		return
	}

	order, err := h.orderService.GetOrder(c.Request.Context(), middleware.PrincipalFrom(c), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// TrackOrder handles GET /api/orders/track/:id?email=.
func (h *Handlers) TrackOrder(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		h.handleError(c, err)
		return
	}

	order, err := h.orderService.TrackOrder(c.Request.Context(), id, c.Query("email"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// ListAllOrders handles GET /api/orders/admin/all.
func (h *Handlers) ListAllOrders(c *gin.Context) {
	orders, err := h.orderService.ListAllOrders(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(orders))
}

// UpdateOrderStatus handles PUT /api/orders/:id/status.
func (h *Handlers) UpdateOrderStatus(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		h.handleError(c, err)
		return
	}

	var req models.UpdateOrderStatusRequest
	if err := bindStrict(c, &req); err != nil {
		h.handleError(c, err)
		return
	}

	order, err := h.orderService.UpdateOrderStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// UpdatePaymentStatus handles PUT /api/orders/:id/payment-status.
func (h *Handlers) UpdatePaymentStatus(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		h.handleError(c, err)
		return
	}

	var req models.UpdatePaymentStatusRequest
	if err := bindStrict(c, &req); err != nil {
		h.handleError(c, err)
		return
	}

	order, err := h.orderService.UpdatePaymentStatus(c.Request.Context(), id, req.PaymentStatus)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func nonNil(orders []*models.Order) []*models.Order {
	if orders == nil {
		return []*models.Order{}
	}
	return orders
}
