package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/middleware"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/models"
)

// GetCart handles GET /api/cart.
func (h *Handlers) GetCart(c *gin.Context) {
	cart, err := h.orderService.Cart(c.Request.Context(), middleware.PrincipalFrom(c).UserID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

// AddToCart handles POST /api/cart.
func (h *Handlers) AddToCart(c *gin.Context) {
	var req models.AddCartItemRequest
	if err := bindStrict(c, &req); err != nil {
		h.handleError(c, err)
		return
	}

	cart, err := h.orderService.AddToCart(c.Request.Context(), middleware.PrincipalFrom(c).UserID, &req)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

// UpdateCartItem handles PUT /api/cart/:itemId.
func (h *Handlers) UpdateCartItem(c *gin.Context) {
	itemID, err := pathID(c, "itemId")
	if err != nil {
		h.handleError(c, err)
		return
	}

	var req models.UpdateCartItemRequest
	if err := bindStrict(c, &req); err != nil {
		h.handleError(c, err)
		return
	}

	cart, err := h.orderService.UpdateCartItem(c.Request.Context(), middleware.PrincipalFrom(c).UserID, itemID, req.Quantity)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

// RemoveCartItem handles DELETE /api/cart/:itemId.
func (h *Handlers) RemoveCartItem(c *gin.Context) {
	itemID, err := pathID(c, "itemId")
	if err != nil {
		h.handleError(c, err)
		return
	}

	cart, err := h.orderService.RemoveCartItem(c.Request.Context(), middleware.PrincipalFrom(c).UserID, itemID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

// ClearCart handles DELETE /api/cart.
func (h *Handlers) ClearCart(c *gin.Context) {
	cart, err := h.orderService.ClearCart(c.Request.Context(), middleware.PrincipalFrom(c).UserID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}
