package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/apperrors"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/middleware"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/models"
)

// CreatePreference handles POST /api/payments/create-preference.
func (h *Handlers) CreatePreference(c *gin.Context) {
	var req models.CreatePreferenceRequest
	if err := bindStrict(c, &req); err != nil {
		h.handleError(c, err)
		return
	}

	resp, err := h.paymentService.CreatePaymentRequest(c.Request.Context(), middleware.PrincipalFrom(c), req.OrderID)
	if err != nil {
		if errors.Is(err, apperrors.ErrPaymentSetupFailed) && resp != nil {
			h.log(c).Warn("Gateway unavailable, offering offline methods", logging.Fields{
				"order_id": resp.OrderID,
				"error":    err,
			})
			c.JSON(http.StatusBadGateway, gin.H{
				"error":            apperrors.ErrPaymentSetupFailed.Error(),
				"order_id":         resp.OrderID,
				"fallback_methods": resp.FallbackMethods,
			})
			return
		}
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// PaymentWebhook handles POST /api/payments/webhook. The gateway retries
// anything but a 200, so failures are logged and acknowledged.
func (h *Handlers) PaymentWebhook(c *gin.Context) {
	n := parseNotification(c)

	ctx := c.Request.Context()
	if timeout := h.config.Gateway.NotificationTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if err := h.paymentService.HandleNotification(ctx, n); err != nil {
		fields := logging.Fields{"error": err, "type": n.Type, "payment_id": string(n.Data.ID)}
		var gerr *apperrors.GatewayNotificationError
		if errors.As(err, &gerr) {
			fields["stage"] = gerr.Stage
			fields["order_id"] = gerr.OrderID
		}
		h.log(c).Error("Gateway notification not applied", fields)
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

// parseNotification reads the JSON body when there is one and fills the
// blanks from the query string, where IPN-style callbacks put them.
func parseNotification(c *gin.Context) *models.GatewayNotification {
	n := &models.GatewayNotification{}
	if body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes)); err == nil && len(body) > 0 {
		_ = json.Unmarshal(body, n)
	}

	if n.Type == "" {
		n.Type = c.Query("type")
	}
	if n.Type == "" {
		n.Type = c.Query("topic")
	}
	if n.Data.ID == "" {
		n.Data.ID = models.FlexibleID(c.Query("data.id"))
	}
	if n.Data.ID == "" {
		n.Data.ID = models.FlexibleID(c.Query("id"))
	}
	return n
}
