package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/apperrors"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/config"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/metrics"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/service"
)

const maxBodyBytes = 1 << 20

// ReadinessCheck is one dependency probed by /ready.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Handlers holds all HTTP handlers for the orders service.
type Handlers struct {
	orderService   *service.OrderService
	paymentService *service.PaymentService
	metrics        *metrics.Metrics
	checks         []ReadinessCheck
	config         *config.Config
	logger         *logging.Logger
}

// NewHandlers creates a new handlers instance.
func NewHandlers(
	orderService *service.OrderService,
	paymentService *service.PaymentService,
	m *metrics.Metrics,
	cfg *config.Config,
	checks ...ReadinessCheck,
) *Handlers {
	return &Handlers{
		orderService:   orderService,
		paymentService: paymentService,
		metrics:        m,
		checks:         checks,
		config:         cfg,
		logger:         logging.NewLogger("handlers"),
	}
}

func (h *Handlers) log(c *gin.Context) *logging.Logger {
	return logging.FromContext(c.Request.Context(), h.logger)
}

// bindStrict decodes a JSON body into dst, rejecting unknown fields and
// trailing data.
func bindStrict(c *gin.Context, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(c.Request.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperrors.NewValidationError("body", "request body is required")
		}
		return apperrors.NewValidationError("body", err.Error())
	}
	if dec.More() {
		return apperrors.NewValidationError("body", "unexpected data after JSON object")
	}
	return nil
}

func pathID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError(name, "must be a positive integer")
	}
	return id, nil
}

func queryInt(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperrors.NewValidationError(name, "must be a non-negative integer")
	}
	return n, nil
}

// handleError maps the service error taxonomy onto HTTP responses. Only
// client errors carry their message; everything else is logged and
// answered generically.
func (h *Handlers) handleError(c *gin.Context, err error) {
	var (
		validation *apperrors.ValidationError
		status     *apperrors.InvalidStatusError
		stock      *apperrors.InsufficientStockError
	)

	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": validation.Message, "field": validation.Field})
	case errors.As(err, &status):
		c.JSON(http.StatusBadRequest, gin.H{"error": status.Error(), "field": status.Field})
	case errors.As(err, &stock):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":      "insufficient stock",
			"product_id": stock.ProductID,
			"product":    stock.ProductName,
			"requested":  stock.Requested,
			"available":  stock.Available,
		})
	case errors.Is(err, apperrors.ErrEmptyCart):
		c.JSON(http.StatusBadRequest, gin.H{"error": apperrors.ErrEmptyCart.Error()})
	case errors.Is(err, apperrors.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrOrderNotFound),
		errors.Is(err, apperrors.ErrProductNotFound),
		errors.Is(err, apperrors.ErrInactiveProduct),
		errors.Is(err, apperrors.ErrCartItemNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": notFoundMessage(err)})
	case errors.Is(err, apperrors.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": apperrors.ErrUnauthorized.Error()})
	case errors.Is(err, apperrors.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": apperrors.ErrForbidden.Error()})
	case errors.Is(err, apperrors.ErrPaymentSetupFailed):
		h.log(c).Warn("Payment setup failed", logging.Fields{"error": err})
		c.JSON(http.StatusBadGateway, gin.H{"error": apperrors.ErrPaymentSetupFailed.Error()})
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		h.log(c).Warn("Request aborted", logging.Fields{"error": err})
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "request timed out"})
	default:
		h.log(c).Error("Request failed", logging.Fields{"error": err, "path": c.FullPath()})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func notFoundMessage(err error) string {
	for _, target := range []error{
		apperrors.ErrOrderNotFound,
		apperrors.ErrProductNotFound,
		apperrors.ErrInactiveProduct,
		apperrors.ErrCartItemNotFound,
	} {
		if errors.Is(err, target) {
			return target.Error()
		}
	}
	return "not found"
}
