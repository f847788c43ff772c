// Package apperrors defines the error taxonomy shared by the ledger, the
// cart resolver, the payment adapter and the HTTP layer.
package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyCart          = errors.New("cart is empty")
	ErrProductNotFound    = errors.New("product not found")
	ErrInactiveProduct    = errors.New("product is not active")
	ErrOrderNotFound      = errors.New("order not found")
	ErrCartItemNotFound   = errors.New("cart item not found")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrPaymentSetupFailed = errors.New("payment setup failed")
	ErrUnauthorized       = errors.New("authentication required")
	ErrForbidden          = errors.New("access denied")
)

// ValidationError reports a rejected request field.
type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// InsufficientStockError names the product whose requested quantity exceeds
// the available stock.
type InsufficientStockError struct {
	ProductID   int64
	ProductName string
	Requested   int64
	Available   int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s (product %d): requested %d, available %d",
		e.ProductName, e.ProductID, e.Requested, e.Available)
}

// InvalidStatusError is returned for a status name outside its enumeration.
type InvalidStatusError struct {
	Field string
	Value string
}

func (e *InvalidStatusError) Error() string {
	return fmt.Sprintf("invalid %s %q", e.Field, e.Value)
}

// GatewayNotificationError wraps a failure while reconciling a payment
// gateway notification. It never leaves the webhook boundary.
type GatewayNotificationError struct {
	PaymentID string
	OrderID   int64
	Stage     string
	Err       error
}

func (e *GatewayNotificationError) Error() string {
	return fmt.Sprintf("gateway notification %s (payment %s, order %d): %v", e.Stage, e.PaymentID, e.OrderID, e.Err)
}

func (e *GatewayNotificationError) Unwrap() error { return e.Err }

// IsInsufficientStock reports whether err carries an InsufficientStockError.
func IsInsufficientStock(err error) bool {
	var target *InsufficientStockError
	return errors.As(err, &target)
}

// IsValidation reports whether err is a request validation failure.
func IsValidation(err error) bool {
	var v *ValidationError
	var s *InvalidStatusError
	return errors.As(err, &v) || errors.As(err, &s)
}
