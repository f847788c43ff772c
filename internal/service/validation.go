package service

import (
	"net/mail"
	"strings"

	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/apperrors"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/models"
)

const (
	maxNotesLength  = 1000
	maxFieldLength  = 255
	maxGuestItems   = 100
	maxLineQuantity = 1000
)

// ValidateShipping checks the snapshot after profile defaults were applied.
func ValidateShipping(s models.Shipping) error {
	required := []struct {
		field, value string
	}{
		{"shipping_name", s.Name},
		{"shipping_address", s.Address},
		{"shipping_phone", s.Phone},
		{"shipping_email", s.Email},
	}
	for _, r := range required {
		if r.value == "" {
			return apperrors.NewValidationError(r.field, "is required")
		}
		if len(r.value) > maxFieldLength {
			return apperrors.NewValidationError(r.field, "is too long")
		}
	}
	if len(s.City) > maxFieldLength {
		return apperrors.NewValidationError("shipping_city", "is too long")
	}

	if err := validateEmail("shipping_email", s.Email); err != nil {
		return err
	}
	return nil
}

// ValidateCreateOrderRequest checks the fields that do not depend on the
// caller's profile. Item limits only apply to guests; authenticated
// checkout ignores submitted items.
func ValidateCreateOrderRequest(req *models.CreateOrderRequest, guest bool) (models.PaymentMethod, error) {
	method, err := models.ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		return "", err
	}
	if len(req.Notes) > maxNotesLength {
		return "", apperrors.NewValidationError("notes", "is too long")
	}
	if !guest {
		return method, nil
	}
	if len(req.Items) > maxGuestItems {
		return "", apperrors.NewValidationError("items", "too many items")
	}
	for _, item := range req.Items {
		if item.Quantity > maxLineQuantity {
			return "", apperrors.NewValidationError("quantity", "is too large")
		}
	}
	return method, nil
}

// ValidateTrackingEmail normalises the e-mail used for public tracking.
func ValidateTrackingEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", apperrors.NewValidationError("email", "is required")
	}
	return email, nil
}

func validateEmail(field, value string) error {
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != value || !strings.Contains(value[strings.LastIndex(value, "@")+1:], ".") {
		return apperrors.NewValidationError(field, "must be a valid e-mail address")
	}
	return nil
}
