package models

import (
	"strings"

	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/apperrors"
)

// PaymentMethod is how the customer intends to pay.
type PaymentMethod string

const (
	PaymentMethodMercadoPago PaymentMethod = "mercadopago"
	PaymentMethodTransfer    PaymentMethod = "transferencia"
	PaymentMethodCash        PaymentMethod = "efectivo"
)

// OfflinePaymentMethods are suggested when online checkout cannot be set up.
var OfflinePaymentMethods = []PaymentMethod{PaymentMethodTransfer, PaymentMethodCash}

// ParsePaymentMethod defaults an empty value to the online gateway.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	m := PaymentMethod(strings.TrimSpace(value))
	switch m {
	case "":
		return PaymentMethodMercadoPago, nil
	case PaymentMethodMercadoPago, PaymentMethodTransfer, PaymentMethodCash:
		return m, nil
	}
	return "", apperrors.NewValidationError("payment_method", "must be one of mercadopago, transferencia, efectivo")
}

func (m PaymentMethod) IsOnline() bool {
	return m == PaymentMethodMercadoPago
}

// PaymentPreference is the redirect target returned by the gateway.
type PaymentPreference struct {
	ID               string `json:"id"`
	InitPoint        string `json:"init_point"`
	SandboxInitPoint string `json:"sandbox_init_point"`
}

// GatewayPayment is the authoritative payment record fetched from the gateway.
type GatewayPayment struct {
	ID                FlexibleID `json:"id"`
	Status            string     `json:"status"`
	StatusDetail      string     `json:"status_detail,omitempty"`
	ExternalReference string     `json:"external_reference"`
}

// GatewayNotification is the inbound webhook body. Only Type and Data.ID
// are trusted, as a signal to fetch the payment.
type GatewayNotification struct {
	Type   string `json:"type"`
	Action string `json:"action,omitempty"`
	Data   struct {
		ID FlexibleID `json:"id"`
	} `json:"data"`
}

// FlexibleID accepts both quoted and bare numeric identifiers.
type FlexibleID string

func (f *FlexibleID) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*f = ""
		return nil
	}
	*f = FlexibleID(strings.Trim(s, `"`))
	return nil
}

func (f FlexibleID) String() string { return string(f) }
