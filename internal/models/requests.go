package models

import (
	"encoding/json"
	"strconv"
	"strings"
)

// CreateOrderRequest is the checkout body. Items are only honoured for
// guests; authenticated checkout reads the persisted cart.
type CreateOrderRequest struct {
	Items           []GuestItem `json:"items,omitempty"`
	ShippingName    string      `json:"shipping_name"`
	ShippingAddress string      `json:"shipping_address"`
	ShippingCity    string      `json:"shipping_city"`
	ShippingPhone   string      `json:"shipping_phone"`
	ShippingEmail   string      `json:"shipping_email"`
	PaymentMethod   string      `json:"payment_method"`
	Notes           string      `json:"notes,omitempty"`
}

// Shipping returns the submitted contact snapshot.
func (r *CreateOrderRequest) Shipping() Shipping {
	return Shipping{
		Name:    strings.TrimSpace(r.ShippingName),
		Address: strings.TrimSpace(r.ShippingAddress),
		City:    strings.TrimSpace(r.ShippingCity),
		Phone:   strings.TrimSpace(r.ShippingPhone),
		Email:   strings.TrimSpace(r.ShippingEmail),
	}
}

// GuestItem is a client-held cart line. Display fields (name, price, image)
// are accepted for compatibility with browser carts and always discarded.
type GuestItem struct {
	ProductID    int64           `json:"product_id,omitempty"`
	ID           json.RawMessage `json:"id,omitempty"`
	Quantity     int64           `json:"quantity"`
	Name         string          `json:"name,omitempty"`
	Price        json.RawMessage `json:"price,omitempty"`
	ImageURL     string          `json:"image_url,omitempty"`
	CategorySlug string          `json:"category_slug,omitempty"`
}

// ProductRef returns product_id, falling back to a numeric id. Zero means
// the line names no product.
func (g GuestItem) ProductRef() int64 {
	if g.ProductID > 0 {
		return g.ProductID
	}
	raw := strings.Trim(strings.TrimSpace(string(g.ID)), `"`)
	if raw == "" {
		return 0
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0
	}
	return id
}

type UpdateOrderStatusRequest struct {
	Status string `json:"status"`
}

type UpdatePaymentStatusRequest struct {
	PaymentStatus string `json:"payment_status"`
}

type CreatePreferenceRequest struct {
	OrderID int64 `json:"order_id"`
}

// CreatePreferenceResponse carries the redirect target, or an offline
// fallback hint when the gateway could not be reached.
type CreatePreferenceResponse struct {
	ID               string          `json:"id,omitempty"`
	InitPoint        string          `json:"init_point,omitempty"`
	SandboxInitPoint string          `json:"sandbox_init_point,omitempty"`
	OrderID          int64           `json:"order_id"`
	FallbackMethods  []PaymentMethod `json:"fallback_methods,omitempty"`
}

type AddCartItemRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int64 `json:"quantity"`
}

type UpdateCartItemRequest struct {
	Quantity int64 `json:"quantity"`
}
