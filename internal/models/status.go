package models

import (
	"fmt"
	"strings"

	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/apperrors"
)

// FulfillmentStatus is the physical processing stage of an order.
type FulfillmentStatus string

const (
	FulfillmentPending    FulfillmentStatus = "pending"
	FulfillmentApproved   FulfillmentStatus = "approved"
	FulfillmentProcessing FulfillmentStatus = "processing"
	FulfillmentShipped    FulfillmentStatus = "shipped"
	FulfillmentDelivered  FulfillmentStatus = "delivered"
	FulfillmentCancelled  FulfillmentStatus = "cancelled"
)

// fulfillmentRank orders the forward path; cancelled sits outside it.
var fulfillmentRank = map[FulfillmentStatus]int{
	FulfillmentPending:    0,
	FulfillmentApproved:   1,
	FulfillmentProcessing: 2,
	FulfillmentShipped:    3,
	FulfillmentDelivered:  4,
}

// ParseFulfillmentStatus accepts exactly one of the six fulfillment states.
func ParseFulfillmentStatus(value string) (FulfillmentStatus, error) {
	s := FulfillmentStatus(strings.TrimSpace(value))
	if s == FulfillmentCancelled {
		return s, nil
	}
	if _, ok := fulfillmentRank[s]; ok {
		return s, nil
	}
	return "", &apperrors.InvalidStatusError{Field: "status", Value: value}
}

func (s FulfillmentStatus) IsTerminal() bool {
	return s == FulfillmentDelivered || s == FulfillmentCancelled
}

// TransitionTo validates a move to next. It reports false with no error when
// next equals the current state.
func (s FulfillmentStatus) TransitionTo(next FulfillmentStatus) (bool, error) {
	if s == next {
		return false, nil
	}
	if s.IsTerminal() {
		return false, fmt.Errorf("%w: order is %s", apperrors.ErrInvalidTransition, s)
	}
	if next == FulfillmentCancelled {
		return true, nil
	}
	if fulfillmentRank[next] > fulfillmentRank[s] {
		return true, nil
	}
	return false, fmt.Errorf("%w: %s -> %s", apperrors.ErrInvalidTransition, s, next)
}

// PaymentStatus is the settlement state of an order's funds.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentApproved PaymentStatus = "approved"
	PaymentRejected PaymentStatus = "rejected"
	PaymentRefunded PaymentStatus = "refunded"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending:  {PaymentApproved, PaymentRejected, PaymentRefunded},
	PaymentRejected: {PaymentPending, PaymentApproved},
	PaymentApproved: {PaymentRefunded},
	PaymentRefunded: {},
}

// ParsePaymentStatus accepts exactly one of the four payment states.
func ParsePaymentStatus(value string) (PaymentStatus, error) {
	s := PaymentStatus(strings.TrimSpace(value))
	if _, ok := paymentTransitions[s]; ok {
		return s, nil
	}
	return "", &apperrors.InvalidStatusError{Field: "payment_status", Value: value}
}

// TransitionTo validates a move to next. Re-applying the current state is a
// no-op, which keeps duplicate gateway notifications harmless.
func (s PaymentStatus) TransitionTo(next PaymentStatus) (bool, error) {
	if s == next {
		return false, nil
	}
	for _, allowed := range paymentTransitions[s] {
		if allowed == next {
			return true, nil
		}
	}
	return false, fmt.Errorf("%w: payment %s -> %s", apperrors.ErrInvalidTransition, s, next)
}

// StatusChange describes the outcome of a transition applied to an order.
type StatusChange struct {
	PreviousStatus        FulfillmentStatus `json:"previous_status"`
	PreviousPaymentStatus PaymentStatus     `json:"previous_payment_status"`
	FulfillmentChanged    bool              `json:"fulfillment_changed"`
	PaymentChanged        bool              `json:"payment_changed"`
}

// Changed reports whether either axis moved.
func (c StatusChange) Changed() bool {
	return c.FulfillmentChanged || c.PaymentChanged
}

// ApplyFulfillmentStatus moves the order along the fulfillment axis.
func (o *Order) ApplyFulfillmentStatus(next FulfillmentStatus) (StatusChange, error) {
	change := StatusChange{PreviousStatus: o.Status, PreviousPaymentStatus: o.PaymentStatus}
	changed, err := o.Status.TransitionTo(next)
	if err != nil {
		return change, err
	}
	if changed {
		o.Status = next
		change.FulfillmentChanged = true
	}
	return change, nil
}

// ApplyPaymentStatus moves the order along the payment axis. Approving a
// payment while fulfillment is still pending also approves fulfillment.
func (o *Order) ApplyPaymentStatus(next PaymentStatus) (StatusChange, error) {
	change := StatusChange{PreviousStatus: o.Status, PreviousPaymentStatus: o.PaymentStatus}
	changed, err := o.PaymentStatus.TransitionTo(next)
	if err != nil {
		return change, err
	}
	if !changed {
		return change, nil
	}
	o.PaymentStatus = next
	change.PaymentChanged = true
	if next == PaymentApproved && o.Status == FulfillmentPending {
		o.Status = FulfillmentApproved
		change.FulfillmentChanged = true
	}
	return change, nil
}
