package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/apperrors"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/clients"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/config"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/metrics"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/models"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/repository"
)

const notificationTypePayment = "payment"

// PaymentGateway is the subset of the MercadoPago client the service uses.
type PaymentGateway interface {
	CreatePreference(ctx context.Context, req *clients.PreferenceRequest) (*models.PaymentPreference, error)
	GetPayment(ctx context.Context, paymentID string) (*models.GatewayPayment, error)
}

// PaymentLedger is the part of the order service that payment flows write
// through, so cached reads follow every change.
type PaymentLedger interface {
	ApplyPaymentStatus(ctx context.Context, id int64, next models.PaymentStatus) (*models.Order, models.StatusChange, error)
	RecordPaymentReference(ctx context.Context, order *models.Order, reference string) error
}

var (
	_ PaymentGateway       = (*clients.MercadoPagoClient)(nil)
	_ PaymentLedger = (*OrderService)(nil)
)

// PaymentService handles checkout redirects and gateway reconciliation.
type PaymentService struct {
	gateway PaymentGateway
	orders  repository.OrderRepository
	users   repository.UserRepository
	ledger  PaymentLedger
	deduper repository.NotificationDeduper
	metrics *metrics.Metrics
	config  *config.Config
	tracer  trace.Tracer
	logger  *logging.Logger
}

// NewPaymentService creates a new payment service. deduper may be nil.
func NewPaymentService(
	gateway PaymentGateway,
	orders repository.OrderRepository,
	users repository.UserRepository,
	ledger PaymentLedger,
	deduper repository.NotificationDeduper,
	m *metrics.Metrics,
	cfg *config.Config,
) *PaymentService {
	return &PaymentService{
		gateway: gateway,
		orders:  orders,
		users:   users,
		ledger:  ledger,
		deduper: deduper,
		metrics: m,
		config:  cfg,
		tracer:  otel.Tracer(tracerName),
		logger:  logging.NewLogger("payment-service"),
	}
}

// CreatePaymentRequest registers a gateway preference for an order the
// caller may pay: their own order, or a guest order when called without a
// session. On gateway failure the returned response still names the
// offline methods, alongside ErrPaymentSetupFailed.
func (s *PaymentService) CreatePaymentRequest(ctx context.Context, principal *models.Principal, orderID int64) (*models.CreatePreferenceResponse, error) {
	if orderID <= 0 {
		return nil, apperrors.NewValidationError("order_id", "is required")
	}

	ctx, span := s.tracer.Start(ctx, "PaymentService.CreatePaymentRequest",
		trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()
	log := logging.FromContext(ctx, s.logger)

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !payableBy(order, principal) {
		return nil, apperrors.ErrOrderNotFound
	}
	if order.PaymentStatus == models.PaymentApproved || order.PaymentStatus == models.PaymentRefunded {
		return nil, apperrors.NewValidationError("payment_status", "order is already paid")
	}
	if order.Status == models.FulfillmentCancelled {
		return nil, apperrors.NewValidationError("status", "order is cancelled")
	}

	req := s.buildPreference(ctx, order, principal)
	pref, err := s.gateway.CreatePreference(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "preference failed")
		log.Error("Payment setup failed", logging.Fields{
			"order_id": order.ID,
			"error":    err.Error(),
		})
		return &models.CreatePreferenceResponse{
			OrderID:         order.ID,
			FallbackMethods: models.OfflinePaymentMethods,
		}, fmt.Errorf("%w: %v", apperrors.ErrPaymentSetupFailed, err)
	}

	if err := s.ledger.RecordPaymentReference(ctx, order, pref.ID); err != nil {
		log.Error("Failed to store payment reference", logging.Fields{
			"order_id":      order.ID,
			"preference_id": pref.ID,
			"error":         err.Error(),
		})
		return nil, err
	}

	log.Info("Payment preference ready", logging.Fields{
		"order_id":      order.ID,
		"preference_id": pref.ID,
	})
	return &models.CreatePreferenceResponse{
		ID:               pref.ID,
		InitPoint:        pref.InitPoint,
		SandboxInitPoint: pref.SandboxInitPoint,
		OrderID:          order.ID,
	}, nil
}

func payableBy(order *models.Order, principal *models.Principal) bool {
	if principal == nil {
		return order.UserID == nil
	}
	return principal.IsAdmin() || order.OwnedBy(principal.UserID)
}

func (s *PaymentService) buildPreference(ctx context.Context, order *models.Order, principal *models.Principal) *clients.PreferenceRequest {
	gw := s.config.Gateway
	ref := strconv.FormatInt(order.ID, 10)

	items := make([]clients.PreferenceItem, 0, len(order.Lines))
	for _, l := range order.Lines {
		item := clients.PreferenceItem{
			ID:         strconv.FormatInt(l.ProductID, 10),
			Title:      l.Name,
			Quantity:   l.Quantity,
			UnitPrice:  GatewayAmount(l.Price, gw.MinorUnitExponent),
			CurrencyID: gw.Currency,
		}
		if p := l.Product; p != nil {
			item.Description = p.Description
			item.PictureURL = p.ImageURL
		}
		if item.Title == "" {
			item.Title = "Producto " + item.ID
		}
		if item.Description == "" {
			item.Description = item.Title
		}
		items = append(items, item)
	}

	backURL := func(outcome string) string {
		return fmt.Sprintf("%s/checkout/%s?order_id=%s", gw.FrontendURL, outcome, ref)
	}
	req := &clients.PreferenceRequest{
		Items: items,
		BackURLs: clients.BackURLs{
			Success: backURL("success"),
			Failure: backURL("failure"),
			Pending: backURL("pending"),
		},
		ExternalReference:   ref,
		StatementDescriptor: gw.StatementDescriptor,
		Payer: clients.Payer{
			Name:  order.ShippingName,
			Email: s.payerEmail(ctx, order, principal),
		},
	}
	if !config.IsLocalURL(gw.FrontendURL) {
		req.AutoReturn = "approved"
	}
	if !config.IsLocalURL(gw.BackendURL) {
		req.NotificationURL = gw.BackendURL + "/api/payments/webhook"
	}
	return req
}

func (s *PaymentService) payerEmail(ctx context.Context, order *models.Order, principal *models.Principal) string {
	if order.ShippingEmail != "" {
		return order.ShippingEmail
	}
	if order.UserID != nil && s.users != nil {
		if u, err := s.users.GetByID(ctx, *order.UserID); err == nil {
			return u.Email
		}
	}
	if principal != nil {
		return principal.Email
	}
	return ""
}

// HandleNotification reconciles one gateway notification. The payload is
// only a signal: the payment is always re-read from the gateway. The
// returned error is a GatewayNotificationError meant for logging; callers
// acknowledge the notification regardless.
func (s *PaymentService) HandleNotification(ctx context.Context, n *models.GatewayNotification) error {
	log := logging.FromContext(ctx, s.logger)

	if n == nil || n.Type != notificationTypePayment {
		s.metrics.GatewayNotification("ignored")
		return nil
	}

	paymentID := strings.TrimSpace(n.Data.ID.String())
	ctx, span := s.tracer.Start(ctx, "PaymentService.HandleNotification",
		trace.WithAttributes(attribute.String("payment.id", paymentID)))
	defer span.End()

	fail := func(stage string, orderID int64, err error) error {
		span.RecordError(err)
		span.SetStatus(codes.Error, stage)
		s.metrics.GatewayNotification("failed")
		gerr := &apperrors.GatewayNotificationError{PaymentID: paymentID, OrderID: orderID, Stage: stage, Err: err}
		log.Warn("Gateway notification not applied", logging.Fields{
			"payment_id": paymentID,
			"order_id":   orderID,
			"stage":      stage,
			"error":      err.Error(),
		})
		return gerr
	}

	if paymentID == "" {
		return fail("parse", 0, errors.New("notification carries no payment id"))
	}

	payment, err := s.gateway.GetPayment(ctx, paymentID)
	if err != nil {
		return fail("fetch", 0, err)
	}

	orderID, err := strconv.ParseInt(strings.TrimSpace(payment.ExternalReference), 10, 64)
	if err != nil || orderID <= 0 {
		return fail("reference", 0, fmt.Errorf("invalid external reference %q", payment.ExternalReference))
	}

	next, err := MapGatewayStatus(payment.Status)
	if err != nil {
		return fail("map", orderID, err)
	}

	if s.dedupeEnabled() {
		seen, err := s.deduper.Seen(ctx, paymentID, string(next))
		if err != nil {
			log.Warn("Notification dedupe lookup failed", logging.Fields{"error": err.Error()})
		} else if seen {
			s.metrics.GatewayNotification("duplicate")
			log.Debug("Duplicate gateway notification skipped", logging.Fields{
				"payment_id": paymentID,
				"status":     next,
			})
			return nil
		}
	}

	_, change, err := s.ledger.ApplyPaymentStatus(ctx, orderID, next)
	if err != nil {
		return fail("apply", orderID, err)
	}

	if s.dedupeEnabled() {
		if err := s.deduper.Mark(ctx, paymentID, string(next), s.config.Gateway.DedupeTTL); err != nil {
			log.Warn("Failed to remember gateway notification", logging.Fields{"error": err.Error()})
		}
	}

	outcome := "applied"
	if !change.Changed() {
		outcome = "unchanged"
	}
	s.metrics.GatewayNotification(outcome)
	log.Info("Gateway notification reconciled", logging.Fields{
		"payment_id":     paymentID,
		"order_id":       orderID,
		"gateway_status": payment.Status,
		"payment_status": next,
		"outcome":        outcome,
	})
	return nil
}

func (s *PaymentService) dedupeEnabled() bool {
	return s.deduper != nil && s.config.Features.EnableNotificationDedupe
}

// MapGatewayStatus folds MercadoPago payment statuses onto the payment axis.
func MapGatewayStatus(status string) (models.PaymentStatus, error) {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "approved":
		return models.PaymentApproved, nil
	case "pending", "in_process", "authorized", "in_mediation":
		return models.PaymentPending, nil
	case "rejected", "cancelled":
		return models.PaymentRejected, nil
	case "refunded", "charged_back":
		return models.PaymentRefunded, nil
	}
	return "", &apperrors.InvalidStatusError{Field: "gateway_status", Value: status}
}
