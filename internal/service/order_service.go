package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/apperrors"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/clients"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/config"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/events"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/metrics"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/models"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/repository"
)

const tracerName = "github.com/tm-acme-shop/acme-shop-storefront-orders/internal/service"

const (
	defaultSalesDays   = 7
	defaultTopProducts = 5
)

// OrderService handles order business logic.
type OrderService struct {
	orders    repository.OrderRepository
	stats     repository.StatsRepository
	users     repository.UserRepository
	carts     repository.CartRepository
	resolver  *CartResolver
	cache     repository.OrderCache
	publisher events.OrderEventPublisher
	notifier  clients.NotificationSender
	metrics   *metrics.Metrics
	config    *config.Config
	tracer    trace.Tracer
	logger    *logging.Logger
	now       func() time.Time
}

// NewOrderService creates a new order service. cache, publisher and
// notifier may be nil; the matching side channel is then skipped.
func NewOrderService(
	orders repository.OrderRepository,
	stats repository.StatsRepository,
	users repository.UserRepository,
	carts repository.CartRepository,
	resolver *CartResolver,
	cache repository.OrderCache,
	publisher events.OrderEventPublisher,
	notifier clients.NotificationSender,
	m *metrics.Metrics,
	cfg *config.Config,
) *OrderService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &OrderService{
		orders:    orders,
		stats:     stats,
		users:     users,
		carts:     carts,
		resolver:  resolver,
		cache:     cache,
		publisher: publisher,
		notifier:  notifier,
		metrics:   m,
		config:    cfg,
		tracer:    otel.Tracer(tracerName),
		logger:    logging.NewLogger("order-service"),
		now:       time.Now,
	}
}

// CreateOrder checks out the caller's persisted cart, or the guest items
// when principal is nil.
func (s *OrderService) CreateOrder(ctx context.Context, principal *models.Principal, req *models.CreateOrderRequest) (*models.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.CreateOrder")
	defer span.End()
	log := logging.FromContext(ctx, s.logger)

	src := CartSource{GuestItems: req.Items}
	if principal != nil {
		uid := principal.UserID
		src.UserID = &uid
	}
	span.SetAttributes(attribute.String("cart.source", src.kind()))

	order, err := s.createOrder(ctx, principal, src, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create order failed")
		s.metrics.OrderCreateFailed(failureReason(err))
		log.Warn("Order rejected", logging.Fields{
			"source": src.kind(),
			"error":  err.Error(),
		})
		return nil, err
	}

	span.SetAttributes(attribute.Int64("order.id", order.ID), attribute.Int64("order.total", order.Total))
	s.metrics.OrderCreated(src.kind(), string(order.PaymentMethod))

	s.cacheOrder(ctx, order)
	if s.config.Features.EnableOrderEvents {
		if err := s.publisher.PublishOrderCreated(ctx, order); err != nil {
			log.Error("Failed to publish order created event", logging.Fields{
				"order_id": order.ID,
				"error":    err.Error(),
			})
		}
	}

	go s.sendOrderConfirmation(s.detached(ctx), order)

	log.Info("Order created successfully", logging.Fields{
		"order_id":       order.ID,
		"total":          order.Total,
		"payment_method": order.PaymentMethod,
	})
	return order, nil
}

func (s *OrderService) createOrder(ctx context.Context, principal *models.Principal, src CartSource, req *models.CreateOrderRequest) (*models.Order, error) {
	method, err := ValidateCreateOrderRequest(req, principal == nil)
	if err != nil {
		return nil, err
	}

	shipping := req.Shipping()
	if principal != nil {
		user, err := s.users.GetByID(ctx, principal.UserID)
		switch {
		case err == nil:
			shipping.FillBlanks(user)
		case errors.Is(err, repository.ErrUserNotFound):
			return nil, apperrors.ErrUnauthorized
		default:
			return nil, fmt.Errorf("load user: %w", err)
		}
		if shipping.Email == "" {
			shipping.Email = principal.Email
		}
	}
	if err := ValidateShipping(shipping); err != nil {
		return nil, err
	}

	cart, err := s.resolver.Resolve(ctx, src)
	if err != nil {
		return nil, err
	}

	draft := &models.Order{
		PaymentMethod:   method,
		ShippingName:    shipping.Name,
		ShippingAddress: shipping.Address,
		ShippingCity:    shipping.City,
		ShippingPhone:   shipping.Phone,
		ShippingEmail:   shipping.Email,
		Notes:           req.Notes,
	}
	return s.orders.CreateFromCart(ctx, cart, draft)
}

// GetOrder returns an order the principal may see. Customers only see their
// own orders; anything else is reported as not found.
func (s *OrderService) GetOrder(ctx context.Context, principal *models.Principal, id int64) (*models.Order, error) {
	order, err := s.loadOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if principal.IsAdmin() {
		return order, nil
	}
	if principal == nil || !order.OwnedBy(principal.UserID) {
		return nil, apperrors.ErrOrderNotFound
	}
	return order, nil
}

func (s *OrderService) loadOrder(ctx context.Context, id int64) (*models.Order, error) {
	if s.cachingEnabled() {
		if order, err := s.cache.Get(ctx, id); err == nil && order != nil {
			return order, nil
		}
	}

	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.cachingEnabled() {
		_ = s.cache.Set(ctx, order)
	}
	return order, nil
}

// ListUserOrders returns the caller's orders, newest first.
func (s *OrderService) ListUserOrders(ctx context.Context, userID int64) ([]*models.Order, error) {
	if s.cachingEnabled() {
		if orders, err := s.cache.GetByUserID(ctx, userID); err == nil && orders != nil {
			return orders, nil
		}
	}

	orders, err := s.orders.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if s.cachingEnabled() {
		_ = s.cache.SetByUserID(ctx, userID, orders)
	}
	return orders, nil
}

// ListAllOrders is the back-office listing.
func (s *OrderService) ListAllOrders(ctx context.Context) ([]*models.Order, error) {
	return s.orders.ListAll(ctx)
}

// TrackOrder is the public lookup; the e-mail must match exactly.
func (s *OrderService) TrackOrder(ctx context.Context, id int64, email string) (*models.Order, error) {
	email, err := ValidateTrackingEmail(email)
	if err != nil {
		return nil, err
	}
	return s.orders.FindForTracking(ctx, id, email)
}

// UpdateOrderStatus applies an admin fulfillment move.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, id int64, status string) (*models.Order, error) {
	next, err := models.ParseFulfillmentStatus(status)
	if err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "OrderService.UpdateOrderStatus",
		trace.WithAttributes(attribute.Int64("order.id", id), attribute.String("order.status", string(next))))
	defer span.End()

	order, change, err := s.orders.ApplyFulfillmentStatus(ctx, id, next)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	s.afterStatusChange(ctx, order, change)
	return order, nil
}

// UpdatePaymentStatus applies an admin payment move.
func (s *OrderService) UpdatePaymentStatus(ctx context.Context, id int64, status string) (*models.Order, error) {
	next, err := models.ParsePaymentStatus(status)
	if err != nil {
		return nil, err
	}
	order, _, err := s.ApplyPaymentStatus(ctx, id, next)
	return order, err
}

// RecordPaymentReference stores the gateway preference id and drops the
// cached copies of the order.
func (s *OrderService) RecordPaymentReference(ctx context.Context, order *models.Order, reference string) error {
	if err := s.orders.SetPaymentReference(ctx, order.ID, reference); err != nil {
		return err
	}
	s.invalidate(ctx, order)
	return nil
}

// ApplyPaymentStatus is shared by admin overrides and gateway
// reconciliation. Re-applying the current status is a no-op.
func (s *OrderService) ApplyPaymentStatus(ctx context.Context, id int64, next models.PaymentStatus) (*models.Order, models.StatusChange, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.ApplyPaymentStatus",
		trace.WithAttributes(attribute.Int64("order.id", id), attribute.String("order.payment_status", string(next))))
	defer span.End()

	order, change, err := s.orders.ApplyPaymentStatus(ctx, id, next)
	if err != nil {
		span.RecordError(err)
		return nil, change, err
	}
	s.afterStatusChange(ctx, order, change)
	return order, change, nil
}

func (s *OrderService) afterStatusChange(ctx context.Context, order *models.Order, change models.StatusChange) {
	if !change.Changed() {
		return
	}
	log := logging.FromContext(ctx, s.logger)

	if change.FulfillmentChanged {
		s.metrics.StatusTransition("fulfillment", string(order.Status))
	}
	if change.PaymentChanged {
		s.metrics.StatusTransition("payment", string(order.PaymentStatus))
	}

	s.invalidate(ctx, order)

	if s.config.Features.EnableOrderEvents {
		if err := s.publisher.PublishStatusChanged(ctx, order, change); err != nil {
			log.Error("Failed to publish status change event", logging.Fields{
				"order_id": order.ID,
				"error":    err.Error(),
			})
		}
	}

	if change.PaymentChanged && order.PaymentStatus == models.PaymentApproved {
		go s.sendPaymentApproved(s.detached(ctx), order)
	}
}

// Cart returns the caller's persisted cart.
func (s *OrderService) Cart(ctx context.Context, userID int64) (*models.CartView, error) {
	items, err := s.carts.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return models.NewCartView(items), nil
}

// AddToCart merges quantity into the caller's cart.
func (s *OrderService) AddToCart(ctx context.Context, userID int64, req *models.AddCartItemRequest) (*models.CartView, error) {
	if req.ProductID <= 0 {
		return nil, apperrors.NewValidationError("product_id", "is required")
	}
	quantity := req.Quantity
	if quantity == 0 {
		quantity = 1
	}
	if quantity < 0 {
		return nil, apperrors.NewValidationError("quantity", "must be positive")
	}
	if err := s.carts.Add(ctx, userID, req.ProductID, quantity); err != nil {
		return nil, err
	}
	return s.Cart(ctx, userID)
}

// UpdateCartItem sets a line's quantity; zero or less removes it.
func (s *OrderService) UpdateCartItem(ctx context.Context, userID, itemID, quantity int64) (*models.CartView, error) {
	if err := s.carts.SetQuantity(ctx, userID, itemID, quantity); err != nil {
		return nil, err
	}
	return s.Cart(ctx, userID)
}

func (s *OrderService) RemoveCartItem(ctx context.Context, userID, itemID int64) (*models.CartView, error) {
	if err := s.carts.Remove(ctx, userID, itemID); err != nil {
		return nil, err
	}
	return s.Cart(ctx, userID)
}

func (s *OrderService) ClearCart(ctx context.Context, userID int64) (*models.CartView, error) {
	if err := s.carts.Clear(ctx, userID); err != nil {
		return nil, err
	}
	return s.Cart(ctx, userID)
}

// Stats is the admin dashboard summary.
func (s *OrderService) Stats(ctx context.Context) (*models.AdminStats, error) {
	return s.stats.Stats(ctx)
}

// SalesChart returns one entry per UTC day for the last days days,
// including days without sales.
func (s *OrderService) SalesChart(ctx context.Context, days int) ([]models.DailySales, error) {
	if days <= 0 {
		days = defaultSalesDays
	}
	today := s.now().UTC().Truncate(24 * time.Hour)
	since := today.AddDate(0, 0, -(days - 1))

	sales, err := s.stats.SalesSince(ctx, since)
	if err != nil {
		return nil, err
	}
	byDay := make(map[string]int64, len(sales))
	for _, d := range sales {
		byDay[d.Date] = d.Total
	}

	out := make([]models.DailySales, 0, days)
	for day := since; !day.After(today); day = day.AddDate(0, 0, 1) {
		key := day.Format("2006-01-02")
		out = append(out, models.DailySales{Date: key, Total: byDay[key]})
	}
	return out, nil
}

func (s *OrderService) TopProducts(ctx context.Context, limit int) ([]models.TopProduct, error) {
	if limit <= 0 {
		limit = defaultTopProducts
	}
	return s.stats.TopProducts(ctx, limit)
}

func (s *OrderService) cachingEnabled() bool {
	return s.cache != nil && s.config.Features.EnableOrderCaching
}

func (s *OrderService) cacheOrder(ctx context.Context, order *models.Order) {
	if !s.cachingEnabled() {
		return
	}
	if err := s.cache.Set(ctx, order); err != nil {
		logging.FromContext(ctx, s.logger).Error("Failed to cache order", logging.Fields{
			"order_id": order.ID,
			"error":    err.Error(),
		})
	}
	if order.UserID != nil {
		_ = s.cache.InvalidateByUserID(ctx, *order.UserID)
	}
}

func (s *OrderService) invalidate(ctx context.Context, order *models.Order) {
	if !s.cachingEnabled() {
		return
	}
	_ = s.cache.Delete(ctx, order.ID)
	if order.UserID != nil {
		_ = s.cache.InvalidateByUserID(ctx, *order.UserID)
	}
}

// detached keeps the request logger but drops the request deadline, so
// post-commit e-mails outlive the response.
func (s *OrderService) detached(ctx context.Context) context.Context {
	return logging.IntoContext(context.WithoutCancel(ctx), logging.FromContext(ctx, s.logger))
}

func (s *OrderService) sendOrderConfirmation(ctx context.Context, order *models.Order) {
	s.sendEmail(ctx, order, clients.TemplateOrderConfirmation, fmt.Sprintf("Order #%d received", order.ID))
}

func (s *OrderService) sendPaymentApproved(ctx context.Context, order *models.Order) {
	s.sendEmail(ctx, order, clients.TemplatePaymentApproved, fmt.Sprintf("Payment approved for order #%d", order.ID))
}

func (s *OrderService) sendEmail(ctx context.Context, order *models.Order, template, subject string) {
	if s.notifier == nil || order.ShippingEmail == "" {
		return
	}
	if timeout := s.config.NotificationService.Timeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	err := s.notifier.SendEmail(ctx, &clients.EmailRequest{
		To:       order.ShippingEmail,
		Template: template,
		Subject:  subject,
		Data:     s.emailData(order),
	})
	if err != nil {
		s.metrics.CustomerNotification(template, "error")
		logging.FromContext(ctx, s.logger).Error("Failed to send customer e-mail", logging.Fields{
			"order_id": order.ID,
			"template": template,
			"error":    err.Error(),
		})
		return
	}
	s.metrics.CustomerNotification(template, "sent")
}

func (s *OrderService) emailData(order *models.Order) map[string]interface{} {
	gw := s.config.Gateway
	items := make([]map[string]interface{}, 0, len(order.Lines))
	for _, l := range order.Lines {
		items = append(items, map[string]interface{}{
			"name":     l.Name,
			"quantity": l.Quantity,
			"price":    FormatAmount(l.Price, gw.MinorUnitExponent, gw.Currency),
			"subtotal": FormatAmount(l.Extension(), gw.MinorUnitExponent, gw.Currency),
		})
	}
	return map[string]interface{}{
		"order_id":       order.ID,
		"customer_name":  order.ShippingName,
		"total":          FormatAmount(order.Total, gw.MinorUnitExponent, gw.Currency),
		"payment_method": order.PaymentMethod,
		"payment_status": order.PaymentStatus,
		"status":         order.Status,
		"items":          items,
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrEmptyCart):
		return "empty_cart"
	case apperrors.IsInsufficientStock(err):
		return "insufficient_stock"
	case errors.Is(err, apperrors.ErrProductNotFound), errors.Is(err, apperrors.ErrInactiveProduct):
		return "unavailable_product"
	case apperrors.IsValidation(err):
		return "validation"
	case errors.Is(err, apperrors.ErrUnauthorized):
		return "unauthorized"
	}
	return "internal"
}
