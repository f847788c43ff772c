package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/clients"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/config"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/events"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/metrics"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/models"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/repository"
)

type fakeGateway struct {
	mu          sync.Mutex
	preferences []*clients.PreferenceRequest
	payments    map[string]*models.GatewayPayment
	lookups     int
	prefErr     error
	fetchErr    error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{payments: make(map[string]*models.GatewayPayment)}
}

func (g *fakeGateway) CreatePreference(_ context.Context, req *clients.PreferenceRequest) (*models.PaymentPreference, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.prefErr != nil {
		return nil, g.prefErr
	}
	g.preferences = append(g.preferences, req)
	return &models.PaymentPreference{
		ID:               "pref-" + req.ExternalReference,
		InitPoint:        "https://mp.example/init/" + req.ExternalReference,
		SandboxInitPoint: "https://sandbox.mp.example/init/" + req.ExternalReference,
	}, nil
}

func (g *fakeGateway) GetPayment(_ context.Context, id string) (*models.GatewayPayment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lookups++
	if g.fetchErr != nil {
		return nil, g.fetchErr
	}
	p, ok := g.payments[id]
	if !ok {
		return nil, &clients.GatewayError{Operation: "get_payment", StatusCode: 404}
	}
	return p, nil
}

func (g *fakeGateway) setPayment(id, status, reference string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.payments[id] = &models.GatewayPayment{ID: models.FlexibleID(id), Status: status, ExternalReference: reference}
}

type harness struct {
	db        *gorm.DB
	cfg       *config.Config
	orders    *repository.GormOrderRepository
	cache     *repository.MemoryOrderCache
	publisher *events.MockEventPublisher
	notifier  *clients.MockNotificationClient
	gateway   *fakeGateway
	svc       *OrderService
	payments  *PaymentService
}

func testConfig() *config.Config {
	return &config.Config{
		Gateway: config.GatewayConfig{
			Currency:            "ARS",
			MinorUnitExponent:   2,
			StatementDescriptor: "DiazDiegokService",
			FrontendURL:         "https://shop.example.com",
			BackendURL:          "https://api.shop.example.com",
			DedupeTTL:           24 * time.Hour,
		},
		NotificationService: config.ServiceConfig{Timeout: time.Second},
		Features: config.FeatureFlags{
			EnableOrderCaching:       true,
			EnableOrderEvents:        true,
			EnableNotificationDedupe: true,
		},
	}
}

func newHarness(t *testing.T, mutate ...func(*config.Config)) *harness {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), repository.GormConfig())
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, repository.AutoMigrate(db))

	cfg := testConfig()
	for _, m := range mutate {
		m(cfg)
	}

	logger := logging.NewNop()
	m := metrics.New()
	products := repository.NewGormProductRepository(db, logger)
	carts := repository.NewGormCartRepository(db, logger)
	users := repository.NewGormUserRepository(db)
	orders := repository.NewGormOrderRepository(db, logger)

	h := &harness{
		db:        db,
		cfg:       cfg,
		orders:    orders,
		cache:     repository.NewMemoryOrderCache(time.Minute),
		publisher: events.NewMockEventPublisher(),
		notifier:  clients.NewMockNotificationClient(nil),
		gateway:   newFakeGateway(),
	}
	resolver := NewCartResolver(products, carts, cfg.Features.StrictGuestCart, logger)
	h.svc = NewOrderService(orders, orders, users, carts, resolver, h.cache, h.publisher, h.notifier, m, cfg)
	h.payments = NewPaymentService(h.gateway, orders, users, h.svc, h.cache, m, cfg)
	return h
}

func (h *harness) product(t *testing.T, name string, price, stock int64) *models.Product {
	t.Helper()
	p := &models.Product{Name: name, Description: name + " description", Price: price, Stock: stock, Active: true, ImageURL: "/img/" + name + ".png"}
	require.NoError(t, h.db.Create(p).Error)
	return p
}

func (h *harness) user(t *testing.T, name, email string) *models.User {
	t.Helper()
	u := &models.User{Name: name, Email: email, Role: models.RoleUser, Phone: "341-555-0101", Address: "Bv. Oroño 100", City: "Rosario"}
	require.NoError(t, h.db.Create(u).Error)
	return u
}

func (h *harness) stock(t *testing.T, id int64) int64 {
	t.Helper()
	var p models.Product
	require.NoError(t, h.db.First(&p, id).Error)
	return p.Stock
}

func (h *harness) addToCart(t *testing.T, userID, productID, qty int64) {
	t.Helper()
	require.NoError(t, h.db.Create(&models.CartItem{UserID: userID, ProductID: productID, Quantity: qty}).Error)
}

func guestRequest(email string, items ...models.GuestItem) *models.CreateOrderRequest {
	return &models.CreateOrderRequest{
		Items:           items,
		ShippingName:    "Guest Buyer",
		ShippingAddress: "San Martín 1234",
		ShippingCity:    "Córdoba",
		ShippingPhone:   "351-555-0199",
		ShippingEmail:   email,
	}
}

func item(productID, qty int64) models.GuestItem {
	return models.GuestItem{ProductID: productID, Quantity: qty}
}

func principalFor(u *models.User) *models.Principal {
	return &models.Principal{UserID: u.ID, Email: u.Email, Role: u.Role}
}
