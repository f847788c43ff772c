package repository

import (
	"context"
	"time"

	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/models"
)

var (
	_ ProductRepository = (*GormProductRepository)(nil)
	_ UserRepository    = (*GormUserRepository)(nil)
	_ CartRepository    = (*GormCartRepository)(nil)
	_ OrderRepository   = (*GormOrderRepository)(nil)
	_ StatsRepository   = (*GormOrderRepository)(nil)

	_ OrderCache          = (*RedisOrderCache)(nil)
	_ OrderCache          = (*MemoryOrderCache)(nil)
	_ NotificationDeduper = (*RedisOrderCache)(nil)
	_ NotificationDeduper = (*MemoryOrderCache)(nil)
)

// ProductRepository is the inventory store. Stock is only mutated by the
// conditional decrement.
type ProductRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Product, error)
	GetByIDs(ctx context.Context, ids []int64) (map[int64]*models.Product, error)
	DecrementStock(ctx context.Context, id, quantity int64) error
}

type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

// CartRepository manages persisted carts of authenticated users.
type CartRepository interface {
	ListByUser(ctx context.Context, userID int64) ([]models.CartItem, error)
	Add(ctx context.Context, userID, productID, quantity int64) error
	SetQuantity(ctx context.Context, userID, itemID, quantity int64) error
	Remove(ctx context.Context, userID, itemID int64) error
	Clear(ctx context.Context, userID int64) error
}

// OrderRepository is the order ledger. Every write runs in one transaction.
type OrderRepository interface {
	CreateFromCart(ctx context.Context, cart *models.ResolvedCart, order *models.Order) (*models.Order, error)
	GetByID(ctx context.Context, id int64) (*models.Order, error)
	ListByUser(ctx context.Context, userID int64) ([]*models.Order, error)
	ListAll(ctx context.Context) ([]*models.Order, error)
	FindForTracking(ctx context.Context, id int64, email string) (*models.Order, error)
	ApplyFulfillmentStatus(ctx context.Context, id int64, next models.FulfillmentStatus) (*models.Order, models.StatusChange, error)
	ApplyPaymentStatus(ctx context.Context, id int64, next models.PaymentStatus) (*models.Order, models.StatusChange, error)
	SetPaymentReference(ctx context.Context, id int64, reference string) error
}

// StatsRepository backs the admin dashboard.
type StatsRepository interface {
	Stats(ctx context.Context) (*models.AdminStats, error)
	SalesSince(ctx context.Context, since time.Time) ([]models.DailySales, error)
	TopProducts(ctx context.Context, limit int) ([]models.TopProduct, error)
}

// OrderCache defines caching operations for orders. A miss is (nil, nil).
type OrderCache interface {
	Get(ctx context.Context, id int64) (*models.Order, error)
	Set(ctx context.Context, order *models.Order) error
	Delete(ctx context.Context, id int64) error
	GetByUserID(ctx context.Context, userID int64) ([]*models.Order, error)
	SetByUserID(ctx context.Context, userID int64, orders []*models.Order) error
	InvalidateByUserID(ctx context.Context, userID int64) error
}

// NotificationDeduper remembers gateway (payment, status) pairs that were
// already applied.
type NotificationDeduper interface {
	Seen(ctx context.Context, paymentID, status string) (bool, error)
	Mark(ctx context.Context, paymentID, status string, ttl time.Duration) error
}
