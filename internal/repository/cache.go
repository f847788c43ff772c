package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/config"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/models"
)

const (
	orderKeyPrefix        = "order:"
	userOrdersPrefix      = "user_orders:"
	gatewayNotificationNS = "gateway_notification:"
	defaultCacheTTL       = 5 * time.Minute
)

// RedisOrderCache implements OrderCache and NotificationDeduper using Redis.
type RedisOrderCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

// NewRedisOrderCache creates a new Redis-based order cache.
func NewRedisOrderCache(cfg config.RedisConfig) *RedisOrderCache {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewRedisOrderCacheWithClient(client, cfg.TTL)
}

func NewRedisOrderCacheWithClient(client *redis.Client, ttl time.Duration) *RedisOrderCache {
	if ttl == 0 {
		ttl = defaultCacheTTL
	}
	return &RedisOrderCache{
		client: client,
		ttl:    ttl,
		logger: logging.NewLogger("order-cache"),
	}
}

func (c *RedisOrderCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisOrderCache) Close() error {
	return c.client.Close()
}

// Get retrieves an order from cache.
func (c *RedisOrderCache) Get(ctx context.Context, id int64) (*models.Order, error) {
	data, err := c.client.Get(ctx, orderKey(id)).Bytes()
	if err == redis.Nil {
		c.logger.Debug("Cache miss", logging.Fields{"order_id": id})
		return nil, nil
	}
	if err != nil {
		c.logger.Error("Cache get error", logging.Fields{
			"order_id": id,
			"error":    err.Error(),
		})
		return nil, err
	}

	var order models.Order
	if err := json.Unmarshal(data, &order); err != nil {
		return nil, err
	}

	c.logger.Debug("Cache hit", logging.Fields{"order_id": id})
	return &order, nil
}

// Set stores an order in cache.
func (c *RedisOrderCache) Set(ctx context.Context, order *models.Order) error {
	data, err := json.Marshal(order)
	if err != nil {
		return err
	}

	if err := c.client.Set(ctx, orderKey(order.ID), data, c.ttl).Err(); err != nil {
		c.logger.Error("Cache set error", logging.Fields{
			"order_id": order.ID,
			"error":    err.Error(),
		})
		return err
	}
	return nil
}

// Delete removes an order from cache.
func (c *RedisOrderCache) Delete(ctx context.Context, id int64) error {
	if err := c.client.Del(ctx, orderKey(id)).Err(); err != nil {
		c.logger.Error("Cache delete error", logging.Fields{
			"order_id": id,
			"error":    err.Error(),
		})
		return err
	}
	return nil
}

// GetByUserID retrieves cached orders for a user.
func (c *RedisOrderCache) GetByUserID(ctx context.Context, userID int64) ([]*models.Order, error) {
	data, err := c.client.Get(ctx, userOrdersKey(userID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var orders []*models.Order
	if err := json.Unmarshal(data, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// SetByUserID caches orders for a user.
func (c *RedisOrderCache) SetByUserID(ctx context.Context, userID int64, orders []*models.Order) error {
	data, err := json.Marshal(orders)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, userOrdersKey(userID), data, c.ttl).Err()
}

// InvalidateByUserID removes cached orders for a user.
func (c *RedisOrderCache) InvalidateByUserID(ctx context.Context, userID int64) error {
	return c.client.Del(ctx, userOrdersKey(userID)).Err()
}

// Seen reports whether the (payment, status) pair was already applied.
func (c *RedisOrderCache) Seen(ctx context.Context, paymentID, status string) (bool, error) {
	n, err := c.client.Exists(ctx, notificationKey(paymentID, status)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Mark records an applied (payment, status) pair for ttl.
func (c *RedisOrderCache) Mark(ctx context.Context, paymentID, status string, ttl time.Duration) error {
	return c.client.Set(ctx, notificationKey(paymentID, status), time.Now().UTC().Format(time.RFC3339), ttl).Err()
}

// MemoryOrderCache is the in-process fallback used when Redis is disabled
// and in tests.
type MemoryOrderCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

func NewMemoryOrderCache(ttl time.Duration) *MemoryOrderCache {
	if ttl == 0 {
		ttl = defaultCacheTTL
	}
	logging.Infof("Using in-memory order cache (ttl %s)", ttl)
	return &MemoryOrderCache{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *MemoryOrderCache) Get(_ context.Context, id int64) (*models.Order, error) {
	data, ok := c.load(orderKey(id))
	if !ok {
		return nil, nil
	}
	var order models.Order
	if err := json.Unmarshal(data, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *MemoryOrderCache) Set(_ context.Context, order *models.Order) error {
	data, err := json.Marshal(order)
	if err != nil {
		return err
	}
	c.store(orderKey(order.ID), data, c.ttl)
	return nil
}

func (c *MemoryOrderCache) Delete(_ context.Context, id int64) error {
	c.remove(orderKey(id))
	return nil
}

func (c *MemoryOrderCache) GetByUserID(_ context.Context, userID int64) ([]*models.Order, error) {
	data, ok := c.load(userOrdersKey(userID))
	if !ok {
		return nil, nil
	}
	var orders []*models.Order
	if err := json.Unmarshal(data, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (c *MemoryOrderCache) SetByUserID(_ context.Context, userID int64, orders []*models.Order) error {
	data, err := json.Marshal(orders)
	if err != nil {
		return err
	}
	c.store(userOrdersKey(userID), data, c.ttl)
	return nil
}

func (c *MemoryOrderCache) InvalidateByUserID(_ context.Context, userID int64) error {
	c.remove(userOrdersKey(userID))
	return nil
}

func (c *MemoryOrderCache) Seen(_ context.Context, paymentID, status string) (bool, error) {
	_, ok := c.load(notificationKey(paymentID, status))
	return ok, nil
}

func (c *MemoryOrderCache) Mark(_ context.Context, paymentID, status string, ttl time.Duration) error {
	c.store(notificationKey(paymentID, status), []byte("1"), ttl)
	return nil
}

func (c *MemoryOrderCache) load(key string) ([]byte, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if !e.expiresAt.IsZero() && !c.now().Before(e.expiresAt) {
		c.remove(key)
		return nil, false
	}
	return e.data, true
}

func (c *MemoryOrderCache) store(key string, data []byte, ttl time.Duration) {
	e := memoryEntry{data: data}
	if ttl > 0 {
		e.expiresAt = c.now().Add(ttl)
	}
	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()
}

func (c *MemoryOrderCache) remove(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

func orderKey(id int64) string {
	return orderKeyPrefix + strconv.FormatInt(id, 10)
}

func userOrdersKey(userID int64) string {
	return userOrdersPrefix + strconv.FormatInt(userID, 10)
}

func notificationKey(paymentID, status string) string {
	return gatewayNotificationNS + paymentID + ":" + status
}
