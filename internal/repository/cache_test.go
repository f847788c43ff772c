package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/models"
)

func TestMemoryOrderCache_RoundTrip(t *testing.T) {
	c := NewMemoryOrderCache(time.Minute)
	ctx := context.Background()
	uid := int64(3)

	miss, err := c.Get(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, miss)

	order := &models.Order{ID: 1, UserID: &uid, Total: 4500, Status: models.FulfillmentPending,
		Lines: []models.OrderLine{{ProductID: 9, Quantity: 1, Price: 4500, Name: "fan"}}}
	require.NoError(t, c.Set(ctx, order))

	got, err := c.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(4500), got.Total)
	assert.Equal(t, "fan", got.Lines[0].Name)

	require.NoError(t, c.SetByUserID(ctx, uid, []*models.Order{order}))
	list, err := c.GetByUserID(ctx, uid)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, c.InvalidateByUserID(ctx, uid))
	list, err = c.GetByUserID(ctx, uid)
	require.NoError(t, err)
	assert.Nil(t, list)

	require.NoError(t, c.Delete(ctx, 1))
	got, err = c.Get(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryOrderCache_NotificationDedupeExpires(t *testing.T) {
	c := NewMemoryOrderCache(time.Minute)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	seen, err := c.Seen(ctx, "pay-1", "approved")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, c.Mark(ctx, "pay-1", "approved", 24*time.Hour))

	seen, _ = c.Seen(ctx, "pay-1", "approved")
	assert.True(t, seen)
	seen, _ = c.Seen(ctx, "pay-1", "refunded")
	assert.False(t, seen)

	now = now.Add(25 * time.Hour)
	seen, _ = c.Seen(ctx, "pay-1", "approved")
	assert.False(t, seen)
}

func TestRedisOrderCache_UnreachableServerReturnsErrors(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	c := NewRedisOrderCacheWithClient(client, time.Minute)
	t.Cleanup(func() { _ = c.Close() })
	ctx := context.Background()

	_, err := c.Get(ctx, 1)
	assert.Error(t, err)
	assert.Error(t, c.Set(ctx, &models.Order{ID: 1}))
	_, err = c.Seen(ctx, "pay-1", "approved")
	assert.Error(t, err)
}

func TestRedisOrderCache_Integration(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("Integration test - set REDIS_TEST_ADDR to run")
	}

	c := NewRedisOrderCacheWithClient(redis.NewClient(&redis.Options{Addr: addr}), time.Minute)
	t.Cleanup(func() { _ = c.Close() })
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, &models.Order{ID: 77, Total: 100}))
	got, err := c.Get(ctx, 77)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(100), got.Total)

	require.NoError(t, c.Mark(ctx, "pay-77", "approved", time.Minute))
	seen, err := c.Seen(ctx, "pay-77", "approved")
	require.NoError(t, err)
	assert.True(t, seen)
}
