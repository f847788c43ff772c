package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/apperrors"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/config"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/models"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/repository"
)

func newResolver(h *harness, strict bool) *CartResolver {
	logger := logging.NewNop()
	return NewCartResolver(
		repository.NewGormProductRepository(h.db, logger),
		repository.NewGormCartRepository(h.db, logger),
		strict,
		logger,
	)
}

func TestResolve_GuestMergesDuplicates(t *testing.T) {
	h := newHarness(t)
	p := h.product(t, "mate", 1250, 4)
	r := newResolver(h, false)

	cart, err := r.Resolve(context.Background(), CartSource{GuestItems: []models.GuestItem{item(p.ID, 2), item(p.ID, 2)}})
	require.NoError(t, err)
	require.Len(t, cart.Lines, 1)
	assert.Equal(t, int64(4), cart.Lines[0].Quantity)
	assert.Equal(t, int64(5000), cart.Total)
	assert.False(t, cart.Persisted)

	_, err = r.Resolve(context.Background(), CartSource{GuestItems: []models.GuestItem{item(p.ID, 3), item(p.ID, 2)}})
	assert.True(t, apperrors.IsInsufficientStock(err))
}

func TestResolve_GuestAcceptsBrowserCartIDs(t *testing.T) {
	h := newHarness(t)
	p := h.product(t, "mate", 1250, 4)
	r := newResolver(h, false)

	items := []models.GuestItem{
		{ID: json.RawMessage(`"` + jsonInt(p.ID) + `"`), Quantity: 1},
		{ID: json.RawMessage(`"temp-1712"`), Quantity: 1},
	}
	cart, err := r.Resolve(context.Background(), CartSource{GuestItems: items})
	require.NoError(t, err)
	require.Len(t, cart.Lines, 1)
	assert.Equal(t, p.ID, cart.Lines[0].ProductID)
}

func TestResolve_UnavailableProductsPolicy(t *testing.T) {
	h := newHarness(t)
	live := h.product(t, "live", 1000, 5)
	gone := h.product(t, "gone", 1000, 5)
	require.NoError(t, h.db.Model(&models.Product{}).Where("id = ?", gone.ID).Update("active", false).Error)

	items := []models.GuestItem{item(live.ID, 1), item(gone.ID, 1), item(98765, 1)}

	cart, err := newResolver(h, false).Resolve(context.Background(), CartSource{GuestItems: items})
	require.NoError(t, err)
	require.Len(t, cart.Lines, 1)
	assert.Equal(t, live.ID, cart.Lines[0].ProductID)

	_, err = newResolver(h, true).Resolve(context.Background(), CartSource{GuestItems: items})
	assert.ErrorIs(t, err, apperrors.ErrInactiveProduct)

	_, err = newResolver(h, true).Resolve(context.Background(), CartSource{GuestItems: []models.GuestItem{item(98765, 1)}})
	assert.ErrorIs(t, err, apperrors.ErrProductNotFound)

	_, err = newResolver(h, false).Resolve(context.Background(), CartSource{GuestItems: []models.GuestItem{item(gone.ID, 1)}})
	assert.ErrorIs(t, err, apperrors.ErrEmptyCart)
}

func TestResolve_PersistedCartUsesLivePrices(t *testing.T) {
	h := newHarness(t)
	u := h.user(t, "Ana", "ana@example.com")
	p := h.product(t, "mate", 1250, 5)
	h.addToCart(t, u.ID, p.ID, 2)
	require.NoError(t, h.db.Model(&models.Product{}).Where("id = ?", p.ID).Update("price", 1500).Error)

	uid := u.ID
	cart, err := newResolver(h, false).Resolve(context.Background(), CartSource{
		UserID:     &uid,
		GuestItems: []models.GuestItem{item(p.ID, 5)},
	})
	require.NoError(t, err)

	assert.True(t, cart.Persisted)
	require.Len(t, cart.Lines, 1)
	assert.Equal(t, int64(2), cart.Lines[0].Quantity)
	assert.Equal(t, int64(1500), cart.Lines[0].UnitPrice)
	assert.Equal(t, int64(3000), cart.Total)
}

func TestStrictGuestCartFlag(t *testing.T) {
	h := newHarness(t, func(c *config.Config) { c.Features.StrictGuestCart = true })
	_, err := h.svc.CreateOrder(context.Background(), nil, guestRequest("guest@example.com", item(4242, 1)))
	assert.ErrorIs(t, err, apperrors.ErrProductNotFound)
}

func jsonInt(v int64) string {
	b, _ := json.Marshal(v)
	return string(b)
}
