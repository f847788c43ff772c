package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/apperrors"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/models"
)

func TestGormCartRepository_AddMergesQuantity(t *testing.T) {
	db := newTestDB(t)
	carts := NewGormCartRepository(db, logging.NewNop())
	ctx := context.Background()

	u := seedUser(t, db, "Nico", "nico@example.com", models.RoleUser)
	p := seedProduct(t, db, "battery", 8000, 5, true)

	require.NoError(t, carts.Add(ctx, u.ID, p.ID, 2))
	require.NoError(t, carts.Add(ctx, u.ID, p.ID, 3))

	items, err := carts.ListByUser(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, int64(5), items[0].Quantity)
	require.NotNil(t, items[0].Product)
	assert.Equal(t, "battery", items[0].Product.Name)

	err = carts.Add(ctx, u.ID, p.ID, 1)
	var stockErr *apperrors.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, int64(6), stockErr.Requested)
}

func TestGormCartRepository_AddRejectsUnknownAndInactive(t *testing.T) {
	db := newTestDB(t)
	carts := NewGormCartRepository(db, logging.NewNop())
	ctx := context.Background()

	u := seedUser(t, db, "Eva", "eva@example.com", models.RoleUser)
	off := seedProduct(t, db, "discontinued", 1000, 5, false)

	assert.ErrorIs(t, carts.Add(ctx, u.ID, 999, 1), apperrors.ErrProductNotFound)
	assert.ErrorIs(t, carts.Add(ctx, u.ID, off.ID, 1), apperrors.ErrInactiveProduct)
}

func TestGormCartRepository_SetQuantityAndRemove(t *testing.T) {
	db := newTestDB(t)
	carts := NewGormCartRepository(db, logging.NewNop())
	ctx := context.Background()

	u := seedUser(t, db, "Leo", "leo@example.com", models.RoleUser)
	other := seedUser(t, db, "Mia", "mia@example.com", models.RoleUser)
	p := seedProduct(t, db, "fan", 15000, 4, true)
	require.NoError(t, carts.Add(ctx, u.ID, p.ID, 1))

	items, err := carts.ListByUser(ctx, u.ID)
	require.NoError(t, err)
	itemID := items[0].ID

	require.NoError(t, carts.SetQuantity(ctx, u.ID, itemID, 3))
	assert.True(t, apperrors.IsInsufficientStock(carts.SetQuantity(ctx, u.ID, itemID, 9)))
	assert.ErrorIs(t, carts.SetQuantity(ctx, other.ID, itemID, 1), apperrors.ErrCartItemNotFound)

	require.NoError(t, carts.SetQuantity(ctx, u.ID, itemID, 0))
	items, err = carts.ListByUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, items)

	assert.ErrorIs(t, carts.Remove(ctx, u.ID, itemID), apperrors.ErrCartItemNotFound)
}

func TestGormCartRepository_Clear(t *testing.T) {
	db := newTestDB(t)
	carts := NewGormCartRepository(db, logging.NewNop())
	ctx := context.Background()

	u := seedUser(t, db, "Tomi", "tomi@example.com", models.RoleUser)
	a := seedProduct(t, db, "hub", 6000, 5, true)
	b := seedProduct(t, db, "dock", 40000, 5, true)
	require.NoError(t, carts.Add(ctx, u.ID, a.ID, 1))
	require.NoError(t, carts.Add(ctx, u.ID, b.ID, 1))

	require.NoError(t, carts.Clear(ctx, u.ID))

	items, err := carts.ListByUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestGormProductRepository_DecrementStockIsConditional(t *testing.T) {
	db := newTestDB(t)
	products := NewGormProductRepository(db, logging.NewNop())
	ctx := context.Background()

	p := seedProduct(t, db, "gpu", 800000, 3, true)

	require.NoError(t, products.DecrementStock(ctx, p.ID, 2))

	err := products.DecrementStock(ctx, p.ID, 2)
	var stockErr *apperrors.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, int64(1), stockErr.Available)
	assert.Equal(t, int64(1), stockOf(t, db, p.ID))

	assert.ErrorIs(t, products.DecrementStock(ctx, 777, 1), apperrors.ErrProductNotFound)
	assert.True(t, apperrors.IsValidation(products.DecrementStock(ctx, p.ID, 0)))
}

func TestGormProductRepository_GetByIDs(t *testing.T) {
	db := newTestDB(t)
	products := NewGormProductRepository(db, logging.NewNop())
	ctx := context.Background()

	a := seedProduct(t, db, "ram", 45000, 8, true)

	found, err := products.GetByIDs(ctx, []int64{a.ID, 404})
	require.NoError(t, err)
	assert.Len(t, found, 1)
	assert.Equal(t, "ram", found[a.ID].Name)

	_, err = products.GetByID(ctx, 404)
	assert.ErrorIs(t, err, apperrors.ErrProductNotFound)
}

func TestGormUserRepository_GetByID(t *testing.T) {
	db := newTestDB(t)
	users := NewGormUserRepository(db)

	u := seedUser(t, db, "Vera", "vera@example.com", models.RoleUser)

	got, err := users.GetByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Rosario", got.City)

	_, err = users.GetByID(context.Background(), 12345)
	assert.ErrorIs(t, err, ErrUserNotFound)
}
