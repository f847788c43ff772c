package service

import (
	"context"
	"fmt"

	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/apperrors"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/models"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/repository"
)

// CartSource names where checkout items come from. A non-nil UserID selects
// the persisted cart and GuestItems is ignored.
type CartSource struct {
	UserID     *int64
	GuestItems []models.GuestItem
}

func (s CartSource) kind() string {
	if s.UserID != nil {
		return "persisted"
	}
	return "guest"
}

// CartResolver prices a cart from the live catalog. Client-supplied prices
// and names are never used.
type CartResolver struct {
	products repository.ProductRepository
	carts    repository.CartRepository
	strict   bool
	logger   *logging.Logger
}

// NewCartResolver creates a resolver. With strict set, unknown or inactive
// products fail the checkout instead of being dropped.
func NewCartResolver(products repository.ProductRepository, carts repository.CartRepository, strict bool, logger *logging.Logger) *CartResolver {
	return &CartResolver{
		products: products,
		carts:    carts,
		strict:   strict,
		logger:   logger,
	}
}

// Resolve returns the priced lines. Lines are checked against stock in
// order and the first shortfall is reported.
func (r *CartResolver) Resolve(ctx context.Context, src CartSource) (*models.ResolvedCart, error) {
	var (
		cart *models.ResolvedCart
		err  error
	)
	if src.UserID != nil {
		cart, err = r.resolvePersisted(ctx, *src.UserID)
	} else {
		cart, err = r.resolveGuest(ctx, src.GuestItems)
	}
	if err != nil {
		return nil, err
	}

	if len(cart.Lines) == 0 {
		return nil, apperrors.ErrEmptyCart
	}
	for _, l := range cart.Lines {
		if l.Quantity > l.AvailableStock {
			return nil, &apperrors.InsufficientStockError{
				ProductID:   l.ProductID,
				ProductName: l.Name,
				Requested:   l.Quantity,
				Available:   l.AvailableStock,
			}
		}
		cart.Total += l.Extension()
	}
	return cart, nil
}

func (r *CartResolver) resolvePersisted(ctx context.Context, userID int64) (*models.ResolvedCart, error) {
	items, err := r.carts.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}

	cart := &models.ResolvedCart{UserID: &userID, Persisted: true}
	for _, it := range items {
		if it.Quantity <= 0 {
			continue
		}
		line, ok, err := r.line(it.ProductID, it.Product, it.Quantity)
		if err != nil {
			return nil, err
		}
		if ok {
			cart.Lines = append(cart.Lines, line)
		}
	}
	return cart, nil
}

func (r *CartResolver) resolveGuest(ctx context.Context, items []models.GuestItem) (*models.ResolvedCart, error) {
	var (
		order    []int64
		quantity = make(map[int64]int64, len(items))
	)
	for _, it := range items {
		if it.Quantity <= 0 {
			return nil, apperrors.NewValidationError("quantity", "must be positive")
		}
		id := it.ProductRef()
		if id == 0 {
			if r.strict {
				return nil, fmt.Errorf("%w: %s", apperrors.ErrProductNotFound, string(it.ID))
			}
			r.logger.Debug("Dropping guest item without product reference", logging.Fields{
				"id": string(it.ID),
			})
			continue
		}
		if _, seen := quantity[id]; !seen {
			order = append(order, id)
		}
		quantity[id] += it.Quantity
	}

	products, err := r.products.GetByIDs(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}

	cart := &models.ResolvedCart{}
	for _, id := range order {
		line, ok, err := r.line(id, products[id], quantity[id])
		if err != nil {
			return nil, err
		}
		if ok {
			cart.Lines = append(cart.Lines, line)
		}
	}
	return cart, nil
}

// line prices one product. ok is false when a missing or inactive product
// was dropped.
func (r *CartResolver) line(id int64, p *models.Product, quantity int64) (models.ResolvedLine, bool, error) {
	switch {
	case p == nil:
		if r.strict {
			return models.ResolvedLine{}, false, fmt.Errorf("%w: %d", apperrors.ErrProductNotFound, id)
		}
		r.logger.Info("Dropping unknown product from cart", logging.Fields{"product_id": id})
		return models.ResolvedLine{}, false, nil
	case !p.Active:
		if r.strict {
			return models.ResolvedLine{}, false, fmt.Errorf("%w: %s", apperrors.ErrInactiveProduct, p.Name)
		}
		r.logger.Info("Dropping inactive product from cart", logging.Fields{"product_id": id})
		return models.ResolvedLine{}, false, nil
	}

	return models.ResolvedLine{
		ProductID:      p.ID,
		Name:           p.Name,
		ImageURL:       p.ImageURL,
		Quantity:       quantity,
		UnitPrice:      p.Price,
		AvailableStock: p.Stock,
	}, true, nil
}
