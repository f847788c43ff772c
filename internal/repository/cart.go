package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/apperrors"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/models"
)

// GormCartRepository persists the carts of signed-in customers.
type GormCartRepository struct {
	db     *gorm.DB
	logger *logging.Logger
}

func NewGormCartRepository(db *gorm.DB, logger *logging.Logger) *GormCartRepository {
	return &GormCartRepository{db: db, logger: logger}
}

// ListByUser returns cart rows with their live products, oldest first.
func (r *GormCartRepository) ListByUser(ctx context.Context, userID int64) ([]models.CartItem, error) {
	var items []models.CartItem
	err := r.db.WithContext(ctx).
		Preload("Product").
		Where("user_id = ?", userID).
		Order("created_at, id").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// Add merges quantity into an existing row or creates one. The merged
// quantity must still fit the product's stock.
func (r *GormCartRepository) Add(ctx context.Context, userID, productID, quantity int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p models.Product
		if err := tx.First(&p, productID).Error; err != nil {
			return notFound(err, apperrors.ErrProductNotFound)
		}
		if !p.Active {
			return apperrors.ErrInactiveProduct
		}

		var item models.CartItem
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND product_id = ?", userID, productID).
			First(&item).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			item = models.CartItem{UserID: userID, ProductID: productID}
		case err != nil:
			return err
		}

		wanted := item.Quantity + quantity
		if wanted > p.Stock {
			return &apperrors.InsufficientStockError{
				ProductID: p.ID, ProductName: p.Name, Requested: wanted, Available: p.Stock,
			}
		}

		if item.ID == 0 {
			item.Quantity = wanted
			return tx.Omit("Product").Create(&item).Error
		}
		return tx.Model(&models.CartItem{}).Where("id = ?", item.ID).Update("quantity", wanted).Error
	})
}

// SetQuantity replaces a row's quantity; zero or less removes the row.
func (r *GormCartRepository) SetQuantity(ctx context.Context, userID, itemID, quantity int64) error {
	if quantity <= 0 {
		return r.Remove(ctx, userID, itemID)
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var item models.CartItem
		err := tx.Preload("Product").
			Where("id = ? AND user_id = ?", itemID, userID).
			First(&item).Error
		if err != nil {
			return notFound(err, apperrors.ErrCartItemNotFound)
		}
		if item.Product != nil && quantity > item.Product.Stock {
			return &apperrors.InsufficientStockError{
				ProductID:   item.ProductID,
				ProductName: item.Product.Name,
				Requested:   quantity,
				Available:   item.Product.Stock,
			}
		}
		return tx.Model(&models.CartItem{}).Where("id = ?", item.ID).Update("quantity", quantity).Error
	})
}

func (r *GormCartRepository) Remove(ctx context.Context, userID, itemID int64) error {
	res := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", itemID, userID).Delete(&models.CartItem{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrCartItemNotFound
	}
	return nil
}

func (r *GormCartRepository) Clear(ctx context.Context, userID int64) error {
	return r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.CartItem{}).Error
}
