package repository

import (
	"context"
	"fmt"
	"sort"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/apperrors"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/models"
)

// GormProductRepository reads products and applies conditional stock
// decrements.
type GormProductRepository struct {
	db     *gorm.DB
	logger *logging.Logger
}

func NewGormProductRepository(db *gorm.DB, logger *logging.Logger) *GormProductRepository {
	return &GormProductRepository{db: db, logger: logger}
}

func (r *GormProductRepository) GetByID(ctx context.Context, id int64) (*models.Product, error) {
	var p models.Product
	if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, notFound(err, apperrors.ErrProductNotFound)
	}
	return &p, nil
}

// GetByIDs returns the products that exist, keyed by id. Missing ids are
// simply absent from the map.
func (r *GormProductRepository) GetByIDs(ctx context.Context, ids []int64) (map[int64]*models.Product, error) {
	out := make(map[int64]*models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var products []models.Product
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&products).Error; err != nil {
		return nil, err
	}
	for i := range products {
		out[products[i].ID] = &products[i]
	}
	return out, nil
}

// DecrementStock removes quantity units unless that would take stock below
// zero, in which case InsufficientStockError is returned. Checkout does not
// call it; CreateFromCart uses decrementStock inside the ledger transaction.
// It serves stock adjustments outside checkout and tests.
func (r *GormProductRepository) DecrementStock(ctx context.Context, id, quantity int64) error {
	err := decrementStock(r.db.WithContext(ctx), id, quantity)
	if apperrors.IsInsufficientStock(err) {
		r.logger.Warn("Stock decrement refused", logging.Fields{
			"product_id": id,
			"quantity":   quantity,
		})
	}
	return err
}

// lockProducts takes row locks in ascending id order so concurrent
// checkouts over overlapping products cannot deadlock each other.
func lockProducts(tx *gorm.DB, ids []int64) (map[int64]*models.Product, error) {
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var products []models.Product
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", sorted).
		Order("id").
		Find(&products).Error
	if err != nil {
		return nil, err
	}

	out := make(map[int64]*models.Product, len(products))
	for i := range products {
		out[products[i].ID] = &products[i]
	}
	return out, nil
}

func decrementStock(tx *gorm.DB, id, quantity int64) error {
	if quantity <= 0 {
		return apperrors.NewValidationError("quantity", "must be positive")
	}

	res := tx.Model(&models.Product{}).
		Where("id = ? AND stock >= ?", id, quantity).
		UpdateColumn("stock", gorm.Expr("stock - ?", quantity))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var p models.Product
	if err := tx.Select("id", "name", "stock").First(&p, id).Error; err != nil {
		return notFound(err, fmt.Errorf("%w: %d", apperrors.ErrProductNotFound, id))
	}
	return &apperrors.InsufficientStockError{
		ProductID:   id,
		ProductName: p.Name,
		Requested:   quantity,
		Available:   p.Stock,
	}
}
