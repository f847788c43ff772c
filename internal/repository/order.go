package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/apperrors"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/models"
)

// GormOrderRepository is the order ledger on top of gorm.
type GormOrderRepository struct {
	db     *gorm.DB
	logger *logging.Logger
}

func NewGormOrderRepository(db *gorm.DB, logger *logging.Logger) *GormOrderRepository {
	return &GormOrderRepository{db: db, logger: logger}
}

// CreateFromCart commits the order, its lines, the stock decrements and the
// cart clear as one unit. On any error nothing is written.
func (r *GormOrderRepository) CreateFromCart(ctx context.Context, cart *models.ResolvedCart, order *models.Order) (*models.Order, error) {
	if cart == nil || len(cart.Lines) == 0 {
		return nil, apperrors.ErrEmptyCart
	}

	var created *models.Order
	err := runInTx(ctx, r.db, func(tx *gorm.DB) error {
		products, err := lockProducts(tx, cart.ProductIDs())
		if err != nil {
			return err
		}

		for _, line := range cart.Lines {
			p, ok := products[line.ProductID]
			if !ok {
				return fmt.Errorf("%w: %d", apperrors.ErrProductNotFound, line.ProductID)
			}
			if !p.Active {
				return fmt.Errorf("%w: %s", apperrors.ErrInactiveProduct, p.Name)
			}
			if line.Quantity > p.Stock {
				return &apperrors.InsufficientStockError{
					ProductID:   p.ID,
					ProductName: p.Name,
					Requested:   line.Quantity,
					Available:   p.Stock,
				}
			}
		}

		o := *order
		o.ID = 0
		o.UserID = cart.UserID
		o.Status = models.FulfillmentPending
		o.PaymentStatus = models.PaymentPending
		o.PaymentID = ""
		o.Lines = make([]models.OrderLine, 0, len(cart.Lines))
		for _, line := range cart.Lines {
			o.Lines = append(o.Lines, models.OrderLine{
				ProductID: line.ProductID,
				Quantity:  line.Quantity,
				Price:     line.UnitPrice,
			})
		}
		o.CalculateTotal()

		if err := tx.Omit(clause.Associations).Create(&o).Error; err != nil {
			return err
		}

		for i := range o.Lines {
			o.Lines[i].OrderID = o.ID
		}
		if err := tx.Omit("Product").Create(&o.Lines).Error; err != nil {
			return err
		}

		for _, line := range o.Lines {
			if err := decrementStock(tx, line.ProductID, line.Quantity); err != nil {
				return err
			}
		}

		if cart.Persisted && cart.UserID != nil {
			if err := tx.Where("user_id = ?", *cart.UserID).Delete(&models.CartItem{}).Error; err != nil {
				return err
			}
		}

		for i := range o.Lines {
			if p := products[o.Lines[i].ProductID]; p != nil {
				o.Lines[i].Name = p.Name
				o.Lines[i].ImageURL = p.ImageURL
			}
		}
		created = &o
		return nil
	})
	if err != nil {
		r.logger.Warn("Order transaction rolled back", logging.Fields{
			"user_id": cart.UserID,
			"lines":   len(cart.Lines),
			"error":   err,
		})
		return nil, err
	}

	r.logger.Info("Order committed", logging.Fields{
		"order_id": created.ID,
		"total":    created.Total,
		"lines":    len(created.Lines),
	})
	return created, nil
}

func (r *GormOrderRepository) GetByID(ctx context.Context, id int64) (*models.Order, error) {
	var o models.Order
	if err := r.withLines(r.db.WithContext(ctx)).First(&o, id).Error; err != nil {
		return nil, notFound(err, apperrors.ErrOrderNotFound)
	}
	o.AnnotateLines()
	return &o, nil
}

func (r *GormOrderRepository) ListByUser(ctx context.Context, userID int64) ([]*models.Order, error) {
	var orders []*models.Order
	err := r.withLines(r.db.WithContext(ctx)).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	for _, o := range orders {
		o.AnnotateLines()
	}
	return orders, nil
}

// ListAll returns every order with its lines and the owner's name and
// e-mail for the back office.
func (r *GormOrderRepository) ListAll(ctx context.Context) ([]*models.Order, error) {
	var orders []*models.Order
	err := r.withLines(r.db.WithContext(ctx)).
		Order("created_at DESC, id DESC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}

	ownerIDs := make([]int64, 0, len(orders))
	for _, o := range orders {
		o.AnnotateLines()
		if o.UserID != nil {
			ownerIDs = append(ownerIDs, *o.UserID)
		}
	}
	if len(ownerIDs) == 0 {
		return orders, nil
	}

	var users []models.User
	if err := r.db.WithContext(ctx).Select("id", "name", "email").Where("id IN ?", ownerIDs).Find(&users).Error; err != nil {
		return nil, err
	}
	byID := make(map[int64]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	for _, o := range orders {
		if o.UserID == nil {
			continue
		}
		if u, ok := byID[*o.UserID]; ok {
			o.CustomerName = u.Name
			o.CustomerEmail = u.Email
		}
	}
	return orders, nil
}

// FindForTracking returns the order only when email matches the shipping
// e-mail or the owner's account e-mail exactly. A mismatch is reported as
// not found.
func (r *GormOrderRepository) FindForTracking(ctx context.Context, id int64, email string) (*models.Order, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, apperrors.NewValidationError("email", "is required for tracking")
	}

	var match struct{ ID int64 }
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Select("orders.id AS id").
		Joins("LEFT JOIN users ON users.id = orders.user_id").
		Where("orders.id = ? AND (orders.shipping_email = ? OR users.email = ?)", id, email, email).
		Limit(1).
		Scan(&match).Error
	if err != nil {
		return nil, err
	}
	if match.ID == 0 {
		return nil, apperrors.ErrOrderNotFound
	}
	return r.GetByID(ctx, match.ID)
}

// ApplyFulfillmentStatus locks the order row and applies an admin move.
func (r *GormOrderRepository) ApplyFulfillmentStatus(ctx context.Context, id int64, next models.FulfillmentStatus) (*models.Order, models.StatusChange, error) {
	return r.applyStatus(ctx, id, func(o *models.Order) (models.StatusChange, error) {
		return o.ApplyFulfillmentStatus(next)
	})
}

// ApplyPaymentStatus locks the order row and applies a payment move,
// including the pending-fulfillment auto-advance.
func (r *GormOrderRepository) ApplyPaymentStatus(ctx context.Context, id int64, next models.PaymentStatus) (*models.Order, models.StatusChange, error) {
	return r.applyStatus(ctx, id, func(o *models.Order) (models.StatusChange, error) {
		return o.ApplyPaymentStatus(next)
	})
}

func (r *GormOrderRepository) applyStatus(ctx context.Context, id int64, apply func(*models.Order) (models.StatusChange, error)) (*models.Order, models.StatusChange, error) {
	var change models.StatusChange
	err := runInTx(ctx, r.db, func(tx *gorm.DB) error {
		var o models.Order
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&o, id).Error
		if err != nil {
			return notFound(err, apperrors.ErrOrderNotFound)
		}

		change, err = apply(&o)
		if err != nil || !change.Changed() {
			return err
		}

		return tx.Model(&models.Order{}).Where("id = ?", o.ID).Updates(map[string]interface{}{
			"status":         o.Status,
			"payment_status": o.PaymentStatus,
			"updated_at":     time.Now().UTC(),
		}).Error
	})
	if err != nil {
		return nil, change, err
	}

	if change.Changed() {
		r.logger.Info("Order status updated", logging.Fields{
			"order_id":                id,
			"previous_status":         change.PreviousStatus,
			"previous_payment_status": change.PreviousPaymentStatus,
		})
	}

	o, err := r.GetByID(ctx, id)
	return o, change, err
}

// SetPaymentReference stores the gateway's preference id on the order.
func (r *GormOrderRepository) SetPaymentReference(ctx context.Context, id int64, reference string) error {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"payment_id": reference, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrOrderNotFound
	}
	return nil
}

// Stats counts revenue over non-cancelled orders.
func (r *GormOrderRepository) Stats(ctx context.Context) (*models.AdminStats, error) {
	db := r.db.WithContext(ctx)
	stats := &models.AdminStats{}

	var revenue struct{ Total *int64 }
	if err := db.Model(&models.Order{}).
		Select("SUM(total) AS total").
		Where("status <> ?", models.FulfillmentCancelled).
		Scan(&revenue).Error; err != nil {
		return nil, err
	}
	if revenue.Total != nil {
		stats.Revenue = *revenue.Total
	}

	if err := db.Model(&models.Order{}).Count(&stats.Orders).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Order{}).Where("status = ?", models.FulfillmentPending).Count(&stats.PendingOrders).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Product{}).Where("active = ?", true).Count(&stats.Products).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.User{}).Where("role = ?", models.RoleUser).Count(&stats.Users).Error; err != nil {
		return nil, err
	}
	return stats, nil
}

// SalesSince totals non-cancelled orders per UTC day, oldest first. Days
// are bucketed here so the query stays portable across dialects.
func (r *GormOrderRepository) SalesSince(ctx context.Context, since time.Time) ([]models.DailySales, error) {
	var rows []struct {
		Total     int64
		CreatedAt time.Time
	}
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Select("total", "created_at").
		Where("created_at >= ? AND status <> ?", since.UTC(), models.FulfillmentCancelled).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	byDay := make(map[string]int64)
	for _, row := range rows {
		byDay[row.CreatedAt.UTC().Format("2006-01-02")] += row.Total
	}

	out := make([]models.DailySales, 0, len(byDay))
	for day, total := range byDay {
		out = append(out, models.DailySales{Date: day, Total: total})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

// TopProducts ranks products by units sold on non-cancelled orders.
func (r *GormOrderRepository) TopProducts(ctx context.Context, limit int) ([]models.TopProduct, error) {
	if limit <= 0 {
		limit = 5
	}

	var out []models.TopProduct
	err := r.db.WithContext(ctx).
		Table("order_items AS oi").
		Select("p.id AS product_id, p.name AS name, SUM(oi.quantity) AS total_sold, SUM(oi.quantity * oi.price) AS total_revenue").
		Joins("JOIN products p ON oi.product_id = p.id").
		Joins("JOIN orders o ON oi.order_id = o.id").
		Where("o.status <> ?", models.FulfillmentCancelled).
		Group("p.id, p.name").
		Order("total_sold DESC, p.id").
		Limit(limit).
		Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *GormOrderRepository) withLines(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Lines.Product")
}
