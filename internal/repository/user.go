package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/models"
)

var ErrUserNotFound = errors.New("user not found")

type GormUserRepository struct {
	db *gorm.DB
}

func NewGormUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

func (r *GormUserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, notFound(err, ErrUserNotFound)
	}
	return &u, nil
}
