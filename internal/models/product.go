package models

import "time"

// Product is a catalog entry. Price is in minor currency units.
type Product struct {
	ID          int64     `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"not null" json:"name"`
	Description string    `json:"description,omitempty"`
	ImageURL    string    `gorm:"column:image_url" json:"image_url,omitempty"`
	Price       int64     `gorm:"not null" json:"price"`
	Stock       int64     `gorm:"not null" json:"stock"`
	Active      bool      `gorm:"not null" json:"active"`
	Specs       string    `gorm:"type:text" json:"specs,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Purchasable reports whether quantity units of the product can be sold.
func (p *Product) Purchasable(quantity int64) bool {
	return p.Active && quantity > 0 && quantity <= p.Stock
}
