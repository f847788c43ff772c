package models

import "time"

// CartItem is a persisted cart row for an authenticated user.
type CartItem struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	UserID    int64     `gorm:"not null;uniqueIndex:idx_cart_user_product" json:"user_id"`
	ProductID int64     `gorm:"not null;uniqueIndex:idx_cart_user_product" json:"product_id"`
	Quantity  int64     `gorm:"not null" json:"quantity"`
	CreatedAt time.Time `json:"created_at"`

	Product *Product `gorm:"foreignKey:ProductID" json:"-"`
}

// CartView is the cart as returned to clients.
type CartView struct {
	Items []CartViewItem `json:"items"`
	Total int64          `json:"total"`
	Count int64          `json:"count"`
}

type CartViewItem struct {
	ID        int64  `json:"id"`
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	ImageURL  string `json:"image_url,omitempty"`
	Price     int64  `json:"price"`
	Stock     int64  `json:"stock"`
	Quantity  int64  `json:"quantity"`
	Subtotal  int64  `json:"subtotal"`
}

// NewCartView builds the client view from rows with preloaded products.
// Rows whose product vanished are skipped.
func NewCartView(items []CartItem) *CartView {
	view := &CartView{Items: make([]CartViewItem, 0, len(items))}
	for _, it := range items {
		if it.Product == nil {
			continue
		}
		line := CartViewItem{
			ID:        it.ID,
			ProductID: it.ProductID,
			Name:      it.Product.Name,
			ImageURL:  it.Product.ImageURL,
			Price:     it.Product.Price,
			Stock:     it.Product.Stock,
			Quantity:  it.Quantity,
			Subtotal:  it.Product.Price * it.Quantity,
		}
		view.Items = append(view.Items, line)
		view.Total += line.Subtotal
		view.Count += line.Quantity
	}
	return view
}

// ResolvedLine is a cart line priced from the live catalog.
type ResolvedLine struct {
	ProductID      int64  `json:"product_id"`
	Name           string `json:"name"`
	ImageURL       string `json:"image_url,omitempty"`
	Quantity       int64  `json:"quantity"`
	UnitPrice      int64  `json:"unit_price"`
	AvailableStock int64  `json:"available_stock"`
}

func (l ResolvedLine) Extension() int64 {
	return l.UnitPrice * l.Quantity
}

// ResolvedCart is the validated, server-priced input to order creation.
type ResolvedCart struct {
	UserID    *int64
	Persisted bool
	Lines     []ResolvedLine
	Total     int64
}

// ProductIDs returns the distinct product ids in line order.
func (c *ResolvedCart) ProductIDs() []int64 {
	ids := make([]int64, 0, len(c.Lines))
	for _, l := range c.Lines {
		ids = append(ids, l.ProductID)
	}
	return ids
}
