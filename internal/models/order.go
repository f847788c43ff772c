package models

import "time"

// Order is an immutable commercial record. Only Status, PaymentStatus and
// PaymentID change after creation.
type Order struct {
	ID              int64             `gorm:"primaryKey" json:"id"`
	UserID          *int64            `gorm:"index" json:"user_id"`
	Total           int64             `gorm:"not null" json:"total"`
	Status          FulfillmentStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	PaymentStatus   PaymentStatus     `gorm:"type:varchar(20);not null" json:"payment_status"`
	PaymentMethod   PaymentMethod     `gorm:"type:varchar(20);not null" json:"payment_method"`
	PaymentID       string            `gorm:"column:payment_id" json:"payment_id,omitempty"`
	ShippingName    string            `json:"shipping_name"`
	ShippingAddress string            `json:"shipping_address"`
	ShippingCity    string            `json:"shipping_city"`
	ShippingPhone   string            `json:"shipping_phone"`
	ShippingEmail   string            `json:"shipping_email"`
	Notes           string            `json:"notes,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`

	Lines []OrderLine `gorm:"foreignKey:OrderID" json:"items"`

	CustomerName  string `gorm:"-" json:"customer_name,omitempty"`
	CustomerEmail string `gorm:"-" json:"customer_email,omitempty"`
}

// OrderLine is one purchased product at its purchase-time unit price.
type OrderLine struct {
	ID        int64 `gorm:"primaryKey" json:"id"`
	OrderID   int64 `gorm:"not null;index" json:"order_id"`
	ProductID int64 `gorm:"not null" json:"product_id"`
	Quantity  int64 `gorm:"not null" json:"quantity"`
	Price     int64 `gorm:"not null" json:"price"`

	Product *Product `gorm:"foreignKey:ProductID" json:"-"`

	Name     string `gorm:"-" json:"name,omitempty"`
	ImageURL string `gorm:"-" json:"image_url,omitempty"`
}

func (OrderLine) TableName() string { return "order_items" }

// Extension is the line total in minor units.
func (l OrderLine) Extension() int64 {
	return l.Price * l.Quantity
}

// CalculateTotal sets Total to the sum of line extensions.
func (o *Order) CalculateTotal() int64 {
	var total int64
	for _, l := range o.Lines {
		total += l.Extension()
	}
	o.Total = total
	return total
}

// AnnotateLines copies display fields from preloaded products.
func (o *Order) AnnotateLines() {
	for i := range o.Lines {
		if p := o.Lines[i].Product; p != nil {
			o.Lines[i].Name = p.Name
			o.Lines[i].ImageURL = p.ImageURL
		}
	}
}

// OwnedBy reports whether userID owns the order. Guest orders have no owner.
func (o *Order) OwnedBy(userID int64) bool {
	return o.UserID != nil && *o.UserID == userID
}

// Shipping is the contact snapshot captured at checkout.
type Shipping struct {
	Name    string
	Address string
	City    string
	Phone   string
	Email   string
}

// FillBlanks copies profile values into empty fields only.
func (s *Shipping) FillBlanks(u *User) {
	if u == nil {
		return
	}
	if s.Name == "" {
		s.Name = u.Name
	}
	if s.Address == "" {
		s.Address = u.Address
	}
	if s.City == "" {
		s.City = u.City
	}
	if s.Phone == "" {
		s.Phone = u.Phone
	}
	if s.Email == "" {
		s.Email = u.Email
	}
}
