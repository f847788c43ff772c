package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrder_CalculateTotal(t *testing.T) {
	order := &Order{Lines: []OrderLine{
		{ProductID: 1, Quantity: 2, Price: 1999},
		{ProductID: 2, Quantity: 1, Price: 50000},
	}}

	assert.Equal(t, int64(53998), order.CalculateTotal())
	assert.Equal(t, int64(53998), order.Total)
}

func TestOrder_AnnotateLines(t *testing.T) {
	order := &Order{Lines: []OrderLine{
		{ProductID: 1, Product: &Product{ID: 1, Name: "Cable USB-C", ImageURL: "/img/usbc.png"}},
		{ProductID: 2},
	}}

	order.AnnotateLines()

	assert.Equal(t, "Cable USB-C", order.Lines[0].Name)
	assert.Equal(t, "/img/usbc.png", order.Lines[0].ImageURL)
	assert.Empty(t, order.Lines[1].Name)
}

func TestOrder_OwnedBy(t *testing.T) {
	uid := int64(7)

	assert.True(t, (&Order{UserID: &uid}).OwnedBy(7))
	assert.False(t, (&Order{UserID: &uid}).OwnedBy(8))
	assert.False(t, (&Order{}).OwnedBy(7))
}

func TestShipping_FillBlanks(t *testing.T) {
	s := Shipping{Name: "Ana", Phone: ""}
	user := &User{Name: "Ana Perez", Email: "ana@example.com", Phone: "11-5555", Address: "Calle 1", City: "Rosario"}

	s.FillBlanks(user)

	assert.Equal(t, "Ana", s.Name)
	assert.Equal(t, "ana@example.com", s.Email)
	assert.Equal(t, "11-5555", s.Phone)
	assert.Equal(t, "Rosario", s.City)

	user.City = "Cordoba"
	assert.Equal(t, "Rosario", s.City)
}

func TestGuestItem_ProductRef(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int64
	}{
		{"product_id wins", `{"product_id": 5, "id": 9, "quantity": 1}`, 5},
		{"numeric id", `{"id": 9, "quantity": 1}`, 9},
		{"quoted id", `{"id": "12", "quantity": 1}`, 12},
		{"temporary browser id", `{"id": "temp-1700000000-3", "quantity": 1}`, 0},
		{"missing", `{"quantity": 1}`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var item GuestItem
			require.NoError(t, json.Unmarshal([]byte(tt.body), &item))
			assert.Equal(t, tt.want, item.ProductRef())
		})
	}
}

func TestParsePaymentMethod(t *testing.T) {
	m, err := ParsePaymentMethod("")
	require.NoError(t, err)
	assert.Equal(t, PaymentMethodMercadoPago, m)

	m, err = ParsePaymentMethod("efectivo")
	require.NoError(t, err)
	assert.False(t, m.IsOnline())

	_, err = ParsePaymentMethod("bitcoin")
	assert.Error(t, err)
}

func TestGatewayNotification_FlexibleID(t *testing.T) {
	var n GatewayNotification
	require.NoError(t, json.Unmarshal([]byte(`{"type":"payment","data":{"id":123456}}`), &n))
	assert.Equal(t, "123456", n.Data.ID.String())

	require.NoError(t, json.Unmarshal([]byte(`{"type":"payment","data":{"id":"987"}}`), &n))
	assert.Equal(t, "987", n.Data.ID.String())
}

func TestNewCartView(t *testing.T) {
	view := NewCartView([]CartItem{
		{ID: 1, ProductID: 10, Quantity: 2, Product: &Product{ID: 10, Name: "Mouse", Price: 1500, Stock: 4}},
		{ID: 2, ProductID: 11, Quantity: 1},
	})

	require.Len(t, view.Items, 1)
	assert.Equal(t, int64(3000), view.Total)
	assert.Equal(t, int64(2), view.Count)
}
