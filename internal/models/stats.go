package models

// AdminStats summarises the store for the back office.
type AdminStats struct {
	Revenue       int64 `json:"revenue"`
	Orders        int64 `json:"orders"`
	Products      int64 `json:"products"`
	Users         int64 `json:"users"`
	PendingOrders int64 `json:"pendingOrders"`
}

type DailySales struct {
	Date  string `json:"date"`
	Total int64  `json:"total"`
}

type TopProduct struct {
	ProductID    int64  `json:"product_id"`
	Name         string `json:"name"`
	TotalSold    int64  `json:"total_sold"`
	TotalRevenue int64  `json:"total_revenue"`
}
