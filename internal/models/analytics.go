package models

import "time"

// AnalyticsFilter задает временной интервал и параметры агрегации.
type AnalyticsFilter struct {
	From          time.Time
	To            time.Time
	TopItemsLimit int
}

// DashboardSummary сводка по заказам за период.
type DashboardSummary struct {
	From              time.Time           `json:"from"`
	To                time.Time           `json:"to"`
	TotalRevenue      float64             `json:"total_revenue"`
	OrderCount        int                 `json:"order_count"`
	AverageOrderValue float64             `json:"average_order_value"`
	TopSelling        []TopSellingProduct `json:"top_selling_products"`
	DailySummaries    []DailySummary      `json:"daily_summaries"`
	UserStats         UserStats           `json:"user_stats"`
	GeneratedAt       time.Time           `json:"generated_at"`
}

// DailySummary агрегат за календарный день.
type DailySummary struct {
	Date              string  `json:"date"`
	TotalRevenue      float64 `json:"total_revenue"`
	OrderCount        int     `json:"order_count"`
	AverageOrderValue float64 `json:"average_order_value"`
}

// TopSellingProduct описывает популярный товар в заказах.
type TopSellingProduct struct {
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	UnitsSold   int     `json:"units_sold"`
	Revenue     float64 `json:"revenue"`
}

// UserStats прирост пользователей. Окна пересекаются: неделя включает сегодняшних.
type UserStats struct {
	TotalUsers        int `json:"total_users"`
	NewUsersToday     int `json:"new_users_today"`
	NewUsersThisWeek  int `json:"new_users_this_week"`
	NewUsersThisMonth int `json:"new_users_this_month"`
}
