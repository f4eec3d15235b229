package dto

// SubscriptionDetail 当前订阅详情，挽留报价屏用它取价格
type SubscriptionDetail struct {
	ID            int64  `json:"id"`
	UserID        int64  `json:"user_id"`
	MonthlyPrice  int64  `json:"monthly_price"`
	DownsellPrice int64  `json:"downsell_price"`
	Status        string `json:"status"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}
