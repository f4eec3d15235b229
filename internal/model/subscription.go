package model

import (
	"time"
)

// 订阅状态
const (
	SubscriptionStatusActive              = "active"
	SubscriptionStatusPendingCancellation = "pending_cancellation"
	SubscriptionStatusCancelled           = "cancelled"
)

// subscriptionTransitions 订阅状态只允许沿固定路径流转
var subscriptionTransitions = map[string][]string{
	SubscriptionStatusActive:              {SubscriptionStatusPendingCancellation, SubscriptionStatusCancelled},
	SubscriptionStatusPendingCancellation: {SubscriptionStatusCancelled, SubscriptionStatusActive},
	SubscriptionStatusCancelled:           {},
}

// CanTransitionSubscriptionStatus 判断订阅状态能否从 from 变为 to。
// 同状态写入视为合法的无操作。
func CanTransitionSubscriptionStatus(from, to string) bool {
	if from == to {
		return true
	}
	for _, next := range subscriptionTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type Subscription struct {
	ID           int64     `gorm:"primaryKey" json:"id"`
	UserID       int64     `gorm:"not null;index" json:"user_id"`
	MonthlyPrice int64     `gorm:"not null" json:"monthly_price"`              // 单位：美分
	Status       string    `gorm:"size:25;default:active;index" json:"status"` // active, pending_cancellation, cancelled
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (Subscription) TableName() string {
	return "subscriptions"
}
