package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/jobmate/cancel_go_server/internal/model"
)

// ErrInvalidStatusTransition 订阅状态不允许沿请求的路径流转
var ErrInvalidStatusTransition = errors.New("invalid subscription status transition")

type SubscriptionRepository struct {
	db *gorm.DB
}

func NewSubscriptionRepository(db *gorm.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

func (r *SubscriptionRepository) Create(sub *model.Subscription) error {
	return r.db.Create(sub).Error
}

func (r *SubscriptionRepository) GetByID(id int64) (*model.Subscription, error) {
	var sub model.Subscription
	err := r.db.Where("id = ?", id).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *SubscriptionRepository) GetLatestByUserID(userID int64) (*model.Subscription, error) {
	var sub model.Subscription
	err := r.db.Where("user_id = ?", userID).Order("created_at DESC").First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// UpdateStatus 在存储层守住订阅状态的流转表。同状态写入是无操作；
// 非法流转返回 ErrInvalidStatusTransition。带状态条件的 CAS 写入
// 保证并发下输掉竞争的一方会基于最新状态重新判定。
func (r *SubscriptionRepository) UpdateStatus(id int64, status string) error {
	for attempt := 0; attempt < 3; attempt++ {
		var sub model.Subscription
		if err := r.db.Where("id = ?", id).First(&sub).Error; err != nil {
			return err
		}
		if sub.Status == status {
			return nil
		}
		if !model.CanTransitionSubscriptionStatus(sub.Status, status) {
			return ErrInvalidStatusTransition
		}

		res := r.db.Model(&model.Subscription{}).
			Where("id = ? AND status = ?", id, sub.Status).
			Update("status", status)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}
		// 状态已被并发修改，重读后重新判定
	}
	return fmt.Errorf("failed to update subscription %d status: too many concurrent updates", id)
}
