package testutil

import (
	"fmt"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/jobmate/cancel_go_server/internal/model"
)

// TestUser 创建测试用户
func TestUser(t *testing.T, db *gorm.DB, opts ...func(*model.User)) *model.User {
	t.Helper()

	user := &model.User{
		Email: fmt.Sprintf("test_%d@example.com", time.Now().UnixNano()),
	}

	for _, opt := range opts {
		opt(user)
	}

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}

	return user
}

// WithEmail 设置邮箱
func WithEmail(email string) func(*model.User) {
	return func(u *model.User) {
		u.Email = email
	}
}

// TestSubscription 创建测试订阅
func TestSubscription(t *testing.T, db *gorm.DB, userID int64, opts ...func(*model.Subscription)) *model.Subscription {
	t.Helper()

	sub := &model.Subscription{
		UserID:       userID,
		MonthlyPrice: 2500,
		Status:       model.SubscriptionStatusActive,
	}

	for _, opt := range opts {
		opt(sub)
	}

	if err := db.Create(sub).Error; err != nil {
		t.Fatalf("Failed to create test subscription: %v", err)
	}

	return sub
}

// WithMonthlyPrice 设置月费（最小货币单位）
func WithMonthlyPrice(price int64) func(*model.Subscription) {
	return func(s *model.Subscription) {
		s.MonthlyPrice = price
	}
}

// WithSubscriptionStatus 设置订阅状态
func WithSubscriptionStatus(status string) func(*model.Subscription) {
	return func(s *model.Subscription) {
		s.Status = status
	}
}

// TestCancellation 创建测试取消记录
func TestCancellation(t *testing.T, db *gorm.DB, userID, subscriptionID int64, opts ...func(*model.Cancellation)) *model.Cancellation {
	t.Helper()

	cancellation := &model.Cancellation{
		UserID:         userID,
		SubscriptionID: subscriptionID,
	}

	for _, opt := range opts {
		opt(cancellation)
	}

	if err := db.Create(cancellation).Error; err != nil {
		t.Fatalf("Failed to create test cancellation: %v", err)
	}

	return cancellation
}

// WithVariant 设置实验分组
func WithVariant(variant string) func(*model.Cancellation) {
	return func(c *model.Cancellation) {
		c.DownsellVariant = variant
	}
}

// WithAcceptedDownsell 设置是否已接受挽留报价
func WithAcceptedDownsell(accepted bool) func(*model.Cancellation) {
	return func(c *model.Cancellation) {
		c.AcceptedDownsell = accepted
	}
}

// WithFoundJob 设置找到工作分支
func WithFoundJob(found bool) func(*model.Cancellation) {
	return func(c *model.Cancellation) {
		c.FoundJob = &found
	}
}

// WithAttributedToUs 设置归因回答
func WithAttributedToUs(attributed bool) func(*model.Cancellation) {
	return func(c *model.Cancellation) {
		c.AttributedToUs = &attributed
	}
}

// WithUsageAnswers 设置三个用量问卷答案
func WithUsageAnswers(applied, emailed, interviews string) func(*model.Cancellation) {
	return func(c *model.Cancellation) {
		c.AppliedCount = applied
		c.EmailedCount = emailed
		c.InterviewCount = interviews
	}
}

// WithReason 设置取消原因文本
func WithReason(reason string) func(*model.Cancellation) {
	return func(c *model.Cancellation) {
		c.Reason = reason
	}
}

// WithVisaAnswers 设置签证两问的答案
func WithVisaAnswers(hasLawyer bool, visaType string) func(*model.Cancellation) {
	return func(c *model.Cancellation) {
		c.HasLawyer = &hasLawyer
		c.VisaType = visaType
	}
}

// WithFinalizedAt 设置定稿时间
func WithFinalizedAt(at time.Time) func(*model.Cancellation) {
	return func(c *model.Cancellation) {
		c.FinalizedAt = &at
	}
}
