package model

import (
	"time"
)

// 实验分组
const (
	VariantA = "A" // 对照组，不展示挽留报价
	VariantB = "B" // 实验组，展示半价挽留报价
)

// 调查问卷取值范围，前后端共用，不可扩展
var (
	ApplyRangeBuckets     = []string{"0", "1-5", "6-20", "20+"}
	InterviewRangeBuckets = []string{"0", "1-2", "3-5", "5+"}
)

// 取消原因
const (
	ReasonTooExpensive       = "too_expensive"
	ReasonPlatformNotHelpful = "platform_not_helpful"
	ReasonNotEnoughJobs      = "not_enough_jobs"
	ReasonDecidedNotToMove   = "decided_not_to_move"
	ReasonOther              = "other"
)

// reasonLabels 落库时把原因码展开成可读前缀
var reasonLabels = map[string]string{
	ReasonTooExpensive:       "Too expensive",
	ReasonPlatformNotHelpful: "Platform not helpful",
	ReasonNotEnoughJobs:      "Not enough relevant jobs",
	ReasonDecidedNotToMove:   "Decided not to move",
	ReasonOther:              "Other",
}

func ValidDownsellVariant(v string) bool {
	return v == VariantA || v == VariantB
}

func ValidApplyRange(v string) bool {
	for _, b := range ApplyRangeBuckets {
		if v == b {
			return true
		}
	}
	return false
}

func ValidInterviewRange(v string) bool {
	for _, b := range InterviewRangeBuckets {
		if v == b {
			return true
		}
	}
	return false
}

func ValidCancelReason(code string) bool {
	_, ok := reasonLabels[code]
	return ok
}

func CancelReasonLabel(code string) string {
	return reasonLabels[code]
}

// Cancellation 一次取消流程的全部状态：实验分组、问卷草稿和最终结果。
// 三态布尔用指针表示，nil 代表用户尚未回答。
type Cancellation struct {
	ID               int64      `gorm:"primaryKey" json:"id"`
	UserID           int64      `gorm:"not null;index" json:"user_id"`
	SubscriptionID   int64      `gorm:"not null;index" json:"subscription_id"`
	DownsellVariant  string     `gorm:"size:1;not null;default:''" json:"downsell_variant"` // '' 未分组, A, B
	AcceptedDownsell bool       `gorm:"not null;default:false" json:"accepted_downsell"`
	FoundJob         *bool      `json:"found_job"`
	AttributedToUs   *bool      `json:"attributed_to_us"`
	AppliedCount     string     `gorm:"size:10" json:"applied_count"`   // '', 0, 1-5, 6-20, 20+
	EmailedCount     string     `gorm:"size:10" json:"emailed_count"`   // '', 0, 1-5, 6-20, 20+
	InterviewCount   string     `gorm:"size:10" json:"interview_count"` // '', 0, 1-2, 3-5, 5+
	Reason           string     `gorm:"type:text" json:"reason"`
	HasLawyer        *bool      `json:"has_lawyer"`
	VisaType         string     `gorm:"size:100" json:"visa_type"`
	FinalizedAt      *time.Time `gorm:"index" json:"finalized_at"` // nil 表示仍是草稿
	ExportOSSURL     string     `gorm:"size:500" json:"export_oss_url,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func (Cancellation) TableName() string {
	return "cancellations"
}

// Finalized 报告该记录是否已定稿。定稿后问卷字段不再可写。
func (c *Cancellation) Finalized() bool {
	return c.FinalizedAt != nil
}
