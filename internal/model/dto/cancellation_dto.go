package dto

// AssignVariantRequest 进入取消流程请求
type AssignVariantRequest struct {
	UserID int64 `json:"user_id" binding:"required"`
}

// AssignVariantResponse 分组结果，downsell_price 仅 B 组返回
type AssignVariantResponse struct {
	CancellationID  int64  `json:"cancellation_id"`
	DownsellVariant string `json:"downsell_variant"`
	MonthlyPrice    int64  `json:"monthly_price"`
	DownsellPrice   int64  `json:"downsell_price,omitempty"`
}

// SaveDraftRequest 草稿部分保存请求，未携带的字段不落库
type SaveDraftRequest struct {
	FoundJob       *bool   `json:"found_job,omitempty"`
	AttributedToUs *bool   `json:"attributed_to_us,omitempty"`
	AppliedCount   *string `json:"applied_count,omitempty"`
	EmailedCount   *string `json:"emailed_count,omitempty"`
	InterviewCount *string `json:"interview_count,omitempty"`
	Reason         *string `json:"reason,omitempty" binding:"omitempty,max=5000"`
	HasLawyer      *bool   `json:"has_lawyer,omitempty"`
	VisaType       *string `json:"visa_type,omitempty" binding:"omitempty,max=100"`
}

// Empty 判断这次请求是否一个字段都没带
func (r *SaveDraftRequest) Empty() bool {
	return r.FoundJob == nil && r.AttributedToUs == nil &&
		r.AppliedCount == nil && r.EmailedCount == nil && r.InterviewCount == nil &&
		r.Reason == nil && r.HasLawyer == nil && r.VisaType == nil
}

// AcceptDownsellRequest 接受挽留报价请求
type AcceptDownsellRequest struct {
	UserID int64 `json:"user_id,omitempty"`
}

// AcceptDownsellResponse 接受挽留报价响应
type AcceptDownsellResponse struct {
	CancellationID     int64  `json:"cancellation_id"`
	DownsellPrice      int64  `json:"downsell_price"`
	SubscriptionStatus string `json:"subscription_status"`
}

// FinalizeFoundJobRequest 已找到工作分支的定稿请求
type FinalizeFoundJobRequest struct {
	HasLawyer *bool  `json:"has_lawyer" binding:"required"`
	VisaType  string `json:"visa_type" binding:"required,max=100"`
}

// FinalizeStillLookingRequest 仍在找工作分支的定稿请求
type FinalizeStillLookingRequest struct {
	Reason     string `json:"reason" binding:"required"`
	ReasonText string `json:"reason_text,omitempty" binding:"omitempty,max=5000"`
	MaxPrice   string `json:"max_price,omitempty" binding:"omitempty,max=20"`
}

// FinalizeResponse 定稿响应
type FinalizeResponse struct {
	CancellationID     int64  `json:"cancellation_id"`
	SubscriptionStatus string `json:"subscription_status"`
	FinalizedAt        string `json:"finalized_at"`
}

// CancellationDetail 取消记录详情，resume_state 告诉前端续作时该渲染哪一步
type CancellationDetail struct {
	ID               int64  `json:"id"`
	UserID           int64  `json:"user_id"`
	SubscriptionID   int64  `json:"subscription_id"`
	DownsellVariant  string `json:"downsell_variant"`
	AcceptedDownsell bool   `json:"accepted_downsell"`
	FoundJob         *bool  `json:"found_job"`
	AttributedToUs   *bool  `json:"attributed_to_us"`
	AppliedCount     string `json:"applied_count"`
	EmailedCount     string `json:"emailed_count"`
	InterviewCount   string `json:"interview_count"`
	Reason           string `json:"reason"`
	HasLawyer        *bool  `json:"has_lawyer"`
	VisaType         string `json:"visa_type"`
	Finalized        bool   `json:"finalized"`
	FinalizedAt      string `json:"finalized_at,omitempty"`
	ResumeState      string `json:"resume_state"`
	CreatedAt        string `json:"created_at"`
	UpdatedAt        string `json:"updated_at"`
}

// ExperimentStats 实验分组统计
type ExperimentStats struct {
	VariantA         int64 `json:"variant_a"`
	VariantB         int64 `json:"variant_b"`
	Unassigned       int64 `json:"unassigned"`
	AcceptedDownsell int64 `json:"accepted_downsell"`
	Finalized        int64 `json:"finalized"`
}
