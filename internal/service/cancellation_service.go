package service

import (
	"context"
	"errors"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/jobmate/cancel_go_server/config"
	"github.com/jobmate/cancel_go_server/internal/model"
	"github.com/jobmate/cancel_go_server/internal/model/dto"
	"github.com/jobmate/cancel_go_server/internal/pkg/pubsub"
	"github.com/jobmate/cancel_go_server/internal/pkg/queue"
	"github.com/jobmate/cancel_go_server/internal/pkg/sanitize"
	"github.com/jobmate/cancel_go_server/internal/repository"
	"github.com/jobmate/cancel_go_server/internal/wizard"
)

var (
	ErrCancellationNotFound    = errors.New("取消记录不存在")
	ErrCancellationPermission  = errors.New("无权操作此取消记录")
	ErrCancellationFinalized   = errors.New("取消流程已定稿，不能再修改")
	ErrDownsellUnavailable     = errors.New("挽留报价仅对 B 组开放")
	ErrDownsellAlreadyAccepted = errors.New("挽留报价已接受过")
	ErrInvalidRangeOption      = errors.New("无效的用量区间选项")
)

// authorizeCaller 调用者只能操作自己的记录；演示模式放行匿名请求
func authorizeCaller(cfg *config.Config, callerID, userID int64) error {
	if cfg.Server.DemoMode && callerID == 0 {
		return nil
	}
	if callerID != 0 && callerID == userID {
		return nil
	}
	return ErrCancellationPermission
}

type CancellationService struct {
	subRepo    *repository.SubscriptionRepository
	cancelRepo *repository.CancellationRepository
	queue      *queue.Queue
	publisher  *pubsub.Publisher
	cfg        *config.Config
}

func NewCancellationService(
	subRepo *repository.SubscriptionRepository,
	cancelRepo *repository.CancellationRepository,
	q *queue.Queue,
	publisher *pubsub.Publisher,
	cfg *config.Config,
) *CancellationService {
	return &CancellationService{
		subRepo:    subRepo,
		cancelRepo: cancelRepo,
		queue:      q,
		publisher:  publisher,
		cfg:        cfg,
	}
}

// Get 获取取消记录详情，带续作状态
func (s *CancellationService) Get(callerID, userID int64) (*dto.CancellationDetail, error) {
	if err := authorizeCaller(s.cfg, callerID, userID); err != nil {
		return nil, err
	}

	cancellation, err := s.cancelRepo.GetLatestByUserID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCancellationNotFound
		}
		return nil, err
	}

	return s.buildCancellationDetail(cancellation), nil
}

// GetSubscription 获取当前订阅，挽留报价屏从这里取价格
func (s *CancellationService) GetSubscription(callerID, userID int64) (*dto.SubscriptionDetail, error) {
	if err := authorizeCaller(s.cfg, callerID, userID); err != nil {
		return nil, err
	}

	sub, err := s.subRepo.GetLatestByUserID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}

	return &dto.SubscriptionDetail{
		ID:            sub.ID,
		UserID:        sub.UserID,
		MonthlyPrice:  sub.MonthlyPrice,
		DownsellPrice: downsellPrice(s.cfg, sub.MonthlyPrice),
		Status:        sub.Status,
		CreatedAt:     sub.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     sub.UpdatedAt.Format(time.RFC3339),
	}, nil
}

// SaveDraft 部分保存草稿。未携带的字段不动，文本入库前清洗，
// 定稿后的记录拒绝任何改动。
func (s *CancellationService) SaveDraft(callerID, userID int64, req *dto.SaveDraftRequest) (*dto.CancellationDetail, error) {
	if err := authorizeCaller(s.cfg, callerID, userID); err != nil {
		return nil, err
	}

	cancellation, err := s.cancelRepo.GetLatestByUserID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCancellationNotFound
		}
		return nil, err
	}
	if cancellation.Finalized() {
		return nil, ErrCancellationFinalized
	}

	fields, err := draftFields(req)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return s.buildCancellationDetail(cancellation), nil
	}

	if err := s.cancelRepo.UpdateFields(cancellation.ID, fields); err != nil {
		return nil, err
	}

	cancellation, err = s.cancelRepo.GetByID(cancellation.ID)
	if err != nil {
		return nil, err
	}

	return s.buildCancellationDetail(cancellation), nil
}

// AcceptDownsell 接受挽留报价：记录标记接受，订阅回到活跃态。
// 只有未接受过报价、未定稿的 B 组记录可以走到这里。
func (s *CancellationService) AcceptDownsell(callerID, userID int64) (*dto.AcceptDownsellResponse, error) {
	if err := authorizeCaller(s.cfg, callerID, userID); err != nil {
		return nil, err
	}

	cancellation, err := s.cancelRepo.GetLatestByUserID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCancellationNotFound
		}
		return nil, err
	}

	if cancellation.Finalized() {
		return nil, ErrCancellationFinalized
	}
	if cancellation.DownsellVariant != model.VariantB {
		return nil, ErrDownsellUnavailable
	}
	if cancellation.AcceptedDownsell {
		return nil, ErrDownsellAlreadyAccepted
	}

	if err := s.cancelRepo.UpdateFields(cancellation.ID, map[string]interface{}{
		"accepted_downsell": true,
	}); err != nil {
		return nil, err
	}

	// 用户留下来了，待取消的订阅恢复活跃
	if err := s.subRepo.UpdateStatus(cancellation.SubscriptionID, model.SubscriptionStatusActive); err != nil {
		return nil, err
	}

	sub, err := s.subRepo.GetByID(cancellation.SubscriptionID)
	if err != nil {
		return nil, err
	}

	cancellation.AcceptedDownsell = true
	s.enqueueArchive(cancellation, queue.OutcomeDownsellAccepted)
	s.publishEvent(cancellation, pubsub.EventDownsellAccepted, queue.OutcomeDownsellAccepted)

	return &dto.AcceptDownsellResponse{
		CancellationID:     cancellation.ID,
		DownsellPrice:      downsellPrice(s.cfg, sub.MonthlyPrice),
		SubscriptionStatus: sub.Status,
	}, nil
}

// FinalizeFoundJob 已找到工作分支定稿。问卷门槛重新校验一遍，
// 订阅转为已取消。重复定稿直接返回已有结果。
func (s *CancellationService) FinalizeFoundJob(callerID, userID int64, req *dto.FinalizeFoundJobRequest) (*dto.FinalizeResponse, error) {
	if err := authorizeCaller(s.cfg, callerID, userID); err != nil {
		return nil, err
	}

	cancellation, err := s.cancelRepo.GetLatestByUserID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCancellationNotFound
		}
		return nil, err
	}
	if cancellation.Finalized() {
		return s.finalizedResponse(cancellation)
	}

	sess := wizard.NewSession(cancellation)
	sess.HasLawyer = req.HasLawyer
	sess.VisaType = req.VisaType
	if err := wizard.ValidateFoundJob(sess); err != nil {
		return nil, err
	}

	now := time.Now()
	if err := s.subRepo.UpdateStatus(cancellation.SubscriptionID, model.SubscriptionStatusCancelled); err != nil {
		return nil, err
	}
	if err := s.cancelRepo.UpdateFields(cancellation.ID, map[string]interface{}{
		"found_job":    true,
		"has_lawyer":   *req.HasLawyer,
		"visa_type":    sanitize.Text(req.VisaType),
		"finalized_at": now,
	}); err != nil {
		return nil, err
	}

	s.enqueueArchive(cancellation, queue.OutcomeCancelled)
	s.publishEvent(cancellation, pubsub.EventFinalized, queue.OutcomeCancelled)

	return &dto.FinalizeResponse{
		CancellationID:     cancellation.ID,
		SubscriptionStatus: model.SubscriptionStatusCancelled,
		FinalizedAt:        now.Format(time.RFC3339),
	}, nil
}

// FinalizeStillLooking 仍在找工作分支定稿。原因码加补充信息拼成
// 落库文本，订阅转为已取消。重复定稿直接返回已有结果。
func (s *CancellationService) FinalizeStillLooking(callerID, userID int64, req *dto.FinalizeStillLookingRequest) (*dto.FinalizeResponse, error) {
	if err := authorizeCaller(s.cfg, callerID, userID); err != nil {
		return nil, err
	}

	cancellation, err := s.cancelRepo.GetLatestByUserID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCancellationNotFound
		}
		return nil, err
	}
	if cancellation.Finalized() {
		return s.finalizedResponse(cancellation)
	}

	sess := wizard.NewSession(cancellation)
	sess.ReasonCode = req.Reason
	if req.ReasonText != "" {
		sess.ReasonText = req.ReasonText
	}
	sess.MaxPrice = req.MaxPrice
	if err := wizard.ValidateStillLooking(sess); err != nil {
		return nil, err
	}

	now := time.Now()
	if err := s.subRepo.UpdateStatus(cancellation.SubscriptionID, model.SubscriptionStatusCancelled); err != nil {
		return nil, err
	}
	if err := s.cancelRepo.UpdateFields(cancellation.ID, map[string]interface{}{
		"found_job":    false,
		"reason":       wizard.ComposeReason(req.Reason, sess.ReasonText, req.MaxPrice),
		"finalized_at": now,
	}); err != nil {
		return nil, err
	}

	s.enqueueArchive(cancellation, queue.OutcomeCancelled)
	s.publishEvent(cancellation, pubsub.EventFinalized, queue.OutcomeCancelled)

	return &dto.FinalizeResponse{
		CancellationID:     cancellation.ID,
		SubscriptionStatus: model.SubscriptionStatusCancelled,
		FinalizedAt:        now.Format(time.RFC3339),
	}, nil
}

// finalizedResponse 重复定稿时按当前落库状态回包
func (s *CancellationService) finalizedResponse(c *model.Cancellation) (*dto.FinalizeResponse, error) {
	sub, err := s.subRepo.GetByID(c.SubscriptionID)
	if err != nil {
		return nil, err
	}

	return &dto.FinalizeResponse{
		CancellationID:     c.ID,
		SubscriptionStatus: sub.Status,
		FinalizedAt:        c.FinalizedAt.Format(time.RFC3339),
	}, nil
}

// enqueueArchive 投递归档任务。定稿已经生效，这里失败只记日志。
func (s *CancellationService) enqueueArchive(c *model.Cancellation, outcome string) {
	msg := &queue.CancellationMessage{
		CancellationID: c.ID,
		SubscriptionID: c.SubscriptionID,
		UserID:         c.UserID,
		Outcome:        outcome,
		Variant:        c.DownsellVariant,
	}
	if err := s.queue.Push(context.Background(), msg); err != nil {
		log.Printf("failed to enqueue cancellation archive for %d: %v", c.ID, err)
	}
}

// publishEvent 广播流程事件给各实例的在线连接。失败只记日志。
func (s *CancellationService) publishEvent(c *model.Cancellation, event, outcome string) {
	msg := &pubsub.EventMessage{
		Event:          event,
		UserID:         c.UserID,
		CancellationID: c.ID,
		Outcome:        outcome,
	}
	if err := s.publisher.PublishEvent(context.Background(), msg); err != nil {
		log.Printf("failed to publish %s event for cancellation %d: %v", event, c.ID, err)
	}
}

// draftFields 把草稿请求整理成落库字段。空字符串表示清掉已填的答案。
func draftFields(req *dto.SaveDraftRequest) (map[string]interface{}, error) {
	fields := make(map[string]interface{})

	if req.FoundJob != nil {
		fields["found_job"] = *req.FoundJob
	}
	if req.AttributedToUs != nil {
		fields["attributed_to_us"] = *req.AttributedToUs
	}
	if req.AppliedCount != nil {
		if *req.AppliedCount != "" && !model.ValidApplyRange(*req.AppliedCount) {
			return nil, ErrInvalidRangeOption
		}
		fields["applied_count"] = *req.AppliedCount
	}
	if req.EmailedCount != nil {
		if *req.EmailedCount != "" && !model.ValidApplyRange(*req.EmailedCount) {
			return nil, ErrInvalidRangeOption
		}
		fields["emailed_count"] = *req.EmailedCount
	}
	if req.InterviewCount != nil {
		if *req.InterviewCount != "" && !model.ValidInterviewRange(*req.InterviewCount) {
			return nil, ErrInvalidRangeOption
		}
		fields["interview_count"] = *req.InterviewCount
	}
	if req.Reason != nil {
		fields["reason"] = sanitize.Text(*req.Reason)
	}
	if req.HasLawyer != nil {
		fields["has_lawyer"] = *req.HasLawyer
	}
	if req.VisaType != nil {
		fields["visa_type"] = sanitize.Text(*req.VisaType)
	}

	return fields, nil
}

func (s *CancellationService) buildCancellationDetail(c *model.Cancellation) *dto.CancellationDetail {
	detail := &dto.CancellationDetail{
		ID:               c.ID,
		UserID:           c.UserID,
		SubscriptionID:   c.SubscriptionID,
		DownsellVariant:  c.DownsellVariant,
		AcceptedDownsell: c.AcceptedDownsell,
		FoundJob:         c.FoundJob,
		AttributedToUs:   c.AttributedToUs,
		AppliedCount:     c.AppliedCount,
		EmailedCount:     c.EmailedCount,
		InterviewCount:   c.InterviewCount,
		Reason:           c.Reason,
		HasLawyer:        c.HasLawyer,
		VisaType:         c.VisaType,
		Finalized:        c.Finalized(),
		ResumeState:      string(wizard.Resume(wizard.NewSession(c))),
		CreatedAt:        c.CreatedAt.Format(time.RFC3339),
		UpdatedAt:        c.UpdatedAt.Format(time.RFC3339),
	}

	if c.FinalizedAt != nil {
		detail.FinalizedAt = c.FinalizedAt.Format(time.RFC3339)
	}

	return detail
}
