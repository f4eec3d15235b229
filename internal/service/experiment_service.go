package service

import (
	"context"
	"encoding/binary"
	"errors"
	"log"

	"github.com/cespare/xxhash/v2"
	"gorm.io/gorm"

	"github.com/jobmate/cancel_go_server/config"
	"github.com/jobmate/cancel_go_server/internal/model"
	"github.com/jobmate/cancel_go_server/internal/model/dto"
	"github.com/jobmate/cancel_go_server/internal/pkg/pubsub"
	"github.com/jobmate/cancel_go_server/internal/repository"
)

var (
	ErrUserNotFound         = errors.New("用户不存在")
	ErrSubscriptionNotFound = errors.New("订阅不存在")
)

type ExperimentService struct {
	userRepo   *repository.UserRepository
	subRepo    *repository.SubscriptionRepository
	cancelRepo *repository.CancellationRepository
	publisher  *pubsub.Publisher
	cfg        *config.Config
}

func NewExperimentService(
	userRepo *repository.UserRepository,
	subRepo *repository.SubscriptionRepository,
	cancelRepo *repository.CancellationRepository,
	publisher *pubsub.Publisher,
	cfg *config.Config,
) *ExperimentService {
	return &ExperimentService{
		userRepo:   userRepo,
		subRepo:    subRepo,
		cancelRepo: cancelRepo,
		publisher:  publisher,
		cfg:        cfg,
	}
}

// AssignVariant 进入取消流程：订阅转入待取消，补建取消记录，按最小组
// 优先分配实验分组。重复调用返回已有分组，不产生新记录。
func (s *ExperimentService) AssignVariant(callerID int64, req *dto.AssignVariantRequest) (*dto.AssignVariantResponse, error) {
	if err := authorizeCaller(s.cfg, callerID, req.UserID); err != nil {
		return nil, err
	}

	if _, err := s.userRepo.GetByID(req.UserID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	sub, err := s.subRepo.GetLatestByUserID(req.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}

	// 订阅转入待取消。已取消的订阅保持原状，用户仍可回看问卷。
	if sub.Status == model.SubscriptionStatusActive {
		if err := s.subRepo.UpdateStatus(sub.ID, model.SubscriptionStatusPendingCancellation); err != nil {
			return nil, err
		}
	}

	cancellation, err := s.cancelRepo.GetLatestByUserID(req.UserID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		cancellation = &model.Cancellation{
			UserID:         req.UserID,
			SubscriptionID: sub.ID,
		}
		if err := s.cancelRepo.Create(cancellation); err != nil {
			return nil, err
		}
	}

	variant := cancellation.DownsellVariant
	if variant == "" {
		variant, err = s.cancelRepo.AssignVariantBalanced(cancellation.ID, tieBreakVariant(req.UserID))
		if err != nil {
			return nil, err
		}
		s.publishAssigned(cancellation, variant)
	}

	resp := &dto.AssignVariantResponse{
		CancellationID:  cancellation.ID,
		DownsellVariant: variant,
		MonthlyPrice:    sub.MonthlyPrice,
	}
	if variant == model.VariantB {
		resp.DownsellPrice = downsellPrice(s.cfg, sub.MonthlyPrice)
	}

	return resp, nil
}

// Stats 各分组人数和漏斗指标
func (s *ExperimentService) Stats() (*dto.ExperimentStats, error) {
	variantA, err := s.cancelRepo.CountByVariant(model.VariantA)
	if err != nil {
		return nil, err
	}
	variantB, err := s.cancelRepo.CountByVariant(model.VariantB)
	if err != nil {
		return nil, err
	}
	unassigned, err := s.cancelRepo.CountUnassigned()
	if err != nil {
		return nil, err
	}
	accepted, err := s.cancelRepo.CountAcceptedDownsell()
	if err != nil {
		return nil, err
	}
	finalized, err := s.cancelRepo.CountFinalized()
	if err != nil {
		return nil, err
	}

	return &dto.ExperimentStats{
		VariantA:         variantA,
		VariantB:         variantB,
		Unassigned:       unassigned,
		AcceptedDownsell: accepted,
		Finalized:        finalized,
	}, nil
}

// publishAssigned 分组结果广播给各实例的在线向导连接，未接入发布者时跳过。
// 分配已经落库，这里失败只记日志。
func (s *ExperimentService) publishAssigned(c *model.Cancellation, variant string) {
	if s.publisher == nil {
		return
	}
	msg := &pubsub.EventMessage{
		Event:          pubsub.EventVariantAssigned,
		UserID:         c.UserID,
		CancellationID: c.ID,
		Outcome:        variant,
	}
	if err := s.publisher.PublishEvent(context.Background(), msg); err != nil {
		log.Printf("failed to publish %s event for cancellation %d: %v", pubsub.EventVariantAssigned, c.ID, err)
	}
}

// tieBreakVariant 两组持平时按用户 ID 的哈希奇偶决定，同一用户
// 重试拿到的倾向稳定
func tieBreakVariant(userID int64) string {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(userID))
	if xxhash.Sum64(buf[:])%2 == 0 {
		return model.VariantA
	}
	return model.VariantB
}

// downsellPrice 挽留价为月费减去配置的优惠额，不低于零
func downsellPrice(cfg *config.Config, monthlyPrice int64) int64 {
	price := monthlyPrice - cfg.Experiment.DownsellDiscount
	if price < 0 {
		return 0
	}
	return price
}
