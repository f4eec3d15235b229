package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/jobmate/cancel_go_server/config"
	"github.com/jobmate/cancel_go_server/internal/model"
	"github.com/jobmate/cancel_go_server/internal/pkg/oss"
	"github.com/jobmate/cancel_go_server/internal/pkg/pubsub"
	"github.com/jobmate/cancel_go_server/internal/pkg/queue"
	"github.com/jobmate/cancel_go_server/internal/repository"
)

// Processor 归档任务处理器
type Processor struct {
	cancelRepo *repository.CancellationRepository
	subRepo    *repository.SubscriptionRepository
	userRepo   *repository.UserRepository
	ossClient  *oss.Client
	publisher  *pubsub.Publisher
	cfg        *config.Config
}

// NewProcessor 创建归档任务处理器
func NewProcessor(
	cancelRepo *repository.CancellationRepository,
	subRepo *repository.SubscriptionRepository,
	userRepo *repository.UserRepository,
	ossClient *oss.Client,
	publisher *pubsub.Publisher,
	cfg *config.Config,
) *Processor {
	return &Processor{
		cancelRepo: cancelRepo,
		subRepo:    subRepo,
		userRepo:   userRepo,
		ossClient:  ossClient,
		publisher:  publisher,
		cfg:        cfg,
	}
}

// surveyExport 写进归档文件的问卷快照。分析侧直接消费这个 JSON，
// 字段名一旦入仓不能随意改。
type surveyExport struct {
	CancellationID   int64      `json:"cancellation_id"`
	UserID           int64      `json:"user_id"`
	UserEmail        string     `json:"user_email"`
	SubscriptionID   int64      `json:"subscription_id"`
	MonthlyPrice     int64      `json:"monthly_price"`
	Outcome          string     `json:"outcome"`
	DownsellVariant  string     `json:"downsell_variant"`
	AcceptedDownsell bool       `json:"accepted_downsell"`
	FoundJob         *bool      `json:"found_job"`
	AttributedToUs   *bool      `json:"attributed_to_us,omitempty"`
	AppliedCount     string     `json:"applied_count,omitempty"`
	EmailedCount     string     `json:"emailed_count,omitempty"`
	InterviewCount   string     `json:"interview_count,omitempty"`
	Reason           string     `json:"reason,omitempty"`
	HasLawyer        *bool      `json:"has_lawyer,omitempty"`
	VisaType         string     `json:"visa_type,omitempty"`
	FinalizedAt      *time.Time `json:"finalized_at,omitempty"`
	ExportedAt       time.Time  `json:"exported_at"`
}

// Process 处理一条归档任务：读出问卷快照，上传 OSS（或本地兜底），
// 回写导出地址并广播 archived 事件。
func (p *Processor) Process(ctx context.Context, msg *queue.CancellationMessage) error {
	cancellation, err := p.cancelRepo.GetByID(msg.CancellationID)
	if err != nil {
		return fmt.Errorf("failed to get cancellation: %w", err)
	}

	sub, err := p.subRepo.GetByID(cancellation.SubscriptionID)
	if err != nil {
		return fmt.Errorf("failed to get subscription: %w", err)
	}

	user, err := p.userRepo.GetByID(cancellation.UserID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}

	log.Printf("Archive %d: exporting survey (outcome=%s, variant=%s)", cancellation.ID, msg.Outcome, msg.Variant)

	export := p.buildExport(cancellation, sub, user, msg.Outcome)
	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal survey export: %w", err)
	}

	// 上传到 OSS 或保存到本地
	var exportURL string
	if p.ossClient != nil {
		exportURL, err = p.ossClient.UploadExport(cancellation.ID, data)
		if err != nil {
			return fmt.Errorf("failed to upload export: %w", err)
		}
	} else {
		// 本地存储模式 - 保存到文件
		localDir := p.cfg.Wizard.ExportDir
		if localDir == "" {
			localDir = filepath.Join(os.TempDir(), "cancellation_exports")
		}
		if err := os.MkdirAll(localDir, 0755); err != nil {
			return fmt.Errorf("failed to create export dir: %w", err)
		}
		localPath := filepath.Join(localDir, fmt.Sprintf("%d.json", cancellation.ID))
		if err := os.WriteFile(localPath, data, 0644); err != nil {
			return fmt.Errorf("failed to save export locally: %w", err)
		}
		// 使用特殊前缀标记本地存储
		exportURL = fmt.Sprintf("local://%d", cancellation.ID)
		log.Printf("Archive %d: saved export locally (OSS not configured)", cancellation.ID)
	}

	err = p.cancelRepo.UpdateFields(cancellation.ID, map[string]interface{}{
		"export_oss_url": exportURL,
	})
	if err != nil {
		return fmt.Errorf("failed to record export URL: %w", err)
	}

	// 通知在线的向导连接归档完成。广播失败不影响归档结果。
	err = p.publisher.PublishEvent(ctx, &pubsub.EventMessage{
		Event:          pubsub.EventArchived,
		UserID:         cancellation.UserID,
		CancellationID: cancellation.ID,
		Outcome:        msg.Outcome,
		ExportURL:      exportURL,
	})
	if err != nil {
		log.Printf("Archive %d: failed to publish archived event: %v", cancellation.ID, err)
	}

	log.Printf("Archive %d: completed, export at %s", cancellation.ID, exportURL)
	return nil
}

func (p *Processor) buildExport(c *model.Cancellation, sub *model.Subscription, user *model.User, outcome string) *surveyExport {
	return &surveyExport{
		CancellationID:   c.ID,
		UserID:           c.UserID,
		UserEmail:        user.Email,
		SubscriptionID:   c.SubscriptionID,
		MonthlyPrice:     sub.MonthlyPrice,
		Outcome:          outcome,
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
		FinalizedAt:      c.FinalizedAt,
		ExportedAt:       time.Now().UTC(),
	}
}
