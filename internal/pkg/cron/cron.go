package cron

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/jobmate/cancel_go_server/internal/model"
	"github.com/jobmate/cancel_go_server/internal/repository"
)

type Service struct {
	cancelRepo     *repository.CancellationRepository
	subRepo        *repository.SubscriptionRepository
	exportDir      string
	staleDraftDays int
	stopChan       chan struct{}
}

func NewService(
	cancelRepo *repository.CancellationRepository,
	subRepo *repository.SubscriptionRepository,
	exportDir string,
	staleDraftDays int,
) *Service {
	return &Service{
		cancelRepo:     cancelRepo,
		subRepo:        subRepo,
		exportDir:      exportDir,
		staleDraftDays: staleDraftDays,
		stopChan:       make(chan struct{}),
	}
}

// Start 启动定时任务
func (s *Service) Start() {
	go s.runDailyDraftReversal()
	go s.runExportPruning()
	log.Println("Cron service started (stale draft reversal + export pruning)")
}

// Stop 停止定时任务
func (s *Service) Stop() {
	close(s.stopChan)
	log.Println("Cron service stopped")
}

// runDailyDraftReversal 每日回退长期没动静的取消草稿
func (s *Service) runDailyDraftReversal() {
	now := time.Now().UTC()
	nextMidnight := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, time.UTC)
	timer := time.NewTimer(nextMidnight.Sub(now))

	for {
		select {
		case <-s.stopChan:
			timer.Stop()
			return
		case <-timer.C:
			if _, err := s.reverseStaleDrafts(); err != nil {
				log.Printf("Failed to reverse stale drafts: %v", err)
			}
			timer.Reset(24 * time.Hour)
		}
	}
}

// reverseStaleDrafts 把挂了太久的未定稿草稿对应的订阅放回 active。
// 用户中途弃掉向导时订阅停在 pending_cancellation，不回退会一直扣着。
func (s *Service) reverseStaleDrafts() (int, error) {
	days := s.staleDraftDays
	if days <= 0 {
		days = 30
	}
	cutoff := time.Now().Add(-time.Duration(days) * 24 * time.Hour)

	drafts, err := s.cancelRepo.ListStaleDrafts(cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to list stale drafts: %w", err)
	}

	reversed := 0
	for _, draft := range drafts {
		sub, err := s.subRepo.GetByID(draft.SubscriptionID)
		if err != nil {
			log.Printf("Draft reversal: failed to load subscription %d: %v", draft.SubscriptionID, err)
			continue
		}
		// 只回退还挂在待取消的订阅。接受过挽留的已经是 active，跳过。
		if sub.Status != model.SubscriptionStatusPendingCancellation {
			continue
		}
		if err := s.subRepo.UpdateStatus(sub.ID, model.SubscriptionStatusActive); err != nil {
			log.Printf("Draft reversal: failed to reactivate subscription %d: %v", sub.ID, err)
			continue
		}
		reversed++
	}

	if reversed > 0 {
		log.Printf("Draft reversal summary: stale=%d, reactivated=%d", len(drafts), reversed)
	}
	return reversed, nil
}

// runExportPruning 每小时清一次已迁移到 OSS 的本地归档文件
func (s *Service) runExportPruning() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.pruneExports()
		}
	}
}

// pruneExports 删掉归档已经上了 OSS 的本地导出副本
func (s *Service) pruneExports() int {
	if s.exportDir == "" {
		return 0
	}
	if _, err := os.Stat(s.exportDir); os.IsNotExist(err) {
		return 0
	}

	uploadedIDs, err := s.cancelRepo.ListOSSExportedIDs()
	if err != nil {
		log.Printf("Export pruning: failed to query uploaded IDs: %v", err)
		return 0
	}

	if len(uploadedIDs) == 0 {
		return 0
	}

	pruned := 0
	for _, id := range uploadedIDs {
		localPath := filepath.Join(s.exportDir, fmt.Sprintf("%d.json", id))
		if err := os.Remove(localPath); err != nil {
			if !os.IsNotExist(err) {
				log.Printf("Export pruning: failed to remove %s: %v", localPath, err)
			}
		} else {
			pruned++
		}
	}

	if pruned > 0 {
		log.Printf("Export pruning summary: removed=%d", pruned)
	}
	return pruned
}

// RunNow 立即执行一轮草稿回退和归档清理（用于测试或手动触发）
func (s *Service) RunNow() error {
	log.Println("Manual cron run triggered...")
	if _, err := s.reverseStaleDrafts(); err != nil {
		return err
	}
	s.pruneExports()
	return nil
}
