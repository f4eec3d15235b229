package worker

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/jobmate/cancel_go_server/config"
	"github.com/jobmate/cancel_go_server/internal/pkg/oss"
	"github.com/jobmate/cancel_go_server/internal/repository"
)

const reuploadInterval = 5 * time.Minute

// Reuploader 后台把本地兜底的问卷归档补传到 OSS。
// OSS 不可用期间 worker 会把归档落在本地目录，恢复后由这里收尾。
type Reuploader struct {
	cancelRepo *repository.CancellationRepository
	ossClient  *oss.Client
	cfg        *config.Config
}

func NewReuploader(
	cancelRepo *repository.CancellationRepository,
	ossClient *oss.Client,
	cfg *config.Config,
) *Reuploader {
	return &Reuploader{
		cancelRepo: cancelRepo,
		ossClient:  ossClient,
		cfg:        cfg,
	}
}

// Start 启动后台补传循环
func (r *Reuploader) Start(ctx context.Context) {
	// 启动后先执行一次
	r.run()

	ticker := time.NewTicker(reuploadInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Reuploader stopped")
			return
		case <-ticker.C:
			r.run()
		}
	}
}

func (r *Reuploader) run() {
	ids, err := r.cancelRepo.ListLocalExportIDs()
	if err != nil {
		log.Printf("Reuploader: failed to query local exports: %v", err)
		return
	}

	if len(ids) == 0 {
		return
	}

	log.Printf("Reuploader: found %d local exports to re-upload", len(ids))

	for _, id := range ids {
		localPath := filepath.Join(r.localDir(), fmt.Sprintf("%d.json", id))
		data, err := os.ReadFile(localPath)
		if err != nil {
			log.Printf("Reuploader: failed to read local export %d: %v", id, err)
			continue
		}

		ossURL, err := r.ossClient.UploadExport(id, data)
		if err != nil {
			log.Printf("Reuploader: failed to re-upload export %d: %v", id, err)
			continue
		}

		if err := r.cancelRepo.UpdateFields(id, map[string]interface{}{
			"export_oss_url": ossURL,
		}); err != nil {
			log.Printf("Reuploader: failed to update DB for export %d: %v", id, err)
			continue
		}

		// 本地副本交给清理任务删，DB 已指向 OSS
		log.Printf("Reuploader: successfully re-uploaded export %d to OSS", id)
	}
}

func (r *Reuploader) localDir() string {
	if r.cfg.Wizard.ExportDir != "" {
		return r.cfg.Wizard.ExportDir
	}
	return filepath.Join(os.TempDir(), "cancellation_exports")
}
