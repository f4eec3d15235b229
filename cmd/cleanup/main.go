package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/jobmate/cancel_go_server/config"
	"github.com/jobmate/cancel_go_server/internal/model"
)

var (
	dryRun       = flag.Bool("dry-run", true, "Dry run mode, don't actually modify anything")
	staleDays    = flag.Int("stale-days", 30, "Days of draft inactivity before reverting the subscription")
	exportExpire = flag.Int("export-expire", 7, "Days to keep local export files migrated to OSS")
	revertDrafts = flag.Bool("revert-drafts", true, "Revert subscriptions stuck behind stale drafts")
	cleanExports = flag.Bool("clean-exports", true, "Clean local exports migrated to OSS")
)

func main() {
	flag.Parse()

	log.Println("🧹 Starting cleanup task...")
	log.Printf("Mode: dry-run=%v", *dryRun)

	// 加载配置
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 连接数据库
	db, err := connectDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	exportDir := cfg.Wizard.ExportDir
	if exportDir == "" {
		exportDir = filepath.Join(os.TempDir(), "cancellation_exports")
	}

	totalSize := int64(0)
	deletedSize := int64(0)
	totalFiles := 0
	deletedFiles := 0
	revertedSubs := 0

	// 1. 回退卡在过期草稿上的订阅
	if *revertDrafts {
		log.Printf("\n📋 Reverting stale cancellation drafts (inactive for %d+ days)...", *staleDays)
		revertedSubs = revertStaleDrafts(db, *staleDays, *dryRun)
	}

	// 2. 清理已迁移到OSS的本地归档文件
	if *cleanExports {
		log.Printf("\n📦 Cleaning local exports migrated to OSS...")
		size, count := cleanMigratedExports(db, exportDir, *exportExpire, *dryRun)
		deletedSize += size
		deletedFiles += count
	}

	// 3. 统计当前占用
	log.Println("\n📈 Scanning current disk usage...")
	filepath.Walk(exportDir, func(path string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			totalSize += info.Size()
			totalFiles++
		}
		return nil
	})

	// 输出统计
	log.Println("\n" + strings.Repeat("=", 60))
	log.Println("📊 Cleanup Summary")
	log.Println(strings.Repeat("=", 60))
	log.Printf("Reverted subscriptions: %d", revertedSubs)
	log.Printf("Export files on disk: %d", totalFiles)
	log.Printf("Export dir size: %s", formatSize(totalSize))
	log.Printf("Deleted files: %d", deletedFiles)
	log.Printf("Freed space: %s", formatSize(deletedSize))
	if *dryRun {
		log.Println("\n⚠️  DRY RUN MODE - Nothing was actually modified")
		log.Println("   Run with -dry-run=false to apply changes")
	} else {
		log.Println("\n✅ Cleanup completed!")
	}
	log.Println(strings.Repeat("=", 60))
}

// revertStaleDrafts 把长期没动静的未定稿草稿对应的订阅从待取消回退为活跃。
// 接受过挽留的订阅已经是活跃态，不在此列。
func revertStaleDrafts(db *gorm.DB, staleDays int, dryRun bool) int {
	cutoff := time.Now().Add(-time.Duration(staleDays) * 24 * time.Hour)

	var drafts []model.Cancellation
	err := db.Where("finalized_at IS NULL AND updated_at < ?", cutoff).Find(&drafts).Error
	if err != nil {
		log.Printf("Failed to query stale drafts: %v", err)
		return 0
	}

	log.Printf("Found %d stale drafts", len(drafts))

	var count int
	for _, draft := range drafts {
		var sub model.Subscription
		if err := db.Where("id = ?", draft.SubscriptionID).First(&sub).Error; err != nil {
			log.Printf("  ⚠️  Failed to load subscription %d: %v", draft.SubscriptionID, err)
			continue
		}
		if sub.Status != model.SubscriptionStatusPendingCancellation {
			continue
		}

		log.Printf("  - cancellation %d: subscription %d idle since %s",
			draft.ID, sub.ID, draft.UpdatedAt.Format("2006-01-02"))

		if !dryRun {
			err := db.Model(&model.Subscription{}).
				Where("id = ? AND status = ?", sub.ID, model.SubscriptionStatusPendingCancellation).
				Update("status", model.SubscriptionStatusActive).Error
			if err != nil {
				log.Printf("    ❌ Failed to revert: %v", err)
				continue
			}
		}
		count++
	}

	log.Printf("Reverted %d subscriptions to active", count)
	return count
}

// cleanMigratedExports 清理归档已经上了 OSS 的本地导出文件。
// local:// 前缀的记录本地文件是唯一副本，这里绝不碰。
func cleanMigratedExports(db *gorm.DB, exportDir string, keepDays int, dryRun bool) (int64, int) {
	var totalSize int64
	var count int

	var cancellations []model.Cancellation
	err := db.Where("export_oss_url LIKE ?", "https://%").
		Find(&cancellations).Error
	if err != nil {
		log.Printf("Failed to query cancellations: %v", err)
		return 0, 0
	}

	log.Printf("Found %d exports migrated to OSS", len(cancellations))

	// 为了安全，只删除超过N天的旧文件
	expireTime := time.Now().Add(-time.Duration(keepDays) * 24 * time.Hour)

	for _, cancellation := range cancellations {
		localPath := filepath.Join(exportDir, fmt.Sprintf("%d.json", cancellation.ID))

		info, err := os.Stat(localPath)
		if os.IsNotExist(err) {
			continue // 文件不存在，跳过
		}
		if err != nil {
			log.Printf("  ⚠️  Failed to stat %d.json: %v", cancellation.ID, err)
			continue
		}

		// 只删除超过指定天数的文件（安全措施）
		if info.ModTime().Before(expireTime) {
			totalSize += info.Size()

			log.Printf("  - %d.json (%.2f KB, migrated to OSS, %s old)",
				cancellation.ID,
				float64(info.Size())/1024,
				time.Since(info.ModTime()).Round(time.Hour))

			if !dryRun {
				if err := os.Remove(localPath); err != nil {
					log.Printf("    ❌ Failed to delete: %v", err)
				} else {
					count++
				}
			} else {
				count++
			}
		}
	}

	log.Printf("Found %d export files to clean (total: %s)",
		count, formatSize(totalSize))

	return totalSize, count
}

// formatSize 格式化文件大小
func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// connectDB 连接数据库
func connectDB(cfg *config.Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.Database.Username,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Database,
	)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	return db, nil
}
