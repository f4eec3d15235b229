package repository

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/jobmate/cancel_go_server/internal/model"
)

// ErrVariantImmutable 实验分组一经写入不可更改
var ErrVariantImmutable = errors.New("downsell variant already assigned")

type CancellationRepository struct {
	db *gorm.DB
}

func NewCancellationRepository(db *gorm.DB) *CancellationRepository {
	return &CancellationRepository{db: db}
}

func (r *CancellationRepository) Create(cancellation *model.Cancellation) error {
	return r.db.Create(cancellation).Error
}

func (r *CancellationRepository) GetByID(id int64) (*model.Cancellation, error) {
	var cancellation model.Cancellation
	err := r.db.Where("id = ?", id).First(&cancellation).Error
	if err != nil {
		return nil, err
	}
	return &cancellation, nil
}

func (r *CancellationRepository) GetLatestByUserID(userID int64) (*model.Cancellation, error) {
	var cancellation model.Cancellation
	err := r.db.Where("user_id = ?", userID).Order("created_at DESC").First(&cancellation).Error
	if err != nil {
		return nil, err
	}
	return &cancellation, nil
}

// UpdateFields 部分更新问卷字段。分组字段不走这里，传了直接拒绝。
func (r *CancellationRepository) UpdateFields(id int64, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	if _, ok := fields["downsell_variant"]; ok {
		return ErrVariantImmutable
	}
	return r.db.Model(&model.Cancellation{}).Where("id = ?", id).Updates(fields).Error
}

func (r *CancellationRepository) CountByVariant(variant string) (int64, error) {
	var count int64
	err := r.db.Model(&model.Cancellation{}).Where("downsell_variant = ?", variant).Count(&count).Error
	return count, err
}

func (r *CancellationRepository) CountUnassigned() (int64, error) {
	var count int64
	err := r.db.Model(&model.Cancellation{}).Where("downsell_variant = ''").Count(&count).Error
	return count, err
}

func (r *CancellationRepository) CountAcceptedDownsell() (int64, error) {
	var count int64
	err := r.db.Model(&model.Cancellation{}).Where("accepted_downsell = ?", true).Count(&count).Error
	return count, err
}

func (r *CancellationRepository) CountFinalized() (int64, error) {
	var count int64
	err := r.db.Model(&model.Cancellation{}).Where("finalized_at IS NOT NULL").Count(&count).Error
	return count, err
}

// SetVariant 给未分组的记录写入分组。已分组时写同值是无操作，
// 写不同值返回 ErrVariantImmutable。
func (r *CancellationRepository) SetVariant(id int64, variant string) error {
	if !model.ValidDownsellVariant(variant) {
		return fmt.Errorf("invalid downsell variant %q", variant)
	}

	res := r.db.Model(&model.Cancellation{}).
		Where("id = ? AND downsell_variant = ''", id).
		Update("downsell_variant", variant)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}

	existing, err := r.GetByID(id)
	if err != nil {
		return err
	}
	if existing.DownsellVariant == variant {
		return nil
	}
	return ErrVariantImmutable
}

// AssignVariantBalanced 为未分组记录挑选人数较少的实验组并原子落库。
// 两组持平时用调用方给出的确定性 tieBreak。计数和写入之间的并发
// 竞争由带空值条件的 CAS 写入兜底：输家重读已提交的分组并返回它，
// 因此同一条记录并发调用也只会产生一个分组。
func (r *CancellationRepository) AssignVariantBalanced(id int64, tieBreak string) (string, error) {
	if !model.ValidDownsellVariant(tieBreak) {
		return "", fmt.Errorf("invalid tie break variant %q", tieBreak)
	}

	for attempt := 0; attempt < 3; attempt++ {
		var cancellation model.Cancellation
		if err := r.db.Where("id = ?", id).First(&cancellation).Error; err != nil {
			return "", err
		}
		if cancellation.DownsellVariant != "" {
			return cancellation.DownsellVariant, nil
		}

		countA, err := r.CountByVariant(model.VariantA)
		if err != nil {
			return "", err
		}
		countB, err := r.CountByVariant(model.VariantB)
		if err != nil {
			return "", err
		}

		choice := tieBreak
		if countA < countB {
			choice = model.VariantA
		} else if countB < countA {
			choice = model.VariantB
		}

		res := r.db.Model(&model.Cancellation{}).
			Where("id = ? AND downsell_variant = ''", id).
			Update("downsell_variant", choice)
		if res.Error != nil {
			return "", res.Error
		}
		if res.RowsAffected > 0 {
			return choice, nil
		}
		// 输掉并发竞争，下一轮重读已提交的分组
	}
	return "", fmt.Errorf("failed to assign variant for cancellation %d", id)
}

// ListStaleDrafts 找出超过 cutoff 没有任何改动的未定稿记录，给定时回退用
func (r *CancellationRepository) ListStaleDrafts(cutoff time.Time) ([]*model.Cancellation, error) {
	var drafts []*model.Cancellation
	err := r.db.Where("finalized_at IS NULL AND updated_at < ?", cutoff).Find(&drafts).Error
	if err != nil {
		return nil, err
	}
	return drafts, nil
}

// ListOSSExportedIDs 找出归档已经上了 OSS 的记录。
// 本地兜底导出的 URL 是 local:// 前缀，不算。
func (r *CancellationRepository) ListOSSExportedIDs() ([]int64, error) {
	var ids []int64
	err := r.db.Model(&model.Cancellation{}).
		Where("export_oss_url LIKE ?", "https://%").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// ListLocalExportIDs 找出只有本地兜底归档的记录，等 OSS 恢复后重传
func (r *CancellationRepository) ListLocalExportIDs() ([]int64, error) {
	var ids []int64
	err := r.db.Model(&model.Cancellation{}).
		Where("export_oss_url LIKE ?", "local://%").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
