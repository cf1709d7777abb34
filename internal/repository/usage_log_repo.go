package repository

import (
	"gorm.io/gorm"

	"github.com/Aadiprofessional/edusmart-server/internal/model"
)

type UsageLogRepository struct {
	db *gorm.DB
}

func NewUsageLogRepository(db *gorm.DB) *UsageLogRepository {
	return &UsageLogRepository{db: db}
}

func (r *UsageLogRepository) WithTx(tx *gorm.DB) *UsageLogRepository {
	return &UsageLogRepository{db: tx}
}

func (r *UsageLogRepository) Create(entry *model.UsageLog) error {
	return r.db.Create(entry).Error
}

// ListByUserID 用户额度流水，可按 action 过滤
func (r *UsageLogRepository) ListByUserID(userID int64, page, pageSize int, action string) ([]*model.UsageLog, int64, error) {
	var logs []*model.UsageLog
	var total int64

	query := r.db.Model(&model.UsageLog{}).Where("user_id = ?", userID)
	if action != "" {
		query = query.Where("action = ?", action)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	if err := query.Order("created_at DESC, id DESC").Offset(offset).Limit(pageSize).Find(&logs).Error; err != nil {
		return nil, 0, err
	}

	return logs, total, nil
}
