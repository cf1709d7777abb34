package repository

import (
	"gorm.io/gorm"

	"github.com/Aadiprofessional/edusmart-server/internal/model"
)

type PlanRepository struct {
	db *gorm.DB
}

func NewPlanRepository(db *gorm.DB) *PlanRepository {
	return &PlanRepository{db: db}
}

func (r *PlanRepository) WithTx(tx *gorm.DB) *PlanRepository {
	return &PlanRepository{db: tx}
}

func (r *PlanRepository) Create(plan *model.SubscriptionPlan) error {
	return r.db.Create(plan).Error
}

func (r *PlanRepository) GetByID(id int64) (*model.SubscriptionPlan, error) {
	var plan model.SubscriptionPlan
	err := r.db.Where("id = ?", id).First(&plan).Error
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

// ListActive 上架套餐，按价格升序
func (r *PlanRepository) ListActive() ([]*model.SubscriptionPlan, error) {
	var plans []*model.SubscriptionPlan
	err := r.db.Where("is_active = ?", true).Order("price ASC").Find(&plans).Error
	return plans, err
}

// SetActive 上架/下架，返回是否命中
func (r *PlanRepository) SetActive(id int64, active bool) (bool, error) {
	result := r.db.Model(&model.SubscriptionPlan{}).Where("id = ?", id).Update("is_active", active)
	return result.RowsAffected > 0, result.Error
}
