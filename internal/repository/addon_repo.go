package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/Aadiprofessional/edusmart-server/internal/model"
)

type AddonRepository struct {
	db *gorm.DB
}

func NewAddonRepository(db *gorm.DB) *AddonRepository {
	return &AddonRepository{db: db}
}

func (r *AddonRepository) WithTx(tx *gorm.DB) *AddonRepository {
	return &AddonRepository{db: tx}
}

func (r *AddonRepository) Create(addon *model.AddonPlan) error {
	return r.db.Create(addon).Error
}

func (r *AddonRepository) GetByID(id int64) (*model.AddonPlan, error) {
	var addon model.AddonPlan
	err := r.db.Where("id = ?", id).First(&addon).Error
	if err != nil {
		return nil, err
	}
	return &addon, nil
}

// ListActive 上架加量包，按价格升序
func (r *AddonRepository) ListActive() ([]*model.AddonPlan, error) {
	var addons []*model.AddonPlan
	err := r.db.Where("is_active = ?", true).Order("price ASC").Find(&addons).Error
	return addons, err
}

func (r *AddonRepository) SetActive(id int64, active bool) (bool, error) {
	result := r.db.Model(&model.AddonPlan{}).Where("id = ?", id).Update("is_active", active)
	return result.RowsAffected > 0, result.Error
}

// CreateGrant 记录一次加量包授予
func (r *AddonRepository) CreateGrant(grant *model.AddonGrant) error {
	return r.db.Create(grant).Error
}

// ListActiveGrants 订阅下仍有效的加量包
func (r *AddonRepository) ListActiveGrants(subscriptionID int64) ([]*model.AddonGrant, error) {
	var grants []*model.AddonGrant
	err := r.db.Preload("Addon").
		Where("subscription_id = ? AND status = ?", subscriptionID, model.AddonActive).
		Order("created_at ASC").
		Find(&grants).Error
	return grants, err
}

// ExpireGrants 月度刷新时失效该订阅下全部加量包
func (r *AddonRepository) ExpireGrants(subscriptionID int64, at time.Time) (int64, error) {
	result := r.db.Model(&model.AddonGrant{}).
		Where("subscription_id = ? AND status = ?", subscriptionID, model.AddonActive).
		Updates(map[string]interface{}{
			"status":     model.AddonExpired,
			"expires_at": at,
		})
	return result.RowsAffected, result.Error
}
