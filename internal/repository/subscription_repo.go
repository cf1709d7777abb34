package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/Aadiprofessional/edusmart-server/internal/model"
)

type SubscriptionRepository struct {
	db *gorm.DB
}

func NewSubscriptionRepository(db *gorm.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

func (r *SubscriptionRepository) WithTx(tx *gorm.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: tx}
}

func (r *SubscriptionRepository) Create(sub *model.UserSubscription) error {
	return r.db.Create(sub).Error
}

func (r *SubscriptionRepository) GetByID(id int64) (*model.UserSubscription, error) {
	var sub model.UserSubscription
	err := r.db.Where("id = ?", id).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// GetActiveByUserID 用户当前 active 行（不判断是否已过期）
func (r *SubscriptionRepository) GetActiveByUserID(userID int64) (*model.UserSubscription, error) {
	var sub model.UserSubscription
	err := r.db.Preload("Plan").
		Where("user_id = ? AND status = ?", userID, model.SubscriptionActive).
		Order("created_at DESC").
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *SubscriptionRepository) CountActiveByUserID(userID int64) (int64, error) {
	var count int64
	err := r.db.Model(&model.UserSubscription{}).
		Where("user_id = ? AND status = ?", userID, model.SubscriptionActive).
		Count(&count).Error
	return count, err
}

// ExpireStale 惰性过期：把用户已到期的 active 行置为 expired
func (r *SubscriptionRepository) ExpireStale(userID int64, now time.Time) (int64, error) {
	result := r.db.Model(&model.UserSubscription{}).
		Where("user_id = ? AND status = ? AND end_date <= ?", userID, model.SubscriptionActive, now).
		Update("status", model.SubscriptionExpired)
	return result.RowsAffected, result.Error
}

// ExpireAllStale 全表惰性过期，刷新任务使用
func (r *SubscriptionRepository) ExpireAllStale(now time.Time) (int64, error) {
	result := r.db.Model(&model.UserSubscription{}).
		Where("status = ? AND end_date <= ?", model.SubscriptionActive, now).
		Update("status", model.SubscriptionExpired)
	return result.RowsAffected, result.Error
}

// AddCredits 增加剩余额度，total 不变
func (r *SubscriptionRepository) AddCredits(id int64, n int) error {
	return r.db.Model(&model.UserSubscription{}).Where("id = ?", id).
		Update("credits_remaining", gorm.Expr("credits_remaining + ?", n)).Error
}

// DeductCredits 条件扣减：额度足够且未过期才生效，返回是否扣减成功
func (r *SubscriptionRepository) DeductCredits(id int64, n int, now time.Time) (bool, error) {
	result := r.db.Model(&model.UserSubscription{}).
		Where("id = ? AND status = ? AND end_date > ? AND credits_remaining >= ?", id, model.SubscriptionActive, now, n).
		Update("credits_remaining", gorm.Expr("credits_remaining - ?", n))
	return result.RowsAffected == 1, result.Error
}

// ListRefreshCandidates 需要月度刷新的长期订阅
func (r *SubscriptionRepository) ListRefreshCandidates(now, cutoff time.Time, minDurationDays int) ([]*model.UserSubscription, error) {
	var subs []*model.UserSubscription
	err := r.db.Preload("Plan").
		Joins("JOIN subscription_plans ON subscription_plans.id = user_subscriptions.plan_id").
		Where("user_subscriptions.status = ? AND user_subscriptions.end_date > ?", model.SubscriptionActive, now).
		Where("(user_subscriptions.last_refresh IS NULL OR user_subscriptions.last_refresh <= ?)", cutoff).
		Where("subscription_plans.duration_days > ?", minDurationDays).
		Order("user_subscriptions.id ASC").
		Find(&subs).Error
	return subs, err
}

// RefreshCredits 重置额度；WHERE 再次校验 last_refresh，并发刷新只有一个生效
func (r *SubscriptionRepository) RefreshCredits(id int64, cutoff, now time.Time) (bool, error) {
	result := r.db.Model(&model.UserSubscription{}).
		Where("id = ? AND status = ?", id, model.SubscriptionActive).
		Where("(last_refresh IS NULL OR last_refresh <= ?)", cutoff).
		Updates(map[string]interface{}{
			"credits_remaining": gorm.Expr("credits_total"),
			"last_refresh":      now,
		})
	return result.RowsAffected == 1, result.Error
}

// ListAll 管理员查看全部订阅
func (r *SubscriptionRepository) ListAll(page, pageSize int, status string) ([]*model.UserSubscription, int64, error) {
	var subs []*model.UserSubscription
	var total int64

	query := r.db.Model(&model.UserSubscription{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	if err := query.Preload("Plan").Order("created_at DESC").Offset(offset).Limit(pageSize).Find(&subs).Error; err != nil {
		return nil, 0, err
	}

	return subs, total, nil
}
