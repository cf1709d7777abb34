package model

import (
	"time"
)

const (
	SubscriptionActive    = "active"
	SubscriptionExpired   = "expired"
	SubscriptionCancelled = "cancelled"
)

const (
	AddonActive  = "active"
	AddonExpired = "expired"
)

type UserSubscription struct {
	ID               int64      `gorm:"primaryKey" json:"id"`
	UserID           int64      `gorm:"not null;index" json:"user_id"`
	PlanID           int64      `gorm:"not null;index" json:"plan_id"`
	Status           string     `gorm:"size:20;default:active;index" json:"status"` // active, expired, cancelled
	StartDate        time.Time  `gorm:"not null" json:"start_date"`
	EndDate          time.Time  `gorm:"not null;index" json:"end_date"`
	CreditsRemaining int        `gorm:"not null;default:0" json:"credits_remaining"`
	CreditsTotal     int        `gorm:"not null;default:0" json:"credits_total"`
	LastRefresh      *time.Time `json:"last_refresh,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`

	Plan *SubscriptionPlan `gorm:"foreignKey:PlanID" json:"plan,omitempty"`
}

func (UserSubscription) TableName() string {
	return "user_subscriptions"
}

// IsExpiredAt end_date 已过即视为过期，不依赖 status 字段
func (s *UserSubscription) IsExpiredAt(now time.Time) bool {
	return !s.EndDate.After(now)
}

// AddonGrant 用户购买的加量包，随订阅的月度刷新失效
type AddonGrant struct {
	ID                   int64      `gorm:"primaryKey" json:"id"`
	UserID               int64      `gorm:"not null;index" json:"user_id"`
	SubscriptionID       int64      `gorm:"not null;index" json:"subscription_id"`
	AddonID              int64      `gorm:"not null" json:"addon_id"`
	PaymentTransactionID *int64     `gorm:"index" json:"payment_transaction_id,omitempty"`
	CreditsGranted       int        `gorm:"not null" json:"credits_granted"`
	Status               string     `gorm:"size:20;default:active;index" json:"status"` // active, expired
	ExpiresAt            *time.Time `json:"expires_at,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`

	Addon *AddonPlan `gorm:"foreignKey:AddonID" json:"addon,omitempty"`
}

func (AddonGrant) TableName() string {
	return "user_addons"
}
