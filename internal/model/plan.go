package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// SubscriptionPlan 订阅套餐，管理员创建/下架，支付流程只读
type SubscriptionPlan struct {
	ID            int64           `gorm:"primaryKey" json:"id"`
	Name          string          `gorm:"size:100;not null" json:"name"`
	Description   string          `gorm:"type:text" json:"description"`
	Price         decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
	Currency      string          `gorm:"size:3;not null" json:"currency"`
	DurationDays  int             `gorm:"not null" json:"duration_days"`
	ResponseLimit int             `gorm:"not null" json:"response_limit"`
	IsActive      bool            `gorm:"default:true;index" json:"is_active"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (SubscriptionPlan) TableName() string {
	return "subscription_plans"
}

// AddonPlan 加量包
type AddonPlan struct {
	ID                  int64           `gorm:"primaryKey" json:"id"`
	Name                string          `gorm:"size:100;not null" json:"name"`
	Description         string          `gorm:"type:text" json:"description"`
	Price               decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
	Currency            string          `gorm:"size:3;not null" json:"currency"`
	AdditionalResponses int             `gorm:"not null" json:"additional_responses"`
	IsActive            bool            `gorm:"default:true;index" json:"is_active"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

func (AddonPlan) TableName() string {
	return "addon_plans"
}
