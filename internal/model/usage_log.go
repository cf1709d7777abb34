package model

import (
	"time"

	"gorm.io/datatypes"
)

const (
	UsageAdded   = "added"
	UsageUsed    = "used"
	UsageRenewed = "renewed"
)

// UsageLog 额度变动流水，只追加
type UsageLog struct {
	ID             int64          `gorm:"primaryKey" json:"id"`
	UserID         int64          `gorm:"not null;index" json:"user_id"`
	SubscriptionID int64          `gorm:"not null;index" json:"subscription_id"`
	AddonGrantID   *int64         `json:"addon_grant_id,omitempty"`
	Action         string         `gorm:"size:20;not null;index" json:"action"` // added, used, renewed
	CreditsDelta   int            `gorm:"not null" json:"credits_delta"`
	RemainingAfter int            `gorm:"not null" json:"remaining_after"`
	Description    string         `gorm:"size:255" json:"description"`
	Metadata       datatypes.JSON `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

func (UsageLog) TableName() string {
	return "response_usage_logs"
}
