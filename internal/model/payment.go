package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	PaymentPending   = "pending"
	PaymentCompleted = "completed"
	PaymentFailed    = "failed"
	PaymentCancelled = "cancelled"
)

type PaymentTransaction struct {
	ID                int64           `gorm:"primaryKey" json:"id"`
	UserID            int64           `gorm:"not null;index" json:"user_id"`
	PlanID            *int64          `gorm:"index" json:"plan_id,omitempty"`
	AddonID           *int64          `gorm:"index" json:"addon_id,omitempty"`
	PaymentRequestID  string          `gorm:"size:100;uniqueIndex;not null" json:"payment_request_id"`
	OrderID           string          `gorm:"size:100;not null" json:"order_id"`
	Amount            decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"amount"`
	Currency          string          `gorm:"size:3;not null" json:"currency"`
	PaymentMethodType string          `gorm:"size:40" json:"payment_method_type"`
	Status            string          `gorm:"size:20;default:pending;index" json:"status"` // pending, completed, failed, cancelled
	ResultStatus      string          `gorm:"size:4" json:"result_status,omitempty"`
	ResultCode        string          `gorm:"size:64" json:"result_code,omitempty"`
	PaymentData       datatypes.JSON  `json:"payment_data,omitempty"`
	WebhookReceivedAt *time.Time      `json:"webhook_received_at,omitempty"`
	CreditsAppliedAt  *time.Time      `json:"credits_applied_at,omitempty"`
	LedgerError       string          `gorm:"type:text" json:"ledger_error,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`

	Plan  *SubscriptionPlan `gorm:"foreignKey:PlanID" json:"plan,omitempty"`
	Addon *AddonPlan        `gorm:"foreignKey:AddonID" json:"addon,omitempty"`
}

func (PaymentTransaction) TableName() string {
	return "payment_transactions"
}

func (p *PaymentTransaction) IsTerminal() bool {
	return p.Status != PaymentPending
}
