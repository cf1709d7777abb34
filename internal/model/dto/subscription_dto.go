package dto

import (
	"github.com/shopspring/decimal"
)

// UseResponseRequest 消耗额度请求
type UseResponseRequest struct {
	ResponseType  string `json:"response_type" binding:"required"`
	ResponsesUsed int    `json:"responses_used" binding:"omitempty,min=1,max=1000"`
}

// UseResponseResponse 消耗额度响应
type UseResponseResponse struct {
	ResponsesRemaining int `json:"responses_remaining"`
}

// SubscriptionStatusResponse 订阅状态
type SubscriptionStatusResponse struct {
	HasSubscription    bool              `json:"has_subscription"`
	Subscription       *SubscriptionInfo `json:"subscription,omitempty"`
	Addons             []AddonGrantInfo  `json:"addons"`
	ResponsesRemaining int               `json:"responses_remaining"`
	ResponsesTotal     int               `json:"responses_total"`
}

// SubscriptionInfo 订阅信息
type SubscriptionInfo struct {
	ID               int64  `json:"id"`
	UserID           int64  `json:"user_id,omitempty"`
	PlanID           int64  `json:"plan_id"`
	PlanName         string `json:"plan_name"`
	Status           string `json:"status"`
	StartDate        string `json:"start_date"`
	EndDate          string `json:"end_date"`
	CreditsRemaining int    `json:"credits_remaining"`
	CreditsTotal     int    `json:"credits_total"`
	LastRefresh      string `json:"last_refresh,omitempty"`
}

// AddonGrantInfo 加量包信息
type AddonGrantInfo struct {
	ID             int64  `json:"id"`
	AddonID        int64  `json:"addon_id"`
	AddonName      string `json:"addon_name"`
	CreditsGranted int    `json:"credits_granted"`
	Status         string `json:"status"`
	CreatedAt      string `json:"created_at"`
}

// UsageLogItem 额度流水
type UsageLogItem struct {
	ID             int64  `json:"id"`
	Action         string `json:"action"`
	CreditsDelta   int    `json:"credits_delta"`
	RemainingAfter int    `json:"remaining_after"`
	Description    string `json:"description"`
	CreatedAt      string `json:"created_at"`
}

// UsageLogQuery 额度流水查询
type UsageLogQuery struct {
	Page     int    `form:"page,default=1" binding:"min=1"`
	PageSize int    `form:"limit,default=20" binding:"min=1,max=100"`
	Action   string `form:"action" binding:"omitempty,oneof=added used renewed"`
}

// AdminSubscriptionQuery 管理员订阅列表查询
type AdminSubscriptionQuery struct {
	Page     int    `form:"page,default=1" binding:"min=1"`
	PageSize int    `form:"limit,default=20" binding:"min=1,max=100"`
	Status   string `form:"status" binding:"omitempty,oneof=active expired cancelled"`
}

// RefreshResponse 手动刷新结果
type RefreshResponse struct {
	Refreshed int `json:"refreshed"`
}

// CreatePlanRequest 创建套餐
type CreatePlanRequest struct {
	Name          string          `json:"name" binding:"required,max=100"`
	Description   string          `json:"description"`
	Price         decimal.Decimal `json:"price"`
	Currency      string          `json:"currency" binding:"required,len=3"`
	DurationDays  int             `json:"duration_days" binding:"required,min=1"`
	ResponseLimit int             `json:"response_limit" binding:"required,min=1"`
}

// CreateAddonRequest 创建加量包
type CreateAddonRequest struct {
	Name                string          `json:"name" binding:"required,max=100"`
	Description         string          `json:"description"`
	Price               decimal.Decimal `json:"price"`
	Currency            string          `json:"currency" binding:"required,len=3"`
	AdditionalResponses int             `json:"additional_responses" binding:"required,min=1"`
}
