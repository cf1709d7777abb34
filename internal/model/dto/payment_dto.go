package dto

import (
	"github.com/shopspring/decimal"
)

// CreatePaymentRequest 创建支付请求，plan_id / addon_id 二选一
type CreatePaymentRequest struct {
	PlanID            *int64          `json:"plan_id,omitempty"`
	AddonID           *int64          `json:"addon_id,omitempty"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency" binding:"omitempty,len=3"`
	PaymentMethodType string          `json:"payment_method_type" binding:"required"`
	OrderDescription  string          `json:"order_description" binding:"max=256"`
}

// CreatePaymentResponse 创建支付响应
type CreatePaymentResponse struct {
	PaymentRequestID string `json:"payment_request_id"`
	OrderID          string `json:"order_id"`
	PaymentID        string `json:"payment_id,omitempty"`
	CashierURL       string `json:"cashier_url,omitempty"`
	Status           string `json:"status"`
}

// PaymentStatusResponse 支付状态
type PaymentStatusResponse struct {
	PaymentRequestID string          `json:"payment_request_id"`
	Status           string          `json:"status"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	ResultCode       string          `json:"result_code,omitempty"`
	CreditsApplied   bool            `json:"credits_applied"`
}

// PaymentListItem 支付记录
type PaymentListItem struct {
	ID                int64           `json:"id"`
	PaymentRequestID  string          `json:"payment_request_id"`
	OrderID           string          `json:"order_id"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	PaymentMethodType string          `json:"payment_method_type"`
	Status            string          `json:"status"`
	PlanName          string          `json:"plan_name,omitempty"`
	AddonName         string          `json:"addon_name,omitempty"`
	CreatedAt         string          `json:"created_at"`
}

// PaymentHistoryQuery 支付记录查询
type PaymentHistoryQuery struct {
	Page     int    `form:"page,default=1" binding:"min=1"`
	PageSize int    `form:"limit,default=10" binding:"min=1,max=100"`
	Status   string `form:"status" binding:"omitempty,oneof=pending completed failed cancelled"`
}

// PaymentMethodInfo 支付方式
type PaymentMethodInfo struct {
	Type     string `json:"type"`
	Name     string `json:"name"`
	Currency string `json:"currency"`
	Category string `json:"category"`
	Country  string `json:"country"`
}
