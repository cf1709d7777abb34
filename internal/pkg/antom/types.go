package antom

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrTransport         = errors.New("antom gateway unreachable")
	ErrMalformedResponse = errors.New("antom gateway returned malformed response")
	ErrPaymentRejected   = errors.New("antom gateway rejected payment")
)

// 网关结果状态
const (
	StatusSuccess   = "S"
	StatusFailed    = "F"
	StatusUnknown   = "U"
	StatusCancelled = "C"
)

const (
	productCode      = "CASHIER_PAYMENT"
	terminalTypeWeb  = "WEB"
	defaultBuyerID   = "defaultBuyer"
	defaultClientIP  = "1.2.3.4"
	defaultOrderDesc = "EduSmart Payment"
)

// TransportError 网络错误、非 2xx 或无法解析的响应
type TransportError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("antom %s: http %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("antom %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() []error {
	return []error{ErrTransport, e.Err}
}

type Amount struct {
	Currency string `json:"currency"`
	Value    string `json:"value"`
}

// NewAmount 金额转为最小货币单位，四舍五入
func NewAmount(value decimal.Decimal, currency string) Amount {
	return Amount{Currency: currency, Value: MinorUnits(value)}
}

func MinorUnits(value decimal.Decimal) string {
	return value.Mul(decimal.NewFromInt(100)).Round(0).String()
}

type Result struct {
	ResultStatus  string `json:"resultStatus"`
	ResultCode    string `json:"resultCode"`
	ResultMessage string `json:"resultMessage,omitempty"`
}

func (r *Result) validate() error {
	switch r.ResultStatus {
	case StatusSuccess, StatusFailed, StatusUnknown, StatusCancelled:
	default:
		return fmt.Errorf("%w: resultStatus %q", ErrMalformedResponse, r.ResultStatus)
	}
	if r.ResultCode == "" {
		return fmt.Errorf("%w: missing resultCode", ErrMalformedResponse)
	}
	return nil
}

type payRequest struct {
	PaymentRequestID   string         `json:"paymentRequestId"`
	PaymentAmount      Amount         `json:"paymentAmount"`
	PaymentMethod      paymentMethod  `json:"paymentMethod"`
	Order              order          `json:"order"`
	Env                env            `json:"env"`
	ProductCode        string         `json:"productCode"`
	PaymentNotifyURL   string         `json:"paymentNotifyUrl"`
	PaymentRedirectURL string         `json:"paymentRedirectUrl"`
	PaymentFactor      *paymentFactor `json:"paymentFactor,omitempty"`
}

type paymentMethod struct {
	PaymentMethodType string `json:"paymentMethodType"`
}

type order struct {
	ReferenceOrderID string `json:"referenceOrderId"`
	OrderAmount      Amount `json:"orderAmount"`
	OrderDescription string `json:"orderDescription"`
	Buyer            buyer  `json:"buyer"`
}

type buyer struct {
	ReferenceBuyerID string `json:"referenceBuyerId"`
}

type env struct {
	TerminalType string `json:"terminalType"`
	ClientIP     string `json:"clientIp"`
}

type paymentFactor struct {
	IsAuthorization bool `json:"isAuthorization"`
}

type inquiryRequest struct {
	PaymentRequestID string `json:"paymentRequestId"`
}

type gatewayResponse struct {
	Result             *Result `json:"result"`
	PaymentID          string  `json:"paymentId,omitempty"`
	PaymentStatus      string  `json:"paymentStatus,omitempty"`
	NormalURL          string  `json:"normalUrl,omitempty"`
	RedirectActionForm *struct {
		RedirectURL string `json:"redirectUrl"`
	} `json:"redirectActionForm,omitempty"`
}

// CreatePaymentRequest 创建支付参数
type CreatePaymentRequest struct {
	Amount            decimal.Decimal
	Currency          string
	PaymentMethodType string
	OrderDescription  string
	BuyerID           string
	ClientIP          string
	NotifyURL         string
	RedirectURL       string
}

type CreatePaymentResult struct {
	PaymentRequestID string
	OrderID          string
	PaymentID        string
	CashierURL       string
	Result           Result
	Raw              []byte
}

type QueryPaymentResult struct {
	PaymentRequestID string
	PaymentID        string
	PaymentStatus    string
	Result           Result
	Raw              []byte
}

// Status 优先使用 paymentStatus，缺失时退回 result.resultStatus
func (q *QueryPaymentResult) Status() string {
	return ResolveStatus(q.PaymentStatus, q.Result)
}

type CancelPaymentResult struct {
	PaymentRequestID string
	Result           Result
	Raw              []byte
}

// Notification 支付结果回调
type Notification struct {
	NotifyType       string  `json:"notifyType,omitempty"`
	PaymentRequestID string  `json:"paymentRequestId"`
	PaymentID        string  `json:"paymentId,omitempty"`
	PaymentStatus    string  `json:"paymentStatus,omitempty"`
	Result           *Result `json:"result"`
}

func (n *Notification) Validate() error {
	if n.PaymentRequestID == "" {
		return fmt.Errorf("%w: missing paymentRequestId", ErrMalformedResponse)
	}
	switch n.Status() {
	case StatusSuccess, StatusFailed, StatusUnknown, StatusCancelled:
		return nil
	}
	return fmt.Errorf("%w: unrecognised payment status", ErrMalformedResponse)
}

func (n *Notification) Status() string {
	var r Result
	if n.Result != nil {
		r = *n.Result
	}
	return ResolveStatus(n.PaymentStatus, r)
}

// ResolveStatus 把 paymentStatus (SUCCESS/FAIL/PROCESSING/CANCELLED) 归一为 S/F/U/C
func ResolveStatus(paymentStatus string, result Result) string {
	switch paymentStatus {
	case "SUCCESS":
		return StatusSuccess
	case "FAIL":
		return StatusFailed
	case "PROCESSING", "INITIATED", "PENDING":
		return StatusUnknown
	case "CANCELLED":
		return StatusCancelled
	}
	return result.ResultStatus
}
