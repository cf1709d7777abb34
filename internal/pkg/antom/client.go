package antom

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

const (
	endpointPay     = "/payments/pay"
	endpointInquiry = "/payments/inquiryPayment"
	endpointCancel  = "/payments/cancel"
)

// Client Antom 收银台支付 API
type Client struct {
	http   *resty.Client
	signer *Signer
	cfg    *Config
	now    func() time.Time
}

func NewClient(cfg *Config) *Client {
	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json; charset=UTF-8")

	return &Client{
		http:   httpClient,
		signer: NewSigner(cfg),
		cfg:    cfg,
		now:    time.Now,
	}
}

func (c *Client) Signer() *Signer {
	return c.signer
}

// NewPaymentRequestID 时间前缀 + 随机后缀，同一毫秒内也不会重复
func NewPaymentRequestID(now time.Time) string {
	return newID("REQUEST", now)
}

func NewOrderID(now time.Time) string {
	return newID("ORDER", now)
}

func newID(prefix string, now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("%s_%d_%s", prefix, now.UnixMilli(), suffix)
}

// CreatePayment 创建收银台支付，网关返回 F 视为拒绝
func (c *Client) CreatePayment(ctx context.Context, req CreatePaymentRequest) (*CreatePaymentResult, error) {
	now := c.now()
	paymentRequestID := NewPaymentRequestID(now)
	orderID := NewOrderID(now)
	amount := NewAmount(req.Amount, req.Currency)

	body := payRequest{
		PaymentRequestID: paymentRequestID,
		PaymentAmount:    amount,
		PaymentMethod:    paymentMethod{PaymentMethodType: req.PaymentMethodType},
		Order: order{
			ReferenceOrderID: orderID,
			OrderAmount:      amount,
			OrderDescription: firstNonEmpty(req.OrderDescription, defaultOrderDesc),
			Buyer:            buyer{ReferenceBuyerID: firstNonEmpty(req.BuyerID, defaultBuyerID)},
		},
		Env: env{
			TerminalType: terminalTypeWeb,
			ClientIP:     firstNonEmpty(req.ClientIP, defaultClientIP),
		},
		ProductCode:        productCode,
		PaymentNotifyURL:   firstNonEmpty(req.NotifyURL, c.cfg.NotifyURL),
		PaymentRedirectURL: firstNonEmpty(req.RedirectURL, c.cfg.RedirectURL),
	}
	if IsCard(req.PaymentMethodType) {
		body.PaymentFactor = &paymentFactor{IsAuthorization: true}
	}

	log.Printf("Creating antom payment %s (%s %s via %s)", paymentRequestID, amount.Value, amount.Currency, req.PaymentMethodType)

	resp, raw, err := c.post(ctx, "pay", endpointPay, body)
	if err != nil {
		return nil, err
	}

	result := &CreatePaymentResult{
		PaymentRequestID: paymentRequestID,
		OrderID:          orderID,
		PaymentID:        resp.PaymentID,
		Result:           *resp.Result,
		Raw:              raw,
	}
	if resp.NormalURL != "" {
		result.CashierURL = resp.NormalURL
	} else if resp.RedirectActionForm != nil {
		result.CashierURL = resp.RedirectActionForm.RedirectURL
	}

	if resp.Result.ResultStatus == StatusFailed {
		return result, fmt.Errorf("%w: %s %s", ErrPaymentRejected, resp.Result.ResultCode, resp.Result.ResultMessage)
	}

	return result, nil
}

// QueryPayment 查询支付结果
func (c *Client) QueryPayment(ctx context.Context, paymentRequestID string) (*QueryPaymentResult, error) {
	resp, raw, err := c.post(ctx, "inquiry", endpointInquiry, inquiryRequest{PaymentRequestID: paymentRequestID})
	if err != nil {
		return nil, err
	}

	return &QueryPaymentResult{
		PaymentRequestID: paymentRequestID,
		PaymentID:        resp.PaymentID,
		PaymentStatus:    resp.PaymentStatus,
		Result:           *resp.Result,
		Raw:              raw,
	}, nil
}

// CancelPayment 取消未完成的支付
func (c *Client) CancelPayment(ctx context.Context, paymentRequestID string) (*CancelPaymentResult, error) {
	resp, raw, err := c.post(ctx, "cancel", endpointCancel, inquiryRequest{PaymentRequestID: paymentRequestID})
	if err != nil {
		return nil, err
	}

	return &CancelPaymentResult{
		PaymentRequestID: paymentRequestID,
		Result:           *resp.Result,
		Raw:              raw,
	}, nil
}

func (c *Client) post(ctx context.Context, op, endpoint string, payload interface{}) (*gatewayResponse, []byte, error) {
	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal %s request: %w", op, err)
	}
	body := string(bodyBytes)

	path := c.cfg.BasePath + endpoint
	requestTime := c.now().UTC().Format("2006-01-02T15:04:05.000Z")
	signature, err := c.signer.Sign("POST", path, body, requestTime)
	if err != nil {
		return nil, nil, err
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Client-Id", c.cfg.ClientID).
		SetHeader("Request-Time", requestTime).
		SetHeader("Signature", signature).
		SetBody(body).
		Post(path)
	if err != nil {
		return nil, nil, &TransportError{Op: op, Err: err}
	}

	raw := resp.Body()
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return nil, raw, &TransportError{Op: op, StatusCode: resp.StatusCode(), Err: errors.New(truncate(string(raw), 256))}
	}

	var parsed gatewayResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, raw, &TransportError{Op: op, StatusCode: resp.StatusCode(), Err: fmt.Errorf("invalid json: %w", err)}
	}
	if parsed.Result == nil {
		return nil, raw, fmt.Errorf("antom %s: %w: missing result", op, ErrMalformedResponse)
	}
	if err := parsed.Result.validate(); err != nil {
		return nil, raw, fmt.Errorf("antom %s: %w", op, err)
	}

	return &parsed, raw, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
