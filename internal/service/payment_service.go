package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"gorm.io/datatypes"

	"github.com/Aadiprofessional/edusmart-server/config"
	"github.com/Aadiprofessional/edusmart-server/internal/model"
	"github.com/Aadiprofessional/edusmart-server/internal/model/dto"
	"github.com/Aadiprofessional/edusmart-server/internal/pkg/antom"
	"github.com/Aadiprofessional/edusmart-server/internal/pkg/pubsub"
	"github.com/Aadiprofessional/edusmart-server/internal/pkg/queue"
	"github.com/Aadiprofessional/edusmart-server/internal/repository"
)

var (
	ErrPaymentNotFound       = errors.New("payment not found")
	ErrSignatureInvalid      = errors.New("invalid notification signature")
	ErrPaymentNotPending     = errors.New("payment is no longer pending")
	ErrInvalidAmount         = errors.New("valid amount is required")
	ErrInvalidPaymentTarget  = errors.New("only one of plan_id and addon_id may be set")
	ErrUnsupportedMethod     = errors.New("unsupported payment method")
	ErrMalformedNotification = errors.New("malformed payment notification")
)

const defaultCurrency = "USD"

// Gateway 支付网关
type Gateway interface {
	CreatePayment(ctx context.Context, req antom.CreatePaymentRequest) (*antom.CreatePaymentResult, error)
	QueryPayment(ctx context.Context, paymentRequestID string) (*antom.QueryPaymentResult, error)
	CancelPayment(ctx context.Context, paymentRequestID string) (*antom.CancelPaymentResult, error)
}

// SignatureVerifier 回调验签
type SignatureVerifier interface {
	Verify(method, path, header, requestTime, body string) bool
}

type ReconcileQueue interface {
	Push(ctx context.Context, job *queue.ReconcileJob) error
}

type EventPublisher interface {
	PublishPayment(ctx context.Context, event *pubsub.PaymentEvent) error
}

// Notification 网关回调原始内容，验签必须使用原始 body
type Notification struct {
	Signature   string
	RequestTime string
	Body        []byte
}

// PaymentService 支付编排：pending -> completed / failed / cancelled
type PaymentService struct {
	userRepo    *repository.UserRepository
	paymentRepo *repository.PaymentRepository
	plans       *PlanService
	ledger      *LedgerService
	gateway     Gateway
	verifier    SignatureVerifier
	queue       ReconcileQueue
	publisher   EventPublisher
	cfg         *config.Config
	now         func() time.Time
}

func NewPaymentService(
	userRepo *repository.UserRepository,
	paymentRepo *repository.PaymentRepository,
	plans *PlanService,
	ledger *LedgerService,
	gateway Gateway,
	verifier SignatureVerifier,
	reconcileQueue ReconcileQueue,
	publisher EventPublisher,
	cfg *config.Config,
) *PaymentService {
	return &PaymentService{
		userRepo:    userRepo,
		paymentRepo: paymentRepo,
		plans:       plans,
		ledger:      ledger,
		gateway:     gateway,
		verifier:    verifier,
		queue:       reconcileQueue,
		publisher:   publisher,
		cfg:         cfg,
		now:         time.Now,
	}
}

// CreatePayment 调用网关创建支付，成功后才落库 pending 记录
func (s *PaymentService) CreatePayment(ctx context.Context, userID int64, req *dto.CreatePaymentRequest) (*dto.CreatePaymentResponse, error) {
	if req.PlanID != nil && req.AddonID != nil {
		return nil, ErrInvalidPaymentTarget
	}

	method := strings.ToUpper(strings.TrimSpace(req.PaymentMethodType))
	if _, ok := antom.LookupMethod(method); !ok && !antom.IsCard(method) {
		return nil, ErrUnsupportedMethod
	}

	if _, err := s.userRepo.GetByID(userID); err != nil {
		return nil, notFoundAs(err, ErrUserNotFound)
	}

	txn := &model.PaymentTransaction{
		UserID:            userID,
		PaymentMethodType: method,
		Status:            model.PaymentPending,
	}
	description := req.OrderDescription

	switch {
	case req.PlanID != nil:
		plan, err := s.plans.activePlan(*req.PlanID)
		if err != nil {
			return nil, err
		}
		txn.PlanID = &plan.ID
		txn.Amount = plan.Price
		txn.Currency = plan.Currency
		if description == "" {
			description = "Subscription: " + plan.Name
		}
	case req.AddonID != nil:
		addon, err := s.plans.activeAddon(*req.AddonID)
		if err != nil {
			return nil, err
		}
		txn.AddonID = &addon.ID
		txn.Amount = addon.Price
		txn.Currency = addon.Currency
		if description == "" {
			description = "Addon: " + addon.Name
		}
	default:
		if !req.Amount.IsPositive() {
			return nil, ErrInvalidAmount
		}
		txn.Amount = req.Amount.Round(2)
		txn.Currency = strings.ToUpper(req.Currency)
	}
	if txn.Currency == "" {
		txn.Currency = defaultCurrency
	}

	result, err := s.gateway.CreatePayment(ctx, antom.CreatePaymentRequest{
		Amount:            txn.Amount,
		Currency:          txn.Currency,
		PaymentMethodType: method,
		OrderDescription:  description,
		BuyerID:           fmt.Sprintf("%d", userID),
		NotifyURL:         s.cfg.Antom.NotifyURL,
		RedirectURL:       s.cfg.Antom.RedirectURL,
	})
	if err != nil {
		log.Printf("Create payment for user %d failed: %v", userID, err)
		return nil, fmt.Errorf("create payment: %w", err)
	}

	txn.PaymentRequestID = result.PaymentRequestID
	txn.OrderID = result.OrderID
	txn.ResultStatus = result.Result.ResultStatus
	txn.ResultCode = result.Result.ResultCode
	txn.PaymentData = rawJSON(result.Raw)

	if err := s.paymentRepo.Create(txn); err != nil {
		// 网关侧已创建，记录以便人工核对
		log.Printf("Failed to store payment %s for user %d: %v", result.PaymentRequestID, userID, err)
		return nil, err
	}

	log.Printf("Payment %s created for user %d (%s %s via %s)",
		txn.PaymentRequestID, userID, txn.Amount.StringFixed(2), txn.Currency, method)

	return &dto.CreatePaymentResponse{
		PaymentRequestID: txn.PaymentRequestID,
		OrderID:          txn.OrderID,
		PaymentID:        result.PaymentID,
		CashierURL:       result.CashierURL,
		Status:           txn.Status,
	}, nil
}

// QueryPaymentStatus 主动查询网关，终态只迁移一次
func (s *PaymentService) QueryPaymentStatus(ctx context.Context, userID int64, paymentRequestID string) (*dto.PaymentStatusResponse, error) {
	txn, err := s.ownedPayment(userID, paymentRequestID)
	if err != nil {
		return nil, err
	}

	if txn.IsTerminal() {
		// 已记录入账错误的交易由 worker 与定时对账重试
		if txn.Status == model.PaymentCompleted && txn.CreditsAppliedAt == nil && txn.LedgerError == "" {
			s.applyCredits(ctx, txn, "poll")
		}
		return buildPaymentStatus(txn), nil
	}

	result, err := s.gateway.QueryPayment(ctx, paymentRequestID)
	if err != nil {
		return nil, fmt.Errorf("query payment: %w", err)
	}

	fields := map[string]interface{}{
		"result_status": result.Result.ResultStatus,
		"result_code":   result.Result.ResultCode,
		"payment_data":  rawJSON(result.Raw),
	}
	if err := s.settle(ctx, txn, statusFromGateway(result.Status()), fields, "poll"); err != nil {
		return nil, err
	}
	txn.ResultCode = result.Result.ResultCode

	return buildPaymentStatus(txn), nil
}

// HandleNotification 处理网关回调：先验签，再按 paymentRequestId 迁移状态
func (s *PaymentService) HandleNotification(ctx context.Context, n *Notification) error {
	if !s.verifier.Verify(http.MethodPost, s.cfg.Antom.NotifyPath, n.Signature, n.RequestTime, string(n.Body)) {
		log.Printf("Security: rejected payment notification with invalid signature (request time %q)", n.RequestTime)
		return ErrSignatureInvalid
	}

	var notification antom.Notification
	if err := json.Unmarshal(n.Body, &notification); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedNotification, err)
	}
	if err := notification.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedNotification, err)
	}

	txn, err := s.paymentRepo.GetByRequestID(notification.PaymentRequestID)
	if err != nil {
		return notFoundAs(err, ErrPaymentNotFound)
	}

	fields := map[string]interface{}{
		"webhook_received_at": s.now(),
		"payment_data":        rawJSON(n.Body),
	}
	if notification.Result != nil {
		fields["result_status"] = notification.Result.ResultStatus
		fields["result_code"] = notification.Result.ResultCode
	}

	if txn.IsTerminal() {
		log.Printf("Duplicate notification for payment %s ignored (status %s)", txn.PaymentRequestID, txn.Status)
		return nil
	}

	return s.settle(ctx, txn, statusFromGateway(notification.Status()), fields, "webhook")
}

// CancelPayment 只允许取消 pending 交易
func (s *PaymentService) CancelPayment(ctx context.Context, userID int64, paymentRequestID string) (*dto.PaymentStatusResponse, error) {
	txn, err := s.ownedPayment(userID, paymentRequestID)
	if err != nil {
		return nil, err
	}
	if txn.IsTerminal() {
		return nil, ErrPaymentNotPending
	}

	result, err := s.gateway.CancelPayment(ctx, paymentRequestID)
	if err != nil {
		return nil, fmt.Errorf("cancel payment: %w", err)
	}
	if result.Result.ResultStatus != antom.StatusSuccess {
		return nil, fmt.Errorf("%w: cancel %s: %s", antom.ErrPaymentRejected, paymentRequestID, result.Result.ResultCode)
	}

	ok, err := s.paymentRepo.Transition(txn.ID, model.PaymentCancelled, map[string]interface{}{
		"result_status": antom.StatusCancelled,
		"result_code":   result.Result.ResultCode,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPaymentNotPending
	}

	txn.Status = model.PaymentCancelled
	txn.ResultCode = result.Result.ResultCode
	s.publish(ctx, txn, pubsub.EventPaymentCancelled, "cancel", "")
	log.Printf("Payment %s cancelled by user %d", paymentRequestID, userID)

	return buildPaymentStatus(txn), nil
}

// ListPayments 支付记录分页
func (s *PaymentService) ListPayments(userID int64, query *dto.PaymentHistoryQuery) ([]dto.PaymentListItem, int64, error) {
	txns, total, err := s.paymentRepo.ListByUserID(userID, query.Page, query.PageSize, query.Status)
	if err != nil {
		return nil, 0, err
	}

	items := make([]dto.PaymentListItem, 0, len(txns))
	for _, txn := range txns {
		item := dto.PaymentListItem{
			ID:                txn.ID,
			PaymentRequestID:  txn.PaymentRequestID,
			OrderID:           txn.OrderID,
			Amount:            txn.Amount,
			Currency:          txn.Currency,
			PaymentMethodType: txn.PaymentMethodType,
			Status:            txn.Status,
			CreatedAt:         txn.CreatedAt.Format(time.RFC3339),
		}
		if txn.Plan != nil {
			item.PlanName = txn.Plan.Name
		}
		if txn.Addon != nil {
			item.AddonName = txn.Addon.Name
		}
		items = append(items, item)
	}
	return items, total, nil
}

func (s *PaymentService) PaymentMethods() []dto.PaymentMethodInfo {
	methods := antom.Methods()
	list := make([]dto.PaymentMethodInfo, 0, len(methods))
	for _, m := range methods {
		list = append(list, dto.PaymentMethodInfo{
			Type:     m.Type,
			Name:     m.Name,
			Currency: m.Currency,
			Category: m.Category,
			Country:  m.Country,
		})
	}
	return list
}

// Reconcile 重试一笔已完成未入账的交易，返回错误时由调用方重新排队
func (s *PaymentService) Reconcile(ctx context.Context, transactionID int64) (bool, error) {
	txn, err := s.paymentRepo.GetByID(transactionID)
	if err != nil {
		return false, notFoundAs(err, ErrPaymentNotFound)
	}
	if txn.Status != model.PaymentCompleted || txn.CreditsAppliedAt != nil {
		return false, nil
	}

	applied, err := s.ledger.ApplyCompletedPayment(ctx, txn)
	if err != nil {
		if serr := s.paymentRepo.SetLedgerError(txn.ID, err.Error()); serr != nil {
			log.Printf("Failed to record ledger error for payment %s: %v", txn.PaymentRequestID, serr)
		}
		return false, err
	}
	if applied {
		s.publish(ctx, txn, pubsub.EventCreditsApplied, "reconcile", "")
	}
	return applied, nil
}

// ReconcileUnapplied 扫描已完成但未入账的交易
func (s *PaymentService) ReconcileUnapplied(ctx context.Context, limit int) (int, error) {
	txns, err := s.paymentRepo.ListUnapplied(limit)
	if err != nil {
		return 0, err
	}

	applied := 0
	var errs []error
	for _, txn := range txns {
		ok, err := s.Reconcile(ctx, txn.ID)
		if err != nil {
			errs = append(errs, fmt.Errorf("payment %s: %w", txn.PaymentRequestID, err))
			continue
		}
		if ok {
			applied++
		}
	}
	if len(txns) > 0 {
		log.Printf("Reconcile: %d of %d unapplied payments applied", applied, len(txns))
	}
	return applied, errors.Join(errs...)
}

// settle pending 交易迁移到 status；pending 时只记录网关结果
func (s *PaymentService) settle(ctx context.Context, txn *model.PaymentTransaction, status string, fields map[string]interface{}, source string) error {
	if status == model.PaymentPending {
		return s.paymentRepo.UpdateFields(txn.ID, fields)
	}

	ok, err := s.paymentRepo.Transition(txn.ID, status, fields)
	if err != nil {
		return err
	}
	if !ok {
		// 并发回调或轮询已完成迁移
		current, err := s.paymentRepo.GetByID(txn.ID)
		if err != nil {
			return err
		}
		*txn = *current
		return nil
	}

	txn.Status = status
	log.Printf("Payment %s transitioned to %s via %s", txn.PaymentRequestID, status, source)
	s.publish(ctx, txn, pubsub.EventTypeForStatus(status), source, "")

	if status == model.PaymentCompleted {
		s.applyCredits(ctx, txn, source)
	}
	return nil
}

// applyCredits 入账失败不影响交易终态，记录错误并排队重试
func (s *PaymentService) applyCredits(ctx context.Context, txn *model.PaymentTransaction, source string) {
	applied, err := s.ledger.ApplyCompletedPayment(ctx, txn)
	if err == nil {
		if applied {
			now := s.now()
			txn.CreditsAppliedAt = &now
			s.publish(ctx, txn, pubsub.EventCreditsApplied, source, "")
		}
		return
	}

	log.Printf("Failed to apply credits for payment %s: %v", txn.PaymentRequestID, err)
	txn.LedgerError = err.Error()
	if serr := s.paymentRepo.SetLedgerError(txn.ID, err.Error()); serr != nil {
		log.Printf("Failed to record ledger error for payment %s: %v", txn.PaymentRequestID, serr)
	}
	s.publish(ctx, txn, pubsub.EventTypeForStatus(txn.Status), source, err.Error())

	if s.queue == nil {
		return
	}
	if qerr := s.queue.Push(ctx, &queue.ReconcileJob{
		TransactionID:    txn.ID,
		PaymentRequestID: txn.PaymentRequestID,
		UserID:           txn.UserID,
		Attempt:          1,
		Reason:           err.Error(),
	}); qerr != nil {
		log.Printf("Failed to enqueue reconcile job for payment %s: %v", txn.PaymentRequestID, qerr)
	}
}

func (s *PaymentService) publish(ctx context.Context, txn *model.PaymentTransaction, eventType, source, errMsg string) {
	if s.publisher == nil || eventType == "" {
		return
	}
	if err := s.publisher.PublishPayment(ctx, &pubsub.PaymentEvent{
		Type:             eventType,
		UserID:           txn.UserID,
		PaymentRequestID: txn.PaymentRequestID,
		Status:           txn.Status,
		Source:           source,
		Error:            errMsg,
		OccurredAt:       s.now(),
	}); err != nil {
		log.Printf("Failed to publish %s for payment %s: %v", eventType, txn.PaymentRequestID, err)
	}
}

// ownedPayment 不属于当前用户的交易按不存在处理
func (s *PaymentService) ownedPayment(userID int64, paymentRequestID string) (*model.PaymentTransaction, error) {
	txn, err := s.paymentRepo.GetByRequestID(paymentRequestID)
	if err != nil {
		return nil, notFoundAs(err, ErrPaymentNotFound)
	}
	if txn.UserID != userID {
		return nil, ErrPaymentNotFound
	}
	return txn, nil
}

// statusFromGateway S/F/U/C 映射为交易状态
func statusFromGateway(status string) string {
	switch status {
	case antom.StatusSuccess:
		return model.PaymentCompleted
	case antom.StatusFailed:
		return model.PaymentFailed
	case antom.StatusCancelled:
		return model.PaymentCancelled
	}
	return model.PaymentPending
}

func buildPaymentStatus(txn *model.PaymentTransaction) *dto.PaymentStatusResponse {
	return &dto.PaymentStatusResponse{
		PaymentRequestID: txn.PaymentRequestID,
		Status:           txn.Status,
		Amount:           txn.Amount,
		Currency:         txn.Currency,
		ResultCode:       txn.ResultCode,
		CreditsApplied:   txn.CreditsAppliedAt != nil,
	}
}

func rawJSON(raw []byte) datatypes.JSON {
	if len(raw) == 0 || !json.Valid(raw) {
		return nil
	}
	return datatypes.JSON(raw)
}
