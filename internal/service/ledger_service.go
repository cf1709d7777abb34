package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/Aadiprofessional/edusmart-server/config"
	"github.com/Aadiprofessional/edusmart-server/internal/model"
	"github.com/Aadiprofessional/edusmart-server/internal/model/dto"
	"github.com/Aadiprofessional/edusmart-server/internal/repository"
)

var (
	ErrNoActiveSubscription = errors.New("no active subscription")
	ErrInsufficientCredits  = errors.New("insufficient responses remaining")
	ErrSubscriptionExpired  = errors.New("subscription has expired")
	ErrIntegrityViolation   = errors.New("user already has an active subscription")
	ErrInvalidCreditCount   = errors.New("responses used must be at least 1")
	ErrPaymentNotCompleted  = errors.New("payment is not completed")
)

const refreshDescription = "Monthly response refresh for yearly subscription"

// LedgerService 额度账本：订阅、加量包、消耗与月度刷新
type LedgerService struct {
	db          *gorm.DB
	userRepo    *repository.UserRepository
	planRepo    *repository.PlanRepository
	addonRepo   *repository.AddonRepository
	subRepo     *repository.SubscriptionRepository
	paymentRepo *repository.PaymentRepository
	usageRepo   *repository.UsageLogRepository
	cfg         *config.Config
	now         func() time.Time
}

func NewLedgerService(
	db *gorm.DB,
	userRepo *repository.UserRepository,
	planRepo *repository.PlanRepository,
	addonRepo *repository.AddonRepository,
	subRepo *repository.SubscriptionRepository,
	paymentRepo *repository.PaymentRepository,
	usageRepo *repository.UsageLogRepository,
	cfg *config.Config,
) *LedgerService {
	return &LedgerService{
		db:          db,
		userRepo:    userRepo,
		planRepo:    planRepo,
		addonRepo:   addonRepo,
		subRepo:     subRepo,
		paymentRepo: paymentRepo,
		usageRepo:   usageRepo,
		cfg:         cfg,
		now:         time.Now,
	}
}

// ledgerTx 一次事务内使用的仓储
type ledgerTx struct {
	users    *repository.UserRepository
	plans    *repository.PlanRepository
	addons   *repository.AddonRepository
	subs     *repository.SubscriptionRepository
	payments *repository.PaymentRepository
	usage    *repository.UsageLogRepository
}

func (s *LedgerService) inTx(ctx context.Context, fn func(r *ledgerTx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&ledgerTx{
			users:    s.userRepo.WithTx(tx),
			plans:    s.planRepo.WithTx(tx),
			addons:   s.addonRepo.WithTx(tx),
			subs:     s.subRepo.WithTx(tx),
			payments: s.paymentRepo.WithTx(tx),
			usage:    s.usageRepo.WithTx(tx),
		})
	})
}

// ApplyCompletedPayment 把已完成交易的额度记入账本，重复调用无副作用。
// 返回 false 表示此前已入账或交易不含套餐/加量包。
func (s *LedgerService) ApplyCompletedPayment(ctx context.Context, txn *model.PaymentTransaction) (bool, error) {
	if txn.Status != model.PaymentCompleted {
		return false, ErrPaymentNotCompleted
	}

	applied := false
	err := s.inTx(ctx, func(r *ledgerTx) error {
		now := s.now()

		claimed, err := r.payments.ClaimCreditApplication(txn.ID, now)
		if err != nil {
			return err
		}
		if !claimed {
			return nil
		}

		switch {
		case txn.PlanID != nil:
			err = s.applyPlan(r, txn, now)
		case txn.AddonID != nil:
			err = s.applyAddon(r, txn, now)
		default:
			return nil
		}
		if err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}

	if applied {
		log.Printf("Credits applied for payment %s (user %d)", txn.PaymentRequestID, txn.UserID)
	}
	return applied, nil
}

func (s *LedgerService) applyPlan(r *ledgerTx, txn *model.PaymentTransaction, now time.Time) error {
	if _, err := r.users.LockByID(txn.UserID); err != nil {
		return notFoundAs(err, ErrUserNotFound)
	}

	plan, err := r.plans.GetByID(*txn.PlanID)
	if err != nil {
		return notFoundAs(err, ErrPlanNotFound)
	}

	if _, err := r.subs.ExpireStale(txn.UserID, now); err != nil {
		return err
	}
	active, err := r.subs.CountActiveByUserID(txn.UserID)
	if err != nil {
		return err
	}
	if active > 0 {
		return ErrIntegrityViolation
	}

	sub := &model.UserSubscription{
		UserID:           txn.UserID,
		PlanID:           plan.ID,
		Status:           model.SubscriptionActive,
		StartDate:        now,
		EndDate:          now.AddDate(0, 0, plan.DurationDays),
		CreditsRemaining: plan.ResponseLimit,
		CreditsTotal:     plan.ResponseLimit,
	}
	if err := r.subs.Create(sub); err != nil {
		return err
	}

	return r.usage.Create(&model.UsageLog{
		UserID:         txn.UserID,
		SubscriptionID: sub.ID,
		Action:         model.UsageAdded,
		CreditsDelta:   plan.ResponseLimit,
		RemainingAfter: sub.CreditsRemaining,
		Description:    fmt.Sprintf("Subscription activated: %s", plan.Name),
		Metadata:       paymentMetadata(txn),
	})
}

// applyAddon 加量包只增加剩余额度，不计入 credits_total
func (s *LedgerService) applyAddon(r *ledgerTx, txn *model.PaymentTransaction, now time.Time) error {
	if _, err := r.users.LockByID(txn.UserID); err != nil {
		return notFoundAs(err, ErrUserNotFound)
	}

	addon, err := r.addons.GetByID(*txn.AddonID)
	if err != nil {
		return notFoundAs(err, ErrAddonNotFound)
	}

	if _, err := r.subs.ExpireStale(txn.UserID, now); err != nil {
		return err
	}
	sub, err := r.subs.GetActiveByUserID(txn.UserID)
	if err != nil {
		return notFoundAs(err, ErrNoActiveSubscription)
	}

	txnID := txn.ID
	grant := &model.AddonGrant{
		UserID:               txn.UserID,
		SubscriptionID:       sub.ID,
		AddonID:              addon.ID,
		PaymentTransactionID: &txnID,
		CreditsGranted:       addon.AdditionalResponses,
		Status:               model.AddonActive,
	}
	if err := r.addons.CreateGrant(grant); err != nil {
		return err
	}
	if err := r.subs.AddCredits(sub.ID, addon.AdditionalResponses); err != nil {
		return err
	}

	updated, err := r.subs.GetByID(sub.ID)
	if err != nil {
		return err
	}

	return r.usage.Create(&model.UsageLog{
		UserID:         txn.UserID,
		SubscriptionID: sub.ID,
		AddonGrantID:   &grant.ID,
		Action:         model.UsageAdded,
		CreditsDelta:   addon.AdditionalResponses,
		RemainingAfter: updated.CreditsRemaining,
		Description:    fmt.Sprintf("Addon purchased: %s", addon.Name),
		Metadata:       paymentMetadata(txn),
	})
}

// UseCredits 消耗额度。先判断过期再判断余额，余额不足时不做任何扣减
func (s *LedgerService) UseCredits(ctx context.Context, userID int64, count int, description string) (int, error) {
	if count < 1 {
		return 0, ErrInvalidCreditCount
	}

	remaining := 0
	expired := false
	err := s.inTx(ctx, func(r *ledgerTx) error {
		now := s.now()

		sub, err := r.subs.GetActiveByUserID(userID)
		if err != nil {
			return notFoundAs(err, ErrNoActiveSubscription)
		}

		if sub.IsExpiredAt(now) {
			// 过期状态需要提交，不能回滚
			expired = true
			_, err := r.subs.ExpireStale(userID, now)
			return err
		}

		ok, err := r.subs.DeductCredits(sub.ID, count, now)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInsufficientCredits
		}

		updated, err := r.subs.GetByID(sub.ID)
		if err != nil {
			return err
		}
		remaining = updated.CreditsRemaining

		return r.usage.Create(&model.UsageLog{
			UserID:         userID,
			SubscriptionID: sub.ID,
			Action:         model.UsageUsed,
			CreditsDelta:   -count,
			RemainingAfter: remaining,
			Description:    description,
		})
	})
	if err != nil {
		return 0, err
	}
	if expired {
		return 0, ErrSubscriptionExpired
	}
	return remaining, nil
}

// RefreshCandidates 当前需要月度刷新的订阅
func (s *LedgerService) RefreshCandidates(ctx context.Context) ([]*model.UserSubscription, error) {
	now := s.now()
	return s.subRepo.WithTx(s.db.WithContext(ctx)).
		ListRefreshCandidates(now, s.refreshCutoff(now), s.cfg.Ledger.RefreshMinDurationDays)
}

func (s *LedgerService) refreshCutoff(now time.Time) time.Time {
	days := s.cfg.Ledger.RefreshIntervalDays
	if days <= 0 {
		days = 30
	}
	return now.AddDate(0, 0, -days)
}

// RefreshYearlyCredits 长期订阅每 30 天重置额度并失效加量包，返回刷新数量
func (s *LedgerService) RefreshYearlyCredits(ctx context.Context) (int, error) {
	now := s.now()
	cutoff := s.refreshCutoff(now)

	expired, err := s.subRepo.WithTx(s.db.WithContext(ctx)).ExpireAllStale(now)
	if err != nil {
		return 0, err
	}
	if expired > 0 {
		log.Printf("Refresh: expired %d stale subscriptions", expired)
	}

	candidates, err := s.RefreshCandidates(ctx)
	if err != nil {
		return 0, err
	}

	refreshed := 0
	var errs []error
	for _, sub := range candidates {
		done, err := s.refreshOne(ctx, sub.ID, cutoff, now)
		if err != nil {
			log.Printf("Refresh: subscription %d failed: %v", sub.ID, err)
			errs = append(errs, fmt.Errorf("subscription %d: %w", sub.ID, err))
			continue
		}
		if done {
			refreshed++
		}
	}

	log.Printf("Refresh: %d of %d candidate subscriptions refreshed", refreshed, len(candidates))
	return refreshed, errors.Join(errs...)
}

func (s *LedgerService) refreshOne(ctx context.Context, subID int64, cutoff, now time.Time) (bool, error) {
	done := false
	err := s.inTx(ctx, func(r *ledgerTx) error {
		before, err := r.subs.GetByID(subID)
		if err != nil {
			return err
		}

		ok, err := r.subs.RefreshCredits(subID, cutoff, now)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		if _, err := r.addons.ExpireGrants(subID, now); err != nil {
			return err
		}

		done = true
		return r.usage.Create(&model.UsageLog{
			UserID:         before.UserID,
			SubscriptionID: subID,
			Action:         model.UsageRenewed,
			CreditsDelta:   before.CreditsTotal - before.CreditsRemaining,
			RemainingAfter: before.CreditsTotal,
			Description:    refreshDescription,
		})
	})
	return done, err
}

// GetSubscriptionStatus 读时惰性过期
func (s *LedgerService) GetSubscriptionStatus(ctx context.Context, userID int64) (*dto.SubscriptionStatusResponse, error) {
	subs := s.subRepo.WithTx(s.db.WithContext(ctx))
	if _, err := subs.ExpireStale(userID, s.now()); err != nil {
		return nil, err
	}

	resp := &dto.SubscriptionStatusResponse{Addons: []dto.AddonGrantInfo{}}

	sub, err := subs.GetActiveByUserID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return resp, nil
		}
		return nil, err
	}

	grants, err := s.addonRepo.ListActiveGrants(sub.ID)
	if err != nil {
		return nil, err
	}

	resp.HasSubscription = true
	resp.Subscription = buildSubscriptionInfo(sub)
	resp.ResponsesRemaining = sub.CreditsRemaining
	resp.ResponsesTotal = sub.CreditsTotal
	for _, g := range grants {
		resp.Addons = append(resp.Addons, buildAddonGrantInfo(g))
	}
	return resp, nil
}

// ListUsageLogs 用户额度流水
func (s *LedgerService) ListUsageLogs(userID int64, query *dto.UsageLogQuery) ([]dto.UsageLogItem, int64, error) {
	logs, total, err := s.usageRepo.ListByUserID(userID, query.Page, query.PageSize, query.Action)
	if err != nil {
		return nil, 0, err
	}

	items := make([]dto.UsageLogItem, 0, len(logs))
	for _, l := range logs {
		items = append(items, dto.UsageLogItem{
			ID:             l.ID,
			Action:         l.Action,
			CreditsDelta:   l.CreditsDelta,
			RemainingAfter: l.RemainingAfter,
			Description:    l.Description,
			CreatedAt:      l.CreatedAt.Format(time.RFC3339),
		})
	}
	return items, total, nil
}

// ListAllSubscriptions 管理员查看全部订阅
func (s *LedgerService) ListAllSubscriptions(query *dto.AdminSubscriptionQuery) ([]dto.SubscriptionInfo, int64, error) {
	subs, total, err := s.subRepo.ListAll(query.Page, query.PageSize, query.Status)
	if err != nil {
		return nil, 0, err
	}

	items := make([]dto.SubscriptionInfo, 0, len(subs))
	for _, sub := range subs {
		info := buildSubscriptionInfo(sub)
		info.UserID = sub.UserID
		items = append(items, *info)
	}
	return items, total, nil
}

func buildSubscriptionInfo(sub *model.UserSubscription) *dto.SubscriptionInfo {
	info := &dto.SubscriptionInfo{
		ID:               sub.ID,
		PlanID:           sub.PlanID,
		Status:           sub.Status,
		StartDate:        sub.StartDate.Format(time.RFC3339),
		EndDate:          sub.EndDate.Format(time.RFC3339),
		CreditsRemaining: sub.CreditsRemaining,
		CreditsTotal:     sub.CreditsTotal,
	}
	if sub.Plan != nil {
		info.PlanName = sub.Plan.Name
	}
	if sub.LastRefresh != nil {
		info.LastRefresh = sub.LastRefresh.Format(time.RFC3339)
	}
	return info
}

func buildAddonGrantInfo(g *model.AddonGrant) dto.AddonGrantInfo {
	info := dto.AddonGrantInfo{
		ID:             g.ID,
		AddonID:        g.AddonID,
		CreditsGranted: g.CreditsGranted,
		Status:         g.Status,
		CreatedAt:      g.CreatedAt.Format(time.RFC3339),
	}
	if g.Addon != nil {
		info.AddonName = g.Addon.Name
	}
	return info
}

func paymentMetadata(txn *model.PaymentTransaction) datatypes.JSON {
	data, _ := json.Marshal(map[string]interface{}{
		"payment_request_id": txn.PaymentRequestID,
		"transaction_id":     txn.ID,
	})
	return datatypes.JSON(data)
}

// notFoundAs 把 gorm 的未找到错误换成业务错误
func notFoundAs(err, target error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return target
	}
	return err
}
