package testutil

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Aadiprofessional/edusmart-server/internal/model"
)

// TestUser 创建测试用户
func TestUser(t *testing.T, db *gorm.DB, opts ...func(*model.User)) *model.User {
	t.Helper()

	user := &model.User{
		Email:        fmt.Sprintf("test_%d@example.com", time.Now().UnixNano()),
		PasswordHash: "$2a$10$abcdefghijklmnopqrstuvwxyz123456", // bcrypt hash placeholder
		Name:         fmt.Sprintf("testuser_%d", time.Now().UnixNano()%10000),
		Role:         model.RoleUser,
	}

	for _, opt := range opts {
		opt(user)
	}

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}

	return user
}

// WithEmail 设置邮箱
func WithEmail(email string) func(*model.User) {
	return func(u *model.User) {
		u.Email = email
	}
}

// WithPasswordHash 设置密码哈希
func WithPasswordHash(hash string) func(*model.User) {
	return func(u *model.User) {
		u.PasswordHash = hash
	}
}

// AsAdmin 管理员
func AsAdmin() func(*model.User) {
	return func(u *model.User) {
		u.Role = model.RoleAdmin
	}
}

// TestPlan 创建测试套餐（默认 30 天 100 次）
func TestPlan(t *testing.T, db *gorm.DB, opts ...func(*model.SubscriptionPlan)) *model.SubscriptionPlan {
	t.Helper()

	plan := &model.SubscriptionPlan{
		Name:          fmt.Sprintf("Plan %d", time.Now().UnixNano()%10000),
		Description:   "test plan",
		Price:         decimal.RequireFromString("9.99"),
		Currency:      "USD",
		DurationDays:  30,
		ResponseLimit: 100,
		IsActive:      true,
	}

	for _, opt := range opts {
		opt(plan)
	}
	wantActive := plan.IsActive

	if err := db.Create(plan).Error; err != nil {
		t.Fatalf("Failed to create test plan: %v", err)
	}

	// Create 会把 default:true 回填到 bool 零值，下架需显式更新
	if !wantActive {
		if err := db.Model(plan).Update("is_active", false).Error; err != nil {
			t.Fatalf("Failed to retire test plan: %v", err)
		}
		plan.IsActive = false
	}

	return plan
}

// WithPlanDuration 设置套餐天数
func WithPlanDuration(days int) func(*model.SubscriptionPlan) {
	return func(p *model.SubscriptionPlan) {
		p.DurationDays = days
	}
}

// WithPlanLimit 设置套餐额度
func WithPlanLimit(limit int) func(*model.SubscriptionPlan) {
	return func(p *model.SubscriptionPlan) {
		p.ResponseLimit = limit
	}
}

// WithPlanPrice 设置套餐价格
func WithPlanPrice(price string) func(*model.SubscriptionPlan) {
	return func(p *model.SubscriptionPlan) {
		p.Price = decimal.RequireFromString(price)
	}
}

// WithPlanInactive 已下架
func WithPlanInactive() func(*model.SubscriptionPlan) {
	return func(p *model.SubscriptionPlan) {
		p.IsActive = false
	}
}

// TestAddon 创建测试加量包（默认 50 次）
func TestAddon(t *testing.T, db *gorm.DB, opts ...func(*model.AddonPlan)) *model.AddonPlan {
	t.Helper()

	addon := &model.AddonPlan{
		Name:                fmt.Sprintf("Addon %d", time.Now().UnixNano()%10000),
		Price:               decimal.RequireFromString("4.99"),
		Currency:            "USD",
		AdditionalResponses: 50,
		IsActive:            true,
	}

	for _, opt := range opts {
		opt(addon)
	}
	wantActive := addon.IsActive

	if err := db.Create(addon).Error; err != nil {
		t.Fatalf("Failed to create test addon: %v", err)
	}

	if !wantActive {
		if err := db.Model(addon).Update("is_active", false).Error; err != nil {
			t.Fatalf("Failed to retire test addon: %v", err)
		}
		addon.IsActive = false
	}

	return addon
}

// WithAddonCredits 设置加量包额度
func WithAddonCredits(n int) func(*model.AddonPlan) {
	return func(a *model.AddonPlan) {
		a.AdditionalResponses = n
	}
}

// WithAddonInactive 已下架
func WithAddonInactive() func(*model.AddonPlan) {
	return func(a *model.AddonPlan) {
		a.IsActive = false
	}
}

// TestSubscription 创建测试订阅（默认有效期内、额度满）
func TestSubscription(t *testing.T, db *gorm.DB, userID int64, plan *model.SubscriptionPlan, opts ...func(*model.UserSubscription)) *model.UserSubscription {
	t.Helper()

	now := time.Now()
	sub := &model.UserSubscription{
		UserID:           userID,
		PlanID:           plan.ID,
		Status:           model.SubscriptionActive,
		StartDate:        now,
		EndDate:          now.AddDate(0, 0, plan.DurationDays),
		CreditsRemaining: plan.ResponseLimit,
		CreditsTotal:     plan.ResponseLimit,
	}

	for _, opt := range opts {
		opt(sub)
	}

	if err := db.Create(sub).Error; err != nil {
		t.Fatalf("Failed to create test subscription: %v", err)
	}

	return sub
}

// WithSubscriptionStatus 设置订阅状态
func WithSubscriptionStatus(status string) func(*model.UserSubscription) {
	return func(s *model.UserSubscription) {
		s.Status = status
	}
}

// WithSubscriptionPeriod 设置起止时间
func WithSubscriptionPeriod(start, end time.Time) func(*model.UserSubscription) {
	return func(s *model.UserSubscription) {
		s.StartDate = start
		s.EndDate = end
	}
}

// WithCreditsRemaining 设置剩余额度
func WithCreditsRemaining(n int) func(*model.UserSubscription) {
	return func(s *model.UserSubscription) {
		s.CreditsRemaining = n
	}
}

// WithLastRefresh 设置上次刷新时间
func WithLastRefresh(at time.Time) func(*model.UserSubscription) {
	return func(s *model.UserSubscription) {
		s.LastRefresh = &at
	}
}

// TestAddonGrant 创建测试加量包授予记录
func TestAddonGrant(t *testing.T, db *gorm.DB, sub *model.UserSubscription, addon *model.AddonPlan) *model.AddonGrant {
	t.Helper()

	grant := &model.AddonGrant{
		UserID:         sub.UserID,
		SubscriptionID: sub.ID,
		AddonID:        addon.ID,
		CreditsGranted: addon.AdditionalResponses,
		Status:         model.AddonActive,
	}

	if err := db.Create(grant).Error; err != nil {
		t.Fatalf("Failed to create test addon grant: %v", err)
	}

	return grant
}

// TestPayment 创建待支付交易
func TestPayment(t *testing.T, db *gorm.DB, userID int64, opts ...func(*model.PaymentTransaction)) *model.PaymentTransaction {
	t.Helper()

	txn := &model.PaymentTransaction{
		UserID:            userID,
		PaymentRequestID:  "REQUEST_" + uuid.NewString(),
		OrderID:           "ORDER_" + uuid.NewString(),
		Amount:            decimal.RequireFromString("9.99"),
		Currency:          "USD",
		PaymentMethodType: "GCASH",
		Status:            model.PaymentPending,
	}

	for _, opt := range opts {
		opt(txn)
	}

	if err := db.Create(txn).Error; err != nil {
		t.Fatalf("Failed to create test payment: %v", err)
	}

	return txn
}

// ForPlan 关联套餐
func ForPlan(plan *model.SubscriptionPlan) func(*model.PaymentTransaction) {
	return func(p *model.PaymentTransaction) {
		p.PlanID = &plan.ID
		p.Amount = plan.Price
		p.Currency = plan.Currency
	}
}

// ForAddon 关联加量包
func ForAddon(addon *model.AddonPlan) func(*model.PaymentTransaction) {
	return func(p *model.PaymentTransaction) {
		p.AddonID = &addon.ID
		p.Amount = addon.Price
		p.Currency = addon.Currency
	}
}

// WithPaymentStatus 设置交易状态
func WithPaymentStatus(status string) func(*model.PaymentTransaction) {
	return func(p *model.PaymentTransaction) {
		p.Status = status
	}
}

// WithPaymentRequestID 设置请求号
func WithPaymentRequestID(id string) func(*model.PaymentTransaction) {
	return func(p *model.PaymentTransaction) {
		p.PaymentRequestID = id
	}
}
