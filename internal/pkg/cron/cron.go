package cron

import (
	"context"
	"log"
	"time"
)

const reconcileBatchSize = 100

// Refresher 长期订阅月度额度刷新
type Refresher interface {
	RefreshYearlyCredits(ctx context.Context) (int, error)
}

// Reconciler 已完成未入账交易的补偿
type Reconciler interface {
	ReconcileUnapplied(ctx context.Context, limit int) (int, error)
}

type Service struct {
	refresher  Refresher
	reconciler Reconciler
	checkEvery time.Duration
	stopChan   chan struct{}
}

func NewService(refresher Refresher, reconciler Reconciler, checkHours int) *Service {
	if checkHours <= 0 {
		checkHours = 24
	}
	return &Service{
		refresher:  refresher,
		reconciler: reconciler,
		checkEvery: time.Duration(checkHours) * time.Hour,
		stopChan:   make(chan struct{}),
	}
}

// Start 启动定时任务
func (s *Service) Start() {
	go s.runCreditRefresh()
	go s.runReconcile()
	log.Println("Cron service started (credit refresh + payment reconcile)")
}

// Stop 停止定时任务
func (s *Service) Stop() {
	close(s.stopChan)
	log.Println("Cron service stopped")
}

// runCreditRefresh 首次在下一个 UTC 零点执行，之后按 checkEvery 间隔
func (s *Service) runCreditRefresh() {
	now := time.Now().UTC()
	timer := time.NewTimer(nextMidnight(now).Sub(now))

	for {
		select {
		case <-s.stopChan:
			timer.Stop()
			return
		case <-timer.C:
			s.refreshCredits()
			timer.Reset(s.checkEvery)
		}
	}
}

func (s *Service) refreshCredits() {
	if s.refresher == nil {
		return
	}
	log.Println("Starting yearly subscription credit refresh...")
	count, err := s.refresher.RefreshYearlyCredits(context.Background())
	if err != nil {
		log.Printf("Credit refresh finished with errors: %v", err)
	}
	log.Printf("Credit refresh completed: %d subscriptions refreshed", count)
}

// runReconcile 每小时补偿一次入账失败的交易
func (s *Service) runReconcile() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.reconcile()
		}
	}
}

func (s *Service) reconcile() {
	if s.reconciler == nil {
		return
	}
	count, err := s.reconciler.ReconcileUnapplied(context.Background(), reconcileBatchSize)
	if err != nil {
		log.Printf("Payment reconcile finished with errors: %v", err)
	}
	if count > 0 {
		log.Printf("Payment reconcile applied credits for %d payments", count)
	}
}

// RunNow 立即执行一次额度刷新（管理员手动触发）
func (s *Service) RunNow(ctx context.Context) (int, error) {
	log.Println("Manual credit refresh triggered...")
	return s.refresher.RefreshYearlyCredits(ctx)
}

func nextMidnight(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, time.UTC)
}
