package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/Aadiprofessional/edusmart-server/internal/pkg/queue"
	"github.com/Aadiprofessional/edusmart-server/internal/service"
)

const (
	DefaultMaxAttempts = 5
	baseBackoff        = 30 * time.Second
	maxBackoff         = 10 * time.Minute
)

// PaymentReconciler 重试入账
type PaymentReconciler interface {
	Reconcile(ctx context.Context, transactionID int64) (bool, error)
}

type JobQueue interface {
	Push(ctx context.Context, job *queue.ReconcileJob) error
}

// Reconciler 消费对账队列，失败按退避重新入队
type Reconciler struct {
	payments    PaymentReconciler
	queue       JobQueue
	maxAttempts int
	now         func() time.Time
}

func NewReconciler(payments PaymentReconciler, jobQueue JobQueue, maxAttempts int) *Reconciler {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Reconciler{
		payments:    payments,
		queue:       jobQueue,
		maxAttempts: maxAttempts,
		now:         time.Now,
	}
}

// Process 处理一条对账任务
func (r *Reconciler) Process(ctx context.Context, job *queue.ReconcileJob) error {
	if err := r.waitBackoff(ctx, job); err != nil {
		return err
	}

	applied, err := r.payments.Reconcile(ctx, job.TransactionID)
	if err == nil {
		if applied {
			log.Printf("Reconcile: credits applied for payment %s after %d attempts", job.PaymentRequestID, job.Attempt)
		}
		return nil
	}

	if errors.Is(err, service.ErrPaymentNotFound) {
		return fmt.Errorf("payment %d: %w", job.TransactionID, err)
	}

	if job.Attempt >= r.maxAttempts {
		log.Printf("Reconcile: giving up on payment %s after %d attempts: %v", job.PaymentRequestID, job.Attempt, err)
		return err
	}

	retry := *job
	retry.Attempt++
	retry.Reason = err.Error()
	retry.EnqueuedAt = r.now()
	if qerr := r.queue.Push(ctx, &retry); qerr != nil {
		return fmt.Errorf("requeue payment %s: %w", job.PaymentRequestID, qerr)
	}
	return err
}

// waitBackoff 距入队时间不足退避间隔时等待
func (r *Reconciler) waitBackoff(ctx context.Context, job *queue.ReconcileJob) error {
	wait := Backoff(job.Attempt) - r.now().Sub(job.EnqueuedAt)
	if wait <= 0 || job.Attempt <= 1 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Backoff 第 n 次重试前的等待时间
func Backoff(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}
	if attempt > 16 {
		return maxBackoff
	}
	d := baseBackoff << (attempt - 2)
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}
