package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/Aadiprofessional/edusmart-server/internal/model"
)

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) WithTx(tx *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: tx}
}

func (r *PaymentRepository) Create(txn *model.PaymentTransaction) error {
	return r.db.Create(txn).Error
}

func (r *PaymentRepository) GetByID(id int64) (*model.PaymentTransaction, error) {
	var txn model.PaymentTransaction
	err := r.db.Where("id = ?", id).First(&txn).Error
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *PaymentRepository) GetByRequestID(paymentRequestID string) (*model.PaymentTransaction, error) {
	var txn model.PaymentTransaction
	err := r.db.Where("payment_request_id = ?", paymentRequestID).First(&txn).Error
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

// Transition pending -> 终态的 CAS，只有影响一行的调用方负责后续入账
func (r *PaymentRepository) Transition(id int64, status string, fields map[string]interface{}) (bool, error) {
	updates := map[string]interface{}{"status": status}
	for k, v := range fields {
		updates[k] = v
	}
	result := r.db.Model(&model.PaymentTransaction{}).
		Where("id = ? AND status = ?", id, model.PaymentPending).
		Updates(updates)
	return result.RowsAffected == 1, result.Error
}

func (r *PaymentRepository) UpdateFields(id int64, fields map[string]interface{}) error {
	return r.db.Model(&model.PaymentTransaction{}).Where("id = ?", id).Updates(fields).Error
}

// ClaimCreditApplication 标记已入账，返回 false 表示此前已入账
func (r *PaymentRepository) ClaimCreditApplication(id int64, at time.Time) (bool, error) {
	result := r.db.Model(&model.PaymentTransaction{}).
		Where("id = ? AND status = ? AND credits_applied_at IS NULL", id, model.PaymentCompleted).
		Updates(map[string]interface{}{
			"credits_applied_at": at,
			"ledger_error":       "",
		})
	return result.RowsAffected == 1, result.Error
}

func (r *PaymentRepository) SetLedgerError(id int64, msg string) error {
	return r.db.Model(&model.PaymentTransaction{}).Where("id = ?", id).Update("ledger_error", msg).Error
}

// ListByUserID 用户支付记录
func (r *PaymentRepository) ListByUserID(userID int64, page, pageSize int, status string) ([]*model.PaymentTransaction, int64, error) {
	var txns []*model.PaymentTransaction
	var total int64

	query := r.db.Model(&model.PaymentTransaction{}).Where("user_id = ?", userID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	if err := query.Preload("Plan").Preload("Addon").
		Order("created_at DESC").Offset(offset).Limit(pageSize).Find(&txns).Error; err != nil {
		return nil, 0, err
	}

	return txns, total, nil
}

// ListUnapplied 已完成但尚未入账的交易，对账任务使用
func (r *PaymentRepository) ListUnapplied(limit int) ([]*model.PaymentTransaction, error) {
	var txns []*model.PaymentTransaction
	err := r.db.Where("status = ? AND credits_applied_at IS NULL", model.PaymentCompleted).
		Where("(plan_id IS NOT NULL OR addon_id IS NOT NULL)").
		Order("updated_at ASC").
		Limit(limit).
		Find(&txns).Error
	return txns, err
}
