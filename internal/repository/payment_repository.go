package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Leganyst/studio-booking/internal/model"
)

type PaymentRepository interface {
	WithTx(tx *gorm.DB) PaymentRepository
	Create(ctx context.Context, payment *model.Payment) error
	GetByID(ctx context.Context, id string) (*model.Payment, error)
	FindByCode(ctx context.Context, code string) (*model.Payment, error)
	// Найти платёж по коду с блокировкой строки до конца транзакции.
	LockByCode(ctx context.Context, code string) (*model.Payment, error)
	FindByBooking(ctx context.Context, bookingID string) (*model.Payment, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	List(ctx context.Context) ([]model.Payment, error)
	// Все pending-платежи с истёкшим кодом: payment_code_expiry <= asOf.
	ListPendingExpiredAsOf(ctx context.Context, asOf time.Time) ([]model.Payment, error)
	// Платежи, у которых сохранён путь к квитанции.
	ListWithReceipt(ctx context.Context) ([]model.Payment, error)
	// pending -> paid, только пока код ещё действует на момент now.
	MarkPaid(ctx context.Context, id string, now time.Time) (bool, error)
	// pending -> failed.
	MarkFailed(ctx context.Context, id string) (bool, error)
	SetReceipt(ctx context.Context, id string, path *string, status model.ReceiptStatus) error
	Delete(ctx context.Context, id string) (bool, error)
	DeleteAll(ctx context.Context) (int64, error)
}

type GormPaymentRepository struct {
	db *gorm.DB
}

func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

func (r *GormPaymentRepository) WithTx(tx *gorm.DB) PaymentRepository {
	return &GormPaymentRepository{db: tx}
}

func (r *GormPaymentRepository) Create(ctx context.Context, payment *model.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *GormPaymentRepository) GetByID(ctx context.Context, id string) (*model.Payment, error) {
	var p model.Payment
	if err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *GormPaymentRepository) FindByCode(ctx context.Context, code string) (*model.Payment, error) {
	var p model.Payment
	if err := r.db.WithContext(ctx).First(&p, "payment_code = ?", code).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *GormPaymentRepository) LockByCode(ctx context.Context, code string) (*model.Payment, error) {
	var p model.Payment
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&p, "payment_code = ?", code).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *GormPaymentRepository) FindByBooking(ctx context.Context, bookingID string) (*model.Payment, error) {
	var p model.Payment
	if err := r.db.WithContext(ctx).First(&p, "booking_id = ?", bookingID).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *GormPaymentRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.Payment{}).Where("payment_code = ?", code).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *GormPaymentRepository) List(ctx context.Context) ([]model.Payment, error) {
	payments := []model.Payment{}
	if err := r.db.WithContext(ctx).Order("created_at ASC").Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

func (r *GormPaymentRepository) ListPendingExpiredAsOf(ctx context.Context, asOf time.Time) ([]model.Payment, error) {
	var payments []model.Payment
	err := r.db.WithContext(ctx).
		Model(&model.Payment{}).
		Where("payment_status = ?", model.PaymentStatusPending).
		Where("payment_code_expiry <= ?", asOf.UTC()).
		Order("payment_code_expiry ASC").
		Find(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}

func (r *GormPaymentRepository) ListWithReceipt(ctx context.Context) ([]model.Payment, error) {
	var payments []model.Payment
	err := r.db.WithContext(ctx).
		Model(&model.Payment{}).
		Where("receipt_path IS NOT NULL").
		Find(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}

// MarkPaid: граница та же, что у Payment.CodeExpired; в момент expiry код уже не принимается.
func (r *GormPaymentRepository) MarkPaid(ctx context.Context, id string, now time.Time) (bool, error) {
	now = now.UTC()
	res := r.db.WithContext(ctx).
		Model(&model.Payment{}).
		Where("id = ? AND payment_status = ?", id, model.PaymentStatusPending).
		Where("payment_code_expiry > ?", now).
		Updates(map[string]any{
			"payment_status": model.PaymentStatusPaid,
			"receipt_status": model.ReceiptStatusPaid,
			"paid_at":        now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *GormPaymentRepository) MarkFailed(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Payment{}).
		Where("id = ? AND payment_status = ?", id, model.PaymentStatusPending).
		Updates(map[string]any{
			"payment_status": model.PaymentStatusFailed,
			"receipt_status": model.ReceiptStatusFailed,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *GormPaymentRepository) SetReceipt(
	ctx context.Context,
	id string,
	path *string,
	status model.ReceiptStatus,
) error {
	return r.db.WithContext(ctx).
		Model(&model.Payment{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"receipt_path":   path,
			"receipt_status": status,
		}).Error
}

func (r *GormPaymentRepository) Delete(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).Delete(&model.Payment{}, "id = ?", id)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *GormPaymentRepository) DeleteAll(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).Where("1 = 1").Delete(&model.Payment{})
	return res.RowsAffected, res.Error
}
