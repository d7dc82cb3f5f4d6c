package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed:
		return true
	}
	return false
}

// CanTransitionTo разрешает только pending -> paid | failed.
func (s PaymentStatus) CanTransitionTo(to PaymentStatus) bool {
	return s == PaymentStatusPending && (to == PaymentStatusPaid || to == PaymentStatusFailed)
}

type ReceiptStatus string

const (
	ReceiptStatusPending ReceiptStatus = "pending"
	ReceiptStatusPaid    ReceiptStatus = "paid"
	ReceiptStatusFailed  ReceiptStatus = "failed"
)

// payments - ровно один платёж на бронь.
type Payment struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	BookingID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`

	// Сумма в целых рупиях: часы * цена комнаты за час.
	TotalAmount int64 `gorm:"not null"`

	Status PaymentStatus `gorm:"column:payment_status;type:varchar(32);not null;index:idx_payments_status_expiry,priority:1"`

	Code       string    `gorm:"column:payment_code;type:varchar(16);not null;uniqueIndex"`
	CodeExpiry time.Time `gorm:"column:payment_code_expiry;not null;index:idx_payments_status_expiry,priority:2"`

	PaidAt *time.Time

	ReceiptPath   *string       `gorm:"type:varchar(512)"`
	ReceiptStatus ReceiptStatus `gorm:"type:varchar(32);not null"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	Booking *Booking `gorm:"foreignKey:BookingID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (p *Payment) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// CodeExpired - код недействителен начиная с момента CodeExpiry.
func (p *Payment) CodeExpired(now time.Time) bool {
	return !now.Before(p.CodeExpiry)
}
