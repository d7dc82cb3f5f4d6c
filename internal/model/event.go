package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Тип события аудита.
type EventType string

const (
	EventTypeBookingCreated   EventType = "booking_created"
	EventTypePaymentConfirmed EventType = "payment_confirmed"
	EventTypeBookingCancelled EventType = "booking_cancelled"
	EventTypePaymentExpired   EventType = "payment_expired"
	EventTypeBookingDeleted   EventType = "booking_deleted"
)

// events - журнал переходов состояний брони/платежа.
type Event struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	EventType EventType `gorm:"type:varchar(64);not null;index"`

	CreatedAt time.Time `gorm:"not null;index"`

	// Без внешнего ключа: события переживают удаление брони.
	BookingID *uuid.UUID `gorm:"type:uuid;index"`
	PaymentID *uuid.UUID `gorm:"type:uuid;index"`

	Details datatypes.JSON `gorm:"type:jsonb"`
}

func (e *Event) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
