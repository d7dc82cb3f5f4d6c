package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type BookingStatus string

const (
	BookingStatusWaiting   BookingStatus = "waiting"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingStatusWaiting, BookingStatusConfirmed, BookingStatusCancelled:
		return true
	}
	return false
}

// Terminal - из confirmed и cancelled переходов нет.
func (s BookingStatus) Terminal() bool {
	return s == BookingStatusConfirmed || s == BookingStatusCancelled
}

// CanTransitionTo разрешает только waiting -> confirmed | cancelled.
func (s BookingStatus) CanTransitionTo(to BookingStatus) bool {
	return s == BookingStatusWaiting && (to == BookingStatusConfirmed || to == BookingStatusCancelled)
}

// bookings
type Booking struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey"`
	RoomID uuid.UUID `gorm:"type:uuid;not null;index:idx_bookings_room_interval,priority:1"`

	CustomerName  string `gorm:"type:varchar(255);not null"`
	CustomerPhone string `gorm:"type:varchar(32);not null"`

	// Календарная дата в бизнес-таймзоне (без времени).
	Date datatypes.Date `gorm:"type:date;not null"`

	// Абсолютные границы интервала [StartAt, EndAt) в UTC.
	StartAt time.Time `gorm:"not null;index:idx_bookings_room_interval,priority:2"`
	EndAt   time.Time `gorm:"not null;index:idx_bookings_room_interval,priority:3"`

	Status BookingStatus `gorm:"type:varchar(32);not null;index"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	Room *Room `gorm:"foreignKey:RoomID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

func (b *Booking) BeforeCreate(*gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// Hours - длительность брони в целых часах.
func (b *Booking) Hours() int64 {
	return int64(b.EndAt.Sub(b.StartAt) / time.Hour)
}
