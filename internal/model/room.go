package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RoomStatus string

const (
	RoomStatusAvailable   RoomStatus = "available"
	RoomStatusUnavailable RoomStatus = "unavailable"
)

// rooms - студийные комнаты. Ядро бронирования читает их только на чтение.
type Room struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	Name     string `gorm:"type:varchar(255);not null"`
	Category string `gorm:"type:varchar(64)"`
	Photo    string `gorm:"type:varchar(512)"`

	// Цена за час в целых рупиях.
	PricePerHour int64 `gorm:"not null"`

	Status RoomStatus `gorm:"type:varchar(32);not null;default:'available'"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (r *Room) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.Status == "" {
		r.Status = RoomStatusAvailable
	}
	return nil
}
