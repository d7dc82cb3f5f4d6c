package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/Leganyst/studio-booking/internal/model"
)

type EventRepository interface {
	WithTx(tx *gorm.DB) EventRepository
	Create(ctx context.Context, event *model.Event) error
	ListByBooking(ctx context.Context, bookingID string) ([]model.Event, error)
}

type GormEventRepository struct {
	db *gorm.DB
}

func NewGormEventRepository(db *gorm.DB) *GormEventRepository {
	return &GormEventRepository{db: db}
}

func (r *GormEventRepository) WithTx(tx *gorm.DB) EventRepository {
	return &GormEventRepository{db: tx}
}

func (r *GormEventRepository) Create(ctx context.Context, event *model.Event) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *GormEventRepository) ListByBooking(ctx context.Context, bookingID string) ([]model.Event, error) {
	var events []model.Event
	err := r.db.WithContext(ctx).
		Where("booking_id = ?", bookingID).
		Order("created_at ASC").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}
