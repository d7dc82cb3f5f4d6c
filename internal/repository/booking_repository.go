package repository

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/Leganyst/studio-booking/internal/model"
)

type BookingRepository interface {
	WithTx(tx *gorm.DB) BookingRepository
	// Создать новое бронирование.
	Create(ctx context.Context, booking *model.Booking) error
	// Получить бронирование по ID.
	GetByID(ctx context.Context, id string) (*model.Booking, error)
	// Все бронирования; пустой срез, если их нет.
	List(ctx context.Context) ([]model.Booking, error)
	// Неотменённые брони комнаты, пересекающие [from, to).
	ListActiveByRoomInRange(ctx context.Context, roomID string, from, to time.Time) ([]model.Booking, error)
	// Перевести статус from -> to; false, если бронь уже не в статусе from.
	UpdateStatus(ctx context.Context, id string, from, to model.BookingStatus) (bool, error)
	// Поиск по подстроке имени клиента без учёта регистра.
	SearchByName(ctx context.Context, name string) ([]model.Booking, error)
	Delete(ctx context.Context, id string) (*model.Booking, error)
	DeleteAll(ctx context.Context) (int64, error)
}

// Реализация на GORM.
type GormBookingRepository struct {
	db *gorm.DB
}

func NewGormBookingRepository(db *gorm.DB) *GormBookingRepository {
	return &GormBookingRepository{db: db}
}

func (r *GormBookingRepository) WithTx(tx *gorm.DB) BookingRepository {
	return &GormBookingRepository{db: tx}
}

func (r *GormBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	return r.db.WithContext(ctx).Create(booking).Error
}

func (r *GormBookingRepository) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	var b model.Booking
	if err := r.db.WithContext(ctx).First(&b, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *GormBookingRepository) List(ctx context.Context) ([]model.Booking, error) {
	bookings := []model.Booking{}
	if err := r.db.WithContext(ctx).Order("start_at ASC").Find(&bookings).Error; err != nil {
		return nil, err
	}
	return bookings, nil
}

func (r *GormBookingRepository) ListActiveByRoomInRange(
	ctx context.Context,
	roomID string,
	from, to time.Time,
) ([]model.Booking, error) {
	var bookings []model.Booking
	err := r.db.WithContext(ctx).
		Model(&model.Booking{}).
		Where("room_id = ?", roomID).
		Where("status <> ?", model.BookingStatusCancelled).
		// Полуоткрытые интервалы: start < to AND end > from
		Where("start_at < ? AND end_at > ?", to.UTC(), from.UTC()).
		Order("start_at ASC").
		Find(&bookings).Error
	if err != nil {
		return nil, err
	}
	return bookings, nil
}

func (r *GormBookingRepository) UpdateStatus(
	ctx context.Context,
	id string,
	from, to model.BookingStatus,
) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Booking{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *GormBookingRepository) SearchByName(ctx context.Context, name string) ([]model.Booking, error) {
	bookings := []model.Booking{}
	pattern := "%" + strings.ToLower(escapeLike(name)) + "%"
	err := r.db.WithContext(ctx).
		Where("LOWER(customer_name) LIKE ? ESCAPE '\\'", pattern).
		Order("start_at ASC").
		Find(&bookings).Error
	if err != nil {
		return nil, err
	}
	return bookings, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)
	return r.Replace(s)
}

func (r *GormBookingRepository) Delete(ctx context.Context, id string) (*model.Booking, error) {
	b, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Delete(&model.Booking{}, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return b, nil
}

func (r *GormBookingRepository) DeleteAll(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).Where("1 = 1").Delete(&model.Booking{})
	return res.RowsAffected, res.Error
}
