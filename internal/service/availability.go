package service

import (
	"context"

	"gorm.io/gorm"

	"github.com/Leganyst/studio-booking/internal/calendar"
	"github.com/Leganyst/studio-booking/internal/repository"
)

// AvailabilityIndex отвечает на вопрос "свободна ли комната в интервале".
type AvailabilityIndex struct {
	bookings repository.BookingRepository
}

func NewAvailabilityIndex(bookings repository.BookingRepository) *AvailabilityIndex {
	return &AvailabilityIndex{bookings: bookings}
}

func (a *AvailabilityIndex) WithTx(tx *gorm.DB) *AvailabilityIndex {
	return &AvailabilityIndex{bookings: a.bookings.WithTx(tx)}
}

// HasOverlap - есть ли неотменённая бронь комнаты, пересекающая tr.
func (a *AvailabilityIndex) HasOverlap(ctx context.Context, roomID string, tr calendar.TimeRange) (bool, error) {
	existing, err := a.bookings.ListActiveByRoomInRange(ctx, roomID, tr.Start, tr.End)
	if err != nil {
		return false, err
	}

	ranges := make([]calendar.TimeRange, 0, len(existing))
	for _, b := range existing {
		ranges = append(ranges, calendar.TimeRange{Start: b.StartAt, End: b.EndAt})
	}

	busy, _ := calendar.HasOverlap(tr, ranges)
	return busy, nil
}
