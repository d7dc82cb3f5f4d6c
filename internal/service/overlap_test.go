package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/Leganyst/studio-booking/internal/calendar"
	"github.com/Leganyst/studio-booking/internal/config"
	"github.com/Leganyst/studio-booking/internal/model"
)

func TestBookingService_CreateReservation_RandomizedNoOverlap(t *testing.T) {
	f := newFixture(t, config.ExpiredPolicyMark)
	ctx := context.Background()
	zone := calendar.MustLoadZone("Asia/Jakarta")
	rnd := rand.New(rand.NewSource(20241201))

	// Следующий день: ограничение по времени до начала не мешает.
	const date = "2024-12-02"

	type accepted struct {
		bookingID string
		tr        calendar.TimeRange
	}
	var active []accepted

	ranges := func() []calendar.TimeRange {
		out := make([]calendar.TimeRange, 0, len(active))
		for _, a := range active {
			out = append(out, a.tr)
		}
		return out
	}

	for i := 0; i < 60; i++ {
		// Иногда отменяем принятую бронь, освобождая интервал.
		if len(active) > 0 && rnd.Intn(5) == 0 {
			k := rnd.Intn(len(active))
			if _, err := f.svc.CancelBooking(ctx, active[k].bookingID); err != nil {
				t.Fatalf("CancelBooking: %v", err)
			}
			active = append(active[:k], active[k+1:]...)
		}

		startHour := rnd.Intn(22)
		length := 1 + rnd.Intn(3)
		if startHour+length > 23 {
			length = 23 - startHour
		}
		in := f.input(fmt.Sprintf("%02d:00", startHour), fmt.Sprintf("%02d:00", startHour+length))
		in.Date = date

		start, err := zone.LocalToAbsolute(date, in.StartTime)
		if err != nil {
			t.Fatalf("LocalToAbsolute: %v", err)
		}
		end, err := zone.LocalToAbsolute(date, in.EndTime)
		if err != nil {
			t.Fatalf("LocalToAbsolute: %v", err)
		}
		tr, err := calendar.NewTimeRange(start, end)
		if err != nil {
			t.Fatalf("NewTimeRange: %v", err)
		}
		wantReject, _ := calendar.HasOverlap(tr, ranges())

		res, err := f.svc.CreateReservation(ctx, in)
		switch {
		case wantReject && !errors.Is(err, ErrRoomOverlap):
			t.Fatalf("step %d %s-%s: err = %v, want %v", i, in.StartTime, in.EndTime, err, ErrRoomOverlap)
		case !wantReject && err != nil:
			t.Fatalf("step %d %s-%s: unexpected err = %v", i, in.StartTime, in.EndTime, err)
		case err == nil:
			active = append(active, accepted{bookingID: res.Booking.ID.String(), tr: tr})
		}
	}

	bookings, err := f.svc.repos.Bookings.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var live []calendar.TimeRange
	for _, b := range bookings {
		if b.Status == model.BookingStatusCancelled {
			continue
		}
		tr := calendar.TimeRange{Start: b.StartAt, End: b.EndAt}
		if hit, conflicts := calendar.HasOverlap(tr, live); hit {
			t.Fatalf("booking %s [%v, %v) overlaps %v", b.ID, b.StartAt, b.EndAt, conflicts)
		}
		live = append(live, tr)
	}
	if len(live) != len(active) {
		t.Fatalf("live bookings = %d, want %d", len(live), len(active))
	}
}
