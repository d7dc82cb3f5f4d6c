package service

import (
	"context"
	"testing"
	"time"

	"github.com/Leganyst/studio-booking/internal/config"
	"github.com/Leganyst/studio-booking/internal/model"
	"github.com/Leganyst/studio-booking/internal/repository"
)

// listHook вызывает afterList сразу после выборки просроченных платежей.
type listHook struct {
	repository.PaymentRepository
	afterList func()
}

func (h *listHook) ListPendingExpiredAsOf(ctx context.Context, asOf time.Time) ([]model.Payment, error) {
	out, err := h.PaymentRepository.ListPendingExpiredAsOf(ctx, asOf)
	if err == nil && h.afterList != nil {
		h.afterList()
		h.afterList = nil
	}
	return out, err
}

func TestBookingService_SweepExpired_ConfirmedMeanwhileStaysPaid(t *testing.T) {
	f := newFixture(t, config.ExpiredPolicyMark)
	ctx := context.Background()

	stale := f.reserve(t, "10:00", "11:00")
	racing := f.reserve(t, "11:00", "12:00")
	f.clock.Advance(time.Minute)

	f.svc.repos.Payments = &listHook{
		PaymentRepository: f.svc.repos.Payments,
		afterList: func() {
			if _, err := f.svc.ConfirmPayment(ctx, racing.Payment.Code, 100000); err != nil {
				t.Errorf("ConfirmPayment: %v", err)
			}
		},
	}

	// asOf позже срока обоих кодов: оба попадают в выборку.
	n, err := f.svc.SweepExpired(ctx, fixtureNow.Add(10*time.Minute))
	if err != nil {
		t.Fatalf("SweepExpired: %v", err)
	}
	if n != 1 {
		t.Fatalf("processed = %d, want 1", n)
	}

	d, err := f.svc.GetBookingDetails(ctx, racing.Booking.ID.String())
	if err != nil {
		t.Fatalf("GetBookingDetails: %v", err)
	}
	if d.Booking.Status != model.BookingStatusConfirmed || d.Payment.Status != model.PaymentStatusPaid {
		t.Fatalf("racing state = %s/%s, want confirmed/paid", d.Booking.Status, d.Payment.Status)
	}

	d, err = f.svc.GetBookingDetails(ctx, stale.Booking.ID.String())
	if err != nil {
		t.Fatalf("GetBookingDetails: %v", err)
	}
	if d.Booking.Status != model.BookingStatusCancelled || d.Payment.Status != model.PaymentStatusFailed {
		t.Fatalf("stale state = %s/%s, want cancelled/failed", d.Booking.Status, d.Payment.Status)
	}
}

func TestBookingService_SweepExpired_FailureDoesNotStopOthers(t *testing.T) {
	f := newFixture(t, config.ExpiredPolicyMark)
	ctx := context.Background()

	a := f.reserve(t, "10:00", "11:00")
	gone := f.reserve(t, "11:00", "12:00")
	b := f.reserve(t, "12:00", "13:00")
	f.clock.Advance(6 * time.Minute)

	f.svc.repos.Payments = &listHook{
		PaymentRepository: f.svc.repos.Payments,
		afterList: func() {
			if err := f.db.Delete(&model.Payment{}, "id = ?", gone.Payment.ID).Error; err != nil {
				t.Errorf("delete payment: %v", err)
			}
		},
	}

	n, err := f.svc.SweepExpired(ctx, f.clock.Now())
	if err != nil {
		t.Fatalf("SweepExpired: %v", err)
	}
	if n != 2 {
		t.Fatalf("processed = %d, want 2", n)
	}

	for _, res := range []*Reservation{a, b} {
		d, err := f.svc.GetBookingDetails(ctx, res.Booking.ID.String())
		if err != nil {
			t.Fatalf("GetBookingDetails: %v", err)
		}
		if d.Booking.Status != model.BookingStatusCancelled || d.Payment.Status != model.PaymentStatusFailed {
			t.Fatalf("state = %s/%s, want cancelled/failed", d.Booking.Status, d.Payment.Status)
		}
	}
}
