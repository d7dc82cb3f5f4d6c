package model

import (
	"testing"
	"time"
)

func TestBookingStatus_Transitions(t *testing.T) {
	cases := []struct {
		from, to BookingStatus
		want     bool
	}{
		{BookingStatusWaiting, BookingStatusConfirmed, true},
		{BookingStatusWaiting, BookingStatusCancelled, true},
		{BookingStatusConfirmed, BookingStatusCancelled, false},
		{BookingStatusCancelled, BookingStatusConfirmed, false},
		{BookingStatusCancelled, BookingStatusWaiting, false},
		{BookingStatusWaiting, BookingStatusWaiting, false},
	}
	for _, c := range cases {
		if got := c.from.CanTransitionTo(c.to); got != c.want {
			t.Fatalf("%s -> %s = %v, want %v", c.from, c.to, got, c.want)
		}
	}
	if BookingStatus("Waiting").Valid() {
		t.Fatalf("unexpected valid status for capitalized value")
	}
}

func TestPaymentStatus_Transitions(t *testing.T) {
	if !PaymentStatusPending.CanTransitionTo(PaymentStatusPaid) {
		t.Fatalf("pending -> paid must be allowed")
	}
	if !PaymentStatusPending.CanTransitionTo(PaymentStatusFailed) {
		t.Fatalf("pending -> failed must be allowed")
	}
	if PaymentStatusPaid.CanTransitionTo(PaymentStatusFailed) {
		t.Fatalf("paid is terminal")
	}
	if PaymentStatusFailed.CanTransitionTo(PaymentStatusPaid) {
		t.Fatalf("failed is terminal")
	}
}

func TestPayment_CodeExpired(t *testing.T) {
	expiry := time.Date(2024, 12, 1, 3, 5, 0, 0, time.UTC)
	p := &Payment{CodeExpiry: expiry}

	if p.CodeExpired(expiry.Add(-time.Second)) {
		t.Fatalf("code must be valid before expiry")
	}
	if !p.CodeExpired(expiry) {
		t.Fatalf("code must be expired at expiry instant")
	}
}

func TestBooking_Hours(t *testing.T) {
	start := time.Date(2024, 12, 1, 3, 0, 0, 0, time.UTC)
	b := &Booking{StartAt: start, EndAt: start.Add(2 * time.Hour)}
	if b.Hours() != 2 {
		t.Fatalf("hours = %d, want 2", b.Hours())
	}
}
