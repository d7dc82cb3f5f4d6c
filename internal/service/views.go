package service

import (
	"github.com/Leganyst/studio-booking/internal/calendar"
	"github.com/Leganyst/studio-booking/internal/model"
)

// BookingView - бронь с датами в бизнес-таймзоне.
type BookingView struct {
	ID            string `json:"id"`
	RoomID        string `json:"room_id"`
	CustomerName  string `json:"name"`
	CustomerPhone string `json:"phone_number"`
	Date          string `json:"date"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	Status        string `json:"status"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

type PaymentView struct {
	ID                string `json:"id"`
	BookingID         string `json:"booking_id"`
	TotalAmount       int64  `json:"total_amount"`
	PaymentStatus     string `json:"payment_status"`
	PaymentCode       string `json:"payment_code"`
	PaymentCodeExpiry string `json:"payment_code_expiry"`
	PaidAt            string `json:"paid_at,omitempty"`
	ReceiptPath       string `json:"receipt_path,omitempty"`
	ReceiptStatus     string `json:"receipt_status"`
	CreatedAt         string `json:"created_at"`
}

type EventView struct {
	EventType string `json:"event_type"`
	CreatedAt string `json:"created_at"`
}

type DetailsView struct {
	Message string      `json:"message"`
	Booking BookingView `json:"booking"`
	Payment PaymentView `json:"payment"`
	History []EventView `json:"history"`
}

type RoomView struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Category     string `json:"category"`
	Photo        string `json:"photo"`
	PricePerHour int64  `json:"price_per_hour"`
	Status       string `json:"status"`
}

func NewBookingView(b *model.Booking, zone *calendar.Zone) BookingView {
	date, _ := zone.AbsoluteToLocal(b.StartAt)
	return BookingView{
		ID:            b.ID.String(),
		RoomID:        b.RoomID.String(),
		CustomerName:  b.CustomerName,
		CustomerPhone: b.CustomerPhone,
		Date:          date,
		StartTime:     zone.FormatLocal(b.StartAt),
		EndTime:       zone.FormatLocal(b.EndAt),
		Status:        string(b.Status),
		CreatedAt:     zone.FormatLocal(b.CreatedAt),
		UpdatedAt:     zone.FormatLocal(b.UpdatedAt),
	}
}

func NewPaymentView(p *model.Payment, zone *calendar.Zone) PaymentView {
	v := PaymentView{
		ID:                p.ID.String(),
		BookingID:         p.BookingID.String(),
		TotalAmount:       p.TotalAmount,
		PaymentStatus:     string(p.Status),
		PaymentCode:       p.Code,
		PaymentCodeExpiry: zone.FormatLocal(p.CodeExpiry),
		ReceiptStatus:     string(p.ReceiptStatus),
		CreatedAt:         zone.FormatLocal(p.CreatedAt),
	}
	if p.PaidAt != nil {
		v.PaidAt = zone.FormatLocal(*p.PaidAt)
	}
	if p.ReceiptPath != nil {
		v.ReceiptPath = *p.ReceiptPath
	}
	return v
}

func NewPaymentViews(payments []model.Payment, zone *calendar.Zone) []PaymentView {
	out := make([]PaymentView, 0, len(payments))
	for i := range payments {
		out = append(out, NewPaymentView(&payments[i], zone))
	}
	return out
}

func NewDetailsView(d *BookingDetails, zone *calendar.Zone) DetailsView {
	history := make([]EventView, 0, len(d.History))
	for _, ev := range d.History {
		history = append(history, EventView{
			EventType: string(ev.EventType),
			CreatedAt: zone.FormatLocal(ev.CreatedAt),
		})
	}
	return DetailsView{
		Message: d.Message,
		Booking: NewBookingView(d.Booking, zone),
		Payment: NewPaymentView(d.Payment, zone),
		History: history,
	}
}

func NewRoomViews(rooms []model.Room) []RoomView {
	out := make([]RoomView, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, RoomView{
			ID:           r.ID.String(),
			Name:         r.Name,
			Category:     r.Category,
			Photo:        r.Photo,
			PricePerHour: r.PricePerHour,
			Status:       string(r.Status),
		})
	}
	return out
}
