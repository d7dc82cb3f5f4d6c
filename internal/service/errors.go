package service

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Kind - категория ошибки ядра; транспорт отображает её в код ответа.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindConflict
	KindNotFound
	KindPayment
	KindTransient
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindPayment:
		return "payment"
	case KindTransient:
		return "transient"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Ошибки валидации входных данных.
var (
	ErrMissingFields    = errors.New("all fields are required")
	ErrInvalidDateTime  = errors.New("invalid date or time format")
	ErrPastDate         = errors.New("booking date cannot be in the past")
	ErrLeadTime         = errors.New("booking must be made at least 3 hours in advance")
	ErrInvalidTimeRange = errors.New("end time must be after start time")
	ErrPartialHour      = errors.New("booking duration must be in whole hours")
	ErrInvalidTotal     = errors.New("invalid total amount")
)

var ErrRoomOverlap = errors.New("room is already booked for the selected time")

var (
	ErrRoomNotFound        = errors.New("room not found")
	ErrBookingNotFound     = errors.New("booking not found")
	ErrPaymentNotFound     = errors.New("payment not found")
	ErrPaymentCodeNotFound = errors.New("payment code not found")
	ErrReceiptNotFound     = errors.New("receipt not found")
)

// Ошибки подтверждения оплаты.
var (
	ErrAlreadyProcessed = errors.New("payment already processed")
	ErrPaymentExpired   = errors.New("payment code has expired")
	ErrAmountMismatch   = errors.New("amount does not match")
	ErrBookingFinalized = errors.New("booking is already finalized")
)

// ErrInvalidRoomPrice - у комнаты неположительная цена; это ошибка данных, а не клиента.
var ErrInvalidRoomPrice = errors.New("room has invalid price per hour")

// ErrTransient оборачивает сбои хранилища, рендера и файлов.
var ErrTransient = errors.New("temporary failure")

var kinds = map[error]Kind{
	ErrMissingFields:       KindValidation,
	ErrInvalidDateTime:     KindValidation,
	ErrPastDate:            KindValidation,
	ErrLeadTime:            KindValidation,
	ErrInvalidTimeRange:    KindValidation,
	ErrPartialHour:         KindValidation,
	ErrInvalidTotal:        KindValidation,
	ErrRoomOverlap:         KindConflict,
	ErrRoomNotFound:        KindNotFound,
	ErrBookingNotFound:     KindNotFound,
	ErrPaymentNotFound:     KindNotFound,
	ErrPaymentCodeNotFound: KindNotFound,
	ErrReceiptNotFound:     KindNotFound,
	ErrAlreadyProcessed:    KindPayment,
	ErrPaymentExpired:      KindPayment,
	ErrAmountMismatch:      KindPayment,
	ErrBookingFinalized:    KindPayment,
	ErrSweepInProgress:     KindConflict,
	ErrInvalidRoomPrice:    KindFatal,
	ErrTransient:           KindTransient,
}

// KindOf классифицирует ошибку по первому известному sentinel в цепочке.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	for sentinel, k := range kinds {
		if sentinel == ErrTransient {
			continue
		}
		if errors.Is(err, sentinel) {
			return k
		}
	}
	if errors.Is(err, ErrTransient) {
		return KindTransient
	}
	return KindUnknown
}

func transient(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrTransient, op, err)
}

// notFoundOr превращает gorm.ErrRecordNotFound в доменную ошибку, остальное - в transient.
func notFoundOr(op string, err, notFound error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}
	return transient(op, err)
}
