package service

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/Leganyst/studio-booking/internal/calendar"
	"github.com/Leganyst/studio-booking/internal/config"
	"github.com/Leganyst/studio-booking/internal/events"
	"github.com/Leganyst/studio-booking/internal/model"
	"github.com/Leganyst/studio-booking/internal/repository"
)

const (
	paymentCodeLength   = 8
	paymentCodeAttempts = 5
	paymentCodeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

const (
	msgBookingRetrieved = "Booking details retrieved successfully."
	msgBookingExpired   = "Your booking has been cancelled by the system due to expired payment."
)

// Repositories - набор хранилищ, с которыми работает ядро.
type Repositories struct {
	Rooms    repository.RoomRepository
	Bookings repository.BookingRepository
	Payments repository.PaymentRepository
	Events   repository.EventRepository
}

func NewGormRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Rooms:    repository.NewGormRoomRepository(db),
		Bookings: repository.NewGormBookingRepository(db),
		Payments: repository.NewGormPaymentRepository(db),
		Events:   repository.NewGormEventRepository(db),
	}
}

func (r Repositories) WithTx(tx *gorm.DB) Repositories {
	return Repositories{
		Rooms:    r.Rooms.WithTx(tx),
		Bookings: r.Bookings.WithTx(tx),
		Payments: r.Payments.WithTx(tx),
		Events:   r.Events.WithTx(tx),
	}
}

// BookingConfig - бизнес-параметры жизненного цикла брони.
type BookingConfig struct {
	PaymentCodeTTL       time.Duration
	MinLeadTime          time.Duration
	ExpiredConfirmPolicy string
}

func BookingConfigFrom(cfg *config.AppConfig) BookingConfig {
	return BookingConfig{
		PaymentCodeTTL:       cfg.PaymentCodeTTL,
		MinLeadTime:          cfg.MinLeadTime,
		ExpiredConfirmPolicy: cfg.ExpiredConfirmPolicy,
	}
}

// ReservationInput - запрос на бронь в локальном времени студии.
type ReservationInput struct {
	RoomID        string
	CustomerName  string
	CustomerPhone string
	Date          string
	StartTime     string
	EndTime       string
}

type Reservation struct {
	Booking *model.Booking
	Payment *model.Payment
}

type BookingDetails struct {
	Booking *model.Booking
	Payment *model.Payment
	Message string
	History []model.Event
}

// BookingEvent - тело доменного события в брокере.
type BookingEvent struct {
	BookingID     string    `json:"booking_id"`
	PaymentID     string    `json:"payment_id,omitempty"`
	RoomID        string    `json:"room_id,omitempty"`
	BookingStatus string    `json:"booking_status,omitempty"`
	PaymentStatus string    `json:"payment_status,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// BookingService координирует брони и платежи: создание пары, подтверждение оплаты,
// истечение кодов и удаление.
type BookingService struct {
	db           *gorm.DB
	repos        Repositories
	availability *AvailabilityIndex
	receipts     *ReceiptService
	publisher    events.Publisher

	clock calendar.Clock
	zone  *calendar.Zone
	cfg   BookingConfig
	log   *logrus.Entry

	tracer    trace.Tracer
	roomLocks roomLocks
}

func NewBookingService(
	db *gorm.DB,
	repos Repositories,
	receipts *ReceiptService,
	publisher events.Publisher,
	clock calendar.Clock,
	zone *calendar.Zone,
	cfg BookingConfig,
	log *logrus.Entry,
) *BookingService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &BookingService{
		db:           db,
		repos:        repos,
		availability: NewAvailabilityIndex(repos.Bookings),
		receipts:     receipts,
		publisher:    publisher,
		clock:        clock,
		zone:         zone,
		cfg:          cfg,
		log:          log,
		tracer:       otel.Tracer("studio-booking/service"),
	}
}

// CreateReservation проверяет запрос и атомарно создаёт бронь (waiting) и платёж (pending).
func (s *BookingService) CreateReservation(ctx context.Context, in ReservationInput) (_ *Reservation, err error) {
	ctx, span := s.tracer.Start(ctx, "BookingService.CreateReservation",
		trace.WithAttributes(attribute.String("room_id", in.RoomID)))
	defer func() { endSpan(span, err) }()

	if blank(in.RoomID, in.CustomerName, in.CustomerPhone, in.Date, in.StartTime, in.EndTime) {
		return nil, ErrMissingFields
	}

	start, err := s.zone.LocalToAbsolute(in.Date, in.StartTime)
	if err != nil {
		return nil, ErrInvalidDateTime
	}
	end, err := s.zone.LocalToAbsolute(in.Date, in.EndTime)
	if err != nil {
		return nil, ErrInvalidDateTime
	}
	civil, err := calendar.CivilDate(in.Date)
	if err != nil {
		return nil, ErrInvalidDateTime
	}

	now := s.clock.Now()
	date := civil.Format(calendar.DateLayout)
	today := s.zone.Today(now)
	if date < today {
		return nil, ErrPastDate
	}
	if date == today && start.Before(now.Add(s.cfg.MinLeadTime)) {
		return nil, ErrLeadTime
	}

	tr, err := calendar.NewTimeRange(start, end)
	if err != nil {
		return nil, ErrInvalidTimeRange
	}
	hours, ok := tr.WholeHours()
	if !ok {
		return nil, ErrPartialHour
	}

	roomID, err := uuid.Parse(strings.TrimSpace(in.RoomID))
	if err != nil {
		return nil, ErrRoomNotFound
	}

	unlock := s.roomLocks.lock(roomID.String())
	defer unlock()

	res := &Reservation{}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := s.repos.WithTx(tx)

		room, err := repos.Rooms.LockByID(ctx, roomID.String())
		if err != nil {
			return notFoundOr("lock room", err, ErrRoomNotFound)
		}

		busy, err := s.availability.WithTx(tx).HasOverlap(ctx, roomID.String(), tr)
		if err != nil {
			return transient("check overlap", err)
		}
		if busy {
			return ErrRoomOverlap
		}

		if room.PricePerHour <= 0 {
			s.log.WithFields(logrus.Fields{
				"room_id": room.ID,
				"price":   room.PricePerHour,
			}).Error("room has non-positive price")
			return ErrInvalidRoomPrice
		}
		total := hours * room.PricePerHour
		if total <= 0 || total/hours != room.PricePerHour {
			return ErrInvalidTotal
		}

		code, err := s.newPaymentCode(ctx, repos.Payments)
		if err != nil {
			return err
		}

		booking := &model.Booking{
			RoomID:        room.ID,
			CustomerName:  strings.TrimSpace(in.CustomerName),
			CustomerPhone: strings.TrimSpace(in.CustomerPhone),
			Date:          datatypes.Date(civil),
			StartAt:       start,
			EndAt:         end,
			Status:        model.BookingStatusWaiting,
		}
		if err := repos.Bookings.Create(ctx, booking); err != nil {
			return transient("create booking", err)
		}

		payment := &model.Payment{
			BookingID:     booking.ID,
			TotalAmount:   total,
			Status:        model.PaymentStatusPending,
			Code:          code,
			CodeExpiry:    now.Add(s.cfg.PaymentCodeTTL),
			ReceiptStatus: model.ReceiptStatusPending,
		}
		if err := repos.Payments.Create(ctx, payment); err != nil {
			return transient("create payment", err)
		}

		if err := s.recordEvent(ctx, repos.Events, model.EventTypeBookingCreated, booking.ID, &payment.ID, map[string]any{
			"room_id":      room.ID.String(),
			"total_amount": total,
			"code_expiry":  payment.CodeExpiry,
		}); err != nil {
			return err
		}

		res.Booking = booking
		res.Payment = payment
		return nil
	})
	if err != nil {
		return nil, classify("create reservation", err)
	}

	s.log.WithFields(logrus.Fields{
		"booking_id": res.Booking.ID,
		"payment_id": res.Payment.ID,
		"room_id":    roomID,
	}).Info("reservation created")

	s.publish(ctx, events.KeyBookingCreated, res.Booking, res.Payment)

	// Квитанция не влияет на успех брони.
	if _, err := s.receipts.Request(ctx, res.Booking.ID.String()); err != nil {
		s.log.WithError(err).WithField("booking_id", res.Booking.ID).Warn("request receipt")
	} else if p, err := s.repos.Payments.GetByID(ctx, res.Payment.ID.String()); err == nil {
		res.Payment = p
	}

	return res, nil
}

// ConfirmPayment сверяет код и сумму и переводит пару в (confirmed, paid).
func (s *BookingService) ConfirmPayment(ctx context.Context, code string, amount int64) (_ *model.Payment, err error) {
	ctx, span := s.tracer.Start(ctx, "BookingService.ConfirmPayment")
	defer func() { endSpan(span, err) }()

	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, ErrMissingFields
	}

	now := s.clock.Now()

	var (
		paid    *model.Payment
		expired *model.Payment
		booking *model.Booking
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := s.repos.WithTx(tx)

		p, err := repos.Payments.LockByCode(ctx, code)
		if err != nil {
			return notFoundOr("find payment", err, ErrPaymentCodeNotFound)
		}

		switch p.Status {
		case model.PaymentStatusPaid:
			return ErrAlreadyProcessed
		case model.PaymentStatusFailed:
			// Failed с действующим кодом бывает только после явной отмены брони.
			if !p.CodeExpired(now) {
				return ErrBookingFinalized
			}
			return ErrPaymentExpired
		}

		if p.CodeExpired(now) {
			b, err := s.expireInTx(ctx, repos, p, s.cfg.ExpiredConfirmPolicy)
			if err != nil {
				return err
			}
			expired, booking = p, b
			return nil
		}

		if amount != p.TotalAmount {
			return ErrAmountMismatch
		}

		ok, err := repos.Payments.MarkPaid(ctx, p.ID.String(), now)
		if err != nil {
			return transient("mark paid", err)
		}
		if !ok {
			return s.lostRace(ctx, repos.Payments, p.ID.String())
		}

		ok, err = repos.Bookings.UpdateStatus(ctx, p.BookingID.String(), model.BookingStatusWaiting, model.BookingStatusConfirmed)
		if err != nil {
			return transient("confirm booking", err)
		}
		if !ok {
			// Бронь уже отменена: оплату не принимаем, MarkPaid откатится.
			return ErrBookingFinalized
		}

		if err := s.recordEvent(ctx, repos.Events, model.EventTypePaymentConfirmed, p.BookingID, &p.ID, map[string]any{
			"amount": amount,
		}); err != nil {
			return err
		}

		if paid, err = repos.Payments.GetByID(ctx, p.ID.String()); err != nil {
			return transient("reload payment", err)
		}
		if booking, err = repos.Bookings.GetByID(ctx, p.BookingID.String()); err != nil {
			return transient("reload booking", err)
		}
		return nil
	})
	if err != nil {
		return nil, classify("confirm payment", err)
	}

	if expired != nil {
		s.afterExpire(ctx, expired, booking)
		return nil, ErrPaymentExpired
	}

	s.log.WithFields(logrus.Fields{
		"booking_id": paid.BookingID,
		"payment_id": paid.ID,
	}).Info("payment confirmed")

	s.publish(ctx, events.KeyBookingConfirmed, booking, paid)

	if _, err := s.receipts.Finalize(ctx, paid.ID.String()); err != nil {
		s.log.WithError(err).WithField("payment_id", paid.ID).Warn("finalize receipt")
	} else if p, err := s.repos.Payments.GetByID(ctx, paid.ID.String()); err == nil {
		paid = p
	}

	return paid, nil
}

// lostRace: CAS не прошёл, смотрим, кто нас опередил.
func (s *BookingService) lostRace(ctx context.Context, payments repository.PaymentRepository, id string) error {
	cur, err := payments.GetByID(ctx, id)
	if err != nil {
		return notFoundOr("reload payment", err, ErrPaymentCodeNotFound)
	}
	if cur.Status == model.PaymentStatusPaid {
		return ErrAlreadyProcessed
	}
	return ErrPaymentExpired
}

// expireInTx применяет политику истечения к платежу внутри транзакции.
func (s *BookingService) expireInTx(
	ctx context.Context,
	repos Repositories,
	p *model.Payment,
	policy string,
) (*model.Booking, error) {
	booking, err := repos.Bookings.GetByID(ctx, p.BookingID.String())
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, transient("get booking", err)
	}

	if policy == config.ExpiredPolicyPurge {
		if _, err := repos.Payments.Delete(ctx, p.ID.String()); err != nil {
			return nil, transient("delete payment", err)
		}
		if booking != nil {
			if _, err := repos.Bookings.Delete(ctx, booking.ID.String()); err != nil {
				return nil, transient("delete booking", err)
			}
		}
		return booking, s.recordEvent(ctx, repos.Events, model.EventTypeBookingDeleted, p.BookingID, &p.ID, map[string]any{
			"reason": "payment_expired",
		})
	}

	ok, err := repos.Payments.MarkFailed(ctx, p.ID.String())
	if err != nil {
		return nil, transient("mark failed", err)
	}
	if !ok {
		return nil, s.lostRace(ctx, repos.Payments, p.ID.String())
	}
	p.Status = model.PaymentStatusFailed
	p.ReceiptStatus = model.ReceiptStatusFailed

	if booking != nil {
		if _, err := repos.Bookings.UpdateStatus(ctx, booking.ID.String(), model.BookingStatusWaiting, model.BookingStatusCancelled); err != nil {
			return nil, transient("cancel booking", err)
		}
		booking.Status = model.BookingStatusCancelled
	}

	return booking, s.recordEvent(ctx, repos.Events, model.EventTypePaymentExpired, p.BookingID, &p.ID, map[string]any{
		"code_expiry": p.CodeExpiry,
	})
}

// afterExpire - побочные эффекты после коммита: файл квитанции и событие.
func (s *BookingService) afterExpire(ctx context.Context, p *model.Payment, booking *model.Booking) {
	keepRow := s.cfg.ExpiredConfirmPolicy != config.ExpiredPolicyPurge
	if err := s.receipts.Discard(ctx, p, keepRow); err != nil {
		s.log.WithError(err).WithField("payment_id", p.ID).Warn("discard receipt")
	}

	s.log.WithFields(logrus.Fields{
		"booking_id": p.BookingID,
		"payment_id": p.ID,
		"policy":     s.cfg.ExpiredConfirmPolicy,
	}).Info("payment expired")

	s.publish(ctx, events.KeyBookingExpired, booking, p)
}

// SweepExpired переводит все просроченные pending-платежи в failed, а брони в cancelled.
// Возвращает число обработанных платежей.
func (s *BookingService) SweepExpired(ctx context.Context, asOf time.Time) (_ int, err error) {
	ctx, span := s.tracer.Start(ctx, "BookingService.SweepExpired")
	defer func() { endSpan(span, err) }()

	stale, err := s.repos.Payments.ListPendingExpiredAsOf(ctx, asOf)
	if err != nil {
		return 0, transient("list expired payments", err)
	}

	processed := 0
	for i := range stale {
		p := &stale[i]
		if ctx.Err() != nil {
			return processed, ctx.Err()
		}

		var booking *model.Booking
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			b, err := s.expireInTx(ctx, s.repos.WithTx(tx), p, config.ExpiredPolicyMark)
			booking = b
			return err
		})
		if err != nil {
			if KindOf(err) == KindPayment {
				// Платёж уже обработан другим участником.
				continue
			}
			s.log.WithError(err).WithField("payment_id", p.ID).Warn("expire payment")
			continue
		}

		if err := s.receipts.Discard(ctx, p, true); err != nil {
			s.log.WithError(err).WithField("payment_id", p.ID).Warn("discard receipt")
		}
		s.publish(ctx, events.KeyBookingExpired, booking, p)
		processed++
	}

	if processed > 0 {
		s.log.WithField("count", processed).Info("expired payments swept")
	}
	return processed, nil
}

// CancelBooking - явная отмена ожидающей брони: (waiting, pending) -> (cancelled, failed).
func (s *BookingService) CancelBooking(ctx context.Context, bookingID string) (_ *model.Booking, err error) {
	ctx, span := s.tracer.Start(ctx, "BookingService.CancelBooking")
	defer func() { endSpan(span, err) }()

	if _, err := uuid.Parse(bookingID); err != nil {
		return nil, ErrBookingNotFound
	}

	var (
		booking *model.Booking
		payment *model.Payment
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := s.repos.WithTx(tx)

		b, err := repos.Bookings.GetByID(ctx, bookingID)
		if err != nil {
			return notFoundOr("get booking", err, ErrBookingNotFound)
		}
		if b.Status.Terminal() {
			return ErrBookingFinalized
		}

		ok, err := repos.Bookings.UpdateStatus(ctx, bookingID, model.BookingStatusWaiting, model.BookingStatusCancelled)
		if err != nil {
			return transient("cancel booking", err)
		}
		if !ok {
			return ErrBookingFinalized
		}
		b.Status = model.BookingStatusCancelled

		p, err := repos.Payments.FindByBooking(ctx, bookingID)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
		case err != nil:
			return transient("find payment", err)
		default:
			if _, err := repos.Payments.MarkFailed(ctx, p.ID.String()); err != nil {
				return transient("fail payment", err)
			}
			p.Status = model.PaymentStatusFailed
			payment = p
		}

		var paymentID *uuid.UUID
		if payment != nil {
			paymentID = &payment.ID
		}
		booking = b
		return s.recordEvent(ctx, repos.Events, model.EventTypeBookingCancelled, b.ID, paymentID, nil)
	})
	if err != nil {
		return nil, classify("cancel booking", err)
	}

	if payment != nil {
		if err := s.receipts.Discard(ctx, payment, true); err != nil {
			s.log.WithError(err).WithField("payment_id", payment.ID).Warn("discard receipt")
		}
	}
	s.publish(ctx, events.KeyBookingCancelled, booking, payment)
	return booking, nil
}

// DeleteBooking удаляет бронь вместе с её платежом и квитанцией.
func (s *BookingService) DeleteBooking(ctx context.Context, bookingID string) (err error) {
	ctx, span := s.tracer.Start(ctx, "BookingService.DeleteBooking")
	defer func() { endSpan(span, err) }()

	if _, err := uuid.Parse(bookingID); err != nil {
		return ErrBookingNotFound
	}

	var (
		booking *model.Booking
		payment *model.Payment
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := s.repos.WithTx(tx)

		b, err := repos.Bookings.GetByID(ctx, bookingID)
		if err != nil {
			return notFoundOr("get booking", err, ErrBookingNotFound)
		}
		p, err := repos.Payments.FindByBooking(ctx, bookingID)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
		case err != nil:
			return transient("find payment", err)
		default:
			if _, err := repos.Payments.Delete(ctx, p.ID.String()); err != nil {
				return transient("delete payment", err)
			}
			payment = p
		}
		if _, err := repos.Bookings.Delete(ctx, bookingID); err != nil {
			return transient("delete booking", err)
		}

		var paymentID *uuid.UUID
		if payment != nil {
			paymentID = &payment.ID
		}
		booking = b
		return s.recordEvent(ctx, repos.Events, model.EventTypeBookingDeleted, b.ID, paymentID, map[string]any{
			"status": b.Status,
		})
	})
	if err != nil {
		return classify("delete booking", err)
	}

	s.afterDelete(ctx, booking, payment)
	return nil
}

// DeletePayment удаляет платёж и связанную с ним бронь.
func (s *BookingService) DeletePayment(ctx context.Context, paymentID string) (err error) {
	ctx, span := s.tracer.Start(ctx, "BookingService.DeletePayment")
	defer func() { endSpan(span, err) }()

	if _, err := uuid.Parse(paymentID); err != nil {
		return ErrPaymentNotFound
	}

	var (
		booking *model.Booking
		payment *model.Payment
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := s.repos.WithTx(tx)

		p, err := repos.Payments.GetByID(ctx, paymentID)
		if err != nil {
			return notFoundOr("get payment", err, ErrPaymentNotFound)
		}
		if _, err := repos.Payments.Delete(ctx, paymentID); err != nil {
			return transient("delete payment", err)
		}
		b, err := repos.Bookings.Delete(ctx, p.BookingID.String())
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return transient("delete booking", err)
		}

		payment, booking = p, b
		return s.recordEvent(ctx, repos.Events, model.EventTypeBookingDeleted, p.BookingID, &p.ID, map[string]any{
			"payment_status": p.Status,
		})
	})
	if err != nil {
		return classify("delete payment", err)
	}

	s.afterDelete(ctx, booking, payment)
	return nil
}

func (s *BookingService) afterDelete(ctx context.Context, booking *model.Booking, payment *model.Payment) {
	if payment != nil {
		if err := s.receipts.Discard(ctx, payment, false); err != nil {
			s.log.WithError(err).WithField("payment_id", payment.ID).Warn("discard receipt")
		}
	}
	s.publish(ctx, events.KeyBookingDeleted, booking, payment)
}

// DeleteAllBookings - административный сброс: квитанции, платежи и брони.
func (s *BookingService) DeleteAllBookings(ctx context.Context) (int64, error) {
	bookings, _, err := s.deleteAll(ctx)
	return bookings, err
}

// DeleteAllPayments - то же, но отчитывается числом удалённых платежей.
func (s *BookingService) DeleteAllPayments(ctx context.Context) (int64, error) {
	_, payments, err := s.deleteAll(ctx)
	return payments, err
}

func (s *BookingService) deleteAll(ctx context.Context) (bookings, payments int64, err error) {
	ctx, span := s.tracer.Start(ctx, "BookingService.DeleteAll")
	defer func() { endSpan(span, err) }()

	files, err := s.receipts.PurgeAll(ctx)
	if err != nil {
		return 0, 0, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := s.repos.WithTx(tx)

		var err error
		if payments, err = repos.Payments.DeleteAll(ctx); err != nil {
			return transient("delete payments", err)
		}
		if bookings, err = repos.Bookings.DeleteAll(ctx); err != nil {
			return transient("delete bookings", err)
		}
		return s.recordEvent(ctx, repos.Events, model.EventTypeBookingDeleted, uuid.Nil, nil, map[string]any{
			"scope":    "all",
			"bookings": bookings,
			"payments": payments,
		})
	})
	if err != nil {
		return 0, 0, classify("delete all", err)
	}

	s.log.WithFields(logrus.Fields{
		"bookings": bookings,
		"payments": payments,
		"receipts": files,
	}).Info("all bookings deleted")
	return bookings, payments, nil
}

// GetBookingDetails возвращает бронь, её платёж, сообщение для клиента и журнал переходов.
func (s *BookingService) GetBookingDetails(ctx context.Context, bookingID string) (*BookingDetails, error) {
	if _, err := uuid.Parse(bookingID); err != nil {
		return nil, ErrBookingNotFound
	}

	booking, err := s.repos.Bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, notFoundOr("get booking", err, ErrBookingNotFound)
	}
	payment, err := s.repos.Payments.FindByBooking(ctx, bookingID)
	if err != nil {
		return nil, notFoundOr("find payment", err, ErrPaymentNotFound)
	}
	history, err := s.repos.Events.ListByBooking(ctx, bookingID)
	if err != nil {
		return nil, transient("list events", err)
	}

	msg := msgBookingRetrieved
	if payment.Status == model.PaymentStatusFailed {
		msg = msgBookingExpired
	}

	return &BookingDetails{
		Booking: booking,
		Payment: payment,
		Message: msg,
		History: history,
	}, nil
}

// ListBookings - все брони с датами в бизнес-таймзоне; пустой срез, если броней нет.
func (s *BookingService) ListBookings(ctx context.Context) ([]BookingView, error) {
	bookings, err := s.repos.Bookings.List(ctx)
	if err != nil {
		return nil, transient("list bookings", err)
	}

	views := make([]BookingView, 0, len(bookings))
	for i := range bookings {
		views = append(views, s.view(&bookings[i]))
	}
	return views, nil
}

// SearchBookings ищет брони по части имени клиента.
func (s *BookingService) SearchBookings(ctx context.Context, name string) ([]BookingView, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrMissingFields
	}
	bookings, err := s.repos.Bookings.SearchByName(ctx, name)
	if err != nil {
		return nil, transient("search bookings", err)
	}

	views := make([]BookingView, 0, len(bookings))
	for i := range bookings {
		views = append(views, s.view(&bookings[i]))
	}
	return views, nil
}

func (s *BookingService) ListPayments(ctx context.Context) ([]model.Payment, error) {
	payments, err := s.repos.Payments.List(ctx)
	if err != nil {
		return nil, transient("list payments", err)
	}
	return payments, nil
}

func (s *BookingService) ListRooms(ctx context.Context) ([]model.Room, error) {
	rooms, err := s.repos.Rooms.List(ctx)
	if err != nil {
		return nil, transient("list rooms", err)
	}
	return rooms, nil
}

// DownloadReceipt отдаёт квитанцию только оплаченного платежа.
func (s *BookingService) DownloadReceipt(ctx context.Context, paymentID string) ([]byte, error) {
	if _, err := uuid.Parse(paymentID); err != nil {
		return nil, ErrPaymentNotFound
	}

	payment, err := s.repos.Payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, notFoundOr("get payment", err, ErrPaymentNotFound)
	}
	if payment.Status != model.PaymentStatusPaid {
		return nil, ErrReceiptNotFound
	}
	return s.receipts.Open(ctx, payment)
}

func (s *BookingService) view(b *model.Booking) BookingView {
	return NewBookingView(b, s.zone)
}

// newPaymentCode генерирует уникальный код из 8 символов base36.
func (s *BookingService) newPaymentCode(ctx context.Context, payments repository.PaymentRepository) (string, error) {
	for i := 0; i < paymentCodeAttempts; i++ {
		code, err := randomCode(paymentCodeLength)
		if err != nil {
			return "", transient("generate payment code", err)
		}
		exists, err := payments.CodeExists(ctx, code)
		if err != nil {
			return "", transient("check payment code", err)
		}
		if !exists {
			return code, nil
		}
	}
	return "", transient("generate payment code", fmt.Errorf("no unique code after %d attempts", paymentCodeAttempts))
}

func randomCode(n int) (string, error) {
	out := make([]byte, 0, n)
	buf := make([]byte, n)
	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			// 252 = 7*36: отбрасываем хвост, чтобы символы были равновероятны.
			if b >= 252 {
				continue
			}
			out = append(out, paymentCodeAlphabet[b%36])
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}

func (s *BookingService) recordEvent(
	ctx context.Context,
	repo repository.EventRepository,
	typ model.EventType,
	bookingID uuid.UUID,
	paymentID *uuid.UUID,
	details map[string]any,
) error {
	ev := &model.Event{EventType: typ, PaymentID: paymentID}
	if bookingID != uuid.Nil {
		ev.BookingID = &bookingID
	}
	if details != nil {
		b, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("marshal event details: %w", err)
		}
		ev.Details = datatypes.JSON(b)
	}
	if err := repo.Create(ctx, ev); err != nil {
		return transient("record event", err)
	}
	return nil
}

// publish - best-effort: брокер недоступен, значит только предупреждение в лог.
func (s *BookingService) publish(ctx context.Context, key string, b *model.Booking, p *model.Payment) {
	ev := BookingEvent{OccurredAt: s.clock.Now()}
	if b != nil {
		ev.BookingID = b.ID.String()
		ev.RoomID = b.RoomID.String()
		ev.BookingStatus = string(b.Status)
	}
	if p != nil {
		ev.PaymentID = p.ID.String()
		ev.PaymentStatus = string(p.Status)
		if ev.BookingID == "" {
			ev.BookingID = p.BookingID.String()
		}
	}
	if err := s.publisher.PublishJSON(ctx, key, ev); err != nil {
		s.log.WithError(err).WithField("key", key).Warn("publish event")
	}
}

// classify оставляет доменные ошибки как есть, остальное считает временным сбоем.
func classify(op string, err error) error {
	if KindOf(err) != KindUnknown {
		return err
	}
	return transient(op, err)
}

func blank(values ...string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			return true
		}
	}
	return false
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// roomLocks - мьютекс на комнату поверх блокировки строки в БД.
type roomLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (l *roomLocks) lock(roomID string) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*sync.Mutex)
	}
	m, ok := l.locks[roomID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[roomID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
