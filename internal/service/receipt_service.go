package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/Leganyst/studio-booking/internal/calendar"
	"github.com/Leganyst/studio-booking/internal/model"
	"github.com/Leganyst/studio-booking/internal/receipt"
	"github.com/Leganyst/studio-booking/internal/repository"
)

// ReceiptService следит, какая квитанция существует для какого платежа.
type ReceiptService struct {
	rooms    repository.RoomRepository
	bookings repository.BookingRepository
	payments repository.PaymentRepository

	renderer receipt.Renderer
	store    receipt.Store
	clock    calendar.Clock
	zone     *calendar.Zone
	log      *logrus.Entry
}

func NewReceiptService(
	repos Repositories,
	renderer receipt.Renderer,
	store receipt.Store,
	clock calendar.Clock,
	zone *calendar.Zone,
	log *logrus.Entry,
) *ReceiptService {
	return &ReceiptService{
		rooms:    repos.Rooms,
		bookings: repos.Bookings,
		payments: repos.Payments,
		renderer: renderer,
		store:    store,
		clock:    clock,
		zone:     zone,
		log:      log,
	}
}

// Request рендерит предварительную квитанцию для новой брони.
func (s *ReceiptService) Request(ctx context.Context, bookingID string) (string, error) {
	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return "", notFoundOr("get booking", err, ErrBookingNotFound)
	}
	payment, err := s.payments.FindByBooking(ctx, bookingID)
	if err != nil {
		return "", notFoundOr("find payment", err, ErrPaymentNotFound)
	}
	return s.render(ctx, booking, payment, model.ReceiptStatusPending)
}

// Finalize перерисовывает квитанцию оплаченного платежа и чистит мёртвые артефакты.
func (s *ReceiptService) Finalize(ctx context.Context, paymentID string) (string, error) {
	payment, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return "", notFoundOr("get payment", err, ErrPaymentNotFound)
	}
	booking, err := s.bookings.GetByID(ctx, payment.BookingID.String())
	if err != nil {
		return "", notFoundOr("get booking", err, ErrBookingNotFound)
	}

	path, err := s.render(ctx, booking, payment, model.ReceiptStatusPaid)
	if err != nil {
		return "", err
	}

	if err := s.purgeStale(ctx); err != nil {
		s.log.WithError(err).Warn("purge stale receipts")
	}
	return path, nil
}

// Discard удаляет файл квитанции платежа; отсутствие файла не ошибка.
func (s *ReceiptService) Discard(ctx context.Context, payment *model.Payment, keepRow bool) error {
	if payment.ReceiptPath == nil {
		return nil
	}
	if err := s.store.Delete(ctx, *payment.ReceiptPath); err != nil {
		return transient("delete receipt", err)
	}
	if !keepRow {
		return nil
	}
	if err := s.payments.SetReceipt(ctx, payment.ID.String(), nil, model.ReceiptStatusFailed); err != nil {
		return transient("clear receipt path", err)
	}
	return nil
}

// PurgeAll удаляет все файлы квитанций; вызывается перед массовым удалением платежей.
func (s *ReceiptService) PurgeAll(ctx context.Context) (int, error) {
	paths, err := s.store.List(ctx)
	if err != nil {
		return 0, transient("list receipts", err)
	}
	n := 0
	for _, p := range paths {
		if err := s.store.Delete(ctx, p); err != nil {
			s.log.WithError(err).WithField("path", p).Warn("delete receipt")
			continue
		}
		n++
	}
	return n, nil
}

// Open возвращает содержимое квитанции, перерисовывая её, если файл пропал.
func (s *ReceiptService) Open(ctx context.Context, payment *model.Payment) ([]byte, error) {
	if payment.ReceiptPath != nil {
		b, err := s.store.Get(ctx, *payment.ReceiptPath)
		if err == nil {
			return b, nil
		}
		if !errors.Is(err, receipt.ErrArtifactNotFound) {
			return nil, transient("read receipt", err)
		}
	}

	path, err := s.Finalize(ctx, payment.ID.String())
	if err != nil {
		return nil, err
	}
	b, err := s.store.Get(ctx, path)
	if err != nil {
		return nil, transient("read receipt", err)
	}
	return b, nil
}

func (s *ReceiptService) render(
	ctx context.Context,
	booking *model.Booking,
	payment *model.Payment,
	status model.ReceiptStatus,
) (string, error) {
	room, err := s.rooms.GetByID(ctx, booking.RoomID.String())
	if err != nil {
		return "", notFoundOr("get room", err, ErrRoomNotFound)
	}

	data := s.receiptData(booking, payment, room)
	doc, err := s.renderer.Render(data)
	if err != nil {
		return "", transient("render receipt", err)
	}

	path, err := s.store.Put(ctx, receipt.ArtifactName(payment.ID.String()), doc)
	if err != nil {
		return "", transient("store receipt", err)
	}
	if err := s.payments.SetReceipt(ctx, payment.ID.String(), &path, status); err != nil {
		return "", transient("save receipt path", err)
	}
	payment.ReceiptPath = &path
	payment.ReceiptStatus = status
	return path, nil
}

func (s *ReceiptService) receiptData(booking *model.Booking, payment *model.Payment, room *model.Room) receipt.Data {
	date, start := s.zone.AbsoluteToLocal(booking.StartAt)
	_, end := s.zone.AbsoluteToLocal(booking.EndAt)

	paidAt := ""
	if payment.PaidAt != nil {
		paidAt = s.zone.FormatLocal(*payment.PaidAt)
	}

	return receipt.Data{
		PaymentID:     payment.ID.String(),
		BookingID:     booking.ID.String(),
		CustomerName:  booking.CustomerName,
		CustomerPhone: booking.CustomerPhone,
		Date:          date,
		StartTime:     start,
		EndTime:       end,
		RoomName:      room.Name,
		PricePerHour:  room.PricePerHour,
		TotalAmount:   payment.TotalAmount,
		PaymentCode:   payment.Code,
		PaymentStatus: string(payment.Status),
		PaidAt:        paidAt,
	}
}

// purgeStale удаляет квитанции неживых платежей (failed или с истёкшим кодом)
// и файлы, для которых платежа больше нет.
func (s *ReceiptService) purgeStale(ctx context.Context) error {
	now := s.clock.Now()

	payments, err := s.payments.ListWithReceipt(ctx)
	if err != nil {
		return err
	}

	known := make(map[string]struct{}, len(payments))
	for i := range payments {
		p := &payments[i]
		known[p.ID.String()] = struct{}{}

		dead := p.Status == model.PaymentStatusFailed ||
			(p.Status == model.PaymentStatusPending && p.CodeExpired(now))
		if !dead {
			continue
		}
		if err := s.Discard(ctx, p, true); err != nil {
			s.log.WithError(err).WithField("payment_id", p.ID).Warn("discard stale receipt")
		}
	}

	paths, err := s.store.List(ctx)
	if err != nil {
		return err
	}
	for _, path := range paths {
		id, ok := receipt.PaymentIDFromPath(path)
		if !ok {
			continue
		}
		// Файл, на который не ссылается ни один платёж, - сирота.
		if _, live := known[id]; live {
			continue
		}
		// Платёж мог появиться после ListWithReceipt: файл уже записан, путь ещё нет.
		if _, err := uuid.Parse(id); err == nil {
			if _, err := s.payments.GetByID(ctx, id); !errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
		}
		if err := s.store.Delete(ctx, path); err != nil {
			s.log.WithError(err).WithField("path", path).Warn("delete orphan receipt")
		}
	}
	return nil
}
