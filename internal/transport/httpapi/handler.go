package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Leganyst/studio-booking/internal/calendar"
	"github.com/Leganyst/studio-booking/internal/model"
	"github.com/Leganyst/studio-booking/internal/service"
)

// BookingAPI - операции ядра, доступные по HTTP.
type BookingAPI interface {
	CreateReservation(ctx context.Context, in service.ReservationInput) (*service.Reservation, error)
	ConfirmPayment(ctx context.Context, code string, amount int64) (*model.Payment, error)
	GetBookingDetails(ctx context.Context, bookingID string) (*service.BookingDetails, error)
	ListBookings(ctx context.Context) ([]service.BookingView, error)
	SearchBookings(ctx context.Context, name string) ([]service.BookingView, error)
	CancelBooking(ctx context.Context, bookingID string) (*model.Booking, error)
	DeleteBooking(ctx context.Context, bookingID string) error
	DeleteAllBookings(ctx context.Context) (int64, error)
	ListPayments(ctx context.Context) ([]model.Payment, error)
	DeletePayment(ctx context.Context, paymentID string) error
	DeleteAllPayments(ctx context.Context) (int64, error)
	DownloadReceipt(ctx context.Context, paymentID string) ([]byte, error)
	ListRooms(ctx context.Context) ([]model.Room, error)
}

type SweepTrigger interface {
	Tick(ctx context.Context) (int, error)
}

type Handler struct {
	svc     BookingAPI
	sweeper SweepTrigger
	zone    *calendar.Zone
	log     *logrus.Entry
}

func NewHandler(svc BookingAPI, sweeper SweepTrigger, zone *calendar.Zone, log *logrus.Entry) *Handler {
	return &Handler{svc: svc, sweeper: sweeper, zone: zone, log: log}
}

// POST /api/booking
func (h *Handler) CreateBooking(c *gin.Context) {
	var in struct {
		RoomID      string `json:"room_id"`
		Name        string `json:"name"`
		PhoneNumber string `json:"phone_number"`
		Date        string `json:"date"`
		StartTime   string `json:"start_time"`
		EndTime     string `json:"end_time"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request body", "error": err.Error()})
		return
	}

	res, err := h.svc.CreateReservation(c.Request.Context(), service.ReservationInput{
		RoomID:        in.RoomID,
		CustomerName:  in.Name,
		CustomerPhone: in.PhoneNumber,
		Date:          in.Date,
		StartTime:     in.StartTime,
		EndTime:       in.EndTime,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "Booking created successfully",
		"booking": service.NewBookingView(res.Booking, h.zone),
		"payment": service.NewPaymentView(res.Payment, h.zone),
	})
}

// GET /api/booking?page=&page_size=
func (h *Handler) ListBookings(c *gin.Context) {
	views, err := h.svc.ListBookings(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}

	if c.Query("page") == "" && c.Query("page_size") == "" {
		c.JSON(http.StatusOK, views)
		return
	}
	page, _ := strconv.Atoi(c.Query("page"))
	size, _ := strconv.Atoi(c.Query("page_size"))
	c.JSON(http.StatusOK, calendar.Paginate(views, page, size))
}

// GET /api/booking/search?name= (admin)
func (h *Handler) SearchBookings(c *gin.Context) {
	views, err := h.svc.SearchBookings(c.Request.Context(), c.Query("name"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

// GET /api/booking/:id
func (h *Handler) GetBookingDetails(c *gin.Context) {
	d, err := h.svc.GetBookingDetails(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, service.NewDetailsView(d, h.zone))
}

// POST /api/booking/:id/cancel (admin)
func (h *Handler) CancelBooking(c *gin.Context) {
	b, err := h.svc.CancelBooking(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Booking cancelled successfully",
		"booking": service.NewBookingView(b, h.zone),
	})
}

// DELETE /api/booking/:id (admin)
func (h *Handler) DeleteBooking(c *gin.Context) {
	if err := h.svc.DeleteBooking(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Booking deleted successfully"})
}

// DELETE /api/booking (admin)
func (h *Handler) DeleteAllBookings(c *gin.Context) {
	n, err := h.svc.DeleteAllBookings(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "All bookings deleted successfully", "deleted_count": n})
}

// PUT /api/payment
func (h *Handler) ProcessPayment(c *gin.Context) {
	var in struct {
		PaymentCode string      `json:"payment_code"`
		Amount      json.Number `json:"amount"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request body", "error": err.Error()})
		return
	}
	amount, ok := wholeAmount(in.Amount)
	if in.PaymentCode == "" || !ok {
		c.JSON(http.StatusBadRequest, gin.H{"message": "payment_code and a whole amount are required"})
		return
	}

	p, err := h.svc.ConfirmPayment(c.Request.Context(), in.PaymentCode, amount)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Payment processed successfully",
		"payment": service.NewPaymentView(p, h.zone),
	})
}

// GET /api/payment
func (h *Handler) ListPayments(c *gin.Context) {
	payments, err := h.svc.ListPayments(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, service.NewPaymentViews(payments, h.zone))
}

// GET /api/payment/receipt/:paymentId
func (h *Handler) DownloadReceipt(c *gin.Context) {
	id := c.Param("paymentId")
	doc, err := h.svc.DownloadReceipt(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="receipt-`+id+`.pdf"`)
	c.Data(http.StatusOK, "application/pdf", doc)
}

// DELETE /api/payment/:id (admin)
func (h *Handler) DeletePayment(c *gin.Context) {
	if err := h.svc.DeletePayment(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Payment deleted successfully"})
}

// DELETE /api/payment/delete-all (admin)
func (h *Handler) DeleteAllPayments(c *gin.Context) {
	n, err := h.svc.DeleteAllPayments(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "All payments deleted successfully", "deletedCount": n})
}

// GET /api/rooms
func (h *Handler) ListRooms(c *gin.Context) {
	rooms, err := h.svc.ListRooms(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, service.NewRoomViews(rooms))
}

// POST /api/admin/sweep (admin)
func (h *Handler) Sweep(c *gin.Context) {
	n, err := h.sweeper.Tick(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"processed": n})
}

// fail отображает ошибку ядра в HTTP-статус.
func (h *Handler) fail(c *gin.Context, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		h.log.WithError(err).WithField("path", c.FullPath()).Error("request failed")
	}
	c.JSON(code, gin.H{"message": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrPaymentExpired):
		return http.StatusGone
	case errors.Is(err, service.ErrBookingFinalized), errors.Is(err, service.ErrSweepInProgress):
		return http.StatusConflict
	}
	switch service.KindOf(err) {
	case service.KindValidation, service.KindPayment:
		return http.StatusBadRequest
	case service.KindConflict:
		return http.StatusConflict
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func wholeAmount(n json.Number) (int64, bool) {
	if n == "" {
		return 0, false
	}
	if v, err := n.Int64(); err == nil {
		return v, v >= 0
	}
	f, err := n.Float64()
	if err != nil || f != math.Trunc(f) || f < 0 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}
