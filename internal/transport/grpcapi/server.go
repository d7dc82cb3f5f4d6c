package grpcapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/Leganyst/studio-booking/internal/auth"
	"github.com/Leganyst/studio-booking/internal/calendar"
	"github.com/Leganyst/studio-booking/internal/model"
	"github.com/Leganyst/studio-booking/internal/service"
)

// BookingAPI - операции ядра, доступные через gRPC.
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

// SweepTrigger - ручной запуск прохода истечения.
type SweepTrigger interface {
	Tick(ctx context.Context) (int, error)
}

type Server struct {
	svc     BookingAPI
	sweeper SweepTrigger
	zone    *calendar.Zone
}

func NewServer(svc BookingAPI, sweeper SweepTrigger, zone *calendar.Zone) *Server {
	return &Server{svc: svc, sweeper: sweeper, zone: zone}
}

var _ BookingServiceServer = (*Server)(nil)

func (s *Server) CreateReservation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	res, err := s.svc.CreateReservation(ctx, service.ReservationInput{
		RoomID:        str(req, "room_id"),
		CustomerName:  str(req, "name"),
		CustomerPhone: str(req, "phone_number"),
		Date:          str(req, "date"),
		StartTime:     str(req, "start_time"),
		EndTime:       str(req, "end_time"),
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return reply(fields{
		"message": "Booking created successfully",
		"booking": service.NewBookingView(res.Booking, s.zone),
		"payment": service.NewPaymentView(res.Payment, s.zone),
	})
}

func (s *Server) ConfirmPayment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	amount, err := wholeNumber(req, "amount")
	if err != nil {
		return nil, err
	}
	p, err := s.svc.ConfirmPayment(ctx, str(req, "payment_code"), amount)
	if err != nil {
		return nil, toStatus(err)
	}
	return reply(fields{
		"message": "Payment processed successfully",
		"payment": service.NewPaymentView(p, s.zone),
	})
}

func (s *Server) GetBookingDetails(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	d, err := s.svc.GetBookingDetails(ctx, str(req, "booking_id"))
	if err != nil {
		return nil, toStatus(err)
	}
	return reply(service.NewDetailsView(d, s.zone))
}

func (s *Server) ListBookings(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	views, err := s.svc.ListBookings(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return reply(fields{"bookings": views})
}

func (s *Server) SearchBookings(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	views, err := s.svc.SearchBookings(ctx, str(req, "name"))
	if err != nil {
		return nil, toStatus(err)
	}
	return reply(fields{"bookings": views})
}

func (s *Server) CancelBooking(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	b, err := s.svc.CancelBooking(ctx, str(req, "booking_id"))
	if err != nil {
		return nil, toStatus(err)
	}
	return reply(fields{
		"message": "Booking cancelled successfully",
		"booking": service.NewBookingView(b, s.zone),
	})
}

func (s *Server) DeleteBooking(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := s.svc.DeleteBooking(ctx, str(req, "booking_id")); err != nil {
		return nil, toStatus(err)
	}
	return reply(fields{"message": "Booking deleted successfully"})
}

func (s *Server) DeleteAllBookings(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	n, err := s.svc.DeleteAllBookings(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return reply(fields{
		"message":       "All bookings deleted successfully",
		"deleted_count": n,
	})
}

func (s *Server) ListPayments(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	payments, err := s.svc.ListPayments(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return reply(fields{"payments": service.NewPaymentViews(payments, s.zone)})
}

func (s *Server) DeletePayment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := s.svc.DeletePayment(ctx, str(req, "payment_id")); err != nil {
		return nil, toStatus(err)
	}
	return reply(fields{"message": "Payment deleted successfully"})
}

func (s *Server) DeleteAllPayments(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	n, err := s.svc.DeleteAllPayments(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return reply(fields{
		"message":      "All payments deleted successfully",
		"deletedCount": n,
	})
}

func (s *Server) DownloadReceipt(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	doc, err := s.svc.DownloadReceipt(ctx, str(req, "payment_id"))
	if err != nil {
		return nil, toStatus(err)
	}
	return reply(fields{
		"content_type": "application/pdf",
		"document":     base64.StdEncoding.EncodeToString(doc),
	})
}

func (s *Server) ListRooms(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	rooms, err := s.svc.ListRooms(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return reply(fields{"rooms": service.NewRoomViews(rooms)})
}

func (s *Server) SweepExpired(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if s.sweeper == nil {
		return nil, status.Error(codes.Unimplemented, "sweeper is not configured")
	}
	n, err := s.sweeper.Tick(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return reply(fields{"processed": n})
}

// fields - тело ответа до кодирования в Struct.
type fields = map[string]any

// reply кодирует v в google.protobuf.Struct через JSON.
func reply(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

func str(req *structpb.Struct, key string) string {
	v, ok := req.GetFields()[key]
	if !ok {
		return ""
	}
	return strings.TrimSpace(v.GetStringValue())
}

func wholeNumber(req *structpb.Struct, key string) (int64, error) {
	v, ok := req.GetFields()[key]
	if !ok {
		return 0, status.Errorf(codes.InvalidArgument, "%s is required", key)
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, status.Errorf(codes.InvalidArgument, "%s must be a number", key)
	}
	f := n.NumberValue
	if f != math.Trunc(f) || f < 0 || f >= math.MaxInt64 {
		return 0, status.Errorf(codes.InvalidArgument, "%s must be a whole non-negative amount", key)
	}
	return int64(f), nil
}

// toStatus отображает категорию ошибки ядра в код gRPC.
func toStatus(err error) error {
	if errors.Is(err, service.ErrSweepInProgress) {
		return status.Error(codes.Aborted, err.Error())
	}
	var code codes.Code
	switch service.KindOf(err) {
	case service.KindValidation:
		code = codes.InvalidArgument
	case service.KindConflict:
		code = codes.AlreadyExists
	case service.KindNotFound:
		code = codes.NotFound
	case service.KindPayment:
		code = codes.FailedPrecondition
	case service.KindTransient:
		code = codes.Unavailable
	default:
		code = codes.Internal
	}
	return status.Error(code, err.Error())
}

// Методы, требующие токен администратора.
var adminMethods = map[string]bool{
	FullMethod("SearchBookings"):    true,
	FullMethod("CancelBooking"):     true,
	FullMethod("DeleteBooking"):     true,
	FullMethod("DeleteAllBookings"): true,
	FullMethod("DeletePayment"):     true,
	FullMethod("DeleteAllPayments"): true,
	FullMethod("SweepExpired"):      true,
}

// AuthInterceptor проверяет Bearer-токен из metadata "authorization" для админских методов.
func AuthInterceptor(authn *auth.Authenticator) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if !adminMethods[info.FullMethod] {
			return handler(ctx, req)
		}

		var header string
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if vals := md.Get("authorization"); len(vals) > 0 {
				header = vals[0]
			}
		}
		token, ok := auth.BearerToken(header)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing bearer token")
		}

		_, err := authn.RequireAdmin(token)
		switch {
		case err == nil:
			return handler(ctx, req)
		case errors.Is(err, auth.ErrForbidden), errors.Is(err, auth.ErrInactive):
			return nil, status.Error(codes.PermissionDenied, err.Error())
		default:
			return nil, status.Error(codes.Unauthenticated, err.Error())
		}
	}
}

// LoggingInterceptor пишет метод, код ответа и длительность.
func LoggingInterceptor(log *logrus.Entry) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		entry := log.WithFields(logrus.Fields{
			"method":   info.FullMethod,
			"code":     status.Code(err).String(),
			"duration": time.Since(start),
		})
		switch status.Code(err) {
		case codes.OK, codes.InvalidArgument, codes.NotFound, codes.AlreadyExists,
			codes.FailedPrecondition, codes.Unauthenticated, codes.PermissionDenied, codes.Aborted:
			entry.Debug("grpc call")
		default:
			entry.WithError(err).Warn("grpc call failed")
		}
		return resp, err
	}
}

// NewGRPCServer собирает сервер с перехватчиками и регистрирует сервис.
func NewGRPCServer(srv BookingServiceServer, authn *auth.Authenticator, log *logrus.Entry) *grpc.Server {
	gs := grpc.NewServer(grpc.ChainUnaryInterceptor(
		LoggingInterceptor(log),
		AuthInterceptor(authn),
	))
	RegisterBookingServiceServer(gs, srv)
	return gs
}
