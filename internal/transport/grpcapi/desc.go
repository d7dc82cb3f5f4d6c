package grpcapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "studio.booking.v1.BookingService"

// BookingServiceServer - контракт gRPC-сервиса. Сообщения передаются как
// google.protobuf.Struct, поэтому сервис не требует сгенерированного кода.
type BookingServiceServer interface {
	CreateReservation(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ConfirmPayment(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetBookingDetails(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListBookings(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SearchBookings(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CancelBooking(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteBooking(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteAllBookings(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListPayments(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeletePayment(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteAllPayments(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DownloadReceipt(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListRooms(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SweepExpired(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(BookingServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

var methods = []struct {
	name string
	call unaryCall
}{
	{"CreateReservation", BookingServiceServer.CreateReservation},
	{"ConfirmPayment", BookingServiceServer.ConfirmPayment},
	{"GetBookingDetails", BookingServiceServer.GetBookingDetails},
	{"ListBookings", BookingServiceServer.ListBookings},
	{"SearchBookings", BookingServiceServer.SearchBookings},
	{"CancelBooking", BookingServiceServer.CancelBooking},
	{"DeleteBooking", BookingServiceServer.DeleteBooking},
	{"DeleteAllBookings", BookingServiceServer.DeleteAllBookings},
	{"ListPayments", BookingServiceServer.ListPayments},
	{"DeletePayment", BookingServiceServer.DeletePayment},
	{"DeleteAllPayments", BookingServiceServer.DeleteAllPayments},
	{"DownloadReceipt", BookingServiceServer.DownloadReceipt},
	{"ListRooms", BookingServiceServer.ListRooms},
	{"SweepExpired", BookingServiceServer.SweepExpired},
}

// BookingServiceDesc описывает сервис для grpc.Server.RegisterService.
var BookingServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BookingServiceServer)(nil),
	Methods:     methodDescs(),
	Streams:     []grpc.StreamDesc{},
	Metadata:    "studio/booking/v1/booking.proto",
}

func RegisterBookingServiceServer(s grpc.ServiceRegistrar, srv BookingServiceServer) {
	s.RegisterService(&BookingServiceDesc, srv)
}

// FullMethod - "/studio.booking.v1.BookingService/<method>".
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

func methodDescs() []grpc.MethodDesc {
	out := make([]grpc.MethodDesc, 0, len(methods))
	for _, m := range methods {
		out = append(out, grpc.MethodDesc{
			MethodName: m.name,
			Handler:    unaryHandler(m.name, m.call),
		})
	}
	return out
}

func unaryHandler(method string, call unaryCall) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		s := srv.(BookingServiceServer)
		if interceptor == nil {
			return call(s, ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(method)}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(s, ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// Client - тонкий клиент поверх ClientConn.Invoke.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Call вызывает метод сервиса с полями req и возвращает ответ как map.
func (c *Client) Call(ctx context.Context, method string, req map[string]any, opts ...grpc.CallOption) (map[string]any, error) {
	in, err := structpb.NewStruct(req)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out.AsMap(), nil
}
