package grpcapi

import (
	"context"
	"encoding/base64"
	"net"
	"strings"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/Leganyst/studio-booking/internal/auth"
	"github.com/Leganyst/studio-booking/internal/calendar"
	"github.com/Leganyst/studio-booking/internal/config"
	"github.com/Leganyst/studio-booking/internal/db/dbtest"
	"github.com/Leganyst/studio-booking/internal/events"
	"github.com/Leganyst/studio-booking/internal/logger"
	"github.com/Leganyst/studio-booking/internal/model"
	"github.com/Leganyst/studio-booking/internal/receipt"
	"github.com/Leganyst/studio-booking/internal/service"
)

type stubRenderer struct{}

func (stubRenderer) Render(d receipt.Data) ([]byte, error) {
	return []byte("%PDF-stub " + d.PaymentStatus), nil
}

type harness struct {
	client *Client
	clock  *calendar.FixedClock
	room   *model.Room
	authn  *auth.Authenticator
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	gdb := dbtest.Open(t)
	room := dbtest.SeedRoom(t, gdb, "Studio A", 100000)
	// 2024-12-01 00:00 по Джакарте.
	clock := calendar.NewFixedClock(time.Date(2024, 11, 30, 17, 0, 0, 0, time.UTC))
	zone := calendar.MustLoadZone("Asia/Jakarta")
	log := logger.Component(logger.Discard(), "grpc-test")

	repos := service.NewGormRepositories(gdb)
	receipts := service.NewReceiptService(repos, stubRenderer{}, receipt.NewMemStore(), clock, zone, log)
	svc := service.NewBookingService(gdb, repos, receipts, &events.Recorder{}, clock, zone, service.BookingConfig{
		PaymentCodeTTL:       5 * time.Minute,
		MinLeadTime:          3 * time.Hour,
		ExpiredConfirmPolicy: config.ExpiredPolicyMark,
	}, log)
	sweeper := service.NewSweeper(svc, clock, time.Minute, log)
	authn := auth.NewAuthenticator("test-secret")

	lis := bufconn.Listen(1 << 20)
	gs := NewGRPCServer(NewServer(svc, sweeper, zone), authn, log)
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial bufconn: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	return &harness{client: NewClient(conn), clock: clock, room: room, authn: authn}
}

func (h *harness) adminCtx(t *testing.T) context.Context {
	t.Helper()
	tok, err := h.authn.CreateToken("admin-1", auth.RoleAdmin, time.Hour)
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}
	return metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer "+tok)
}

func (h *harness) create(t *testing.T, start, end string) map[string]any {
	t.Helper()
	resp, err := h.client.Call(context.Background(), "CreateReservation", map[string]any{
		"room_id":      h.room.ID.String(),
		"name":         "Budi",
		"phone_number": "0812",
		"date":         "2024-12-01",
		"start_time":   start,
		"end_time":     end,
	})
	if err != nil {
		t.Fatalf("CreateReservation: %v", err)
	}
	return resp["payment"].(map[string]any)
}

func TestServer_ReservationAndPaymentFlow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	payment := h.create(t, "10:00", "12:00")
	if payment["total_amount"].(float64) != 200000 {
		t.Fatalf("total_amount = %v, want 200000", payment["total_amount"])
	}
	code := payment["payment_code"].(string)

	resp, err := h.client.Call(ctx, "ConfirmPayment", map[string]any{"payment_code": code, "amount": 200000})
	if err != nil {
		t.Fatalf("ConfirmPayment: %v", err)
	}
	paid := resp["payment"].(map[string]any)
	if paid["payment_status"] != "paid" {
		t.Fatalf("payment_status = %v, want paid", paid["payment_status"])
	}

	_, err = h.client.Call(ctx, "ConfirmPayment", map[string]any{"payment_code": code, "amount": 200000})
	if status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("replay code = %v, want FailedPrecondition", status.Code(err))
	}

	resp, err = h.client.Call(ctx, "DownloadReceipt", map[string]any{"payment_id": paid["id"]})
	if err != nil {
		t.Fatalf("DownloadReceipt: %v", err)
	}
	doc, err := base64.StdEncoding.DecodeString(resp["document"].(string))
	if err != nil || !strings.HasPrefix(string(doc), "%PDF") {
		t.Fatalf("unexpected document %q: %v", doc, err)
	}
}

func TestServer_ErrorCodes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.create(t, "10:00", "12:00")

	cases := []struct {
		name   string
		method string
		req    map[string]any
		want   codes.Code
	}{
		{"overlap", "CreateReservation", map[string]any{
			"room_id": h.room.ID.String(), "name": "Sari", "phone_number": "1",
			"date": "2024-12-01", "start_time": "11:00", "end_time": "12:00",
		}, codes.AlreadyExists},
		{"partial hour", "CreateReservation", map[string]any{
			"room_id": h.room.ID.String(), "name": "Sari", "phone_number": "1",
			"date": "2024-12-01", "start_time": "13:00", "end_time": "13:30",
		}, codes.InvalidArgument},
		{"unknown code", "ConfirmPayment", map[string]any{"payment_code": "NOPE0000", "amount": 1}, codes.NotFound},
		{"fractional amount", "ConfirmPayment", map[string]any{"payment_code": "NOPE0000", "amount": 1.5}, codes.InvalidArgument},
		{"missing amount", "ConfirmPayment", map[string]any{"payment_code": "NOPE0000"}, codes.InvalidArgument},
		{"unknown booking", "GetBookingDetails", map[string]any{"booking_id": "x"}, codes.NotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.client.Call(ctx, tc.method, tc.req)
			if status.Code(err) != tc.want {
				t.Fatalf("code = %v (%v), want %v", status.Code(err), err, tc.want)
			}
		})
	}
}

func TestServer_AdminMethodsRequireToken(t *testing.T) {
	h := newHarness(t)

	_, err := h.client.Call(context.Background(), "DeleteAllBookings", map[string]any{})
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("no token: code = %v, want Unauthenticated", status.Code(err))
	}

	tok, _ := h.authn.CreateToken("c-1", auth.RoleCustomer, time.Hour)
	customer := metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer "+tok)
	_, err = h.client.Call(customer, "DeleteAllBookings", map[string]any{})
	if status.Code(err) != codes.PermissionDenied {
		t.Fatalf("customer token: code = %v, want PermissionDenied", status.Code(err))
	}

	h.create(t, "10:00", "11:00")
	resp, err := h.client.Call(h.adminCtx(t), "DeleteAllBookings", map[string]any{})
	if err != nil {
		t.Fatalf("DeleteAllBookings: %v", err)
	}
	if resp["deleted_count"].(float64) != 1 {
		t.Fatalf("deleted_count = %v, want 1", resp["deleted_count"])
	}
}

func TestServer_SweepExpired(t *testing.T) {
	h := newHarness(t)
	h.create(t, "10:00", "11:00")
	h.clock.Advance(6 * time.Minute)

	resp, err := h.client.Call(h.adminCtx(t), "SweepExpired", map[string]any{})
	if err != nil {
		t.Fatalf("SweepExpired: %v", err)
	}
	if resp["processed"].(float64) != 1 {
		t.Fatalf("processed = %v, want 1", resp["processed"])
	}

	resp, err = h.client.Call(context.Background(), "ListBookings", map[string]any{})
	if err != nil {
		t.Fatalf("ListBookings: %v", err)
	}
	list := resp["bookings"].([]any)
	if len(list) != 1 || list[0].(map[string]any)["status"] != "cancelled" {
		t.Fatalf("unexpected bookings: %v", list)
	}
}
