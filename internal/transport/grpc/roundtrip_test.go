package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"slotkeeper/backend/internal/service/booking"
	"slotkeeper/backend/internal/service/schedules"
	"slotkeeper/backend/internal/store/memory"
)

func newTestClient(t *testing.T) *BookingServiceClient {
	t.Helper()

	st := memory.New()
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(
		DefaultTimeoutInterceptor(5*time.Second),
		MetricsInterceptor(),
	))
	RegisterBookingServiceServer(srv, NewBookingsServer(
		booking.NewCoordinator(st, nil, nil),
		schedules.NewService(st),
		nil,
	))

	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient(
		"passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	return NewBookingServiceClient(conn)
}

func call(t *testing.T, ctx context.Context, c *BookingServiceClient, method string, req map[string]any) *structpb.Struct {
	t.Helper()
	resp, err := c.Call(ctx, method, mustStruct(t, req))
	if err != nil {
		t.Fatalf("%s error: %v", method, err)
	}
	return resp
}

func TestRoundTrip_BookAndConflict(t *testing.T) {
	c := newTestClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	prov := call(t, ctx, c, "CreateProvider", map[string]any{"display_name": "Dr. Grace Hopper"})
	providerID := prov.GetFields()["provider"].GetStructValue().GetFields()["id"].GetStringValue()

	call(t, ctx, c, "SetWeeklyAvailability", map[string]any{
		"provider_id":  providerID,
		"weekday":      2,
		"start":        "09:00",
		"end":          "11:00",
		"slot_minutes": 30,
	})

	slots := call(t, ctx, c, "GetAvailableSlots", map[string]any{"provider_id": providerID, "date": "2026-01-06"})
	if n := len(slots.GetFields()["slots"].GetListValue().GetValues()); n != 4 {
		t.Fatalf("slots = %d, want 4", n)
	}

	req := map[string]any{
		"provider_id": providerID,
		"subject_id":  "patient-1",
		"date":        "2026-01-06",
		"start":       "09:30",
		"end":         "10:00",
	}
	keyed := metadata.AppendToOutgoingContext(ctx, "idempotency-key", "retry-1")
	first := call(t, keyed, c, "CreateBooking", req)
	replay := call(t, keyed, c, "CreateBooking", req)

	firstID := first.GetFields()["booking"].GetStructValue().GetFields()["id"].GetStringValue()
	replayID := replay.GetFields()["booking"].GetStructValue().GetFields()["id"].GetStringValue()
	if firstID == "" || firstID != replayID {
		t.Fatalf("replayed id = %q, want %q", replayID, firstID)
	}

	req["subject_id"] = "patient-2"
	_, err := c.Call(ctx, "CreateBooking", mustStruct(t, req))
	if status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("code = %s, want %s", status.Code(err), codes.FailedPrecondition)
	}

	slots = call(t, ctx, c, "GetAvailableSlots", map[string]any{"provider_id": providerID, "date": "2026-01-06"})
	for _, v := range slots.GetFields()["slots"].GetListValue().GetValues() {
		if v.GetStringValue() == "09:30" {
			t.Fatalf("09:30 still offered after booking")
		}
	}

	call(t, ctx, c, "CancelBooking", map[string]any{"booking_id": firstID})
	if _, err := c.Call(ctx, "GetBooking", mustStruct(t, map[string]any{"booking_id": firstID})); status.Code(err) != codes.NotFound {
		t.Fatalf("code = %s, want %s", status.Code(err), codes.NotFound)
	}
	call(t, ctx, c, "CreateBooking", req)
}

func TestRoundTrip_UnknownMethod(t *testing.T) {
	c := newTestClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := c.Call(ctx, "DropTables", nil)
	if status.Code(err) != codes.Unimplemented {
		t.Fatalf("code = %s, want %s", status.Code(err), codes.Unimplemented)
	}
}

func TestDefaultTimeoutInterceptor(t *testing.T) {
	icpt := DefaultTimeoutInterceptor(time.Minute)
	info := &grpc.UnaryServerInfo{FullMethod: "/" + BookingServiceName + "/GetBooking"}

	var got time.Time
	handler := func(ctx context.Context, req any) (any, error) {
		got, _ = ctx.Deadline()
		return nil, nil
	}

	if _, err := icpt(context.Background(), nil, info, handler); err != nil {
		t.Fatalf("interceptor error: %v", err)
	}
	if got.IsZero() {
		t.Fatalf("expected a deadline to be set")
	}

	want := time.Now().Add(time.Second)
	ctx, cancel := context.WithDeadline(context.Background(), want)
	defer cancel()
	if _, err := icpt(ctx, nil, info, handler); err != nil {
		t.Fatalf("interceptor error: %v", err)
	}
	if !got.Equal(want) {
		t.Fatalf("deadline = %v, want caller's %v", got, want)
	}
}
