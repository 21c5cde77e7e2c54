package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// BookingServiceName is the fully qualified gRPC service name. Requests and
// responses are google.protobuf.Struct messages with snake_case fields.
const BookingServiceName = "slotkeeper.v1.BookingService"

type BookingServiceServer interface {
	CreateBooking(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	RescheduleBooking(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	CancelBooking(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	SetBookingStatus(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetBooking(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListProviderBookings(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListSubjectBookings(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetAvailableSlots(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)

	SetWeeklyAvailability(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListWeeklyAvailability(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	DeleteWeeklyAvailability(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)

	CreateProvider(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetProvider(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListProviders(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	DeactivateProvider(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(srv BookingServiceServer, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)

func unary(name string, call unaryMethod) grpc.MethodDesc {
	fullMethod := "/" + BookingServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(BookingServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(BookingServiceServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var bookingServiceDesc = grpc.ServiceDesc{
	ServiceName: BookingServiceName,
	HandlerType: (*BookingServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("CreateBooking", BookingServiceServer.CreateBooking),
		unary("RescheduleBooking", BookingServiceServer.RescheduleBooking),
		unary("CancelBooking", BookingServiceServer.CancelBooking),
		unary("SetBookingStatus", BookingServiceServer.SetBookingStatus),
		unary("GetBooking", BookingServiceServer.GetBooking),
		unary("ListProviderBookings", BookingServiceServer.ListProviderBookings),
		unary("ListSubjectBookings", BookingServiceServer.ListSubjectBookings),
		unary("GetAvailableSlots", BookingServiceServer.GetAvailableSlots),
		unary("SetWeeklyAvailability", BookingServiceServer.SetWeeklyAvailability),
		unary("ListWeeklyAvailability", BookingServiceServer.ListWeeklyAvailability),
		unary("DeleteWeeklyAvailability", BookingServiceServer.DeleteWeeklyAvailability),
		unary("CreateProvider", BookingServiceServer.CreateProvider),
		unary("GetProvider", BookingServiceServer.GetProvider),
		unary("ListProviders", BookingServiceServer.ListProviders),
		unary("DeactivateProvider", BookingServiceServer.DeactivateProvider),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "slotkeeper/v1/booking_service",
}

func RegisterBookingServiceServer(s grpc.ServiceRegistrar, srv BookingServiceServer) {
	s.RegisterService(&bookingServiceDesc, srv)
}

// BookingServiceClient calls BookingService methods by name.
type BookingServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewBookingServiceClient(cc grpc.ClientConnInterface) *BookingServiceClient {
	return &BookingServiceClient{cc: cc}
}

func (c *BookingServiceClient) Call(ctx context.Context, method string, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	if req == nil {
		req = &structpb.Struct{}
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+BookingServiceName+"/"+method, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
