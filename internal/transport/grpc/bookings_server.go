package grpc

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"slotkeeper/backend/internal/domain"
	"slotkeeper/backend/internal/service/booking"
	"slotkeeper/backend/internal/service/schedules"
	"slotkeeper/backend/internal/store"
)

type BookingsServer struct {
	bookings  bookingService
	schedules scheduleService
	log       *slog.Logger
}

var _ BookingServiceServer = (*BookingsServer)(nil)

type bookingService interface {
	Create(ctx context.Context, in booking.CreateInput) (domain.Booking, error)
	Reschedule(ctx context.Context, in booking.RescheduleInput) (domain.Booking, error)
	Cancel(ctx context.Context, bookingID uuid.UUID) (domain.Booking, error)
	SetStatus(ctx context.Context, bookingID uuid.UUID, target domain.BookingStatus) (domain.Booking, error)
	GetBooking(ctx context.Context, bookingID uuid.UUID) (domain.Booking, error)
	ListProviderBookings(ctx context.Context, providerID uuid.UUID, date *time.Time) ([]domain.Booking, error)
	ListSubjectBookings(ctx context.Context, subjectID string) ([]domain.Booking, error)
	AvailableSlots(ctx context.Context, providerID uuid.UUID, date time.Time) ([]domain.TimeOfDay, error)
}

type scheduleService interface {
	SetWeeklyAvailability(ctx context.Context, in schedules.SetWeeklyAvailabilityInput) (domain.WeeklyAvailability, error)
	ListWeeklyAvailability(ctx context.Context, providerID uuid.UUID) ([]domain.WeeklyAvailability, error)
	DeleteWeeklyAvailability(ctx context.Context, providerID uuid.UUID, weekday int) error
	CreateProvider(ctx context.Context, displayName string) (domain.Provider, error)
	GetProvider(ctx context.Context, providerID uuid.UUID) (domain.Provider, error)
	ListProviders(ctx context.Context, activeOnly bool) ([]domain.Provider, error)
	DeactivateProvider(ctx context.Context, providerID uuid.UUID) error
}

func NewBookingsServer(bookings bookingService, schedules scheduleService, log *slog.Logger) *BookingsServer {
	if log == nil {
		log = slog.Default()
	}
	return &BookingsServer{
		bookings:  bookings,
		schedules: schedules,
		log:       log.With(slog.String("component", "grpc.bookings")),
	}
}

func (s *BookingsServer) CreateBooking(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "CreateBooking"))
	f := fieldsOf(req)

	in, err := createInput(f)
	if err != nil {
		return nil, rpcError(log, "booking create failed", err)
	}
	in.IdempotencyKey = idempotencyKey(ctx)

	b, err := s.bookings.Create(ctx, in)
	if err != nil {
		return nil, rpcError(log, "booking create failed", err,
			slog.String("provider_id", in.ProviderID.String()),
			slog.String("subject_id", in.SubjectID),
			slog.String("date", domain.FormatDate(in.Date)),
			slog.String("start", in.Start.String()),
		)
	}

	log.Info(
		"booking created",
		slog.String("booking_id", b.ID.String()),
		slog.String("provider_id", b.ProviderID.String()),
		slog.String("date", domain.FormatDate(b.Date)),
		slog.String("start", b.Start.String()),
		slog.String("end", b.End.String()),
	)
	return structpb.NewStruct(map[string]any{"booking": bookingToMap(b)})
}

func createInput(f fields) (booking.CreateInput, error) {
	var (
		in  booking.CreateInput
		err error
	)
	if in.ProviderID, err = f.id("provider_id"); err != nil {
		return in, err
	}
	if in.SubjectID, err = f.str("subject_id"); err != nil {
		return in, err
	}
	if in.ContactPhone, err = f.str("contact_phone"); err != nil {
		return in, err
	}
	if in.Date, err = f.date("date"); err != nil {
		return in, err
	}
	if in.Start, err = f.clock("start"); err != nil {
		return in, err
	}
	if in.End, err = f.clock("end"); err != nil {
		return in, err
	}
	if in.Notes, err = f.str("notes"); err != nil {
		return in, err
	}
	return in, nil
}

// idempotencyKey reads the client's retry key from request metadata.
func idempotencyKey(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get("idempotency-key")
	if len(values) == 0 {
		values = md.Get("x-idempotency-key")
	}
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}

func (s *BookingsServer) RescheduleBooking(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "RescheduleBooking"))
	f := fieldsOf(req)

	var (
		in  booking.RescheduleInput
		err error
	)
	if in.BookingID, err = f.id("booking_id"); err != nil {
		return nil, rpcError(log, "booking reschedule failed", err)
	}
	if in.Date, err = f.date("date"); err != nil {
		return nil, rpcError(log, "booking reschedule failed", err)
	}
	if in.Start, err = f.clock("start"); err != nil {
		return nil, rpcError(log, "booking reschedule failed", err)
	}
	if in.End, err = f.clock("end"); err != nil {
		return nil, rpcError(log, "booking reschedule failed", err)
	}
	if in.Notes, err = f.optionalString("notes"); err != nil {
		return nil, rpcError(log, "booking reschedule failed", err)
	}

	b, err := s.bookings.Reschedule(ctx, in)
	if err != nil {
		return nil, rpcError(log, "booking reschedule failed", err, slog.String("booking_id", in.BookingID.String()))
	}

	log.Info(
		"booking rescheduled",
		slog.String("booking_id", b.ID.String()),
		slog.String("date", domain.FormatDate(b.Date)),
		slog.String("start", b.Start.String()),
	)
	return structpb.NewStruct(map[string]any{"booking": bookingToMap(b)})
}

func (s *BookingsServer) CancelBooking(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "CancelBooking"))

	id, err := fieldsOf(req).id("booking_id")
	if err != nil {
		return nil, rpcError(log, "booking cancel failed", err)
	}

	b, err := s.bookings.Cancel(ctx, id)
	if err != nil {
		return nil, rpcError(log, "booking cancel failed", err, slog.String("booking_id", id.String()))
	}

	log.Info("booking cancelled", slog.String("booking_id", id.String()), slog.String("status", string(b.Status)))
	return structpb.NewStruct(map[string]any{"booking": bookingToMap(b)})
}

func (s *BookingsServer) SetBookingStatus(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "SetBookingStatus"))
	f := fieldsOf(req)

	id, err := f.id("booking_id")
	if err != nil {
		return nil, rpcError(log, "booking status change failed", err)
	}
	target, err := f.str("status")
	if err != nil {
		return nil, rpcError(log, "booking status change failed", err)
	}

	b, err := s.bookings.SetStatus(ctx, id, domain.BookingStatus(strings.ToLower(target)))
	if err != nil {
		return nil, rpcError(log, "booking status change failed", err,
			slog.String("booking_id", id.String()),
			slog.String("status", target),
		)
	}

	log.Info("booking status changed", slog.String("booking_id", id.String()), slog.String("status", string(b.Status)))
	return structpb.NewStruct(map[string]any{"booking": bookingToMap(b)})
}

func (s *BookingsServer) GetBooking(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "GetBooking"))

	id, err := fieldsOf(req).id("booking_id")
	if err != nil {
		return nil, rpcError(log, "booking get failed", err)
	}
	b, err := s.bookings.GetBooking(ctx, id)
	if err != nil {
		return nil, rpcError(log, "booking get failed", err, slog.String("booking_id", id.String()))
	}
	return structpb.NewStruct(map[string]any{"booking": bookingToMap(b)})
}

func (s *BookingsServer) ListProviderBookings(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "ListProviderBookings"))
	f := fieldsOf(req)

	providerID, err := f.id("provider_id")
	if err != nil {
		return nil, rpcError(log, "provider bookings list failed", err)
	}
	date, err := f.optionalDate("date")
	if err != nil {
		return nil, rpcError(log, "provider bookings list failed", err)
	}

	bs, err := s.bookings.ListProviderBookings(ctx, providerID, date)
	if err != nil {
		return nil, rpcError(log, "provider bookings list failed", err, slog.String("provider_id", providerID.String()))
	}

	log.Debug("provider bookings listed", slog.String("provider_id", providerID.String()), slog.Int("count", len(bs)))
	return structpb.NewStruct(map[string]any{"bookings": bookingsToList(bs)})
}

func (s *BookingsServer) ListSubjectBookings(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "ListSubjectBookings"))

	subjectID, err := fieldsOf(req).str("subject_id")
	if err != nil {
		return nil, rpcError(log, "subject bookings list failed", err)
	}
	if subjectID == "" {
		return nil, rpcError(log, "subject bookings list failed", domain.Invalid("subject_id is required"))
	}

	bs, err := s.bookings.ListSubjectBookings(ctx, subjectID)
	if err != nil {
		return nil, rpcError(log, "subject bookings list failed", err, slog.String("subject_id", subjectID))
	}

	log.Debug("subject bookings listed", slog.String("subject_id", subjectID), slog.Int("count", len(bs)))
	return structpb.NewStruct(map[string]any{"bookings": bookingsToList(bs)})
}

func (s *BookingsServer) GetAvailableSlots(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "GetAvailableSlots"))
	f := fieldsOf(req)

	providerID, err := f.id("provider_id")
	if err != nil {
		return nil, rpcError(log, "available slots failed", err)
	}
	date, err := f.date("date")
	if err != nil {
		return nil, rpcError(log, "available slots failed", err)
	}

	slots, err := s.bookings.AvailableSlots(ctx, providerID, date)
	if err != nil {
		return nil, rpcError(log, "available slots failed", err, slog.String("provider_id", providerID.String()))
	}

	out := make([]any, 0, len(slots))
	for _, t := range slots {
		out = append(out, t.String())
	}

	log.Debug(
		"available slots listed",
		slog.String("provider_id", providerID.String()),
		slog.String("date", domain.FormatDate(date)),
		slog.Int("count", len(out)),
	)
	return structpb.NewStruct(map[string]any{
		"provider_id": providerID.String(),
		"date":        domain.FormatDate(date),
		"slots":       out,
	})
}

func (s *BookingsServer) SetWeeklyAvailability(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "SetWeeklyAvailability"))
	f := fieldsOf(req)

	var (
		in  schedules.SetWeeklyAvailabilityInput
		err error
	)
	if in.ProviderID, err = f.id("provider_id"); err != nil {
		return nil, rpcError(log, "availability set failed", err)
	}
	if in.Weekday, err = f.integer("weekday"); err != nil {
		return nil, rpcError(log, "availability set failed", err)
	}
	if in.Start, err = f.clock("start"); err != nil {
		return nil, rpcError(log, "availability set failed", err)
	}
	if in.End, err = f.clock("end"); err != nil {
		return nil, rpcError(log, "availability set failed", err)
	}
	if in.SlotMinutes, err = f.integer("slot_minutes"); err != nil {
		return nil, rpcError(log, "availability set failed", err)
	}
	if in.Available, err = f.boolean("available", true); err != nil {
		return nil, rpcError(log, "availability set failed", err)
	}

	w, err := s.schedules.SetWeeklyAvailability(ctx, in)
	if err != nil {
		return nil, rpcError(log, "availability set failed", err, slog.String("provider_id", in.ProviderID.String()))
	}

	log.Info(
		"availability set",
		slog.String("provider_id", w.ProviderID.String()),
		slog.Int("weekday", int(w.Weekday)),
		slog.String("start", w.Start.String()),
		slog.String("end", w.End.String()),
		slog.Bool("available", w.Available),
	)
	return structpb.NewStruct(map[string]any{"window": windowToMap(w)})
}

func (s *BookingsServer) ListWeeklyAvailability(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "ListWeeklyAvailability"))

	providerID, err := fieldsOf(req).id("provider_id")
	if err != nil {
		return nil, rpcError(log, "availability list failed", err)
	}
	ws, err := s.schedules.ListWeeklyAvailability(ctx, providerID)
	if err != nil {
		return nil, rpcError(log, "availability list failed", err, slog.String("provider_id", providerID.String()))
	}

	out := make([]any, 0, len(ws))
	for _, w := range ws {
		out = append(out, windowToMap(w))
	}
	return structpb.NewStruct(map[string]any{"windows": out})
}

func (s *BookingsServer) DeleteWeeklyAvailability(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "DeleteWeeklyAvailability"))
	f := fieldsOf(req)

	providerID, err := f.id("provider_id")
	if err != nil {
		return nil, rpcError(log, "availability delete failed", err)
	}
	weekday, err := f.integer("weekday")
	if err != nil {
		return nil, rpcError(log, "availability delete failed", err)
	}

	if err := s.schedules.DeleteWeeklyAvailability(ctx, providerID, weekday); err != nil {
		return nil, rpcError(log, "availability delete failed", err,
			slog.String("provider_id", providerID.String()),
			slog.Int("weekday", weekday),
		)
	}

	log.Info("availability deleted", slog.String("provider_id", providerID.String()), slog.Int("weekday", weekday))
	return &structpb.Struct{}, nil
}

func (s *BookingsServer) CreateProvider(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "CreateProvider"))

	name, err := fieldsOf(req).str("display_name")
	if err != nil {
		return nil, rpcError(log, "provider create failed", err)
	}
	p, err := s.schedules.CreateProvider(ctx, name)
	if err != nil {
		return nil, rpcError(log, "provider create failed", err)
	}

	log.Info("provider created", slog.String("provider_id", p.ID.String()))
	return structpb.NewStruct(map[string]any{"provider": providerToMap(p)})
}

func (s *BookingsServer) GetProvider(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "GetProvider"))

	id, err := fieldsOf(req).id("provider_id")
	if err != nil {
		return nil, rpcError(log, "provider get failed", err)
	}
	p, err := s.schedules.GetProvider(ctx, id)
	if err != nil {
		return nil, rpcError(log, "provider get failed", err, slog.String("provider_id", id.String()))
	}
	return structpb.NewStruct(map[string]any{"provider": providerToMap(p)})
}

func (s *BookingsServer) ListProviders(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "ListProviders"))

	activeOnly, err := fieldsOf(req).boolean("active_only", false)
	if err != nil {
		return nil, rpcError(log, "providers list failed", err)
	}
	ps, err := s.schedules.ListProviders(ctx, activeOnly)
	if err != nil {
		return nil, rpcError(log, "providers list failed", err)
	}

	out := make([]any, 0, len(ps))
	for _, p := range ps {
		out = append(out, providerToMap(p))
	}
	return structpb.NewStruct(map[string]any{"providers": out})
}

func (s *BookingsServer) DeactivateProvider(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "DeactivateProvider"))

	id, err := fieldsOf(req).id("provider_id")
	if err != nil {
		return nil, rpcError(log, "provider deactivate failed", err)
	}
	if err := s.schedules.DeactivateProvider(ctx, id); err != nil {
		return nil, rpcError(log, "provider deactivate failed", err, slog.String("provider_id", id.String()))
	}

	log.Info("provider deactivated", slog.String("provider_id", id.String()))
	return &structpb.Struct{}, nil
}

// rpcError maps service errors to gRPC statuses. Business rejections carry
// their reason in the message; unexpected errors are hidden behind Internal.
func rpcError(log *slog.Logger, msg string, err error, attrs ...any) error {
	var vErr *domain.ValidationError
	if errors.As(err, &vErr) {
		log.Warn("invalid request", append(attrs, slog.Any("err", err))...)
		return status.Error(codes.InvalidArgument, vErr.Error())
	}

	var rErr *booking.RejectionError
	if errors.As(err, &rErr) {
		log.Info(msg, append(attrs, slog.String("reason", string(rErr.Reason)))...)
		switch rErr.Reason {
		case booking.ReasonNotFound:
			return status.Error(codes.NotFound, rErr.Error())
		case booking.ReasonStoreUnavailable:
			return status.Error(codes.Unavailable, rErr.Error())
		default:
			return status.Error(codes.FailedPrecondition, rErr.Error())
		}
	}

	switch {
	case errors.Is(err, store.ErrNotFound):
		log.Info(msg, append(attrs, slog.String("reason", "not_found"))...)
		return status.Error(codes.NotFound, "not found")
	case errors.Is(err, store.ErrConflict):
		log.Info(msg, append(attrs, slog.String("reason", "conflict"))...)
		return status.Error(codes.FailedPrecondition, "conflict")
	case errors.Is(err, store.ErrUnavailable):
		log.Warn(msg, append(attrs, slog.Any("err", err))...)
		return status.Error(codes.Unavailable, "store unavailable, retry later")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request cancelled")
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "request timed out")
	}

	log.Error(msg, append(attrs, slog.Any("err", err))...)
	return status.Error(codes.Internal, "internal error")
}
