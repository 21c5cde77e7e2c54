package booking

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"slotkeeper/backend/internal/domain"
	"slotkeeper/backend/internal/metrics"
	"slotkeeper/backend/internal/store"
	"slotkeeper/backend/internal/validation"
)

// Dispatcher receives post-commit notifications. Implementations must not
// block the caller and must not report failures back.
type Dispatcher interface {
	NotifyConfirmed(ctx context.Context, b domain.Booking)
	NotifyCancelled(ctx context.Context, b domain.Booking)
}

type noopDispatcher struct{}

func (noopDispatcher) NotifyConfirmed(context.Context, domain.Booking) {}
func (noopDispatcher) NotifyCancelled(context.Context, domain.Booking) {}

type Coordinator struct {
	repo     store.BookingRepository
	notifier Dispatcher
	log      *slog.Logger
}

func NewCoordinator(repo store.BookingRepository, notifier Dispatcher, log *slog.Logger) *Coordinator {
	if notifier == nil {
		notifier = noopDispatcher{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{
		repo:     repo,
		notifier: notifier,
		log:      log.With(slog.String("component", "booking.coordinator")),
	}
}

type CreateInput struct {
	ProviderID   uuid.UUID        `json:"provider_id" validate:"required"`
	SubjectID    string           `json:"subject_id" validate:"required,max=256"`
	ContactPhone string           `json:"contact_phone" validate:"max=32"`
	Date         time.Time        `json:"date" validate:"required"`
	Start        domain.TimeOfDay `json:"start" validate:"min=0,max=1440"`
	End          domain.TimeOfDay `json:"end" validate:"min=0,max=1440"`
	Notes        string           `json:"notes" validate:"max=2000"`

	// IdempotencyKey makes a retried create return the booking it already
	// made instead of a conflict.
	IdempotencyKey string `json:"idempotency_key" validate:"max=256"`
}

type RescheduleInput struct {
	BookingID uuid.UUID        `json:"booking_id" validate:"required"`
	Date      time.Time        `json:"date" validate:"required"`
	Start     domain.TimeOfDay `json:"start" validate:"min=0,max=1440"`
	End       domain.TimeOfDay `json:"end" validate:"min=0,max=1440"`
	// Notes replaces the booking notes when set.
	Notes *string `json:"notes" validate:"omitempty,max=2000"`
}

func (c *Coordinator) Create(ctx context.Context, in CreateInput) (domain.Booking, error) {
	const op = "create"

	in.SubjectID = strings.TrimSpace(in.SubjectID)
	in.ContactPhone = strings.TrimSpace(in.ContactPhone)
	if err := validation.Struct(in); err != nil {
		return domain.Booking{}, c.fail(op, err)
	}
	if in.End <= in.Start {
		return domain.Booking{}, c.fail(op, domain.Invalid("end must be after start"))
	}

	date := domain.DateOf(in.Date)
	candidate := domain.Interval{Start: in.Start, End: in.End}

	var id uuid.UUID
	if key := strings.TrimSpace(in.IdempotencyKey); key != "" {
		id = uuid.NewSHA1(uuid.NameSpaceOID, []byte("slotkeeper:create_booking:"+in.SubjectID+":"+key))
	}

	var (
		out      domain.Booking
		replayed bool
	)
	started := time.Now()
	err := c.repo.InProviderDayTransaction(ctx, in.ProviderID, date, func(ctx context.Context, tx store.BookingTx) error {
		if id != uuid.Nil {
			prev, err := tx.GetBookingForUpdate(ctx, id)
			switch {
			case err == nil:
				if !sameRequest(prev, in.ProviderID, date, candidate) {
					return domain.Invalid("idempotency key was already used for a different booking")
				}
				out, replayed = prev, true
				return nil
			case !errors.Is(err, store.ErrNotFound):
				return err
			}
		}

		w, err := validateRequest(ctx, tx, in.ProviderID, date, candidate, uuid.Nil)
		if err != nil {
			return err
		}

		b := domain.Booking{
			ID:           id,
			ProviderID:   in.ProviderID,
			SubjectID:    in.SubjectID,
			ContactPhone: in.ContactPhone,
			Date:         date,
			Start:        candidate.Start,
			End:          candidate.End,
			Status:       domain.BookingStatusPending,
			Active:       true,
			Notes:        in.Notes,
		}
		b.Capture(w)

		out, err = tx.InsertBooking(ctx, b)
		return err
	})
	metrics.ObserveBookingTx(op, started)
	if err != nil && id != uuid.Nil && errors.Is(err, store.ErrConflict) {
		// A create for the same key on another provider-day may have won
		// the insert of this id.
		out, replayed, err = c.settleKeyRace(ctx, err, id, in.ProviderID, date, candidate)
	}
	if err != nil {
		return domain.Booking{}, c.fail(op, err,
			slog.String("provider_id", in.ProviderID.String()),
			slog.String("date", domain.FormatDate(date)),
			slog.String("start", candidate.Start.String()),
			slog.String("end", candidate.End.String()),
		)
	}

	metrics.RecordBooking(op, "ok")
	if replayed {
		c.log.Info("booking create replayed", slog.String("booking_id", out.ID.String()))
		return out, nil
	}

	c.log.Info(
		"booking created",
		slog.String("booking_id", out.ID.String()),
		slog.String("provider_id", out.ProviderID.String()),
		slog.String("date", domain.FormatDate(out.Date)),
		slog.String("start", out.Start.String()),
		slog.String("end", out.End.String()),
	)
	c.notifier.NotifyConfirmed(ctx, out)
	return out, nil
}

func (c *Coordinator) settleKeyRace(ctx context.Context, cause error, id, providerID uuid.UUID, date time.Time, iv domain.Interval) (domain.Booking, bool, error) {
	prev, err := c.repo.GetBooking(ctx, id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return domain.Booking{}, false, cause
	case err != nil:
		return domain.Booking{}, false, err
	case !sameRequest(prev, providerID, date, iv):
		return domain.Booking{}, false, domain.Invalid("idempotency key was already used for a different booking")
	}
	return prev, true, nil
}

func sameRequest(b domain.Booking, providerID uuid.UUID, date time.Time, iv domain.Interval) bool {
	return b.ProviderID == providerID && b.Date.Equal(date) && b.Interval() == iv
}

// Reschedule moves a booking to a new interval, validated exactly as Create
// but ignoring the booking's own current slot. Lifecycle state is kept.
func (c *Coordinator) Reschedule(ctx context.Context, in RescheduleInput) (domain.Booking, error) {
	const op = "reschedule"

	if err := validation.Struct(in); err != nil {
		return domain.Booking{}, c.fail(op, err)
	}
	if in.End <= in.Start {
		return domain.Booking{}, c.fail(op, domain.Invalid("end must be after start"))
	}

	cur, err := c.repo.GetBooking(ctx, in.BookingID)
	if err != nil {
		return domain.Booking{}, c.fail(op, err, slog.String("booking_id", in.BookingID.String()))
	}
	if !cur.Active {
		return domain.Booking{}, c.fail(op, reject(ReasonNotFound, "booking not found"), slog.String("booking_id", in.BookingID.String()))
	}

	date := domain.DateOf(in.Date)
	candidate := domain.Interval{Start: in.Start, End: in.End}

	var out domain.Booking
	started := time.Now()
	err = c.repo.InProviderDayTransaction(ctx, cur.ProviderID, date, func(ctx context.Context, tx store.BookingTx) error {
		b, err := tx.GetBookingForUpdate(ctx, in.BookingID)
		if err != nil {
			return err
		}
		if !b.Active {
			return reject(ReasonNotFound, "booking not found")
		}
		if b.Status.Terminal() {
			return reject(ReasonInvalidTransition, "cannot reschedule a "+string(b.Status)+" booking")
		}

		w, err := validateRequest(ctx, tx, b.ProviderID, date, candidate, b.ID)
		if err != nil {
			return err
		}

		b.Date = date
		b.Start = candidate.Start
		b.End = candidate.End
		b.Capture(w)
		if in.Notes != nil {
			b.Notes = *in.Notes
		}
		out, err = tx.UpdateBooking(ctx, b)
		return err
	})
	metrics.ObserveBookingTx(op, started)
	if err != nil {
		return domain.Booking{}, c.fail(op, err,
			slog.String("booking_id", in.BookingID.String()),
			slog.String("date", domain.FormatDate(date)),
			slog.String("start", candidate.Start.String()),
		)
	}

	metrics.RecordBooking(op, "ok")
	c.log.Info(
		"booking rescheduled",
		slog.String("booking_id", out.ID.String()),
		slog.String("date", domain.FormatDate(out.Date)),
		slog.String("start", out.Start.String()),
		slog.String("end", out.End.String()),
	)
	c.notifier.NotifyConfirmed(ctx, out)
	return out, nil
}

// Cancel soft-retires a booking and moves it to Cancelled when the lifecycle
// allows. A Completed or already Cancelled booking is retired but keeps its
// state and sends no notification.
func (c *Coordinator) Cancel(ctx context.Context, bookingID uuid.UUID) (domain.Booking, error) {
	const op = "cancel"

	if bookingID == uuid.Nil {
		return domain.Booking{}, c.fail(op, domain.Invalid("booking_id is required"))
	}

	var (
		out   domain.Booking
		moved bool
	)
	started := time.Now()
	err := c.repo.InTransaction(ctx, func(ctx context.Context, tx store.BookingTx) error {
		b, err := tx.GetBookingForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if !b.Active {
			return reject(ReasonNotFound, "booking not found")
		}
		b.Active = false
		if b.Status.CanTransition(domain.BookingStatusCancelled) {
			b.Status = domain.BookingStatusCancelled
			moved = true
		}
		out, err = tx.UpdateBooking(ctx, b)
		return err
	})
	metrics.ObserveBookingTx(op, started)
	if err != nil {
		return domain.Booking{}, c.fail(op, err, slog.String("booking_id", bookingID.String()))
	}

	metrics.RecordBooking(op, "ok")
	c.log.Info("booking cancelled", slog.String("booking_id", out.ID.String()), slog.String("status", string(out.Status)))
	if moved {
		c.notifier.NotifyCancelled(ctx, out)
	}
	return out, nil
}

// SetStatus applies one lifecycle transition under the booking's row lock. An
// active booking that has released its slot is terminal and cannot reclaim it.
func (c *Coordinator) SetStatus(ctx context.Context, bookingID uuid.UUID, target domain.BookingStatus) (domain.Booking, error) {
	const op = "set_status"

	if bookingID == uuid.Nil {
		return domain.Booking{}, c.fail(op, domain.Invalid("booking_id is required"))
	}
	if _, ok := domain.ParseBookingStatus(string(target)); !ok {
		return domain.Booking{}, c.fail(op, domain.Invalid("status must be one of pending, confirmed, cancelled, completed"))
	}

	var out domain.Booking
	started := time.Now()
	err := c.repo.InTransaction(ctx, func(ctx context.Context, tx store.BookingTx) error {
		b, err := tx.GetBookingForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if !b.Active {
			return reject(ReasonNotFound, "booking not found")
		}
		if !b.Status.CanTransition(target) {
			return reject(ReasonInvalidTransition, "cannot move from "+string(b.Status)+" to "+string(target))
		}
		b.Status = target
		out, err = tx.UpdateBooking(ctx, b)
		return err
	})
	metrics.ObserveBookingTx(op, started)
	if err != nil {
		return domain.Booking{}, c.fail(op, err,
			slog.String("booking_id", bookingID.String()),
			slog.String("target", string(target)),
		)
	}

	metrics.RecordBooking(op, "ok")
	c.log.Info("booking status changed", slog.String("booking_id", out.ID.String()), slog.String("status", string(out.Status)))
	switch out.Status {
	case domain.BookingStatusConfirmed:
		c.notifier.NotifyConfirmed(ctx, out)
	case domain.BookingStatusCancelled:
		c.notifier.NotifyCancelled(ctx, out)
	}
	return out, nil
}

// AvailableSlots lists the free slot starts of a provider's day. A day with
// no usable window yields an empty list.
func (c *Coordinator) AvailableSlots(ctx context.Context, providerID uuid.UUID, date time.Time) ([]domain.TimeOfDay, error) {
	const op = "available_slots"

	if providerID == uuid.Nil {
		return nil, c.fail(op, domain.Invalid("provider_id is required"))
	}
	day := domain.DateOf(date)

	if err := requireProvider(ctx, c.repo, providerID); err != nil {
		return nil, c.fail(op, err, slog.String("provider_id", providerID.String()))
	}

	w, err := c.repo.GetWeeklyAvailability(ctx, providerID, day.Weekday())
	if errors.Is(err, store.ErrNotFound) {
		return []domain.TimeOfDay{}, nil
	}
	if err != nil {
		return nil, c.fail(op, err, slog.String("provider_id", providerID.String()))
	}
	w, ok := domain.ResolveWindow([]domain.WeeklyAvailability{w}, day)
	if !ok {
		return []domain.TimeOfDay{}, nil
	}

	bookings, err := c.repo.ListActiveBookings(ctx, providerID, day)
	if err != nil {
		return nil, c.fail(op, err, slog.String("provider_id", providerID.String()))
	}
	return domain.FreeSlots(w, bookings), nil
}

// GetBooking returns an active booking. Retired bookings are reported as not
// found.
func (c *Coordinator) GetBooking(ctx context.Context, bookingID uuid.UUID) (domain.Booking, error) {
	if bookingID == uuid.Nil {
		return domain.Booking{}, domain.Invalid("booking_id is required")
	}
	b, err := c.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return domain.Booking{}, translate(err)
	}
	if !b.Active {
		return domain.Booking{}, reject(ReasonNotFound, "booking not found")
	}
	return b, nil
}

func (c *Coordinator) ListProviderBookings(ctx context.Context, providerID uuid.UUID, date *time.Time) ([]domain.Booking, error) {
	if providerID == uuid.Nil {
		return nil, domain.Invalid("provider_id is required")
	}
	if date != nil {
		d := domain.DateOf(*date)
		date = &d
	}
	rows, err := c.repo.ListProviderBookings(ctx, providerID, date)
	return rows, translate(err)
}

func (c *Coordinator) ListSubjectBookings(ctx context.Context, subjectID string) ([]domain.Booking, error) {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return nil, domain.Invalid("subject_id is required")
	}
	rows, err := c.repo.ListSubjectBookings(ctx, subjectID)
	return rows, translate(err)
}

// fail translates err, records the outcome and logs it at a level matching
// its kind.
func (c *Coordinator) fail(op string, err error, attrs ...any) error {
	err = translate(err)
	log := c.log.With(slog.String("op", op)).With(attrs...)

	var vErr *domain.ValidationError
	switch reason, ok := ReasonOf(err); {
	case errors.As(err, &vErr):
		metrics.RecordBooking(op, "invalid")
		log.Warn("invalid request", slog.Any("err", err))
	case ok && reason == ReasonStoreUnavailable:
		metrics.RecordBooking(op, string(reason))
		log.Warn("booking store unavailable", slog.Any("err", err))
	case ok:
		metrics.RecordBooking(op, string(reason))
		log.Info("booking rejected", slog.String("reason", string(reason)))
	default:
		metrics.RecordBooking(op, "error")
		log.Error("booking operation failed", slog.Any("err", err))
	}
	return err
}
