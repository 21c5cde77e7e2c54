package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"slotkeeper/backend/internal/domain"
	"slotkeeper/backend/internal/store"
)

// validateRequest checks a candidate interval against the provider's window
// and the bookings already on that day, in this order: window exists, fits
// the window, has the slot length, sits on the grid, does not overlap.
// exclude is left out of the conflict set; pass uuid.Nil to keep everything.
func validateRequest(ctx context.Context, r store.BookingReader, providerID uuid.UUID, date time.Time, candidate domain.Interval, exclude uuid.UUID) (domain.WeeklyAvailability, error) {
	if err := requireProvider(ctx, r, providerID); err != nil {
		return domain.WeeklyAvailability{}, err
	}

	w, err := r.GetWeeklyAvailability(ctx, providerID, date.Weekday())
	if errors.Is(err, store.ErrNotFound) {
		return domain.WeeklyAvailability{}, reject(ReasonNoAvailability, "no availability on "+date.Weekday().String())
	}
	if err != nil {
		return domain.WeeklyAvailability{}, err
	}
	w, ok := domain.ResolveWindow([]domain.WeeklyAvailability{w}, date)
	if !ok {
		return domain.WeeklyAvailability{}, reject(ReasonNoAvailability, "no availability on "+date.Weekday().String())
	}

	if !candidate.Within(w.Window()) {
		return domain.WeeklyAvailability{}, reject(ReasonOutsideWindow,
			fmt.Sprintf("%s-%s is outside %s-%s", candidate.Start, candidate.End, w.Start, w.End))
	}
	if candidate.Minutes() != w.SlotMinutes {
		return domain.WeeklyAvailability{}, reject(ReasonWrongDuration,
			fmt.Sprintf("slots are %d minutes, got %d", w.SlotMinutes, candidate.Minutes()))
	}
	if !w.OnGrid(candidate.Start) {
		return domain.WeeklyAvailability{}, reject(ReasonOffGrid,
			fmt.Sprintf("%s is not a slot start", candidate.Start))
	}

	existing, err := r.ListActiveBookings(ctx, providerID, date)
	if err != nil {
		return domain.WeeklyAvailability{}, err
	}
	if domain.HasConflict(candidate, excluding(existing, exclude)) {
		return domain.WeeklyAvailability{}, reject(ReasonSlotConflict, "slot is already booked")
	}
	return w, nil
}

func requireProvider(ctx context.Context, r store.BookingReader, providerID uuid.UUID) error {
	p, err := r.GetProvider(ctx, providerID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && !p.Active) {
		return reject(ReasonNotFound, "provider not found")
	}
	return err
}

func excluding(bookings []domain.Booking, id uuid.UUID) []domain.Booking {
	if id == uuid.Nil {
		return bookings
	}
	out := make([]domain.Booking, 0, len(bookings))
	for _, b := range bookings {
		if b.ID != id {
			out = append(out, b)
		}
	}
	return out
}
