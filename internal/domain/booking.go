package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusCompleted BookingStatus = "completed"
)

// SlotHoldingStatuses are the lifecycle states that occupy a slot.
var SlotHoldingStatuses = []BookingStatus{BookingStatusPending, BookingStatusConfirmed}

var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusPending:   {BookingStatusConfirmed, BookingStatusCancelled},
	BookingStatusConfirmed: {BookingStatusCancelled, BookingStatusCompleted},
}

func ParseBookingStatus(s string) (BookingStatus, bool) {
	switch st := BookingStatus(s); st {
	case BookingStatusPending, BookingStatusConfirmed, BookingStatusCancelled, BookingStatusCompleted:
		return st, true
	}
	return "", false
}

// CanTransition reports whether the lifecycle allows moving from one state to
// another. Cancelled and Completed are terminal.
func (s BookingStatus) CanTransition(to BookingStatus) bool {
	for _, next := range bookingTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

func (s BookingStatus) Terminal() bool {
	return len(bookingTransitions[s]) == 0
}

func (s BookingStatus) HoldsSlot() bool {
	return s == BookingStatusPending || s == BookingStatusConfirmed
}

// Booking is a claimed interval on a provider's day. Window fields record the
// availability the booking was validated against when it was made.
type Booking struct {
	bun.BaseModel `bun:"table:bookings"`

	ID           uuid.UUID     `bun:"id,pk,type:uuid"`
	ProviderID   uuid.UUID     `bun:"provider_id,notnull,type:uuid"`
	SubjectID    string        `bun:"subject_id,notnull"`
	ContactPhone string        `bun:"contact_phone"`
	Date         time.Time     `bun:"date,notnull,type:date"`
	Start        TimeOfDay     `bun:"start_minute,notnull"`
	End          TimeOfDay     `bun:"end_minute,notnull"`
	WindowStart  TimeOfDay     `bun:"window_start,notnull"`
	WindowEnd    TimeOfDay     `bun:"window_end,notnull"`
	SlotMinutes  int           `bun:"slot_minutes,notnull"`
	Status       BookingStatus `bun:"status,notnull"`
	Active       bool          `bun:"active,notnull"`
	Notes        string        `bun:"notes"`
	CreatedAt    time.Time     `bun:"created_at,notnull"`
	UpdatedAt    time.Time     `bun:"updated_at,notnull"`
}

func (b *Booking) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if b.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			b.ID = id
		}
		if b.CreatedAt.IsZero() {
			b.CreatedAt = now
		}
		if b.UpdatedAt.IsZero() {
			b.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		b.UpdatedAt = now
	}
	return nil
}

func (b Booking) Interval() Interval {
	return Interval{Start: b.Start, End: b.End}
}

// HoldsSlot reports whether the booking takes part in conflict checks.
func (b Booking) HoldsSlot() bool {
	return b.Active && b.Status.HoldsSlot()
}

// Capture copies the window the booking is being validated against.
func (b *Booking) Capture(w WeeklyAvailability) {
	b.WindowStart = w.Start
	b.WindowEnd = w.End
	b.SlotMinutes = w.SlotMinutes
}
