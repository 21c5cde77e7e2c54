package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// WeeklyAvailability is a provider's recurring window for one weekday.
// There is at most one per (provider, weekday).
type WeeklyAvailability struct {
	bun.BaseModel `bun:"table:weekly_availability"`

	ID          uuid.UUID    `bun:"id,pk,type:uuid"`
	ProviderID  uuid.UUID    `bun:"provider_id,notnull,type:uuid"`
	Weekday     time.Weekday `bun:"weekday,notnull"`
	Start       TimeOfDay    `bun:"start_minute,notnull"`
	End         TimeOfDay    `bun:"end_minute,notnull"`
	SlotMinutes int          `bun:"slot_minutes,notnull"`
	Available   bool         `bun:"available,notnull"`
	CreatedAt   time.Time    `bun:"created_at,notnull"`
	UpdatedAt   time.Time    `bun:"updated_at,notnull"`
}

func (w *WeeklyAvailability) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if w.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			w.ID = id
		}
		if w.CreatedAt.IsZero() {
			w.CreatedAt = now
		}
		w.UpdatedAt = now
	case *bun.UpdateQuery:
		w.UpdatedAt = now
	}
	return nil
}

func (w WeeklyAvailability) Window() Interval {
	return Interval{Start: w.Start, End: w.End}
}

// Validate checks the window invariants: a weekday in 0..6, start before
// end, and room for at least one whole slot.
func (w WeeklyAvailability) Validate() error {
	if w.Weekday < time.Sunday || w.Weekday > time.Saturday {
		return Invalid("weekday must be between 0 (Sunday) and 6 (Saturday)")
	}
	if !w.Start.Valid() || !w.End.Valid() {
		return Invalid("window times must be within the day")
	}
	if w.Start >= w.End {
		return Invalid("window start must be before window end")
	}
	if w.SlotMinutes <= 0 {
		return Invalid("slot_minutes must be positive")
	}
	if int(w.End-w.Start) < w.SlotMinutes {
		return Invalid("window must fit at least one slot")
	}
	return nil
}

// Slots returns the slot grid of the window.
func (w WeeklyAvailability) Slots() []TimeOfDay {
	return EnumerateSlots(w.Start, w.End, w.SlotMinutes)
}

// OnGrid reports whether start falls on a slot boundary of the window.
func (w WeeklyAvailability) OnGrid(start TimeOfDay) bool {
	if w.SlotMinutes <= 0 || start < w.Start {
		return false
	}
	return int(start-w.Start)%w.SlotMinutes == 0
}

// ResolveWindow picks the definition that applies to date. It reports false
// when there is none for that weekday or it is switched off.
func ResolveWindow(windows []WeeklyAvailability, date time.Time) (WeeklyAvailability, bool) {
	weekday := DateOf(date).Weekday()
	for _, w := range windows {
		if w.Weekday != weekday {
			continue
		}
		if !w.Available {
			return WeeklyAvailability{}, false
		}
		return w, true
	}
	return WeeklyAvailability{}, false
}
