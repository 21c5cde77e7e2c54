package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"slotkeeper/backend/internal/domain"
	"slotkeeper/backend/internal/store"
)

// memTx stages writes and applies them atomically on commit. Row locks taken
// by GetBookingForUpdate are held until the transaction ends.
type memTx struct {
	s        *Store
	staged   map[uuid.UUID]domain.Booking
	order    []uuid.UUID
	releases []func()
	locked   map[uuid.UUID]bool
}

func providerDayKey(providerID uuid.UUID, date time.Time) string {
	return "day:" + providerID.String() + ":" + domain.FormatDate(domain.DateOf(date))
}

func rowKey(bookingID uuid.UUID) string {
	return "row:" + bookingID.String()
}

func (s *Store) InProviderDayTransaction(ctx context.Context, providerID uuid.UUID, date time.Time, fn func(ctx context.Context, tx store.BookingTx) error) error {
	unlock, err := s.locks.lock(ctx, providerDayKey(providerID, date))
	if err != nil {
		return err
	}
	defer unlock()
	return s.InTransaction(ctx, fn)
}

func (s *Store) InTransaction(ctx context.Context, fn func(ctx context.Context, tx store.BookingTx) error) error {
	tx := &memTx{
		s:      s,
		staged: make(map[uuid.UUID]domain.Booking),
		locked: make(map[uuid.UUID]bool),
	}
	defer tx.releaseAll()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return tx.commit()
}

func (t *memTx) releaseAll() {
	for i := len(t.releases) - 1; i >= 0; i-- {
		t.releases[i]()
	}
	t.releases = nil
}

func (t *memTx) commit() error {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range t.order {
		b := t.staged[id]
		if !b.HoldsSlot() {
			continue
		}
		for otherID, other := range s.bookings {
			if otherID == id {
				continue
			}
			if next, ok := t.staged[otherID]; ok {
				other = next
			}
			if conflicts(b, other) {
				return store.ErrConflict
			}
		}
		for _, otherID := range t.order {
			if otherID == id {
				continue
			}
			if _, committed := s.bookings[otherID]; committed {
				continue
			}
			if conflicts(b, t.staged[otherID]) {
				return store.ErrConflict
			}
		}
	}

	for _, id := range t.order {
		s.bookings[id] = t.staged[id]
	}
	return nil
}

func conflicts(a, b domain.Booking) bool {
	if !b.HoldsSlot() || a.ProviderID != b.ProviderID || !a.Date.Equal(b.Date) {
		return false
	}
	return a.Interval().Overlaps(b.Interval())
}

func (t *memTx) stage(b domain.Booking) {
	if _, ok := t.staged[b.ID]; !ok {
		t.order = append(t.order, b.ID)
	}
	t.staged[b.ID] = b
}

func (t *memTx) lookup(bookingID uuid.UUID) (domain.Booking, bool) {
	if b, ok := t.staged[bookingID]; ok {
		return b, true
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	b, ok := t.s.bookings[bookingID]
	return b, ok
}

func (t *memTx) GetProvider(ctx context.Context, providerID uuid.UUID) (domain.Provider, error) {
	return t.s.GetProvider(ctx, providerID)
}

func (t *memTx) GetWeeklyAvailability(ctx context.Context, providerID uuid.UUID, weekday time.Weekday) (domain.WeeklyAvailability, error) {
	return t.s.GetWeeklyAvailability(ctx, providerID, weekday)
}

func (t *memTx) ListActiveBookings(_ context.Context, providerID uuid.UUID, date time.Time) ([]domain.Booking, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	return t.s.activeOnLocked(providerID, date, t.staged), nil
}

func (t *memTx) GetBookingForUpdate(ctx context.Context, bookingID uuid.UUID) (domain.Booking, error) {
	if !t.locked[bookingID] {
		unlock, err := t.s.locks.lock(ctx, rowKey(bookingID))
		if err != nil {
			return domain.Booking{}, err
		}
		t.releases = append(t.releases, unlock)
		t.locked[bookingID] = true
	}
	b, ok := t.lookup(bookingID)
	if !ok {
		return domain.Booking{}, store.ErrNotFound
	}
	return b, nil
}

func (t *memTx) InsertBooking(_ context.Context, b domain.Booking) (domain.Booking, error) {
	if b.ID == uuid.Nil {
		id, err := newID()
		if err != nil {
			return domain.Booking{}, err
		}
		b.ID = id
	} else if _, exists := t.lookup(b.ID); exists {
		return domain.Booking{}, store.ErrConflict
	}
	now := t.s.now()
	b.Date = domain.DateOf(b.Date)
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
	t.stage(b)
	return b, nil
}

func (t *memTx) UpdateBooking(_ context.Context, b domain.Booking) (domain.Booking, error) {
	cur, ok := t.lookup(b.ID)
	if !ok {
		return domain.Booking{}, store.ErrNotFound
	}
	b.ProviderID = cur.ProviderID
	b.SubjectID = cur.SubjectID
	b.ContactPhone = cur.ContactPhone
	b.CreatedAt = cur.CreatedAt
	b.Date = domain.DateOf(b.Date)
	b.UpdatedAt = t.s.now()
	t.stage(b)
	return b, nil
}
