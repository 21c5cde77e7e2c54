// Package memory is a process-local store used by the memory database driver
// and by service tests. It enforces the same guards as the postgres schema:
// at most one slot-holding booking per overlapping interval of a provider day.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"slotkeeper/backend/internal/domain"
	"slotkeeper/backend/internal/store"
)

type windowKey struct {
	providerID uuid.UUID
	weekday    time.Weekday
}

type Store struct {
	mu            sync.RWMutex
	providers     map[uuid.UUID]domain.Provider
	windows       map[windowKey]domain.WeeklyAvailability
	bookings      map[uuid.UUID]domain.Booking
	notifications []domain.Notification

	locks *keyedLocks
	now   func() time.Time
}

func New() *Store {
	return &Store{
		providers: make(map[uuid.UUID]domain.Provider),
		windows:   make(map[windowKey]domain.WeeklyAvailability),
		bookings:  make(map[uuid.UUID]domain.Booking),
		locks:     newKeyedLocks(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

var (
	_ store.BookingRepository  = (*Store)(nil)
	_ store.ScheduleRepository = (*Store)(nil)
	_ store.NotificationLog    = (*Store)(nil)
)

func newID() (uuid.UUID, error) {
	return uuid.NewV7()
}

func (s *Store) CreateProvider(_ context.Context, p domain.Provider) (domain.Provider, error) {
	if p.ID == uuid.Nil {
		id, err := newID()
		if err != nil {
			return domain.Provider{}, err
		}
		p.ID = id
	}
	now := s.now()
	p.CreatedAt, p.UpdatedAt = now, now

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.providers[p.ID]; ok {
		return domain.Provider{}, store.ErrConflict
	}
	s.providers[p.ID] = p
	return p, nil
}

func (s *Store) GetProvider(_ context.Context, providerID uuid.UUID) (domain.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.providers[providerID]
	if !ok {
		return domain.Provider{}, store.ErrNotFound
	}
	return p, nil
}

func (s *Store) ListProviders(_ context.Context, activeOnly bool) ([]domain.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Provider, 0, len(s.providers))
	for _, p := range s.providers {
		if activeOnly && !p.Active {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayName < out[j].DisplayName })
	return out, nil
}

func (s *Store) DeactivateProvider(_ context.Context, providerID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.providers[providerID]
	if !ok {
		return store.ErrNotFound
	}
	p.Active = false
	p.UpdatedAt = s.now()
	s.providers[providerID] = p
	return nil
}

func (s *Store) UpsertWeeklyAvailability(_ context.Context, w domain.WeeklyAvailability) (domain.WeeklyAvailability, error) {
	key := windowKey{providerID: w.ProviderID, weekday: w.Weekday}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.providers[w.ProviderID]; !ok {
		return domain.WeeklyAvailability{}, store.ErrNotFound
	}
	if cur, ok := s.windows[key]; ok {
		w.ID = cur.ID
		w.CreatedAt = cur.CreatedAt
	} else {
		id, err := newID()
		if err != nil {
			return domain.WeeklyAvailability{}, err
		}
		w.ID = id
		w.CreatedAt = now
	}
	w.UpdatedAt = now
	s.windows[key] = w
	return w, nil
}

func (s *Store) ListWeeklyAvailability(_ context.Context, providerID uuid.UUID) ([]domain.WeeklyAvailability, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.WeeklyAvailability
	for k, w := range s.windows {
		if k.providerID == providerID {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Weekday < out[j].Weekday })
	return out, nil
}

func (s *Store) DeleteWeeklyAvailability(_ context.Context, providerID uuid.UUID, weekday time.Weekday) error {
	key := windowKey{providerID: providerID, weekday: weekday}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.windows[key]; !ok {
		return store.ErrNotFound
	}
	delete(s.windows, key)
	return nil
}

func (s *Store) GetWeeklyAvailability(_ context.Context, providerID uuid.UUID, weekday time.Weekday) (domain.WeeklyAvailability, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.windows[windowKey{providerID: providerID, weekday: weekday}]
	if !ok {
		return domain.WeeklyAvailability{}, store.ErrNotFound
	}
	return w, nil
}

func (s *Store) ListActiveBookings(_ context.Context, providerID uuid.UUID, date time.Time) ([]domain.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeOnLocked(providerID, date, nil), nil
}

func (s *Store) GetBooking(_ context.Context, bookingID uuid.UUID) (domain.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookings[bookingID]
	if !ok {
		return domain.Booking{}, store.ErrNotFound
	}
	return b, nil
}

func (s *Store) ListProviderBookings(_ context.Context, providerID uuid.UUID, date *time.Time) ([]domain.Booking, error) {
	return s.filterBookings(func(b domain.Booking) bool {
		if b.ProviderID != providerID || !b.Active {
			return false
		}
		return date == nil || b.Date.Equal(domain.DateOf(*date))
	}), nil
}

func (s *Store) ListSubjectBookings(_ context.Context, subjectID string) ([]domain.Booking, error) {
	return s.filterBookings(func(b domain.Booking) bool {
		return b.SubjectID == subjectID && b.Active
	}), nil
}

func (s *Store) ListBookingsOn(_ context.Context, date time.Time, status domain.BookingStatus) ([]domain.Booking, error) {
	day := domain.DateOf(date)
	return s.filterBookings(func(b domain.Booking) bool {
		return b.Active && b.Status == status && b.Date.Equal(day)
	}), nil
}

func (s *Store) RecordNotification(_ context.Context, n domain.Notification) error {
	if n.ID == uuid.Nil {
		id, err := newID()
		if err != nil {
			return err
		}
		n.ID = id
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = append(s.notifications, n)
	return nil
}

// Notifications returns a copy of the delivery log in insertion order.
func (s *Store) Notifications() []domain.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Notification, len(s.notifications))
	copy(out, s.notifications)
	return out
}

func (s *Store) filterBookings(keep func(domain.Booking) bool) []domain.Booking {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Booking
	for _, b := range s.bookings {
		if keep(b) {
			out = append(out, b)
		}
	}
	sortBookings(out)
	return out
}

// activeOnLocked lists slot-holding bookings of one provider day, with staged
// overriding committed rows. Callers hold s.mu.
func (s *Store) activeOnLocked(providerID uuid.UUID, date time.Time, staged map[uuid.UUID]domain.Booking) []domain.Booking {
	day := domain.DateOf(date)
	var out []domain.Booking
	consider := func(b domain.Booking) {
		if b.ProviderID == providerID && b.Date.Equal(day) && b.HoldsSlot() {
			out = append(out, b)
		}
	}
	for id, b := range s.bookings {
		if next, ok := staged[id]; ok {
			b = next
		}
		consider(b)
	}
	for id, b := range staged {
		if _, ok := s.bookings[id]; !ok {
			consider(b)
		}
	}
	sortBookings(out)
	return out
}

func sortBookings(bs []domain.Booking) {
	sort.Slice(bs, func(i, j int) bool {
		if !bs[i].Date.Equal(bs[j].Date) {
			return bs[i].Date.Before(bs[j].Date)
		}
		if bs[i].Start != bs[j].Start {
			return bs[i].Start < bs[j].Start
		}
		return bs[i].ID.String() < bs[j].ID.String()
	})
}
