package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"slotkeeper/backend/internal/domain"
)

// BookingReader is the read side shared by repositories and transactions.
type BookingReader interface {
	GetProvider(ctx context.Context, providerID uuid.UUID) (domain.Provider, error)
	GetWeeklyAvailability(ctx context.Context, providerID uuid.UUID, weekday time.Weekday) (domain.WeeklyAvailability, error)
	// ListActiveBookings returns bookings on date that still hold their slot.
	ListActiveBookings(ctx context.Context, providerID uuid.UUID, date time.Time) ([]domain.Booking, error)
}

// BookingTx is the unit of work handed to transactional callbacks.
type BookingTx interface {
	BookingReader

	// GetBookingForUpdate locks the booking row until the transaction ends.
	GetBookingForUpdate(ctx context.Context, bookingID uuid.UUID) (domain.Booking, error)
	InsertBooking(ctx context.Context, b domain.Booking) (domain.Booking, error)
	UpdateBooking(ctx context.Context, b domain.Booking) (domain.Booking, error)
}

type BookingRepository interface {
	BookingReader

	// InProviderDayTransaction runs fn in a transaction that excludes every
	// other InProviderDayTransaction for the same provider and date.
	InProviderDayTransaction(ctx context.Context, providerID uuid.UUID, date time.Time, fn func(ctx context.Context, tx BookingTx) error) error
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx BookingTx) error) error

	GetBooking(ctx context.Context, bookingID uuid.UUID) (domain.Booking, error)
	ListProviderBookings(ctx context.Context, providerID uuid.UUID, date *time.Time) ([]domain.Booking, error)
	ListSubjectBookings(ctx context.Context, subjectID string) ([]domain.Booking, error)
	ListBookingsOn(ctx context.Context, date time.Time, status domain.BookingStatus) ([]domain.Booking, error)
}

type ScheduleRepository interface {
	CreateProvider(ctx context.Context, p domain.Provider) (domain.Provider, error)
	GetProvider(ctx context.Context, providerID uuid.UUID) (domain.Provider, error)
	ListProviders(ctx context.Context, activeOnly bool) ([]domain.Provider, error)
	DeactivateProvider(ctx context.Context, providerID uuid.UUID) error

	UpsertWeeklyAvailability(ctx context.Context, w domain.WeeklyAvailability) (domain.WeeklyAvailability, error)
	ListWeeklyAvailability(ctx context.Context, providerID uuid.UUID) ([]domain.WeeklyAvailability, error)
	DeleteWeeklyAvailability(ctx context.Context, providerID uuid.UUID, weekday time.Weekday) error
}

type NotificationLog interface {
	RecordNotification(ctx context.Context, n domain.Notification) error
}
