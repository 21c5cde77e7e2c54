package reminders

import (
	"context"
	"log/slog"
	"time"

	"slotkeeper/backend/internal/domain"
	"slotkeeper/backend/internal/metrics"
)

type BookingLister interface {
	ListBookingsOn(ctx context.Context, date time.Time, status domain.BookingStatus) ([]domain.Booking, error)
}

type Notifier interface {
	NotifyReminder(ctx context.Context, b domain.Booking)
}

// Job reminds subjects of their confirmed bookings for the next local day.
type Job struct {
	bookings BookingLister
	notifier Notifier
	loc      *time.Location
	now      func() time.Time
	log      *slog.Logger
}

func NewJob(bookings BookingLister, notifier Notifier, loc *time.Location, log *slog.Logger) *Job {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = slog.Default()
	}
	return &Job{
		bookings: bookings,
		notifier: notifier,
		loc:      loc,
		now:      time.Now,
		log:      log.With(slog.String("component", "reminders")),
	}
}

// Run queues one reminder per confirmed booking tomorrow and reports how many
// were queued.
func (j *Job) Run(ctx context.Context) (int, error) {
	tomorrow := domain.DateOf(j.now().In(j.loc)).AddDate(0, 0, 1)

	rows, err := j.bookings.ListBookingsOn(ctx, tomorrow, domain.BookingStatusConfirmed)
	if err != nil {
		j.log.Error("reminder query failed", slog.Any("err", err), slog.String("date", domain.FormatDate(tomorrow)))
		return 0, err
	}

	for _, b := range rows {
		j.notifier.NotifyReminder(ctx, b)
		metrics.RecordReminder()
	}

	j.log.Info("reminders queued", slog.String("date", domain.FormatDate(tomorrow)), slog.Int("count", len(rows)))
	return len(rows), nil
}
