package reminders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"slotkeeper/backend/internal/domain"
)

type fakeLister struct {
	listFn func(ctx context.Context, date time.Time, status domain.BookingStatus) ([]domain.Booking, error)
}

func (f *fakeLister) ListBookingsOn(ctx context.Context, date time.Time, status domain.BookingStatus) ([]domain.Booking, error) {
	if f.listFn == nil {
		panic("ListBookingsOn not configured")
	}
	return f.listFn(ctx, date, status)
}

type fakeNotifier struct {
	reminded []domain.Booking
}

func (f *fakeNotifier) NotifyReminder(_ context.Context, b domain.Booking) {
	f.reminded = append(f.reminded, b)
}

func TestJobRun_UsesTomorrowInLocation(t *testing.T) {
	loc, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		t.Fatalf("LoadLocation error: %v", err)
	}

	var (
		gotDate   time.Time
		gotStatus domain.BookingStatus
	)
	lister := &fakeLister{listFn: func(ctx context.Context, date time.Time, status domain.BookingStatus) ([]domain.Booking, error) {
		gotDate, gotStatus = date, status
		return []domain.Booking{{ID: uuid.New()}, {ID: uuid.New()}}, nil
	}}
	n := &fakeNotifier{}

	job := NewJob(lister, n, loc, nil)
	// 2026-01-06 02:00 UTC is still the evening of 2026-01-05 in Los Angeles.
	job.now = func() time.Time { return time.Date(2026, 1, 6, 2, 0, 0, 0, time.UTC) }

	count, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if count != 2 || len(n.reminded) != 2 {
		t.Fatalf("count = %d, reminded = %d, want 2", count, len(n.reminded))
	}
	want := time.Date(2026, 1, 6, 0, 0, 0, 0, time.UTC)
	if !gotDate.Equal(want) {
		t.Fatalf("date = %v, want %v", gotDate, want)
	}
	if gotStatus != domain.BookingStatusConfirmed {
		t.Fatalf("status = %q, want %q", gotStatus, domain.BookingStatusConfirmed)
	}
}

func TestJobRun_QueryError(t *testing.T) {
	boom := errors.New("boom")
	n := &fakeNotifier{}
	job := NewJob(&fakeLister{listFn: func(ctx context.Context, date time.Time, status domain.BookingStatus) ([]domain.Booking, error) {
		return nil, boom
	}}, n, nil, nil)

	if _, err := job.Run(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if len(n.reminded) != 0 {
		t.Fatalf("reminded = %d, want 0", len(n.reminded))
	}
}

func TestNewScheduler(t *testing.T) {
	job := NewJob(&fakeLister{}, &fakeNotifier{}, nil, nil)

	if _, err := NewScheduler("not a schedule", job, nil, 0, nil); err == nil {
		t.Fatalf("expected error for invalid schedule")
	}

	s, err := NewScheduler(DefaultSchedule, job, time.UTC, time.Second, nil)
	if err != nil {
		t.Fatalf("NewScheduler error: %v", err)
	}
	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop error: %v", err)
	}
}
