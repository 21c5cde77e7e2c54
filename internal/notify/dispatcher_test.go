package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"slotkeeper/backend/internal/domain"
	"slotkeeper/backend/internal/store/memory"
)

type fakeSender struct {
	mu     sync.Mutex
	sent   []string
	sendFn func(ctx context.Context, phone, message string) error
}

func (f *fakeSender) Send(ctx context.Context, phone, message string) error {
	f.mu.Lock()
	f.sent = append(f.sent, phone+"|"+message)
	f.mu.Unlock()
	if f.sendFn != nil {
		return f.sendFn(ctx, phone, message)
	}
	return nil
}

func testBooking(t *testing.T, s *memory.Store, phone string) domain.Booking {
	t.Helper()
	p, err := s.CreateProvider(context.Background(), domain.Provider{DisplayName: "Dr. Ada Lovelace", Active: true})
	if err != nil {
		t.Fatalf("CreateProvider error: %v", err)
	}
	return domain.Booking{
		ID:           uuid.New(),
		ProviderID:   p.ID,
		ContactPhone: phone,
		Date:         time.Date(2026, 1, 6, 0, 0, 0, 0, time.UTC),
		Start:        14*60 + 30,
		End:          15 * 60,
		Status:       domain.BookingStatusPending,
		Active:       true,
	}
}

func closeDispatcher(t *testing.T, d *SMSDispatcher) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.Close(ctx); err != nil {
		t.Fatalf("Close error: %v", err)
	}
}

func TestDispatcher_RecordsSentMessages(t *testing.T) {
	s := memory.New()
	sender := &fakeSender{}
	d := NewSMSDispatcher(Config{Enabled: true, QueueSize: 8}, sender, s, s, nil)

	b := testBooking(t, s, "+15550100")
	d.NotifyConfirmed(context.Background(), b)
	d.NotifyCancelled(context.Background(), b)
	d.NotifyReminder(context.Background(), b)
	closeDispatcher(t, d)

	got := s.Notifications()
	if len(got) != 3 {
		t.Fatalf("len(notifications) = %d, want 3", len(got))
	}

	wantKinds := []domain.NotificationKind{domain.NotificationKindConfirmed, domain.NotificationKindCancelled, domain.NotificationKindReminder}
	for i, n := range got {
		if n.Kind != wantKinds[i] {
			t.Fatalf("notification[%d].Kind = %q, want %q", i, n.Kind, wantKinds[i])
		}
		if n.Status != domain.NotificationStatusSent || n.SentAt == nil {
			t.Fatalf("notification[%d] = %+v, want sent", i, n)
		}
		if n.BookingID == nil || *n.BookingID != b.ID {
			t.Fatalf("notification[%d].BookingID = %v, want %s", i, n.BookingID, b.ID)
		}
	}

	want := "Your appointment with Dr. Ada Lovelace has been confirmed for 01/06/2026 at 02:30 PM. Please arrive 10 minutes before your appointment time."
	if got[0].Message != want {
		t.Fatalf("message = %q, want %q", got[0].Message, want)
	}
	if !strings.Contains(got[1].Message, "has been cancelled") {
		t.Fatalf("cancel message = %q", got[1].Message)
	}
	if !strings.HasPrefix(got[2].Message, "Reminder: You have an appointment with Dr. Ada Lovelace tomorrow at 02:30 PM.") {
		t.Fatalf("reminder message = %q", got[2].Message)
	}
}

func TestDispatcher_FailuresAreRecordedNotReturned(t *testing.T) {
	s := memory.New()
	sender := &fakeSender{sendFn: func(ctx context.Context, phone, message string) error {
		return errors.New("carrier down")
	}}
	d := NewSMSDispatcher(Config{Enabled: true}, sender, s, s, nil)

	d.NotifyConfirmed(context.Background(), testBooking(t, s, "+15550100"))
	closeDispatcher(t, d)

	got := s.Notifications()
	if len(got) != 1 {
		t.Fatalf("len(notifications) = %d, want 1", len(got))
	}
	if got[0].Status != domain.NotificationStatusFailed || got[0].Error != "carrier down" {
		t.Fatalf("notification = %+v, want failed with carrier error", got[0])
	}
}

func TestDispatcher_SkipsMissingPhone(t *testing.T) {
	s := memory.New()
	sender := &fakeSender{}
	d := NewSMSDispatcher(Config{Enabled: true}, sender, s, s, nil)

	d.NotifyConfirmed(context.Background(), testBooking(t, s, ""))
	closeDispatcher(t, d)

	got := s.Notifications()
	if len(got) != 1 || got[0].Status != domain.NotificationStatusSkipped {
		t.Fatalf("notifications = %+v, want one skipped", got)
	}
	if len(sender.sent) != 0 {
		t.Fatalf("sender called %d times, want 0", len(sender.sent))
	}
}

func TestDispatcher_DisabledDoesNothing(t *testing.T) {
	s := memory.New()
	sender := &fakeSender{}
	d := NewSMSDispatcher(Config{Enabled: false}, sender, s, s, nil)

	d.NotifyConfirmed(context.Background(), testBooking(t, s, "+15550100"))
	d.NotifyReminder(context.Background(), testBooking(t, s, "+15550100"))
	closeDispatcher(t, d)

	if len(s.Notifications()) != 0 || len(sender.sent) != 0 {
		t.Fatalf("disabled dispatcher sent or recorded messages")
	}
}

func TestDispatcher_AfterCloseIsIgnored(t *testing.T) {
	s := memory.New()
	sender := &fakeSender{}
	d := NewSMSDispatcher(Config{Enabled: true, RatePerSecond: 1000, Burst: 10}, sender, s, s, nil)

	b := testBooking(t, s, "+15550100")
	d.NotifyConfirmed(context.Background(), b)
	closeDispatcher(t, d)
	d.NotifyCancelled(context.Background(), b)

	got := s.Notifications()
	if len(got) != 1 {
		t.Fatalf("len(notifications) = %d, want 1", len(got))
	}
	if got[0].BookingID == nil || *got[0].BookingID != b.ID || got[0].Kind != domain.NotificationKindConfirmed {
		t.Fatalf("notification = %+v", got[0])
	}
}

func TestDispatcher_UnknownProviderFallsBack(t *testing.T) {
	s := memory.New()
	d := NewSMSDispatcher(Config{Enabled: true}, &fakeSender{}, s, s, nil)

	b := testBooking(t, s, "+15550100")
	b.ProviderID = uuid.New()
	d.NotifyCancelled(context.Background(), b)
	closeDispatcher(t, d)

	got := s.Notifications()
	if len(got) != 1 || !strings.Contains(got[0].Message, "with your provider for 01/06/2026") {
		t.Fatalf("notifications = %+v", got)
	}
}
