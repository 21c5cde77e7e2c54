// Package notify sends booking notifications by SMS. Delivery is
// asynchronous and best effort: callers never see a send failure, and every
// attempt is written to the notification log.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"slotkeeper/backend/internal/domain"
	"slotkeeper/backend/internal/metrics"
	"slotkeeper/backend/internal/store"
)

type Config struct {
	Enabled       bool
	SenderID      string
	RatePerSecond float64
	Burst         int
	QueueSize     int
	SendTimeout   time.Duration
}

// ProviderLookup resolves the provider name used in message bodies.
type ProviderLookup interface {
	GetProvider(ctx context.Context, providerID uuid.UUID) (domain.Provider, error)
}

type job struct {
	kind    domain.NotificationKind
	booking domain.Booking
	phone   string
}

type SMSDispatcher struct {
	cfg       Config
	sender    Sender
	recorder  store.NotificationLog
	providers ProviderLookup
	limiter   *rate.Limiter
	log       *slog.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan job
	done   chan struct{}
}

func NewSMSDispatcher(cfg Config, sender Sender, recorder store.NotificationLog, providers ProviderLookup, log *slog.Logger) *SMSDispatcher {
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("component", "notify.sms"))
	if sender == nil {
		sender = LogSender{SenderID: cfg.SenderID, Log: log}
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}

	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	d := &SMSDispatcher{
		cfg:       cfg,
		sender:    sender,
		recorder:  recorder,
		providers: providers,
		limiter:   rate.NewLimiter(limit, burst),
		log:       log,
		queue:     make(chan job, cfg.QueueSize),
		done:      make(chan struct{}),
	}
	if cfg.Enabled {
		go d.run()
	} else {
		close(d.done)
	}
	return d
}

func (d *SMSDispatcher) NotifyConfirmed(ctx context.Context, b domain.Booking) {
	d.enqueue(ctx, job{kind: domain.NotificationKindConfirmed, booking: b, phone: b.ContactPhone})
}

func (d *SMSDispatcher) NotifyCancelled(ctx context.Context, b domain.Booking) {
	d.enqueue(ctx, job{kind: domain.NotificationKindCancelled, booking: b, phone: b.ContactPhone})
}

func (d *SMSDispatcher) NotifyReminder(ctx context.Context, b domain.Booking) {
	d.enqueue(ctx, job{kind: domain.NotificationKindReminder, booking: b, phone: b.ContactPhone})
}

func (d *SMSDispatcher) enqueue(ctx context.Context, j job) {
	if !d.cfg.Enabled {
		return
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.log.WarnContext(ctx, "notification dropped", slog.String("kind", string(j.kind)), slog.String("reason", "closed"))
		metrics.RecordNotification(string(j.kind), "dropped")
		return
	}
	select {
	case d.queue <- j:
		metrics.SetNotificationQueueDepth(len(d.queue))
	default:
		d.log.WarnContext(ctx, "notification dropped", slog.String("kind", string(j.kind)), slog.String("reason", "queue_full"))
		metrics.RecordNotification(string(j.kind), "dropped")
	}
}

// Close stops accepting work and waits for queued messages to be sent.
func (d *SMSDispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		if d.cfg.Enabled {
			close(d.queue)
		}
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *SMSDispatcher) run() {
	defer close(d.done)
	for j := range d.queue {
		metrics.SetNotificationQueueDepth(len(d.queue))
		d.deliver(j)
	}
}

func (d *SMSDispatcher) deliver(j job) {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.SendTimeout)
	defer cancel()

	id := j.booking.ID
	n := domain.Notification{
		BookingID: &id,
		Kind:      j.kind,
		Phone:     j.phone,
		Message:   render(j.kind, d.providerName(ctx, j.booking.ProviderID), j.booking),
	}

	log := d.log.With(slog.String("kind", string(j.kind)), slog.String("booking_id", id.String()))

	switch {
	case n.Phone == "":
		n.Status = domain.NotificationStatusSkipped
		n.Error = "no contact phone"
		log.Debug("notification skipped", slog.String("reason", "no_phone"))
	default:
		err := d.limiter.Wait(ctx)
		if err == nil {
			err = d.sender.Send(ctx, n.Phone, n.Message)
		}
		if err != nil {
			n.Status = domain.NotificationStatusFailed
			n.Error = err.Error()
			log.Warn("notification failed", slog.Any("err", err))
		} else {
			sentAt := time.Now().UTC()
			n.Status = domain.NotificationStatusSent
			n.SentAt = &sentAt
		}
	}
	metrics.RecordNotification(string(n.Kind), string(n.Status))

	if d.recorder == nil {
		return
	}
	if err := d.recorder.RecordNotification(ctx, n); err != nil {
		log.Warn("notification log write failed", slog.Any("err", err))
	}
}

func (d *SMSDispatcher) providerName(ctx context.Context, providerID uuid.UUID) string {
	const fallback = "your provider"
	if d.providers == nil {
		return fallback
	}
	p, err := d.providers.GetProvider(ctx, providerID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			d.log.Warn("provider lookup failed", slog.Any("err", err), slog.String("provider_id", providerID.String()))
		}
		return fallback
	}
	return p.DisplayName
}
