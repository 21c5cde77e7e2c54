package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BookingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slotkeeper_bookings_total",
			Help: "Booking operations by outcome.",
		},
		[]string{"operation", "result"},
	)

	BookingTxDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "slotkeeper_booking_tx_duration_seconds",
			Help:    "Time spent in booking transactions, lock wait included.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slotkeeper_notifications_total",
			Help: "Outbound notifications by kind and delivery status.",
		},
		[]string{"kind", "status"},
	)

	NotificationQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slotkeeper_notification_queue_depth",
			Help: "Notifications waiting for the sender.",
		},
	)

	RemindersSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "slotkeeper_reminders_sent_total",
			Help: "Reminders handed to the dispatcher.",
		},
	)

	GRPCRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slotkeeper_grpc_requests_total",
			Help: "Unary RPCs by method and status code.",
		},
		[]string{"method", "code"},
	)
)

// RecordBooking counts one coordinator operation. result is "ok" or a
// rejection reason.
func RecordBooking(operation, result string) {
	BookingsTotal.WithLabelValues(operation, result).Inc()
}

func ObserveBookingTx(operation string, started time.Time) {
	BookingTxDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

func RecordNotification(kind, status string) {
	NotificationsTotal.WithLabelValues(kind, status).Inc()
}

func SetNotificationQueueDepth(n int) {
	NotificationQueueDepth.Set(float64(n))
}

func RecordReminder() {
	RemindersSent.Inc()
}

func RecordGRPCRequest(method, code string) {
	GRPCRequestsTotal.WithLabelValues(method, code).Inc()
}
