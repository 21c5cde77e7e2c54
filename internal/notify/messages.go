package notify

import (
	"fmt"
	"time"

	"slotkeeper/backend/internal/domain"
)

const (
	dateLayout  = "01/02/2006"
	clockLayout = "03:04 PM"
)

func clock(b domain.Booking) string {
	return b.Start.On(b.Date, time.UTC).Format(clockLayout)
}

func confirmedMessage(provider string, b domain.Booking) string {
	return fmt.Sprintf(
		"Your appointment with %s has been confirmed for %s at %s. Please arrive 10 minutes before your appointment time.",
		provider, b.Date.Format(dateLayout), clock(b),
	)
}

func cancelledMessage(provider string, b domain.Booking) string {
	return fmt.Sprintf(
		"Your appointment with %s for %s at %s has been cancelled. Please contact the clinic to reschedule.",
		provider, b.Date.Format(dateLayout), clock(b),
	)
}

func reminderMessage(provider string, b domain.Booking) string {
	return fmt.Sprintf(
		"Reminder: You have an appointment with %s tomorrow at %s. Please arrive 10 minutes before your appointment time.",
		provider, clock(b),
	)
}

func render(kind domain.NotificationKind, provider string, b domain.Booking) string {
	switch kind {
	case domain.NotificationKindConfirmed:
		return confirmedMessage(provider, b)
	case domain.NotificationKindCancelled:
		return cancelledMessage(provider, b)
	case domain.NotificationKindReminder:
		return reminderMessage(provider, b)
	}
	return ""
}
