package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type NotificationKind string

const (
	NotificationKindConfirmed NotificationKind = "confirmed"
	NotificationKindCancelled NotificationKind = "cancelled"
	NotificationKindReminder  NotificationKind = "reminder"
)

type NotificationStatus string

const (
	NotificationStatusSent    NotificationStatus = "sent"
	NotificationStatusFailed  NotificationStatus = "failed"
	NotificationStatusSkipped NotificationStatus = "skipped"
)

// Notification is the delivery log entry for one outbound message.
type Notification struct {
	bun.BaseModel `bun:"table:notifications"`

	ID        uuid.UUID          `bun:"id,pk,type:uuid"`
	BookingID *uuid.UUID         `bun:"booking_id,type:uuid"`
	Kind      NotificationKind   `bun:"kind,notnull"`
	Phone     string             `bun:"phone,notnull"`
	Message   string             `bun:"message,notnull"`
	Status    NotificationStatus `bun:"status,notnull"`
	Error     string             `bun:"error"`
	CreatedAt time.Time          `bun:"created_at,notnull"`
	SentAt    *time.Time         `bun:"sent_at"`
}

func (n *Notification) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	if _, ok := query.(*bun.InsertQuery); !ok {
		return nil
	}
	if n.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		n.ID = id
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	return nil
}
