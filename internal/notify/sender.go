package notify

import (
	"context"
	"log/slog"
)

// Sender delivers one text message.
type Sender interface {
	Send(ctx context.Context, phone, message string) error
}

// LogSender writes messages to the log instead of a carrier. It is the
// default until a real gateway is configured.
type LogSender struct {
	SenderID string
	Log      *slog.Logger
}

func (s LogSender) Send(ctx context.Context, phone, message string) error {
	log := s.Log
	if log == nil {
		log = slog.Default()
	}
	log.InfoContext(ctx, "sms sent",
		slog.String("sender_id", s.SenderID),
		slog.String("phone", phone),
		slog.Int("length", len(message)),
	)
	return nil
}
