package notify

import (
	"context"
	"log/slog"
)

// LogMessenger writes messages to the log instead of delivering them.
// Used in development when no bot token is configured.
type LogMessenger struct {
	log *slog.Logger
}

// NewLogMessenger creates a log-only messenger.
func NewLogMessenger(log *slog.Logger) *LogMessenger {
	if log == nil {
		log = slog.Default()
	}
	return &LogMessenger{log: log}
}

func (m *LogMessenger) SendMessage(ctx context.Context, chatID int64, text string) error {
	m.log.InfoContext(ctx, "outbound message (log only)",
		slog.Int64("chat_id", chatID),
		slog.String("text", text))
	return nil
}
