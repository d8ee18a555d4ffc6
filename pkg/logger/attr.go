package logger

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Error wraps an error as a standard attribute; nil yields "nil".
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "nil")
	}
	return slog.String("error", err.Error())
}

// Component tags records with the emitting subsystem.
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// GroupID tags records with the Telegram group identifier.
func GroupID(id int64) slog.Attr {
	return slog.Int64("group_id", id)
}

// SubscriptionID tags records with the subscription identifier.
func SubscriptionID(id uuid.UUID) slog.Attr {
	return slog.String("subscription_id", id.String())
}

// InvoiceID tags records with the payment processor invoice identifier.
func InvoiceID(id string) slog.Attr {
	return slog.String("invoice_id", id)
}

// Duration records an elapsed time in milliseconds.
func Duration(d time.Duration) slog.Attr {
	return slog.Int64("duration_ms", d.Milliseconds())
}
