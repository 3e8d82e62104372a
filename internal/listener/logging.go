// Package listener provides send listeners for the Mailjet transport.
package listener

import (
	"context"
	"log/slog"

	"github.com/shineum/mailjet-relay/internal/mailjet"
)

// Logging writes one log record before and after every send.
type Logging struct {
	logger *slog.Logger
}

// NewLogging returns a Logging listener. A nil logger means slog.Default.
func NewLogging(logger *slog.Logger) *Logging {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logging{logger: logger}
}

func (l *Logging) BeforeSendPerformed(ctx context.Context, ev *mailjet.SendEvent) {
	msg := ev.Message()
	l.logger.DebugContext(ctx, "sending message",
		"message_id", msg.MessageID,
		"schema", ev.Transport().Builder().Version(),
		"subject", msg.Subject,
		"recipients", len(msg.Recipients()),
	)
}

func (l *Logging) SendPerformed(ctx context.Context, ev *mailjet.SendEvent) {
	msg := ev.Message()
	attrs := []any{
		"message_id", msg.MessageID,
		"schema", ev.Transport().Builder().Version(),
		"outcome", ev.Result().String(),
	}
	if failed := ev.FailedRecipients(); len(failed) > 0 {
		emails := make([]string, 0, len(failed))
		for _, a := range failed {
			emails = append(emails, a.Email)
		}
		attrs = append(attrs, "failed_recipients", emails)
		l.logger.WarnContext(ctx, "message not delivered", attrs...)
		return
	}
	l.logger.InfoContext(ctx, "message sent", attrs...)
}
