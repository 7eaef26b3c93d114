package delivery

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/igabay/care/internal/domain/notification"
)

// LogChannel writes notifications to the log. It stands in for a real push
// or email integration in development and keeps the worker exercisable
// without external credentials.
type LogChannel struct {
	logger zerolog.Logger
}

func NewLogChannel(logger zerolog.Logger) *LogChannel {
	return &LogChannel{logger: logger}
}

func (c *LogChannel) Name() string { return "log" }

func (c *LogChannel) Send(_ context.Context, n *notification.Notification) error {
	c.logger.Info().
		Str("recipient_id", n.RecipientID.String()).
		Str("recipient_type", string(n.RecipientType)).
		Str("category", string(n.Category)).
		Str("priority", string(n.Priority)).
		Str("title", n.Title).
		Msg("notification delivered")
	return nil
}
