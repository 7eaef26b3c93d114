// Package delivery pushes persisted workflow notifications out to external
// channels. It is strictly best-effort and asynchronous: a send failure never
// touches appointment state, the row just stays undelivered and is retried
// on the next poll.
package delivery

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/igabay/care/internal/domain/notification"
)

// Channel is one way of reaching a recipient (push, email, SMS).
type Channel interface {
	Name() string
	Send(ctx context.Context, n *notification.Notification) error
}

// Worker drains undelivered notifications on an interval.
type Worker struct {
	repo     notification.Repository
	channels []Channel
	interval time.Duration
	batch    int
	logger   zerolog.Logger
}

func NewWorker(repo notification.Repository, channels []Channel, interval time.Duration, batch int, logger zerolog.Logger) *Worker {
	return &Worker{
		repo:     repo,
		channels: channels,
		interval: interval,
		batch:    batch,
		logger:   logger,
	}
}

// Run polls until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info().
		Dur("interval", w.interval).
		Int("batch", w.batch).
		Msg("delivery worker started")

	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("delivery worker stopped")
			return
		case <-ticker.C:
			if n, err := w.DeliverBatch(ctx); err != nil {
				w.logger.Error().Err(err).Msg("delivery batch failed")
			} else if n > 0 {
				w.logger.Debug().Int("delivered", n).Msg("delivery batch done")
			}
		}
	}
}

// DeliverBatch sends one batch of undelivered notifications and returns how
// many were delivered. A notification counts as delivered when the first
// channel accepts it.
func (w *Worker) DeliverBatch(ctx context.Context) (int, error) {
	notifs, err := w.repo.ListUndelivered(ctx, w.batch)
	if err != nil {
		return 0, err
	}

	delivered := 0
	for _, n := range notifs {
		ch, err := w.send(ctx, n)
		if err != nil {
			w.logger.Warn().
				Err(err).
				Str("notification_id", n.ID.String()).
				Str("category", string(n.Category)).
				Msg("all channels failed, will retry")
			continue
		}
		if err := w.repo.MarkDelivered(ctx, n.ID, ch, time.Now().UTC()); err != nil {
			w.logger.Error().Err(err).Str("notification_id", n.ID.String()).Msg("mark delivered failed")
			continue
		}
		delivered++
	}
	return delivered, nil
}

func (w *Worker) send(ctx context.Context, n *notification.Notification) (string, error) {
	var lastErr error
	for _, ch := range w.channels {
		if err := ch.Send(ctx, n); err != nil {
			lastErr = err
			continue
		}
		return ch.Name(), nil
	}
	return "", lastErr
}
