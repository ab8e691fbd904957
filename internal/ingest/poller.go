package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/ewangclarkson/news-aggregator-app/internal/logger"
)

// StartPolling раз в tick пробует пройти через gate. Частоту реальных sweep
// ограничивает сам gate, поэтому tick может быть меньше его interval.
// Блокирует до отмены ctx.
func StartPolling(ctx context.Context, gate *Gate, tick time.Duration) {
	log := logger.Log.WithFields(logger.Fields{
		"service":  "poller",
		"tick":     tick.String(),
		"interval": gate.Interval().String(),
	})

	poll := func() {
		outcome, err := gate.Run(ctx)
		switch {
		case errors.Is(err, ErrSweepInProgress):
			log.Debug("Sweep held by another runner")
		case err != nil:
			log.WithError(err).Error("Polling cycle failed")
		default:
			log.WithField("status", outcome.Status).Debug("Polling cycle finished")
		}
	}

	poll()

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			poll()
		case <-ctx.Done():
			log.Info("Stopping poller by context")
			return
		}
	}
}
