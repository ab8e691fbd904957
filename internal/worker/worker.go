package worker

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/ewangclarkson/news-aggregator-app/internal/ingest"
	"github.com/ewangclarkson/news-aggregator-app/internal/logger"
	"github.com/ewangclarkson/news-aggregator-app/internal/queue"
)

// Gate выполняет sweep с учётом частоты запусков.
type Gate interface {
	Run(ctx context.Context) (ingest.Outcome, error)
}

type Worker struct {
	gate Gate
}

func NewWorker(gate Gate) *Worker {
	return &Worker{gate: gate}
}

// HandleTask обрабатывает сообщение-триггер из очереди.
// Пропуск и занятый sweep подтверждаются: повтор ничего не изменит.
// Битое сообщение тоже подтверждается, чтобы не крутить его бесконечно.
func (w *Worker) HandleTask(ctx context.Context, body []byte) error {
	var trigger queue.Trigger
	if err := json.Unmarshal(body, &trigger); err != nil {
		logger.Log.WithError(err).Warn("Dropping malformed trigger message")
		return nil
	}

	log := logger.Log.WithField("requested_by", trigger.RequestedBy)
	log.Info("Processing ingestion trigger")

	outcome, err := w.gate.Run(ctx)
	switch {
	case errors.Is(err, ingest.ErrSweepInProgress):
		log.Info("Sweep already in progress, trigger dropped")
		return nil
	case err != nil:
		log.Errorf("Sweep failed: %v", err)
		return err
	}

	entry := log.WithField("status", outcome.Status)
	if outcome.Summary != nil {
		entry = entry.WithFields(logger.Fields{
			"succeeded": outcome.Summary.Succeeded(),
			"failed":    outcome.Summary.Failed(),
		})
	}
	entry.Info("Trigger processed")
	return nil
}
