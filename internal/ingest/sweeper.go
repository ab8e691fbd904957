// ingest запускает обход провайдеров (sweep) и ограничивает частоту обходов.
package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ewangclarkson/news-aggregator-app/internal/logger"
	"github.com/ewangclarkson/news-aggregator-app/internal/metrics"
	"github.com/ewangclarkson/news-aggregator-app/internal/providers"
)

// AdapterFactory источник адаптеров по ключу.
type AdapterFactory interface {
	Create(key providers.Key) (providers.Adapter, error)
}

// SummaryPublisher получает итог каждого завершённого sweep.
type SummaryPublisher interface {
	PublishSummary(ctx context.Context, s Summary) error
}

type ProviderResult struct {
	Key      providers.Key `json:"key"`
	Fetched  int           `json:"fetched"`
	Upserted int           `json:"upserted"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

func (r ProviderResult) OK() bool { return r.Error == "" }

// Summary итог одного sweep. Results идут в порядке Options.Keys.
type Summary struct {
	ID         string           `json:"id"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Results    []ProviderResult `json:"results"`
}

func (s Summary) Succeeded() int {
	n := 0
	for _, r := range s.Results {
		if r.OK() {
			n++
		}
	}
	return n
}

func (s Summary) Failed() int { return len(s.Results) - s.Succeeded() }

type Options struct {
	Keys []providers.Key
	// Timeout ограничивает один провайдер; 0 означает без отдельного ограничения.
	Timeout     time.Duration
	Concurrency int
	Metrics     *metrics.Metrics
	Publisher   SummaryPublisher
}

// Sweeper обходит провайдеров. Сбой одного провайдера не останавливает остальных.
type Sweeper struct {
	factory AdapterFactory
	opts    Options
	now     func() time.Time
}

func NewSweeper(factory AdapterFactory, opts Options) *Sweeper {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Sweeper{factory: factory, opts: opts, now: time.Now}
}

// Sweep запускает всех провайдеров и возвращает сводку. Ошибок не возвращает:
// они записаны в Results.
func (s *Sweeper) Sweep(ctx context.Context) Summary {
	summary := Summary{
		ID:        uuid.NewString(),
		StartedAt: s.now().UTC(),
		Results:   make([]ProviderResult, len(s.opts.Keys)),
	}
	log := logger.Log.WithField("sweep_id", summary.ID)
	log.WithField("providers", len(s.opts.Keys)).Info("Starting sweep")

	if s.opts.Concurrency == 1 {
		for i, key := range s.opts.Keys {
			summary.Results[i] = s.runOne(ctx, key)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(s.opts.Concurrency)
		for i, key := range s.opts.Keys {
			g.Go(func() error {
				summary.Results[i] = s.runOne(ctx, key)
				return nil
			})
		}
		_ = g.Wait()
	}

	summary.FinishedAt = s.now().UTC()
	log.WithFields(logger.Fields{
		"succeeded": summary.Succeeded(),
		"failed":    summary.Failed(),
	}).Info("Sweep finished")

	if s.opts.Publisher != nil {
		if err := s.opts.Publisher.PublishSummary(ctx, summary); err != nil {
			log.WithError(err).Warn("Failed to publish sweep summary")
		}
	}
	return summary
}

func (s *Sweeper) runOne(ctx context.Context, key providers.Key) ProviderResult {
	log := logger.Provider(string(key))
	started := time.Now()
	res := ProviderResult{Key: key}

	out, err := s.fetch(ctx, key)
	res.Fetched, res.Upserted = out.Fetched, out.Upserted
	res.Duration = time.Since(started)
	s.opts.Metrics.ObserveProvider(string(key), out.Upserted, res.Duration, err)

	if err != nil {
		res.Error = err.Error()
		log.WithError(err).WithField("upserted", out.Upserted).Error("Provider failed")
		return res
	}
	log.WithFields(logger.Fields{
		"fetched":  out.Fetched,
		"upserted": out.Upserted,
	}).Info("Provider finished")
	return res
}

func (s *Sweeper) fetch(ctx context.Context, key providers.Key) (res providers.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New("provider panicked")
			logger.Provider(string(key)).WithField("panic", r).Error("Recovered from provider panic")
		}
	}()

	adapter, err := s.factory.Create(key)
	if err != nil {
		return providers.Result{}, err
	}
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}
	return adapter.FetchArticles(ctx)
}
