// app собирает компоненты агрегатора из конфигурации.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/ewangclarkson/news-aggregator-app/internal/archive"
	"github.com/ewangclarkson/news-aggregator-app/internal/config"
	"github.com/ewangclarkson/news-aggregator-app/internal/fetcher"
	"github.com/ewangclarkson/news-aggregator-app/internal/ingest"
	"github.com/ewangclarkson/news-aggregator-app/internal/logger"
	"github.com/ewangclarkson/news-aggregator-app/internal/metrics"
	"github.com/ewangclarkson/news-aggregator-app/internal/providers"
	"github.com/ewangclarkson/news-aggregator-app/internal/queue"
	"github.com/ewangclarkson/news-aggregator-app/internal/search"
	"github.com/ewangclarkson/news-aggregator-app/internal/server"
	"github.com/ewangclarkson/news-aggregator-app/internal/storage"
	"github.com/ewangclarkson/news-aggregator-app/internal/storage/mongo"
	"github.com/ewangclarkson/news-aggregator-app/internal/storage/postgres"
	"github.com/ewangclarkson/news-aggregator-app/internal/storage/redis"
	"github.com/ewangclarkson/news-aggregator-app/internal/storage/sqlite"
	"github.com/ewangclarkson/news-aggregator-app/internal/worker"
)

// App держит собранные зависимости. Close освобождает их в обратном порядке.
type App struct {
	Config   *config.Config
	Store    storage.Store
	Markers  storage.MarkerStore
	Metrics  *metrics.Metrics
	Search   *search.Engine
	Sweeper  *ingest.Sweeper
	Gate     *ingest.Gate
	Producer *queue.Producer

	closers []func()
}

// OpenStore открывает хранилище статей по драйверу из конфигурации.
func OpenStore(ctx context.Context, cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		st, err := postgres.New(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			_ = st.Close()
			return nil, err
		}
		return st, nil
	case config.DriverSQLite:
		return sqlite.New(ctx, cfg.SQLitePath)
	case config.DriverMongo:
		return mongo.New(ctx, cfg.MongoURI, cfg.MongoDatabase)
	}
	return nil, fmt.Errorf("unknown storage driver: %q", cfg.Driver)
}

// New подключает хранилище и опциональные Redis, RabbitMQ и архив.
// Без Redis маркер хранится рядом со статьями, а блокировка локальная.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	st, err := OpenStore(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a.Store = st
	a.onClose(func() { _ = st.Close() })

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.Metrics = metrics.New(reg)

	var locker ingest.Locker = ingest.NewLocalLocker()
	a.Markers = st
	if cfg.Redis.URL != "" {
		rs, err := redis.New(ctx, cfg.Redis.URL, cfg.Redis.LockTTL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.onClose(func() { _ = rs.Close() })
		a.Markers, locker = rs, rs
	}

	var publisher ingest.SummaryPublisher
	if cfg.RabbitMQ.URL != "" {
		p, err := queue.NewProducer(cfg.RabbitMQ.URL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect rabbitmq: %w", err)
		}
		a.onClose(p.Close)
		a.Producer = p
		publisher = queue.NewSummaryPublisher(p, cfg.RabbitMQ.EventsQueue)
	}

	var archiver providers.Archiver
	if cfg.Archive.Enabled {
		arch, err := archive.New(ctx, cfg.Archive)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("open archive: %w", err)
		}
		archiver = arch
	}

	factory := providers.NewFactory(cfg.Providers, providers.Deps{
		Client:  fetcher.New(cfg.Providers.Timeout, cfg.Providers.Retries, cfg.Providers.RetryDelay),
		Store:   st,
		Archive: archiver,
	})

	keys := make([]providers.Key, 0, len(cfg.Providers.Enabled))
	for _, k := range cfg.Providers.Enabled {
		keys = append(keys, providers.Key(k))
	}

	a.Sweeper = ingest.NewSweeper(factory, ingest.Options{
		Keys: keys,
		// Запас сверх таймаута HTTP-клиента на разбор и запись в хранилище.
		Timeout:     cfg.Providers.Timeout*time.Duration(cfg.Providers.Retries+1) + time.Minute,
		Concurrency: cfg.Scheduler.Concurrency,
		Metrics:     a.Metrics,
		Publisher:   publisher,
	})
	a.Gate = ingest.NewGate(a.Markers, locker, a.Sweeper, cfg.Scheduler.Interval, ingest.WithMetrics(a.Metrics))
	a.Search = search.New(st, cfg.Search.PageSize, a.Metrics)

	return a, nil
}

func (a *App) onClose(f func()) { a.closers = append(a.closers, f) }

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// Serve запускает HTTP-сервер, периодический опрос gate и, если настроен RabbitMQ,
// обработчиков триггеров. Возвращается после отмены ctx и остановки сервера.
func (a *App) Serve(ctx context.Context) error {
	cfg := a.Config

	go ingest.StartPolling(ctx, a.Gate, cfg.Scheduler.Tick)

	if cfg.RabbitMQ.URL != "" {
		consumer, err := queue.NewConsumer(cfg.RabbitMQ.URL, cfg.RabbitMQ.TriggerQueue, cfg.RabbitMQ.Workers)
		if err != nil {
			return fmt.Errorf("rabbitmq consumer: %w", err)
		}
		defer consumer.Close()

		wrk := worker.NewWorker(a.Gate)
		if err := consumer.Consume(ctx, wrk.HandleTask); err != nil {
			return err
		}
	}

	srv := server.NewServer(a.Search, a.Gate, a.Store, a.Metrics.Handler())
	httpServer := &http.Server{
		Addr:         cfg.HTTP.Addr(),
		Handler:      srv.Router(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Log.Infof("Starting HTTP server on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Log.Info("Shutting down...")
	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpServer.Shutdown(ctxShutdown)
}
