package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ewangclarkson/news-aggregator-app/internal/logger"
	"github.com/ewangclarkson/news-aggregator-app/internal/metrics"
	"github.com/ewangclarkson/news-aggregator-app/internal/storage"
)

// SweepMarker имя маркера и блокировки sweep. Один маркер на всех провайдеров.
const SweepMarker = "ingestion_sweep"

const markerWriteTimeout = 10 * time.Second

// ErrSweepInProgress другой sweep уже держит блокировку.
var ErrSweepInProgress = errors.New("ingestion sweep already in progress")

type Status string

const (
	StatusRan     Status = "ran"
	StatusSkipped Status = "skipped"
	StatusBusy    Status = "busy"
)

type Outcome struct {
	Status  Status     `json:"status"`
	Reason  string     `json:"reason,omitempty"`
	LastRun *time.Time `json:"last_run,omitempty"`
	Summary *Summary   `json:"summary,omitempty"`
}

// Runner выполняет один sweep.
type Runner interface {
	Sweep(ctx context.Context) Summary
}

// Locker даёт взаимное исключение для sweep. ok=false означает, что блокировка занята.
type Locker interface {
	TryLock(ctx context.Context, name string) (unlock func(), ok bool, err error)
}

// LocalLocker блокировка в пределах одного процесса.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *LocalLocker) TryLock(_ context.Context, name string) (func(), bool, error) {
	l.mu.Lock()
	m, ok := l.locks[name]
	if !ok {
		m = &sync.Mutex{}
		l.locks[name] = m
	}
	l.mu.Unlock()

	if !m.TryLock() {
		return nil, false, nil
	}
	return m.Unlock, true, nil
}

// Gate пропускает sweep не чаще одного раза за interval.
// Проверка маркера, sweep и запись маркера выполняются под одной блокировкой.
type Gate struct {
	markers  storage.MarkerStore
	locker   Locker
	runner   Runner
	interval time.Duration
	metrics  *metrics.Metrics
	now      func() time.Time
}

type GateOption func(*Gate)

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) GateOption {
	return func(g *Gate) { g.now = now }
}

func WithMetrics(m *metrics.Metrics) GateOption {
	return func(g *Gate) { g.metrics = m }
}

func NewGate(markers storage.MarkerStore, locker Locker, runner Runner, interval time.Duration, opts ...GateOption) *Gate {
	g := &Gate{
		markers:  markers,
		locker:   locker,
		runner:   runner,
		interval: interval,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gate) Interval() time.Duration { return g.interval }

// LastRun возвращает время начала последнего sweep.
func (g *Gate) LastRun(ctx context.Context) (time.Time, bool, error) {
	return g.markers.LastRun(ctx, SweepMarker)
}

// Run выполняет sweep, если с прошлого запуска прошло не меньше interval.
// Пропуск не меняет маркер. После sweep маркер равен времени его начала,
// даже если часть провайдеров упала.
func (g *Gate) Run(ctx context.Context) (Outcome, error) {
	log := logger.Log.WithField("service", "gate")

	unlock, ok, err := g.locker.TryLock(ctx, SweepMarker)
	if err != nil {
		return Outcome{}, fmt.Errorf("acquire sweep lock: %w", err)
	}
	if !ok {
		log.Info("Sweep already in progress")
		g.metrics.ObserveSweep(string(StatusBusy), time.Time{})
		return Outcome{Status: StatusBusy, Reason: "sweep in progress"}, ErrSweepInProgress
	}
	defer unlock()

	now := g.now()
	last, found, err := g.markers.LastRun(ctx, SweepMarker)
	if err != nil {
		return Outcome{}, fmt.Errorf("read sweep marker: %w", err)
	}
	if found && now.Sub(last) < g.interval {
		log.WithField("last_run", last).Info("Skipping sweep: already run recently")
		g.metrics.ObserveSweep(string(StatusSkipped), time.Time{})
		return Outcome{Status: StatusSkipped, Reason: "already run recently", LastRun: &last}, nil
	}

	summary := g.runner.Sweep(ctx)
	startedAt := now.UTC()

	// Провайдеры уже записали статьи: маркер пишется и после отмены ctx вызывающим.
	markerCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), markerWriteTimeout)
	defer cancel()
	if err := g.markers.SetLastRun(markerCtx, SweepMarker, startedAt); err != nil {
		return Outcome{Status: StatusRan, Summary: &summary}, fmt.Errorf("write sweep marker: %w", err)
	}
	g.metrics.ObserveSweep(string(StatusRan), startedAt)

	return Outcome{Status: StatusRan, LastRun: &startedAt, Summary: &summary}, nil
}
