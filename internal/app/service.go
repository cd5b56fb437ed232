// Package service runs the polling cycle: fetch each feed, decide what is
// new, format it, dispatch it, and persist the ledger.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/okian/eventwatch/internal/adapters/dispatch"
	"github.com/okian/eventwatch/internal/domain/format"
	"github.com/okian/eventwatch/internal/domain/ledger"
	"github.com/okian/eventwatch/internal/domain/model"
	"github.com/okian/eventwatch/pkg/logger"
	"github.com/okian/eventwatch/pkg/metrics"
)

const defaultInterval = 5 * time.Minute

// Feed is the source of the three documents and the event detail pages.
type Feed interface {
	Events(ctx context.Context) ([]model.EventRecord, error)
	Raids(ctx context.Context) ([]model.RaidRecord, error)
	Eggs(ctx context.Context) ([]model.EggRecord, error)
	Description(ctx context.Context, link string) (string, error)
}

// Dispatcher delivers a payload to every endpoint of a category.
type Dispatcher interface {
	Send(ctx context.Context, category string, endpoints []string, p format.Payload) []dispatch.Result
}

// DispatchTargets lists webhook endpoints per category.
type DispatchTargets struct {
	Events []string
	Raids  []string
	Eggs   []string
}

func (t DispatchTargets) forDataset(d model.Dataset) []string {
	switch d {
	case model.DatasetEvents:
		return t.Events
	case model.DatasetRaids:
		return t.Raids
	case model.DatasetEggs:
		return t.Eggs
	default:
		return nil
	}
}

// State is the scheduler state.
type State string

// Scheduler states.
const (
	StateIdle    State = "idle"
	StateRunning State = "running"
)

// Service implements the polling scheduler and the ops API dependencies.
type Service struct {
	mu sync.RWMutex

	// Core components
	feed       Feed
	dispatcher Dispatcher
	ledger     *ledger.Ledger
	formatter  *format.Formatter

	// Configuration
	targets  DispatchTargets
	interval time.Duration
	loc      *time.Location
	enabled  map[model.Dataset]bool
	now      func() time.Time

	// State
	started   bool
	cron      *cron.Cron
	runCtx    context.Context
	cancelRun context.CancelFunc
	cycleMu   sync.Mutex
	wg        sync.WaitGroup
	stats     cycleStats

	// Logging
	logger logger.Logger
}

type cycleStats struct {
	state        State
	cycles       int64
	lastCycleID  string
	lastStarted  time.Time
	lastDuration time.Duration
	lastErrors   map[model.Dataset]string
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithFeed sets the feed client.
func WithFeed(f Feed) Option {
	return func(s *Service) { s.feed = f }
}

// WithDispatcher sets the webhook fan-out.
func WithDispatcher(d Dispatcher) Option {
	return func(s *Service) { s.dispatcher = d }
}

// WithLedger sets the notification ledger.
func WithLedger(l *ledger.Ledger) Option {
	return func(s *Service) { s.ledger = l }
}

// WithFormatter sets the payload formatter.
func WithFormatter(f *format.Formatter) Option {
	return func(s *Service) {
		if f != nil {
			s.formatter = f
		}
	}
}

// WithTargets sets the webhook endpoints per category.
func WithTargets(t DispatchTargets) Option {
	return func(s *Service) { s.targets = t }
}

// WithInterval sets the poll interval, which is also the bucket width used
// to match event windows.
func WithInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithLocation sets the zone for zone-less feed timestamps.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithDatasets selects which pipelines run.
func WithDatasets(events, raids, eggs bool) Option {
	return func(s *Service) {
		s.enabled = map[model.Dataset]bool{
			model.DatasetEvents: events,
			model.DatasetRaids:  raids,
			model.DatasetEggs:   eggs,
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		formatter: format.New(),
		interval:  defaultInterval,
		loc:       time.Local,
		enabled: map[model.Dataset]bool{
			model.DatasetEvents: true,
			model.DatasetRaids:  true,
		},
		now:    time.Now,
		stats:  cycleStats{state: StateIdle, lastErrors: map[model.Dataset]string{}},
		logger: logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) validate() error {
	switch {
	case s.feed == nil:
		return fmt.Errorf("%w: feed", ErrNotConfigured)
	case s.dispatcher == nil:
		return fmt.Errorf("%w: dispatcher", ErrNotConfigured)
	case s.ledger == nil:
		return fmt.Errorf("%w: ledger", ErrNotConfigured)
	}
	return nil
}

// Start loads the ledger, runs one cycle immediately, and schedules the
// rest at the poll interval. A cycle that is still running when the next
// tick fires makes that tick a no-op.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if err := s.validate(); err != nil {
		return err
	}
	if err := s.ledger.Load(ctx); err != nil {
		return err
	}

	s.runCtx, s.cancelRun = context.WithCancel(context.WithoutCancel(ctx))
	cl := logger.CronLogger{L: s.logger.Named("cron")}
	s.cron = cron.New(
		cron.WithLocation(s.loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	s.cron.Schedule(cron.Every(s.interval), cron.FuncJob(func() {
		if err := s.RunCycle(s.runCtx); err != nil && !errors.Is(err, ErrCycleInProgress) {
			s.logger.Warn(s.runCtx, "cycle finished with errors", logger.Error(err))
		}
	}))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.RunCycle(s.runCtx); err != nil {
			s.logger.Warn(s.runCtx, "startup cycle finished with errors", logger.Error(err))
		}
	}()
	s.cron.Start()

	s.started = true
	s.logger.Info(ctx, "watcher started",
		logger.Duration("interval", s.interval),
		logger.Bool("events", s.enabled[model.DatasetEvents]),
		logger.Bool("raids", s.enabled[model.DatasetRaids]),
		logger.Bool("eggs", s.enabled[model.DatasetEggs]),
	)
	return nil
}

// RunOnce loads the ledger and runs a single cycle without scheduling.
func (s *Service) RunOnce(ctx context.Context) error {
	if err := s.validate(); err != nil {
		return err
	}
	if err := s.ledger.Load(ctx); err != nil {
		return err
	}
	return s.RunCycle(ctx)
}

// Trigger starts an out-of-band cycle in the background. It returns
// ErrCycleInProgress if one is already running.
func (s *Service) Trigger(ctx context.Context) error {
	s.mu.RLock()
	started, runCtx := s.started, s.runCtx
	s.mu.RUnlock()
	if !started {
		return fmt.Errorf("%w: not started", ErrNotConfigured)
	}
	if !s.cycleMu.TryLock() {
		return ErrCycleInProgress
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.cycleMu.Unlock()
		if err := s.runCycle(runCtx); err != nil {
			s.logger.Warn(runCtx, "triggered cycle finished with errors", logger.Error(err))
		}
	}()
	s.logger.Info(ctx, "cycle triggered")
	return nil
}

// Stop halts the scheduler and waits for a running cycle to finish.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	c, cancel := s.cron, s.cancelRun
	s.mu.Unlock()

	s.logger.Info(context.Background(), "stopping watcher...")
	<-c.Stop().Done()
	cancel()
	s.wg.Wait()
	s.logger.Info(context.Background(), "watcher stopped")
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	errs := make(map[string]string, len(s.stats.lastErrors))
	for d, e := range s.stats.lastErrors {
		errs[d.String()] = e
	}
	stats := map[string]interface{}{
		"started":        s.started,
		"state":          s.stats.state,
		"intervalMs":     s.interval.Milliseconds(),
		"cycles":         s.stats.cycles,
		"lastCycleId":    s.stats.lastCycleID,
		"lastDurationMs": s.stats.lastDuration.Milliseconds(),
		"lastErrors":     errs,
		"events":         s.enabled[model.DatasetEvents],
		"raids":          s.enabled[model.DatasetRaids],
		"eggs":           s.enabled[model.DatasetEggs],
	}
	if !s.stats.lastStarted.IsZero() {
		stats["lastCycleAt"] = s.stats.lastStarted
	}
	if s.ledger != nil {
		stats["ledger"] = s.ledger.Stats()
	}
	return stats
}

// Running reports whether a cycle is in progress.
func (s *Service) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats.state == StateRunning
}

func (s *Service) setState(st State) {
	s.mu.Lock()
	s.stats.state = st
	s.mu.Unlock()
	metrics.SetSchedulerRunning(st == StateRunning)
}
