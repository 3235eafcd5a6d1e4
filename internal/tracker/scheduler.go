package tracker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	logx "walletwatch/pkg/logx"
)

// SchedulerConfig controls the poll loop.
type SchedulerConfig struct {
	// Interval between full poll passes (default 2m).
	Interval time.Duration
	// InitialDelay before the very first pass (default 10s).
	InitialDelay time.Duration
	// Workers bounds concurrent per-tenant cycles in one pass (default 1).
	Workers int
}

func (c *SchedulerConfig) normalize() {
	if c.Interval <= 0 {
		c.Interval = 2 * time.Minute
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = 10 * time.Second
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
}

// Scheduler runs the periodic poll loop across all tenants and serves
// on-demand checks. A per-tenant lock guarantees that at most one cycle
// runs for a given tenant at any time; an on-demand check that collides
// with a running cycle fails with ErrCheckInProgress instead of queueing.
type Scheduler struct {
	cfg        SchedulerConfig
	store      *Store
	cycle      *Cycle
	dispatcher *Dispatcher
	log        logx.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	entry   cron.EntryID
	started bool
	runCtx  context.Context
	cancel  context.CancelFunc

	locksMu sync.Mutex
	locks   map[int64]*sync.Mutex
}

func NewScheduler(cfg SchedulerConfig, store *Store, cycle *Cycle, dispatcher *Dispatcher, log logx.Logger) *Scheduler {
	cfg.normalize()
	return &Scheduler{
		cfg:        cfg,
		store:      store,
		cycle:      cycle,
		dispatcher: dispatcher,
		log:        log,
		locks:      map[int64]*sync.Mutex{},
	}
}

// Start arms the poll loop: one pass after InitialDelay, then every
// Interval. Safe to call once; Stop tears it down.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("scheduler already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.runCtx = runCtx
	s.cancel = cancel
	s.cron = cron.New()

	entry, err := s.cron.AddFunc(everySpec(s.cfg.Interval), func() { s.runAll(runCtx) })
	if err != nil {
		cancel()
		return fmt.Errorf("schedule poll loop: %w", err)
	}
	s.entry = entry
	s.started = true

	// The cron entry first fires a full Interval after start; the warmup
	// pass covers the gap so fresh activity shows up quickly.
	go func() {
		select {
		case <-runCtx.Done():
			return
		case <-time.After(s.cfg.InitialDelay):
		}
		s.runAll(runCtx)
	}()

	s.cron.Start()
	s.log.Info("scheduler started",
		logx.Duration("interval", s.cfg.Interval),
		logx.Duration("initial_delay", s.cfg.InitialDelay),
		logx.Int("workers", s.cfg.Workers))
	return nil
}

// Apply reschedules the poll loop when the interval changed. The current
// pass, if any, finishes under the old settings.
func (s *Scheduler) Apply(cfg SchedulerConfig) {
	cfg.normalize()
	s.mu.Lock()
	defer s.mu.Unlock()
	if cfg.Interval == s.cfg.Interval && cfg.Workers == s.cfg.Workers {
		s.cfg = cfg
		return
	}
	s.cfg = cfg
	if !s.started {
		return
	}
	s.cron.Remove(s.entry)
	runCtx := s.runCtx
	entry, err := s.cron.AddFunc(everySpec(cfg.Interval), func() { s.runAll(runCtx) })
	if err != nil {
		s.log.Error("reschedule failed", logx.Err(err))
		return
	}
	s.entry = entry
	s.log.Info("scheduler rescheduled", logx.Duration("interval", cfg.Interval))
}

// Stop halts the loop and waits for in-flight cron jobs to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	if s.cancel != nil {
		s.cancel()
	}
	<-s.cron.Stop().Done()
	s.started = false
	s.log.Info("scheduler stopped")
}

// ManualCheck runs one cycle for the tenant right now and reports how many
// novel transactions it produced. Returns ErrCheckInProgress when a
// scheduled cycle already holds the tenant.
func (s *Scheduler) ManualCheck(ctx context.Context, tenantID int64) (int, error) {
	lock := s.tenantLock(tenantID)
	if !lock.TryLock() {
		return 0, ErrCheckInProgress
	}
	defer lock.Unlock()

	alerts, err := s.cycle.Run(ctx, tenantID)
	if err != nil {
		return 0, err
	}
	if len(alerts) == 0 {
		return 0, nil
	}
	if _, err := s.dispatcher.Deliver(ctx, tenantID, alerts); err != nil {
		return len(alerts), err
	}
	return len(alerts), nil
}

// runAll executes one pass over every tenant with bounded concurrency.
// Per-tenant failures are logged and isolated; the pass never aborts early.
func (s *Scheduler) runAll(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	ids := s.store.TenantIDs()
	if len(ids) == 0 {
		return
	}
	start := time.Now()

	s.mu.Lock()
	workers := s.cfg.Workers
	s.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			s.runTenant(gctx, id)
			return nil
		})
	}
	_ = g.Wait()

	s.log.Debug("poll pass complete",
		logx.Int("tenants", len(ids)),
		logx.Duration("took", time.Since(start)))
}

func (s *Scheduler) runTenant(ctx context.Context, tenantID int64) {
	lock := s.tenantLock(tenantID)
	if !lock.TryLock() {
		// A manual check is in flight; it covers this pass.
		return
	}
	defer lock.Unlock()

	alerts, err := s.cycle.Run(ctx, tenantID)
	if err != nil {
		s.log.Warn("cycle failed", logx.Int64("tenant", tenantID), logx.Err(err))
		return
	}
	if len(alerts) == 0 {
		return
	}
	if _, err := s.dispatcher.Deliver(ctx, tenantID, alerts); err != nil {
		s.log.Warn("delivery incomplete", logx.Int64("tenant", tenantID), logx.Err(err))
	}
}

func (s *Scheduler) tenantLock(tenantID int64) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[tenantID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[tenantID] = l
	}
	return l
}

func everySpec(d time.Duration) string {
	return "@every " + d.String()
}
