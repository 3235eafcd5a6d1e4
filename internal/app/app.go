package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"walletwatch/internal/activity/helius"
	"walletwatch/internal/bot"
	"walletwatch/internal/config"
	"walletwatch/internal/storage"
	"walletwatch/internal/tracker"
	"walletwatch/internal/transport"
	"walletwatch/internal/transport/telegram"
	logx "walletwatch/pkg/logx"
)

// App owns the full component graph and its lifecycle.
type App struct {
	cfgm *config.Manager

	log  logx.Logger
	logs *logx.Service

	db      storage.Store
	adapter transport.Adapter

	store      *tracker.Store
	dedup      *tracker.Dedup
	sched      *tracker.Scheduler
	dispatcher *tracker.Dispatcher

	router *bot.Router
	health *healthServer

	updates chan transport.Update

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logSvc, log := logx.New(mapLogConfig(cfg))
	log = log.With(logx.String("comp", "app"))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	if cfg.Telegram.Token == "" {
		logSvc.Close()
		return nil, fmt.Errorf("telegram token missing (set telegram.token or BOT_TOKEN)")
	}

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		logSvc.Close()
		return nil, err
	}
	adapter, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, log.With(logx.String("comp", "telegram")))
	if err != nil {
		logSvc.Close()
		return nil, err
	}

	sc, err := mapStorageConfig(cfg)
	if err != nil {
		logSvc.Close()
		return nil, err
	}
	db, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
	if err != nil {
		logSvc.Close()
		return nil, err
	}

	fetchTimeout, err := config.ParseDurationField("source.timeout", cfg.Source.Timeout)
	if err != nil {
		db.Close()
		logSvc.Close()
		return nil, err
	}
	source, err := helius.New(helius.Config{
		BaseURL:    cfg.Source.BaseURL,
		APIKey:     cfg.Source.APIKey,
		Timeout:    fetchTimeout,
		RatePerSec: cfg.Source.RatePerSec,
	}, log.With(logx.String("comp", "source")))
	if err != nil {
		db.Close()
		logSvc.Close()
		return nil, err
	}

	store := tracker.NewStore(tracker.StoreConfig{
		MaxWallets: cfg.Tracker.MaxWallets,
		NameMaxLen: cfg.Tracker.NameMaxLen,
	}, db, log.With(logx.String("comp", "tracker")))

	retention, err := config.ParseDurationField("tracker.dedup_retention", cfg.Tracker.DedupRetention)
	if err != nil {
		db.Close()
		logSvc.Close()
		return nil, err
	}
	dedup := tracker.NewDedup(db, retention, log.With(logx.String("comp", "dedup")))

	cycle := tracker.NewCycle(store, dedup, source, cfg.Source.FetchLimit, log.With(logx.String("comp", "cycle")))

	dcfg, err := mapDispatcherConfig(cfg)
	if err != nil {
		db.Close()
		logSvc.Close()
		return nil, err
	}
	dispatcher := tracker.NewDispatcher(dcfg, adapter, store, db, log.With(logx.String("comp", "dispatch")))

	scfg, err := mapSchedulerConfig(cfg)
	if err != nil {
		db.Close()
		logSvc.Close()
		return nil, err
	}
	sched := tracker.NewScheduler(scfg, store, cycle, dispatcher, log.With(logx.String("comp", "scheduler")))

	router := bot.NewRouter(adapter, log.With(logx.String("comp", "bot")))
	router.Register(bot.NewService(adapter, store, sched, db, log.With(logx.String("comp", "bot"))).Commands()...)

	var health *healthServer
	if cfg.Health.Enabled {
		health = newHealthServer(cfg.Health.Addr, store, dedup, log.With(logx.String("comp", "health")))
	}

	return &App{
		cfgm:       cfgm,
		log:        log,
		logs:       logSvc,
		db:         db,
		adapter:    adapter,
		store:      store,
		dedup:      dedup,
		sched:      sched,
		dispatcher: dispatcher,
		router:     router,
		health:     health,
		updates:    make(chan transport.Update, 256),
	}, nil
}

func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if err := a.store.Load(runCtx); err != nil {
		cancel()
		return err
	}
	if err := a.dedup.Load(runCtx); err != nil {
		cancel()
		return err
	}

	if err := a.adapter.Start(runCtx, a.updates); err != nil {
		cancel()
		return err
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.router.Run(runCtx, a.updates)
	}()

	if err := a.sched.Start(runCtx); err != nil {
		cancel()
		return err
	}

	if a.health != nil {
		a.health.Start(runCtx)
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.reloadLoop(runCtx)
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		_ = a.cfgm.Watch(runCtx)
	}()

	a.notifySystemd(runCtx)

	a.log.Info("app started")
	return nil
}

func (a *App) Stop(ctx context.Context) {
	a.log.Info("stopping")
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	a.sched.Stop()
	if a.cancel != nil {
		a.cancel()
	}
	if a.health != nil {
		a.health.Stop(ctx)
	}
	_ = a.adapter.Stop(ctx)
	a.wg.Wait()

	if err := a.db.Close(); err != nil {
		a.log.Warn("storage close failed", logx.Err(err))
	}
	a.log.Info("stopped")
	_ = a.logs.Close()
}

// reloadLoop applies hot config changes: log level/sinks and the poll
// schedule. Storage and transport changes need a restart.
func (a *App) reloadLoop(ctx context.Context) {
	sub := a.cfgm.Subscribe(8)
	defer a.cfgm.Unsubscribe(sub)
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts: keep only the latest config.
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						cfg = newer
					}
				default:
					goto APPLY
				}
			}
		APPLY:
			a.logs.Apply(mapLogConfig(cfg))

			scfg, err := mapSchedulerConfig(cfg)
			if err != nil {
				a.log.Warn("invalid tracker config; keeping previous", logx.Err(err))
			} else {
				a.sched.Apply(scfg)
			}
			a.log.Info("config reloaded")
		}
	}
}

// notifySystemd reports readiness and keeps the watchdog fed when the
// process runs as a Type=notify unit. A no-op outside systemd.
func (a *App) notifySystemd(ctx context.Context) {
	if ok, _ := daemon.SdNotify(false, daemon.SdNotifyReady); !ok {
		return
	}
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval == 0 {
		return
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		t := time.NewTicker(interval / 2)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
			}
		}
	}()
}
