package app

import (
	"walletwatch/internal/config"
	"walletwatch/internal/storage"
	"walletwatch/internal/tracker"
	logx "walletwatch/pkg/logx"
)

// Mapping helpers translate the file-level config (string durations, zero
// defaults) into typed component configs. They also serve as validators for
// hot reload: a mapping error rejects the new config before anything applies.

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	busy, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return storage.Config{}, err
	}
	sc := storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busy,
	}
	if r := cfg.Storage.Redis; r != nil {
		dial, err := config.ParseDurationField("storage.redis.dial_timeout", r.DialTimeout)
		if err != nil {
			return storage.Config{}, err
		}
		read, err := config.ParseDurationField("storage.redis.read_timeout", r.ReadTimeout)
		if err != nil {
			return storage.Config{}, err
		}
		write, err := config.ParseDurationField("storage.redis.write_timeout", r.WriteTimeout)
		if err != nil {
			return storage.Config{}, err
		}
		sc.Redis = storage.RedisConfig{
			URL:          r.URL,
			PoolSize:     r.PoolSize,
			MinIdleConns: r.MinIdleConns,
			DialTimeout:  dial,
			ReadTimeout:  read,
			WriteTimeout: write,
		}
	}
	return sc, nil
}

func mapSchedulerConfig(cfg *config.Config) (tracker.SchedulerConfig, error) {
	interval, err := config.ParseDurationField("tracker.poll_interval", cfg.Tracker.PollInterval)
	if err != nil {
		return tracker.SchedulerConfig{}, err
	}
	delay, err := config.ParseDurationField("tracker.initial_delay", cfg.Tracker.InitialDelay)
	if err != nil {
		return tracker.SchedulerConfig{}, err
	}
	return tracker.SchedulerConfig{
		Interval:     interval,
		InitialDelay: delay,
		Workers:      cfg.Tracker.Workers,
	}, nil
}

func mapDispatcherConfig(cfg *config.Config) (tracker.DispatcherConfig, error) {
	pace, err := config.ParseDurationField("tracker.send_pace", cfg.Tracker.SendPace)
	if err != nil {
		return tracker.DispatcherConfig{}, err
	}
	return tracker.DispatcherConfig{
		MaxPerCycle: cfg.Tracker.AlertsPerCycle,
		Pace:        pace,
	}, nil
}
