package config

import "os"

type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`
	Source   SourceConfig   `json:"source"`
	Tracker  TrackerConfig  `json:"tracker"`
	Storage  StorageConfig  `json:"storage"`
	Health   HealthConfig   `json:"health,omitempty"`
}

type TelegramConfig struct {
	// Token falls back to the BOT_TOKEN environment variable when empty,
	// so the config file can be committed without secrets.
	Token       string `json:"token,omitempty"`
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string        `json:"level,omitempty"`
	Console bool          `json:"console"`
	File    LogFileConfig `json:"file,omitempty"`
}

type LogFileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// SourceConfig configures the upstream activity API.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type SourceConfig struct {
	BaseURL string `json:"base_url,omitempty"`
	// APIKey falls back to the HELIUS_API_KEY environment variable when empty.
	APIKey string `json:"api_key,omitempty"`
	// FetchLimit is how many recent activity records to request per address.
	FetchLimit int `json:"fetch_limit,omitempty"`
	// Timeout bounds a single fetch call; a timed-out call counts as a fetch
	// failure for that address, not a cycle abort.
	Timeout string `json:"timeout,omitempty"`
	// RatePerSec caps requests to the upstream API across all tenants.
	RatePerSec int `json:"rate_per_sec,omitempty"`
}

// TrackerConfig controls the polling engine and alert delivery.
//
// Defaults (when fields are omitted/zero):
//   - max_wallets: 10
//   - name_max_len: 20
//   - poll_interval: "2m"
//   - initial_delay: "10s"
//   - workers: 1 (sequential across tenants)
//   - alerts_per_cycle: 3
//   - send_pace: "1s"
//   - dedup_retention: "720h"
type TrackerConfig struct {
	MaxWallets     int    `json:"max_wallets,omitempty"`
	NameMaxLen     int    `json:"name_max_len,omitempty"`
	PollInterval   string `json:"poll_interval,omitempty"`
	InitialDelay   string `json:"initial_delay,omitempty"`
	Workers        int    `json:"workers,omitempty"`
	AlertsPerCycle int    `json:"alerts_per_cycle,omitempty"`
	SendPace       string `json:"send_pace,omitempty"`
	DedupRetention string `json:"dedup_retention,omitempty"`
}

// StorageConfig selects the persistence driver.
//
// Driver values: "file", "sqlite", "redis".
type StorageConfig struct {
	Driver      string       `json:"driver"`
	Path        string       `json:"path,omitempty"`
	BusyTimeout string       `json:"busy_timeout,omitempty"` // sqlite only
	Redis       *RedisConfig `json:"redis,omitempty"`
}

type RedisConfig struct {
	URL          string `json:"url"`
	PoolSize     int    `json:"pool_size,omitempty"`
	MinIdleConns int    `json:"min_idle_conns,omitempty"`
	DialTimeout  string `json:"dial_timeout,omitempty"`
	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
}

type HealthConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"`
}

// applyEnv fills secret fields from the environment when the file left them blank.
func (c *Config) applyEnv() {
	if c.Telegram.Token == "" {
		c.Telegram.Token = os.Getenv("BOT_TOKEN")
	}
	if c.Source.APIKey == "" {
		c.Source.APIKey = os.Getenv("HELIUS_API_KEY")
	}
}
