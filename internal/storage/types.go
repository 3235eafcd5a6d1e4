package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": dependency-free file backend (snapshots + jsonl journal)
//   - "sqlite": SQLite database file
//   - "redis": Redis server
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
	Redis       RedisConfig
}

type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// WalletRecord is the persisted form of one tracked wallet.
type WalletRecord struct {
	Address  string     `json:"address"`
	Name     string     `json:"name"`
	AddedAt  time.Time  `json:"added_at"`
	LastTxAt *time.Time `json:"last_tx_at,omitempty"`
	TxCount  int64      `json:"tx_count"`
}

// TenantRecord is the persisted form of one user's tracking state.
// It travels as a JSON document in every driver so the schema lives here only.
type TenantRecord struct {
	ID         int64          `json:"id"`
	CreatedAt  time.Time      `json:"created_at"`
	AlertCount int64          `json:"alert_count"`
	Wallets    []WalletRecord `json:"wallets"`
}

// AuditEntry records a user action.
// Keep it compact and schema-stable.
type AuditEntry struct {
	At       time.Time
	TenantID int64
	Action   string
	Target   string
	OK       bool
	Error    string
	TookMS   int64
}
