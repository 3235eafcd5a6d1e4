package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	logx "walletwatch/pkg/logx"
)

// Store is the persistence API used by the tracker.
type Store interface {
	LoadTenants(ctx context.Context) ([]TenantRecord, error)
	SaveTenant(ctx context.Context, t TenantRecord) error
	DeleteTenant(ctx context.Context, id int64) error

	PutDedup(ctx context.Context, key string, until time.Time) error
	GetDedup(ctx context.Context, key string) (until time.Time, ok bool, err error)
	LoadDedup(ctx context.Context) (map[string]time.Time, error)

	AppendAudit(ctx context.Context, e AuditEntry) error
	Close() error
}

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "", "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	case "redis":
		return openRedis(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
