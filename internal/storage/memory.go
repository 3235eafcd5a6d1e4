package storage

import (
	"context"
	"sync"
	"time"
)

// Memory is a simple in-memory Store for tests.
type Memory struct {
	mu      sync.Mutex
	tenants map[int64]TenantRecord
	dedup   map[string]time.Time
	audit   []AuditEntry

	// FailSaves makes mutating tenant operations fail, to exercise
	// durability rollback paths.
	FailSaves bool
}

var errSaveFailed = failErr("save failed")

type failErr string

func (e failErr) Error() string { return string(e) }

func NewMemory() *Memory {
	return &Memory{
		tenants: map[int64]TenantRecord{},
		dedup:   map[string]time.Time{},
	}
}

func (m *Memory) Close() error { return nil }

func (m *Memory) LoadTenants(ctx context.Context) ([]TenantRecord, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]TenantRecord, 0, len(m.tenants))
	for _, t := range m.tenants {
		out = append(out, t)
	}
	return out, nil
}

func (m *Memory) SaveTenant(ctx context.Context, t TenantRecord) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailSaves {
		return errSaveFailed
	}
	m.tenants[t.ID] = t
	return nil
}

func (m *Memory) DeleteTenant(ctx context.Context, id int64) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailSaves {
		return errSaveFailed
	}
	delete(m.tenants, id)
	return nil
}

func (m *Memory) PutDedup(ctx context.Context, key string, until time.Time) error {
	_ = ctx
	if key == "" {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dedup[key] = until
	return nil
}

func (m *Memory) GetDedup(ctx context.Context, key string) (time.Time, bool, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	until, ok := m.dedup[key]
	return until, ok, nil
}

func (m *Memory) LoadDedup(ctx context.Context) (map[string]time.Time, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]time.Time, len(m.dedup))
	for k, v := range m.dedup {
		out[k] = v
	}
	return out, nil
}

func (m *Memory) AppendAudit(ctx context.Context, e AuditEntry) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.At.IsZero() {
		e.At = time.Now()
	}
	m.audit = append(m.audit, e)
	return nil
}

// TenantCount reports how many tenants are stored (test helper).
func (m *Memory) TenantCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tenants)
}
