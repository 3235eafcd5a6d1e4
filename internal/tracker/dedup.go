package tracker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"walletwatch/internal/storage"
	logx "walletwatch/pkg/logx"
)

// Dedup remembers which (tenant, address, signature) triples have already
// produced a notification. Entries expire after the retention window;
// inserts are idempotent and written through to persistence so a restart
// does not replay old activity as novel.
//
// The cache is process-wide but logically partitioned per tenant by the
// key's tenant component: the same address tracked by two tenants never
// shares entries.
type Dedup struct {
	db        storage.Store
	retention time.Duration
	log       logx.Logger

	mu      sync.Mutex
	seen    map[string]time.Time // key -> expiry
	records int
}

const defaultRetention = 720 * time.Hour

func NewDedup(db storage.Store, retention time.Duration, log logx.Logger) *Dedup {
	if retention <= 0 {
		retention = defaultRetention
	}
	return &Dedup{
		db:        db,
		retention: retention,
		log:       log,
		seen:      map[string]time.Time{},
	}
}

// Load warms the cache from persistence. Call once at start.
func (d *Dedup) Load(ctx context.Context) error {
	m, err := d.db.LoadDedup(ctx)
	if err != nil {
		return fmt.Errorf("load dedup: %w", err)
	}
	now := time.Now()
	seen := make(map[string]time.Time, len(m))
	for k, until := range m {
		if until.After(now) {
			seen[k] = until
		}
	}
	d.mu.Lock()
	d.seen = seen
	d.mu.Unlock()
	d.log.Info("dedup cache loaded", logx.Int("entries", len(seen)))
	return nil
}

// Has reports whether this activity already produced a notification for
// this tenant within the retention window.
func (d *Dedup) Has(tenantID int64, address, signature string) bool {
	key := dedupKey(tenantID, address, signature)
	d.mu.Lock()
	until, ok := d.seen[key]
	d.mu.Unlock()
	return ok && time.Now().Before(until)
}

// Record marks the activity as notified. Idempotent: recording an already
// present key is a no-op (the original expiry is kept).
func (d *Dedup) Record(ctx context.Context, tenantID int64, address, signature string, at time.Time) error {
	key := dedupKey(tenantID, address, signature)
	if at.IsZero() {
		at = time.Now()
	}
	until := at.Add(d.retention)

	d.mu.Lock()
	if existing, ok := d.seen[key]; ok && time.Now().Before(existing) {
		d.mu.Unlock()
		return nil
	}
	d.seen[key] = until
	d.records++
	prune := d.records%512 == 0
	d.mu.Unlock()

	if prune {
		d.pruneExpired()
	}
	if err := d.db.PutDedup(ctx, key, until); err != nil {
		return fmt.Errorf("persist dedup: %w", err)
	}
	return nil
}

// Len reports live (unexpired) entries.
func (d *Dedup) Len() int {
	now := time.Now()
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, until := range d.seen {
		if now.Before(until) {
			n++
		}
	}
	return n
}

func (d *Dedup) pruneExpired() {
	now := time.Now()
	d.mu.Lock()
	defer d.mu.Unlock()
	for k, until := range d.seen {
		if !now.Before(until) {
			delete(d.seen, k)
		}
	}
}

func dedupKey(tenantID int64, address, signature string) string {
	return fmt.Sprintf("%d:%s:%s", tenantID, address, signature)
}
