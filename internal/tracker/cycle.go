package tracker

import (
	"context"
	"time"

	"walletwatch/internal/activity"
	logx "walletwatch/pkg/logx"
)

// Cycle runs one full pass over a tenant's tracked wallets: fetch recent
// activity, filter through the dedup cache, mutate counters, and return
// the novel alerts in source order.
type Cycle struct {
	store  *Store
	dedup  *Dedup
	source activity.Source
	log    logx.Logger
	limit  int
}

func NewCycle(store *Store, dedup *Dedup, source activity.Source, fetchLimit int, log logx.Logger) *Cycle {
	if fetchLimit <= 0 {
		fetchLimit = 5
	}
	return &Cycle{store: store, dedup: dedup, source: source, log: log, limit: fetchLimit}
}

// Run polls every wallet of the tenant in iteration order.
//
// A fetch failure for one address is logged and yields zero records for
// that cycle; it never aborts the remaining addresses. Counter mutations
// are flushed once, after all addresses, and only when at least one novel
// record was found.
func (c *Cycle) Run(ctx context.Context, tenantID int64) ([]Alert, error) {
	snap, ok := c.store.Snapshot(tenantID)
	if !ok {
		return nil, nil
	}

	now := time.Now()
	var alerts []Alert
	novel := map[string]int64{}

	for _, w := range snap.Wallets {
		recs, err := c.source.Fetch(ctx, w.Address, c.limit)
		if err != nil {
			c.log.Warn("activity fetch failed",
				logx.Int64("tenant", tenantID),
				logx.String("address", w.Address),
				logx.Err(err))
			continue
		}
		for _, r := range recs {
			if r.Signature == "" {
				continue
			}
			if c.dedup.Has(tenantID, w.Address, r.Signature) {
				continue
			}
			if err := c.dedup.Record(ctx, tenantID, w.Address, r.Signature, now); err != nil {
				// The in-memory mark stands, so this cycle stays
				// exactly-once; only restart durability is degraded.
				c.log.Warn("dedup persist failed",
					logx.Int64("tenant", tenantID),
					logx.Err(err))
			}
			novel[w.Address]++
			alerts = append(alerts, Alert{Record: r, WalletName: w.Name, Address: w.Address})
		}
	}

	if len(alerts) == 0 {
		return nil, nil
	}
	if err := c.store.CommitCycle(ctx, tenantID, CycleUpdate{NovelByAddress: novel, At: now}); err != nil {
		return nil, err
	}
	return alerts, nil
}
