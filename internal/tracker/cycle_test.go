package tracker

import (
	"context"
	"errors"
	"testing"
	"time"

	"walletwatch/internal/activity"
	"walletwatch/internal/storage"
	logx "walletwatch/pkg/logx"
)

type fakeSource struct {
	recs map[string][]activity.Record
	errs map[string]error
}

func (f *fakeSource) Fetch(ctx context.Context, address string, limit int) ([]activity.Record, error) {
	if err := f.errs[address]; err != nil {
		return nil, err
	}
	recs := f.recs[address]
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}

func newTestCycle(t *testing.T, src activity.Source) (*Cycle, *Store) {
	t.Helper()
	mem := storage.NewMemory()
	store := NewStore(StoreConfig{}, mem, logx.Nop())
	dedup := NewDedup(mem, time.Hour, logx.Nop())
	return NewCycle(store, dedup, src, 5, logx.Nop()), store
}

func TestCycleDetectsNovelActivity(t *testing.T) {
	src := &fakeSource{recs: map[string][]activity.Record{
		"watched-address": {
			{Signature: "sig-1", Category: "SWAP"},
			{Signature: "sig-2", Category: "TRANSFER"},
		},
	}}
	c, store := newTestCycle(t, src)
	ctx := context.Background()

	if _, err := store.AddWallet(ctx, 1, "watched-address", "w"); err != nil {
		t.Fatalf("AddWallet: %v", err)
	}

	alerts, err := c.Run(ctx, 1)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(alerts) != 2 {
		t.Fatalf("alerts = %d, want 2", len(alerts))
	}
	if alerts[0].Record.Signature != "sig-1" || alerts[1].Record.Signature != "sig-2" {
		t.Fatalf("alert order wrong: %+v", alerts)
	}

	snap, _ := store.Snapshot(1)
	if snap.AlertCount != 2 || snap.Wallets[0].TxCount != 2 {
		t.Fatalf("counters wrong: %+v", snap)
	}

	// A second run over the same data is all duplicates.
	alerts, err = c.Run(ctx, 1)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if len(alerts) != 0 {
		t.Fatalf("second run produced %d alerts, want 0", len(alerts))
	}
	snap, _ = store.Snapshot(1)
	if snap.AlertCount != 2 {
		t.Fatalf("counters mutated on quiet run: %+v", snap)
	}
}

func TestCycleToleratesFetchFailure(t *testing.T) {
	src := &fakeSource{
		recs: map[string][]activity.Record{
			"healthy-address": {{Signature: "ok-sig", Category: "TRANSFER"}},
		},
		errs: map[string]error{
			"broken-address": errors.New("upstream 500"),
		},
	}
	c, store := newTestCycle(t, src)
	ctx := context.Background()

	if _, err := store.AddWallet(ctx, 1, "broken-address", "b"); err != nil {
		t.Fatalf("AddWallet: %v", err)
	}
	if _, err := store.AddWallet(ctx, 1, "healthy-address", "h"); err != nil {
		t.Fatalf("AddWallet: %v", err)
	}

	alerts, err := c.Run(ctx, 1)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(alerts) != 1 || alerts[0].Address != "healthy-address" {
		t.Fatalf("expected one alert from the healthy address, got %+v", alerts)
	}
}

func TestCycleSkipsBlankSignatures(t *testing.T) {
	src := &fakeSource{recs: map[string][]activity.Record{
		"addr": {{Signature: ""}, {Signature: "real-sig"}},
	}}
	c, store := newTestCycle(t, src)
	ctx := context.Background()

	if _, err := store.AddWallet(ctx, 1, "addr", "a"); err != nil {
		t.Fatalf("AddWallet: %v", err)
	}
	alerts, err := c.Run(ctx, 1)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(alerts) != 1 || alerts[0].Record.Signature != "real-sig" {
		t.Fatalf("blank signature not skipped: %+v", alerts)
	}
}

func TestCycleUnknownTenant(t *testing.T) {
	c, _ := newTestCycle(t, &fakeSource{})
	alerts, err := c.Run(context.Background(), 99)
	if err != nil || alerts != nil {
		t.Fatalf("unknown tenant: alerts=%v err=%v", alerts, err)
	}
}
