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

func newTestScheduler(t *testing.T, src activity.Source, ad *fakeAdapter) (*Scheduler, *Store) {
	t.Helper()
	mem := storage.NewMemory()
	store := NewStore(StoreConfig{}, mem, logx.Nop())
	dedup := NewDedup(mem, time.Hour, logx.Nop())
	cycle := NewCycle(store, dedup, src, 5, logx.Nop())
	disp := NewDispatcher(DispatcherConfig{Pace: time.Millisecond}, ad, store, mem, logx.Nop())
	sched := NewScheduler(SchedulerConfig{Workers: 2}, store, cycle, disp, logx.Nop())
	return sched, store
}

func TestManualCheck(t *testing.T) {
	src := &fakeSource{recs: map[string][]activity.Record{
		"checked-address": {{Signature: "check-sig", Category: "TRANSFER"}},
	}}
	ad := &fakeAdapter{}
	sched, store := newTestScheduler(t, src, ad)
	ctx := context.Background()

	if _, err := store.AddWallet(ctx, 1, "checked-address", "c"); err != nil {
		t.Fatalf("AddWallet: %v", err)
	}

	novel, err := sched.ManualCheck(ctx, 1)
	if err != nil {
		t.Fatalf("ManualCheck: %v", err)
	}
	if novel != 1 {
		t.Fatalf("novel = %d, want 1", novel)
	}
	if len(ad.messages()) != 1 {
		t.Fatalf("delivered = %d, want 1", len(ad.messages()))
	}

	// Everything is deduped now.
	novel, err = sched.ManualCheck(ctx, 1)
	if err != nil || novel != 0 {
		t.Fatalf("second check: novel=%d err=%v", novel, err)
	}
}

func TestManualCheckRejectedWhileBusy(t *testing.T) {
	sched, store := newTestScheduler(t, &fakeSource{}, &fakeAdapter{})
	ctx := context.Background()

	if _, err := store.AddWallet(ctx, 1, "busy-address", "b"); err != nil {
		t.Fatalf("AddWallet: %v", err)
	}

	lock := sched.tenantLock(1)
	lock.Lock()
	defer lock.Unlock()

	if _, err := sched.ManualCheck(ctx, 1); !errors.Is(err, ErrCheckInProgress) {
		t.Fatalf("expected ErrCheckInProgress, got %v", err)
	}

	// Another tenant is unaffected by tenant 1's lock.
	if _, err := sched.ManualCheck(ctx, 2); err != nil {
		t.Fatalf("independent tenant blocked: %v", err)
	}
}

func TestRunAllCoversEveryTenant(t *testing.T) {
	src := &fakeSource{recs: map[string][]activity.Record{
		"tenant-one-address": {{Signature: "sig-a", Category: "SWAP"}},
		"tenant-two-address": {{Signature: "sig-b", Category: "TRANSFER"}},
	}}
	ad := &fakeAdapter{}
	sched, store := newTestScheduler(t, src, ad)
	ctx := context.Background()

	if _, err := store.AddWallet(ctx, 1, "tenant-one-address", "one"); err != nil {
		t.Fatalf("AddWallet: %v", err)
	}
	if _, err := store.AddWallet(ctx, 2, "tenant-two-address", "two"); err != nil {
		t.Fatalf("AddWallet: %v", err)
	}

	sched.runAll(ctx)

	if got := len(ad.messages()); got != 2 {
		t.Fatalf("delivered = %d, want one alert per tenant", got)
	}
	for _, id := range []int64{1, 2} {
		snap, _ := store.Snapshot(id)
		if snap.AlertCount != 1 {
			t.Fatalf("tenant %d AlertCount = %d, want 1", id, snap.AlertCount)
		}
	}
}

func TestSchedulerStartStop(t *testing.T) {
	sched, _ := newTestScheduler(t, &fakeSource{}, &fakeAdapter{})
	ctx := context.Background()

	if err := sched.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := sched.Start(ctx); err == nil {
		t.Fatal("second Start should fail")
	}
	sched.Apply(SchedulerConfig{Interval: time.Minute, Workers: 3})
	sched.Stop()
	// Stop again is a no-op.
	sched.Stop()
}
