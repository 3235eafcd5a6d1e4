package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	logx "walletwatch/pkg/logx"
)

func openTestFileStore(t *testing.T, dir string) Store {
	t.Helper()
	st, err := Open(Config{Driver: "file", Path: filepath.Join(dir, "state")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return st
}

func TestFileStoreTenantRoundTrip(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	st := openTestFileStore(t, dir)
	at := time.Now().Truncate(time.Millisecond)
	rec := TenantRecord{
		ID:         42,
		CreatedAt:  at,
		AlertCount: 7,
		Wallets: []WalletRecord{
			{Address: "persisted-address", Name: "p", AddedAt: at, TxCount: 3, LastTxAt: &at},
		},
	}
	if err := st.SaveTenant(ctx, rec); err != nil {
		t.Fatalf("SaveTenant: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Reopen from disk.
	st = openTestFileStore(t, dir)
	defer st.Close()
	recs, err := st.LoadTenants(ctx)
	if err != nil {
		t.Fatalf("LoadTenants: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("tenants = %d, want 1", len(recs))
	}
	got := recs[0]
	if got.ID != 42 || got.AlertCount != 7 || len(got.Wallets) != 1 {
		t.Fatalf("tenant mangled: %+v", got)
	}
	if got.Wallets[0].TxCount != 3 || got.Wallets[0].LastTxAt == nil {
		t.Fatalf("wallet mangled: %+v", got.Wallets[0])
	}
}

func TestFileStoreDeleteTenant(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	st := openTestFileStore(t, dir)
	defer st.Close()

	if err := st.SaveTenant(ctx, TenantRecord{ID: 1, CreatedAt: time.Now()}); err != nil {
		t.Fatalf("SaveTenant: %v", err)
	}
	if err := st.DeleteTenant(ctx, 1); err != nil {
		t.Fatalf("DeleteTenant: %v", err)
	}
	recs, err := st.LoadTenants(ctx)
	if err != nil {
		t.Fatalf("LoadTenants: %v", err)
	}
	if len(recs) != 0 {
		t.Fatalf("tenants = %d, want 0", len(recs))
	}
	// Deleting a missing tenant is a no-op.
	if err := st.DeleteTenant(ctx, 99); err != nil {
		t.Fatalf("DeleteTenant missing: %v", err)
	}
}

func TestFileStoreDedupJournalReplay(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	st := openTestFileStore(t, dir)
	live := time.Now().Add(time.Hour)
	dead := time.Now().Add(-time.Hour)
	if err := st.PutDedup(ctx, "1:addr:live-sig", live); err != nil {
		t.Fatalf("PutDedup: %v", err)
	}
	if err := st.PutDedup(ctx, "1:addr:dead-sig", dead); err != nil {
		t.Fatalf("PutDedup: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Reopen: journal replays, expired entries are pruned.
	st = openTestFileStore(t, dir)
	defer st.Close()
	m, err := st.LoadDedup(ctx)
	if err != nil {
		t.Fatalf("LoadDedup: %v", err)
	}
	if _, ok := m["1:addr:live-sig"]; !ok {
		t.Fatal("live dedup key lost across restart")
	}
	if _, ok := m["1:addr:dead-sig"]; ok {
		t.Fatal("expired dedup key survived restart")
	}

	until, ok, err := st.GetDedup(ctx, "1:addr:live-sig")
	if err != nil || !ok {
		t.Fatalf("GetDedup: ok=%v err=%v", ok, err)
	}
	if until.UnixMilli() != live.UnixMilli() {
		t.Fatalf("expiry drifted: got %v, want %v", until, live)
	}
}

func TestFileStoreAuditAppend(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	st := openTestFileStore(t, dir)
	defer st.Close()

	e := AuditEntry{TenantID: 1, Action: "add", Target: "some-address", OK: true, TookMS: 12}
	if err := st.AppendAudit(ctx, e); err != nil {
		t.Fatalf("AppendAudit: %v", err)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open(Config{Driver: "bolt"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestOpenFileRequiresPath(t *testing.T) {
	if _, err := Open(Config{Driver: "file"}, logx.Nop()); err == nil {
		t.Fatal("expected error for missing path")
	}
}
