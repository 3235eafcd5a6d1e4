package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	logx "walletwatch/pkg/logx"
)

func openTestSQLite(t *testing.T, dir string) Store {
	t.Helper()
	st, err := Open(Config{
		Driver:      "sqlite",
		Path:        filepath.Join(dir, "test.db"),
		BusyTimeout: time.Second,
	}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return st
}

func TestSQLiteTenantRoundTrip(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	st := openTestSQLite(t, dir)
	at := time.Now().UTC().Truncate(time.Millisecond)
	rec := TenantRecord{
		ID:         9,
		CreatedAt:  at,
		AlertCount: 2,
		Wallets:    []WalletRecord{{Address: "sqlite-address", Name: "s", AddedAt: at, TxCount: 1}},
	}
	if err := st.SaveTenant(ctx, rec); err != nil {
		t.Fatalf("SaveTenant: %v", err)
	}
	// Upsert: second save replaces the doc.
	rec.AlertCount = 5
	if err := st.SaveTenant(ctx, rec); err != nil {
		t.Fatalf("SaveTenant upsert: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	st = openTestSQLite(t, dir)
	defer st.Close()
	recs, err := st.LoadTenants(ctx)
	if err != nil {
		t.Fatalf("LoadTenants: %v", err)
	}
	if len(recs) != 1 || recs[0].AlertCount != 5 || len(recs[0].Wallets) != 1 {
		t.Fatalf("tenant mangled: %+v", recs)
	}

	if err := st.DeleteTenant(ctx, 9); err != nil {
		t.Fatalf("DeleteTenant: %v", err)
	}
	recs, err = st.LoadTenants(ctx)
	if err != nil || len(recs) != 0 {
		t.Fatalf("tenant not deleted: %v %v", recs, err)
	}
}

func TestSQLiteDedup(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	st := openTestSQLite(t, dir)
	defer st.Close()

	live := time.Now().Add(time.Hour)
	dead := time.Now().Add(-time.Hour)
	if err := st.PutDedup(ctx, "1:a:live", live); err != nil {
		t.Fatalf("PutDedup: %v", err)
	}
	if err := st.PutDedup(ctx, "1:a:dead", dead); err != nil {
		t.Fatalf("PutDedup: %v", err)
	}

	until, ok, err := st.GetDedup(ctx, "1:a:live")
	if err != nil || !ok || until.UnixMilli() != live.UnixMilli() {
		t.Fatalf("GetDedup: until=%v ok=%v err=%v", until, ok, err)
	}
	if _, ok, _ := st.GetDedup(ctx, "1:a:missing"); ok {
		t.Fatal("missing key reported present")
	}

	// LoadDedup filters already-expired rows.
	m, err := st.LoadDedup(ctx)
	if err != nil {
		t.Fatalf("LoadDedup: %v", err)
	}
	if _, ok := m["1:a:live"]; !ok {
		t.Fatal("live key missing from load")
	}
	if _, ok := m["1:a:dead"]; ok {
		t.Fatal("expired key included in load")
	}
}

func TestSQLiteAudit(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	st := openTestSQLite(t, dir)
	defer st.Close()

	entries := []AuditEntry{
		{TenantID: 1, Action: "add", Target: "addr", OK: true, TookMS: 3},
		{TenantID: 1, Action: "check", OK: false, Error: "upstream 500"},
	}
	for _, e := range entries {
		if err := st.AppendAudit(ctx, e); err != nil {
			t.Fatalf("AppendAudit: %v", err)
		}
	}
}
