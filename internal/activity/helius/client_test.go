package helius

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	logx "walletwatch/pkg/logx"
)

func TestNewRequiresAPIKey(t *testing.T) {
	if _, err := New(Config{}, logx.Nop()); err == nil {
		t.Fatal("expected error for empty api key")
	}
}

func TestFetchDecodesTransactions(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"signature":"sig-1","type":"SWAP","timestamp":1735000000,"nativeTransfers":[{"amount":1500000000}]},
			{"signature":"sig-2","type":"TRANSFER"}
		]`))
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL, APIKey: "test-key"}, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	recs, err := c.Fetch(context.Background(), "some-address", 5)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if gotPath != "/v0/addresses/some-address/transactions" {
		t.Fatalf("path = %q", gotPath)
	}
	if !strings.Contains(gotQuery, "api-key=test-key") || !strings.Contains(gotQuery, "limit=5") {
		t.Fatalf("query = %q", gotQuery)
	}

	if len(recs) != 2 {
		t.Fatalf("records = %d, want 2", len(recs))
	}
	if recs[0].Signature != "sig-1" || recs[0].Category != "SWAP" || recs[0].Lamports != 1500000000 {
		t.Fatalf("first record wrong: %+v", recs[0])
	}
	if !recs[0].Timestamp.Equal(time.Unix(1735000000, 0)) {
		t.Fatalf("timestamp wrong: %v", recs[0].Timestamp)
	}
	// No timestamp on the wire means "just observed".
	if !recs[1].Timestamp.IsZero() || recs[1].Lamports != 0 {
		t.Fatalf("second record wrong: %+v", recs[1])
	}
}

func TestFetchNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL, APIKey: "k"}, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := c.Fetch(context.Background(), "addr", 5); err == nil {
		t.Fatal("expected error on 429")
	}
}

func TestFetchDefaultLimit(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL, APIKey: "k"}, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := c.Fetch(context.Background(), "addr", 0); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !strings.Contains(gotQuery, "limit=5") {
		t.Fatalf("zero limit should fall back to 5: %q", gotQuery)
	}
}
