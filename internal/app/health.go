package app

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"walletwatch/internal/tracker"
	logx "walletwatch/pkg/logx"
)

// healthServer exposes a minimal liveness endpoint for process supervisors.
type healthServer struct {
	srv     *http.Server
	store   *tracker.Store
	dedup   *tracker.Dedup
	log     logx.Logger
	started time.Time
}

func newHealthServer(addr string, store *tracker.Store, dedup *tracker.Dedup, log logx.Logger) *healthServer {
	if addr == "" {
		addr = "127.0.0.1:8844"
	}
	h := &healthServer{store: store, dedup: dedup, log: log}

	mux := http.NewServeMux()
	mux.HandleFunc("/", h.handle)
	mux.HandleFunc("/healthz", h.handle)
	h.srv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return h
}

func (h *healthServer) Start(ctx context.Context) {
	h.started = time.Now()
	go func() {
		h.log.Info("health endpoint up", logx.String("addr", h.srv.Addr))
		if err := h.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.log.Warn("health server failed", logx.Err(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = h.srv.Shutdown(shCtx)
	}()
}

func (h *healthServer) Stop(ctx context.Context) {
	_ = h.srv.Shutdown(ctx)
}

func (h *healthServer) handle(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":         "ok",
		"tenants":        len(h.store.TenantIDs()),
		"dedup_entries":  h.dedup.Len(),
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
	})
}
