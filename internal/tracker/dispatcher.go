package tracker

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"walletwatch/internal/storage"
	"walletwatch/internal/transport"
	logx "walletwatch/pkg/logx"
)

// DispatcherConfig controls alert delivery.
type DispatcherConfig struct {
	// MaxPerCycle is the hard cap on individual alerts per tenant per
	// cycle; the overflow is reported as one summary message (default 3).
	MaxPerCycle int
	// Pace is the delay between consecutive sends, to respect the
	// recipient channel's rate limits (default 1s).
	Pace time.Duration
}

// Dispatcher delivers a cycle's alerts to the tenant's chat.
//
// Permanently unreachable recipients (blocked the bot) are deregistered
// via Store.RemoveTenant. Transient delivery errors skip the remaining
// sends for that tenant this cycle.
type Dispatcher struct {
	cfg     DispatcherConfig
	sender  transport.Adapter
	store   *Store
	db      storage.Store
	log     logx.Logger
	limiter *rate.Limiter
}

func NewDispatcher(cfg DispatcherConfig, sender transport.Adapter, store *Store, db storage.Store, log logx.Logger) *Dispatcher {
	if cfg.MaxPerCycle <= 0 {
		cfg.MaxPerCycle = 3
	}
	if cfg.Pace <= 0 {
		cfg.Pace = time.Second
	}
	return &Dispatcher{
		cfg:    cfg,
		sender: sender,
		store:  store,
		db:     db,
		log:    log,
		// Token bucket with burst 1: first send goes out immediately,
		// every following send waits out the pace.
		limiter: rate.NewLimiter(rate.Every(cfg.Pace), 1),
	}
}

// Deliver sends up to MaxPerCycle alerts plus an overflow summary.
// It returns the number of messages actually delivered.
func (d *Dispatcher) Deliver(ctx context.Context, tenantID int64, alerts []Alert) (int, error) {
	if len(alerts) == 0 {
		return 0, nil
	}
	to := transport.ChatTarget{ChatID: tenantID}
	opt := &transport.SendOptions{ParseMode: "Markdown", DisablePreview: true}

	n := len(alerts)
	if n > d.cfg.MaxPerCycle {
		n = d.cfg.MaxPerCycle
	}

	sent := 0
	for _, a := range alerts[:n] {
		if err := d.limiter.Wait(ctx); err != nil {
			return sent, err
		}
		if _, err := d.sender.SendText(ctx, to, FormatAlert(a), opt); err != nil {
			return sent, d.handleSendError(ctx, tenantID, err)
		}
		sent++
	}

	if extra := len(alerts) - n; extra > 0 {
		if err := d.limiter.Wait(ctx); err != nil {
			return sent, err
		}
		if _, err := d.sender.SendText(ctx, to, FormatSummary(extra), nil); err != nil {
			return sent, d.handleSendError(ctx, tenantID, err)
		}
		sent++
	}
	return sent, nil
}

func (d *Dispatcher) handleSendError(ctx context.Context, tenantID int64, err error) error {
	if transport.IsUnreachable(err) {
		d.log.Info("recipient unreachable, removing tenant", logx.Int64("tenant", tenantID), logx.Err(err))
		if rmErr := d.store.RemoveTenant(ctx, tenantID); rmErr != nil {
			d.log.Error("tenant removal failed", logx.Int64("tenant", tenantID), logx.Err(rmErr))
		}
		_ = d.db.AppendAudit(ctx, storage.AuditEntry{
			TenantID: tenantID,
			Action:   "tenant_removed",
			Target:   "unreachable",
			OK:       true,
		})
		return err
	}
	// Transient: skip the rest of this tenant's sends for the cycle.
	d.log.Warn("alert delivery failed", logx.Int64("tenant", tenantID), logx.Err(err))
	return err
}
