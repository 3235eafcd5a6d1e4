package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"walletwatch/internal/storage"
	"walletwatch/internal/tracker"
	"walletwatch/internal/transport"
	logx "walletwatch/pkg/logx"
)

// Service implements the wallet-tracking command set on top of the router.
type Service struct {
	adapter transport.Adapter
	store   *tracker.Store
	sched   *tracker.Scheduler
	db      storage.Store
	log     logx.Logger
}

func NewService(adapter transport.Adapter, store *tracker.Store, sched *tracker.Scheduler, db storage.Store, log logx.Logger) *Service {
	return &Service{adapter: adapter, store: store, sched: sched, db: db, log: log}
}

func (s *Service) Commands() []Command {
	return []Command{
		{
			Route:       "start",
			Description: "register and show the welcome message",
			Usage:       "/start",
			Handle:      s.cmdStart,
		},
		{
			Route:       "help",
			Description: "show command reference",
			Usage:       "/help",
			Handle:      s.cmdHelp,
		},
		{
			Route:       "add",
			Description: "track a wallet",
			Usage:       "/add <address> <name>",
			Handle:      s.cmdAdd,
		},
		{
			Route:       "my",
			Aliases:     []string{"list", "wallets"},
			Description: "list tracked wallets",
			Usage:       "/my",
			Handle:      s.cmdList,
		},
		{
			Route:       "remove",
			Description: "stop tracking a wallet by address or name",
			Usage:       "/remove <address|name>",
			Handle:      s.cmdRemove,
		},
		{
			Route:       "check",
			Description: "check all tracked wallets right now",
			Usage:       "/check",
			Handle:      s.cmdCheck,
		},
		{
			Route:       "stats",
			Description: "show tracking statistics",
			Usage:       "/stats",
			Handle:      s.cmdStats,
		},
	}
}

var mdOpts = &transport.SendOptions{ParseMode: "Markdown", DisablePreview: true}

func (s *Service) reply(ctx context.Context, req *Request, text string) error {
	_, err := s.adapter.SendText(ctx, req.Chat, text, mdOpts)
	return err
}

func (s *Service) cmdStart(ctx context.Context, req *Request) error {
	if _, err := s.store.GetOrCreateTenant(ctx, req.TenantID); err != nil {
		return err
	}
	name := req.Update.Message.FromName
	if name == "" {
		name = "there"
	}
	text := fmt.Sprintf(
		"👋 *Hi %s!*\n\n"+
			"I watch Solana wallets and ping you when they move.\n\n"+
			"➕ /add `<address>` `<name>` — track a wallet\n"+
			"📋 /my — your tracked wallets\n"+
			"🔍 /check — check activity now\n"+
			"❓ /help — full command list\n\n"+
			"You can track up to %d wallets.",
		name, s.store.MaxWallets())
	return s.reply(ctx, req, text)
}

func (s *Service) cmdHelp(ctx context.Context, req *Request) error {
	var b strings.Builder
	b.WriteString("📖 *Commands*\n\n")
	b.WriteString("/add `<address>` `<name>` — track a wallet\n")
	b.WriteString("/my — list tracked wallets\n")
	b.WriteString("/remove `<address|name>` — stop tracking\n")
	b.WriteString("/check — check all wallets now\n")
	b.WriteString("/stats — tracking statistics\n\n")
	fmt.Fprintf(&b, "Alerts arrive automatically every few minutes. Up to %d wallets per user.", s.store.MaxWallets())
	return s.reply(ctx, req, b.String())
}

func (s *Service) cmdAdd(ctx context.Context, req *Request) error {
	if len(req.Args) < 2 {
		return s.reply(ctx, req, "Usage: /add `<address>` `<name>`\n\nExample:\n`/add 7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU Whale`")
	}
	address := req.Args[0]
	name := strings.Join(req.Args[1:], " ")

	if len(address) < 32 || len(address) > 44 {
		return s.reply(ctx, req, "❌ That doesn't look like a Solana address.")
	}

	start := time.Now()
	w, err := s.store.AddWallet(ctx, req.TenantID, address, name)
	s.audit(ctx, req.TenantID, "add", address, err, start)
	switch {
	case errors.Is(err, tracker.ErrQuotaExceeded):
		return s.reply(ctx, req, fmt.Sprintf("❌ Limit reached: you can track at most %d wallets. Remove one first with /remove.", s.store.MaxWallets()))
	case errors.Is(err, tracker.ErrAlreadyTracked):
		return s.reply(ctx, req, "❌ You already track this address.")
	case err != nil:
		s.log.Error("add wallet failed", logx.Int64("tenant", req.TenantID), logx.Err(err))
		return s.reply(ctx, req, "❌ Could not save the wallet, try again later.")
	}
	return s.reply(ctx, req, fmt.Sprintf(
		"✅ *Now tracking*\n\n📛 *Name:* %s\n📍 `%s`\n\nYou'll get an alert on new activity.", w.Name, w.Address))
}

func (s *Service) cmdList(ctx context.Context, req *Request) error {
	t, ok := s.store.Snapshot(req.TenantID)
	if !ok || len(t.Wallets) == 0 {
		return s.reply(ctx, req, "📭 You don't track any wallets yet.\n\nAdd one: /add `<address>` `<name>`")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📋 *Your wallets* (%d/%d)\n\n", len(t.Wallets), s.store.MaxWallets())
	for i, w := range t.Wallets {
		fmt.Fprintf(&b, "%d. *%s*\n   `%s`\n   📊 %d tx", i+1, w.Name, w.Address, w.TxCount)
		if w.LastTxAt != nil {
			fmt.Fprintf(&b, " · last %s", w.LastTxAt.Format("Jan 2 15:04"))
		}
		b.WriteString("\n\n")
	}
	return s.reply(ctx, req, strings.TrimRight(b.String(), "\n"))
}

func (s *Service) cmdRemove(ctx context.Context, req *Request) error {
	if len(req.Args) == 0 {
		return s.reply(ctx, req, "Usage: /remove `<address|name>`")
	}
	identifier := strings.Join(req.Args, " ")

	start := time.Now()
	w, err := s.store.RemoveWallet(ctx, req.TenantID, identifier)
	s.audit(ctx, req.TenantID, "remove", identifier, err, start)
	switch {
	case errors.Is(err, tracker.ErrNotFound):
		return s.reply(ctx, req, "❌ No tracked wallet matches that address or name. See /my.")
	case err != nil:
		s.log.Error("remove wallet failed", logx.Int64("tenant", req.TenantID), logx.Err(err))
		return s.reply(ctx, req, "❌ Could not remove the wallet, try again later.")
	}
	return s.reply(ctx, req, fmt.Sprintf("🗑 Stopped tracking *%s*\n`%s`", w.Name, w.Address))
}

func (s *Service) cmdCheck(ctx context.Context, req *Request) error {
	t, ok := s.store.Snapshot(req.TenantID)
	if !ok || len(t.Wallets) == 0 {
		return s.reply(ctx, req, "📭 Nothing to check, you don't track any wallets.")
	}
	if err := s.reply(ctx, req, fmt.Sprintf("🔍 Checking %d wallet(s)...", len(t.Wallets))); err != nil {
		return err
	}

	start := time.Now()
	novel, err := s.sched.ManualCheck(ctx, req.TenantID)
	s.audit(ctx, req.TenantID, "check", "", err, start)
	switch {
	case errors.Is(err, tracker.ErrCheckInProgress):
		return s.reply(ctx, req, "⏳ A check is already running for you, hold on.")
	case err != nil:
		s.log.Warn("manual check failed", logx.Int64("tenant", req.TenantID), logx.Err(err))
		return s.reply(ctx, req, "❌ Check failed, try again in a bit.")
	}
	if novel == 0 {
		return s.reply(ctx, req, "✅ All quiet, no new activity.")
	}
	return nil
}

func (s *Service) cmdStats(ctx context.Context, req *Request) error {
	t, ok := s.store.Snapshot(req.TenantID)
	if !ok {
		return s.reply(ctx, req, "📭 No stats yet, start with /add.")
	}
	cutoff := time.Now().Add(-24 * time.Hour)
	var recent int64
	for _, w := range t.Wallets {
		if w.LastTxAt != nil && w.LastTxAt.After(cutoff) {
			recent += w.TxCount
		}
	}
	text := fmt.Sprintf(
		"📊 *Your stats*\n\n"+
			"👛 Wallets: %d/%d\n"+
			"🔔 Alerts sent: %d\n"+
			"⚡ Activity (24h): %d tx\n"+
			"📅 Tracking since: %s",
		len(t.Wallets), s.store.MaxWallets(), t.AlertCount, recent, t.CreatedAt.Format("Jan 2, 2006"))
	return s.reply(ctx, req, text)
}

func (s *Service) audit(ctx context.Context, tenantID int64, action, target string, opErr error, start time.Time) {
	e := storage.AuditEntry{
		At:       time.Now(),
		TenantID: tenantID,
		Action:   action,
		Target:   target,
		OK:       opErr == nil,
		TookMS:   time.Since(start).Milliseconds(),
	}
	if opErr != nil {
		e.Error = opErr.Error()
	}
	if err := s.db.AppendAudit(ctx, e); err != nil {
		s.log.Debug("audit append failed", logx.Err(err))
	}
}
