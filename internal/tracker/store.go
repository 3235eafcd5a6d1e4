package tracker

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"walletwatch/internal/storage"
	logx "walletwatch/pkg/logx"
)

// StoreConfig bounds per-tenant resources.
type StoreConfig struct {
	// MaxWallets caps tracked addresses per tenant (default 10).
	MaxWallets int
	// NameMaxLen truncates display names, in runes (default 20).
	NameMaxLen int
}

// Store owns the tenant map: tracked wallets, counters, quota enforcement.
//
// Every mutating operation persists before it reports success, so a crash
// right after a successful call never loses that mutation. On a persistence
// failure the in-memory state is left untouched and the error is returned.
type Store struct {
	cfg StoreConfig
	db  storage.Store
	log logx.Logger

	mu      sync.RWMutex
	tenants map[int64]*Tenant
}

func NewStore(cfg StoreConfig, db storage.Store, log logx.Logger) *Store {
	if cfg.MaxWallets <= 0 {
		cfg.MaxWallets = 10
	}
	if cfg.NameMaxLen <= 0 {
		cfg.NameMaxLen = 20
	}
	return &Store{
		cfg:     cfg,
		db:      db,
		log:     log,
		tenants: map[int64]*Tenant{},
	}
}

func (s *Store) MaxWallets() int { return s.cfg.MaxWallets }

// Load replaces the in-memory tenant map from persistence. Call once at start.
func (s *Store) Load(ctx context.Context) error {
	recs, err := s.db.LoadTenants(ctx)
	if err != nil {
		return fmt.Errorf("load tenants: %w", err)
	}
	tenants := make(map[int64]*Tenant, len(recs))
	for _, r := range recs {
		t := fromRecord(r)
		tenants[t.ID] = t
	}
	s.mu.Lock()
	s.tenants = tenants
	s.mu.Unlock()
	s.log.Info("tenants loaded", logx.Int("count", len(tenants)))
	return nil
}

// GetOrCreateTenant returns a snapshot of the tenant, creating (and
// persisting) an empty one on first interaction.
func (s *Store) GetOrCreateTenant(ctx context.Context, id int64) (Tenant, error) {
	s.mu.RLock()
	t, ok := s.tenants[id]
	if ok {
		snap := t.clone()
		s.mu.RUnlock()
		return snap, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tenants[id]; ok {
		return t.clone(), nil
	}
	nt := &Tenant{ID: id, CreatedAt: time.Now()}
	if err := s.db.SaveTenant(ctx, toRecord(nt)); err != nil {
		return Tenant{}, fmt.Errorf("persist tenant: %w", err)
	}
	s.tenants[id] = nt
	return nt.clone(), nil
}

// AddWallet inserts a tracked address for the tenant.
// Fails with ErrQuotaExceeded, ErrAlreadyTracked or ErrNameRequired;
// the set is unchanged on any failure.
func (s *Store) AddWallet(ctx context.Context, tenantID int64, address, name string) (Wallet, error) {
	address = strings.TrimSpace(address)
	name = truncateRunes(strings.TrimSpace(name), s.cfg.NameMaxLen)
	if address == "" {
		return Wallet{}, ErrNotFound
	}
	if name == "" {
		return Wallet{}, ErrNameRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.getOrCreateLocked(ctx, tenantID)
	if err != nil {
		return Wallet{}, err
	}
	if len(t.Wallets) >= s.cfg.MaxWallets {
		return Wallet{}, ErrQuotaExceeded
	}
	for _, w := range t.Wallets {
		if w.Address == address {
			return Wallet{}, ErrAlreadyTracked
		}
	}

	w := Wallet{Address: address, Name: name, AddedAt: time.Now()}

	// Persist first, commit to memory only on success.
	next := t.clone()
	next.Wallets = append(next.Wallets, w)
	if err := s.db.SaveTenant(ctx, toRecord(&next)); err != nil {
		return Wallet{}, fmt.Errorf("persist tenant: %w", err)
	}
	t.Wallets = append(t.Wallets, w)
	return w, nil
}

// RemoveWallet removes by exact address first, then by case-insensitive
// display name. Returns the removed wallet.
func (s *Store) RemoveWallet(ctx context.Context, tenantID int64, identifier string) (Wallet, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return Wallet{}, ErrNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tenants[tenantID]
	if !ok {
		return Wallet{}, ErrNotFound
	}

	idx := -1
	for i, w := range t.Wallets {
		if w.Address == identifier {
			idx = i
			break
		}
	}
	if idx < 0 {
		for i, w := range t.Wallets {
			if strings.EqualFold(w.Name, identifier) {
				idx = i
				break
			}
		}
	}
	if idx < 0 {
		return Wallet{}, ErrNotFound
	}

	removed := t.Wallets[idx]
	next := t.clone()
	next.Wallets = append(next.Wallets[:idx], next.Wallets[idx+1:]...)
	if err := s.db.SaveTenant(ctx, toRecord(&next)); err != nil {
		return Wallet{}, fmt.Errorf("persist tenant: %w", err)
	}
	t.Wallets = append(t.Wallets[:idx], t.Wallets[idx+1:]...)
	return removed, nil
}

// RemoveTenant unconditionally deletes the tenant and everything it owns.
// Used when the recipient becomes permanently unreachable.
func (s *Store) RemoveTenant(ctx context.Context, tenantID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tenants[tenantID]; !ok {
		return nil
	}
	if err := s.db.DeleteTenant(ctx, tenantID); err != nil {
		return fmt.Errorf("delete tenant: %w", err)
	}
	delete(s.tenants, tenantID)
	return nil
}

// Snapshot returns a copy of the tenant state, if present.
func (s *Store) Snapshot(tenantID int64) (Tenant, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tenants[tenantID]
	if !ok {
		return Tenant{}, false
	}
	return t.clone(), true
}

// TenantIDs returns all known tenant ids in stable order.
func (s *Store) TenantIDs() []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]int64, 0, len(s.tenants))
	for id := range s.tenants {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// CycleUpdate carries one tenant's mutation set from a poll cycle:
// per-address novel counts plus the alert total.
type CycleUpdate struct {
	NovelByAddress map[string]int64
	At             time.Time
}

// CommitCycle applies a cycle's counter mutations and flushes the tenant
// once. If the flush fails the in-memory state is left untouched.
func (s *Store) CommitCycle(ctx context.Context, tenantID int64, up CycleUpdate) error {
	if len(up.NovelByAddress) == 0 {
		return nil
	}
	if up.At.IsZero() {
		up.At = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tenants[tenantID]
	if !ok {
		// Tenant removed mid-cycle (unreachable recipient); nothing to commit.
		return nil
	}

	next := t.clone()
	var total int64
	for i := range next.Wallets {
		n := up.NovelByAddress[next.Wallets[i].Address]
		if n <= 0 {
			continue
		}
		next.Wallets[i].TxCount += n
		at := up.At
		next.Wallets[i].LastTxAt = &at
		total += n
	}
	next.AlertCount += total

	if err := s.db.SaveTenant(ctx, toRecord(&next)); err != nil {
		return fmt.Errorf("persist cycle update: %w", err)
	}
	*t = next
	return nil
}

func (s *Store) getOrCreateLocked(ctx context.Context, id int64) (*Tenant, error) {
	if t, ok := s.tenants[id]; ok {
		return t, nil
	}
	nt := &Tenant{ID: id, CreatedAt: time.Now()}
	if err := s.db.SaveTenant(ctx, toRecord(nt)); err != nil {
		return nil, fmt.Errorf("persist tenant: %w", err)
	}
	s.tenants[id] = nt
	return nt, nil
}

func (t *Tenant) clone() Tenant {
	cp := *t
	cp.Wallets = make([]Wallet, len(t.Wallets))
	copy(cp.Wallets, t.Wallets)
	for i := range cp.Wallets {
		if src := t.Wallets[i].LastTxAt; src != nil {
			at := *src
			cp.Wallets[i].LastTxAt = &at
		}
	}
	return cp
}

func toRecord(t *Tenant) storage.TenantRecord {
	r := storage.TenantRecord{
		ID:         t.ID,
		CreatedAt:  t.CreatedAt,
		AlertCount: t.AlertCount,
		Wallets:    make([]storage.WalletRecord, 0, len(t.Wallets)),
	}
	for _, w := range t.Wallets {
		wr := storage.WalletRecord{
			Address: w.Address,
			Name:    w.Name,
			AddedAt: w.AddedAt,
			TxCount: w.TxCount,
		}
		if w.LastTxAt != nil {
			at := *w.LastTxAt
			wr.LastTxAt = &at
		}
		r.Wallets = append(r.Wallets, wr)
	}
	return r
}

func fromRecord(r storage.TenantRecord) *Tenant {
	t := &Tenant{
		ID:         r.ID,
		CreatedAt:  r.CreatedAt,
		AlertCount: r.AlertCount,
		Wallets:    make([]Wallet, 0, len(r.Wallets)),
	}
	for _, wr := range r.Wallets {
		w := Wallet{
			Address: wr.Address,
			Name:    wr.Name,
			AddedAt: wr.AddedAt,
			TxCount: wr.TxCount,
		}
		if wr.LastTxAt != nil {
			at := *wr.LastTxAt
			w.LastTxAt = &at
		}
		t.Wallets = append(t.Wallets, w)
	}
	return t
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
