package tracker

import (
	"errors"
	"time"

	"walletwatch/internal/activity"
)

var (
	// ErrQuotaExceeded means the tenant already tracks the maximum number of wallets.
	ErrQuotaExceeded = errors.New("wallet quota exceeded")
	// ErrAlreadyTracked means the address is already in the tenant's set.
	ErrAlreadyTracked = errors.New("wallet already tracked")
	// ErrNotFound means no wallet matched the given address or name.
	ErrNotFound = errors.New("wallet not found")
	// ErrNameRequired means the display name was empty after trimming.
	ErrNameRequired = errors.New("wallet name is required")
	// ErrCheckInProgress means a cycle for this tenant is already running.
	ErrCheckInProgress = errors.New("check already in progress for this user")
)

// Wallet is one tracked address, owned by exactly one tenant.
type Wallet struct {
	Address  string
	Name     string
	AddedAt  time.Time
	LastTxAt *time.Time
	TxCount  int64
}

// Tenant is one user's isolated tracking state.
// Wallets keeps insertion order; cycles iterate it in that order.
type Tenant struct {
	ID         int64
	CreatedAt  time.Time
	AlertCount int64
	Wallets    []Wallet
}

// Alert is one novel activity notification, ready for formatting.
type Alert struct {
	Record     activity.Record
	WalletName string
	Address    string
}
