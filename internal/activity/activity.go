package activity

import (
	"context"
	"time"
)

// Record is one on-chain activity item for an address, immutable once fetched.
type Record struct {
	// Signature uniquely identifies the activity. Records without one are
	// skipped by the poll cycle.
	Signature string
	// Category is a free-form tag (e.g. "SWAP", "NFT_SALE"); presentation only.
	Category string
	// Timestamp is when the activity happened on-chain.
	// Zero means "just observed".
	Timestamp time.Time
	// Lamports is the first native transfer amount, 0 when absent.
	Lamports int64
}

// Source queries recent activity records for one address, newest first.
// Implementations must return an error on upstream failure rather than
// panicking; callers treat any error as "zero records this cycle".
type Source interface {
	Fetch(ctx context.Context, address string, limit int) ([]Record, error)
}
