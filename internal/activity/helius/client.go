package helius

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"walletwatch/internal/activity"
	logx "walletwatch/pkg/logx"
)

const defaultBaseURL = "https://api.helius.xyz"

// Config configures the Helius activity client.
type Config struct {
	BaseURL string
	APIKey  string
	// Timeout bounds one fetch call (default 10s).
	Timeout time.Duration
	// RatePerSec caps requests to the upstream API across all tenants;
	// the free tier has a small daily quota. 0 disables the limiter.
	RatePerSec int
}

// Client fetches recent transactions for an address from the Helius API.
type Client struct {
	cfg     Config
	log     logx.Logger
	http    *http.Client
	limiter *rate.Limiter
}

func New(cfg Config, log logx.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("helius api key is empty")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	var lim *rate.Limiter
	if cfg.RatePerSec > 0 {
		lim = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
	}
	return &Client{
		cfg:     cfg,
		log:     log,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: lim,
	}, nil
}

// wire shapes for the v0 address-transactions endpoint. Only the fields the
// tracker cares about are decoded; everything else is ignored.
type wireTx struct {
	Signature       string         `json:"signature"`
	Type            string         `json:"type"`
	Timestamp       int64          `json:"timestamp"`
	NativeTransfers []wireTransfer `json:"nativeTransfers"`
}

type wireTransfer struct {
	Amount int64 `json:"amount"`
}

func (c *Client) Fetch(ctx context.Context, address string, limit int) ([]activity.Record, error) {
	if limit <= 0 {
		limit = 5
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	u := fmt.Sprintf("%s/v0/addresses/%s/transactions?api-key=%s&limit=%d",
		strings.TrimRight(c.cfg.BaseURL, "/"),
		url.PathEscape(address),
		url.QueryEscape(c.cfg.APIKey),
		limit,
	)

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("helius: unexpected status %d for %s", resp.StatusCode, truncAddr(address))
	}

	var txs []wireTx
	if err := json.NewDecoder(resp.Body).Decode(&txs); err != nil {
		return nil, fmt.Errorf("helius: decode response: %w", err)
	}

	out := make([]activity.Record, 0, len(txs))
	for _, tx := range txs {
		r := activity.Record{
			Signature: tx.Signature,
			Category:  tx.Type,
		}
		if tx.Timestamp > 0 {
			r.Timestamp = time.Unix(tx.Timestamp, 0)
		}
		if len(tx.NativeTransfers) > 0 {
			r.Lamports = tx.NativeTransfers[0].Amount
		}
		out = append(out, r)
	}
	return out, nil
}

func truncAddr(a string) string {
	if len(a) <= 10 {
		return a
	}
	return a[:10] + "..."
}
