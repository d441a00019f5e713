// Package portfolio merges the positions of several wallets into one holding
// per asset.
package portfolio

import (
	"context"
	"fmt"

	"github.com/rewired-gh/polyfolio/internal/fanout"
	"github.com/rewired-gh/polyfolio/internal/logger"
	"github.com/rewired-gh/polyfolio/internal/models"
)

// HoldingsSource fetches the open positions of one wallet.
type HoldingsSource interface {
	FetchHoldings(ctx context.Context, wallet string) ([]models.RawHolding, error)
}

// WalletError represents a per-wallet fetch failure. It never aborts a cycle.
type WalletError struct {
	Wallet string
	Err    error
}

func (e WalletError) Error() string {
	return fmt.Sprintf("fetch error for wallet %s: %v", e.Wallet, e.Err)
}

func (e WalletError) Unwrap() error {
	return e.Err
}

// Aggregator fetches holdings for a wallet list and combines them
type Aggregator struct {
	source         HoldingsSource
	marketBaseURL  string
	maxConcurrency int
}

// NewAggregator creates a new Aggregator
func NewAggregator(source HoldingsSource, marketBaseURL string, maxConcurrency int) *Aggregator {
	return &Aggregator{
		source:         source,
		marketBaseURL:  marketBaseURL,
		maxConcurrency: maxConcurrency,
	}
}

// Aggregate fetches every wallet concurrently, waits for all fetches to
// settle, and combines the successful ones by asset. A failed wallet
// contributes nothing and is reported in the returned error slice. Duplicate
// wallets are fetched once. An empty wallet list issues no requests.
func (a *Aggregator) Aggregate(ctx context.Context, wallets []string) ([]models.Holding, []WalletError) {
	wallets = CleanWallets(wallets, false)
	if len(wallets) == 0 {
		return nil, nil
	}

	results := fanout.Settle(ctx, wallets, a.maxConcurrency, a.source.FetchHoldings)

	var holdings []models.Holding
	var walletErrors []WalletError
	for i, r := range results {
		if r.Err != nil {
			logger.Warn("Failed to fetch holdings for wallet %s: %v", wallets[i], r.Err)
			walletErrors = append(walletErrors, WalletError{Wallet: wallets[i], Err: r.Err})
			continue
		}
		for _, raw := range r.Value {
			if raw.Wallet == "" {
				raw.Wallet = wallets[i]
			}
			holdings = append(holdings, NewHolding(raw, a.marketBaseURL))
		}
	}

	combined := Combine(holdings)
	logger.Debug("Aggregate: wallets=%d, failed=%d, positions=%d, assets=%d",
		len(wallets), len(walletErrors), len(holdings), len(combined))

	return combined, walletErrors
}
