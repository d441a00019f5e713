package dashboard

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rewired-gh/polyfolio/internal/models"
	"github.com/rewired-gh/polyfolio/internal/portfolio"
	"github.com/rewired-gh/polyfolio/internal/ranking"
)

// Summary holds the headline figures of the filtered holdings.
type Summary struct {
	RealizedPnl   float64 `json:"realized_pnl"`
	UnrealizedPnl float64 `json:"unrealized_pnl"`
	TotalPnl      float64 `json:"total_pnl"`
	CashBalance   float64 `json:"cash_balance"`
	// CashBalance is a configured constant, not a real wallet balance
	CashIsPlaceholder bool `json:"cash_is_placeholder"`
}

// WalletOption is one entry of the wallet filter.
type WalletOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Result is everything a query cycle produces.
type Result struct {
	CycleID    uuid.UUID         `json:"cycle_id"`
	ComputedAt time.Time         `json:"computed_at"`
	Wallets    []string          `json:"wallets"`
	Hours      int               `json:"hours"`
	Filter     string            `json:"wallet_filter"`
	Metric     ranking.Metric    `json:"metric"`
	Direction  ranking.Direction `json:"direction"`

	Holdings      []models.EnrichedHolding `json:"holdings"`
	Trades        []models.Trade           `json:"trades"`
	Summary       Summary                  `json:"summary"`
	Leaders       []models.EnrichedHolding `json:"leaders"` // Gainers or Losers, per Direction
	Gainers       []models.EnrichedHolding `json:"gainers"`
	Losers        []models.EnrichedHolding `json:"losers"`
	WalletOptions []WalletOption           `json:"wallet_options"`

	// Warnings lists the fetch failures absorbed during the cycle
	Warnings []string `json:"warnings,omitempty"`
}

// Empty reports whether the cycle produced no holdings and no trades.
func (r *Result) Empty() bool {
	return len(r.Holdings) == 0 && len(r.Trades) == 0
}

// Validate checks every holding of the result
func (r *Result) Validate() error {
	if r.CycleID == uuid.Nil {
		return fmt.Errorf("result has no cycle id")
	}
	for i := range r.Holdings {
		if err := r.Holdings[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// FilterHoldings keeps the holdings owned by wallet. AllWallets or "" keeps
// everything. Multi-wallet holdings are owned by models.CombinedWallet.
func FilterHoldings(holdings []models.EnrichedHolding, wallet string) []models.EnrichedHolding {
	if wallet == "" || wallet == AllWallets {
		return holdings
	}
	out := make([]models.EnrichedHolding, 0, len(holdings))
	for _, h := range holdings {
		if h.Wallet == wallet {
			out = append(out, h)
		}
	}
	return out
}

// FilterTrades keeps the trades of wallet (AllWallets or "" keeps everything),
// newest first, capped at limit when limit > 0.
func FilterTrades(trades []models.Trade, wallet string, limit int) []models.Trade {
	out := make([]models.Trade, 0, len(trades))
	for _, t := range trades {
		if wallet == "" || wallet == AllWallets || t.Wallet == wallet {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UnixTime > out[j].UnixTime
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Summarize sums realized, unrealized and total PnL over holdings. The cash
// balance is cashPlaceholder when holdings is non-empty, otherwise every
// figure is zero.
func Summarize(holdings []models.EnrichedHolding, cashPlaceholder float64) Summary {
	if len(holdings) == 0 {
		return Summary{CashIsPlaceholder: true}
	}

	var realized, unrealized, total decimal.Decimal
	for _, h := range holdings {
		realized = realized.Add(decimal.NewFromFloat(h.RealizedPnl))
		unrealized = unrealized.Add(decimal.NewFromFloat(h.UnrealizedPnl))
		total = total.Add(decimal.NewFromFloat(h.TotalPnl))
	}

	return Summary{
		RealizedPnl:       realized.InexactFloat64(),
		UnrealizedPnl:     unrealized.InexactFloat64(),
		TotalPnl:          total.InexactFloat64(),
		CashBalance:       cashPlaceholder,
		CashIsPlaceholder: true,
	}
}

// WalletOptions lists AllWallets followed by every distinct holding owner in
// first-seen order.
func WalletOptions(holdings []models.EnrichedHolding) []WalletOption {
	options := []WalletOption{{Value: AllWallets, Label: "All Wallets"}}
	seen := make(map[string]bool)
	for _, h := range holdings {
		if seen[h.Wallet] {
			continue
		}
		seen[h.Wallet] = true
		options = append(options, WalletOption{Value: h.Wallet, Label: portfolio.ShortLabel(h.Wallet)})
	}
	return options
}
