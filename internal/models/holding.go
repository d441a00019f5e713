// Package models defines the core domain entities for the polyfolio application.
// These models represent wallet positions on Polymarket outcome tokens, historical
// price readings for those tokens, and trade activity.
//
// Terminology:
//   - Asset: a CLOB token id, one outcome of one market. This is the unit we aggregate on.
//   - Wallet: a proxy wallet address holding positions.
//
// Every value is built fresh for a single query cycle and discarded afterwards.
package models

import (
	"errors"
	"fmt"
	"math"
)

// CombinedWallet marks a holding assembled from more than one wallet.
const CombinedWallet = "combined"

// FallbackIconURL is used when the positions API returns no market image.
const FallbackIconURL = "https://polymarket.com/_next/image?url=https%3A%2F%2Fpolymarket-upload.s3.us-east-2.amazonaws.com%2Fwill-iran-close-the-strait-of-hormuz-in-2025-8Ws7O_Z5D_TX.jpg&w=256&q=100"

// RawHolding is one position of one wallet as reported by the positions API.
type RawHolding struct {
	Asset        string  `json:"asset"`
	Title        string  `json:"title"`
	ConditionID  string  `json:"condition_id"`
	EventSlug    string  `json:"event_slug"`
	CurPrice     float64 `json:"cur_price"`
	InitialValue float64 `json:"initial_value"`
	CurrentValue float64 `json:"current_value"`
	RealizedPnl  float64 `json:"realized_pnl"`
	Icon         string  `json:"icon,omitempty"`
	Size         float64 `json:"size"`
	Wallet       string  `json:"wallet"`
}

// Holding is the cross-wallet view of one asset. Numeric fields are sums over
// every contributing wallet position; descriptive fields come from the first
// position seen.
type Holding struct {
	Asset         string   `json:"asset"`
	Title         string   `json:"title"`
	ConditionID   string   `json:"condition_id"`
	CurPrice      float64  `json:"cur_price"`      // 4 decimals
	InitialValue  float64  `json:"initial_value"`  // whole units
	CurrentValue  float64  `json:"current_value"`  // 2 decimals
	RealizedPnl   float64  `json:"realized_pnl"`
	UnrealizedPnl float64  `json:"unrealized_pnl"` // current - initial
	TotalPnl      float64  `json:"total_pnl"`      // realized + unrealized
	PctReturn     float64  `json:"pct_return"`     // total / initial * 100, 0 when initial is 0
	MarketLink    string   `json:"market_link"`
	Icon          string   `json:"icon"`
	Size          float64  `json:"size"`
	Wallet        string   `json:"wallet"` // owner, or CombinedWallet
	Wallets       []string `json:"wallets"`
}

// PeriodMetrics are the lookback-window figures derived from a PriceSnapshot.
// All zero when the asset could not be priced.
type PeriodMetrics struct {
	PnlChange          float64 `json:"pnl_change_period"`
	PricePctChange     float64 `json:"asset_price_pct_change_period"`
	ProjectedPnlChange float64 `json:"projected_pnl_from_pct_change_period"`
	Priced             bool    `json:"priced"`
}

// EnrichedHolding is a Holding plus its period metrics.
type EnrichedHolding struct {
	Holding
	PeriodMetrics
}

// Validate checks that all holding fields are valid
func (h *Holding) Validate() error {
	if h.Asset == "" {
		return errors.New("holding asset must not be empty")
	}
	if h.Wallet == "" {
		return errors.New("holding wallet must not be empty")
	}
	for name, v := range map[string]float64{
		"cur_price":      h.CurPrice,
		"initial_value":  h.InitialValue,
		"current_value":  h.CurrentValue,
		"realized_pnl":   h.RealizedPnl,
		"unrealized_pnl": h.UnrealizedPnl,
		"total_pnl":      h.TotalPnl,
		"pct_return":     h.PctReturn,
		"size":           h.Size,
	} {
		if !isFinite(v) {
			return fmt.Errorf("holding %s: %s is not finite", h.Asset, name)
		}
	}
	return nil
}

// Validate checks the holding and its period metrics
func (e *EnrichedHolding) Validate() error {
	if err := e.Holding.Validate(); err != nil {
		return err
	}
	if !isFinite(e.PnlChange) || !isFinite(e.PricePctChange) || !isFinite(e.ProjectedPnlChange) {
		return fmt.Errorf("holding %s: period metrics are not finite", e.Asset)
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
