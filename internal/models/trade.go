package models

import (
	"errors"
	"strings"
)

// RawTrade is one TRADE activity record of one wallet.
type RawTrade struct {
	Timestamp int64   `json:"timestamp"` // unix seconds
	Asset     string  `json:"asset"`
	Side      string  `json:"side"` // BUY or SELL as sent by the API
	Price     float64 `json:"price"`
	UsdcSize  float64 `json:"usdc_size"`
	Size      float64 `json:"size"`
	Wallet    string  `json:"wallet"`
}

// Trade is a display-ready trade row.
type Trade struct {
	ID        string  `json:"id"`
	Timestamp string  `json:"timestamp"`
	UnixTime  int64   `json:"unix_time"`
	Asset     string  `json:"asset"`
	Title     string  `json:"title"`
	Side      string  `json:"side"` // buy or sell
	Price     float64 `json:"price"`
	UsdcSize  float64 `json:"usdc_size"`
	Size      float64 `json:"size"`
	Wallet    string  `json:"wallet"`
}

// Validate checks that all raw trade fields are valid
func (t *RawTrade) Validate() error {
	if t.Asset == "" {
		return errors.New("trade asset must not be empty")
	}
	if t.Timestamp <= 0 {
		return errors.New("trade timestamp must be positive")
	}
	side := strings.ToUpper(t.Side)
	if side != "BUY" && side != "SELL" {
		return errors.New("trade side must be 'BUY' or 'SELL'")
	}
	if !isFinite(t.Price) || !isFinite(t.UsdcSize) || !isFinite(t.Size) {
		return errors.New("trade amounts must be finite")
	}
	return nil
}
