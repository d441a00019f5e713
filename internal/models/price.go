package models

import (
	"errors"
	"time"
)

// PricePoint is one entry of a CLOB price-history series.
type PricePoint struct {
	T int64   `json:"t"` // unix seconds
	P float64 `json:"p"`
}

// Time returns the point timestamp as a time.Time.
func (p PricePoint) Time() time.Time {
	return time.Unix(p.T, 0)
}

// PriceSnapshot compares an asset's current price with the price closest to
// the start of the lookback window.
type PriceSnapshot struct {
	Asset         string  `json:"asset"`
	PastPrice     float64 `json:"past_price"`
	PastTimestamp int64   `json:"past_timestamp"`
	CurrentPrice  float64 `json:"current_price"`
	Change        float64 `json:"change"`         // current - past
	ChangePercent float64 `json:"change_percent"` // change / past * 100, 0 when past <= 0
}

// Validate checks that all snapshot fields are valid
func (s *PriceSnapshot) Validate() error {
	if s.Asset == "" {
		return errors.New("snapshot asset must not be empty")
	}
	if !isFinite(s.PastPrice) || !isFinite(s.CurrentPrice) || !isFinite(s.Change) || !isFinite(s.ChangePercent) {
		return errors.New("snapshot prices must be finite")
	}
	if s.PastTimestamp <= 0 {
		return errors.New("snapshot past timestamp must be positive")
	}
	return nil
}
