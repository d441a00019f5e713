// Package ranking orders enriched holdings by one performance metric.
package ranking

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/rewired-gh/polyfolio/internal/models"
)

// DefaultTopN is the number of holdings a leaders list keeps.
const DefaultTopN = 10

// Metric selects the figure holdings are ranked by.
type Metric int

const (
	PnlChangePeriod Metric = iota
	PricePctChangePeriod
	ProjectedPnlChangePeriod
	TotalPnl
)

var metricNames = [...]string{
	PnlChangePeriod:          "pnl_change_period",
	PricePctChangePeriod:     "asset_price_pct_change_period",
	ProjectedPnlChangePeriod: "projected_pnl_from_pct_change_period",
	TotalPnl:                 "total_pnl",
}

var metricLabels = [...]string{
	PnlChangePeriod:          "PnL Change",
	PricePctChangePeriod:     "Price % Change",
	ProjectedPnlChangePeriod: "Projected PnL",
	TotalPnl:                 "All Time PnL",
}

// Metrics lists every metric in display order.
func Metrics() []Metric {
	return []Metric{PnlChangePeriod, PricePctChangePeriod, ProjectedPnlChangePeriod, TotalPnl}
}

// ParseMetric resolves a metric by its wire name. The empty string selects
// PnlChangePeriod.
func ParseMetric(s string) (Metric, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return PnlChangePeriod, nil
	}
	for _, m := range Metrics() {
		if metricNames[m] == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown metric %q", s)
}

func (m Metric) valid() bool {
	return m >= PnlChangePeriod && m <= TotalPnl
}

func (m Metric) String() string {
	if !m.valid() {
		return fmt.Sprintf("Metric(%d)", int(m))
	}
	return metricNames[m]
}

// Label is the human-readable metric name.
func (m Metric) Label() string {
	if !m.valid() {
		return m.String()
	}
	return metricLabels[m]
}

// IsPercent reports whether the metric is a percentage rather than a USDC amount.
func (m Metric) IsPercent() bool {
	return m == PricePctChangePeriod
}

// Value extracts the metric from h. Non-finite values read as 0.
func (m Metric) Value(h models.EnrichedHolding) float64 {
	var v float64
	switch m {
	case PnlChangePeriod:
		v = h.PnlChange
	case PricePctChangePeriod:
		v = h.PricePctChange
	case ProjectedPnlChangePeriod:
		v = h.ProjectedPnlChange
	case TotalPnl:
		v = h.TotalPnl
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func (m Metric) MarshalText() ([]byte, error) {
	if !m.valid() {
		return nil, fmt.Errorf("invalid metric %d", int(m))
	}
	return []byte(m.String()), nil
}

func (m *Metric) UnmarshalText(b []byte) error {
	parsed, err := ParseMetric(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Direction is the ranking order.
type Direction int

const (
	// Gainers ranks the highest values first.
	Gainers Direction = iota
	// Losers ranks the lowest values first.
	Losers
)

// ParseDirection resolves "gainers" or "losers". The empty string selects
// Gainers.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "gainers":
		return Gainers, nil
	case "losers":
		return Losers, nil
	}
	return 0, fmt.Errorf("unknown direction %q", s)
}

func (d Direction) String() string {
	switch d {
	case Gainers:
		return "gainers"
	case Losers:
		return "losers"
	}
	return fmt.Sprintf("Direction(%d)", int(d))
}

func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Direction) UnmarshalText(b []byte) error {
	parsed, err := ParseDirection(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Rank returns up to n holdings ordered by metric in direction. Equal values
// keep their input order. holdings is not modified. n <= 0 selects
// DefaultTopN.
func Rank(holdings []models.EnrichedHolding, metric Metric, dir Direction, n int) []models.EnrichedHolding {
	if n <= 0 {
		n = DefaultTopN
	}

	sorted := make([]models.EnrichedHolding, len(holdings))
	copy(sorted, holdings)

	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := metric.Value(sorted[i]), metric.Value(sorted[j])
		if dir == Losers {
			return a < b
		}
		return a > b
	})

	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}
