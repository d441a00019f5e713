// Package performance derives period metrics for holdings by comparing each
// asset's current price with its price at the start of the lookback window.
package performance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rewired-gh/polyfolio/internal/fanout"
	"github.com/rewired-gh/polyfolio/internal/logger"
	"github.com/rewired-gh/polyfolio/internal/models"
)

// ErrNoHistory is returned by Snapshot when the window holds no price points.
var ErrNoHistory = errors.New("no price history in window")

// PriceSource provides current and historical prices for an asset.
type PriceSource interface {
	FetchCurrentPrice(ctx context.Context, asset string) (float64, error)
	FetchPriceHistory(ctx context.Context, asset string, startTs, endTs int64, fidelity int) ([]models.PricePoint, error)
}

// AssetError represents a per-asset pricing failure. The asset keeps zero
// period metrics.
type AssetError struct {
	Asset string
	Err   error
}

func (e AssetError) Error() string {
	return fmt.Sprintf("pricing error for asset %s: %v", e.Asset, e.Err)
}

func (e AssetError) Unwrap() error {
	return e.Err
}

// Enricher computes price snapshots and period metrics
type Enricher struct {
	source         PriceSource
	fidelity       int
	maxConcurrency int
	now            func() time.Time
}

// NewEnricher creates a new Enricher. fidelity is the history resolution in
// minutes.
func NewEnricher(source PriceSource, fidelity, maxConcurrency int) *Enricher {
	if fidelity <= 0 {
		fidelity = 1
	}
	return &Enricher{
		source:         source,
		fidelity:       fidelity,
		maxConcurrency: maxConcurrency,
		now:            time.Now,
	}
}

// WithClock replaces the enricher's time source.
func (e *Enricher) WithClock(now func() time.Time) *Enricher {
	e.now = now
	return e
}

// NearestPoint returns the point whose timestamp is closest to target. On
// equal distance the earlier point in the slice wins. ok is false for an
// empty series.
func NearestPoint(history []models.PricePoint, target int64) (point models.PricePoint, ok bool) {
	if len(history) == 0 {
		return models.PricePoint{}, false
	}
	best := history[0]
	bestDist := absDiff(best.T, target)
	for _, p := range history[1:] {
		if d := absDiff(p.T, target); d < bestDist {
			best, bestDist = p, d
		}
	}
	return best, true
}

func absDiff(a, b int64) int64 {
	if a > b {
		return a - b
	}
	return b - a
}

// Snapshot compares the current price of asset with its price nearest to
// hours ago.
func (e *Enricher) Snapshot(ctx context.Context, asset string, hours int) (models.PriceSnapshot, error) {
	now := e.now().Unix()
	target := now - int64(ValidHours(hours))*3600

	current, err := e.source.FetchCurrentPrice(ctx, asset)
	if err != nil {
		return models.PriceSnapshot{}, err
	}

	history, err := e.source.FetchPriceHistory(ctx, asset, target, now, e.fidelity)
	if err != nil {
		return models.PriceSnapshot{}, err
	}

	past, ok := NearestPoint(history, target)
	if !ok {
		return models.PriceSnapshot{}, ErrNoHistory
	}

	change := current - past.P
	var changePercent float64
	if past.P > 0 {
		changePercent = change / past.P * 100
	}

	return models.PriceSnapshot{
		Asset:         asset,
		PastPrice:     past.P,
		PastTimestamp: past.T,
		CurrentPrice:  current,
		Change:        change,
		ChangePercent: changePercent,
	}, nil
}

// Apply derives the period metrics of h from snap. A nil snapshot yields zero
// metrics.
func Apply(h models.Holding, snap *models.PriceSnapshot) models.EnrichedHolding {
	enriched := models.EnrichedHolding{Holding: h}
	if snap == nil {
		return enriched
	}

	enriched.PeriodMetrics = models.PeriodMetrics{
		PnlChange:          models.Round2(snap.Change * h.Size),
		PricePctChange:     models.Round2(snap.ChangePercent),
		ProjectedPnlChange: models.Round2(snap.ChangePercent / 100 * (h.Size * snap.PastPrice)),
		Priced:             true,
	}
	return enriched
}

// Enrich prices every distinct asset of holdings once, concurrently, waits for
// all lookups to settle, and applies the snapshots. Assets whose lookup fails
// keep zero metrics and are reported in the returned error slice.
func (e *Enricher) Enrich(ctx context.Context, holdings []models.Holding, hours int) ([]models.EnrichedHolding, []AssetError) {
	hours = ValidHours(hours)
	assets := distinctAssets(holdings)

	results := fanout.Settle(ctx, assets, e.maxConcurrency, func(ctx context.Context, asset string) (models.PriceSnapshot, error) {
		return e.Snapshot(ctx, asset, hours)
	})

	snapshots := make(map[string]*models.PriceSnapshot, len(assets))
	var assetErrors []AssetError
	for i, r := range results {
		if r.Err != nil {
			logger.Warn("Failed to price asset %s over %dh: %v", assets[i], hours, r.Err)
			assetErrors = append(assetErrors, AssetError{Asset: assets[i], Err: r.Err})
			continue
		}
		snap := r.Value
		snapshots[assets[i]] = &snap
	}

	enriched := make([]models.EnrichedHolding, 0, len(holdings))
	for _, h := range holdings {
		enriched = append(enriched, Apply(h, snapshots[h.Asset]))
	}

	logger.Debug("Enrich: assets=%d, priced=%d, failed=%d, hours=%d",
		len(assets), len(snapshots), len(assetErrors), hours)

	return enriched, assetErrors
}

func distinctAssets(holdings []models.Holding) []string {
	seen := make(map[string]bool, len(holdings))
	assets := make([]string, 0, len(holdings))
	for _, h := range holdings {
		if seen[h.Asset] {
			continue
		}
		seen[h.Asset] = true
		assets = append(assets, h.Asset)
	}
	return assets
}
