// Package dashboard runs query cycles: it aggregates wallet holdings, prices
// them over the lookback window, collects trades, and assembles the filtered
// report with summary figures and leaders.
package dashboard

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"

	"github.com/rewired-gh/polyfolio/internal/logger"
	"github.com/rewired-gh/polyfolio/internal/models"
	"github.com/rewired-gh/polyfolio/internal/performance"
	"github.com/rewired-gh/polyfolio/internal/portfolio"
	"github.com/rewired-gh/polyfolio/internal/ranking"
	"github.com/rewired-gh/polyfolio/internal/trades"
)

// Source is everything a query cycle fetches from. *polymarket.Client
// implements it.
type Source interface {
	portfolio.HoldingsSource
	trades.TradesSource
	performance.PriceSource
}

// Options tune a Service. Zero values select defaults.
type Options struct {
	MarketBaseURL     string
	HistoryFidelity   int
	MaxConcurrency    int
	TradeDisplayLimit int
	TopN              int
	CashPlaceholder   float64
	StrictAddresses   bool
	Location          *time.Location
}

// Service computes dashboard results
type Service struct {
	aggregator *portfolio.Aggregator
	enricher   *performance.Enricher
	collector  *trades.Collector
	opts       Options
	now        func() time.Time
}

// NewService creates a new Service reading from src
func NewService(src Source, opts Options) *Service {
	if opts.TradeDisplayLimit <= 0 {
		opts.TradeDisplayLimit = 25
	}
	if opts.TopN <= 0 {
		opts.TopN = ranking.DefaultTopN
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}

	return &Service{
		aggregator: portfolio.NewAggregator(src, opts.MarketBaseURL, opts.MaxConcurrency),
		enricher:   performance.NewEnricher(src, opts.HistoryFidelity, opts.MaxConcurrency),
		collector:  trades.NewCollector(src, opts.MaxConcurrency),
		opts:       opts,
		now:        time.Now,
	}
}

// WithClock replaces the time source of the service and its enricher.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	s.enricher.WithClock(now)
	return s
}

// Compute runs one query cycle. Per-wallet and per-asset fetch failures are
// absorbed and listed in Result.Warnings. An empty wallet list yields an empty
// result without any request. The only error returned is *AggregateError.
func (s *Service) Compute(ctx context.Context, params QueryParameters) (*Result, error) {
	wallets := portfolio.CleanWallets(params.Wallets, s.opts.StrictAddresses)
	hours := performance.ValidHours(params.Hours)
	filter := normalizeFilter(params.WalletFilter)

	result := &Result{
		CycleID:    uuid.New(),
		ComputedAt: s.now(),
		Wallets:    wallets,
		Hours:      hours,
		Filter:     filter,
		Metric:     params.Metric,
		Direction:  params.Direction,
	}

	if len(wallets) == 0 {
		logger.Debug("Cycle %s: no valid wallets, returning empty result", result.CycleID)
		result.Summary = Summarize(nil, s.opts.CashPlaceholder)
		result.WalletOptions = WalletOptions(nil)
		result.fillEmpty()
		return result, nil
	}

	startTime := time.Now()
	logger.Debug("Cycle %s: wallets=%d, hours=%d", result.CycleID, len(wallets), hours)

	var (
		enriched    []models.EnrichedHolding
		rawTrades   []models.RawTrade
		holdingsErr error
		tradesErr   error
	)

	var wg conc.WaitGroup
	wg.Go(func() {
		holdingsErr = guard("holdings", func() error {
			holdings, walletErrs := s.aggregator.Aggregate(ctx, wallets)
			for _, e := range walletErrs {
				result.addWarning("holdings: " + e.Error())
			}
			var assetErrs []performance.AssetError
			enriched, assetErrs = s.enricher.Enrich(ctx, holdings, hours)
			for _, e := range assetErrs {
				result.addWarning("prices: " + e.Error())
			}
			return nil
		})
	})
	var tradeWarnings []string
	wg.Go(func() {
		tradesErr = guard("trades", func() error {
			var walletErrs []portfolio.WalletError
			rawTrades, walletErrs = s.collector.Collect(ctx, wallets, hours)
			for _, e := range walletErrs {
				tradeWarnings = append(tradeWarnings, "trades: "+e.Error())
			}
			return nil
		})
	})
	wg.Wait()

	if holdingsErr != nil {
		return nil, holdingsErr
	}
	if tradesErr != nil {
		return nil, tradesErr
	}
	result.Warnings = append(result.Warnings, tradeWarnings...)

	err := guard("report", func() error {
		for i := range enriched {
			if err := enriched[i].Validate(); err != nil {
				return err
			}
		}

		processed := trades.Process(rawTrades, trades.TitleIndex(enriched), s.opts.Location)
		filtered := FilterHoldings(enriched, filter)

		result.Holdings = filtered
		result.Trades = FilterTrades(processed, filter, s.opts.TradeDisplayLimit)
		result.Summary = Summarize(filtered, s.opts.CashPlaceholder)
		result.Gainers = ranking.Rank(filtered, params.Metric, ranking.Gainers, s.opts.TopN)
		result.Losers = ranking.Rank(filtered, params.Metric, ranking.Losers, s.opts.TopN)
		result.Leaders = result.Gainers
		if params.Direction == ranking.Losers {
			result.Leaders = result.Losers
		}
		result.WalletOptions = WalletOptions(enriched)
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.fillEmpty()
	logger.Info("Cycle %s complete: %d holdings, %d trades, %d warnings (%v)",
		result.CycleID, len(result.Holdings), len(result.Trades), len(result.Warnings), time.Since(startTime))

	return result, nil
}

// fillEmpty replaces nil lists with empty ones so they encode as [].
func (r *Result) fillEmpty() {
	if r.Wallets == nil {
		r.Wallets = []string{}
	}
	if r.Holdings == nil {
		r.Holdings = []models.EnrichedHolding{}
	}
	if r.Trades == nil {
		r.Trades = []models.Trade{}
	}
	if r.Leaders == nil {
		r.Leaders = []models.EnrichedHolding{}
	}
	if r.Gainers == nil {
		r.Gainers = []models.EnrichedHolding{}
	}
	if r.Losers == nil {
		r.Losers = []models.EnrichedHolding{}
	}
}

// addWarning is only called from the holdings goroutine.
func (r *Result) addWarning(w string) {
	r.Warnings = append(r.Warnings, w)
}

// guard runs fn, turning a returned error or a panic into an *AggregateError
// for stage.
func guard(stage string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Dashboard %s stage panicked: %v\n%s", stage, r, debug.Stack())
			err = &AggregateError{Stage: stage, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	if err := fn(); err != nil {
		return &AggregateError{Stage: stage, Err: err}
	}
	return nil
}
