// Package trades collects wallet trade activity and turns it into
// display-ready rows.
package trades

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rewired-gh/polyfolio/internal/fanout"
	"github.com/rewired-gh/polyfolio/internal/logger"
	"github.com/rewired-gh/polyfolio/internal/models"
	"github.com/rewired-gh/polyfolio/internal/portfolio"
)

// TimestampLayout renders trade times with a 12-hour clock, e.g.
// "03/14/2024, 01:05:09 PM".
const TimestampLayout = "01/02/2006, 03:04:05 PM"

const unknownWallet = "N/A"

// TradesSource fetches the trade activity of one wallet over the last hours.
type TradesSource interface {
	FetchTrades(ctx context.Context, wallet string, hours int) ([]models.RawTrade, error)
}

// Collector fetches trades for a wallet list
type Collector struct {
	source         TradesSource
	maxConcurrency int
}

// NewCollector creates a new Collector
func NewCollector(source TradesSource, maxConcurrency int) *Collector {
	return &Collector{source: source, maxConcurrency: maxConcurrency}
}

// Collect fetches every wallet's trades concurrently and flattens the
// successful results in wallet order. Failed wallets contribute nothing and
// are reported in the returned error slice.
func (c *Collector) Collect(ctx context.Context, wallets []string, hours int) ([]models.RawTrade, []portfolio.WalletError) {
	wallets = portfolio.CleanWallets(wallets, false)
	if len(wallets) == 0 {
		return nil, nil
	}

	results := fanout.Settle(ctx, wallets, c.maxConcurrency, func(ctx context.Context, wallet string) ([]models.RawTrade, error) {
		return c.source.FetchTrades(ctx, wallet, hours)
	})

	var raw []models.RawTrade
	var walletErrors []portfolio.WalletError
	for i, r := range results {
		if r.Err != nil {
			logger.Warn("Failed to fetch trades for wallet %s: %v", wallets[i], r.Err)
			walletErrors = append(walletErrors, portfolio.WalletError{Wallet: wallets[i], Err: r.Err})
			continue
		}
		for _, t := range r.Value {
			if t.Wallet == "" {
				t.Wallet = wallets[i]
			}
			raw = append(raw, t)
		}
	}

	logger.Debug("Collect: wallets=%d, failed=%d, trades=%d", len(wallets), len(walletErrors), len(raw))
	return raw, walletErrors
}

// TitleIndex maps each asset id to its market title.
func TitleIndex(holdings []models.EnrichedHolding) map[string]string {
	index := make(map[string]string, len(holdings))
	for _, h := range holdings {
		index[h.Asset] = h.Title
	}
	return index
}

// TradeID builds a deterministic id from the trade's timestamp, asset, side,
// notional and price.
func TradeID(t models.RawTrade) string {
	return strconv.FormatInt(t.Timestamp, 10) + "-" +
		t.Asset + "-" +
		t.Side + "-" +
		strconv.FormatFloat(t.UsdcSize, 'f', -1, 64) + "-" +
		strconv.FormatFloat(t.Price, 'f', -1, 64)
}

// FormatTimestamp renders unix seconds in loc using TimestampLayout. A nil
// loc means UTC.
func FormatTimestamp(ts int64, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return time.Unix(ts, 0).In(loc).Format(TimestampLayout)
}

// UnknownTitle is the title shown for an asset missing from the title index.
func UnknownTitle(asset string) string {
	short := asset
	if len(short) > 8 {
		short = short[:8]
	}
	return "Unknown Market (" + short + "...)"
}

// Process normalizes raw trades and orders them newest first. Trades with the
// same timestamp keep their input order. Nothing is truncated.
func Process(raw []models.RawTrade, titles map[string]string, loc *time.Location) []models.Trade {
	out := make([]models.Trade, 0, len(raw))
	for _, t := range raw {
		title, ok := titles[t.Asset]
		if !ok || title == "" {
			title = UnknownTitle(t.Asset)
		}
		wallet := t.Wallet
		if wallet == "" {
			wallet = unknownWallet
		}

		out = append(out, models.Trade{
			ID:        TradeID(t),
			Timestamp: FormatTimestamp(t.Timestamp, loc),
			UnixTime:  t.Timestamp,
			Asset:     t.Asset,
			Title:     title,
			Side:      strings.ToLower(t.Side),
			Price:     models.Round4(t.Price),
			UsdcSize:  models.Round2(t.UsdcSize),
			Size:      models.Round4(t.Size),
			Wallet:    wallet,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UnixTime > out[j].UnixTime
	})
	return out
}
