package portfolio

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rewired-gh/polyfolio/internal/models"
)

// DefaultMarketBaseURL prefixes an event slug to form a market link.
const DefaultMarketBaseURL = "https://polymarket.com/event/"

// NewHolding derives the baseline PnL fields of one wallet position.
// Realized and unrealized PnL are rounded to cents before they are added, so
// total always equals realized + unrealized exactly.
func NewHolding(raw models.RawHolding, marketBaseURL string) models.Holding {
	if marketBaseURL == "" {
		marketBaseURL = DefaultMarketBaseURL
	}

	realized := models.Round2(raw.RealizedPnl)
	unrealized := models.Round2(raw.CurrentValue - raw.InitialValue)
	total := models.Round2(realized + unrealized)

	var pctReturn float64
	if raw.InitialValue != 0 {
		pctReturn = models.Round2(total / raw.InitialValue * 100)
	}

	icon := raw.Icon
	if icon == "" {
		icon = models.FallbackIconURL
	}

	return models.Holding{
		Asset:         raw.Asset,
		Title:         raw.Title,
		ConditionID:   raw.ConditionID,
		CurPrice:      models.Round4(raw.CurPrice),
		InitialValue:  models.Round(raw.InitialValue, 0),
		CurrentValue:  models.Round2(raw.CurrentValue),
		RealizedPnl:   realized,
		UnrealizedPnl: unrealized,
		TotalPnl:      total,
		PctReturn:     pctReturn,
		MarketLink:    strings.TrimRight(marketBaseURL, "/") + "/" + raw.EventSlug,
		Icon:          icon,
		Size:          raw.Size,
		Wallet:        raw.Wallet,
		Wallets:       []string{raw.Wallet},
	}
}

// Combine merges holdings that share an asset id. Numeric fields are summed;
// descriptive fields come from the first holding seen for the asset. A holding
// fed by more than one distinct wallet is owned by models.CombinedWallet.
// Output keeps the order in which assets were first seen.
func Combine(holdings []models.Holding) []models.Holding {
	index := make(map[string]int, len(holdings))
	acc := make([]*accumulator, 0, len(holdings))

	for _, h := range holdings {
		i, ok := index[h.Asset]
		if !ok {
			index[h.Asset] = len(acc)
			acc = append(acc, newAccumulator(h))
			continue
		}
		acc[i].add(h)
	}

	out := make([]models.Holding, 0, len(acc))
	for _, a := range acc {
		out = append(out, a.holding())
	}
	return out
}

type accumulator struct {
	first      models.Holding
	wallets    []string
	size       decimal.Decimal
	initial    decimal.Decimal
	current    decimal.Decimal
	realized   decimal.Decimal
	unrealized decimal.Decimal
	total      decimal.Decimal
}

func newAccumulator(h models.Holding) *accumulator {
	a := &accumulator{first: h}
	a.add(h)
	return a
}

func (a *accumulator) add(h models.Holding) {
	a.size = a.size.Add(decimal.NewFromFloat(h.Size))
	a.initial = a.initial.Add(decimal.NewFromFloat(h.InitialValue))
	a.current = a.current.Add(decimal.NewFromFloat(h.CurrentValue))
	a.realized = a.realized.Add(decimal.NewFromFloat(h.RealizedPnl))
	a.unrealized = a.unrealized.Add(decimal.NewFromFloat(h.UnrealizedPnl))
	a.total = a.total.Add(decimal.NewFromFloat(h.TotalPnl))

	for _, w := range walletsOf(h) {
		if !contains(a.wallets, w) {
			a.wallets = append(a.wallets, w)
		}
	}
}

func (a *accumulator) holding() models.Holding {
	h := a.first
	h.Size = a.size.InexactFloat64()
	h.InitialValue = a.initial.InexactFloat64()
	h.CurrentValue = a.current.InexactFloat64()
	h.RealizedPnl = a.realized.InexactFloat64()
	h.UnrealizedPnl = a.unrealized.InexactFloat64()
	h.TotalPnl = a.total.InexactFloat64()
	h.Wallets = a.wallets

	if len(a.wallets) > 1 {
		h.Wallet = models.CombinedWallet
	}
	// A zero combined initial value keeps the first holding's return
	if !a.initial.IsZero() {
		h.PctReturn = models.Round2(h.TotalPnl / h.InitialValue * 100)
	}
	return h
}

func walletsOf(h models.Holding) []string {
	if len(h.Wallets) > 0 {
		return h.Wallets
	}
	if h.Wallet == "" {
		return nil
	}
	return []string{h.Wallet}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
