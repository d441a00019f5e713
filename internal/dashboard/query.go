package dashboard

import (
	"fmt"
	"strings"

	"github.com/rewired-gh/polyfolio/internal/performance"
	"github.com/rewired-gh/polyfolio/internal/portfolio"
	"github.com/rewired-gh/polyfolio/internal/ranking"
)

// AllWallets is the wallet filter value that selects every holding.
const AllWallets = "all"

// QueryParameters fully describe one query cycle.
type QueryParameters struct {
	Wallets      []string          `json:"wallets"`
	Hours        int               `json:"hours"`
	WalletFilter string            `json:"wallet_filter"`
	Metric       ranking.Metric    `json:"metric"`
	Direction    ranking.Direction `json:"direction"`
}

// ParseQuery builds QueryParameters from their text forms. Wallets are a
// comma-separated list; an invalid hours value selects the default window.
// Unknown metric or direction names are errors.
func ParseQuery(wallets, hours, walletFilter, metric, direction string, strict bool) (QueryParameters, error) {
	m, err := ranking.ParseMetric(metric)
	if err != nil {
		return QueryParameters{}, fmt.Errorf("invalid query: %w", err)
	}
	d, err := ranking.ParseDirection(direction)
	if err != nil {
		return QueryParameters{}, fmt.Errorf("invalid query: %w", err)
	}

	return QueryParameters{
		Wallets:      portfolio.ParseWallets(wallets, strict),
		Hours:        performance.NormalizeHours(hours),
		WalletFilter: normalizeFilter(walletFilter),
		Metric:       m,
		Direction:    d,
	}, nil
}

func normalizeFilter(f string) string {
	f = strings.TrimSpace(f)
	if f == "" || strings.EqualFold(f, AllWallets) {
		return AllWallets
	}
	return f
}
