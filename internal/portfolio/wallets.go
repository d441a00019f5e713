package portfolio

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// addressPrefix is the prefix every accepted wallet address carries.
const addressPrefix = "0x"

// ParseWallets splits a comma-separated address list and cleans it with
// CleanWallets.
func ParseWallets(input string, strict bool) []string {
	return CleanWallets(strings.Split(input, ","), strict)
}

// CleanWallets trims every entry, drops empty entries and entries without the
// 0x prefix, and removes case-insensitive duplicates keeping the first
// spelling. In strict mode an entry must also be a 20-byte hex address.
func CleanWallets(wallets []string, strict bool) []string {
	out := make([]string, 0, len(wallets))
	seen := make(map[string]bool, len(wallets))

	for _, w := range wallets {
		w = strings.TrimSpace(w)
		if w == "" || !strings.HasPrefix(w, addressPrefix) {
			continue
		}
		if strict && !common.IsHexAddress(w) {
			continue
		}
		key := strings.ToLower(w)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, w)
	}
	return out
}

// ShortLabel abbreviates a wallet address as 0x1234...abcd. Values too short
// to abbreviate are returned unchanged.
func ShortLabel(wallet string) string {
	if len(wallet) <= 10 {
		return wallet
	}
	return wallet[:6] + "..." + wallet[len(wallet)-4:]
}
