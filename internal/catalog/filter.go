package catalog

import (
	"strings"

	"github.com/alanyoungcy/limitlessbot/internal/domain"
)

// Filter selects the markets the bot trades: an allowed status, a title
// naming the reference asset and a title naming the contract duration.
// All comparisons are case-insensitive.
type Filter struct {
	Statuses         []string
	AssetKeywords    []string
	DurationKeywords []string
}

// DefaultFilter matches hourly BTC markets that are still trading.
func DefaultFilter() Filter {
	return Filter{
		Statuses:         []string{"active", "open", "trading"},
		AssetKeywords:    []string{"btc", "bitcoin"},
		DurationKeywords: []string{"1h", "1 hour"},
	}
}

// Accept reports whether raw passes the status and title tests.
func (f Filter) Accept(raw domain.RawMarket) bool {
	status, _ := stringField(raw, []string{"status"})
	if !f.statusAllowed(status) {
		return false
	}
	title, _ := stringField(raw, titleKeys)
	title = strings.ToLower(title)
	return containsAny(title, f.AssetKeywords) && containsAny(title, f.DurationKeywords)
}

func (f Filter) statusAllowed(status string) bool {
	status = strings.ToLower(strings.TrimSpace(status))
	for _, s := range f.Statuses {
		if status == strings.ToLower(s) {
			return true
		}
	}
	return false
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if k != "" && strings.Contains(s, strings.ToLower(k)) {
			return true
		}
	}
	return false
}
