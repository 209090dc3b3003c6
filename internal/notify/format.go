package notify

import (
	"fmt"
	"sort"
	"strings"

	"github.com/alanyoungcy/limitlessbot/internal/domain"
)

// Format renders an event as a title and a plain-text body.
func Format(evt domain.Event) (string, string) {
	mode := "LIVE"
	if evt.Paper {
		mode = "PAPER"
	}

	var title string
	switch evt.Type {
	case domain.EventPositionOpened:
		title = "Position opened"
	case domain.EventPositionClosed:
		title = "Position closed"
	case domain.EventOrderFailed:
		title = "Order failed"
	default:
		title = string(evt.Type)
	}
	title = fmt.Sprintf("[%s] %s", mode, title)

	var b strings.Builder
	if evt.MarketID != "" {
		fmt.Fprintf(&b, "market: %s\n", evt.MarketID)
	}
	keys := make([]string, 0, len(evt.Detail))
	for k := range evt.Detail {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %v\n", k, evt.Detail[k])
	}
	return title, strings.TrimRight(b.String(), "\n")
}
