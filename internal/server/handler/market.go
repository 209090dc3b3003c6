package handler

import (
	"net/http"
)

// MarketHandler serves the current catalog snapshot.
type MarketHandler struct {
	markets MarketView
}

// NewMarketHandler creates a MarketHandler.
func NewMarketHandler(markets MarketView) *MarketHandler {
	return &MarketHandler{markets: markets}
}

// ListMarkets returns a page of the snapshot in catalog order.
// GET /api/markets?limit=&offset=
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	all := h.markets.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"total":   len(all),
		"markets": mapSlice(paginate(all, parsePage(r)), toMarketJSON),
	})
}

// GetMarket returns one market from the snapshot.
// GET /api/markets/{id}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	m, ok := h.markets.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "market not found")
		return
	}
	writeJSON(w, http.StatusOK, toMarketJSON(m))
}
