package handler

import (
	"net/http"
)

// PositionHandler serves open and closed positions from the ledger.
type PositionHandler struct {
	positions PositionView
}

// NewPositionHandler creates a PositionHandler.
func NewPositionHandler(positions PositionView) *PositionHandler {
	return &PositionHandler{positions: positions}
}

// ListPositions returns every open position.
// GET /api/positions
func (h *PositionHandler) ListPositions(w http.ResponseWriter, _ *http.Request) {
	open := h.positions.Positions()
	writeJSON(w, http.StatusOK, map[string]any{
		"total":     len(open),
		"positions": mapSlice(open, toPositionJSON),
	})
}

// ListHistory returns a page of closed positions, oldest first.
// GET /api/positions/history?limit=&offset=
func (h *PositionHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	closed := h.positions.History()
	writeJSON(w, http.StatusOK, map[string]any{
		"total":     len(closed),
		"positions": mapSlice(paginate(closed, parsePage(r)), toClosedJSON),
	})
}
