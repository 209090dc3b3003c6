package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/limitlessbot/internal/domain"
	"github.com/alanyoungcy/limitlessbot/internal/server/handler"
)

type stubPrice struct {
	price     float64
	has       bool
	connected bool
}

func (s stubPrice) Latest() (float64, bool) { return s.price, s.has }
func (s stubPrice) LastUpdate() time.Time    { return time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC) }
func (s stubPrice) Connected() bool          { return s.connected }
func (s stubPrice) Reconnects() int64        { return 3 }

type stubMarkets struct{ markets []domain.Market }

func (s stubMarkets) Snapshot() []domain.Market { return s.markets }
func (s stubMarkets) Len() int                  { return len(s.markets) }
func (s stubMarkets) UpdatedAt() time.Time      { return time.Time{} }
func (s stubMarkets) Get(id string) (domain.Market, bool) {
	for _, m := range s.markets {
		if m.ID == id {
			return m, true
		}
	}
	return domain.Market{}, false
}

type stubLedger struct{}

func (stubLedger) Positions() []domain.Position {
	return []domain.Position{{MarketID: "m1", Title: "BTC above 100k", EntryPrice: 0.5, Size: 20}}
}

func (stubLedger) History() []domain.ClosedPosition {
	return []domain.ClosedPosition{
		{Position: domain.Position{MarketID: "m0", EntryPrice: 0.5, Size: 10}, ExitPrice: 0.6, Reason: domain.ExitReasonTakeProfit, RealizedPnL: 2},
	}
}

func (stubLedger) Stats() domain.SessionStats {
	return domain.SessionStats{Open: 1, Opened: 2, Closed: 1, RealizedPnL: 2}
}

type stubCycles struct{}

func (stubCycles) Cycles() int64        { return 7 }
func (stubCycles) LastCycle() time.Time { return time.Now() }

func newTestServer(token string) *Server {
	price := stubPrice{price: 97000, has: true, connected: true}
	markets := stubMarkets{markets: []domain.Market{
		{ID: "m1", Title: "BTC above 100k", YesPrice: 0.4, NoPrice: 0.6, TargetPrice: 100000},
		{ID: "m2", Title: "BTC above 95k", YesPrice: 0.7, NoPrice: 0.3, TargetPrice: 95000},
	}}
	ledger := stubLedger{}
	return NewServer(Config{AuthToken: token}, Handlers{
		Health: handler.NewHealthHandler(price),
		Status: handler.NewStatusHandler(handler.StatusDeps{
			Mode: "paper", Session: "s1", StartedAt: time.Now(),
			Price: price, Markets: markets, Positions: ledger, Cycles: stubCycles{},
		}),
		Markets:   handler.NewMarketHandler(markets),
		Positions: handler.NewPositionHandler(ledger),
	}, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func get(t *testing.T, s *Server, path, token string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	var body map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec.Code, body
}

func TestHealth(t *testing.T) {
	code, body := get(t, newTestServer("secret"), "/api/health", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
}

func TestStatus_RequiresToken(t *testing.T) {
	s := newTestServer("secret")
	code, _ := get(t, s, "/api/status", "")
	assert.Equal(t, http.StatusUnauthorized, code)

	code, body := get(t, s, "/api/status", "secret")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "paper", body["mode"])
	feed := body["feed"].(map[string]any)
	assert.Equal(t, 97000.0, feed["price"])
	assert.Equal(t, true, feed["connected"])
	stats := body["session_stats"].(map[string]any)
	assert.Equal(t, 2.0, stats["opened"])
	assert.Equal(t, 2.0, stats["realized_pnl"])
	assert.Equal(t, 7.0, body["engine"].(map[string]any)["cycles"])
	assert.Nil(t, body["catalog"].(map[string]any)["updated_at"])
}

func TestMarkets(t *testing.T) {
	s := newTestServer("")
	code, body := get(t, s, "/api/markets?limit=1&offset=1", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 2.0, body["total"])
	markets := body["markets"].([]any)
	require.Len(t, markets, 1)
	assert.Equal(t, "m2", markets[0].(map[string]any)["id"])

	code, body = get(t, s, "/api/markets/m1", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 100000.0, body["target_price"])

	code, _ = get(t, s, "/api/markets/missing", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestPositions(t *testing.T) {
	s := newTestServer("")
	code, body := get(t, s, "/api/positions", "")
	require.Equal(t, http.StatusOK, code)
	positions := body["positions"].([]any)
	require.Len(t, positions, 1)
	assert.Equal(t, 40.0, positions[0].(map[string]any)["shares"])

	code, body = get(t, s, "/api/positions/history", "")
	require.Equal(t, http.StatusOK, code)
	closed := body["positions"].([]any)
	require.Len(t, closed, 1)
	assert.Equal(t, "take_profit", closed[0].(map[string]any)["reason"])
	assert.Equal(t, "m0", closed[0].(map[string]any)["market_id"])
}
