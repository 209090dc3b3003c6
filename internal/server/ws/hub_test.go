package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/limitlessbot/internal/domain"
)

func startHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub("s1", slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = hub.Run(ctx) }()
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/events" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestHub_BroadcastFiltersByType(t *testing.T) {
	hub, srv := startHub(t)

	all := dial(t, srv, "")
	opened := dial(t, srv, "?types=position_opened")

	assert.Equal(t, "hello", readJSON(t, all)["type"])
	assert.Equal(t, "hello", readJSON(t, opened)["type"])
	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, time.Second, 5*time.Millisecond)

	hub.Broadcast(domain.Event{Type: domain.EventCatalogRefresh, Session: "s1"})
	hub.Broadcast(domain.Event{Type: domain.EventPositionOpened, Session: "s1", MarketID: "m1"})

	assert.Equal(t, "catalog_refreshed", readJSON(t, all)["type"])
	assert.Equal(t, "position_opened", readJSON(t, all)["type"])

	got := readJSON(t, opened)
	assert.Equal(t, "position_opened", got["type"])
	assert.Equal(t, "m1", got["market_id"])
}

func TestHub_Unregister(t *testing.T) {
	hub, srv := startHub(t)
	conn := dial(t, srv, "")
	readJSON(t, conn)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestClient_Filters(t *testing.T) {
	c := newClient(nil, nil)
	assert.True(t, c.wants(domain.EventPositionOpened))

	c.removeTypes([]string{"catalog_refreshed"})
	assert.False(t, c.wants(domain.EventCatalogRefresh))
	assert.True(t, c.wants(domain.EventPositionOpened))

	c.setTypes([]string{"position_opened", " position_closed "})
	assert.True(t, c.wants(domain.EventPositionClosed))
	assert.False(t, c.wants(domain.EventCatalogRefresh))

	c.removeTypes([]string{"position_opened", "position_closed"})
	assert.False(t, c.wants(domain.EventPositionOpened))
	assert.False(t, c.wants(domain.EventPositionClosed))
	assert.False(t, c.wants(domain.EventCatalogRefresh))

	c.setTypes(nil)
	assert.True(t, c.wants(domain.EventCatalogRefresh))
}

func TestHub_ConnectAfterStopDoesNotPanic(t *testing.T) {
	hub := NewHub("s1", slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		_ = hub.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()
	conn := dial(t, srv, "")
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
	assert.Zero(t, hub.ClientCount())
}
