package feed

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alanyoungcy/limitlessbot/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePrice(t *testing.T) {
	p, ok, err := ParsePrice([]byte(`{"e":"trade","s":"BTCUSDT","p":"65012.50","q":"0.01"}`))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 65012.50, p)

	p, ok, err = ParsePrice([]byte(`{"price": 64000.25}`))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 64000.25, p)

	p, ok, err = ParsePrice([]byte(`{"p":"","price":"1.5"}`))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1.5, p)
}

func TestParsePrice_Unrecognized(t *testing.T) {
	_, ok, err := ParsePrice([]byte(`{"result":null,"id":1}`))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestParsePrice_Malformed(t *testing.T) {
	for _, msg := range []string{`not json`, `{"p":"abc"}`, `{"p":"-1"}`, `{"price":0}`, `{"p":true}`} {
		_, ok, err := ParsePrice([]byte(msg))
		assert.Error(t, err, msg)
		assert.False(t, ok, msg)
	}
}

// streamServer upgrades each connection and writes the scripted messages,
// then either holds the connection open or drops it.
type streamServer struct {
	t        *testing.T
	messages []string
	hold     bool
	conns    atomic.Int32
}

func (s *streamServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	up := websocket.Upgrader{}
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	s.conns.Add(1)

	for _, m := range s.messages {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(m)); err != nil {
			return
		}
	}
	if !s.hold {
		return
	}
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func testConfig(url string) Config {
	return Config{
		URL:              url,
		Symbol:           "BTCUSDT",
		ReconnectBackoff: 20 * time.Millisecond,
		PingInterval:     time.Second,
		PongTimeout:      time.Second,
	}
}

type recordingMirror struct {
	mu     sync.Mutex
	prices []float64
}

func (m *recordingMirror) SetPrice(_ context.Context, _ string, price float64, _ time.Time) error {
	m.mu.Lock()
	m.prices = append(m.prices, price)
	m.mu.Unlock()
	return nil
}

func (m *recordingMirror) GetPrice(context.Context, string) (float64, time.Time, error) {
	return 0, time.Time{}, domain.ErrNotFound
}

func TestPriceFeed_ReceivesPriceAndSkipsMalformed(t *testing.T) {
	srv := httptest.NewServer(&streamServer{t: t, hold: true, messages: []string{
		`{"p":"65000.10"}`,
		`garbage`,
		`{"p":"65001.20"}`,
	}})
	defer srv.Close()

	mirror := &recordingMirror{}
	f := New(testConfig(wsURL(srv)), mirror, nil, discard())
	_, ok := f.Latest()
	assert.False(t, ok)

	errc := make(chan error, 1)
	go func() { errc <- f.Run(context.Background()) }()

	require.Eventually(t, func() bool {
		p, ok := f.Latest()
		return ok && p == 65001.20
	}, 2*time.Second, 5*time.Millisecond)
	assert.True(t, f.Connected())
	assert.Equal(t, int64(0), f.Reconnects())

	f.Stop()
	f.Stop()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Stop")
	}

	mirror.mu.Lock()
	defer mirror.mu.Unlock()
	require.NotEmpty(t, mirror.prices)
	assert.Equal(t, 65000.10, mirror.prices[0])
}

func TestPriceFeed_ReconnectsAfterDrop(t *testing.T) {
	ss := &streamServer{t: t, messages: []string{`{"price":"64000"}`}}
	srv := httptest.NewServer(ss)
	defer srv.Close()

	f := New(testConfig(wsURL(srv)), nil, nil, discard())
	errc := make(chan error, 1)
	go func() { errc <- f.Run(context.Background()) }()

	require.Eventually(t, func() bool { return ss.conns.Load() >= 3 }, 3*time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, f.Reconnects(), int64(2))
	p, ok := f.Latest()
	assert.True(t, ok)
	assert.Equal(t, 64000.0, p)

	f.Stop()
	require.NoError(t, <-errc)
}

func TestPriceFeed_DialFailureRetriesUntilCancelled(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := wsURL(srv)
	srv.Close()

	f := New(testConfig(url), nil, nil, discard())
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- f.Run(ctx) }()

	require.Eventually(t, func() bool { return f.Reconnects() >= 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	_, ok := f.Latest()
	assert.False(t, ok)
}

func TestPriceFeed_StopBeforeRun(t *testing.T) {
	f := New(testConfig("ws://127.0.0.1:1"), nil, nil, discard())
	f.Stop()
	assert.NoError(t, f.Run(context.Background()))
}

func TestHandleMessage_MalformedIsTagged(t *testing.T) {
	f := New(testConfig(""), nil, nil, discard())
	err := f.handleMessage(context.Background(), []byte(`{"p":"x"}`))
	assert.True(t, domain.IsKind(err, domain.KindMalformed))
	assert.NoError(t, f.handleMessage(context.Background(), []byte(`{"e":"ping"}`)))
}
