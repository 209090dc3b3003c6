package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/limitlessbot/internal/domain"
)

type recordingSender struct {
	mu     sync.Mutex
	name   string
	titles []string
	err    error
}

func (s *recordingSender) Send(_ context.Context, title, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.titles = append(s.titles, title)
	return s.err
}

func (s *recordingSender) Name() string { return s.name }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNotifier_DefaultFilter(t *testing.T) {
	s := &recordingSender{name: "rec"}
	n := NewNotifier([]Sender{s}, nil, testLogger())
	ctx := context.Background()

	require.NoError(t, n.Notify(ctx, domain.Event{Type: domain.EventPositionOpened, MarketID: "m1", Paper: true}))
	require.NoError(t, n.Notify(ctx, domain.Event{Type: domain.EventCatalogRefresh}))
	require.NoError(t, n.Notify(ctx, domain.Event{Type: domain.EventOrderFailed}))

	assert.Equal(t, []string{"[PAPER] Position opened", "[LIVE] Order failed"}, s.titles)
}

func TestNotifier_ExplicitFilter(t *testing.T) {
	s := &recordingSender{name: "rec"}
	n := NewNotifier([]Sender{s}, []string{" feed_reconnect "}, testLogger())

	assert.True(t, n.Wants(domain.EventFeedReconnect))
	assert.False(t, n.Wants(domain.EventPositionOpened))
}

func TestNotifier_OneSenderFailureDoesNotStopOthers(t *testing.T) {
	bad := &recordingSender{name: "bad", err: errors.New("down")}
	good := &recordingSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, testLogger())

	err := n.Notify(context.Background(), domain.Event{Type: domain.EventPositionClosed})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad: down")
	assert.Len(t, good.titles, 1)
}

func TestFormat(t *testing.T) {
	title, body := Format(domain.Event{
		Type:     domain.EventPositionClosed,
		MarketID: "m9",
		Detail:   map[string]any{"reason": "take_profit", "exit_price": 0.61},
	})
	assert.Equal(t, "[LIVE] Position closed", title)
	assert.Equal(t, "market: m9\nexit_price: 0.61\nreason: take_profit", body)
}

func TestTelegramSender(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewTelegramSender("TOKEN", "42", srv.URL)
	require.NoError(t, s.Send(context.Background(), "Title", "body"))
	assert.Equal(t, "42", got["chat_id"])
	assert.Equal(t, "*Title*\nbody", got["text"])
}

func TestDiscordSender_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := NewDiscordSender(srv.URL).Send(context.Background(), "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}
