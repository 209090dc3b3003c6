package catalog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alanyoungcy/limitlessbot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLister struct {
	mu      sync.Mutex
	markets []domain.RawMarket
	err     error
}

func (f *fakeLister) ListMarkets(context.Context) ([]domain.RawMarket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.markets, f.err
}

func (f *fakeLister) set(markets []domain.RawMarket, err error) {
	f.mu.Lock()
	f.markets, f.err = markets, err
	f.mu.Unlock()
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func raw(id, title, status string) domain.RawMarket {
	return domain.RawMarket{
		"id":           id,
		"title":        title,
		"status":       status,
		"yes_price":    0.42,
		"no_price":     0.58,
		"target_price": 65000.0,
		"expiry_time":  "2026-01-01T13:00:00Z",
	}
}

func TestRefresh_FilterPipeline(t *testing.T) {
	lister := &fakeLister{markets: []domain.RawMarket{
		raw("closed", "BTC 1H Up/Down", "closed"),
		raw("eth", "ETH 1H Up/Down", "active"),
		raw("4h", "BTC 4H Up/Down", "active"),
		raw("ok", "BTC 1H Up/Down", "active"),
		raw("ok2", "Will Bitcoin be above $65k in 1 hour?", "TRADING"),
		{"title": "BTC 1H no id", "status": "open", "yes_price": 0.5, "target_price": 1.0},
	}}
	c := New(lister, Config{Filter: DefaultFilter()}, nil, discard())

	require.NoError(t, c.Refresh(context.Background()))

	snap := c.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "ok", snap[0].ID)
	assert.Equal(t, "ok2", snap[1].ID)
	assert.Equal(t, 0.42, snap[0].YesPrice)
	assert.Equal(t, 65000.0, snap[0].TargetPrice)
	assert.Equal(t, time.Date(2026, 1, 1, 13, 0, 0, 0, time.UTC), snap[0].ExpiresAt)

	_, ok := c.Get("eth")
	assert.False(t, ok)
	m, ok := c.Get("ok2")
	require.True(t, ok)
	assert.Equal(t, "ok2", m.ID)
}

func TestRefresh_DropsMalformedAndKeepsRest(t *testing.T) {
	bad := raw("bad", "BTC 1H", "active")
	bad["yes_price"] = "not-a-number"
	noTarget := raw("notarget", "BTC 1H", "active")
	delete(noTarget, "target_price")

	lister := &fakeLister{markets: []domain.RawMarket{bad, noTarget, raw("ok", "BTC 1H", "active")}}
	c := New(lister, Config{Filter: DefaultFilter()}, nil, discard())

	require.NoError(t, c.Refresh(context.Background()))
	snap := c.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "ok", snap[0].ID)
}

func TestRefresh_FetchFailureKeepsSnapshot(t *testing.T) {
	lister := &fakeLister{markets: []domain.RawMarket{raw("ok", "BTC 1H", "active")}}
	c := New(lister, Config{Filter: DefaultFilter(), KeepSnapshotOnError: true}, nil, discard())
	require.NoError(t, c.Refresh(context.Background()))

	lister.set(nil, errors.New("boom"))
	err := c.Refresh(context.Background())
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindTransient))
	assert.Equal(t, 1, c.Len())
}

func TestRefresh_FetchFailureEmptiesSnapshot(t *testing.T) {
	lister := &fakeLister{markets: []domain.RawMarket{raw("ok", "BTC 1H", "active")}}
	c := New(lister, Config{Filter: DefaultFilter(), KeepSnapshotOnError: false}, nil, discard())
	require.NoError(t, c.Refresh(context.Background()))

	lister.set(nil, errors.New("boom"))
	require.Error(t, c.Refresh(context.Background()))
	assert.Equal(t, 0, c.Len())
	assert.Empty(t, c.Snapshot())
}

func TestRefresh_DuplicateIDsKeepFirst(t *testing.T) {
	second := raw("dup", "BTC 1H", "active")
	second["yes_price"] = 0.9
	lister := &fakeLister{markets: []domain.RawMarket{raw("dup", "BTC 1H", "active"), second}}
	c := New(lister, Config{Filter: DefaultFilter()}, nil, discard())

	require.NoError(t, c.Refresh(context.Background()))
	snap := c.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, 0.42, snap[0].YesPrice)
}

func TestSnapshot_IsCopy(t *testing.T) {
	lister := &fakeLister{markets: []domain.RawMarket{raw("ok", "BTC 1H", "active")}}
	c := New(lister, Config{Filter: DefaultFilter()}, nil, discard())
	require.NoError(t, c.Refresh(context.Background()))

	snap := c.Snapshot()
	snap[0].YesPrice = 0.99
	assert.Equal(t, 0.42, c.Snapshot()[0].YesPrice)
}

func TestSnapshot_NeverMixed(t *testing.T) {
	a := []domain.RawMarket{raw("a1", "BTC 1H", "active"), raw("a2", "BTC 1H", "active")}
	b := []domain.RawMarket{raw("b1", "BTC 1H", "active"), raw("b2", "BTC 1H", "active"), raw("b3", "BTC 1H", "active")}
	lister := &fakeLister{markets: a}
	c := New(lister, Config{Filter: DefaultFilter()}, nil, discard())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ctx.Err() == nil && i < 500; i++ {
			if i%2 == 0 {
				lister.set(a, nil)
			} else {
				lister.set(b, nil)
			}
			_ = c.Refresh(ctx)
		}
	}()

	for i := 0; i < 500; i++ {
		snap := c.Snapshot()
		if len(snap) == 0 {
			continue
		}
		prefix := snap[0].ID[:1]
		for _, m := range snap {
			assert.Equal(t, prefix, m.ID[:1])
		}
	}
	cancel()
	wg.Wait()
}

func TestCoerce_Aliases(t *testing.T) {
	m, err := Coerce(domain.RawMarket{
		"market_id":    float64(1234),
		"name":         "Bitcoin 1 hour",
		"price_yes":    "0.35",
		"strike_price": "64000.5",
		"end_time":     float64(1767272400000),
	})
	require.NoError(t, err)
	assert.Equal(t, "1234", m.ID)
	assert.Equal(t, "Bitcoin 1 hour", m.Title)
	assert.Equal(t, 0.35, m.YesPrice)
	assert.InDelta(t, 0.65, m.NoPrice, 1e-9)
	assert.Equal(t, 64000.5, m.TargetPrice)
	assert.Equal(t, time.UnixMilli(1767272400000).UTC(), m.ExpiresAt)
}

func TestCoerce_PrefersFirstPresentAlias(t *testing.T) {
	m, err := Coerce(domain.RawMarket{
		"id":        "x",
		"yes_price": "",
		"yes":       0.25,
		"bid_yes":   0.9,
		"no":        0.7,
		"target":    100.0,
	})
	require.NoError(t, err)
	assert.Equal(t, 0.25, m.YesPrice)
	assert.Equal(t, 0.7, m.NoPrice)
	assert.True(t, m.ExpiresAt.IsZero())
}

func TestCoerce_MissingFields(t *testing.T) {
	_, err := Coerce(domain.RawMarket{"title": "BTC 1H"})
	assert.ErrorIs(t, err, errMissingID)

	_, err = Coerce(domain.RawMarket{"id": "x", "target_price": 1.0})
	assert.ErrorIs(t, err, errMissingYes)
}

func TestCoerce_ZeroPriceFallsThroughAliases(t *testing.T) {
	m, err := Coerce(domain.RawMarket{"id": "x", "yes_price": 0.0, "price_yes": "0.4", "target_price": 0, "target": 100.0})
	require.NoError(t, err)
	assert.Equal(t, 0.4, m.YesPrice)
	assert.Equal(t, 100.0, m.TargetPrice)
}

func TestCoerce_RejectsNonPositivePrices(t *testing.T) {
	_, err := Coerce(domain.RawMarket{"id": "x", "yes_price": 0.0, "target_price": 100.0})
	assert.ErrorIs(t, err, errMissingYes)

	_, err = Coerce(domain.RawMarket{"id": "x", "yes_price": -0.2, "target_price": 100.0})
	assert.ErrorIs(t, err, errNonPositive)

	_, err = Coerce(domain.RawMarket{"id": "x", "yes_price": 0.4, "target_price": "0"})
	assert.ErrorIs(t, err, errMissingTarget)

	_, err = Coerce(domain.RawMarket{"id": "x", "yes_price": 0.4, "target_price": -5.0})
	assert.ErrorIs(t, err, errNonPositive)
}

func TestRefresh_DropsZeroYesPrice(t *testing.T) {
	zero := raw("zero", "BTC 1H", "active")
	zero["yes_price"] = 0.0
	lister := &fakeLister{markets: []domain.RawMarket{zero, raw("ok", "BTC 1H", "active")}}
	c := New(lister, Config{Filter: DefaultFilter()}, nil, discard())

	require.NoError(t, c.Refresh(context.Background()))
	_, ok := c.Get("zero")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Len())
}

func TestFilter_Accept(t *testing.T) {
	f := DefaultFilter()
	assert.False(t, f.Accept(raw("x", "BTC 1H Up/Down", "closed")))
	assert.False(t, f.Accept(raw("x", "ETH 1H Up/Down", "active")))
	assert.False(t, f.Accept(raw("x", "BTC 4H Up/Down", "active")))
	assert.True(t, f.Accept(raw("x", "BTC 1H Up/Down", "active")))
	assert.True(t, f.Accept(raw("x", "btc 1h", "Open")))
}
