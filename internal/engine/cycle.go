package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/limitlessbot/internal/catalog"
	"github.com/alanyoungcy/limitlessbot/internal/domain"
	"github.com/alanyoungcy/limitlessbot/internal/executor"
	"github.com/alanyoungcy/limitlessbot/internal/strategy"
)

// CycleReport describes one decision cycle.
type CycleReport struct {
	Price      float64
	HasPrice   bool
	Markets    int
	Candidates []domain.Candidate
	Entries    executor.Report
	Exits      executor.Report
	Failures   []error
}

// RunCycle reads the feed, catalog and balance, then runs entries followed
// by exits. Without a reference price it does nothing and makes no venue
// calls. Failures are logged and collected in the report.
func (e *Engine) RunCycle(ctx context.Context) CycleReport {
	defer func() {
		e.cycles.Add(1)
		e.lastCycle.Store(time.Now().UnixNano())
	}()

	var rep CycleReport
	price, ok := e.feed.Latest()
	if !ok {
		e.logger.DebugContext(ctx, "engine: no reference price yet")
		return rep
	}
	rep.Price, rep.HasPrice = price, true

	markets := e.catalog.Snapshot()
	rep.Markets = len(markets)
	edges := strategy.Edges(markets, price)

	if e.anyQualifies(markets, edges) {
		balance, err := e.venue.GetBalance(ctx)
		if err != nil {
			rep.Failures = append(rep.Failures, domain.Transient("engine: get balance", err))
		} else {
			rep.Candidates = e.scanner.Scan(markets, edges, balance, e.ledger.Has)
			if len(rep.Candidates) > 0 {
				e.logger.InfoContext(ctx, "engine: entry candidates",
					slog.Float64("price", price),
					slog.Float64("balance", balance),
					slog.Int("count", len(rep.Candidates)),
				)
			}
			rep.Entries = e.exec.ExecuteEntries(ctx, rep.Candidates)
			rep.Failures = append(rep.Failures, rep.Entries.Failures...)
		}
	}

	orphans, orphanFailures := e.orphans(ctx, price, edges)
	rep.Failures = append(rep.Failures, orphanFailures...)
	rep.Exits = e.exec.ExecuteExits(ctx, append(markets, orphans...), edges)
	rep.Failures = append(rep.Failures, rep.Exits.Failures...)

	for _, err := range rep.Failures {
		logFailure(ctx, e.logger, "engine: cycle failure", err)
	}
	return rep
}

// anyQualifies reports whether a flat market clears the entry threshold, so
// the balance is only fetched when an entry is possible.
func (e *Engine) anyQualifies(markets []domain.Market, edges map[string]float64) bool {
	for _, m := range markets {
		if e.scanner.Qualifies(edges[m.ID]) && !e.ledger.Has(m.ID) {
			return true
		}
	}
	return false
}

// orphans fetches markets that still hold an open position but have left
// the catalog snapshot, so their exits keep being evaluated. Lookups run at
// most once per OrphanInterval. edges is extended in place.
func (e *Engine) orphans(ctx context.Context, price float64, edges map[string]float64) ([]domain.Market, []error) {
	var missing []string
	for _, p := range e.ledger.Positions() {
		if _, ok := e.catalog.Get(p.MarketID); !ok {
			missing = append(missing, p.MarketID)
		}
	}
	if len(missing) == 0 {
		return nil, nil
	}

	e.orphanMu.Lock()
	due := time.Since(e.lastOrphan) >= e.cfg.OrphanInterval
	if due {
		e.lastOrphan = time.Now()
	}
	e.orphanMu.Unlock()
	if !due {
		return nil, nil
	}

	var (
		out  []domain.Market
		errs []error
	)
	for _, id := range missing {
		raw, err := e.venue.GetMarket(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				e.logger.WarnContext(ctx, "engine: open position market not found", slog.String("market_id", id))
				continue
			}
			errs = append(errs, domain.Transient("engine: get market", err))
			continue
		}
		m, err := catalog.Coerce(raw)
		if err != nil {
			errs = append(errs, domain.Malformed("engine: coerce market", err))
			continue
		}
		if m.ID != id {
			errs = append(errs, domain.Malformed("engine: coerce market", fmt.Errorf("asked for %s, got %s", id, m.ID)))
			continue
		}
		edges[m.ID] = strategy.Edge(m, price)
		out = append(out, m)
	}
	return out, errs
}
