// Package executor turns entry and exit decisions into orders and is the
// only writer of the position ledger.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/limitlessbot/internal/domain"
	"github.com/alanyoungcy/limitlessbot/internal/ledger"
)

// OrderPlacer is the part of the venue that submits orders.
type OrderPlacer interface {
	SubmitBuy(ctx context.Context, marketID string, amount float64) (domain.OrderResult, error)
	SubmitSell(ctx context.Context, marketID string, amount float64) (domain.OrderResult, error)
}

// Report summarises one ExecuteEntries or ExecuteExits call.
type Report struct {
	Opened   []domain.Position
	Closed   []domain.ClosedPosition
	Failures []error
}

// Coordinator executes decisions in paper or live mode. In both modes the
// ledger is only changed after the order is confirmed.
type Coordinator struct {
	orders OrderPlacer
	ledger *ledger.Ledger
	sink   domain.EventSink
	paper  bool
	logger *slog.Logger
}

// New creates a Coordinator. orders is unused and may be nil in paper mode.
func New(orders OrderPlacer, l *ledger.Ledger, sink domain.EventSink, paper bool, logger *slog.Logger) *Coordinator {
	if sink == nil {
		sink = domain.NopSink{}
	}
	return &Coordinator{
		orders: orders,
		ledger: l,
		sink:   sink,
		paper:  paper,
		logger: logger.With(slog.String("component", "executor"), slog.Bool("paper", paper)),
	}
}

// Paper reports whether orders are simulated.
func (c *Coordinator) Paper() bool { return c.paper }

// ExecuteEntries opens a position for each candidate whose market is flat.
func (c *Coordinator) ExecuteEntries(ctx context.Context, candidates []domain.Candidate) Report {
	var rep Report
	for _, cand := range candidates {
		m := cand.Market
		if c.ledger.Has(m.ID) {
			continue
		}
		if !(m.YesPrice > 0) || !(cand.Size > 0) {
			rep.Failures = append(rep.Failures, domain.Malformed("executor: entry",
				fmt.Errorf("market %s: yes price %v size %v", m.ID, m.YesPrice, cand.Size)))
			continue
		}

		c.logger.InfoContext(ctx, "executor: entry signal",
			slog.String("market_id", m.ID),
			slog.String("title", m.Title),
			slog.Float64("edge", cand.Edge),
			slog.Float64("size", cand.Size),
			slog.Float64("yes_price", m.YesPrice),
		)

		entryPrice := m.YesPrice
		clientID := uuid.NewString()
		if c.paper {
			c.logger.InfoContext(ctx, "executor: [paper] simulating buy",
				slog.String("market_id", m.ID),
				slog.Float64("size", cand.Size),
			)
		} else {
			res, err := c.place(ctx, domain.OrderSideBuy, m.ID, cand.Size)
			if err != nil {
				rep.Failures = append(rep.Failures, err)
				continue
			}
			if res.FilledPrice > 0 {
				entryPrice = res.FilledPrice
			}
			clientID = res.ClientID
		}

		pos, ok := c.ledger.Open(m, cand.Size, entryPrice, clientID)
		if !ok {
			if c.paper || c.ledger.Has(m.ID) {
				rep.Failures = append(rep.Failures,
					domain.Invariant("executor: open", fmt.Errorf("market %s not opened", m.ID)))
				continue
			}
			// A live buy went through but the ledger has no position for it.
			err := fmt.Errorf("executor: open: market %s bought (client %s) but not recorded", m.ID, clientID)
			c.logger.ErrorContext(ctx, "executor: filled order not recorded",
				slog.String("market_id", m.ID),
				slog.String("client_id", clientID),
				slog.Float64("size", cand.Size),
				slog.Float64("entry_price", entryPrice),
			)
			rep.Failures = append(rep.Failures, err)
			continue
		}
		rep.Opened = append(rep.Opened, pos)
		c.emit(ctx, domain.EventPositionOpened, m.ID, map[string]any{
			"title":       m.Title,
			"edge":        cand.Edge,
			"size":        pos.Size,
			"entry_price": pos.EntryPrice,
			"client_id":   pos.ClientID,
		})
	}
	return rep
}

// ExecuteExits evaluates every open position among markets and closes those
// whose exit rule fires. A market missing from edges is treated as having
// zero edge.
func (c *Coordinator) ExecuteExits(ctx context.Context, markets []domain.Market, edges map[string]float64) Report {
	var rep Report
	for _, m := range markets {
		if !c.ledger.Has(m.ID) {
			continue
		}
		edge := edges[m.ID]
		pos, reason, exit := c.ledger.EvaluateExit(m, m.YesPrice, edge)
		if !exit {
			continue
		}

		c.logger.InfoContext(ctx, "executor: exit signal",
			slog.String("market_id", m.ID),
			slog.String("reason", string(reason)),
			slog.Float64("size", pos.Size),
			slog.Float64("entry_price", pos.EntryPrice),
			slog.Float64("yes_price", m.YesPrice),
			slog.Float64("edge", edge),
		)

		exitPrice := m.YesPrice
		if c.paper {
			c.logger.InfoContext(ctx, "executor: [paper] simulating sell",
				slog.String("market_id", m.ID),
				slog.Float64("size", pos.Size),
			)
		} else {
			res, err := c.place(ctx, domain.OrderSideSell, m.ID, pos.Size)
			if err != nil {
				rep.Failures = append(rep.Failures, err)
				continue
			}
			if res.FilledPrice > 0 {
				exitPrice = res.FilledPrice
			}
		}

		closed, ok := c.ledger.Close(m.ID, exitPrice, reason)
		if !ok {
			rep.Failures = append(rep.Failures,
				domain.Invariant("executor: close", fmt.Errorf("market %s already flat", m.ID)))
			continue
		}
		rep.Closed = append(rep.Closed, closed)
		c.emit(ctx, domain.EventPositionClosed, m.ID, map[string]any{
			"reason":       string(reason),
			"size":         closed.Size,
			"entry_price":  closed.EntryPrice,
			"exit_price":   closed.ExitPrice,
			"realized_pnl": closed.RealizedPnL,
			"held_seconds": closed.ExitTime.Sub(closed.EntryTime).Seconds(),
		})
	}
	return rep
}

// place submits one live order. Any error or unsuccessful result is
// returned as a transient failure and leaves the ledger untouched.
func (c *Coordinator) place(ctx context.Context, side domain.OrderSide, marketID string, amount float64) (domain.OrderResult, error) {
	submit := c.orders.SubmitBuy
	if side == domain.OrderSideSell {
		submit = c.orders.SubmitSell
	}

	start := time.Now()
	res, err := submit(ctx, marketID, amount)
	if err == nil && !res.Success {
		err = fmt.Errorf("order %s %s: %s", res.OrderID, res.Status, res.Message)
	}
	if err != nil {
		c.logger.ErrorContext(ctx, "executor: live order failed",
			slog.String("market_id", marketID),
			slog.String("side", string(side)),
			slog.Float64("amount", amount),
			slog.String("error", err.Error()),
		)
		c.emit(ctx, domain.EventOrderFailed, marketID, map[string]any{
			"side":   string(side),
			"amount": amount,
			"error":  err.Error(),
		})
		return domain.OrderResult{}, domain.Transient("executor: "+string(side), err)
	}

	c.logger.InfoContext(ctx, "executor: live order executed",
		slog.String("market_id", marketID),
		slog.String("side", string(side)),
		slog.String("order_id", res.OrderID),
		slog.String("status", string(res.Status)),
		slog.Float64("filled_price", res.FilledPrice),
		slog.Duration("latency", time.Since(start)),
	)
	c.emit(ctx, domain.EventOrderSubmitted, marketID, map[string]any{
		"side":         string(side),
		"amount":       amount,
		"order_id":     res.OrderID,
		"client_id":    res.ClientID,
		"status":       string(res.Status),
		"filled_price": res.FilledPrice,
	})
	return res, nil
}

func (c *Coordinator) emit(ctx context.Context, typ domain.EventType, marketID string, detail map[string]any) {
	evt := domain.Event{
		Type:      typ,
		MarketID:  marketID,
		Paper:     c.paper,
		Detail:    detail,
		Timestamp: time.Now().UTC(),
	}
	if err := c.sink.Emit(ctx, evt); err != nil {
		c.logger.WarnContext(ctx, "executor: emit event failed",
			slog.String("event", string(typ)),
			slog.String("error", err.Error()),
		)
	}
}
