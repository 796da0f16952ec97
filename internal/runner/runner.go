// Package runner orchestrates one execution run across multiple symbols.
package runner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"makerfill/internal/core"
	"makerfill/internal/metrics"
	"makerfill/internal/trading"
)

// StreamSession is the subscription loop driven by the engine. It returns
// nil on an orderly close and an error on transport failure.
type StreamSession interface {
	Run(ctx context.Context) error
}

// Engine owns one SymbolTrader per target position and routes decoded
// stream events to the matching trader.
type Engine struct {
	runID         string
	traders       map[string]*trading.SymbolTrader
	symbols       []string
	logger        core.ILogger
	watchInterval time.Duration
}

// NewEngine builds the per-symbol state machines for the given targets.
func NewEngine(positions []core.TargetPosition, instruments map[string]core.InstrumentInfo, gateway core.ActionGateway, logger core.ILogger, recorder *metrics.Recorder, watchInterval time.Duration) (*Engine, error) {
	if len(positions) == 0 {
		return nil, fmt.Errorf("no target positions")
	}

	runID := uuid.NewString()
	log := logger.WithField("run_id", runID)

	traders := make(map[string]*trading.SymbolTrader, len(positions))
	symbols := make([]string, 0, len(positions))
	for _, pos := range positions {
		if _, dup := traders[pos.Symbol]; dup {
			return nil, fmt.Errorf("duplicate target position for %s", pos.Symbol)
		}
		info, ok := instruments[pos.Symbol]
		if !ok {
			return nil, fmt.Errorf("no instrument info for %s", pos.Symbol)
		}
		traders[pos.Symbol] = trading.NewSymbolTrader(pos, info, gateway, log, recorder)
		symbols = append(symbols, pos.Symbol)
	}
	sort.Strings(symbols)

	return &Engine{
		runID:         runID,
		traders:       traders,
		symbols:       symbols,
		logger:        log.WithField("component", "runner"),
		watchInterval: watchInterval,
	}, nil
}

// RunID identifies this invocation in logs and persisted records.
func (e *Engine) RunID() string { return e.runID }

// Symbols returns the target symbols in sorted order.
func (e *Engine) Symbols() []string {
	return append([]string(nil), e.symbols...)
}

// OnDepthUpdate routes a market-data tick to the symbol's trader. An event
// for an unknown symbol is an internal-consistency error and fatal.
func (e *Engine) OnDepthUpdate(ctx context.Context, ev core.DepthUpdate) error {
	trader, ok := e.traders[ev.Symbol]
	if !ok {
		return fmt.Errorf("depth update for unknown symbol %s", ev.Symbol)
	}
	return trader.HandleDepthUpdate(ctx, ev)
}

// OnOrderUpdate routes an execution report to the symbol's trader.
func (e *Engine) OnOrderUpdate(_ context.Context, ev core.OrderUpdate) error {
	trader, ok := e.traders[ev.Symbol]
	if !ok {
		return fmt.Errorf("order update for unknown symbol %s", ev.Symbol)
	}
	trader.HandleOrderUpdate(ev)
	return nil
}

// Run drives the session until every trader completes, the caller cancels,
// or a fatal condition surfaces. On a fatal condition no summaries are
// returned, including for symbols that had already completed.
func (e *Engine) Run(ctx context.Context, session StreamSession) ([]core.SymbolSummary, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		return session.Run(gctx)
	})
	g.Go(func() error {
		e.watchCompletion(gctx, cancel)
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return nil, fmt.Errorf("run %s aborted: %w", e.runID, err)
	}

	summaries := make([]core.SymbolSummary, 0, len(e.symbols))
	for _, symbol := range e.symbols {
		summaries = append(summaries, e.traders[symbol].Summary())
	}
	e.logger.Info("run finished", "symbols", len(summaries))
	return summaries, nil
}

// watchCompletion polls trader state on a coarse interval and stops the
// run once every symbol is complete. Correctness does not depend on its
// latency.
func (e *Engine) watchCompletion(ctx context.Context, cancel context.CancelFunc) {
	ticker := time.NewTicker(e.watchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if e.allCompleted() {
				e.logger.Info("all targets complete, stopping")
				cancel()
				return
			}
		}
	}
}

func (e *Engine) allCompleted() bool {
	for _, trader := range e.traders {
		if !trader.Completed() {
			return false
		}
	}
	return true
}
