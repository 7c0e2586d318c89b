// Package enginecore implements the Strategy Engine (spec §4.5): a fixed
// 100ms-cadence loop that evaluates every active strategy, fans the
// resulting intents out to the Risk Gate and Executor concurrently, and
// publishes heartbeat/state snapshots without ever blocking on a
// side-effect sink.
//
// Grounded on the teacher's internal/engine/engine.go for the overall
// shape (owned subsystems, context-cancel lifecycle, WaitGroup-tracked
// background goroutines, periodic heartbeat logging) and on
// original_source/engine/src/strategy/engine.rs for the exact per-tick
// algorithm. Intent fan-out uses golang.org/x/sync/errgroup (the pack's
// only errgroup usage, in stadam23-Eve-flipper) rather than a bare
// sync.WaitGroup, since each tick needs a bounded, cancellable group of
// concurrent intent handlers rather than the teacher's open-ended
// market-lifecycle WaitGroup.
package enginecore

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"polymarket-arb/internal/execution"
	"polymarket-arb/internal/fanout"
	"polymarket-arb/internal/market"
	"polymarket-arb/internal/metrics"
	"polymarket-arb/internal/risk"
	"polymarket-arb/internal/strategy"
	"polymarket-arb/pkg/types"
)

const (
	tickInterval      = 100 * time.Millisecond
	heartbeatInterval = 60 * time.Second
)

// namedIntent pairs a strategy's name with the intent it produced on one
// tick, so handle_intent can attribute the signal and publish correctly.
type namedIntent struct {
	strategyName string
	intent       strategy.TradeIntent
}

// Engine is the Strategy Engine. It owns no strategies' mutable state
// beyond the strategies themselves; all shared state lives in the Market
// Store, Risk Gate, and Executor it was built with.
type Engine struct {
	store      *market.Store
	strategies []strategy.Strategy
	gate       *risk.Gate
	executor   *execution.Executor
	hub        *fanout.Hub
	notifier   *fanout.Notifier
	persist    *fanout.Store
	metrics    *metrics.Bundle
	logger     *slog.Logger

	cancelOnPartialArbFailure bool

	evaluations  atomic.Uint64
	signals      atomic.Uint64
	startedAtNs  int64
	lastHeartbNs atomic.Int64
}

// Config wires an Engine's collaborators together.
type Config struct {
	Store                     *market.Store
	Strategies                []strategy.Strategy
	Gate                      *risk.Gate
	Executor                  *execution.Executor
	Hub                       *fanout.Hub
	Notifier                  *fanout.Notifier
	Persist                   *fanout.Store
	Metrics                   *metrics.Bundle
	CancelOnPartialArbFailure bool
}

// New builds an Engine from its collaborators.
func New(cfg Config, logger *slog.Logger) *Engine {
	return &Engine{
		store:                     cfg.Store,
		strategies:                cfg.Strategies,
		gate:                      cfg.Gate,
		executor:                  cfg.Executor,
		hub:                       cfg.Hub,
		notifier:                  cfg.Notifier,
		persist:                   cfg.Persist,
		metrics:                   cfg.Metrics,
		logger:                    logger.With("component", "engine"),
		cancelOnPartialArbFailure: cfg.CancelOnPartialArbFailure,
	}
}

// Run drives the tick loop until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	e.startedAtNs = time.Now().UnixNano()
	e.lastHeartbNs.Store(e.startedAtNs)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	warnedWaiting := false

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if !e.store.HasData() {
				if !warnedWaiting {
					e.logger.Info("waiting for market data before evaluating strategies")
					warnedWaiting = true
				}
				continue
			}
			warnedWaiting = false
			e.tick(ctx)
		}
	}
}

func (e *Engine) tick(ctx context.Context) {
	e.evaluations.Add(1)
	if e.metrics != nil {
		e.metrics.EvaluationsTotal.Inc()
	}

	if time.Now().UnixNano()-e.lastHeartbNs.Load() >= heartbeatInterval.Nanoseconds() {
		e.heartbeat()
	}

	intents := e.collect()
	if len(intents) == 0 {
		return
	}
	e.fanOut(ctx, intents)
}

// collect iterates strategies synchronously — evaluation is sub-millisecond
// CPU work, not I/O, so there is nothing to gain from concurrency here.
func (e *Engine) collect() []namedIntent {
	var out []namedIntent
	for _, s := range e.strategies {
		if !s.IsActive() {
			continue
		}
		intent, ok := s.Evaluate(e.store)
		if !ok {
			continue
		}
		e.signals.Add(1)
		if e.metrics != nil {
			e.metrics.SignalsTotal.WithLabelValues(s.Name(), string(intent.Kind)).Inc()
		}
		out = append(out, namedIntent{strategyName: s.Name(), intent: intent})
	}
	return out
}

// fanOut runs handleIntent concurrently for every collected intent and
// awaits completion before the next tick, per spec §4.5 step 6.
func (e *Engine) fanOut(ctx context.Context, intents []namedIntent) {
	g, gctx := errgroup.WithContext(ctx)
	for _, ni := range intents {
		ni := ni
		g.Go(func() error {
			e.handleIntent(gctx, ni.strategyName, ni.intent)
			return nil
		})
	}
	_ = g.Wait() // handleIntent never returns an error; nothing to surface
}

func (e *Engine) handleIntent(ctx context.Context, strategyName string, intent strategy.TradeIntent) {
	e.publishSignal(strategyName, intent)

	if !e.gate.CheckIntent(intent) {
		e.logger.Info("intent rejected by risk gate", "strategy", strategyName, "kind", intent.Kind)
		return
	}

	switch intent.Kind {
	case strategy.IntentBuy, strategy.IntentSell:
		e.handleSingleLeg(ctx, strategyName, intent)
	case strategy.IntentArbitrage:
		e.handleArbitrage(ctx, strategyName, intent)
	}
}

func (e *Engine) handleSingleLeg(ctx context.Context, strategyName string, intent strategy.TradeIntent) {
	side := execution.Buy
	if intent.Kind == strategy.IntentSell {
		side = execution.Sell
	}

	start := time.Now()
	fill, err := e.executor.Place(ctx, intent.Token, intent.Price, intent.Size, side)
	elapsed := time.Since(start)
	status := "FILLED"
	var orderID string
	var pnl float64
	hasPnL := false

	if err != nil {
		status = "FAILED: " + err.Error()
		e.logger.Warn("order placement failed", "strategy", strategyName, "token", intent.Token, "error", err)
		e.publishError("executor", "order_failed", err.Error())
	} else {
		e.gate.RecordTrade(intent)
		orderID = fill.OrderID
		if intent.Kind == strategy.IntentSell {
			if pos, ok := e.gate.GetPosition(intent.Token); ok {
				pnl, hasPnL = pos.RealizedPnL, true
			}
		}
	}
	e.recordOrderMetric(side, err == nil, fill.IsPaper, elapsed)

	e.publishTrade(strategyName, intent, status, orderID, pnl, hasPnL, fill.IsPaper)
	e.notifyOrder(strategyName, intent, status, pnl, hasPnL, fill.IsPaper)
	e.persistTrade(strategyName, intent, side, status, orderID, fill.IsPaper)
}

func (e *Engine) handleArbitrage(ctx context.Context, strategyName string, intent strategy.TradeIntent) {
	var yesFill, noFill execution.Fill
	var yesErr, noErr error

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		start := time.Now()
		yesFill, yesErr = e.executor.Place(ctx, intent.YesToken, intent.YesPrice, intent.Size, execution.Buy)
		e.recordOrderMetric(execution.Buy, yesErr == nil, yesFill.IsPaper, time.Since(start))
	}()
	go func() {
		defer wg.Done()
		start := time.Now()
		noFill, noErr = e.executor.Place(ctx, intent.NoToken, intent.NoPrice, intent.Size, execution.Buy)
		e.recordOrderMetric(execution.Buy, noErr == nil, noFill.IsPaper, time.Since(start))
	}()
	wg.Wait()

	if yesErr != nil || noErr != nil {
		reason := firstError(yesErr, noErr)
		status := "FAILED: " + reason.Error()
		e.logger.Warn("arbitrage leg failed", "strategy", strategyName, "error", reason,
			"cancel_on_partial_failure", e.cancelOnPartialArbFailure)
		if e.cancelOnPartialArbFailure {
			e.cancelSuccessfulLeg(ctx, yesErr, noErr, yesFill, noFill)
		}
		e.publishError("executor", "arb_leg_failed", reason.Error())
		e.publishTrade(strategyName, intent, status, "", 0, false, false)
		e.notifyOrder(strategyName, intent, status, 0, false, false)
		e.persistArbFailure(strategyName, intent, status, yesFill, noFill)
		return
	}

	e.gate.RecordTrade(intent)
	isPaper := yesFill.IsPaper || noFill.IsPaper
	totalCost := (intent.YesPrice + intent.NoPrice) * intent.Size
	gross, fees, net := e.settleArbProfit(intent, totalCost, isPaper)

	e.publishTradeArb(strategyName, intent, "FILLED", yesFill.OrderID, noFill.OrderID, net, true, isPaper)
	e.notifyOrder(strategyName, intent, "FILLED", net, true, isPaper)
	e.persistArbTrade(strategyName, intent, yesFill, noFill, totalCost, gross, fees, net, isPaper)
}

// settleArbProfit computes the realized gross/fee/net profit for a filled
// arbitrage trade. Paper fills go through the paper accountant so its
// running totals account for every simulated trade the engine places, not
// just the ones exercised directly in tests.
func (e *Engine) settleArbProfit(intent strategy.TradeIntent, totalCost float64, isPaper bool) (gross, fees, net float64) {
	if isPaper {
		if trade, ok := e.executor.PaperTrader().SimulateArbTrade(e.store, intent.YesToken, intent.NoToken, intent.Size); ok {
			return trade.GrossProfit, trade.GrossProfit - trade.NetProfit, trade.NetProfit
		}
		// book no longer has depth for a VWAP replay; fall back to the
		// pre-trade edge estimate rather than reporting a zero fill.
		gross = intent.EdgePerShare * intent.Size
		return gross, 0, gross
	}
	gross = intent.Size - totalCost
	fees = totalCost * e.executor.PaperTrader().FeeRate()
	return gross, fees, gross - fees
}

// cancelSuccessfulLeg is only invoked when CancelOnPartialArbFailure is
// set — spec's default leaves the successful leg open (§9 open question).
func (e *Engine) cancelSuccessfulLeg(ctx context.Context, yesErr, noErr error, yesFill, noFill execution.Fill) {
	if yesErr == nil && yesFill.OrderID != "" {
		if err := e.executor.Cancel(ctx, yesFill.OrderID); err != nil {
			e.logger.Warn("failed to cancel successful yes leg", "error", err)
		}
	}
	if noErr == nil && noFill.OrderID != "" {
		if err := e.executor.Cancel(ctx, noFill.OrderID); err != nil {
			e.logger.Warn("failed to cancel successful no leg", "error", err)
		}
	}
}

// recordOrderMetric records the outcome and latency of a single Place call.
func (e *Engine) recordOrderMetric(side execution.Side, ok, isPaper bool, elapsed time.Duration) {
	if e.metrics == nil {
		return
	}
	outcome := "filled"
	if !ok {
		outcome = "failed"
	}
	mode := "live"
	if isPaper {
		mode = "paper"
	}
	e.metrics.OrdersTotal.WithLabelValues(string(side), outcome, mode).Inc()
	e.metrics.OrderLatency.WithLabelValues(string(side)).Observe(elapsed.Seconds())
}

func firstError(a, b error) error {
	if a != nil {
		return a
	}
	return b
}

func (e *Engine) heartbeat() {
	e.lastHeartbNs.Store(time.Now().UnixNano())
	e.logger.Info("engine heartbeat",
		"evaluations", e.evaluations.Load(),
		"signals", e.signals.Load(),
		"uptime_s", time.Duration(time.Now().UnixNano()-e.startedAtNs).Seconds(),
		"markets", e.store.MarketCount(),
		"tokens", e.store.TokenCount(),
	)
	e.publishState()
}

func (e *Engine) publishState() {
	if e.hub == nil {
		return
	}
	positions := make([]types.PositionView, 0)
	for token, pos := range e.gate.AllPositions() {
		positions = append(positions, types.PositionView{
			TokenID: token,
			Size:    pos.Size,
			AvgCost: pos.AvgCost,
		})
	}
	msg := types.StateMsg{
		TimestampMs:        time.Now().UnixMilli(),
		Status:             "running",
		MarketsTracked:     e.store.MarketCount(),
		OpportunitiesFound: int64(e.signals.Load()),
		DailyPnL:           e.gate.DailyPnL(),
		DailyTrades:        int64(e.gate.DailyTrades()),
		Positions:          positions,
	}
	if e.metrics != nil {
		e.metrics.DailyPnL.Set(msg.DailyPnL)
	}
	e.hub.Publish(fanout.ChannelState, msg)
}

func (e *Engine) publishSignal(strategyName string, intent strategy.TradeIntent) {
	if e.hub == nil {
		return
	}
	e.hub.Publish(fanout.ChannelSignals, signalMsgFor(strategyName, intent))
}

func (e *Engine) publishError(source, errorType, message string) {
	if e.hub == nil {
		return
	}
	e.hub.Publish(fanout.ChannelErrors, types.ErrorMsg{
		TimestampMs: time.Now().UnixMilli(),
		Source:      source,
		ErrorType:   errorType,
		Message:     message,
	})
}

func (e *Engine) publishTrade(strategyName string, intent strategy.TradeIntent, status, orderID string, pnl float64, hasPnL, isPaper bool) {
	if e.hub == nil {
		return
	}
	msg := types.TradeMsg{SignalMsg: signalMsgFor(strategyName, intent), Status: status, IsPaper: isPaper}
	if orderID != "" {
		msg.OrderID = &orderID
	}
	if hasPnL {
		msg.PnL = &pnl
	}
	e.hub.Publish(fanout.ChannelTrades, msg)
}

func (e *Engine) publishTradeArb(strategyName string, intent strategy.TradeIntent, status, yesOrderID, noOrderID string, pnl float64, hasPnL, isPaper bool) {
	if e.hub == nil {
		return
	}
	msg := types.TradeMsg{SignalMsg: signalMsgFor(strategyName, intent), Status: status, IsPaper: isPaper}
	if yesOrderID != "" {
		msg.YesOrderID = &yesOrderID
	}
	if noOrderID != "" {
		msg.NoOrderID = &noOrderID
	}
	if hasPnL {
		msg.PnL = &pnl
	}
	e.hub.Publish(fanout.ChannelTrades, msg)
}

func signalMsgFor(strategyName string, intent strategy.TradeIntent) types.SignalMsg {
	msg := types.SignalMsg{
		TimestampMs: time.Now().UnixMilli(),
		Strategy:    strategyName,
		SignalType:  string(intent.Kind),
		Size:        intent.Size,
		Reason:      intent.Reason,
	}
	switch intent.Kind {
	case strategy.IntentArbitrage:
		msg.YesTokenID = &intent.YesToken
		msg.NoTokenID = &intent.NoToken
		msg.YesPrice = &intent.YesPrice
		msg.NoPrice = &intent.NoPrice
		msg.Edge = &intent.EdgePerShare
	default:
		msg.TokenID = &intent.Token
		msg.Price = &intent.Price
	}
	return msg
}

func (e *Engine) notifyOrder(strategyName string, intent strategy.TradeIntent, status string, pnl float64, hasPnL, isPaper bool) {
	if e.notifier == nil {
		return
	}
	n := fanout.OrderNotification{
		Strategy: strategyName,
		Size:     intent.Size,
		Status:   status,
		PnL:      pnl,
		HasPnL:   hasPnL,
		IsPaper:  isPaper,
	}
	switch intent.Kind {
	case strategy.IntentArbitrage:
		n.OrderType = "ARBITRAGE"
		n.YesToken, n.NoToken = intent.YesToken, intent.NoToken
		n.YesPrice, n.NoPrice = intent.YesPrice, intent.NoPrice
	default:
		n.OrderType = string(intent.Kind)
		n.TokenID = intent.Token
		n.Price = intent.Price
	}
	e.notifier.NotifyOrder(n)
}

func (e *Engine) persistTrade(strategyName string, intent strategy.TradeIntent, side execution.Side, status, orderID string, isPaper bool) {
	if e.persist == nil {
		return
	}
	e.persist.InsertTrade(fanout.Trade{
		TokenID:      intent.Token,
		Side:         string(side),
		Price:        intent.Price,
		Size:         intent.Size,
		OrderID:      orderID,
		Status:       status,
		Strategy:     strategyName,
		SignalReason: intent.Reason,
		IsPaper:      isPaper,
	})
}

func (e *Engine) persistArbTrade(strategyName string, intent strategy.TradeIntent, yesFill, noFill execution.Fill, totalCost, grossProfit, fees, netProfit float64, isPaper bool) {
	if e.persist == nil {
		return
	}
	e.persist.InsertArbTrade(fanout.ArbTrade{
		MarketID:    marketIDFromTokens(intent.YesToken, intent.NoToken),
		YesTokenID:  intent.YesToken,
		NoTokenID:   intent.NoToken,
		YesPrice:    intent.YesPrice,
		NoPrice:     intent.NoPrice,
		Size:        intent.Size,
		TotalCost:   totalCost,
		Fees:        fees,
		GrossProfit: grossProfit,
		NetProfit:   netProfit,
		YesOrderID:  yesFill.OrderID,
		NoOrderID:   noFill.OrderID,
		Status:      "FILLED",
		Strategy:    strategyName,
		IsPaper:     isPaper,
	})
}

func (e *Engine) persistArbFailure(strategyName string, intent strategy.TradeIntent, status string, yesFill, noFill execution.Fill) {
	if e.persist == nil {
		return
	}
	e.persist.InsertArbTrade(fanout.ArbTrade{
		MarketID:   marketIDFromTokens(intent.YesToken, intent.NoToken),
		YesTokenID: intent.YesToken,
		NoTokenID:  intent.NoToken,
		YesPrice:   intent.YesPrice,
		NoPrice:    intent.NoPrice,
		Size:       intent.Size,
		YesOrderID: yesFill.OrderID,
		NoOrderID:  noFill.OrderID,
		Status:     status,
		Strategy:   strategyName,
	})
}

// marketIDFromTokens is a display-only fallback: the engine does not
// carry a MarketId through TradeIntent (spec §3's Arbitrage variant
// doesn't either), so the persisted row identifies the market by its
// token pair instead.
func marketIDFromTokens(yesToken, noToken string) string {
	return yesToken + "/" + noToken
}

// Evaluations returns the total number of ticks that ran at least one
// strategy evaluation pass.
func (e *Engine) Evaluations() uint64 { return e.evaluations.Load() }

// Signals returns the total number of intents collected across all ticks.
func (e *Engine) Signals() uint64 { return e.signals.Load() }
