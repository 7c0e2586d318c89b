// Package risk implements the Risk Gate: the admission check every
// TradeIntent passes through before the Executor touches it, plus the
// position ledger and daily P&L accounting the gate reads back from.
//
// The hot-path checks — emergency stop, daily loss — never take a lock: both
// are backed by atomics so a rejection never contends with RecordTrade's
// position-ledger write. Position checks take the read lock,
// matching the RwLock<HashMap<...>> shape of the original risk manager this
// package is ported from.
package risk

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"polymarket-arb/internal/strategy"
)

// microPerDollar converts between microdollars (the atomic P&L unit) and
// dollars: 1 USD = 1_000_000 microdollars.
const microPerDollar = 1_000_000.0

// Position tracks a single token's net size, cost basis, and realized P&L.
type Position struct {
	Size        float64
	AvgCost     float64
	RealizedPnL float64
}

func (p Position) String() string {
	return fmt.Sprintf("size=%.2f avg_cost=%.4f realized_pnl=%.2f", p.Size, p.AvgCost, p.RealizedPnL)
}

// Config bounds the Risk Gate's admission checks (spec §4.6).
type Config struct {
	MaxPosition               float64
	MaxNotional               float64
	MaxDailyLoss              float64
	CancelOnPartialArbFailure bool
}

// RejectReason labels why CheckIntent refused an intent; used as the
// Prometheus risk_rejections_total counter label.
type RejectReason string

const (
	RejectEmergencyStop        RejectReason = "emergency_stop"
	RejectDailyLossLimit       RejectReason = "daily_loss_limit"
	RejectNotionalLimit        RejectReason = "notional_limit"
	RejectPositionLimit        RejectReason = "position_limit"
	RejectInsufficientPosition RejectReason = "insufficient_position"
)

// StopSignal is emitted whenever the emergency stop is engaged or cleared.
type StopSignal struct {
	Active bool
	Reason string
}

// Gate enforces per-intent position and loss limits ahead of execution.
type Gate struct {
	cfg    Config
	logger *slog.Logger

	mu        sync.RWMutex
	positions map[string]*Position

	dailyPnLMicro  atomic.Int64
	dailyTrades    atomic.Uint64
	dailyVolumeMic atomic.Int64 // volume in microdollars, same scale as P&L

	emergencyStop atomic.Bool

	onReject func(RejectReason)
	stopCh   chan StopSignal // non-blocking notification of stop/clear transitions
}

// NewGate builds a Risk Gate. onReject, if non-nil, is called synchronously
// from CheckIntent with the rejection reason — wired to a Prometheus counter
// by the caller; pass nil in tests that don't care about metrics.
func NewGate(cfg Config, logger *slog.Logger, onReject func(RejectReason)) *Gate {
	logger.Info("risk gate initialized",
		"max_position", cfg.MaxPosition,
		"max_notional", cfg.MaxNotional,
		"max_daily_loss", cfg.MaxDailyLoss,
	)
	return &Gate{
		cfg:       cfg,
		logger:    logger.With("component", "risk"),
		positions: make(map[string]*Position),
		onReject:  onReject,
		stopCh:    make(chan StopSignal, 4),
	}
}

func (g *Gate) reject(reason RejectReason) bool {
	if g.onReject != nil {
		g.onReject(reason)
	}
	return false
}

// CheckIntent evaluates an intent against emergency stop, daily loss,
// notional, and position limits, in that priority order (spec §4.6). It
// returns true if the intent is admitted.
func (g *Gate) CheckIntent(intent strategy.TradeIntent) bool {
	if g.emergencyStop.Load() {
		g.logger.Warn("intent rejected: emergency stop active")
		return g.reject(RejectEmergencyStop)
	}

	pnl := float64(g.dailyPnLMicro.Load()) / microPerDollar
	if pnl < -g.cfg.MaxDailyLoss {
		g.logger.Warn("intent rejected: daily loss limit reached",
			"pnl", pnl, "max_daily_loss", g.cfg.MaxDailyLoss)
		return g.reject(RejectDailyLossLimit)
	}

	notional := intent.Notional()
	if notional > g.cfg.MaxNotional {
		g.logger.Warn("intent rejected: notional limit exceeded",
			"notional", notional, "max_notional", g.cfg.MaxNotional)
		return g.reject(RejectNotionalLimit)
	}

	switch intent.Kind {
	case strategy.IntentBuy:
		current := g.positionSize(intent.Token)
		if current+intent.Size > g.cfg.MaxPosition {
			g.logger.Warn("intent rejected: position limit exceeded",
				"token", intent.Token, "current", current, "size", intent.Size)
			return g.reject(RejectPositionLimit)
		}
	case strategy.IntentSell:
		current := g.positionSize(intent.Token)
		if current < intent.Size {
			g.logger.Warn("intent rejected: insufficient position",
				"token", intent.Token, "current", current, "size", intent.Size)
			return g.reject(RejectInsufficientPosition)
		}
	case strategy.IntentArbitrage:
		if intent.Size > g.cfg.MaxPosition {
			g.logger.Warn("intent rejected: arbitrage size exceeds position limit",
				"size", intent.Size, "max_position", g.cfg.MaxPosition)
			return g.reject(RejectPositionLimit)
		}
	}

	return true
}

func (g *Gate) positionSize(token string) float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if p, ok := g.positions[token]; ok {
		return p.Size
	}
	return 0
}

// RecordTrade updates the position ledger and daily P&L/stats for an intent
// that has been executed. Buys reaverage the cost basis; sells realize P&L
// against the existing average cost and add it to the atomic daily P&L;
// arbitrage fills both legs at their respective prices and locks in
// edge_per_share*size as daily P&L.
func (g *Gate) RecordTrade(intent strategy.TradeIntent) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.dailyTrades.Add(1)
	g.dailyVolumeMic.Add(int64(intent.Notional() * microPerDollar))

	switch intent.Kind {
	case strategy.IntentBuy:
		pos := g.positionOrNew(intent.Token)
		totalCost := pos.AvgCost*pos.Size + intent.Price*intent.Size
		pos.Size += intent.Size
		if pos.Size > 0 {
			pos.AvgCost = totalCost / pos.Size
		}

	case strategy.IntentSell:
		pos, ok := g.positions[intent.Token]
		if !ok {
			return
		}
		pnl := (intent.Price - pos.AvgCost) * intent.Size
		pos.RealizedPnL += pnl
		pos.Size -= intent.Size

		g.dailyPnLMicro.Add(int64(pnl * microPerDollar))
		g.logger.Info("trade recorded", "token", intent.Token, "pnl", pnl, "position_pnl", pos.RealizedPnL)

	case strategy.IntentArbitrage:
		yesPos := g.positionOrNew(intent.YesToken)
		yesPos.Size += intent.Size
		yesPos.AvgCost = intent.YesPrice

		noPos := g.positionOrNew(intent.NoToken)
		noPos.Size += intent.Size
		noPos.AvgCost = intent.NoPrice

		profit := intent.EdgePerShare * intent.Size
		g.dailyPnLMicro.Add(int64(profit * microPerDollar))
		g.logger.Info("arbitrage profit locked", "profit", profit)
	}
}

func (g *Gate) positionOrNew(token string) *Position {
	pos, ok := g.positions[token]
	if !ok {
		pos = &Position{}
		g.positions[token] = pos
	}
	return pos
}

// GetPosition returns the current position for a token, if any.
func (g *Gate) GetPosition(token string) (Position, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	p, ok := g.positions[token]
	if !ok {
		return Position{}, false
	}
	return *p, true
}

// AllPositions returns a snapshot copy of every tracked position.
func (g *Gate) AllPositions() map[string]Position {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make(map[string]Position, len(g.positions))
	for token, p := range g.positions {
		out[token] = *p
	}
	return out
}

// DailyPnL returns the running daily P&L in dollars.
func (g *Gate) DailyPnL() float64 {
	return float64(g.dailyPnLMicro.Load()) / microPerDollar
}

// DailyTrades returns the running daily trade count.
func (g *Gate) DailyTrades() uint64 {
	return g.dailyTrades.Load()
}

// DailyVolume returns the running daily traded notional in dollars.
func (g *Gate) DailyVolume() float64 {
	return float64(g.dailyVolumeMic.Load()) / microPerDollar
}

// ResetDaily zeroes the daily P&L, trade count, and volume. Neither the
// gate nor the engine calls it on a schedule.
func (g *Gate) ResetDaily() {
	g.logger.Info("resetting daily risk stats")
	g.dailyPnLMicro.Store(0)
	g.dailyTrades.Store(0)
	g.dailyVolumeMic.Store(0)
}

// EmergencyStop immediately halts all trading; every subsequent CheckIntent
// call returns false until ClearEmergencyStop is called.
func (g *Gate) EmergencyStop(reason string) {
	g.emergencyStop.Store(true)
	g.logger.Error("EMERGENCY STOP ACTIVATED - all trading halted", "reason", reason)
	g.emitStop(StopSignal{Active: true, Reason: reason})
}

// IsEmergencyStopped reports whether the emergency stop is currently active.
func (g *Gate) IsEmergencyStopped() bool {
	return g.emergencyStop.Load()
}

// ClearEmergencyStop resumes normal trading. Only call after the emergency
// condition has been resolved.
func (g *Gate) ClearEmergencyStop() {
	g.emergencyStop.Store(false)
	g.logger.Info("emergency stop cleared - trading resumed")
	g.emitStop(StopSignal{Active: false})
}

// StopCh returns the channel carrying emergency-stop transitions, letting a
// consumer (e.g. the fan-out layer) react without polling
// IsEmergencyStopped.
func (g *Gate) StopCh() <-chan StopSignal {
	return g.stopCh
}

// emitStop sends a StopSignal without blocking, draining a stale pending
// signal first so the latest transition always wins.
func (g *Gate) emitStop(sig StopSignal) {
	select {
	case g.stopCh <- sig:
	default:
		select {
		case <-g.stopCh:
		default:
		}
		g.stopCh <- sig
	}
}
