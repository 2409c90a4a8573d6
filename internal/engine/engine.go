// Package engine drives the per-bar order lifecycle: regime gating, band
// breakout entries, risk-managed exits and the equity curve. One Engine owns
// the full state for a single symbol/timeframe; instances share nothing, so a
// host may run one engine per instrument in parallel without coordination.
package engine

import (
	"fmt"
	"time"

	"meanrev/internal/indicators"
	"meanrev/internal/ledger"
	"meanrev/internal/market"
	"meanrev/internal/regime"
	"meanrev/internal/risk"
)

// Engine is the single-threaded orchestrator. Given the same bar sequence
// and configuration it produces a bit-identical order log and equity curve:
// nothing in here reads the wall clock or draws randomness.
type Engine struct {
	cfg        Config
	pipeline   *indicators.Pipeline
	classifier *regime.Classifier
	book       *ledger.Ledger

	open     *Order
	trailing *risk.TrailingStop
	orders   []*Order
	sinks    []OrderSink

	lifetime time.Duration
	seq      int

	lastTime   time.Time
	lastOpened *Order

	lastReading regime.Reading
}

// Result is the completed-run output handed to reporting and persistence.
type Result struct {
	Symbol      string               `json:"symbol"`
	Timeframe   market.Timeframe     `json:"timeframe"`
	Orders      []*Order             `json:"orders"`
	EquityCurve []ledger.EquityPoint `json:"equity_curve"`
	InitialCash float64              `json:"initial_cash"`
	FinalCash   float64              `json:"final_cash"`
}

// New validates the configuration and builds a fresh engine. Configuration
// errors are fatal here; no run proceeds on a bad parameter set.
func New(cfg Config, sinks ...OrderSink) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}
	return &Engine{
		cfg:        cfg,
		pipeline:   indicators.NewPipeline(cfg.Indicators),
		classifier: regime.NewClassifier(cfg.RegimeMinScore),
		book:       ledger.New(cfg.InitialCash, cfg.Leverage, cfg.CommissionRate),
		sinks:      sinks,
		lifetime:   time.Duration(cfg.OrderLifetimeMinutes[cfg.Timeframe]) * time.Minute,
	}, nil
}

// AddSink registers an additional lifecycle observer.
func (e *Engine) AddSink(s OrderSink) { e.sinks = append(e.sinks, s) }

// Orders returns the order log accumulated so far, cancellations included.
func (e *Engine) Orders() []*Order { return e.orders }

// EquityCurve returns the per-bar equity samples collected so far.
func (e *Engine) EquityCurve() []ledger.EquityPoint { return e.book.EquityCurve() }

// LastReading returns the regime reading of the most recent bar.
func (e *Engine) LastReading() regime.Reading { return e.lastReading }

// Run processes a finite bar sequence end to end. The series is validated up
// front: NaNs or non-monotonic timestamps reject the whole run, because
// silently skipping gaps would corrupt equity continuity. Any position still
// open after the last bar is force-closed so that every order leaves the run
// with exactly one outcome.
func (e *Engine) Run(bars []market.Bar) (*Result, error) {
	if len(bars) == 0 {
		return nil, fmt.Errorf("empty bar sequence")
	}
	if err := market.ValidateSeries(bars); err != nil {
		return nil, fmt.Errorf("bar series rejected: %w", err)
	}

	for _, b := range bars {
		e.Step(b)
	}

	last := bars[len(bars)-1]
	if e.open != nil {
		e.closeOrder(last.Close, last.Time, OutcomeForcedCloseAtRunEnd)
	}

	return &Result{
		Symbol:      e.cfg.Symbol,
		Timeframe:   e.cfg.Timeframe,
		Orders:      e.orders,
		EquityCurve: e.book.EquityCurve(),
		InitialCash: e.cfg.InitialCash,
		FinalCash:   e.book.Cash(),
	}, nil
}

// Step advances the engine by one bar. The sequence of checks is fixed:
// equity sample, lifetime expiry, trailing-stop update and intrabar exits,
// then entry evaluation.
func (e *Engine) Step(bar market.Bar) {
	e.lastTime = bar.Time
	e.lastOpened = nil

	// 1. Equity is sampled every bar, first thing, trade or no trade.
	e.book.MarkEquity(bar.Time, bar.Close)

	snap := e.pipeline.Update(bar)
	e.lastReading = e.classifier.Classify(snap.ADX, snap.VolPercentile)

	// 2. Lifetime expiration closes at the bar close regardless of price.
	if e.open != nil && bar.Time.Sub(e.open.EntryTime) >= e.lifetime {
		e.closeOrder(bar.Close, bar.Time, OutcomeLifetimeExpired)
	}

	// 3. Exit resolution for a surviving position.
	if e.open != nil {
		e.trailing.Update(bar.Close)
		e.resolveExits(bar)
	}

	// 4. Entry evaluation only when flat and inside the trading window.
	if e.open == nil && e.cfg.TradingHours.Contains(bar.Time.UTC().Hour()) {
		e.evaluateEntry(bar, snap)
	}
}

// resolveExits checks intrabar stop/target touches. When both levels fall
// inside the same bar's range, the stop-loss wins: OHLC data cannot tell
// which traded first, and assuming the loss is the conservative policy.
// Changing this tie-break changes historical backtest results, so it stays
// explicit here.
func (e *Engine) resolveExits(bar market.Bar) {
	stop := e.trailing.Stop()

	if e.open.Side == market.Long {
		if bar.Low <= stop {
			e.closeOrder(stop, bar.Time, OutcomeStopLoss)
			return
		}
		if bar.High >= e.open.TakeProfit {
			e.closeOrder(e.open.TakeProfit, bar.Time, OutcomeTakeProfit)
		}
		return
	}

	if bar.High >= stop {
		e.closeOrder(stop, bar.Time, OutcomeStopLoss)
		return
	}
	if bar.Low <= e.open.TakeProfit {
		e.closeOrder(e.open.TakeProfit, bar.Time, OutcomeTakeProfit)
	}
}

// evaluateEntry looks for the band-breakout reversal pattern on the current
// bar and opens a position when the regime allows and the risk numbers hold
// up. A rejected setup is logged as a cancelled order, never an error.
func (e *Engine) evaluateEntry(bar market.Bar, snap indicators.Snapshot) {
	if !snap.Ready() {
		return // warm-up suppresses trading, by policy
	}

	var side market.Side
	switch {
	// Open below both lower bands with a bullish close back up.
	case bar.Open < snap.BBLower && bar.Open < snap.VWAPLower && bar.Close > bar.Open:
		side = market.Long
	// Mirror: open above both upper bands with a bearish close back down.
	case bar.Open > snap.BBUpper && bar.Open > snap.VWAPUpper && bar.Close < bar.Open:
		side = market.Short
	default:
		return
	}

	if !e.lastReading.Suitable {
		return
	}

	entry := bar.Close
	stop := risk.StopLoss(entry, snap.ATR, e.cfg.StopLossATRMult, side)
	target := risk.TakeProfit(entry, stop, e.cfg.RiskReward, side)
	size, riskAmount := risk.PositionSize(e.book.Cash(), e.cfg.RiskPerPositionPct, entry, stop, e.cfg.Leverage)

	e.seq++
	order := &Order{
		ID:           fmt.Sprintf("%s-%s-%04d", e.cfg.Symbol, e.cfg.Timeframe, e.seq),
		Side:         side,
		EntryPrice:   entry,
		StopLoss:     stop,
		TakeProfit:   target,
		Size:         size,
		EntryTime:    bar.Time,
		RiskAmount:   riskAmount,
		RewardAmount: riskAmount * e.cfg.RiskReward,
		Regime:       e.lastReading,
	}

	if size == 0 {
		e.cancelOrder(order, bar.Time, "position size is zero")
		return
	}
	if err := risk.ValidateTrade(entry, stop, target, side); err != nil {
		e.cancelOrder(order, bar.Time, err.Error())
		return
	}
	if err := risk.ValidateMargin(e.book.Cash(), size, entry, e.cfg.Leverage); err != nil {
		e.cancelOrder(order, bar.Time, err.Error())
		return
	}

	if err := e.book.Open(ledger.Position{
		Side:       side,
		Size:       size,
		EntryPrice: entry,
		EntryTime:  bar.Time,
	}); err != nil {
		// Cannot happen while e.open is nil; treat as a cancelled order
		// rather than crashing the loop.
		e.cancelOrder(order, bar.Time, err.Error())
		return
	}

	e.open = order
	e.trailing = risk.NewTrailingStop(e.cfg.Trailing, side, entry, stop, target)
	e.orders = append(e.orders, order)
	e.lastOpened = order

	for _, s := range e.sinks {
		s.OrderOpened(order)
	}
}

// cancelOrder records a rejected entry with a zero-P&L outcome and keeps the
// loop going.
func (e *Engine) cancelOrder(o *Order, ts time.Time, reason string) {
	cash := e.book.Cash()
	o.Regime.Reason = reason
	o.Outcome = &OrderOutcome{
		Kind:          OutcomeCancelled,
		ExitPrice:     o.EntryPrice,
		ExitTime:      ts,
		RealizedPnL:   0,
		AccountBefore: cash,
		AccountAfter:  cash,
	}
	e.orders = append(e.orders, o)
	for _, s := range e.sinks {
		s.OrderClosed(o)
	}
}

// closeOrder realizes the open position and attaches the order's single
// outcome.
func (e *Engine) closeOrder(exitPrice float64, ts time.Time, kind OutcomeKind) {
	before := e.book.Cash()
	pnl, commission := e.book.Close(exitPrice)

	e.open.Outcome = &OrderOutcome{
		Kind:          kind,
		ExitPrice:     exitPrice,
		ExitTime:      ts,
		RealizedPnL:   pnl,
		Commission:    commission,
		AccountBefore: before,
		AccountAfter:  e.book.Cash(),
	}

	closed := e.open
	e.open = nil
	e.trailing = nil

	for _, s := range e.sinks {
		s.OrderClosed(closed)
	}
}
