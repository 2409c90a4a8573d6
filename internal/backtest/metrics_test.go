package backtest

import (
	"math"
	"testing"
	"time"

	"meanrev/internal/engine"
	"meanrev/internal/ledger"
	"meanrev/internal/market"
)

func closedOrder(kind engine.OutcomeKind, pnl, commission float64) *engine.Order {
	return &engine.Order{
		Side: market.Long,
		Outcome: &engine.OrderOutcome{
			Kind:        kind,
			RealizedPnL: pnl,
			Commission:  commission,
		},
	}
}

func TestComputeSummary(t *testing.T) {
	t0 := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	res := &engine.Result{
		Symbol:      "TESTUSDT",
		Timeframe:   market.TF5m,
		InitialCash: 10000,
		FinalCash:   10080,
		Orders: []*engine.Order{
			closedOrder(engine.OutcomeTakeProfit, 100, 1.0),
			closedOrder(engine.OutcomeStopLoss, -50, 0.5),
			closedOrder(engine.OutcomeLifetimeExpired, 30, 0.3),
			closedOrder(engine.OutcomeCancelled, 0, 0),
		},
		EquityCurve: []ledger.EquityPoint{
			{Time: t0, Value: 10000},
			{Time: t0.Add(5 * time.Minute), Value: 10100},
			{Time: t0.Add(10 * time.Minute), Value: 10050},
			{Time: t0.Add(15 * time.Minute), Value: 10080},
		},
	}

	s := Compute(res)

	if s.Trades != 3 || s.Wins != 2 || s.Losses != 1 {
		t.Fatalf("trades=%d wins=%d losses=%d, expected 3/2/1", s.Trades, s.Wins, s.Losses)
	}
	if s.Cancelled != 1 || s.Expired != 1 {
		t.Fatalf("cancelled=%d expired=%d, expected 1/1", s.Cancelled, s.Expired)
	}
	if s.NetPnL != 80 {
		t.Fatalf("net pnl=%v, expected 80", s.NetPnL)
	}
	if math.Abs(s.ReturnPct-0.8) > 1e-9 {
		t.Fatalf("return=%v%%, expected 0.8%%", s.ReturnPct)
	}
	if math.Abs(s.WinRatePct-200.0/3) > 1e-9 {
		t.Fatalf("win rate=%v%%, expected 66.67%%", s.WinRatePct)
	}
	if math.Abs(s.ProfitFactor-2.6) > 1e-9 {
		t.Fatalf("profit factor=%v, expected 2.6", s.ProfitFactor)
	}
	if math.Abs(s.AvgWin-65) > 1e-9 || math.Abs(s.AvgLoss-50) > 1e-9 {
		t.Fatalf("avg win/loss=%v/%v, expected 65/50", s.AvgWin, s.AvgLoss)
	}
	if math.Abs(s.Expectancy-80.0/3) > 1e-9 {
		t.Fatalf("expectancy=%v, expected 26.67", s.Expectancy)
	}
	if math.Abs(s.Commission-1.8) > 1e-9 {
		t.Fatalf("commission=%v, expected 1.8", s.Commission)
	}
	if !s.Start.Equal(t0) || !s.End.Equal(t0.Add(15*time.Minute)) {
		t.Fatalf("period %v..%v wrong", s.Start, s.End)
	}
}

func TestProfitFactorEdges(t *testing.T) {
	onlyWins := &engine.Result{
		Timeframe:   market.TF5m,
		InitialCash: 1000, FinalCash: 1100,
		Orders: []*engine.Order{closedOrder(engine.OutcomeTakeProfit, 100, 0)},
	}
	if s := Compute(onlyWins); !math.IsInf(s.ProfitFactor, 1) {
		t.Fatalf("profit factor=%v with no losses, expected +Inf", s.ProfitFactor)
	}

	noTrades := &engine.Result{Timeframe: market.TF5m, InitialCash: 1000, FinalCash: 1000}
	s := Compute(noTrades)
	if s.ProfitFactor != 0 || s.WinRatePct != 0 || s.Trades != 0 {
		t.Fatalf("empty run summary not zeroed: %+v", s)
	}
}

func TestMaxDrawdown(t *testing.T) {
	t0 := time.Now().UTC()
	curve := []ledger.EquityPoint{
		{Time: t0, Value: 100},
		{Time: t0.Add(time.Minute), Value: 120},
		{Time: t0.Add(2 * time.Minute), Value: 90},
		{Time: t0.Add(3 * time.Minute), Value: 110},
	}
	if dd := MaxDrawdown(curve); math.Abs(dd-25) > 1e-9 {
		t.Fatalf("max drawdown=%v%%, expected 25%% (120 -> 90)", dd)
	}
	if dd := MaxDrawdown(nil); dd != 0 {
		t.Fatalf("max drawdown of empty curve=%v, expected 0", dd)
	}
}

func TestSharpe(t *testing.T) {
	t0 := time.Now().UTC()
	flat := []ledger.EquityPoint{
		{Time: t0, Value: 100},
		{Time: t0.Add(time.Minute), Value: 100},
		{Time: t0.Add(2 * time.Minute), Value: 100},
	}
	if s := Sharpe(flat, 252); s != 0 {
		t.Fatalf("flat curve sharpe=%v, expected 0", s)
	}

	// Alternating +10% and -5% returns have positive mean, so the ratio must
	// come out positive; exact scale depends on the annualization factor.
	alt := []ledger.EquityPoint{
		{Time: t0, Value: 100},
		{Time: t0.Add(time.Minute), Value: 110},
		{Time: t0.Add(2 * time.Minute), Value: 104.5},
		{Time: t0.Add(3 * time.Minute), Value: 114.95},
		{Time: t0.Add(4 * time.Minute), Value: 109.2025},
	}
	if s := Sharpe(alt, 252); s <= 0 {
		t.Fatalf("positive-drift curve sharpe=%v, expected > 0", s)
	}
	if Sharpe(alt[:1], 252) != 0 {
		t.Fatal("single-point curve should yield 0")
	}
}
