// Package backtest turns a completed engine run into performance metrics and
// human-readable reports.
package backtest

import (
	"math"
	"time"

	"meanrev/internal/engine"
	"meanrev/internal/ledger"
)

const minutesPerYear = 365.25 * 24 * 60

// Summary aggregates the performance of one run. Percentages are expressed
// as percent values (7.5 means 7.5%), not fractions.
type Summary struct {
	Symbol    string    `json:"symbol"`
	Timeframe string    `json:"timeframe"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`

	InitialCash float64 `json:"initial_cash"`
	FinalCash   float64 `json:"final_cash"`
	NetPnL      float64 `json:"net_pnl"`
	ReturnPct   float64 `json:"return_pct"`

	Trades    int `json:"trades"`
	Wins      int `json:"wins"`
	Losses    int `json:"losses"`
	Cancelled int `json:"cancelled"`
	Expired   int `json:"expired"`

	WinRatePct   float64 `json:"win_rate_pct"`
	ProfitFactor float64 `json:"profit_factor"`
	AvgWin       float64 `json:"avg_win"`
	AvgLoss      float64 `json:"avg_loss"`
	Expectancy   float64 `json:"expectancy"`

	MaxDrawdownPct float64 `json:"max_drawdown_pct"`
	Sharpe         float64 `json:"sharpe"`
	Commission     float64 `json:"commission_paid"`
}

// Compute derives the full summary from a run result. Cancelled orders count
// separately and never enter the win/loss statistics.
func Compute(res *engine.Result) Summary {
	s := Summary{
		Symbol:      res.Symbol,
		Timeframe:   string(res.Timeframe),
		InitialCash: res.InitialCash,
		FinalCash:   res.FinalCash,
		NetPnL:      res.FinalCash - res.InitialCash,
	}
	if len(res.EquityCurve) > 0 {
		s.Start = res.EquityCurve[0].Time
		s.End = res.EquityCurve[len(res.EquityCurve)-1].Time
	}
	if res.InitialCash > 0 {
		s.ReturnPct = s.NetPnL / res.InitialCash * 100
	}

	var grossWin, grossLoss float64
	for _, o := range res.Orders {
		if o.Outcome == nil {
			continue
		}
		if o.Outcome.Kind == engine.OutcomeCancelled {
			s.Cancelled++
			continue
		}
		if o.Outcome.Kind == engine.OutcomeLifetimeExpired {
			s.Expired++
		}
		s.Trades++
		s.Commission += o.Outcome.Commission
		if o.Outcome.RealizedPnL > 0 {
			s.Wins++
			grossWin += o.Outcome.RealizedPnL
		} else {
			s.Losses++
			grossLoss += -o.Outcome.RealizedPnL
		}
	}

	if s.Trades > 0 {
		s.WinRatePct = float64(s.Wins) / float64(s.Trades) * 100
		s.Expectancy = (grossWin - grossLoss) / float64(s.Trades)
	}
	if s.Wins > 0 {
		s.AvgWin = grossWin / float64(s.Wins)
	}
	if s.Losses > 0 {
		s.AvgLoss = grossLoss / float64(s.Losses)
	}
	if grossLoss > 0 {
		s.ProfitFactor = grossWin / grossLoss
	} else if grossWin > 0 {
		s.ProfitFactor = math.Inf(1)
	}

	s.MaxDrawdownPct = MaxDrawdown(res.EquityCurve)

	if m, err := res.Timeframe.Minutes(); err == nil {
		s.Sharpe = Sharpe(res.EquityCurve, minutesPerYear/float64(m))
	}
	return s
}

// MaxDrawdown returns the deepest peak-to-trough equity decline as a positive
// percentage.
func MaxDrawdown(curve []ledger.EquityPoint) float64 {
	if len(curve) == 0 {
		return 0
	}
	peak := curve[0].Value
	var worst float64
	for _, p := range curve {
		if p.Value > peak {
			peak = p.Value
		}
		if peak <= 0 {
			continue
		}
		if dd := (peak - p.Value) / peak * 100; dd > worst {
			worst = dd
		}
	}
	return worst
}

// Sharpe computes the annualized Sharpe ratio over per-bar equity returns,
// assuming a zero risk-free rate. periodsPerYear scales the per-bar figure to
// annual terms. A flat curve yields zero.
func Sharpe(curve []ledger.EquityPoint, periodsPerYear float64) float64 {
	if len(curve) < 2 {
		return 0
	}
	rets := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Value
		if prev == 0 {
			continue
		}
		rets = append(rets, (curve[i].Value-prev)/prev)
	}
	if len(rets) < 2 {
		return 0
	}

	var sum float64
	for _, r := range rets {
		sum += r
	}
	mean := sum / float64(len(rets))

	var varSum float64
	for _, r := range rets {
		varSum += (r - mean) * (r - mean)
	}
	sd := math.Sqrt(varSum / float64(len(rets)))
	if sd == 0 {
		return 0
	}
	return mean / sd * math.Sqrt(periodsPerYear)
}
