package backtest

import (
	"fmt"
	"strings"
	"time"
)

// Report renders a fixed-width console summary of one run. It is what the
// backtest mode prints after finishing; the JSON shape lives in Summary's
// struct tags and is handled by the API layer.
func Report(s Summary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "==== Backtest %s %s ====\n", s.Symbol, s.Timeframe)
	if !s.Start.IsZero() {
		fmt.Fprintf(&b, "Period:         %s .. %s (%s)\n",
			s.Start.Format(time.RFC3339), s.End.Format(time.RFC3339),
			s.End.Sub(s.Start).Round(time.Minute))
	}
	fmt.Fprintf(&b, "Net P&L:        %+.2f (%+.2f%%)\n", s.NetPnL, s.ReturnPct)
	fmt.Fprintf(&b, "Final cash:     %.2f (from %.2f)\n", s.FinalCash, s.InitialCash)
	fmt.Fprintf(&b, "Trades:         %d (%d wins / %d losses, %d expired, %d cancelled)\n",
		s.Trades, s.Wins, s.Losses, s.Expired, s.Cancelled)
	fmt.Fprintf(&b, "Win rate:       %.1f%%\n", s.WinRatePct)
	fmt.Fprintf(&b, "Profit factor:  %s\n", formatRatio(s.ProfitFactor))
	fmt.Fprintf(&b, "Avg win/loss:   %.2f / %.2f (expectancy %+.2f)\n", s.AvgWin, s.AvgLoss, s.Expectancy)
	fmt.Fprintf(&b, "Max drawdown:   %.2f%%\n", s.MaxDrawdownPct)
	fmt.Fprintf(&b, "Sharpe (ann.):  %.2f\n", s.Sharpe)
	fmt.Fprintf(&b, "Commission:     %.2f\n", s.Commission)

	return b.String()
}

func formatRatio(v float64) string {
	if v != v { // NaN
		return "n/a"
	}
	if v > 1e6 {
		return "inf"
	}
	return fmt.Sprintf("%.2f", v)
}
