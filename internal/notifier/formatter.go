package notifier

import (
	"fmt"
	"strings"
	"time"

	"meanrev/internal/engine"
)

// FormatSignal renders a new-order alert for Telegram (HTML parse mode).
func FormatSignal(symbol string, d *engine.SignalDecision) string {
	o := d.Order
	var b strings.Builder

	emoji := "🟢"
	if o.Side.String() == "SHORT" {
		emoji = "🔴"
	}
	fmt.Fprintf(&b, "%s <b>%s %s</b> @ %.4f\n\n", emoji, o.Side, symbol, o.EntryPrice)
	fmt.Fprintf(&b, "Stop:    %.4f\n", o.StopLoss)
	fmt.Fprintf(&b, "Target:  %.4f\n", o.TakeProfit)
	fmt.Fprintf(&b, "Size:    %.0f\n", o.Size)
	fmt.Fprintf(&b, "Risk:    %.2f\n\n", o.RiskAmount)
	fmt.Fprintf(&b, "Regime:  %s (score %d)\n", o.Regime.Classification, o.Regime.Score)
	fmt.Fprintf(&b, "Time:    %s", o.EntryTime.UTC().Format(time.RFC3339))

	return b.String()
}

// FormatClose renders an order-resolution alert.
func FormatClose(symbol string, o *engine.Order) string {
	if o.Outcome == nil {
		return ""
	}
	emoji := "✅"
	if o.Outcome.RealizedPnL < 0 {
		emoji = "❌"
	}
	return fmt.Sprintf("%s <b>%s closed</b> %s %s\nExit: %.4f\nP&L:  %+.2f",
		emoji, o.ID, symbol, o.Outcome.Kind, o.Outcome.ExitPrice, o.Outcome.RealizedPnL)
}
