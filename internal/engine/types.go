package engine

import (
	"time"

	"meanrev/internal/market"
	"meanrev/internal/regime"
)

// OutcomeKind enumerates how an order's lifecycle ended.
type OutcomeKind int

const (
	OutcomeStopLoss OutcomeKind = iota
	OutcomeTakeProfit
	OutcomeLifetimeExpired
	OutcomeForcedCloseAtRunEnd
	OutcomeCancelled
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeStopLoss:
		return "STOP_LOSS"
	case OutcomeTakeProfit:
		return "TAKE_PROFIT"
	case OutcomeLifetimeExpired:
		return "LIFETIME_EXPIRED"
	case OutcomeForcedCloseAtRunEnd:
		return "FORCED_CLOSE_AT_RUN_END"
	case OutcomeCancelled:
		return "CANCELLED"
	}
	return "UNKNOWN"
}

// OrderOutcome is attached to an order exactly once, when it resolves.
type OrderOutcome struct {
	Kind          OutcomeKind `json:"kind"`
	ExitPrice     float64     `json:"exit_price"`
	ExitTime      time.Time   `json:"exit_time"`
	RealizedPnL   float64     `json:"realized_pnl"`
	Commission    float64     `json:"commission"`
	AccountBefore float64     `json:"account_before"`
	AccountAfter  float64     `json:"account_after"`
}

// Order captures an entry decision with its full risk metrics and the regime
// snapshot taken at entry time. Outcome is nil while the position is open;
// once attached the order is treated as immutable.
type Order struct {
	ID           string         `json:"id"`
	Side         market.Side    `json:"side"`
	EntryPrice   float64        `json:"entry_price"`
	StopLoss     float64        `json:"stop_loss"`
	TakeProfit   float64        `json:"take_profit"`
	Size         float64        `json:"size"`
	EntryTime    time.Time      `json:"entry_time"`
	RiskAmount   float64        `json:"risk_amount"`
	RewardAmount float64        `json:"reward_amount"`
	Regime       regime.Reading `json:"regime"`
	Outcome      *OrderOutcome  `json:"outcome,omitempty"`
}

// Closed reports whether the order has resolved.
func (o *Order) Closed() bool { return o.Outcome != nil }

// OrderSink observes order lifecycle transitions. The engine calls it
// synchronously on every open and close (including cancellations), which
// replaces any need to wrap or subclass the engine to intercept orders.
type OrderSink interface {
	OrderOpened(o *Order)
	OrderClosed(o *Order)
}

// SignalDecision is the live-mode answer for a single evaluated bar: the
// order the bar produced plus the context it was produced in.
type SignalDecision struct {
	Order   *Order         `json:"order"`
	Reading regime.Reading `json:"reading"`
	Bar     market.Bar     `json:"bar"`
}
