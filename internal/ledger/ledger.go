// Package ledger tracks real cash, leveraged buying power and the per-bar
// equity curve for one engine instance.
package ledger

import (
	"errors"
	"time"

	"meanrev/internal/market"
)

var ErrPositionOpen = errors.New("a position is already open")

// Position is the single open exposure carried by the ledger.
type Position struct {
	Side       market.Side
	Size       float64
	EntryPrice float64
	EntryTime  time.Time
}

// UnrealizedPnL marks the position against price.
func (p *Position) UnrealizedPnL(price float64) float64 {
	if p == nil {
		return 0
	}
	if p.Side == market.Long {
		return (price - p.EntryPrice) * p.Size
	}
	return (p.EntryPrice - price) * p.Size
}

// EquityPoint is one sample of total account value.
type EquityPoint struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

// Ledger separates real (non-leveraged) cash from leveraged buying power.
// Cash moves only on realized trades; buying power exists purely for order
// acceptance checks and must never feed position sizing.
type Ledger struct {
	cash           float64
	leverage       float64
	commissionRate float64 // fraction, e.g. 0.001 = 0.1%

	position      *Position
	realizedTotal float64
	curve         []EquityPoint
}

// New creates a ledger with the configured starting cash.
func New(initialCash, leverage, commissionRate float64) *Ledger {
	return &Ledger{
		cash:           initialCash,
		leverage:       leverage,
		commissionRate: commissionRate,
	}
}

// Cash is the real account value realized so far.
func (l *Ledger) Cash() float64 { return l.cash }

// BuyingPower is cash times leverage; order-acceptance checks only.
func (l *Ledger) BuyingPower() float64 { return l.cash * l.leverage }

// RealizedTotal is the cumulative realized P&L net of commission.
func (l *Ledger) RealizedTotal() float64 { return l.realizedTotal }

// OpenPosition returns the current position, nil when flat.
func (l *Ledger) OpenPosition() *Position { return l.position }

// Open records a new position. At most one position may be open.
func (l *Ledger) Open(p Position) error {
	if l.position != nil {
		return ErrPositionOpen
	}
	l.position = &p
	return nil
}

// Close realizes the open position at exitPrice, applying commission on the
// exit notional, and returns net P&L and the commission charged.
func (l *Ledger) Close(exitPrice float64) (pnl, commission float64) {
	p := l.position
	if p == nil {
		return 0, 0
	}
	gross := p.UnrealizedPnL(exitPrice)
	commission = exitPrice * p.Size * l.commissionRate
	pnl = gross - commission

	l.cash += pnl
	l.realizedTotal += pnl
	l.position = nil
	return pnl, commission
}

// MarkEquity appends one equity sample: cash plus unrealized P&L at price.
// Called exactly once per processed bar, trade or no trade.
func (l *Ledger) MarkEquity(t time.Time, price float64) {
	l.curve = append(l.curve, EquityPoint{Time: t, Value: l.cash + l.position.UnrealizedPnL(price)})
}

// EquityCurve returns the per-bar samples collected so far.
func (l *Ledger) EquityCurve() []EquityPoint { return l.curve }
