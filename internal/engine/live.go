package engine

import (
	"fmt"
	"sync"

	"meanrev/internal/market"
)

// EvaluateLatestBar feeds one new bar through the engine in live mode and
// reports whether it produced a new order. Bars at or before the last
// processed timestamp are ignored so an already-reported signal is never
// re-emitted when the same candle is fetched twice.
func (e *Engine) EvaluateLatestBar(bar market.Bar) (*SignalDecision, error) {
	if err := bar.Validate(); err != nil {
		return nil, fmt.Errorf("latest bar rejected: %w", err)
	}
	if !e.lastTime.IsZero() && !bar.Time.After(e.lastTime) {
		return nil, nil // already processed this candle
	}

	e.Step(bar)

	if e.lastOpened == nil {
		return nil, nil
	}
	return &SignalDecision{
		Order:   e.lastOpened,
		Reading: e.lastReading,
		Bar:     bar,
	}, nil
}

// LatestSignal is an OrderSink that remembers the most recent opened order.
// It is the observer-style replacement for wrapping the engine to capture
// orders: hosts that only need "did anything new happen" hang this on the
// engine and poll Take.
type LatestSignal struct {
	mu   sync.Mutex
	last *SignalDecision
}

// OrderOpened stores the newest decision, replacing any unconsumed one.
func (l *LatestSignal) OrderOpened(o *Order) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.last = &SignalDecision{Order: o, Reading: o.Regime}
}

// OrderClosed is a no-op; only fresh entries are interesting to notifiers.
func (l *LatestSignal) OrderClosed(o *Order) {}

// Take returns the most recent unconsumed decision and clears it, so each
// signal is delivered at most once.
func (l *LatestSignal) Take() *SignalDecision {
	l.mu.Lock()
	defer l.mu.Unlock()
	d := l.last
	l.last = nil
	return d
}
