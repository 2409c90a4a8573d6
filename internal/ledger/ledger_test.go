package ledger

import (
	"errors"
	"math"
	"testing"
	"time"

	"meanrev/internal/market"
)

func TestCashOnlyMovesOnRealizedTrades(t *testing.T) {
	l := New(10000, 10, 0.001)
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	l.MarkEquity(base, 100)
	if err := l.Open(Position{Side: market.Long, Size: 50, EntryPrice: 100, EntryTime: base}); err != nil {
		t.Fatalf("open: %v", err)
	}

	// Mark-to-market gains must show in equity but never in cash.
	l.MarkEquity(base.Add(5*time.Minute), 102)
	if l.Cash() != 10000 {
		t.Fatalf("cash=%v changed on unrealized move", l.Cash())
	}
	curve := l.EquityCurve()
	if got := curve[len(curve)-1].Value; got != 10100 {
		t.Fatalf("equity=%v, expected 10100", got)
	}

	pnl, commission := l.Close(102)
	wantCommission := 102 * 50 * 0.001
	if math.Abs(commission-wantCommission) > 1e-9 {
		t.Fatalf("commission=%v, expected %v", commission, wantCommission)
	}
	if math.Abs(pnl-(100-wantCommission)) > 1e-9 {
		t.Fatalf("pnl=%v, expected %v", pnl, 100-wantCommission)
	}
	if math.Abs(l.Cash()-(10000+pnl)) > 1e-9 {
		t.Fatalf("cash=%v after close", l.Cash())
	}
	if l.OpenPosition() != nil {
		t.Fatal("position survived close")
	}
}

func TestSingleOpenPosition(t *testing.T) {
	l := New(10000, 1, 0)
	now := time.Now().UTC()
	if err := l.Open(Position{Side: market.Long, Size: 1, EntryPrice: 100, EntryTime: now}); err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := l.Open(Position{Side: market.Short, Size: 1, EntryPrice: 100, EntryTime: now}); !errors.Is(err, ErrPositionOpen) {
		t.Fatalf("expected ErrPositionOpen, got %v", err)
	}
}

func TestBuyingPowerTracksLeverage(t *testing.T) {
	l := New(1000, 100, 0)
	if l.BuyingPower() != 100000 {
		t.Fatalf("buying power=%v, expected 100000", l.BuyingPower())
	}
	l.Open(Position{Side: market.Short, Size: 10, EntryPrice: 50, EntryTime: time.Now().UTC()})
	l.Close(45) // +50 realized, no commission
	if l.BuyingPower() != 105000 {
		t.Fatalf("buying power=%v after realized gain, expected 105000", l.BuyingPower())
	}
}

func TestShortUnrealizedPnL(t *testing.T) {
	p := &Position{Side: market.Short, Size: 10, EntryPrice: 100}
	if got := p.UnrealizedPnL(90); got != 100 {
		t.Fatalf("short pnl=%v, expected 100", got)
	}
	if got := p.UnrealizedPnL(110); got != -100 {
		t.Fatalf("short pnl=%v, expected -100", got)
	}
}

func TestCloseWhenFlatIsNoop(t *testing.T) {
	l := New(5000, 1, 0.001)
	pnl, commission := l.Close(123)
	if pnl != 0 || commission != 0 {
		t.Fatalf("close when flat returned pnl=%v commission=%v", pnl, commission)
	}
	if l.Cash() != 5000 {
		t.Fatalf("cash=%v mutated by flat close", l.Cash())
	}
}
