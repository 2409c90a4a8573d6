package risk

import (
	"testing"

	"meanrev/internal/market"
)

func newLongTS() *TrailingStop {
	// entry 100, stop 94, target 115: activation at 50% progress (107.5),
	// relocated stop at entry + 20% of 15 = 103.
	return NewTrailingStop(DefaultTrailingConfig(), market.Long, 100, 94, 115)
}

func TestTrailingStopActivatesOnce(t *testing.T) {
	ts := newLongTS()

	ts.Update(105) // 33% progress, below threshold
	if ts.Activated() || ts.Stop() != 94 {
		t.Fatalf("premature activation: stop=%v", ts.Stop())
	}

	ts.Update(108) // 53% progress
	if !ts.Activated() {
		t.Fatal("not activated at 53% progress")
	}
	if ts.Stop() != 103 {
		t.Fatalf("stop=%v, expected 103", ts.Stop())
	}
	if !ts.Adjusted() {
		t.Fatal("relocation did not register as adjustment")
	}

	// Frozen afterwards: further favorable movement must not move the stop.
	ts.Update(114)
	if ts.Stop() != 103 {
		t.Fatalf("stop moved after activation: %v", ts.Stop())
	}
}

func TestTrailingStopNeverWorsens(t *testing.T) {
	// Stop already tighter than the breakeven-plus level: relocation must
	// not loosen it.
	ts := NewTrailingStop(DefaultTrailingConfig(), market.Long, 100, 104, 115)
	ts.Update(110)
	if !ts.Activated() {
		t.Fatal("expected activation")
	}
	if ts.Stop() != 104 {
		t.Fatalf("stop=%v, relocation loosened a tighter stop", ts.Stop())
	}
	if ts.Adjusted() {
		t.Fatal("no-op relocation flagged as adjustment")
	}
}

func TestTrailingStopShort(t *testing.T) {
	// entry 100, stop 106, target 85: activation at 92.5, lock at 97.
	ts := NewTrailingStop(DefaultTrailingConfig(), market.Short, 100, 106, 85)

	ts.Update(95)
	if ts.Stop() != 97 {
		t.Fatalf("stop=%v, expected 97", ts.Stop())
	}
	if !ts.ShouldExit(97.5) {
		t.Fatal("short should exit above relocated stop")
	}
	if ts.ShouldExit(96) {
		t.Fatal("short exiting below stop")
	}
}

func TestTrailingStopDisabled(t *testing.T) {
	cfg := DefaultTrailingConfig()
	cfg.Enabled = false
	ts := NewTrailingStop(cfg, market.Long, 100, 94, 115)
	ts.Update(114)
	if ts.Activated() || ts.Stop() != 94 {
		t.Fatalf("disabled trailing stop activated: stop=%v", ts.Stop())
	}
	if !ts.ShouldExit(93) {
		t.Fatal("initial stop no longer effective when trailing disabled")
	}
}
