package notifier

import (
	"fmt"
	"sync"
	"time"

	"meanrev/internal/engine"
)

// Dedupe suppresses repeat alerts for the same signal. The live loop may see
// the same candle twice (poll overlap, reconnect replay), and the engine's
// own dedupe only covers one process lifetime; this cache also absorbs
// identical signals produced after a restart replays recent history.
type Dedupe struct {
	mu   sync.Mutex
	seen map[string]time.Time
	ttl  time.Duration
}

// NewDedupe builds a cache that forgets fingerprints after ttl.
func NewDedupe(ttl time.Duration) *Dedupe {
	return &Dedupe{seen: make(map[string]time.Time), ttl: ttl}
}

// fingerprint identifies a signal by what it tells the trader, not by its
// sequential ID, which restarts reset.
func fingerprint(symbol string, o *engine.Order) string {
	return fmt.Sprintf("%s|%s|%d|%.8f", symbol, o.Side, o.EntryTime.UnixMilli(), o.EntryPrice)
}

// ShouldSend reports whether this signal is new and records it. Expired
// entries are pruned on the way through.
func (d *Dedupe) ShouldSend(symbol string, o *engine.Order, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	for k, ts := range d.seen {
		if now.Sub(ts) > d.ttl {
			delete(d.seen, k)
		}
	}

	fp := fingerprint(symbol, o)
	if _, dup := d.seen[fp]; dup {
		return false
	}
	d.seen[fp] = now
	return true
}
