package notifier

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"meanrev/internal/engine"
	"meanrev/internal/market"
	"meanrev/internal/regime"
)

func sampleOrder() *engine.Order {
	return &engine.Order{
		ID:         "TESTUSDT-5m-0001",
		Side:       market.Long,
		EntryPrice: 100.5,
		StopLoss:   94,
		TakeProfit: 115,
		Size:       10,
		EntryTime:  time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC),
		RiskAmount: 100,
		Regime:     regime.Reading{Score: 85, Classification: regime.MeanReverting},
	}
}

func TestSendPostsToBotEndpoint(t *testing.T) {
	var gotPath string
	var gotPayload map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotPayload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewTelegramNotifier("token123", "chat42", "")
	n.BaseURL = srv.URL

	if err := n.Send("hello"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if gotPath != "/bottoken123/sendMessage" {
		t.Fatalf("path=%s", gotPath)
	}
	if gotPayload["chat_id"] != "chat42" || gotPayload["text"] != "hello" {
		t.Fatalf("payload=%v", gotPayload)
	}
}

func TestSendReportsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"ok":false}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	n := NewTelegramNotifier("t", "c", "")
	n.BaseURL = srv.URL
	if err := n.Send("x"); err == nil {
		t.Fatal("429 response not surfaced")
	}
}

func TestDedupeSuppressesRepeatSignal(t *testing.T) {
	d := NewDedupe(time.Hour)
	o := sampleOrder()
	now := time.Now().UTC()

	if !d.ShouldSend("TESTUSDT", o, now) {
		t.Fatal("first signal suppressed")
	}
	if d.ShouldSend("TESTUSDT", o, now.Add(time.Minute)) {
		t.Fatal("duplicate signal sent")
	}

	// Same setup on a different symbol is a different signal.
	if !d.ShouldSend("OTHERUSDT", o, now) {
		t.Fatal("different symbol suppressed")
	}

	// After the TTL the fingerprint is forgotten.
	if !d.ShouldSend("TESTUSDT", o, now.Add(2*time.Hour)) {
		t.Fatal("expired fingerprint still suppressed")
	}
}

func TestDedupeDistinguishesEntries(t *testing.T) {
	d := NewDedupe(time.Hour)
	now := time.Now().UTC()

	a := sampleOrder()
	b := sampleOrder()
	b.EntryTime = a.EntryTime.Add(5 * time.Minute)

	if !d.ShouldSend("TESTUSDT", a, now) || !d.ShouldSend("TESTUSDT", b, now) {
		t.Fatal("distinct entry times treated as duplicates")
	}
}

func TestFormatSignal(t *testing.T) {
	o := sampleOrder()
	msg := FormatSignal("TESTUSDT", &engine.SignalDecision{Order: o, Reading: o.Regime})

	for _, want := range []string{"LONG", "TESTUSDT", "100.5000", "94.0000", "115.0000", "MEAN_REVERTING", "score 85"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("message missing %q:\n%s", want, msg)
		}
	}
}

func TestFormatClose(t *testing.T) {
	o := sampleOrder()
	o.Outcome = &engine.OrderOutcome{Kind: engine.OutcomeStopLoss, ExitPrice: 94, RealizedPnL: -65.94}
	msg := FormatClose("TESTUSDT", o)
	if !strings.Contains(msg, "STOP_LOSS") || !strings.Contains(msg, "-65.94") {
		t.Fatalf("close message wrong:\n%s", msg)
	}
	if FormatClose("TESTUSDT", sampleOrder()) != "" {
		t.Fatal("open order formatted as close")
	}
}
