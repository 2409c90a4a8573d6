package data

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"meanrev/internal/market"
)

func TestReadCSVWithHeader(t *testing.T) {
	in := strings.Join([]string{
		"timestamp,open,high,low,close,volume",
		"2024-03-04T00:00:00Z,100,101,99,100.5,1500",
		"2024-03-04T00:05:00Z,100.5,102,100,101,1200",
	}, "\n")

	bars, err := ReadCSV(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("got %d bars, expected 2", len(bars))
	}
	want := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	if !bars[0].Time.Equal(want) {
		t.Fatalf("first bar time=%v, expected %v", bars[0].Time, want)
	}
	if bars[1].Close != 101 || bars[1].Volume != 1200 {
		t.Fatalf("second bar parsed wrong: %+v", bars[1])
	}
}

func TestReadCSVUnixMillis(t *testing.T) {
	in := "1709510400000,100,101,99,100.5,1500\n"
	bars, err := ReadCSV(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	want := time.UnixMilli(1709510400000).UTC()
	if !bars[0].Time.Equal(want) {
		t.Fatalf("bar time=%v, expected %v", bars[0].Time, want)
	}
}

func TestReadCSVRejectsBadRows(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty input", ""},
		{"header only", "timestamp,open,high,low,close,volume\n"},
		{"missing column", "2024-03-04T00:00:00Z,100,101,99,100.5\n"},
		{"bad number", "2024-03-04T00:00:00Z,100,abc,99,100.5,1500\n"},
		{"high below low", "2024-03-04T00:00:00Z,100,98,99,100.5,1500\n"},
		{
			"out of order",
			"2024-03-04T00:05:00Z,100,101,99,100.5,1500\n" +
				"2024-03-04T00:00:00Z,100,101,99,100.5,1500\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ReadCSV(strings.NewReader(tt.in)); err == nil {
				t.Fatal("bad input accepted")
			}
		})
	}
}

func TestCSVRoundTrip(t *testing.T) {
	cfg := DefaultMockConfig("TESTUSDT")
	cfg.Bars = 50
	orig := GenerateBars(cfg)

	var buf bytes.Buffer
	if err := WriteCSV(&buf, orig); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	back, err := ReadCSV(&buf)
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if len(back) != len(orig) {
		t.Fatalf("round trip changed bar count: %d != %d", len(back), len(orig))
	}
	for i := range orig {
		if !back[i].Time.Equal(orig[i].Time) || back[i].Close != orig[i].Close {
			t.Fatalf("bar %d changed in round trip: %+v != %+v", i, back[i], orig[i])
		}
	}
}

func TestGenerateBarsDeterministic(t *testing.T) {
	cfg := DefaultMockConfig("TESTUSDT")
	cfg.Bars = 300

	a := GenerateBars(cfg)
	b := GenerateBars(cfg)
	if len(a) != 300 {
		t.Fatalf("got %d bars", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("bar %d differs between runs with same seed", i)
		}
	}
	if err := market.ValidateSeries(a); err != nil {
		t.Fatalf("generated series invalid: %v", err)
	}
}

func TestParseKlineEvent(t *testing.T) {
	closedMsg := []byte(`{"e":"kline","E":1709510700000,"s":"BTCUSDT",` +
		`"k":{"t":1709510400000,"T":1709510699999,"s":"BTCUSDT","i":"5m",` +
		`"o":"100.0","c":"101.5","h":"102.0","l":"99.5","v":"350.2","x":true}}`)

	bar, closed, err := parseKlineEvent(closedMsg)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !closed {
		t.Fatal("closed kline reported as open")
	}
	if bar.Open != 100 || bar.Close != 101.5 || bar.High != 102 || bar.Low != 99.5 {
		t.Fatalf("kline parsed wrong: %+v", bar)
	}
	if !bar.Time.Equal(time.UnixMilli(1709510400000).UTC()) {
		t.Fatalf("kline open time=%v", bar.Time)
	}

	openMsg := bytes.Replace(closedMsg, []byte(`"x":true`), []byte(`"x":false`), 1)
	if _, closed, err := parseKlineEvent(openMsg); err != nil || closed {
		t.Fatalf("in-progress kline: closed=%v err=%v", closed, err)
	}

	otherMsg := []byte(`{"e":"trade","s":"BTCUSDT"}`)
	if _, closed, err := parseKlineEvent(otherMsg); err != nil || closed {
		t.Fatalf("non-kline event: closed=%v err=%v", closed, err)
	}
}
