package market

import (
	"fmt"
	"math"
	"time"
)

// Bar is a single OHLCV candle. Bars are immutable once ingested.
type Bar struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Side identifies position direction.
type Side int

const (
	Long Side = iota
	Short
)

func (s Side) String() string {
	if s == Short {
		return "SHORT"
	}
	return "LONG"
}

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == Long {
		return Short
	}
	return Long
}

// Timeframe is a bar interval in exchange notation ("5m", "1h", ...).
type Timeframe string

const (
	TF1m  Timeframe = "1m"
	TF5m  Timeframe = "5m"
	TF15m Timeframe = "15m"
	TF30m Timeframe = "30m"
	TF1h  Timeframe = "1h"
	TF4h  Timeframe = "4h"
	TF1d  Timeframe = "1d"
)

var tfMinutes = map[Timeframe]int{
	TF1m:  1,
	TF5m:  5,
	TF15m: 15,
	TF30m: 30,
	TF1h:  60,
	TF4h:  240,
	TF1d:  1440,
}

// Minutes returns the bar interval length in minutes, or an error for an
// unknown timeframe.
func (tf Timeframe) Minutes() (int, error) {
	m, ok := tfMinutes[tf]
	if !ok {
		return 0, fmt.Errorf("unknown timeframe %q", tf)
	}
	return m, nil
}

// Validate checks a single bar for NaN/Inf fields and OHLC consistency.
func (b Bar) Validate() error {
	for _, v := range []float64{b.Open, b.High, b.Low, b.Close, b.Volume} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("bar at %s contains NaN/Inf", b.Time.Format(time.RFC3339))
		}
	}
	if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
		return fmt.Errorf("bar at %s has non-positive price", b.Time.Format(time.RFC3339))
	}
	if b.High < b.Low {
		return fmt.Errorf("bar at %s has high %.8f below low %.8f", b.Time.Format(time.RFC3339), b.High, b.Low)
	}
	return nil
}

// ValidateSeries checks an ordered bar sequence: every bar well-formed and
// timestamps strictly increasing. A bad series rejects the whole run; silent
// gap-skipping would corrupt equity continuity downstream.
func ValidateSeries(bars []Bar) error {
	for i, b := range bars {
		if err := b.Validate(); err != nil {
			return fmt.Errorf("bar %d: %w", i, err)
		}
		if i > 0 && !b.Time.After(bars[i-1].Time) {
			return fmt.Errorf("bar %d: timestamp %s not after previous %s",
				i, b.Time.Format(time.RFC3339), bars[i-1].Time.Format(time.RFC3339))
		}
	}
	return nil
}
