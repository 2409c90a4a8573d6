// Package data supplies bar series to the engine: CSV files for offline
// backtests, Binance REST for historical downloads, a websocket stream for
// live candles and a seeded mock generator for tests and demos.
package data

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"meanrev/internal/market"
)

// csvColumns is the expected header: timestamp is either RFC3339 or unix
// milliseconds.
var csvColumns = []string{"timestamp", "open", "high", "low", "close", "volume"}

// LoadCSV reads an OHLCV file and validates the series before handing it to
// the caller. A malformed row aborts the load with its line number; silently
// skipping rows would shift every later bar.
func LoadCSV(path string) ([]market.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	bars, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return bars, nil
}

// ReadCSV parses OHLCV rows from r. The first row may be a header.
func ReadCSV(r io.Reader) ([]market.Bar, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	var bars []market.Bar
	line := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line+1, err)
		}
		line++

		if line == 1 && isHeader(rec) {
			continue
		}
		if len(rec) < len(csvColumns) {
			return nil, fmt.Errorf("line %d: %d columns, need %d", line, len(rec), len(csvColumns))
		}

		ts, err := parseTimestamp(rec[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		vals := make([]float64, 5)
		for i := 0; i < 5; i++ {
			v, err := strconv.ParseFloat(rec[i+1], 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: column %s: %w", line, csvColumns[i+1], err)
			}
			vals[i] = v
		}

		b := market.Bar{Time: ts, Open: vals[0], High: vals[1], Low: vals[2], Close: vals[3], Volume: vals[4]}
		if err := b.Validate(); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		bars = append(bars, b)
	}

	if len(bars) == 0 {
		return nil, fmt.Errorf("no bars in input")
	}
	if err := market.ValidateSeries(bars); err != nil {
		return nil, err
	}
	return bars, nil
}

// WriteCSV stores a bar series in the format LoadCSV reads back.
func WriteCSV(w io.Writer, bars []market.Bar) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvColumns); err != nil {
		return err
	}
	for _, b := range bars {
		rec := []string{
			b.Time.UTC().Format(time.RFC3339),
			strconv.FormatFloat(b.Open, 'f', -1, 64),
			strconv.FormatFloat(b.High, 'f', -1, 64),
			strconv.FormatFloat(b.Low, 'f', -1, 64),
			strconv.FormatFloat(b.Close, 'f', -1, 64),
			strconv.FormatFloat(b.Volume, 'f', -1, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func isHeader(rec []string) bool {
	if len(rec) == 0 {
		return false
	}
	_, err := parseTimestamp(rec[0])
	return err != nil
}

func parseTimestamp(s string) (time.Time, error) {
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
