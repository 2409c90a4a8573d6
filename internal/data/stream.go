package data

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"meanrev/internal/market"
)

// StreamClient subscribes to Binance public kline websockets and emits only
// closed candles, which is what the live engine wants: an in-progress candle
// would repaint the indicator state.
type StreamClient struct {
	StreamURL string
	dialer    *websocket.Dialer
}

// NewStreamClient builds a websocket client; testnet toggles the host.
func NewStreamClient(testnet bool) *StreamClient {
	host := "stream.binance.com:9443"
	if testnet {
		host = "testnet.binance.vision"
	}
	return &StreamClient{
		StreamURL: (&url.URL{Scheme: "wss", Host: host, Path: "/ws"}).String(),
		dialer:    websocket.DefaultDialer,
	}
}

// SubscribeClosedKlines streams closed candles for symbol/timeframe into a
// channel. It returns the channel and a stop function; the channel closes
// when the context ends, stop is called or the connection drops.
//
// Only the reader goroutine closes the channel. stop signals it and closes
// the connection, so a consumer may unsubscribe at any moment, even with the
// buffer full and candles still flowing.
func (c *StreamClient) SubscribeClosedKlines(ctx context.Context, symbol string, tf market.Timeframe) (<-chan market.Bar, func(), error) {
	// Binance requires lowercase symbols for websocket streams.
	stream := fmt.Sprintf("%s@kline_%s", strings.ToLower(symbol), tf)
	u := fmt.Sprintf("%s/%s", c.StreamURL, stream)

	conn, _, err := c.dialer.DialContext(ctx, u, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("dial binance ws: %w", err)
	}

	out := make(chan market.Bar, 16)
	done := make(chan struct{})
	var once sync.Once
	stop := func() {
		once.Do(func() {
			close(done)
			// Ignore errors; connection may already be closed.
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			_ = conn.Close()
		})
	}

	// Closing the connection is the only way to unblock a pending
	// ReadMessage, so translate context cancellation into stop.
	go func() {
		select {
		case <-ctx.Done():
			stop()
		case <-done:
		}
	}()

	go func() {
		defer close(out)
		defer stop()
		for {
			select {
			case <-done:
				return
			default:
			}

			_, msg, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) ||
					strings.Contains(err.Error(), "use of closed network connection") {
					return
				}
				select {
				case <-done: // stop raced the read error, not worth logging
				default:
					log.Printf("binance ws read error: %v", err)
				}
				return
			}

			bar, closed, err := parseKlineEvent(msg)
			if err != nil {
				log.Printf("binance ws parse error: %v", err)
				continue
			}
			if !closed {
				continue
			}
			select {
			case out <- bar:
			case <-done:
				return
			}
		}
	}()

	return out, stop, nil
}

type klineEvent struct {
	EventType string `json:"e"`
	Kline     struct {
		OpenTime int64  `json:"t"`
		Open     string `json:"o"`
		High     string `json:"h"`
		Low      string `json:"l"`
		Close    string `json:"c"`
		Volume   string `json:"v"`
		Closed   bool   `json:"x"`
	} `json:"k"`
}

func parseKlineEvent(msg []byte) (market.Bar, bool, error) {
	var ev klineEvent
	if err := json.Unmarshal(msg, &ev); err != nil {
		return market.Bar{}, false, err
	}
	if ev.EventType != "kline" {
		return market.Bar{}, false, nil
	}

	parse := func(s string) float64 {
		f, _ := strconv.ParseFloat(s, 64)
		return f
	}
	bar := market.Bar{
		Time:   time.UnixMilli(ev.Kline.OpenTime).UTC(),
		Open:   parse(ev.Kline.Open),
		High:   parse(ev.Kline.High),
		Low:    parse(ev.Kline.Low),
		Close:  parse(ev.Kline.Close),
		Volume: parse(ev.Kline.Volume),
	}
	if ev.Kline.Closed {
		if err := bar.Validate(); err != nil {
			return market.Bar{}, false, fmt.Errorf("closed kline rejected: %w", err)
		}
	}
	return bar, ev.Kline.Closed, nil
}
