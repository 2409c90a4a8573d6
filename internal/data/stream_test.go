package data

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"meanrev/internal/market"
)

func klineMsg(openTime int64, closed bool) []byte {
	return []byte(fmt.Sprintf(
		`{"e":"kline","k":{"t":%d,"o":"100","h":"101","l":"99","c":"100.5","v":"12","x":%t}}`,
		openTime, closed))
}

func newKlineServer(t *testing.T, handler func(*websocket.Conn)) *httptest.Server {
	t.Helper()
	var upgrader websocket.Upgrader
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		handler(conn)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestSubscribeDeliversClosedKlines(t *testing.T) {
	base := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC).UnixMilli()
	srv := newKlineServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.TextMessage, klineMsg(base, true))
		_ = conn.WriteMessage(websocket.TextMessage, klineMsg(base+300_000, false)) // still forming
		_ = conn.WriteMessage(websocket.TextMessage, klineMsg(base+300_000, true))
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_, _, _ = conn.ReadMessage() // wait for the peer's close response
	})

	c := NewStreamClient(false)
	c.StreamURL = wsURL(srv)
	bars, stop, err := c.SubscribeClosedKlines(context.Background(), "TESTUSDT", market.TF5m)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer stop()

	var got []market.Bar
	timeout := time.After(2 * time.Second)
	for {
		select {
		case b, ok := <-bars:
			if !ok {
				if len(got) != 2 {
					t.Fatalf("got %d bars, want 2 (in-progress candle must be skipped)", len(got))
				}
				if want := time.UnixMilli(base + 300_000).UTC(); !got[1].Time.Equal(want) {
					t.Fatalf("last bar time = %s, want %s", got[1].Time, want)
				}
				return
			}
			got = append(got, b)
		case <-timeout:
			t.Fatal("stream channel did not close after server goodbye")
		}
	}
}

func TestStopWhileCandlesFlooding(t *testing.T) {
	base := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC).UnixMilli()
	srv := newKlineServer(t, func(conn *websocket.Conn) {
		for i := 0; i < 500; i++ {
			if err := conn.WriteMessage(websocket.TextMessage, klineMsg(base+int64(i)*300_000, true)); err != nil {
				return
			}
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	c := NewStreamClient(false)
	c.StreamURL = wsURL(srv)
	bars, stop, err := c.SubscribeClosedKlines(context.Background(), "TESTUSDT", market.TF5m)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	// Leave the channel undrained so the reader is parked on a full buffer
	// with candles still flowing, then unsubscribe. This must shut the
	// stream down cleanly, never panic on a closed channel.
	time.Sleep(100 * time.Millisecond)
	stop()
	stop() // second call is a no-op

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-bars:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("channel not closed after stop")
		}
	}
}

func TestContextCancelClosesStream(t *testing.T) {
	base := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC).UnixMilli()
	srv := newKlineServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.TextMessage, klineMsg(base, true))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	c := NewStreamClient(false)
	c.StreamURL = wsURL(srv)
	bars, stop, err := c.SubscribeClosedKlines(ctx, "TESTUSDT", market.TF5m)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer stop()

	cancel()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-bars:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("channel not closed after context cancel")
		}
	}
}
