// Package scheduler drives the live signal loop: closed candles arrive from
// a websocket stream or a cron-driven REST poll, get replayed through the
// engine, and any new signal is pushed to Telegram. The engine skips candles
// it has already seen, so both feeds may run side by side.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"meanrev/internal/engine"
	"meanrev/internal/market"
	"meanrev/internal/notifier"
)

// BarSource supplies the most recent closed candles, oldest first. The
// Binance REST client satisfies this; tests plug in a stub.
type BarSource interface {
	FetchKlines(ctx context.Context, symbol string, tf market.Timeframe, start, end time.Time) ([]market.Bar, error)
}

// Sender is the notification sink. Satisfied by TelegramNotifier.
type Sender interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// Scheduler manages the periodic evaluation task.
type Scheduler struct {
	Cron   *cron.Cron
	Ctx    context.Context
	Engine *engine.Engine
	Source BarSource
	Sender Sender
	Dedupe *notifier.Dedupe

	symbol    string
	timeframe market.Timeframe
	// warmupBars is how much history each tick re-fetches; enough to cover a
	// missed tick or two, the engine skips what it has already seen.
	warmupBars int

	// evalMu serializes engine access between the cron task and a websocket
	// stream feeding bars concurrently.
	evalMu sync.Mutex
}

// New builds a scheduler around an engine in live mode.
func New(ctx context.Context, eng *engine.Engine, src BarSource, snd Sender, symbol string, tf market.Timeframe) *Scheduler {
	return &Scheduler{
		Cron:       cron.New(cron.WithSeconds()),
		Ctx:        ctx,
		Engine:     eng,
		Source:     src,
		Sender:     snd,
		Dedupe:     notifier.NewDedupe(24 * time.Hour),
		symbol:     symbol,
		timeframe:  tf,
		warmupBars: 5,
	}
}

// Register schedules the evaluation task. An empty spec derives a sensible
// one from the timeframe: a few seconds past each candle close.
func (s *Scheduler) Register(spec string) error {
	if spec == "" {
		derived, err := specForTimeframe(s.timeframe)
		if err != nil {
			return err
		}
		spec = derived
	}
	if _, err := s.Cron.AddFunc(spec, s.evaluateTask); err != nil {
		return fmt.Errorf("register evaluate task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Println("[INFO] scheduler started")
}

// Stop stops the cron scheduler gracefully.
func (s *Scheduler) Stop() {
	s.Cron.Stop()
	log.Println("[INFO] scheduler stopped")
}

// RunNow executes the evaluation task immediately (manual trigger).
func (s *Scheduler) RunNow() { s.evaluateTask() }

func (s *Scheduler) evaluateTask() {
	minutes, err := s.timeframe.Minutes()
	if err != nil {
		log.Printf("[ERROR] evaluate: %v", err)
		return
	}
	span := time.Duration(minutes*s.warmupBars) * time.Minute
	end := time.Now().UTC().Truncate(time.Duration(minutes) * time.Minute)
	start := end.Add(-span)

	bars, err := s.Source.FetchKlines(s.Ctx, s.symbol, s.timeframe, start, end)
	if err != nil {
		log.Printf("[ERROR] fetch klines: %v", err)
		return
	}

	for _, b := range bars {
		s.HandleBar(b)
	}
}

// HandleBar feeds one closed candle through the engine and pushes any
// resulting signal. Safe to call from the cron task and a stream consumer at
// the same time.
func (s *Scheduler) HandleBar(b market.Bar) {
	s.evalMu.Lock()
	defer s.evalMu.Unlock()

	decision, err := s.Engine.EvaluateLatestBar(b)
	if err != nil {
		log.Printf("[ERROR] evaluate bar %s: %v", b.Time.Format(time.RFC3339), err)
		return
	}
	if decision == nil {
		return
	}
	s.notify(decision)
}

// ConsumeStream drains closed candles from a websocket subscription into the
// engine until the channel closes or the context ends.
func (s *Scheduler) ConsumeStream(bars <-chan market.Bar) {
	for {
		select {
		case <-s.Ctx.Done():
			return
		case b, ok := <-bars:
			if !ok {
				return
			}
			s.HandleBar(b)
		}
	}
}

func (s *Scheduler) notify(d *engine.SignalDecision) {
	if !s.Dedupe.ShouldSend(s.symbol, d.Order, time.Now().UTC()) {
		log.Printf("[INFO] duplicate signal %s suppressed", d.Order.ID)
		return
	}
	log.Printf("[INFO] signal %s %s @ %.4f (regime %s, score %d)",
		d.Order.Side, s.symbol, d.Order.EntryPrice, d.Order.Regime.Classification, d.Order.Regime.Score)

	if s.Sender == nil {
		return
	}
	if err := s.Sender.SendWithRetry(s.Ctx, notifier.FormatSignal(s.symbol, d), 3); err != nil {
		log.Printf("[ERROR] send notification: %v", err)
	}
}

// specForTimeframe fires a few seconds after each candle boundary so the
// exchange has published the closed kline by the time we fetch.
func specForTimeframe(tf market.Timeframe) (string, error) {
	minutes, err := tf.Minutes()
	if err != nil {
		return "", err
	}
	switch {
	case minutes < 60:
		return fmt.Sprintf("5 */%d * * * *", minutes), nil
	case minutes < 1440:
		return fmt.Sprintf("5 0 */%d * * *", minutes/60), nil
	default:
		return "5 0 0 * * *", nil
	}
}
