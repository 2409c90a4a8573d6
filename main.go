package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"meanrev/internal/api"
	"meanrev/internal/backtest"
	"meanrev/internal/data"
	"meanrev/internal/engine"
	"meanrev/internal/market"
	"meanrev/internal/notifier"
	"meanrev/internal/scheduler"
	"meanrev/internal/store"
	"meanrev/internal/sweep"
	"meanrev/pkg/config"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	mode := flag.String("mode", "backtest", "backtest | live | sweep | serve")
	csvPath := flag.String("csv", "", "OHLCV csv file (backtest/sweep); empty uses the configured feed")
	days := flag.Int("days", 30, "history to download when fetching from binance")
	maxTrials := flag.Int("max-trials", 0, "sweep: cap on sampled grid points (0 = full grid)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[FATAL] load config: %v", err)
	}
	strat, err := cfg.Strategy()
	if err != nil {
		log.Fatalf("[FATAL] %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch *mode {
	case "backtest":
		err = runBacktest(ctx, cfg, strat, *csvPath, *days)
	case "live":
		err = runLive(ctx, cfg, strat)
	case "sweep":
		err = runSweep(ctx, cfg, strat, *csvPath, *days, *maxTrials)
	case "serve":
		err = runServe(ctx, cfg)
	default:
		err = fmt.Errorf("unknown mode %q", *mode)
	}
	if err != nil {
		log.Fatalf("[FATAL] %v", err)
	}
}

// loadBars picks the bar source by priority: explicit CSV, then the mock
// feed, then a Binance download.
func loadBars(ctx context.Context, cfg *config.Config, strat engine.Config, csvPath string, days int) ([]market.Bar, error) {
	if csvPath != "" {
		log.Printf("[INFO] loading bars from %s", csvPath)
		return data.LoadCSV(csvPath)
	}
	if cfg.UseMockFeed {
		mc := data.DefaultMockConfig(strat.Symbol)
		mc.Timeframe = strat.Timeframe
		mc.Seed = cfg.MockSeed
		log.Printf("[INFO] generating %d mock bars (seed %d)", mc.Bars, mc.Seed)
		return data.GenerateBars(mc), nil
	}

	end := time.Now().UTC()
	start := end.AddDate(0, 0, -days)
	log.Printf("[INFO] downloading %s %s klines %s..%s", strat.Symbol, strat.Timeframe,
		start.Format("2006-01-02"), end.Format("2006-01-02"))
	client := data.NewBinanceClient(cfg.BinanceTestnet)
	return client.FetchKlines(ctx, strat.Symbol, strat.Timeframe, start, end)
}

func runBacktest(ctx context.Context, cfg *config.Config, strat engine.Config, csvPath string, days int) error {
	bars, err := loadBars(ctx, cfg, strat, csvPath, days)
	if err != nil {
		return err
	}

	eng, err := engine.New(strat)
	if err != nil {
		return err
	}
	res, err := eng.Run(bars)
	if err != nil {
		return err
	}
	sum := backtest.Compute(res)
	fmt.Print(backtest.Report(sum))

	st, err := store.New(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()
	runID, err := st.SaveRun(ctx, res, sum, strat)
	if err != nil {
		return err
	}
	log.Printf("[INFO] run saved as %s", runID)
	return nil
}

func runLive(ctx context.Context, cfg *config.Config, strat engine.Config) error {
	eng, err := engine.New(strat)
	if err != nil {
		return err
	}

	var snd scheduler.Sender
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		snd = notifier.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID, cfg.TelegramProxyURL)
		log.Println("[INFO] telegram notifications enabled")
	} else {
		log.Println("[WARN] telegram not configured, signals logged only")
	}

	sched := scheduler.New(ctx, eng, data.NewBinanceClient(cfg.BinanceTestnet), snd, strat.Symbol, strat.Timeframe)
	if err := sched.Register(cfg.CronSpec); err != nil {
		return err
	}

	// The cron REST poll stays registered as a gap-filler: it catches candles
	// missed while the websocket reconnects, and the engine drops replays.
	sched.Start()
	defer sched.Stop()
	log.Printf("[INFO] live loop running for %s %s", strat.Symbol, strat.Timeframe)

	streamClient := data.NewStreamClient(cfg.BinanceTestnet)
	for ctx.Err() == nil {
		bars, stopStream, err := streamClient.SubscribeClosedKlines(ctx, strat.Symbol, strat.Timeframe)
		if err != nil {
			log.Printf("[WARN] kline stream unavailable: %v (REST poll continues)", err)
			select {
			case <-ctx.Done():
			case <-time.After(30 * time.Second):
			}
			continue
		}
		log.Printf("[INFO] kline stream connected for %s %s", strat.Symbol, strat.Timeframe)
		sched.ConsumeStream(bars)
		stopStream()
		if ctx.Err() == nil {
			log.Println("[WARN] kline stream closed, reconnecting")
		}
	}

	log.Println("[INFO] shutting down")
	return nil
}

func runSweep(ctx context.Context, cfg *config.Config, strat engine.Config, csvPath string, days, maxTrials int) error {
	bars, err := loadBars(ctx, cfg, strat, csvPath, days)
	if err != nil {
		return err
	}

	space := sweep.Space{
		StopLossATRMult: []float64{1.0, 1.2, 1.5, 2.0},
		RiskReward:      []float64{1.5, 2.0, 2.5, 3.0},
		BBStd:           []float64{1.5, 2.0, 2.5},
		RegimeMinScore:  []int{50, 60, 70},
	}
	log.Printf("[INFO] sweeping over %d bars", len(bars))

	trials, err := sweep.Run(ctx, strat, space, bars, sweep.Options{MaxTrials: maxTrials, Seed: cfg.MockSeed})
	if err != nil {
		return err
	}

	top := trials
	if len(top) > 10 {
		top = top[:10]
	}
	for i, tr := range top {
		fmt.Printf("#%2d  pnl %+10.2f  dd %6.2f%%  wr %5.1f%%  trades %3d  | atr_mult %.2f rr %.2f bb_std %.2f min_score %d\n",
			i+1, tr.Summary.NetPnL, tr.Summary.MaxDrawdownPct, tr.Summary.WinRatePct, tr.Summary.Trades,
			tr.Config.StopLossATRMult, tr.Config.RiskReward, tr.Config.Indicators.BBStd, tr.Config.RegimeMinScore)
	}
	return nil
}

func runServe(ctx context.Context, cfg *config.Config) error {
	if cfg.OperatorPassword == "" {
		return fmt.Errorf("OPERATOR_PASSWORD must be set for serve mode")
	}

	st, err := store.New(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	srv, err := api.NewServer(api.ServerConfig{
		ListenAddr:       ":" + cfg.Port,
		JWTSecret:        cfg.JWTSecret,
		OperatorPassword: cfg.OperatorPassword,
		Release:          cfg.GinRelease,
	}, st)
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}

func init() {
	// Keep usage output helpful when flags are wrong.
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s -mode backtest|live|sweep|serve [flags]\n\n", os.Args[0])
		flag.PrintDefaults()
	}
}
