// Package config loads runtime settings from the environment (optionally via
// .env) and strategy parameters from a YAML file.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"meanrev/internal/engine"
	"meanrev/internal/market"
)

// Config holds environment-driven settings for the service.
type Config struct {
	Port string

	// Data source
	Symbol         string
	Timeframe      market.Timeframe
	BinanceTestnet bool
	UseMockFeed    bool
	MockSeed       int64

	// Strategy parameter file; empty means built-in defaults.
	StrategyFile string

	// Live loop
	CronSpec string

	// Telegram
	TelegramBotToken string
	TelegramChatID   string
	TelegramProxyURL string

	// Database
	DBPath string

	// Auth
	JWTSecret        string
	OperatorPassword string

	GinRelease bool
}

// Load reads environment variables (optionally via .env) into Config.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	return &Config{
		Port:             getEnv("PORT", "8080"),
		Symbol:           getEnv("SYMBOL", "BTCUSDT"),
		Timeframe:        market.Timeframe(getEnv("TIMEFRAME", "5m")),
		BinanceTestnet:   getEnv("BINANCE_TESTNET", "false") == "true",
		UseMockFeed:      getEnv("USE_MOCK_FEED", "true") == "true",
		MockSeed:         int64(getEnvInt("MOCK_SEED", 1)),
		StrategyFile:     getEnv("STRATEGY_FILE", ""),
		CronSpec:         getEnv("CRON_SPEC", ""),
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:   os.Getenv("TELEGRAM_CHAT_ID"),
		TelegramProxyURL: os.Getenv("TELEGRAM_PROXY_URL"),
		DBPath:           getEnv("DB_PATH", "./data/meanrev.db"),
		JWTSecret:        getEnv("JWT_SECRET", "dev-secret"),
		OperatorPassword: getEnv("OPERATOR_PASSWORD", ""),
		GinRelease:       getEnv("GIN_RELEASE", "false") == "true",
	}, nil
}

// Strategy builds the engine configuration: defaults for the configured
// symbol, overlaid with the YAML strategy file when one is set.
func (c *Config) Strategy() (engine.Config, error) {
	cfg := engine.DefaultConfig(c.Symbol)
	cfg.Timeframe = c.Timeframe

	if c.StrategyFile != "" {
		if err := overlayYAML(c.StrategyFile, &cfg); err != nil {
			return engine.Config{}, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return engine.Config{}, fmt.Errorf("strategy config: %w", err)
	}
	return cfg, nil
}

// overlayYAML unmarshals the file over cfg, so the file only needs to list
// the parameters it changes.
func overlayYAML(path string, cfg *engine.Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read strategy file: %w", err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("parse strategy file %s: %w", path, err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
