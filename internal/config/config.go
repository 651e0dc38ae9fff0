package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// ConfigError marks a fatal, startup-time configuration failure.
// Per the error-handling design, config errors are never recoverable
// at runtime.
type ConfigError struct {
	Option string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Option, e.Reason)
}

// Config holds every tunable named in the specification's
// configuration table.
type Config struct {
	Symbols []string

	LargeOrderWindowMinutes  int
	LargeOrderThresholdUsd   float64
	LargeOrderCooldownMinute int

	TakerSingleThresholds map[string]float64

	TakerCumulativeWindowSeconds int
	TakerCumulativeThresholdUsd  float64
	TakerCumulativeMinOrders     int

	TakerCooldownSingleSeconds     int
	TakerCooldownCumulativeSeconds int

	DispatcherRateLimitPerMinute int

	RecoveryMaxReconnectAttempts int
	RecoveryBaseBackoffSeconds   int
	RecoveryMaxBackoffSeconds    int
	RecoveryCriticalThreshold    int

	PriceCacheTTLSeconds int

	// ResetAggregatorOnDeliver: whether a delivered CUMULATIVE alert
	// resets the aggregator window for that (symbol, side). Spec
	// leaves this as an open question (DESIGN.md decision 3).
	ResetAggregatorOnDeliver bool

	ExchangeWSBaseURL   string
	ExchangeRESTBaseURL string

	TelegramToken  string
	TelegramChatID string

	ArchiveEnabled bool
	ArchiveDir     string
}

var defaultSymbols = []string{"BTCUSDT", "ETHUSDT", "BNBUSDT"}

var defaultSingleThresholds = map[string]float64{
	"BTCUSDT": 50,
	"ETHUSDT": 2000,
}

// Load reads .env (if present) and environment variables, applying the
// defaults from the specification's configuration table wherever an
// option is unset.
func Load() (*Config, error) {
	// A missing .env is not fatal — operators may rely on a real
	// environment (containers, systemd units) instead of a dotfile.
	_ = godotenv.Load()

	cfg := &Config{
		Symbols:                        defaultSymbols,
		LargeOrderWindowMinutes:        5,
		LargeOrderThresholdUsd:         2_000_000,
		LargeOrderCooldownMinute:       10,
		TakerSingleThresholds:          defaultSingleThresholds,
		TakerCumulativeWindowSeconds:   60,
		TakerCumulativeThresholdUsd:    1_000_000,
		TakerCumulativeMinOrders:       5,
		TakerCooldownSingleSeconds:     60,
		TakerCooldownCumulativeSeconds: 300,
		DispatcherRateLimitPerMinute:   12,
		RecoveryMaxReconnectAttempts:   10,
		RecoveryBaseBackoffSeconds:     2,
		RecoveryMaxBackoffSeconds:      300,
		RecoveryCriticalThreshold:      3,
		PriceCacheTTLSeconds:           60,
		ResetAggregatorOnDeliver:       true,
		ExchangeWSBaseURL:              "wss://stream.binance.com:9443",
		ExchangeRESTBaseURL:            "https://api.binance.com",
		ArchiveDir:                     "archive",
	}

	if v := os.Getenv("SYMBOLS"); v != "" {
		cfg.Symbols = splitUpper(v)
	}
	if len(cfg.Symbols) == 0 {
		return nil, &ConfigError{Option: "SYMBOLS", Reason: "must name at least one symbol"}
	}

	var err error
	if cfg.LargeOrderWindowMinutes, err = overrideInt("LARGE_ORDER_WINDOW_MINUTES", cfg.LargeOrderWindowMinutes); err != nil {
		return nil, err
	}
	if cfg.LargeOrderWindowMinutes < 1 || cfg.LargeOrderWindowMinutes > 1440 {
		return nil, &ConfigError{Option: "LARGE_ORDER_WINDOW_MINUTES", Reason: "must be in [1,1440]"}
	}
	if cfg.LargeOrderThresholdUsd, err = overrideFloat("LARGE_ORDER_THRESHOLD_USD", cfg.LargeOrderThresholdUsd); err != nil {
		return nil, err
	}
	if cfg.LargeOrderCooldownMinute, err = overrideInt("LARGE_ORDER_COOLDOWN_MINUTES", cfg.LargeOrderCooldownMinute); err != nil {
		return nil, err
	}

	if v := os.Getenv("TAKER_SINGLE_THRESHOLDS"); v != "" {
		thresholds, perr := parseThresholdMap(v)
		if perr != nil {
			return nil, &ConfigError{Option: "TAKER_SINGLE_THRESHOLDS", Reason: perr.Error()}
		}
		cfg.TakerSingleThresholds = thresholds
	}

	if cfg.TakerCumulativeWindowSeconds, err = overrideInt("TAKER_CUMULATIVE_WINDOW_SECONDS", cfg.TakerCumulativeWindowSeconds); err != nil {
		return nil, err
	}
	if cfg.TakerCumulativeWindowSeconds < 1 {
		return nil, &ConfigError{Option: "TAKER_CUMULATIVE_WINDOW_SECONDS", Reason: "window of 0 is rejected"}
	}
	if cfg.TakerCumulativeThresholdUsd, err = overrideFloat("TAKER_CUMULATIVE_THRESHOLD_USD", cfg.TakerCumulativeThresholdUsd); err != nil {
		return nil, err
	}
	if cfg.TakerCumulativeMinOrders, err = overrideInt("TAKER_CUMULATIVE_MIN_ORDERS", cfg.TakerCumulativeMinOrders); err != nil {
		return nil, err
	}
	if cfg.TakerCooldownSingleSeconds, err = overrideInt("TAKER_COOLDOWN_SINGLE_SECONDS", cfg.TakerCooldownSingleSeconds); err != nil {
		return nil, err
	}
	if cfg.TakerCooldownCumulativeSeconds, err = overrideInt("TAKER_COOLDOWN_CUMULATIVE_SECONDS", cfg.TakerCooldownCumulativeSeconds); err != nil {
		return nil, err
	}
	if cfg.DispatcherRateLimitPerMinute, err = overrideInt("DISPATCHER_RATE_LIMIT_PER_MINUTE", cfg.DispatcherRateLimitPerMinute); err != nil {
		return nil, err
	}
	if cfg.DispatcherRateLimitPerMinute < 1 {
		return nil, &ConfigError{Option: "DISPATCHER_RATE_LIMIT_PER_MINUTE", Reason: "must be positive"}
	}
	if cfg.RecoveryMaxReconnectAttempts, err = overrideInt("RECOVERY_MAX_RECONNECT_ATTEMPTS", cfg.RecoveryMaxReconnectAttempts); err != nil {
		return nil, err
	}
	if cfg.RecoveryBaseBackoffSeconds, err = overrideInt("RECOVERY_BASE_BACKOFF_SECONDS", cfg.RecoveryBaseBackoffSeconds); err != nil {
		return nil, err
	}
	if cfg.RecoveryMaxBackoffSeconds, err = overrideInt("RECOVERY_MAX_BACKOFF_SECONDS", cfg.RecoveryMaxBackoffSeconds); err != nil {
		return nil, err
	}
	if cfg.RecoveryCriticalThreshold, err = overrideInt("RECOVERY_CRITICAL_THRESHOLD", cfg.RecoveryCriticalThreshold); err != nil {
		return nil, err
	}
	if cfg.PriceCacheTTLSeconds, err = overrideInt("PRICE_CACHE_TTL_SECONDS", cfg.PriceCacheTTLSeconds); err != nil {
		return nil, err
	}

	if v := os.Getenv("RESET_AGGREGATOR_ON_DELIVER"); v != "" {
		b, perr := strconv.ParseBool(v)
		if perr != nil {
			return nil, &ConfigError{Option: "RESET_AGGREGATOR_ON_DELIVER", Reason: perr.Error()}
		}
		cfg.ResetAggregatorOnDeliver = b
	} else {
		cfg.ResetAggregatorOnDeliver = true
	}

	if v := os.Getenv("EXCHANGE_WS_BASE_URL"); v != "" {
		cfg.ExchangeWSBaseURL = v
	}
	if v := os.Getenv("EXCHANGE_REST_BASE_URL"); v != "" {
		cfg.ExchangeRESTBaseURL = v
	}

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	cfg.TelegramChatID = os.Getenv("TELEGRAM_CHAT_ID")

	if v := os.Getenv("ARCHIVE_ENABLED"); v != "" {
		b, perr := strconv.ParseBool(v)
		if perr != nil {
			return nil, &ConfigError{Option: "ARCHIVE_ENABLED", Reason: perr.Error()}
		}
		cfg.ArchiveEnabled = b
	}
	if v := os.Getenv("ARCHIVE_DIR"); v != "" {
		cfg.ArchiveDir = v
	}

	return cfg, nil
}

func splitUpper(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseThresholdMap(v string) (map[string]float64, error) {
	out := make(map[string]float64)
	for _, pair := range strings.Split(v, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		kv := strings.SplitN(pair, ":", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("malformed entry %q, expected SYMBOL:QTY", pair)
		}
		symbol := strings.ToUpper(strings.TrimSpace(kv[0]))
		qty, err := strconv.ParseFloat(strings.TrimSpace(kv[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid quantity for %s: %w", symbol, err)
		}
		out[symbol] = qty
	}
	return out, nil
}

func overrideInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, &ConfigError{Option: key, Reason: err.Error()}
	}
	return n, nil
}

func overrideFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, &ConfigError{Option: key, Reason: err.Error()}
	}
	return f, nil
}
