// Command surveilor is the process entrypoint: logger init, config
// load, leaf components wired bottom-up, then the Orchestrator takes
// over until an OS signal requests shutdown. Grounded on the teacher's
// cmd/main.go construction order.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"grid-trading-btc-binance/internal/archive"
	"grid-trading-btc-binance/internal/config"
	"grid-trading-btc-binance/internal/logger"
	"grid-trading-btc-binance/internal/notify"
	"grid-trading-btc-binance/internal/orchestrator"
)

func main() {
	logger.Init()
	logger.Info("starting surveillance engine")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger.Info("configuration loaded",
		"symbols", cfg.Symbols,
		"taker_single_thresholds", cfg.TakerSingleThresholds,
		"taker_cumulative_window_seconds", cfg.TakerCumulativeWindowSeconds,
		"large_order_window_minutes", cfg.LargeOrderWindowMinutes,
		"dispatcher_rate_limit_per_minute", cfg.DispatcherRateLimitPerMinute,
	)

	sink := notify.NewTelegramSink(cfg.TelegramToken, splitChatIDs(cfg.TelegramChatID))

	var archiveWriter archive.Writer = archive.NoopWriter{}
	if cfg.ArchiveEnabled {
		w, err := archive.NewJSONLWriter(cfg.ArchiveDir)
		if err != nil {
			log.Fatalf("failed to initialize archive writer: %v", err)
		}
		archiveWriter = w
	}

	orch := orchestrator.New(cfg, sink, archiveWriter)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := orch.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("orchestrator exited with error", "error", err)
	}
	logger.Info("surveillance engine stopped")
}

// splitChatIDs turns a comma-separated TELEGRAM_CHAT_ID value into the
// Whitelist slice TelegramSink expects.
func splitChatIDs(chatID string) []string {
	if chatID == "" {
		return nil
	}
	parts := strings.Split(chatID, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
