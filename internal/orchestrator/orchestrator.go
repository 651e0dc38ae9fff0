// Package orchestrator is the composition root (component 12): it
// wires every leaf component into the dataflow pipeline from the
// system overview, owns the single cancellation signal, and runs the
// periodic cleanup and health-probe tasks. Grounded on the teacher's
// internal/core/bot.go Run() select-loop shape and cmd/main.go's
// construction order.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"grid-trading-btc-binance/internal/aggregate"
	"grid-trading-btc-binance/internal/archive"
	"grid-trading-btc-binance/internal/config"
	"grid-trading-btc-binance/internal/cooldown"
	"grid-trading-btc-binance/internal/detect"
	"grid-trading-btc-binance/internal/dispatch"
	"grid-trading-btc-binance/internal/ingest"
	"grid-trading-btc-binance/internal/logger"
	"grid-trading-btc-binance/internal/model"
	"grid-trading-btc-binance/internal/notify"
	"grid-trading-btc-binance/internal/price"
	"grid-trading-btc-binance/internal/ratelimit"
	"grid-trading-btc-binance/internal/recovery"
	"grid-trading-btc-binance/internal/suppress"
)

const (
	healthProbeInterval = 30 * time.Second
)

// Orchestrator owns one instance of every pipeline component and
// drives the ingest -> normalise -> detect -> suppress -> dispatch
// dataflow from the Ingestor's trade callback.
type Orchestrator struct {
	cfg *config.Config

	ingestor  *ingest.Ingestor
	recovery  *recovery.Manager
	converter *price.Converter

	aggTaker *aggregate.Aggregator
	aggLarge *aggregate.Aggregator

	singleDetector *detect.SingleDetector
	cumTaker       *detect.CumulativeDetector
	cumLarge       *detect.CumulativeDetector

	suppressorTaker *suppress.Suppressor
	suppressorLarge *suppress.Suppressor

	dispatcher *dispatch.Dispatcher
	sink       dispatch.Sink
	archive    archive.Writer

	cleanupInterval time.Duration
}

// New wires every component from cfg. sink is the already-constructed
// notification sink (e.g. notify.NewTelegramSink); archiveWriter may
// be archive.NoopWriter{} when archiving is disabled.
func New(cfg *config.Config, sink dispatch.Sink, archiveWriter archive.Writer) *Orchestrator {
	o := &Orchestrator{cfg: cfg, sink: sink, archive: archiveWriter}

	o.converter = price.New(
		time.Duration(cfg.PriceCacheTTLSeconds)*time.Second,
		price.NewBinanceRateFetcher(),
		func(quote string, err error) {
			logger.Warn("rate conversion failed", "quote", quote, "error", err)
		},
	)

	o.aggTaker = aggregate.New(time.Duration(cfg.TakerCumulativeWindowSeconds) * time.Second)
	o.aggLarge = aggregate.New(time.Duration(cfg.LargeOrderWindowMinutes) * time.Minute)

	singleThresholds := make(map[string]decimal.Decimal, len(cfg.TakerSingleThresholds))
	for symbol, qty := range cfg.TakerSingleThresholds {
		singleThresholds[symbol] = decimal.NewFromFloat(qty)
	}
	o.singleDetector = detect.NewSingleDetector(detect.SingleConfig{Thresholds: singleThresholds})

	o.cumTaker = detect.NewCumulativeDetector(detect.CumulativeConfig{
		MinOrders:    cfg.TakerCumulativeMinOrders,
		ThresholdUsd: decimal.NewFromFloat(cfg.TakerCumulativeThresholdUsd),
		Window:       time.Duration(cfg.TakerCumulativeWindowSeconds) * time.Second,
	}, o.aggTaker)

	o.cumLarge = detect.NewCumulativeDetector(detect.CumulativeConfig{
		MinOrders:    cfg.TakerCumulativeMinOrders,
		ThresholdUsd: decimal.NewFromFloat(cfg.LargeOrderThresholdUsd),
		Window:       time.Duration(cfg.LargeOrderWindowMinutes) * time.Minute,
	}, o.aggLarge)

	o.suppressorTaker = suppress.New(cooldown.New(), suppress.Cooldowns{
		Single:     time.Duration(cfg.TakerCooldownSingleSeconds) * time.Second,
		Cumulative: time.Duration(cfg.TakerCooldownCumulativeSeconds) * time.Second,
	})
	o.suppressorLarge = suppress.New(cooldown.New(), suppress.Cooldowns{
		Cumulative: time.Duration(cfg.LargeOrderCooldownMinute) * time.Minute,
	})

	limiter := ratelimit.New(cfg.DispatcherRateLimitPerMinute, time.Minute)
	o.dispatcher = dispatch.New(o.sink, notify.Render, limiter,
		dispatch.WithResetOnDeliver(cfg.ResetAggregatorOnDeliver, o.resetForEvent),
	)

	o.ingestor = ingest.New(ingest.Config{
		BaseURL:  cfg.ExchangeWSBaseURL,
		Symbols:  cfg.Symbols,
		Exchange: "BINANCE",
	}, o.onState, o.onTrade, o.onDisconnect)

	o.recovery = recovery.New(recovery.Config{
		Base:               time.Duration(cfg.RecoveryBaseBackoffSeconds) * time.Second,
		Max:                time.Duration(cfg.RecoveryMaxBackoffSeconds) * time.Second,
		MaxAttempts:        cfg.RecoveryMaxReconnectAttempts,
		CriticalThreshold:  cfg.RecoveryCriticalThreshold,
		AdminAlertCooldown: time.Minute,
	}, o.ingestor, o.raiseAdmin)

	o.cleanupInterval = cleanupCadence(time.Duration(cfg.LargeOrderWindowMinutes) * time.Minute)

	return o
}

// resetForEvent picks the aggregator matching the delivered
// CUMULATIVE event's window and clears only the triggering side's
// entries for that symbol, leaving the opposite side's concurrently
// building window untouched. The two CumulativeDetector instances run
// at different window durations, so the window is enough to
// disambiguate which aggregator fired.
func (o *Orchestrator) resetForEvent(evt model.ThresholdEvent) {
	if evt.WindowDuration == time.Duration(o.cfg.TakerCumulativeWindowSeconds)*time.Second {
		o.aggTaker.Reset(evt.Symbol, evt.Side)
		return
	}
	if evt.WindowDuration == time.Duration(o.cfg.LargeOrderWindowMinutes)*time.Minute {
		o.aggLarge.Reset(evt.Symbol, evt.Side)
	}
}

func (o *Orchestrator) onState(state model.ConnectionState) {
	logger.Info("ingestor state changed", "state", state)
	if state == model.StateConnected {
		o.recovery.NotifySuccess()
	}
}

func (o *Orchestrator) onDisconnect(err error) {
	o.recovery.NotifyFailure(err, model.SeverityMedium)
}

// onTrade is the synchronous hot path: normalise -> route to both
// aggregators/detectors -> suppress -> enqueue. No blocking I/O
// happens here; the converter's cache miss path returns 0 and
// schedules its own background refresh.
func (o *Orchestrator) onTrade(trade model.TradeEvent) {
	usd := o.converter.ToUSD(trade.Symbol, trade.Price, trade.Quantity)
	if usd.IsZero() {
		return
	}
	trade.Amount = usd

	if o.archive != nil {
		if err := o.archive.WriteTrade(trade); err != nil {
			logger.Warn("archive write failed", "error", err)
		}
	}

	if evt, ok := o.singleDetector.Check(trade); ok {
		o.handle(o.suppressorTaker, evt)
	}

	entry := model.WindowEntry{TradeTime: trade.TradeTime, UsdValue: usd, Side: trade.Side}
	observedAt := time.UnixMilli(trade.TradeTime)

	o.aggTaker.Add(trade.Symbol, entry)
	for _, evt := range o.cumTaker.Check(trade.Symbol, observedAt) {
		o.handle(o.suppressorTaker, evt)
	}

	o.aggLarge.Add(trade.Symbol, entry)
	for _, evt := range o.cumLarge.Check(trade.Symbol, observedAt) {
		o.handle(o.suppressorLarge, evt)
	}
}

func (o *Orchestrator) handle(s *suppress.Suppressor, evt model.ThresholdEvent) {
	admitted, ok := s.Admit(evt)
	if !ok {
		return
	}
	o.dispatcher.Enqueue(admitted)
}

func (o *Orchestrator) raiseAdmin(severity model.ErrorSeverity, message string) {
	text := notify.RenderAdmin(string(severity), message, time.Now())
	for _, recipient := range o.sink.Whitelist() {
		if err := o.sink.Send(recipient, text); err != nil {
			logger.Error("admin alert delivery failed", "recipient", recipient, "error", err)
		}
	}
	if o.archive != nil {
		_ = o.archive.WriteAlert(model.Alert{ID: uuid.NewString(), RenderedMessage: text, EnqueuedAt: time.Now()})
	}
}

// Run starts every long-lived task and blocks until ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context) error {
	logger.Info("starting surveillance engine", "symbols", o.cfg.Symbols)

	go o.dispatcher.Run(ctx)
	go func() {
		if err := o.ingestor.Start(ctx); err != nil {
			logger.Warn("initial connection failed, recovery manager will retry", "error", err)
		}
	}()

	cleanupTicker := time.NewTicker(o.cleanupInterval)
	defer cleanupTicker.Stop()
	healthTicker := time.NewTicker(healthProbeInterval)
	defer healthTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			o.ingestor.Stop()
			<-o.dispatcher.Done()
			if o.archive != nil {
				_ = o.archive.Close()
			}
			return ctx.Err()

		case <-cleanupTicker.C:
			for _, symbol := range o.cfg.Symbols {
				o.aggTaker.Evict(symbol)
				o.aggLarge.Evict(symbol)
			}

		case <-healthTicker.C:
			logger.Info("health probe",
				"uptime_ratio", fmt.Sprintf("%.4f", o.recovery.UptimeRatio()),
				"consecutive_failures", o.recovery.ConsecutiveFailures(),
				"suppressed_taker", o.suppressorTaker.Suppressed(),
				"suppressed_large_order", o.suppressorLarge.Suppressed(),
				"dropped", o.dispatcher.Dropped(),
				"connection_state", o.ingestor.State(),
			)
		}
	}
}

// cleanupCadence scales the periodic eviction cadence to window size,
// per spec §5: larger windows evict less frequently, within [60s,600s].
func cleanupCadence(window time.Duration) time.Duration {
	cadence := window / 5
	if cadence < 60*time.Second {
		return 60 * time.Second
	}
	if cadence > 600*time.Second {
		return 600 * time.Second
	}
	return cadence
}
