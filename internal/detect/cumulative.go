package detect

import (
	"time"

	"github.com/shopspring/decimal"

	"grid-trading-btc-binance/internal/aggregate"
	"grid-trading-btc-binance/internal/model"
)

// CumulativeConfig parameterizes one CumulativeDetector instance. Two
// instances with different parameters (e.g. a "taker" 60s flavour and
// a "large-order" 5-minute flavour) may coexist against the same or
// different Aggregators — the spec leaves the true window intent
// unresolved, so nothing here embeds a default (DESIGN.md decision 2).
type CumulativeConfig struct {
	MinOrders    int
	ThresholdUsd decimal.Decimal
	Window       time.Duration
}

// CumulativeDetector is invoked after every aggregator update and
// checks, per (symbol, side), whether the side-scoped count and USD
// total both cross their configured thresholds.
type CumulativeDetector struct {
	cfg        CumulativeConfig
	aggregator *aggregate.Aggregator
}

// NewCumulativeDetector builds a CumulativeDetector reading from agg.
func NewCumulativeDetector(cfg CumulativeConfig, agg *aggregate.Aggregator) *CumulativeDetector {
	return &CumulativeDetector{cfg: cfg, aggregator: agg}
}

// Check evaluates both sides of symbol's current window and returns
// every ThresholdEvent that crosses. If both BUY and SELL cross in the
// same tick, both are returned — they are independently suppressed
// downstream.
func (d *CumulativeDetector) Check(symbol string, observedAt time.Time) []model.ThresholdEvent {
	summary := d.aggregator.Summary(symbol)

	var events []model.ThresholdEvent
	for _, side := range []model.Side{model.SideBuy, model.SideSell} {
		count := summary.CountFor(side)
		usd := summary.UsdFor(side)
		if count >= d.cfg.MinOrders && usd.GreaterThanOrEqual(d.cfg.ThresholdUsd) {
			events = append(events, model.ThresholdEvent{
				Kind:           model.ThresholdCumulative,
				Symbol:         symbol,
				Side:           side,
				TotalUsd:       summary.TotalUsd,
				BuyUsd:         summary.BuyUsd,
				SellUsd:        summary.SellUsd,
				TradeCount:     count,
				WindowDuration: d.cfg.Window,
				ObservedAt:     observedAt,
			})
		}
	}
	return events
}
