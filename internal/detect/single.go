// Package detect implements the two threshold detectors: SingleDetector
// (component 6, per-trade) and CumulativeDetector (component 7,
// per-window). Both are pure and synchronous — no I/O, called directly
// from the WS receive loop.
package detect

import (
	"time"

	"github.com/shopspring/decimal"

	"grid-trading-btc-binance/internal/model"
)

// SingleConfig maps a monitored symbol to its quantity threshold.
// Symbols absent from the map are not monitored.
type SingleConfig struct {
	Thresholds map[string]decimal.Decimal
}

// SingleDetector emits a SINGLE ThresholdEvent when a taker trade's
// quantity crosses its symbol's configured threshold.
type SingleDetector struct {
	cfg SingleConfig
}

// NewSingleDetector builds a SingleDetector from per-symbol quantity
// thresholds.
func NewSingleDetector(cfg SingleConfig) *SingleDetector {
	return &SingleDetector{cfg: cfg}
}

// Check evaluates one trade and returns the ThresholdEvent to forward,
// or ok=false if the symbol is unmonitored or the threshold was not met.
// Equality triggers (>=, not >).
func (d *SingleDetector) Check(trade model.TradeEvent) (model.ThresholdEvent, bool) {
	threshold, monitored := d.cfg.Thresholds[trade.Symbol]
	if !monitored {
		return model.ThresholdEvent{}, false
	}
	if trade.Quantity.LessThan(threshold) {
		return model.ThresholdEvent{}, false
	}

	evt := model.ThresholdEvent{
		Kind:           model.ThresholdSingle,
		Exchange:       trade.Exchange,
		Symbol:         trade.Symbol,
		Side:           trade.Side,
		TotalUsd:       trade.Amount,
		TradeCount:     1,
		WindowDuration: 0,
		ObservedAt:     time.UnixMilli(trade.TradeTime),
	}
	if trade.Side == model.SideBuy {
		evt.BuyUsd = trade.Amount
		evt.SellUsd = decimal.Zero
	} else {
		evt.SellUsd = trade.Amount
		evt.BuyUsd = decimal.Zero
	}
	return evt, true
}
