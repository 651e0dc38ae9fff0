package detect

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"grid-trading-btc-binance/internal/model"
)

func trade(symbol string, qty float64, side model.Side) model.TradeEvent {
	t, err := model.NewTradeEvent("binance", symbol, side, decimal.NewFromInt(100), decimal.NewFromFloat(qty), 1_700_000_000_000, "1")
	if err != nil {
		panic(err)
	}
	return t
}

func TestSingleDetectorFiresAtExactEquality(t *testing.T) {
	d := NewSingleDetector(SingleConfig{Thresholds: map[string]decimal.Decimal{
		"BTCUSDT": decimal.NewFromInt(50),
	}})

	_, ok := d.Check(trade("BTCUSDT", 49.99, model.SideBuy))
	assert.False(t, ok)

	evt, ok := d.Check(trade("BTCUSDT", 50, model.SideBuy))
	assert.True(t, ok)
	assert.Equal(t, model.ThresholdSingle, evt.Kind)
}

func TestSingleDetectorIgnoresUnmonitoredSymbols(t *testing.T) {
	d := NewSingleDetector(SingleConfig{Thresholds: map[string]decimal.Decimal{
		"BTCUSDT": decimal.NewFromInt(50),
	}})

	_, ok := d.Check(trade("ETHUSDT", 10_000, model.SideBuy))
	assert.False(t, ok)
}
