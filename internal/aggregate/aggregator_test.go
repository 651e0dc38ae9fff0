package aggregate

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"grid-trading-btc-binance/internal/model"
)

func usd(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func TestTotalEqualsBuyPlusSell(t *testing.T) {
	base := time.UnixMilli(1_700_000_000_000)
	clock := base
	a := NewWithClock(time.Minute, func() time.Time { return clock })

	a.Add("BTCUSDT", model.WindowEntry{TradeTime: base.UnixMilli(), UsdValue: usd(100), Side: model.SideBuy})
	a.Add("BTCUSDT", model.WindowEntry{TradeTime: base.UnixMilli() + 1000, UsdValue: usd(50), Side: model.SideSell})

	s := a.Summary("BTCUSDT")
	assert.True(t, s.TotalUsd.Equal(s.BuyUsd.Add(s.SellUsd)))
	assert.Equal(t, 2, s.Count)
	assert.Equal(t, 1, s.BuyCount)
	assert.Equal(t, 1, s.SellCount)
}

func TestEvictionAfterWindowElapses(t *testing.T) {
	base := time.UnixMilli(1_700_000_000_000)
	clock := base
	a := NewWithClock(time.Minute, func() time.Time { return clock })

	for i := 0; i < 5; i++ {
		a.Add("ETHUSDT", model.WindowEntry{TradeTime: base.UnixMilli() + int64(i*1000), UsdValue: usd(10), Side: model.SideBuy})
	}
	assert.Equal(t, 5, a.Summary("ETHUSDT").Count)

	// The newest entry carries TradeTime base+4s, so the window must
	// elapse past that point.
	clock = base.Add(4*time.Second + time.Minute + time.Second)
	s := a.Summary("ETHUSDT")
	assert.Equal(t, 0, s.Count, "all entries must be evicted once window + epsilon has elapsed")
}

func TestOutOfOrderTradesAreAcceptedNotResorted(t *testing.T) {
	base := time.UnixMilli(1_700_000_000_000)
	clock := base
	a := NewWithClock(time.Minute, func() time.Time { return clock })

	a.Add("BTCUSDT", model.WindowEntry{TradeTime: base.UnixMilli() + 5000, UsdValue: usd(1), Side: model.SideBuy})
	a.Add("BTCUSDT", model.WindowEntry{TradeTime: base.UnixMilli() + 1000, UsdValue: usd(2), Side: model.SideBuy})

	s := a.Summary("BTCUSDT")
	assert.Equal(t, 2, s.Count, "out-of-order trade is appended, not dropped")
}

func TestSideScopedCountDoesNotMixBuyAndSell(t *testing.T) {
	base := time.UnixMilli(1_700_000_000_000)
	clock := base
	a := NewWithClock(time.Minute, func() time.Time { return clock })

	a.Add("BTCUSDT", model.WindowEntry{TradeTime: base.UnixMilli(), UsdValue: usd(1), Side: model.SideBuy})
	a.Add("BTCUSDT", model.WindowEntry{TradeTime: base.UnixMilli(), UsdValue: usd(1), Side: model.SideBuy})
	a.Add("BTCUSDT", model.WindowEntry{TradeTime: base.UnixMilli(), UsdValue: usd(1), Side: model.SideBuy})
	a.Add("BTCUSDT", model.WindowEntry{TradeTime: base.UnixMilli(), UsdValue: usd(1), Side: model.SideSell})
	a.Add("BTCUSDT", model.WindowEntry{TradeTime: base.UnixMilli(), UsdValue: usd(1), Side: model.SideSell})

	s := a.Summary("BTCUSDT")
	assert.Equal(t, 3, s.CountFor(model.SideBuy))
	assert.Equal(t, 2, s.CountFor(model.SideSell))
}

func TestResetClearsOnlyTheGivenSide(t *testing.T) {
	base := time.UnixMilli(1_700_000_000_000)
	a := NewWithClock(time.Minute, func() time.Time { return base })

	a.Add("BTCUSDT", model.WindowEntry{TradeTime: base.UnixMilli(), UsdValue: usd(1), Side: model.SideBuy})
	a.Add("BTCUSDT", model.WindowEntry{TradeTime: base.UnixMilli(), UsdValue: usd(1), Side: model.SideSell})
	a.Reset("BTCUSDT", model.SideBuy)

	s := a.Summary("BTCUSDT")
	assert.Equal(t, 0, s.CountFor(model.SideBuy), "reset side must be cleared")
	assert.Equal(t, 1, s.CountFor(model.SideSell), "opposite side must survive a same-symbol reset")
}
