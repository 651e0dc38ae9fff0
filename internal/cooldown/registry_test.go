package cooldown

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"grid-trading-btc-binance/internal/model"
)

func key(side model.Side) model.CooldownKey {
	return model.CooldownKey{Kind: model.ThresholdCumulative, Symbol: "BTCUSDT", Side: side}
}

func TestMarkThenInCooldown(t *testing.T) {
	r := New()
	k := key(model.SideBuy)

	assert.False(t, r.InCooldown(k))
	r.Mark(k, 50*time.Millisecond)
	assert.True(t, r.InCooldown(k))

	time.Sleep(60 * time.Millisecond)
	assert.False(t, r.InCooldown(k), "cooldown must expire lazily on query")
}

func TestZeroDurationDisablesSuppression(t *testing.T) {
	r := New()
	k := key(model.SideSell)

	r.Mark(k, 0)
	assert.False(t, r.InCooldown(k))
}

func TestBuyAndSellCooldownsAreIndependent(t *testing.T) {
	r := New()
	buy, sell := key(model.SideBuy), key(model.SideSell)

	r.Mark(buy, time.Minute)
	assert.True(t, r.InCooldown(buy))
	assert.False(t, r.InCooldown(sell))
}
