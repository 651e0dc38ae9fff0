package suppress

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"grid-trading-btc-binance/internal/cooldown"
	"grid-trading-btc-binance/internal/model"
)

func cumEvent() model.ThresholdEvent {
	return model.ThresholdEvent{
		Kind:     model.ThresholdCumulative,
		Symbol:   "BTCUSDT",
		Side:     model.SideBuy,
		TotalUsd: decimal.NewFromInt(2_000_000),
	}
}

func TestSecondCrossingWithinCooldownIsSuppressed(t *testing.T) {
	s := New(cooldown.New(), Cooldowns{Cumulative: time.Minute})

	_, ok := s.Admit(cumEvent())
	assert.True(t, ok)

	_, ok = s.Admit(cumEvent())
	assert.False(t, ok)
	assert.Equal(t, int64(1), s.Suppressed())
}

func TestMarkHappensBeforeHandoffSoPendingDispatchIsSuppressed(t *testing.T) {
	// Marking before handoff is the same operation as Admit returning
	// ok=true — a caller that queues to the Dispatcher only after
	// Admit() has already marked the cooldown, so a crossing arriving
	// while that dispatch is still pending hits a hot cooldown.
	reg := cooldown.New()
	s := New(reg, Cooldowns{Cumulative: time.Minute})

	evt, ok := s.Admit(cumEvent())
	assert.True(t, ok)

	key := model.CooldownKey{Kind: evt.Kind, Symbol: evt.Symbol, Side: evt.Side}
	assert.True(t, reg.InCooldown(key), "cooldown must already be marked, not deferred until delivery")
}

func TestBuyAndSellSuppressIndependently(t *testing.T) {
	s := New(cooldown.New(), Cooldowns{Cumulative: time.Minute})

	buyEvt := cumEvent()
	sellEvt := cumEvent()
	sellEvt.Side = model.SideSell

	_, ok := s.Admit(buyEvt)
	assert.True(t, ok)
	_, ok = s.Admit(sellEvt)
	assert.True(t, ok, "SELL must not be suppressed by a BUY cooldown")
}
