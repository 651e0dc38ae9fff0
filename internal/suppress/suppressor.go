// Package suppress implements the Suppressor of component 8: the
// cooldown gate between detectors and the Dispatcher.
package suppress

import (
	"sync/atomic"
	"time"

	"grid-trading-btc-binance/internal/cooldown"
	"grid-trading-btc-binance/internal/model"
)

// Cooldowns maps a threshold kind to its configured suppression
// duration (SINGLE and CUMULATIVE cool down independently, per spec §4.7).
type Cooldowns struct {
	Single     time.Duration
	Cumulative time.Duration
}

func (c Cooldowns) forKind(kind model.ThresholdKind) time.Duration {
	if kind == model.ThresholdSingle {
		return c.Single
	}
	return c.Cumulative
}

// Suppressor drops a ThresholdEvent whose CooldownKey is still
// suppressed, and otherwise marks the cooldown *before* handing off to
// the Dispatcher — so a second crossing arriving while dispatch is
// pending is still caught.
type Suppressor struct {
	registry  *cooldown.Registry
	cooldowns Cooldowns

	suppressed atomic.Int64
}

// New builds a Suppressor backed by registry.
func New(registry *cooldown.Registry, cooldowns Cooldowns) *Suppressor {
	return &Suppressor{registry: registry, cooldowns: cooldowns}
}

// Admit returns the event unchanged with ok=true if it should proceed
// to the Dispatcher, or ok=false if it was suppressed.
func (s *Suppressor) Admit(evt model.ThresholdEvent) (model.ThresholdEvent, bool) {
	key := model.CooldownKey{Kind: evt.Kind, Symbol: evt.Symbol, Side: evt.Side}

	if s.registry.InCooldown(key) {
		s.suppressed.Add(1)
		return model.ThresholdEvent{}, false
	}

	s.registry.Mark(key, s.cooldowns.forKind(evt.Kind))
	return evt, true
}

// Suppressed returns the running count of dropped events, for stats
// reporting by the Orchestrator.
func (s *Suppressor) Suppressed() int64 {
	return s.suppressed.Load()
}
