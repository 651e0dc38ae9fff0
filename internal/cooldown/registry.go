// Package cooldown implements the CooldownRegistry of component 3:
// per-key, time-based suppression with lazy expiry on query.
package cooldown

import (
	"sync"
	"time"

	"grid-trading-btc-binance/internal/model"
)

// Registry tracks, per model.CooldownKey, the instant a cooldown
// expires. Keys are never actively swept — InCooldown expires a stale
// entry the moment it is queried.
type Registry struct {
	mu      sync.Mutex
	expires map[model.CooldownKey]time.Time
}

// New builds an empty Registry.
func New() *Registry {
	return &Registry{
		expires: make(map[model.CooldownKey]time.Time),
	}
}

// InCooldown reports whether key is still suppressed as of now. A
// cooldown of 0 (Mark never called with a positive duration) means
// the key is never found in the map, so suppression is effectively
// disabled.
func (r *Registry) InCooldown(key model.CooldownKey) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	until, ok := r.expires[key]
	if !ok {
		return false
	}
	if !time.Now().Before(until) {
		delete(r.expires, key)
		return false
	}
	return true
}

// Mark starts (or restarts) the cooldown for key, expiring after
// duration. A non-positive duration clears any existing cooldown,
// which is how a cooldown of 0 disables suppression for that key.
func (r *Registry) Mark(key model.CooldownKey, duration time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if duration <= 0 {
		delete(r.expires, key)
		return
	}
	r.expires[key] = time.Now().Add(duration)
}
