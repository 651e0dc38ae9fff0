// Package aggregate implements the SlidingAggregator of component 5:
// a per-symbol deque of WindowEntry, evicted against wall-clock time
// so inactive windows expire even without new trades.
package aggregate

import (
	"container/list"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"grid-trading-btc-binance/internal/model"
)

// Summary is the read-side view of one symbol's current window. Count
// is side-scoped via BuyCount/SellCount so a 5-order BUY threshold is
// never satisfied by 3 BUY + 2 SELL entries sharing one deque — the
// spec's "separate deques per side" requirement is met by tracking
// per-side counts over a single combined deque instead of keeping two
// physical lists, which also keeps the totalUsd = buyUsd + sellUsd
// invariant trivially true by construction.
type Summary struct {
	Count     int
	BuyCount  int
	SellCount int
	TotalUsd  decimal.Decimal
	BuyUsd    decimal.Decimal
	SellUsd   decimal.Decimal
	OldestTs  int64
	NewestTs  int64
}

// CountFor returns the side-scoped count the CumulativeDetector checks.
func (s Summary) CountFor(side model.Side) int {
	if side == model.SideBuy {
		return s.BuyCount
	}
	return s.SellCount
}

// UsdFor returns the side-scoped USD total the CumulativeDetector checks.
func (s Summary) UsdFor(side model.Side) decimal.Decimal {
	if side == model.SideBuy {
		return s.BuyUsd
	}
	return s.SellUsd
}

type symbolWindow struct {
	mu      sync.Mutex
	entries *list.List // front = oldest
	window  time.Duration
}

// Aggregator holds one deque per symbol. It is safe for concurrent
// use, but the specification's concurrency model calls for it to be
// mutated only from the WS receive loop — the lock exists for the
// rare case a reset arrives from the Dispatcher's delivery callback.
type Aggregator struct {
	mu      sync.Mutex
	windows map[string]*symbolWindow
	window  time.Duration
	now     func() time.Time
}

// New builds an Aggregator with the given window duration (1–1440
// minutes is the spec's accepted range; callers validate that at
// configuration time).
func New(window time.Duration) *Aggregator {
	return &Aggregator{
		windows: make(map[string]*symbolWindow),
		window:  window,
		now:     time.Now,
	}
}

// NewWithClock builds an Aggregator driven by a caller-supplied clock,
// used in tests to simulate time advancing past the window boundary
// without real sleeps.
func NewWithClock(window time.Duration, now func() time.Time) *Aggregator {
	a := New(window)
	a.now = now
	return a
}

func (a *Aggregator) windowFor(symbol string) *symbolWindow {
	a.mu.Lock()
	defer a.mu.Unlock()

	w, ok := a.windows[symbol]
	if !ok {
		w = &symbolWindow{entries: list.New(), window: a.window}
		a.windows[symbol] = w
	}
	return w
}

// Add appends entry to symbol's deque, then evicts every head entry
// whose TradeTime has fallen behind now()-window. Out-of-order trades
// (a TradeTime lower than the current tail) are appended unchanged;
// the aggregator never re-sorts.
func (a *Aggregator) Add(symbol string, entry model.WindowEntry) {
	w := a.windowFor(symbol)
	now := a.now()

	w.mu.Lock()
	defer w.mu.Unlock()

	w.entries.PushBack(entry)
	evictLocked(w, now)
}

// Evict runs eviction against the current wall clock without
// requiring a new trade — used by the periodic cleanup task so idle
// windows still shrink.
func (a *Aggregator) Evict(symbol string) {
	w := a.windowFor(symbol)
	now := a.now()

	w.mu.Lock()
	defer w.mu.Unlock()
	evictLocked(w, now)
}

// evictLocked drops head entries older than the window. Caller holds w.mu.
func evictLocked(w *symbolWindow, now time.Time) {
	cutoff := now.Add(-w.window)
	for e := w.entries.Front(); e != nil; {
		next := e.Next()
		entry := e.Value.(model.WindowEntry)
		entryTime := time.UnixMilli(entry.TradeTime)
		if entryTime.Before(cutoff) {
			w.entries.Remove(e)
			e = next
			continue
		}
		break
	}
}

// Summary reports the current window's aggregate statistics for symbol.
func (a *Aggregator) Summary(symbol string) Summary {
	w := a.windowFor(symbol)
	now := a.now()

	w.mu.Lock()
	defer w.mu.Unlock()
	evictLocked(w, now)

	return summaryLocked(w)
}

func summaryLocked(w *symbolWindow) Summary {
	s := Summary{
		TotalUsd: decimal.Zero,
		BuyUsd:   decimal.Zero,
		SellUsd:  decimal.Zero,
	}
	for e := w.entries.Front(); e != nil; e = e.Next() {
		entry := e.Value.(model.WindowEntry)
		s.Count++
		s.TotalUsd = s.TotalUsd.Add(entry.UsdValue)
		if entry.Side == model.SideBuy {
			s.BuyUsd = s.BuyUsd.Add(entry.UsdValue)
			s.BuyCount++
		} else {
			s.SellUsd = s.SellUsd.Add(entry.UsdValue)
			s.SellCount++
		}
		if s.OldestTs == 0 || entry.TradeTime < s.OldestTs {
			s.OldestTs = entry.TradeTime
		}
		if entry.TradeTime > s.NewestTs {
			s.NewestTs = entry.TradeTime
		}
	}
	return s
}

// Reset clears only side's entries from symbol's deque, leaving the
// opposite side's window untouched. Advisory — called by the
// Dispatcher on successful CUMULATIVE delivery when configured to do
// so (spec §4.7); never required for correctness.
func (a *Aggregator) Reset(symbol string, side model.Side) {
	w := a.windowFor(symbol)
	w.mu.Lock()
	defer w.mu.Unlock()

	for e := w.entries.Front(); e != nil; {
		next := e.Next()
		if e.Value.(model.WindowEntry).Side == side {
			w.entries.Remove(e)
		}
		e = next
	}
}
