// Package price implements the PriceConverter of component 4: turn a
// (symbol, price, quantity) trade into a USD amount, using a cached
// quote->USD rate and falling back to a REST fetch for non-stable
// quote assets.
package price

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"grid-trading-btc-binance/internal/logger"
	"grid-trading-btc-binance/internal/model"
)

// RateFetcher resolves a quote asset's current USD rate. The concrete
// implementation (binance.go) wraps go-binance's REST ticker-price
// service; tests supply a stub.
type RateFetcher interface {
	FetchUSDRate(ctx context.Context, quote string) (decimal.Decimal, error)
}

// OnConvertError is invoked whenever a background rate fetch fails and
// the quote stays on the zero sentinel. The Orchestrator's callback
// logs the failure at WARN; it is not entered in the RecoveryManager's
// error buffer.
type OnConvertError func(quote string, err error)

// Converter converts trade quantities into USD using cached rates.
// The hot path (ToUSD for a stable quote, or a cache hit) never
// touches the network; a cache miss on a non-stable quote returns the
// zero sentinel immediately and schedules a background refresh rather
// than blocking the caller — the spec's first-listed option for
// keeping the receive loop I/O-free (§5).
type Converter struct {
	ttl     time.Duration
	fetcher RateFetcher
	onError OnConvertError

	mu    sync.RWMutex
	cache map[string]model.ExchangeRate

	inflight sync.Map // quote -> struct{}, dedupes concurrent background refreshes
}

// New builds a Converter with the given cache TTL and REST fallback fetcher.
func New(ttl time.Duration, fetcher RateFetcher, onError OnConvertError) *Converter {
	if onError == nil {
		onError = func(string, error) {}
	}
	return &Converter{
		ttl:     ttl,
		fetcher: fetcher,
		onError: onError,
		cache:   make(map[string]model.ExchangeRate),
	}
}

// ToUSD converts price*quantity into USD. A converted value of 0 must
// never contribute to any aggregate or detector — callers are expected
// to skip a trade whose ToUSD result is zero, per spec §4.3.
func (c *Converter) ToUSD(symbol string, p, qty decimal.Decimal) decimal.Decimal {
	_, quote := SplitSymbol(symbol)

	if IsStableQuote(quote) {
		return p.Mul(qty)
	}

	rate, ok := c.cachedRate(quote)
	if !ok {
		c.refreshInBackground(quote)
		return decimal.Zero
	}
	return p.Mul(qty).Mul(rate.Rate)
}

// ToUSDBatch converts a slice of trades independently; a failure on
// one entry never poisons the others.
func (c *Converter) ToUSDBatch(trades []model.TradeEvent) []decimal.Decimal {
	out := make([]decimal.Decimal, len(trades))
	for i, tr := range trades {
		out[i] = c.ToUSD(tr.Symbol, tr.Price, tr.Quantity)
	}
	return out
}

func (c *Converter) cachedRate(quote string) (model.ExchangeRate, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rate, ok := c.cache[quote]
	if !ok || !rate.Valid(time.Now()) {
		return model.ExchangeRate{}, false
	}
	return rate, true
}

func (c *Converter) refreshInBackground(quote string) {
	if c.fetcher == nil {
		return
	}
	if _, already := c.inflight.LoadOrStore(quote, struct{}{}); already {
		return
	}

	go func() {
		defer c.inflight.Delete(quote)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		rate, err := c.fetcher.FetchUSDRate(ctx, quote)
		if err != nil {
			logger.Warn("price rate fetch failed", "quote", quote, "error", err)
			c.onError(quote, err)
			return
		}

		c.mu.Lock()
		c.cache[quote] = model.ExchangeRate{
			Quote:     quote,
			Rate:      rate,
			FetchedAt: time.Now(),
			TTL:       c.ttl,
		}
		c.mu.Unlock()
	}()
}
