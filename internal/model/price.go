package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExchangeRate is a cached quote->USD conversion rate.
type ExchangeRate struct {
	Quote     string
	Rate      decimal.Decimal
	FetchedAt time.Time
	TTL       time.Duration
}

// Valid reports whether the rate is still within its TTL as of now.
func (r ExchangeRate) Valid(now time.Time) bool {
	return now.Sub(r.FetchedAt) < r.TTL
}

// WindowEntry is one admitted trade inside a SlidingAggregator's
// deque. Its lifetime runs from insertion until TradeTime falls more
// than the window duration behind wall-clock now.
type WindowEntry struct {
	TradeTime int64
	UsdValue  decimal.Decimal
	Side      Side
}
