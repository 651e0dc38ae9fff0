package price

import (
	"context"
	"fmt"

	"github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"
)

// BinanceRateFetcher resolves a quote asset's USD rate via the
// exchange's public REST ticker-price endpoint (spec §6's "REST rate
// fetch (fallback)"), using go-binance's typed client instead of a
// hand-rolled HTTP call — the teacher already depends on this module
// for its own REST surface (account info, klines).
type BinanceRateFetcher struct {
	client *binance.Client
}

// NewBinanceRateFetcher builds a fetcher against the public REST API;
// no API key is required for ticker-price reads.
func NewBinanceRateFetcher() *BinanceRateFetcher {
	return &BinanceRateFetcher{client: binance.NewClient("", "")}
}

// FetchUSDRate fetches quote->USD via the quote's USDT ticker, treating
// USDT as a USD proxy the same way the converter treats it as a
// no-network stable quote.
func (f *BinanceRateFetcher) FetchUSDRate(ctx context.Context, quote string) (decimal.Decimal, error) {
	symbol := quote + "USDT"
	prices, err := f.client.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("fetch ticker price for %s: %w", symbol, err)
	}
	if len(prices) == 0 {
		return decimal.Zero, fmt.Errorf("no ticker price returned for %s", symbol)
	}
	rate, err := decimal.NewFromString(prices[0].Price)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse ticker price %q: %w", prices[0].Price, err)
	}
	return rate, nil
}
