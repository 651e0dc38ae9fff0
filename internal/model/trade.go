// Package model defines the closed record types that flow through the
// surveillance pipeline: TradeEvent in, Alert out, with ThresholdEvent
// and ConnectionState as the internal shapes in between.
package model

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Side is the taker side of a trade.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// SideFromBuyerIsMaker derives the taker side from the venue's
// buyer-is-maker flag: buyer-is-maker means the resting order was a
// buy, so the taker crossed it by selling.
func SideFromBuyerIsMaker(buyerIsMaker bool) Side {
	if buyerIsMaker {
		return SideSell
	}
	return SideBuy
}

// TradeEvent is the immutable value emitted by the Ingestor for every
// taker trade. Non-taker (maker-initiated) matches must never reach
// this type — they are filtered upstream.
type TradeEvent struct {
	Exchange  string
	Symbol    string
	Side      Side
	Price     decimal.Decimal
	Quantity  decimal.Decimal
	Amount    decimal.Decimal // Price * Quantity, quote-asset denominated
	TradeTime int64           // venue-supplied millisecond timestamp
	TradeID   string
}

// NewTradeEvent builds a TradeEvent, computing Amount and validating
// the invariants from the data model: positive price/quantity and a
// known side.
func NewTradeEvent(exchange, symbol string, side Side, price, quantity decimal.Decimal, tradeTime int64, tradeID string) (TradeEvent, error) {
	if price.Sign() <= 0 {
		return TradeEvent{}, fmt.Errorf("trade %s: price must be positive, got %s", tradeID, price)
	}
	if quantity.Sign() <= 0 {
		return TradeEvent{}, fmt.Errorf("trade %s: quantity must be positive, got %s", tradeID, quantity)
	}
	if side != SideBuy && side != SideSell {
		return TradeEvent{}, fmt.Errorf("trade %s: side must be BUY or SELL, got %q", tradeID, side)
	}
	return TradeEvent{
		Exchange:  exchange,
		Symbol:    symbol,
		Side:      side,
		Price:     price,
		Quantity:  quantity,
		Amount:    price.Mul(quantity),
		TradeTime: tradeTime,
		TradeID:   tradeID,
	}, nil
}
