package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ThresholdKind distinguishes the two detector flavours.
type ThresholdKind string

const (
	ThresholdSingle     ThresholdKind = "SINGLE"
	ThresholdCumulative ThresholdKind = "CUMULATIVE"
)

// ThresholdEvent is the internal shape passed from a detector to the
// Suppressor. It never reaches the Sink directly — the Suppressor
// decides whether it becomes an Alert.
type ThresholdEvent struct {
	Kind           ThresholdKind
	Exchange       string
	Symbol         string
	Side           Side
	TotalUsd       decimal.Decimal
	BuyUsd         decimal.Decimal
	SellUsd        decimal.Decimal
	TradeCount     int
	WindowDuration time.Duration
	ObservedAt     time.Time
}

// CooldownKey scopes suppression: kind, symbol, and side each suppress
// independently.
type CooldownKey struct {
	Kind   ThresholdKind
	Symbol string
	Side   Side
}

// Alert is everything a ThresholdEvent carries plus the rendered
// message the Dispatcher hands to the Sink. Rendering happens at
// enqueue time so the message reflects the world when the threshold
// was crossed, not when it is finally sent.
type Alert struct {
	ID              string
	ThresholdEvent  ThresholdEvent
	RenderedMessage string
	EnqueuedAt      time.Time
}
