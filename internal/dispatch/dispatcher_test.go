package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"grid-trading-btc-binance/internal/model"
	"grid-trading-btc-binance/internal/ratelimit"
)

type fakeSink struct {
	mu        sync.Mutex
	sent      []string
	whitelist []string
	failNext  int
}

func (f *fakeSink) Whitelist() []string { return f.whitelist }

func (f *fakeSink) Send(recipient, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext > 0 {
		f.failNext--
		return errors.New("send failed")
	}
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeSink) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func renderStub(evt model.ThresholdEvent) string {
	return string(evt.Kind) + " " + evt.Symbol
}

func event(symbol string) model.ThresholdEvent {
	return model.ThresholdEvent{Kind: model.ThresholdCumulative, Symbol: symbol, Side: model.SideBuy, TotalUsd: decimal.NewFromInt(1)}
}

func TestDispatcherDeliversWithinRateLimit(t *testing.T) {
	sink := &fakeSink{whitelist: []string{"room1"}}
	limiter := ratelimit.New(2, time.Minute)
	d := New(sink, renderStub, limiter)

	ctx, cancel := context.WithCancel(context.Background())
	go d.Run(ctx)

	d.Enqueue(event("BTCUSDT"))
	d.Enqueue(event("ETHUSDT"))

	assert.Eventually(t, func() bool { return sink.sentCount() == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	<-d.Done()
}

func TestDispatcherDropsOldestOnOverflow(t *testing.T) {
	sink := &fakeSink{whitelist: []string{"room1"}}
	limiter := ratelimit.New(1000, time.Minute)
	d := New(sink, renderStub, limiter, WithQueueCap(2))

	// Don't start Run — we want the queue itself to overflow.
	d.Enqueue(event("A"))
	d.Enqueue(event("B"))
	d.Enqueue(event("C"))

	assert.Equal(t, int64(1), d.Dropped())
}

func TestDispatcherDoesNotDeliverFailedAlertBeforeRetryDelay(t *testing.T) {
	sink := &fakeSink{whitelist: []string{"room1"}, failNext: 2}
	limiter := ratelimit.New(1000, time.Minute)
	d := New(sink, renderStub, limiter)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	d.Enqueue(event("BTCUSDT"))

	// First send fails, retried after 10s in production; the retry
	// delay constant is fixed, so we assert nothing was ever sent
	// within a short window instead of waiting out the real delay.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, sink.sentCount())
}

func TestDispatcherResetOnDeliverFiresForCumulativeOnly(t *testing.T) {
	sink := &fakeSink{whitelist: []string{"room1"}}
	limiter := ratelimit.New(1000, time.Minute)

	var resetCalls []model.ThresholdEvent
	d := New(sink, renderStub, limiter, WithResetOnDeliver(true, func(evt model.ThresholdEvent) {
		resetCalls = append(resetCalls, evt)
	}))

	ctx, cancel := context.WithCancel(context.Background())
	go d.Run(ctx)

	single := event("ETHUSDT")
	single.Kind = model.ThresholdSingle

	d.Enqueue(event("BTCUSDT"))
	d.Enqueue(single)
	assert.Eventually(t, func() bool { return sink.sentCount() == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	<-d.Done()
	assert.Len(t, resetCalls, 1)
	assert.Equal(t, model.ThresholdCumulative, resetCalls[0].Kind)
}
