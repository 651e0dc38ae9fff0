package dispatch

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"grid-trading-btc-binance/internal/logger"
	"grid-trading-btc-binance/internal/model"
	"grid-trading-btc-binance/internal/ratelimit"
)

// RenderFunc turns a ThresholdEvent into the text a Sink will deliver.
// Rendering happens at Enqueue time, not at send time, so the message
// reflects the world when the threshold was crossed (spec §4.8).
type RenderFunc func(model.ThresholdEvent) string

// OnDelivered is invoked after a successful send. The Orchestrator
// wires this to reset the relevant aggregator's (symbol, side) window
// for CUMULATIVE alerts, when ResetOnDeliver is configured — always
// advisory, never required for correctness (spec §4.7).
type OnDelivered func(evt model.ThresholdEvent)

const (
	defaultQueueCap  = 1024
	retryDelay       = 10 * time.Second
	defaultDrainWait = 5 * time.Second
)

type queued struct {
	alert    model.Alert
	attempts int
}

// Dispatcher owns the pending-alert queue. It is an MPSC structure:
// many producers (the Suppressor, the internal retry path) push,
// exactly one consumer goroutine (Run) drains it.
type Dispatcher struct {
	sink    Sink
	render  RenderFunc
	limiter *ratelimit.Limiter

	resetOnDeliver bool
	onDelivered    OnDelivered

	drainOnStop   bool
	drainDeadline time.Duration

	mu      sync.Mutex
	queue   *list.List
	cap     int
	dropped atomic.Int64

	wake chan struct{}
	done chan struct{}
}

// Option configures optional Dispatcher behaviour.
type Option func(*Dispatcher)

// WithQueueCap overrides the default soft cap of 1024.
func WithQueueCap(n int) Option {
	return func(d *Dispatcher) { d.cap = n }
}

// WithResetOnDeliver wires the aggregator-reset callback for delivered
// CUMULATIVE alerts (DESIGN.md decision 3).
func WithResetOnDeliver(enabled bool, cb OnDelivered) Option {
	return func(d *Dispatcher) {
		d.resetOnDeliver = enabled
		d.onDelivered = cb
	}
}

// WithDrainOnStop configures the cancellation-time drain behaviour:
// drain every queued alert (bounded by deadline) versus dropping
// pending work immediately (spec §5).
func WithDrainOnStop(enabled bool, deadline time.Duration) Option {
	return func(d *Dispatcher) {
		d.drainOnStop = enabled
		d.drainDeadline = deadline
	}
}

// New builds a Dispatcher sending through sink, rendering with render,
// admitting sends through limiter.
func New(sink Sink, render RenderFunc, limiter *ratelimit.Limiter, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		sink:          sink,
		render:        render,
		limiter:       limiter,
		cap:           defaultQueueCap,
		drainOnStop:   true,
		drainDeadline: defaultDrainWait,
		queue:         list.New(),
		wake:          make(chan struct{}, 1),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Enqueue renders evt and appends the resulting Alert to the queue. If
// the queue is at its soft cap, the oldest entry is dropped to make
// room and the dropped counter increments.
func (d *Dispatcher) Enqueue(evt model.ThresholdEvent) {
	alert := model.Alert{
		ID:              uuid.NewString(),
		ThresholdEvent:  evt,
		RenderedMessage: d.render(evt),
		EnqueuedAt:      time.Now(),
	}

	d.mu.Lock()
	if d.queue.Len() >= d.cap {
		d.queue.Remove(d.queue.Front())
		d.dropped.Add(1)
	}
	d.queue.PushBack(queued{alert: alert})
	d.mu.Unlock()

	d.signal()
}

func (d *Dispatcher) signal() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *Dispatcher) popFront() (queued, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	e := d.queue.Front()
	if e == nil {
		return queued{}, false
	}
	d.queue.Remove(e)
	return e.Value.(queued), true
}

func (d *Dispatcher) pushFront(item queued) {
	d.mu.Lock()
	d.queue.PushFront(item)
	d.mu.Unlock()
	d.signal()
}

// Dropped returns the running count of alerts dropped for overflow.
func (d *Dispatcher) Dropped() int64 { return d.dropped.Load() }

// Run drains the queue until ctx is cancelled. Exactly one goroutine
// should call Run.
func (d *Dispatcher) Run(ctx context.Context) {
	defer close(d.done)

	for {
		item, ok := d.popFront()
		if !ok {
			select {
			case <-ctx.Done():
				if d.drainOnStop {
					d.drainRemaining()
				}
				return
			case <-d.wake:
			case <-time.After(200 * time.Millisecond):
			}
			continue
		}
		d.deliverWithRateLimit(ctx, item)
	}
}

// Done signals Run has returned.
func (d *Dispatcher) Done() <-chan struct{} { return d.done }

func (d *Dispatcher) drainRemaining() {
	deadline := time.Now().Add(d.drainDeadline)
	for time.Now().Before(deadline) {
		item, ok := d.popFront()
		if !ok {
			return
		}
		d.deliver(item)
	}
}

func (d *Dispatcher) deliverWithRateLimit(ctx context.Context, item queued) {
	for !d.limiter.TryAcquire() {
		wait := time.Until(d.limiter.NextAdmissionAt())
		if wait < 0 {
			wait = 0
		}
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			d.pushFront(item)
			return
		}
	}
	d.deliver(item)
}

func (d *Dispatcher) deliver(item queued) {
	recipients := d.sink.Whitelist()
	delivered := false
	for _, recipient := range recipients {
		if err := d.sink.Send(recipient, item.alert.RenderedMessage); err != nil {
			logger.Error("sink send failed", "recipient", recipient, "alert_id", item.alert.ID, "error", err)
			continue
		}
		delivered = true
	}

	if delivered {
		if d.resetOnDeliver && d.onDelivered != nil && item.alert.ThresholdEvent.Kind == model.ThresholdCumulative {
			d.onDelivered(item.alert.ThresholdEvent)
		}
		return
	}

	if item.attempts >= 1 {
		logger.Error("dropping alert after retry failed", "alert_id", item.alert.ID)
		return
	}

	item.attempts++
	go func() {
		time.Sleep(retryDelay)
		d.pushFront(item)
	}()
}
