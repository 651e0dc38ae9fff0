package recovery

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"grid-trading-btc-binance/internal/model"
)

type fakeRestartable struct {
	restarts  atomic.Int64
	failed    atomic.Bool
	restartErr error
}

func (f *fakeRestartable) Restart() error {
	f.restarts.Add(1)
	return f.restartErr
}

func (f *fakeRestartable) MarkFailed() {
	f.failed.Store(true)
}

func TestNotifySuccessResetsConsecutiveFailures(t *testing.T) {
	r := &fakeRestartable{}
	m := New(Config{Base: time.Millisecond, Max: 10 * time.Millisecond, MaxAttempts: 5, CriticalThreshold: 2}, r, nil)

	m.NotifyFailure(errors.New("boom"), model.SeverityMedium)
	assert.Equal(t, 1, m.ConsecutiveFailures())

	m.NotifySuccess()
	assert.Equal(t, 0, m.ConsecutiveFailures())
}

func TestCriticalThresholdRaisesAdminAlertOnce(t *testing.T) {
	r := &fakeRestartable{}
	var alerts []model.ErrorSeverity
	m := New(Config{Base: time.Millisecond, Max: 10 * time.Millisecond, MaxAttempts: 10, CriticalThreshold: 2, AdminAlertCooldown: time.Hour}, r,
		func(severity model.ErrorSeverity, message string) { alerts = append(alerts, severity) })

	m.NotifyFailure(errors.New("a"), model.SeverityLow)
	m.NotifyFailure(errors.New("b"), model.SeverityLow)
	m.NotifyFailure(errors.New("c"), model.SeverityLow)

	assert.Equal(t, []model.ErrorSeverity{model.SeverityHigh}, alerts)
}

func TestMaxAttemptsExhaustedMarksTerminalAndStopsRetrying(t *testing.T) {
	r := &fakeRestartable{}
	m := New(Config{Base: time.Millisecond, Max: 10 * time.Millisecond, MaxAttempts: 2, CriticalThreshold: 1}, r, func(model.ErrorSeverity, string) {})

	m.NotifyFailure(errors.New("a"), model.SeverityLow)
	m.NotifyFailure(errors.New("b"), model.SeverityLow)

	assert.True(t, m.Terminal())
	assert.True(t, r.failed.Load())
}

func TestUptimeRatioIsOneWhenNeverDisconnected(t *testing.T) {
	m := New(Config{Base: time.Millisecond, Max: time.Second, MaxAttempts: 5, CriticalThreshold: 3}, &fakeRestartable{}, nil)
	assert.InDelta(t, 1.0, m.UptimeRatio(), 0.0001)
}

func TestResetClearsTerminalState(t *testing.T) {
	r := &fakeRestartable{}
	m := New(Config{Base: time.Millisecond, Max: 10 * time.Millisecond, MaxAttempts: 1, CriticalThreshold: 1}, r, func(model.ErrorSeverity, string) {})

	m.NotifyFailure(errors.New("a"), model.SeverityLow)
	assert.True(t, m.Terminal())

	m.Reset()
	assert.False(t, m.Terminal())
	assert.Equal(t, 0, m.ConsecutiveFailures())
}
