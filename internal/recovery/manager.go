// Package recovery implements the RecoveryManager of component 11:
// reconnect policy, error accounting, and admin alerting. It never
// holds a full reference to the Ingestor — only the narrow
// Restartable back-edge the Orchestrator wires in, breaking the cyclic
// reference called out in the spec's design notes.
package recovery

import (
	"fmt"
	"sync"
	"time"

	"github.com/jpillora/backoff"

	"grid-trading-btc-binance/internal/logger"
	"grid-trading-btc-binance/internal/model"
)

// Restartable is the back-edge the RecoveryManager holds instead of a
// full reference to the Ingestor.
type Restartable interface {
	// Restart attempts to reconnect. Errors are reported back through
	// NotifyFailure by the caller (the Ingestor), not returned here —
	// Restart itself runs the full connect sequence and drives its own
	// state transitions.
	Restart() error
	// MarkFailed transitions the Ingestor into the terminal FAILED
	// state once the RecoveryManager has exhausted its attempts.
	MarkFailed()
}

// Attempt records one reconnect attempt for the rolling ledger.
type Attempt struct {
	AttemptNumber int
	StartedAt     time.Time
	EndedAt       time.Time
	Success       bool
	Backoff       time.Duration
}

// ErrorRecord is one entry in the capped error buffer.
type ErrorRecord struct {
	Severity model.ErrorSeverity
	Message  string
	At       time.Time
}

const errorBufferCap = 1000

// Config parameterizes the backoff schedule and alert thresholds.
type Config struct {
	Base              time.Duration
	Max               time.Duration
	MaxAttempts       int
	CriticalThreshold int
	// AdminAlertCooldown throttles repeated admin notifications for
	// the same severity so a reconnect storm doesn't also spam the
	// admin channel (SPEC_FULL.md supplemented feature).
	AdminAlertCooldown time.Duration
}

// AdminAlerter is the narrow callback the RecoveryManager uses to
// raise operator-facing notifications; the Orchestrator wires this to
// the Dispatcher/Sink pair used for admin-severity messages.
type AdminAlerter func(severity model.ErrorSeverity, message string)

// Manager tracks consecutive failures, the attempt ledger, the error
// buffer, and computes uptime.
type Manager struct {
	cfg         Config
	restartable Restartable
	alerter     AdminAlerter
	backoff     *backoff.Backoff

	mu                  sync.Mutex
	consecutiveFailures int
	attempts            []Attempt
	errors              []ErrorRecord

	startedAt       time.Time
	downtimeAccum   time.Duration
	disconnectedAt  time.Time
	isDown          bool
	terminal        bool
	lastAdminAlerts map[model.ErrorSeverity]time.Time
}

// New builds a Manager. restartable and alerter are supplied by the
// Orchestrator at composition time.
func New(cfg Config, restartable Restartable, alerter AdminAlerter) *Manager {
	return &Manager{
		cfg:         cfg,
		restartable: restartable,
		alerter:     alerter,
		backoff: &backoff.Backoff{
			Min:    cfg.Base,
			Max:    cfg.Max,
			Factor: 2,
			Jitter: false,
		},
		startedAt:       time.Now(),
		lastAdminAlerts: make(map[model.ErrorSeverity]time.Time),
	}
}

// NotifyFailure records a failed connection attempt, computes the
// next backoff, and — unless attempts are exhausted — schedules a
// restart through the Restartable back-edge after the computed delay.
// The Ingestor itself never retries; this is the sole retry driver.
func (m *Manager) NotifyFailure(err error, severity model.ErrorSeverity) {
	now := time.Now()

	m.mu.Lock()
	m.consecutiveFailures++
	n := m.consecutiveFailures
	m.recordAttemptLocked(Attempt{AttemptNumber: n, StartedAt: now, EndedAt: now, Success: false})
	m.recordErrorLocked(ErrorRecord{Severity: severity, Message: err.Error(), At: now})
	if !m.isDown {
		m.isDown = true
		m.disconnectedAt = now
	}
	exhausted := n >= m.cfg.MaxAttempts
	hitCritical := n == m.cfg.CriticalThreshold
	var delay time.Duration
	if !exhausted {
		delay = m.backoff.Duration()
	}
	m.mu.Unlock()

	logger.Warn("connection attempt failed", "attempt", n, "error", err)

	if hitCritical {
		m.raiseAdmin(model.SeverityHigh, fmt.Sprintf("%d consecutive failures connecting", n))
	}

	if exhausted {
		m.transitionTerminal()
		return
	}

	time.AfterFunc(delay, func() {
		if err := m.restartable.Restart(); err != nil {
			m.NotifyFailure(err, model.SeverityMedium)
		}
	})
}

// NotifySuccess records a successful connection. On the first success
// after any failure streak, it resets the counter and backoff.
func (m *Manager) NotifySuccess() {
	now := time.Now()

	m.mu.Lock()
	hadFailures := m.consecutiveFailures > 0
	m.consecutiveFailures = 0
	m.backoff.Reset()
	if m.isDown {
		m.downtimeAccum += now.Sub(m.disconnectedAt)
		m.isDown = false
	}
	m.mu.Unlock()

	if hadFailures {
		logger.Info("connection recovered after failure streak")
	}
}

func (m *Manager) transitionTerminal() {
	m.mu.Lock()
	m.terminal = true
	m.mu.Unlock()

	logger.Error("max reconnect attempts exhausted, transitioning to FAILED")
	m.raiseAdmin(model.SeverityCritical, "maximum reconnect attempts exhausted; operator intervention required")
	m.restartable.MarkFailed()
}

// UptimeRatio computes (totalInterval - downtime) / totalInterval
// over the manager's lifetime so far.
func (m *Manager) UptimeRatio() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := time.Since(m.startedAt)
	if total <= 0 {
		return 1
	}
	downtime := m.downtimeAccum
	if m.isDown {
		downtime += time.Since(m.disconnectedAt)
	}
	ratio := (total - downtime).Seconds() / total.Seconds()
	if ratio < 0 {
		return 0
	}
	return ratio
}

// ConsecutiveFailures returns the current streak length.
func (m *Manager) ConsecutiveFailures() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.consecutiveFailures
}

// Terminal reports whether the manager has given up (spec's FAILED state).
func (m *Manager) Terminal() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.terminal
}

// Reset clears the terminal flag, used when an operator resets the
// connection (FAILED -> DISCONNECTED per the state machine).
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.terminal = false
	m.consecutiveFailures = 0
	m.backoff.Reset()
}

// RecentErrors returns a copy of the capped error buffer.
func (m *Manager) RecentErrors() []ErrorRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ErrorRecord, len(m.errors))
	copy(out, m.errors)
	return out
}

// RecentAttempts returns a copy of the capped attempt ledger.
func (m *Manager) RecentAttempts() []Attempt {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Attempt, len(m.attempts))
	copy(out, m.attempts)
	return out
}

func (m *Manager) recordAttemptLocked(a Attempt) {
	m.attempts = append(m.attempts, a)
	if len(m.attempts) > errorBufferCap {
		m.attempts = m.attempts[len(m.attempts)-errorBufferCap:]
	}
}

func (m *Manager) recordErrorLocked(e ErrorRecord) {
	m.errors = append(m.errors, e)
	if len(m.errors) > errorBufferCap {
		m.errors = m.errors[len(m.errors)-errorBufferCap:]
	}
}

// raiseAdmin throttles repeated admin alerts of the same severity so
// a reconnect storm doesn't also spam the admin channel.
func (m *Manager) raiseAdmin(severity model.ErrorSeverity, message string) {
	if m.alerter == nil {
		return
	}

	m.mu.Lock()
	last, seen := m.lastAdminAlerts[severity]
	now := time.Now()
	if seen && m.cfg.AdminAlertCooldown > 0 && now.Sub(last) < m.cfg.AdminAlertCooldown {
		m.mu.Unlock()
		return
	}
	m.lastAdminAlerts[severity] = now
	m.mu.Unlock()

	m.alerter(severity, message)
}
