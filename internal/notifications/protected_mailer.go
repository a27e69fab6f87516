package notifications

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrCircuitOpen = errors.New("circuit breaker open")

type BreakerState string

const (
	StateClosed   BreakerState = "closed"
	StateOpen     BreakerState = "open"
	StateHalfOpen BreakerState = "half_open"
)

type ProtectedMailerConfig struct {
	Timeout          time.Duration // hard timeout per send
	FailureThreshold int           // consecutive failures to open circuit
	Cooldown         time.Duration // how long to stay open before half-open
	HalfOpenMaxCalls int           // allow N trial calls in half-open
}

// ProtectedMailer bounds every send with a timeout and stops calling a
// provider that keeps failing until the cooldown elapses.
type ProtectedMailer struct {
	inner Mailer
	cfg   ProtectedMailerConfig
	now   func() time.Time

	mu    sync.Mutex
	state BreakerState

	consecutiveFailures int
	openedAt            time.Time
	halfOpenInFlight    int
}

func NewProtectedMailer(inner Mailer, cfg ProtectedMailerConfig) *ProtectedMailer {
	//defaults
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 15 * time.Second
	}
	if cfg.HalfOpenMaxCalls <= 0 {
		cfg.HalfOpenMaxCalls = 1
	}

	return &ProtectedMailer{
		inner: inner,
		cfg:   cfg,
		now:   time.Now,
		state: StateClosed,
	}
}

func (m *ProtectedMailer) Send(ctx context.Context, address, subject, htmlBody string) error {
	// fail-fast gate
	if !m.allowRequest() {
		return ErrCircuitOpen
	}

	sendCtx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	err := m.inner.Send(sendCtx, address, subject, htmlBody)

	m.afterRequest(err)

	return err
}

func (m *ProtectedMailer) State() BreakerState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *ProtectedMailer) allowRequest() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case StateOpen:
		if m.now().Sub(m.openedAt) < m.cfg.Cooldown {
			return false
		}
		m.state = StateHalfOpen
		m.halfOpenInFlight = 1
		return true
	case StateHalfOpen:
		if m.halfOpenInFlight >= m.cfg.HalfOpenMaxCalls {
			return false
		}
		m.halfOpenInFlight++
		return true
	default:
		return true
	}
}

func (m *ProtectedMailer) afterRequest(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateHalfOpen && m.halfOpenInFlight > 0 {
		m.halfOpenInFlight--
	}

	// an empty recipient says nothing about provider health
	if err == nil || errors.Is(err, ErrEmptyRecipient) {
		m.consecutiveFailures = 0
		m.state = StateClosed
		return
	}

	m.consecutiveFailures++

	if m.state == StateHalfOpen || m.consecutiveFailures >= m.cfg.FailureThreshold {
		m.state = StateOpen
		m.openedAt = m.now()
	}
}
