package remote

import (
	"log/slog"
	"sync"
	"time"

	"order-service/internal/pkg/clock"
)

type BreakerState string

const (
	BreakerClosed   BreakerState = "CLOSED"
	BreakerOpen     BreakerState = "OPEN"
	BreakerHalfOpen BreakerState = "HALF_OPEN"
)

// CircuitBreaker guards one downstream dependency. Callers ask CanExecute
// before each attempt and report the transport outcome afterwards; business
// rejections count as success because the service was reachable.
type CircuitBreaker struct {
	mu sync.Mutex

	name            string
	threshold       int
	recoveryTimeout time.Duration
	clk             clock.Clock

	state        BreakerState
	failures     int
	lastFailure  time.Time
	halfOpenBusy bool
}

func NewCircuitBreaker(name string, threshold int, recoveryTimeout time.Duration, clk clock.Clock) *CircuitBreaker {
	return &CircuitBreaker{
		name:            name,
		threshold:       threshold,
		recoveryTimeout: recoveryTimeout,
		clk:             clk,
		state:           BreakerClosed,
	}
}

// CanExecute reports whether a call may proceed. When the recovery timeout has
// elapsed in OPEN, the breaker moves to HALF_OPEN and admits a single probe;
// concurrent callers are rejected until that probe reports back.
func (cb *CircuitBreaker) CanExecute() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case BreakerClosed:
		return true
	case BreakerOpen:
		if cb.clk.Now().Sub(cb.lastFailure) >= cb.recoveryTimeout {
			cb.transition(BreakerHalfOpen)
			cb.halfOpenBusy = true
			return true
		}
		return false
	case BreakerHalfOpen:
		if cb.halfOpenBusy {
			return false
		}
		cb.halfOpenBusy = true
		return true
	default:
		return false
	}
}

func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	cb.halfOpenBusy = false
	if cb.state != BreakerClosed {
		cb.transition(BreakerClosed)
	}
}

func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailure = cb.clk.Now()
	cb.halfOpenBusy = false

	if cb.state == BreakerHalfOpen {
		// Failed probe re-opens immediately, restarting the recovery window.
		cb.transition(BreakerOpen)
		return
	}
	if cb.state == BreakerClosed && cb.failures >= cb.threshold {
		cb.transition(BreakerOpen)
	}
}

func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) transition(to BreakerState) {
	from := cb.state
	cb.state = to
	slog.Warn("circuit breaker state change",
		"breaker", cb.name,
		"from", string(from),
		"to", string(to),
		"failures", cb.failures)
}
