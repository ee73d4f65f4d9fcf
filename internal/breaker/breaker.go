// Package breaker implements the per-downstream circuit breaker that
// guards every outbound call the gateway makes.
//
// The state machine:
//
//	CLOSED    -- failure_count >= failure_threshold --> OPEN
//	OPEN      -- open timer fires ------------------> HALF_OPEN
//	HALF_OPEN -- success_count >= success_threshold -> CLOSED
//	HALF_OPEN -- any 5xx or connect timeout --------> OPEN
//
// Only connect timeouts and 5xx responses count as failures. Any other
// error (connection refused, TLS, body read) shorts the call to nil
// without touching the counters: those are application-level problems,
// not evidence the dependency is overloaded.
package breaker

import (
	"errors"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/bookrent/gateway/internal/logger"
	"go.uber.org/zap"
)

// State is the circuit breaker state.
type State int

const (
	// StateClosed means calls pass through normally.
	StateClosed State = iota
	// StateOpen means calls are refused without touching the downstream.
	StateOpen
	// StateHalfOpen means calls are allowed as recovery probes.
	StateHalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// Call is one attempt against the downstream.
type Call func() (*http.Response, error)

// Settings configures a CircuitBreaker.
type Settings struct {
	// Name identifies the guarded downstream in logs.
	Name string
	// FailureThreshold is the number of counted failures that opens the
	// breaker. Default: 2.
	FailureThreshold int
	// SuccessThreshold is the number of half-open successes that closes
	// the breaker. Default: 1.
	SuccessThreshold int
	// OpenTimeout is how long the breaker stays open before admitting
	// probes. Default: 15s.
	OpenTimeout time.Duration
	// Logger receives state transition logs.
	Logger *logger.Logger
}

// CircuitBreaker guards one downstream. Safe for concurrent use.
type CircuitBreaker struct {
	name             string
	failureThreshold int
	successThreshold int
	openTimeout      time.Duration
	log              *logger.Logger

	mu           sync.Mutex
	state        State
	failureCount int
	successCount int
	timer        *time.Timer
}

// New creates a circuit breaker in the CLOSED state.
func New(s Settings) *CircuitBreaker {
	if s.FailureThreshold <= 0 {
		s.FailureThreshold = 2
	}
	if s.SuccessThreshold <= 0 {
		s.SuccessThreshold = 1
	}
	if s.OpenTimeout <= 0 {
		s.OpenTimeout = 15 * time.Second
	}
	if s.Logger == nil {
		s.Logger = logger.NewNop()
	}
	return &CircuitBreaker{
		name:             s.Name,
		failureThreshold: s.FailureThreshold,
		successThreshold: s.SuccessThreshold,
		openTimeout:      s.OpenTimeout,
		log:              s.Logger,
	}
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Execute runs the call through the breaker. It returns the response
// when the downstream answered with a non-5xx status, and nil in every
// other case: breaker open, connect timeout, 5xx, or any other error.
// The caller must not distinguish why the response is nil; nil means
// "dependency unavailable right now".
func (cb *CircuitBreaker) Execute(call Call) *http.Response {
	cb.mu.Lock()
	entryState := cb.state
	cb.mu.Unlock()

	if entryState == StateOpen {
		return nil
	}

	resp, err := call()

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		if isConnectTimeout(err) {
			cb.log.Info("connect timeout", zap.String("breaker", cb.name), zap.Error(err))
			cb.recordFailure()
		} else {
			cb.log.Info("downstream call failed", zap.String("breaker", cb.name), zap.Error(err))
		}
		return nil
	}

	switch entryState {
	case StateClosed:
		if is5xx(resp.StatusCode) {
			discard(resp)
			cb.recordFailure()
			return nil
		}
		return resp

	case StateHalfOpen:
		if is2xx(resp.StatusCode) {
			cb.successCount++
			if cb.successCount >= cb.successThreshold {
				cb.toClosed()
			}
			return resp
		}
		if is5xx(resp.StatusCode) {
			discard(resp)
			cb.toOpen()
			return nil
		}
		return resp
	}

	return resp
}

// recordFailure counts one failure and opens the breaker when the
// threshold is reached. Caller holds the lock.
func (cb *CircuitBreaker) recordFailure() {
	cb.failureCount++
	if cb.failureCount >= cb.failureThreshold {
		cb.toOpen()
	}
}

// toOpen transitions to OPEN and arms the recovery timer. Caller holds
// the lock.
func (cb *CircuitBreaker) toOpen() {
	if cb.state != StateOpen {
		cb.log.Warn("circuit breaker opened",
			zap.String("breaker", cb.name),
			zap.Int("failure_count", cb.failureCount))
	}
	cb.state = StateOpen
	cb.armTimer()
}

// toClosed transitions to CLOSED and resets the failure count. Caller
// holds the lock.
func (cb *CircuitBreaker) toClosed() {
	cb.log.Info("circuit breaker closed",
		zap.String("breaker", cb.name),
		zap.Int("success_count", cb.successCount))
	cb.state = StateClosed
	cb.failureCount = 0
}

// armTimer starts the open timer unless one is already pending. At most
// one timer exists per breaker; arming while one is live is a no-op.
// Caller holds the lock.
func (cb *CircuitBreaker) armTimer() {
	if cb.timer != nil {
		return
	}
	cb.timer = time.AfterFunc(cb.openTimeout, cb.onOpenTimeout)
}

// onOpenTimeout fires when the open timer elapses. The state is
// re-checked under the lock: successful probes may have closed the
// breaker while the timer was pending.
func (cb *CircuitBreaker) onOpenTimeout() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.timer = nil
	if cb.state != StateOpen {
		return
	}
	cb.state = StateHalfOpen
	cb.successCount = 0
	cb.log.Info("circuit breaker half-open", zap.String("breaker", cb.name))
}

func is2xx(status int) bool { return status >= 200 && status < 300 }
func is5xx(status int) bool { return status >= 500 && status < 600 }

// isConnectTimeout reports whether the error is a network timeout, the
// only transport error that counts against the failure threshold.
func isConnectTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// discard drains and closes a response the breaker is swallowing so the
// underlying connection can be reused.
func discard(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
