package resilience

import (
	"errors"
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed allows calls to pass through.
	StateClosed State = iota
	// StateOpen rejects all calls without a transport attempt.
	StateOpen
	// StateHalfOpen admits a single probe call to test recovery.
	StateHalfOpen
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned by Allow when the call must be rejected.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerConfig configures one circuit breaker.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive classified failures
	// before the breaker opens. Default: 5.
	FailureThreshold int `mapstructure:"failure_threshold"`

	// RecoveryTimeout is how long the breaker stays open before admitting
	// a probe. Default: 30s.
	RecoveryTimeout time.Duration `mapstructure:"recovery_timeout"`

	// OnStateChange is called after every state transition, outside the
	// breaker lock.
	OnStateChange func(endpoint string, from, to State) `mapstructure:"-"`

	// OnDecision is called for every accept/reject decision, outside the
	// breaker lock.
	OnDecision func(endpoint string, allowed bool) `mapstructure:"-"`
}

// ApplyDefaults fills zero-valued fields with sensible defaults.
func (c *BreakerConfig) ApplyDefaults() {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.RecoveryTimeout <= 0 {
		c.RecoveryTimeout = 30 * time.Second
	}
}

// Breaker is the failure tracker and gate for one endpoint key. It is safe
// for concurrent use; all transitions are atomic under a per-breaker lock,
// so distinct endpoints never contend with each other.
type Breaker struct {
	endpoint string
	cfg      BreakerConfig

	mu                  sync.Mutex
	state               State
	consecutiveFailures int
	openedAt            time.Time
	probeInFlight       bool
}

// NewBreaker creates a breaker for the given endpoint key.
func NewBreaker(endpoint string, cfg BreakerConfig) *Breaker {
	cfg.ApplyDefaults()
	return &Breaker{
		endpoint: endpoint,
		cfg:      cfg,
		state:    StateClosed,
	}
}

// Allow decides whether a call may proceed. While open, the first caller
// after the recovery timeout wins the transition to half-open and becomes
// the probe; while half-open, callers arriving during an in-flight probe
// are rejected. The caller must report every admitted call's result
// through exactly one of OnSuccess, OnFailure or OnNeutral; an unreported
// probe would hold the slot forever.
func (b *Breaker) Allow() error {
	b.mu.Lock()

	var transition *stateChange
	var allowed bool

	switch b.state {
	case StateClosed:
		allowed = true

	case StateOpen:
		if time.Since(b.openedAt) >= b.cfg.RecoveryTimeout {
			transition = b.toState(StateHalfOpen)
			b.probeInFlight = true
			allowed = true
		}

	case StateHalfOpen:
		if !b.probeInFlight {
			b.probeInFlight = true
			allowed = true
		}
	}

	b.mu.Unlock()

	b.notify(transition, &allowed)
	if !allowed {
		return ErrCircuitOpen
	}
	return nil
}

// OnSuccess records a successful call. In the closed state the failure
// streak resets; a successful half-open probe closes the circuit.
func (b *Breaker) OnSuccess() {
	b.mu.Lock()

	var transition *stateChange
	switch b.state {
	case StateClosed:
		b.consecutiveFailures = 0
	case StateHalfOpen:
		transition = b.toState(StateClosed)
	}

	b.mu.Unlock()
	b.notify(transition, nil)
}

// OnFailure records a classified failure. Reaching the threshold in the
// closed state opens the circuit; a failing half-open probe reopens it and
// restarts the recovery timer.
func (b *Breaker) OnFailure() {
	b.mu.Lock()

	var transition *stateChange
	switch b.state {
	case StateClosed:
		b.consecutiveFailures++
		if b.consecutiveFailures >= b.cfg.FailureThreshold {
			transition = b.toState(StateOpen)
		}
	case StateHalfOpen:
		transition = b.toState(StateOpen)
	}

	b.mu.Unlock()
	b.notify(transition, nil)
}

// OnNeutral records an admitted call whose outcome says nothing about the
// endpoint's health, such as a discovery failure before any transport
// attempt. It releases the half-open probe slot so a later caller can
// probe; counters and state are untouched.
func (b *Breaker) OnNeutral() {
	b.mu.Lock()
	if b.state == StateHalfOpen {
		b.probeInFlight = false
	}
	b.mu.Unlock()
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// ConsecutiveFailures returns the current failure streak.
func (b *Breaker) ConsecutiveFailures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.consecutiveFailures
}

type stateChange struct {
	from, to State
}

// toState transitions to a new state. Caller must hold b.mu.
func (b *Breaker) toState(to State) *stateChange {
	from := b.state
	if from == to {
		return nil
	}
	b.state = to

	switch to {
	case StateClosed:
		b.consecutiveFailures = 0
		b.probeInFlight = false
	case StateOpen:
		b.openedAt = time.Now()
		b.probeInFlight = false
	case StateHalfOpen:
	}

	return &stateChange{from: from, to: to}
}

// notify fires hooks outside the lock.
func (b *Breaker) notify(transition *stateChange, decision *bool) {
	if transition != nil && b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(b.endpoint, transition.from, transition.to)
	}
	if decision != nil && b.cfg.OnDecision != nil {
		b.cfg.OnDecision(b.endpoint, *decision)
	}
}
