package llm

import (
	"sync"
	"time"
)

// BreakerState is the state of a circuit breaker.
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

// String returns the lower-case state name.
func (s BreakerState) String() string {
	switch s {
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// BreakerConfig configures a Breaker.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failed attempts that
	// opens the circuit.
	FailureThreshold int

	// Cooldown is how long the circuit stays open before a trial call.
	Cooldown time.Duration
}

// DefaultBreakerConfig returns the stock breaker settings.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		Cooldown:         60 * time.Second,
	}
}

// BreakerSnapshot is a point-in-time view of a Breaker.
type BreakerSnapshot struct {
	State        BreakerState
	FailureCount int
	LastFailure  time.Time
	LastSuccess  time.Time
	OpenedAt     time.Time
}

// Breaker is a consecutive-failure circuit breaker shared by every call
// made through one Client. It is safe for concurrent use.
type Breaker struct {
	mu       sync.Mutex
	config   BreakerConfig
	now      func() time.Time
	onChange func(BreakerState)

	state        BreakerState
	failureCount int
	lastFailure  time.Time
	lastSuccess  time.Time
	openedAt     time.Time
}

// NewBreaker creates a closed breaker. Zero config values take defaults.
func NewBreaker(cfg BreakerConfig) *Breaker {
	def := DefaultBreakerConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = def.Cooldown
	}
	return &Breaker{
		config: cfg,
		now:    time.Now,
	}
}

// SetClock replaces the time source. Tests only.
func (b *Breaker) SetClock(now func() time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.now = now
}

// OnStateChange registers fn to be called after every transition.
func (b *Breaker) OnStateChange(fn func(BreakerState)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onChange = fn
}

// Allow returns a *CircuitOpenError while the circuit is open. Once the
// cooldown has elapsed it moves to half-open, resets the failure count and
// lets the call through.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	var changed bool
	defer func() { b.notify(changed) }()
	defer b.mu.Unlock()

	if b.state != BreakerOpen {
		return nil
	}

	retryAt := b.openedAt.Add(b.config.Cooldown)
	if b.now().Before(retryAt) {
		return &CircuitOpenError{OpenedAt: b.openedAt, RetryAt: retryAt}
	}

	b.state = BreakerHalfOpen
	b.failureCount = 0
	changed = true
	return nil
}

// RecordSuccess closes the circuit and resets the failure count.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	var changed bool
	defer func() { b.notify(changed) }()
	defer b.mu.Unlock()

	b.lastSuccess = b.now()
	b.failureCount = 0
	if b.state != BreakerClosed {
		b.state = BreakerClosed
		changed = true
	}
}

// RecordFailure counts a failed attempt and opens the circuit at the
// threshold.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	var changed bool
	defer func() { b.notify(changed) }()
	defer b.mu.Unlock()

	now := b.now()
	b.lastFailure = now
	b.failureCount++
	if b.state != BreakerOpen && b.failureCount >= b.config.FailureThreshold {
		b.state = BreakerOpen
		b.openedAt = now
		changed = true
	}
}

// State returns the current state without transitioning.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Snapshot returns the breaker's counters and timestamps.
func (b *Breaker) Snapshot() BreakerSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BreakerSnapshot{
		State:        b.state,
		FailureCount: b.failureCount,
		LastFailure:  b.lastFailure,
		LastSuccess:  b.lastSuccess,
		OpenedAt:     b.openedAt,
	}
}

// notify runs outside the lock.
func (b *Breaker) notify(changed bool) {
	if !changed {
		return
	}
	b.mu.Lock()
	fn, state := b.onChange, b.state
	b.mu.Unlock()
	if fn != nil {
		fn(state)
	}
}
