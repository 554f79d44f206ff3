package circuit

import (
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

var (
	ErrCircuitOpen = errors.New("circuit breaker is open")
)

// State represents circuit breaker state (mirrors gobreaker's States so
// callers that log/export breaker state don't need to import gobreaker).
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

func fromGobreakerState(s gobreaker.State) State {
	switch s {
	case gobreaker.StateClosed:
		return StateClosed
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	case gobreaker.StateOpen:
		return StateOpen
	default:
		return StateClosed
	}
}

// Config holds circuit breaker configuration.
type Config struct {
	FailureThreshold    int           // Number of failures before opening
	SuccessThreshold    int           // Successes needed in half-open to close
	HalfOpenRequests    int           // Max requests in half-open state
	OpenTimeout         time.Duration // Time to wait before half-open
	FailureRateWindow   time.Duration // Window for calculating failure rate
	MinRequestsInWindow int           // Min requests before calculating rate
}

// DefaultConfig returns default circuit breaker config.
func DefaultConfig() Config {
	return Config{
		FailureThreshold:    5,
		SuccessThreshold:    3,
		HalfOpenRequests:    3,
		OpenTimeout:         30 * time.Second,
		FailureRateWindow:   60 * time.Second,
		MinRequestsInWindow: 10,
	}
}

// Breaker wraps a gobreaker.CircuitBreaker, translating LinkFlow's
// threshold/window configuration into gobreaker's ReadyToTrip/ Counts model
// and tracking the lightweight metrics operators query via /debug surfaces.
type Breaker struct {
	name   string
	config Config
	gb     *gobreaker.CircuitBreaker

	mu              sync.RWMutex
	lastFailure     time.Time
	lastStateChange time.Time
	totalRequests   int64
	totalFailures   int64
}

// NewBreaker creates a new circuit breaker.
func NewBreaker(name string, config Config) *Breaker {
	b := &Breaker{
		name:            name,
		config:          config,
		lastStateChange: time.Now(),
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: uint32(config.HalfOpenRequests),
		Interval:    config.FailureRateWindow,
		Timeout:     config.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.ConsecutiveFailures >= uint32(config.FailureThreshold) {
				return true
			}
			if int(counts.Requests) < config.MinRequestsInWindow {
				return false
			}
			failureRate := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRate > 0.5
		},
		OnStateChange: func(_ string, from, to gobreaker.State) {
			b.mu.Lock()
			b.lastStateChange = time.Now()
			b.mu.Unlock()
			_ = from
			_ = to
		},
	}

	b.gb = gobreaker.NewCircuitBreaker(settings)
	return b
}

// Allow reports whether the breaker is currently closed or half-open (i.e.
// not rejecting every request). gobreaker has no standalone "may I try"
// check, so this inspects current state without consuming a slot.
func (b *Breaker) Allow() bool {
	return b.gb.State() != gobreaker.StateOpen
}

// Execute executes a function with circuit breaker protection.
func (b *Breaker) Execute(fn func() error) error {
	_, err := b.gb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrCircuitOpen
	}
	b.recordOutcome(err)
	return err
}

// RecordSuccess records a successful request outside of Execute, for
// callers that run the protected call themselves (e.g. streaming RPCs).
func (b *Breaker) RecordSuccess() {
	b.gb.Execute(func() (interface{}, error) { return nil, nil }) //nolint:errcheck
	b.recordOutcome(nil)
}

// RecordFailure records a failed request outside of Execute.
func (b *Breaker) RecordFailure() {
	sentinel := errors.New("recorded failure")
	b.gb.Execute(func() (interface{}, error) { return nil, sentinel }) //nolint:errcheck
	b.recordOutcome(sentinel)
}

func (b *Breaker) recordOutcome(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.totalRequests++
	if err != nil {
		b.totalFailures++
		b.lastFailure = time.Now()
	}
}

// State returns the current state.
func (b *Breaker) State() State {
	return fromGobreakerState(b.gb.State())
}

// Metrics returns circuit breaker metrics.
func (b *Breaker) Metrics() BreakerMetrics {
	b.mu.RLock()
	defer b.mu.RUnlock()

	counts := b.gb.Counts()
	var rate float64
	if counts.Requests > 0 {
		rate = float64(counts.TotalFailures) / float64(counts.Requests)
	}

	return BreakerMetrics{
		Name:            b.name,
		State:           b.State().String(),
		Failures:        int(counts.ConsecutiveFailures),
		Successes:       int(counts.ConsecutiveSuccesses),
		TotalRequests:   int(counts.Requests),
		FailureRate:     rate,
		LastFailure:     b.lastFailure,
		LastStateChange: b.lastStateChange,
	}
}

// BreakerMetrics holds circuit breaker metrics.
type BreakerMetrics struct {
	Name            string
	State           string
	Failures        int
	Successes       int
	TotalRequests   int
	FailureRate     float64
	LastFailure     time.Time
	LastStateChange time.Time
}

// BreakerRegistry manages multiple circuit breakers.
type BreakerRegistry struct {
	breakers map[string]*Breaker
	config   Config
	mu       sync.RWMutex
}

// NewBreakerRegistry creates a new breaker registry.
func NewBreakerRegistry(defaultConfig Config) *BreakerRegistry {
	return &BreakerRegistry{
		breakers: make(map[string]*Breaker),
		config:   defaultConfig,
	}
}

// Get gets or creates a circuit breaker by name.
func (r *BreakerRegistry) Get(name string) *Breaker {
	r.mu.RLock()
	if b, exists := r.breakers[name]; exists {
		r.mu.RUnlock()
		return b
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double check
	if b, exists := r.breakers[name]; exists {
		return b
	}

	b := NewBreaker(name, r.config)
	r.breakers[name] = b
	return b
}

// List returns all breakers.
func (r *BreakerRegistry) List() []*Breaker {
	r.mu.RLock()
	defer r.mu.RUnlock()

	breakers := make([]*Breaker, 0, len(r.breakers))
	for _, b := range r.breakers {
		breakers = append(breakers, b)
	}
	return breakers
}

// AllMetrics returns metrics for all breakers.
func (r *BreakerRegistry) AllMetrics() []BreakerMetrics {
	r.mu.RLock()
	defer r.mu.RUnlock()

	metrics := make([]BreakerMetrics, 0, len(r.breakers))
	for _, b := range r.breakers {
		metrics = append(metrics, b.Metrics())
	}
	return metrics
}
