package circuit

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreaker_InitialState(t *testing.T) {
	b := NewBreaker("test", DefaultConfig())

	assert.Equal(t, StateClosed, b.State())
	assert.True(t, b.Allow(), "closed breaker should allow requests")
}

func TestBreaker_OpenAfterFailures(t *testing.T) {
	cfg := Config{
		FailureThreshold:    3,
		SuccessThreshold:    1,
		HalfOpenRequests:    1,
		OpenTimeout:         time.Hour,
		FailureRateWindow:   time.Hour,
		MinRequestsInWindow: 100,
	}
	b := NewBreaker("test", cfg)

	for i := 0; i < cfg.FailureThreshold; i++ {
		assert.Equal(t, StateClosed, b.State(), "should still be closed after %d failures", i)
		b.RecordFailure()
	}

	assert.Equal(t, StateOpen, b.State())
	assert.False(t, b.Allow(), "open breaker should not allow requests")
}

func TestBreaker_TransitionToHalfOpen(t *testing.T) {
	cfg := Config{
		FailureThreshold:    2,
		SuccessThreshold:    1,
		HalfOpenRequests:    1,
		OpenTimeout:         10 * time.Millisecond,
		FailureRateWindow:   time.Hour,
		MinRequestsInWindow: 100,
	}
	b := NewBreaker("test", cfg)

	b.RecordFailure()
	b.RecordFailure()
	require.Equal(t, StateOpen, b.State())

	time.Sleep(20 * time.Millisecond)

	assert.True(t, b.Allow(), "should allow request after open timeout")
	assert.Equal(t, StateHalfOpen, b.State())
}

func TestBreaker_CloseFromHalfOpen(t *testing.T) {
	// gobreaker closes from half-open once ConsecutiveSuccesses reaches
	// MaxRequests (HalfOpenRequests here), so the two must agree.
	cfg := Config{
		FailureThreshold:    2,
		SuccessThreshold:    2,
		HalfOpenRequests:    2,
		OpenTimeout:         10 * time.Millisecond,
		FailureRateWindow:   time.Hour,
		MinRequestsInWindow: 100,
	}
	b := NewBreaker("test", cfg)

	b.RecordFailure()
	b.RecordFailure()

	time.Sleep(20 * time.Millisecond)
	b.Allow()

	b.RecordSuccess()
	assert.Equal(t, StateHalfOpen, b.State(), "should still be half-open after 1 success")

	b.RecordSuccess()
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_OpenFromHalfOpenOnFailure(t *testing.T) {
	cfg := Config{
		FailureThreshold:    2,
		SuccessThreshold:    3,
		HalfOpenRequests:    5,
		OpenTimeout:         10 * time.Millisecond,
		FailureRateWindow:   time.Hour,
		MinRequestsInWindow: 100,
	}
	b := NewBreaker("test", cfg)

	b.RecordFailure()
	b.RecordFailure()

	time.Sleep(20 * time.Millisecond)
	b.Allow()

	b.RecordFailure()

	assert.Equal(t, StateOpen, b.State(), "a failure in half-open should immediately open")
}

func TestBreaker_Execute(t *testing.T) {
	b := NewBreaker("test", DefaultConfig())

	err := b.Execute(func() error {
		return nil
	})
	assert.NoError(t, err)

	expectedErr := errors.New("test error")
	err = b.Execute(func() error {
		return expectedErr
	})
	assert.Equal(t, expectedErr, err)
}

func TestBreaker_ExecuteCircuitOpen(t *testing.T) {
	cfg := Config{
		FailureThreshold:    1,
		SuccessThreshold:    1,
		HalfOpenRequests:    1,
		OpenTimeout:         time.Hour,
		FailureRateWindow:   time.Hour,
		MinRequestsInWindow: 100,
	}
	b := NewBreaker("test", cfg)

	b.RecordFailure()

	err := b.Execute(func() error {
		t.Error("function should not be called when circuit is open")
		return nil
	})

	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestBreaker_Metrics(t *testing.T) {
	b := NewBreaker("test-breaker", DefaultConfig())

	b.RecordSuccess()
	b.RecordFailure()
	b.RecordSuccess()

	metrics := b.Metrics()

	assert.Equal(t, "test-breaker", metrics.Name)
	assert.Equal(t, 3, metrics.TotalRequests)
}

func TestBreakerRegistry_GetOrCreate(t *testing.T) {
	r := NewBreakerRegistry(DefaultConfig())

	b1 := r.Get("service-a")
	b1.RecordFailure()

	b2 := r.Get("service-a")

	assert.Equal(t, 1, b2.Metrics().Failures, "registry should return same breaker")
}

func TestBreakerRegistry_DifferentBreakers(t *testing.T) {
	r := NewBreakerRegistry(DefaultConfig())

	b1 := r.Get("service-a")
	b2 := r.Get("service-b")

	b1.RecordFailure()

	assert.Equal(t, 0, b2.Metrics().Failures, "different names should have separate breakers")
}
