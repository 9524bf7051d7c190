package circuitbreaker_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/ecommerce-microservices/internal/circuitbreaker"
)

var errBoom = errors.New("boom")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newBreaker(clock *fakeClock) *circuitbreaker.CircuitBreaker {
	return circuitbreaker.New(circuitbreaker.Config{
		Name:        "test",
		MaxFailures: 3,
		Timeout:     10 * time.Second,
		Now:         clock.Now,
	})
}

func fail() error    { return errBoom }
func succeed() error { return nil }

func TestCircuitBreaker_OpensAfterMaxFailures(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	cb := newBreaker(clock)

	for i := 0; i < 3; i++ {
		require.ErrorIs(t, cb.Execute(fail), errBoom)
	}
	assert.Equal(t, circuitbreaker.StateOpen, cb.State())

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	require.ErrorIs(t, err, circuitbreaker.ErrCircuitBreakerOpen)
	assert.False(t, called, "fn must not run while open")
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	cb := newBreaker(clock)

	require.Error(t, cb.Execute(fail))
	require.Error(t, cb.Execute(fail))
	require.NoError(t, cb.Execute(succeed))
	require.Error(t, cb.Execute(fail))
	require.Error(t, cb.Execute(fail))

	assert.Equal(t, circuitbreaker.StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	cb := newBreaker(clock)
	for i := 0; i < 3; i++ {
		_ = cb.Execute(fail)
	}

	clock.Advance(11 * time.Second)
	require.NoError(t, cb.Execute(succeed))
	assert.Equal(t, circuitbreaker.StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	cb := newBreaker(clock)
	for i := 0; i < 3; i++ {
		_ = cb.Execute(fail)
	}

	clock.Advance(11 * time.Second)
	require.ErrorIs(t, cb.Execute(fail), errBoom)
	assert.Equal(t, circuitbreaker.StateOpen, cb.State())
	require.ErrorIs(t, cb.Execute(succeed), circuitbreaker.ErrCircuitBreakerOpen)
}

func TestCircuitBreaker_IsFailureFilter(t *testing.T) {
	errNotFound := errors.New("not found")
	cb := circuitbreaker.New(circuitbreaker.Config{
		Name:        "filtered",
		MaxFailures: 1,
		IsFailure:   func(err error) bool { return err != nil && !errors.Is(err, errNotFound) },
	})

	for i := 0; i < 5; i++ {
		require.ErrorIs(t, cb.Execute(func() error { return errNotFound }), errNotFound)
	}
	assert.Equal(t, circuitbreaker.StateClosed, cb.State())

	_ = cb.Execute(fail)
	assert.Equal(t, circuitbreaker.StateOpen, cb.State())
}

func TestCircuitBreaker_OnStateChange(t *testing.T) {
	changes := make(chan circuitbreaker.State, 1)
	cb := circuitbreaker.New(circuitbreaker.Config{
		Name:          "notify",
		MaxFailures:   1,
		OnStateChange: func(_ string, _, to circuitbreaker.State) { changes <- to },
	})

	_ = cb.Execute(fail)

	select {
	case to := <-changes:
		assert.Equal(t, circuitbreaker.StateOpen, to)
	case <-time.After(time.Second):
		t.Fatal("state change callback not invoked")
	}
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", circuitbreaker.StateClosed.String())
	assert.Equal(t, "open", circuitbreaker.StateOpen.String())
	assert.Equal(t, "half-open", circuitbreaker.StateHalfOpen.String())
	assert.Equal(t, "unknown", circuitbreaker.State(42).String())
}
