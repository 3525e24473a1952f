package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreakerStartsClosed(t *testing.T) {
	b := New("test", Settings{})
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerTripsAfterConsecutiveFailures(t *testing.T) {
	b := New("test", Settings{
		ReadyToTrip: func(c Counts) bool { return c.ConsecutiveFailures >= 3 },
	})

	failing := func() error { return errors.New("boom") }

	for i := 0; i < 3; i++ {
		require.Error(t, b.Do(failing))
	}

	assert.Equal(t, StateOpen, b.State())

	err := b.Do(func() error { return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestBreakerRecoversThroughHalfOpen(t *testing.T) {
	b := New("test", Settings{
		MaxRequests: 1,
		Timeout:     10 * time.Millisecond,
		ReadyToTrip: func(c Counts) bool { return c.ConsecutiveFailures >= 1 },
	})

	require.Error(t, b.Do(func() error { return errors.New("boom") }))
	require.Equal(t, StateOpen, b.State())

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, StateHalfOpen, b.State())

	require.NoError(t, b.Do(func() error { return nil }))
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerSuccessKeepsClosed(t *testing.T) {
	b := New("test", Settings{})

	for i := 0; i < 10; i++ {
		require.NoError(t, b.Do(func() error { return nil }))
	}

	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerCountsPanicAsFailure(t *testing.T) {
	b := New("test", Settings{
		ReadyToTrip: func(c Counts) bool { return c.ConsecutiveFailures >= 1 },
	})

	require.Panics(t, func() {
		b.Do(func() error { panic("boom") })
	})
	assert.Equal(t, StateOpen, b.State())
}
