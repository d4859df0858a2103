package circuit

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreakerTripsAndRecovers(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	b := New("binance", 2, time.Minute)
	b.now = func() time.Time { return now }
	boom := errors.New("boom")

	assert.ErrorIs(t, b.Do(func() error { return boom }), boom)
	assert.Equal(t, StateClosed, b.State())
	assert.ErrorIs(t, b.Do(func() error { return boom }), boom)
	assert.Equal(t, StateOpen, b.State())

	calls := 0
	err := b.Do(func() error { calls++; return nil })
	require.ErrorIs(t, err, ErrOpen)
	assert.Zero(t, calls)

	now = now.Add(2 * time.Minute)
	require.NoError(t, b.Do(func() error { calls++; return nil }))
	assert.Equal(t, 1, calls)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerHalfOpenProbeFailureReopens(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	b := New("binance", 1, time.Second)
	b.now = func() time.Time { return now }
	boom := errors.New("boom")

	_ = b.Do(func() error { return boom })
	now = now.Add(2 * time.Second)
	_ = b.Do(func() error { return boom })
	assert.Equal(t, StateOpen, b.State())
}

func TestBreakerIgnoresUncountableErrors(t *testing.T) {
	b := New("binance", 1, time.Minute)
	rejected := errors.New("rejected")
	b.CountOnly(func(err error) bool { return !errors.Is(err, rejected) })

	_ = b.Do(func() error { return rejected })
	assert.Equal(t, StateClosed, b.State())
}
