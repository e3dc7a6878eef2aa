package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestBreaker(threshold int) (*Breaker, *clock) {
	c := &clock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	b := NewBreaker(threshold, time.Minute)
	b.now = c.now
	return b, c
}

func TestBreaker_OpensAtThreshold(t *testing.T) {
	b, _ := newTestBreaker(3)
	fail := errors.New("down")

	for i := 0; i < 2; i++ {
		require.NoError(t, b.Allow())
		b.Record(fail)
	}
	assert.False(t, b.Open())

	require.NoError(t, b.Allow())
	b.Record(fail)
	assert.True(t, b.Open())
	assert.ErrorIs(t, b.Allow(), ErrOpen)
}

func TestBreaker_SuccessResets(t *testing.T) {
	b, _ := newTestBreaker(2)
	b.Record(errors.New("down"))
	b.Record(nil)
	b.Record(errors.New("down"))
	assert.False(t, b.Open())
}

func TestBreaker_ProbeAfterCooldown(t *testing.T) {
	b, c := newTestBreaker(1)
	b.Record(errors.New("down"))
	require.ErrorIs(t, b.Allow(), ErrOpen)

	c.t = c.t.Add(time.Minute)
	require.NoError(t, b.Allow())
	// Only one probe at a time.
	assert.ErrorIs(t, b.Allow(), ErrOpen)

	b.Record(nil)
	assert.False(t, b.Open())
	assert.NoError(t, b.Allow())
}

func TestBreaker_FailedProbeReopens(t *testing.T) {
	b, c := newTestBreaker(2)
	b.Record(errors.New("down"))
	b.Record(errors.New("down"))

	c.t = c.t.Add(2 * time.Minute)
	require.NoError(t, b.Allow())
	b.Record(errors.New("still down"))

	assert.True(t, b.Open())
	c.t = c.t.Add(30 * time.Second)
	assert.ErrorIs(t, b.Allow(), ErrOpen)
}

func TestNewBreaker_Defaults(t *testing.T) {
	b := NewBreaker(0, 0)
	assert.Equal(t, 5, b.Threshold)
	assert.Equal(t, 30*time.Second, b.Cooldown)
}
