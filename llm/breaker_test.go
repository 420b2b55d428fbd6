package llm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(threshold int, cooldown time.Duration) (*Breaker, *fakeClock, *[]BreakerState) {
	clock := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	b := NewBreaker(BreakerConfig{FailureThreshold: threshold, Cooldown: cooldown})
	b.SetClock(clock.now)
	var transitions []BreakerState
	b.OnStateChange(func(s BreakerState) { transitions = append(transitions, s) })
	return b, clock, &transitions
}

func TestBreaker_OpensAtThreshold(t *testing.T) {
	b, _, transitions := newTestBreaker(3, time.Minute)

	for i := 0; i < 2; i++ {
		b.RecordFailure()
		require.NoError(t, b.Allow())
	}
	b.RecordFailure()

	err := b.Allow()
	require.Error(t, err)
	var open *CircuitOpenError
	require.ErrorAs(t, err, &open)
	assert.Equal(t, open.OpenedAt.Add(time.Minute), open.RetryAt)
	assert.Equal(t, []BreakerState{BreakerOpen}, *transitions)
}

func TestBreaker_HalfOpenAfterCooldown(t *testing.T) {
	b, clock, transitions := newTestBreaker(2, time.Minute)
	b.RecordFailure()
	b.RecordFailure()

	clock.advance(59 * time.Second)
	assert.Error(t, b.Allow())

	clock.advance(time.Second)
	require.NoError(t, b.Allow())
	assert.Equal(t, BreakerHalfOpen, b.State())
	assert.Equal(t, 0, b.Snapshot().FailureCount)

	b.RecordSuccess()
	assert.Equal(t, BreakerClosed, b.State())
	assert.Equal(t, []BreakerState{BreakerOpen, BreakerHalfOpen, BreakerClosed}, *transitions)
}

func TestBreaker_HalfOpenCountsFromZero(t *testing.T) {
	b, clock, _ := newTestBreaker(2, time.Second)
	b.RecordFailure()
	b.RecordFailure()
	clock.advance(time.Second)
	require.NoError(t, b.Allow())

	b.RecordFailure()
	assert.Equal(t, BreakerHalfOpen, b.State())
	b.RecordFailure()
	assert.Equal(t, BreakerOpen, b.State())
	assert.Error(t, b.Allow())
}

func TestBreaker_SuccessResetsCount(t *testing.T) {
	b, _, _ := newTestBreaker(3, time.Minute)
	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	b.RecordFailure()

	assert.NoError(t, b.Allow())
	snap := b.Snapshot()
	assert.Equal(t, BreakerClosed, snap.State)
	assert.Equal(t, 2, snap.FailureCount)
	assert.False(t, snap.LastSuccess.IsZero())
}

func TestBreaker_Defaults(t *testing.T) {
	b := NewBreaker(BreakerConfig{})
	assert.Equal(t, 5, b.config.FailureThreshold)
	assert.Equal(t, 60*time.Second, b.config.Cooldown)
	assert.Equal(t, "closed", b.State().String())
	assert.Equal(t, "half_open", BreakerHalfOpen.String())
}
