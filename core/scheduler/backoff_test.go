package scheduler_test

import (
	"testing"
	"time"

	"github.com/embermind/aura/core/scheduler"
	"github.com/stretchr/testify/assert"
)

func TestRetryPolicy_ExponentialDelay(t *testing.T) {
	policy := scheduler.RetryPolicy{
		InitialDelay: time.Second,
		MaxDelay:     time.Minute,
		Multiplier:   2.0,
	}

	assert.Equal(t, time.Second, policy.Delay(0))
	assert.Equal(t, 2*time.Second, policy.Delay(1))
	assert.Equal(t, 4*time.Second, policy.Delay(2))
	assert.Equal(t, 8*time.Second, policy.Delay(3))
}

func TestRetryPolicy_DelayCapped(t *testing.T) {
	policy := scheduler.RetryPolicy{
		InitialDelay: time.Second,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
	}

	assert.Equal(t, 10*time.Second, policy.Delay(10))
}

func TestRetryPolicy_ZeroMultiplierDefaultsToDoubling(t *testing.T) {
	policy := scheduler.RetryPolicy{InitialDelay: time.Second, MaxDelay: time.Minute}
	assert.Equal(t, 4*time.Second, policy.Delay(2))
}

func TestAddJitter_StaysWithinBounds(t *testing.T) {
	base := 10 * time.Second
	for i := 0; i < 100; i++ {
		jittered := scheduler.AddJitter(base, 0.2)
		assert.GreaterOrEqual(t, jittered, 8*time.Second)
		assert.LessOrEqual(t, jittered, 12*time.Second)
	}
}

func TestAddJitter_ZeroPercentIsIdentity(t *testing.T) {
	assert.Equal(t, time.Second, scheduler.AddJitter(time.Second, 0))
}

func TestAddJitter_NeverBelowOneMillisecond(t *testing.T) {
	assert.GreaterOrEqual(t, scheduler.AddJitter(time.Microsecond, 0.5), time.Millisecond)
}
