package supervisor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoff_ExponentialGrowth(t *testing.T) {
	c := DefaultBackoffConfig()
	assert.Equal(t, time.Second, c.Delay(1))
	assert.Equal(t, 2*time.Second, c.Delay(2))
	assert.Equal(t, 4*time.Second, c.Delay(3))
	assert.Equal(t, 8*time.Second, c.Delay(4))
}

func TestBackoff_ClampsToMaxDelay(t *testing.T) {
	c := DefaultBackoffConfig()
	assert.Equal(t, 60*time.Second, c.Delay(10))
}

func TestBackoff_TreatsZeroOrNegativeAsFirst(t *testing.T) {
	c := DefaultBackoffConfig()
	assert.Equal(t, c.Delay(1), c.Delay(0))
	assert.Equal(t, c.Delay(1), c.Delay(-3))
}

func TestBackoff_Exhausted(t *testing.T) {
	c := DefaultBackoffConfig()
	assert.False(t, c.Exhausted(4))
	assert.True(t, c.Exhausted(5))
	assert.True(t, c.Exhausted(6))
}

func TestBackoff_ZeroMaxRestartsNeverExhausts(t *testing.T) {
	c := BackoffConfig{BaseDelay: time.Second, MaxDelay: time.Minute, MaxRestarts: 0}
	assert.False(t, c.Exhausted(1000))
}
