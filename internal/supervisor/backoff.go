package supervisor

import "time"

// BackoffConfig controls the bounded exponential restart backoff applied to
// background/socket plugin processes.
type BackoffConfig struct {
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	MaxRestarts  int
}

// DefaultBackoffConfig matches the original daemon's defaults: 1s base,
// 60s max, 5 restarts before giving up.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{BaseDelay: time.Second, MaxDelay: 60 * time.Second, MaxRestarts: 5}
}

// Delay computes the backoff delay before the restartCount-th restart
// (1-indexed: the first restart uses restartCount=1), as
// base_delay * 2^(restart_count-1) clamped to max_delay.
func (c BackoffConfig) Delay(restartCount int) time.Duration {
	if restartCount < 1 {
		restartCount = 1
	}
	d := c.BaseDelay
	for i := 1; i < restartCount; i++ {
		d *= 2
		if d >= c.MaxDelay {
			return c.MaxDelay
		}
	}
	if d > c.MaxDelay {
		return c.MaxDelay
	}
	return d
}

// Exhausted reports whether restartCount has reached the configured limit.
func (c BackoffConfig) Exhausted(restartCount int) bool {
	return c.MaxRestarts > 0 && restartCount >= c.MaxRestarts
}
