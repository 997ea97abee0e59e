package guard

import (
	"fmt"
	"time"
)

// Config holds the thresholds and durations the guard enforces.
type Config struct {
	// MaxAttempts is the number of consecutive failed logins that blocks
	// further attempts.
	MaxAttempts int
	// LockoutDuration is how long the Blocked state lasts.
	LockoutDuration time.Duration
	// HeartbeatInterval is how often Run records activity.
	HeartbeatInterval time.Duration
	// InactivityTimeout ends a session this long after its last activity.
	InactivityTimeout time.Duration
	// MaxSessionDuration ends a session this long after login, regardless
	// of activity.
	MaxSessionDuration time.Duration
}

// DefaultConfig returns the stock thresholds: 5 attempts, 15 minute
// lockout, 5 minute heartbeat, 60 minute inactivity timeout and a 4 hour
// absolute session cap.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:        5,
		LockoutDuration:    15 * time.Minute,
		HeartbeatInterval:  5 * time.Minute,
		InactivityTimeout:  60 * time.Minute,
		MaxSessionDuration: 4 * time.Hour,
	}
}

// Validate rejects non-positive thresholds.
func (c Config) Validate() error {
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1, got %d", c.MaxAttempts)
	}
	durations := []struct {
		name string
		d    time.Duration
	}{
		{"lockout duration", c.LockoutDuration},
		{"heartbeat interval", c.HeartbeatInterval},
		{"inactivity timeout", c.InactivityTimeout},
		{"max session duration", c.MaxSessionDuration},
	}
	for _, v := range durations {
		if v.d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", v.name, v.d)
		}
	}
	return nil
}
