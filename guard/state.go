package guard

import "time"

// State is the guard's view of the client device.
type State int

const (
	LoggedOut State = iota
	Blocked
	LoggedIn
)

func (s State) String() string {
	switch s {
	case LoggedOut:
		return "logged_out"
	case Blocked:
		return "blocked"
	case LoggedIn:
		return "logged_in"
	default:
		return "unknown"
	}
}

// Session asserts that this device is currently authenticated.
type Session struct {
	SubjectID    string    `json:"subject_id"`
	DisplayName  string    `json:"display_name"`
	LoginTime    time.Time `json:"login_time"`
	LastActivity time.Time `json:"last_activity"`
}

// Valid reports whether both the inactivity window and the absolute
// session window still hold at now.
func (s Session) Valid(now time.Time, cfg Config) bool {
	return now.Sub(s.LastActivity) < cfg.InactivityTimeout &&
		now.Sub(s.LoginTime) < cfg.MaxSessionDuration
}

// ExpiresAt returns the instant at which the session stops being Valid if
// no further activity is recorded.
func (s Session) ExpiresAt(cfg Config) time.Time {
	idle := s.LastActivity.Add(cfg.InactivityTimeout)
	hard := s.LoginTime.Add(cfg.MaxSessionDuration)
	if idle.Before(hard) {
		return idle
	}
	return hard
}

// Lockout counts failed login attempts and records an active block.
type Lockout struct {
	FailedAttempts int        `json:"failed_attempts"`
	BlockedUntil   *time.Time `json:"blocked_until,omitempty"`
}

// Blocked reports whether the block is still in force at now.
func (l Lockout) Blocked(now time.Time) bool {
	return l.BlockedUntil != nil && now.Before(*l.BlockedUntil)
}

// elapsed reports whether a block existed and has run out at now.
func (l Lockout) elapsed(now time.Time) bool {
	return l.BlockedUntil != nil && !now.Before(*l.BlockedUntil)
}

// Status is a snapshot of the guard for display.
type Status struct {
	State             State
	FailedAttempts    int
	RemainingAttempts int
	// BlockedUntil is zero unless State is Blocked.
	BlockedUntil time.Time
	// Session is nil unless State is LoggedIn.
	Session   *Session
	ExpiresAt time.Time
}

// RetryAfter returns how long until a Blocked status lifts.
func (s Status) RetryAfter(now time.Time) time.Duration {
	if s.State != Blocked {
		return 0
	}
	return s.BlockedUntil.Sub(now)
}
