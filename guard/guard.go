// Package guard gates the protected features of the client device. It
// counts failed logins, blocks further attempts for a while once the limit
// is reached, and expires sessions after inactivity or a fixed lifetime.
//
// All state lives in the device's local store and is derived from stored
// timestamps and the wall clock whenever the guard is consulted; nothing
// depends on a timer firing. The guard deters casual access on a shared
// device. It is not a security boundary: anyone with access to the local
// store can rewrite it, and the server never consults it.
package guard

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jmcleod/folio/storage"
)

const (
	// SessionNamespace holds the single session record.
	SessionNamespace = "session"
	// LockoutNamespace holds the single lockout record.
	LockoutNamespace = "lockout"

	currentKey = "current"
)

var (
	// ErrNotAuthenticated is returned by RequireSession when no valid session exists.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrBlocked is returned by RequireSession while login attempts are blocked.
	ErrBlocked = errors.New("login temporarily blocked")
	// ErrNoSecret is returned by AttemptLogin when no verifier is configured.
	ErrNoSecret = errors.New("no admin secret configured")
)

// Option configures a Guard.
type Option func(*Guard)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(g *Guard) {
		g.now = now
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Guard) {
		g.logger = logger
	}
}

// WithSubject sets the identity recorded in new sessions.
func WithSubject(id, displayName string) Option {
	return func(g *Guard) {
		g.subjectID = id
		g.displayName = displayName
	}
}

// Guard is the session and lockout gate. It is safe for concurrent use.
type Guard struct {
	mu          sync.Mutex
	sessions    *storage.Scoped
	lockouts    *storage.Scoped
	verifier    *Verifier
	cfg         Config
	now         func() time.Time
	logger      *slog.Logger
	subjectID   string
	displayName string
}

// New creates a Guard persisting to repo under the session and lockout
// namespaces.
func New(repo storage.Repository, verifier *Verifier, cfg Config, opts ...Option) *Guard {
	g := &Guard{
		sessions:    storage.Scope(repo, SessionNamespace),
		lockouts:    storage.Scope(repo, LockoutNamespace),
		verifier:    verifier,
		cfg:         cfg,
		now:         time.Now,
		subjectID:   "admin",
		displayName: "Admin",
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	g.logger = g.logger.With("component", "guard")
	return g
}

// Config returns the configured thresholds.
func (g *Guard) Config() Config { return g.cfg }

// AttemptLogin checks secret and updates the session and lockout records.
// A wrong secret yields false with a nil error; the error return only
// reports local-store failures. While Blocked the secret is not examined,
// false is returned and the lockout record is left untouched.
func (g *Guard) AttemptLogin(secret string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	state, _, lockout, err := g.settle(now)
	if err != nil {
		return false, err
	}
	if state == Blocked {
		g.logger.Warn("login rejected while blocked",
			slog.Time("blocked_until", *lockout.BlockedUntil))
		return false, nil
	}
	if g.verifier == nil {
		return false, ErrNoSecret
	}

	ok, err := g.verifier.Verify(secret)
	if err != nil {
		return false, err
	}
	if ok {
		session := Session{
			SubjectID:    g.subjectID,
			DisplayName:  g.displayName,
			LoginTime:    now,
			LastActivity: now,
		}
		if err := g.sessions.PutJSON(currentKey, session); err != nil {
			return false, fmt.Errorf("saving session: %w", err)
		}
		if err := deleteIfPresent(g.lockouts, currentKey); err != nil {
			return false, fmt.Errorf("clearing lockout: %w", err)
		}
		g.logger.Info("login succeeded", slog.String("subject_id", session.SubjectID))
		return true, nil
	}

	lockout.FailedAttempts++
	if lockout.FailedAttempts >= g.cfg.MaxAttempts {
		until := now.Add(g.cfg.LockoutDuration)
		lockout.BlockedUntil = &until
		// Reaching the limit also ends any session still open on the device.
		if err := deleteIfPresent(g.sessions, currentKey); err != nil {
			return false, fmt.Errorf("clearing session: %w", err)
		}
		g.logger.Warn("login blocked",
			slog.Int("failed_attempts", lockout.FailedAttempts),
			slog.Time("blocked_until", until))
	} else {
		g.logger.Info("login failed",
			slog.Int("failed_attempts", lockout.FailedAttempts),
			slog.Int("remaining_attempts", g.cfg.MaxAttempts-lockout.FailedAttempts))
	}
	if err := g.lockouts.PutJSON(currentKey, lockout); err != nil {
		return false, fmt.Errorf("saving lockout: %w", err)
	}
	return false, nil
}

// Logout ends the session. It is safe to call in any state and never
// touches the lockout record.
func (g *Guard) Logout() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := deleteIfPresent(g.sessions, currentKey); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	return nil
}

// IsExpired reports whether there is no usable session at the current time.
// It only reads state.
func (g *Guard) IsExpired() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	session, ok := g.peekSession()
	return !ok || !session.Valid(g.now(), g.cfg)
}

// TouchActivity records activity on the current session. It does nothing
// unless the guard is LoggedIn.
func (g *Guard) TouchActivity() error {
	_, err := g.Heartbeat()
	return err
}

// Heartbeat runs one heartbeat: an expired session is destroyed, a live one
// has its activity refreshed. It returns the resulting state.
func (g *Guard) Heartbeat() (State, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	state, session, _, err := g.settle(now)
	if err != nil || state != LoggedIn {
		return state, err
	}
	session.LastActivity = now
	if err := g.sessions.PutJSON(currentKey, session); err != nil {
		return state, fmt.Errorf("saving session: %w", err)
	}
	return LoggedIn, nil
}

// State evaluates the guard at the current time, clearing an elapsed
// lockout and destroying an expired session on the way.
func (g *Guard) State() (State, error) {
	st, err := g.Status()
	return st.State, err
}

// Status is State with the details needed for display.
func (g *Guard) Status() (Status, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	state, session, lockout, err := g.settle(now)
	if err != nil {
		return Status{}, err
	}
	st := Status{
		State:             state,
		FailedAttempts:    lockout.FailedAttempts,
		RemainingAttempts: max(g.cfg.MaxAttempts-lockout.FailedAttempts, 0),
	}
	switch state {
	case Blocked:
		st.BlockedUntil = *lockout.BlockedUntil
	case LoggedIn:
		st.Session = &session
		st.ExpiresAt = session.ExpiresAt(g.cfg)
	}
	return st, nil
}

// RequireSession returns the current session, or ErrBlocked /
// ErrNotAuthenticated when protected content must not be shown.
func (g *Guard) RequireSession() (Session, error) {
	st, err := g.Status()
	if err != nil {
		return Session{}, err
	}
	switch st.State {
	case LoggedIn:
		return *st.Session, nil
	case Blocked:
		return Session{}, fmt.Errorf("%w until %s", ErrBlocked, st.BlockedUntil.Format(time.RFC3339))
	default:
		return Session{}, ErrNotAuthenticated
	}
}

// settle loads both records and applies the time-driven transitions:
// an elapsed block is cleared (resetting the attempt count) and an
// expired session is destroyed. Callers must hold g.mu.
func (g *Guard) settle(now time.Time) (State, Session, Lockout, error) {
	lockout, err := g.loadLockout()
	if err != nil {
		return LoggedOut, Session{}, Lockout{}, err
	}
	if lockout.elapsed(now) {
		if err := deleteIfPresent(g.lockouts, currentKey); err != nil {
			return LoggedOut, Session{}, Lockout{}, fmt.Errorf("clearing lockout: %w", err)
		}
		g.logger.Info("lockout elapsed")
		lockout = Lockout{}
	}

	session, ok, err := g.loadSession()
	if err != nil {
		return LoggedOut, Session{}, Lockout{}, err
	}
	if ok && !session.Valid(now, g.cfg) {
		if err := deleteIfPresent(g.sessions, currentKey); err != nil {
			return LoggedOut, Session{}, Lockout{}, fmt.Errorf("clearing session: %w", err)
		}
		g.logger.Info("session expired",
			slog.Time("login_time", session.LoginTime),
			slog.Time("last_activity", session.LastActivity))
		ok = false
	}

	switch {
	case ok:
		return LoggedIn, session, lockout, nil
	case lockout.Blocked(now):
		return Blocked, Session{}, lockout, nil
	default:
		return LoggedOut, Session{}, lockout, nil
	}
}

// loadLockout returns the stored lockout, or a zero Lockout when none is
// stored or the record is unreadable.
func (g *Guard) loadLockout() (Lockout, error) {
	var l Lockout
	err := g.lockouts.GetJSON(currentKey, &l)
	switch {
	case err == nil:
		return l, nil
	case errors.Is(err, storage.ErrNotFound):
		return Lockout{}, nil
	case errors.Is(err, storage.ErrCorrupt):
		g.logger.Warn("discarding unreadable lockout record", slog.Any("error", err))
		return Lockout{}, deleteIfPresent(g.lockouts, currentKey)
	default:
		return Lockout{}, fmt.Errorf("loading lockout: %w", err)
	}
}

func (g *Guard) loadSession() (Session, bool, error) {
	var s Session
	err := g.sessions.GetJSON(currentKey, &s)
	switch {
	case err == nil:
		return s, true, nil
	case errors.Is(err, storage.ErrNotFound):
		return Session{}, false, nil
	case errors.Is(err, storage.ErrCorrupt):
		g.logger.Warn("discarding unreadable session record", slog.Any("error", err))
		return Session{}, false, deleteIfPresent(g.sessions, currentKey)
	default:
		return Session{}, false, fmt.Errorf("loading session: %w", err)
	}
}

// peekSession reads the session without repairing anything.
func (g *Guard) peekSession() (Session, bool) {
	var s Session
	if err := g.sessions.GetJSON(currentKey, &s); err != nil {
		return Session{}, false
	}
	return s, true
}

func deleteIfPresent(s *storage.Scoped, key string) error {
	if err := s.Delete(key); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	return nil
}
