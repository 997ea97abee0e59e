package guard

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/folio/internal/util"
	"github.com/jmcleod/folio/storage"
	"github.com/jmcleod/folio/storage/memory"
)

const testSecret = "correct horse battery staple"

var (
	verifierOnce sync.Once
	testVerifier *Verifier
)

// cheapParams keeps argon2id fast enough for table tests.
var cheapParams = util.Argon2idParams{Time: 1, MemoryKiB: 1024, Parallelism: 1, KeyLen: 32}

func sharedVerifier(t *testing.T) *Verifier {
	t.Helper()
	verifierOnce.Do(func() {
		encoded, err := HashSecretWithParams(testSecret, cheapParams)
		if err != nil {
			panic(err)
		}
		testVerifier, err = ParseVerifier(encoded)
		if err != nil {
			panic(err)
		}
	})
	return testVerifier
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestGuard(t *testing.T) (*Guard, *fakeClock, storage.Repository) {
	t.Helper()
	repo := memory.NewRepository()
	clock := newFakeClock()
	g := New(repo, sharedVerifier(t), DefaultConfig(), WithClock(clock.Now))
	return g, clock, repo
}

func mustState(t *testing.T, g *Guard) State {
	t.Helper()
	st, err := g.State()
	require.NoError(t, err)
	return st
}

func mustLogin(t *testing.T, g *Guard, secret string) bool {
	t.Helper()
	ok, err := g.AttemptLogin(secret)
	require.NoError(t, err)
	return ok
}

func TestGuard_StartsLoggedOut(t *testing.T) {
	g, _, _ := newTestGuard(t)
	assert.Equal(t, LoggedOut, mustState(t, g))
	assert.True(t, g.IsExpired())
}

func TestGuard_CorrectSecretLogsIn(t *testing.T) {
	g, clock, _ := newTestGuard(t)

	require.True(t, mustLogin(t, g, testSecret))

	st, err := g.Status()
	require.NoError(t, err)
	require.Equal(t, LoggedIn, st.State)
	require.NotNil(t, st.Session)
	assert.Equal(t, "admin", st.Session.SubjectID)
	assert.Equal(t, clock.Now(), st.Session.LoginTime)
	assert.Equal(t, clock.Now(), st.Session.LastActivity)
	assert.False(t, g.IsExpired())
}

func TestGuard_LockoutThreshold(t *testing.T) {
	for _, maxAttempts := range []int{1, 3, 5} {
		cfg := DefaultConfig()
		cfg.MaxAttempts = maxAttempts
		clock := newFakeClock()
		g := New(memory.NewRepository(), sharedVerifier(t), cfg, WithClock(clock.Now))

		for i := 1; i < maxAttempts; i++ {
			assert.False(t, mustLogin(t, g, "wrong"))
			assert.Equal(t, LoggedOut, mustState(t, g), "attempt %d of %d must not block", i, maxAttempts)
		}
		assert.False(t, mustLogin(t, g, "wrong"))
		assert.Equal(t, Blocked, mustState(t, g), "attempt %d must block", maxAttempts)
	}
}

func TestGuard_LockoutScenario(t *testing.T) {
	g, clock, _ := newTestGuard(t)
	require.Equal(t, 15*time.Minute, g.Config().LockoutDuration)

	for i := 0; i < 4; i++ {
		assert.False(t, mustLogin(t, g, "wrong"))
	}
	st, err := g.Status()
	require.NoError(t, err)
	assert.Equal(t, LoggedOut, st.State)
	assert.Equal(t, 4, st.FailedAttempts)
	assert.Equal(t, 1, st.RemainingAttempts)

	assert.False(t, mustLogin(t, g, "wrong"))
	st, err = g.Status()
	require.NoError(t, err)
	assert.Equal(t, Blocked, st.State)
	assert.Equal(t, 5, st.FailedAttempts)
	assert.Equal(t, clock.Now().Add(900*time.Second), st.BlockedUntil)
	assert.Equal(t, 900*time.Second, st.RetryAfter(clock.Now()))

	// The right secret is refused while blocked, and the count is unchanged.
	assert.False(t, mustLogin(t, g, testSecret))
	st, err = g.Status()
	require.NoError(t, err)
	assert.Equal(t, Blocked, st.State)
	assert.Equal(t, 5, st.FailedAttempts)
	assert.Equal(t, clock.Now().Add(900*time.Second), st.BlockedUntil, "blocked attempts must not extend the lockout")
}

func TestGuard_LockoutExpiry(t *testing.T) {
	g, clock, _ := newTestGuard(t)
	for i := 0; i < 5; i++ {
		mustLogin(t, g, "wrong")
	}
	st, err := g.Status()
	require.NoError(t, err)
	blockedUntil := st.BlockedUntil

	clock.Advance(blockedUntil.Sub(clock.Now()) - time.Nanosecond)
	assert.Equal(t, Blocked, mustState(t, g), "strictly before blockedUntil stays blocked")

	clock.Advance(time.Nanosecond)
	st, err = g.Status()
	require.NoError(t, err)
	assert.Equal(t, LoggedOut, st.State)
	assert.Equal(t, 0, st.FailedAttempts)
	assert.Equal(t, 5, st.RemainingAttempts)

	assert.True(t, mustLogin(t, g, testSecret))
}

func TestGuard_LockoutExpiryIsLazy(t *testing.T) {
	g, clock, _ := newTestGuard(t)
	for i := 0; i < 5; i++ {
		mustLogin(t, g, "wrong")
	}
	clock.Advance(time.Hour)

	// No status check in between: the login attempt itself settles the block.
	assert.True(t, mustLogin(t, g, testSecret))
}

func TestGuard_SuccessClearsFailures(t *testing.T) {
	g, _, repo := newTestGuard(t)
	for i := 0; i < 3; i++ {
		mustLogin(t, g, "wrong")
	}
	require.True(t, mustLogin(t, g, testSecret))

	_, err := repo.Get(LockoutNamespace, currentKey)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, g.Logout())
	st, err := g.Status()
	require.NoError(t, err)
	assert.Equal(t, 0, st.FailedAttempts)
}

func TestGuard_BlockingEndsOpenSession(t *testing.T) {
	g, _, _ := newTestGuard(t)
	require.True(t, mustLogin(t, g, testSecret))
	for i := 0; i < 5; i++ {
		mustLogin(t, g, "wrong")
	}
	assert.Equal(t, Blocked, mustState(t, g))
	assert.True(t, g.IsExpired())
}

func TestGuard_SessionAbsoluteExpiry(t *testing.T) {
	g, clock, _ := newTestGuard(t)
	require.True(t, mustLogin(t, g, testSecret))
	loginAt := clock.Now()

	// Keep the session busy the whole time.
	for clock.Now().Before(loginAt.Add(4*time.Hour - 30*time.Minute)) {
		clock.Advance(30 * time.Minute)
		state, err := g.Heartbeat()
		require.NoError(t, err)
		require.Equal(t, LoggedIn, state)
	}

	clock.Advance(loginAt.Add(4 * time.Hour).Sub(clock.Now()))
	assert.True(t, g.IsExpired(), "activity cannot extend past the absolute cap")
	assert.Equal(t, LoggedOut, mustState(t, g))
}

func TestGuard_SessionInactivityExpiry(t *testing.T) {
	g, clock, _ := newTestGuard(t)
	require.True(t, mustLogin(t, g, testSecret))

	clock.Advance(20 * time.Minute)
	require.NoError(t, g.TouchActivity())
	lastActivity := clock.Now()

	clock.Advance(59 * time.Minute)
	assert.False(t, g.IsExpired())

	clock.Advance(lastActivity.Add(60 * time.Minute).Sub(clock.Now()))
	assert.True(t, g.IsExpired())
	assert.Equal(t, LoggedOut, mustState(t, g))
}

func TestGuard_IsExpiredDoesNotMutate(t *testing.T) {
	g, clock, repo := newTestGuard(t)
	require.True(t, mustLogin(t, g, testSecret))
	clock.Advance(2 * time.Hour)

	assert.True(t, g.IsExpired())
	_, err := repo.Get(SessionNamespace, currentKey)
	assert.NoError(t, err, "IsExpired must leave the stored session alone")

	assert.Equal(t, LoggedOut, mustState(t, g))
	_, err = repo.Get(SessionNamespace, currentKey)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestGuard_TouchActivityNoopWhenLoggedOut(t *testing.T) {
	g, _, repo := newTestGuard(t)
	require.NoError(t, g.TouchActivity())
	_, err := repo.Get(SessionNamespace, currentKey)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestGuard_LogoutIsIdempotent(t *testing.T) {
	g, _, repo := newTestGuard(t)
	mustLogin(t, g, "wrong")
	require.True(t, mustLogin(t, g, testSecret))
	mustLogin(t, g, "wrong")

	require.NoError(t, g.Logout())
	first, err := g.Status()
	require.NoError(t, err)

	require.NoError(t, g.Logout())
	second, err := g.Status()
	require.NoError(t, err)

	assert.Equal(t, LoggedOut, first.State)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, second.FailedAttempts, "logout leaves the lockout record alone")

	_, err = repo.Get(LockoutNamespace, currentKey)
	assert.NoError(t, err)
}

func TestGuard_LogoutWhenNeverLoggedIn(t *testing.T) {
	g, _, _ := newTestGuard(t)
	assert.NoError(t, g.Logout())
	assert.Equal(t, LoggedOut, mustState(t, g))
}

func TestGuard_CorruptRecordsReadAsEmpty(t *testing.T) {
	g, _, repo := newTestGuard(t)
	require.NoError(t, repo.Put(SessionNamespace, currentKey, []byte("{broken")))
	require.NoError(t, repo.Put(LockoutNamespace, currentKey, []byte("not json")))

	st, err := g.Status()
	require.NoError(t, err)
	assert.Equal(t, LoggedOut, st.State)
	assert.Equal(t, 0, st.FailedAttempts)
	assert.True(t, mustLogin(t, g, testSecret))
}

func TestGuard_StatePersistsAcrossInstances(t *testing.T) {
	repo := memory.NewRepository()
	clock := newFakeClock()
	first := New(repo, sharedVerifier(t), DefaultConfig(), WithClock(clock.Now))
	for i := 0; i < 5; i++ {
		_, err := first.AttemptLogin("wrong")
		require.NoError(t, err)
	}

	second := New(repo, sharedVerifier(t), DefaultConfig(), WithClock(clock.Now))
	assert.Equal(t, Blocked, mustState(t, second))
}

func TestGuard_RequireSession(t *testing.T) {
	g, _, _ := newTestGuard(t)

	_, err := g.RequireSession()
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	require.True(t, mustLogin(t, g, testSecret))
	s, err := g.RequireSession()
	require.NoError(t, err)
	assert.Equal(t, "admin", s.SubjectID)

	require.NoError(t, g.Logout())
	for i := 0; i < 5; i++ {
		mustLogin(t, g, "wrong")
	}
	_, err = g.RequireSession()
	assert.ErrorIs(t, err, ErrBlocked)
}

func TestGuard_WithSubject(t *testing.T) {
	g := New(memory.NewRepository(), sharedVerifier(t), DefaultConfig(), WithSubject("owner", "Site Owner"))
	require.True(t, mustLogin(t, g, testSecret))
	s, err := g.RequireSession()
	require.NoError(t, err)
	assert.Equal(t, "owner", s.SubjectID)
	assert.Equal(t, "Site Owner", s.DisplayName)
}

func TestGuard_NoVerifier(t *testing.T) {
	g := New(memory.NewRepository(), nil, DefaultConfig())
	_, err := g.AttemptLogin(testSecret)
	assert.ErrorIs(t, err, ErrNoSecret)
}

func TestGuard_RunStopsWhenSessionEnds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HeartbeatInterval = 5 * time.Millisecond
	clock := newFakeClock()
	g := New(memory.NewRepository(), sharedVerifier(t), cfg, WithClock(clock.Now))
	require.True(t, mustLogin(t, g, testSecret))

	clock.Advance(5 * time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done := make(chan struct{})
	go func() {
		g.Run(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		t.Fatal("Run did not return after the session expired")
	}
	assert.Equal(t, LoggedOut, mustState(t, g))
}

func TestGuard_RunKeepsSessionAlive(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HeartbeatInterval = 2 * time.Millisecond
	clock := newFakeClock()
	g := New(memory.NewRepository(), sharedVerifier(t), cfg, WithClock(clock.Now))
	require.True(t, mustLogin(t, g, testSecret))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		g.Run(ctx)
		close(done)
	}()

	clock.Advance(30 * time.Minute)
	require.Eventually(t, func() bool {
		st, err := g.Status()
		return err == nil && st.Session != nil && st.Session.LastActivity.Equal(clock.Now())
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.MaxAttempts = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.InactivityTimeout = 0
	assert.Error(t, cfg.Validate())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "logged_out", LoggedOut.String())
	assert.Equal(t, "blocked", Blocked.String())
	assert.Equal(t, "logged_in", LoggedIn.String())
	assert.Equal(t, "unknown", State(42).String())
}
