package state

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wellnest-app/wellnest-dashboard/internal/domain/shared"
	"github.com/wellnest-app/wellnest-dashboard/internal/domain/user"
	"github.com/wellnest-app/wellnest-dashboard/internal/infrastructure/messaging"
	"github.com/wellnest-app/wellnest-dashboard/internal/infrastructure/persistence/memory"
)

var testUser = user.User{
	ID:    "counselor-1",
	Email: "jordan@wellnest.app",
	Name:  "Jordan Lee",
	Role:  user.RoleCounselor,
}

// stubAuthAPI is a scriptable AuthAPI for tests.
type stubAuthAPI struct {
	mu sync.Mutex

	loginFn  func(ctx context.Context, creds user.Credentials) (*LoginResult, error)
	logoutFn func(ctx context.Context) error

	logoutCalls int
}

func (s *stubAuthAPI) Login(ctx context.Context, creds user.Credentials) (*LoginResult, error) {
	if s.loginFn == nil {
		return &LoginResult{Success: true, User: &testUser}, nil
	}
	return s.loginFn(ctx, creds)
}

func (s *stubAuthAPI) Logout(ctx context.Context) error {
	s.mu.Lock()
	s.logoutCalls++
	s.mu.Unlock()

	if s.logoutFn == nil {
		return nil
	}
	return s.logoutFn(ctx)
}

func newTestCoordinator(t *testing.T, authAPI AuthAPI, sessionAPI SessionAPI) (*AuthCoordinator, *SessionManager, *IdentityStore, *messaging.InMemoryEventBus) {
	t.Helper()
	bus := messaging.NewInMemoryEventBus(messaging.Config{})
	identity := NewIdentityStore(nil)
	sessions, err := NewSessionManager(sessionAPI, bus, fastConfig(), nil)
	assert.NoError(t, err)
	coord := NewAuthCoordinator(authAPI, sessions, identity, bus, memory.NewStorage(), nil)
	return coord, sessions, identity, bus
}

func goodCreds() user.Credentials {
	return user.Credentials{Email: "jordan@wellnest.app", Password: "s3cret"}
}

func TestAuthCoordinator_LoginSuccess(t *testing.T) {
	sessionAPI := &stubSessionAPI{
		validateFn: func(ctx context.Context) (*SessionStatus, error) {
			return authenticatedStatus("sess-1"), nil
		},
	}
	coord, sessions, identity, _ := newTestCoordinator(t, &stubAuthAPI{}, sessionAPI)
	defer sessions.StopPeriodicCheck()

	assert.NoError(t, coord.Login(context.Background(), goodCreds()))

	state := coord.State()
	assert.True(t, state.Authenticated)
	assert.True(t, state.Initialized)
	assert.NoError(t, state.Err)

	assert.Equal(t, "counselor-1", identity.UserID())
	assert.True(t, sessions.Valid())
	assert.True(t, sessions.HeartbeatRunning())
}

func TestAuthCoordinator_LoginPublishesIdentityBeforeValidation(t *testing.T) {
	identityAtValidation := ""
	var identity *IdentityStore

	sessionAPI := &stubSessionAPI{
		validateFn: func(ctx context.Context) (*SessionStatus, error) {
			identityAtValidation = identity.UserID()
			return authenticatedStatus("sess-1"), nil
		},
	}
	coord, sessions, id, _ := newTestCoordinator(t, &stubAuthAPI{}, sessionAPI)
	identity = id
	defer sessions.StopPeriodicCheck()

	assert.NoError(t, coord.Login(context.Background(), goodCreds()))

	assert.Equal(t, "counselor-1", identityAtValidation,
		"validation must already see the signed-in user")
}

func TestAuthCoordinator_LoginRejectedCredentials(t *testing.T) {
	authAPI := &stubAuthAPI{
		loginFn: func(ctx context.Context, creds user.Credentials) (*LoginResult, error) {
			return &LoginResult{Success: false, Error: "invalid email or password"}, nil
		},
	}
	coord, _, identity, _ := newTestCoordinator(t, authAPI, &stubSessionAPI{})

	err := coord.Login(context.Background(), goodCreds())

	assert.ErrorIs(t, err, shared.ErrAuthentication)
	assert.Contains(t, err.Error(), "invalid email or password")

	state := coord.State()
	assert.False(t, state.Authenticated)
	assert.True(t, state.Initialized)
	assert.Error(t, state.Err)
	assert.Equal(t, "", identity.UserID())
}

func TestAuthCoordinator_LoginTransportFailure(t *testing.T) {
	authAPI := &stubAuthAPI{
		loginFn: func(ctx context.Context, creds user.Credentials) (*LoginResult, error) {
			return nil, shared.ErrNetwork
		},
	}
	coord, _, _, _ := newTestCoordinator(t, authAPI, &stubSessionAPI{})

	err := coord.Login(context.Background(), goodCreds())

	assert.Error(t, err)
	assert.NotErrorIs(t, err, shared.ErrAuthentication,
		"an unreachable server is not a credential rejection")
	assert.ErrorIs(t, err, shared.ErrNetwork)
}

func TestAuthCoordinator_LoginBadInputShortCircuits(t *testing.T) {
	loginCalled := false
	authAPI := &stubAuthAPI{
		loginFn: func(ctx context.Context, creds user.Credentials) (*LoginResult, error) {
			loginCalled = true
			return nil, nil
		},
	}
	coord, _, _, _ := newTestCoordinator(t, authAPI, &stubSessionAPI{})

	err := coord.Login(context.Background(), user.Credentials{Email: "", Password: ""})

	assert.ErrorIs(t, err, shared.ErrValidation)
	assert.False(t, loginCalled, "empty credentials must not hit the network")
}

func TestAuthCoordinator_LogoutBestEffortOnWire(t *testing.T) {
	authAPI := &stubAuthAPI{
		logoutFn: func(ctx context.Context) error {
			return shared.ErrNetwork
		},
	}
	coord, sessions, identity, bus := newTestCoordinator(t, authAPI, &stubSessionAPI{})
	events := collectInvalidations(t, bus)

	assert.NoError(t, identity.Set(testUser))
	sessions.SetSession(liveSession("sess-1"))

	coord.Logout(context.Background())

	assert.Equal(t, 1, authAPI.logoutCalls)
	assert.False(t, sessions.Valid(), "local sign-out is unconditional")
	assert.False(t, coord.State().Authenticated)
	assert.Len(t, *events, 1)
	assert.Equal(t, shared.ReasonLogout, (*events)[0].Reason)
}

func TestAuthCoordinator_RememberedEmailLifecycle(t *testing.T) {
	sessionAPI := &stubSessionAPI{
		validateFn: func(ctx context.Context) (*SessionStatus, error) {
			return authenticatedStatus("sess-1"), nil
		},
	}
	coord, sessions, _, _ := newTestCoordinator(t, &stubAuthAPI{}, sessionAPI)
	defer sessions.StopPeriodicCheck()

	creds := goodCreds()
	creds.Remember = true
	assert.NoError(t, coord.Login(context.Background(), creds))

	email, ok := coord.RememberedEmail(context.Background())
	assert.True(t, ok)
	assert.Equal(t, "jordan@wellnest.app", email)

	// A later login without remember-me drops the saved email.
	assert.NoError(t, coord.Login(context.Background(), goodCreds()))
	_, ok = coord.RememberedEmail(context.Background())
	assert.False(t, ok)

	// And a deliberate logout clears it too.
	creds.Remember = true
	assert.NoError(t, coord.Login(context.Background(), creds))
	coord.Logout(context.Background())
	_, ok = coord.RememberedEmail(context.Background())
	assert.False(t, ok)
}

func TestAuthCoordinator_CheckSessionRestores(t *testing.T) {
	sessionAPI := &stubSessionAPI{
		validateFn: func(ctx context.Context) (*SessionStatus, error) {
			return authenticatedStatus("sess-1"), nil
		},
	}
	coord, sessions, identity, _ := newTestCoordinator(t, &stubAuthAPI{}, sessionAPI)
	defer sessions.StopPeriodicCheck()

	assert.NoError(t, coord.CheckSession(context.Background(), false))

	state := coord.State()
	assert.True(t, state.Authenticated)
	assert.True(t, state.Initialized)
	assert.Equal(t, "counselor-1", identity.UserID())
	assert.True(t, sessions.HeartbeatRunning())
}

func TestAuthCoordinator_CheckSessionNoSession(t *testing.T) {
	coord, sessions, identity, _ := newTestCoordinator(t, &stubAuthAPI{}, &stubSessionAPI{})

	assert.NoError(t, coord.CheckSession(context.Background(), false))

	state := coord.State()
	assert.False(t, state.Authenticated)
	assert.True(t, state.Initialized, "a resolved check initializes even without a session")
	assert.NoError(t, state.Err)
	assert.Equal(t, "", identity.UserID())
	assert.False(t, sessions.HeartbeatRunning())
}

func TestAuthCoordinator_CheckSessionIdempotentOnceInitialized(t *testing.T) {
	sessionAPI := &stubSessionAPI{}
	coord, _, _, _ := newTestCoordinator(t, &stubAuthAPI{}, sessionAPI)

	assert.NoError(t, coord.CheckSession(context.Background(), false))
	assert.NoError(t, coord.CheckSession(context.Background(), false))
	assert.NoError(t, coord.CheckSession(context.Background(), false))

	assert.Equal(t, 1, sessionAPI.ValidateCalls(),
		"the heartbeat owns revalidation after the bootstrap check")

	assert.NoError(t, coord.CheckSession(context.Background(), true))
	assert.Equal(t, 2, sessionAPI.ValidateCalls(), "force bypasses the guard")
}

func TestAuthCoordinator_ClearError(t *testing.T) {
	authAPI := &stubAuthAPI{
		loginFn: func(ctx context.Context, creds user.Credentials) (*LoginResult, error) {
			return &LoginResult{Success: false}, nil
		},
	}
	coord, _, _, _ := newTestCoordinator(t, authAPI, &stubSessionAPI{})

	assert.Error(t, coord.Login(context.Background(), goodCreds()))
	assert.Error(t, coord.State().Err)

	coord.ClearError()
	assert.NoError(t, coord.State().Err)
	assert.True(t, coord.State().Initialized, "clearing the error must not reset the rest")
}
