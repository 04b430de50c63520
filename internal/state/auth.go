package state

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/wellnest-app/wellnest-dashboard/internal/domain/shared"
	"github.com/wellnest-app/wellnest-dashboard/internal/domain/user"
)

// ══════════════════════════════════════════════════════════════════════════════
// AUTH COORDINATOR
// ══════════════════════════════════════════════════════════════════════════════

// AuthState is the UI-facing authentication state.
type AuthState struct {
	Authenticated bool
	Loading       bool
	Initialized   bool
	Err           error
}

// AuthCoordinator sits above the session manager and the identity store and
// drives login, logout, and the app-startup bootstrap check.
//
// On login the identity is published before any dependent activity starts:
// the identity store is written first, then session validation and the
// heartbeat kick off. Logout is best-effort on the wire and unconditional
// locally - local cleanup runs even when the server cannot be reached.
type AuthCoordinator struct {
	api      AuthAPI
	sessions *SessionManager
	identity *IdentityStore
	bus      shared.EventBus
	storage  DurableStorage
	logger   *slog.Logger

	mu    sync.Mutex
	state AuthState
}

// NewAuthCoordinator creates an AuthCoordinator. storage may be nil, in which
// case remember-me is disabled.
func NewAuthCoordinator(api AuthAPI, sessions *SessionManager, identity *IdentityStore, bus shared.EventBus, storage DurableStorage, logger *slog.Logger) *AuthCoordinator {
	if logger == nil {
		logger = slog.Default()
	}

	return &AuthCoordinator{
		api:      api,
		sessions: sessions,
		identity: identity,
		bus:      bus,
		storage:  storage,
		logger:   logger.With("component", "auth"),
	}
}

// Login authenticates with the backend. Credential rejection and transport
// failure both land in the error state, but only the former carries
// shared.ErrAuthentication.
func (c *AuthCoordinator) Login(ctx context.Context, creds user.Credentials) error {
	if err := creds.Validate(); err != nil {
		c.setState(AuthState{Initialized: c.State().Initialized, Err: err})
		return err
	}

	c.setState(AuthState{Loading: true, Initialized: c.State().Initialized})

	result, err := c.api.Login(ctx, creds)
	if err != nil {
		wrapped := shared.WrapError("auth", "Login", nil, "login request failed", err)
		c.setState(AuthState{Initialized: true, Err: wrapped})
		return wrapped
	}

	if !result.Success || result.User == nil {
		msg := result.Error
		if msg == "" {
			msg = "invalid credentials"
		}
		rejected := shared.NewDomainError("auth", "Login", shared.ErrAuthentication, msg)
		c.setState(AuthState{Initialized: true, Err: rejected})
		return rejected
	}

	// Identity first: everything downstream (validation, heartbeat, resource
	// fetches) reads the user from the identity store.
	if err := c.identity.Set(*result.User); err != nil {
		c.setState(AuthState{Initialized: true, Err: err})
		return err
	}

	c.setState(AuthState{Authenticated: true, Initialized: true})
	c.publish(shared.NewUserLoggedInEvent(result.User.ID, result.User.Email))
	c.rememberEmail(ctx, creds)

	if _, err := c.sessions.Validate(ctx); err != nil {
		c.logger.Warn("post-login validation failed", "error", err)
	}
	c.sessions.StartPeriodicCheck(context.WithoutCancel(ctx))

	c.logger.Info("user logged in", "user_id", result.User.ID)
	return nil
}

// Logout signs out. The server call is best-effort; the local invalidation
// cascade runs unconditionally, so caches, durable storage, and identity are
// cleared even when the network is down.
func (c *AuthCoordinator) Logout(ctx context.Context) {
	c.setState(AuthState{Loading: true, Authenticated: c.State().Authenticated, Initialized: true})

	if err := c.api.Logout(ctx); err != nil {
		c.logger.Warn("server logout failed, clearing local state anyway", "error", err)
	}

	c.sessions.ForceInvalidate(shared.ReasonLogout)
	c.setState(AuthState{Initialized: true})

	// Remember-me is a convenience that ends with a deliberate sign-out. The
	// cascade leaves it alone so session expiry does not wipe the login form.
	if c.storage != nil {
		if err := c.storage.Remove(ctx, KeyRememberedEmail); err != nil {
			c.logger.Warn("clearing remembered email failed", "error", err)
		}
	}

	c.logger.Info("user logged out")
}

// RememberedEmail returns the email saved by the last remember-me login, if
// one exists.
func (c *AuthCoordinator) RememberedEmail(ctx context.Context) (string, bool) {
	if c.storage == nil {
		return "", false
	}

	data, err := c.storage.Get(ctx, KeyRememberedEmail)
	if err != nil {
		return "", false
	}

	var email string
	if err := json.Unmarshal(data, &email); err != nil {
		return "", false
	}
	return email, email != ""
}

func (c *AuthCoordinator) rememberEmail(ctx context.Context, creds user.Credentials) {
	if c.storage == nil {
		return
	}

	var err error
	if creds.Remember {
		data, _ := json.Marshal(creds.Email)
		err = c.storage.Set(ctx, KeyRememberedEmail, data)
	} else {
		err = c.storage.Remove(ctx, KeyRememberedEmail)
	}
	if err != nil {
		c.logger.Warn("updating remembered email failed", "error", err)
	}
}

// CheckSession is the app-startup bootstrap: it establishes whether a usable
// session exists before any protected view renders. Once the first check has
// resolved, further calls are no-ops unless forced - the heartbeat owns
// revalidation from then on.
func (c *AuthCoordinator) CheckSession(ctx context.Context, force bool) error {
	c.mu.Lock()
	if c.state.Initialized && !force {
		c.mu.Unlock()
		return nil
	}
	c.state.Loading = true
	c.mu.Unlock()

	status, err := c.sessions.Validate(ctx)
	if err != nil {
		c.identity.Clear()
		c.setState(AuthState{Initialized: true, Err: err})
		return err
	}

	if status == nil || !status.Authenticated || status.User == nil {
		// No usable session. Validate has already cleared session state and
		// fired the cascade when needed.
		c.identity.Clear()
		c.setState(AuthState{Initialized: true})
		return nil
	}

	if err := c.identity.Set(*status.User); err != nil {
		c.setState(AuthState{Initialized: true, Err: err})
		return err
	}

	c.setState(AuthState{Authenticated: true, Initialized: true})

	if !c.sessions.HeartbeatRunning() {
		c.sessions.StartPeriodicCheck(context.WithoutCancel(ctx))
	}

	c.logger.Info("session restored", "user_id", status.User.ID)
	return nil
}

// ClearError drops the sticky error so the UI can retry cleanly.
func (c *AuthCoordinator) ClearError() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Err = nil
}

// State returns the current auth state.
func (c *AuthCoordinator) State() AuthState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// HandleSessionInvalidated is the coordinator's cascade step: flip to
// signed-out. Subscribed after identity clearing and before UI notification.
func (c *AuthCoordinator) HandleSessionInvalidated(event shared.Event) error {
	if _, ok := event.(shared.SessionInvalidatedEvent); !ok {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Authenticated = false
	c.state.Loading = false
	return nil
}

func (c *AuthCoordinator) setState(s AuthState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = s
}

func (c *AuthCoordinator) publish(event shared.Event) {
	if c.bus == nil {
		return
	}
	if err := c.bus.Publish(event); err != nil {
		c.logger.Error("event publish failed", "event_type", event.EventType(), "error", err)
	}
}
