package state

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/wellnest-app/wellnest-dashboard/internal/domain/session"
	"github.com/wellnest-app/wellnest-dashboard/internal/domain/shared"
	"github.com/wellnest-app/wellnest-dashboard/internal/infrastructure/scheduler"
	"github.com/wellnest-app/wellnest-dashboard/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// SessionManagerConfig holds session lifecycle configuration.
type SessionManagerConfig struct {
	// CheckInterval is the heartbeat period between background validations.
	CheckInterval time.Duration

	// RetryAttempts is the total number of validation attempts before a
	// transient failure is treated as a dead session (first try included).
	RetryAttempts int

	// RetryDelay is the initial backoff between validation retries.
	RetryDelay time.Duration
}

// DefaultSessionManagerConfig returns sensible defaults.
func DefaultSessionManagerConfig() SessionManagerConfig {
	return SessionManagerConfig{
		CheckInterval: 5 * time.Minute,
		RetryAttempts: 3,
		RetryDelay:    time.Second,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// SESSION MANAGER
// ══════════════════════════════════════════════════════════════════════════════

// SessionManager owns the client's session lifecycle: validation, extension,
// invalidation, and the periodic heartbeat.
//
// Validation is deduplicated: while one round-trip is in flight, further
// Validate calls return immediately without observing or altering state, and
// the in-flight outcome stands for everyone. Validation fails closed - a
// server rejection, or transient failures that survive the retry budget,
// clears the session rather than assuming it is still good.
//
// Detected invalidation publishes exactly one SessionInvalidatedEvent on the
// bus; subscription order on the bus encodes the cleanup cascade.
type SessionManager struct {
	api     SessionAPI
	bus     shared.EventBus
	logger  *slog.Logger
	now     func() time.Time
	retrier *retry.Retrier

	heartbeat *scheduler.RepeatingTask

	mu          sync.Mutex
	session     *session.Session
	valid       bool
	validating  bool
	lastChecked time.Time
}

// NewSessionManager creates a SessionManager. The heartbeat is not started
// until StartPeriodicCheck is called.
func NewSessionManager(api SessionAPI, bus shared.EventBus, cfg SessionManagerConfig, logger *slog.Logger) (*SessionManager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = DefaultSessionManagerConfig().CheckInterval
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = DefaultSessionManagerConfig().RetryAttempts
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultSessionManagerConfig().RetryDelay
	}

	m := &SessionManager{
		api:    api,
		bus:    bus,
		logger: logger.With("component", "session_manager"),
		now:    time.Now,
		retrier: retry.New(
			retry.WithMaxAttempts(cfg.RetryAttempts),
			retry.WithInitialDelay(cfg.RetryDelay),
		),
	}

	heartbeat, err := scheduler.NewRepeatingTask("session-heartbeat", cfg.CheckInterval, m.heartbeatTick, logger)
	if err != nil {
		return nil, err
	}
	m.heartbeat = heartbeat

	return m, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// VALIDATION
// ══════════════════════════════════════════════════════════════════════════════

// Validate runs a validation round-trip against the server. When another
// validation is already in flight, the call is a pure no-op returning
// (nil, nil); the in-flight result stands for both callers.
//
// Transient failures are retried within the configured budget; exhausting it,
// or an explicit server rejection, invalidates the local session (fail
// closed).
func (m *SessionManager) Validate(ctx context.Context) (*SessionStatus, error) {
	m.mu.Lock()
	if m.validating {
		m.mu.Unlock()
		return nil, nil
	}
	m.validating = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.validating = false
		m.mu.Unlock()
	}()

	var status *SessionStatus
	err := m.retrier.Do(ctx, func(ctx context.Context) error {
		st, err := m.api.Validate(ctx)
		if err != nil {
			if shared.IsTransient(err) {
				return retry.Retryable(err)
			}
			return retry.Permanent(err)
		}
		status = st
		return nil
	})

	now := m.now()

	if err != nil {
		m.logger.Warn("session validation unreachable, failing closed", "error", err)
		m.publish(m.failClosed(shared.ReasonUnreachable, now))
		return nil, shared.WrapError("session", "Validate", nil, "validation failed", err)
	}

	if status == nil || !status.Authenticated || status.Session == nil {
		m.logger.Info("session rejected by server")
		m.publish(m.failClosed(shared.ReasonRejected, now))
		return status, nil
	}

	m.mu.Lock()
	s := *status.Session
	m.session = &s
	m.valid = true
	m.lastChecked = now
	m.mu.Unlock()

	var userID string
	if status.User != nil {
		userID = status.User.ID
	}
	m.publish(shared.NewSessionValidatedEvent(s.ID, userID, s.ExpiresAt))

	return status, nil
}

// failClosed clears local session state and returns the event to
// publish, or nil when the session was already invalid (the cascade fires at
// most once per detected invalidation).
func (m *SessionManager) failClosed(reason shared.InvalidationReason, now time.Time) shared.Event {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastChecked = now
	wasValid := m.valid

	var sessionID string
	if m.session != nil {
		sessionID = m.session.ID
	}
	m.session = nil
	m.valid = false

	if !wasValid {
		return nil
	}
	return shared.NewSessionInvalidatedEvent(sessionID, reason)
}

func (m *SessionManager) publish(event shared.Event) {
	if event == nil || m.bus == nil {
		return
	}
	if err := m.bus.Publish(event); err != nil {
		m.logger.Error("event publish failed", "event_type", event.EventType(), "error", err)
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// HEARTBEAT
// ══════════════════════════════════════════════════════════════════════════════

// StartPeriodicCheck starts the background heartbeat. Calling it again while
// running replaces the existing heartbeat; concurrent timers never
// accumulate.
func (m *SessionManager) StartPeriodicCheck(ctx context.Context) {
	m.heartbeat.Start(ctx)
}

// StopPeriodicCheck stops the heartbeat. Idempotent.
func (m *SessionManager) StopPeriodicCheck() {
	m.heartbeat.Stop()
}

// HeartbeatRunning reports whether the heartbeat loop is installed.
func (m *SessionManager) HeartbeatRunning() bool {
	return m.heartbeat.Running()
}

// heartbeatTick revalidates on the heartbeat. It retires the loop (returns
// false) once the session is gone - the loop must not call Stop on itself,
// and a dead session needs no heartbeat. The invalidation cascade has already
// fired from inside Validate by then, and since the tick runs synchronously
// on the loop goroutine, no further tick can start after it.
func (m *SessionManager) heartbeatTick(ctx context.Context) bool {
	m.mu.Lock()
	valid := m.valid
	m.mu.Unlock()

	if !valid {
		return false
	}

	if _, err := m.Validate(ctx); err != nil {
		m.logger.Warn("heartbeat validation failed", "error", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.valid
}

// ══════════════════════════════════════════════════════════════════════════════
// EXTENSION AND INVALIDATION
// ══════════════════════════════════════════════════════════════════════════════

// Extend asks the server to push the session expiry forward. On failure local
// state is untouched; the old expiry keeps counting down.
func (m *SessionManager) Extend(ctx context.Context) error {
	m.mu.Lock()
	hasSession := m.session != nil
	m.mu.Unlock()

	if !hasSession {
		return shared.NewDomainError("session", "Extend", shared.ErrInvalidState, "no active session")
	}

	extended, err := m.api.Extend(ctx)
	if err != nil {
		return shared.WrapError("session", "Extend", nil, "extension failed", err)
	}

	m.mu.Lock()
	s := *extended
	m.session = &s
	m.valid = true
	m.lastChecked = m.now()
	m.mu.Unlock()

	m.publish(shared.NewSessionExtendedEvent(s.ID, s.ExpiresAt))
	return nil
}

// Invalidate invalidates the session with the given ID on the server, or the
// current session when the ID is empty. When the invalidated session is the
// local one, the local cascade runs as well; invalidating another device's
// session leaves local state alone.
func (m *SessionManager) Invalidate(ctx context.Context, sessionID string) error {
	if err := m.api.Invalidate(ctx, sessionID); err != nil {
		return shared.WrapError("session", "Invalidate", nil, "invalidation failed", err)
	}

	m.mu.Lock()
	current := ""
	if m.session != nil {
		current = m.session.ID
	}
	m.mu.Unlock()

	if sessionID == "" || sessionID == current {
		m.ForceInvalidate(shared.ReasonLogout)
	}
	return nil
}

// InvalidateAll invalidates every session of the current user, this device
// included.
func (m *SessionManager) InvalidateAll(ctx context.Context) error {
	if err := m.api.InvalidateAll(ctx); err != nil {
		return shared.WrapError("session", "InvalidateAll", nil, "invalidation failed", err)
	}

	m.ForceInvalidate(shared.ReasonLogout)
	return nil
}

// ForceInvalidate runs the local invalidation cascade without a server
// round-trip: the heartbeat is stopped first, then local state is cleared,
// then the invalidation event drives the subscribed stores. Sign-out uses
// this so local cleanup happens even when the server is unreachable.
//
// Must not be called from inside a heartbeat tick; ticks retire the loop by
// returning false instead.
func (m *SessionManager) ForceInvalidate(reason shared.InvalidationReason) {
	m.heartbeat.Stop()

	m.mu.Lock()
	var sessionID string
	if m.session != nil {
		sessionID = m.session.ID
	}
	m.session = nil
	m.valid = false
	m.mu.Unlock()

	m.logger.Info("session invalidated", "reason", reason)
	m.publish(shared.NewSessionInvalidatedEvent(sessionID, reason))
}

// RefreshActivity bumps the session's last-active stamp. Best-effort; a
// failure changes nothing locally.
func (m *SessionManager) RefreshActivity(ctx context.Context) error {
	m.mu.Lock()
	valid := m.valid
	m.mu.Unlock()

	if !valid {
		return nil
	}

	if err := m.api.RefreshActivity(ctx); err != nil {
		return shared.WrapError("session", "RefreshActivity", nil, "refresh failed", err)
	}

	m.mu.Lock()
	if m.session != nil {
		s := m.session.Extended(m.session.ExpiresAt, m.now())
		m.session = &s
	}
	m.mu.Unlock()
	return nil
}

// ActiveSessions lists the user's sessions across devices.
func (m *SessionManager) ActiveSessions(ctx context.Context) ([]session.Session, error) {
	return m.api.ActiveSessions(ctx)
}

// ══════════════════════════════════════════════════════════════════════════════
// STATE ACCESS
// ══════════════════════════════════════════════════════════════════════════════

// SetSession installs a session obtained out-of-band (login response,
// rehydration). Validity is judged against the clock.
func (m *SessionManager) SetSession(s session.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := s
	m.session = &stored
	m.valid = s.ValidAt(m.now())
	m.lastChecked = m.now()
}

// Session returns the current session, if any.
func (m *SessionManager) Session() (session.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		return session.Session{}, false
	}
	return *m.session, true
}

// Valid reports whether the manager currently holds a validated session.
func (m *SessionManager) Valid() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.valid
}

// LastChecked returns the stamp of the last completed validation.
func (m *SessionManager) LastChecked() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastChecked
}

// authorizedLocked is the single source of truth for both redirect
// predicates, so they are complementary by construction.
func (m *SessionManager) authorizedLocked() bool {
	return m.valid && m.session != nil && !m.session.ExpiredAt(m.now())
}

// ShouldRedirectToAuth reports whether a protected view must bounce to the
// sign-in page.
func (m *SessionManager) ShouldRedirectToAuth() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.authorizedLocked()
}

// ShouldRedirectFromAuth reports whether the sign-in page must bounce to the
// dashboard. Always the exact complement of ShouldRedirectToAuth at the same
// instant.
func (m *SessionManager) ShouldRedirectFromAuth() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.authorizedLocked()
}

// ══════════════════════════════════════════════════════════════════════════════
// PERSISTENCE PROJECTION
// ══════════════════════════════════════════════════════════════════════════════

// PersistedSession is the durable projection of the session state.
type PersistedSession struct {
	Session     session.Session `json:"session"`
	LastChecked time.Time       `json:"lastChecked"`
}

// Export returns the durable projection, and false when there is nothing
// worth persisting.
func (m *SessionManager) Export() (PersistedSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.valid || m.session == nil {
		return PersistedSession{}, false
	}
	return PersistedSession{Session: *m.session, LastChecked: m.lastChecked}, true
}

// RestoreSession rehydrates a persisted session. A session that expired while
// the app was closed is dropped on the spot and false is returned; no cascade
// fires because nothing downstream has been populated yet.
func (m *SessionManager) RestoreSession(p PersistedSession) bool {
	if p.Session.ExpiredAt(m.now()) {
		m.logger.Info("persisted session expired, dropping", "session_id", p.Session.ID)
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s := p.Session
	m.session = &s
	m.valid = true
	m.lastChecked = p.LastChecked
	return true
}

// setNow overrides the clock for tests.
func (m *SessionManager) setNow(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}
