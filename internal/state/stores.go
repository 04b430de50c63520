package state

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/wellnest-app/wellnest-dashboard/internal/domain/notification"
	"github.com/wellnest-app/wellnest-dashboard/internal/domain/shared"
	"github.com/wellnest-app/wellnest-dashboard/internal/domain/student"
	"github.com/wellnest-app/wellnest-dashboard/internal/domain/user"
	"github.com/wellnest-app/wellnest-dashboard/internal/domain/wellness"
	"github.com/wellnest-app/wellnest-dashboard/internal/infrastructure/messaging"
)

// ══════════════════════════════════════════════════════════════════════════════
// PERSISTED PROJECTIONS
// ══════════════════════════════════════════════════════════════════════════════

// PersistedValue is the durable projection of a single-value cached store.
type PersistedValue[T any] struct {
	Value       T         `json:"value"`
	LastFetched time.Time `json:"lastFetched"`
}

func captureStore[T any](s *CachedStore[T]) (any, bool) {
	snap := s.Snapshot()
	if !snap.HasValue {
		return nil, false
	}
	return PersistedValue[T]{Value: snap.Value, LastFetched: snap.LastFetched}, true
}

func restoreStore[T any](s *CachedStore[T], data []byte) error {
	var p PersistedValue[T]
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	s.Restore(p.Value, p.LastFetched)
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATIONS STORE
// ══════════════════════════════════════════════════════════════════════════════

// NotificationsStore caches the counselor's notifications with a short TTL
// and local read/clear operations. Mark-read is confirmed by the server
// before the local flag flips; clearing is local-only, the next refresh is
// authoritative.
type NotificationsStore struct {
	cache  *CachedStore[[]notification.Notification]
	api    ResourceAPI
	logger *slog.Logger
}

// Fetch loads notifications unless the cache is fresh.
func (s *NotificationsStore) Fetch(ctx context.Context, force bool) error {
	return s.cache.Fetch(ctx, force)
}

// Snapshot returns the current cached notifications.
func (s *NotificationsStore) Snapshot() Snapshot[[]notification.Notification] {
	return s.cache.Snapshot()
}

// Stale reports whether the cache needs a refresh.
func (s *NotificationsStore) Stale() bool {
	return s.cache.Stale()
}

// Unread counts cached unread notifications.
func (s *NotificationsStore) Unread() int {
	snap := s.cache.Snapshot()
	count := 0
	for _, n := range snap.Value {
		if !n.IsRead {
			count++
		}
	}
	return count
}

// MarkRead marks one notification as read, server first. The local flag only
// flips after the server confirms.
func (s *NotificationsStore) MarkRead(ctx context.Context, notificationID string) error {
	if err := s.api.MarkNotificationRead(ctx, notificationID); err != nil {
		return shared.WrapError("notifications", "MarkRead", nil, "mark-read failed", err)
	}

	s.cache.Mutate(func(list []notification.Notification) []notification.Notification {
		out := make([]notification.Notification, len(list))
		for i, n := range list {
			if n.ID == notificationID {
				n = n.WithRead(true)
			}
			out[i] = n
		}
		return out
	})
	return nil
}

// Clear removes one notification from the local cache. No server round-trip;
// the next refresh is authoritative.
func (s *NotificationsStore) Clear(notificationID string) {
	s.cache.Mutate(func(list []notification.Notification) []notification.Notification {
		out := make([]notification.Notification, 0, len(list))
		for _, n := range list {
			if n.ID != notificationID {
				out = append(out, n)
			}
		}
		return out
	})
}

// Reset drops the cache.
func (s *NotificationsStore) Reset() {
	s.cache.Reset()
}

// capture bounds the durable projection to the most recent notifications.
func (s *NotificationsStore) capture() (any, bool) {
	snap := s.cache.Snapshot()
	if !snap.HasValue {
		return nil, false
	}
	bounded := notification.MostRecent(snap.Value, PersistedNotificationLimit)
	return PersistedValue[[]notification.Notification]{Value: bounded, LastFetched: snap.LastFetched}, true
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDENTS STORE
// ══════════════════════════════════════════════════════════════════════════════

// StudentsStore caches the counselor's student roster.
type StudentsStore struct {
	cache *CachedStore[[]student.Record]
}

// Fetch loads the roster unless the cache is fresh.
func (s *StudentsStore) Fetch(ctx context.Context, force bool) error {
	return s.cache.Fetch(ctx, force)
}

// Snapshot returns the current cached roster.
func (s *StudentsStore) Snapshot() Snapshot[[]student.Record] {
	return s.cache.Snapshot()
}

// Stale reports whether the cache needs a refresh.
func (s *StudentsStore) Stale() bool {
	return s.cache.Stale()
}

// UpdateLocal replaces one roster row in place, typically after a confirmed
// profile edit. Returns false when the roster is not cached or the student is
// not in it.
func (s *StudentsStore) UpdateLocal(rec student.Record) bool {
	replaced := false
	s.cache.Mutate(func(list []student.Record) []student.Record {
		out := make([]student.Record, len(list))
		for i, r := range list {
			if r.ID == rec.ID {
				r = rec
				replaced = true
			}
			out[i] = r
		}
		return out
	})
	return replaced
}

// Reset drops the cache.
func (s *StudentsStore) Reset() {
	s.cache.Reset()
}

// ══════════════════════════════════════════════════════════════════════════════
// PROFILE STORE
// ══════════════════════════════════════════════════════════════════════════════

// ProfileStore caches student profiles keyed by student ID with per-profile
// staleness, and runs profile edits through the optimistic update protocol.
type ProfileStore struct {
	store   *KeyedStore[student.Detail]
	updater *OptimisticUpdater[student.Detail, student.Patch]
}

// Fetch loads one profile unless a fresh entry is cached.
func (s *ProfileStore) Fetch(ctx context.Context, studentID string, force bool) error {
	return s.store.Fetch(ctx, studentID, force)
}

// Get returns the cached profile for a student.
func (s *ProfileStore) Get(studentID string) (student.Detail, bool) {
	return s.store.Get(studentID)
}

// Stale reports whether the profile for a student needs a refresh.
func (s *ProfileStore) Stale(studentID string) bool {
	return s.store.Stale(studentID)
}

// Err returns the last refresh or edit error.
func (s *ProfileStore) Err() error {
	return s.store.Err()
}

// Update edits a profile optimistically. Fails fast with shared.ErrNotCached
// when the profile has not been loaded; rolls back to the exact pre-edit
// snapshot when the server rejects or the network fails.
func (s *ProfileStore) Update(ctx context.Context, studentID string, patch student.Patch) error {
	if err := patch.Validate(); err != nil {
		return err
	}
	if patch.IsEmpty() {
		return nil
	}
	return s.updater.Update(ctx, studentID, patch)
}

// Reset drops every cached profile.
func (s *ProfileStore) Reset() {
	s.store.Reset()
}

func (s *ProfileStore) capture() (any, bool) {
	entries := s.store.PersistableEntries()
	if len(entries) == 0 {
		return nil, false
	}
	return entries, true
}

func (s *ProfileStore) restore(data []byte) error {
	var entries map[string]PersistedEntry[student.Detail]
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	for key, entry := range entries {
		s.store.Restore(key, entry.Value, entry.LastFetched)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// APP WIRING
// ══════════════════════════════════════════════════════════════════════════════

// Dependencies are the external collaborators the state layer is wired with.
type Dependencies struct {
	Auth      AuthAPI
	Sessions  SessionAPI
	Resources ResourceAPI
	Storage   DurableStorage

	// Bus is optional; a synchronous in-memory bus is created when nil.
	Bus shared.EventBus

	// SessionConfig tunes the heartbeat and validation retries.
	SessionConfig SessionManagerConfig

	Logger *slog.Logger
}

// App is the fully wired client state layer.
type App struct {
	Bus         shared.EventBus
	Identity    *IdentityStore
	Sessions    *SessionManager
	Auth        *AuthCoordinator
	Persistence *PersistenceAdapter

	Metrics       *CachedStore[[]wellness.Metric]
	Moods         *CachedStore[[]wellness.MoodCheckIn]
	Activities    *CachedStore[[]wellness.Activity]
	Notifications *NotificationsStore
	Students      *StudentsStore
	Profiles      *ProfileStore

	logger *slog.Logger

	uiMu        sync.Mutex
	uiListeners []func(shared.InvalidationReason)
}

// NewApp wires the complete state layer. Subscription order on the bus is the
// invalidation cascade order: the session manager stops its own heartbeat
// before publishing, then in-memory caches reset, durable storage clears,
// identity and auth flags clear, and UI listeners run last.
func NewApp(deps Dependencies) (*App, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	bus := deps.Bus
	if bus == nil {
		bus = messaging.NewInMemoryEventBus(messaging.Config{Logger: logger, EnableMetrics: true})
	}

	identity := NewIdentityStore(logger)

	sessions, err := NewSessionManager(deps.Sessions, bus, deps.SessionConfig, logger)
	if err != nil {
		return nil, err
	}

	auth := NewAuthCoordinator(deps.Auth, sessions, identity, bus, deps.Storage, logger)
	persistence := NewPersistenceAdapter(deps.Storage, logger)

	app := &App{
		Bus:         bus,
		Identity:    identity,
		Sessions:    sessions,
		Auth:        auth,
		Persistence: persistence,
		logger:      logger,
	}

	// Every resource fetch is scoped to the signed-in counselor; the closure
	// reads the ID at fetch time so a store never serves another user's data.
	app.Metrics = NewCachedStore("metrics", TTLMetrics,
		func(ctx context.Context) ([]wellness.Metric, error) {
			uid, err := app.requireUserID()
			if err != nil {
				return nil, err
			}
			return deps.Resources.Metrics(ctx, uid)
		}, logger)

	app.Moods = NewCachedStore("moods", TTLMoods,
		func(ctx context.Context) ([]wellness.MoodCheckIn, error) {
			uid, err := app.requireUserID()
			if err != nil {
				return nil, err
			}
			return deps.Resources.MoodCheckIns(ctx, uid)
		}, logger)

	app.Activities = NewCachedStore("activities", TTLActivities,
		func(ctx context.Context) ([]wellness.Activity, error) {
			uid, err := app.requireUserID()
			if err != nil {
				return nil, err
			}
			return deps.Resources.Activities(ctx, uid)
		}, logger)

	app.Notifications = &NotificationsStore{
		cache: NewCachedStore("notifications", TTLNotifications,
			func(ctx context.Context) ([]notification.Notification, error) {
				uid, err := app.requireUserID()
				if err != nil {
					return nil, err
				}
				return deps.Resources.Notifications(ctx, uid)
			}, logger),
		api:    deps.Resources,
		logger: logger,
	}

	app.Students = &StudentsStore{
		cache: NewCachedStore("students", TTLStudents,
			func(ctx context.Context) ([]student.Record, error) {
				uid, err := app.requireUserID()
				if err != nil {
					return nil, err
				}
				return deps.Resources.Students(ctx, uid)
			}, logger),
	}

	profiles := NewKeyedStore("profiles", TTLProfiles,
		func(ctx context.Context, studentID string) (student.Detail, error) {
			return deps.Resources.StudentProfile(ctx, studentID)
		}, logger)
	app.Profiles = &ProfileStore{
		store: profiles,
		updater: NewOptimisticUpdater(profiles,
			func(current student.Detail, patch student.Patch) student.Detail {
				return patch.Apply(current)
			},
			func(ctx context.Context, studentID string, patch student.Patch) (student.Detail, error) {
				return deps.Resources.UpdateStudentProfile(ctx, studentID, patch)
			}, logger),
	}

	app.registerPersistence()
	if err := app.subscribeCascade(); err != nil {
		return nil, err
	}

	return app, nil
}

func (a *App) requireUserID() (string, error) {
	uid := a.Identity.UserID()
	if uid == "" {
		return "", shared.NewDomainError("state", "Fetch", shared.ErrUnauthorized, "no authenticated user")
	}
	return uid, nil
}

// registerPersistence declares the durable projections, one key per store.
func (a *App) registerPersistence() {
	a.Persistence.Register(Registration{
		Key: KeySessionStorage,
		Capture: func() (any, bool) {
			p, ok := a.Sessions.Export()
			return p, ok
		},
		Restore: func(data []byte) error {
			var p PersistedSession
			if err := json.Unmarshal(data, &p); err != nil {
				return err
			}
			a.Sessions.RestoreSession(p)
			return nil
		},
	})

	a.Persistence.Register(Registration{
		Key: KeyUserStorage,
		Capture: func() (any, bool) {
			u, ok := a.Identity.Get()
			if !ok {
				return nil, false
			}
			return u, true
		},
		Restore: func(data []byte) error {
			var u user.User
			if err := json.Unmarshal(data, &u); err != nil {
				return err
			}
			return a.Identity.Set(u)
		},
	})

	a.Persistence.Register(Registration{
		Key:     KeyMetricsStorage,
		Capture: func() (any, bool) { return captureStore(a.Metrics) },
		Restore: func(data []byte) error { return restoreStore(a.Metrics, data) },
	})

	a.Persistence.Register(Registration{
		Key:     KeyMoodStorage,
		Capture: func() (any, bool) { return captureStore(a.Moods) },
		Restore: func(data []byte) error { return restoreStore(a.Moods, data) },
	})

	a.Persistence.Register(Registration{
		Key:     KeyActivitiesStorage,
		Capture: func() (any, bool) { return captureStore(a.Activities) },
		Restore: func(data []byte) error { return restoreStore(a.Activities, data) },
	})

	a.Persistence.Register(Registration{
		Key:     KeyNotificationsStorage,
		Capture: a.Notifications.capture,
		Restore: func(data []byte) error { return restoreStore(a.Notifications.cache, data) },
	})

	a.Persistence.Register(Registration{
		Key:     KeyStudentsStorage,
		Capture: func() (any, bool) { return captureStore(a.Students.cache) },
		Restore: func(data []byte) error { return restoreStore(a.Students.cache, data) },
	})

	a.Persistence.Register(Registration{
		Key:     KeyProfilesStorage,
		Capture: a.Profiles.capture,
		Restore: a.Profiles.restore,
	})
}

// subscribeCascade wires the invalidation cascade. Handlers run synchronously
// in this exact order on every SessionInvalidatedEvent.
func (a *App) subscribeCascade() error {
	steps := []shared.EventHandler{
		// In-memory caches first: once the event is out, no store may serve
		// the dead session's data.
		func(shared.Event) error {
			a.Metrics.Reset()
			a.Moods.Reset()
			a.Activities.Reset()
			a.Notifications.Reset()
			a.Students.Reset()
			a.Profiles.Reset()
			return nil
		},
		// Then the durable copies.
		func(shared.Event) error {
			return a.Persistence.Clear(context.Background())
		},
		// Then identity and auth flags.
		func(shared.Event) error {
			a.Identity.Clear()
			return nil
		},
		a.Auth.HandleSessionInvalidated,
		// UI last, so listeners observe fully cleared state.
		func(event shared.Event) error {
			reason := shared.ReasonLogout
			if inv, ok := event.(shared.SessionInvalidatedEvent); ok {
				reason = inv.Reason
			}
			a.notifyUI(reason)
			return nil
		},
	}

	for _, step := range steps {
		if err := a.Bus.Subscribe(shared.EventSessionInvalidated, step); err != nil {
			return err
		}
	}
	return nil
}

// OnSessionInvalidated registers a UI listener invoked at the end of the
// invalidation cascade. Register during wiring, before any session activity.
func (a *App) OnSessionInvalidated(fn func(shared.InvalidationReason)) {
	a.uiMu.Lock()
	defer a.uiMu.Unlock()
	a.uiListeners = append(a.uiListeners, fn)
}

func (a *App) notifyUI(reason shared.InvalidationReason) {
	a.uiMu.Lock()
	listeners := make([]func(shared.InvalidationReason), len(a.uiListeners))
	copy(listeners, a.uiListeners)
	a.uiMu.Unlock()

	for _, fn := range listeners {
		fn(reason)
	}
}

// SaveAll persists every registered store.
func (a *App) SaveAll(ctx context.Context) error {
	return a.Persistence.SaveAll(ctx)
}

// Rehydrate restores persisted state on startup. Call before CheckSession so
// the bootstrap validation sees the restored session.
func (a *App) Rehydrate(ctx context.Context) error {
	return a.Persistence.Rehydrate(ctx)
}

// Close stops background work and shuts the bus down.
func (a *App) Close() error {
	a.Sessions.StopPeriodicCheck()
	return a.Bus.Close()
}
