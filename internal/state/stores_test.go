package state

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/wellnest-app/wellnest-dashboard/internal/domain/notification"
	"github.com/wellnest-app/wellnest-dashboard/internal/domain/shared"
	"github.com/wellnest-app/wellnest-dashboard/internal/domain/student"
	"github.com/wellnest-app/wellnest-dashboard/internal/domain/wellness"
	"github.com/wellnest-app/wellnest-dashboard/internal/infrastructure/persistence/memory"
)

// stubResourceAPI serves canned dashboard data and records write calls.
type stubResourceAPI struct {
	mu sync.Mutex

	notifications []notification.Notification
	students      []student.Record
	profiles      map[string]student.Detail

	markReadErr error
	updateErr   error

	markReadCalls []string
}

func (s *stubResourceAPI) Metrics(ctx context.Context, counselorID string) ([]wellness.Metric, error) {
	return []wellness.Metric{{ID: "total-students", Title: "Total Students", Value: "12"}}, nil
}

func (s *stubResourceAPI) MoodCheckIns(ctx context.Context, counselorID string) ([]wellness.MoodCheckIn, error) {
	return nil, nil
}

func (s *stubResourceAPI) Activities(ctx context.Context, counselorID string) ([]wellness.Activity, error) {
	return nil, nil
}

func (s *stubResourceAPI) Notifications(ctx context.Context, counselorID string) ([]notification.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.notifications, nil
}

func (s *stubResourceAPI) MarkNotificationRead(ctx context.Context, notificationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.markReadErr != nil {
		return s.markReadErr
	}
	s.markReadCalls = append(s.markReadCalls, notificationID)
	return nil
}

func (s *stubResourceAPI) Students(ctx context.Context, counselorID string) ([]student.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.students, nil
}

func (s *stubResourceAPI) StudentProfile(ctx context.Context, studentID string) (student.Detail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.profiles[studentID]
	if !ok {
		return student.Detail{}, shared.ErrNotFound
	}
	return d, nil
}

func (s *stubResourceAPI) UpdateStudentProfile(ctx context.Context, studentID string, patch student.Patch) (student.Detail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return student.Detail{}, s.updateErr
	}
	d := patch.Apply(s.profiles[studentID])
	d.UpdatedAt = time.Now()
	s.profiles[studentID] = d
	return d, nil
}

func sampleProfile(id string) student.Detail {
	return student.Detail{
		Record: student.Record{
			ID:        id,
			Name:      "Alex Kim",
			RiskLevel: student.RiskMedium,
		},
		CounselorID: "counselor-1",
		Notes:       "settling in",
	}
}

func newTestApp(t *testing.T, resources *stubResourceAPI, storage DurableStorage) *App {
	t.Helper()
	if storage == nil {
		storage = memory.NewStorage()
	}
	if resources.profiles == nil {
		resources.profiles = map[string]student.Detail{}
	}

	app, err := NewApp(Dependencies{
		Auth:          &stubAuthAPI{},
		Sessions:      &stubSessionAPI{},
		Resources:     resources,
		Storage:       storage,
		SessionConfig: fastConfig(),
	})
	assert.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	return app
}

// signIn installs an authenticated user and session directly, bypassing the
// wire protocol.
func signIn(t *testing.T, app *App) {
	t.Helper()
	assert.NoError(t, app.Identity.Set(testUser))
	app.Sessions.SetSession(liveSession("sess-1"))
}

func TestApp_FetchRequiresIdentity(t *testing.T) {
	app := newTestApp(t, &stubResourceAPI{}, nil)

	err := app.Students.Fetch(context.Background(), false)
	assert.ErrorIs(t, err, shared.ErrUnauthorized)
	assert.False(t, app.Students.Snapshot().HasValue)
}

func TestApp_InvalidationCascadeOrder(t *testing.T) {
	storage := memory.NewStorage()
	resources := &stubResourceAPI{
		students: []student.Record{{ID: "st-1", Name: "Alex Kim"}},
		notifications: []notification.Notification{
			{ID: "n-1", Title: "Check-in overdue"},
		},
	}
	app := newTestApp(t, resources, storage)
	signIn(t, app)

	assert.NoError(t, app.Students.Fetch(context.Background(), false))
	assert.NoError(t, app.Notifications.Fetch(context.Background(), false))
	assert.NoError(t, app.Metrics.Fetch(context.Background(), false))
	assert.NoError(t, app.SaveAll(context.Background()))
	assert.Greater(t, storage.Len(), 0)

	// The UI listener runs at the end of the cascade; by then every other
	// cleanup step must already be observable.
	var observedReason shared.InvalidationReason
	uiCalls := 0
	app.OnSessionInvalidated(func(reason shared.InvalidationReason) {
		uiCalls++
		observedReason = reason

		assert.False(t, app.Students.Snapshot().HasValue, "caches cleared before UI")
		assert.False(t, app.Notifications.Snapshot().HasValue)
		assert.False(t, app.Metrics.Snapshot().HasValue)
		assert.Equal(t, 0, storage.Len(), "durable storage cleared before UI")
		assert.Equal(t, "", app.Identity.UserID(), "identity cleared before UI")
		assert.False(t, app.Auth.State().Authenticated, "auth flags cleared before UI")
	})

	app.Sessions.ForceInvalidate(shared.ReasonExpired)

	assert.Equal(t, 1, uiCalls)
	assert.Equal(t, shared.ReasonExpired, observedReason)
	assert.True(t, app.Sessions.ShouldRedirectToAuth())
}

func TestApp_CascadeRunsOnceForRepeatedRejection(t *testing.T) {
	sessionAPI := &stubSessionAPI{
		validateFn: func(ctx context.Context) (*SessionStatus, error) {
			return &SessionStatus{Authenticated: false}, nil
		},
	}
	storage := memory.NewStorage()
	app, err := NewApp(Dependencies{
		Auth:          &stubAuthAPI{},
		Sessions:      sessionAPI,
		Resources:     &stubResourceAPI{profiles: map[string]student.Detail{}},
		Storage:       storage,
		SessionConfig: fastConfig(),
	})
	assert.NoError(t, err)
	defer app.Close()

	uiCalls := 0
	app.OnSessionInvalidated(func(shared.InvalidationReason) { uiCalls++ })

	app.Sessions.SetSession(liveSession("sess-1"))

	_, _ = app.Sessions.Validate(context.Background())
	_, _ = app.Sessions.Validate(context.Background())

	assert.Equal(t, 1, uiCalls)
}

func TestApp_SaveAllBoundsNotifications(t *testing.T) {
	storage := memory.NewStorage()
	resources := &stubResourceAPI{}
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 25; i++ {
		resources.notifications = append(resources.notifications, notification.Notification{
			ID:        fmt.Sprintf("n-%d", i),
			Title:     "alert",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}
	app := newTestApp(t, resources, storage)
	signIn(t, app)

	assert.NoError(t, app.Notifications.Fetch(context.Background(), false))
	assert.Len(t, app.Notifications.Snapshot().Value, 25, "the in-memory cache is unbounded")

	assert.NoError(t, app.SaveAll(context.Background()))

	data, err := storage.Get(context.Background(), KeyNotificationsStorage)
	assert.NoError(t, err)

	var persisted PersistedValue[[]notification.Notification]
	assert.NoError(t, json.Unmarshal(data, &persisted))
	assert.Len(t, persisted.Value, PersistedNotificationLimit)
	assert.Equal(t, "n-24", persisted.Value[0].ID, "newest first")
	assert.Equal(t, "n-15", persisted.Value[PersistedNotificationLimit-1].ID)
}

func TestApp_RehydrateRestoresStores(t *testing.T) {
	storage := memory.NewStorage()

	resources := &stubResourceAPI{
		students: []student.Record{{ID: "st-1", Name: "Alex Kim"}},
	}
	first := newTestApp(t, resources, storage)
	signIn(t, first)
	assert.NoError(t, first.Students.Fetch(context.Background(), false))
	assert.NoError(t, first.SaveAll(context.Background()))
	assert.NoError(t, first.Close())

	// Fresh process over the same storage.
	second := newTestApp(t, &stubResourceAPI{}, storage)
	assert.NoError(t, second.Rehydrate(context.Background()))

	assert.Equal(t, "counselor-1", second.Identity.UserID())
	assert.True(t, second.Sessions.Valid())

	snap := second.Students.Snapshot()
	assert.True(t, snap.HasValue)
	assert.Equal(t, "st-1", snap.Value[0].ID)
	assert.False(t, second.Students.Stale(), "a freshly stamped value is still fresh after restart")
}

func TestApp_RehydrateDropsExpiredSession(t *testing.T) {
	storage := memory.NewStorage()

	expired := liveSession("sess-old")
	expired.ExpiresAt = time.Now().Add(-time.Hour)
	blob, err := json.Marshal(PersistedSession{Session: expired, LastChecked: time.Now().Add(-2 * time.Hour)})
	assert.NoError(t, err)
	assert.NoError(t, storage.Set(context.Background(), KeySessionStorage, blob))

	app := newTestApp(t, &stubResourceAPI{}, storage)

	uiCalls := 0
	app.OnSessionInvalidated(func(shared.InvalidationReason) { uiCalls++ })

	assert.NoError(t, app.Rehydrate(context.Background()))

	assert.False(t, app.Sessions.Valid())
	assert.Equal(t, 0, uiCalls, "dropping a stale persisted session is not an invalidation")
}

func TestNotificationsStore_MarkReadServerFirst(t *testing.T) {
	resources := &stubResourceAPI{
		notifications: []notification.Notification{
			{ID: "n-1", Title: "alert", IsRead: false},
			{ID: "n-2", Title: "other", IsRead: false},
		},
	}
	app := newTestApp(t, resources, nil)
	signIn(t, app)
	assert.NoError(t, app.Notifications.Fetch(context.Background(), false))
	assert.Equal(t, 2, app.Notifications.Unread())

	// Server refuses: the local flag must not flip.
	resources.markReadErr = shared.ErrNetwork
	assert.Error(t, app.Notifications.MarkRead(context.Background(), "n-1"))
	assert.Equal(t, 2, app.Notifications.Unread())

	// Server confirms: only then does the flag flip.
	resources.markReadErr = nil
	assert.NoError(t, app.Notifications.MarkRead(context.Background(), "n-1"))
	assert.Equal(t, 1, app.Notifications.Unread())
	assert.Equal(t, []string{"n-1"}, resources.markReadCalls)
}

func TestNotificationsStore_ClearIsLocalOnly(t *testing.T) {
	resources := &stubResourceAPI{
		notifications: []notification.Notification{
			{ID: "n-1"},
			{ID: "n-2"},
		},
	}
	app := newTestApp(t, resources, nil)
	signIn(t, app)
	assert.NoError(t, app.Notifications.Fetch(context.Background(), false))

	app.Notifications.Clear("n-1")

	snap := app.Notifications.Snapshot()
	assert.Len(t, snap.Value, 1)
	assert.Equal(t, "n-2", snap.Value[0].ID)

	// The next forced refresh is authoritative and brings it back.
	assert.NoError(t, app.Notifications.Fetch(context.Background(), true))
	assert.Len(t, app.Notifications.Snapshot().Value, 2)
}

func TestStudentsStore_UpdateLocal(t *testing.T) {
	resources := &stubResourceAPI{
		students: []student.Record{
			{ID: "st-1", Name: "Alex Kim", RiskLevel: student.RiskLow},
			{ID: "st-2", Name: "Sam Ray", RiskLevel: student.RiskHigh},
		},
	}
	app := newTestApp(t, resources, nil)
	signIn(t, app)
	assert.NoError(t, app.Students.Fetch(context.Background(), false))

	ok := app.Students.UpdateLocal(student.Record{ID: "st-2", Name: "Sam Ray", RiskLevel: student.RiskCritical})
	assert.True(t, ok)

	snap := app.Students.Snapshot()
	assert.Equal(t, student.RiskCritical, snap.Value[1].RiskLevel)
	assert.Equal(t, student.RiskLow, snap.Value[0].RiskLevel)

	assert.False(t, app.Students.UpdateLocal(student.Record{ID: "st-404"}))
}

func TestProfileStore_OptimisticUpdateRoundTrip(t *testing.T) {
	resources := &stubResourceAPI{
		profiles: map[string]student.Detail{"st-1": sampleProfile("st-1")},
	}
	app := newTestApp(t, resources, nil)
	signIn(t, app)

	assert.NoError(t, app.Profiles.Fetch(context.Background(), "st-1", false))

	notes := "met on Tuesday, doing better"
	assert.NoError(t, app.Profiles.Update(context.Background(), "st-1", student.Patch{Notes: &notes}))

	d, ok := app.Profiles.Get("st-1")
	assert.True(t, ok)
	assert.Equal(t, notes, d.Notes)
}

func TestProfileStore_UpdateUncachedFailsFast(t *testing.T) {
	resources := &stubResourceAPI{
		profiles: map[string]student.Detail{"st-1": sampleProfile("st-1")},
	}
	app := newTestApp(t, resources, nil)
	signIn(t, app)

	notes := "x"
	err := app.Profiles.Update(context.Background(), "st-1", student.Patch{Notes: &notes})
	assert.ErrorIs(t, err, shared.ErrNotCached)
}

func TestProfileStore_UpdateRollsBackOnServerError(t *testing.T) {
	resources := &stubResourceAPI{
		profiles: map[string]student.Detail{"st-1": sampleProfile("st-1")},
	}
	app := newTestApp(t, resources, nil)
	signIn(t, app)

	assert.NoError(t, app.Profiles.Fetch(context.Background(), "st-1", false))

	resources.updateErr = shared.ErrNetwork
	notes := "doomed"
	err := app.Profiles.Update(context.Background(), "st-1", student.Patch{Notes: &notes})
	assert.ErrorIs(t, err, shared.ErrNetwork)

	d, _ := app.Profiles.Get("st-1")
	assert.Equal(t, "settling in", d.Notes, "the edit is gone without a trace")
	assert.ErrorIs(t, app.Profiles.Err(), shared.ErrNetwork)
}

func TestProfileStore_EmptyPatchIsNoOp(t *testing.T) {
	resources := &stubResourceAPI{
		profiles: map[string]student.Detail{"st-1": sampleProfile("st-1")},
	}
	app := newTestApp(t, resources, nil)
	signIn(t, app)

	// No fetch, no cache; an empty patch still succeeds because nothing
	// needs to happen.
	assert.NoError(t, app.Profiles.Update(context.Background(), "st-1", student.Patch{}))
}

func TestProfileStore_InvalidPatchRejected(t *testing.T) {
	app := newTestApp(t, &stubResourceAPI{}, nil)
	signIn(t, app)

	blank := "   "
	err := app.Profiles.Update(context.Background(), "st-1", student.Patch{Name: &blank})
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestApp_SaveAllNeverPersistsUnconfirmedEdit(t *testing.T) {
	storage := memory.NewStorage()
	resources := &stubResourceAPI{
		profiles: map[string]student.Detail{"st-1": sampleProfile("st-1")},
	}
	app := newTestApp(t, resources, storage)
	signIn(t, app)

	assert.NoError(t, app.Profiles.Fetch(context.Background(), "st-1", false))

	// Snapshot durable state from inside the in-flight mutation, while the
	// optimistic value is installed but unconfirmed.
	saveErr := make(chan error, 1)
	app.Profiles.updater.send = func(ctx context.Context, key string, patch student.Patch) (student.Detail, error) {
		saveErr <- app.SaveAll(context.Background())
		return student.Detail{}, shared.ErrNetwork
	}

	notes := "unconfirmed"
	assert.Error(t, app.Profiles.Update(context.Background(), "st-1", student.Patch{Notes: &notes}))
	assert.NoError(t, <-saveErr)

	data, err := storage.Get(context.Background(), KeyProfilesStorage)
	assert.NoError(t, err)

	var persisted map[string]PersistedEntry[student.Detail]
	assert.NoError(t, json.Unmarshal(data, &persisted))
	assert.Equal(t, "settling in", persisted["st-1"].Value.Notes,
		"an in-flight edit must be persisted from its pre-mutation snapshot")
}
