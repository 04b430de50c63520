// Package state implements the client-side session lifecycle manager and the
// multi-store caching/synchronization layer of the Wellnest dashboard. It
// keeps authentication state, a set of independently-fetched resource caches,
// and optimistic edits consistent across background re-validation, concurrent
// UI-triggered fetches, and sign-out cascades.
//
// The backend endpoints, scoring heuristics, and UI are external
// collaborators consumed through the interfaces in this file.
package state

import (
	"context"

	"github.com/wellnest-app/wellnest-dashboard/internal/domain/notification"
	"github.com/wellnest-app/wellnest-dashboard/internal/domain/session"
	"github.com/wellnest-app/wellnest-dashboard/internal/domain/student"
	"github.com/wellnest-app/wellnest-dashboard/internal/domain/user"
	"github.com/wellnest-app/wellnest-dashboard/internal/domain/wellness"
)

// LoginResult is the outcome of an AuthAPI login call. Success=false with a
// nil error is a domain-level rejection (bad credentials), distinct from a
// transport failure.
type LoginResult struct {
	Success bool       `json:"success"`
	User    *user.User `json:"user,omitempty"`
	Error   string     `json:"error,omitempty"`
}

// SessionStatus is the outcome of a session validation round-trip.
type SessionStatus struct {
	Authenticated bool             `json:"isAuthenticated"`
	User          *user.User       `json:"user,omitempty"`
	Session       *session.Session `json:"session,omitempty"`
}

// AuthAPI is the authentication surface of the backend.
type AuthAPI interface {
	Login(ctx context.Context, creds user.Credentials) (*LoginResult, error)
	Logout(ctx context.Context) error
}

// SessionAPI is the session management surface of the backend.
type SessionAPI interface {
	// Validate checks the current session and returns the authenticated user
	// and session when valid.
	Validate(ctx context.Context) (*SessionStatus, error)

	// Extend pushes the session expiry forward and returns the updated
	// session.
	Extend(ctx context.Context) (*session.Session, error)

	// Invalidate invalidates the session with the given ID, or the current
	// session when the ID is empty.
	Invalidate(ctx context.Context, sessionID string) error

	// InvalidateAll invalidates every session of the current user.
	InvalidateAll(ctx context.Context) error

	// RefreshActivity bumps the session's last-active stamp.
	RefreshActivity(ctx context.Context) error

	// ActiveSessions lists the user's sessions across devices.
	ActiveSessions(ctx context.Context) ([]session.Session, error)
}

// ResourceAPI is the dashboard resource surface of the backend. The server is
// authoritative on every write.
type ResourceAPI interface {
	Metrics(ctx context.Context, counselorID string) ([]wellness.Metric, error)
	MoodCheckIns(ctx context.Context, counselorID string) ([]wellness.MoodCheckIn, error)
	Activities(ctx context.Context, counselorID string) ([]wellness.Activity, error)
	Notifications(ctx context.Context, counselorID string) ([]notification.Notification, error)
	MarkNotificationRead(ctx context.Context, notificationID string) error
	Students(ctx context.Context, counselorID string) ([]student.Record, error)
	StudentProfile(ctx context.Context, studentID string) (student.Detail, error)
	UpdateStudentProfile(ctx context.Context, studentID string, patch student.Patch) (student.Detail, error)
}

// DurableStorage is JSON-blob key-value persistence that survives app
// restarts. Implementations must return shared.ErrNotFound from Get for a
// missing key and tolerate Remove of a missing key.
type DurableStorage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
}
