package state

import (
	"log/slog"
	"sync"

	"github.com/wellnest-app/wellnest-dashboard/internal/domain/user"
)

// ══════════════════════════════════════════════════════════════════════════════
// IDENTITY STORE
// ══════════════════════════════════════════════════════════════════════════════

// IdentityStore holds the authenticated user. It is written by the auth
// coordinator before any dependent activity starts (session validation,
// heartbeat, resource fetches all read the counselor ID from here), and
// cleared by the invalidation cascade.
type IdentityStore struct {
	logger *slog.Logger

	mu   sync.RWMutex
	user *user.User
}

// NewIdentityStore creates an empty IdentityStore.
func NewIdentityStore(logger *slog.Logger) *IdentityStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &IdentityStore{logger: logger}
}

// Set installs the authenticated user after validating it.
func (s *IdentityStore) Set(u user.User) error {
	if err := u.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := u
	s.user = &stored
	s.logger.Debug("identity set", "user_id", u.ID, "role", u.Role)
	return nil
}

// Get returns the authenticated user, if any.
func (s *IdentityStore) Get() (user.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.user == nil {
		return user.User{}, false
	}
	return *s.user, true
}

// UserID returns the authenticated user's ID, or "" when signed out.
func (s *IdentityStore) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.user == nil {
		return ""
	}
	return s.user.ID
}

// Clear drops the identity.
func (s *IdentityStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.user = nil
	s.logger.Debug("identity cleared")
}
