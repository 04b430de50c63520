// Package session contains the session entity owned by the session lifecycle
// manager. A session is created on login or successful validation, refreshed
// on extension, and destroyed on invalidation - or lazily treated as expired
// once the wall clock passes ExpiresAt.
package session

import (
	"time"
)

// Session is the client's view of its server-side session.
type Session struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId,omitempty"`
	ExpiresAt    time.Time `json:"expiresAt"`
	LastActiveAt time.Time `json:"lastActiveAt"`
	DeviceInfo   string    `json:"deviceInfo,omitempty"`
}

// ExpiredAt reports whether the session is expired as of the given instant.
// A zero ExpiresAt counts as expired.
func (s Session) ExpiredAt(now time.Time) bool {
	return s.ExpiresAt.IsZero() || !now.Before(s.ExpiresAt)
}

// ValidAt reports whether the session can still be used at the given instant.
func (s Session) ValidAt(now time.Time) bool {
	return s.ID != "" && !s.ExpiredAt(now)
}

// RemainingAt returns how long the session has left at the given instant,
// clamped at zero.
func (s Session) RemainingAt(now time.Time) time.Duration {
	if s.ExpiredAt(now) {
		return 0
	}
	return s.ExpiresAt.Sub(now)
}

// Extended returns a copy with refreshed expiry and activity stamps.
func (s Session) Extended(expiresAt, lastActiveAt time.Time) Session {
	s.ExpiresAt = expiresAt
	s.LastActiveAt = lastActiveAt
	return s
}
