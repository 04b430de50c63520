package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/wellnest-app/wellnest-dashboard/internal/domain/session"
	"github.com/wellnest-app/wellnest-dashboard/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SERVER-SIDE SESSION STORE
// ══════════════════════════════════════════════════════════════════════════════

// SessionStore keeps server-side sessions in Redis. The session token is the
// Redis key, the TTL is the session lifetime, and a per-user set indexes
// active tokens so invalidate-all can find them.
type SessionStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// NewSessionStore creates a SessionStore on top of an existing Storage
// connection.
func NewSessionStore(storage *Storage, ttl time.Duration, logger *slog.Logger) *SessionStore {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return &SessionStore{
		client: storage.Client(),
		prefix: storage.config.KeyPrefix,
		ttl:    ttl,
		logger: logger.With("component", "session_store"),
		now:    time.Now,
	}
}

func (s *SessionStore) sessionKey(token string) string {
	return s.prefix + "sess:" + token
}

func (s *SessionStore) userKey(userID string) string {
	return s.prefix + "user-sess:" + userID
}

// Create issues a new session for a user.
func (s *SessionStore) Create(ctx context.Context, userID, deviceInfo string) (session.Session, error) {
	now := s.now().UTC()
	sess := session.Session{
		ID:           uuid.NewString(),
		UserID:       userID,
		ExpiresAt:    now.Add(s.ttl),
		LastActiveAt: now,
		DeviceInfo:   deviceInfo,
	}

	if err := s.write(ctx, sess, s.ttl); err != nil {
		return session.Session{}, err
	}

	if err := s.client.SAdd(ctx, s.userKey(userID), sess.ID).Err(); err != nil {
		return session.Session{}, fmt.Errorf("session store: index session: %w", err)
	}
	// The index outlives its members slightly; Get prunes dead tokens.
	s.client.Expire(ctx, s.userKey(userID), s.ttl*2)

	s.logger.Debug("session created", "user_id", userID, "session_id", sess.ID)
	return sess, nil
}

// Get returns the session for a token. Expired or unknown tokens come back
// as shared.ErrSessionExpired.
func (s *SessionStore) Get(ctx context.Context, token string) (session.Session, error) {
	if token == "" {
		return session.Session{}, shared.ErrSessionExpired
	}

	data, err := s.client.Get(ctx, s.sessionKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return session.Session{}, shared.ErrSessionExpired
		}
		return session.Session{}, fmt.Errorf("session store: get: %w", err)
	}

	var sess session.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return session.Session{}, fmt.Errorf("session store: decode: %w", err)
	}

	if sess.ExpiredAt(s.now()) {
		_ = s.Delete(ctx, token)
		return session.Session{}, shared.ErrSessionExpired
	}
	return sess, nil
}

// Extend pushes the session expiry a full lifetime forward.
func (s *SessionStore) Extend(ctx context.Context, token string) (session.Session, error) {
	sess, err := s.Get(ctx, token)
	if err != nil {
		return session.Session{}, err
	}

	now := s.now().UTC()
	sess = sess.Extended(now.Add(s.ttl), now)

	if err := s.write(ctx, sess, s.ttl); err != nil {
		return session.Session{}, err
	}
	return sess, nil
}

// Touch updates the last-active stamp without moving the expiry.
func (s *SessionStore) Touch(ctx context.Context, token string) error {
	sess, err := s.Get(ctx, token)
	if err != nil {
		return err
	}

	sess.LastActiveAt = s.now().UTC()
	remaining := sess.RemainingAt(s.now())
	if remaining <= 0 {
		return shared.ErrSessionExpired
	}
	return s.write(ctx, sess, remaining)
}

// Delete removes one session.
func (s *SessionStore) Delete(ctx context.Context, token string) error {
	sess, err := s.Get(ctx, token)
	if err == nil {
		s.client.SRem(ctx, s.userKey(sess.UserID), token)
	}
	return s.client.Del(ctx, s.sessionKey(token)).Err()
}

// DeleteAll removes every session of a user and returns how many were
// dropped.
func (s *SessionStore) DeleteAll(ctx context.Context, userID string) (int, error) {
	tokens, err := s.client.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("session store: list sessions: %w", err)
	}

	deleted := 0
	for _, token := range tokens {
		if err := s.client.Del(ctx, s.sessionKey(token)).Err(); err == nil {
			deleted++
		}
	}
	if err := s.client.Del(ctx, s.userKey(userID)).Err(); err != nil {
		return deleted, fmt.Errorf("session store: clear index: %w", err)
	}

	s.logger.Info("all sessions invalidated", "user_id", userID, "count", deleted)
	return deleted, nil
}

// ListByUser returns a user's live sessions, pruning dead index entries on
// the way.
func (s *SessionStore) ListByUser(ctx context.Context, userID string) ([]session.Session, error) {
	tokens, err := s.client.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("session store: list sessions: %w", err)
	}

	var sessions []session.Session
	for _, token := range tokens {
		sess, err := s.Get(ctx, token)
		if err != nil {
			if errors.Is(err, shared.ErrSessionExpired) {
				s.client.SRem(ctx, s.userKey(userID), token)
				continue
			}
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, nil
}

func (s *SessionStore) write(ctx context.Context, sess session.Session, ttl time.Duration) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("session store: encode: %w", err)
	}
	if err := s.client.Set(ctx, s.sessionKey(sess.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("session store: set: %w", err)
	}
	return nil
}
