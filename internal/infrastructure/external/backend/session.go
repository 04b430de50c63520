package backend

import (
	"context"
	"errors"
	"net/http"

	"github.com/wellnest-app/wellnest-dashboard/internal/domain/session"
	"github.com/wellnest-app/wellnest-dashboard/internal/domain/shared"
	"github.com/wellnest-app/wellnest-dashboard/internal/state"
)

// Validate checks the current session. A 401 is a definitive "not
// authenticated" answer, not a failure: the caller must be able to tell a
// rejected session from an unreachable server.
func (c *Client) Validate(ctx context.Context) (*state.SessionStatus, error) {
	var status state.SessionStatus
	err := c.do(ctx, http.MethodGet, "/api/auth/session/validate", nil, &status)
	if err != nil {
		if errors.Is(err, shared.ErrAuthentication) {
			return &state.SessionStatus{Authenticated: false}, nil
		}
		return nil, err
	}
	return &status, nil
}

// Extend pushes the session expiry forward.
func (c *Client) Extend(ctx context.Context) (*session.Session, error) {
	var resp struct {
		Session session.Session `json:"session"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/auth/session/extend", nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Session, nil
}

// Invalidate revokes the session with the given ID, or the current session
// when the ID is empty.
func (c *Client) Invalidate(ctx context.Context, sessionID string) error {
	body := map[string]string{}
	if sessionID != "" {
		body["sessionId"] = sessionID
	}
	return c.do(ctx, http.MethodPost, "/api/auth/session/invalidate", body, nil)
}

// InvalidateAll revokes every session of the current user.
func (c *Client) InvalidateAll(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/auth/session/invalidate-all", nil, nil)
}

// RefreshActivity bumps the session's last-active stamp.
func (c *Client) RefreshActivity(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/auth/session/refresh", nil, nil)
}

// ActiveSessions lists the user's sessions across devices.
func (c *Client) ActiveSessions(ctx context.Context) ([]session.Session, error) {
	var resp struct {
		Sessions []session.Session `json:"sessions"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/auth/session/active", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Sessions, nil
}
