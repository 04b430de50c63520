package backend

import (
	"context"
	"errors"
	"net/http"

	"github.com/wellnest-app/wellnest-dashboard/internal/domain/shared"
	"github.com/wellnest-app/wellnest-dashboard/internal/domain/user"
	"github.com/wellnest-app/wellnest-dashboard/internal/state"
)

// Login authenticates against the backend. A credential rejection comes back
// as Success=false with the server's message, not as an error; errors are
// reserved for transport and protocol failures.
func (c *Client) Login(ctx context.Context, creds user.Credentials) (*state.LoginResult, error) {
	var result state.LoginResult
	err := c.do(ctx, http.MethodPost, "/api/auth/signin", creds, &result)
	if err != nil {
		// The server answers 401 with a result body; surface that as a
		// rejection rather than a transport error.
		if errors.Is(err, shared.ErrAuthentication) {
			return &state.LoginResult{Success: false, Error: "invalid email or password"}, nil
		}
		return nil, err
	}
	return &result, nil
}

// Logout ends the server-side session. Callers treat failures as
// best-effort.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/auth/signout", nil, nil)
}
