package http

import (
	"errors"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/wellnest-app/wellnest-dashboard/internal/domain/shared"
	"github.com/wellnest-app/wellnest-dashboard/internal/domain/user"
)

// ══════════════════════════════════════════════════════════════════════════════
// AUTHENTICATION HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleSignIn checks credentials and issues a session. Wrong email and wrong
// password are indistinguishable in the response.
func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var creds user.Credentials
	if err := decodeJSON(r, &creds); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if err := creds.Validate(); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rejected := func() {
		s.writeJSON(w, http.StatusUnauthorized, map[string]any{
			"success": false,
			"error":   "invalid email or password",
		})
	}

	account, err := s.deps.Users.GetByEmail(r.Context(), creds.Email)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			rejected()
			return
		}
		s.writeDomainError(w, err)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(creds.Password)); err != nil {
		rejected()
		return
	}

	sess, err := s.deps.Sessions.Create(r.Context(), account.ID, r.UserAgent())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.setSessionCookie(w, sess)
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    account.User,
	})
}

// handleSignOut ends the current session. Signing out without a live session
// still succeeds; the client clears local state regardless.
func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookie); err == nil && cookie.Value != "" {
		if err := s.deps.Sessions.Delete(r.Context(), cookie.Value); err != nil {
			s.logger.Warn("session delete failed on signout", "error", err)
		}
	}

	s.clearSessionCookie(w)
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
