package http

import (
	"errors"
	"net/http"

	"github.com/wellnest-app/wellnest-dashboard/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SESSION HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleSessionValidate answers the client heartbeat. Unlike the guarded
// endpoints it answers 200 with isAuthenticated=false for a dead session, so
// the client can distinguish "rejected" from "unreachable".
func (s *Server) handleSessionValidate(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessionFromRequest(r)
	if err != nil {
		if errors.Is(err, shared.ErrSessionExpired) {
			s.writeJSON(w, http.StatusOK, map[string]any{"isAuthenticated": false})
			return
		}
		s.writeDomainError(w, err)
		return
	}

	u, err := s.deps.Users.GetByID(r.Context(), sess.UserID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			// Orphaned session; kill it.
			_ = s.deps.Sessions.Delete(r.Context(), sess.ID)
			s.writeJSON(w, http.StatusOK, map[string]any{"isAuthenticated": false})
			return
		}
		s.writeDomainError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"isAuthenticated": true,
		"user":            u,
		"session":         sess,
	})
}

// handleSessionExtend pushes the session expiry forward.
func (s *Server) handleSessionExtend(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFromContext(r)
	if !ok {
		s.writeError(w, http.StatusUnauthorized, "no session")
		return
	}

	extended, err := s.deps.Sessions.Extend(r.Context(), sess.ID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.setSessionCookie(w, extended)
	s.writeJSON(w, http.StatusOK, map[string]any{"session": extended})
}

// handleSessionInvalidate revokes one session: the caller's own when the body
// names none, or any of the caller's other sessions by ID.
func (s *Server) handleSessionInvalidate(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFromContext(r)
	if !ok {
		s.writeError(w, http.StatusUnauthorized, "no session")
		return
	}

	var body struct {
		SessionID string `json:"sessionId"`
	}
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &body); err != nil {
			s.writeError(w, http.StatusBadRequest, "malformed request body")
			return
		}
	}

	target := body.SessionID
	if target == "" {
		target = sess.ID
	}

	// Only the owner may revoke a session.
	targetSess, err := s.deps.Sessions.Get(r.Context(), target)
	if err == nil && targetSess.UserID != sess.UserID {
		s.writeError(w, http.StatusForbidden, "not your session")
		return
	}

	if err := s.deps.Sessions.Delete(r.Context(), target); err != nil {
		s.writeDomainError(w, err)
		return
	}

	if target == sess.ID {
		s.clearSessionCookie(w)
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// handleSessionInvalidateAll revokes every session of the caller.
func (s *Server) handleSessionInvalidateAll(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFromContext(r)
	if !ok {
		s.writeError(w, http.StatusUnauthorized, "no session")
		return
	}

	count, err := s.deps.Sessions.DeleteAll(r.Context(), sess.UserID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.clearSessionCookie(w)
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true, "invalidated": count})
}

// handleSessionRefresh bumps the last-active stamp without moving expiry.
func (s *Server) handleSessionRefresh(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFromContext(r)
	if !ok {
		s.writeError(w, http.StatusUnauthorized, "no session")
		return
	}

	if err := s.deps.Sessions.Touch(r.Context(), sess.ID); err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// handleSessionActive lists the caller's sessions across devices.
func (s *Server) handleSessionActive(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFromContext(r)
	if !ok {
		s.writeError(w, http.StatusUnauthorized, "no session")
		return
	}

	sessions, err := s.deps.Sessions.ListByUser(r.Context(), sess.UserID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}
