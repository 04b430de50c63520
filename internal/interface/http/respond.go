package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wellnest-app/wellnest-dashboard/internal/domain/session"
	"github.com/wellnest-app/wellnest-dashboard/internal/domain/shared"
)

// writeJSON writes a JSON response with the given status.
func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("response encode failed", "error", err)
	}
}

// writeError writes the {"error": ...} body the client expects.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// writeDomainError maps a shared sentinel onto an HTTP status.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, shared.ErrValidation), errors.Is(err, shared.ErrInvalidInput):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, shared.ErrAuthentication), errors.Is(err, shared.ErrSessionExpired):
		s.writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, shared.ErrForbidden):
		s.writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, shared.ErrConflict), errors.Is(err, shared.ErrAlreadyExists):
		s.writeError(w, http.StatusConflict, err.Error())
	default:
		s.logger.Error("request failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeJSON decodes a request body, rejecting unknown fields.
func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

// sessionFromRequest resolves the session cookie to a live session.
func (s *Server) sessionFromRequest(r *http.Request) (session.Session, error) {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil {
		return session.Session{}, shared.ErrSessionExpired
	}
	return s.deps.Sessions.Get(r.Context(), cookie.Value)
}

// sessionFromContext returns the session installed by requireSession.
func sessionFromContext(r *http.Request) (session.Session, bool) {
	sess, ok := r.Context().Value(contextKeySession).(session.Session)
	return sess, ok
}

// setSessionCookie installs the session token cookie.
func (s *Server) setSessionCookie(w http.ResponseWriter, sess session.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    sess.ID,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   s.config.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// clearSessionCookie expires the session cookie.
func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.config.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}
