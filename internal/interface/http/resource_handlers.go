package http

import (
	"net/http"
	"strconv"

	"github.com/wellnest-app/wellnest-dashboard/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESOURCE HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// requireSelf guards counselor-scoped resources: a counselor only sees their
// own dashboard data.
func (s *Server) requireSelf(w http.ResponseWriter, r *http.Request) (string, bool) {
	counselorID := r.PathValue("id")
	sess, ok := sessionFromContext(r)
	if !ok || counselorID == "" {
		s.writeError(w, http.StatusUnauthorized, "no session")
		return "", false
	}
	if sess.UserID != counselorID {
		s.writeError(w, http.StatusForbidden, "not your dashboard")
		return "", false
	}
	return counselorID, true
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	counselorID, ok := s.requireSelf(w, r)
	if !ok {
		return
	}

	metrics, err := s.deps.Wellness.MetricsForCounselor(r.Context(), counselorID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"metrics": metrics})
}

func (s *Server) handleMoodCheckIns(w http.ResponseWriter, r *http.Request) {
	counselorID, ok := s.requireSelf(w, r)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	checkIns, err := s.deps.Wellness.RecentMoodCheckIns(r.Context(), counselorID, limit)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"checkIns": checkIns})
}

func (s *Server) handleActivities(w http.ResponseWriter, r *http.Request) {
	counselorID, ok := s.requireSelf(w, r)
	if !ok {
		return
	}

	activities, err := s.deps.Wellness.ActivitiesByCounselor(r.Context(), counselorID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"activities": activities})
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	counselorID, ok := s.requireSelf(w, r)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	notifications, err := s.deps.Notifications.ListByUser(r.Context(), counselorID, limit)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"notifications": notifications})
}

func (s *Server) handleNotificationRead(w http.ResponseWriter, r *http.Request) {
	if _, ok := sessionFromContext(r); !ok {
		s.writeError(w, http.StatusUnauthorized, "no session")
		return
	}

	if err := s.deps.Notifications.MarkRead(r.Context(), r.PathValue("id")); err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleStudents(w http.ResponseWriter, r *http.Request) {
	counselorID, ok := s.requireSelf(w, r)
	if !ok {
		return
	}

	students, err := s.deps.Students.ListByCounselor(r.Context(), counselorID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"students": students})
}

func (s *Server) handleStudentProfile(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFromContext(r)
	if !ok {
		s.writeError(w, http.StatusUnauthorized, "no session")
		return
	}

	detail, err := s.deps.Students.GetDetail(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if detail.CounselorID != "" && detail.CounselorID != sess.UserID {
		s.writeError(w, http.StatusForbidden, "not your student")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"student": detail})
}

func (s *Server) handleStudentUpdate(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFromContext(r)
	if !ok {
		s.writeError(w, http.StatusUnauthorized, "no session")
		return
	}

	studentID := r.PathValue("id")

	current, err := s.deps.Students.GetDetail(r.Context(), studentID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if current.CounselorID != "" && current.CounselorID != sess.UserID {
		s.writeError(w, http.StatusForbidden, "not your student")
		return
	}

	var patch student.Patch
	if err := decodeJSON(r, &patch); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	updated, err := s.deps.Students.ApplyPatch(r.Context(), studentID, patch)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"student": updated})
}
