package backend

import (
	"context"
	"net/http"
	"net/url"

	"github.com/wellnest-app/wellnest-dashboard/internal/domain/notification"
	"github.com/wellnest-app/wellnest-dashboard/internal/domain/student"
	"github.com/wellnest-app/wellnest-dashboard/internal/domain/wellness"
)

// Resource reads go through the circuit breaker: they are frequent, retried
// by their stores, and individually non-critical, so a dying backend should
// shed them first.

// Metrics fetches the counselor's dashboard metric cards.
func (c *Client) Metrics(ctx context.Context, counselorID string) ([]wellness.Metric, error) {
	var resp struct {
		Metrics []wellness.Metric `json:"metrics"`
	}
	path := "/api/counselors/" + url.PathEscape(counselorID) + "/metrics"
	if err := c.doResource(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Metrics, nil
}

// MoodCheckIns fetches recent mood check-ins from the counselor's students.
func (c *Client) MoodCheckIns(ctx context.Context, counselorID string) ([]wellness.MoodCheckIn, error) {
	var resp struct {
		CheckIns []wellness.MoodCheckIn `json:"checkIns"`
	}
	path := "/api/counselors/" + url.PathEscape(counselorID) + "/mood-checkins"
	if err := c.doResource(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.CheckIns, nil
}

// Activities fetches the counselor's scheduled activities.
func (c *Client) Activities(ctx context.Context, counselorID string) ([]wellness.Activity, error) {
	var resp struct {
		Activities []wellness.Activity `json:"activities"`
	}
	path := "/api/counselors/" + url.PathEscape(counselorID) + "/activities"
	if err := c.doResource(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Activities, nil
}

// Notifications fetches the counselor's notifications.
func (c *Client) Notifications(ctx context.Context, counselorID string) ([]notification.Notification, error) {
	var resp struct {
		Notifications []notification.Notification `json:"notifications"`
	}
	path := "/api/counselors/" + url.PathEscape(counselorID) + "/notifications"
	if err := c.doResource(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Notifications, nil
}

// MarkNotificationRead marks one notification as read.
func (c *Client) MarkNotificationRead(ctx context.Context, notificationID string) error {
	path := "/api/notifications/" + url.PathEscape(notificationID) + "/read"
	return c.doResource(ctx, http.MethodPost, path, nil, nil)
}

// Students fetches the counselor's student roster.
func (c *Client) Students(ctx context.Context, counselorID string) ([]student.Record, error) {
	var resp struct {
		Students []student.Record `json:"students"`
	}
	path := "/api/counselors/" + url.PathEscape(counselorID) + "/students"
	if err := c.doResource(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Students, nil
}

// StudentProfile fetches one student's full profile.
func (c *Client) StudentProfile(ctx context.Context, studentID string) (student.Detail, error) {
	var resp struct {
		Student student.Detail `json:"student"`
	}
	path := "/api/students/" + url.PathEscape(studentID)
	if err := c.doResource(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return student.Detail{}, err
	}
	return resp.Student, nil
}

// UpdateStudentProfile applies a partial edit and returns the authoritative
// profile. Not breaker-guarded: an edit the user just typed should fail with
// a real answer, not a short-circuit.
func (c *Client) UpdateStudentProfile(ctx context.Context, studentID string, patch student.Patch) (student.Detail, error) {
	var resp struct {
		Student student.Detail `json:"student"`
	}
	path := "/api/students/" + url.PathEscape(studentID)
	if err := c.do(ctx, http.MethodPatch, path, patch, &resp); err != nil {
		return student.Detail{}, err
	}
	return resp.Student, nil
}
