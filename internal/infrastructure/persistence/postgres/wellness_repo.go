package postgres

import (
	"context"
	"fmt"

	"github.com/wellnest-app/wellnest-dashboard/internal/domain/wellness"
)

// ══════════════════════════════════════════════════════════════════════════════
// WELLNESS REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// WellnessRepository serves the mood check-in, activity, and computed-metric
// queries behind the dashboard widgets.
type WellnessRepository struct {
	conn *Connection
}

// NewWellnessRepository creates a new WellnessRepository.
func NewWellnessRepository(conn *Connection) *WellnessRepository {
	return &WellnessRepository{conn: conn}
}

// RecentMoodCheckIns returns the latest check-ins from a counselor's
// students, newest first.
func (r *WellnessRepository) RecentMoodCheckIns(ctx context.Context, counselorID string, limit int) ([]wellness.MoodCheckIn, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT m.id, m.student_id, s.name, m.mood, m.influences,
		       COALESCE(m.description, ''), m.risk_score, m.is_urgent, m.created_at
		FROM mood_check_ins m
		JOIN students s ON s.id = m.student_id
		WHERE s.counselor_id = $1
		ORDER BY m.created_at DESC
		LIMIT $2
	`

	rows, err := r.conn.Query(ctx, query, counselorID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list mood check-ins: %w", err)
	}
	defer rows.Close()

	var checkIns []wellness.MoodCheckIn
	for rows.Next() {
		var c wellness.MoodCheckIn
		if err := rows.Scan(
			&c.ID, &c.StudentID, &c.StudentName, &c.Mood, &c.Influences,
			&c.Description, &c.RiskScore, &c.IsUrgent, &c.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan check-in row: %w", err)
		}
		checkIns = append(checkIns, c)
	}
	return checkIns, rows.Err()
}

// ActivitiesByCounselor returns a counselor's scheduled activities, soonest
// first.
func (r *WellnessRepository) ActivitiesByCounselor(ctx context.Context, counselorID string) ([]wellness.Activity, error) {
	query := `
		SELECT a.id, a.counselor_id, a.student_id, s.name, a.title,
		       COALESCE(a.description, ''), a.scheduled_at, a.duration_minutes,
		       a.status, COALESCE(a.notes, '')
		FROM activities a
		JOIN students s ON s.id = a.student_id
		WHERE a.counselor_id = $1
		ORDER BY a.scheduled_at
	`

	rows, err := r.conn.Query(ctx, query, counselorID)
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	defer rows.Close()

	var activities []wellness.Activity
	for rows.Next() {
		var a wellness.Activity
		if err := rows.Scan(
			&a.ID, &a.CounselorID, &a.StudentID, &a.StudentName, &a.Title,
			&a.Description, &a.ScheduledAt, &a.Duration, &a.Status, &a.Notes,
		); err != nil {
			return nil, fmt.Errorf("failed to scan activity row: %w", err)
		}
		activities = append(activities, a)
	}
	return activities, rows.Err()
}

// MetricsForCounselor computes the dashboard headline figures from the raw
// data in one round-trip.
func (r *WellnessRepository) MetricsForCounselor(ctx context.Context, counselorID string) ([]wellness.Metric, error) {
	query := `
		SELECT
		    (SELECT COUNT(*) FROM students WHERE counselor_id = $1),
		    (SELECT COUNT(*) FROM students
		     WHERE counselor_id = $1 AND risk_level IN ('HIGH', 'CRITICAL')),
		    (SELECT COUNT(*) FROM mood_check_ins m
		     JOIN students s ON s.id = m.student_id
		     WHERE s.counselor_id = $1 AND m.created_at >= date_trunc('day', NOW())),
		    (SELECT COALESCE(AVG(
		        CASE m.mood
		            WHEN 'HAPPY' THEN 5
		            WHEN 'GOOD' THEN 4
		            WHEN 'NEUTRAL' THEN 3
		            WHEN 'BAD' THEN 2
		            WHEN 'STRESSED' THEN 2
		            WHEN 'SAD' THEN 1
		            ELSE 0
		        END), 0)
		     FROM mood_check_ins m
		     JOIN students s ON s.id = m.student_id
		     WHERE s.counselor_id = $1 AND m.created_at >= NOW() - INTERVAL '7 days')
	`

	var totalStudents, atRisk, checkInsToday int
	var avgMood float64
	err := r.conn.QueryRow(ctx, query, counselorID).Scan(&totalStudents, &atRisk, &checkInsToday, &avgMood)
	if err != nil {
		return nil, fmt.Errorf("failed to compute metrics: %w", err)
	}

	return []wellness.Metric{
		{
			ID:       "total-students",
			Title:    "Students",
			Value:    fmt.Sprintf("%d", totalStudents),
			Positive: true,
			Period:   "current",
		},
		{
			ID:          "at-risk",
			Title:       "At risk",
			Value:       fmt.Sprintf("%d", atRisk),
			Positive:    atRisk == 0,
			Description: "High or critical risk level",
			Period:      "current",
		},
		{
			ID:       "check-ins-today",
			Title:    "Check-ins today",
			Value:    fmt.Sprintf("%d", checkInsToday),
			Positive: checkInsToday > 0,
			Period:   "today",
		},
		{
			ID:          "avg-mood",
			Title:       "Average mood",
			Value:       fmt.Sprintf("%.1f", avgMood),
			Positive:    avgMood >= 3,
			Description: "1-5 scale over the last week",
			Period:      "7d",
		},
	}, nil
}
