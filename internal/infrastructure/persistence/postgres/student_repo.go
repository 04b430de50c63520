package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wellnest-app/wellnest-dashboard/internal/domain/shared"
	"github.com/wellnest-app/wellnest-dashboard/internal/domain/student"
	"github.com/wellnest-app/wellnest-dashboard/internal/domain/wellness"
)

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// StudentRepository implements student persistence for PostgreSQL.
type StudentRepository struct {
	conn *Connection
}

// NewStudentRepository creates a new StudentRepository.
func NewStudentRepository(conn *Connection) *StudentRepository {
	return &StudentRepository{conn: conn}
}

// ListByCounselor returns the compact roster rows for a counselor's students.
func (r *StudentRepository) ListByCounselor(ctx context.Context, counselorID string) ([]student.Record, error) {
	query := `
		SELECT id, name, risk_level, COALESCE(current_mood, ''),
		       COALESCE(last_check_in, 'epoch'::timestamptz), screen_time_today,
		       COALESCE(avatar_url, ''), COALESCE(department, ''), COALESCE(level, '')
		FROM students
		WHERE counselor_id = $1
		ORDER BY
		    CASE risk_level
		        WHEN 'CRITICAL' THEN 0
		        WHEN 'HIGH' THEN 1
		        WHEN 'MEDIUM' THEN 2
		        ELSE 3
		    END,
		    name
	`

	rows, err := r.conn.Query(ctx, query, counselorID)
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	defer rows.Close()

	var records []student.Record
	for rows.Next() {
		var rec student.Record
		var mood string
		if err := rows.Scan(
			&rec.ID, &rec.Name, &rec.RiskLevel, &mood,
			&rec.LastCheckIn, &rec.ScreenTimeToday,
			&rec.AvatarURL, &rec.Department, &rec.Level,
		); err != nil {
			return nil, fmt.Errorf("failed to scan student row: %w", err)
		}
		rec.CurrentMood = wellness.MoodType(mood)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// GetDetail returns one student's full profile, including the mood history
// aggregates the profile view shows.
func (r *StudentRepository) GetDetail(ctx context.Context, id string) (student.Detail, error) {
	query := `
		SELECT id, name, risk_level, COALESCE(current_mood, ''),
		       COALESCE(last_check_in, 'epoch'::timestamptz), screen_time_today,
		       COALESCE(avatar_url, ''), COALESCE(department, ''), COALESCE(level, ''),
		       COALESCE(email, ''), COALESCE(counselor_id::text, ''), notes,
		       check_in_streak, enrolled_at, updated_at
		FROM students
		WHERE id = $1
	`

	var d student.Detail
	var mood string
	err := r.conn.QueryRow(ctx, query, id).Scan(
		&d.ID, &d.Name, &d.RiskLevel, &mood,
		&d.LastCheckIn, &d.ScreenTimeToday,
		&d.AvatarURL, &d.Department, &d.Level,
		&d.Email, &d.CounselorID, &d.Notes,
		&d.CheckInStreak, &d.EnrolledAt, &d.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return student.Detail{}, shared.ErrNotFound
		}
		return student.Detail{}, fmt.Errorf("failed to get student: %w", err)
	}
	d.CurrentMood = wellness.MoodType(mood)

	if err := r.loadMoodAggregates(ctx, &d); err != nil {
		return student.Detail{}, err
	}
	return d, nil
}

// loadMoodAggregates fills WeeklyMood (last 7 days, oldest first) and the
// average mood score over the same window.
func (r *StudentRepository) loadMoodAggregates(ctx context.Context, d *student.Detail) error {
	query := `
		SELECT mood
		FROM mood_check_ins
		WHERE student_id = $1 AND created_at >= NOW() - INTERVAL '7 days'
		ORDER BY created_at
	`

	rows, err := r.conn.Query(ctx, query, d.ID)
	if err != nil {
		return fmt.Errorf("failed to load mood history: %w", err)
	}
	defer rows.Close()

	var scores []int
	var total int
	for rows.Next() {
		var mood string
		if err := rows.Scan(&mood); err != nil {
			return fmt.Errorf("failed to scan mood row: %w", err)
		}
		score := wellness.MoodType(mood).Score()
		scores = append(scores, score)
		total += score
	}
	if err := rows.Err(); err != nil {
		return err
	}

	d.WeeklyMood = scores
	if len(scores) > 0 {
		d.AvgMoodScore = float64(total) / float64(len(scores))
	}
	return nil
}

// ApplyPatch applies a partial update and returns the fresh profile. Nil
// patch fields leave their columns untouched.
func (r *StudentRepository) ApplyPatch(ctx context.Context, id string, patch student.Patch) (student.Detail, error) {
	if err := patch.Validate(); err != nil {
		return student.Detail{}, err
	}
	if patch.IsEmpty() {
		return r.GetDetail(ctx, id)
	}

	sets := []string{"updated_at = $2"}
	args := []any{id, time.Now().UTC()}

	appendSet := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Name != nil {
		appendSet("name", *patch.Name)
	}
	if patch.Notes != nil {
		appendSet("notes", *patch.Notes)
	}
	if patch.RiskLevel != nil {
		appendSet("risk_level", string(*patch.RiskLevel))
	}
	if patch.Level != nil {
		appendSet("level", *patch.Level)
	}

	query := fmt.Sprintf("UPDATE students SET %s WHERE id = $1", strings.Join(sets, ", "))
	tag, err := r.conn.Exec(ctx, query, args...)
	if err != nil {
		return student.Detail{}, fmt.Errorf("failed to update student: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return student.Detail{}, shared.ErrNotFound
	}

	return r.GetDetail(ctx, id)
}
