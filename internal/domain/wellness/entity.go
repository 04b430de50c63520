// Package wellness contains the mood, metrics, and activity models that feed
// the counselor dashboard widgets.
package wellness

import (
	"time"
)

// MoodType matches the mood_type enum on the server.
type MoodType string

const (
	MoodHappy    MoodType = "HAPPY"
	MoodGood     MoodType = "GOOD"
	MoodNeutral  MoodType = "NEUTRAL"
	MoodBad      MoodType = "BAD"
	MoodSad      MoodType = "SAD"
	MoodStressed MoodType = "STRESSED"
)

// Score maps a mood to a 1-5 scale for aggregation. Unknown moods score 0.
func (m MoodType) Score() int {
	switch m {
	case MoodHappy:
		return 5
	case MoodGood:
		return 4
	case MoodNeutral:
		return 3
	case MoodBad, MoodStressed:
		return 2
	case MoodSad:
		return 1
	}
	return 0
}

// MoodCheckIn is a single student mood report.
type MoodCheckIn struct {
	ID          string    `json:"id"`
	StudentID   string    `json:"studentId"`
	StudentName string    `json:"studentName,omitempty"`
	Mood        MoodType  `json:"mood"`
	Influences  []string  `json:"influences,omitempty"`
	Description string    `json:"description,omitempty"`
	RiskScore   float64   `json:"riskScore,omitempty"`
	IsUrgent    bool      `json:"isUrgent,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Metric is one dashboard headline figure (e.g. "Average mood", "At risk").
type Metric struct {
	ID          string `json:"id,omitempty"`
	Title       string `json:"title"`
	Value       string `json:"value"`
	Change      string `json:"change,omitempty"`
	Positive    bool   `json:"positive"`
	Description string `json:"description,omitempty"`
	Period      string `json:"period,omitempty"`
}

// ActivityStatus matches the session_status enum on the server.
type ActivityStatus string

const (
	ActivityScheduled  ActivityStatus = "SCHEDULED"
	ActivityInProgress ActivityStatus = "IN_PROGRESS"
	ActivityCompleted  ActivityStatus = "COMPLETED"
	ActivityCancelled  ActivityStatus = "CANCELLED"
	ActivityNoShow     ActivityStatus = "NO_SHOW"
)

// Activity is a counseling session or other scheduled interaction between a
// counselor and a student.
type Activity struct {
	ID          string         `json:"id"`
	CounselorID string         `json:"counselorId"`
	StudentID   string         `json:"studentId"`
	StudentName string         `json:"studentName,omitempty"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	ScheduledAt time.Time      `json:"scheduledAt"`
	Duration    int            `json:"duration"` // minutes
	Status      ActivityStatus `json:"status"`
	Notes       string         `json:"notes,omitempty"`
}
