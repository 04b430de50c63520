// Package student contains the student models shown on the counselor
// dashboard: the compact table row and the full per-student profile.
package student

import (
	"strings"
	"time"

	"github.com/wellnest-app/wellnest-dashboard/internal/domain/shared"
	"github.com/wellnest-app/wellnest-dashboard/internal/domain/wellness"
)

// RiskLevel classifies a student's current wellness risk, matching the
// risk_level enum on the server.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// IsValid reports whether the risk level is a known value.
func (r RiskLevel) IsValid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh, RiskCritical:
		return true
	}
	return false
}

// Record is the compact row shown in the students table. It carries only
// display-level denormalizations; the profile is the detailed view.
type Record struct {
	ID              string            `json:"id"`
	Name            string            `json:"name"`
	RiskLevel       RiskLevel         `json:"riskLevel"`
	CurrentMood     wellness.MoodType `json:"currentMood,omitempty"`
	LastCheckIn     time.Time         `json:"lastCheckIn"`
	ScreenTimeToday int               `json:"screenTimeToday,omitempty"` // minutes
	AvatarURL       string            `json:"avatar,omitempty"`
	Department      string            `json:"department,omitempty"`
	Level           string            `json:"level,omitempty"`
}

// Detail is the full per-student profile, cached per student ID.
type Detail struct {
	Record
	Email         string    `json:"email,omitempty"`
	CounselorID   string    `json:"counselorId,omitempty"`
	Notes         string    `json:"notes,omitempty"`
	WeeklyMood    []int     `json:"weeklyMood,omitempty"`
	AvgMoodScore  float64   `json:"avgMoodScore,omitempty"`
	CheckInStreak int       `json:"checkInStreak,omitempty"`
	EnrolledAt    time.Time `json:"enrolledAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Patch is a partial update to a profile. Nil fields are left unchanged.
type Patch struct {
	Name      *string    `json:"name,omitempty"`
	Notes     *string    `json:"notes,omitempty"`
	RiskLevel *RiskLevel `json:"riskLevel,omitempty"`
	Level     *string    `json:"level,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Name == nil && p.Notes == nil && p.RiskLevel == nil && p.Level == nil
}

// Validate rejects patches that would produce an invalid profile.
func (p Patch) Validate() error {
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return shared.NewDomainError("student", "Patch", shared.ErrValidation, "name cannot be blank")
	}
	if p.RiskLevel != nil && !p.RiskLevel.IsValid() {
		return shared.NewDomainError("student", "Patch", shared.ErrValidation, "unknown risk level")
	}
	return nil
}

// Apply returns a copy of the detail with the patch applied.
func (p Patch) Apply(d Detail) Detail {
	if p.Name != nil {
		d.Name = *p.Name
	}
	if p.Notes != nil {
		d.Notes = *p.Notes
	}
	if p.RiskLevel != nil {
		d.RiskLevel = *p.RiskLevel
	}
	if p.Level != nil {
		d.Level = *p.Level
	}
	return d
}
