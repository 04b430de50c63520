// Package notification contains the counselor notification model.
package notification

import (
	"time"
)

// Type matches the notification_type enum on the server.
type Type string

const (
	TypeMoodChange      Type = "MOOD_CHANGE"
	TypeSessionReminder Type = "SESSION_REMINDER"
	TypeCheckInReminder Type = "CHECK_IN_REMINDER"
	TypeScreenTimeRisk  Type = "SCREEN_TIME_RISK"
	TypeCrisisAlert     Type = "CRISIS_ALERT"
	TypeSystemUpdate    Type = "SYSTEM_UPDATE"
)

// Notification is a single dashboard notification for a counselor.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Type      Type      `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	StudentID string    `json:"studentId,omitempty"`
	IsRead    bool      `json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
}

// WithRead returns a copy with the read flag set.
func (n Notification) WithRead(read bool) Notification {
	n.IsRead = read
	return n
}

// MostRecent returns up to n notifications, newest first, without mutating
// the input slice. Used to bound what gets persisted durably.
func MostRecent(list []Notification, n int) []Notification {
	if n <= 0 || len(list) == 0 {
		return nil
	}
	sorted := make([]Notification, len(list))
	copy(sorted, list)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j].CreatedAt.After(sorted[j-1].CreatedAt); j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}
