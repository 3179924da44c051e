// Package events defines the event payloads the streak service publishes and consumes.
package events

import "time"

// Event types published through the outbox.
const (
	TypeActivityRecorded = "streak.activity_recorded"
	TypeStreakReset      = "streak.reset"
)

// StreakActivityRecorded is emitted after an activity is recorded and the log saved.
type StreakActivityRecorded struct {
	EventID         string    `json:"event_id"`
	UserID          string    `json:"user_id"`
	Date            string    `json:"date"`
	Kind            string    `json:"kind"`
	Description     string    `json:"description,omitempty"`
	CurrentStreak   int       `json:"current_streak"`
	LongestStreak   int       `json:"longest_streak"`
	TotalActiveDays int       `json:"total_active_days"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// StreakReset is emitted after a user's log is cleared.
type StreakReset struct {
	EventID    string    `json:"event_id"`
	UserID     string    `json:"user_id"`
	OccurredAt time.Time `json:"occurred_at"`
}
