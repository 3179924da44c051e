package events

import "time"

// Event types emitted by the task, workout and journal features.
const (
	TypeTaskCompleted  = "task.completed"
	TypeWorkoutLogged  = "workout.logged"
	TypeJournalCreated = "journal.created"
)

// FeatureActivity is the common payload of the feature events the streak service ingests.
type FeatureActivity struct {
	UserID      string    `json:"user_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Date        string    `json:"date,omitempty"` // calendar date as the user saw it; wins over OccurredAt
	Description string    `json:"description,omitempty"`
}
