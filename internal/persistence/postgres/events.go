package postgres

import (
	"encoding/json"

	"example.com/streak/internal/domain"
	"example.com/streak/internal/events"
)

// EventMetadata describes how to route an outbox event.
type EventMetadata struct {
	EventType     string
	Topic         string
	SchemaSubject string
	Payload       func(eventID string, change domain.Change) ([]byte, error)
}

// StreakTopic carries every event published by the service, keyed by user id.
const StreakTopic = "streak_events"

var eventCatalog = map[domain.ChangeType]EventMetadata{
	domain.ChangeRecorded: {
		EventType:     events.TypeActivityRecorded,
		Topic:         StreakTopic,
		SchemaSubject: StreakTopic + "-activity_recorded-value",
		Payload: func(eventID string, c domain.Change) ([]byte, error) {
			return json.Marshal(events.StreakActivityRecorded{
				EventID:         eventID,
				UserID:          c.UserID,
				Date:            c.Date.String(),
				Kind:            string(c.Kind),
				Description:     c.Description,
				CurrentStreak:   c.Snapshot.CurrentStreak,
				LongestStreak:   c.Snapshot.LongestStreak,
				TotalActiveDays: c.Snapshot.TotalActiveDays,
				OccurredAt:      c.OccurredAt,
			})
		},
	},
	domain.ChangeReset: {
		EventType:     events.TypeStreakReset,
		Topic:         StreakTopic,
		SchemaSubject: StreakTopic + "-reset-value",
		Payload: func(eventID string, c domain.Change) ([]byte, error) {
			return json.Marshal(events.StreakReset{
				EventID:    eventID,
				UserID:     c.UserID,
				OccurredAt: c.OccurredAt,
			})
		},
	},
}
