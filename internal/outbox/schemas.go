package outbox

import "example.com/streak/internal/events"

const activityRecordedSchema = `{
  "type": "object",
  "title": "StreakActivityRecorded",
  "properties": {
    "event_id": {"type": "string"},
    "user_id": {"type": "string"},
    "date": {"type": "string", "format": "date"},
    "kind": {"type": "string", "enum": ["task", "workout", "journal"]},
    "description": {"type": "string"},
    "current_streak": {"type": "integer", "minimum": 0},
    "longest_streak": {"type": "integer", "minimum": 0},
    "total_active_days": {"type": "integer", "minimum": 0},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["event_id", "user_id", "date", "kind", "current_streak", "longest_streak", "total_active_days", "occurred_at"],
  "additionalProperties": false
}`

const streakResetSchema = `{
  "type": "object",
  "title": "StreakReset",
  "properties": {
    "event_id": {"type": "string"},
    "user_id": {"type": "string"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["event_id", "user_id", "occurred_at"],
  "additionalProperties": false
}`

// schemaCatalog maps event type to its JSON schema.
var schemaCatalog = map[string]string{
	events.TypeActivityRecorded: activityRecordedSchema,
	events.TypeStreakReset:      streakResetSchema,
}
