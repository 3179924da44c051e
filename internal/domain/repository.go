package domain

import (
	"context"
	"time"
)

// ChangeType names the mutation that produced a saved log.
type ChangeType string

const (
	ChangeRecorded ChangeType = "recorded"
	ChangeReset    ChangeType = "reset"
	ChangeMigrated ChangeType = "migrated"
)

// Change describes the mutation persisted alongside a log so stores can publish it.
type Change struct {
	Type        ChangeType
	UserID      string
	Kind        ActivityKind
	Date        Date
	Description string
	Snapshot    Snapshot
	OccurredAt  time.Time
}

// LogRepository persists one activity log per user.
type LogRepository interface {
	// Load returns the stored log; found is false when the user has none yet.
	Load(ctx context.Context, userID string) (log ActivityLog, found bool, err error)
	Save(ctx context.Context, userID string, log ActivityLog, change Change) error
}

// HistoricalActivity is a record from another feature (completed task, logged workout,
// journal entry) used to seed a log the first time a user is loaded.
type HistoricalActivity struct {
	Kind       ActivityKind
	OccurredAt time.Time
}

// HistorySource scans other features' records for a user.
type HistorySource interface {
	History(ctx context.Context, userID string) ([]HistoricalActivity, error)
}
