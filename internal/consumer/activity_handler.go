package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"example.com/streak/internal/domain"
	"example.com/streak/internal/events"
)

// activityKinds maps the feature event types to the activity they count as.
var activityKinds = map[string]domain.ActivityKind{
	events.TypeTaskCompleted:  domain.ActivityTask,
	events.TypeWorkoutLogged:  domain.ActivityWorkout,
	events.TypeJournalCreated: domain.ActivityJournal,
}

// Trackers opens the tracker of a user; *domain.Sessions satisfies it.
type Trackers interface {
	Open(ctx context.Context, userID string) *domain.Tracker
}

// ActivityHandler records feature events as streak activity on the user's tracker.
type ActivityHandler struct {
	trackers Trackers
	logger   logrus.FieldLogger
}

// NewActivityHandler constructs an ActivityHandler.
func NewActivityHandler(trackers Trackers, logger logrus.FieldLogger) *ActivityHandler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ActivityHandler{trackers: trackers, logger: logger}
}

// Handle implements Handler. Events of other types are ignored.
func (h *ActivityHandler) Handle(ctx context.Context, msg Message) error {
	kind, ok := activityKinds[msg.EventType]
	if !ok {
		return nil
	}

	var payload events.FeatureActivity
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return fmt.Errorf("%w: decode %s payload: %v", ErrSkip, msg.EventType, err)
	}
	userID := strings.TrimSpace(payload.UserID)
	if userID == "" {
		userID = msg.Key
	}
	if userID == "" {
		return fmt.Errorf("%w: %s without user_id", ErrSkip, msg.EventType)
	}

	tracker := h.trackers.Open(ctx, userID)

	var (
		snapshot domain.Snapshot
		err      error
	)
	switch {
	case payload.Date != "":
		date, parseErr := domain.ParseDate(payload.Date)
		if parseErr != nil {
			return fmt.Errorf("%w: %v", ErrSkip, parseErr)
		}
		snapshot, err = tracker.RecordActivityOn(ctx, kind, date, payload.Description)
	case !payload.OccurredAt.IsZero():
		snapshot, err = tracker.RecordActivityAt(ctx, kind, payload.OccurredAt, payload.Description)
	default:
		snapshot, err = tracker.RecordActivity(ctx, kind, payload.Description)
	}
	if errors.Is(err, domain.ErrLogUnavailable) {
		// not skipped: the offset stays uncommitted
		return err
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSkip, err)
	}

	h.logger.WithFields(logrus.Fields{
		"user_id":        userID,
		"kind":           kind,
		"current_streak": snapshot.CurrentStreak,
	}).Debug("activity ingested")
	return nil
}
