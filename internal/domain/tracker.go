package domain

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"example.com/streak/internal/observability"
)

// Tracker owns the activity log and streak snapshot of one user while their session is open.
// Every mutation is recomputed and persisted before the call returns.
type Tracker struct {
	userID string
	deps   *trackerDeps
	owner  *Sessions
	// loaded is false when the stored log could not be read; such trackers are never cached.
	loaded bool

	mu       sync.Mutex
	detached bool
	log      ActivityLog
	snapshot Snapshot
	asOf     Date
	lastUsed time.Time
}

type trackerDeps struct {
	repo    LogRepository
	history HistorySource
	clock   func() time.Time
	loc     *time.Location
	logger  logrus.FieldLogger
}

func (d *trackerDeps) now() time.Time { return d.clock().In(d.loc) }

func (d *trackerDeps) today() Date { return DateOf(d.now()) }

// maxReopen bounds how often a mutation follows a session that keeps closing under it.
const maxReopen = 3

// loadTracker reads the user's log, migrating history when none is stored.
// A corrupt log leaves the tracker empty. A failed read leaves it empty and unloaded.
func loadTracker(ctx context.Context, owner *Sessions, userID string) *Tracker {
	deps := owner.deps
	t := &Tracker{userID: userID, deps: deps, owner: owner, loaded: true, lastUsed: deps.clock()}
	logger := deps.logger.WithField("user_id", userID)

	log, found, err := deps.repo.Load(ctx, userID)
	switch {
	case errors.Is(err, ErrCorruptLog):
		logger.WithError(err).Warn("streak log unreadable, starting empty")
		observability.RecordPersistenceReadFailure()
		log = nil
	case err != nil:
		logger.WithError(err).Warn("streak log load failed")
		observability.RecordPersistenceReadFailure()
		log = nil
		t.loaded = false
	case !found:
		log, t.loaded = t.migrate(ctx, logger)
	}

	t.detached = !t.loaded
	t.log = log
	t.recompute()
	return t
}

// migrate seeds a new log from history and saves it, empty or not, so it runs once per user.
// It reports false when the history could not be read.
func (t *Tracker) migrate(ctx context.Context, logger logrus.FieldLogger) (ActivityLog, bool) {
	if t.deps.history == nil {
		return nil, true
	}
	history, err := t.deps.history.History(ctx, t.userID)
	if err != nil {
		logger.WithError(err).Warn("streak history scan failed")
		observability.RecordPersistenceReadFailure()
		return nil, false
	}

	var records []DayRecord
	for _, h := range history {
		if !h.Kind.Valid() || h.OccurredAt.IsZero() {
			continue
		}
		records = append(records, DayRecord{
			Date:       DateOf(h.OccurredAt.In(t.deps.loc)),
			Activities: []ActivityKind{h.Kind},
		})
	}
	log := NewActivityLog(records)

	observability.RecordMigration(len(log))
	if len(log) > 0 {
		logger.WithField("days", len(log)).Info("streak log migrated from history")
	}
	t.persist(ctx, log, Change{Type: ChangeMigrated})
	return log, true
}

// lockLive locks and returns the tracker holding the user's open session. A closed or
// unloaded tracker hands the call to the one Sessions opens now.
func (t *Tracker) lockLive(ctx context.Context) (*Tracker, error) {
	cur := t
	for i := 0; i < maxReopen; i++ {
		cur.mu.Lock()
		if !cur.detached {
			return cur, nil
		}
		cur.mu.Unlock()

		if cur = t.owner.Open(ctx, t.userID); !cur.loaded {
			return nil, fmt.Errorf("%w: %s", ErrLogUnavailable, t.userID)
		}
	}
	return nil, fmt.Errorf("%w: %s: session closed while recording", ErrLogUnavailable, t.userID)
}

// detach marks the tracker closed once no mutation holds it. Callers hold t.mu.
func (t *Tracker) detach() { t.detached = true }

// UserID returns the owner of the tracker.
func (t *Tracker) UserID() string { return t.userID }

// RecordActivity records kind on today's date.
func (t *Tracker) RecordActivity(ctx context.Context, kind ActivityKind, description string) (Snapshot, error) {
	return t.RecordActivityOn(ctx, kind, t.deps.today(), description)
}

// RecordActivityAt records kind on the calendar day of at in the tracker's time zone.
func (t *Tracker) RecordActivityAt(ctx context.Context, kind ActivityKind, at time.Time, description string) (Snapshot, error) {
	return t.RecordActivityOn(ctx, kind, DateOf(at.In(t.deps.loc)), description)
}

// RecordActivityOn records kind on date. Recording a kind already present on that date
// leaves the log unchanged.
func (t *Tracker) RecordActivityOn(ctx context.Context, kind ActivityKind, date Date, description string) (Snapshot, error) {
	if !kind.Valid() {
		return Snapshot{}, fmt.Errorf("%w: %q", ErrUnknownActivityKind, kind)
	}
	if date.IsZero() {
		return Snapshot{}, fmt.Errorf("%w: zero date", ErrInvalidDate)
	}
	today := t.deps.today()
	if date.After(today) {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrFutureDate, date)
	}

	live, err := t.lockLive(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	defer live.mu.Unlock()
	live.touch()

	live.log = live.log.Record(kind, date)
	live.recompute()
	observability.RecordActivity(string(kind))

	live.persist(ctx, live.log, Change{
		Type:        ChangeRecorded,
		Kind:        kind,
		Date:        date,
		Description: description,
	})
	return live.snapshot, nil
}

// Reset clears the log and persists the empty state.
func (t *Tracker) Reset(ctx context.Context) (Snapshot, error) {
	live, err := t.lockLive(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	defer live.mu.Unlock()
	live.touch()

	live.log = nil
	live.recompute()
	live.persist(ctx, live.log, Change{Type: ChangeReset})
	return live.snapshot, nil
}

// Snapshot returns the streak values as of now, recomputing when the day has rolled over.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.touch()

	if !t.asOf.Equal(t.deps.today()) {
		t.recompute()
	}
	return t.snapshot
}

// StreakForDate returns the record for date.
func (t *Tracker) StreakForDate(date Date) (DayRecord, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.touch()
	return t.log.Day(date)
}

// ActivityCalendar maps every active date to the kinds recorded on it.
func (t *Tracker) ActivityCalendar() map[Date][]ActivityKind {
	return t.CalendarRange(Date{}, Date{})
}

// CalendarRange is ActivityCalendar limited to [from, to]; a zero bound is open.
func (t *Tracker) CalendarRange(from, to Date) map[Date][]ActivityKind {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.touch()

	calendar := make(map[Date][]ActivityKind, len(t.log))
	for _, r := range t.log {
		if !from.IsZero() && r.Date.Before(from) {
			continue
		}
		if !to.IsZero() && r.Date.After(to) {
			continue
		}
		calendar[r.Date] = append([]ActivityKind(nil), r.Activities...)
	}
	return calendar
}

// Log returns a copy of the current log.
func (t *Tracker) Log() ActivityLog {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(ActivityLog, len(t.log))
	for i, r := range t.log {
		out[i] = DayRecord{Date: r.Date, Activities: append([]ActivityKind(nil), r.Activities...)}
	}
	return out
}

func (t *Tracker) touch() { t.lastUsed = t.deps.clock() }

func (t *Tracker) recompute() {
	t.asOf = t.deps.today()
	t.snapshot = Calculate(t.log, t.asOf)
}

// persist saves log; failures are logged and counted, never returned.
func (t *Tracker) persist(ctx context.Context, log ActivityLog, change Change) {
	change.UserID = t.userID
	change.Snapshot = Calculate(log, t.deps.today())
	change.OccurredAt = t.deps.clock().UTC()

	if err := t.deps.repo.Save(ctx, t.userID, log, change); err != nil {
		t.deps.logger.WithError(err).WithFields(logrus.Fields{
			"user_id": t.userID,
			"change":  change.Type,
		}).Error("streak log save failed")
		observability.RecordPersistenceWriteFailure()
		return
	}
	observability.RecordActivityPersisted(change.OccurredAt)
}
