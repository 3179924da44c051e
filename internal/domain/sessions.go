package domain

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"example.com/streak/internal/observability"
)

// Option configures Sessions.
type Option func(*trackerDeps)

// WithLogger overrides the logger used to report persistence failures.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(d *trackerDeps) {
		d.logger = logger
	}
}

// WithClock overrides the time source used to decide what "today" is.
func WithClock(clock func() time.Time) Option {
	return func(d *trackerDeps) {
		d.clock = clock
	}
}

// WithLocation sets the time zone whose calendar days streaks are counted in.
func WithLocation(loc *time.Location) Option {
	return func(d *trackerDeps) {
		if loc != nil {
			d.loc = loc
		}
	}
}

// WithHistory enables the one-time migration of other features' records into new logs.
func WithHistory(history HistorySource) Option {
	return func(d *trackerDeps) {
		d.history = history
	}
}

// Sessions holds the Tracker of every user with an open session. A user's log lives in
// memory from Open until Close; closing never deletes stored data.
type Sessions struct {
	deps    *trackerDeps
	loading singleflight.Group

	mu       sync.Mutex
	trackers map[string]*Tracker
}

// NewSessions constructs Sessions backed by repo.
func NewSessions(repo LogRepository, opts ...Option) *Sessions {
	deps := &trackerDeps{
		repo:   repo,
		clock:  time.Now,
		loc:    time.UTC,
		logger: logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(deps)
	}
	return &Sessions{deps: deps, trackers: make(map[string]*Tracker)}
}

// Open returns the user's tracker, loading it from storage when the session is new.
// When the stored log cannot be read the returned tracker is empty and not kept; its
// mutations retry the load and fail with ErrLogUnavailable while storage stays unreadable.
func (s *Sessions) Open(ctx context.Context, userID string) *Tracker {
	if t, ok := s.Get(userID); ok {
		return t
	}

	// one load per user at a time, so a late migration save never overwrites a newer log
	v, _, _ := s.loading.Do(userID, func() (interface{}, error) {
		if t, ok := s.Get(userID); ok {
			return t, nil
		}
		loaded := loadTracker(ctx, s, userID)
		if !loaded.loaded {
			return loaded, nil
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		s.trackers[userID] = loaded
		observability.SetOpenSessions(len(s.trackers))
		s.deps.logger.WithField("user_id", userID).Debug("streak session opened")
		return loaded, nil
	})
	return v.(*Tracker)
}

// Get returns the tracker of an open session.
func (s *Sessions) Get(userID string) (*Tracker, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trackers[userID]
	return t, ok
}

// Close drops the user's tracker from memory once any in-flight mutation has been saved.
// It reports whether a session was open.
func (s *Sessions) Close(userID string) bool {
	t, ok := s.Get(userID)
	if !ok {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.detached {
		return false
	}
	t.detach()
	s.remove(userID, t)
	s.deps.logger.WithField("user_id", userID).Debug("streak session closed")
	return true
}

// Len returns the number of open sessions.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.trackers)
}

// Sweep closes sessions unused for longer than maxIdle and returns how many were closed.
// Trackers busy with a mutation are in use and skipped.
func (s *Sessions) Sweep(maxIdle time.Duration) int {
	cutoff := s.deps.clock().Add(-maxIdle)

	s.mu.Lock()
	candidates := make([]*Tracker, 0, len(s.trackers))
	for _, t := range s.trackers {
		candidates = append(candidates, t)
	}
	s.mu.Unlock()

	closed := 0
	for _, t := range candidates {
		if !t.mu.TryLock() {
			continue
		}
		if !t.detached && t.lastUsed.Before(cutoff) {
			t.detach()
			s.remove(t.userID, t)
			closed++
		}
		t.mu.Unlock()
	}
	return closed
}

// remove deletes t from the map if it is still the user's tracker. Callers hold t.mu.
func (s *Sessions) remove(userID string, t *Tracker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.trackers[userID] == t {
		delete(s.trackers, userID)
		observability.SetOpenSessions(len(s.trackers))
	}
}

// RunSweeper calls Sweep every interval until ctx is cancelled.
func (s *Sessions) RunSweeper(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(maxIdle); n > 0 {
				s.deps.logger.WithField("closed", n).Info("idle streak sessions closed")
			}
		}
	}
}
