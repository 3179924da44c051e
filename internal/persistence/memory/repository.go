// Package memory provides in-memory activity log storage for tests and local development.
package memory

import (
	"context"
	"sync"

	"example.com/streak/internal/domain"
	"example.com/streak/internal/persistence"
)

// Repository stores encoded activity logs in memory.
type Repository struct {
	mu      sync.RWMutex
	logs    map[string][]byte
	changes []domain.Change
	history map[string][]domain.HistoricalActivity

	// SaveErr, when set, is returned by every Save.
	SaveErr error
}

// NewRepository constructs an empty Repository.
func NewRepository() *Repository {
	return &Repository{
		logs:    make(map[string][]byte),
		history: make(map[string][]domain.HistoricalActivity),
	}
}

// Load implements domain.LogRepository.
func (r *Repository) Load(ctx context.Context, userID string) (domain.ActivityLog, bool, error) {
	r.mu.RLock()
	raw, ok := r.logs[userID]
	r.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	log, err := persistence.DecodeLog(raw)
	if err != nil {
		return nil, true, err
	}
	return log, true, nil
}

// Save implements domain.LogRepository.
func (r *Repository) Save(ctx context.Context, userID string, log domain.ActivityLog, change domain.Change) error {
	if r.SaveErr != nil {
		return r.SaveErr
	}
	raw, err := persistence.EncodeLog(log)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs[userID] = raw
	r.changes = append(r.changes, change)
	return nil
}

// PutRaw stores raw bytes for a user, bypassing encoding.
func (r *Repository) PutRaw(userID string, raw []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs[userID] = raw
}

// Raw returns the stored bytes for a user.
func (r *Repository) Raw(userID string) ([]byte, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	raw, ok := r.logs[userID]
	return raw, ok
}

// Changes returns every change saved so far.
func (r *Repository) Changes() []domain.Change {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.Change(nil), r.changes...)
}

// AddHistory seeds feature history for a user.
func (r *Repository) AddHistory(userID string, items ...domain.HistoricalActivity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history[userID] = append(r.history[userID], items...)
}

// History implements domain.HistorySource.
func (r *Repository) History(ctx context.Context, userID string) ([]domain.HistoricalActivity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.HistoricalActivity(nil), r.history[userID]...), nil
}
