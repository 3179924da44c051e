package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/streak/internal/domain"
)

// HistorySource reads completed tasks, logged workouts and journal entries so a user's first
// activity log can be seeded from what they already did.
type HistorySource struct {
	pool *pgxpool.Pool
}

// NewHistorySource constructs a HistorySource.
func NewHistorySource(pool *pgxpool.Pool) *HistorySource {
	return &HistorySource{pool: pool}
}

// History implements domain.HistorySource.
func (h *HistorySource) History(ctx context.Context, userID string) ([]domain.HistoricalActivity, error) {
	const query = `SELECT 'task', completed_at FROM tasks WHERE user_id=$1 AND completed_at IS NOT NULL
        UNION ALL
        SELECT 'workout', performed_at FROM workouts WHERE user_id=$1
        UNION ALL
        SELECT 'journal', created_at FROM journal_entries WHERE user_id=$1`

	rows, err := h.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("scan history: %w", err)
	}
	defer rows.Close()

	var out []domain.HistoricalActivity
	for rows.Next() {
		var (
			kind string
			at   time.Time
		)
		if err := rows.Scan(&kind, &at); err != nil {
			return nil, err
		}
		out = append(out, domain.HistoricalActivity{Kind: domain.ActivityKind(kind), OccurredAt: at})
	}
	return out, rows.Err()
}
