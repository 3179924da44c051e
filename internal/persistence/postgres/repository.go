// Package postgres stores activity logs in PostgreSQL and records outbox events for them.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/streak/internal/domain"
	"example.com/streak/internal/persistence"
)

// Repository provides Postgres-backed persistence for activity logs and outbox events.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Load fetches the stored log for a user.
func (r *Repository) Load(ctx context.Context, userID string) (domain.ActivityLog, bool, error) {
	const query = `SELECT payload FROM activity_logs WHERE user_id=$1`

	var payload []byte
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("load activity log: %w", err)
	}

	log, err := persistence.DecodeLog(payload)
	if err != nil {
		return nil, true, err
	}
	return log, true, nil
}

// Save upserts the full log and records the change in the outbox inside a single transaction.
func (r *Repository) Save(ctx context.Context, userID string, log domain.ActivityLog, change domain.Change) (err error) {
	payload, err := persistence.EncodeLog(log)
	if err != nil {
		return err
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	const upsert = `INSERT INTO activity_logs (user_id, payload, updated_at)
        VALUES ($1, $2, NOW())
        ON CONFLICT (user_id) DO UPDATE SET payload = EXCLUDED.payload, updated_at = NOW()`

	if _, err = tx.Exec(ctx, upsert, userID, payload); err != nil {
		return fmt.Errorf("save activity log: %w", err)
	}

	if err = r.insertOutbox(ctx, tx, change); err != nil {
		return fmt.Errorf("record outbox event: %w", err)
	}

	return tx.Commit(ctx)
}

func (r *Repository) insertOutbox(ctx context.Context, tx pgx.Tx, change domain.Change) error {
	meta, ok := eventCatalog[change.Type]
	if !ok {
		// migrations and other bookkeeping saves are not published
		return nil
	}

	eventID := uuid.NewString()
	body, err := meta.Payload(eventID, change)
	if err != nil {
		return err
	}

	const stmt = `INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`

	_, err = tx.Exec(ctx, stmt,
		"activity_log",
		change.UserID,
		meta.EventType,
		meta.Topic,
		meta.SchemaSubject,
		change.UserID,
		body,
		eventID,
	)
	return err
}
