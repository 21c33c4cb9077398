package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"tneaboard/internal/model"
)

// PostgresSessionRegistry stores the registry in a single table:
//
//	CREATE TABLE sessions (
//	    identity  TEXT PRIMARY KEY,
//	    device_id TEXT NOT NULL,
//	    last_seen TIMESTAMPTZ NOT NULL
//	);
//
// Every Swap variant is a single guarded statement, so per-identity atomicity
// comes from the database and needs no explicit locking.
type PostgresSessionRegistry struct {
	db *sqlx.DB
}

func NewPostgresSessionRegistry(db *sqlx.DB) *PostgresSessionRegistry {
	return &PostgresSessionRegistry{db: db}
}

func (r *PostgresSessionRegistry) Get(ctx context.Context, identity string) (*model.SessionRecord, error) {
	query := `
		SELECT identity, device_id, last_seen
		FROM sessions
		WHERE identity = $1
	`
	var rec model.SessionRecord
	err := r.db.GetContext(ctx, &rec, query, identity)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, model.ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session record: %w", err)
	}
	return &rec, nil
}

func (r *PostgresSessionRegistry) Put(ctx context.Context, rec model.SessionRecord) error {
	query := `
		INSERT INTO sessions (identity, device_id, last_seen)
		VALUES ($1, $2, $3)
		ON CONFLICT (identity)
		DO UPDATE SET device_id = EXCLUDED.device_id, last_seen = EXCLUDED.last_seen
	`
	_, err := r.db.ExecContext(ctx, query, rec.Identity, rec.DeviceID, rec.LastSeen)
	if err != nil {
		return fmt.Errorf("put session record: %w", err)
	}
	return nil
}

func (r *PostgresSessionRegistry) Remove(ctx context.Context, identity string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE identity = $1`, identity)
	if err != nil {
		return fmt.Errorf("remove session record: %w", err)
	}
	return nil
}

func (r *PostgresSessionRegistry) Swap(ctx context.Context, identity string, prev, next *model.SessionRecord) error {
	switch {
	case prev == nil && next == nil:
		return nil

	case prev == nil:
		query := `
			INSERT INTO sessions (identity, device_id, last_seen)
			VALUES ($1, $2, $3)
			ON CONFLICT (identity) DO NOTHING
		`
		result, err := r.db.ExecContext(ctx, query, identity, next.DeviceID, next.LastSeen)
		if err != nil {
			return fmt.Errorf("insert session record: %w", err)
		}
		return swapOutcome(result)

	case next == nil:
		query := `
			DELETE FROM sessions
			WHERE identity = $1 AND device_id = $2 AND last_seen = $3
		`
		result, err := r.db.ExecContext(ctx, query, identity, prev.DeviceID, prev.LastSeen)
		if err != nil {
			return fmt.Errorf("delete session record: %w", err)
		}
		return swapOutcome(result)

	default:
		query := `
			UPDATE sessions
			SET device_id = $2, last_seen = $3
			WHERE identity = $1 AND device_id = $4 AND last_seen = $5
		`
		result, err := r.db.ExecContext(ctx, query,
			identity, next.DeviceID, next.LastSeen, prev.DeviceID, prev.LastSeen)
		if err != nil {
			return fmt.Errorf("update session record: %w", err)
		}
		return swapOutcome(result)
	}
}

func (r *PostgresSessionRegistry) PruneExpired(ctx context.Context, olderThan time.Duration) (int64, error) {
	query := `
		DELETE FROM sessions
		WHERE last_seen < NOW() - $1::interval
	`
	result, err := r.db.ExecContext(ctx, query, olderThan.String())
	if err != nil {
		return 0, fmt.Errorf("prune stale sessions: %w", err)
	}
	return result.RowsAffected()
}

// swapOutcome maps "no rows touched" to the CAS conflict error.
func swapOutcome(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("read rows affected: %w", err)
	}
	if rows == 0 {
		return model.ErrRecordChanged
	}
	return nil
}
