package history

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is a [Store] backed by a PostgreSQL sessions table.
// Utterances are stored as a JSONB column since they are always read back
// whole. All methods are safe for concurrent use.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// schema is applied on connect. Idempotent.
const schema = `
	CREATE TABLE IF NOT EXISTS sessions (
	    session_id  TEXT PRIMARY KEY,
	    site_id     TEXT NOT NULL DEFAULT '',
	    custom_data TEXT NOT NULL DEFAULT '',
	    started_at  TIMESTAMPTZ NOT NULL,
	    ended_at    TIMESTAMPTZ NOT NULL,
	    termination TEXT NOT NULL,
	    utterances  JSONB NOT NULL DEFAULT '[]'
	);
	CREATE INDEX IF NOT EXISTS sessions_ended_at_idx ON sessions (ended_at DESC);`

// NewPostgresStore connects to the database at dsn, applies the schema and
// returns the store. The caller must call Close when done.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("history: connect: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("history: apply schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks database connectivity, for readiness probes.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// SaveSession implements [Store.SaveSession].
func (s *PostgresStore) SaveSession(ctx context.Context, rec Record) error {
	utterances, err := json.Marshal(rec.Utterances)
	if err != nil {
		return fmt.Errorf("history: encode utterances: %w", err)
	}

	const q = `
		INSERT INTO sessions
		    (session_id, site_id, custom_data, started_at, ended_at, termination, utterances)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (session_id) DO NOTHING`

	if _, err := s.pool.Exec(ctx, q,
		rec.SessionID,
		rec.SiteID,
		rec.CustomData,
		rec.StartedAt,
		rec.EndedAt,
		rec.Termination,
		utterances,
	); err != nil {
		return fmt.Errorf("history: save session: %w", err)
	}
	return nil
}

// RecentSessions implements [Store.RecentSessions].
func (s *PostgresStore) RecentSessions(ctx context.Context, limit int) ([]Record, error) {
	const q = `
		SELECT session_id, site_id, custom_data, started_at, ended_at, termination, utterances
		FROM   sessions
		ORDER  BY ended_at DESC
		LIMIT  $1`

	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("history: recent sessions: %w", err)
	}

	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Record, error) {
		var (
			rec Record
			raw []byte
		)
		if err := row.Scan(
			&rec.SessionID,
			&rec.SiteID,
			&rec.CustomData,
			&rec.StartedAt,
			&rec.EndedAt,
			&rec.Termination,
			&raw,
		); err != nil {
			return Record{}, err
		}
		if err := json.Unmarshal(raw, &rec.Utterances); err != nil {
			return Record{}, err
		}
		return rec, nil
	})
	if err != nil {
		return nil, fmt.Errorf("history: scan sessions: %w", err)
	}
	return records, nil
}
