package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const matchSnapshotSchema = `
CREATE TABLE IF NOT EXISTS match_snapshots (
    match_id   TEXT PRIMARY KEY,
    data       JSONB NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresStore persists snapshots in a match_snapshots table, one row per
// match, the full record as JSONB.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresStore connects to the database and ensures the schema exists.
func NewPostgresStore(ctx context.Context, dsn string, logger *zap.Logger) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, matchSnapshotSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ensure snapshot schema: %w", err)
	}

	return &PostgresStore{pool: pool, logger: logger}, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Save upserts the snapshot row for the match.
func (s *PostgresStore) Save(ctx context.Context, record *MatchRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO match_snapshots (match_id, data, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (match_id) DO UPDATE SET data = $2, updated_at = now()`,
		record.ID, data,
	)
	if err != nil {
		return fmt.Errorf("failed to save snapshot for %s: %w", record.ID, err)
	}

	if s.logger != nil {
		s.logger.Debug("saved match snapshot",
			zap.String("match_id", record.ID),
			zap.String("phase", record.Phase),
		)
	}
	return nil
}

// Load reads the snapshot row for a match id.
func (s *PostgresStore) Load(ctx context.Context, matchID string) (*MatchRecord, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM match_snapshots WHERE match_id = $1`, matchID,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load snapshot for %s: %w", matchID, err)
	}

	var record MatchRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot for %s: %w", matchID, err)
	}
	return &record, nil
}

// List returns every match id with a stored snapshot.
func (s *PostgresStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT match_id FROM match_snapshots ORDER BY updated_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate snapshots: %w", err)
	}
	return ids, nil
}
