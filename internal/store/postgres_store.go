package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is applied by EnsureSchema. A single table keeps the grouped
// key-value model: one row per (group, key).
const schema = `
CREATE TABLE IF NOT EXISTS state_entries (
	grp        TEXT        NOT NULL,
	key        TEXT        NOT NULL,
	value      JSONB       NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (grp, key)
);
CREATE INDEX IF NOT EXISTS idx_state_entries_grp ON state_entries (grp);
`

// PostgresConfig holds PostgreSQL connection settings
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int32
	MinConns int32

	MaxRetries    int
	RetryInterval time.Duration
}

// DSN returns the PostgreSQL connection string
func (c *PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// PostgresStore implements Store over a single jsonb table
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to PostgreSQL with retry and applies the schema
func NewPostgresStore(ctx context.Context, cfg *PostgresConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}

	var pool *pgxpool.Pool
	var lastErr error
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = 3
	}
	interval := cfg.RetryInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			time.Sleep(interval)
		}
		pool, lastErr = pgxpool.NewWithConfig(ctx, poolCfg)
		if lastErr != nil {
			continue
		}
		if lastErr = pool.Ping(ctx); lastErr == nil {
			break
		}
		pool.Close()
		pool = nil
	}
	if pool == nil {
		return nil, fmt.Errorf("failed to connect to postgres after %d attempts: %w", retries+1, lastErr)
	}

	s := &PostgresStore{pool: pool}
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// EnsureSchema creates the state table if it does not exist
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply state schema: %w", err)
	}
	return nil
}

// Get reads the value at (group, key) into dest
func (s *PostgresStore) Get(ctx context.Context, group, key string, dest any) error {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM state_entries WHERE grp = $1 AND key = $2`,
		group, key,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrKeyNotFound
		}
		return fmt.Errorf("failed to get %s/%s: %w", group, key, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to unmarshal value at %s/%s: %w", group, key, err)
	}
	return nil
}

// Set writes the value at (group, key)
func (s *PostgresStore) Set(ctx context.Context, group, key string, value any) error {
	data, err := marshalValue(value)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO state_entries (grp, key, value, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (grp, key) DO UPDATE SET value = $3, updated_at = now()`,
		group, key, data,
	)
	if err != nil {
		return fmt.Errorf("failed to set %s/%s: %w", group, key, err)
	}
	return nil
}

// SetIfAbsent writes the value only if (group, key) does not exist. The
// conditional insert is atomic on the primary key, so concurrent callers
// cannot both win.
func (s *PostgresStore) SetIfAbsent(ctx context.Context, group, key string, value any) (bool, error) {
	data, err := marshalValue(value)
	if err != nil {
		return false, err
	}
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO state_entries (grp, key, value, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (grp, key) DO NOTHING`,
		group, key, data,
	)
	if err != nil {
		return false, fmt.Errorf("failed to set %s/%s if absent: %w", group, key, err)
	}
	return tag.RowsAffected() > 0, nil
}

// CompareAndSwap writes the value only if the stored jsonb still equals
// old. jsonb equality is structural, so byte-level formatting differences
// from storage normalization do not break the compare.
func (s *PostgresStore) CompareAndSwap(ctx context.Context, group, key string, old json.RawMessage, value any) error {
	data, err := marshalValue(value)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE state_entries SET value = $3, updated_at = now()
		 WHERE grp = $1 AND key = $2 AND value = $4::jsonb`,
		group, key, data, []byte(old),
	)
	if err != nil {
		return fmt.Errorf("failed to swap %s/%s: %w", group, key, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCASMismatch
	}
	return nil
}

// Delete removes (group, key)
func (s *PostgresStore) Delete(ctx context.Context, group, key string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM state_entries WHERE grp = $1 AND key = $2`,
		group, key,
	)
	if err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", group, key, err)
	}
	return nil
}

// GetGroup returns the raw values of all keys in a group
func (s *PostgresStore) GetGroup(ctx context.Context, group string) ([]json.RawMessage, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT value FROM state_entries WHERE grp = $1`,
		group,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get group %s: %w", group, err)
	}
	defer rows.Close()

	var out []json.RawMessage
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan group %s row: %w", group, err)
		}
		out = append(out, json.RawMessage(data))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read group %s: %w", group, err)
	}
	return out, nil
}

// Close closes the connection pool
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Ensure PostgresStore implements Store
var _ Store = (*PostgresStore)(nil)
