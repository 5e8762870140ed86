package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cyphera/grantpay/internal/logger"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"go.uber.org/zap"
)

const createTableSQL = `CREATE TABLE IF NOT EXISTS kv_entries (
	key        TEXT PRIMARY KEY,
	value      BYTEA NOT NULL,
	expires_at TIMESTAMPTZ
)`

// PostgresStore is a Store backed by a single kv_entries table.
type PostgresStore struct {
	db  *sql.DB
	now func() time.Time
}

// OpenPostgres opens a connection pool using the pgx driver and verifies connectivity.
func OpenPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return NewPostgresStore(db), nil
}

// NewPostgresStore wraps an existing *sql.DB.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

// Ping checks that the database is reachable.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate creates the backing table if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createTableSQL); err != nil {
		return fmt.Errorf("failed to create kv_entries table: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) expiry(ttl time.Duration) sql.NullTime {
	if ttl <= 0 {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: s.now().Add(ttl).UTC(), Valid: true}
}

func (s *PostgresStore) live(expiresAt sql.NullTime) bool {
	return !expiresAt.Valid || s.now().Before(expiresAt.Time)
}

func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	var (
		value     []byte
		expiresAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT value, expires_at FROM kv_entries WHERE key = $1`, key,
	).Scan(&value, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %q: %w", key, err)
	}
	if !s.live(expiresAt) {
		return nil, ErrNotFound
	}
	return value, nil
}

func (s *PostgresStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv_entries (key, value, expires_at) VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at`,
		key, value, s.expiry(ttl),
	)
	if err != nil {
		return fmt.Errorf("failed to set %q: %w", key, err)
	}
	return nil
}

// Create inserts the row, replacing it only when the stored entry has expired.
func (s *PostgresStore) Create(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO kv_entries (key, value, expires_at) VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at
		 WHERE kv_entries.expires_at IS NOT NULL AND kv_entries.expires_at <= $4`,
		key, value, s.expiry(ttl), s.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to create %q: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to create %q: %w", key, err)
	}
	if n == 0 {
		return ErrExists
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv_entries WHERE key = $1`, key); err != nil {
		return fmt.Errorf("failed to delete %q: %w", key, err)
	}
	return nil
}

func (s *PostgresStore) Take(ctx context.Context, key string) ([]byte, error) {
	var (
		value     []byte
		expiresAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx,
		`DELETE FROM kv_entries WHERE key = $1 RETURNING value, expires_at`, key,
	).Scan(&value, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to take %q: %w", key, err)
	}
	if !s.live(expiresAt) {
		return nil, ErrNotFound
	}
	return value, nil
}

// Update locks the row with SELECT ... FOR UPDATE so concurrent updaters of the same key queue
// behind each other. A missing key is inserted; a concurrent insert surfaces as a unique violation.
func (s *PostgresStore) Update(ctx context.Context, key string, fn UpdateFunc) ([]byte, error) {
	var next []byte
	err := withTransaction(ctx, s.db, func(tx *sql.Tx) error {
		var (
			current   []byte
			expiresAt sql.NullTime
		)
		err := tx.QueryRowContext(ctx,
			`SELECT value, expires_at FROM kv_entries WHERE key = $1 FOR UPDATE`, key,
		).Scan(&current, &expiresAt)

		exists := true
		switch {
		case errors.Is(err, sql.ErrNoRows):
			exists = false
		case err != nil:
			return fmt.Errorf("failed to lock %q: %w", key, err)
		case !s.live(expiresAt):
			exists = false
			current = nil
		}

		next, err = fn(current, exists)
		if err != nil {
			return err
		}

		if exists {
			_, err = tx.ExecContext(ctx, `UPDATE kv_entries SET value = $2 WHERE key = $1`, key, next)
		} else {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO kv_entries (key, value, expires_at) VALUES ($1, $2, NULL)
				 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = NULL`,
				key, next)
		}
		if err != nil {
			return fmt.Errorf("failed to write %q: %w", key, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return next, nil
}

func (s *PostgresStore) Scan(ctx context.Context, prefix string) (map[string][]byte, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value, expires_at FROM kv_entries WHERE key LIKE $1 ESCAPE '\'`,
		escapeLike(prefix)+"%",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %q: %w", prefix, err)
	}
	defer rows.Close()

	result := make(map[string][]byte)
	for rows.Next() {
		var (
			key       string
			value     []byte
			expiresAt sql.NullTime
		)
		if err := rows.Scan(&key, &value, &expiresAt); err != nil {
			return nil, fmt.Errorf("failed to read scanned row: %w", err)
		}
		if s.live(expiresAt) {
			result[key] = value
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate scanned rows: %w", err)
	}
	return result, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// withTransaction executes fn within a transaction, committing when fn returns nil and rolling
// back otherwise.
func withTransaction(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			logger.Log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
