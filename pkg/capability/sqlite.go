package capability

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3" // registers the "sqlite3" driver

	"github.com/germanamz/promptforge/pkg/settings"
)

// SQLiteStore persists probe results in a SQLite database so they survive
// restarts. Each row stores the capability record as JSON.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens the database at path. Use ":memory:" for a throwaway
// store. Call Migrate before first use.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("capability: sqlite open: %w", err)
	}
	// An in-memory database lives per connection.
	db.SetMaxOpenConns(1)

	return &SQLiteStore{db: db}, nil
}

// Migrate creates the capabilities table.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS capabilities (
			provider_id TEXT NOT NULL,
			model_id TEXT NOT NULL,
			data TEXT NOT NULL,
			tested_at TIMESTAMP,
			PRIMARY KEY (provider_id, model_id)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("capability: migrate: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Get(ctx context.Context, key Key) (settings.ModelCapabilities, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT data FROM capabilities WHERE provider_id=? AND model_id=?`,
		key.ProviderID, key.ModelID,
	)

	var data []byte
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return settings.ModelCapabilities{}, false, nil
		}
		return settings.ModelCapabilities{}, false, fmt.Errorf("capability: get %s: %w", key, err)
	}

	var caps settings.ModelCapabilities
	if err := json.Unmarshal(data, &caps); err != nil {
		return settings.ModelCapabilities{}, false, fmt.Errorf("capability: decode %s: %w", key, err)
	}

	return caps, true, nil
}

func (s *SQLiteStore) Put(ctx context.Context, key Key, caps settings.ModelCapabilities) error {
	data, err := json.Marshal(caps)
	if err != nil {
		return fmt.Errorf("capability: encode %s: %w", key, err)
	}

	var testedAt any
	if caps.TestResult != nil {
		testedAt = caps.TestResult.Timestamp.UTC()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO capabilities (provider_id, model_id, data, tested_at) VALUES (?,?,?,?)
		ON CONFLICT(provider_id, model_id) DO UPDATE SET data=excluded.data, tested_at=excluded.tested_at`,
		key.ProviderID, key.ModelID, string(data), testedAt,
	)
	if err != nil {
		return fmt.Errorf("capability: put %s: %w", key, err)
	}

	return nil
}

func (s *SQLiteStore) Keys(ctx context.Context) ([]Key, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT provider_id, model_id FROM capabilities`)
	if err != nil {
		return nil, fmt.Errorf("capability: keys: %w", err)
	}
	defer rows.Close()

	var keys []Key
	for rows.Next() {
		var k Key
		if err := rows.Scan(&k.ProviderID, &k.ModelID); err != nil {
			return nil, fmt.Errorf("capability: keys: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("capability: keys: %w", err)
	}
	sortKeys(keys)

	return keys, nil
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM capabilities`); err != nil {
		return fmt.Errorf("capability: clear: %w", err)
	}
	return nil
}
