package ldsqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

const schema = `CREATE TABLE IF NOT EXISTS namespace_values (
	namespace TEXT NOT NULL,
	key TEXT NOT NULL,
	value_json TEXT NOT NULL,
	PRIMARY KEY (namespace, key)
)`

// SQLiteBackend stores the values of one namespace in a SQLite database. It implements
// subsystems.Backend.
type SQLiteBackend struct {
	sqlDB     *sql.DB
	path      string
	namespace string
}

// Open opens or creates the database file and prepares its schema. Most applications will use
// Backend() instead; Open is for programs such as a sync hub that serve a database directly.
func Open(path, namespace string, busyTimeoutMillis int) (*SQLiteBackend, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)",
		cleanPath, busyTimeoutMillis)
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteBackend{sqlDB: sqlDB, path: cleanPath, namespace: namespace}, nil
}

// WithNamespace returns a backend for another namespace of the same database. The two share a
// connection pool, and closing either one closes it.
func (s *SQLiteBackend) WithNamespace(namespace string) *SQLiteBackend {
	return &SQLiteBackend{sqlDB: s.sqlDB, path: s.path, namespace: namespace}
}

// BulkRead returns the stored values for the specified key names. A stored value that is not
// valid JSON is treated as absent.
func (s *SQLiteBackend) BulkRead(ctx context.Context, names []string) (map[string]ldvalue.Value, error) {
	ret := make(map[string]ldvalue.Value, len(names))
	if len(names) == 0 {
		return ret, nil
	}
	args := make([]any, 0, len(names)+1)
	args = append(args, s.namespace)
	for _, name := range names {
		args = append(args, name)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(names)), ",")
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT key, value_json FROM namespace_values WHERE namespace = ? AND key IN (`+placeholders+`)`, //nolint:gosec
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("read namespace %s: %w", s.namespace, err)
	}
	defer func() {
		_ = rows.Close()
	}()
	for rows.Next() {
		var key, valueJSON string
		if err := rows.Scan(&key, &valueJSON); err != nil {
			return nil, fmt.Errorf("scan value: %w", err)
		}
		var v ldvalue.Value
		if err := v.UnmarshalJSON([]byte(valueJSON)); err != nil {
			continue
		}
		ret[key] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read namespace %s: %w", s.namespace, err)
	}
	return ret, nil
}

// Write stores all of the values in one transaction. A null value deletes the key.
func (s *SQLiteBackend) Write(ctx context.Context, values map[string]ldvalue.Value) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	for key, v := range values {
		if v.IsNull() {
			_, err = tx.ExecContext(ctx,
				`DELETE FROM namespace_values WHERE namespace = ? AND key = ?`,
				s.namespace, key)
		} else {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO namespace_values (namespace, key, value_json) VALUES (?, ?, ?)
				 ON CONFLICT(namespace, key) DO UPDATE SET value_json = excluded.value_json`,
				s.namespace, key, v.JSONString())
		}
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("write %s: %w", key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Keys returns the names of all keys stored in the namespace, in sorted order.
func (s *SQLiteBackend) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT key FROM namespace_values WHERE namespace = ? ORDER BY key`, s.namespace)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()
	var ret []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		ret = append(ret, key)
	}
	return ret, rows.Err()
}

// Close releases the underlying SQLite connection.
func (s *SQLiteBackend) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}
