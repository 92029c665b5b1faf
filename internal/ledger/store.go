package ledger

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped whenever schema.sql changes. Ledgers written by an
// older build are rejected rather than migrated.
const schemaVersion = 1

// ErrSchemaMismatch is returned by Open when the ledger was created by a
// build with a different schema.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// connection pragmas, applied by the driver to every pooled connection
var pragmas = []string{
	"journal_mode(WAL)",
	"foreign_keys(1)",
	"busy_timeout(5000)",
}

// Store records detection runs in a SQLite file.
type Store struct {
	db   *sql.DB
	path string
}

// Open connects to the ledger at path, creating the file, its parent
// directory and the schema on first use.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("ledger path is empty")
	}
	path, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve ledger path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger directory: %w", err)
	}

	db, err := sql.Open("sqlite", dataSourceName(path))
	if err != nil {
		return nil, fmt.Errorf("open ledger %s: %w", path, err)
	}
	// One writer per process; runs record a row per file.
	db.SetMaxOpenConns(1)

	store := &Store{db: db, path: path}
	if err := store.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// dataSourceName builds a file: URI for an absolute path, escaping
// characters such as '?', '#' and '%' that would otherwise end the path.
func dataSourceName(path string) string {
	query := url.Values{}
	for _, pragma := range pragmas {
		query.Add("_pragma", pragma)
	}
	uri := url.URL{Scheme: "file", Path: filepath.ToSlash(path), RawQuery: query.Encode()}
	return uri.String()
}

// ensureSchema creates the tables in a fresh ledger or checks the recorded
// version of an existing one.
func (s *Store) ensureSchema(ctx context.Context) error {
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin schema tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		var tables int
		if err := tx.QueryRowContext(ctx,
			"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
		).Scan(&tables); err != nil {
			return fmt.Errorf("inspect ledger schema: %w", err)
		}
		if tables > 0 {
			var version int
			if err := tx.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
				return fmt.Errorf("read schema version: %w", err)
			}
			if version != schemaVersion {
				return fmt.Errorf("%w: ledger %s has version %d, expected %d (delete the file or disable the ledger)",
					ErrSchemaMismatch, s.path, version, schemaVersion)
			}
			return nil
		}

		if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
		return tx.Commit()
	})
}

// Path returns the database file path.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

const (
	sqliteBusyCode   = 5
	busyAttempts     = 5
	busyFirstBackoff = 10 * time.Millisecond
	busyMaxBackoff   = 200 * time.Millisecond
)

// isBusy reports SQLITE_BUSY, which another process holding the ledger
// produces once busy_timeout runs out.
func isBusy(err error) bool {
	var coder interface{ Code() int }
	if errors.As(err, &coder) {
		return coder.Code()&0xff == sqliteBusyCode
	}
	return err != nil && strings.Contains(err.Error(), "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	backoff := busyFirstBackoff
	for attempt := 1; ; attempt++ {
		err := op()
		if err == nil || !isBusy(err) || attempt == busyAttempts {
			return err
		}
		timer := time.NewTimer(backoff)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
		backoff = min(backoff*2, busyMaxBackoff)
	}
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var res sql.Result
	err := retryOnBusy(ctx, func() error {
		var execErr error
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	})
	return res, err
}
