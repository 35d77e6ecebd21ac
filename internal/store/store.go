// Package store is the local SQLite database holding bindings and work
// entries. A Store is opened once per command, holds an exclusive lock on
// the database for its lifetime, and runs every write in one transaction.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/Tiliavir/git-timesheets/internal/apperr"
	"github.com/Tiliavir/git-timesheets/internal/store/lock"
)

// Options configures Open.
type Options struct {
	// LockTimeout bounds the wait for another process to release the store.
	LockTimeout time.Duration
	Logger      *slog.Logger
	// Now is used for updated_at and created_at stamps. Defaults to time.Now.
	Now func() time.Time
}

// Store is an open, locked gts database.
type Store struct {
	db     *sql.DB
	lock   *lock.Locker
	logger *slog.Logger
	now    func() time.Time
}

// Open locks and opens the database at path, creating it and applying
// migrations as needed. The lock file is path + ".lock".
func Open(ctx context.Context, path string, opts Options) (*Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("%w: creating database directory: %w", apperr.ErrStoreIO, err)
	}

	l := lock.New(path + ".lock")
	if err := l.Acquire(ctx, opts.LockTimeout); err != nil {
		return nil, err
	}

	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		_ = l.Release()
		return nil, fmt.Errorf("%w: opening database: %w", apperr.ErrStoreIO, err)
	}
	// One writer per process; the flock already excludes other processes.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	applied, err := NewMigrator(db).MigrateUp(ctx)
	if err != nil {
		_ = db.Close()
		_ = l.Release()
		return nil, fmt.Errorf("%w: running migrations: %w", apperr.ErrStoreIO, err)
	}
	if applied > 0 {
		logger.Debug("applied store migrations", "path", path, "count", applied)
	}

	return &Store{db: db, lock: l, logger: logger, now: now}, nil
}

// Close closes the database and releases the lock.
func (s *Store) Close() error {
	dbErr := s.db.Close()
	lockErr := s.lock.Release()
	if dbErr != nil {
		return fmt.Errorf("%w: closing database: %w", apperr.ErrStoreIO, dbErr)
	}
	return lockErr
}

// withTx runs fn in a transaction, committing on success.
func (s *Store) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ioErr(op, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return ioErr(op, err)
	}
	return nil
}

// ioErr classifies a database error as a store I/O failure. Context
// cancellation passes through unchanged.
func ioErr(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, apperr.ErrStoreIO, err)
}

const timeLayout = time.RFC3339Nano

func formatTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(timeLayout), Valid: true}
}

func parseTime(s sql.NullString) (time.Time, error) {
	if !s.Valid || s.String == "" {
		return time.Time{}, nil
	}
	return time.Parse(timeLayout, s.String)
}
