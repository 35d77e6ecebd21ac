package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var migrationName = regexp.MustCompile(`^(\d+)_(.+)\.up\.sql$`)

// Migration is one numbered schema change.
type Migration struct {
	Version     int
	Description string
	UpSQL       string
}

// Migrator applies the embedded migrations to a database.
type Migrator struct {
	db *sql.DB
}

// NewMigrator creates a migration handler for db.
func NewMigrator(db *sql.DB) *Migrator {
	return &Migrator{db: db}
}

// LoadMigrations reads migrations/NNN_description.up.sql sorted by version.
func (m *Migrator) LoadMigrations() ([]Migration, error) {
	var result []Migration
	err := fs.WalkDir(migrationsFS, "migrations", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		matches := migrationName.FindStringSubmatch(path.Base(p))
		if len(matches) != 3 {
			return nil
		}
		version, _ := strconv.Atoi(matches[1])
		content, err := migrationsFS.ReadFile(p)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", p, err)
		}
		result = append(result, Migration{
			Version:     version,
			Description: strings.ReplaceAll(matches[2], "_", " "),
			UpSQL:       string(content),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking migrations: %w", err)
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Version < result[j].Version })
	return result, nil
}

// CurrentVersion returns the highest applied version, 0 for a fresh database.
func (m *Migrator) CurrentVersion(ctx context.Context) (int, error) {
	if _, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL DEFAULT '',
			applied_at  TEXT NOT NULL
		)`); err != nil {
		return 0, fmt.Errorf("creating schema_migrations: %w", err)
	}
	var version int
	if err := m.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&version); err != nil {
		return 0, fmt.Errorf("getting current version: %w", err)
	}
	return version, nil
}

// MigrateUp applies every pending migration, each in its own transaction.
func (m *Migrator) MigrateUp(ctx context.Context) (int, error) {
	migrations, err := m.LoadMigrations()
	if err != nil {
		return 0, fmt.Errorf("loading migrations: %w", err)
	}
	current, err := m.CurrentVersion(ctx)
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, mig := range migrations {
		if mig.Version <= current {
			continue
		}
		if mig.UpSQL == "" {
			return applied, fmt.Errorf("migration %d has no up SQL", mig.Version)
		}
		if err := m.apply(ctx, mig); err != nil {
			return applied, fmt.Errorf("applying migration %d (%s): %w", mig.Version, mig.Description, err)
		}
		applied++
	}
	return applied, nil
}

func (m *Migrator) apply(ctx context.Context, mig Migration) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, mig.UpSQL); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)`,
		mig.Version, mig.Description, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return err
	}
	return tx.Commit()
}
