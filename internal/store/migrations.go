package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sort"
	"strings"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Migration versions referenced by callers that stage older schemas.
const (
	MigrationInitial     = "0001_initial"
	MigrationDoubleCheck = "0002_double_check"
)

type migration struct {
	version string
	sql     string
}

// MigrationState reports whether a known migration has been applied.
type MigrationState struct {
	Version string
	Applied bool
}

func loadMigrations() ([]migration, error) {
	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}
	versions := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		versions = append(versions, entry.Name())
	}
	sort.Strings(versions)

	migrations := make([]migration, 0, len(versions))
	for _, name := range versions {
		data, err := migrationFS.ReadFile("migrations/" + name)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}
		version := strings.TrimSuffix(name, ".sql")
		migrations = append(migrations, migration{version: version, sql: string(data)})
	}
	return migrations, nil
}

const createMigrationsTable = "CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY)"

// ApplyMigrationsUpTo applies pending migrations in order, stopping after
// version. An empty version applies everything.
func (s *Store) ApplyMigrationsUpTo(ctx context.Context, version string) error {
	return s.applyMigrations(ensureContext(ctx), version)
}

func (s *Store) applyMigrations(ctx context.Context, upTo string) error {
	migrations, err := loadMigrations()
	if err != nil {
		return err
	}
	if upTo != "" && !knownVersion(migrations, upTo) {
		return fmt.Errorf("unknown migration %q", upTo)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, createMigrationsTable); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}

	applied, err := appliedVersions(ctx, tx)
	if err != nil {
		return err
	}
	for version := range applied {
		if !knownVersion(migrations, version) {
			return fmt.Errorf("%w: unknown migration %s", ErrSchemaMismatch, version)
		}
	}

	for _, migration := range migrations {
		if _, ok := applied[migration.version]; !ok {
			if _, err := tx.ExecContext(ctx, migration.sql); err != nil {
				return fmt.Errorf("apply migration %s: %w", migration.version, err)
			}
			if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (?)", migration.version); err != nil {
				return fmt.Errorf("record migration %s: %w", migration.version, err)
			}
		}
		if migration.version == upTo {
			break
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migrations: %w", err)
	}
	return nil
}

// MigrationStatus lists every embedded migration in order.
func (s *Store) MigrationStatus(ctx context.Context) ([]MigrationState, error) {
	ctx = ensureContext(ctx)
	migrations, err := loadMigrations()
	if err != nil {
		return nil, err
	}
	if _, err := s.execWithRetry(ctx, createMigrationsTable); err != nil {
		return nil, fmt.Errorf("ensure schema_migrations: %w", err)
	}
	applied, err := appliedVersions(ctx, s.db)
	if err != nil {
		return nil, err
	}
	states := make([]MigrationState, 0, len(migrations))
	for _, migration := range migrations {
		_, ok := applied[migration.version]
		states = append(states, MigrationState{Version: migration.version, Applied: ok})
	}
	return states, nil
}

// SchemaVersion returns the most recent applied migration, or "" for an
// empty database.
func (s *Store) SchemaVersion(ctx context.Context) (string, error) {
	states, err := s.MigrationStatus(ctx)
	if err != nil {
		return "", err
	}
	version := ""
	for _, state := range states {
		if state.Applied {
			version = state.Version
		}
	}
	return version, nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func appliedVersions(ctx context.Context, q queryer) (map[string]struct{}, error) {
	rows, err := q.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]struct{})
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("scan migration version: %w", err)
		}
		applied[version] = struct{}{}
	}
	return applied, rows.Err()
}

func knownVersion(migrations []migration, version string) bool {
	for _, migration := range migrations {
		if migration.version == version {
			return true
		}
	}
	return false
}
